package pgstore

import (
	"context"
	"fmt"

	"github.com/2beens/wodcareer/internal/catalog"
	"github.com/2beens/wodcareer/internal/db"

	"github.com/jackc/pgx/v5"
	log "github.com/sirupsen/logrus"
)

type SeedStats struct {
	Capacities   int
	Achievements int
	Missions     int
}

// SeedCatalog upserts the catalog rows by their natural keys, so it can
// run on every deploy.
func (s *Store) SeedCatalog(ctx context.Context, c *catalog.Catalog) (stats SeedStats, err error) {
	err = db.RunInTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, capacity := range c.Capacities {
			if _, err := tx.Exec(ctx, `
				INSERT INTO physical_capacities (code, name) VALUES ($1, $2)
				ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
			`, capacity.Code, capacity.Name); err != nil {
				return fmt.Errorf("seed capacity %s: %w", capacity.Code, err)
			}
			stats.Capacities++
		}

		for _, a := range c.Achievements {
			if _, err := tx.Exec(ctx, `
				INSERT INTO achievements (code, name, description, category, xp_reward, is_active)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (code) DO UPDATE SET
					name = EXCLUDED.name, description = EXCLUDED.description, category = EXCLUDED.category,
					xp_reward = EXCLUDED.xp_reward, is_active = EXCLUDED.is_active
			`, a.Code, a.Name, a.Description, a.Category, a.XPReward, !a.Inactive); err != nil {
				return fmt.Errorf("seed achievement %s: %w", a.Code, err)
			}
			stats.Achievements++
		}

		for _, m := range c.Missions {
			condition, err := marshalJSON(m.Condition)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO missions (type, title, description, xp_reward, condition_json, is_active)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (type, title) DO UPDATE SET
					description = EXCLUDED.description, xp_reward = EXCLUDED.xp_reward,
					condition_json = EXCLUDED.condition_json, is_active = EXCLUDED.is_active
			`, m.Type, m.Title, m.Description, m.XPReward, condition, !m.Inactive); err != nil {
				return fmt.Errorf("seed mission %q: %w", m.Title, err)
			}
			stats.Missions++
		}
		return nil
	})
	if err != nil {
		return SeedStats{}, err
	}

	s.cache.clear()
	log.Infof("catalog seeded: %d capacities, %d achievements, %d missions", stats.Capacities, stats.Achievements, stats.Missions)
	return stats, nil
}
