package main

import (
	"fmt"
	"os"

	"github.com/2beens/wodcareer/internal/db"
	"github.com/2beens/wodcareer/internal/ledger/pgstore"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var seedSkipSchema bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Upsert the catalog into postgres",
	Long: `Seed applies the schema (unless --skip-schema) and upserts every
catalog row by its natural key. It is safe to run on every deploy.

Credentials come from WODCAREER_PG_USER and WODCAREER_PG_PASS.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadCatalog()
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		pool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
			DBHost:     cfg.PostgresHost,
			DBPort:     cfg.PostgresPort,
			DBName:     cfg.PostgresDBName,
			DBUser:     os.Getenv("WODCAREER_PG_USER"),
			DBPassword: os.Getenv("WODCAREER_PG_PASS"),
			MaxConns:   2,
		})
		if err != nil {
			return err
		}
		defer pool.Close()

		store := pgstore.NewStore(pool, cfg.CapacityCacheSize)
		if !seedSkipSchema {
			if err := store.ApplySchema(ctx); err != nil {
				return err
			}
			color.Green("✓ Schema applied")
		}

		stats, err := store.SeedCatalog(ctx, c)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		color.Green("✓ Seeded %d capacities, %d achievements, %d missions",
			stats.Capacities, stats.Achievements, stats.Missions)
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedSkipSchema, "skip-schema", false, "do not apply the schema before seeding")
}
