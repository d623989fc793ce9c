package career

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/2beens/wodcareer/internal/ledger"

	log "github.com/sirupsen/logrus"
)

const (
	levelAchievementPrefix = "LEVEL_"
	FirstPRAchievement     = "FIRST_PR"
)

// EvaluateLevel unlocks every active LEVEL_<n> achievement with n <= level.
// Achievement XP can raise the level again; that is picked up on the next
// evaluation, not here.
func (s *Service) EvaluateLevel(ctx context.Context, tx ledger.Tx, userID, level int) ([]string, error) {
	achievements, err := tx.ActiveAchievements(ctx)
	if err != nil {
		return nil, fmt.Errorf("active achievements: %w", err)
	}

	var unlocked []string
	for _, a := range achievements {
		target, ok := levelTarget(a.Code)
		if !ok || level < target {
			continue
		}
		granted, err := s.unlock(ctx, tx, userID, a)
		if err != nil {
			return nil, err
		}
		if granted {
			unlocked = append(unlocked, a.Name)
		}
	}
	return unlocked, nil
}

// UnlockByCode unlocks one achievement. Unknown or inactive codes unlock
// nothing.
func (s *Service) UnlockByCode(ctx context.Context, tx ledger.Tx, userID int, code string) ([]string, error) {
	a, err := tx.AchievementByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			log.Warnf("[career] achievement %s not in catalog", code)
			return nil, nil
		}
		return nil, fmt.Errorf("achievement %s: %w", code, err)
	}
	if !a.IsActive {
		return nil, nil
	}

	granted, err := s.unlock(ctx, tx, userID, *a)
	if err != nil || !granted {
		return nil, err
	}
	return []string{a.Name}, nil
}

func (s *Service) unlock(ctx context.Context, tx ledger.Tx, userID int, a ledger.Achievement) (bool, error) {
	has, err := tx.HasAchievement(ctx, userID, a.ID)
	if err != nil {
		return false, fmt.Errorf("has achievement %s: %w", a.Code, err)
	}
	if has {
		return false, nil
	}
	if err := tx.GrantAchievement(ctx, userID, a.ID, s.now()); err != nil {
		return false, fmt.Errorf("grant achievement %s: %w", a.Code, err)
	}
	if a.XPReward > 0 {
		if _, err := s.AddXP(ctx, tx, userID, a.XPReward); err != nil {
			return false, err
		}
	}
	log.Debugf("[career] user=%d unlocked %s", userID, a.Code)
	return true, nil
}

func levelTarget(code string) (int, bool) {
	if !strings.HasPrefix(code, levelAchievementPrefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(code, levelAchievementPrefix))
	if err != nil {
		return 0, false
	}
	return n, true
}
