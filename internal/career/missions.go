package career

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/2beens/wodcareer/internal/ledger"
)

const (
	missionTypePR = "pr"
	defaultTarget = 1
)

// ExpiresAt derives the deadline of a mission assigned at `at`: a day
// window ends at the next UTC midnight, a week window 7 days later.
func ExpiresAt(window string, at time.Time) *time.Time {
	var t time.Time
	switch strings.ToLower(strings.TrimSpace(window)) {
	case "day", "daily":
		t = ledger.Day(at).AddDate(0, 0, 1)
	case "week", "weekly":
		t = at.UTC().AddDate(0, 0, 7)
	default:
		return nil
	}
	return &t
}

// AssignActive gives userID every active mission not assigned yet and
// returns all of the athlete's missions.
func (s *Service) AssignActive(ctx context.Context, tx ledger.Tx, userID int) ([]ledger.UserMission, error) {
	missions, err := tx.ActiveMissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("active missions: %w", err)
	}
	current, err := tx.UserMissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user missions: %w", err)
	}

	assigned := make(map[int]bool, len(current))
	for _, um := range current {
		assigned[um.Mission.ID] = true
	}

	now := s.now()
	added := false
	for _, m := range missions {
		if assigned[m.ID] {
			continue
		}
		um := &ledger.UserMission{
			UserID:     userID,
			Mission:    m,
			Status:     ledger.MissionAssigned,
			AssignedAt: now,
			ExpiresAt:  ExpiresAt(m.Condition.Window, now),
		}
		if err := tx.AssignMission(ctx, um); err != nil {
			return nil, fmt.Errorf("assign mission %d: %w", m.ID, err)
		}
		added = true
	}

	if !added {
		return current, nil
	}
	return tx.UserMissions(ctx, userID)
}

// UpdateMissions progresses the athlete's open missions by one workout
// event. Missions of type pr only count when newPR is set. The XP of the
// completed missions is booked in one go.
func (s *Service) UpdateMissions(ctx context.Context, tx ledger.Tx, userID int, newPR bool) ([]string, int, error) {
	missions, err := s.AssignActive(ctx, tx, userID)
	if err != nil {
		return nil, 0, err
	}

	now := s.now()
	var completed []string
	totalXP := 0
	for i := range missions {
		um := &missions[i]
		if um.Status.Closed() {
			continue
		}
		if um.ExpiresAt != nil && um.ExpiresAt.Before(now) {
			um.Status = ledger.MissionExpired
			if err := tx.SaveUserMission(ctx, um); err != nil {
				return nil, 0, fmt.Errorf("expire mission %d: %w", um.ID, err)
			}
			continue
		}
		if !um.Mission.IsActive {
			continue
		}
		if um.Mission.Condition.Type == missionTypePR && !newPR {
			continue
		}

		um.ProgressValue++
		um.Status = ledger.MissionInProgress
		if um.ProgressValue >= target(um.Mission) {
			um.Status = ledger.MissionCompleted
			um.CompletedAt = &now
			completed = append(completed, um.Mission.Title)
			totalXP += um.Mission.XPReward
		}
		if err := tx.SaveUserMission(ctx, um); err != nil {
			return nil, 0, fmt.Errorf("save mission %d: %w", um.ID, err)
		}
	}

	if totalXP > 0 {
		if _, err := s.AddXP(ctx, tx, userID, totalXP); err != nil {
			return nil, 0, err
		}
	}
	return completed, totalXP, nil
}

func target(m ledger.Mission) int {
	if m.Condition.Target <= 0 {
		return defaultTarget
	}
	return m.Condition.Target
}
