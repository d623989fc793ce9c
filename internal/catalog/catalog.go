// Package catalog holds the reference rows the engine reads but never
// writes at runtime: physical capacities, achievements and missions.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/2beens/wodcareer/internal/impact"
	"github.com/2beens/wodcareer/internal/ledger"
	"github.com/2beens/wodcareer/internal/ledger/memstore"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Capacity struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

type Achievement struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	XPReward    int    `yaml:"xp_reward"`
	// Inactive rows are kept for history but never unlocked.
	Inactive bool `yaml:"inactive"`
}

type Mission struct {
	Type        string                  `yaml:"type"`
	Title       string                  `yaml:"title"`
	Description string                  `yaml:"description"`
	XPReward    int                     `yaml:"xp_reward"`
	Condition   ledger.MissionCondition `yaml:"condition"`
	Inactive    bool                    `yaml:"inactive"`
}

type Catalog struct {
	Capacities   []Capacity    `yaml:"capacities"`
	Achievements []Achievement `yaml:"achievements"`
	Missions     []Mission     `yaml:"missions"`
}

func (a Achievement) Ledger() ledger.Achievement {
	return ledger.Achievement{
		Code:        a.Code,
		Name:        a.Name,
		Description: a.Description,
		Category:    a.Category,
		XPReward:    a.XPReward,
		IsActive:    !a.Inactive,
	}
}

func (m Mission) Ledger() ledger.Mission {
	return ledger.Mission{
		Type:        m.Type,
		Title:       m.Title,
		Description: m.Description,
		XPReward:    m.XPReward,
		Condition:   m.Condition,
		IsActive:    !m.Inactive,
	}
}

// Default is the catalog shipped with the binary.
func Default() *Catalog {
	c, err := Parse(defaultsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %s", err))
	}
	return c
}

func Read(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	c := &Catalog{}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate reports every problem of the catalog at once.
func (c *Catalog) Validate() error {
	var err error

	codes := map[string]bool{}
	for _, capacity := range c.Capacities {
		canonical, ok := impact.CanonicalCapacity(capacity.Code)
		if !ok {
			err = multierr.Append(err, fmt.Errorf("capacity %q: no canonical mapping", capacity.Code))
			continue
		}
		if codes[canonical] {
			err = multierr.Append(err, fmt.Errorf("capacity %q: duplicate", capacity.Code))
		}
		codes[canonical] = true
	}

	achievements := map[string]bool{}
	for _, a := range c.Achievements {
		if strings.TrimSpace(a.Code) == "" {
			err = multierr.Append(err, errors.New("achievement without code"))
			continue
		}
		if achievements[a.Code] {
			err = multierr.Append(err, fmt.Errorf("achievement %s: duplicate", a.Code))
		}
		achievements[a.Code] = true
		if n, ok := strings.CutPrefix(a.Code, "LEVEL_"); ok {
			if _, convErr := strconv.Atoi(n); convErr != nil {
				err = multierr.Append(err, fmt.Errorf("achievement %s: level is not a number", a.Code))
			}
		}
		if a.XPReward < 0 {
			err = multierr.Append(err, fmt.Errorf("achievement %s: negative xp reward", a.Code))
		}
	}

	for _, m := range c.Missions {
		if strings.TrimSpace(m.Title) == "" {
			err = multierr.Append(err, errors.New("mission without title"))
			continue
		}
		switch m.Condition.Window {
		case "", "day", "daily", "week", "weekly":
		default:
			err = multierr.Append(err, fmt.Errorf("mission %q: unknown window %q", m.Title, m.Condition.Window))
		}
		if m.Condition.Target < 0 {
			err = multierr.Append(err, fmt.Errorf("mission %q: negative target", m.Title))
		}
		if m.XPReward < 0 {
			err = multierr.Append(err, fmt.Errorf("mission %q: negative xp reward", m.Title))
		}
	}

	return err
}

// SeedMemory loads the catalog into an in-memory store.
func (c *Catalog) SeedMemory(s *memstore.Store) {
	for _, capacity := range c.Capacities {
		s.PutCapacity(capacity.Code, capacity.Name)
	}
	for _, a := range c.Achievements {
		s.PutAchievement(a.Ledger())
	}
	for _, m := range c.Missions {
		s.PutMission(m.Ledger())
	}
}
