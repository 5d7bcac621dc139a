package challenge

import (
	"fmt"
	"time"

	"ecoQuestAPI/internal/footprint"
)

type Metric string

const (
	MetricLogs      Metric = "logs"
	MetricTransport Metric = "transport"
	MetricFood      Metric = "food"
	MetricWater     Metric = "water"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Definition is a catalog entry. Users get a snapshot of it on join.
type Definition struct {
	ID            string                  `json:"id" yaml:"id" db:"challenge_id"`
	Title         string                  `json:"title" yaml:"title" db:"title"`
	Description   string                  `json:"description" yaml:"description" db:"description"`
	Reward        int                     `json:"reward" yaml:"reward" db:"reward"`
	Target        float64                 `json:"target" yaml:"target" db:"target"`
	Metric        Metric                  `json:"metric" yaml:"metric" db:"metric"`
	TransportType footprint.TransportMode `json:"transportType,omitempty" yaml:"transportType" db:"transport_type"`
	FoodTypes     []footprint.FoodChoice  `json:"foodTypes,omitempty" yaml:"foodTypes" db:"food_types"`
	Icon          string                  `json:"icon" yaml:"icon" db:"icon"`
}

func (d Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("challenge id is required")
	}
	if d.Target <= 0 {
		return fmt.Errorf("challenge %s: target must be positive", d.ID)
	}
	if d.Reward < 0 {
		return fmt.Errorf("challenge %s: reward must not be negative", d.ID)
	}
	switch d.Metric {
	case MetricLogs, MetricWater:
	case MetricTransport:
		if !d.TransportType.Valid() {
			return fmt.Errorf("challenge %s: unknown transport type %q", d.ID, d.TransportType)
		}
	case MetricFood:
		if len(d.FoodTypes) == 0 {
			return fmt.Errorf("challenge %s: food metric needs at least one food type", d.ID)
		}
		for _, f := range d.FoodTypes {
			if !f.Valid() {
				return fmt.Errorf("challenge %s: unknown food type %q", d.ID, f)
			}
		}
	default:
		return fmt.Errorf("challenge %s: unknown metric %q", d.ID, d.Metric)
	}
	return nil
}

func (d Definition) AcceptsFood(f footprint.FoodChoice) bool {
	for _, ft := range d.FoodTypes {
		if ft == f {
			return true
		}
	}
	return false
}

// UserChallenge is a user's joined copy of a Definition.
type UserChallenge struct {
	Definition
	Progress    float64    `json:"progress" db:"progress"`
	Status      Status     `json:"status" db:"status"`
	CompletedAt *time.Time `json:"completedAt" db:"completed_at"`
	JoinedAt    time.Time  `json:"joinedAt" db:"joined_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

func NewUserChallenge(def Definition, now time.Time) *UserChallenge {
	def.FoodTypes = append([]footprint.FoodChoice(nil), def.FoodTypes...)
	return &UserChallenge{
		Definition: def,
		Progress:   0,
		Status:     StatusActive,
		JoinedAt:   now,
		UpdatedAt:  now,
	}
}

func (c *UserChallenge) Completed() bool {
	return c.Status == StatusCompleted
}

func (c *UserChallenge) TargetReached() bool {
	return c.Progress >= c.Target
}

// MarkCompleted flips an active challenge to completed. It reports false when
// the challenge was already completed, so callers credit the reward once.
func (c *UserChallenge) MarkCompleted(now time.Time) bool {
	if c.Completed() {
		return false
	}
	c.Status = StatusCompleted
	c.CompletedAt = &now
	c.UpdatedAt = now
	return true
}

func (c *UserChallenge) Clone() *UserChallenge {
	if c == nil {
		return nil
	}
	cp := *c
	cp.FoodTypes = append([]footprint.FoodChoice(nil), c.FoodTypes...)
	if c.CompletedAt != nil {
		t := *c.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// CatalogItem is a Definition annotated for one user.
type CatalogItem struct {
	Definition
	Joined bool `json:"joined"`
}
