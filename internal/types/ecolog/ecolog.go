package ecolog

import (
	"time"

	"ecoQuestAPI/internal/footprint"
	"ecoQuestAPI/internal/types/challenge"
	"ecoQuestAPI/internal/types/user"
)

type Transport struct {
	Type       footprint.TransportMode `json:"type" db:"transport_type"`
	DistanceKm float64                 `json:"distanceKm" db:"distance_km"`
}

// Log is one submitted day. It is never updated after creation.
type Log struct {
	ID            string               `json:"id" db:"id"`
	UserID        string               `json:"-" db:"user_id"`
	Date          string               `json:"date" db:"date"`
	Transport     Transport            `json:"transport"`
	Food          footprint.FoodChoice `json:"food" db:"food"`
	HomeEnergyKWh float64              `json:"homeEnergyKwh" db:"home_energy_kwh"`
	WasteKg       float64              `json:"wasteKg" db:"waste_kg"`
	WaterLiters   float64              `json:"waterLiters" db:"water_liters"`
	CarbonScore   float64              `json:"carbonScore" db:"carbon_score"`
	PointsEarned  int                  `json:"pointsEarned" db:"points_earned"`
	DayKey        string               `json:"dayKey" db:"day_key"`
	CreatedAt     time.Time            `json:"createdAt" db:"created_at"`
}

func (l *Log) Inputs() footprint.Inputs {
	return footprint.Inputs{
		Transport:     l.Transport.Type,
		DistanceKm:    l.Transport.DistanceKm,
		Food:          l.Food,
		HomeEnergyKWh: l.HomeEnergyKWh,
		WasteKg:       l.WasteKg,
		WaterLiters:   l.WaterLiters,
	}
}

func (l *Log) Clone() *Log {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

type CreateLogRequest struct {
	// ID doubles as an idempotency key. Empty means the server picks one.
	ID            string               `json:"id,omitempty" validate:"omitempty,uuid"`
	Date          string               `json:"date,omitempty" validate:"omitempty,max=64"`
	Transport     Transport            `json:"transport"`
	Food          footprint.FoodChoice `json:"food" validate:"required"`
	HomeEnergyKWh *float64             `json:"homeEnergyKwh,omitempty"`
	WasteKg       *float64             `json:"wasteKg,omitempty"`
	WaterLiters   *float64             `json:"waterLiters,omitempty"`
}

func (r *CreateLogRequest) Inputs() footprint.Inputs {
	return footprint.Inputs{
		Transport:     r.Transport.Type,
		DistanceKm:    r.Transport.DistanceKm,
		Food:          r.Food,
		HomeEnergyKWh: valueOrZero(r.HomeEnergyKWh),
		WasteKg:       valueOrZero(r.WasteKg),
		WaterLiters:   valueOrZero(r.WaterLiters),
	}
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// AppliedLog is the result of a submission.
type AppliedLog struct {
	Log                 *Log                       `json:"log"`
	Profile             *user.Profile              `json:"profile"`
	Duplicate           bool                       `json:"duplicate"`
	CompletedChallenges []*challenge.UserChallenge `json:"completedChallenges,omitempty"`
}

// Preview is a scored but unsaved day.
type Preview struct {
	Breakdown footprint.Breakdown `json:"breakdown"`
	Display   footprint.Breakdown `json:"display"`
	Points    int                 `json:"points"`
}

type Preset struct {
	Label   string           `json:"label"`
	Inputs  footprint.Inputs `json:"inputs"`
	Preview *Preview         `json:"preview"`
}
