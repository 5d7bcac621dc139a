package footprint

import (
	"fmt"
	"math"
)

type TransportMode string

const (
	Walk   TransportMode = "Walk"
	Bike   TransportMode = "Bike"
	Bus    TransportMode = "Bus"
	Train  TransportMode = "Train"
	GasCar TransportMode = "Gas Car"
	EV     TransportMode = "EV"
)

// kg CO2e per km
var transportFactors = map[TransportMode]float64{
	Walk:   0,
	Bike:   0,
	Bus:    0.089,
	Train:  0.035,
	GasCar: 0.17,
	EV:     0.05,
}

var transportOrder = []TransportMode{Walk, Bike, Bus, Train, GasCar, EV}

type FoodChoice string

const (
	Vegan      FoodChoice = "Vegan"
	Vegetarian FoodChoice = "Vegetarian"
	LowMeat    FoodChoice = "Low Meat"
	MeatHeavy  FoodChoice = "Meat Heavy"
)

// kg CO2e per logged day, flat
var foodFactors = map[FoodChoice]float64{
	Vegan:      1.5,
	Vegetarian: 2.0,
	LowMeat:    3.5,
	MeatHeavy:  7.0,
}

var foodOrder = []FoodChoice{Vegan, Vegetarian, LowMeat, MeatHeavy}

const (
	EnergyFactorPerKWh  = 0.42
	WasteFactorPerKg    = 1.8
	WaterFactorPerLiter = 0.0003
)

// Upper bounds for one day of activity.
const (
	MaxDistanceKm    = 5000
	MaxHomeEnergyKWh = 1000
	MaxWasteKg       = 500
	MaxWaterLiters   = 50000
)

func (m TransportMode) Valid() bool {
	_, ok := transportFactors[m]
	return ok
}

// Factor returns kg CO2e per km. Unknown modes return 0; callers validate first.
func (m TransportMode) Factor() float64 {
	return transportFactors[m]
}

func (f FoodChoice) Valid() bool {
	_, ok := foodFactors[f]
	return ok
}

func (f FoodChoice) Factor() float64 {
	return foodFactors[f]
}

func TransportModes() []TransportMode {
	return append([]TransportMode(nil), transportOrder...)
}

func FoodChoices() []FoodChoice {
	return append([]FoodChoice(nil), foodOrder...)
}

// Inputs is one day of activity as entered by the user.
type Inputs struct {
	Transport     TransportMode `json:"transport"`
	DistanceKm    float64       `json:"distanceKm"`
	Food          FoodChoice    `json:"food"`
	HomeEnergyKWh float64       `json:"homeEnergyKwh"`
	WasteKg       float64       `json:"wasteKg"`
	WaterLiters   float64       `json:"waterLiters"`
}

// Breakdown holds the per-category contribution in kg CO2e. Values are
// unrounded; use Round1 only when presenting them.
type Breakdown struct {
	Transport float64 `json:"transportCarbon"`
	Food      float64 `json:"foodCarbon"`
	Energy    float64 `json:"energyCarbon"`
	Waste     float64 `json:"wasteCarbon"`
	Water     float64 `json:"waterCarbon"`
	Total     float64 `json:"total"`
}

// Validate rejects unknown enum values and magnitudes that are negative,
// non-finite or above their daily bound. Nothing is clamped.
func (in Inputs) Validate() error {
	if !in.Transport.Valid() {
		return &ValidationError{Field: "transport.type", Reason: fmt.Sprintf("unknown transport mode %q", in.Transport)}
	}
	if !in.Food.Valid() {
		return &ValidationError{Field: "food", Reason: fmt.Sprintf("unknown food choice %q", in.Food)}
	}

	magnitudes := []struct {
		field string
		value float64
		max   float64
	}{
		{"transport.distanceKm", in.DistanceKm, MaxDistanceKm},
		{"homeEnergyKwh", in.HomeEnergyKWh, MaxHomeEnergyKWh},
		{"wasteKg", in.WasteKg, MaxWasteKg},
		{"waterLiters", in.WaterLiters, MaxWaterLiters},
	}
	for _, m := range magnitudes {
		if math.IsNaN(m.value) || math.IsInf(m.value, 0) {
			return &ValidationError{Field: m.field, Reason: "must be a finite number"}
		}
		if m.value < 0 {
			return &ValidationError{Field: m.field, Reason: "must not be negative"}
		}
		if m.value > m.max {
			return &ValidationError{Field: m.field, Reason: fmt.Sprintf("must be at most %g", m.max)}
		}
	}
	return nil
}

// Calculate scores a day of activity:
//
//	distance*transport + food + kWh*0.42 + kg*1.8 + liters*0.0003
func Calculate(in Inputs) (Breakdown, error) {
	if err := in.Validate(); err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		Transport: in.DistanceKm * in.Transport.Factor(),
		Food:      in.Food.Factor(),
		Energy:    in.HomeEnergyKWh * EnergyFactorPerKWh,
		Waste:     in.WasteKg * WasteFactorPerKg,
		Water:     in.WaterLiters * WaterFactorPerLiter,
	}
	b.Total = b.Transport + b.Food + b.Energy + b.Waste + b.Water
	if math.IsNaN(b.Total) || math.IsInf(b.Total, 0) {
		return Breakdown{}, &ValidationError{Field: "carbonScore", Reason: "is not a finite number"}
	}
	return b, nil
}

// Score is Calculate without the breakdown.
func Score(in Inputs) (float64, error) {
	b, err := Calculate(in)
	if err != nil {
		return 0, err
	}
	return b.Total, nil
}

// Round1 rounds to one decimal place for display.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Rounded returns a copy of b with every field passed through Round1.
func (b Breakdown) Rounded() Breakdown {
	return Breakdown{
		Transport: Round1(b.Transport),
		Food:      Round1(b.Food),
		Energy:    Round1(b.Energy),
		Waste:     Round1(b.Waste),
		Water:     Round1(b.Water),
		Total:     Round1(b.Total),
	}
}
