package footprint

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name  string
		input Inputs
		want  float64
	}{
		{
			name:  "walk vegan nothing else",
			input: Inputs{Transport: Walk, DistanceKm: 0, Food: Vegan},
			want:  1.5,
		},
		{
			name: "gas car heavy day",
			input: Inputs{
				Transport:     GasCar,
				DistanceKm:    10,
				Food:          MeatHeavy,
				HomeEnergyKWh: 5,
				WasteKg:       0.5,
				WaterLiters:   100,
			},
			want: 10*0.17 + 7.0 + 5*0.42 + 0.5*1.8 + 100*0.0003,
		},
		{
			name:  "bike distance is free",
			input: Inputs{Transport: Bike, DistanceKm: 42, Food: Vegetarian},
			want:  2.0,
		},
		{
			name:  "bus commute",
			input: Inputs{Transport: Bus, DistanceKm: 20, Food: LowMeat, HomeEnergyKWh: 6},
			want:  20*0.089 + 3.5 + 6*0.42,
		},
		{
			name:  "train with water",
			input: Inputs{Transport: Train, DistanceKm: 12, Food: LowMeat, HomeEnergyKWh: 8, WasteKg: 0.6, WaterLiters: 110},
			want:  12*0.035 + 3.5 + 8*0.42 + 0.6*1.8 + 110*0.0003,
		},
		{
			name:  "ev",
			input: Inputs{Transport: EV, DistanceKm: 30, Food: Vegan},
			want:  30*0.05 + 1.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Calculate(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, b.Total, 1e-9)
			assert.InDelta(t, b.Transport+b.Food+b.Energy+b.Waste+b.Water, b.Total, 1e-12)
		})
	}
}

func TestCalculateReferenceValue(t *testing.T) {
	score, err := Score(Inputs{
		Transport:     GasCar,
		DistanceKm:    10,
		Food:          MeatHeavy,
		HomeEnergyKWh: 5,
		WasteKg:       0.5,
		WaterLiters:   100,
	})
	require.NoError(t, err)
	assert.InDelta(t, 11.73, score, 1e-9)
	assert.Equal(t, 11.7, Round1(score))
}

func TestCalculateLinearInDistance(t *testing.T) {
	for _, mode := range TransportModes() {
		base, err := Score(Inputs{Transport: mode, DistanceKm: 0, Food: Vegan})
		require.NoError(t, err)
		for _, km := range []float64{0.5, 1, 7.25, 100, 1234.5} {
			got, err := Score(Inputs{Transport: mode, DistanceKm: km, Food: Vegan})
			require.NoError(t, err)
			assert.InDelta(t, base+km*mode.Factor(), got, 1e-9, "mode=%s km=%v", mode, km)
		}
	}
}

func TestCalculateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name  string
		input Inputs
		field string
	}{
		{"unknown transport", Inputs{Transport: "Rocket", Food: Vegan}, "transport.type"},
		{"empty transport", Inputs{Food: Vegan}, "transport.type"},
		{"unknown food", Inputs{Transport: Walk, Food: "Carnivore"}, "food"},
		{"negative distance", Inputs{Transport: Bus, DistanceKm: -1, Food: Vegan}, "transport.distanceKm"},
		{"negative energy", Inputs{Transport: Walk, Food: Vegan, HomeEnergyKWh: -0.1}, "homeEnergyKwh"},
		{"negative waste", Inputs{Transport: Walk, Food: Vegan, WasteKg: -3}, "wasteKg"},
		{"negative water", Inputs{Transport: Walk, Food: Vegan, WaterLiters: -10}, "waterLiters"},
		{"nan distance", Inputs{Transport: Walk, Food: Vegan, DistanceKm: math.NaN()}, "transport.distanceKm"},
		{"infinite water", Inputs{Transport: Walk, Food: Vegan, WaterLiters: math.Inf(1)}, "waterLiters"},
		{"huge waste", Inputs{Transport: Walk, Food: Vegan, WasteKg: 1e308}, "wasteKg"},
		{"distance over bound", Inputs{Transport: GasCar, DistanceKm: MaxDistanceKm + 1, Food: Vegan}, "transport.distanceKm"},
		{"energy over bound", Inputs{Transport: Walk, Food: Vegan, HomeEnergyKWh: MaxHomeEnergyKWh + 0.5}, "homeEnergyKwh"},
		{"water over bound", Inputs{Transport: Walk, Food: Vegan, WaterLiters: MaxWaterLiters * 2}, "waterLiters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Calculate(tt.input)
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestCalculateAcceptsBounds(t *testing.T) {
	b, err := Calculate(Inputs{
		Transport:     GasCar,
		DistanceKm:    MaxDistanceKm,
		Food:          MeatHeavy,
		HomeEnergyKWh: MaxHomeEnergyKWh,
		WasteKg:       MaxWasteKg,
		WaterLiters:   MaxWaterLiters,
	})
	require.NoError(t, err)
	assert.False(t, math.IsInf(b.Total, 0))
	assert.InDelta(t, 5000*0.17+7.0+1000*0.42+500*1.8+50000*0.0003, b.Total, 1e-9)
}

func TestBreakdownRounded(t *testing.T) {
	b, err := Calculate(Inputs{Transport: Train, DistanceKm: 12, Food: LowMeat, HomeEnergyKWh: 8, WasteKg: 0.6, WaterLiters: 110})
	require.NoError(t, err)

	r := b.Rounded()
	assert.Equal(t, 0.4, r.Transport)
	assert.Equal(t, 3.5, r.Food)
	assert.Equal(t, 3.4, r.Energy)
	assert.Equal(t, 1.1, r.Waste)
	assert.Equal(t, 0.0, r.Water)
	assert.Equal(t, 8.4, r.Total)
	// unrounded total is kept intact
	assert.InDelta(t, 8.393, b.Total, 1e-9)
}
