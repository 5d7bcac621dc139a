package footprint

import "math"

const (
	MinPoints = 10
	MaxPoints = 500

	pointsPivotKg = 12.0
	pointsPerKg   = 12.0
)

// Points awards round((12 - score) * 12) clamped to [10, 500]. Every score
// above roughly 11.2 kg lands on the floor; that saturation is intended.
func Points(carbonScore float64) int {
	if math.IsNaN(carbonScore) {
		return MinPoints
	}
	raw := math.Round((pointsPivotKg - carbonScore) * pointsPerKg)
	if raw < MinPoints {
		return MinPoints
	}
	if raw > MaxPoints {
		return MaxPoints
	}
	return int(raw)
}
