package footprint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPoints(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{0, 144},
		{1.5, 126},
		{2.0, 120},
		{11.73, 10},
		{11.2, 10},
		{10, 24},
		{50, 10},
		{-30, 500},
		{-1000, 500},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Points(tt.score), "score=%v", tt.score)
	}
}

func TestPointsNaN(t *testing.T) {
	assert.Equal(t, MinPoints, Points(math.NaN()))
}

func TestPointsMonotonicAndBounded(t *testing.T) {
	prev := Points(-100)
	for s := -100.0; s <= 100; s += 0.05 {
		p := Points(s)
		assert.GreaterOrEqual(t, p, MinPoints)
		assert.LessOrEqual(t, p, MaxPoints)
		assert.LessOrEqual(t, p, prev, "points went up at score %v", s)
		prev = p
	}
}
