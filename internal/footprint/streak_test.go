package footprint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextStreak(t *testing.T) {
	tests := []struct {
		name    string
		lastKey string
		streak  int
		today   string
		want    int
	}{
		{"first log ever", "", 0, "2024-01-05", 1},
		{"consecutive day", "2024-01-04", 3, "2024-01-05", 4},
		{"gap resets", "2024-01-01", 9, "2024-01-05", 1},
		{"same day unchanged", "2024-01-05", 4, "2024-01-05", 4},
		{"month boundary", "2024-01-31", 2, "2024-02-01", 3},
		{"leap day", "2024-02-28", 1, "2024-02-29", 2},
		{"year boundary", "2023-12-31", 10, "2024-01-01", 11},
		{"dst spring forward", "2024-03-09", 5, "2024-03-10", 6},
		{"backdated log resets", "2024-01-05", 3, "2024-01-04", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextStreak(tt.lastKey, tt.streak, tt.today))
		})
	}
}

func TestDayKey(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"2024-01-05", "2024-01-05", false},
		{"2024-01-05T23:30:00-05:00", "2024-01-05", false},
		{"2024-01-05T00:00:00.000Z", "2024-01-05", false},
		{"2024-13-05T00:00:00Z", "", true},
		{"2024-01-05garbage", "", true},
		{"2024-01-05T08:00", "", true},
		{"2024-01-05 08:00:00Z", "", true},
		{"yesterday", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := DayKey(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestPreviousDayKey(t *testing.T) {
	got, err := PreviousDayKey("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", got)

	_, err = PreviousDayKey("not-a-day")
	assert.Error(t, err)
}

func TestDayKeyOf(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	ts := time.Date(2024, 1, 5, 23, 30, 0, 0, loc)
	assert.Equal(t, "2024-01-05", DayKeyOf(ts))
	assert.Equal(t, "2024-01-06", DayKeyOf(ts.UTC()))
}

func TestLevelFor(t *testing.T) {
	level, progress := LevelFor(0)
	assert.Equal(t, 1, level)
	assert.Equal(t, 0.0, progress)

	level, progress = LevelFor(7)
	assert.Equal(t, 2, level)
	assert.InDelta(t, 40.0, progress, 1e-9)

	level, _ = LevelFor(25)
	assert.Equal(t, 6, level)
}
