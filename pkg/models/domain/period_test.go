package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewDateRange(t *testing.T) {
	t.Run("truncates to day", func(t *testing.T) {
		r, err := NewDateRange(time.Date(2024, 1, 1, 13, 45, 0, 0, time.UTC), time.Date(2024, 1, 3, 1, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, day(2024, 1, 1), r.Start)
		assert.Equal(t, day(2024, 1, 3), r.End)
		assert.Equal(t, 3, r.Days())
	})

	t.Run("start after end", func(t *testing.T) {
		_, err := NewDateRange(day(2024, 2, 1), day(2024, 1, 1))
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("single day", func(t *testing.T) {
		r, err := NewDateRange(day(2024, 2, 1), day(2024, 2, 1))
		require.NoError(t, err)
		assert.Equal(t, 1, r.Days())
	})

	t.Run("parse", func(t *testing.T) {
		r, err := ParseDateRange("2024-01-01", "2024-01-31")
		require.NoError(t, err)
		assert.Equal(t, "2024-01-01..2024-01-31", r.String())

		_, err = ParseDateRange("2024-13-01", "2024-01-31")
		assert.ErrorIs(t, err, ErrInvalidRange)
	})
}

func TestDateRange_Previous(t *testing.T) {
	tests := []struct {
		name      string
		rng       DateRange
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"january", MustDateRange(day(2024, 1, 1), day(2024, 1, 31)), day(2023, 12, 1), day(2023, 12, 31)},
		{"single day", MustDateRange(day(2024, 3, 1), day(2024, 3, 1)), day(2024, 2, 29), day(2024, 2, 29)},
		{"week", MustDateRange(day(2024, 1, 8), day(2024, 1, 14)), day(2024, 1, 1), day(2024, 1, 7)},
		{"across leap day", MustDateRange(day(2024, 3, 1), day(2024, 3, 31)), day(2024, 1, 30), day(2024, 2, 29)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := tt.rng.Previous()
			assert.Equal(t, tt.wantStart, prev.Start)
			assert.Equal(t, tt.wantEnd, prev.End)
			assert.Equal(t, tt.rng.Days(), prev.Days())
			assert.Equal(t, tt.rng.Start.AddDate(0, 0, -1), prev.End)
		})
	}
}

func TestDateRange_Bounds(t *testing.T) {
	r := MustDateRange(day(2024, 1, 1), day(2024, 1, 31))
	from, to := r.Bounds()
	assert.Equal(t, day(2024, 1, 1), from)
	assert.Equal(t, day(2024, 2, 1), to)
	assert.True(t, r.Contains(time.Date(2024, 1, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(day(2024, 2, 1)))
}

func TestQuarterRange(t *testing.T) {
	r, err := QuarterRange(2024, 1)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 1, 1), r.Start)
	assert.Equal(t, day(2024, 3, 31), r.End)

	r, err = QuarterRange(2024, 4)
	require.NoError(t, err)
	assert.Equal(t, day(2024, 12, 31), r.End)

	_, err = QuarterRange(2024, 5)
	assert.ErrorIs(t, err, ErrInvalidRange)

	y, q := QuarterOf(day(2024, 8, 15))
	assert.Equal(t, 2024, y)
	assert.Equal(t, 3, q)
}

func TestGrowthPercent(t *testing.T) {
	assert.Equal(t, 25.0, GrowthPercent(10000, 8000))
	assert.Equal(t, 0.0, GrowthPercent(10000, 0))
	assert.Equal(t, 0.0, GrowthPercent(0, 0))
	assert.Equal(t, -50.0, GrowthPercent(50, 100))
	assert.Equal(t, 33.33, GrowthPercent(4, 3))
}

func TestCompared(t *testing.T) {
	mv := Compared(10000, 8000, FormatCurrency)
	assert.Equal(t, TrendUp, mv.Trend)
	require.NotNil(t, mv.ChangePercent)
	assert.Equal(t, 25.0, *mv.ChangePercent)

	assert.Equal(t, TrendNeutral, Compared(5, 5, FormatNumber).Trend)
	assert.Equal(t, TrendDown, Compared(4, 5, FormatNumber).Trend)
}
