package domain_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

func TestHourOffset(t *testing.T) {
	tests := []struct {
		lon  float64
		want int
	}{
		{0, 0},
		{7.5, 1},
		{15, 1},
		{90, 6},
		{180, 12},
		{187.5, -11}, // just past the antimeridian wraps negative
		{270, -6},
		{352.5, 0},
		{359.75, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.HourOffset(tt.lon), "lon %g", tt.lon)
	}
}

// fillHours adds one sample per hour of [from, from+n) to the given cell.
func fillHours(cell []domain.Sample, from time.Time, n int, utci float64) []domain.Sample {
	for i := 0; i < n; i++ {
		cell = append(cell, domain.Sample{Time: from.Add(time.Duration(i) * time.Hour), UTCI: utci + float64(i)})
	}
	return cell
}

func TestCompleteDays_SinglePointAtGreenwich(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	ds := domain.NewDataset(domain.Grid{Lats: []float64{10}, Lons: []float64{0}})
	ds.Cells[0] = fillHours(nil, day, 24, 20)

	days := domain.CompleteDays(ds)
	require.Len(t, days, 1)
	assert.True(t, days[0].Equal(day))
}

func TestCompleteDays_MissingHourExcludesDay(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	ds := domain.NewDataset(domain.Grid{Lats: []float64{10}, Lons: []float64{0}})
	cell := fillHours(nil, day, 23, 20) // hour 23 missing
	ds.Cells[0] = fillHours(cell, day.Add(24*time.Hour), 1, 20)

	assert.Empty(t, domain.CompleteDays(ds))
}

func TestCompleteDays_SolarOffsetShiftsDayBoundary(t *testing.T) {
	// Lon 90 is offset +6: UTC hours 18:00 (prev day) through 17:00 cover one
	// local day. A point at lon 0 needs the plain UTC day.
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	ds := domain.NewDataset(domain.Grid{Lats: []float64{10}, Lons: []float64{0, 90}})

	// Enough UTC hours that both points cover the labeled day after shifting.
	from := day.Add(-6 * time.Hour)
	ds.Cells[0] = fillHours(nil, from, 30, 20)
	ds.Cells[1] = fillHours(nil, from, 30, 25)

	days := domain.CompleteDays(ds)
	require.Len(t, days, 1)
	assert.True(t, days[0].Equal(day))
}

func TestCompleteDays_SortedAscending(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	ds := domain.NewDataset(domain.Grid{Lats: []float64{10}, Lons: []float64{0}})
	ds.Cells[0] = fillHours(nil, day, 72, 20)

	days := domain.CompleteDays(ds)
	require.Len(t, days, 3)
	for i := 1; i < len(days); i++ {
		assert.True(t, days[i].After(days[i-1]))
	}
}

func TestCompleteDays_EmptyDataset(t *testing.T) {
	ds := domain.NewDataset(domain.Grid{Lats: []float64{10}, Lons: []float64{0}})
	assert.Empty(t, domain.CompleteDays(ds))
}

func TestDayExtremes(t *testing.T) {
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	ds := domain.NewDataset(domain.Grid{Lats: []float64{10}, Lons: []float64{0, 90}})
	ds.Cells[0] = fillHours(nil, day, 24, 10) // UTCI 10..33
	// Second point has no samples.

	highs := domain.DayExtremes(ds, day, domain.ExtremumHigh)
	require.Len(t, highs, 2)
	assert.Equal(t, 33.0, highs[0])
	assert.True(t, math.IsNaN(highs[1]))

	lows := domain.DayExtremes(ds, day, domain.ExtremumLow)
	assert.Equal(t, 10.0, lows[0])
}

func TestDayExtremes_UsesSolarDayWindow(t *testing.T) {
	// Offset +6: local day 2026-08-30 is UTC 08-29T18:00 through 08-30T17:00.
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	ds := domain.NewDataset(domain.Grid{Lats: []float64{10}, Lons: []float64{90}})
	ds.Cells[0] = []domain.Sample{
		{Time: day.Add(-7 * time.Hour), UTCI: 99}, // local 17:00 previous day, outside
		{Time: day.Add(-6 * time.Hour), UTCI: 12}, // local midnight, inside
		{Time: day.Add(17 * time.Hour), UTCI: 31}, // local 23:00, inside
		{Time: day.Add(18 * time.Hour), UTCI: 99}, // local midnight next day, outside
	}

	highs := domain.DayExtremes(ds, day, domain.ExtremumHigh)
	assert.Equal(t, 31.0, highs[0])
	lows := domain.DayExtremes(ds, day, domain.ExtremumLow)
	assert.Equal(t, 12.0, lows[0])
}
