package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

func TestGrid_PointIndexingIsRowMajor(t *testing.T) {
	g := domain.Grid{
		Lats: []float64{30.0, 30.25},
		Lons: []float64{260.0, 260.25, 260.5},
	}
	require.Equal(t, 6, g.NumPoints())

	assert.Equal(t, domain.Coordinate{Lat: 30.0, Lon: 260.0}, g.Point(0))
	assert.Equal(t, domain.Coordinate{Lat: 30.0, Lon: 260.5}, g.Point(2))
	assert.Equal(t, domain.Coordinate{Lat: 30.25, Lon: 260.0}, g.Point(3))
	assert.Equal(t, domain.Coordinate{Lat: 30.25, Lon: 260.5}, g.Point(5))
}

func TestCoordinate_ID(t *testing.T) {
	assert.Equal(t, "31.25,261.50", domain.Coordinate{Lat: 31.25, Lon: 261.5}.ID())
	assert.Equal(t, "-5.00,0.00", domain.Coordinate{Lat: -5, Lon: 0}.ID())
}

func TestGrid_Equal(t *testing.T) {
	a := domain.Grid{Lats: []float64{1, 2}, Lons: []float64{3}}
	b := domain.Grid{Lats: []float64{1, 2}, Lons: []float64{3}}
	assert.True(t, a.Equal(b))

	c := domain.Grid{Lats: []float64{1, 2}, Lons: []float64{4}}
	assert.False(t, a.Equal(c))

	d := domain.Grid{Lats: []float64{1}, Lons: []float64{3}}
	assert.False(t, a.Equal(d))
}

func TestNewLandMask_LengthMismatch(t *testing.T) {
	g := domain.Grid{Lats: []float64{1, 2}, Lons: []float64{3}}
	_, err := domain.NewLandMask(g, []bool{true})
	assert.Error(t, err)

	mask, err := domain.NewLandMask(g, []bool{true, false})
	require.NoError(t, err)
	assert.True(t, mask.NearLand(0))
	assert.False(t, mask.NearLand(1))
}

func TestDataset_Start(t *testing.T) {
	g := domain.Grid{Lats: []float64{1}, Lons: []float64{3, 4}}
	ds := domain.NewDataset(g)

	_, ok := ds.Start()
	assert.False(t, ok)
	assert.True(t, ds.Empty())

	early := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	ds.Cells[0] = []domain.Sample{{Time: early.Add(2 * time.Hour)}}
	ds.Cells[1] = []domain.Sample{{Time: early}}

	start, ok := ds.Start()
	require.True(t, ok)
	assert.True(t, start.Equal(early))
	assert.False(t, ds.Empty())
}

func TestCombineParams(t *testing.T) {
	g := domain.Grid{Lats: []float64{10}, Lons: []float64{20, 30}}
	times := []time.Time{
		time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC),
	}
	utci := &domain.ParamGrid{Grid: g, Times: times, Values: []float64{1, 2, 3, 4}}
	wbgt := &domain.ParamGrid{Grid: g, Times: times, Values: []float64{5, 6, 7, 8}}

	ds, err := domain.CombineParams(utci, wbgt)
	require.NoError(t, err)
	require.Len(t, ds.Cells, 2)

	assert.Equal(t, 1.0, ds.Cells[0][0].UTCI)
	assert.Equal(t, 5.0, ds.Cells[0][0].WBGT)
	assert.Equal(t, 4.0, ds.Cells[1][1].UTCI)
	assert.Equal(t, 8.0, ds.Cells[1][1].WBGT)
	assert.True(t, ds.Cells[0][1].Time.Equal(times[1]))
}

func TestCombineParams_MismatchedAxes(t *testing.T) {
	g := domain.Grid{Lats: []float64{10}, Lons: []float64{20}}
	times := []time.Time{time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC)}
	utci := &domain.ParamGrid{Grid: g, Times: times, Values: []float64{1}}

	other := &domain.ParamGrid{
		Grid:   domain.Grid{Lats: []float64{10, 11}, Lons: []float64{20}},
		Times:  times,
		Values: []float64{1, 2},
	}
	_, err := domain.CombineParams(utci, other)
	assert.Error(t, err)

	shifted := &domain.ParamGrid{
		Grid:   g,
		Times:  []time.Time{times[0].Add(time.Hour)},
		Values: []float64{1},
	}
	_, err = domain.CombineParams(utci, shifted)
	assert.Error(t, err)
}
