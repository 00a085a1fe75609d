package domain

import (
	"fmt"
	"time"
)

// Sample is one forecast triple for a single grid point and timestamp.
type Sample struct {
	Time time.Time `json:"t"`
	UTCI float64   `json:"utci"`
	WBGT float64   `json:"wbgt"`
}

// Dataset holds the full forecast state: one ordered sample sequence per
// grid point. Cells are indexed row-major per [Grid]. Within a cell,
// timestamps are strictly increasing.
type Dataset struct {
	Grid  Grid       `json:"grid"`
	Cells [][]Sample `json:"cells"`
}

// NewDataset allocates an empty dataset over the given grid.
func NewDataset(grid Grid) *Dataset {
	return &Dataset{
		Grid:  grid,
		Cells: make([][]Sample, grid.NumPoints()),
	}
}

// Empty reports whether the dataset holds no samples at all.
func (d *Dataset) Empty() bool {
	for _, cell := range d.Cells {
		if len(cell) > 0 {
			return false
		}
	}
	return true
}

// Start returns the earliest timestamp across all cells, or false when the
// dataset is empty. Published records use it as the encoding epoch.
func (d *Dataset) Start() (time.Time, bool) {
	var start time.Time
	found := false
	for _, cell := range d.Cells {
		if len(cell) == 0 {
			continue
		}
		if !found || cell[0].Time.Before(start) {
			start = cell[0].Time
			found = true
		}
	}
	return start, found
}

// ParamGrid is one derived parameter over the full grid and a shared time
// axis, as produced by a single staged computation. Values are point-major:
// value(point, hour) = Values[point*len(Times)+hour].
type ParamGrid struct {
	Grid   Grid
	Times  []time.Time
	Values []float64
}

// Value returns the parameter value at (point index, time index).
func (p *ParamGrid) Value(point, timeIdx int) float64 {
	return p.Values[point*len(p.Times)+timeIdx]
}

// CombineParams assembles a dataset from the two staged parameter grids.
// Both grids must share the same axes; their time order is preserved, so the
// resulting cells are strictly increasing as long as the source time axis is.
func CombineParams(utci, wbgt *ParamGrid) (*Dataset, error) {
	if !utci.Grid.Equal(wbgt.Grid) {
		return nil, fmt.Errorf("combine params: utci and wbgt grids differ")
	}
	if len(utci.Times) != len(wbgt.Times) {
		return nil, fmt.Errorf("combine params: time axes differ: %d vs %d", len(utci.Times), len(wbgt.Times))
	}
	for i := range utci.Times {
		if !utci.Times[i].Equal(wbgt.Times[i]) {
			return nil, fmt.Errorf("combine params: time axes diverge at index %d", i)
		}
	}

	ds := NewDataset(utci.Grid)
	for point := range ds.Cells {
		cell := make([]Sample, len(utci.Times))
		for h := range utci.Times {
			cell[h] = Sample{
				Time: utci.Times[h],
				UTCI: utci.Value(point, h),
				WBGT: wbgt.Value(point, h),
			}
		}
		ds.Cells[point] = cell
	}
	return ds, nil
}
