package domain

import "fmt"

// Coordinate is one (latitude, longitude) cell of the model grid.
// Longitude uses the GFS 0–360 east convention.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ID returns the coordinate's canonical document key, e.g. "31.25,261.50".
func (c Coordinate) ID() string {
	return fmt.Sprintf("%.2f,%.2f", c.Lat, c.Lon)
}

// Grid is a fixed regular latitude/longitude grid. It defines array
// indexing for every series in the dataset: points are row-major,
// index = latIdx*len(Lons) + lonIdx.
type Grid struct {
	Lats []float64 `json:"lats"`
	Lons []float64 `json:"lons"`
}

// NumPoints returns the total number of grid points.
func (g Grid) NumPoints() int {
	return len(g.Lats) * len(g.Lons)
}

// Point returns the coordinate at the given row-major index.
func (g Grid) Point(i int) Coordinate {
	return Coordinate{
		Lat: g.Lats[i/len(g.Lons)],
		Lon: g.Lons[i%len(g.Lons)],
	}
}

// Equal reports whether two grids have identical axes.
func (g Grid) Equal(other Grid) bool {
	if len(g.Lats) != len(other.Lats) || len(g.Lons) != len(other.Lons) {
		return false
	}
	for i := range g.Lats {
		if g.Lats[i] != other.Lats[i] {
			return false
		}
	}
	for i := range g.Lons {
		if g.Lons[i] != other.Lons[i] {
			return false
		}
	}
	return true
}

// LandMask is a static boolean grid marking points near land. It is loaded
// once at startup and used to filter records before publishing; points far
// from land are computed and merged but never written to the query store.
type LandMask struct {
	grid Grid
	near []bool
}

// NewLandMask builds a mask over the given grid. The near slice must have
// one entry per grid point in row-major order.
func NewLandMask(grid Grid, near []bool) (*LandMask, error) {
	if len(near) != grid.NumPoints() {
		return nil, fmt.Errorf("land mask has %d entries for %d grid points", len(near), grid.NumPoints())
	}
	return &LandMask{grid: grid, near: near}, nil
}

// NearLand reports whether the point at the given row-major index is near land.
func (m *LandMask) NearLand(i int) bool {
	return m.near[i]
}

// Grid returns the grid the mask was built for.
func (m *LandMask) Grid() Grid {
	return m.grid
}
