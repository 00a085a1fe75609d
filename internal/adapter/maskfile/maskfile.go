// Package maskfile loads the near-land mask shipped with the job image.
// The mask is precomputed offline; points far from any land never get a
// published record, which keeps the queryable collection at roughly a
// third of the full grid.
package maskfile

import (
	"fmt"
	"os"

	json "github.com/goccy/go-json"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

type maskFile struct {
	Lats []float64 `json:"lats"`
	Lons []float64 `json:"lons"`
	Near []bool    `json:"near"`
}

// Load reads the mask JSON from path and validates it against its own grid.
func Load(path string) (*domain.LandMask, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read land mask %s: %w", path, err)
	}
	var file maskFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode land mask %s: %w", path, err)
	}
	mask, err := domain.NewLandMask(domain.Grid{Lats: file.Lats, Lons: file.Lons}, file.Near)
	if err != nil {
		return nil, fmt.Errorf("land mask %s: %w", path, err)
	}
	return mask, nil
}
