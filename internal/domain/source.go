package domain

import (
	"fmt"
	"regexp"
	"time"
)

// sourceVersionRe extracts the run date and cycle from a source snapshot
// endpoint, e.g. ".../gfs20260831/gfs_0p25_1hr_06z" → 2026, 08, 31, 06z.
var sourceVersionRe = regexp.MustCompile(`/gfs(\d{4})(\d{2})(\d{2}).*(\d{2}z)$`)

// SourceVersion renders a source endpoint as the short version label used in
// chart filenames and status chart references, e.g. "2026-08-31_06z". The
// endpoint itself is returned when it does not follow the run naming scheme.
func SourceVersion(endpoint string) string {
	m := sourceVersionRe.FindStringSubmatch(endpoint)
	if m == nil {
		return endpoint
	}
	return fmt.Sprintf("%s-%s-%s_%s", m[1], m[2], m[3], m[4])
}

// PointForecast is one grid point's published record: the encoded series
// plus the epoch its offsets are relative to.
type PointForecast struct {
	Coordinate    Coordinate
	ForecastStart time.Time
	Encoded       []int32
}

// RefreshEvent announces a completed dataset refresh to downstream consumers.
type RefreshEvent struct {
	SourceEndpoint string    `json:"source_endpoint"`
	SourceVersion  string    `json:"source_version"`
	RecordCount    int       `json:"record_count"`
	CompletedAt    time.Time `json:"completed_at"`
}
