package nomads

import (
	"context"
	"fmt"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// Region bounds the ingested grid subset; longitudes use 0–360 east.
type Region struct {
	North, South, East, West float64
}

// FieldService fetches raw model field subsets as JSON from the gateway in
// front of the OPeNDAP server. It implements pipeline.FieldFetcher.
type FieldService struct {
	client *Client
	region Region
	// hours is the number of forecast hours requested per field. Hour 0 is
	// always excluded because its solar fluxes are missing upstream.
	hours int
}

// NewFieldService creates a FieldService for the configured region and
// forecast range.
func NewFieldService(client *Client, region Region, hours int) *FieldService {
	return &FieldService{client: client, region: region, hours: hours}
}

// fieldPayload is the gateway's subset response. Values are point-major:
// values[(latIdx*len(lons)+lonIdx)*len(times) + timeIdx].
type fieldPayload struct {
	Field  string      `json:"field"`
	Lats   []float64   `json:"lats"`
	Lons   []float64   `json:"lons"`
	Times  []time.Time `json:"times"`
	Values []float64   `json:"values"`
}

// FetchField loads one raw field for the source snapshot. A payload whose
// dimensions do not line up is a structural mismatch, not a transient
// failure.
func (s *FieldService) FetchField(ctx context.Context, source, field string) (*domain.ParamGrid, error) {
	endpoint := s.subsetURL(source, field)
	body, err := s.client.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var payload fieldPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &domain.StructuralMismatchError{
			Endpoint: endpoint,
			Detail:   fmt.Sprintf("invalid field payload: %v", err),
		}
	}
	if payload.Field != field {
		return nil, &domain.StructuralMismatchError{
			Endpoint: endpoint,
			Detail:   fmt.Sprintf("payload is for field %q, requested %q", payload.Field, field),
		}
	}

	grid := domain.Grid{Lats: payload.Lats, Lons: payload.Lons}
	want := grid.NumPoints() * len(payload.Times)
	if want == 0 || len(payload.Values) != want {
		return nil, &domain.StructuralMismatchError{
			Endpoint: endpoint,
			Detail: fmt.Sprintf("payload has %d values for %d points × %d times",
				len(payload.Values), grid.NumPoints(), len(payload.Times)),
		}
	}

	return &domain.ParamGrid{Grid: grid, Times: payload.Times, Values: payload.Values}, nil
}

// subsetURL builds the gateway subset request. time=1:N skips forecast
// hour 0.
func (s *FieldService) subsetURL(source, field string) string {
	q := url.Values{
		"var":   {field},
		"time":  {fmt.Sprintf("1:%d", s.hours)},
		"north": {fmt.Sprintf("%g", s.region.North)},
		"south": {fmt.Sprintf("%g", s.region.South)},
		"east":  {fmt.Sprintf("%g", s.region.East)},
		"west":  {fmt.Sprintf("%g", s.region.West)},
	}
	return source + ".json?" + q.Encode()
}
