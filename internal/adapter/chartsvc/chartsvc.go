// Package chartsvc renders day-extremum aggregations into map images via
// the internal chart rendering service.
package chartsvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/weatherforhumans/thermal-etl/internal/config"
	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// Client implements pipeline.ChartRenderer over the service's single POST
// endpoint.
type Client struct {
	httpClient *http.Client
	url        string
}

// NewClient creates a chart service client.
func NewClient(cfg config.RendererConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		url:        cfg.URL,
	}
}

// renderRequest is the service's input: the grid axes, one value per grid
// point in row-major order (null for points without data), and what the
// values represent.
type renderRequest struct {
	Lats     []float64  `json:"lats"`
	Lons     []float64  `json:"lons"`
	Values   []*float64 `json:"values"`
	Date     string     `json:"date"`
	Extremum string     `json:"extremum"`
}

// Render posts one aggregation and returns the PNG bytes. Points without a
// complete day of data arrive as NaN and go over the wire as null.
func (c *Client) Render(ctx context.Context, g domain.Grid, values []float64, day time.Time, ex domain.Extremum) ([]byte, error) {
	wire := make([]*float64, len(values))
	for i := range values {
		if !math.IsNaN(values[i]) {
			wire[i] = &values[i]
		}
	}
	body, err := json.Marshal(renderRequest{
		Lats:     g.Lats,
		Lons:     g.Lons,
		Values:   wire,
		Date:     day.Format(domain.ChartDateFormat),
		Extremum: string(ex),
	})
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("render chart: unexpected status %d", resp.StatusCode)
	}
	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read rendered chart: %w", err)
	}
	return image, nil
}
