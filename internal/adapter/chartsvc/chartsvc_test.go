package chartsvc_test

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weatherforhumans/thermal-etl/internal/adapter/chartsvc"
	"github.com/weatherforhumans/thermal-etl/internal/config"
	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

func TestClient_Render(t *testing.T) {
	var got struct {
		Lats     []float64  `json:"lats"`
		Lons     []float64  `json:"lons"`
		Values   []*float64 `json:"values"`
		Date     string     `json:"date"`
		Extremum string     `json:"extremum"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte("png-bytes"))
	}))
	defer server.Close()

	client := chartsvc.NewClient(config.RendererConfig{URL: server.URL, Timeout: time.Second})

	grid := domain.Grid{Lats: []float64{10}, Lons: []float64{0, 15}}
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	image, err := client.Render(context.Background(), grid, []float64{31.5, math.NaN()}, day, domain.ExtremumHigh)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), image)

	assert.Equal(t, grid.Lats, got.Lats)
	assert.Equal(t, grid.Lons, got.Lons)
	assert.Equal(t, "2026-08-30", got.Date)
	assert.Equal(t, "highs", got.Extremum)

	// NaN crosses the wire as null.
	require.Len(t, got.Values, 2)
	require.NotNil(t, got.Values[0])
	assert.Equal(t, 31.5, *got.Values[0])
	assert.Nil(t, got.Values[1])
}

func TestClient_Render_ErrorStatusFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "renderer overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := chartsvc.NewClient(config.RendererConfig{URL: server.URL, Timeout: time.Second})
	day := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	_, err := client.Render(context.Background(), domain.Grid{Lats: []float64{1}, Lons: []float64{2}}, []float64{20}, day, domain.ExtremumLow)
	assert.ErrorContains(t, err, "503")
}
