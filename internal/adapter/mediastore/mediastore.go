// Package mediastore uploads rendered chart images to the media service
// the site serves charts from. Uploads are keyed by day and extremum, so
// re-uploading overwrites the previous artifact for that pair.
package mediastore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/weatherforhumans/thermal-etl/internal/config"
	"github.com/weatherforhumans/thermal-etl/internal/domain"
)

// Client implements pipeline.ChartUploader against the media service's
// authenticated PUT endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	accessKey  string
}

// NewClient creates a media service client.
func NewClient(cfg config.MediaConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		accessKey:  cfg.AccessKey,
	}
}

// Upload PUTs one chart image. The object path encodes the solar-aligned
// day and the filename carries the extremum and source version so stale
// caches can be told apart from fresh ones.
func (c *Client) Upload(ctx context.Context, day time.Time, ex domain.Extremum, sourceVersion string, image []byte) error {
	date := day.Format(domain.ChartDateFormat)
	filename := fmt.Sprintf("%sZ_utci_%s_from_gfs_data_up_to_%s.png", date, ex, sourceVersion)
	url := fmt.Sprintf("%s/%sZ/%s", c.baseURL, date, filename)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(image))
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("AccessKey", c.accessKey)
	req.Header.Set("Content-Type", "image/png")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload chart %s: %w", filename, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("upload chart %s: unexpected status %d", filename, resp.StatusCode)
	}
	return nil
}
