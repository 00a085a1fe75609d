// Package textalert delivers out-of-band SMS alerts for failures that need
// a human before the next scheduled run, such as an upstream layout change.
package textalert

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/weatherforhumans/thermal-etl/internal/config"
)

// Client implements pipeline.Alerter over the SMS gateway's form endpoint.
// Delivery is best-effort: failures are logged, never propagated, so a dead
// gateway cannot take the alerting caller down with it.
type Client struct {
	httpClient *http.Client
	url        string
	phone      string
	key        string
	sender     string
	logger     *slog.Logger
}

// NewClient creates an SMS alert client.
func NewClient(cfg config.AlertConfig, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{},
		url:        cfg.URL,
		phone:      cfg.Phone,
		key:        cfg.Key,
		sender:     cfg.Sender,
		logger:     logger,
	}
}

// Alert sends one message to the configured phone number.
func (c *Client) Alert(ctx context.Context, message string) {
	if c.phone == "" || c.key == "" {
		c.logger.Warn("alert skipped: sms gateway not configured", "message", message)
		return
	}

	form := url.Values{
		"phone":   {c.phone},
		"message": {message},
		"key":     {c.key},
		"sender":  {c.sender},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		c.logger.Error("alert request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("alert delivery failed", "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("alert delivery rejected", "status", resp.StatusCode)
		return
	}
	c.logger.Info("alert sent", "message", message)
}
