// Package nomads talks to the upstream model data service: discovering the
// latest run from the dataset directory listing and fetching raw field
// subsets through the JSON gateway in front of the OPeNDAP server.
package nomads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/weatherforhumans/thermal-etl/internal/domain"
	"github.com/weatherforhumans/thermal-etl/internal/fetch"
)

// Client issues rate-limited, circuit-broken HTTP requests against the
// upstream servers. Transient failures (network errors, 5xx, open breaker)
// are marked for the retrying fetcher; 4xx responses are permanent.
type Client struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[[]byte]
	limiter    *rate.Limiter
	retry      fetch.Config
	logger     *slog.Logger
}

// NewClient creates a Client. rateLimit caps requests per second; the
// breaker opens after a run of consecutive failures so a dead upstream is
// not hammered through every retry loop.
func NewClient(timeout time.Duration, rateLimit float64, retry fetch.Config, logger *slog.Logger) *Client {
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "nomads",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		breaker:    breaker,
		limiter:    rate.NewLimiter(rate.Limit(rateLimit), 1),
		retry:      retry,
		logger:     logger,
	}
}

// get fetches a URL with rate limiting, breaker protection, and bounded
// retries, returning the response body.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return fetch.DoValue(ctx, c.retry, c.logger, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doGet(ctx, url)
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return nil, domain.Transient(err)
			}
			return nil, err
		}
		return body, nil
	})
}

func (c *Client) doGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("get %s: %w", url, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, domain.Transient(fmt.Errorf("get %s: status %d", url, resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("read %s: %w", url, err))
	}
	return body, nil
}
