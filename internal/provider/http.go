package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// maxResponseBody caps how much of a provider response is read.
const maxResponseBody = 4 << 20

// Options configures a provider client.
type Options struct {
	BaseURL string
	// Timeout bounds a single HTTP exchange. Zero leaves it to the transport.
	Timeout time.Duration
	// RatePerMinute spaces outgoing calls. Zero or less disables spacing.
	RatePerMinute int
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

type baseClient struct {
	name       string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

func newBaseClient(name string, opts Options) baseClient {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	burst := 1
	if opts.RatePerMinute > 0 {
		limit = rate.Limit(float64(opts.RatePerMinute) / 60.0)
		burst = max(1, opts.RatePerMinute/10)
	}
	return baseClient{
		name:       name,
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     logger,
	}
}

// do sends req once and returns the body of a 2xx response.
func (c *baseClient) do(ctx context.Context, req *http.Request) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit wait: %w", c.name, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%s read response: %w", c.name, err)
	}

	c.logger.Debug("Provider call finished",
		"provider", c.name,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &ProviderError{Provider: c.name, Status: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
