package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/schoolroute/backend/internal/domain"
	"github.com/schoolroute/backend/internal/logging"
)

// maxProviderBody caps how much of a provider response is read
const maxProviderBody = 16 << 20

// RouteProvider calls a routing service and returns its raw JSON body
type RouteProvider interface {
	Name() string
	ComputeRoute(ctx context.Context, req domain.RouteRequest) ([]byte, error)
}

// ProviderConfig holds settings shared by every provider client
type ProviderConfig struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerMinute int
	Logger        *slog.Logger
	HTTPClient    *http.Client
}

// providerClient does the HTTP plumbing for a provider: local rate
// limiting, status classification and body reading
type providerClient struct {
	name       string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	maxBody    int64
}

func newProviderClient(name string, cfg ProviderConfig) *providerClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	burst := 1
	if cfg.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RatePerMinute))
		burst = cfg.RatePerMinute
	}

	return &providerClient{
		name:       name,
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
		logger:     cfg.Logger,
		maxBody:    maxProviderBody,
	}
}

// postJSON sends body as JSON and returns the response body on 2xx
func (c *providerClient) postJSON(ctx context.Context, url string, headers map[string]string, body any) ([]byte, error) {
	if !c.limiter.Allow() {
		return nil, &domain.RateLimitError{Provider: c.name, Local: true}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to marshal request: %w", c.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create request: %w", c.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &domain.ProviderRequestError{Provider: c.name, Err: err}
	}
	defer logging.SafeCloseWithLogging(resp.Body, c.logger, c.name+"_response_body")

	logging.LogOperation(c.logger, "provider_request",
		slog.String("provider", c.name),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &domain.RateLimitError{Provider: c.name}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &domain.ProviderRequestError{Provider: c.name, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, &domain.ProviderRequestError{Provider: c.name, Err: err}
	}
	if int64(len(data)) > c.maxBody {
		return nil, &domain.ProviderRequestError{
			Provider: c.name,
			Err:      fmt.Errorf("%w: more than %d bytes", domain.ErrResponseTooLarge, c.maxBody),
		}
	}
	return data, nil
}
