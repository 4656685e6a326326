// Package supabase implements the persistence ports over the Supabase
// PostgREST API. It is the only process that talks to storage; services
// receive it through the port interfaces.
package supabase

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/finwise/movements-api-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to Supabase PostgREST.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		cfg:            cfg,
		logger:         logger,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
}

// doGet executes an authenticated GET against PostgREST.
func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: GET request failed",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: GET non-2xx",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase GET %s returned %d: %s", path, resp.StatusCode, string(body))
	}

	return body, nil
}

// getWithRetry wraps an idempotent read in the circuit breaker plus
// retry with backoff.
func (c *Client) getWithRetry(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			var getErr error
			body, getErr = c.doGet(ctx, path)
			return getErr
		})
	})
	return body, err
}

// doCount issues an exact-count HEAD request and parses the
// Content-Range header ("0-9/42" or "*/42").
func (c *Client) doCount(ctx context.Context, path string) (int64, error) {
	var total int64
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)
			req, reqErr := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
			if reqErr != nil {
				return reqErr
			}
			c.setHeaders(req)
			req.Header.Set("Prefer", "count=exact")

			resp, doErr := c.httpClient.Do(req)
			if doErr != nil {
				return doErr
			}
			defer resp.Body.Close()
			io.Copy(io.Discard, resp.Body)

			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				return fmt.Errorf("supabase HEAD %s returned %d", path, resp.StatusCode)
			}

			parsed, parseErr := parseContentRangeTotal(resp.Header.Get("Content-Range"))
			if parseErr != nil {
				return parseErr
			}
			total = parsed
			return nil
		})
	})
	return total, err
}

// Ping issues a minimal read against the movements table to verify
// the backend answers. Used by the health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doGet(ctx, "movements?select=id&limit=1")
	return err
}

func parseContentRangeTotal(h string) (int64, error) {
	idx := strings.LastIndex(h, "/")
	if idx < 0 || idx == len(h)-1 {
		return 0, fmt.Errorf("missing total in Content-Range %q", h)
	}
	return strconv.ParseInt(h[idx+1:], 10, 64)
}
