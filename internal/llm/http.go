package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/testforge/smartfill/internal/domain"
)

// maxErrorBody bounds the response body copied into provider errors.
const maxErrorBody = 2048

// httpClient is the transport shared by the provider clients.
type httpClient struct {
	provider    domain.ModelProvider
	client      *http.Client
	rateLimiter *rate.Limiter
}

func newHTTPClient(provider domain.ModelProvider, cfg Config) *httpClient {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	// tokens per second = RPM / 60
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 1)

	return &httpClient{
		provider:    provider,
		client:      hc,
		rateLimiter: limiter,
	}
}

// postJSON sends body and returns the raw 2xx response.
func (c *httpClient) postJSON(ctx context.Context, url string, headers map[string]string, body any) (json.RawMessage, time.Duration, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, 0, c.wrapTransportError(fmt.Errorf("rate limit: %w", err))
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", redactURL(err))
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, time.Since(start), c.wrapTransportError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	latency := time.Since(start)
	if err != nil {
		return nil, latency, c.wrapTransportError(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, latency, domain.ErrProvider(c.provider, resp.StatusCode, http.StatusText(resp.StatusCode),
			domain.Excerpt(string(respBody), maxErrorBody))
	}

	return json.RawMessage(respBody), latency, nil
}

func (c *httpClient) wrapTransportError(err error) error {
	err = redactURL(err)
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrTimeout(string(c.provider) + " request").WithCause(err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.ErrTimeout(string(c.provider) + " request").WithCause(err)
	}
	return domain.ErrProviderCall(c.provider, err)
}

// redactURL drops the query string from a *url.Error. Gemini carries the API
// key in the query, and transport errors end up in logs.
func redactURL(err error) error {
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		return err
	}
	u := urlErr.URL
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return &url.Error{Op: urlErr.Op, URL: u, Err: urlErr.Err}
}
