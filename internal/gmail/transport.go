package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/inboxgist/inboxgist/internal/instrumentation"
)

const (
	// DefaultBaseURL is the Gmail REST v1 endpoint.
	DefaultBaseURL = "https://gmail.googleapis.com/gmail/v1"

	// DefaultMaxRetries bounds retries after the initial request, so a
	// single GET issues at most DefaultMaxRetries+1 requests.
	DefaultMaxRetries = 5

	// DefaultPageSize is the list page size when the caller passes none.
	DefaultPageSize = 500

	// DefaultMaxTextChars caps the decoded text kept per part when
	// stripping attachments.
	DefaultMaxTextChars = 50000

	// requestTimeout bounds each individual HTTP attempt.
	requestTimeout = 30 * time.Second
)

// transientStatuses are the HTTP statuses worth retrying. Everything else,
// success or failure, is returned to the caller on the first response.
var transientStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
}

// Client talks to the Gmail REST API at the wire level. The HTTP client is
// expected to carry OAuth credentials (see google.GetHTTPClient); Client
// itself only handles transport concerns: retries, pagination, decoding.
type Client struct {
	hc         *http.Client
	baseURL    string
	maxRetries int
	logger     *slog.Logger
	metrics    *instrumentation.Metrics

	// sleep and jitter are swapped out in tests so backoff runs instantly.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() float64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API root. Used by tests and
// proxies.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithMaxRetries overrides the retry budget.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics attaches instrumentation. A nil Metrics is safe.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient builds a wire-level Gmail client around hc. The client is
// copied so the per-attempt timeout never leaks into the caller's client.
func NewClient(hc *http.Client, opts ...Option) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	hcCopy := *hc
	if hcCopy.Timeout == 0 {
		hcCopy.Timeout = requestTimeout
	}
	c := &Client{
		hc:         &hcCopy,
		baseURL:    DefaultBaseURL,
		maxRetries: DefaultMaxRetries,
		logger:     slog.Default(),
		sleep:      sleepContext,
		jitter:     rand.Float64,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// url joins a path like "/users/me/messages" onto the API root.
func (c *Client) url(path string) string {
	return c.baseURL + path
}

// get performs a GET with query params, retrying transient statuses with
// exponential backoff. Any response with a non-transient status is returned
// to the caller regardless of its code; checking it is the caller's job.
// When the retry budget is exhausted the final response is consumed and a
// *RemoteError with Transient=true is returned instead.
func (c *Client) get(ctx context.Context, url string, params map[string]string) (*http.Response, error) {
	var resp *http.Response
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
		}
		if len(params) > 0 {
			q := req.URL.Query()
			for k, v := range params {
				q.Set(k, v)
			}
			req.URL.RawQuery = q.Encode()
		}

		start := time.Now()
		resp, err = c.hc.Do(req)
		if err != nil {
			return nil, fmt.Errorf("gmail request failed: %w", err)
		}
		c.metrics.RecordGmailRequest(ctx, resp.StatusCode, time.Since(start).Seconds())

		if !transientStatuses[resp.StatusCode] {
			return resp, nil
		}

		if attempt < c.maxRetries {
			drainBody(resp)
			delay := backoffDelay(attempt, c.jitter)
			c.logger.Warn("transient gmail response, backing off",
				slog.Int("status", resp.StatusCode),
				slog.Int("attempt", attempt+1),
				slog.Duration("delay", delay))
			c.metrics.RecordGmailRetry(ctx, resp.StatusCode)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, newRemoteError(resp, url)
}

// getJSON performs get and decodes a 2xx response into v. Non-2xx
// responses become a *RemoteError.
func (c *Client) getJSON(ctx context.Context, url string, params map[string]string, v any) error {
	resp, err := c.get(ctx, url, params)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newRemoteError(resp, url)
	}
	defer drainBody(resp)
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	return nil
}

// backoffDelay is 2^attempt seconds plus up to one second of jitter.
func backoffDelay(attempt int, jitter func() float64) time.Duration {
	secs := math.Pow(2, float64(attempt)) + jitter()
	return time.Duration(secs * float64(time.Second))
}

// sleepContext sleeps for d or until ctx is cancelled.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drainBody consumes and closes a response body so the underlying
// connection can be reused.
func drainBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
