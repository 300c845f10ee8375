package gmail

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestClient builds a client against srv with backoff sleeps disabled.
func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewClient(srv.Client(), WithBaseURL(srv.URL))
	c.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return c, srv
}

func TestNewClientDefaults(t *testing.T) {
	c := NewClient(nil)
	assert.Equal(t, DefaultBaseURL, c.baseURL)
	assert.Equal(t, DefaultMaxRetries, c.maxRetries)
	assert.Equal(t, requestTimeout, c.hc.Timeout)
}

func TestNewClientDoesNotMutateCaller(t *testing.T) {
	hc := &http.Client{}
	c := NewClient(hc)
	assert.Equal(t, requestTimeout, c.hc.Timeout)
	assert.Zero(t, hc.Timeout, "caller's client should be left alone")
}

func TestNewClientKeepsCallerTimeout(t *testing.T) {
	hc := &http.Client{Timeout: 5 * time.Second}
	c := NewClient(hc)
	assert.Equal(t, 5*time.Second, c.hc.Timeout)
}

func TestGetRetriesTransientStatuses(t *testing.T) {
	tests := []struct {
		name         string
		statuses     []int
		wantRequests int32
		wantStatus   int
	}{
		{
			name:         "recovers after two 503s",
			statuses:     []int{503, 503, 200},
			wantRequests: 3,
			wantStatus:   200,
		},
		{
			name:         "recovers after rate limit",
			statuses:     []int{429, 200},
			wantRequests: 2,
			wantStatus:   200,
		},
		{
			name:         "success on first attempt",
			statuses:     []int{200},
			wantRequests: 1,
			wantStatus:   200,
		},
		{
			name:         "not found is not retried",
			statuses:     []int{404},
			wantRequests: 1,
			wantStatus:   404,
		},
		{
			name:         "unauthorized is not retried",
			statuses:     []int{401},
			wantRequests: 1,
			wantStatus:   401,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var requests int32
			c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&requests, 1)
				w.WriteHeader(tt.statuses[n-1])
			}))

			resp, err := c.get(context.Background(), srv.URL+"/users/me/profile", nil)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantRequests, atomic.LoadInt32(&requests))
		})
	}
}

func TestGetExhaustsRetryBudget(t *testing.T) {
	var requests int32
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "backend unavailable", http.StatusServiceUnavailable)
	}))

	_, err := c.get(context.Background(), srv.URL+"/users/me/messages", nil)
	require.Error(t, err)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.True(t, remoteErr.Transient)
	assert.Equal(t, http.StatusServiceUnavailable, remoteErr.StatusCode)
	assert.Contains(t, remoteErr.Body, "backend unavailable")

	// Initial attempt plus DefaultMaxRetries retries.
	assert.Equal(t, int32(DefaultMaxRetries+1), atomic.LoadInt32(&requests))
}

func TestGetDoesNotSleepAfterFinalAttempt(t *testing.T) {
	var sleeps int
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	c.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		return nil
	}

	_, err := c.get(context.Background(), srv.URL+"/users/me/messages", nil)
	require.Error(t, err)
	assert.Equal(t, DefaultMaxRetries, sleeps)
}

func TestGetAbortsWhenContextCancelledDuringBackoff(t *testing.T) {
	var requests int32
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	c.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}

	_, err := c.get(context.Background(), srv.URL+"/users/me/messages", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestGetSendsQueryParams(t *testing.T) {
	var gotQuery, gotFormat string
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		w.WriteHeader(http.StatusOK)
	}))

	resp, err := c.get(context.Background(), srv.URL+"/users/me/messages", map[string]string{
		"q":      "in:inbox is:unread",
		"format": "full",
	})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "in:inbox is:unread", gotQuery)
	assert.Equal(t, "full", gotFormat)
}

func TestGetJSON(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"emailAddress":"jane@example.com"}`))
	}))

	var out struct {
		EmailAddress string `json:"emailAddress"`
	}
	err := c.getJSON(context.Background(), srv.URL+"/users/me/profile", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", out.EmailAddress)
}

func TestGetJSONReturnsRemoteErrorOnFailureStatus(t *testing.T) {
	c, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "message not found", http.StatusNotFound)
	}))

	var out map[string]any
	err := c.getJSON(context.Background(), srv.URL+"/users/me/messages/nope", nil, &out)

	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
	assert.False(t, remoteErr.Transient)
	assert.Contains(t, remoteErr.Body, "message not found")
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		name    string
		attempt int
		jitter  float64
		want    time.Duration
	}{
		{"first attempt no jitter", 0, 0, 1 * time.Second},
		{"first attempt with jitter", 0, 0.5, 1500 * time.Millisecond},
		{"third attempt", 2, 0, 4 * time.Second},
		{"fifth attempt", 4, 0.25, 16*time.Second + 250*time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := backoffDelay(tt.attempt, func() float64 { return tt.jitter })
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSleepContext(t *testing.T) {
	err := sleepContext(context.Background(), time.Millisecond)
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = sleepContext(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteErrorMessage(t *testing.T) {
	err := &RemoteError{StatusCode: 503, URL: "https://example.com/x", Transient: true}
	assert.Contains(t, err.Error(), "transient")
	assert.Contains(t, err.Error(), "503")

	err = &RemoteError{StatusCode: 404, URL: "https://example.com/x", Body: "gone"}
	assert.Contains(t, err.Error(), "permanent")
	assert.Contains(t, err.Error(), "gone")
}

func TestErrStopIsNotWrappedAsFailure(t *testing.T) {
	assert.True(t, errors.Is(ErrStop, ErrStop))
	assert.NotErrorIs(t, ErrNoMessages, ErrStop)
}
