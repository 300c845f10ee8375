package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"

	"github.com/inboxgist/inboxgist/internal/gmail"
	"github.com/inboxgist/inboxgist/internal/google"
	"github.com/inboxgist/inboxgist/internal/instrumentation"
	"github.com/inboxgist/inboxgist/internal/llm"
)

const (
	// DefaultAddr is the default listen address for the API server.
	DefaultAddr = ":8080"

	// DefaultBaseURL is the default external URL, used to build the OAuth
	// redirect. Must match a redirect URI registered with Google.
	DefaultBaseURL = "http://localhost:8080"
)

// Config holds everything the API server needs to run.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// BaseURL is the externally visible base URL. The OAuth callback is
	// registered as BaseURL + "/auth".
	BaseURL string

	// GoogleClientID and GoogleClientSecret identify the OAuth app.
	GoogleClientID     string
	GoogleClientSecret string

	// SessionSecret signs session cookies.
	SessionSecret string

	// SessionTTL overrides the default session lifetime when positive.
	SessionTTL time.Duration

	// GmailBaseURL overrides the Gmail API root. Used by tests.
	GmailBaseURL string

	// LLM is the summarization client. Nil disables /ai routes with a
	// configuration error rather than failing startup.
	LLM *llm.Client

	Logger      *slog.Logger
	Metrics     *instrumentation.Metrics
	AuditLogger *instrumentation.AuditLogger
}

// Server is the HTTP API: the OAuth sign-in flow, the Gmail read routes, and
// the LLM summarization route.
type Server struct {
	cfg       Config
	oauthConf *oauth2.Config
	sessions  *SessionManager
	llm       *llm.Client
	logger    *slog.Logger
	metrics   *instrumentation.Metrics
	audit     *instrumentation.AuditLogger
	health    *HealthChecker

	// userinfoURL is swapped out in tests.
	userinfoURL string

	httpServer *http.Server

	mu       sync.RWMutex
	shutdown bool
}

// NewServer creates the API server. Google OAuth credentials are required;
// everything else has a default.
func NewServer(cfg Config) (*Server, error) {
	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		return nil, fmt.Errorf("google OAuth client credentials are required")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if err := validateBaseURL(cfg.BaseURL); err != nil {
		return nil, err
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}

	sessions := NewSessionManagerWithLogger(cfg.SessionSecret, ttl, cfg.Logger)
	sessions.SetMetrics(cfg.Metrics)

	s := &Server{
		cfg:         cfg,
		oauthConf:   google.NewWebConfig(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.BaseURL+"/auth"),
		sessions:    sessions,
		llm:         cfg.LLM,
		logger:      cfg.Logger,
		metrics:     cfg.Metrics,
		audit:       cfg.AuditLogger,
		userinfoURL: google.UserinfoEndpoint,
	}
	s.health = NewHealthChecker(s)

	return s, nil
}

// Sessions exposes the session manager, mainly for tests and shutdown.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// Handler builds the route table. Exposed so tests can drive the server
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("GET /{$}", s.instrument("/", "", "", s.handleHome))
	mux.Handle("GET /login", s.instrument("/login", "", "", s.handleLogin))
	mux.Handle("GET /auth", s.instrument("/auth", "", "", s.handleAuthCallback))
	mux.Handle("GET /success", s.instrument("/success", "", "", s.handleSuccess))
	mux.Handle("GET /logout", s.instrument("/logout", "", "", s.handleLogout))
	mux.Handle("GET /auth_error", s.instrument("/auth_error", "", "", s.handleAuthError))

	mux.Handle("GET /gmail/messages", s.instrument("/gmail/messages",
		instrumentation.ServiceGmail, instrumentation.OperationList, s.handleListMessages))
	mux.Handle("GET /gmail/messages/full", s.instrument("/gmail/messages/full",
		instrumentation.ServiceGmail, instrumentation.OperationList, s.handleListMessagesFull))
	mux.Handle("GET /gmail/messages/{id}/full", s.instrument("/gmail/messages/{id}/full",
		instrumentation.ServiceGmail, instrumentation.OperationGet, s.handleGetMessageFull))
	mux.Handle("GET /gmail/messages/{id}/projection", s.instrument("/gmail/messages/{id}/projection",
		instrumentation.ServiceGmail, instrumentation.OperationGet, s.handleGetMessageProjection))
	mux.Handle("GET /gmail/history", s.instrument("/gmail/history",
		instrumentation.ServiceGmail, instrumentation.OperationHistory, s.handleListHistory))
	mux.Handle("GET /gmail/history/cursor", s.instrument("/gmail/history/cursor",
		instrumentation.ServiceGmail, instrumentation.OperationProfile, s.handleHistoryCursor))

	mux.Handle("GET /ai/summarize_email", s.instrument("/ai/summarize_email",
		instrumentation.ServiceLLM, instrumentation.OperationSummarize, s.handleSummarizeEmail))

	s.health.RegisterHealthEndpoints(mux)

	return otelhttp.NewHandler(mux, "inboxgist")
}

// Start runs the server until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting API server", "addr", s.cfg.Addr, "base_url", s.cfg.BaseURL)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server and the session cleanup goroutine.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	alreadyDown := s.shutdown
	s.shutdown = true
	s.mu.Unlock()

	if alreadyDown {
		return nil
	}

	s.health.SetReady(false)
	s.sessions.Stop()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// IsShutdown reports whether Shutdown has been called.
func (s *Server) IsShutdown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shutdown
}

// gmailClientFor builds a wire-level Gmail client speaking with the
// session's credentials. The oauth2 transport refreshes tokens as needed.
func (s *Server) gmailClientFor(ctx context.Context, sess *Session) *gmail.Client {
	hc := google.NewAuthorizedClient(ctx, s.oauthConf, sess.Token)
	opts := []gmail.Option{
		gmail.WithLogger(s.logger),
		gmail.WithMetrics(s.metrics),
	}
	if s.cfg.GmailBaseURL != "" {
		opts = append(opts, gmail.WithBaseURL(s.cfg.GmailBaseURL))
	}
	return gmail.NewClient(hc, opts...)
}

// validateBaseURL enforces HTTPS except for loopback hosts, which may use
// plain HTTP during development.
func validateBaseURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("base URL must use HTTPS outside localhost (got: %s)", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid base URL scheme: %q", u.Scheme)
	}
}
