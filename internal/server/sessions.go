package server

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/inboxgist/inboxgist/internal/google"
	"github.com/inboxgist/inboxgist/internal/instrumentation"
)

const (
	// SessionCookieName is the cookie carrying the signed session ID.
	SessionCookieName = "inboxgist_session"

	// DefaultSessionTTL matches the cookie max age.
	DefaultSessionTTL = 24 * time.Hour

	sessionIDBytes  = 32
	cleanupInterval = 10 * time.Minute
)

// Session is the server-side state of one signed-in browser. Fields are
// written through SessionManager methods; handlers read them after lookup.
type Session struct {
	ID            string
	User          *google.Userinfo
	Token         *oauth2.Token
	GrantedScopes string

	// OAuthState is the in-flight state parameter between /login and /auth.
	OAuthState string

	createdAt  time.Time
	lastAccess time.Time
}

// Authenticated reports whether the session completed the sign-in flow.
func (s *Session) Authenticated() bool {
	return s != nil && s.User != nil && s.Token != nil
}

// SessionManager keeps sessions in memory, keyed by random ID. Cookie values
// are HMAC-signed with the configured secret so a client cannot fabricate
// lookups into the store.
type SessionManager struct {
	sessions      map[string]*Session
	mu            sync.RWMutex
	secret        []byte
	ttl           time.Duration
	cleanupTicker *time.Ticker
	cleanupDone   chan bool
	logger        *slog.Logger
	metrics       *instrumentation.Metrics
}

// NewSessionManager creates a session manager with the default TTL and logger.
func NewSessionManager(secret string) *SessionManager {
	return NewSessionManagerWithLogger(secret, DefaultSessionTTL, slog.Default())
}

// NewSessionManagerWithTTL creates a session manager with a custom TTL.
func NewSessionManagerWithTTL(secret string, ttl time.Duration) *SessionManager {
	return NewSessionManagerWithLogger(secret, ttl, slog.Default())
}

// NewSessionManagerWithLogger creates a session manager with custom TTL and logger.
func NewSessionManagerWithLogger(secret string, ttl time.Duration, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &SessionManager{
		sessions:      make(map[string]*Session),
		secret:        []byte(secret),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		cleanupDone:   make(chan bool),
		logger:        logger,
	}

	go m.cleanupExpiredSessions()

	return m
}

// SetMetrics attaches instrumentation for the active-session gauge.
func (m *SessionManager) SetMetrics(metrics *instrumentation.Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics = metrics
}

// Create allocates a new empty session.
func (m *SessionManager) Create() (*Session, error) {
	id, err := randomHex(sessionIDBytes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sess := &Session{
		ID:         id,
		createdAt:  now,
		lastAccess: now,
	}

	m.mu.Lock()
	m.sessions[id] = sess
	metrics := m.metrics
	m.mu.Unlock()

	metrics.IncrementActiveSessions(context.Background())
	return sess, nil
}

// Get looks up a live session by ID and refreshes its last-access time.
// Sessions idle past the TTL are dropped on lookup rather than waiting for
// the next cleanup tick.
func (m *SessionManager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return nil, false
	}
	if time.Since(sess.lastAccess) > m.ttl {
		delete(m.sessions, id)
		metrics := m.metrics
		m.mu.Unlock()
		metrics.DecrementActiveSessions(context.Background())
		return nil, false
	}
	sess.lastAccess = time.Now()
	m.mu.Unlock()
	return sess, true
}

// SetOAuthState stores the state parameter for the session's in-flight
// authorization redirect.
func (m *SessionManager) SetOAuthState(id, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		sess.OAuthState = state
	}
}

// TakeOAuthState returns and clears the stored state parameter. The state is
// single-use so a replayed callback cannot match twice.
func (m *SessionManager) TakeOAuthState(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return ""
	}
	state := sess.OAuthState
	sess.OAuthState = ""
	return state
}

// SetAuthenticated stores the identity, token, and granted scopes after a
// successful code exchange.
func (m *SessionManager) SetAuthenticated(id string, user *google.Userinfo, token *oauth2.Token, scopes string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[id]; ok {
		sess.User = user
		sess.Token = token
		sess.GrantedScopes = scopes
	}
}

// Delete removes a session.
func (m *SessionManager) Delete(id string) {
	m.mu.Lock()
	_, existed := m.sessions[id]
	delete(m.sessions, id)
	metrics := m.metrics
	m.mu.Unlock()

	if existed {
		metrics.DecrementActiveSessions(context.Background())
	}
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// FromRequest resolves the session referenced by the request cookie. Missing,
// malformed, or tampered cookies resolve to no session.
func (m *SessionManager) FromRequest(r *http.Request) (*Session, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return nil, false
	}
	id, ok := m.verifyCookieValue(cookie.Value)
	if !ok {
		return nil, false
	}
	return m.Get(id)
}

// IssueCookie sets the signed session cookie on the response.
func (m *SessionManager) IssueCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    m.signCookieValue(sess.ID),
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie on the response.
func (m *SessionManager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// signCookieValue produces "<id>.<hmac>" so the store key round-trips
// tamper-evidently through the client.
func (m *SessionManager) signCookieValue(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	return id + "." + hex.EncodeToString(mac.Sum(nil))
}

func (m *SessionManager) verifyCookieValue(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok {
		return "", false
	}
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(sig), []byte(want)) {
		return "", false
	}
	return id, true
}

// randomHex returns n cryptographically random bytes, hex encoded. Used for
// session IDs and OAuth state tokens.
func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// cleanupExpiredSessions periodically removes sessions idle past the TTL.
func (m *SessionManager) cleanupExpiredSessions() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.mu.Lock()
			now := time.Now()
			expiredCount := 0
			for id, sess := range m.sessions {
				if now.Sub(sess.lastAccess) > m.ttl {
					delete(m.sessions, id)
					expiredCount++
				}
			}
			metrics := m.metrics
			m.mu.Unlock()
			if expiredCount > 0 {
				for i := 0; i < expiredCount; i++ {
					metrics.DecrementActiveSessions(context.Background())
				}
				m.logger.Info("Cleaned up expired sessions", "count", expiredCount)
			}
		case <-m.cleanupDone:
			return
		}
	}
}

// Stop stops the session cleanup goroutine.
func (m *SessionManager) Stop() {
	if m.cleanupTicker != nil {
		m.cleanupTicker.Stop()
	}
	if m.cleanupDone != nil {
		close(m.cleanupDone)
	}
}
