package server

import (
	"net/http"

	"github.com/inboxgist/inboxgist/internal/google"
	"github.com/inboxgist/inboxgist/internal/instrumentation"
	"github.com/inboxgist/inboxgist/internal/logging"
)

const stateTokenBytes = 16

const homePage = `<html>
    <head>
        <title>inboxgist</title>
    </head>
    <body>
        <h1>inboxgist backend is running.</h1>
        <p>
            <a href="/login">
                <button>Login with Google</button>
            </a>
        </p>
    </body>
</html>
`

// handleHome serves a minimal landing page with a sign-in link.
func (s *Server) handleHome(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(homePage))
}

// handleLogin starts the authorization flow: it parks a state token in the
// session and redirects the browser to Google's consent page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.FromRequest(r)
	if !ok {
		created, err := s.sessions.Create()
		if err != nil {
			s.logger.Error("failed to create session", logging.Err(err))
			s.writeError(w, http.StatusInternalServerError, "Failed to create session")
			return
		}
		sess = created
	}

	state, err := randomHex(stateTokenBytes)
	if err != nil {
		s.logger.Error("failed to generate state token", logging.Err(err))
		s.writeError(w, http.StatusInternalServerError, "Failed to start login")
		return
	}
	s.sessions.SetOAuthState(sess.ID, state)
	s.sessions.IssueCookie(w, sess)

	http.Redirect(w, r, google.AuthCodeURL(s.oauthConf, state), http.StatusFound)
}

// handleAuthCallback finishes the authorization flow: state check, code
// exchange, userinfo fetch, then session promotion.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sess, ok := s.sessions.FromRequest(r)
	if !ok {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.writeError(w, http.StatusUnauthorized, "Google authentication failed")
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" || state != s.sessions.TakeOAuthState(sess.ID) {
		s.logger.Warn("authorization callback state mismatch")
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.writeError(w, http.StatusUnauthorized, "Google authentication failed")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.writeError(w, http.StatusUnauthorized, "Google authentication failed")
		return
	}

	tok, err := s.oauthConf.Exchange(ctx, code)
	if err != nil {
		s.logger.Warn("authorization code exchange failed", logging.Err(err))
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		s.writeError(w, http.StatusUnauthorized, "Google authentication failed")
		return
	}

	info, err := google.FetchUserinfoFrom(ctx, google.NewAuthorizedClient(ctx, s.oauthConf, tok), s.userinfoURL)
	if err != nil {
		s.logger.Warn("userinfo fetch failed", logging.Err(err))
		s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultFailure)
		http.Redirect(w, r, "/auth_error?reason=missing_userinfo", http.StatusFound)
		return
	}

	s.sessions.SetAuthenticated(sess.ID, info, tok, google.GrantedScopes(tok))
	s.metrics.RecordOAuthAuth(ctx, instrumentation.OAuthResultSuccess)
	s.logger.Info("user signed in", logging.UserHash(info.Email), logging.Domain(info.Email))

	http.Redirect(w, r, "/success", http.StatusFound)
}

// handleSuccess reports the signed-in identity, or bounces to /login.
func (s *Server) handleSuccess(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.FromRequest(r)
	if !ok || !sess.Authenticated() {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	user := sess.User
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": "Authentication successful!",
		"identity": map[string]any{
			"sub":            user.Sub,
			"email":          user.Email,
			"email_verified": user.EmailVerified,
		},
		"profile": map[string]any{
			"name":        user.Name,
			"given_name":  user.GivenName,
			"family_name": user.FamilyName,
			"locale":      user.Locale,
		},
	})
}

// handleLogout drops the session and its cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.sessions.FromRequest(r); ok {
		s.sessions.Delete(sess.ID)
	}
	s.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleAuthError explains a failed sign-in and points back at /login.
func (s *Server) handleAuthError(w http.ResponseWriter, r *http.Request) {
	messages := map[string]string{
		"missing_userinfo": "Google did not return user information.",
		"invalid_token":    "The access token was invalid or expired.",
		"unknown":          "An unknown error occurred.",
	}

	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "unknown"
	}
	detail, ok := messages[reason]
	if !ok {
		detail = "Unexpected error"
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"error":  "Authentication failed",
		"detail": detail,
		"next":   "/login",
	})
}
