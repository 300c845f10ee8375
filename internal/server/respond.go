package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inboxgist/inboxgist/internal/gmail"
	"github.com/inboxgist/inboxgist/internal/google"
	"github.com/inboxgist/inboxgist/internal/logging"
)

// errorResponse is the JSON shape of every error payload.
type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", logging.Err(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	s.writeJSON(w, status, errorResponse{Detail: detail})
}

// writeGmailError maps pipeline errors onto HTTP statuses: an empty result
// where one message was required is 404, anything else from the upstream is
// a bad gateway.
func (s *Server) writeGmailError(w http.ResponseWriter, err error) {
	if errors.Is(err, gmail.ErrNoMessages) {
		s.writeError(w, http.StatusNotFound, "No messages matched the query")
		return
	}
	s.writeError(w, http.StatusBadGateway, err.Error())
}

// requireGmailAuth resolves the request's session and enforces that it holds
// a Google token with the gmail.readonly scope. On failure it writes the
// error response and returns false.
func (s *Server) requireGmailAuth(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.sessions.FromRequest(r)
	if !ok || sess.Token == nil {
		s.writeError(w, http.StatusUnauthorized, "Sign in required")
		return nil, false
	}
	if !google.HasGmailReadonly(sess.GrantedScopes) {
		s.writeError(w, http.StatusForbidden, "Missing gmail.readonly scope")
		return nil, false
	}
	return sess, true
}
