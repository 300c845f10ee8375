package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/inboxgist/inboxgist/internal/gmail"
)

// defaultListLimit bounds list responses when the caller passes no limit.
const defaultListLimit = 10

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// queryBool parses an optional boolean query parameter.
func queryBool(r *http.Request, name string, def bool) (bool, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

// handleListMessages streams normalized messages matching the query.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireGmailAuth(w, r)
	if !ok {
		return
	}

	limit, ok := queryInt(r, "limit", defaultListLimit)
	if !ok || limit < 1 {
		s.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	client := s.gmailClientFor(r.Context(), sess)
	messages := []*gmail.NormalizedMessage{}
	err := client.ForeachNormalizedMessage(r.Context(),
		r.URL.Query().Get("q"), splitCSV(r.URL.Query().Get("label_ids")), limit,
		func(m *gmail.NormalizedMessage) error {
			messages = append(messages, m)
			return nil
		})
	if err != nil {
		s.writeGmailError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleListMessagesFull streams stripped full messages matching the query.
func (s *Server) handleListMessagesFull(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireGmailAuth(w, r)
	if !ok {
		return
	}

	limit, ok := queryInt(r, "limit", defaultListLimit)
	if !ok || limit < 1 {
		s.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	maxTextChars, ok := queryInt(r, "max_text_chars", gmail.DefaultMaxTextChars)
	if !ok || maxTextChars < 1 {
		s.writeError(w, http.StatusBadRequest, "Invalid max_text_chars")
		return
	}

	client := s.gmailClientFor(r.Context(), sess)
	messages := []*gmail.StrippedMessage{}
	err := client.ForeachMessageFullNoBlobs(r.Context(),
		r.URL.Query().Get("q"), splitCSV(r.URL.Query().Get("label_ids")), limit, maxTextChars,
		func(m *gmail.StrippedMessage) error {
			messages = append(messages, m)
			return nil
		})
	if err != nil {
		s.writeGmailError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleGetMessageFull returns one stripped full message.
func (s *Server) handleGetMessageFull(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireGmailAuth(w, r)
	if !ok {
		return
	}

	maxTextChars, ok := queryInt(r, "max_text_chars", gmail.DefaultMaxTextChars)
	if !ok || maxTextChars < 1 {
		s.writeError(w, http.StatusBadRequest, "Invalid max_text_chars")
		return
	}

	client := s.gmailClientFor(r.Context(), sess)
	msg, err := client.FetchMessageFullNoBlobs(r.Context(), r.PathValue("id"), maxTextChars)
	if err != nil {
		s.writeGmailError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, msg)
}

// handleGetMessageProjection returns the compact single-body record for one
// message.
func (s *Server) handleGetMessageProjection(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireGmailAuth(w, r)
	if !ok {
		return
	}

	preferPlain, ok := queryBool(r, "prefer_plain", true)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Invalid prefer_plain")
		return
	}

	client := s.gmailClientFor(r.Context(), sess)
	proj, err := client.FetchLlmProjection(r.Context(), r.PathValue("id"), preferPlain)
	if err != nil {
		s.writeGmailError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, proj)
}

// handleListHistory returns mailbox history records since a cursor.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireGmailAuth(w, r)
	if !ok {
		return
	}

	startHistoryID := r.URL.Query().Get("start_history_id")
	if startHistoryID == "" {
		s.writeError(w, http.StatusBadRequest, "start_history_id is required")
		return
	}
	limit, ok := queryInt(r, "limit", 0)
	if !ok || limit < 0 {
		s.writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	client := s.gmailClientFor(r.Context(), sess)
	records, err := client.ListHistory(r.Context(),
		startHistoryID, splitCSV(r.URL.Query().Get("history_types")), limit)
	if err != nil {
		s.writeGmailError(w, err)
		return
	}
	if records == nil {
		records = []json.RawMessage{}
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"history": records})
}

// handleHistoryCursor returns the mailbox's current history ID, or null when
// the profile lookup degrades.
func (s *Server) handleHistoryCursor(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireGmailAuth(w, r)
	if !ok {
		return
	}

	client := s.gmailClientFor(r.Context(), sess)

	var resp struct {
		HistoryID *string `json:"history_id"`
	}
	if id := client.GetProfileHistoryID(r.Context()); id != "" {
		resp.HistoryID = &id
	}

	s.writeJSON(w, http.StatusOK, resp)
}
