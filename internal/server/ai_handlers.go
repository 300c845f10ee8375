package server

import (
	"context"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/inboxgist/inboxgist/internal/gmail"
	"github.com/inboxgist/inboxgist/internal/instrumentation"
	"github.com/inboxgist/inboxgist/internal/logging"
)

// emptyBodySummary is returned without an LLM round trip when the selected
// message has no body text.
const emptyBodySummary = "- (No body content found)"

// summarizeResponse is the payload of /ai/summarize_email.
type summarizeResponse struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	From      string `json:"from"`
	Subject   string `json:"subject"`
	Summary   string `json:"summary"`
	BodyChars int    `json:"body_chars"`
}

// handleSummarizeEmail summarizes one email body into bullet points. The
// message is picked by id, or by taking the first match of the query.
func (s *Server) handleSummarizeEmail(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.requireGmailAuth(w, r)
	if !ok {
		return
	}

	account := ""
	if sess.User != nil {
		account = sess.User.Email
	}

	ctx := r.Context()
	start := time.Now()
	status := instrumentation.StatusError
	defer func() {
		s.metrics.RecordSummarizeWithAccount(ctx, status, account, time.Since(start))
	}()

	if s.llm == nil {
		s.writeError(w, http.StatusInternalServerError, "LLM client not configured")
		return
	}

	preferPlain, ok := queryBool(r, "prefer_plain", true)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "Invalid prefer_plain")
		return
	}
	id := r.URL.Query().Get("id")
	model := r.URL.Query().Get("model")

	client := s.gmailClientFor(ctx, sess)

	var proj *gmail.LlmProjection
	var err error
	if id != "" {
		proj, err = client.FetchLlmProjection(ctx, id, preferPlain)
	} else {
		proj, err = firstLlmProjection(ctx, client, r.URL.Query().Get("q"), preferPlain)
	}
	if err != nil {
		s.writeGmailError(w, err)
		return
	}

	summary := emptyBodySummary
	if strings.TrimSpace(proj.Body) != "" {
		summary, err = s.llm.Summarize(ctx, model, proj.Body)
		if err != nil {
			s.logger.Warn("summarization failed",
				logging.MessageID(proj.ID), logging.Err(err))
			s.writeError(w, http.StatusBadGateway, "LLM call failed: "+err.Error())
			return
		}
	}

	status = instrumentation.StatusSuccess
	s.writeJSON(w, http.StatusOK, summarizeResponse{
		ID:        proj.ID,
		Date:      proj.Date,
		From:      bareAddress(proj.From),
		Subject:   proj.Subject,
		Summary:   summary,
		BodyChars: proj.BodyChars,
	})
}

// firstLlmProjection returns the first projection matching the query. The
// limit of one means at most a single detail fetch happens.
func firstLlmProjection(ctx context.Context, client *gmail.Client, query string, preferPlain bool) (*gmail.LlmProjection, error) {
	var first *gmail.LlmProjection
	err := client.ForeachLlmProjection(ctx, query, nil, 1, preferPlain,
		func(p *gmail.LlmProjection) error {
			first = p
			return nil
		})
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, gmail.ErrNoMessages
	}
	return first, nil
}

// bareAddress reduces an RFC 5322 From header to the address itself, falling
// back to the raw header when it does not parse.
func bareAddress(from string) string {
	addr, err := mail.ParseAddress(from)
	if err != nil || addr.Address == "" {
		return from
	}
	return addr.Address
}
