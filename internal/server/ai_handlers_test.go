package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/inboxgist/inboxgist/internal/llm"
)

// fakeLLM is an OpenAI-compatible completion backend for summarize tests.
type fakeLLM struct {
	srv *httptest.Server

	mu        sync.Mutex
	status    int
	content   string
	calls     int
	lastModel string
}

func newFakeLLM(t *testing.T) *fakeLLM {
	t.Helper()

	f := &fakeLLM{
		status:  http.StatusOK,
		content: "- bullet one\n- bullet two",
	}

	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		f.calls++
		f.lastModel = req.Model
		status, content := f.status, f.content
		f.mu.Unlock()

		if status != http.StatusOK {
			http.Error(w, `{"error":"upstream failure"}`, status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": content}},
			},
		})
	}))
	t.Cleanup(f.srv.Close)

	return f
}

func (f *fakeLLM) client() *llm.Client {
	return llm.NewClient(f.srv.URL, "test-key")
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeLLM) model() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastModel
}

func TestSummarizeByID(t *testing.T) {
	fakeGmailSrv := newFakeGmail(t)
	fakeGmailSrv.add("m1", "Weekly report", "Jane <jane@example.com>", "Meeting moved to Friday")

	fake := newFakeLLM(t)
	srv := newTestServer(t, fakeGmailSrv.srv.URL, fake.client())
	cookie := signInSession(t, srv, gmailReadonlyScopes())

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/ai/summarize_email?id=m1", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["id"] != "m1" {
		t.Errorf("id = %v, want m1", body["id"])
	}
	if body["subject"] != "Weekly report" {
		t.Errorf("subject = %v", body["subject"])
	}
	// The From header is reduced to the bare address.
	if body["from"] != "jane@example.com" {
		t.Errorf("from = %v, want jane@example.com", body["from"])
	}
	if body["date"] != "Mon, 01 Jan 2024 00:00:00 +0000" {
		t.Errorf("date = %v", body["date"])
	}
	if body["summary"] != "- bullet one\n- bullet two" {
		t.Errorf("summary = %v", body["summary"])
	}
	if body["body_chars"] != float64(len("Meeting moved to Friday")) {
		t.Errorf("body_chars = %v, want %d", body["body_chars"], len("Meeting moved to Friday"))
	}
	if got := fake.model(); got != llm.DefaultModel {
		t.Errorf("model = %q, want default %q", got, llm.DefaultModel)
	}
}

func TestSummarizeByQueryFetchesOnlyFirstMatch(t *testing.T) {
	fakeGmailSrv := newFakeGmail(t)
	fakeGmailSrv.add("m1", "First", "a@example.com", "first body")
	fakeGmailSrv.add("m2", "Second", "b@example.com", "second body")

	fake := newFakeLLM(t)
	srv := newTestServer(t, fakeGmailSrv.srv.URL, fake.client())
	cookie := signInSession(t, srv, gmailReadonlyScopes())

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/ai/summarize_email?q=report", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	if body := decodeBody(t, rec); body["id"] != "m1" {
		t.Errorf("id = %v, want m1", body["id"])
	}
	// Only the first match costs a detail fetch.
	if got := fakeGmailSrv.detailCount(); got != 1 {
		t.Errorf("detail fetches = %d, want 1", got)
	}
}

func TestSummarizeNoMatch(t *testing.T) {
	fakeGmailSrv := newFakeGmail(t)

	fake := newFakeLLM(t)
	srv := newTestServer(t, fakeGmailSrv.srv.URL, fake.client())
	cookie := signInSession(t, srv, gmailReadonlyScopes())

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/ai/summarize_email?q=nothing", cookie)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if detail := decodeBody(t, rec)["detail"]; detail != "No messages matched the query" {
		t.Errorf("detail = %v", detail)
	}
	if fake.callCount() != 0 {
		t.Errorf("LLM calls = %d, want 0", fake.callCount())
	}
}

func TestSummarizeEmptyBody(t *testing.T) {
	fakeGmailSrv := newFakeGmail(t)
	fakeGmailSrv.add("m1", "No content", "a@example.com", "")

	fake := newFakeLLM(t)
	srv := newTestServer(t, fakeGmailSrv.srv.URL, fake.client())
	cookie := signInSession(t, srv, gmailReadonlyScopes())

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/ai/summarize_email?id=m1", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, http.StatusOK, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["summary"] != emptyBodySummary {
		t.Errorf("summary = %v, want %q", body["summary"], emptyBodySummary)
	}
	if body["body_chars"] != float64(0) {
		t.Errorf("body_chars = %v, want 0", body["body_chars"])
	}
	// A blank body never reaches the model.
	if fake.callCount() != 0 {
		t.Errorf("LLM calls = %d, want 0", fake.callCount())
	}
}

func TestSummarizeLLMFailure(t *testing.T) {
	fakeGmailSrv := newFakeGmail(t)
	fakeGmailSrv.add("m1", "Subject", "a@example.com", "some body")

	fake := newFakeLLM(t)
	fake.status = http.StatusInternalServerError
	srv := newTestServer(t, fakeGmailSrv.srv.URL, fake.client())
	cookie := signInSession(t, srv, gmailReadonlyScopes())

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/ai/summarize_email?id=m1", cookie)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	detail, _ := decodeBody(t, rec)["detail"].(string)
	if !strings.HasPrefix(detail, "LLM call failed: ") {
		t.Errorf("detail = %q, want LLM call failed prefix", detail)
	}
}

func TestSummarizeLLMNotConfigured(t *testing.T) {
	srv := newTestServer(t, "", nil)
	cookie := signInSession(t, srv, gmailReadonlyScopes())

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/ai/summarize_email?id=m1", cookie)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if detail := decodeBody(t, rec)["detail"]; detail != "LLM client not configured" {
		t.Errorf("detail = %v", detail)
	}
}

func TestSummarizeModelOverride(t *testing.T) {
	fakeGmailSrv := newFakeGmail(t)
	fakeGmailSrv.add("m1", "Subject", "a@example.com", "some body")

	fake := newFakeLLM(t)
	srv := newTestServer(t, fakeGmailSrv.srv.URL, fake.client())
	cookie := signInSession(t, srv, gmailReadonlyScopes())

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/ai/summarize_email?id=m1&model=custom/model", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := fake.model(); got != "custom/model" {
		t.Errorf("model = %q, want custom/model", got)
	}
}

func TestSummarizeInvalidPreferPlain(t *testing.T) {
	fake := newFakeLLM(t)
	srv := newTestServer(t, "", fake.client())
	cookie := signInSession(t, srv, gmailReadonlyScopes())

	rec := doRequest(t, srv.Handler(), http.MethodGet, "/ai/summarize_email?prefer_plain=maybe", cookie)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if detail := decodeBody(t, rec)["detail"]; detail != "Invalid prefer_plain" {
		t.Errorf("detail = %v", detail)
	}
}

func TestBareAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Jane <jane@example.com>", "jane@example.com"},
		{`"Doe, Jane" <jane@example.com>`, "jane@example.com"},
		{"jane@example.com", "jane@example.com"},
		{"not-an-address", "not-an-address"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := bareAddress(tt.in); got != tt.want {
			t.Errorf("bareAddress(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
