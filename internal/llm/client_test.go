package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionResponse(content string) string {
	return `{"choices":[{"message":{"role":"assistant","content":` + mustJSON(content) + `}}]}`
}

func mustJSON(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func TestComplete(t *testing.T) {
	var captured chatRequest
	var gotAuth, gotContentType, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionResponse("- bullet one\n- bullet two")))
	}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", "test-key")

	content, err := client.Complete(context.Background(), "some/model", []Message{
		{Role: "user", Content: "hello"},
	})
	require.NoError(t, err)

	assert.Equal(t, "- bullet one\n- bullet two", content)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "some/model", captured.Model)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "hello", captured.Messages[0].Content)
}

func TestCompleteDefaultModel(t *testing.T) {
	var captured chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(completionResponse("ok")))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key", WithModel("custom/model"))
	assert.Equal(t, "custom/model", client.Model())

	_, err := client.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, "custom/model", captured.Model)
}

func TestCompleteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")

	_, err := client.Complete(context.Background(), "some/model", []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate limited")

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")

	_, err := client.Complete(context.Background(), "some/model", []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no choices")

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Zero(t, apiErr.StatusCode)
}

func TestCompleteMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")

	_, err := client.Complete(context.Background(), "some/model", []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestCompleteNoAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server without an API key")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "")

	_, err := client.Complete(context.Background(), "some/model", []Message{{Role: "user", Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestSummarize(t *testing.T) {
	var captured chatRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_, _ = w.Write([]byte(completionResponse("  - topic one\n- topic two\n")))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")

	summary, err := client.Summarize(context.Background(), "some/model", "Meeting moved to Friday. Budget approved.")
	require.NoError(t, err)

	assert.Equal(t, "- topic one\n- topic two", summary, "summary should be trimmed")

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, summarySystemPrompt, captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.True(t, strings.HasPrefix(captured.Messages[1].Content, "Summarize the main topics"))
	assert.Contains(t, captured.Messages[1].Content, "5 bullets max")
	assert.Contains(t, captured.Messages[1].Content, "Email body:\nMeeting moved to Friday. Budget approved.")
}

func TestSummarizeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "test-key")

	_, err := client.Summarize(context.Background(), "some/model", "body")
	require.Error(t, err)
}
