package gmail

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAllMessageIDs(t *testing.T) {
	var queries []url.Values
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries = append(queries, r.URL.Query())
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			w.Write([]byte(`{"messages":[{"id":"m1","threadId":"t1"},{"id":"m2","threadId":"t1"}],"nextPageToken":"tok"}`))
			return
		}
		w.Write([]byte(`{"messages":[{"id":"m3","threadId":"t2"}]}`))
	}))

	ids, err := c.ListAllMessageIDs(context.Background(), "from:billing", []string{"INBOX", "UNREAD"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)

	require.Len(t, queries, 2)
	first := queries[0]
	assert.Equal(t, "from:billing", first.Get("q"))
	assert.Equal(t, "INBOX,UNREAD", first.Get("labelIds"))
	assert.Equal(t, "500", first.Get("maxResults"))
	assert.Equal(t, "tok", queries[1].Get("pageToken"))
}

func TestListAllMessageIDsOmitsEmptyFilters(t *testing.T) {
	var query url.Values
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[]}`))
	}))

	ids, err := c.ListAllMessageIDs(context.Background(), "", nil, 25)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.False(t, query.Has("q"))
	assert.False(t, query.Has("labelIds"))
	assert.Equal(t, "25", query.Get("maxResults"))
}

func TestForeachMessageIDStopsEarly(t *testing.T) {
	var requests int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"messages":[{"id":"m1"},{"id":"m2"}],"nextPageToken":"tok"}`))
	}))

	var seen []string
	err := c.ForeachMessageID(context.Background(), "", nil, 0, func(id string) error {
		seen = append(seen, id)
		return ErrStop
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1"}, seen)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestFetchMessageFull(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages/m42", r.URL.Path)
		assert.Equal(t, "full", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "m42",
			"threadId": "t9",
			"labelIds": ["INBOX"],
			"snippet": "hello",
			"internalDate": "1700000000000",
			"payload": {"mimeType": "text/plain", "body": {"size": 2, "data": "aGk"}}
		}`))
	}))

	msg, err := c.FetchMessageFull(context.Background(), "m42")
	require.NoError(t, err)
	assert.Equal(t, "m42", msg.ID)
	assert.Equal(t, "t9", msg.ThreadID)
	assert.Equal(t, []string{"INBOX"}, msg.LabelIDs)
	assert.Equal(t, "1700000000000", msg.InternalDate)
	require.NotNil(t, msg.Payload)
	assert.Equal(t, "aGk", msg.Payload.Body.Data)
}

func TestFetchMessageFullSurfacesFailureStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	_, err := c.FetchMessageFull(context.Background(), "missing")
	var remoteErr *RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, http.StatusNotFound, remoteErr.StatusCode)
}

func TestGetProfileHistoryID(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "history id as string",
			status: 200,
			body:   `{"emailAddress":"jane@example.com","historyId":"123456"}`,
			want:   "123456",
		},
		{
			name:   "history id as number",
			status: 200,
			body:   `{"emailAddress":"jane@example.com","historyId":123456}`,
			want:   "123456",
		},
		{
			name:   "missing history id",
			status: 200,
			body:   `{"emailAddress":"jane@example.com"}`,
			want:   "",
		},
		{
			name:   "failure degrades to empty",
			status: 403,
			body:   `{"error":"forbidden"}`,
			want:   "",
		},
		{
			name:   "malformed body degrades to empty",
			status: 200,
			body:   `{`,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/users/me/profile", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			got := c.GetProfileHistoryID(context.Background())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestForeachHistoryYieldsRecords(t *testing.T) {
	var query url.Values
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		assert.Equal(t, "/users/me/history", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"history":[{"id":"100"},{"id":"101"}],"historyId":"102"}`))
	}))

	var ids []string
	err := c.ForeachHistory(context.Background(), "99", []string{"messageAdded", "labelRemoved"}, func(record json.RawMessage) error {
		var rec struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(record, &rec))
		ids = append(ids, rec.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"100", "101"}, ids)
	assert.Equal(t, "99", query.Get("startHistoryId"))
	assert.Equal(t, "messageAdded,labelRemoved", query.Get("historyTypes"))
}

func TestListHistoryHonorsLimit(t *testing.T) {
	var requests int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"history":[{"id":"1"},{"id":"2"},{"id":"3"}],"nextPageToken":"more"}`))
	}))

	records, err := c.ListHistory(context.Background(), "0", nil, 2)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestFetchAttachmentData(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/messages/m1/attachments/att9", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"size":5,"data":"aGVsbG8"}`))
	}))

	data := c.FetchAttachmentData(context.Background(), "m1", "att9")
	assert.Equal(t, "aGVsbG8", data)
}

func TestFetchAttachmentDataDegradesOnFailure(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))

	data := c.FetchAttachmentData(context.Background(), "m1", "att9")
	assert.Empty(t, data)
}
