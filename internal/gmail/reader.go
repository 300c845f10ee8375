package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/inboxgist/inboxgist/internal/logging"
)

// messageRef is one entry of a users.messages list page.
type messageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// ForeachMessageID streams the ids of messages matching query and
// labelIDs, page by page. pageSize <= 0 selects DefaultPageSize. fn
// returning ErrStop ends the walk; no further pages are requested.
func (c *Client) ForeachMessageID(ctx context.Context, query string, labelIDs []string, pageSize int, fn func(id string) error) error {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	params := map[string]string{"maxResults": strconv.Itoa(pageSize)}
	if query != "" {
		params["q"] = query
	}
	if len(labelIDs) > 0 {
		params["labelIds"] = strings.Join(labelIDs, ",")
	}
	return c.foreachPage(ctx, c.url("/users/me/messages"), params, "messages", "pageToken", func(items []json.RawMessage) error {
		for _, item := range items {
			var ref messageRef
			if err := json.Unmarshal(item, &ref); err != nil {
				return fmt.Errorf("failed to decode message ref: %w", err)
			}
			if err := fn(ref.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListAllMessageIDs collects the id of every message matching query and
// labelIDs, in the order the API lists them.
func (c *Client) ListAllMessageIDs(ctx context.Context, query string, labelIDs []string, pageSize int) ([]string, error) {
	var ids []string
	err := c.ForeachMessageID(ctx, query, labelIDs, pageSize, func(id string) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FetchMessageFull retrieves one message with format=full. Any non-2xx
// response is returned as a *RemoteError.
func (c *Client) FetchMessageFull(ctx context.Context, id string) (*RawMessage, error) {
	var msg RawMessage
	params := map[string]string{"format": "full"}
	if err := c.getJSON(ctx, c.url("/users/me/messages/"+id), params, &msg); err != nil {
		return nil, err
	}
	c.metrics.RecordMessageFetched(ctx)
	return &msg, nil
}

// GetProfileHistoryID returns the mailbox's current historyId as a string,
// or empty when the lookup fails. Failures are logged, not returned, so a
// missing cursor never blocks the caller.
func (c *Client) GetProfileHistoryID(ctx context.Context) string {
	url := c.url("/users/me/profile")
	resp, err := c.get(ctx, url, nil)
	if err != nil {
		c.logger.Warn("profile lookup failed", logging.Err(err))
		return ""
	}
	defer drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("profile lookup returned unexpected status", slog.Int("status", resp.StatusCode))
		return ""
	}
	var profile struct {
		HistoryID json.Number `json:"historyId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		c.logger.Warn("failed to decode profile", logging.Err(err))
		return ""
	}
	return profile.HistoryID.String()
}

// ForeachHistory streams mailbox history records starting at
// startHistoryID, optionally filtered to historyTypes (messageAdded,
// labelRemoved, ...). Records are delivered raw so callers can pick the
// change kinds they care about. fn returning ErrStop ends the walk.
func (c *Client) ForeachHistory(ctx context.Context, startHistoryID string, historyTypes []string, fn func(record json.RawMessage) error) error {
	params := map[string]string{"startHistoryId": startHistoryID}
	if len(historyTypes) > 0 {
		params["historyTypes"] = strings.Join(historyTypes, ",")
	}
	return c.foreachPage(ctx, c.url("/users/me/history"), params, "history", "pageToken", func(items []json.RawMessage) error {
		for _, item := range items {
			if err := fn(item); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListHistory collects history records starting at startHistoryID. limit
// caps the number of records; 0 means all.
func (c *Client) ListHistory(ctx context.Context, startHistoryID string, historyTypes []string, limit int) ([]json.RawMessage, error) {
	records := []json.RawMessage{}
	err := c.ForeachHistory(ctx, startHistoryID, historyTypes, func(record json.RawMessage) error {
		records = append(records, record)
		if limit > 0 && len(records) >= limit {
			return ErrStop
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// FetchAttachmentData returns the base64url payload of an attachment, or
// empty when the part could not be fetched. Failures are logged, not
// returned.
func (c *Client) FetchAttachmentData(ctx context.Context, messageID, attachmentID string) string {
	url := c.url("/users/me/messages/" + messageID + "/attachments/" + attachmentID)
	resp, err := c.get(ctx, url, nil)
	if err != nil {
		c.logger.Warn("attachment fetch failed", logging.MessageID(messageID), logging.Err(err))
		return ""
	}
	defer drainBody(resp)
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("attachment fetch returned unexpected status",
			logging.MessageID(messageID), slog.Int("status", resp.StatusCode))
		return ""
	}
	var body struct {
		Data string `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Warn("failed to decode attachment", logging.MessageID(messageID), logging.Err(err))
		return ""
	}
	return body.Data
}
