package gmail

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"
)

// headerValue returns the value of the first header whose name matches
// case-insensitively, scanning the list in wire order. Missing headers
// yield the empty string.
func headerValue(headers []Header, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// headersToMap flattens the wire header list into a map. Exact duplicate
// names keep the last value.
func headersToMap(headers []Header) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}

// parseInternalDate parses the millisecond timestamp the API renders as a
// string. Absent or unparseable values become 0.
func parseInternalDate(s string) int64 {
	if s == "" {
		return 0
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return ms
}

// NormalizeMessage reduces a raw message to its header fields and decoded
// bodies.
func NormalizeMessage(msg *RawMessage) *NormalizedMessage {
	var headers []Header
	if msg.Payload != nil {
		headers = msg.Payload.Headers
	}
	text, html := ExtractBodies(msg.Payload)
	labelIDs := msg.LabelIDs
	if labelIDs == nil {
		labelIDs = []string{}
	}
	return &NormalizedMessage{
		ID:             msg.ID,
		ThreadID:       msg.ThreadID,
		LabelIDs:       labelIDs,
		Snippet:        msg.Snippet,
		HistoryID:      msg.HistoryID,
		InternalDateMS: parseInternalDate(msg.InternalDate),
		Headers:        headersToMap(headers),
		Subject:        headerValue(headers, "Subject"),
		From:           headerValue(headers, "From"),
		To:             headerValue(headers, "To"),
		Cc:             headerValue(headers, "Cc"),
		Date:           headerValue(headers, "Date"),
		BodyText:       text,
		BodyHTML:       html,
	}
}

// hasContent reports whether a body is present and non-empty.
func hasContent(s *string) bool {
	return s != nil && *s != ""
}

// BuildLlmProjection picks one body for a normalized message and counts
// its characters. preferPlain selects the plain-text body when it has
// content; otherwise HTML wins over plain, and a message with no usable
// body projects as an empty text/plain body. body_format carries the MIME
// type of the chosen branch.
func BuildLlmProjection(norm *NormalizedMessage, preferPlain bool) *LlmProjection {
	var body, bodyFormat string
	switch {
	case preferPlain && hasContent(norm.BodyText):
		body, bodyFormat = *norm.BodyText, "text/plain"
	case hasContent(norm.BodyHTML):
		body, bodyFormat = *norm.BodyHTML, "text/html"
	case hasContent(norm.BodyText):
		body, bodyFormat = *norm.BodyText, "text/plain"
	default:
		body, bodyFormat = "", "text/plain"
	}
	return &LlmProjection{
		ID:             norm.ID,
		ThreadID:       norm.ThreadID,
		InternalDateMS: norm.InternalDateMS,
		LabelIDs:       norm.LabelIDs,
		Subject:        norm.Subject,
		From:           norm.From,
		To:             norm.To,
		Cc:             norm.Cc,
		Date:           norm.Date,
		Snippet:        norm.Snippet,
		Body:           body,
		BodyFormat:     bodyFormat,
		BodyChars:      utf8.RuneCountInString(body),
	}
}

// FetchNormalizedMessage fetches one message and normalizes it.
func (c *Client) FetchNormalizedMessage(ctx context.Context, id string) (*NormalizedMessage, error) {
	msg, err := c.FetchMessageFull(ctx, id)
	if err != nil {
		return nil, err
	}
	return NormalizeMessage(msg), nil
}

// FetchMessageFullNoBlobs fetches one message and strips its attachments,
// preserving their metadata.
func (c *Client) FetchMessageFullNoBlobs(ctx context.Context, id string, maxTextChars int) (*StrippedMessage, error) {
	msg, err := c.FetchMessageFull(ctx, id)
	if err != nil {
		return nil, err
	}
	return StripMessagePreserveMeta(msg, maxTextChars), nil
}

// FetchLlmProjection fetches one message and reduces it to an LLM
// projection. Body extraction is attachment-aware: text parts whose
// content was exported as an attachment are fetched back before the body
// is chosen.
func (c *Client) FetchLlmProjection(ctx context.Context, id string, preferPlain bool) (*LlmProjection, error) {
	msg, err := c.FetchMessageFull(ctx, id)
	if err != nil {
		return nil, err
	}
	norm := NormalizeMessage(msg)
	norm.BodyText, norm.BodyHTML = c.ExtractBodiesAttachmentAware(ctx, msg.ID, msg.Payload)
	return BuildLlmProjection(norm, preferPlain), nil
}

// ForeachNormalizedMessage fetches and normalizes matching messages one at
// a time. limit caps deliveries (0 means unlimited) and is checked after
// each delivery, so limit=1 fetches exactly one message. Stopping early,
// via limit or ErrStop, issues no further list or detail requests.
func (c *Client) ForeachNormalizedMessage(ctx context.Context, query string, labelIDs []string, limit int, fn func(*NormalizedMessage) error) error {
	count := 0
	return c.ForeachMessageID(ctx, query, labelIDs, 0, func(id string) error {
		norm, err := c.FetchNormalizedMessage(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(norm); err != nil {
			return err
		}
		count++
		if limit > 0 && count >= limit {
			return ErrStop
		}
		return nil
	})
}

// ForeachMessageFullNoBlobs fetches and strips matching messages one at a
// time, with the same limit contract as ForeachNormalizedMessage.
func (c *Client) ForeachMessageFullNoBlobs(ctx context.Context, query string, labelIDs []string, limit, maxTextChars int, fn func(*StrippedMessage) error) error {
	count := 0
	return c.ForeachMessageID(ctx, query, labelIDs, 0, func(id string) error {
		stripped, err := c.FetchMessageFullNoBlobs(ctx, id, maxTextChars)
		if err != nil {
			return err
		}
		if err := fn(stripped); err != nil {
			return err
		}
		count++
		if limit > 0 && count >= limit {
			return ErrStop
		}
		return nil
	})
}

// ForeachLlmProjection fetches and projects matching messages one at a
// time, with the same limit contract as ForeachNormalizedMessage.
func (c *Client) ForeachLlmProjection(ctx context.Context, query string, labelIDs []string, limit int, preferPlain bool, fn func(*LlmProjection) error) error {
	count := 0
	return c.ForeachMessageID(ctx, query, labelIDs, 0, func(id string) error {
		proj, err := c.FetchLlmProjection(ctx, id, preferPlain)
		if err != nil {
			return err
		}
		if err := fn(proj); err != nil {
			return err
		}
		count++
		if limit > 0 && count >= limit {
			return ErrStop
		}
		return nil
	})
}
