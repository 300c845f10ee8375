package gmail

import (
	"context"
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// decodeB64URL decodes RFC 4648 base64url data, tolerating missing
// padding. Some producers emit standard base64 instead; fall back to that
// before giving up.
func decodeB64URL(s string) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err == nil {
		return raw, nil
	}
	return base64.StdEncoding.DecodeString(s)
}

// toUTF8 converts decoded bytes to a string, replacing invalid UTF-8
// sequences with U+FFFD.
func toUTF8(raw []byte) string {
	return strings.ToValidUTF8(string(raw), "�")
}

// walkParts visits part and its descendants in pre-order.
func walkParts(part *ContentPart, fn func(*ContentPart)) {
	if part == nil {
		return
	}
	fn(part)
	for _, sub := range part.Parts {
		walkParts(sub, fn)
	}
}

// joinFragments joins collected body fragments with newlines. No fragments
// means no body of that family: nil, not the empty string.
func joinFragments(fragments []string) *string {
	if len(fragments) == 0 {
		return nil
	}
	s := strings.Join(fragments, "\n")
	return &s
}

// ExtractBodies walks a payload tree in pre-order and returns the decoded
// text/plain and text/html bodies, each family's fragments joined with
// newlines. MIME types are compared case-insensitively. The input tree is
// never modified, so extracting twice gives the same answer.
func ExtractBodies(payload *ContentPart) (textPlain, textHTML *string) {
	var texts, htmls []string
	walkParts(payload, func(part *ContentPart) {
		if part.Body == nil || part.Body.Data == "" {
			return
		}
		raw, err := decodeB64URL(part.Body.Data)
		if err != nil {
			return
		}
		switch strings.ToLower(part.MimeType) {
		case "text/plain":
			texts = append(texts, toUTF8(raw))
		case "text/html":
			htmls = append(htmls, toUTF8(raw))
		}
	})
	return joinFragments(texts), joinFragments(htmls)
}

// ExtractBodiesAttachmentAware is ExtractBodies with one extra step: text
// parts whose content was exported as an attachment (no inline data, an
// attachmentId present) are fetched before decoding. Parts whose fetch
// yields nothing are skipped.
func (c *Client) ExtractBodiesAttachmentAware(ctx context.Context, messageID string, payload *ContentPart) (textPlain, textHTML *string) {
	var texts, htmls []string
	walkParts(payload, func(part *ContentPart) {
		mime := strings.ToLower(part.MimeType)
		if mime != "text/plain" && mime != "text/html" {
			return
		}
		var data, attachmentID string
		if part.Body != nil {
			data = part.Body.Data
			attachmentID = part.Body.AttachmentID
		}
		if data == "" && attachmentID != "" {
			data = c.FetchAttachmentData(ctx, messageID, attachmentID)
		}
		if data == "" {
			return
		}
		raw, err := decodeB64URL(data)
		if err != nil {
			return
		}
		if mime == "text/plain" {
			texts = append(texts, toUTF8(raw))
		} else {
			htmls = append(htmls, toUTF8(raw))
		}
	})
	return joinFragments(texts), joinFragments(htmls)
}

// isTextBody reports whether a lowercased MIME type names a renderable
// text body. Only text/plain and text/html qualify; other text/* subtypes
// (text/calendar, text/csv) are treated as attachments.
func isTextBody(mime string) bool {
	return strings.HasPrefix(mime, "text/plain") || strings.HasPrefix(mime, "text/html")
}

// attachmentMeta captures the metadata of an attachment part before its
// content is dropped. A part with no filename that is neither a text body
// nor multipart counts as inline content, an embedded image typically.
func attachmentMeta(part *ContentPart, mime string) AttachmentMeta {
	inline := part.Filename == "" &&
		!isTextBody(mime) &&
		!strings.HasPrefix(mime, "multipart/")
	meta := AttachmentMeta{
		MimeType: part.MimeType,
		Headers:  part.Headers,
		Inline:   inline,
	}
	if meta.Headers == nil {
		meta.Headers = []Header{}
	}
	if part.Filename != "" {
		filename := part.Filename
		meta.Filename = &filename
	}
	if part.Body != nil {
		meta.Size = part.Body.Size
		if part.Body.AttachmentID != "" {
			attachmentID := part.Body.AttachmentID
			meta.AttachmentID = &attachmentID
		}
	}
	return meta
}

// StripAttachmentsPreserveMeta returns a copy of the payload tree with
// attachment content removed and text content decoded inline.
//
// A part counts as an attachment when it carries a filename, or when its
// MIME type is neither text/plain, text/html, nor multipart/*. Attachment
// bodies lose their data and gain _stripped; their metadata is collected
// in pre-order.
// Text bodies are decoded, truncated to maxTextChars characters and stored
// as decodedText, with _decoded_len holding the byte length before
// truncation. maxTextChars <= 0 selects DefaultMaxTextChars. The input
// tree is never modified.
func StripAttachmentsPreserveMeta(payload *ContentPart, maxTextChars int) (*StrippedPart, []AttachmentMeta) {
	if maxTextChars <= 0 {
		maxTextChars = DefaultMaxTextChars
	}
	metas := []AttachmentMeta{}
	stripped := stripPart(payload, maxTextChars, &metas)
	return stripped, metas
}

func stripPart(part *ContentPart, maxTextChars int, metas *[]AttachmentMeta) *StrippedPart {
	if part == nil {
		return nil
	}
	out := &StrippedPart{
		PartID:   part.PartID,
		MimeType: part.MimeType,
		Filename: part.Filename,
		Headers:  part.Headers,
	}

	mime := strings.ToLower(part.MimeType)
	isAttachment := part.Filename != "" ||
		(!isTextBody(mime) && !strings.HasPrefix(mime, "multipart/"))

	switch {
	case isAttachment:
		*metas = append(*metas, attachmentMeta(part, mime))
		body := &StrippedBody{Stripped: true}
		if part.Body != nil {
			body.AttachmentID = part.Body.AttachmentID
			body.Size = part.Body.Size
		}
		out.Body = body
	case part.Body != nil:
		body := &StrippedBody{
			AttachmentID: part.Body.AttachmentID,
			Size:         part.Body.Size,
		}
		if part.Body.Data != "" {
			if raw, err := decodeB64URL(part.Body.Data); err == nil {
				text := toUTF8(raw)
				body.DecodedLen = len(raw)
				if utf8.RuneCountInString(text) > maxTextChars {
					runes := []rune(text)
					text = string(runes[:maxTextChars])
					body.Truncated = true
				}
				body.DecodedText = text
			}
		}
		out.Body = body
	}

	for _, sub := range part.Parts {
		out.Parts = append(out.Parts, stripPart(sub, maxTextChars, metas))
	}
	return out
}

// StripMessagePreserveMeta applies StripAttachmentsPreserveMeta to a full
// message and hoists the collected attachment metadata to the top level.
func StripMessagePreserveMeta(msg *RawMessage, maxTextChars int) *StrippedMessage {
	payload, metas := StripAttachmentsPreserveMeta(msg.Payload, maxTextChars)
	return &StrippedMessage{
		ID:              msg.ID,
		ThreadID:        msg.ThreadID,
		LabelIDs:        msg.LabelIDs,
		Snippet:         msg.Snippet,
		HistoryID:       msg.HistoryID,
		InternalDate:    msg.InternalDate,
		SizeEstimate:    msg.SizeEstimate,
		Payload:         payload,
		AttachmentsMeta: metas,
	}
}
