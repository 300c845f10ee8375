package gmail

// Header is one RFC 822 header as the API delivers it.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// PartBody carries the content of a single MIME part. Data is base64url
// encoded; large parts omit Data and reference an attachment instead.
type PartBody struct {
	AttachmentID string `json:"attachmentId,omitempty"`
	Size         int64  `json:"size"`
	Data         string `json:"data,omitempty"`
}

// ContentPart is one node of a message payload tree.
type ContentPart struct {
	PartID   string         `json:"partId,omitempty"`
	MimeType string         `json:"mimeType,omitempty"`
	Filename string         `json:"filename,omitempty"`
	Headers  []Header       `json:"headers,omitempty"`
	Body     *PartBody      `json:"body,omitempty"`
	Parts    []*ContentPart `json:"parts,omitempty"`
}

// RawMessage is a message as returned by users.messages.get with
// format=full. InternalDate and HistoryID stay strings on the wire.
type RawMessage struct {
	ID           string       `json:"id"`
	ThreadID     string       `json:"threadId,omitempty"`
	LabelIDs     []string     `json:"labelIds,omitempty"`
	Snippet      string       `json:"snippet,omitempty"`
	HistoryID    string       `json:"historyId,omitempty"`
	InternalDate string       `json:"internalDate,omitempty"`
	SizeEstimate int64        `json:"sizeEstimate,omitempty"`
	Payload      *ContentPart `json:"payload,omitempty"`
}

// StrippedBody is a part body after attachment stripping: raw data is
// gone, decoded text is inlined for text parts. DecodedLen is the byte
// length of the decoded content before truncation.
type StrippedBody struct {
	AttachmentID string `json:"attachmentId,omitempty"`
	Size         int64  `json:"size"`
	Stripped     bool   `json:"_stripped,omitempty"`
	DecodedText  string `json:"decodedText,omitempty"`
	DecodedLen   int    `json:"_decoded_len,omitempty"`
	Truncated    bool   `json:"_truncated,omitempty"`
}

// StrippedPart mirrors ContentPart with stripped bodies.
type StrippedPart struct {
	PartID   string          `json:"partId,omitempty"`
	MimeType string          `json:"mimeType,omitempty"`
	Filename string          `json:"filename,omitempty"`
	Headers  []Header        `json:"headers,omitempty"`
	Body     *StrippedBody   `json:"body,omitempty"`
	Parts    []*StrippedPart `json:"parts,omitempty"`
}

// AttachmentMeta records everything worth keeping about a stripped
// attachment. Filename and AttachmentID are nil when the part had none.
type AttachmentMeta struct {
	Filename     *string  `json:"filename"`
	MimeType     string   `json:"mimeType"`
	Size         int64    `json:"size"`
	AttachmentID *string  `json:"attachmentId"`
	Headers      []Header `json:"headers"`
	Inline       bool     `json:"inline"`
}

// StrippedMessage is a full message with its payload tree stripped and the
// attachment metadata hoisted to the top level.
type StrippedMessage struct {
	ID              string           `json:"id"`
	ThreadID        string           `json:"threadId,omitempty"`
	LabelIDs        []string         `json:"labelIds,omitempty"`
	Snippet         string           `json:"snippet,omitempty"`
	HistoryID       string           `json:"historyId,omitempty"`
	InternalDate    string           `json:"internalDate,omitempty"`
	SizeEstimate    int64            `json:"sizeEstimate,omitempty"`
	Payload         *StrippedPart    `json:"payload,omitempty"`
	AttachmentsMeta []AttachmentMeta `json:"attachments_meta"`
}

// NormalizedMessage flattens the parts of a message that matter for
// display and search: picked headers, decoded bodies, parsed timestamp.
// BodyText and BodyHTML are nil when the tree had no part of that family.
type NormalizedMessage struct {
	ID             string            `json:"id"`
	ThreadID       string            `json:"threadId,omitempty"`
	LabelIDs       []string          `json:"labelIds"`
	Snippet        string            `json:"snippet,omitempty"`
	HistoryID      string            `json:"historyId,omitempty"`
	InternalDateMS int64             `json:"internal_date_ms"`
	Headers        map[string]string `json:"headers"`
	Subject        string            `json:"subject"`
	From           string            `json:"from"`
	To             string            `json:"to"`
	Cc             string            `json:"cc"`
	Date           string            `json:"date"`
	BodyText       *string           `json:"body_text"`
	BodyHTML       *string           `json:"body_html"`
}

// LlmProjection is the compact single-body record handed to a language
// model. BodyChars counts characters, not bytes.
type LlmProjection struct {
	ID             string   `json:"id"`
	ThreadID       string   `json:"thread_id,omitempty"`
	InternalDateMS int64    `json:"internal_date_ms"`
	LabelIDs       []string `json:"label_ids"`
	Subject        string   `json:"subject"`
	From           string   `json:"from"`
	To             string   `json:"to"`
	Cc             string   `json:"cc"`
	Date           string   `json:"date"`
	Snippet        string   `json:"snippet"`
	Body           string   `json:"body"`
	BodyFormat     string   `json:"body_format"`
	BodyChars      int      `json:"body_chars"`
}
