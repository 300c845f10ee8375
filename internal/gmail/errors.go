package gmail

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrStop ends a Foreach* walk early. It is swallowed by the walk, which
// returns nil, and no further requests are issued.
var ErrStop = errors.New("gmail: stop iteration")

// ErrNoMessages reports an empty result set where at least one message was
// required.
var ErrNoMessages = errors.New("gmail: no messages matched")

// RemoteError is a Gmail API response that signalled failure. Transient is
// true when the retry budget was exhausted on a retryable status.
type RemoteError struct {
	StatusCode int
	URL        string
	Body       string
	Transient  bool
}

func (e *RemoteError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.Body != "" {
		return fmt.Sprintf("gmail: %s remote error: GET %s: status %d: %s", kind, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("gmail: %s remote error: GET %s: status %d", kind, e.URL, e.StatusCode)
}

// errorBodyLimit bounds how much of a failing response is kept for the
// error message.
const errorBodyLimit = 2048

// newRemoteError drains resp into a RemoteError. The response body is
// closed.
func newRemoteError(resp *http.Response, url string) *RemoteError {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	resp.Body.Close()
	return &RemoteError{
		StatusCode: resp.StatusCode,
		URL:        url,
		Body:       string(snippet),
		Transient:  transientStatuses[resp.StatusCode],
	}
}
