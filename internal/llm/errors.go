package llm

import "fmt"

// Error is a failed completion call against the chat API. StatusCode is zero
// when the endpoint answered 200 but the payload carried no usable choice.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("completion returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("completion returned %s", e.Message)
}
