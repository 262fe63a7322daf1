package api

import (
	"fmt"
	"strings"
)

// Error is a non-2xx response from the backend.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "unexpected response"
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// UserMessage returns the backend-supplied text, if any.
func (e *Error) UserMessage() string { return e.Message }

// IsUnauthorized reports whether the backend rejected the session token.
func (e *Error) IsUnauthorized() bool { return e.Status == 401 || e.Status == 403 }

func (e *Error) retryable() bool { return e.Status == 429 || e.Status >= 500 }

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}
