package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrInvalidCredentials is returned for any login failure. The server's
	// detail is deliberately not echoed so callers cannot tell which field
	// was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionExpired means the refresh token was rejected and the stored
	// credentials have been cleared. The caller must log in again.
	ErrSessionExpired = errors.New("session expired, please log in again")

	// ErrConflict means a mark already exists for the same student, subject,
	// date and period. Retrying a duplicate submission is never correct.
	ErrConflict = errors.New("attendance already marked for this subject, date and period")

	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("not found")
)

// APIError carries a non-2xx response that does not map to a sentinel.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// errorBody covers the message keys the remote API uses interchangeably.
type errorBody struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Detail, b.Error, b.Message} {
		if s != "" {
			return s
		}
	}
	return ""
}

// decodeError translates a non-2xx response into the client error taxonomy.
func decodeError(status int, body []byte) error {
	var parsed errorBody
	_ = json.Unmarshal(body, &parsed)
	message := parsed.text()
	if message == "" {
		message = strings.TrimSpace(string(body))
	}

	switch {
	case status == http.StatusNotFound:
		if message != "" {
			return fmt.Errorf("%w: %s", ErrNotFound, message)
		}
		return ErrNotFound
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", ErrSessionExpired, "request was not authorized")
	case status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "already marked"):
		return ErrConflict
	}

	return &APIError{Status: status, Message: message}
}
