package api

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FetchError is any transport or server failure that is not a validation
// or authentication problem. Message carries the server-reported message
// when the error body had one; Err carries the transport error when the
// request never produced a response.
type FetchError struct {
	Status  int
	Message string
	Err     error
}

func (e *FetchError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	if e.Status != 0 {
		return fmt.Sprintf("server error: status %d", e.Status)
	}
	return "request failed"
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ValidationError carries per-field messages from the server error body
type ValidationError struct {
	Status  int
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// AuthError is an authentication failure that survived the refresh
// protocol. The wrapped error is the refresh failure itself.
type AuthError struct {
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "authentication failed"
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NotFoundError reports an id absent from the expected local collection
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

// fieldMessages tolerates both `"field": "msg"` and `"field": ["msg"]`
// shapes in the server error envelope.
type fieldMessages []string

func (f *fieldMessages) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*f = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	*f = []string{one}
	return nil
}

// errorBody mirrors the backend error envelope
type errorBody struct {
	Message string                   `json:"message"`
	Errors  map[string]fieldMessages `json:"errors"`
}

// parseError converts a non-2xx response body into a typed error
func parseError(status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	if len(eb.Errors) > 0 {
		fields := make(map[string][]string, len(eb.Errors))
		for k, v := range eb.Errors {
			fields[k] = v
		}
		return &ValidationError{Status: status, Message: eb.Message, Fields: fields}
	}

	return &FetchError{Status: status, Message: eb.Message}
}

// serverMessage extracts the server-reported message from a typed error,
// or "" if the error carried none.
func serverMessage(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Message
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return ""
}

// Message returns the human-readable message for err: the server-reported
// message when present, else the fixed fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	if msg := serverMessage(err); msg != "" {
		return msg
	}
	return fallback
}
