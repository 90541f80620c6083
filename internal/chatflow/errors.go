package chatflow

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedResponse = errors.New("malformed response from chatflow service")
	ErrMissingAccount    = errors.New("chatflow account name is required")
)

// BackendError is returned when the service answers with a non-2xx status.
// Message and Errors hold the matching body fields, if present.
type BackendError struct {
	StatusCode int
	Message    string
	Errors     string
}

func (e *BackendError) Error() string {
	detail := e.Message
	if detail == "" {
		detail = e.Errors
	}
	if detail == "" {
		return fmt.Sprintf("chatflow service returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("chatflow service returned status %d: %s", e.StatusCode, detail)
}

// UserMessage picks the text to show a user for err: the service-provided
// message when there is one, otherwise fallback.
func UserMessage(err error, fallback string) string {
	var berr *BackendError
	if errors.As(err, &berr) && berr.Message != "" {
		return berr.Message
	}
	return fallback
}

// UploadMessage is UserMessage for the upload endpoint, which reports
// validation problems in "errors" ahead of "message".
func UploadMessage(err error, fallback string) string {
	var berr *BackendError
	if errors.As(err, &berr) {
		if berr.Errors != "" {
			return berr.Errors
		}
		if berr.Message != "" {
			return berr.Message
		}
	}
	return fallback
}
