package mockflow

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"
	"github.com/gorilla/schema"
)

type codedError struct {
	err    error
	code   int
	detail string
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(code int, err error) error {
	return &codedError{err: err, code: code}
}

func CodedErrorf(code int, format string, args ...any) error {
	return &codedError{err: fmt.Errorf(format, args...), code: code}
}

// ValidationError is a coded error that also fills the "errors" field of
// the response body.
func ValidationError(code int, message, detail string) error {
	return &codedError{err: errors.New(message), code: code, detail: detail}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Errors  string `json:"errors,omitempty"`
}

func ParseRequest[T any](r *http.Request) (T, error) {
	var data T
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		slog.Error("error parsing request body", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request body")
	}
	return data, nil
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

func ParseRequestQueryParams[T any](r *http.Request) (T, error) {
	var data T
	if err := r.ParseForm(); err != nil {
		slog.Error("error parsing form", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	err := queryDecoder.Decode(&data, r.Form)
	if err != nil {
		slog.Error("error decoding query params", "error", err)
		return data, CodedErrorf(http.StatusBadRequest, "unable to parse request query params")
	}

	return data, nil
}

func RestHandler(handler func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := handler(r)
		if err != nil {
			renderError(w, r, err)
			return
		}

		if res == nil {
			res = struct{}{}
		}

		render.JSON(w, r, res)
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	var cerr *codedError
	if errors.As(err, &cerr) {
		if cerr.code == http.StatusInternalServerError {
			slog.Error("internal server error received in endpoint", "error", err)
		}
		render.Status(r, cerr.code)
		render.JSON(w, r, errorResponse{Message: err.Error(), Errors: cerr.detail})
		return
	}

	slog.Error("recieved non coded error from endpoint", "error", err)
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, errorResponse{Message: err.Error()})
}
