// Package httperr carries a canned-response status code out of the worker's
// state machine, and renders the HTML error bodies spec.md §6 requires.
// The Status type is modeled on the ancestor codebase's pkg/errors.Error
// (code + optional cause), narrowed to what a single-shot proxy response
// needs.
package httperr

import (
	"fmt"
	"net/http"
	"time"
)

// Status is a request-scoped error that resolves to one canned HTTP
// response. It is returned up through parse/lookup/fetch, never retried.
type Status struct {
	Code  int
	cause error
}

// New creates a Status for the given HTTP status code.
func New(code int) *Status {
	return &Status{Code: code}
}

// WithCause attaches the underlying error for logging, without changing
// what's sent on the wire.
func (e *Status) WithCause(err error) *Status {
	e.cause = err
	return e
}

func (e *Status) Unwrap() error { return e.cause }

func (e *Status) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("httperr: %d %s: %s", e.Code, http.StatusText(e.Code), e.cause)
	}
	return fmt.Sprintf("httperr: %d %s", e.Code, http.StatusText(e.Code))
}

// reasons holds the reason phrase for each supported status code; Render
// builds the status line and canned body from it. No code outside these
// five has a canned response.
var reasons = map[int]string{
	http.StatusBadRequest:          "Bad Request",
	http.StatusForbidden:           "Forbidden",
	http.StatusNotFound:            "Not Found",
	http.StatusInternalServerError: "Internal Server Error",
	http.StatusNotImplemented:      "Not Implemented",
}

// Supported reports whether code has a canned response defined.
func Supported(code int) bool {
	_, ok := reasons[code]
	return ok
}

// Render builds the full canned HTTP response for code: status line,
// Content-Length, Connection: close, Content-Type, a Date header in
// RFC1123 GMT, and the minimal HTML body from spec.md §6. Render returns
// nil if code has no canned response.
func Render(code int, now time.Time) []byte {
	reason, ok := reasons[code]
	if !ok {
		return nil
	}

	body := fmt.Sprintf(
		"<HTML><HEAD><TITLE>%d %s</TITLE></HEAD><BODY><H1>%d %s</H1></BODY></HTML>",
		code, reason, code, reason,
	)

	header := fmt.Sprintf(
		"HTTP/1.1 %d %s\r\nContent-Length: %d\r\nConnection: close\r\nContent-Type: text/html\r\nDate: %s\r\n\r\n",
		code, reason, len(body), now.UTC().Format(http.TimeFormat),
	)

	return []byte(header + body)
}
