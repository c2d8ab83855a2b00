package reactorcrawl

import (
	"errors"
	"fmt"
)

// Sentinel errors for common engine failure modes, grounded on the
// teacher's internal/types/errors.go.
var (
	ErrClosed        = errors.New("engine has been closed")
	ErrPoolExhausted = errors.New("request handle pool exhausted")
	ErrInvalidURL    = errors.New("invalid URL")
	ErrNotStarted    = errors.New("engine has not been run yet")
)

// FetchError wraps a failed transfer, mirroring the source's
// process_curl failure branch ("Connection failure (<curl error>): <url>")
// and the teacher's FetchError.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("connection failure (%v): %s", e.Err, e.URL)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RequestLogLine renders the fixed wire-format line the request log
// stream carries for a failed transfer ("Connection failure (<err>):
// <url>"), matching the source's process_curl failure branch exactly
// (capitalized, distinct from Error()'s lowercase Go-idiomatic form).
func (e *FetchError) RequestLogLine() string {
	return fmt.Sprintf("Connection failure (%v): %s", e.Err, e.URL)
}

// ParseError wraps a failure to build a Document from a response body,
// mirroring the teacher's ParseError.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
