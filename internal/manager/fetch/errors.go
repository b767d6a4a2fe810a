package fetch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL       = errors.New("invalid fetch URL")
	ErrRobotsDisallowed = errors.New("disallowed by robots policy")
	ErrClientStatus     = errors.New("client error status")
	ErrServerStatus     = errors.New("server error status")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrBodyTooLarge     = errors.New("response body exceeds limit")

	// ErrPageBudgetExhausted is returned once a run has used its page budget.
	ErrPageBudgetExhausted = errors.New("page budget exhausted")
)

// FetchError reports a fetch that failed after all attempts.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s): %v", e.URL, e.StatusCode, e.Attempts, e.Err)
	}
	return fmt.Sprintf("fetch %s after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// statusError carries the HTTP status of a failed attempt.
type statusError struct {
	code int
	kind error
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%v: %d", e.kind, e.code)
}

func (e *statusError) Unwrap() error {
	return e.kind
}

// StatusCode extracts the HTTP status from a fetch error, 0 when there was none.
func StatusCode(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) && fe.StatusCode > 0 {
		return fe.StatusCode
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return 0
}
