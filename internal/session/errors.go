package session

import (
	"errors"
	"fmt"

	"github.com/shehryarbajwa/chrome-keepalive/internal/records"
)

// ErrSinglePageRequired is the panic value when localStorage is restored
// without a single-page target.
var ErrSinglePageRequired = errors.New("localStorage restore requires a single-page target")

// ErrNotRunning is returned by SaveNow once the loop has stopped
var ErrNotRunning = errors.New("session loop is not running")

// Kind classifies why a persistence operation failed
type Kind int

const (
	KindStore Kind = iota
	KindMalformed
	KindBrowser
)

func (k Kind) String() string {
	switch k {
	case KindStore:
		return "store"
	case KindMalformed:
		return "malformed"
	case KindBrowser:
		return "browser"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// OpError is the failure of one load or save operation
type OpError struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", e.Op, e.Kind, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// browserError marks errors that came from the browser rather than the store
type browserError struct {
	err error
}

func (e browserError) Error() string { return e.err.Error() }
func (e browserError) Unwrap() error { return e.err }

func fromBrowser(err error) error {
	if err == nil {
		return nil
	}
	return browserError{err: err}
}

func newOpError(op string, err error) *OpError {
	kind := KindStore
	var be browserError
	switch {
	case errors.As(err, &be):
		kind = KindBrowser
	case errors.Is(err, records.ErrMalformedRecord):
		kind = KindMalformed
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}
