package recommend

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an engine failure.
type Kind uint8

const (
	KindInternal Kind = iota
	KindLoad
	KindNotFound
	KindValidation
	KindEncode
)

func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindEncode:
		return "encode"
	default:
		return "internal"
	}
}

// Error is the typed failure returned at the engine boundary.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NotFoundError is returned when a query id does not resolve. SampleIDs
// holds up to MaxSampleIDs valid ids, never the unknown one.
type NotFoundError struct {
	QueryID   string
	Message   string
	SampleIDs []string
}

func (e *NotFoundError) Error() string { return e.Message }

// KindOf returns the Kind of err. Unclassified errors are internal.
func KindOf(err error) Kind {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return KindNotFound
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsRetryable reports whether retrying the same request may succeed. Only
// load failures are permanent; nothing else mutates shared state.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) != KindLoad
}

// PublicMessage returns the client-facing text for err. Validation and
// not-found messages carry their detail; every other kind gets a fixed
// message so backend addresses, driver errors and internal indices stay in
// the logs.
func PublicMessage(err error) string {
	var nf *NotFoundError
	if errors.As(err, &nf) {
		return nf.Message
	}

	switch KindOf(err) {
	case KindValidation:
		var e *Error
		if errors.As(err, &e) && e.Err != nil {
			return e.Err.Error()
		}
		return strings.TrimSpace(err.Error())
	case KindEncode:
		return "cold-start encoding failed, retry later"
	case KindLoad:
		return "recommendation model is not available"
	default:
		return "internal error"
	}
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
