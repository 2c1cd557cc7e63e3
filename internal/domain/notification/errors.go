// internal/domain/notification/errors.go
package notification

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("planned message not found")
	ErrEventNotFound     = errors.New("settlement event not found")
	ErrInconsistentState = errors.New("planned message is both sent and cancelled")
	ErrUnknownEventType  = errors.New("unknown event type")
	ErrUnknownTopic      = errors.New("unknown topic")
)

// Kind tells a consumption loop which policy applies to a failure.
type Kind int

const (
	// KindTransient failures leave the event unprocessed so it is delivered again.
	KindTransient Kind = iota
	// KindFatal failures are defects or configuration errors; the loop stops.
	KindFatal
	// KindBusiness failures were reported by the legacy system and are not retried.
	KindBusiness
)

func (k Kind) String() string {
	switch k {
	case KindFatal:
		return "fatal"
	case KindBusiness:
		return "business"
	default:
		return "transient"
	}
}

// Error attaches a Kind to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func Fatal(op string, err error) error {
	return &Error{Kind: KindFatal, Op: op, Err: err}
}

func Business(op string, err error) error {
	return &Error{Kind: KindBusiness, Op: op, Err: err}
}

// KindOf returns the kind of err. Errors that carry no kind, and nil, are transient.
// A wrapped error implementing Fatal() bool is also treated as fatal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var f interface{ Fatal() bool }
	if errors.As(err, &f) && f.Fatal() {
		return KindFatal
	}
	return KindTransient
}

func IsFatal(err error) bool { return err != nil && KindOf(err) == KindFatal }
