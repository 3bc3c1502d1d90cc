package literal

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrUnsupported is wrapped by every literal-mode failure.
	ErrUnsupported = errors.New("no literal form")

	// ErrSerializationUnsupported is wrapped by every blob-mode failure.
	ErrSerializationUnsupported = errors.New("not serializable")
)

// UnsupportedError names the runtime type that could not be written as a literal.
type UnsupportedError struct {
	Type   string
	Reason string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("can't convert value of type %s to a literal: %s", e.Type, e.Reason)
}

func (e *UnsupportedError) Unwrap() error {
	return ErrUnsupported
}

func unsupported(t reflect.Type, format string, args ...any) error {
	return &UnsupportedError{Type: typeString(t), Reason: fmt.Sprintf(format, args...)}
}

// SerializationError names the type that could not be gob encoded.
type SerializationError struct {
	Type   string
	Reason string
	Err    error
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("can't serialize value of type %s: %s: %v", e.Type, e.Reason, e.Err)
	}
	return fmt.Sprintf("can't serialize value of type %s: %s", e.Type, e.Reason)
}

func (e *SerializationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrSerializationUnsupported, e.Err}
	}
	return []error{ErrSerializationUnsupported}
}

func typeString(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}
