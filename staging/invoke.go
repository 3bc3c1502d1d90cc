package staging

import (
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"

	"github.com/roach88/bake/internal/diag"
)

var errorType = reflect.TypeFor[error]()

// ShapeError reports a member that can't be evaluated. Code is one of the
// diag reflection codes.
type ShapeError struct {
	Key     string
	Code    string
	Message string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Message)
}

// Validate checks that the member can be invoked with no arguments and that
// its results are (), (T) or (T, error). Checks run in that order: static,
// parameters, generics, results.
func (m *Member) Validate() error {
	if !m.Static {
		return &ShapeError{Key: m.Key, Code: diag.CodeNonStatic, Message: "method or variable must be static"}
	}
	params := m.params
	if m.fn.IsValid() && m.Kind != KindMethod {
		params = m.fn.Type().NumIn()
	}
	if params > 0 {
		return &ShapeError{Key: m.Key, Code: diag.CodeParameterized,
			Message: fmt.Sprintf("method must not declare parameters, found %d", params)}
	}
	if m.Generic {
		return &ShapeError{Key: m.Key, Code: diag.CodeGeneric, Message: "method must not be generic"}
	}
	if m.Kind == KindVar {
		return nil
	}
	switch t := m.fn.Type(); {
	case t.NumOut() <= 1:
	case t.NumOut() == 2 && t.Out(1) == errorType:
	default:
		return &ShapeError{Key: m.Key, Code: diag.CodeResultShape,
			Message: fmt.Sprintf("results must be (), (T) or (T, error), found %s", resultList(t))}
	}
	return nil
}

// Void reports whether the member produces no value.
func (m *Member) Void() bool {
	return m.Kind != KindVar && m.fn.IsValid() && m.fn.Type().NumOut() == 0
}

// Invoke calls a validated member once. A variable is read instead; its
// initialiser already ran during package initialisation. Panics and
// returned errors come back as a *Fault.
func (m *Member) Invoke() (v reflect.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &Fault{Key: m.Key, Message: fmt.Sprintf("panic: %v", p), Stack: string(debug.Stack())}
		}
	}()

	if m.Kind == KindVar {
		return m.ptr.Elem(), nil
	}
	out := m.fn.Call(nil)
	switch len(out) {
	case 0:
		return reflect.Value{}, nil
	case 2:
		if e, _ := out[1].Interface().(error); e != nil {
			return reflect.Value{}, &Fault{Key: m.Key, Message: e.Error()}
		}
	}
	return out[0], nil
}

func resultList(t reflect.Type) string {
	s := "("
	for i := 0; i < t.NumOut(); i++ {
		if i > 0 {
			s += ", "
		}
		s += t.Out(i).String()
	}
	return s + ")"
}

// IsFault reports whether err came from user code.
func IsFault(err error) bool {
	var f *Fault
	return errors.As(err, &f)
}
