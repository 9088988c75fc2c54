package capture

import (
	"errors"
	"fmt"
)

// RuntimeError tags an error with the runtime kind it was raised as.
// Errors without a kind are always subject to remote capture; errors with
// one are captured only when the kind is part of the handled mask.
type RuntimeError struct {
	Kind Mask
	Err  error
}

func (e *RuntimeError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return e.Err.Error()
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// WithKind wraps err as a RuntimeError of the given kind. A nil err stays nil.
func WithKind(err error, kind Mask) error {
	if err == nil {
		return nil
	}
	return &RuntimeError{Kind: kind, Err: err}
}

// Errorf is fmt.Errorf followed by WithKind.
func Errorf(kind Mask, format string, args ...any) error {
	return WithKind(fmt.Errorf(format, args...), kind)
}

type kinder interface {
	Kind() Mask
}

// KindOf returns the kind carried anywhere in err's chain.
func KindOf(err error) (Mask, bool) {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Kind, true
	}

	var k kinder
	if errors.As(err, &k) {
		return k.Kind(), true
	}

	return 0, false
}
