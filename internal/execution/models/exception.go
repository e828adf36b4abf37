package models

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

const (
	// ExceptionTypeCanceled is the type name of a cancellation failure.
	ExceptionTypeCanceled = "TaskCanceled"

	// ExceptionTypeTimeout is the type name of a deadline failure.
	ExceptionTypeTimeout = "Timeout"

	// ExceptionTypePanic is the type name of a recovered panic.
	ExceptionTypePanic = "panic"

	// maxInnerDepth bounds the unwrapped chain kept in an Exception.
	maxInnerDepth = 8
)

// Exception is the closed descriptor of an error that crossed the process
// boundary. It is reconstructed as data on the receiving side, the original
// Go type is not.
type Exception struct {
	Type    string     `json:"type"`
	Message string     `json:"message"`
	Inner   *Exception `json:"inner,omitempty"`
}

var _ error = (*Exception)(nil)

// NewException describes err. Aggregates of exactly one error are flattened
// to that error first, and an Exception found in the chain is returned as-is.
func NewException(err error) *Exception {
	if err == nil {
		return nil
	}

	return describe(flatten(err), 0)
}

// Errorf creates an exception with the given type name.
func Errorf(typeName string, format string, args ...any) *Exception {
	return &Exception{
		Type:    typeName,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Type
	}

	return e.Type + ": " + e.Message
}

// Unwrap returns the inner exception, if any.
func (e *Exception) Unwrap() error {
	if e.Inner == nil {
		return nil
	}

	return e.Inner
}

// ExceptionType implements TypedError.
func (e *Exception) ExceptionType() string {
	return e.Type
}

// TypedError is implemented by errors that name their own exception type.
type TypedError interface {
	error
	ExceptionType() string
}

// MARK: - helpers

func flatten(err error) error {
	for {
		multi, ok := err.(interface{ Unwrap() []error })
		if !ok {
			return err
		}

		errs := multi.Unwrap()
		if len(errs) != 1 || errs[0] == nil {
			return err
		}

		err = errs[0]
	}
}

func describe(err error, depth int) *Exception {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc
	}

	res := &Exception{
		Type:    typeName(err),
		Message: err.Error(),
	}

	if depth >= maxInnerDepth {
		return res
	}

	if inner := errors.Unwrap(err); inner != nil {
		res.Inner = describe(flatten(inner), depth+1)
	}

	return res
}

func typeName(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return ExceptionTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ExceptionTypeTimeout
	}

	var typed TypedError
	if errors.As(err, &typed) {
		return typed.ExceptionType()
	}

	return strings.TrimLeft(reflect.TypeOf(err).String(), "*")
}
