package qglib

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

// InvalidValueError is returned when a Value is used before Init was called
// on it, or after it was unset.
type InvalidValueError struct{}

func (e InvalidValueError) Error() string {
	return "value is not initialized"
}

// InvalidTypeError is returned when the type of a Value and the type of the
// Go data going in or out of it are not compatible and no transformation
// exists between them.
type InvalidTypeError struct {
	Requested Type
	Held      Type
}

func (e InvalidTypeError) Error() string {
	return fmt.Sprintf("type %s is not compatible with value type %s", e.Requested, e.Held)
}

// UnregisteredTypeError is returned when no ValueVTable is registered for a
// type or any of its ancestors, or when a Go type has no type mapping.
type UnregisteredTypeError struct {
	Type   Type
	GoType reflect.Type
}

func (e UnregisteredTypeError) Error() string {
	if e.GoType != nil {
		return fmt.Sprintf("Go type %s is not registered with a value type", e.GoType)
	}
	return fmt.Sprintf("no value vtable registered for type %s", e.Type)
}

// TransformationFailedError is returned when a transform function exists for
// two types but failed to convert the value.
type TransformationFailedError struct {
	From  Type
	To    Type
	Cause error
}

func (e TransformationFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to transform value of type %s to %s: %s", e.From, e.To, e.Cause)
	}
	return fmt.Sprintf("failed to transform value of type %s to %s", e.From, e.To)
}

func (e TransformationFailedError) Unwrap() error {
	return e.Cause
}

// ArityError is returned when a callable expects more arguments than there
// are values available.
type ArityError struct {
	Want int
	Have int
}

func (e ArityError) Error() string {
	return fmt.Sprintf("callable expects %d arguments, only %d values available", e.Want, e.Have)
}

// SignalResolutionError describes why a signal could not be resolved, used
// or emitted on an instance.
type SignalResolutionError struct {
	Signal string
	Type   Type
	Reason string
}

func (e SignalResolutionError) Error() string {
	return fmt.Sprintf("signal %q on type %s: %s", e.Signal, e.Type, e.Reason)
}

func (e *engine) warnResolution(signal string, t Type, format string, args ...any) {
	e.logger.Warn(SignalResolutionError{
		Signal: signal,
		Type:   t,
		Reason: fmt.Sprintf(format, args...),
	}.Error())
}

// panicError turns a recovered panic into an error with a stack trace.
func panicError(r any) error {
	if err, ok := r.(error); ok {
		return errors.WithStack(err)
	}
	return errors.Errorf("panic: %v", r)
}
