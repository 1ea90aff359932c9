package store

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeDuplicateKey indicates a store key was registered twice.
	ErrCodeDuplicateKey ErrorCode = "DUPLICATE_KEY"

	// ErrCodeInvalidDefinition indicates a definition is missing its key or
	// state function, or its state function returned no usable record.
	ErrCodeInvalidDefinition ErrorCode = "INVALID_DEFINITION"

	// ErrCodePluginInit indicates a plugin's InitState failed.
	ErrCodePluginInit ErrorCode = "PLUGIN_INIT"

	// ErrCodeInstantiate indicates any other failure while building an
	// instance, such as a panicking state function.
	ErrCodeInstantiate ErrorCode = "INSTANTIATE"

	// ErrCodeUnknownField indicates a write to a field outside the schema.
	ErrCodeUnknownField ErrorCode = "UNKNOWN_FIELD"

	// ErrCodeUnknownGetter indicates a read of an undeclared getter.
	ErrCodeUnknownGetter ErrorCode = "UNKNOWN_GETTER"

	// ErrCodeUnknownAction indicates a dispatch of an undeclared action.
	ErrCodeUnknownAction ErrorCode = "UNKNOWN_ACTION"
)

// Error is the structured error returned by this package.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Key is the affected store key.
	Key string

	// Name is the field, getter or action involved, if any.
	Name string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		if msg == "" {
			msg = e.Err.Error()
		} else {
			msg = msg + ": " + e.Err.Error()
		}
	}
	switch {
	case e.Key != "" && e.Name != "":
		return fmt.Sprintf("%s: %s (store=%s, name=%s)", e.Code, msg, e.Key, e.Name)
	case e.Key != "":
		return fmt.Sprintf("%s: %s (store=%s)", e.Code, msg, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsDuplicateKey reports whether err is a duplicate registration.
func IsDuplicateKey(err error) bool {
	return hasCode(err, ErrCodeDuplicateKey)
}

// IsPluginInit reports whether err came from a plugin's InitState.
func IsPluginInit(err error) bool {
	return hasCode(err, ErrCodePluginInit)
}

// IsUnknownField reports whether err is a write to an undeclared field.
func IsUnknownField(err error) bool {
	return hasCode(err, ErrCodeUnknownField)
}
