package model

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable machine-readable classification carried on every
// terminal error the pipeline can return.
type ErrorCode string

const (
	CodeInputInvalid               ErrorCode = "INPUT_INVALID"
	CodeIntentUnparseable          ErrorCode = "INTENT_UNPARSEABLE"
	CodePlanInvalid                ErrorCode = "PLAN_INVALID"
	CodeEmbeddingUnavailable       ErrorCode = "EMBEDDING_UNAVAILABLE"
	CodeEmbeddingDimensionMismatch ErrorCode = "EMBEDDING_DIMENSION_MISMATCH"
	CodeVectorStoreError           ErrorCode = "VECTOR_STORE_ERROR"
	CodeDocumentStoreError         ErrorCode = "DOCUMENT_STORE_ERROR"
	CodeTimeout                    ErrorCode = "TIMEOUT"
	CodePartialFailure             ErrorCode = "PARTIAL_FAILURE"
	CodeFatalConfig                ErrorCode = "FATAL_CONFIG"
)

// StoreErrorKind subdivides vector- and document-store failures.
type StoreErrorKind string

const (
	StoreTransport      StoreErrorKind = "transport"
	StoreNotFound       StoreErrorKind = "not_found"
	StoreSchemaMismatch StoreErrorKind = "schema_mismatch"
)

// Error is the typed error used across the pipeline. Component and
// Operation identify the failing stage; Code classifies it for callers.
type Error struct {
	Code      ErrorCode
	Component string
	Operation string
	Message   string
	Kind      StoreErrorKind
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Component, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Component, e.Operation, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a classified pipeline error.
func NewError(code ErrorCode, component, operation, message string, err error) *Error {
	return &Error{
		Code:      code,
		Component: component,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// NewStoreError builds a store error with its transport/not-found/schema
// subdivision.
func NewStoreError(code ErrorCode, kind StoreErrorKind, component, operation, message string, err error) *Error {
	e := NewError(code, component, operation, message, err)
	e.Kind = kind
	return e
}

// CodeOf extracts the classification from err, or empty when err is not a
// pipeline error.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether err carries the given classification.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}
