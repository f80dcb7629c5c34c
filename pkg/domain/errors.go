package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is a stable machine-readable identifier for structural errors.
type ErrorCode string

// Structural error codes.
const (
	CodeFormat        ErrorCode = "format_error"
	CodeDuplicateCode ErrorCode = "duplicate_code"
	CodeConflict      ErrorCode = "conflict"
	CodeNotFound      ErrorCode = "not_found"
	CodeInvalidCode   ErrorCode = "invalid_code"
	CodeUnknown       ErrorCode = "unknown"
)

// FormatError reports an input document that cannot be loaded.
type FormatError struct {
	Reason string
	Err    error
}

func (e FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format error: %s: %v", e.Reason, e.Err)
	}
	return "format error: " + e.Reason
}

func (e FormatError) Unwrap() error { return e.Err }

// ErrorCode implements the coded error contract.
func (e FormatError) ErrorCode() ErrorCode { return CodeFormat }

// DuplicateCodeError reports a creation that would collide with an existing
// code of the same kind.
type DuplicateCodeError struct {
	Kind EntityType
	Code string
}

func (e DuplicateCodeError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Kind, e.Code)
}

// ErrorCode implements the coded error contract.
func (e DuplicateCodeError) ErrorCode() ErrorCode { return CodeDuplicateCode }

// ConflictError reports a rename whose target code already identifies a
// different entity.
type ConflictError struct {
	Kind    EntityType
	Code    string
	NewCode string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("cannot rename %s %q to %q: code already in use", e.Kind, e.Code, e.NewCode)
}

// ErrorCode implements the coded error contract.
func (e ConflictError) ErrorCode() ErrorCode { return CodeConflict }

// NotFoundError reports a missing entity or reference record.
type NotFoundError struct {
	Kind EntityType
	Code string
	// Relation and Child are set when a reference record was not found.
	Relation Relation
	Child    string
}

func (e NotFoundError) Error() string {
	if e.Relation != "" {
		return fmt.Sprintf("%s %q has no %s entry for %q", e.Kind, e.Code, e.Relation, e.Child)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.Code)
}

// ErrorCode implements the coded error contract.
func (e NotFoundError) ErrorCode() ErrorCode { return CodeNotFound }

// InvalidCodeError reports an empty code or an unknown kind.
type InvalidCodeError struct {
	Kind   EntityType
	Reason string
}

func (e InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid %s code: %s", e.Kind, e.Reason)
}

// ErrorCode implements the coded error contract.
func (e InvalidCodeError) ErrorCode() ErrorCode { return CodeInvalidCode }

// CodeOf extracts the ErrorCode carried anywhere in err's chain.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded interface{ ErrorCode() ErrorCode }
	if errors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return CodeUnknown
}
