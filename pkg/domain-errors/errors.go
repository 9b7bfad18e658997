// Package errors defines the structured error type surfaced to callers.
//
// Every error carries a coarse Code (the taxonomy: validation, authorization,
// state conflict, infrastructure) and, for validation and state errors, a
// fine-grained Reason naming the exact rule that failed. Services construct
// these; handlers translate them to HTTP. Infrastructure facts (row missing,
// key taken) live in pkg/platform/sentinel and get wrapped into these at the
// service boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for transport mapping and caller retry policy.
type Code string

const (
	CodeValidation         Code = "validation"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal"
)

// Reason names the specific rule behind a validation or state-conflict error.
// The set mirrors the registry's on-record invariants; callers can branch on
// it without parsing messages.
type Reason string

const (
	ReasonNone Reason = ""

	// Creation validation.
	ReasonEmptyBatchID             Reason = "EmptyBatchId"
	ReasonBatchIDTooLong           Reason = "BatchIdTooLong"
	ReasonMetadataHashTooLong      Reason = "MetadataHashTooLong"
	ReasonInvalidDateRange         Reason = "InvalidDateRange"
	ReasonExpiredMedicine          Reason = "ExpiredMedicine"
	ReasonInvalidQuantity          Reason = "InvalidQuantity"
	ReasonInvalidMrp               Reason = "InvalidMrp"
	ReasonInvalidPhysicalCondition Reason = "InvalidPhysicalCondition"
	ReasonInvoiceDateInFuture      Reason = "InvoiceDateInFuture"
	ReasonFieldEmpty               Reason = "FieldEmpty"
	ReasonFieldTooLong             Reason = "FieldTooLong"
	ReasonInvalidDosageForm        Reason = "InvalidDosageForm"

	// Authorization.
	ReasonUnauthorizedManufacturer Reason = "UnauthorizedManufacturer"
	ReasonManufacturerNotVerified  Reason = "ManufacturerNotVerified"

	// State conflicts.
	ReasonInvalidBatchStatus   Reason = "InvalidBatchStatus"
	ReasonBatchAlreadyRecalled Reason = "BatchAlreadyRecalled"
	ReasonRecordExists         Reason = "RecordExists"
)

// Error is the structured kind+message error reported to callers.
type Error struct {
	Code    Code
	Reason  Reason
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches two domain errors by code, reason, and message so that
// errors.Is works against independently constructed sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Reason == t.Reason && e.Message == t.Message
}

// New builds an error with a code and message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// NewWithReason builds an error carrying the specific failed rule.
func NewWithReason(code Code, reason Reason, message string) error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// Wrap attaches a code and message to an underlying error, preserving the
// chain for errors.Is / errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (anywhere in its chain) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is a readability alias for HasCode.
func Is(err error, code Code) bool { return HasCode(err, code) }

// HasReason reports whether err carries the given reason.
func HasReason(err error, reason Reason) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason == reason
	}
	return false
}

// CodeOf extracts the code from err. Errors outside this taxonomy read as
// internal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the caller-facing message from err, without the cause
// chain New/Wrap may have attached.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// ReasonOf extracts the reason from err, or ReasonNone.
func ReasonOf(err error) Reason {
	var de *Error
	if errors.As(err, &de) {
		return de.Reason
	}
	return ReasonNone
}

// ToHTTPStatus maps a code to the response status used by every handler.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation, CodeBadRequest, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvariantViolation:
		return http.StatusConflict
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
