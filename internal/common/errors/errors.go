// Package errors provides the standardized error model shared by the NLU
// stages and the route-utterance worker.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Core taxonomy. These never escape a pipeline stage; they are carried in
// stage results, logs and metrics.
const (
	ErrCodeExtractionFailed    ErrorCode = "EXTRACTION_FAILED"
	ErrCodeNormalizationFailed ErrorCode = "NORMALIZATION_FAILED"
	ErrCodeContractViolation   ErrorCode = "CONTRACT_VIOLATION"
	ErrCodeUnregisteredIntent  ErrorCode = "UNREGISTERED_INTENT"
)

// Host surface: model collaborator, dispatch, job input and static config.
const (
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeModelTimeout     ErrorCode = "MODEL_TIMEOUT"
	ErrCodeGenerationFailed ErrorCode = "GENERATION_FAILED"
	ErrCodeDispatchFailed   ErrorCode = "DISPATCH_FAILED"
	ErrCodeCatalogInvalid   ErrorCode = "CATALOG_INVALID"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeTimeout         ErrorCode = "TIMEOUT_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
}

// Unwrap exposes the underlying cause, if any, to errors.Is / errors.As.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// Is matches any StandardError carrying the same code, so callers can
// compare against a template such as &StandardError{Code: ErrCodeModelTimeout}.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// BPMNError represents an error thrown back to the Zeebe process.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for job fail/throw variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// NewExtractionFailedError reports that no structured record could be
// recovered from generated text.
func NewExtractionFailedError(details string, cause error) *StandardError {
	return newError(ErrCodeExtractionFailed, "No structured record could be recovered", details, false, cause)
}

// NewNormalizationFailedError reports a parsed record whose shape cannot
// be mapped onto a result.
func NewNormalizationFailedError(details string) *StandardError {
	return newError(ErrCodeNormalizationFailed, "Record could not be normalized", details, false, nil)
}

func NewContractViolationError(intent string, missing []string) *StandardError {
	return newError(ErrCodeContractViolation, "Required entities missing",
		fmt.Sprintf("intent: %s, missing: %s", intent, strings.Join(missing, ",")), false, nil)
}

func NewUnregisteredIntentError(intent string) *StandardError {
	return newError(ErrCodeUnregisteredIntent, "Intent is not in the catalog",
		fmt.Sprintf("intent: %s", intent), false, nil)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", details, false, nil)
}

func NewModelTimeoutError(err error) *StandardError {
	details := "model call exceeded its deadline"
	if err != nil {
		details = err.Error()
	}
	return newError(ErrCodeModelTimeout, "Model inference timeout", details, true, err)
}

func NewGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Model inference failed", err.Error(), true, err)
}

func NewDispatchFailedError(target string, err error) *StandardError {
	return newError(ErrCodeDispatchFailed, "Decision dispatch failed",
		fmt.Sprintf("target: %s, error: %s", target, err.Error()), true, err)
}

func NewCatalogInvalidError(details string) *StandardError {
	return newError(ErrCodeCatalogInvalid, "Intent catalog is invalid", details, false, nil)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true, err)
}

func NewTimeoutError(service string, err error) *StandardError {
	return newError(ErrCodeTimeout, fmt.Sprintf("Service '%s' timeout", service), err.Error(), true, err)
}

// BPMNErrorMapping maps internal codes onto the error codes modelled in
// the BPMN boundary events.
var BPMNErrorMapping = map[ErrorCode]string{
	ErrCodeInvalidInput:     "NLU_INVALID_INPUT",
	ErrCodeModelTimeout:     "NLU_MODEL_TIMEOUT",
	ErrCodeGenerationFailed: "NLU_GENERATION_FAILED",
	ErrCodeDispatchFailed:   "NLU_DISPATCH_FAILED",
	ErrCodeCatalogInvalid:   "NLU_CATALOG_INVALID",
}

// GetRetryCount returns how many job retries a code is worth.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeGenerationFailed, ErrCodeDispatchFailed, ErrCodeExternalService:
		return 3
	case ErrCodeModelTimeout, ErrCodeTimeout:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError builds the BPMN representation of stdErr.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	bpmnCode, exists := BPMNErrorMapping[stdErr.Code]
	if !exists {
		bpmnCode = string(stdErr.Code)
	}

	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      bpmnCode,
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// GetErrorCategory groups codes for logging.
func GetErrorCategory(code ErrorCode) string {
	switch code {
	case ErrCodeExtractionFailed, ErrCodeNormalizationFailed:
		return "RECOVERY"
	case ErrCodeContractViolation, ErrCodeUnregisteredIntent:
		return "CONTRACT"
	case ErrCodeModelTimeout, ErrCodeGenerationFailed:
		return "MODEL"
	case ErrCodeDispatchFailed:
		return "DISPATCH"
	case ErrCodeInvalidInput, ErrCodeCatalogInvalid:
		return "VALIDATION"
	default:
		return "OTHER"
	}
}

// CodeOf returns the code of err if it is (or wraps) a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}

// Is and As forward to the standard library so callers importing this
// package under its own name do not need a second import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}
