// Package apperr holds the client-visible error type shared by the ingest and submit paths.
package apperr

import (
	"errors"
	"fmt"
)

// Stable codes returned to API callers.
const (
	CodeNoFiles           = "NO_FILES_UPLOADED"
	CodeOnlyOneFile       = "ONLY_ONE_FILE_ALLOWED"
	CodeNotCSV            = "FILE_MUST_BE_CSV"
	CodeInvalidCSV        = "INVALID_CSV_CONTENT"
	CodeNoValidSKUData    = "NO_VALID_SKU_DATA"
	CodeInvalidWebhookURL = "INVALID_WEBHOOK_URL"
)

// ValidationError rejects a submission before anything is persisted.
type ValidationError struct {
	Code    string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

func Validation(code, message string, cause error) *ValidationError {
	return &ValidationError{Code: code, Message: message, Cause: cause}
}

// AsValidation unwraps err to a *ValidationError if there is one in the chain.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
