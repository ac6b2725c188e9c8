package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ats/transfer-service/internal/domain"
)

// Error codes returned in the error envelope.
const (
	CodeMissingFields  = "MISSING_FIELDS"
	CodeInvalidField   = "INVALID_FIELD"
	CodeInvalidStatus  = "INVALID_STATUS"
	CodeInvalidState   = "INVALID_STATE"
	CodeInvalidPayload = "INVALID_PAYLOAD"
)

var (
	ErrNoCarriersConfigured = errors.New("no carriers configured")
	ErrIllegalTransition    = errors.New("transition rejected by policy")
)

// ValidationError is a client input error reported as 400.
type ValidationError struct {
	Code    string
	Message string
	Fields  []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func missingFieldsError(fields []string) *ValidationError {
	return &ValidationError{
		Code:    CodeMissingFields,
		Message: fmt.Sprintf("Missing required fields: %s", strings.Join(fields, ", ")),
		Fields:  fields,
	}
}

func invalidFieldError(field, message string) *ValidationError {
	return &ValidationError{
		Code:    CodeInvalidField,
		Message: message,
		Fields:  []string{field},
	}
}

func invalidStatusError(status domain.CarrierStatus) *ValidationError {
	return &ValidationError{
		Code: CodeInvalidStatus,
		Message: fmt.Sprintf("Invalid status '%s'. Must be one of: %s",
			status, strings.Join(domain.CarrierStatusNames(), ", ")),
		Fields: []string{"status"},
	}
}

// ForwardError is returned when every carrier rejected or could not be reached.
// StatusCode and Body are the first configured carrier's response, verbatim.
type ForwardError struct {
	CarrierID  string
	StatusCode int
	Body       []byte
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("all carriers failed; first failure %s returned %d", e.CarrierID, e.StatusCode)
}
