package finance

import "fmt"

// Stable error codes the frontend switches on.
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeCredentials       = "CREDENTIALS_REQUIRED"
	CodeSystemDesign      = "SYSTEM_DESIGN_REQUIRED"
	CodeAPIError          = "LENDER_API_ERROR"
	CodeNotFound          = "APPLICATION_NOT_FOUND"
	CodeNetwork           = "NETWORK_ERROR"
	CodeUnsupportedLender = "UNSUPPORTED_LENDER"
	CodeDuplicate         = "DUPLICATE_APPLICATION"
)

// Error is the base type for everything the finance subsystem raises.
// StatusCode is the HTTP status the route layer should answer with;
// for APIError kinds it carries the lender's own status code.
type Error struct {
	Code       string         `json:"code"`
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"error"`
	Field      string         `json:"field,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewValidationError reports malformed or missing input, tagged with the
// offending field. Raised before any network call.
func NewValidationError(field, message string) *Error {
	return &Error{Code: CodeValidation, StatusCode: 400, Message: message, Field: field}
}

// NewSystemDesignError is the domain-specific rejection for proposals that
// cannot produce a system design payload.
func NewSystemDesignError(message string) *Error {
	return &Error{Code: CodeSystemDesign, StatusCode: 400, Message: message}
}

// NewConfigError reports absent lender credentials. No network call was made.
func NewConfigError(message string) *Error {
	return &Error{Code: CodeCredentials, StatusCode: 500, Message: message}
}

// NewAPIError wraps a non-success response from the lender, carrying the
// lender's own status code.
func NewAPIError(statusCode int, message string, details map[string]any) *Error {
	if statusCode == 0 {
		statusCode = 500
	}
	return &Error{Code: CodeAPIError, StatusCode: statusCode, Message: message, Details: details}
}

// NewNotFoundError marks the lender's 404 as a distinct condition: callers
// differentiate "does not exist" from "exists but lender error".
func NewNotFoundError(id string) *Error {
	return &Error{
		Code:       CodeNotFound,
		StatusCode: 404,
		Message:    "application not found at lender",
		Details:    map[string]any{"applicationId": id},
	}
}

// NewNetworkError reports transport-level failure after retry exhaustion.
func NewNetworkError(url string, cause error) *Error {
	details := map[string]any{"url": url}
	if cause != nil {
		details["cause"] = cause.Error()
	}
	return &Error{Code: CodeNetwork, StatusCode: 503, Message: "lender unreachable", Details: details}
}

// NewUnsupportedLenderError is raised by the provider factory for unknown ids.
func NewUnsupportedLenderError(id string) *Error {
	return &Error{
		Code:       CodeUnsupportedLender,
		StatusCode: 400,
		Message:    fmt.Sprintf("unsupported lender: %s", id),
	}
}
