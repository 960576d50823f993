package apperrors

import "errors"

// =============================================================================
// Error Codes
// =============================================================================

type ErrorCode string

const (
	ErrorCodeInternalError       ErrorCode = "INTERNAL_ERROR"
	ErrorCodeValidationError     ErrorCode = "VALIDATION_ERROR"
	ErrorCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrorCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrorCodeForbidden           ErrorCode = "FORBIDDEN"
	ErrorCodeConflict            ErrorCode = "CONFLICT"
	ErrorCodeDeviceNotFound      ErrorCode = "DEVICE_NOT_FOUND"
	ErrorCodeDeviceOffline       ErrorCode = "DEVICE_OFFLINE"
	ErrorCodePresetNotFound      ErrorCode = "PRESET_NOT_FOUND"
	ErrorCodePresetNotStorable   ErrorCode = "PRESET_NOT_STORABLE"
	ErrorCodePresetPersistence   ErrorCode = "PRESET_PERSISTENCE_FAILED"
	ErrorCodeModeUnavailable     ErrorCode = "MODE_UNAVAILABLE"
	ErrorCodeCapabilityMissing   ErrorCode = "CAPABILITY_UNAVAILABLE"
	ErrorCodeNothingPlaying      ErrorCode = "NOTHING_PLAYING"
	ErrorCodeZoneConflict        ErrorCode = "ZONE_CONFLICT"
	ErrorCodeInvalidCommand      ErrorCode = "INVALID_COMMAND"
	ErrorCodeInvalidEventType    ErrorCode = "INVALID_EVENT_TYPE"
	ErrorCodeAuthTokenExpired    ErrorCode = "AUTH_TOKEN_EXPIRED"
	ErrorCodeAuthTokenInvalid    ErrorCode = "AUTH_TOKEN_INVALID"
	ErrorCodeTestModeUnavailable ErrorCode = "TEST_MODE_UNAVAILABLE"
)

// =============================================================================
// Stripe API Error Types
// =============================================================================

// ErrorType categorizes errors following Stripe API conventions.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates invalid parameters, missing required fields, etc.
	ErrorTypeInvalidRequest ErrorType = "invalid_request_error"
	// ErrorTypeAPIError indicates an internal API error.
	ErrorTypeAPIError ErrorType = "api_error"
	// ErrorTypeAuthError indicates authentication or authorization failure.
	ErrorTypeAuthError ErrorType = "authentication_error"
)

// StripeErrorBody is the Stripe-style error payload.
// Format: {"type": "invalid_request_error", "code": "NOT_FOUND", "message": "..."}
type StripeErrorBody struct {
	Type    ErrorType      `json:"type"`
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// AppError is the base error type for HTTP responses.
type AppError struct {
	Code       ErrorCode
	Message    string
	StatusCode int
	Details    map[string]any
	Err        error
}

func (err *AppError) Error() string {
	return err.Message
}

// Unwrap returns the domain error the AppError was built from.
func (err *AppError) Unwrap() error {
	return err.Err
}

// StripeErrorBody returns the error in Stripe API format.
func (err *AppError) StripeErrorBody() StripeErrorBody {
	errType := ErrorTypeAPIError
	switch {
	case err.StatusCode == 401 || err.StatusCode == 403:
		errType = ErrorTypeAuthError
	case err.StatusCode >= 400 && err.StatusCode < 500:
		errType = ErrorTypeInvalidRequest
	}

	return StripeErrorBody{
		Type:    errType,
		Code:    string(err.Code),
		Message: err.Message,
		Details: err.Details,
	}
}

func NewAppError(code ErrorCode, message string, statusCode int, details map[string]any) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Details:    details,
	}
}

// Wrap attaches the causing error to an AppError.
func (err *AppError) Wrap(cause error) *AppError {
	err.Err = cause
	return err
}

func NewValidationError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeValidationError, message, 400, details)
}

func NewUnauthorizedError(message string, code ...ErrorCode) *AppError {
	errCode := ErrorCodeUnauthorized
	if len(code) > 0 {
		errCode = code[0]
	}
	return NewAppError(errCode, message, 401, nil)
}

func NewForbiddenError(message string) *AppError {
	return NewAppError(ErrorCodeForbidden, message, 403, nil)
}

func NewNotFoundError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeNotFound, message, 404, details)
}

func NewNotFoundResource(resource, id string) *AppError {
	message := resource + " not found"
	details := map[string]any{
		"resource": resource,
	}
	if id != "" {
		message = resource + " not found: " + id
		details["id"] = id
	}
	return NewAppError(ErrorCodeNotFound, message, 404, details)
}

func NewConflictError(message string, details map[string]any) *AppError {
	return NewAppError(ErrorCodeConflict, message, 409, details)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorCodeInternalError, message, 500, nil)
}

// EnsureAppError converts an arbitrary error into an AppError.
func EnsureAppError(err error) *AppError {
	if err == nil {
		return NewInternalError("Unknown error")
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("Internal server error").Wrap(err)
}
