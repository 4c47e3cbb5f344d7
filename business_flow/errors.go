// Package businessflow contains the core business logic and use cases of the API
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Generic
	ErrValidation      = errors.New("validation failed")
	ErrUnauthenticated = errors.New("authentication required")
	ErrForbidden       = errors.New("permission denied")
	ErrNotFound        = errors.New("not found")

	// Users
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailAlreadyExists  = errors.New("email already exists")
	ErrCaptchaInvalid      = errors.New("captcha verification failed")
	ErrSuperuserProtected  = errors.New("superusers cannot be modified this way")
	ErrCannotDeleteSelf    = errors.New("users cannot delete themselves")
	ErrImpersonateInactive = errors.New("cannot impersonate an inactive user")
	ErrMFASessionInvalid   = errors.New("invalid login challenge")
	ErrOTPInvalid          = errors.New("invalid verification code")
	ErrOTPExpired          = errors.New("verification code expired")
	ErrOTPAttemptsExceeded = errors.New("verification attempts exceeded")

	// Roles
	ErrRoleNotFound        = errors.New("role not found")
	ErrRoleAlreadyExists   = errors.New("role already exists")
	ErrUnknownCapabilities = errors.New("unknown capabilities")

	// Brand safety lists
	ErrCategoryNotFound       = errors.New("bad word category not found")
	ErrCategoryAlreadyExists  = errors.New("bad word category already exists")
	ErrBadWordNotFound        = errors.New("bad word not found")
	ErrDuplicateBadWord       = errors.New("bad word already exists")
	ErrBlocklistItemNotFound  = errors.New("blocklist item not found")
	ErrDuplicateBlocklistItem = errors.New("blocklist item already exists")

	// Segments
	ErrSegmentNotFound       = errors.New("segment not found")
	ErrDuplicateSegmentTitle = errors.New("segment title already exists")

	// Ads analyzer
	ErrOpportunityNotFound = errors.New("opportunity not found")
	ErrInvalidDateRange    = errors.New("date_from cannot be after date_to")
	ErrReportNotFound      = errors.New("targeting report not found")

	// Payments
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPaymentProcessor     = errors.New("payment processor rejected the request")
	ErrInvalidWebhook       = errors.New("invalid webhook")
	ErrSubscriptionNotFound = errors.New("subscription not found")

	// White label
	ErrDomainConfigNotFound = errors.New("domain config not found")
	ErrDuplicateDomain      = errors.New("domain config already exists")

	// Upstream
	ErrSearchUnavailable = errors.New("search index is unavailable")
)

// BusinessError carries a stable code and a client-facing message.
// Err is one of the sentinels above so handlers can pick the HTTP status with errors.Is.
type BusinessError struct {
	Code    string
	Message string
	Err     error
	Details any
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

// ValidationError is a 400 with a message shown verbatim to the client
func ValidationError(message string, args ...any) *BusinessError {
	return NewBusinessErrorf("VALIDATION_ERROR", message, ErrValidation, args...)
}

// FieldError names one invalid request field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldValidationError is a 400 listing every invalid field
func FieldValidationError(fields []FieldError) *BusinessError {
	return &BusinessError{
		Code:    "VALIDATION_ERROR",
		Message: "Request validation failed",
		Err:     ErrValidation,
		Details: fields,
	}
}

func forbidden(message string) *BusinessError {
	return NewBusinessError("FORBIDDEN", message, ErrForbidden)
}

func notFound(code, message string, sentinel error) *BusinessError {
	return NewBusinessError(code, message, sentinel)
}

// internal wraps an unexpected failure; the cause is logged, never shown
func internal(code, message string, err error) *BusinessError {
	return NewBusinessError(code, message, err)
}

// asBusinessError passes business errors through and wraps anything else as internal
func asBusinessError(err error, code, message string) error {
	var be *BusinessError
	if errors.As(err, &be) {
		return be
	}
	return internal(code, message, err)
}

func joinErr(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return errors.Join(sentinel, cause)
}
