// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"

	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/amirphl/viewiq/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/requestid"
)

// baseHandler carries the response helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	v := validator.New()
	// report json names so field errors match the request body
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return baseHandler{validator: v}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// bindJSON decodes and validates the request body; a non-nil error means the response was written
func (h *baseHandler) bindJSON(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().JSON(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	return h.validate(c, req)
}

func (h *baseHandler) bindQuery(c fiber.Ctx, req any) (bool, error) {
	if err := c.Bind().Query(req); err != nil {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_QUERY", err.Error())
	}
	return h.validate(c, req)
}

func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	err := h.validator.Struct(req)
	if err == nil {
		return true, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
	}
	details := make([]dto.FieldErrorDetail, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, dto.FieldErrorDetail{Field: fe.Field(), Message: getValidationErrorMessage(fe)})
	}
	return false, h.ErrorResponse(c, fiber.StatusBadRequest, details[0].Message, "VALIDATION_ERROR", details)
}

// paramID parses a positive numeric path parameter
func (h *baseHandler) paramID(c fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || id == 0 {
		return 0, h.ErrorResponse(c, fiber.StatusBadRequest, fmt.Sprintf("Invalid %s", name), "INVALID_ID", nil)
	}
	return uint(id), nil
}

// HandleError renders a business error with the status its sentinel maps to
func (h *baseHandler) HandleError(c fiber.Ctx, err error) error {
	status := statusFor(err)

	code, message := "INTERNAL_ERROR", "An internal server error occurred"
	var details any
	var be *businessflow.BusinessError
	if errors.As(err, &be) {
		code, message, details = be.Code, be.Message, be.Details
	}

	if status >= fiber.StatusInternalServerError {
		slog.ErrorContext(c.Context(), "request failed",
			"method", c.Method(),
			"path", c.Path(),
			"code", code,
			"error", err,
		)
		details = nil
	}
	return h.ErrorResponse(c, status, message, code, details)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, businessflow.ErrInvalidCredentials),
		errors.Is(err, businessflow.ErrUnauthenticated),
		errors.Is(err, businessflow.ErrMFASessionInvalid),
		errors.Is(err, businessflow.ErrOTPExpired),
		errors.Is(err, businessflow.ErrOTPAttemptsExceeded):
		return fiber.StatusUnauthorized
	case errors.Is(err, businessflow.ErrAccountInactive),
		errors.Is(err, businessflow.ErrForbidden),
		errors.Is(err, businessflow.ErrSuperuserProtected):
		return fiber.StatusForbidden
	case errors.Is(err, businessflow.ErrNotFound),
		errors.Is(err, businessflow.ErrUserNotFound),
		errors.Is(err, businessflow.ErrRoleNotFound),
		errors.Is(err, businessflow.ErrCategoryNotFound),
		errors.Is(err, businessflow.ErrBadWordNotFound),
		errors.Is(err, businessflow.ErrBlocklistItemNotFound),
		errors.Is(err, businessflow.ErrSegmentNotFound),
		errors.Is(err, businessflow.ErrReportNotFound),
		errors.Is(err, businessflow.ErrSubscriptionNotFound),
		errors.Is(err, businessflow.ErrDomainConfigNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, businessflow.ErrValidation),
		errors.Is(err, businessflow.ErrOpportunityNotFound),
		errors.Is(err, businessflow.ErrInvalidDateRange),
		errors.Is(err, businessflow.ErrEmailAlreadyExists),
		errors.Is(err, businessflow.ErrRoleAlreadyExists),
		errors.Is(err, businessflow.ErrCategoryAlreadyExists),
		errors.Is(err, businessflow.ErrDuplicateBadWord),
		errors.Is(err, businessflow.ErrDuplicateBlocklistItem),
		errors.Is(err, businessflow.ErrDuplicateSegmentTitle),
		errors.Is(err, businessflow.ErrDuplicateDomain),
		errors.Is(err, businessflow.ErrCannotDeleteSelf),
		errors.Is(err, businessflow.ErrImpersonateInactive),
		errors.Is(err, businessflow.ErrUnknownCapabilities),
		errors.Is(err, businessflow.ErrCaptchaInvalid),
		errors.Is(err, businessflow.ErrOTPInvalid),
		errors.Is(err, businessflow.ErrPaymentProcessor),
		errors.Is(err, businessflow.ErrPlanNotFound),
		errors.Is(err, businessflow.ErrInvalidWebhook):
		return fiber.StatusBadRequest
	case errors.Is(err, businessflow.ErrSearchUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// requestContext derives the flow context from the request context, which carries the caller set by the auth middleware
func requestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(c.Context(), utils.RequestTimeout)

	ctx = context.WithValue(ctx, utils.RequestIDKey, requestid.FromContext(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.HostKey, requestHost(c))

	return ctx, cancel
}

// requestHost prefers the host the proxy received
func requestHost(c fiber.Ctx) string {
	if h := c.Get("X-Forwarded-Host"); h != "" {
		return h
	}
	return c.Get(fiber.HeaderHost)
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestid.FromContext(c))
	metadata.Host = requestHost(c)
	return metadata
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		if err.Kind() == reflect.String {
			return err.Field() + " must be at least " + err.Param() + " characters"
		}
		return err.Field() + " must be at least " + err.Param()
	case "max":
		if err.Kind() == reflect.String {
			return err.Field() + " must be at most " + err.Param() + " characters"
		}
		return err.Field() + " must be at most " + err.Param()
	case "len":
		return err.Field() + " must be exactly " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "hostname_rfc1123":
		return err.Field() + " must be a valid host name"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
