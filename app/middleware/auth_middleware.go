// Package middleware contains HTTP middleware functions for request processing
package middleware

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
	"github.com/gofiber/fiber/v3"
)

const requestUserLocal = "request_user"

// AuthMiddleware handles JWT token validation for protected endpoints
type AuthMiddleware struct {
	tokenService services.TokenService
	userRepo     repository.UserRepository
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokenService services.TokenService, userRepo repository.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{
		tokenService: tokenService,
		userRepo:     userRepo,
	}
}

func unauthorized(c fiber.Ctx, message, code string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code: code,
		},
	})
}

// Authenticate validates the bearer access token and resolves the caller with its capabilities
func (m *AuthMiddleware) Authenticate() fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return unauthorized(c, "Authorization header is required", "MISSING_AUTHORIZATION_HEADER")
		}
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Expected 'Bearer <token>'", "INVALID_AUTHORIZATION_FORMAT")
		}
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token == "" {
			return unauthorized(c, "Access token is required", "MISSING_ACCESS_TOKEN")
		}

		// Validate the token (this already checks for revocation)
		claims, err := m.tokenService.ValidateToken(c.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrTokenExpired):
				return unauthorized(c, "Access token has expired", "TOKEN_EXPIRED")
			case errors.Is(err, services.ErrTokenInvalid):
				return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
			case errors.Is(err, services.ErrTokenRevoked):
				return unauthorized(c, "Access token has been revoked", "TOKEN_REVOKED")
			default:
				slog.ErrorContext(c.Context(), "token validation failed", "error", err)
				return unauthorized(c, "Token validation failed", "TOKEN_VALIDATION_FAILED")
			}
		}
		if claims.TokenType != services.TokenTypeAccess {
			return unauthorized(c, "Invalid access token", "TOKEN_INVALID")
		}

		user, err := m.userRepo.ByIDWithRoles(c.Context(), claims.UserID)
		if err != nil {
			slog.ErrorContext(c.Context(), "failed to load authenticated user", "user_id", claims.UserID, "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
				Success: false,
				Message: "Failed to load user",
				Error:   dto.ErrorDetail{Code: "USER_LOOKUP_FAILED"},
			})
		}
		if user == nil {
			return unauthorized(c, "User no longer exists", "USER_NOT_FOUND")
		}
		if !user.IsActive {
			return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
				Success: false,
				Message: "Account is inactive",
				Error:   dto.ErrorDetail{Code: "ACCOUNT_INACTIVE"},
			})
		}

		ru := utils.NewRequestUser(user, claims.ImpersonatorID)
		c.Locals(requestUserLocal, ru)
		c.Locals("token_id", claims.TokenID)
		c.SetContext(utils.WithRequestUser(c.Context(), ru))

		return c.Next()
	}
}

// RequestUser returns the caller resolved by Authenticate
func RequestUser(c fiber.Ctx) (*utils.RequestUser, bool) {
	ru, ok := c.Locals(requestUserLocal).(*utils.RequestUser)
	return ru, ok && ru != nil
}

// RequireCapability admits callers holding at least one of caps; superusers always pass
func RequireCapability(caps ...models.Capability) fiber.Handler {
	return func(c fiber.Ctx) error {
		ru, ok := RequestUser(c)
		if !ok {
			return unauthorized(c, "Authentication required", "AUTHENTICATION_REQUIRED")
		}
		for _, capability := range caps {
			if ru.Can(capability) {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.APIResponse{
			Success: false,
			Message: "You do not have permission to perform this action.",
			Error:   dto.ErrorDetail{Code: "FORBIDDEN"},
		})
	}
}
