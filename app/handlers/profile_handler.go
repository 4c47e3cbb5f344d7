package handlers

import (
	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/gofiber/fiber/v3"
)

// ProfileHandlerInterface defines the contract for the caller's own account endpoints
type ProfileHandlerInterface interface {
	Me(c fiber.Ctx) error
	UpdateMe(c fiber.Ctx) error
	ListDeviceTokens(c fiber.Ctx) error
	AddDeviceToken(c fiber.Ctx) error
	RemoveDeviceToken(c fiber.Ctx) error
}

// ProfileHandler handles the authenticated user's profile
type ProfileHandler struct {
	baseHandler
	profileFlow businessflow.ProfileFlow
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profileFlow businessflow.ProfileFlow) *ProfileHandler {
	return &ProfileHandler{
		baseHandler: newBaseHandler(),
		profileFlow: profileFlow,
	}
}

// Me returns the authenticated user
// @Summary Current user
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Profile retrieved"
// @Failure 401 {object} dto.APIResponse "Unauthorized"
// @Router /api/v1/users/me [get]
func (h *ProfileHandler) Me(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/users/me")
	defer cancel()

	result, err := h.profileFlow.Me(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Profile retrieved", result)
}

// UpdateMe patches the caller's names, company and phone
// @Summary Update current user
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UpdateProfileRequest true "Profile fields"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "Profile updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/users/me [patch]
func (h *ProfileHandler) UpdateMe(c fiber.Ctx) error {
	var req dto.UpdateProfileRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/users/me")
	defer cancel()

	result, err := h.profileFlow.UpdateMe(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Profile updated", result)
}

// ListDeviceTokens returns the caller's push tokens
// @Summary List device tokens
// @Tags Profile
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.DeviceTokenResponse} "Device tokens retrieved"
// @Router /api/v1/users/me/device_tokens [get]
func (h *ProfileHandler) ListDeviceTokens(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/users/me/device_tokens")
	defer cancel()

	result, err := h.profileFlow.ListDeviceTokens(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Device tokens retrieved", result)
}

// AddDeviceToken registers a push token; registering the same token again is a no-op
// @Summary Register device token
// @Tags Profile
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DeviceTokenRequest true "Push token"
// @Success 200 {object} dto.APIResponse{data=dto.DeviceTokenResponse} "Device token registered"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/users/me/device_tokens [post]
func (h *ProfileHandler) AddDeviceToken(c fiber.Ctx) error {
	var req dto.DeviceTokenRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/users/me/device_tokens")
	defer cancel()

	result, err := h.profileFlow.AddDeviceToken(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Device token registered", result)
}

// RemoveDeviceToken unregisters a push token
// @Summary Remove device token
// @Tags Profile
// @Security BearerAuth
// @Param token path string true "Push token"
// @Success 204 "Device token removed"
// @Router /api/v1/users/me/device_tokens/{token} [delete]
func (h *ProfileHandler) RemoveDeviceToken(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/users/me/device_tokens")
	defer cancel()

	if err := h.profileFlow.RemoveDeviceToken(ctx, c.Params("token")); err != nil {
		return h.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
