package handlers

import (
	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/gofiber/fiber/v3"
)

// UserActionHandlerInterface defines the contract for the user action log
type UserActionHandlerInterface interface {
	List(c fiber.Ctx) error
	Create(c fiber.Ctx) error
}

// UserActionHandler handles the user action log
type UserActionHandler struct {
	baseHandler
	flow businessflow.UserActionFlow
}

// NewUserActionHandler creates a new user action handler
func NewUserActionHandler(flow businessflow.UserActionFlow) *UserActionHandler {
	return &UserActionHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
	}
}

// List returns the user action log
// @Summary List user actions
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(20)
// @Param username query string false "Words matched against first name, last name and email"
// @Param url query string false "URL fragment"
// @Param slug query string false "Slug fragment"
// @Param start_date query string false "First day, YYYY-mm-dd"
// @Param end_date query string false "Last day, YYYY-mm-dd"
// @Param order_by query string false "slug, url or created_at"
// @Param flat query bool false "Return every match without paging"
// @Success 200 {object} dto.APIResponse{data=dto.Page[dto.UserActionResponse]} "User actions retrieved"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Router /api/v1/admin/user_actions [get]
func (h *UserActionHandler) List(c fiber.Ctx) error {
	var q dto.UserActionListQuery
	if ok, err := h.bindQuery(c, &q); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/user_actions")
	defer cancel()

	result, err := h.flow.List(ctx, &q)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User actions retrieved", result)
}

// Create records a page visit of the caller
// @Summary Record user action
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.UserActionRequest true "Visited page"
// @Success 201 {object} dto.APIResponse{data=dto.UserActionResponse} "User action recorded"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Router /api/v1/admin/user_actions [post]
func (h *UserActionHandler) Create(c fiber.Ctx) error {
	var req dto.UserActionRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/user_actions")
	defer cancel()

	result, err := h.flow.Create(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "User action recorded", result)
}
