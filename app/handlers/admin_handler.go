package handlers

import (
	"bytes"

	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/amirphl/viewiq/utils"
	"github.com/gofiber/fiber/v3"
)

// AdminHandlerInterface defines the contract for user, role and dashboard administration
type AdminHandlerInterface interface {
	ListUsers(c fiber.Ctx) error
	ExportUsers(c fiber.Ctx) error
	GetUser(c fiber.Ctx) error
	UpdateUser(c fiber.Ctx) error
	DeleteUser(c fiber.Ctx) error
	Impersonate(c fiber.Ctx) error

	ListCapabilities(c fiber.Ctx) error
	ListRoles(c fiber.Ctx) error
	CreateRole(c fiber.Ctx) error
	UpdateRole(c fiber.Ctx) error
	DeleteRole(c fiber.Ctx) error

	Dashboard(c fiber.Ctx) error
}

// AdminHandler handles administrator endpoints
type AdminHandler struct {
	baseHandler
	userFlow      businessflow.AdminUserFlow
	roleFlow      businessflow.RoleFlow
	dashboardFlow businessflow.DashboardFlow
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(userFlow businessflow.AdminUserFlow, roleFlow businessflow.RoleFlow, dashboardFlow businessflow.DashboardFlow) *AdminHandler {
	return &AdminHandler{
		baseHandler:   newBaseHandler(),
		userFlow:      userFlow,
		roleFlow:      roleFlow,
		dashboardFlow: dashboardFlow,
	}
}

// ListUsers lists users
// @Summary List users
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(25)
// @Param search query string false "Email or name fragment"
// @Param is_active query bool false "Filter by active flag"
// @Success 200 {object} dto.APIResponse{data=dto.Page[dto.UserResponse]} "Users retrieved"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Router /api/v1/admin/users [get]
func (h *AdminHandler) ListUsers(c fiber.Ctx) error {
	var q dto.AdminListUsersQuery
	if ok, err := h.bindQuery(c, &q); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/users")
	defer cancel()

	result, err := h.userFlow.ListUsers(ctx, &q)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Users retrieved", result)
}

// ExportUsers downloads the filtered user list
// @Summary Export users
// @Tags Admin
// @Produce text/csv
// @Security BearerAuth
// @Param search query string false "Email or name fragment"
// @Param is_active query bool false "Filter by active flag"
// @Success 200 {file} file "First name,Last name,Company,Phone,Email,Domain,Registered date,Last login date,Roles,Is active"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Router /api/v1/admin/users/export [get]
func (h *AdminHandler) ExportUsers(c fiber.Ctx) error {
	var q dto.AdminListUsersQuery
	if ok, err := h.bindQuery(c, &q); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/users/export")
	defer cancel()

	var buf bytes.Buffer
	if err := h.userFlow.ExportUsers(ctx, &q, &buf); err != nil {
		return h.HandleError(c, err)
	}
	return sendCSVFile(c, "User List "+utils.UTCNow().Format("20060102 150405")+".csv", &buf)
}

// GetUser returns one user
// @Summary Get user
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "User retrieved"
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /api/v1/admin/users/{id} [get]
func (h *AdminHandler) GetUser(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/users/:id")
	defer cancel()

	result, err := h.userFlow.GetUser(ctx, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User retrieved", result)
}

// UpdateUser patches a user
// @Summary Update user
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body dto.AdminUpdateUserRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.UserResponse} "User updated"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /api/v1/admin/users/{id} [patch]
func (h *AdminHandler) UpdateUser(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}
	var req dto.AdminUpdateUserRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/users/:id")
	defer cancel()

	result, err := h.userFlow.UpdateUser(ctx, id, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "User updated", result)
}

// DeleteUser soft-deletes a user
// @Summary Delete user
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 204 "User deleted"
// @Failure 400 {object} dto.APIResponse "Cannot delete yourself"
// @Failure 403 {object} dto.APIResponse "Superusers are protected"
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /api/v1/admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/users/:id")
	defer cancel()

	if err := h.userFlow.DeleteUser(ctx, id); err != nil {
		return h.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Impersonate issues tokens for another user
// @Summary Impersonate user
// @Description Returns a token pair for the target user that records the acting administrator
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Success 200 {object} dto.APIResponse{data=dto.AuthResponse} "Impersonation tokens issued"
// @Failure 400 {object} dto.APIResponse "Target user inactive"
// @Failure 404 {object} dto.APIResponse "User not found"
// @Router /api/v1/admin/users/{id}/impersonate [post]
func (h *AdminHandler) Impersonate(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/users/:id/impersonate")
	defer cancel()

	result, err := h.userFlow.Impersonate(ctx, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Impersonation tokens issued", result)
}

// ListCapabilities returns every grantable capability
// @Summary List capabilities
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]string} "Capabilities retrieved"
// @Router /api/v1/admin/capabilities [get]
func (h *AdminHandler) ListCapabilities(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/admin/capabilities")
	defer cancel()

	result, err := h.roleFlow.ListCapabilities(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Capabilities retrieved", result)
}

// ListRoles returns every role
// @Summary List roles
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.RoleResponse} "Roles retrieved"
// @Router /api/v1/admin/roles [get]
func (h *AdminHandler) ListRoles(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/admin/roles")
	defer cancel()

	result, err := h.roleFlow.ListRoles(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Roles retrieved", result)
}

// CreateRole creates a role
// @Summary Create role
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.RoleRequest true "Role"
// @Success 201 {object} dto.APIResponse{data=dto.RoleResponse} "Role created"
// @Failure 400 {object} dto.APIResponse "Unknown capability or duplicate name"
// @Router /api/v1/admin/roles [post]
func (h *AdminHandler) CreateRole(c fiber.Ctx) error {
	var req dto.RoleRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/roles")
	defer cancel()

	result, err := h.roleFlow.CreateRole(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Role created", result)
}

// UpdateRole patches a role
// @Summary Update role
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Role ID"
// @Param request body dto.UpdateRoleRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.RoleResponse} "Role updated"
// @Failure 404 {object} dto.APIResponse "Role not found"
// @Router /api/v1/admin/roles/{id} [patch]
func (h *AdminHandler) UpdateRole(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}
	var req dto.UpdateRoleRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/roles/:id")
	defer cancel()

	result, err := h.roleFlow.UpdateRole(ctx, id, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Role updated", result)
}

// DeleteRole deletes a role
// @Summary Delete role
// @Tags Admin
// @Security BearerAuth
// @Param id path int true "Role ID"
// @Success 204 "Role deleted"
// @Failure 404 {object} dto.APIResponse "Role not found"
// @Router /api/v1/admin/roles/{id} [delete]
func (h *AdminHandler) DeleteRole(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/roles/:id")
	defer cancel()

	if err := h.roleFlow.DeleteRole(ctx, id); err != nil {
		return h.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Dashboard returns platform counters
// @Summary Admin dashboard
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.DashboardResponse} "Dashboard retrieved"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Router /api/v1/admin/dashboard [get]
func (h *AdminHandler) Dashboard(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/admin/dashboard")
	defer cancel()

	result, err := h.dashboardFlow.Dashboard(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Dashboard retrieved", result)
}
