package handlers

import (
	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/gofiber/fiber/v3"
)

// DomainConfigHandlerInterface defines the contract for white-label config endpoints
type DomainConfigHandlerInterface interface {
	Config(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Create(c fiber.Ctx) error
	Update(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
}

// DomainConfigHandler handles white-label configs
type DomainConfigHandler struct {
	baseHandler
	domainConfigFlow businessflow.DomainConfigFlow
}

// NewDomainConfigHandler creates a new domain config handler
func NewDomainConfigHandler(domainConfigFlow businessflow.DomainConfigFlow) *DomainConfigHandler {
	return &DomainConfigHandler{
		baseHandler:      newBaseHandler(),
		domainConfigFlow: domainConfigFlow,
	}
}

// Config returns the white-label config of the requesting host
// @Summary Domain config
// @Description Resolves the tenant from the X-Forwarded-Host or Host sub-domain and falls back to the default config
// @Tags White Label
// @Produce json
// @Success 200 {object} dto.APIResponse{data=dto.DomainConfigResponse} "Config retrieved"
// @Router /api/v1/config [get]
func (h *DomainConfigHandler) Config(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/config")
	defer cancel()

	result, err := h.domainConfigFlow.GetConfig(ctx, requestHost(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Config retrieved", result)
}

// List lists domain configs
// @Summary List domain configs
// @Tags White Label
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(25)
// @Param search query string false "Domain"
// @Success 200 {object} dto.APIResponse{data=dto.Page[dto.DomainConfigResponse]} "Domain configs retrieved"
// @Router /api/v1/admin/domains [get]
func (h *DomainConfigHandler) List(c fiber.Ctx) error {
	var q dto.PageQuery
	if ok, err := h.bindQuery(c, &q); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/domains")
	defer cancel()

	result, err := h.domainConfigFlow.List(ctx, &q)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Domain configs retrieved", result)
}

// Get returns one domain config
// @Summary Get domain config
// @Tags White Label
// @Produce json
// @Security BearerAuth
// @Param id path int true "Domain config ID"
// @Success 200 {object} dto.APIResponse{data=dto.DomainConfigResponse} "Domain config retrieved"
// @Failure 404 {object} dto.APIResponse "Domain config not found"
// @Router /api/v1/admin/domains/{id} [get]
func (h *DomainConfigHandler) Get(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/domains/:id")
	defer cancel()

	result, err := h.domainConfigFlow.Get(ctx, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Domain config retrieved", result)
}

// Create creates a domain config
// @Summary Create domain config
// @Tags White Label
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.DomainConfigRequest true "Domain config"
// @Success 201 {object} dto.APIResponse{data=dto.DomainConfigResponse} "Domain config created"
// @Failure 400 {object} dto.APIResponse "Duplicate domain"
// @Router /api/v1/admin/domains [post]
func (h *DomainConfigHandler) Create(c fiber.Ctx) error {
	var req dto.DomainConfigRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/domains")
	defer cancel()

	result, err := h.domainConfigFlow.Create(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Domain config created", result)
}

// Update patches a domain config
// @Summary Update domain config
// @Tags White Label
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Domain config ID"
// @Param request body dto.UpdateDomainConfigRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.DomainConfigResponse} "Domain config updated"
// @Failure 404 {object} dto.APIResponse "Domain config not found"
// @Router /api/v1/admin/domains/{id} [patch]
func (h *DomainConfigHandler) Update(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}
	var req dto.UpdateDomainConfigRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/domains/:id")
	defer cancel()

	result, err := h.domainConfigFlow.Update(ctx, id, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Domain config updated", result)
}

// Delete deletes a domain config
// @Summary Delete domain config
// @Tags White Label
// @Security BearerAuth
// @Param id path int true "Domain config ID"
// @Success 204 "Domain config deleted"
// @Failure 404 {object} dto.APIResponse "Domain config not found"
// @Router /api/v1/admin/domains/{id} [delete]
func (h *DomainConfigHandler) Delete(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/admin/domains/:id")
	defer cancel()

	if err := h.domainConfigFlow.Delete(ctx, id); err != nil {
		return h.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
