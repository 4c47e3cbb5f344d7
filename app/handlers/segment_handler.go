package handlers

import (
	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/gofiber/fiber/v3"
)

// SegmentHandlerInterface defines the contract for custom target list endpoints
type SegmentHandlerInterface interface {
	Create(c fiber.Ctx) error
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Delete(c fiber.Ctx) error
	ExportStatus(c fiber.Ctx) error
}

// SegmentHandler handles custom segments and their CSV exports
type SegmentHandler struct {
	baseHandler
	segmentFlow businessflow.SegmentFlow
}

// NewSegmentHandler creates a new segment handler
func NewSegmentHandler(segmentFlow businessflow.SegmentFlow) *SegmentHandler {
	return &SegmentHandler{
		baseHandler: newBaseHandler(),
		segmentFlow: segmentFlow,
	}
}

// Create builds one target list, or a video and a channel list for segment_type 2
// @Summary Create segment
// @Description Validates the filters, stores the generated search query and queues the CSV export
// @Tags Segments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateSegmentRequest true "Segment filters"
// @Success 201 {object} dto.APIResponse{data=[]dto.SegmentResponse} "Segment created"
// @Failure 400 {object} dto.APIResponse "Validation error or duplicate title"
// @Failure 403 {object} dto.APIResponse "Forbidden"
// @Router /api/v1/segments [post]
func (h *SegmentHandler) Create(c fiber.Ctx) error {
	var req dto.CreateSegmentRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/segments")
	defer cancel()

	result, err := h.segmentFlow.Create(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Segment created", result)
}

// List lists the caller's segments, or every segment with ctl.see_all
// @Summary List segments
// @Tags Segments
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(25)
// @Param search query string false "Title fragment"
// @Param segment_type query int false "0 video, 1 channel"
// @Param list_type query string false "whitelist or blacklist"
// @Success 200 {object} dto.APIResponse{data=dto.Page[dto.SegmentResponse]} "Segments retrieved"
// @Router /api/v1/segments [get]
func (h *SegmentHandler) List(c fiber.Ctx) error {
	var q dto.SegmentListQuery
	if ok, err := h.bindQuery(c, &q); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/segments")
	defer cancel()

	result, err := h.segmentFlow.List(ctx, &q)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Segments retrieved", result)
}

// Get returns one segment
// @Summary Get segment
// @Tags Segments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Segment ID"
// @Success 200 {object} dto.APIResponse{data=dto.SegmentResponse} "Segment retrieved"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Router /api/v1/segments/{id} [get]
func (h *SegmentHandler) Get(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/segments/:id")
	defer cancel()

	result, err := h.segmentFlow.Get(ctx, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Segment retrieved", result)
}

// Delete soft-deletes a segment
// @Summary Delete segment
// @Tags Segments
// @Security BearerAuth
// @Param id path int true "Segment ID"
// @Success 204 "Segment deleted"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Router /api/v1/segments/{id} [delete]
func (h *SegmentHandler) Delete(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/segments/:id")
	defer cancel()

	if err := h.segmentFlow.Delete(ctx, id); err != nil {
		return h.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ExportStatus polls the segment's CSV export
// @Summary Segment export status
// @Description Returns created while the export runs and ready with a download link once it finished. A failed export is queued again.
// @Tags Segments
// @Produce json
// @Security BearerAuth
// @Param id path int true "Segment ID"
// @Success 200 {object} dto.APIResponse{data=dto.ExportStatusResponse} "Export status"
// @Failure 404 {object} dto.APIResponse "Segment not found"
// @Router /api/v1/segments/{id}/export [get]
func (h *SegmentHandler) ExportStatus(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/segments/:id/export")
	defer cancel()

	result, err := h.segmentFlow.ExportStatus(ctx, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}
