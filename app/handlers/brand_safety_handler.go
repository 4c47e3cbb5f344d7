package handlers

import (
	"bytes"
	"fmt"

	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/amirphl/viewiq/utils"
	"github.com/gofiber/fiber/v3"
)

// BrandSafetyHandlerInterface defines the contract for bad word lists, blocklists and scoring
type BrandSafetyHandlerInterface interface {
	ListCategories(c fiber.Ctx) error
	CreateCategory(c fiber.Ctx) error
	ListBadWords(c fiber.Ctx) error
	GetBadWord(c fiber.Ctx) error
	CreateBadWord(c fiber.Ctx) error
	UpdateBadWord(c fiber.Ctx) error
	DeleteBadWord(c fiber.Ctx) error
	ExportBadWords(c fiber.Ctx) error

	ListBlocklist(kind businessflow.BlocklistKind) fiber.Handler
	CreateBlocklistItem(kind businessflow.BlocklistKind) fiber.Handler
	DeleteBlocklistItem(kind businessflow.BlocklistKind) fiber.Handler
	ExportBlocklist(kind businessflow.BlocklistKind) fiber.Handler

	VideoBrandSafety(c fiber.Ctx) error
	ChannelBrandSafety(c fiber.Ctx) error
}

// BrandSafetyHandler handles brand safety lists and scores
type BrandSafetyHandler struct {
	baseHandler
	badWordFlow     businessflow.BadWordFlow
	blocklistFlow   businessflow.BlocklistFlow
	brandSafetyFlow businessflow.BrandSafetyFlow
}

// NewBrandSafetyHandler creates a new brand safety handler
func NewBrandSafetyHandler(
	badWordFlow businessflow.BadWordFlow,
	blocklistFlow businessflow.BlocklistFlow,
	brandSafetyFlow businessflow.BrandSafetyFlow,
) *BrandSafetyHandler {
	return &BrandSafetyHandler{
		baseHandler:     newBaseHandler(),
		badWordFlow:     badWordFlow,
		blocklistFlow:   blocklistFlow,
		brandSafetyFlow: brandSafetyFlow,
	}
}

// sendCSV streams a generated CSV as an attachment named after name and today's date
func sendCSV(c fiber.Ctx, name string, body *bytes.Buffer) error {
	return sendCSVFile(c, fmt.Sprintf("%s-%s.csv", name, utils.FormatDate(utils.UTCNow())), body)
}

func sendCSVFile(c fiber.Ctx, filename string, body *bytes.Buffer) error {
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Status(fiber.StatusOK).Send(body.Bytes())
}

// ListCategories returns every bad word category
// @Summary List bad word categories
// @Tags Brand Safety
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=[]dto.BadWordCategoryResponse} "Categories retrieved"
// @Router /api/v1/bad_words/categories [get]
func (h *BrandSafetyHandler) ListCategories(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/bad_words/categories")
	defer cancel()

	result, err := h.badWordFlow.ListCategories(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Categories retrieved", result)
}

// CreateCategory creates a bad word category
// @Summary Create bad word category
// @Tags Brand Safety
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BadWordCategoryRequest true "Category"
// @Success 201 {object} dto.APIResponse{data=dto.BadWordCategoryResponse} "Category created"
// @Failure 400 {object} dto.APIResponse "Duplicate category"
// @Router /api/v1/bad_words/categories [post]
func (h *BrandSafetyHandler) CreateCategory(c fiber.Ctx) error {
	var req dto.BadWordCategoryRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/bad_words/categories")
	defer cancel()

	result, err := h.badWordFlow.CreateCategory(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Category created", result)
}

// ListBadWords lists bad words
// @Summary List bad words
// @Tags Brand Safety
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(25)
// @Param search query string false "Name fragment"
// @Param category query string false "Category id"
// @Param language query string false "Language code"
// @Success 200 {object} dto.APIResponse{data=dto.Page[dto.BadWordResponse]} "Bad words retrieved"
// @Router /api/v1/bad_words [get]
func (h *BrandSafetyHandler) ListBadWords(c fiber.Ctx) error {
	var q dto.BadWordListQuery
	if ok, err := h.bindQuery(c, &q); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/bad_words")
	defer cancel()

	result, err := h.badWordFlow.ListBadWords(ctx, &q)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bad words retrieved", result)
}

// GetBadWord returns one bad word
// @Summary Get bad word
// @Tags Brand Safety
// @Produce json
// @Security BearerAuth
// @Param id path int true "Bad word ID"
// @Success 200 {object} dto.APIResponse{data=dto.BadWordResponse} "Bad word retrieved"
// @Failure 404 {object} dto.APIResponse "Bad word not found"
// @Router /api/v1/bad_words/{id} [get]
func (h *BrandSafetyHandler) GetBadWord(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/bad_words/:id")
	defer cancel()

	result, err := h.badWordFlow.GetBadWord(ctx, id)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bad word retrieved", result)
}

// CreateBadWord creates a bad word
// @Summary Create bad word
// @Description The category is an id or a name. A word deleted earlier can be created again.
// @Tags Brand Safety
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.BadWordRequest true "Bad word"
// @Success 201 {object} dto.APIResponse{data=dto.BadWordResponse} "Bad word created"
// @Failure 400 {object} dto.APIResponse "Validation error or duplicate"
// @Router /api/v1/bad_words [post]
func (h *BrandSafetyHandler) CreateBadWord(c fiber.Ctx) error {
	var req dto.BadWordRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/bad_words")
	defer cancel()

	result, err := h.badWordFlow.CreateBadWord(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Bad word created", result)
}

// UpdateBadWord patches a bad word
// @Summary Update bad word
// @Tags Brand Safety
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Bad word ID"
// @Param request body dto.UpdateBadWordRequest true "Fields to change"
// @Success 200 {object} dto.APIResponse{data=dto.BadWordResponse} "Bad word updated"
// @Failure 404 {object} dto.APIResponse "Bad word not found"
// @Router /api/v1/bad_words/{id} [patch]
func (h *BrandSafetyHandler) UpdateBadWord(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}
	var req dto.UpdateBadWordRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/bad_words/:id")
	defer cancel()

	result, err := h.badWordFlow.UpdateBadWord(ctx, id, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Bad word updated", result)
}

// DeleteBadWord soft-deletes a bad word
// @Summary Delete bad word
// @Tags Brand Safety
// @Security BearerAuth
// @Param id path int true "Bad word ID"
// @Success 204 "Bad word deleted"
// @Failure 404 {object} dto.APIResponse "Bad word not found"
// @Router /api/v1/bad_words/{id} [delete]
func (h *BrandSafetyHandler) DeleteBadWord(c fiber.Ctx) error {
	id, err := h.paramID(c, "id")
	if err != nil || id == 0 {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/bad_words/:id")
	defer cancel()

	if err := h.badWordFlow.DeleteBadWord(ctx, id); err != nil {
		return h.HandleError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ExportBadWords downloads the active bad words
// @Summary Export bad words
// @Tags Brand Safety
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {file} file "Name,Category,Language,Score"
// @Router /api/v1/bad_words/export [get]
func (h *BrandSafetyHandler) ExportBadWords(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/bad_words/export")
	defer cancel()

	var buf bytes.Buffer
	if err := h.badWordFlow.ExportBadWords(ctx, &buf); err != nil {
		return h.HandleError(c, err)
	}
	return sendCSV(c, "bad_words", &buf)
}

// ListBlocklist lists blocklisted channels or videos
// @Summary List blocklist
// @Tags Brand Safety
// @Produce json
// @Security BearerAuth
// @Param kind path string true "channels or videos"
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(25)
// @Param search query string false "Id or title fragment"
// @Param category query int false "Category id"
// @Success 200 {object} dto.APIResponse{data=dto.Page[dto.BlocklistItemResponse]} "Blocklist retrieved"
// @Router /api/v1/blocklist/{kind} [get]
func (h *BrandSafetyHandler) ListBlocklist(kind businessflow.BlocklistKind) fiber.Handler {
	endpoint := "/api/v1/blocklist/" + string(kind)
	return func(c fiber.Ctx) error {
		var q dto.BlocklistListQuery
		if ok, err := h.bindQuery(c, &q); !ok {
			return err
		}

		ctx, cancel := requestContext(c, endpoint)
		defer cancel()

		result, err := h.blocklistFlow.List(ctx, kind, &q)
		if err != nil {
			return h.HandleError(c, err)
		}
		return h.SuccessResponse(c, fiber.StatusOK, "Blocklist retrieved", result)
	}
}

// CreateBlocklistItem blocklists a channel or video
// @Summary Add to blocklist
// @Tags Brand Safety
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param kind path string true "channels or videos"
// @Param request body dto.BlocklistItemRequest true "Channel or video"
// @Success 201 {object} dto.APIResponse{data=dto.BlocklistItemResponse} "Blocklist item created"
// @Failure 400 {object} dto.APIResponse "Already blocklisted"
// @Router /api/v1/blocklist/{kind} [post]
func (h *BrandSafetyHandler) CreateBlocklistItem(kind businessflow.BlocklistKind) fiber.Handler {
	endpoint := "/api/v1/blocklist/" + string(kind)
	return func(c fiber.Ctx) error {
		var req dto.BlocklistItemRequest
		if ok, err := h.bindJSON(c, &req); !ok {
			return err
		}

		ctx, cancel := requestContext(c, endpoint)
		defer cancel()

		result, err := h.blocklistFlow.Create(ctx, kind, &req)
		if err != nil {
			return h.HandleError(c, err)
		}
		return h.SuccessResponse(c, fiber.StatusCreated, "Blocklist item created", result)
	}
}

// DeleteBlocklistItem removes a channel or video from the blocklist
// @Summary Remove from blocklist
// @Tags Brand Safety
// @Security BearerAuth
// @Param kind path string true "channels or videos"
// @Param id path int true "Blocklist item ID"
// @Success 204 "Blocklist item deleted"
// @Failure 404 {object} dto.APIResponse "Blocklist item not found"
// @Router /api/v1/blocklist/{kind}/{id} [delete]
func (h *BrandSafetyHandler) DeleteBlocklistItem(kind businessflow.BlocklistKind) fiber.Handler {
	endpoint := "/api/v1/blocklist/" + string(kind) + "/:id"
	return func(c fiber.Ctx) error {
		id, err := h.paramID(c, "id")
		if err != nil || id == 0 {
			return err
		}

		ctx, cancel := requestContext(c, endpoint)
		defer cancel()

		if err := h.blocklistFlow.Delete(ctx, kind, id); err != nil {
			return h.HandleError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ExportBlocklist downloads blocklisted channels or videos
// @Summary Export blocklist
// @Tags Brand Safety
// @Produce text/csv
// @Security BearerAuth
// @Param kind path string true "channels or videos"
// @Success 200 {file} file "CSV export"
// @Router /api/v1/blocklist/{kind}/export [get]
func (h *BrandSafetyHandler) ExportBlocklist(kind businessflow.BlocklistKind) fiber.Handler {
	endpoint := "/api/v1/blocklist/" + string(kind) + "/export"
	return func(c fiber.Ctx) error {
		ctx, cancel := requestContext(c, endpoint)
		defer cancel()

		var buf bytes.Buffer
		if err := h.blocklistFlow.Export(ctx, kind, &buf); err != nil {
			return h.HandleError(c, err)
		}
		return sendCSV(c, "bad_"+string(kind), &buf)
	}
}

// VideoBrandSafety scores one video
// @Summary Video brand safety
// @Tags Brand Safety
// @Produce json
// @Security BearerAuth
// @Param id path string true "YouTube video id"
// @Success 200 {object} dto.APIResponse{data=dto.VideoBrandSafetyResponse} "Video brand safety retrieved"
// @Failure 503 {object} dto.APIResponse "Search index unavailable"
// @Router /api/v1/brand_safety/videos/{id} [get]
func (h *BrandSafetyHandler) VideoBrandSafety(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/brand_safety/videos/:id")
	defer cancel()

	result, err := h.brandSafetyFlow.VideoBrandSafety(ctx, c.Params("id"))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Video brand safety retrieved", result)
}

// ChannelBrandSafety summarizes a channel and pages its flagged videos
// @Summary Channel brand safety
// @Tags Brand Safety
// @Produce json
// @Security BearerAuth
// @Param id path string true "YouTube channel id"
// @Param threshold query int false "Videos scoring at or above this are flagged" default(89)
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(24)
// @Param sort query string false "youtube_published_at, score, views or engage_rate"
// @Param sortAscending query bool false "Ascending order"
// @Success 200 {object} dto.APIResponse{data=dto.ChannelBrandSafetyResponse} "Channel brand safety retrieved"
// @Failure 503 {object} dto.APIResponse "Search index unavailable"
// @Router /api/v1/brand_safety/channels/{id} [get]
func (h *BrandSafetyHandler) ChannelBrandSafety(c fiber.Ctx) error {
	var q dto.ChannelBrandSafetyQuery
	if ok, err := h.bindQuery(c, &q); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/brand_safety/channels/:id")
	defer cancel()

	result, err := h.brandSafetyFlow.ChannelBrandSafety(ctx, c.Params("id"), &q)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Channel brand safety retrieved", result)
}
