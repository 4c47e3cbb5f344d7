package handlers

import (
	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AdsAnalyzerHandlerInterface defines the contract for opportunity targeting reports
type AdsAnalyzerHandlerInterface interface {
	ListOpportunities(c fiber.Ctx) error
	RequestReport(c fiber.Ctx) error
	ListRecipients(c fiber.Ctx) error
}

// AdsAnalyzerHandler handles the ads analyzer endpoints
type AdsAnalyzerHandler struct {
	baseHandler
	adsAnalyzerFlow businessflow.AdsAnalyzerFlow
}

// NewAdsAnalyzerHandler creates a new ads analyzer handler
func NewAdsAnalyzerHandler(adsAnalyzerFlow businessflow.AdsAnalyzerFlow) *AdsAnalyzerHandler {
	return &AdsAnalyzerHandler{
		baseHandler:     newBaseHandler(),
		adsAnalyzerFlow: adsAnalyzerFlow,
	}
}

// ListOpportunities lists opportunities by name
// @Summary List opportunities
// @Tags Ads Analyzer
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(25)
// @Param search query string false "Name fragment"
// @Success 200 {object} dto.APIResponse{data=dto.Page[dto.OpportunityResponse]} "Opportunities retrieved"
// @Router /api/v1/ads_analyzer/opportunities [get]
func (h *AdsAnalyzerHandler) ListOpportunities(c fiber.Ctx) error {
	var q dto.PageQuery
	if ok, err := h.bindQuery(c, &q); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/ads_analyzer/opportunities")
	defer cancel()

	result, err := h.adsAnalyzerFlow.ListOpportunities(ctx, &q)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Opportunities retrieved", result)
}

// RequestReport requests the targeting report of an opportunity
// @Summary Request targeting report
// @Description The first request for an opportunity and date range queues the report; later requests poll it. The caller is emailed when the workbook is ready.
// @Tags Ads Analyzer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.TargetingReportRequest true "Opportunity and date range"
// @Success 200 {object} dto.APIResponse{data=dto.ExportStatusResponse} "Report status"
// @Failure 400 {object} dto.APIResponse "Unknown opportunity or invalid dates"
// @Router /api/v1/ads_analyzer/opportunity_targeting_report [post]
func (h *AdsAnalyzerHandler) RequestReport(c fiber.Ctx) error {
	var req dto.TargetingReportRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/ads_analyzer/opportunity_targeting_report")
	defer cancel()

	result, err := h.adsAnalyzerFlow.RequestReport(ctx, &req)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// ListRecipients lists reports with everyone who requested them
// @Summary List report recipients
// @Tags Ads Analyzer
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number" default(1)
// @Param size query int false "Page size" default(25)
// @Param search query string false "Opportunity name fragment"
// @Success 200 {object} dto.APIResponse{data=dto.Page[dto.TargetingReportRecipientsResponse]} "Recipients retrieved"
// @Router /api/v1/ads_analyzer/opportunity_targeting_report/recipients [get]
func (h *AdsAnalyzerHandler) ListRecipients(c fiber.Ctx) error {
	var q dto.PageQuery
	if ok, err := h.bindQuery(c, &q); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/ads_analyzer/opportunity_targeting_report/recipients")
	defer cancel()

	result, err := h.adsAnalyzerFlow.ListRecipients(ctx, &q)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Recipients retrieved", result)
}
