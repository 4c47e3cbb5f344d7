package businessflow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
)

// AdsAnalyzerFlow serves opportunities and their targeting reports
type AdsAnalyzerFlow interface {
	ListOpportunities(ctx context.Context, q *dto.PageQuery) (*dto.Page[dto.OpportunityResponse], error)
	// RequestReport returns the report state for a key, scheduling the export at most once
	RequestReport(ctx context.Context, req *dto.TargetingReportRequest) (*dto.ExportStatusResponse, error)
	ListRecipients(ctx context.Context, q *dto.PageQuery) (*dto.Page[dto.TargetingReportRecipientsResponse], error)
}

// AdsAnalyzerFlowImpl implements the ads analyzer business flow
type AdsAnalyzerFlowImpl struct {
	opportunityRepo repository.OpportunityRepository
	reportRepo      repository.OpportunityTargetingReportRepository
	exports         *exportTracker
}

// NewAdsAnalyzerFlow creates a new ads analyzer flow instance
func NewAdsAnalyzerFlow(
	opportunityRepo repository.OpportunityRepository,
	reportRepo repository.OpportunityTargetingReportRepository,
	storage services.ObjectStorage,
	queue services.TaskQueue,
	staleAfter time.Duration,
) AdsAnalyzerFlow {
	if staleAfter <= 0 {
		staleAfter = DefaultExportStaleAfter
	}
	return &AdsAnalyzerFlowImpl{
		opportunityRepo: opportunityRepo,
		reportRepo:      reportRepo,
		exports: &exportTracker{
			store:      reportRepo,
			queue:      queue,
			storage:    storage,
			jobType:    services.JobTargetingReport,
			staleAfter: staleAfter,
		},
	}
}

func (f *AdsAnalyzerFlowImpl) ListOpportunities(ctx context.Context, q *dto.PageQuery) (*dto.Page[dto.OpportunityResponse], error) {
	if _, err := requireCapability(ctx, models.CapabilityAdsAnalyzer); err != nil {
		return nil, err
	}
	p := newPagination(q.Page, q.Size)
	filter := models.OpportunityFilter{Search: optionalString(q.Search)}
	total, err := f.opportunityRepo.Count(ctx, filter)
	if err != nil {
		return nil, internal("OPPORTUNITY_LIST_FAILED", "Failed to list opportunities", err)
	}
	rows, err := f.opportunityRepo.ByFilter(ctx, filter, "name ASC", p.Size, p.Offset)
	if err != nil {
		return nil, internal("OPPORTUNITY_LIST_FAILED", "Failed to list opportunities", err)
	}
	items := make([]dto.OpportunityResponse, 0, len(rows))
	for _, o := range rows {
		items = append(items, dto.OpportunityResponse{ID: o.ID, Name: o.Name, AccountManagerEmail: o.AccountManagerEmail})
	}
	return newPage(p, items, total), nil
}

func (f *AdsAnalyzerFlowImpl) RequestReport(ctx context.Context, req *dto.TargetingReportRequest) (*dto.ExportStatusResponse, error) {
	caller, err := requireCapability(ctx, models.CapabilityAdsAnalyzer)
	if err != nil {
		return nil, err
	}

	var errs fieldErrors
	dateFrom, fromErr := utils.ParseDate(strings.TrimSpace(req.DateFrom))
	if fromErr != nil {
		errs.add("date_from", "Date format must be YYYY-mm-dd")
	}
	dateTo, toErr := utils.ParseDate(strings.TrimSpace(req.DateTo))
	if toErr != nil {
		errs.add("date_to", "Date format must be YYYY-mm-dd")
	}
	if fromErr == nil && toErr == nil && dateFrom.After(dateTo) {
		errs.add("date_from", "date_from cannot be after date_to")
	}
	opportunityID := strings.TrimSpace(req.Opportunity)
	opportunity, err := f.opportunityRepo.ByID(ctx, opportunityID)
	if err != nil {
		return nil, internal("OPPORTUNITY_LOOKUP_FAILED", "Failed to load opportunity", err)
	}
	if opportunity == nil {
		errs.add("opportunity", "Invalid pk \""+opportunityID+"\" - object does not exist.")
	}
	if err := errs.err(); err != nil {
		return nil, err
	}

	report, created, err := f.reportRepo.InsertOrGet(ctx, &models.OpportunityTargetingReport{
		OpportunityID: opportunity.ID,
		DateFrom:      dateFrom,
		DateTo:        dateTo,
		Status:        models.ExportStatusPending,
	})
	if err != nil {
		return nil, internal("TARGETING_REPORT_FAILED", "Failed to create targeting report", err)
	}
	if err := f.reportRepo.AddRecipient(ctx, report.ID, caller.ID); err != nil {
		return nil, internal("TARGETING_REPORT_FAILED", "Failed to register report recipient", err)
	}

	if created {
		slog.InfoContext(ctx, "targeting report created",
			"report_id", report.ID, "opportunity_id", report.OpportunityID, "user_id", caller.ID)
		if err := f.exports.enqueue(ctx, report.ID); err != nil {
			return nil, err
		}
		return createdResponse(), nil
	}
	return f.exports.status(ctx, exportJobState{
		ID:        report.ID,
		Status:    report.Status,
		FileKey:   report.S3FileKey,
		UpdatedAt: report.UpdatedAt,
	})
}

func (f *AdsAnalyzerFlowImpl) ListRecipients(ctx context.Context, q *dto.PageQuery) (*dto.Page[dto.TargetingReportRecipientsResponse], error) {
	if _, err := requireCapability(ctx, models.CapabilityAdsAnalyzerRecipients); err != nil {
		return nil, err
	}
	p := newPagination(q.Page, q.Size)
	total, err := f.reportRepo.Count(ctx, models.OpportunityTargetingReportFilter{})
	if err != nil {
		return nil, internal("TARGETING_REPORT_LIST_FAILED", "Failed to list targeting reports", err)
	}
	rows, err := f.reportRepo.ListWithRecipients(ctx, p.Size, p.Offset)
	if err != nil {
		return nil, internal("TARGETING_REPORT_LIST_FAILED", "Failed to list targeting reports", err)
	}
	items := make([]dto.TargetingReportRecipientsResponse, 0, len(rows))
	for _, r := range rows {
		item := dto.TargetingReportRecipientsResponse{
			ID:          r.ID,
			Opportunity: r.OpportunityID,
			DateFrom:    utils.FormatDate(r.DateFrom),
			DateTo:      utils.FormatDate(r.DateTo),
			Status:      r.Status.String(),
			Recipients:  make([]string, 0, len(r.Recipients)),
			CreatedAt:   r.CreatedAt,
		}
		if r.Opportunity != nil {
			item.Opportunity = r.Opportunity.Name
		}
		for _, u := range r.Recipients {
			item.Recipients = append(item.Recipients, u.Email)
		}
		items = append(items, item)
	}
	return newPage(p, items, total), nil
}
