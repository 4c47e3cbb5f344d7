package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
)

const (
	csvContentType  = "text/csv"
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	videoSegmentHeader   = []string{"URL", "Title", "Language", "Category", "Views", "Score"}
	channelSegmentHeader = []string{"URL", "Title", "Language", "Category", "Subscribers", "Views", "Score"}
)

// ExportFlow runs the background exports picked up by the worker
type ExportFlow interface {
	// Run dispatches a queued job to its export; jobs already taken by another worker are skipped
	Run(ctx context.Context, job services.Job) error
	RunSegmentExport(ctx context.Context, uploadID uint) error
	RunTargetingReport(ctx context.Context, reportID uint) error
	// FailStale marks exports stuck in progress since before staleBefore as failed
	FailStale(ctx context.Context, staleBefore time.Time) (int64, error)
}

// ExportOptions are the tunables of ExportFlowImpl
type ExportOptions struct {
	VideoIndex   string
	ChannelIndex string
	ScanSize     int
}

// ExportFlowImpl implements the export business flow
type ExportFlowImpl struct {
	segmentRepo repository.CustomSegmentRepository
	uploadRepo  repository.CustomSegmentFileUploadRepository
	reportRepo  repository.OpportunityTargetingReportRepository
	statRepo    repository.TargetingStatisticRepository
	userRepo    repository.UserRepository
	index       services.SearchIndex
	storage     services.ObjectStorage
	notifier    services.NotificationService
	opts        ExportOptions
}

// NewExportFlow creates a new export flow instance
func NewExportFlow(
	segmentRepo repository.CustomSegmentRepository,
	uploadRepo repository.CustomSegmentFileUploadRepository,
	reportRepo repository.OpportunityTargetingReportRepository,
	statRepo repository.TargetingStatisticRepository,
	userRepo repository.UserRepository,
	index services.SearchIndex,
	storage services.ObjectStorage,
	notifier services.NotificationService,
	opts ExportOptions,
) ExportFlow {
	return &ExportFlowImpl{
		segmentRepo: segmentRepo,
		uploadRepo:  uploadRepo,
		reportRepo:  reportRepo,
		statRepo:    statRepo,
		userRepo:    userRepo,
		index:       index,
		storage:     storage,
		notifier:    notifier,
		opts:        opts,
	}
}

func (f *ExportFlowImpl) Run(ctx context.Context, job services.Job) error {
	switch job.Type {
	case services.JobSegmentExport:
		return f.RunSegmentExport(ctx, job.ID)
	case services.JobTargetingReport:
		return f.RunTargetingReport(ctx, job.ID)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}

// SegmentExportKey is the object key of a segment CSV
func SegmentExportKey(ownerID, segmentID uint) string {
	return fmt.Sprintf("custom_segments/%d/%d.csv", ownerID, segmentID)
}

// TargetingReportKey is the object key of a targeting report workbook
func TargetingReportKey(r *models.OpportunityTargetingReport) string {
	return fmt.Sprintf("opportunity_targeting_reports/%s_%s_%s_%s.xlsx",
		r.OpportunityID, utils.FormatDate(r.DateFrom), utils.FormatDate(r.DateTo), r.CreatedAt.UTC().Format("20060102150405"))
}

// fail records the failure on the row; the original error is returned for the worker to log
func fail(ctx context.Context, store repository.ExportJobStore, id uint, cause error) error {
	if err := store.MarkFailed(ctx, id, cause.Error()); err != nil {
		slog.ErrorContext(ctx, "failed to mark export failed", "id", id, "error", err)
	}
	return cause
}

func segmentRecord(segmentType models.SegmentType, doc *models.IndexDocument) []string {
	score := strconv.Itoa(int(math.Round(doc.BrandSafety.OverallScore)))
	if segmentType == models.SegmentTypeChannel {
		return []string{
			"https://www.youtube.com/channel/" + doc.Main.ID,
			doc.GeneralData.Title,
			doc.Language(),
			doc.Category(),
			strconv.FormatInt(doc.Stats.Subscribers, 10),
			strconv.FormatInt(doc.Stats.Views, 10),
			score,
		}
	}
	return []string{
		"https://www.youtube.com/watch?v=" + doc.Main.ID,
		doc.GeneralData.Title,
		doc.Language(),
		doc.Category(),
		strconv.FormatInt(doc.Stats.Views, 10),
		score,
	}
}

// RunSegmentExport replays the stored query, uploads the CSV and notifies the owner
func (f *ExportFlowImpl) RunSegmentExport(ctx context.Context, uploadID uint) error {
	started, err := f.uploadRepo.MarkInProgress(ctx, uploadID)
	if err != nil {
		return err
	}
	if !started {
		slog.InfoContext(ctx, "segment export already taken", "upload_id", uploadID)
		return nil
	}

	upload, err := f.uploadRepo.ByID(ctx, uploadID)
	if err != nil {
		return fail(ctx, f.uploadRepo, uploadID, err)
	}
	if upload == nil {
		return fmt.Errorf("segment export %d not found", uploadID)
	}
	segment, err := f.segmentRepo.ByID(ctx, upload.SegmentID)
	if err != nil {
		return fail(ctx, f.uploadRepo, uploadID, err)
	}
	if segment == nil {
		return fail(ctx, f.uploadRepo, uploadID, fmt.Errorf("segment %d was deleted", upload.SegmentID))
	}

	var query map[string]any
	if err := json.Unmarshal(upload.Query, &query); err != nil {
		return fail(ctx, f.uploadRepo, uploadID, fmt.Errorf("decode segment query: %w", err))
	}

	indexName, header := f.opts.VideoIndex, videoSegmentHeader
	if segment.SegmentType == models.SegmentTypeChannel {
		indexName, header = f.opts.ChannelIndex, channelSegmentHeader
	}

	var (
		buf        bytes.Buffer
		rows       int64
		scoreTotal float64
	)
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fail(ctx, f.uploadRepo, uploadID, err)
	}
	err = f.index.Scan(ctx, indexName, query, f.opts.ScanSize, func(hits []services.SearchHit) error {
		for i := range hits {
			doc := &hits[i].Source
			if doc.Main.ID == "" {
				doc.Main.ID = hits[i].ID
			}
			if err := w.Write(segmentRecord(segment.SegmentType, doc)); err != nil {
				return err
			}
			rows++
			scoreTotal += doc.BrandSafety.OverallScore
		}
		return nil
	})
	if err != nil {
		return fail(ctx, f.uploadRepo, uploadID, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fail(ctx, f.uploadRepo, uploadID, err)
	}

	key := SegmentExportKey(segment.OwnerID, segment.ID)
	if err := f.storage.Put(ctx, key, &buf, csvContentType); err != nil {
		return fail(ctx, f.uploadRepo, uploadID, err)
	}
	if err := f.uploadRepo.MarkSuccess(ctx, uploadID, key, rows); err != nil {
		return err
	}

	stats := map[string]any{
		"items_count": rows,
		"exported_at": utils.UTCNow().Format(time.RFC3339),
	}
	if rows > 0 {
		stats["average_brand_safety_score"] = math.Round(scoreTotal / float64(rows))
	}
	if err := f.segmentRepo.UpdateStatistics(ctx, segment.ID, stats); err != nil {
		slog.WarnContext(ctx, "failed to update segment statistics", "segment_id", segment.ID, "error", err)
	}
	slog.InfoContext(ctx, "segment export finished", "segment_id", segment.ID, "rows", rows, "key", key)

	f.notifySegmentOwner(ctx, segment, key)
	return nil
}

func (f *ExportFlowImpl) notifySegmentOwner(ctx context.Context, segment *models.CustomSegment, key string) {
	owner, err := f.userRepo.ByID(ctx, segment.OwnerID)
	if err != nil || owner == nil {
		slog.WarnContext(ctx, "segment owner not found for notification", "segment_id", segment.ID, "error", err)
		return
	}
	link, err := f.storage.PresignedURL(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "failed to presign segment export", "segment_id", segment.ID, "error", err)
		return
	}
	if err := f.notifier.SendSegmentExportReady(ctx, owner.Email, segment.Title, link); err != nil {
		slog.WarnContext(ctx, "failed to send segment export email", "segment_id", segment.ID, "error", err)
	}
}

// RunTargetingReport builds the workbook for a report row and emails every recipient
func (f *ExportFlowImpl) RunTargetingReport(ctx context.Context, reportID uint) error {
	started, err := f.reportRepo.MarkInProgress(ctx, reportID)
	if err != nil {
		return err
	}
	if !started {
		slog.InfoContext(ctx, "targeting report already taken", "report_id", reportID)
		return nil
	}

	report, err := f.reportRepo.ByIDWithRelations(ctx, reportID)
	if err != nil {
		return fail(ctx, f.reportRepo, reportID, err)
	}
	if report == nil {
		return fmt.Errorf("targeting report %d not found", reportID)
	}
	if report.Opportunity == nil {
		return fail(ctx, f.reportRepo, reportID, errors.New("opportunity no longer exists"))
	}

	stats, err := f.statRepo.ByFilter(ctx, models.TargetingStatisticFilter{
		OpportunityID: &report.OpportunityID,
		DateFrom:      &report.DateFrom,
		DateTo:        &report.DateTo,
	})
	if err != nil {
		return fail(ctx, f.reportRepo, reportID, err)
	}

	data, err := BuildTargetingReport(report.Opportunity, report.DateFrom, report.DateTo, stats, utils.UTCNow())
	if err != nil {
		return fail(ctx, f.reportRepo, reportID, fmt.Errorf("build workbook: %w", err))
	}
	key := TargetingReportKey(report)
	if err := f.storage.Put(ctx, key, bytes.NewReader(data), xlsxContentType); err != nil {
		return fail(ctx, f.reportRepo, reportID, err)
	}
	if err := f.reportRepo.MarkSuccess(ctx, reportID, key, int64(len(stats))); err != nil {
		return err
	}
	slog.InfoContext(ctx, "targeting report finished", "report_id", reportID, "statistics", len(stats), "key", key)

	emails := make([]string, 0, len(report.Recipients))
	for _, u := range report.Recipients {
		emails = append(emails, u.Email)
	}
	if len(emails) == 0 {
		return nil
	}
	link, err := f.storage.PresignedURL(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "failed to presign targeting report", "report_id", reportID, "error", err)
		return nil
	}
	dateRange := fmt.Sprintf("%s - %s", utils.FormatDate(report.DateFrom), utils.FormatDate(report.DateTo))
	if err := f.notifier.SendTargetingReportReady(ctx, emails, report.Opportunity.Name, dateRange, link); err != nil {
		slog.WarnContext(ctx, "failed to send targeting report email", "report_id", reportID, "error", err)
	}
	return nil
}

func (f *ExportFlowImpl) FailStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	uploads, err := f.uploadRepo.FailStale(ctx, staleBefore)
	if err != nil {
		return 0, err
	}
	reports, err := f.reportRepo.FailStale(ctx, staleBefore)
	if err != nil {
		return uploads, err
	}
	return uploads + reports, nil
}
