package businessflow

import (
	"context"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"golang.org/x/sync/errgroup"
)

// DashboardFlow aggregates platform counters for administrators
type DashboardFlow interface {
	Dashboard(ctx context.Context) (*dto.DashboardResponse, error)
}

// DashboardFlowImpl implements the dashboard business flow
type DashboardFlowImpl struct {
	userRepo    repository.UserRepository
	segmentRepo repository.CustomSegmentRepository
	uploadRepo  repository.CustomSegmentFileUploadRepository
	reportRepo  repository.OpportunityTargetingReportRepository
	subRepo     repository.SubscriptionRepository
}

// NewDashboardFlow creates a new dashboard flow instance
func NewDashboardFlow(
	userRepo repository.UserRepository,
	segmentRepo repository.CustomSegmentRepository,
	uploadRepo repository.CustomSegmentFileUploadRepository,
	reportRepo repository.OpportunityTargetingReportRepository,
	subRepo repository.SubscriptionRepository,
) DashboardFlow {
	return &DashboardFlowImpl{
		userRepo:    userRepo,
		segmentRepo: segmentRepo,
		uploadRepo:  uploadRepo,
		reportRepo:  reportRepo,
		subRepo:     subRepo,
	}
}

func statusCounts(in map[models.ExportStatus]int64) map[string]int64 {
	out := map[string]int64{
		models.ExportStatusPending.String():    0,
		models.ExportStatusInProgress.String(): 0,
		models.ExportStatusSuccess.String():    0,
		models.ExportStatusFailed.String():     0,
	}
	for status, n := range in {
		out[status.String()] = n
	}
	return out
}

// Dashboard runs the independent counters concurrently
func (f *DashboardFlowImpl) Dashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	if _, err := requireCapability(ctx, models.CapabilityDashboard); err != nil {
		return nil, err
	}

	var (
		resp     dto.DashboardResponse
		segments map[models.SegmentType]int64
		uploads  map[models.ExportStatus]int64
		reports  map[models.ExportStatus]int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		resp.Users.Total, err = f.userRepo.Count(gctx, models.UserFilter{})
		return err
	})
	g.Go(func() (err error) {
		active := true
		resp.Users.Active, err = f.userRepo.Count(gctx, models.UserFilter{IsActive: &active})
		return err
	})
	g.Go(func() (err error) {
		segments, err = f.segmentRepo.CountByType(gctx)
		return err
	})
	g.Go(func() (err error) {
		uploads, err = f.uploadRepo.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		reports, err = f.reportRepo.CountByStatus(gctx)
		return err
	})
	g.Go(func() (err error) {
		status := models.SubscriptionStatusActive
		resp.ActiveSubscriptions, err = f.subRepo.Count(gctx, models.SubscriptionFilter{Status: &status})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internal("DASHBOARD_FAILED", "Failed to load dashboard", err)
	}

	resp.Segments = map[string]int64{
		models.SegmentTypeVideo.String():   segments[models.SegmentTypeVideo],
		models.SegmentTypeChannel.String(): segments[models.SegmentTypeChannel],
	}
	resp.SegmentExports = statusCounts(uploads)
	resp.TargetingReports = statusCounts(reports)
	return &resp, nil
}
