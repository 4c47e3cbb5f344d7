package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingUsers struct {
	repository.UserRepository
	total, active int64
}

func (r countingUsers) Count(_ context.Context, filter models.UserFilter) (int64, error) {
	if filter.IsActive != nil {
		return r.active, nil
	}
	return r.total, nil
}

type countingSegments struct {
	repository.CustomSegmentRepository
}

func (countingSegments) CountByType(context.Context) (map[models.SegmentType]int64, error) {
	return map[models.SegmentType]int64{models.SegmentTypeChannel: 4}, nil
}

type countingUploads struct {
	repository.CustomSegmentFileUploadRepository
}

func (countingUploads) CountByStatus(context.Context) (map[models.ExportStatus]int64, error) {
	return map[models.ExportStatus]int64{models.ExportStatusSuccess: 3, models.ExportStatusFailed: 1}, nil
}

type countingReports struct {
	repository.OpportunityTargetingReportRepository
	err error
}

func (r countingReports) CountByStatus(context.Context) (map[models.ExportStatus]int64, error) {
	return map[models.ExportStatus]int64{models.ExportStatusPending: 2}, r.err
}

type countingSubscriptions struct {
	repository.SubscriptionRepository
}

func (countingSubscriptions) Count(context.Context, models.SubscriptionFilter) (int64, error) {
	return 5, nil
}

func TestDashboard(t *testing.T) {
	users := countingUsers{total: 10, active: 7}

	t.Run("Counts", func(t *testing.T) {
		flow := NewDashboardFlow(users, countingSegments{}, countingUploads{}, countingReports{}, countingSubscriptions{})
		resp, err := flow.Dashboard(asUser(1, models.CapabilityDashboard))
		require.NoError(t, err)

		assert.EqualValues(t, 10, resp.Users.Total)
		assert.EqualValues(t, 7, resp.Users.Active)
		assert.Equal(t, map[string]int64{"video": 0, "channel": 4}, resp.Segments)
		assert.EqualValues(t, 3, resp.SegmentExports["success"])
		assert.EqualValues(t, 0, resp.SegmentExports["in_progress"])
		assert.EqualValues(t, 2, resp.TargetingReports["pending"])
		assert.EqualValues(t, 5, resp.ActiveSubscriptions)
	})

	t.Run("AnyCounterFailing", func(t *testing.T) {
		flow := NewDashboardFlow(users, countingSegments{}, countingUploads{}, countingReports{err: errBoom}, countingSubscriptions{})
		_, err := flow.Dashboard(asUser(1, models.CapabilityDashboard))
		require.Error(t, err)
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("RequiresCapability", func(t *testing.T) {
		flow := NewDashboardFlow(users, countingSegments{}, countingUploads{}, countingReports{}, countingSubscriptions{})
		_, err := flow.Dashboard(asUser(1, models.CapabilityCTLRead))
		assert.ErrorIs(t, err, ErrForbidden)

		// admin implies every capability
		_, err = flow.Dashboard(asUser(1, models.CapabilityAdmin))
		assert.NoError(t, err)
	})
}
