package businessflow

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/business_flow/taxonomy"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSegmentRepo struct {
	repository.CustomSegmentRepository
	mu      sync.Mutex
	nextID  uint
	rows    []*models.CustomSegment
	uploads *fakeUploadRepo
	stats   map[uint]map[string]any
}

func (r *fakeSegmentRepo) Exists(_ context.Context, filter models.CustomSegmentFilter) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.DeletedAt.Valid {
			continue
		}
		if filter.OwnerID != nil && s.OwnerID != *filter.OwnerID {
			continue
		}
		if filter.Title != nil && s.Title != *filter.Title {
			continue
		}
		if filter.SegmentType != nil && s.SegmentType != *filter.SegmentType {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (r *fakeSegmentRepo) Save(_ context.Context, s *models.CustomSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s.ID = r.nextID
	r.rows = append(r.rows, s)
	return nil
}

func (r *fakeSegmentRepo) ByIDWithExport(ctx context.Context, id uint) (*models.CustomSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.ID == id && !s.DeletedAt.Valid {
			out := *s
			out.Export, _ = r.uploads.BySegmentID(ctx, id)
			return &out, nil
		}
	}
	return nil, nil
}

func (r *fakeSegmentRepo) Delete(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.ID == id && !s.DeletedAt.Valid {
			s.DeletedAt.Valid = true
			return true, nil
		}
	}
	return false, nil
}

type fakeUploadRepo struct {
	repository.CustomSegmentFileUploadRepository
	mu     sync.Mutex
	nextID uint
	rows   []*models.CustomSegmentFileUpload
	// hidden rows make Save collide as if another request inserted first
	hidden []*models.CustomSegmentFileUpload
}

func (r *fakeUploadRepo) Save(_ context.Context, u *models.CustomSegmentFileUpload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, h := range r.hidden {
		if h.SegmentID == u.SegmentID {
			r.rows = append(r.rows, h)
			r.hidden = append(r.hidden[:i], r.hidden[i+1:]...)
			return repository.ErrDuplicate
		}
	}
	for _, row := range r.rows {
		if row.SegmentID == u.SegmentID {
			return repository.ErrDuplicate
		}
	}
	r.nextID++
	u.ID = r.nextID
	u.UpdatedAt = time.Now().UTC()
	r.rows = append(r.rows, u)
	return nil
}

func (r *fakeUploadRepo) BySegmentID(_ context.Context, segmentID uint) (*models.CustomSegmentFileUpload, error) {
	for _, row := range r.rows {
		if row.SegmentID == segmentID {
			return row, nil
		}
	}
	return nil, nil
}

func (r *fakeUploadRepo) MarkFailed(_ context.Context, id uint, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id {
			row.Status = models.ExportStatusFailed
			row.Error = &reason
		}
	}
	return nil
}

func (r *fakeUploadRepo) Rearm(_ context.Context, id uint, staleBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID != id {
			continue
		}
		keyless := row.Status == models.ExportStatusSuccess && (row.FileKey == nil || *row.FileKey == "")
		if row.Status == models.ExportStatusFailed || keyless || (!row.Status.Terminal() && row.UpdatedAt.Before(staleBefore)) {
			row.Status = models.ExportStatusPending
			row.FileKey = nil
			row.UpdatedAt = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

type segmentFixture struct {
	flow     SegmentFlow
	segments *fakeSegmentRepo
	uploads  *fakeUploadRepo
	storage  *fakeStorage
	queue    *fakeQueue
	tx       *fakeTx
}

func newSegmentFixture() *segmentFixture {
	uploads := &fakeUploadRepo{}
	f := &segmentFixture{
		segments: &fakeSegmentRepo{uploads: uploads},
		uploads:  uploads,
		storage:  &fakeStorage{},
		queue:    &fakeQueue{},
		tx:       &fakeTx{},
	}
	f.flow = NewSegmentFlow(f.segments, f.uploads, f.storage, f.queue, taxonomy.MustDefault(), f.tx, time.Hour)
	return f
}

func TestSegmentCreate_BothTypesInOneTransaction(t *testing.T) {
	fx := newSegmentFixture()
	req := validSegmentRequest()
	req.SegmentType = dto.NewNumberInput("2")
	req.MinimumViews = dto.NewNumberInput("1,000")

	out, err := fx.flow.Create(asUser(7, models.CapabilityCTLCreate), req, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, 1, fx.tx.calls)
	assert.Equal(t, int(models.SegmentTypeVideo), out[0].SegmentType)
	assert.Equal(t, int(models.SegmentTypeChannel), out[1].SegmentType)
	for _, s := range out {
		assert.Equal(t, uint(7), s.OwnerID)
		assert.Equal(t, "whitelist", s.ListType)
		assert.NotEmpty(t, s.Query)
		require.NotNil(t, s.Export)
		assert.Equal(t, models.ExportStatusPending.String(), s.Export.Status)
	}

	require.Len(t, fx.queue.jobs, 2)
	for i, job := range fx.queue.jobs {
		assert.Equal(t, services.JobSegmentExport, job.Type)
		assert.Equal(t, fx.uploads.rows[i].ID, job.ID)
	}
}

func TestSegmentCreate_DuplicateTitleEnqueuesNothing(t *testing.T) {
	fx := newSegmentFixture()
	ctx := asUser(7, models.CapabilityCTLCreate)

	_, err := fx.flow.Create(ctx, validSegmentRequest(), nil)
	require.NoError(t, err)
	require.Len(t, fx.queue.jobs, 1)

	req := validSegmentRequest()
	req.SegmentType = dto.NewNumberInput("2")
	_, err = fx.flow.Create(ctx, req, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateSegmentTitle)
	assert.Len(t, fx.queue.jobs, 1)

	// another owner may reuse the title
	_, err = fx.flow.Create(asUser(8, models.CapabilityCTLCreate), validSegmentRequest(), nil)
	require.NoError(t, err)
}

func TestSegmentCreate_EnqueueFailureStillCreates(t *testing.T) {
	fx := newSegmentFixture()
	fx.queue.err = errBoom

	out, err := fx.flow.Create(asUser(7, models.CapabilityCTLCreate), validSegmentRequest(), nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, models.ExportStatusFailed.String(), out[0].Export.Status)
	assert.Equal(t, models.ExportStatusFailed, fx.uploads.rows[0].Status)
}

func TestSegmentCreate_RequiresCapability(t *testing.T) {
	fx := newSegmentFixture()

	_, err := fx.flow.Create(asUser(7, models.CapabilityCTLRead), validSegmentRequest(), nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, fx.tx.calls)
}

func TestSegmentExportStatus(t *testing.T) {
	t.Run("OtherOwnersSegmentLooksMissing", func(t *testing.T) {
		fx := newSegmentFixture()
		out, err := fx.flow.Create(asUser(7, models.CapabilityCTLCreate), validSegmentRequest(), nil)
		require.NoError(t, err)

		_, err = fx.flow.ExportStatus(asUser(8, models.CapabilityCTLRead), out[0].ID)
		assert.ErrorIs(t, err, ErrSegmentNotFound)

		resp, err := fx.flow.ExportStatus(asUser(9, models.CapabilityCTLSeeAll), out[0].ID)
		require.NoError(t, err)
		assert.Equal(t, ExportStatusCreated, resp.Status)
	})

	t.Run("ReadyReturnsLink", func(t *testing.T) {
		fx := newSegmentFixture()
		ctx := asUser(7, models.CapabilityCTLCreate)
		out, err := fx.flow.Create(ctx, validSegmentRequest(), nil)
		require.NoError(t, err)

		key := "custom_segments/7/1.csv"
		fx.uploads.rows[0].Status = models.ExportStatusSuccess
		fx.uploads.rows[0].FileKey = &key

		resp, err := fx.flow.ExportStatus(ctx, out[0].ID)
		require.NoError(t, err)
		assert.Equal(t, ExportStatusReady, resp.Status)
		assert.Equal(t, "https://storage.example.com/custom_segments/7/1.csv?sig=1", resp.DownloadLink)
	})

	t.Run("SuccessWithoutFileIsRetried", func(t *testing.T) {
		fx := newSegmentFixture()
		ctx := asUser(7, models.CapabilityCTLCreate)
		out, err := fx.flow.Create(ctx, validSegmentRequest(), nil)
		require.NoError(t, err)
		fx.uploads.rows[0].Status = models.ExportStatusSuccess

		resp, err := fx.flow.ExportStatus(ctx, out[0].ID)
		require.NoError(t, err)
		assert.Equal(t, ExportStatusFailed, resp.Status)
		assert.Equal(t, exportRetryMessage, resp.Message)
		assert.Equal(t, models.ExportStatusPending, fx.uploads.rows[0].Status)
		assert.Len(t, fx.queue.jobs, 2)

		resp, err = fx.flow.ExportStatus(ctx, out[0].ID)
		require.NoError(t, err)
		assert.Equal(t, ExportStatusCreated, resp.Status)
		assert.Len(t, fx.queue.jobs, 2)
	})

	t.Run("MissingExportIsScheduled", func(t *testing.T) {
		fx := newSegmentFixture()
		segment := &models.CustomSegment{OwnerID: 7, Title: "legacy", ListType: models.ListTypeWhitelist}
		require.NoError(t, fx.segments.Save(context.Background(), segment))

		resp, err := fx.flow.ExportStatus(asUser(7), segment.ID)
		require.NoError(t, err)
		assert.Equal(t, ExportStatusCreated, resp.Status)
		require.Len(t, fx.uploads.rows, 1)
		require.Len(t, fx.queue.jobs, 1)
		assert.Equal(t, fx.uploads.rows[0].ID, fx.queue.jobs[0].ID)
	})

	t.Run("ConcurrentInsertIsReused", func(t *testing.T) {
		fx := newSegmentFixture()
		segment := &models.CustomSegment{OwnerID: 7, Title: "legacy", ListType: models.ListTypeWhitelist}
		require.NoError(t, fx.segments.Save(context.Background(), segment))
		fx.uploads.hidden = []*models.CustomSegmentFileUpload{{
			ID:        40,
			SegmentID: segment.ID,
			Status:    models.ExportStatusInProgress,
			UpdatedAt: time.Now().UTC(),
		}}

		resp, err := fx.flow.ExportStatus(asUser(7), segment.ID)
		require.NoError(t, err)
		assert.Equal(t, ExportStatusCreated, resp.Status)
		assert.Empty(t, fx.queue.jobs)
	})
}

func TestSegmentDelete_RemovesExportFile(t *testing.T) {
	fx := newSegmentFixture()
	ctx := asUser(7, models.CapabilityCTLCreate)
	out, err := fx.flow.Create(ctx, validSegmentRequest(), nil)
	require.NoError(t, err)

	key := "custom_segments/7/1.csv"
	require.NoError(t, fx.storage.Put(ctx, key, strings.NewReader("id\n"), "text/csv"))
	fx.uploads.rows[0].FileKey = &key

	require.NoError(t, fx.flow.Delete(ctx, out[0].ID))
	assert.NotContains(t, fx.storage.objects, key)

	_, err = fx.flow.Get(ctx, out[0].ID)
	assert.ErrorIs(t, err, ErrSegmentNotFound)
}
