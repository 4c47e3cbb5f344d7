package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/business_flow/taxonomy"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"gorm.io/datatypes"
)

// SegmentFlow manages custom target lists and their exports
type SegmentFlow interface {
	Create(ctx context.Context, req *dto.CreateSegmentRequest, metadata *ClientMetadata) ([]*dto.SegmentResponse, error)
	List(ctx context.Context, q *dto.SegmentListQuery) (*dto.Page[dto.SegmentResponse], error)
	Get(ctx context.Context, id uint) (*dto.SegmentResponse, error)
	Delete(ctx context.Context, id uint) error
	ExportStatus(ctx context.Context, id uint) (*dto.ExportStatusResponse, error)
}

// SegmentFlowImpl implements the segment business flow
type SegmentFlowImpl struct {
	segmentRepo repository.CustomSegmentRepository
	uploadRepo  repository.CustomSegmentFileUploadRepository
	storage     services.ObjectStorage
	taxonomy    *taxonomy.Taxonomy
	tx          repository.TxRunner
	exports     *exportTracker
}

// NewSegmentFlow creates a new segment flow instance
func NewSegmentFlow(
	segmentRepo repository.CustomSegmentRepository,
	uploadRepo repository.CustomSegmentFileUploadRepository,
	storage services.ObjectStorage,
	queue services.TaskQueue,
	tax *taxonomy.Taxonomy,
	tx repository.TxRunner,
	staleAfter time.Duration,
) SegmentFlow {
	if staleAfter <= 0 {
		staleAfter = DefaultExportStaleAfter
	}
	return &SegmentFlowImpl{
		segmentRepo: segmentRepo,
		uploadRepo:  uploadRepo,
		storage:     storage,
		taxonomy:    tax,
		tx:          tx,
		exports: &exportTracker{
			store:      uploadRepo,
			queue:      queue,
			storage:    storage,
			jobType:    services.JobSegmentExport,
			staleAfter: staleAfter,
		},
	}
}

func toSegmentResponse(s *models.CustomSegment) *dto.SegmentResponse {
	resp := &dto.SegmentResponse{
		ID:          s.ID,
		UUID:        s.UUID.String(),
		OwnerID:     s.OwnerID,
		Title:       s.Title,
		SegmentType: int(s.SegmentType),
		ListType:    string(s.ListType),
		Statistics:  map[string]any(s.Statistics),
		Query:       json.RawMessage(s.Query),
		CreatedAt:   s.CreatedAt,
	}
	if resp.Statistics == nil {
		resp.Statistics = map[string]any{}
	}
	if s.Export != nil {
		resp.Export = &dto.SegmentExportInfo{
			Status:      s.Export.Status.String(),
			RowCount:    s.Export.RowCount,
			CompletedAt: s.Export.CompletedAt,
		}
	}
	return resp
}

func duplicateSegmentTitle(segmentType models.SegmentType, title string) *BusinessError {
	return NewBusinessErrorf("DUPLICATE_SEGMENT_TITLE",
		"A %s target list with the title: %s already exists.", ErrDuplicateSegmentTitle, segmentType.String(), title)
}

// Create validates the filters and stores one segment per requested type with a pending export
func (f *SegmentFlowImpl) Create(ctx context.Context, req *dto.CreateSegmentRequest, metadata *ClientMetadata) ([]*dto.SegmentResponse, error) {
	caller, err := requireCapability(ctx, models.CapabilityCTLCreate)
	if err != nil {
		return nil, err
	}
	criteria, err := ParseSegmentRequest(req, f.taxonomy)
	if err != nil {
		return nil, err
	}

	var created []*models.CustomSegment
	err = f.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		for _, segmentType := range criteria.SegmentTypes {
			st := segmentType
			exists, err := f.segmentRepo.Exists(txCtx, models.CustomSegmentFilter{
				OwnerID:     &caller.ID,
				Title:       &criteria.Title,
				SegmentType: &st,
			})
			if err != nil {
				return err
			}
			if exists {
				return duplicateSegmentTitle(st, criteria.Title)
			}

			query, err := json.Marshal(BuildSegmentQuery(criteria, st))
			if err != nil {
				return err
			}
			segment := &models.CustomSegment{
				OwnerID:     caller.ID,
				Title:       criteria.Title,
				SegmentType: st,
				ListType:    criteria.ListType,
				Statistics:  datatypes.JSONMap{},
				Query:       datatypes.JSON(query),
			}
			if err := f.segmentRepo.Save(txCtx, segment); err != nil {
				if repository.IsDuplicate(err) {
					return duplicateSegmentTitle(st, criteria.Title)
				}
				return err
			}
			upload := &models.CustomSegmentFileUpload{
				SegmentID: segment.ID,
				Query:     datatypes.JSON(query),
				Status:    models.ExportStatusPending,
			}
			if err := f.uploadRepo.Save(txCtx, upload); err != nil {
				return err
			}
			segment.Export = upload
			created = append(created, segment)
		}
		return nil
	})
	if err != nil {
		return nil, asBusinessError(err, "SEGMENT_CREATION_FAILED", "Failed to create segment")
	}

	out := make([]*dto.SegmentResponse, 0, len(created))
	for _, segment := range created {
		if err := f.exports.enqueue(ctx, segment.Export.ID); err != nil {
			segment.Export.Status = models.ExportStatusFailed
		}
		out = append(out, toSegmentResponse(segment))
		slog.InfoContext(ctx, "segment created",
			append([]any{"segment_id", segment.ID, "owner_id", caller.ID, "segment_type", segment.SegmentType.String()}, metadata.logAttrs()...)...)
	}
	return out, nil
}

// List returns the caller's segments, or every segment for ctl.see_all
func (f *SegmentFlowImpl) List(ctx context.Context, q *dto.SegmentListQuery) (*dto.Page[dto.SegmentResponse], error) {
	caller, err := requireCapability(ctx, models.CapabilityCTLRead, models.CapabilityCTLCreate)
	if err != nil {
		return nil, err
	}
	p := newPagination(q.Page, q.Size)
	filter := models.CustomSegmentFilter{Search: optionalString(q.Search)}
	if !caller.Can(models.CapabilityCTLSeeAll) {
		filter.OwnerID = &caller.ID
	}
	if q.SegmentType != nil {
		st := models.SegmentType(*q.SegmentType)
		if !st.Valid() {
			return nil, ValidationError("Invalid list_type: %d. 0 = video, 1 = channel.", *q.SegmentType)
		}
		filter.SegmentType = &st
	}
	if lt := strings.TrimSpace(q.ListType); lt != "" {
		listType := models.ListType(strings.ToLower(lt))
		if !listType.Valid() {
			return nil, ValidationError("Invalid list_type: %s. Expected whitelist or blacklist.", lt)
		}
		filter.ListType = &listType
	}

	total, err := f.segmentRepo.Count(ctx, filter)
	if err != nil {
		return nil, internal("SEGMENT_LIST_FAILED", "Failed to list segments", err)
	}
	rows, err := f.segmentRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", p.Size, p.Offset)
	if err != nil {
		return nil, internal("SEGMENT_LIST_FAILED", "Failed to list segments", err)
	}
	items := make([]dto.SegmentResponse, 0, len(rows))
	for _, row := range rows {
		items = append(items, *toSegmentResponse(row))
	}
	return newPage(p, items, total), nil
}

// visibleSegment loads a segment the caller may see; other owners' segments look missing
func (f *SegmentFlowImpl) visibleSegment(ctx context.Context, id uint) (*models.CustomSegment, *BusinessError) {
	caller, err := currentUser(ctx)
	if err != nil {
		var be *BusinessError
		errors.As(err, &be)
		return nil, be
	}
	segment, err := f.segmentRepo.ByIDWithExport(ctx, id)
	if err != nil {
		return nil, internal("SEGMENT_LOOKUP_FAILED", "Failed to load segment", err)
	}
	if segment == nil || (segment.OwnerID != caller.ID && !caller.Can(models.CapabilityCTLSeeAll)) {
		return nil, notFound("SEGMENT_NOT_FOUND", "Segment not found", ErrSegmentNotFound)
	}
	return segment, nil
}

func (f *SegmentFlowImpl) Get(ctx context.Context, id uint) (*dto.SegmentResponse, error) {
	segment, be := f.visibleSegment(ctx, id)
	if be != nil {
		return nil, be
	}
	return toSegmentResponse(segment), nil
}

// Delete soft-deletes the segment and removes its export file when one exists
func (f *SegmentFlowImpl) Delete(ctx context.Context, id uint) error {
	segment, be := f.visibleSegment(ctx, id)
	if be != nil {
		return be
	}
	if _, err := f.segmentRepo.Delete(ctx, segment.ID); err != nil {
		return internal("SEGMENT_DELETE_FAILED", "Failed to delete segment", err)
	}
	if segment.Export != nil && segment.Export.FileKey != nil {
		if err := f.storage.Delete(ctx, *segment.Export.FileKey); err != nil {
			slog.WarnContext(ctx, "failed to delete segment export file", "segment_id", segment.ID, "key", *segment.Export.FileKey, "error", err)
		}
	}
	return nil
}

// ExportStatus reports the export state of a segment, scheduling a new export when none exists
func (f *SegmentFlowImpl) ExportStatus(ctx context.Context, id uint) (*dto.ExportStatusResponse, error) {
	segment, be := f.visibleSegment(ctx, id)
	if be != nil {
		return nil, be
	}
	upload := segment.Export
	if upload == nil {
		upload = &models.CustomSegmentFileUpload{
			SegmentID: segment.ID,
			Query:     segment.Query,
			Status:    models.ExportStatusPending,
		}
		if err := f.uploadRepo.Save(ctx, upload); err != nil {
			if !repository.IsDuplicate(err) {
				return nil, internal("SEGMENT_EXPORT_FAILED", "Failed to schedule export", err)
			}
			// a concurrent poll inserted the row first
			if upload, err = f.uploadRepo.BySegmentID(ctx, segment.ID); err != nil || upload == nil {
				return nil, internal("SEGMENT_EXPORT_FAILED", "Failed to schedule export", fmt.Errorf("reload export of segment %d: %w", segment.ID, err))
			}
			return f.exports.status(ctx, uploadState(upload))
		}
		if err := f.exports.enqueue(ctx, upload.ID); err != nil {
			return nil, err
		}
		return createdResponse(), nil
	}
	return f.exports.status(ctx, uploadState(upload))
}

func uploadState(u *models.CustomSegmentFileUpload) exportJobState {
	return exportJobState{ID: u.ID, Status: u.Status, FileKey: u.FileKey, UpdatedAt: u.UpdatedAt}
}
