package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/amirphl/viewiq/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CustomSegmentRepositoryImpl implements CustomSegmentRepository interface
type CustomSegmentRepositoryImpl struct {
	*BaseRepository[models.CustomSegment, models.CustomSegmentFilter]
}

// NewCustomSegmentRepository creates a new custom segment repository
func NewCustomSegmentRepository(db *gorm.DB) CustomSegmentRepository {
	return &CustomSegmentRepositoryImpl{
		BaseRepository: NewBaseRepository[models.CustomSegment, models.CustomSegmentFilter](db),
	}
}

// ByIDWithExport retrieves a segment with its export row
func (r *CustomSegmentRepositoryImpl) ByIDWithExport(ctx context.Context, id uint) (*models.CustomSegment, error) {
	var row models.CustomSegment
	err := r.getDB(ctx).Preload("Export").First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find segment %d: %w", id, err)
	}
	return &row, nil
}

// UpdateStatistics overwrites the statistics document of a segment
func (r *CustomSegmentRepositoryImpl) UpdateStatistics(ctx context.Context, id uint, stats map[string]any) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Model(&models.CustomSegment{}).Where("id = ?", id).Update("statistics", datatypes.JSONMap(stats)).Error
	})
}

// CountByType counts live segments per segment type
func (r *CustomSegmentRepositoryImpl) CountByType(ctx context.Context) (map[models.SegmentType]int64, error) {
	var rows []struct {
		SegmentType models.SegmentType
		Total       int64
	}
	err := r.getDB(ctx).Model(&models.CustomSegment{}).
		Select("segment_type, COUNT(*) AS total").Group("segment_type").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.SegmentType]int64, len(rows))
	for _, row := range rows {
		out[row.SegmentType] = row.Total
	}
	return out, nil
}

func (r *CustomSegmentRepositoryImpl) applyFilter(query *gorm.DB, filter models.CustomSegmentFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Title != nil {
		query = query.Where("LOWER(title) = ?", strings.ToLower(strings.TrimSpace(*filter.Title)))
	}
	if filter.SegmentType != nil {
		query = query.Where("segment_type = ?", *filter.SegmentType)
	}
	if filter.ListType != nil {
		query = query.Where("list_type = ?", *filter.ListType)
	}
	if filter.Search != nil && *filter.Search != "" {
		query = query.Where("LOWER(title) LIKE ?", containsPattern(*filter.Search))
	}
	return query
}

// ByFilter retrieves segments based on filter criteria
func (r *CustomSegmentRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomSegmentFilter, orderBy string, limit, offset int) ([]*models.CustomSegment, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.CustomSegment{}), filter)
	query = paginate(query.Preload("Export"), orderBy, limit, offset)
	var rows []*models.CustomSegment
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of segments matching filter
func (r *CustomSegmentRepositoryImpl) Count(ctx context.Context, filter models.CustomSegmentFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.CustomSegment{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any segment matches the filter
func (r *CustomSegmentRepositoryImpl) Exists(ctx context.Context, filter models.CustomSegmentFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CustomSegmentFileUploadRepositoryImpl implements CustomSegmentFileUploadRepository interface
type CustomSegmentFileUploadRepositoryImpl struct {
	*BaseRepository[models.CustomSegmentFileUpload, models.CustomSegmentFileUploadFilter]
	*exportJobStore
}

// NewCustomSegmentFileUploadRepository creates a new segment export repository
func NewCustomSegmentFileUploadRepository(db *gorm.DB) CustomSegmentFileUploadRepository {
	base := NewBaseRepository[models.CustomSegmentFileUpload, models.CustomSegmentFileUploadFilter](db)
	return &CustomSegmentFileUploadRepositoryImpl{
		BaseRepository: base,
		exportJobStore: &exportJobStore{
			jobs:    exportJobs{table: "custom_segment_file_uploads", fileKeyColumn: "file_key", hasRowCount: true},
			readDB:  base.getDB,
			writeDB: base.write,
		},
	}
}

// BySegmentID retrieves the export row of a segment
func (r *CustomSegmentFileUploadRepositoryImpl) BySegmentID(ctx context.Context, segmentID uint) (*models.CustomSegmentFileUpload, error) {
	rows, err := r.ByFilter(ctx, models.CustomSegmentFileUploadFilter{SegmentID: &segmentID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *CustomSegmentFileUploadRepositoryImpl) applyFilter(query *gorm.DB, filter models.CustomSegmentFileUploadFilter) *gorm.DB {
	if filter.SegmentID != nil {
		query = query.Where("segment_id = ?", *filter.SegmentID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves segment exports based on filter criteria
func (r *CustomSegmentFileUploadRepositoryImpl) ByFilter(ctx context.Context, filter models.CustomSegmentFileUploadFilter, orderBy string, limit, offset int) ([]*models.CustomSegmentFileUpload, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.CustomSegmentFileUpload{}), filter), orderBy, limit, offset)
	var rows []*models.CustomSegmentFileUpload
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of segment exports matching filter
func (r *CustomSegmentFileUploadRepositoryImpl) Count(ctx context.Context, filter models.CustomSegmentFileUploadFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.CustomSegmentFileUpload{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any segment export matches the filter
func (r *CustomSegmentFileUploadRepositoryImpl) Exists(ctx context.Context, filter models.CustomSegmentFileUploadFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
