package repository

import (
	"context"

	"github.com/amirphl/viewiq/models"
	"gorm.io/gorm"
)

// BadWordCategoryRepositoryImpl implements BadWordCategoryRepository interface
type BadWordCategoryRepositoryImpl struct {
	*BaseRepository[models.BadWordCategory, models.BadWordCategoryFilter]
}

// NewBadWordCategoryRepository creates a new bad word category repository
func NewBadWordCategoryRepository(db *gorm.DB) BadWordCategoryRepository {
	return &BadWordCategoryRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BadWordCategory, models.BadWordCategoryFilter](db),
	}
}

// ByName retrieves a category by exact name
func (r *BadWordCategoryRepositoryImpl) ByName(ctx context.Context, name string) (*models.BadWordCategory, error) {
	rows, err := r.ByFilter(ctx, models.BadWordCategoryFilter{Name: &name}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *BadWordCategoryRepositoryImpl) applyFilter(query *gorm.DB, filter models.BadWordCategoryFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	if filter.Excluded != nil {
		query = query.Where("excluded = ?", *filter.Excluded)
	}
	return query
}

// ByFilter retrieves categories based on filter criteria
func (r *BadWordCategoryRepositoryImpl) ByFilter(ctx context.Context, filter models.BadWordCategoryFilter, orderBy string, limit, offset int) ([]*models.BadWordCategory, error) {
	if orderBy == "" {
		orderBy = "name ASC"
	}
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.BadWordCategory{}), filter), orderBy, limit, offset)
	var rows []*models.BadWordCategory
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of categories matching filter
func (r *BadWordCategoryRepositoryImpl) Count(ctx context.Context, filter models.BadWordCategoryFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.BadWordCategory{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any category matches the filter
func (r *BadWordCategoryRepositoryImpl) Exists(ctx context.Context, filter models.BadWordCategoryFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// BadWordRepositoryImpl implements BadWordRepository interface
type BadWordRepositoryImpl struct {
	*BaseRepository[models.BadWord, models.BadWordFilter]
}

// NewBadWordRepository creates a new bad word repository
func NewBadWordRepository(db *gorm.DB) BadWordRepository {
	return &BadWordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BadWord, models.BadWordFilter](db),
	}
}

// ByID retrieves a non-deleted bad word with its category
func (r *BadWordRepositoryImpl) ByID(ctx context.Context, id uint) (*models.BadWord, error) {
	rows, err := r.ByFilter(ctx, models.BadWordFilter{ID: &id}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *BadWordRepositoryImpl) applyFilter(query *gorm.DB, filter models.BadWordFilter) *gorm.DB {
	if filter.IncludeDeleted {
		query = query.Unscoped()
	}
	if filter.ID != nil {
		query = query.Where("bad_words.id = ?", *filter.ID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("bad_words.id IN ?", filter.IDs)
	}
	if filter.CategoryID != nil {
		query = query.Where("bad_words.category_id = ?", *filter.CategoryID)
	}
	if filter.Language != nil {
		query = query.Where("bad_words.language = ?", *filter.Language)
	}
	if filter.NormalizedName != nil {
		query = query.Where("bad_words.normalized_name = ?", *filter.NormalizedName)
	}
	if len(filter.NormalizedNames) > 0 {
		query = query.Where("bad_words.normalized_name IN ?", filter.NormalizedNames)
	}
	if filter.Search != nil && *filter.Search != "" {
		query = query.Where("bad_words.normalized_name LIKE ?", containsPattern(*filter.Search))
	}
	return query
}

// ByFilter retrieves bad words based on filter criteria, category preloaded
func (r *BadWordRepositoryImpl) ByFilter(ctx context.Context, filter models.BadWordFilter, orderBy string, limit, offset int) ([]*models.BadWord, error) {
	if orderBy == "" {
		orderBy = "bad_words.name ASC, bad_words.id ASC"
	}
	query := r.applyFilter(r.getDB(ctx).Model(&models.BadWord{}), filter)
	query = paginate(query.Preload("Category"), orderBy, limit, offset)

	var rows []*models.BadWord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of bad words matching filter
func (r *BadWordRepositoryImpl) Count(ctx context.Context, filter models.BadWordFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.BadWord{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any bad word matches the filter
func (r *BadWordRepositoryImpl) Exists(ctx context.Context, filter models.BadWordFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Update persists editable columns of a bad word
func (r *BadWordRepositoryImpl) Update(ctx context.Context, word *models.BadWord) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Model(word).Select("name", "normalized_name", "category_id", "language", "negative_score", "updated_at").Updates(word).Error
	})
}

// BadChannelRepositoryImpl implements BadChannelRepository interface
type BadChannelRepositoryImpl struct {
	*BaseRepository[models.BadChannel, models.BlocklistFilter]
}

// NewBadChannelRepository creates a new bad channel repository
func NewBadChannelRepository(db *gorm.DB) BadChannelRepository {
	return &BadChannelRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BadChannel, models.BlocklistFilter](db),
	}
}

// ByFilter retrieves bad channels based on filter criteria
func (r *BadChannelRepositoryImpl) ByFilter(ctx context.Context, filter models.BlocklistFilter, orderBy string, limit, offset int) ([]*models.BadChannel, error) {
	query := applyBlocklistFilter(r.getDB(ctx).Model(&models.BadChannel{}), "channel_id", filter)
	query = paginate(query.Preload("Category"), orderBy, limit, offset)
	var rows []*models.BadChannel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of bad channels matching filter
func (r *BadChannelRepositoryImpl) Count(ctx context.Context, filter models.BlocklistFilter) (int64, error) {
	var count int64
	query := applyBlocklistFilter(r.getDB(ctx).Model(&models.BadChannel{}), "channel_id", filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any bad channel matches the filter
func (r *BadChannelRepositoryImpl) Exists(ctx context.Context, filter models.BlocklistFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// BadVideoRepositoryImpl implements BadVideoRepository interface
type BadVideoRepositoryImpl struct {
	*BaseRepository[models.BadVideo, models.BlocklistFilter]
}

// NewBadVideoRepository creates a new bad video repository
func NewBadVideoRepository(db *gorm.DB) BadVideoRepository {
	return &BadVideoRepositoryImpl{
		BaseRepository: NewBaseRepository[models.BadVideo, models.BlocklistFilter](db),
	}
}

// ByFilter retrieves bad videos based on filter criteria
func (r *BadVideoRepositoryImpl) ByFilter(ctx context.Context, filter models.BlocklistFilter, orderBy string, limit, offset int) ([]*models.BadVideo, error) {
	query := applyBlocklistFilter(r.getDB(ctx).Model(&models.BadVideo{}), "video_id", filter)
	query = paginate(query.Preload("Category"), orderBy, limit, offset)
	var rows []*models.BadVideo
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of bad videos matching filter
func (r *BadVideoRepositoryImpl) Count(ctx context.Context, filter models.BlocklistFilter) (int64, error) {
	var count int64
	query := applyBlocklistFilter(r.getDB(ctx).Model(&models.BadVideo{}), "video_id", filter)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any bad video matches the filter
func (r *BadVideoRepositoryImpl) Exists(ctx context.Context, filter models.BlocklistFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func applyBlocklistFilter(query *gorm.DB, externalColumn string, filter models.BlocklistFilter) *gorm.DB {
	if filter.IncludeDeleted {
		query = query.Unscoped()
	}
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.ExternalID != nil {
		query = query.Where(externalColumn+" = ?", *filter.ExternalID)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.Search != nil && *filter.Search != "" {
		like := containsPattern(*filter.Search)
		query = query.Where("(LOWER(title) LIKE ? OR LOWER("+externalColumn+") LIKE ?)", like, like)
	}
	return query
}
