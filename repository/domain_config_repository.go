package repository

import (
	"context"
	"strings"

	"github.com/amirphl/viewiq/models"
	"gorm.io/gorm"
)

// DomainConfigRepositoryImpl implements DomainConfigRepository interface
type DomainConfigRepositoryImpl struct {
	*BaseRepository[models.DomainConfig, models.DomainConfigFilter]
}

// NewDomainConfigRepository creates a new domain config repository
func NewDomainConfigRepository(db *gorm.DB) DomainConfigRepository {
	return &DomainConfigRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DomainConfig, models.DomainConfigFilter](db),
	}
}

// ByDomain retrieves the config of a sub-domain, matched case-insensitively
func (r *DomainConfigRepositoryImpl) ByDomain(ctx context.Context, domain string) (*models.DomainConfig, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	rows, err := r.ByFilter(ctx, models.DomainConfigFilter{Domain: &domain}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Update overwrites the config document of a domain
func (r *DomainConfigRepositoryImpl) Update(ctx context.Context, cfg *models.DomainConfig) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Model(cfg).Select("domain", "config", "updated_at").Updates(cfg).Error
	})
}

func (r *DomainConfigRepositoryImpl) applyFilter(query *gorm.DB, filter models.DomainConfigFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Domain != nil {
		query = query.Where("domain = ?", *filter.Domain)
	}
	return query
}

// ByFilter retrieves domain configs based on filter criteria
func (r *DomainConfigRepositoryImpl) ByFilter(ctx context.Context, filter models.DomainConfigFilter, orderBy string, limit, offset int) ([]*models.DomainConfig, error) {
	if orderBy == "" {
		orderBy = "domain ASC"
	}
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.DomainConfig{}), filter), orderBy, limit, offset)
	var rows []*models.DomainConfig
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of domain configs matching filter
func (r *DomainConfigRepositoryImpl) Count(ctx context.Context, filter models.DomainConfigFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.DomainConfig{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any domain config matches the filter
func (r *DomainConfigRepositoryImpl) Exists(ctx context.Context, filter models.DomainConfigFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
