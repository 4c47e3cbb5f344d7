package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/amirphl/viewiq/models"
	"gorm.io/gorm"
)

// UserActionRepositoryImpl implements UserActionRepository interface
type UserActionRepositoryImpl struct {
	*BaseRepository[models.UserAction, models.UserActionFilter]
}

// NewUserActionRepository creates a new user action repository
func NewUserActionRepository(db *gorm.DB) UserActionRepository {
	return &UserActionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.UserAction, models.UserActionFilter](db),
	}
}

// ListByUser retrieves the newest actions of one user
func (r *UserActionRepositoryImpl) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.UserAction, error) {
	return r.ByFilter(ctx, models.UserActionFilter{UserID: &userID}, "", limit, offset)
}

func (r *UserActionRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserActionFilter) *gorm.DB {
	if filter.UserID != nil {
		query = query.Where("user_actions.user_id = ?", *filter.UserID)
	}
	if filter.Username != nil && strings.TrimSpace(*filter.Username) != "" {
		query = query.Joins("JOIN users ON users.id = user_actions.user_id")
		for _, word := range strings.Fields(*filter.Username) {
			like := containsPattern(word)
			query = query.Where("(LOWER(users.first_name) LIKE ? OR LOWER(users.last_name) LIKE ? OR LOWER(users.email) LIKE ?)", like, like, like)
		}
	}
	if filter.URL != nil && *filter.URL != "" {
		query = query.Where("LOWER(user_actions.url) LIKE ?", containsPattern(*filter.URL))
	}
	if filter.Slug != nil && *filter.Slug != "" {
		query = query.Where("LOWER(user_actions.slug) LIKE ?", containsPattern(*filter.Slug))
	}
	if filter.CreatedAfter != nil {
		query = query.Where("user_actions.created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("user_actions.created_at <= ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves user actions with their users based on filter criteria
func (r *UserActionRepositoryImpl) ByFilter(ctx context.Context, filter models.UserActionFilter, orderBy string, limit, offset int) ([]*models.UserAction, error) {
	if orderBy == "" {
		orderBy = "user_actions.created_at DESC, user_actions.id DESC"
	}
	query := r.applyFilter(r.getDB(ctx).Model(&models.UserAction{}), filter)
	query = paginate(query.Preload("User"), orderBy, limit, offset)

	var rows []*models.UserAction
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list user actions: %w", err)
	}
	return rows, nil
}

// Count returns number of user actions matching filter
func (r *UserActionRepositoryImpl) Count(ctx context.Context, filter models.UserActionFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.UserAction{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count user actions: %w", err)
	}
	return count, nil
}

// Exists checks if any user action matches the filter
func (r *UserActionRepositoryImpl) Exists(ctx context.Context, filter models.UserActionFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
