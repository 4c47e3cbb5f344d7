package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amirphl/viewiq/models"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements UserRepository interface
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, models.UserFilter](db),
	}
}

// ByEmail retrieves a user by email, case-insensitively, with roles loaded
func (r *UserRepositoryImpl) ByEmail(ctx context.Context, email string) (*models.User, error) {
	db := r.getDB(ctx)
	var user models.User
	err := db.Preload("Roles").Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return &user, nil
}

// ByIDWithRoles retrieves a user with roles and plan preloaded
func (r *UserRepositoryImpl) ByIDWithRoles(ctx context.Context, id uint) (*models.User, error) {
	db := r.getDB(ctx)
	var user models.User
	err := db.Preload("Roles").Preload("Plan").First(&user, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find user %d: %w", id, err)
	}
	return &user, nil
}

// Update persists profile and status columns; role membership is handled by ReplaceRoles
func (r *UserRepositoryImpl) Update(ctx context.Context, user *models.User) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Model(user).Select(
			"email", "first_name", "last_name", "company", "phone_number",
			"domain", "is_active", "plan_id", "password_hash", "updated_at",
		).Updates(user).Error
	})
}

// ReplaceRoles sets the user's role membership to exactly roles
func (r *UserRepositoryImpl) ReplaceRoles(ctx context.Context, user *models.User, roles []*models.Role) error {
	values := make([]models.Role, 0, len(roles))
	for _, role := range roles {
		values = append(values, *role)
	}
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Model(user).Association("Roles").Replace(values); err != nil {
			return err
		}
		user.Roles = values
		return nil
	})
}

// TouchLastLogin stores the login time
func (r *UserRepositoryImpl) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Model(&models.User{}).Where("id = ?", id).UpdateColumn("last_login_at", at).Error
	})
}

// applyFilter applies filter criteria to a GORM query
func (r *UserRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Email != nil {
		query = query.Where("LOWER(email) = ?", strings.ToLower(*filter.Email))
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.IsSuperuser != nil {
		query = query.Where("is_superuser = ?", *filter.IsSuperuser)
	}
	if filter.Search != nil && *filter.Search != "" {
		like := containsPattern(*filter.Search)
		query = query.Where("(LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(company) LIKE ?)", like, like, like, like)
	}
	return query
}

// ByFilter retrieves users based on filter criteria
func (r *UserRepositoryImpl) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.User{}), filter)
	query = paginate(query.Preload("Roles"), orderBy, limit, offset)

	var rows []*models.User
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of users matching filter
func (r *UserRepositoryImpl) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.User{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any user matches the filter
func (r *UserRepositoryImpl) Exists(ctx context.Context, filter models.UserFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// RoleRepositoryImpl implements RoleRepository interface
type RoleRepositoryImpl struct {
	*BaseRepository[models.Role, models.RoleFilter]
}

// NewRoleRepository creates a new role repository
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &RoleRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Role, models.RoleFilter](db),
	}
}

// ByName retrieves a role by name
func (r *RoleRepositoryImpl) ByName(ctx context.Context, name string) (*models.Role, error) {
	rows, err := r.ByFilter(ctx, models.RoleFilter{Name: &name}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *RoleRepositoryImpl) applyFilter(query *gorm.DB, filter models.RoleFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Name != nil {
		query = query.Where("name = ?", *filter.Name)
	}
	return query
}

// ByFilter retrieves roles based on filter criteria
func (r *RoleRepositoryImpl) ByFilter(ctx context.Context, filter models.RoleFilter, orderBy string, limit, offset int) ([]*models.Role, error) {
	if orderBy == "" {
		orderBy = "name ASC"
	}
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.Role{}), filter), orderBy, limit, offset)
	var rows []*models.Role
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of roles matching filter
func (r *RoleRepositoryImpl) Count(ctx context.Context, filter models.RoleFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Role{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any role matches the filter
func (r *RoleRepositoryImpl) Exists(ctx context.Context, filter models.RoleFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// DeviceTokenRepositoryImpl implements DeviceTokenRepository interface
type DeviceTokenRepositoryImpl struct {
	*BaseRepository[models.DeviceToken, models.DeviceTokenFilter]
}

// NewDeviceTokenRepository creates a new device token repository
func NewDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &DeviceTokenRepositoryImpl{
		BaseRepository: NewBaseRepository[models.DeviceToken, models.DeviceTokenFilter](db),
	}
}

// Upsert stores the token, moving it to the given user when it already exists
func (r *DeviceTokenRepositoryImpl) Upsert(ctx context.Context, token *models.DeviceToken) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Clauses(onConflictUpdate("token", "user_id", "platform", "updated_at")).Create(token).Error
	})
}

// DeleteForUser removes one of the user's tokens
func (r *DeviceTokenRepositoryImpl) DeleteForUser(ctx context.Context, userID uint, token string) (bool, error) {
	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Where("user_id = ? AND token = ?", userID, token).Delete(&models.DeviceToken{})
		affected = res.RowsAffected
		return res.Error
	})
	return affected > 0, err
}

// ByUserID lists the user's tokens
func (r *DeviceTokenRepositoryImpl) ByUserID(ctx context.Context, userID uint) ([]*models.DeviceToken, error) {
	var rows []*models.DeviceToken
	if err := r.getDB(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
