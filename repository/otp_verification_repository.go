package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/viewiq/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OTPVerificationRepositoryImpl implements OTPVerificationRepository interface
type OTPVerificationRepositoryImpl struct {
	*BaseRepository[models.OTPVerification, models.OTPVerificationFilter]
}

// NewOTPVerificationRepository creates a new OTP verification repository
func NewOTPVerificationRepository(db *gorm.DB) OTPVerificationRepository {
	return &OTPVerificationRepositoryImpl{
		BaseRepository: NewBaseRepository[models.OTPVerification, models.OTPVerificationFilter](db),
	}
}

// ByCorrelationID retrieves the challenge handed out under id
func (r *OTPVerificationRepositoryImpl) ByCorrelationID(ctx context.Context, id uuid.UUID) (*models.OTPVerification, error) {
	var otp models.OTPVerification
	err := r.getDB(ctx).Where("correlation_id = ?", id).First(&otp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get OTP by correlation ID: %w", err)
	}
	return &otp, nil
}

// ExpirePending marks every pending code of a user for purpose as expired
func (r *OTPVerificationRepositoryImpl) ExpirePending(ctx context.Context, userID uint, purpose string) (int64, error) {
	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.OTPVerification{}).
			Where("user_id = ? AND purpose = ? AND status = ?", userID, purpose, models.OTPStatusPending).
			Updates(map[string]any{"status": models.OTPStatusExpired, "updated_at": time.Now().UTC()})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending OTPs: %w", err)
	}
	return affected, nil
}

// RecordFailedAttempt bumps the attempt counter of a pending code and returns the new count
func (r *OTPVerificationRepositoryImpl) RecordFailedAttempt(ctx context.Context, id uint) (int, error) {
	var attempts int
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.OTPVerification{}).
			Where("id = ? AND status = ?", id, models.OTPStatusPending).
			Updates(map[string]any{"attempts_count": gorm.Expr("attempts_count + 1"), "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		return db.Model(&models.OTPVerification{}).Where("id = ?", id).Pluck("attempts_count", &attempts).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to record OTP attempt: %w", err)
	}
	return attempts, nil
}

// Transition moves a code from one status to another; false when it was no longer in from
func (r *OTPVerificationRepositoryImpl) Transition(ctx context.Context, id uint, from, to string, at time.Time) (bool, error) {
	updates := map[string]any{"status": to, "updated_at": at}
	if to == models.OTPStatusUsed {
		updates["verified_at"] = at
	}
	var affected int64
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Model(&models.OTPVerification{}).Where("id = ? AND status = ?", id, from).Updates(updates)
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, fmt.Errorf("failed to update OTP status: %w", err)
	}
	return affected == 1, nil
}

func (r *OTPVerificationRepositoryImpl) applyFilter(query *gorm.DB, filter models.OTPVerificationFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CorrelationID != nil {
		query = query.Where("correlation_id = ?", *filter.CorrelationID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Purpose != nil {
		query = query.Where("purpose = ?", *filter.Purpose)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves OTP verifications based on filter criteria
func (r *OTPVerificationRepositoryImpl) ByFilter(ctx context.Context, filter models.OTPVerificationFilter, orderBy string, limit, offset int) ([]*models.OTPVerification, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.OTPVerification{}), filter), orderBy, limit, offset)
	var rows []*models.OTPVerification
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find OTP verifications: %w", err)
	}
	return rows, nil
}

// Count returns number of OTP verifications matching filter
func (r *OTPVerificationRepositoryImpl) Count(ctx context.Context, filter models.OTPVerificationFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.OTPVerification{}), filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count OTP verifications: %w", err)
	}
	return count, nil
}

// Exists checks if any OTP verification matches the filter
func (r *OTPVerificationRepositoryImpl) Exists(ctx context.Context, filter models.OTPVerificationFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
