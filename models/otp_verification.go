package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPVerification is a one-time code sent to a user as a second login factor.
// CorrelationID is the challenge id handed back to the client.
type OTPVerification struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	CorrelationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uk_otp_verifications_correlation_id" json:"correlation_id"`
	UserID        uint       `gorm:"not null;index:idx_otp_verifications_user_id" json:"user_id"`
	User          *User      `gorm:"foreignKey:UserID;references:ID" json:"-"`
	OTPCode       string     `gorm:"size:6;not null" json:"-"`
	Purpose       string     `gorm:"size:20;not null" json:"purpose"`
	TargetValue   string     `gorm:"size:255;not null" json:"target_value"`
	Status        string     `gorm:"size:20;not null;default:pending" json:"status"`
	AttemptsCount int        `gorm:"not null;default:0" json:"attempts_count"`
	MaxAttempts   int        `gorm:"not null;default:3" json:"max_attempts"`
	ExpiresAt     time.Time  `gorm:"not null" json:"expires_at"`
	VerifiedAt    *time.Time `json:"verified_at,omitempty"`
	IPAddress     *string    `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent     *string    `gorm:"type:text" json:"user_agent,omitempty"`
	CreatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (OTPVerification) TableName() string {
	return "otp_verifications"
}

const OTPPurposeLogin = "login"

// OTP status constants
const (
	OTPStatusPending = "pending"
	OTPStatusExpired = "expired"
	OTPStatusFailed  = "failed"
	OTPStatusUsed    = "used"
)

// OTPVerificationFilter represents filter criteria for OTP queries
type OTPVerificationFilter struct {
	ID            *uint
	CorrelationID *uuid.UUID
	UserID        *uint
	Purpose       *string
	Status        *string
}

func (o *OTPVerification) IsExpired(now time.Time) bool {
	return !now.Before(o.ExpiresAt)
}

func (o *OTPVerification) IsPending() bool {
	return o.Status == OTPStatusPending
}

func (o *OTPVerification) CanAttempt(now time.Time) bool {
	return o.IsPending() && o.AttemptsCount < o.MaxAttempts && !o.IsExpired(now)
}
