package models

import (
	"strings"
	"time"
)

type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"size:255;not null;uniqueIndex:uk_users_email" json:"email"`
	PasswordHash string `gorm:"size:255;not null" json:"-"`
	FirstName    string `gorm:"size:150;not null" json:"first_name"`
	LastName     string `gorm:"size:150;not null" json:"last_name"`
	Company      string `gorm:"size:255" json:"company"`
	PhoneNumber  string `gorm:"size:30" json:"phone_number"`

	// Domain is the white-label domain the user signed up through
	Domain string `gorm:"size:100;not null;default:'viewiq'" json:"domain"`

	IsActive    bool  `gorm:"not null;index:idx_users_is_active" json:"is_active"`
	IsSuperuser bool  `gorm:"not null;default:false" json:"is_superuser"`
	PlanID      *uint `gorm:"index:idx_users_plan_id" json:"plan_id,omitempty"`
	Plan        *Plan `gorm:"foreignKey:PlanID;references:ID" json:"plan,omitempty"`

	Roles        []Role        `gorm:"many2many:user_roles;" json:"roles,omitempty"`
	DeviceTokens []DeviceToken `gorm:"foreignKey:UserID" json:"-"`

	LastLoginAt *time.Time `gorm:"index:idx_users_last_login_at" json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_users_created_at" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Capabilities returns the union of the user's role capabilities.
// Superusers hold every capability.
func (u *User) Capabilities() CapabilitySet {
	if u.IsSuperuser {
		return NewCapabilitySet(allCapabilities...)
	}
	set := NewCapabilitySet()
	for i := range u.Roles {
		for c := range u.Roles[i].CapabilitySet() {
			set[c] = struct{}{}
		}
	}
	return set
}

// UserFilter represents filter criteria for user queries
type UserFilter struct {
	ID          *uint
	IDs         []uint
	Email       *string
	IsActive    *bool
	IsSuperuser *bool
	Search      *string
}

type DeviceToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_device_tokens_user_id" json:"user_id"`
	Token     string    `gorm:"size:512;not null;uniqueIndex:uk_device_tokens_token" json:"token"`
	Platform  string    `gorm:"size:20;not null" json:"platform"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (DeviceToken) TableName() string {
	return "device_tokens"
}

// DeviceTokenFilter represents filter criteria for device token queries
type DeviceTokenFilter struct {
	UserID *uint
	Token  *string
}
