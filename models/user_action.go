package models

import "time"

// UserAction is a navigation event reported by the frontend
type UserAction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index:idx_user_actions_user_id" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;references:ID" json:"user,omitempty"`
	Slug      string    `gorm:"size:255;not null;index:idx_user_actions_slug" json:"slug"`
	URL       string    `gorm:"size:2048;not null" json:"url"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_user_actions_created_at" json:"created_at"`
}

func (UserAction) TableName() string {
	return "user_actions"
}

// UserActionFilter represents filter criteria for user action queries.
// Username words must each match the user's first name, last name or email.
type UserActionFilter struct {
	UserID        *uint
	Username      *string
	URL           *string
	Slug          *string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
