package models

import (
	"time"

	"gorm.io/datatypes"
)

// WebhookEvent stores a payment processor event for idempotent processing
type WebhookEvent struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	StripeEventID string         `gorm:"size:100;not null;uniqueIndex:uk_webhook_events_stripe_event_id" json:"stripe_event_id"`
	Type          string         `gorm:"size:100;not null;index:idx_webhook_events_type" json:"type"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	Valid         bool           `gorm:"not null;default:false" json:"valid"`
	Processed     bool           `gorm:"not null;default:false;index:idx_webhook_events_processed" json:"processed"`
	ProcessedAt   *time.Time     `json:"processed_at,omitempty"`
	Error         *string        `gorm:"type:text" json:"error,omitempty"`
	CreatedAt     time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}

// WebhookEventFilter represents filter criteria for webhook event queries
type WebhookEventFilter struct {
	StripeEventID *string
	Type          *string
	Processed     *bool
}
