package models

import (
	"time"
)

// Customer mirrors a Stripe customer linked to a user
type Customer struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           *uint     `gorm:"uniqueIndex:uk_customers_user_id" json:"user_id,omitempty"`
	StripeCustomerID string    `gorm:"size:64;not null;uniqueIndex:uk_customers_stripe_customer_id" json:"stripe_customer_id"`
	Email            string    `gorm:"size:255" json:"email"`
	CreatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// CustomerFilter represents filter criteria for customer queries
type CustomerFilter struct {
	UserID           *uint
	StripeCustomerID *string
	Email            *string
}

// Plan mirrors a Stripe price/plan and carries the capabilities it grants
type Plan struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	StripePlanID    *string   `gorm:"size:64;uniqueIndex:uk_plans_stripe_plan_id" json:"stripe_plan_id,omitempty"`
	StripeProductID string    `gorm:"size:64;not null;default:''" json:"stripe_product_id"`
	Amount          int64     `gorm:"not null;default:0" json:"amount"`
	Currency        string    `gorm:"size:3;not null;default:'usd'" json:"currency"`
	Interval        string    `gorm:"size:10;not null;default:'month'" json:"interval"`
	Active          bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Plan) TableName() string {
	return "plans"
}

// PlanFilter represents filter criteria for plan queries
type PlanFilter struct {
	ID           *uint
	StripePlanID *string
	Active       *bool
}

// SubscriptionStatus follows Stripe's subscription status values
type SubscriptionStatus string

const (
	SubscriptionStatusIncomplete SubscriptionStatus = "incomplete"
	SubscriptionStatusTrialing   SubscriptionStatus = "trialing"
	SubscriptionStatusActive     SubscriptionStatus = "active"
	SubscriptionStatusPastDue    SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled   SubscriptionStatus = "canceled"
	SubscriptionStatusUnpaid     SubscriptionStatus = "unpaid"
)

// Subscription mirrors a Stripe subscription
type Subscription struct {
	ID                   uint               `gorm:"primaryKey" json:"id"`
	UserID               *uint              `gorm:"index:idx_subscriptions_user_id" json:"user_id,omitempty"`
	StripeCustomerID     string             `gorm:"size:64;not null;index:idx_subscriptions_stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID string             `gorm:"size:64;not null;uniqueIndex:uk_subscriptions_stripe_subscription_id" json:"stripe_subscription_id"`
	PlanID               *uint              `json:"plan_id,omitempty"`
	Plan                 *Plan              `gorm:"foreignKey:PlanID;references:ID" json:"plan,omitempty"`
	Status               SubscriptionStatus `gorm:"size:20;not null" json:"status"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool               `gorm:"not null;default:false" json:"cancel_at_period_end"`
	CanceledAt           *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt            time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt            time.Time          `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscriptions"
}

func (s *Subscription) IsActive() bool {
	return s.Status == SubscriptionStatusActive || s.Status == SubscriptionStatusTrialing
}

// SubscriptionFilter represents filter criteria for subscription queries
type SubscriptionFilter struct {
	UserID               *uint
	StripeCustomerID     *string
	StripeSubscriptionID *string
	Status               *SubscriptionStatus
}
