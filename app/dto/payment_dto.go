package dto

import "time"

// PlanResponse is a purchasable plan
type PlanResponse struct {
	ID           uint   `json:"id" example:"1"`
	Name         string `json:"name" example:"Pro"`
	StripePlanID string `json:"stripe_plan_id" example:"price_1Nabc"`
	Amount       int64  `json:"amount" example:"9900"`
	Currency     string `json:"currency" example:"usd"`
	Interval     string `json:"interval" example:"month"`
}

// CreateSubscriptionRequest subscribes the caller to a plan
type CreateSubscriptionRequest struct {
	PlanID        uint   `json:"plan_id" validate:"required" example:"1"`
	PaymentMethod string `json:"payment_method" validate:"required,max=255" example:"pm_card_visa"`
}

// SubscriptionResponse is the caller's subscription
type SubscriptionResponse struct {
	ID                   uint          `json:"id" example:"1"`
	StripeSubscriptionID string        `json:"stripe_subscription_id" example:"sub_1Nabc"`
	Status               string        `json:"status" example:"active"`
	CurrentPeriodEnd     *time.Time    `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool          `json:"cancel_at_period_end" example:"false"`
	Plan                 *PlanResponse `json:"plan,omitempty"`
}

// WebhookResponse acknowledges a payment webhook
type WebhookResponse struct {
	EventID   string `json:"event_id" example:"evt_1Nabc"`
	Valid     bool   `json:"valid" example:"true"`
	Processed bool   `json:"processed" example:"true"`
}
