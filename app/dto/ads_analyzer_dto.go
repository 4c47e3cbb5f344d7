package dto

import "time"

// OpportunityResponse is a sold media plan
type OpportunityResponse struct {
	ID                  string `json:"id" example:"006f400000Abcde"`
	Name                string `json:"name" example:"Acme Q1 Awareness"`
	AccountManagerEmail string `json:"account_manager_email,omitempty" example:"am@example.com"`
}

// TargetingReportRequest requests the targeting report of an opportunity for a date range
type TargetingReportRequest struct {
	Opportunity string `json:"opportunity" validate:"required,max=64" example:"006f400000Abcde"`
	DateFrom    string `json:"date_from" validate:"required" example:"2024-01-01"`
	DateTo      string `json:"date_to" validate:"required" example:"2024-01-31"`
}

// TargetingReportRecipientsResponse is a report with everyone who asked for it
type TargetingReportRecipientsResponse struct {
	ID          uint      `json:"id" example:"1"`
	Opportunity string    `json:"opportunity" example:"Acme Q1 Awareness"`
	DateFrom    string    `json:"date_from" example:"2024-01-01"`
	DateTo      string    `json:"date_to" example:"2024-01-31"`
	Status      string    `json:"status" example:"success"`
	Recipients  []string  `json:"recipients" example:"user@example.com"`
	CreatedAt   time.Time `json:"created_at"`
}
