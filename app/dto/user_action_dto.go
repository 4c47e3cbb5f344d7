package dto

import "time"

// UserActionRequest records a page visit of the calling user
type UserActionRequest struct {
	Slug string `json:"slug" validate:"required,max=255" example:"segments"`
	URL  string `json:"url" validate:"required,max=2048" example:"https://app.viewiq.com/segments/12"`
}

// UserActionListQuery filters the user action log. Dates are YYYY-mm-dd and inclusive.
type UserActionListQuery struct {
	Page      int    `query:"page" json:"page" example:"1"`
	Size      int    `query:"size" json:"size" example:"20"`
	Username  string `query:"username" json:"username,omitempty" example:"jane doe"`
	URL       string `query:"url" json:"url,omitempty" example:"/segments"`
	Slug      string `query:"slug" json:"slug,omitempty" example:"segments"`
	StartDate string `query:"start_date" json:"start_date,omitempty" example:"2024-01-01"`
	EndDate   string `query:"end_date" json:"end_date,omitempty" example:"2024-01-31"`
	OrderBy   string `query:"order_by" json:"order_by,omitempty" validate:"omitempty,oneof=slug url created_at" example:"created_at"`
	Flat      bool   `query:"flat" json:"flat,omitempty" example:"false"`
}

// UserActionResponse is one user action with its user
type UserActionResponse struct {
	ID        uint      `json:"id" example:"1"`
	UserID    uint      `json:"user_id" example:"7"`
	Username  string    `json:"username" example:"Jane Doe"`
	Email     string    `json:"email" example:"jane@example.com"`
	Slug      string    `json:"slug" example:"segments"`
	URL       string    `json:"url" example:"https://app.viewiq.com/segments/12"`
	CreatedAt time.Time `json:"created_at" example:"2024-01-15T10:30:00Z"`
}
