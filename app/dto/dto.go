package dto

import (
	"bytes"
	"encoding/json"
)

// APIResponse represents the standard API response structure
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail represents error details in API responses
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}

// FieldErrorDetail is one failed field of a validation error
type FieldErrorDetail struct {
	Field   string `json:"field" example:"title"`
	Message string `json:"message" example:"This field is required."`
}

// Page is the pagination envelope shared by every list endpoint
type Page[T any] struct {
	CurrentPage int   `json:"current_page" example:"1"`
	Items       []T   `json:"items"`
	ItemsCount  int64 `json:"items_count" example:"42"`
	MaxPage     int   `json:"max_page" example:"2"`
}

// PageQuery holds the common list query parameters
type PageQuery struct {
	Page   int    `query:"page" json:"page" example:"1"`
	Size   int    `query:"size" json:"size" example:"25"`
	Search string `query:"search" json:"search,omitempty"`
}

// NumberInput accepts a JSON number or a string such as "1,000,000".
// The raw text is kept so validation can echo it back.
type NumberInput struct {
	Raw string
	Set bool
}

func (n *NumberInput) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = NumberInput{}
		return nil
	}
	n.Set = true
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &n.Raw)
	}
	n.Raw = string(b)
	return nil
}

func (n NumberInput) MarshalJSON() ([]byte, error) {
	if !n.Set {
		return []byte("null"), nil
	}
	return json.Marshal(n.Raw)
}

// NewNumberInput is a convenience for tests and internal callers
func NewNumberInput(raw string) NumberInput {
	return NumberInput{Raw: raw, Set: true}
}

// ExportStatusResponse is returned by every export polling endpoint
type ExportStatusResponse struct {
	Status       string `json:"status" example:"created"`
	Message      string `json:"message,omitempty" example:"Processing.  You will receive an email when your export is ready."`
	DownloadLink string `json:"download_link,omitempty" example:"https://bucket.s3.amazonaws.com/custom_segments/1/2.csv?X-Amz-Signature=..."`
}
