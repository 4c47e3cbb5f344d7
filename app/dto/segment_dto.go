package dto

import (
	"encoding/json"
	"time"
)

// CreateSegmentRequest describes the filters of a new custom target list.
// segment_type 2 creates one video and one channel list.
type CreateSegmentRequest struct {
	Title                    string           `json:"title" validate:"required,min=1,max=255" example:"Safe sports channels"`
	SegmentType              NumberInput      `json:"segment_type" swaggertype:"integer" example:"1"`
	ListType                 string           `json:"list_type" validate:"required,oneof=whitelist blacklist" example:"whitelist"`
	Languages                []string         `json:"languages,omitempty" example:"en"`
	Countries                []string         `json:"countries,omitempty" example:"US"`
	ContentCategories        []string         `json:"content_categories,omitempty" example:"Sports"`
	ExcludeContentCategories []string         `json:"exclude_content_categories,omitempty" example:"Politics"`
	ScoreThreshold           NumberInput      `json:"score_threshold,omitempty" swaggertype:"string" example:"80"`
	MinimumViews             NumberInput      `json:"minimum_views,omitempty" swaggertype:"string" example:"1,000,000"`
	MinimumSubscribers       NumberInput      `json:"minimum_subscribers,omitempty" swaggertype:"string" example:"10,000"`
	MinimumVideos            NumberInput      `json:"minimum_videos,omitempty" swaggertype:"string" example:"10"`
	LastUploadDate           string           `json:"last_upload_date,omitempty" example:"2024-01-01"`
	Sentiment                NumberInput      `json:"sentiment,omitempty" swaggertype:"string" example:"50"`
	AgeGroups                []string         `json:"age_groups,omitempty" example:"2"`
	Genders                  []string         `json:"genders,omitempty" example:"1"`
	SeverityFilters          map[string][]int `json:"severity_filters,omitempty"`
	BrandSafetyCategories    []string         `json:"brand_safety_categories,omitempty" example:"1"`
	IsVetted                 *bool            `json:"is_vetted,omitempty" example:"true"`
	VettedAfter              string           `json:"vetted_after,omitempty" example:"2024-01-01"`
}

// SegmentListQuery filters the segment list
type SegmentListQuery struct {
	PageQuery
	SegmentType *int   `query:"segment_type" json:"segment_type,omitempty"`
	ListType    string `query:"list_type" json:"list_type,omitempty"`
}

// SegmentExportInfo is the export state embedded in a segment
type SegmentExportInfo struct {
	Status      string     `json:"status" example:"success"`
	RowCount    int64      `json:"row_count" example:"1500"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// SegmentResponse is a custom target list
type SegmentResponse struct {
	ID          uint               `json:"id" example:"1"`
	UUID        string             `json:"uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	OwnerID     uint               `json:"owner_id" example:"4"`
	Title       string             `json:"title" example:"Safe sports channels"`
	SegmentType int                `json:"segment_type" example:"1"`
	ListType    string             `json:"list_type" example:"whitelist"`
	Statistics  map[string]any     `json:"statistics"`
	Query       json.RawMessage    `json:"query,omitempty" swaggertype:"object"`
	Export      *SegmentExportInfo `json:"export,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
}
