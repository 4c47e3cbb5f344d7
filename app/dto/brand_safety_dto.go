package dto

import "time"

// BadWordCategoryRequest creates a bad word category
type BadWordCategoryRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=80" example:"Profanity"`
	Excluded bool   `json:"excluded" example:"false"`
}

// BadWordCategoryResponse is a bad word category
type BadWordCategoryResponse struct {
	ID       uint   `json:"id" example:"1"`
	Name     string `json:"name" example:"Profanity"`
	Excluded bool   `json:"excluded" example:"false"`
}

// BadWordListQuery filters the bad word list
type BadWordListQuery struct {
	PageQuery
	Category string `query:"category" json:"category,omitempty" example:"1"`
	Language string `query:"language" json:"language,omitempty" example:"en"`
}

// BadWordRequest creates a bad word. Category is an id or a name.
type BadWordRequest struct {
	Name          string `json:"name" validate:"required,min=1,max=255" example:"badword"`
	Category      string `json:"category" validate:"required" example:"Profanity"`
	Language      string `json:"language,omitempty" validate:"omitempty,max=10" example:"en"`
	NegativeScore *int   `json:"negative_score,omitempty" validate:"omitempty,min=1,max=4" example:"2"`
}

// UpdateBadWordRequest patches a bad word
type UpdateBadWordRequest struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	Category      *string `json:"category,omitempty"`
	Language      *string `json:"language,omitempty" validate:"omitempty,max=10"`
	NegativeScore *int    `json:"negative_score,omitempty" validate:"omitempty,min=1,max=4"`
}

// BadWordResponse is a bad word with its category name
type BadWordResponse struct {
	ID            uint      `json:"id" example:"7"`
	Name          string    `json:"name" example:"badword"`
	CategoryID    uint      `json:"category_id" example:"1"`
	Category      string    `json:"category" example:"Profanity"`
	Language      string    `json:"language" example:"en"`
	NegativeScore int       `json:"negative_score" example:"2"`
	CreatedAt     time.Time `json:"created_at"`
}

// BlocklistListQuery filters blocklisted channels and videos
type BlocklistListQuery struct {
	PageQuery
	Category *uint `query:"category" json:"category,omitempty"`
}

// BlocklistItemRequest adds a channel or video to the blocklist
type BlocklistItemRequest struct {
	ID         string `json:"id" validate:"required,max=64" example:"UCuAXFkgsw1L7xaCfnd5JJOw"`
	Title      string `json:"title,omitempty" validate:"omitempty,max=255" example:"Some channel"`
	Reason     string `json:"reason,omitempty" validate:"omitempty,max=255" example:"Hate speech"`
	CategoryID *uint  `json:"category_id,omitempty" example:"3"`
}

// BlocklistItemResponse is a blocklisted channel or video
type BlocklistItemResponse struct {
	ID         uint      `json:"id" example:"1"`
	ExternalID string    `json:"external_id" example:"UCuAXFkgsw1L7xaCfnd5JJOw"`
	Title      string    `json:"title" example:"Some channel"`
	Reason     string    `json:"reason" example:"Hate speech"`
	CategoryID *uint     `json:"category_id,omitempty" example:"3"`
	Category   string    `json:"category,omitempty" example:"Hate"`
	CreatedAt  time.Time `json:"created_at"`
}

// VideoBrandSafetyResponse is the scored view of one video
type VideoBrandSafetyResponse struct {
	Score                   int            `json:"score" example:"93"`
	Label                   *string        `json:"label" example:"Suitable"`
	TotalUniqueFlaggedWords int            `json:"total_unique_flagged_words" example:"2"`
	CategoryFlaggedWords    map[string]int `json:"category_flagged_words"`
	WorstWords              []string       `json:"worst_words" example:"badword"`
}

// ChannelBrandSafetyQuery holds the channel endpoint query parameters
type ChannelBrandSafetyQuery struct {
	Threshold     string `query:"threshold" example:"89"`
	Page          string `query:"page" example:"1"`
	Size          string `query:"size" example:"24"`
	Sort          string `query:"sort" example:"youtube_published_at"`
	SortAscending string `query:"sortAscending" example:"false"`
}

// ChannelBrandSafetySummary aggregates a channel's flagged videos
type ChannelBrandSafetySummary struct {
	TotalVideosScored  int64    `json:"total_videos_scored" example:"250"`
	TotalFlaggedVideos int64    `json:"total_flagged_videos" example:"12"`
	FlaggedWords       []string `json:"flagged_words" example:"badword"`
	Score              int      `json:"score" example:"88"`
	Label              *string  `json:"label" example:"Medium Suitability"`
}

// FlaggedVideoItem is one flagged video of a channel
type FlaggedVideoItem struct {
	ID                 string  `json:"id" example:"dQw4w9WgXcQ"`
	Score              int     `json:"score" example:"91"`
	Label              *string `json:"label" example:"Suitable"`
	Title              string  `json:"title" example:"Some video"`
	ThumbnailImageURL  string  `json:"thumbnail_image_url" example:"https://i.ytimg.com/vi/dQw4w9WgXcQ/hqdefault.jpg"`
	Transcript         string  `json:"transcript"`
	YoutubePublishedAt string  `json:"youtube_published_at" example:"2020-01-01T00:00:00Z"`
	Views              int64   `json:"views" example:"1000"`
	EngageRate         float64 `json:"engage_rate" example:"2.5"`
}

// ChannelBrandSafetyResponse is the scored view of a channel with its flagged videos
type ChannelBrandSafetyResponse struct {
	BrandSafety ChannelBrandSafetySummary `json:"brand_safety"`
	Page[FlaggedVideoItem]
}
