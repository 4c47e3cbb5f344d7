package models

// IndexDocument is a video or channel document as stored in the search index.
// Channel-only and video-only fields are left empty on the other kind.
type IndexDocument struct {
	Main        DocumentMain        `json:"main"`
	GeneralData DocumentGeneralData `json:"general_data"`
	Stats       DocumentStats       `json:"stats"`
	BrandSafety DocumentBrandSafety `json:"brand_safety"`
	Channel     *DocumentChannelRef `json:"channel,omitempty"`
	TaskUsData  map[string]any      `json:"task_us_data,omitempty"`
}

type DocumentMain struct {
	ID string `json:"id"`
}

type DocumentGeneralData struct {
	Title              string   `json:"title"`
	Description        string   `json:"description,omitempty"`
	ThumbnailImageURL  string   `json:"thumbnail_image_url"`
	YoutubePublishedAt string   `json:"youtube_published_at,omitempty"`
	LangCode           string   `json:"lang_code,omitempty"`
	TopLangCode        string   `json:"top_lang_code,omitempty"`
	CountryCode        string   `json:"country_code,omitempty"`
	IABCategories      []string `json:"iab_categories,omitempty"`
	PrimaryCategory    string   `json:"primary_category,omitempty"`
	Transcript         string   `json:"transcript,omitempty"`
}

type DocumentStats struct {
	Views                int64   `json:"views"`
	Subscribers          int64   `json:"subscribers,omitempty"`
	EngageRate           float64 `json:"engage_rate"`
	Sentiment            float64 `json:"sentiment,omitempty"`
	TotalVideosCount     int64   `json:"total_videos_count,omitempty"`
	LastVideoPublishedAt string  `json:"last_video_published_at,omitempty"`
}

// DocumentBrandSafety holds the scored result; categories are keyed by BadWordCategory id
type DocumentBrandSafety struct {
	OverallScore float64                     `json:"overall_score"`
	VideosScored int64                       `json:"videos_scored,omitempty"`
	Categories   map[string]DocumentCategory `json:"categories,omitempty"`
}

type DocumentCategory struct {
	CategoryScore  float64           `json:"category_score"`
	Keywords       []DocumentKeyword `json:"keywords"`
	SeverityCounts map[string]int64  `json:"severity_counts,omitempty"`
}

type DocumentKeyword struct {
	Keyword string `json:"keyword"`
}

type DocumentChannelRef struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// Language returns the language code of a video or the top language of a channel
func (d *IndexDocument) Language() string {
	if d.GeneralData.LangCode != "" {
		return d.GeneralData.LangCode
	}
	return d.GeneralData.TopLangCode
}

// Category returns the first IAB category, falling back to the primary category
func (d *IndexDocument) Category() string {
	if len(d.GeneralData.IABCategories) > 0 {
		return d.GeneralData.IABCategories[0]
	}
	return d.GeneralData.PrimaryCategory
}
