package models

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"gorm.io/gorm"
)

// BadWordCategory groups bad words; excluded categories are ignored by scoring
type BadWordCategory struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:80;not null;uniqueIndex:uk_bad_word_categories_name" json:"name"`
	Excluded  bool      `gorm:"not null;default:false" json:"excluded"`
	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

func (BadWordCategory) TableName() string {
	return "bad_word_categories"
}

// BadWordCategoryFilter represents filter criteria for category queries
type BadWordCategoryFilter struct {
	ID       *uint
	IDs      []uint
	Name     *string
	Excluded *bool
}

const (
	MinNegativeScore = 1
	MaxNegativeScore = 4
)

// BadWord is a soft-deletable brand-safety keyword.
// (normalized_name, category_id, language) is unique among rows that are not deleted.
type BadWord struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Name           string          `gorm:"size:255;not null" json:"name"`
	NormalizedName string          `gorm:"size:255;not null;index:idx_bad_words_normalized_name" json:"-"`
	CategoryID     uint            `gorm:"not null;index:idx_bad_words_category_id" json:"category_id"`
	Category       BadWordCategory `gorm:"foreignKey:CategoryID;references:ID" json:"category"`
	Language       string          `gorm:"size:10;not null;default:''" json:"language"`
	NegativeScore  int             `gorm:"not null;default:1" json:"negative_score"`
	CreatedAt      time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index:idx_bad_words_deleted_at" json:"-"`
}

func (BadWord) TableName() string {
	return "bad_words"
}

// NormalizeWord case-folds and trims a keyword so lookups ignore case and spacing
func NormalizeWord(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}

func (w *BadWord) BeforeSave(tx *gorm.DB) error {
	w.NormalizedName = NormalizeWord(w.Name)
	return nil
}

// BadWordFilter represents filter criteria for bad word queries
type BadWordFilter struct {
	ID              *uint
	IDs             []uint
	CategoryID      *uint
	Language        *string
	NormalizedName  *string
	NormalizedNames []string
	Search          *string
	IncludeDeleted  bool
}

// BadChannel is a soft-deletable blocklisted channel
type BadChannel struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	ChannelID  string           `gorm:"size:64;not null" json:"channel_id"`
	Title      string           `gorm:"size:255;not null;default:''" json:"title"`
	Reason     string           `gorm:"size:255;not null;default:''" json:"reason"`
	CategoryID *uint            `gorm:"index:idx_bad_channels_category_id" json:"category_id,omitempty"`
	Category   *BadWordCategory `gorm:"foreignKey:CategoryID;references:ID" json:"category,omitempty"`
	CreatedAt  time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt  gorm.DeletedAt   `gorm:"index:idx_bad_channels_deleted_at" json:"-"`
}

func (BadChannel) TableName() string {
	return "bad_channels"
}

// BadVideo is a soft-deletable blocklisted video
type BadVideo struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	VideoID    string           `gorm:"size:64;not null" json:"video_id"`
	Title      string           `gorm:"size:255;not null;default:''" json:"title"`
	Reason     string           `gorm:"size:255;not null;default:''" json:"reason"`
	CategoryID *uint            `gorm:"index:idx_bad_videos_category_id" json:"category_id,omitempty"`
	Category   *BadWordCategory `gorm:"foreignKey:CategoryID;references:ID" json:"category,omitempty"`
	CreatedAt  time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt  time.Time        `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt  gorm.DeletedAt   `gorm:"index:idx_bad_videos_deleted_at" json:"-"`
}

func (BadVideo) TableName() string {
	return "bad_videos"
}

// BlocklistFilter represents filter criteria for bad channel and bad video queries
type BlocklistFilter struct {
	ID             *uint
	ExternalID     *string
	CategoryID     *uint
	Search         *string
	IncludeDeleted bool
}
