package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SegmentType selects which document index a segment targets
type SegmentType int

const (
	SegmentTypeVideo   SegmentType = 0
	SegmentTypeChannel SegmentType = 1
)

func (t SegmentType) Valid() bool {
	return t == SegmentTypeVideo || t == SegmentTypeChannel
}

func (t SegmentType) String() string {
	switch t {
	case SegmentTypeVideo:
		return "video"
	case SegmentTypeChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// ListType is whether a segment is an inclusion or an exclusion list
type ListType string

const (
	ListTypeWhitelist ListType = "whitelist"
	ListTypeBlacklist ListType = "blacklist"
)

func (l ListType) Valid() bool {
	return l == ListTypeWhitelist || l == ListTypeBlacklist
}

// CustomSegment is a saved filter over channel or video documents.
// Title is unique per (owner, segment type) among rows that are not deleted.
type CustomSegment struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_custom_segments_uuid" json:"uuid"`
	OwnerID     uint              `gorm:"not null;index:idx_custom_segments_owner_id" json:"owner_id"`
	Owner       *User             `gorm:"foreignKey:OwnerID;references:ID" json:"-"`
	Title       string            `gorm:"size:255;not null" json:"title"`
	SegmentType SegmentType       `gorm:"not null" json:"segment_type"`
	ListType    ListType          `gorm:"size:20;not null" json:"list_type"`
	Statistics  datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"statistics"`
	Query       datatypes.JSON    `gorm:"type:jsonb;not null" json:"query"`
	CreatedAt   time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_custom_segments_created_at" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
	DeletedAt   gorm.DeletedAt    `gorm:"index:idx_custom_segments_deleted_at" json:"-"`

	Export *CustomSegmentFileUpload `gorm:"foreignKey:SegmentID" json:"export,omitempty"`
}

func (CustomSegment) TableName() string {
	return "custom_segments"
}

func (s *CustomSegment) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == uuid.Nil {
		s.UUID = uuid.New()
	}
	return nil
}

// CustomSegmentFilter represents filter criteria for segment queries
type CustomSegmentFilter struct {
	ID          *uint
	OwnerID     *uint
	Title       *string
	SegmentType *SegmentType
	ListType    *ListType
	Search      *string
}

// CustomSegmentFileUpload tracks the export artifact of a segment
type CustomSegmentFileUpload struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	SegmentID   uint           `gorm:"not null;uniqueIndex:uk_custom_segment_file_uploads_segment_id" json:"segment_id"`
	Query       datatypes.JSON `gorm:"type:jsonb;not null" json:"query"`
	Status      ExportStatus   `gorm:"size:20;not null;index:idx_custom_segment_file_uploads_status" json:"status"`
	FileKey     *string        `gorm:"size:512" json:"file_key,omitempty"`
	RowCount    int64          `gorm:"not null;default:0" json:"row_count"`
	Error       *string        `gorm:"type:text" json:"error,omitempty"`
	Attempts    int            `gorm:"not null;default:0" json:"attempts"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
	CreatedAt   time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (CustomSegmentFileUpload) TableName() string {
	return "custom_segment_file_uploads"
}

// CustomSegmentFileUploadFilter represents filter criteria for segment export queries
type CustomSegmentFileUploadFilter struct {
	SegmentID *uint
	Status    *ExportStatus
}
