package models

import (
	"time"
)

// Opportunity is a sold media plan; statistics and reports hang off it
type Opportunity struct {
	ID                  string    `gorm:"primaryKey;size:64" json:"id"`
	Name                string    `gorm:"size:255;not null" json:"name"`
	AccountManagerEmail string    `gorm:"size:255" json:"account_manager_email"`
	CreatedAt           time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt           time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Opportunity) TableName() string {
	return "opportunities"
}

// OpportunityFilter represents filter criteria for opportunity queries
type OpportunityFilter struct {
	ID     *string
	Search *string
}

// TargetingDimension is the breakdown a statistic row belongs to
type TargetingDimension string

const (
	TargetingDimensionTarget TargetingDimension = "target"
	TargetingDimensionDevice TargetingDimension = "device"
	TargetingDimensionAge    TargetingDimension = "age"
	TargetingDimensionGender TargetingDimension = "gender"
	TargetingDimensionVideo  TargetingDimension = "video"
)

// TargetingStatistic is one day of delivery for one targeting dimension value
type TargetingStatistic struct {
	ID               uint               `gorm:"primaryKey" json:"id"`
	OpportunityID    string             `gorm:"size:64;not null;index:idx_targeting_statistics_opp_date,priority:1" json:"opportunity_id"`
	Date             time.Time          `gorm:"type:date;not null;index:idx_targeting_statistics_opp_date,priority:2" json:"date"`
	Dimension        TargetingDimension `gorm:"size:20;not null" json:"dimension"`
	Name             string             `gorm:"size:255;not null" json:"name"`
	Type             string             `gorm:"size:100;not null;default:''" json:"type"`
	CampaignName     string             `gorm:"size:255;not null;default:''" json:"campaign_name"`
	AdGroupName      string             `gorm:"size:255;not null;default:''" json:"ad_group_name"`
	PlacementName    string             `gorm:"size:255;not null;default:''" json:"placement_name"`
	PlacementStart   *time.Time         `gorm:"type:date" json:"placement_start,omitempty"`
	PlacementEnd     *time.Time         `gorm:"type:date" json:"placement_end,omitempty"`
	RateType         string             `gorm:"size:10;not null;default:''" json:"rate_type"`
	ContractedRate   float64            `gorm:"not null;default:0" json:"contracted_rate"`
	MaxBid           float64            `gorm:"not null;default:0" json:"max_bid"`
	MarginCap        *float64           `json:"margin_cap,omitempty"`
	CannotRollOver   bool               `gorm:"not null;default:false" json:"cannot_roll_over"`
	OrderedUnits     int64              `gorm:"not null;default:0" json:"ordered_units"`
	Impressions      int64              `gorm:"not null;default:0" json:"impressions"`
	VideoViews       int64              `gorm:"not null;default:0" json:"video_views"`
	Clicks           int64              `gorm:"not null;default:0" json:"clicks"`
	Cost             float64            `gorm:"not null;default:0" json:"cost"`
	VideoPlayedTo100 int64              `gorm:"column:video_played_to_100;not null;default:0" json:"video_played_to_100"`
	Revenue          float64            `gorm:"not null;default:0" json:"revenue"`
}

func (TargetingStatistic) TableName() string {
	return "targeting_statistics"
}

// TargetingStatisticFilter represents filter criteria for statistic queries
type TargetingStatisticFilter struct {
	OpportunityID *string
	DateFrom      *time.Time
	DateTo        *time.Time
	Dimension     *TargetingDimension
}

// OpportunityTargetingReport is an XLSX export keyed by (opportunity, date range)
type OpportunityTargetingReport struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	OpportunityID string       `gorm:"size:64;not null;uniqueIndex:uk_opportunity_targeting_reports_key,priority:1" json:"opportunity_id"`
	Opportunity   *Opportunity `gorm:"foreignKey:OpportunityID;references:ID" json:"opportunity,omitempty"`
	DateFrom      time.Time    `gorm:"type:date;not null;uniqueIndex:uk_opportunity_targeting_reports_key,priority:2" json:"date_from"`
	DateTo        time.Time    `gorm:"type:date;not null;uniqueIndex:uk_opportunity_targeting_reports_key,priority:3" json:"date_to"`
	Status        ExportStatus `gorm:"size:20;not null;index:idx_opportunity_targeting_reports_status" json:"status"`
	S3FileKey     *string      `gorm:"column:s3_file_key;size:512" json:"s3_file_key,omitempty"`
	Error         *string      `gorm:"type:text" json:"error,omitempty"`
	Attempts      int          `gorm:"not null;default:0" json:"attempts"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	CreatedAt     time.Time    `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`

	Recipients []User `gorm:"many2many:opportunity_targeting_report_recipients;joinForeignKey:ReportID;joinReferences:UserID" json:"recipients,omitempty"`
}

func (OpportunityTargetingReport) TableName() string {
	return "opportunity_targeting_reports"
}

// OpportunityTargetingReportFilter represents filter criteria for report queries
type OpportunityTargetingReportFilter struct {
	ID            *uint
	OpportunityID *string
	DateFrom      *time.Time
	DateTo        *time.Time
	Status        *ExportStatus
}
