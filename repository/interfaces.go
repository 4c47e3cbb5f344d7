package repository

import (
	"context"
	"time"

	"github.com/amirphl/viewiq/models"
	"github.com/google/uuid"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// UserRepository defines operations for users
type UserRepository interface {
	Repository[models.User, models.UserFilter]
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByIDWithRoles(ctx context.Context, id uint) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	ReplaceRoles(ctx context.Context, user *models.User, roles []*models.Role) error
	Delete(ctx context.Context, id uint) (bool, error)
	TouchLastLogin(ctx context.Context, id uint, at time.Time) error
}

// RoleRepository defines operations for roles
type RoleRepository interface {
	Repository[models.Role, models.RoleFilter]
	ByName(ctx context.Context, name string) (*models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id uint) (bool, error)
}

// OTPVerificationRepository defines operations for one-time login codes
type OTPVerificationRepository interface {
	Repository[models.OTPVerification, models.OTPVerificationFilter]
	ByCorrelationID(ctx context.Context, id uuid.UUID) (*models.OTPVerification, error)
	ExpirePending(ctx context.Context, userID uint, purpose string) (int64, error)
	RecordFailedAttempt(ctx context.Context, id uint) (int, error)
	Transition(ctx context.Context, id uint, from, to string, at time.Time) (bool, error)
}

// UserActionRepository defines operations for the user action log
type UserActionRepository interface {
	Repository[models.UserAction, models.UserActionFilter]
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]*models.UserAction, error)
}

// DeviceTokenRepository defines operations for push device tokens
type DeviceTokenRepository interface {
	Upsert(ctx context.Context, token *models.DeviceToken) error
	DeleteForUser(ctx context.Context, userID uint, token string) (bool, error)
	ByUserID(ctx context.Context, userID uint) ([]*models.DeviceToken, error)
}

// BadWordCategoryRepository defines operations for bad word categories
type BadWordCategoryRepository interface {
	Repository[models.BadWordCategory, models.BadWordCategoryFilter]
	ByName(ctx context.Context, name string) (*models.BadWordCategory, error)
}

// BadWordRepository defines operations for soft-deletable bad words
type BadWordRepository interface {
	Repository[models.BadWord, models.BadWordFilter]
	Update(ctx context.Context, word *models.BadWord) error
	Delete(ctx context.Context, id uint) (bool, error)
}

// BadChannelRepository defines operations for blocklisted channels
type BadChannelRepository interface {
	Repository[models.BadChannel, models.BlocklistFilter]
	Delete(ctx context.Context, id uint) (bool, error)
}

// BadVideoRepository defines operations for blocklisted videos
type BadVideoRepository interface {
	Repository[models.BadVideo, models.BlocklistFilter]
	Delete(ctx context.Context, id uint) (bool, error)
}

// ExportJobStore is the status machine shared by segment exports and targeting reports.
// Every transition is a compare-and-set on the current status.
type ExportJobStore interface {
	MarkInProgress(ctx context.Context, id uint) (bool, error)
	MarkSuccess(ctx context.Context, id uint, fileKey string, rows int64) error
	MarkFailed(ctx context.Context, id uint, reason string) error
	// Rearm moves a failed job, a successful one without a file, or an unfinished one last
	// touched before staleBefore back to pending
	Rearm(ctx context.Context, id uint, staleBefore time.Time) (bool, error)
	FailStale(ctx context.Context, staleBefore time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[models.ExportStatus]int64, error)
}

// CustomSegmentRepository defines operations for custom segments
type CustomSegmentRepository interface {
	Repository[models.CustomSegment, models.CustomSegmentFilter]
	ByIDWithExport(ctx context.Context, id uint) (*models.CustomSegment, error)
	UpdateStatistics(ctx context.Context, id uint, stats map[string]any) error
	Delete(ctx context.Context, id uint) (bool, error)
	CountByType(ctx context.Context) (map[models.SegmentType]int64, error)
}

// CustomSegmentFileUploadRepository defines operations for segment exports
type CustomSegmentFileUploadRepository interface {
	Repository[models.CustomSegmentFileUpload, models.CustomSegmentFileUploadFilter]
	ExportJobStore
	BySegmentID(ctx context.Context, segmentID uint) (*models.CustomSegmentFileUpload, error)
}

// OpportunityRepository defines operations for opportunities
type OpportunityRepository interface {
	ByID(ctx context.Context, id string) (*models.Opportunity, error)
	ByFilter(ctx context.Context, filter models.OpportunityFilter, orderBy string, limit, offset int) ([]*models.Opportunity, error)
	Count(ctx context.Context, filter models.OpportunityFilter) (int64, error)
	Save(ctx context.Context, opportunity *models.Opportunity) error
}

// TargetingStatisticRepository defines operations for targeting statistics
type TargetingStatisticRepository interface {
	ByFilter(ctx context.Context, filter models.TargetingStatisticFilter) ([]*models.TargetingStatistic, error)
	SaveBatch(ctx context.Context, rows []*models.TargetingStatistic) error
}

// OpportunityTargetingReportRepository defines operations for targeting reports
type OpportunityTargetingReportRepository interface {
	Repository[models.OpportunityTargetingReport, models.OpportunityTargetingReportFilter]
	ExportJobStore
	// InsertOrGet atomically creates the report for its key or returns the existing row.
	// created is true only for the caller whose insert won.
	InsertOrGet(ctx context.Context, report *models.OpportunityTargetingReport) (row *models.OpportunityTargetingReport, created bool, err error)
	ByIDWithRelations(ctx context.Context, id uint) (*models.OpportunityTargetingReport, error)
	AddRecipient(ctx context.Context, reportID, userID uint) error
	ListWithRecipients(ctx context.Context, limit, offset int) ([]*models.OpportunityTargetingReport, error)
}

// CustomerRepository defines operations for Stripe customer mirrors
type CustomerRepository interface {
	ByUserID(ctx context.Context, userID uint) (*models.Customer, error)
	ByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.Customer, error)
	Upsert(ctx context.Context, customer *models.Customer) error
}

// PlanRepository defines operations for plan mirrors
type PlanRepository interface {
	Repository[models.Plan, models.PlanFilter]
	ByStripePlanID(ctx context.Context, stripePlanID string) (*models.Plan, error)
	Upsert(ctx context.Context, plan *models.Plan) error
}

// SubscriptionRepository defines operations for subscription mirrors
type SubscriptionRepository interface {
	ByStripeSubscriptionID(ctx context.Context, id string) (*models.Subscription, error)
	LatestByUserID(ctx context.Context, userID uint) (*models.Subscription, error)
	Upsert(ctx context.Context, sub *models.Subscription) error
	Count(ctx context.Context, filter models.SubscriptionFilter) (int64, error)
}

// WebhookEventRepository defines operations for the webhook ledger
type WebhookEventRepository interface {
	// InsertIfAbsent stores the event unless its id was already seen; returns the stored row
	InsertIfAbsent(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, bool, error)
	Update(ctx context.Context, event *models.WebhookEvent) error
}

// DomainConfigRepository defines operations for white-label configs
type DomainConfigRepository interface {
	Repository[models.DomainConfig, models.DomainConfigFilter]
	ByDomain(ctx context.Context, domain string) (*models.DomainConfig, error)
	Update(ctx context.Context, cfg *models.DomainConfig) error
	Delete(ctx context.Context, id uint) (bool, error)
}
