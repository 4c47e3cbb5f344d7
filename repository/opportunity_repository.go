package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/viewiq/models"
	"gorm.io/gorm"
)

// OpportunityRepositoryImpl implements OpportunityRepository interface
type OpportunityRepositoryImpl struct {
	db *gorm.DB
}

// NewOpportunityRepository creates a new opportunity repository
func NewOpportunityRepository(db *gorm.DB) OpportunityRepository {
	return &OpportunityRepositoryImpl{db: db}
}

func (r *OpportunityRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db.WithContext(ctx)
}

// ByID retrieves an opportunity by its external id
func (r *OpportunityRepositoryImpl) ByID(ctx context.Context, id string) (*models.Opportunity, error) {
	var row models.Opportunity
	err := r.conn(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find opportunity %s: %w", id, err)
	}
	return &row, nil
}

func (r *OpportunityRepositoryImpl) applyFilter(query *gorm.DB, filter models.OpportunityFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Search != nil && *filter.Search != "" {
		query = query.Where("LOWER(name) LIKE ?", containsPattern(*filter.Search))
	}
	return query
}

// ByFilter retrieves opportunities based on filter criteria
func (r *OpportunityRepositoryImpl) ByFilter(ctx context.Context, filter models.OpportunityFilter, orderBy string, limit, offset int) ([]*models.Opportunity, error) {
	query := r.applyFilter(r.conn(ctx).Model(&models.Opportunity{}), filter)
	if orderBy == "" {
		orderBy = "name ASC"
	}
	var rows []*models.Opportunity
	if err := paginate(query, orderBy, limit, offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of opportunities matching filter
func (r *OpportunityRepositoryImpl) Count(ctx context.Context, filter models.OpportunityFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.conn(ctx).Model(&models.Opportunity{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save upserts an opportunity by id
func (r *OpportunityRepositoryImpl) Save(ctx context.Context, opportunity *models.Opportunity) error {
	err := r.conn(ctx).
		Clauses(onConflictUpdate("id", "name", "account_manager_email", "updated_at")).
		Create(opportunity).Error
	return translateError(err)
}

// TargetingStatisticRepositoryImpl implements TargetingStatisticRepository interface
type TargetingStatisticRepositoryImpl struct {
	*BaseRepository[models.TargetingStatistic, models.TargetingStatisticFilter]
}

// NewTargetingStatisticRepository creates a new targeting statistic repository
func NewTargetingStatisticRepository(db *gorm.DB) TargetingStatisticRepository {
	return &TargetingStatisticRepositoryImpl{
		BaseRepository: NewBaseRepository[models.TargetingStatistic, models.TargetingStatisticFilter](db),
	}
}

// ByFilter returns statistic rows ordered by date then dimension value
func (r *TargetingStatisticRepositoryImpl) ByFilter(ctx context.Context, filter models.TargetingStatisticFilter) ([]*models.TargetingStatistic, error) {
	query := r.getDB(ctx).Model(&models.TargetingStatistic{})
	if filter.OpportunityID != nil {
		query = query.Where("opportunity_id = ?", *filter.OpportunityID)
	}
	if filter.DateFrom != nil {
		query = query.Where("date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("date <= ?", *filter.DateTo)
	}
	if filter.Dimension != nil {
		query = query.Where("dimension = ?", *filter.Dimension)
	}
	var rows []*models.TargetingStatistic
	if err := query.Order("date ASC, name ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// OpportunityTargetingReportRepositoryImpl implements OpportunityTargetingReportRepository interface
type OpportunityTargetingReportRepositoryImpl struct {
	*BaseRepository[models.OpportunityTargetingReport, models.OpportunityTargetingReportFilter]
	*exportJobStore
}

// NewOpportunityTargetingReportRepository creates a new targeting report repository
func NewOpportunityTargetingReportRepository(db *gorm.DB) OpportunityTargetingReportRepository {
	base := NewBaseRepository[models.OpportunityTargetingReport, models.OpportunityTargetingReportFilter](db)
	return &OpportunityTargetingReportRepositoryImpl{
		BaseRepository: base,
		exportJobStore: &exportJobStore{
			jobs:    exportJobs{table: "opportunity_targeting_reports", fileKeyColumn: "s3_file_key"},
			readDB:  base.getDB,
			writeDB: base.write,
		},
	}
}

// InsertOrGet inserts the report unless its (opportunity, date range) key exists, then loads the stored row
func (r *OpportunityTargetingReportRepositoryImpl) InsertOrGet(ctx context.Context, report *models.OpportunityTargetingReport) (*models.OpportunityTargetingReport, bool, error) {
	var created bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Omit("Recipients", "Opportunity").
			Clauses(onConflictDoNothing("opportunity_id", "date_from", "date_to")).
			Create(report)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to insert targeting report: %w", err)
	}

	var row models.OpportunityTargetingReport
	err = r.getDB(ctx).
		Where("opportunity_id = ? AND date_from = ? AND date_to = ?", report.OpportunityID, report.DateFrom, report.DateTo).
		First(&row).Error
	if err != nil {
		return nil, false, fmt.Errorf("failed to load targeting report: %w", err)
	}
	return &row, created, nil
}

// ByIDWithRelations retrieves a report with its opportunity and recipients
func (r *OpportunityTargetingReportRepositoryImpl) ByIDWithRelations(ctx context.Context, id uint) (*models.OpportunityTargetingReport, error) {
	var row models.OpportunityTargetingReport
	err := r.getDB(ctx).Preload("Opportunity").Preload("Recipients").First(&row, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find targeting report %d: %w", id, err)
	}
	return &row, nil
}

// AddRecipient links a user to a report; repeated calls are no-ops
func (r *OpportunityTargetingReportRepositoryImpl) AddRecipient(ctx context.Context, reportID, userID uint) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Exec(
			`INSERT INTO opportunity_targeting_report_recipients (report_id, user_id) VALUES (?, ?) ON CONFLICT DO NOTHING`,
			reportID, userID,
		).Error
	})
}

// ListWithRecipients returns the newest reports with opportunity and recipients loaded
func (r *OpportunityTargetingReportRepositoryImpl) ListWithRecipients(ctx context.Context, limit, offset int) ([]*models.OpportunityTargetingReport, error) {
	query := paginate(r.getDB(ctx).Model(&models.OpportunityTargetingReport{}), "created_at DESC, id DESC", limit, offset)
	var rows []*models.OpportunityTargetingReport
	if err := query.Preload("Opportunity").Preload("Recipients").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OpportunityTargetingReportRepositoryImpl) applyFilter(query *gorm.DB, filter models.OpportunityTargetingReportFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.OpportunityID != nil {
		query = query.Where("opportunity_id = ?", *filter.OpportunityID)
	}
	if filter.DateFrom != nil {
		query = query.Where("date_from = ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("date_to = ?", *filter.DateTo)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves reports based on filter criteria
func (r *OpportunityTargetingReportRepositoryImpl) ByFilter(ctx context.Context, filter models.OpportunityTargetingReportFilter, orderBy string, limit, offset int) ([]*models.OpportunityTargetingReport, error) {
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.OpportunityTargetingReport{}), filter), orderBy, limit, offset)
	var rows []*models.OpportunityTargetingReport
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of reports matching filter
func (r *OpportunityTargetingReportRepositoryImpl) Count(ctx context.Context, filter models.OpportunityTargetingReportFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.OpportunityTargetingReport{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any report matches the filter
func (r *OpportunityTargetingReportRepositoryImpl) Exists(ctx context.Context, filter models.OpportunityTargetingReportFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
