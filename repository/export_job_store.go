package repository

import (
	"context"
	"time"

	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/utils"
	"gorm.io/gorm"
)

// exportJobs implements the export status machine over one table
type exportJobs struct {
	table         string
	fileKeyColumn string
	hasRowCount   bool
}

func (e exportJobs) markInProgress(db *gorm.DB, id uint) (bool, error) {
	now := utils.UTCNow()
	res := db.Table(e.table).
		Where("id = ? AND status = ?", id, models.ExportStatusPending).
		Updates(map[string]any{
			"status":     models.ExportStatusInProgress,
			"started_at": now,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

func (e exportJobs) markSuccess(db *gorm.DB, id uint, fileKey string, rows int64) error {
	now := utils.UTCNow()
	values := map[string]any{
		"status":        models.ExportStatusSuccess,
		e.fileKeyColumn: fileKey,
		"error":         nil,
		"completed_at":  now,
		"updated_at":    now,
	}
	if e.hasRowCount {
		values["row_count"] = rows
	}
	return db.Table(e.table).
		Where("id = ? AND status <> ?", id, models.ExportStatusSuccess).
		Updates(values).Error
}

func (e exportJobs) markFailed(db *gorm.DB, id uint, reason string) error {
	now := utils.UTCNow()
	return db.Table(e.table).
		Where("id = ? AND status IN ?", id, []models.ExportStatus{models.ExportStatusPending, models.ExportStatusInProgress}).
		Updates(map[string]any{
			"status":       models.ExportStatusFailed,
			"error":        reason,
			"completed_at": now,
			"updated_at":   now,
		}).Error
}

func (e exportJobs) rearm(db *gorm.DB, id uint, staleBefore time.Time) (bool, error) {
	res := db.Table(e.table).
		Where("id = ?", id).
		Where("status = ? OR (status = ? AND COALESCE("+e.fileKeyColumn+", '') = '') OR (status IN ? AND updated_at < ?)",
			models.ExportStatusFailed,
			models.ExportStatusSuccess,
			[]models.ExportStatus{models.ExportStatusPending, models.ExportStatusInProgress},
			staleBefore,
		).
		Updates(map[string]any{
			"status":       models.ExportStatusPending,
			e.fileKeyColumn: nil,
			"error":        nil,
			"started_at":   nil,
			"completed_at": nil,
			"updated_at":   utils.UTCNow(),
		})
	return res.RowsAffected > 0, res.Error
}

func (e exportJobs) failStale(db *gorm.DB, staleBefore time.Time) (int64, error) {
	now := utils.UTCNow()
	res := db.Table(e.table).
		Where("status = ? AND updated_at < ?", models.ExportStatusInProgress, staleBefore).
		Updates(map[string]any{
			"status":       models.ExportStatusFailed,
			"error":        "export did not finish before the stale deadline",
			"completed_at": now,
			"updated_at":   now,
		})
	return res.RowsAffected, res.Error
}

func (e exportJobs) countByStatus(db *gorm.DB) (map[models.ExportStatus]int64, error) {
	var rows []struct {
		Status models.ExportStatus
		Total  int64
	}
	err := db.Table(e.table).Select("status, COUNT(*) AS total").Group("status").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[models.ExportStatus]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Total
	}
	return out, nil
}

// exportJobStore adapts exportJobs to ExportJobStore for a repository's connection
type exportJobStore struct {
	jobs    exportJobs
	readDB  func(ctx context.Context) *gorm.DB
	writeDB func(ctx context.Context, fn func(db *gorm.DB) error) error
}

func (s *exportJobStore) MarkInProgress(ctx context.Context, id uint) (bool, error) {
	var ok bool
	err := s.writeDB(ctx, func(db *gorm.DB) error {
		var err error
		ok, err = s.jobs.markInProgress(db, id)
		return err
	})
	return ok, err
}

func (s *exportJobStore) MarkSuccess(ctx context.Context, id uint, fileKey string, rows int64) error {
	return s.writeDB(ctx, func(db *gorm.DB) error {
		return s.jobs.markSuccess(db, id, fileKey, rows)
	})
}

func (s *exportJobStore) MarkFailed(ctx context.Context, id uint, reason string) error {
	return s.writeDB(ctx, func(db *gorm.DB) error {
		return s.jobs.markFailed(db, id, reason)
	})
}

func (s *exportJobStore) Rearm(ctx context.Context, id uint, staleBefore time.Time) (bool, error) {
	var ok bool
	err := s.writeDB(ctx, func(db *gorm.DB) error {
		var err error
		ok, err = s.jobs.rearm(db, id, staleBefore)
		return err
	})
	return ok, err
}

func (s *exportJobStore) FailStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	var n int64
	err := s.writeDB(ctx, func(db *gorm.DB) error {
		var err error
		n, err = s.jobs.failStale(db, staleBefore)
		return err
	})
	return n, err
}

func (s *exportJobStore) CountByStatus(ctx context.Context) (map[models.ExportStatus]int64, error) {
	return s.jobs.countByStatus(s.readDB(ctx))
}
