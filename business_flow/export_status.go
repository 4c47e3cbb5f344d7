package businessflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
)

const (
	// DefaultExportStaleAfter is how long a job may stay unfinished before a poll re-arms it
	DefaultExportStaleAfter = 24 * time.Hour

	ExportStatusCreated = "created"
	ExportStatusReady   = "ready"
	ExportStatusFailed  = "failed"

	exportProcessingMessage = "Processing.  You will receive an email when your export is ready."
	exportReadyMessage      = "Your export is ready."
	exportRetryMessage      = "The previous export failed and has been queued again.  You will receive an email when your export is ready."
)

// exportJobState is the subset of an export row the status machine reads
type exportJobState struct {
	ID        uint
	Status    models.ExportStatus
	FileKey   *string
	UpdatedAt time.Time
}

// exportTracker answers export polls and keeps at most one job in flight per row
type exportTracker struct {
	store      repository.ExportJobStore
	queue      services.TaskQueue
	storage    services.ObjectStorage
	jobType    services.JobType
	staleAfter time.Duration
}

func createdResponse() *dto.ExportStatusResponse {
	return &dto.ExportStatusResponse{Status: ExportStatusCreated, Message: exportProcessingMessage}
}

// enqueue publishes the job; a publish failure marks the row failed so the next poll re-arms it
func (t *exportTracker) enqueue(ctx context.Context, id uint) error {
	err := t.queue.Enqueue(ctx, services.Job{Type: t.jobType, ID: id})
	if err == nil {
		return nil
	}
	slog.ErrorContext(ctx, "failed to enqueue export", "job_type", t.jobType, "id", id, "error", err)
	if markErr := t.store.MarkFailed(ctx, id, err.Error()); markErr != nil {
		slog.ErrorContext(ctx, "failed to mark export failed", "job_type", t.jobType, "id", id, "error", markErr)
	}
	return internal("EXPORT_ENQUEUE_FAILED", "Failed to schedule export", err)
}

// rearm moves the row back to pending and enqueues it when this caller won the transition
func (t *exportTracker) rearm(ctx context.Context, id uint, staleBefore time.Time) (bool, error) {
	ok, err := t.store.Rearm(ctx, id, staleBefore)
	if err != nil {
		return false, internal("EXPORT_REARM_FAILED", "Failed to restart export", err)
	}
	if !ok {
		return false, nil
	}
	if err := t.enqueue(ctx, id); err != nil {
		return false, err
	}
	return true, nil
}

// retry re-arms a failed row and reports whether this poll restarted it
func (t *exportTracker) retry(ctx context.Context, id uint, now time.Time) (*dto.ExportStatusResponse, error) {
	rearmed, err := t.rearm(ctx, id, now)
	if err != nil {
		return nil, err
	}
	if rearmed {
		return &dto.ExportStatusResponse{Status: ExportStatusFailed, Message: exportRetryMessage}, nil
	}
	return createdResponse(), nil
}

// status maps an existing row to the poll response
func (t *exportTracker) status(ctx context.Context, job exportJobState) (*dto.ExportStatusResponse, error) {
	now := utils.UTCNow()
	switch job.Status {
	case models.ExportStatusSuccess:
		if job.FileKey == nil || *job.FileKey == "" {
			slog.WarnContext(ctx, "export finished without a file", "job_type", t.jobType, "id", job.ID)
			return t.retry(ctx, job.ID, now)
		}
		link, err := t.storage.PresignedURL(ctx, *job.FileKey)
		if err != nil {
			return nil, internal("EXPORT_LINK_FAILED", "Failed to generate download link", err)
		}
		return &dto.ExportStatusResponse{Status: ExportStatusReady, Message: exportReadyMessage, DownloadLink: link}, nil

	case models.ExportStatusFailed:
		return t.retry(ctx, job.ID, now)

	default:
		staleBefore := now.Add(-t.staleAfter)
		if job.UpdatedAt.Before(staleBefore) {
			if _, err := t.rearm(ctx, job.ID, staleBefore); err != nil {
				return nil, err
			}
		}
		return createdResponse(), nil
	}
}
