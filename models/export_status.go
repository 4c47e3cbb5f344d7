package models

import (
	"database/sql/driver"
	"fmt"
)

// ExportStatus is the lifecycle of a background export job
type ExportStatus string

const (
	ExportStatusPending    ExportStatus = "pending"
	ExportStatusInProgress ExportStatus = "in_progress"
	ExportStatusSuccess    ExportStatus = "success"
	ExportStatusFailed     ExportStatus = "failed"
)

// String returns the string representation of the status
func (s ExportStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ExportStatus) Valid() bool {
	switch s {
	case ExportStatusPending, ExportStatusInProgress, ExportStatusSuccess, ExportStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no worker will touch the job again without a re-arm
func (s ExportStatus) Terminal() bool {
	return s == ExportStatusSuccess || s == ExportStatusFailed
}

// Scan implements the sql.Scanner interface for ExportStatus
func (s *ExportStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ExportStatus(v)
	case []byte:
		*s = ExportStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ExportStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ExportStatus
func (s ExportStatus) Value() (driver.Value, error) {
	return string(s), nil
}
