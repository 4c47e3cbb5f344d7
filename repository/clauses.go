package repository

import (
	"gorm.io/gorm/clause"
)

// onConflictUpdate upserts on the unique column, overwriting the listed columns
func onConflictUpdate(conflictColumn string, updateColumns ...string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: conflictColumn}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}
}

// onConflictDoNothing skips the insert when the unique columns already exist
func onConflictDoNothing(columns ...string) clause.OnConflict {
	cols := make([]clause.Column, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, clause.Column{Name: c})
	}
	return clause.OnConflict{Columns: cols, DoNothing: true}
}
