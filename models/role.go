package models

import (
	"time"

	"github.com/lib/pq"
)

// Seeded role names
const (
	RoleNameAdmin        = "admin"
	RoleNameVettingAdmin = "vetting_admin"
	RoleNameUser         = "user"
)

type Role struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:100;not null;uniqueIndex:uk_roles_name" json:"name"`
	Description  string         `gorm:"size:255" json:"description"`
	Capabilities pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"capabilities"`
	CreatedAt    time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Role) TableName() string {
	return "roles"
}

// CapabilitySet returns the role's known capabilities; unknown stored names are ignored
func (r *Role) CapabilitySet() CapabilitySet {
	known, _ := ParseCapabilities(r.Capabilities)
	return NewCapabilitySet(known...)
}

// SetCapabilities stores caps on the role
func (r *Role) SetCapabilities(caps []Capability) {
	arr := make(pq.StringArray, 0, len(caps))
	for _, c := range caps {
		arr = append(arr, string(c))
	}
	r.Capabilities = arr
}

// RoleFilter represents filter criteria for role queries
type RoleFilter struct {
	ID   *uint
	IDs  []uint
	Name *string
}
