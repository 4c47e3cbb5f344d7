package models

import (
	"time"

	"gorm.io/datatypes"
)

// DomainConfig is the white-label configuration served for a sub-domain
type DomainConfig struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	Domain    string            `gorm:"size:100;not null;uniqueIndex:uk_domain_configs_domain" json:"domain"`
	Config    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"config"`
	CreatedAt time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time         `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (DomainConfig) TableName() string {
	return "domain_configs"
}

// DomainConfigFilter represents filter criteria for domain config queries
type DomainConfigFilter struct {
	ID     *uint
	Domain *string
}
