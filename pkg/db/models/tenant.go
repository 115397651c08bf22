package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tiendas-backend/pkg/enums"
)

// Tenant is an isolated store; every catalog and sales row points at exactly one.
type Tenant struct {
	ID              uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name            string             `gorm:"column:name;not null"`
	Slug            string             `gorm:"column:slug;not null;uniqueIndex:ux_tenants_slug"`
	Status          enums.TenantStatus `gorm:"column:status;type:tenant_status;not null"`
	PlanID          *uuid.UUID         `gorm:"column:plan_id;type:uuid"`
	NextBillingDate *time.Time         `gorm:"column:next_billing_date"`
	CreatedAt       time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	assignID(&t.ID)
	return nil
}
