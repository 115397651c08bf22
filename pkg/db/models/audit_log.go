package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditLog is a human-readable record of an action taken in the system.
type AuditLog struct {
	ID        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID    *uuid.UUID      `gorm:"column:user_id;type:uuid"`
	TenantID  *uuid.UUID      `gorm:"column:tenant_id;type:uuid;index"`
	Action    string          `gorm:"column:action;not null"`
	IP        *string         `gorm:"column:ip"`
	Object    *string         `gorm:"column:object"`
	Extra     json.RawMessage `gorm:"column:extra;type:jsonb"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (a *AuditLog) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
