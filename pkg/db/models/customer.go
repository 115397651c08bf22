package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Customer is the buyer profile attached to a user account.
type Customer struct {
	ID                uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_customers_user"`
	Phone             *string         `gorm:"column:phone"`
	LoyaltyTier       string          `gorm:"column:loyalty_tier;not null;default:'BRONZE'"`
	PointsAccumulated decimal.Decimal `gorm:"column:points_accumulated;type:numeric(14,4);not null;default:0"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// TenantCustomer links a customer to every tenant they have bought from.
type TenantCustomer struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_tenant_customers,priority:1"`
	CustomerID uuid.UUID `gorm:"column:customer_id;type:uuid;not null;uniqueIndex:ux_tenant_customers,priority:2"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (tc *TenantCustomer) BeforeCreate(*gorm.DB) error {
	assignID(&tc.ID)
	return nil
}

// Salesperson is tenant staff credited with sales.
type Salesperson struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	UserID         uuid.UUID       `gorm:"column:user_id;type:uuid;not null"`
	TenantID       uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null;index"`
	SalesCount     int             `gorm:"column:sales_count;not null;default:0"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2);not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Salesperson) TableName() string { return "salespersons" }

func (s *Salesperson) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
