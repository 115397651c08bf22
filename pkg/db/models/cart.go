package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Cart is the snapshot written at settlement; it is owned by exactly one sale.
type Cart struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	TenantID   uuid.UUID       `gorm:"column:tenant_id;type:uuid;not null"`
	CustomerID uuid.UUID       `gorm:"column:customer_id;type:uuid;not null"`
	Total      decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	Items      []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (c *Cart) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// CartItem captures the unit price at purchase time; it is never updated.
type CartItem struct {
	ID                  uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID              uuid.UUID       `gorm:"column:cart_id;type:uuid;not null;index"`
	ProductID           uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity            int             `gorm:"column:quantity;not null"`
	UnitPriceAtPurchase decimal.Decimal `gorm:"column:unit_price_at_purchase;type:numeric(12,2);not null"`
}

func (ci *CartItem) BeforeCreate(*gorm.DB) error {
	assignID(&ci.ID)
	return nil
}
