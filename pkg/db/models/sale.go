package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tiendas-backend/pkg/enums"
)

// Sale is the durable result of a settled cart.
type Sale struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	TenantID      uuid.UUID        `gorm:"column:tenant_id;type:uuid;not null;index"`
	CustomerID    uuid.UUID        `gorm:"column:customer_id;type:uuid;not null;index"`
	SalespersonID *uuid.UUID       `gorm:"column:salesperson_id;type:uuid"`
	CartID        uuid.UUID        `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:ux_sales_cart"`
	Status        enums.SaleStatus `gorm:"column:status;type:sale_status;not null"`
	Subtotal      decimal.Decimal  `gorm:"column:subtotal;type:numeric(12,2);not null"`
	ShippingCost  decimal.Decimal  `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	Total         decimal.Decimal  `gorm:"column:total;type:numeric(12,2);not null"`
	Items         []SaleItem       `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
	Payments      []Payment        `gorm:"foreignKey:SaleID"`
	Shipment      *Shipment        `gorm:"foreignKey:SaleID"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Sale) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// SaleItem holds the historical price snapshot of one line.
type SaleItem struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SaleID          uuid.UUID       `gorm:"column:sale_id;type:uuid;not null;index"`
	ProductID       uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Quantity        int             `gorm:"column:quantity;not null"`
	HistoricalPrice decimal.Decimal `gorm:"column:historical_price;type:numeric(12,2);not null"`
}

func (si *SaleItem) BeforeCreate(*gorm.DB) error {
	assignID(&si.ID)
	return nil
}

// Payment records a provider charge against a sale. ProviderReference is
// globally unique so a replayed confirmation cannot settle twice.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SaleID            uuid.UUID           `gorm:"column:sale_id;type:uuid;not null;index"`
	TenantID          uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency          string              `gorm:"column:currency;not null"`
	Method            string              `gorm:"column:method;not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:payment_status;not null"`
	ProviderReference string              `gorm:"column:provider_reference;not null;uniqueIndex:ux_payments_provider_reference"`
	PaymentIntentID   *string             `gorm:"column:payment_intent_id"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (p *Payment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

type Shipment struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	SaleID          uuid.UUID            `gorm:"column:sale_id;type:uuid;not null;uniqueIndex:ux_shipments_sale"`
	TenantID        uuid.UUID            `gorm:"column:tenant_id;type:uuid;not null"`
	DeliveryAddress string               `gorm:"column:delivery_address;not null"`
	Status          enums.ShipmentStatus `gorm:"column:status;type:shipment_status;not null"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shipment) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}
