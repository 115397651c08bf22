package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tiendas-backend/pkg/enums"
)

// SaleLine is one settled line of a sale.
type SaleLine struct {
	ProductID       uuid.UUID       `json:"product_id"`
	Quantity        int             `json:"quantity"`
	HistoricalPrice decimal.Decimal `json:"historical_price"`
}

// SaleSettledEvent is emitted in the settlement transaction.
type SaleSettledEvent struct {
	SaleID           uuid.UUID       `json:"sale_id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	CustomerID       uuid.UUID       `json:"customer_id"`
	SalespersonID    *uuid.UUID      `json:"salesperson_id,omitempty"`
	PaymentReference string          `json:"payment_reference"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	Shipping         decimal.Decimal `json:"shipping"`
	Total            decimal.Decimal `json:"total"`
	Currency         string          `json:"currency"`
	Lines            []SaleLine      `json:"lines"`
	ShippingSchedule string          `json:"shipping_schedule"`
	LoyaltyPoints    decimal.Decimal `json:"loyalty_points"`
}

// SaleStatusChangedEvent is emitted on every sale status transition.
type SaleStatusChangedEvent struct {
	SaleID   uuid.UUID        `json:"sale_id"`
	TenantID uuid.UUID        `json:"tenant_id"`
	From     enums.SaleStatus `json:"from"`
	To       enums.SaleStatus `json:"to"`
}

// ProductRepricedEvent is emitted when tenant staff change a product price.
type ProductRepricedEvent struct {
	ProductID     uuid.UUID       `json:"product_id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	PreviousPrice decimal.Decimal `json:"previous_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
}

// TenantProvisionedEvent is emitted when a tenant is created against a plan.
type TenantProvisionedEvent struct {
	TenantID        uuid.UUID          `json:"tenant_id"`
	PlanID          uuid.UUID          `json:"plan_id"`
	Status          enums.TenantStatus `json:"status"`
	NextBillingDate time.Time          `json:"next_billing_date"`
}
