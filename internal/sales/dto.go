package sales

import (
	"time"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SaleSummary is one row of the sales list.
type SaleSummary struct {
	ID            uuid.UUID        `json:"id"`
	CustomerID    uuid.UUID        `json:"customer_id"`
	SalespersonID *uuid.UUID       `json:"salesperson_id,omitempty"`
	Status        enums.SaleStatus `json:"status"`
	Subtotal      decimal.Decimal  `json:"subtotal"`
	ShippingCost  decimal.Decimal  `json:"shipping_cost"`
	Total         decimal.Decimal  `json:"total"`
	CreatedAt     time.Time        `json:"created_at"`
}

type SaleItemDTO struct {
	ProductID       uuid.UUID       `json:"product_id"`
	Quantity        int             `json:"quantity"`
	HistoricalPrice decimal.Decimal `json:"historical_price"`
}

type PaymentDTO struct {
	ID                uuid.UUID           `json:"id"`
	Amount            decimal.Decimal     `json:"amount"`
	Currency          string              `json:"currency"`
	Method            string              `json:"method"`
	Status            enums.PaymentStatus `json:"status"`
	ProviderReference string              `json:"provider_reference"`
	CreatedAt         time.Time           `json:"created_at"`
}

type ShipmentDTO struct {
	DeliveryAddress string               `json:"delivery_address"`
	Status          enums.ShipmentStatus `json:"status"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// SaleDetail is a sale with its lines, payments and shipment.
type SaleDetail struct {
	SaleSummary
	Items    []SaleItemDTO `json:"items"`
	Payments []PaymentDTO  `json:"payments"`
	Shipment *ShipmentDTO  `json:"shipment,omitempty"`
}

func summaryFromModel(s models.Sale) SaleSummary {
	return SaleSummary{
		ID:            s.ID,
		CustomerID:    s.CustomerID,
		SalespersonID: s.SalespersonID,
		Status:        s.Status,
		Subtotal:      s.Subtotal,
		ShippingCost:  s.ShippingCost,
		Total:         s.Total,
		CreatedAt:     s.CreatedAt,
	}
}

func detailFromModel(s *models.Sale) *SaleDetail {
	out := &SaleDetail{
		SaleSummary: summaryFromModel(*s),
		Items:       make([]SaleItemDTO, 0, len(s.Items)),
		Payments:    make([]PaymentDTO, 0, len(s.Payments)),
	}
	for _, item := range s.Items {
		out.Items = append(out.Items, SaleItemDTO{
			ProductID:       item.ProductID,
			Quantity:        item.Quantity,
			HistoricalPrice: item.HistoricalPrice,
		})
	}
	for _, p := range s.Payments {
		out.Payments = append(out.Payments, PaymentDTO{
			ID:                p.ID,
			Amount:            p.Amount,
			Currency:          p.Currency,
			Method:            p.Method,
			Status:            p.Status,
			ProviderReference: p.ProviderReference,
			CreatedAt:         p.CreatedAt,
		})
	}
	if s.Shipment != nil {
		out.Shipment = &ShipmentDTO{
			DeliveryAddress: s.Shipment.DeliveryAddress,
			Status:          s.Shipment.Status,
			UpdatedAt:       s.Shipment.UpdatedAt,
		}
	}
	return out
}
