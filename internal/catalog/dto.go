package catalog

import (
	"time"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProductDTO struct {
	ID        uuid.UUID       `json:"id"`
	TenantID  uuid.UUID       `json:"tenant_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	IsActive  bool            `json:"is_active"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type PriceLogDTO struct {
	PreviousPrice decimal.Decimal `json:"previous_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	ChangedBy     *uuid.UUID      `json:"changed_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

func productFromModel(p *models.Product) *ProductDTO {
	return &ProductDTO{
		ID:        p.ID,
		TenantID:  p.TenantID,
		Name:      p.Name,
		Price:     p.Price,
		Stock:     p.Stock,
		IsActive:  p.IsActive,
		UpdatedAt: p.UpdatedAt,
	}
}
