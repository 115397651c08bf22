// Package catalog holds the product operations with consistency rules:
// repricing and deactivation. Plain catalog CRUD lives outside this service.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/tiendas-backend/internal/audit"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxPrice is the exclusive upper bound of numeric(12,2).
var maxPrice = decimal.New(1, 10)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type Service interface {
	UpdatePrice(ctx context.Context, input UpdatePriceInput) (*ProductDTO, error)
	Deactivate(ctx context.Context, input DeactivateInput) error
	PriceHistory(ctx context.Context, tenantID, productID uuid.UUID) ([]PriceLogDTO, error)
}

type UpdatePriceInput struct {
	TenantID    uuid.UUID
	ProductID   uuid.UUID
	Price       decimal.Decimal
	ActorUserID uuid.UUID
	ActorRole   string
	IP          string
}

type DeactivateInput struct {
	TenantID    uuid.UUID
	ProductID   uuid.UUID
	ActorUserID uuid.UUID
	IP          string
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	audit  audit.Sink
	logg   *logger.Logger
}

func NewService(repo Repository, tx txRunner, outbox outboxPublisher, sink audit.Sink, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if sink == nil {
		return nil, fmt.Errorf("audit sink required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, audit: sink, logg: logg}, nil
}

// UpdatePrice locks the product so a concurrent settlement either sees the
// old price everywhere or the new one everywhere. Sales already made keep
// their historical price.
func (s *service) UpdatePrice(ctx context.Context, input UpdatePriceInput) (*ProductDTO, error) {
	if input.TenantID == uuid.Nil || input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and product id required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}

	var (
		product  *models.Product
		previous decimal.Decimal
		changed  bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		product, err = repo.LockProduct(ctx, input.TenantID, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		previous = product.Price
		if product.Price.Equal(input.Price) {
			return nil
		}

		var changedBy *uuid.UUID
		if input.ActorUserID != uuid.Nil {
			actor := input.ActorUserID
			changedBy = &actor
		}
		if err := repo.InsertPriceLog(ctx, &models.ProductPriceLog{
			ProductID:     product.ID,
			TenantID:      product.TenantID,
			PreviousPrice: product.Price,
			NewPrice:      input.Price,
			ChangedBy:     changedBy,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write price log")
		}
		if err := repo.UpdatePrice(ctx, product.ID, input.Price); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update price")
		}
		product.Price = input.Price
		changed = true

		var actor *outbox.ActorRef
		if changedBy != nil {
			tenantID := product.TenantID
			actor = &outbox.ActorRef{UserID: *changedBy, TenantID: &tenantID, Role: input.ActorRole}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventProductRepriced,
			AggregateID: product.ID,
			Actor:       actor,
			Data: payloads.ProductRepricedEvent{
				ProductID:     product.ID,
				TenantID:      product.TenantID,
				PreviousPrice: previous,
				NewPrice:      input.Price,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"tenant_id":  product.TenantID.String(),
			"previous":   previous.StringFixed(2),
			"price":      input.Price.StringFixed(2),
		})
		s.logg.Info(ctx, "product repriced")
		s.audit.Record(ctx, audit.Entry{
			UserID:   optionalID(input.ActorUserID),
			TenantID: &input.TenantID,
			Action:   audit.ActionProductRepriced,
			IP:       input.IP,
			Object:   "product:" + product.ID.String(),
			Extra: map[string]any{
				"previous_price": previous.StringFixed(2),
				"new_price":      input.Price.StringFixed(2),
			},
		})
	}
	return productFromModel(product), nil
}

// Deactivate hides the product from new orders. Rows referenced by sales are
// never deleted.
func (s *service) Deactivate(ctx context.Context, input DeactivateInput) error {
	if input.TenantID == uuid.Nil || input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "tenant id and product id required")
	}

	var changed bool
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.LockProduct(ctx, input.TenantID, input.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if !product.IsActive {
			return nil
		}
		if err := repo.Deactivate(ctx, product.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate product")
		}
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		s.audit.Record(ctx, audit.Entry{
			UserID:   optionalID(input.ActorUserID),
			TenantID: &input.TenantID,
			Action:   audit.ActionProductDeactivate,
			IP:       input.IP,
			Object:   "product:" + input.ProductID.String(),
		})
	}
	return nil
}

func (s *service) PriceHistory(ctx context.Context, tenantID, productID uuid.UUID) ([]PriceLogDTO, error) {
	if _, err := s.repo.FindProduct(ctx, tenantID, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	rows, err := s.repo.ListPriceLogs(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list price logs")
	}
	out := make([]PriceLogDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, PriceLogDTO{
			PreviousPrice: row.PreviousPrice,
			NewPrice:      row.NewPrice,
			ChangedBy:     row.ChangedBy,
			CreatedAt:     row.CreatedAt,
		})
	}
	return out, nil
}

func validatePrice(price decimal.Decimal) error {
	switch {
	case price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	case !price.Round(2).Equal(price):
		return pkgerrors.New(pkgerrors.CodeValidation, "price supports at most two decimals")
	case price.GreaterThanOrEqual(maxPrice):
		return pkgerrors.New(pkgerrors.CodeValidation, "price is too large")
	}
	return nil
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
