// Package sales exposes settled sales to tenant staff and drives their
// fulfilment lifecycle.
package sales

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
	"github.com/angelmondragon/tiendas-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service lists sales and applies status transitions.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	Get(ctx context.Context, tenantID, saleID uuid.UUID) (*SaleDetail, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*SaleDetail, error)
}

type ListParams struct {
	TenantID   uuid.UUID
	Status     string
	CustomerID *uuid.UUID
	Limit      int
	Cursor     string
}

type ListResult struct {
	Items  []SaleSummary `json:"items"`
	Cursor string        `json:"cursor"`
}

// UpdateStatusInput moves a sale to Status on behalf of a tenant staff member.
type UpdateStatusInput struct {
	TenantID    uuid.UUID
	SaleID      uuid.UUID
	Status      enums.SaleStatus
	ActorUserID uuid.UUID
	ActorRole   string
}

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[enums.SaleStatus][]enums.SaleStatus{
	enums.SaleStatusProcessed: {enums.SaleStatusShipped, enums.SaleStatusCancelled},
	enums.SaleStatusShipped:   {enums.SaleStatusDelivered, enums.SaleStatusCancelled},
}

// shipmentFollows maps a sale status to the shipment status it implies.
var shipmentFollows = map[enums.SaleStatus]enums.ShipmentStatus{
	enums.SaleStatusShipped:   enums.ShipmentStatusInTransit,
	enums.SaleStatusDelivered: enums.ShipmentStatusDelivered,
}

// shipmentAfter returns the shipment status implied by moving a sale from
// one status to another. A parcel already in transit when its sale is
// cancelled becomes an incident; one still being prepared is left alone.
func shipmentAfter(from, to enums.SaleStatus) (enums.ShipmentStatus, bool) {
	if to == enums.SaleStatusCancelled {
		return enums.ShipmentStatusIncident, from == enums.SaleStatusShipped
	}
	next, ok := shipmentFollows[to]
	return next, ok
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	audit  audit.Sink
	logg   *logger.Logger
}

// NewService builds the sales service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher, sink audit.Sink, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sales repository required")
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

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	query := listParams{
		TenantID:   params.TenantID,
		CustomerID: params.CustomerID,
		Limit:      pagination.LimitWithBuffer(params.Limit),
	}
	if params.Status != "" {
		status, err := enums.ParseSaleStatus(params.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status filter")
		}
		query.Status = &status
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}
	page, next := pagination.Trim(rows, params.Limit, func(sale models.Sale) pagination.Cursor {
		return pagination.Cursor{CreatedAt: sale.CreatedAt, ID: sale.ID}
	})
	items := make([]SaleSummary, 0, len(page))
	for _, sale := range page {
		items = append(items, summaryFromModel(sale))
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

func (s *service) Get(ctx context.Context, tenantID, saleID uuid.UUID) (*SaleDetail, error) {
	sale, err := s.repo.FindDetail(ctx, tenantID, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	return detailFromModel(sale), nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*SaleDetail, error) {
	if input.TenantID == uuid.Nil || input.SaleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id and sale id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid sale status")
	}
	if input.ActorUserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	var (
		previous enums.SaleStatus
		changed  bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		sale, err := repo.LockSale(ctx, input.SaleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
		}
		if sale.TenantID != input.TenantID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		previous = sale.Status
		if sale.Status == input.Status {
			return nil
		}
		if !allowed(sale.Status, input.Status) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "sale status transition not allowed").
				WithDetails(map[string]any{"from": sale.Status, "to": input.Status})
		}

		if err := repo.UpdateStatus(ctx, sale.ID, input.Status); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update sale status")
		}
		if next, ok := shipmentAfter(sale.Status, input.Status); ok {
			if err := repo.UpdateShipmentStatus(ctx, sale.ID, next); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment status")
			}
		}
		if input.Status == enums.SaleStatusCancelled && sale.SalespersonID != nil {
			if err := repo.DecrementSalesCount(ctx, *sale.SalespersonID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement salesperson sales")
			}
		}

		tenantID := sale.TenantID
		changed = true
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventSaleStatusChanged,
			AggregateID: sale.ID,
			Actor:       &outbox.ActorRef{UserID: input.ActorUserID, TenantID: &tenantID, Role: input.ActorRole},
			Data: payloads.SaleStatusChangedEvent{
				SaleID:   sale.ID,
				TenantID: sale.TenantID,
				From:     sale.Status,
				To:       input.Status,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if changed {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"sale_id":   input.SaleID.String(),
			"tenant_id": input.TenantID.String(),
			"from":      string(previous),
			"to":        string(input.Status),
		})
		s.logg.Info(ctx, "sale status changed")

		actor, tenantID := input.ActorUserID, input.TenantID
		s.audit.Record(ctx, audit.Entry{
			UserID:   &actor,
			TenantID: &tenantID,
			Action:   audit.ActionSaleStatusChanged,
			Object:   "sale:" + input.SaleID.String(),
			Extra:    map[string]any{"from": previous, "to": input.Status},
		})
	}
	return s.Get(ctx, input.TenantID, input.SaleID)
}

func allowed(from, to enums.SaleStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
