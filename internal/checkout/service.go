// Package checkout turns a storefront cart into a paid, stock-consistent sale.
//
// CreateSession quotes the order and opens a hosted payment session. Confirm
// (and SettleSession for provider webhooks) re-validates the paid session
// against the catalog under row locks and materializes Cart, Sale, SaleItems,
// Payment and Shipment in one transaction.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/tiendas-backend/internal/audit"
	"github.com/angelmondragon/tiendas-backend/internal/customers"
	"github.com/angelmondragon/tiendas-backend/internal/inventory"
	"github.com/angelmondragon/tiendas-backend/internal/pricing"
	"github.com/angelmondragon/tiendas-backend/pkg/config"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/angelmondragon/tiendas-backend/pkg/metrics"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox"
	"github.com/angelmondragon/tiendas-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// maxOrderLines bounds the distinct products of one order so the item list
// fits in the session metadata.
const maxOrderLines = 100

const shippingLineName = "Shipping"

type database interface {
	DB() *gorm.DB
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentGateway is the hosted checkout provider.
type PaymentGateway interface {
	CreateSession(ctx context.Context, in stripe.CreateSessionInput) (*stripe.Session, error)
	RetrieveSession(ctx context.Context, id string) (*stripe.Session, error)
}

type customerResolver interface {
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*models.Customer, *models.User, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service is the checkout and settlement engine.
type Service interface {
	CreateSession(ctx context.Context, in CreateSessionInput) (*SessionResult, error)
	Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error)
	// SettleSession confirms a session from a verified provider event; the
	// tenant and customer come from the session metadata.
	SettleSession(ctx context.Context, sessionID string) (*ConfirmResult, error)
}

// CreateSessionInput is the quote request of a storefront customer.
type CreateSessionInput struct {
	TenantID        uuid.UUID
	UserID          uuid.UUID
	Items           []inventory.Item
	DeliveryAddress string
	SalespersonID   *uuid.UUID
	IdempotencyKey  string
}

// SessionResult is returned to the storefront to redirect to the provider.
type SessionResult struct {
	SessionID string          `json:"session_id"`
	URL       string          `json:"url"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
}

// ConfirmInput identifies a paid session. Items and DeliveryAddress are
// optional: when Items is set it must match what was paid for.
type ConfirmInput struct {
	TenantID        uuid.UUID
	SessionID       string
	Items           []inventory.Item
	DeliveryAddress string
	UserID          *uuid.UUID
}

// ConfirmResult carries the settled sale. Duplicate is set when the session
// had already been settled and the earlier sale is returned.
type ConfirmResult struct {
	SaleID    uuid.UUID       `json:"sale_id"`
	Total     decimal.Decimal `json:"total"`
	Duplicate bool            `json:"duplicate"`
}

// ServiceParams bundles the checkout dependencies.
type ServiceParams struct {
	DB        database
	Repo      Repository
	Customers customerResolver
	Ledger    customers.Repository
	Gateway   PaymentGateway
	Outbox    outboxEmitter
	Audit     audit.Sink
	Metrics   *metrics.CheckoutMetrics
	Logger    *logger.Logger
	Config    config.CheckoutConfig
}

type service struct {
	db        database
	repo      Repository
	customers customerResolver
	ledger    customers.Repository
	gateway   PaymentGateway
	outbox    outboxEmitter
	audit     audit.Sink
	metrics   *metrics.CheckoutMetrics
	logg      *logger.Logger
	cfg       config.CheckoutConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewService validates the dependencies and builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("database required")
	case params.Repo == nil:
		return nil, fmt.Errorf("checkout repository required")
	case params.Customers == nil:
		return nil, fmt.Errorf("customer resolver required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("customer repository required")
	case params.Gateway == nil:
		return nil, fmt.Errorf("payment gateway required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit sink required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	if _, err := pricing.Lookup(params.Config.ShippingSchedule); err != nil {
		return nil, fmt.Errorf("shipping schedule: %w", err)
	}
	if strings.TrimSpace(params.Config.FrontendURL) == "" {
		return nil, fmt.Errorf("frontend url required")
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		customers: params.Customers,
		ledger:    params.Ledger,
		gateway:   params.Gateway,
		outbox:    params.Outbox,
		audit:     params.Audit,
		metrics:   params.Metrics,
		logg:      params.Logger,
		cfg:       params.Config,
		sleep:     sleepCtx,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, in CreateSessionInput) (result *SessionResult, err error) {
	defer func() { s.metrics.IncSession(err == nil) }()

	if in.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	address := strings.TrimSpace(in.DeliveryAddress)
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	items, err := inventory.Normalize(in.Items)
	if err != nil {
		return nil, err
	}
	if len(items) > maxOrderLines {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("orders are limited to %d products", maxOrderLines))
	}

	tenant, err := s.repo.FindTenant(ctx, in.TenantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	if !tenant.Status.Operational() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "store is not accepting orders").
			WithDetails(map[string]any{"status": tenant.Status})
	}

	customer, user, err := s.customers.EnsureForUser(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	if in.SalespersonID != nil {
		if _, err := s.repo.FindSalesperson(ctx, *in.SalespersonID, tenant.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "salesperson not found for this store")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load salesperson")
		}
	}

	reservation, err := inventory.Check(ctx, s.db.DB(), tenant.ID, items)
	if err != nil {
		return nil, err
	}
	schedule, err := pricing.Lookup(s.cfg.ShippingSchedule)
	if err != nil {
		return nil, err
	}
	quote := schedule.Quote(reservation.Subtotal)

	lines := make([]stripe.LineItem, 0, len(reservation.Lines)+1)
	for _, line := range reservation.Lines {
		lines = append(lines, stripe.LineItem{
			Name:       line.Name,
			UnitAmount: pricing.ToCents(line.UnitPrice),
			Quantity:   int64(line.Quantity),
		})
	}
	if quote.Shipping.IsPositive() {
		lines = append(lines, stripe.LineItem{
			Name:       shippingLineName,
			UnitAmount: pricing.ToCents(quote.Shipping),
			Quantity:   1,
		})
	}

	meta, err := orderMetadata{
		CustomerID:       customer.ID,
		TenantID:         tenant.ID,
		DeliveryAddress:  address,
		Items:            items,
		ShippingSchedule: quote.Schedule,
		SalespersonID:    in.SalespersonID,
	}.encode()
	if err != nil {
		return nil, err
	}

	successURL, cancelURL, err := s.storefrontURLs(tenant.Slug)
	if err != nil {
		return nil, err
	}

	session, err := s.gateway.CreateSession(ctx, stripe.CreateSessionInput{
		Lines:          lines,
		Currency:       s.cfg.Currency,
		SuccessURL:     successURL,
		CancelURL:      cancelURL,
		CustomerEmail:  user.Email,
		Metadata:       meta,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment session")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"session_id": session.ID,
		"tenant_id":  tenant.ID.String(),
		"total":      quote.Total.StringFixed(2),
	})
	s.logg.Info(ctx, "checkout session created")

	return &SessionResult{
		SessionID: session.ID,
		URL:       session.URL,
		Subtotal:  quote.Subtotal,
		Shipping:  quote.Shipping,
		Total:     quote.Total,
		Currency:  s.cfg.Currency,
	}, nil
}

func (s *service) storefrontURLs(slug string) (string, string, error) {
	base, err := url.Parse(strings.TrimRight(s.cfg.FrontendURL, "/"))
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "invalid frontend url")
	}
	storePath := base.JoinPath("store", slug)
	// The placeholder is substituted by the provider and must not be escaped.
	success := storePath.JoinPath("payment-success").String() + "?session_id={CHECKOUT_SESSION_ID}"
	cancel := storePath.JoinPath("checkout").String()
	return success, cancel, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
