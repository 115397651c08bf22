package checkout

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/tiendas-backend/internal/audit"
	"github.com/angelmondragon/tiendas-backend/internal/customers"
	"github.com/angelmondragon/tiendas-backend/internal/inventory"
	"github.com/angelmondragon/tiendas-backend/internal/pricing"
	"github.com/angelmondragon/tiendas-backend/pkg/db"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/metrics"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tiendas-backend/pkg/stripe"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const paymentMethodStripe = "stripe"

// Unique index guarding settlement; sqlite reports the column instead.
const (
	paymentReferenceConstraint = "ux_payments_provider_reference"
	paymentReferenceColumn     = "payments.provider_reference"
)

func (s *service) Confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	if in.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	return s.observe(ctx, in)
}

func (s *service) SettleSession(ctx context.Context, sessionID string) (*ConfirmResult, error) {
	return s.observe(ctx, ConfirmInput{SessionID: sessionID})
}

func (s *service) observe(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	start := time.Now()
	result, err := s.confirm(ctx, in)
	s.metrics.ObserveConfirmation(outcome(result, err), time.Since(start))
	return result, err
}

func outcome(result *ConfirmResult, err error) string {
	switch {
	case err == nil && result != nil && result.Duplicate:
		return metrics.OutcomeDuplicate
	case err == nil:
		return metrics.OutcomeSettled
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock):
		return metrics.OutcomeInsufficientStock
	case pkgerrors.HasCode(err, pkgerrors.CodeTotalMismatch):
		return metrics.OutcomeTotalMismatch
	case pkgerrors.HasCode(err, pkgerrors.CodePaymentNotConfirmed):
		return metrics.OutcomePaymentNotConfirmed
	default:
		return metrics.OutcomeError
	}
}

func (s *service) confirm(ctx context.Context, in ConfirmInput) (*ConfirmResult, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	ctx = s.logg.WithCheckoutSession(ctx, sessionID)

	// Fast path for repeated polling; the locked re-check below is authoritative.
	if result, err := s.settledResult(ctx, s.repo, sessionID, in.TenantID); result != nil || err != nil {
		return result, err
	}

	session, err := s.retrieveConfirmed(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	meta, err := decodeMetadata(session.Metadata)
	if err != nil {
		return nil, err
	}
	if in.TenantID != uuid.Nil && meta.TenantID != in.TenantID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session belongs to another store")
	}
	ctx = s.logg.WithTenantID(ctx, meta.TenantID.String())

	if in.UserID != nil {
		customer, _, err := s.customers.EnsureForUser(ctx, *in.UserID)
		if err != nil {
			return nil, err
		}
		if customer.ID != meta.CustomerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment session belongs to another customer")
		}
	}
	if len(in.Items) > 0 {
		if err := sameItems(in.Items, meta.Items); err != nil {
			return nil, err
		}
	}

	address := meta.DeliveryAddress
	if address == "" {
		address = strings.TrimSpace(in.DeliveryAddress)
	}
	if address == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}

	schedule, err := pricing.Lookup(meta.ShippingSchedule)
	if err != nil {
		return nil, err
	}

	currency := strings.ToLower(session.Currency)
	if currency == "" {
		currency = strings.ToLower(s.cfg.Currency)
	}

	order := settlement{
		userID:   in.UserID,
		meta:     meta,
		session:  session,
		schedule: schedule,
		address:  address,
		currency: currency,
	}

	var result *ConfirmResult
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var terr error
		result, terr = s.settle(ctx, tx, order)
		return terr
	})
	if err != nil {
		if db.IsUniqueViolation(err, paymentReferenceConstraint) || db.IsUniqueViolation(err, paymentReferenceColumn) {
			if dup, ferr := s.settledResult(ctx, s.repo, sessionID, in.TenantID); dup != nil || ferr != nil {
				return dup, ferr
			}
		}
		if db.IsTransient(err) {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settlement contended, retry")
		} else if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "settle checkout")
		}
		return nil, err
	}

	if result.Duplicate {
		s.logg.Info(ctx, "checkout session already settled")
		return result, nil
	}

	ctx = s.logg.WithField(ctx, "sale_id", result.SaleID.String())
	s.logg.Info(ctx, "checkout settled")

	tenantID := meta.TenantID
	s.audit.Record(ctx, audit.Entry{
		UserID:   in.UserID,
		TenantID: &tenantID,
		Action:   audit.ActionSaleSettled,
		Object:   "sale:" + result.SaleID.String(),
		Extra: map[string]any{
			"session_id": sessionID,
			"total":      result.Total.StringFixed(2),
			"customer":   meta.CustomerID.String(),
		},
	})
	return result, nil
}

// settledResult returns the earlier sale of a payment reference, or nil.
func (s *service) settledResult(ctx context.Context, repo Repository, sessionID string, tenantID uuid.UUID) (*ConfirmResult, error) {
	sale, err := repo.FindSettledSale(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup settled sale")
	}
	if sale == nil {
		return nil, nil
	}
	if tenantID != uuid.Nil && sale.TenantID != tenantID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment session belongs to another store")
	}
	return &ConfirmResult{SaleID: sale.ID, Total: sale.Total, Duplicate: true}, nil
}

// retrieveConfirmed fetches the session and retries once after the configured
// delay when it is not complete yet.
func (s *service) retrieveConfirmed(ctx context.Context, sessionID string) (*stripe.Session, error) {
	var session *stripe.Session
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.cfg.ConfirmRetryDelay); err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodePaymentNotConfirmed, err, "payment confirmation interrupted")
			}
		}
		var err error
		session, err = s.gateway.RetrieveSession(ctx, sessionID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment session")
		}
		if session.Complete() {
			return session, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodePaymentNotConfirmed, "payment has not been completed").
		WithDetails(map[string]any{"session_id": sessionID, "status": session.Status})
}

type settlement struct {
	userID   *uuid.UUID
	meta     orderMetadata
	session  *stripe.Session
	schedule pricing.Schedule
	address  string
	currency string
}

// settle runs inside the transaction. Product rows are locked before the
// duplicate check so two confirmations of the same session serialize and the
// second observes the first one's payment.
func (s *service) settle(ctx context.Context, tx *gorm.DB, order settlement) (*ConfirmResult, error) {
	repo := s.repo.WithTx(tx)
	ledger := s.ledger.WithTx(tx)
	meta := order.meta
	sessionID := order.session.ID

	if err := inventory.Lock(ctx, tx, meta.TenantID, meta.Items); err != nil {
		return nil, err
	}
	if dup, err := s.settledResult(ctx, repo, sessionID, meta.TenantID); dup != nil || err != nil {
		return dup, err
	}

	reservation, err := inventory.Prepare(ctx, tx, meta.TenantID, meta.Items)
	if err != nil {
		return nil, err
	}
	quote := order.schedule.Quote(reservation.Subtotal)

	expected := pricing.ToCents(quote.Total)
	if expected != order.session.AmountTotal {
		mismatch := pkgerrors.New(pkgerrors.CodeTotalMismatch, "charged amount does not match order total").
			WithDetails(map[string]any{
				"expected_cents": expected,
				"charged_cents":  order.session.AmountTotal,
			})
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{
			"expected_cents":    expected,
			"charged_cents":     order.session.AmountTotal,
			"shipping_schedule": quote.Schedule,
		}), "checkout total mismatch", mismatch)
		return nil, mismatch
	}

	cart := &models.Cart{
		TenantID:   meta.TenantID,
		CustomerID: meta.CustomerID,
		Total:      quote.Total,
		Items:      make([]models.CartItem, 0, len(reservation.Lines)),
	}
	saleItems := make([]models.SaleItem, 0, len(reservation.Lines))
	eventLines := make([]payloads.SaleLine, 0, len(reservation.Lines))
	for _, line := range reservation.Lines {
		cart.Items = append(cart.Items, models.CartItem{
			ProductID:           line.ProductID,
			Quantity:            line.Quantity,
			UnitPriceAtPurchase: line.UnitPrice,
		})
		saleItems = append(saleItems, models.SaleItem{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			HistoricalPrice: line.UnitPrice,
		})
		eventLines = append(eventLines, payloads.SaleLine{
			ProductID:       line.ProductID,
			Quantity:        line.Quantity,
			HistoricalPrice: line.UnitPrice,
		})
	}
	if err := repo.CreateCart(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create cart")
	}

	sale := &models.Sale{
		TenantID:      meta.TenantID,
		CustomerID:    meta.CustomerID,
		SalespersonID: meta.SalespersonID,
		CartID:        cart.ID,
		Status:        enums.SaleStatusProcessed,
		Subtotal:      quote.Subtotal,
		ShippingCost:  quote.Shipping,
		Total:         quote.Total,
		Items:         saleItems,
	}
	if err := repo.CreateSale(ctx, sale); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create sale")
	}

	payment := &models.Payment{
		SaleID:            sale.ID,
		TenantID:          meta.TenantID,
		Amount:            quote.Total,
		Currency:          order.currency,
		Method:            paymentMethodStripe,
		Status:            enums.PaymentStatusCompleted,
		ProviderReference: sessionID,
	}
	if order.session.PaymentIntentID != "" {
		intent := order.session.PaymentIntentID
		payment.PaymentIntentID = &intent
	}
	if err := repo.CreatePayment(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create payment")
	}

	shipment := &models.Shipment{
		SaleID:          sale.ID,
		TenantID:        meta.TenantID,
		DeliveryAddress: order.address,
		Status:          enums.ShipmentStatusPreparing,
	}
	if err := repo.CreateShipment(ctx, shipment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create shipment")
	}

	if err := reservation.Apply(ctx, tx); err != nil {
		return nil, err
	}

	if err := ledger.LinkTenant(ctx, meta.TenantID, meta.CustomerID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "link customer to store")
	}
	points := customers.PointsFor(quote.Total)
	if err := ledger.AddPoints(ctx, meta.CustomerID, points); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "accrue loyalty points")
	}

	if meta.SalespersonID != nil {
		if err := repo.IncrementSalesCount(ctx, *meta.SalespersonID, meta.TenantID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "salesperson not found for this store")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "increment salesperson sales")
		}
	}

	var actor *outbox.ActorRef
	if order.userID != nil {
		tenantID := meta.TenantID
		actor = &outbox.ActorRef{UserID: *order.userID, TenantID: &tenantID, Role: string(enums.RoleCustomer)}
	}
	event := outbox.DomainEvent{
		EventType:   enums.EventSaleSettled,
		AggregateID: sale.ID,
		Actor:       actor,
		Data: payloads.SaleSettledEvent{
			SaleID:           sale.ID,
			TenantID:         meta.TenantID,
			CustomerID:       meta.CustomerID,
			SalespersonID:    meta.SalespersonID,
			PaymentReference: sessionID,
			Subtotal:         quote.Subtotal,
			Shipping:         quote.Shipping,
			Total:            quote.Total,
			Currency:         order.currency,
			Lines:            eventLines,
			ShippingSchedule: quote.Schedule,
			LoyaltyPoints:    points,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit sale settled")
	}

	return &ConfirmResult{SaleID: sale.ID, Total: sale.Total}, nil
}

// sameItems reports a validation error when the requested order differs from
// the one attached to the paid session.
func sameItems(requested, paid []inventory.Item) error {
	a, err := inventory.Normalize(requested)
	if err != nil {
		return err
	}
	b, err := inventory.Normalize(paid)
	if err != nil {
		return err
	}
	mismatch := pkgerrors.New(pkgerrors.CodeValidation, "items do not match the paid session")
	if len(a) != len(b) {
		return mismatch
	}
	for i := range a {
		if a[i] != b[i] {
			return mismatch
		}
	}
	return nil
}
