// Package stripewebhook settles checkout sessions from Stripe events.
package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/angelmondragon/tiendas-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	pkgstripe "github.com/angelmondragon/tiendas-backend/pkg/stripe"
	"github.com/stripe/stripe-go/v78"
)

type settler interface {
	SettleSession(ctx context.Context, sessionID string) (*checkout.ConfirmResult, error)
}

type ServiceParams struct {
	Checkout settler
	Logger   *logger.Logger
}

type Service struct {
	checkout settler
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Checkout == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "checkout service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{checkout: params.Checkout, logg: params.Logger}, nil
}

// HandleEvent settles completed checkout sessions and ignores every other
// event type. Only retryable failures are returned; a session that can never
// settle is logged and acknowledged so the provider stops redelivering it.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if string(event.Type) != pkgstripe.EventCheckoutSessionCompleted {
		return nil
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	if strings.TrimSpace(session.ID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   event.ID,
		"session_id": session.ID,
	})
	result, err := s.checkout.SettleSession(ctx, session.ID)
	if err != nil {
		typed := pkgerrors.As(err)
		if typed != nil && !pkgerrors.MetadataFor(typed.Code()).Retryable {
			s.logg.Error(ctx, "stripe checkout session cannot settle", err)
			return nil
		}
		return err
	}

	ctx = s.logg.WithField(ctx, "sale_id", result.SaleID.String())
	if result.Duplicate {
		s.logg.Info(ctx, "stripe checkout session already settled")
		return nil
	}
	s.logg.Info(ctx, "stripe checkout session settled")
	return nil
}
