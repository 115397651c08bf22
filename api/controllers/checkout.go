package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tiendas-backend/api/responses"
	"github.com/angelmondragon/tiendas-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/tiendas-backend/internal/checkout"
	"github.com/angelmondragon/tiendas-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
)

const maxDeliveryAddressLen = 500

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity"`
}

type createSessionRequest struct {
	Items           []checkoutItemRequest `json:"items" validate:"required,dive"`
	DeliveryAddress string                `json:"delivery_address" validate:"required,max=500"`
	SalespersonID   *uuid.UUID            `json:"salesperson_id,omitempty"`
}

type confirmRequest struct {
	SessionID       string                `json:"session_id" validate:"required"`
	Items           []checkoutItemRequest `json:"items,omitempty" validate:"omitempty,dive"`
	DeliveryAddress string                `json:"delivery_address,omitempty"`
}

type confirmResponse struct {
	Success   bool            `json:"success"`
	SaleID    uuid.UUID       `json:"sale_id"`
	Total     decimal.Decimal `json:"total"`
	Duplicate bool            `json:"duplicate"`
}

// CheckoutCreateSession quotes the cart server side and opens a payment session.
func CheckoutCreateSession(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		tenantID, err := tenantScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createSessionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSession(r.Context(), checkoutsvc.CreateSessionInput{
			TenantID:        tenantID,
			UserID:          actor.UserID,
			Items:           toInventoryItems(payload.Items),
			DeliveryAddress: validators.SanitizeText(payload.DeliveryAddress, maxDeliveryAddressLen),
			SalespersonID:   payload.SalespersonID,
			IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutConfirm settles a paid session into a sale.
func CheckoutConfirm(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		tenantID, err := tenantScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload confirmRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := actor.UserID
		result, err := svc.Confirm(r.Context(), checkoutsvc.ConfirmInput{
			TenantID:        tenantID,
			SessionID:       strings.TrimSpace(payload.SessionID),
			Items:           toInventoryItems(payload.Items),
			DeliveryAddress: validators.SanitizeText(payload.DeliveryAddress, maxDeliveryAddressLen),
			UserID:          &userID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, confirmResponse{
			Success:   true,
			SaleID:    result.SaleID,
			Total:     result.Total,
			Duplicate: result.Duplicate,
		})
	}
}

func toInventoryItems(items []checkoutItemRequest) []inventory.Item {
	if len(items) == 0 {
		return nil
	}
	out := make([]inventory.Item, len(items))
	for i, item := range items {
		out[i] = inventory.Item{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}
