package controllers

import (
	"net/http"

	"github.com/angelmondragon/tiendas-backend/api/responses"
	"github.com/angelmondragon/tiendas-backend/internal/customers"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
)

// MeCustomer returns the loyalty profile of the calling customer.
func MeCustomer(svc customers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "customer service unavailable"))
			return
		}

		actor, err := requestActor(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		profile, err := svc.Profile(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}
