package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/angelmondragon/tiendas-backend/internal/authz"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type stubTenantLoader struct {
	tenants map[uuid.UUID]*models.Tenant
}

func (s stubTenantLoader) FindByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	tenant, ok := s.tenants[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return tenant, nil
}

func tenantRequest(tenantParam string, userID uuid.UUID, role enums.RoleName, tenantID *uuid.UUID) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/tenants/"+tenantParam+"/sales", nil)
	rc := chi.NewRouteContext()
	rc.URLParams.Add("tenantId", tenantParam)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rc)
	if userID != uuid.Nil {
		ctx = WithUserID(ctx, userID.String())
	}
	ctx = WithRole(ctx, string(role))
	if tenantID != nil {
		ctx = WithTenantID(ctx, tenantID.String())
	}
	return req.WithContext(ctx)
}

func TestTenantAccess(t *testing.T) {
	active := &models.Tenant{ID: uuid.New(), Status: enums.TenantStatusActive}
	lapsed := &models.Tenant{ID: uuid.New(), Status: enums.TenantStatusCancelled}
	loader := stubTenantLoader{tenants: map[uuid.UUID]*models.Tenant{active.ID: active, lapsed.ID: lapsed}}
	user := uuid.New()

	tests := []struct {
		name     string
		param    string
		role     enums.RoleName
		tenantID *uuid.UUID
		user     uuid.UUID
		access   authz.Access
		status   int
	}{
		{"vendor of the store", active.ID.String(), enums.RoleVendor, &active.ID, user, authz.AccessStaff, http.StatusOK},
		{"vendor of another store", active.ID.String(), enums.RoleVendor, &lapsed.ID, user, authz.AccessStaff, http.StatusForbidden},
		{"vendor on admin route", active.ID.String(), enums.RoleVendor, &active.ID, user, authz.AccessAdmin, http.StatusForbidden},
		{"admin of cancelled store", lapsed.ID.String(), enums.RoleAdmin, &lapsed.ID, user, authz.AccessStaff, http.StatusForbidden},
		{"customer shopping", active.ID.String(), enums.RoleCustomer, nil, user, authz.AccessStorefront, http.StatusOK},
		{"unknown store", uuid.NewString(), enums.RoleSuperAdmin, nil, user, authz.AccessStaff, http.StatusNotFound},
		{"malformed store id", "not-a-uuid", enums.RoleSuperAdmin, nil, user, authz.AccessStaff, http.StatusBadRequest},
		{"anonymous", active.ID.String(), enums.RoleCustomer, nil, uuid.Nil, authz.AccessStorefront, http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var scoped uuid.UUID
			handler := TenantAccess(loader, tc.access, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				scoped, _ = TenantScopeFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, tenantRequest(tc.param, tc.user, tc.role, tc.tenantID))
			assert.Equal(t, tc.status, resp.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, tc.param, scoped.String())
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(nil, enums.RoleAdmin, enums.RoleVendor)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req.WithContext(WithRole(req.Context(), string(enums.RoleVendor))))
	assert.Equal(t, http.StatusOK, resp.Code)

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req.WithContext(WithRole(req.Context(), string(enums.RoleCustomer))))
	assert.Equal(t, http.StatusForbidden, resp.Code)
}

func TestActorFromContext(t *testing.T) {
	ctx := context.Background()
	_, err := ActorFromContext(ctx)
	assert.Error(t, err)

	userID := uuid.New()
	tenantID := uuid.New()
	ctx = WithUserID(ctx, userID.String())
	ctx = WithRole(ctx, string(enums.RoleAdmin))
	ctx = WithTenantID(ctx, tenantID.String())

	actor, err := ActorFromContext(ctx)
	assert.NoError(t, err)
	assert.Equal(t, userID, actor.UserID)
	assert.Equal(t, enums.RoleAdmin, actor.Role)
	if assert.NotNil(t, actor.TenantID) {
		assert.Equal(t, tenantID, *actor.TenantID)
	}
}
