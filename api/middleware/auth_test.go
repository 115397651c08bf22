package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/tiendas-backend/pkg/auth"
	"github.com/angelmondragon/tiendas-backend/pkg/auth/session"
	"github.com/angelmondragon/tiendas-backend/pkg/config"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	"github.com/google/uuid"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func TestAuthRejections(t *testing.T) {
	tenantID := uuid.New()
	adminToken, _ := mintTestToken(t, testJWT, time.Now(), enums.RoleAdmin, &tenantID)
	foreignToken, _ := mintTestToken(t, config.JWTConfig{Secret: "secret", Issuer: "elsewhere", ExpirationMinutes: 60}, time.Now(), enums.RoleAdmin, &tenantID)
	expiredToken, _ := mintTestToken(t, testJWT, time.Now().Add(-2*time.Hour), enums.RoleAdmin, &tenantID)

	cases := []struct {
		name     string
		header   string
		verifier stubSessionVerifier
		want     int
	}{
		{name: "missing header", verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer invalid", verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "other issuer", header: "Bearer " + foreignToken, verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expiredToken, verifier: stubSessionVerifier{ok: true}, want: http.StatusUnauthorized},
		{name: "revoked session", header: "Bearer " + adminToken, verifier: stubSessionVerifier{ok: false}, want: http.StatusUnauthorized},
		{name: "session store down", header: "Bearer " + adminToken, verifier: stubSessionVerifier{err: errors.New("redis down")}, want: http.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			Auth(testJWT, tc.verifier, nil)(okHandler()).ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Fatalf("expected %d got %d", tc.want, rec.Code)
			}
		})
	}
}

type authContext struct {
	user    string
	role    string
	tenant  string
	session string
}

func serveAuthenticated(t *testing.T, header string) authContext {
	t.Helper()
	var got authContext
	handler := Auth(testJWT, stubSessionVerifier{ok: true}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = authContext{
			user:    UserIDFromContext(r.Context()),
			role:    RoleFromContext(r.Context()),
			tenant:  TenantIDFromContext(r.Context()),
			session: SessionIDFromContext(r.Context()),
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", header)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	return got
}

func TestAuthPopulatesStaffContext(t *testing.T) {
	tenantID := uuid.New()
	token, jti := mintTestToken(t, testJWT, time.Now(), enums.RoleVendor, &tenantID)

	got := serveAuthenticated(t, "Bearer "+token)
	if got.user == "" {
		t.Fatal("expected user id in context")
	}
	if got.role != string(enums.RoleVendor) {
		t.Fatalf("expected role vendor got %s", got.role)
	}
	if got.tenant != tenantID.String() {
		t.Fatalf("expected tenant %s got %s", tenantID, got.tenant)
	}
	if got.session != jti {
		t.Fatalf("expected session %s got %s", jti, got.session)
	}
}

func TestAuthCustomerTokenHasNoTenant(t *testing.T) {
	token, _ := mintTestToken(t, testJWT, time.Now(), enums.RoleCustomer, nil)

	// scheme is case-insensitive
	got := serveAuthenticated(t, "bearer "+token)
	if got.tenant != "" {
		t.Fatalf("expected empty tenant got %s", got.tenant)
	}
	if got.role != string(enums.RoleCustomer) {
		t.Fatalf("expected role customer got %s", got.role)
	}
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"":                "",
		"Bearer abc":      "abc",
		"BEARER  abc ":    "abc",
		"abc":             "abc",
		"  Bearer\tabc  ": "Bearer\tabc",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		if got := BearerToken(req); got != want {
			t.Fatalf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func mintTestToken(t *testing.T, cfg config.JWTConfig, now time.Time, role enums.RoleName, tenantID *uuid.UUID) (string, string) {
	t.Helper()
	accessID := session.NewAccessID()
	token, err := auth.MintAccessToken(cfg, now, auth.AccessTokenPayload{
		UserID:   uuid.New(),
		TenantID: tenantID,
		Role:     role,
		JTI:      accessID,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token, accessID
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type stubSessionVerifier struct {
	ok  bool
	err error
}

func (s stubSessionVerifier) HasSession(ctx context.Context, accessID string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return s.ok, nil
}
