package auth

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/tiendas-backend/internal/audit"
	pkgAuth "github.com/angelmondragon/tiendas-backend/pkg/auth"
	"github.com/angelmondragon/tiendas-backend/pkg/auth/session"
	"github.com/angelmondragon/tiendas-backend/pkg/config"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var testJWT = config.JWTConfig{
	Secret:            "secret",
	Issuer:            "tiendas",
	ExpirationMinutes: 30,
}

func TestLoginMintsTenantScopedToken(t *testing.T) {
	tenantID := uuid.New()
	user := testUser(t, "vendedor@example.com", "vendor-secret", enums.RoleVendor, &tenantID)
	svc, sessions, sink := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: " Vendedor@Example.com ", Password: "vendor-secret", IP: "10.0.0.7"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}
	if claims.Role != enums.RoleVendor {
		t.Fatalf("expected vendor role claim, got %s", claims.Role)
	}
	if claims.TenantID == nil || *claims.TenantID != tenantID {
		t.Fatalf("expected tenant claim %s, got %v", tenantID, claims.TenantID)
	}
	if sessions.tokens[claims.ID] != resp.RefreshToken {
		t.Fatalf("refresh token not stored under jti")
	}
	if resp.User.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if len(sink.entries) != 1 || sink.entries[0].Action != audit.ActionUserLogin || sink.entries[0].IP != "10.0.0.7" {
		t.Fatalf("expected one login audit entry, got %+v", sink.entries)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	user := testUser(t, "cliente@example.com", "right-password", enums.RoleCustomer, nil)
	svc, _, sink := buildTestService(t, user)

	cases := []LoginRequest{
		{Email: "cliente@example.com", Password: "wrong-password"},
		{Email: "nadie@example.com", Password: "right-password"},
		{Email: "   ", Password: "right-password"},
	}
	for _, req := range cases {
		_, err := svc.Login(context.Background(), req)
		if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
			t.Fatalf("expected unauthorized for %q, got %v", req.Email, err)
		}
	}

	user.IsActive = false
	_, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "right-password"})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for inactive user, got %v", err)
	}
	if len(sink.entries) != 0 {
		t.Fatalf("failed logins must not be audited as logins")
	}
}

func TestLoginUpgradesStalePasswordHash(t *testing.T) {
	user := testUser(t, "cliente@example.com", "right-password", enums.RoleCustomer, nil)
	original := user.PasswordHash
	repo := &stubUserRepo{user: user}
	stronger := fastPasswords
	stronger.ArgonTime = 2

	svc, err := NewService(ServiceParams{
		UserRepo:       repo,
		SessionManager: &stubSessionManager{tokens: map[string]string{}},
		Audit:          &stubSink{},
		JWTConfig:      testJWT,
		PasswordConfig: stronger,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "right-password"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if repo.rehashed != 1 || user.PasswordHash == original {
		t.Fatalf("expected hash to be upgraded once, got %d upgrades", repo.rehashed)
	}
	if security.NeedsRehash(user.PasswordHash, stronger) {
		t.Fatalf("upgraded hash still uses stale parameters")
	}

	if _, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "right-password"}); err != nil {
		t.Fatalf("login with upgraded hash: %v", err)
	}
	if repo.rehashed != 1 {
		t.Fatalf("expected no further upgrades, got %d", repo.rehashed)
	}
}

func TestRefreshRotatesSessionWithExpiredAccessToken(t *testing.T) {
	user := testUser(t, "cliente@example.com", "secret-123", enums.RoleCustomer, nil)
	svc, sessions, _ := buildTestService(t, user)
	impl := svc.(*service)

	impl.now = func() time.Time { return time.Now().Add(-2 * time.Hour).UTC() }
	first, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "secret-123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := pkgAuth.ParseAccessToken(testJWT, first.AccessToken); err == nil {
		t.Fatalf("expected the first access token to be expired")
	}
	impl.now = func() time.Time { return time.Now().UTC() }

	second, err := svc.Refresh(context.Background(), RefreshRequest{AccessToken: first.AccessToken, RefreshToken: first.RefreshToken})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, second.AccessToken)
	if err != nil {
		t.Fatalf("parse refreshed token: %v", err)
	}
	if _, ok := sessions.tokens[claims.ID]; !ok {
		t.Fatalf("expected new session to exist")
	}
	if len(sessions.tokens) != 1 {
		t.Fatalf("expected the old session to be dropped, have %d", len(sessions.tokens))
	}

	_, err = svc.Refresh(context.Background(), RefreshRequest{AccessToken: first.AccessToken, RefreshToken: first.RefreshToken})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected replayed refresh token to fail, got %v", err)
	}
}

func TestRefreshRejectsDeactivatedUser(t *testing.T) {
	user := testUser(t, "cliente@example.com", "secret-123", enums.RoleCustomer, nil)
	svc, sessions, _ := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "secret-123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	user.IsActive = false

	_, err = svc.Refresh(context.Background(), RefreshRequest{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken})
	if !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(sessions.tokens) != 0 {
		t.Fatalf("expected no live sessions, have %d", len(sessions.tokens))
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	user := testUser(t, "cliente@example.com", "secret-123", enums.RoleCustomer, nil)
	svc, sessions, _ := buildTestService(t, user)

	resp, err := svc.Login(context.Background(), LoginRequest{Email: user.Email, Password: "secret-123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	claims, err := pkgAuth.ParseAccessToken(testJWT, resp.AccessToken)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := svc.Logout(context.Background(), claims.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if len(sessions.tokens) != 0 {
		t.Fatalf("expected session to be revoked")
	}
	if err := svc.Logout(context.Background(), ""); !pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized for empty session, got %v", err)
	}
}

func buildTestService(t *testing.T, user *models.User) (Service, *stubSessionManager, *stubSink) {
	t.Helper()
	sessions := &stubSessionManager{tokens: map[string]string{}}
	sink := &stubSink{}
	svc, err := NewService(ServiceParams{
		UserRepo:       &stubUserRepo{user: user},
		SessionManager: sessions,
		Audit:          sink,
		JWTConfig:      testJWT,
		PasswordConfig: fastPasswords,
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, sessions, sink
}

func testUser(t *testing.T, email, password string, role enums.RoleName, tenantID *uuid.UUID) *models.User {
	t.Helper()
	hash, err := security.HashPassword(password, fastPasswords)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Ana",
		LastName:     "Flores",
		Role:         role,
		TenantID:     tenantID,
		IsActive:     true,
	}
}

type stubUserRepo struct {
	user     *models.User
	rehashed int
}

func (s *stubUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, gorm.ErrRecordNotFound
	}
	return s.user, nil
}

func (s *stubUserRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	if s.user == nil || s.user.ID != id {
		return gorm.ErrRecordNotFound
	}
	s.user.LastLoginAt = &at
	return nil
}

func (s *stubUserRepo) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	if s.user == nil || s.user.ID != id {
		return gorm.ErrRecordNotFound
	}
	s.user.PasswordHash = hash
	s.rehashed++
	return nil
}

type stubSessionManager struct {
	tokens map[string]string
	seq    int
}

func (s *stubSessionManager) Issue(context.Context) (string, string, error) {
	s.seq++
	accessID := session.NewAccessID()
	token := fmt.Sprintf("refresh-%d", s.seq)
	s.tokens[accessID] = token
	return accessID, token, nil
}

func (s *stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	stored, ok := s.tokens[oldAccessID]
	if !ok || stored != provided {
		return "", "", session.ErrInvalidRefreshToken
	}
	delete(s.tokens, oldAccessID)
	return s.Issue(ctx)
}

func (s *stubSessionManager) Revoke(_ context.Context, accessID string) error {
	delete(s.tokens, accessID)
	return nil
}

type stubSink struct {
	entries []audit.Entry
}

func (s *stubSink) Record(_ context.Context, e audit.Entry) {
	s.entries = append(s.entries, e)
}
