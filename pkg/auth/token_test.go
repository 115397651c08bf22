package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tiendas-backend/pkg/config"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "secret",
		Issuer:            "tiendas",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := testJWTConfig()
	userID := uuid.New()
	tenantID := uuid.New()

	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{
		UserID:   userID,
		TenantID: &tenantID,
		Role:     enums.RoleAdmin,
		JTI:      "access-1",
	})
	require.NoError(t, err)

	claims, err := ParseAccessToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	require.NotNil(t, claims.TenantID)
	assert.Equal(t, tenantID, *claims.TenantID)
	assert.Equal(t, enums.RoleAdmin, claims.Role)
	assert.Equal(t, "access-1", claims.ID)
	assert.Equal(t, "tiendas", claims.Issuer)
}

func TestMintAccessTokenValidation(t *testing.T) {
	cfg := testJWTConfig()

	_, err := MintAccessToken(config.JWTConfig{}, time.Now(), AccessTokenPayload{Role: enums.RoleCustomer})
	assert.Error(t, err)

	_, err = MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), Role: "owner"})
	assert.Error(t, err)

}

func TestMintAccessTokenTenantBinding(t *testing.T) {
	cfg := testJWTConfig()
	tenantID := uuid.New()

	cases := []struct {
		role    enums.RoleName
		tenant  *uuid.UUID
		wantErr bool
	}{
		{role: enums.RoleSuperAdmin},
		{role: enums.RoleCustomer},
		{role: enums.RoleAdmin, wantErr: true},
		{role: enums.RoleVendor, wantErr: true},
		{role: enums.RoleAdmin, tenant: &tenantID},
		{role: enums.RoleVendor, tenant: &tenantID},
	}

	for _, tc := range cases {
		_, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{UserID: uuid.New(), TenantID: tc.tenant, Role: tc.role})
		if tc.wantErr {
			assert.ErrorContains(t, err, "requires a tenant", "role %s without tenant", tc.role)
			continue
		}
		assert.NoError(t, err, "role %s tenant=%v", tc.role, tc.tenant != nil)
	}
}

func TestParseAccessTokenRejectsExpiredAndForeignIssuer(t *testing.T) {
	cfg := testJWTConfig()
	past := time.Now().Add(-2 * time.Hour)

	token, err := MintAccessToken(cfg, past, AccessTokenPayload{UserID: uuid.New(), Role: enums.RoleCustomer, JTI: "old"})
	require.NoError(t, err)

	_, err = ParseAccessToken(cfg, token)
	assert.Error(t, err)

	claims, err := ParseAccessTokenAllowExpired(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "old", claims.ID)

	other := cfg
	other.Issuer = "someone-else"
	_, err = ParseAccessToken(other, token)
	assert.Error(t, err)
}
