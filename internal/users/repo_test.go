package users

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestRepositoryNormalizesEmail(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{
		Email:        "  Ana@Example.COM ",
		PasswordHash: "hash",
		FirstName:    "Ana",
		LastName:     "Rojas",
		Role:         enums.RoleCustomer,
	})
	require.NoError(t, err)
	require.Equal(t, "ana@example.com", user.Email)
	require.True(t, user.IsActive)

	found, err := repo.FindByEmail(ctx, "ANA@example.com")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	_, err = repo.Create(ctx, CreateUserDTO{Email: "ana@example.com", PasswordHash: "x", FirstName: "A", LastName: "B", Role: enums.RoleCustomer})
	require.Error(t, err)
}

func TestRepositoryCreateInactiveAndLastLogin(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()
	tenantID := uuid.New()
	inactive := false

	user, err := repo.Create(ctx, CreateUserDTO{
		Email:        "vendor@example.com",
		PasswordHash: "hash",
		FirstName:    "Vera",
		LastName:     "Paz",
		Role:         enums.RoleVendor,
		TenantID:     &tenantID,
		IsActive:     &inactive,
	})
	require.NoError(t, err)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateLastLogin(ctx, user.ID, at))

	loaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.False(t, loaded.IsActive)
	require.NotNil(t, loaded.LastLoginAt)
	require.True(t, loaded.LastLoginAt.Equal(at))

	staff, err := repo.ListByTenant(ctx, tenantID)
	require.NoError(t, err)
	require.Len(t, staff, 1)

	dto := FromModel(loaded)
	require.Equal(t, enums.RoleVendor, dto.Role)
	require.Equal(t, tenantID, *dto.TenantID)
}

func TestRepositoryUpdatePasswordHash(t *testing.T) {
	repo := NewRepository(newTestDB(t))
	ctx := context.Background()

	user, err := repo.Create(ctx, CreateUserDTO{
		Email:        "rehash@example.com",
		PasswordHash: "old",
		FirstName:    "Rosa",
		LastName:     "Vega",
		Role:         enums.RoleCustomer,
	})
	require.NoError(t, err)

	require.NoError(t, repo.UpdatePasswordHash(ctx, user.ID, "new"))
	loaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "new", loaded.PasswordHash)

	require.ErrorIs(t, repo.UpdatePasswordHash(ctx, uuid.New(), "new"), gorm.ErrRecordNotFound)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:users_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return db
}
