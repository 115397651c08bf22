package auth

import (
	"context"
	"testing"

	"github.com/angelmondragon/tiendas-backend/pkg/config"
	"github.com/angelmondragon/tiendas-backend/pkg/db"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var fastPasswords = config.PasswordConfig{
	ArgonMemoryKB:    32768,
	ArgonTime:        1,
	ArgonParallelism: 1,
	ArgonSaltLen:     16,
	ArgonKeyLen:      32,
}

func TestRegisterCreatesCustomerAccount(t *testing.T) {
	conn := newRegisterDB(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.FromConn(conn), PasswordConfig: fastPasswords})
	require.NoError(t, err)

	phone := "  +591 70000000 "
	user, err := svc.Register(context.Background(), RegisterRequest{
		FirstName: "Lucia",
		LastName:  "Quispe",
		Email:     " Lucia@Example.com",
		Password:  "s3cret-pass",
		Phone:     &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, "lucia@example.com", user.Email)
	assert.Equal(t, enums.RoleCustomer, user.Role)
	assert.Nil(t, user.TenantID)

	var stored models.User
	require.NoError(t, conn.First(&stored, "id = ?", user.ID).Error)
	ok, err := security.VerifyPassword("s3cret-pass", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	var customer models.Customer
	require.NoError(t, conn.First(&customer, "user_id = ?", user.ID).Error)
	assert.Equal(t, "BRONZE", customer.LoyaltyTier)
	assert.True(t, customer.PointsAccumulated.IsZero())
	require.NotNil(t, customer.Phone)
	assert.Equal(t, "+591 70000000", *customer.Phone)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	conn := newRegisterDB(t)
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.FromConn(conn), PasswordConfig: fastPasswords})
	require.NoError(t, err)

	req := RegisterRequest{FirstName: "Lucia", LastName: "Quispe", Email: "lucia@example.com", Password: "s3cret-pass"}
	_, err = svc.Register(context.Background(), req)
	require.NoError(t, err)

	req.Email = "LUCIA@example.com"
	_, err = svc.Register(context.Background(), req)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict), "got %v", err)

	var users int64
	require.NoError(t, conn.Model(&models.User{}).Count(&users).Error)
	assert.EqualValues(t, 1, users)
	var customers int64
	require.NoError(t, conn.Model(&models.Customer{}).Count(&customers).Error)
	assert.EqualValues(t, 1, customers)
}

func TestRegisterValidatesInput(t *testing.T) {
	svc, err := NewRegisterService(RegisterServiceParams{DB: db.FromConn(newRegisterDB(t)), PasswordConfig: fastPasswords})
	require.NoError(t, err)

	cases := map[string]RegisterRequest{
		"missing email":  {FirstName: "A", LastName: "B", Password: "long-enough"},
		"short password": {FirstName: "A", LastName: "B", Email: "a@example.com", Password: "short"},
		"missing names":  {FirstName: " ", LastName: "B", Email: "a@example.com", Password: "long-enough"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), req)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestNewRegisterServiceRequiresDB(t *testing.T) {
	_, err := NewRegisterService(RegisterServiceParams{})
	assert.Error(t, err)
}

func newRegisterDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:register_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}
