package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
)

func TestNormalizeMergesAndSorts(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	items, err := Normalize([]Item{
		{ProductID: a, Quantity: 1},
		{ProductID: b, Quantity: 2},
		{ProductID: a, Quantity: 3},
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Less(t, items[0].ProductID.String(), items[1].ProductID.String())

	got := map[uuid.UUID]int{}
	for _, item := range items {
		got[item.ProductID] = item.Quantity
	}
	require.Equal(t, 4, got[a])
	require.Equal(t, 2, got[b])
}

func TestNormalizeRejectsInvalidItems(t *testing.T) {
	t.Parallel()

	for name, items := range map[string][]Item{
		"empty":         nil,
		"zero quantity": {{ProductID: uuid.New(), Quantity: 0}},
		"negative":      {{ProductID: uuid.New(), Quantity: -1}},
		"nil product":   {{Quantity: 1}},
	} {
		_, err := Normalize(items)
		require.Errorf(t, err, name)
		require.Truef(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation), name)
	}
}

func TestReserveDecrementsAndPrices(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, db)
	p1 := seedProduct(t, db, tenant.ID, "10.50", 5)
	p2 := seedProduct(t, db, tenant.ID, "3.00", 2)

	var res *Reservation
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		res, err = Reserve(ctx, tx, tenant.ID, []Item{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p2.ID, Quantity: 2},
		})
		return err
	})
	require.NoError(t, err)
	require.True(t, res.Subtotal.Equal(decimal.RequireFromString("27.00")), res.Subtotal.String())

	require.Equal(t, 3, stockOf(t, db, p1.ID))
	require.Equal(t, 0, stockOf(t, db, p2.ID))
}

func TestReserveFailureIsAtomic(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, db)

	products := make([]models.Product, 5)
	items := make([]Item, 5)
	for i := range products {
		stock := 10
		if i == 2 {
			stock = 1
		}
		products[i] = seedProduct(t, db, tenant.ID, "5.00", stock)
		items[i] = Item{ProductID: products[i].ID, Quantity: 2}
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := Reserve(ctx, tx, tenant.ID, items)
		return err
	})
	require.Error(t, err)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))

	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Equal(t, products[2].ID.String(), details["product_id"])
	require.Equal(t, 1, details["available"])
	require.Equal(t, 2, details["requested"])

	for i, p := range products {
		want := 10
		if i == 2 {
			want = 1
		}
		require.Equal(t, want, stockOf(t, db, p.ID))
	}
}

func TestReserveRejectsForeignAndInactiveProducts(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, db)
	other := seedTenant(t, db)
	foreign := seedProduct(t, db, other.ID, "1.00", 10)

	inactive := seedProduct(t, db, tenant.ID, "1.00", 10)
	require.NoError(t, db.Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	_, err := Prepare(ctx, db, tenant.ID, []Item{{ProductID: foreign.ID, Quantity: 1}})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	_, err = Prepare(ctx, db, tenant.ID, []Item{{ProductID: inactive.ID, Quantity: 1}})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	require.Equal(t, 10, stockOf(t, db, foreign.ID))
}

func TestMergedDuplicatesAreCheckedTogether(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	tenant := seedTenant(t, db)
	p := seedProduct(t, db, tenant.ID, "2.00", 3)

	_, err := Check(context.Background(), db, tenant.ID, []Item{
		{ProductID: p.ID, Quantity: 2},
		{ProductID: p.ID, Quantity: 2},
	})
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))
}

func TestApplyGuards(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, db)
	p := seedProduct(t, db, tenant.ID, "2.00", 3)

	advisory, err := Check(ctx, db, tenant.ID, []Item{{ProductID: p.ID, Quantity: 1}})
	require.NoError(t, err)
	require.Error(t, advisory.Apply(ctx, db))

	err = db.Transaction(func(tx *gorm.DB) error {
		res, err := Prepare(ctx, tx, tenant.ID, []Item{{ProductID: p.ID, Quantity: 1}})
		if err != nil {
			return err
		}
		if err := res.Apply(ctx, tx); err != nil {
			return err
		}
		require.Error(t, res.Apply(ctx, tx))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, stockOf(t, db, p.ID))
}

func TestSequentialReservationsNeverOversell(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	tenant := seedTenant(t, db)
	p := seedProduct(t, db, tenant.ID, "1.00", 5)

	settled := 0
	for i := 0; i < 4; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			_, err := Reserve(ctx, tx, tenant.ID, []Item{{ProductID: p.ID, Quantity: 2}})
			return err
		})
		if err == nil {
			settled += 2
			continue
		}
		require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeInsufficientStock))
	}
	require.Equal(t, 4, settled)
	require.Equal(t, 1, stockOf(t, db, p.ID))
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func seedTenant(t *testing.T, db *gorm.DB) models.Tenant {
	t.Helper()
	tenant := models.Tenant{Name: "Tienda", Slug: "tienda-" + uuid.NewString()[:8], Status: enums.TenantStatusActive}
	require.NoError(t, db.Create(&tenant).Error)
	return tenant
}

func seedProduct(t *testing.T, db *gorm.DB, tenantID uuid.UUID, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		TenantID: tenantID,
		Name:     "Producto " + uuid.NewString()[:6],
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func stockOf(t *testing.T, db *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, db.First(&p, "id = ?", id).Error)
	return p.Stock
}

func TestLockDoesNotValidateStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	tenant := seedTenant(t, db)
	p := seedProduct(t, db, tenant.ID, "2.00", 0)

	err := db.Transaction(func(tx *gorm.DB) error {
		return Lock(context.Background(), tx, tenant.ID, []Item{{ProductID: p.ID, Quantity: 5}})
	})
	require.NoError(t, err)
}

func TestDecrementExprCastsQuantities(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	expr, ids := decrementExpr([]Line{
		{ProductID: a, Quantity: 2},
		{ProductID: b, Quantity: 5},
	})

	require.Equal(t, "stock - CASE id WHEN ? THEN CAST(? AS integer) WHEN ? THEN CAST(? AS integer) END", expr.SQL)
	require.Equal(t, []any{a, 2, b, 5}, expr.Vars)
	require.Equal(t, []uuid.UUID{a, b}, ids)
}
