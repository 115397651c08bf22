package tenants

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/tiendas-backend/internal/audit"
	"github.com/angelmondragon/tiendas-backend/pkg/config"
	pkgdb "github.com/angelmondragon/tiendas-backend/pkg/db"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox"
	"github.com/angelmondragon/tiendas-backend/pkg/security"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingSink) Record(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*gorm.DB, *service, *recordingSink) {
	t.Helper()
	dsn := "file:tenants_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	logg := logger.New(logger.Options{ServiceName: "tenants-test", Output: io.Discard})
	sink := &recordingSink{}
	svc, err := NewService(ServiceParams{
		Repo:   NewRepository(conn),
		Tx:     pkgdb.FromConn(conn),
		Outbox: outbox.NewService(outbox.NewRepository(conn), logg),
		Audit:  sink,
		Logger: logg,
		PasswordConfig: config.PasswordConfig{
			ArgonMemoryKB:    32768,
			ArgonTime:        1,
			ArgonParallelism: 1,
			ArgonSaltLen:     16,
			ArgonKeyLen:      32,
		},
	})
	require.NoError(t, err)
	impl := svc.(*service)
	impl.now = func() time.Time { return fixedNow }
	return conn, impl, sink
}

func seedPlan(t *testing.T, conn *gorm.DB, name string, trialDays int) models.Plan {
	t.Helper()
	plan := models.Plan{Name: name, Price: decimal.RequireFromString("29.90"), TrialDays: trialDays, IsActive: true}
	require.NoError(t, conn.Create(&plan).Error)
	return plan
}

func provisionInput(planID uuid.UUID, slug string) ProvisionInput {
	return ProvisionInput{
		Name:           "Artesanías Illimani",
		Slug:           slug,
		PlanID:         planID,
		AdminEmail:     " Admin@" + slug + ".bo ",
		AdminFirstName: "Rosa",
		AdminLastName:  "Choque",
		ActorUserID:    uuid.New(),
	}
}

func TestProvisionTrialPlan(t *testing.T) {
	conn, svc, sink := setup(t)
	plan := seedPlan(t, conn, "Emprendedor", 14)

	res, err := svc.Provision(context.Background(), provisionInput(plan.ID, "illimani"))
	require.NoError(t, err)

	assert.Equal(t, enums.TenantStatusTrial, res.Tenant.Status)
	require.NotNil(t, res.Tenant.NextBillingDate)
	assert.True(t, res.Tenant.NextBillingDate.Equal(fixedNow.AddDate(0, 0, 14)))
	assert.Len(t, res.TempPassword, tempPasswordLength)

	assert.Equal(t, "admin@illimani.bo", res.Admin.Email)
	assert.Equal(t, enums.RoleAdmin, res.Admin.Role)
	require.NotNil(t, res.Admin.TenantID)
	assert.Equal(t, res.Tenant.ID, *res.Admin.TenantID)

	var user models.User
	require.NoError(t, conn.First(&user, "id = ?", res.Admin.ID).Error)
	ok, err := security.VerifyPassword(res.TempPassword, user.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	var events []models.OutboxEvent
	require.NoError(t, conn.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventTenantProvisioned, events[0].EventType)
	assert.Equal(t, res.Tenant.ID, events[0].AggregateID)

	require.Len(t, sink.entries, 1)
	assert.Equal(t, audit.ActionTenantProvisioned, sink.entries[0].Action)
}

func TestProvisionPaidPlanStartsActive(t *testing.T) {
	conn, svc, _ := setup(t)
	plan := seedPlan(t, conn, "Profesional", 0)

	res, err := svc.Provision(context.Background(), provisionInput(plan.ID, "sajama"))
	require.NoError(t, err)
	assert.Equal(t, enums.TenantStatusActive, res.Tenant.Status)
	assert.True(t, res.Tenant.NextBillingDate.Equal(fixedNow.AddDate(0, 1, 0)))

	got, err := svc.Get(context.Background(), res.Tenant.ID)
	require.NoError(t, err)
	assert.Equal(t, "sajama", got.Slug)
}

func TestProvisionConflicts(t *testing.T) {
	conn, svc, _ := setup(t)
	ctx := context.Background()
	plan := seedPlan(t, conn, "Profesional", 0)

	_, err := svc.Provision(ctx, provisionInput(plan.ID, "uyuni"))
	require.NoError(t, err)

	_, err = svc.Provision(ctx, provisionInput(plan.ID, "uyuni"))
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	in := provisionInput(plan.ID, "tunupa")
	in.AdminEmail = "admin@uyuni.bo"
	_, err = svc.Provision(ctx, in)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	var tenants int64
	require.NoError(t, conn.Model(&models.Tenant{}).Count(&tenants).Error)
	assert.Equal(t, int64(1), tenants)
}

func TestProvisionValidation(t *testing.T) {
	conn, svc, _ := setup(t)
	plan := seedPlan(t, conn, "Profesional", 0)
	retired := seedPlan(t, conn, "Legado", 0)
	require.NoError(t, conn.Model(&retired).UpdateColumn("is_active", false).Error)

	cases := map[string]ProvisionInput{
		"bad slug":     provisionInput(plan.ID, "Tienda Sol!"),
		"unknown plan": provisionInput(uuid.New(), "potosi"),
		"retired plan": provisionInput(retired.ID, "oruro"),
		"missing plan": provisionInput(uuid.Nil, "tarija"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Provision(context.Background(), in)
			assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
		})
	}
}

func TestRepositoryExpireTrials(t *testing.T) {
	conn, _, _ := setup(t)
	past := fixedNow.Add(-time.Hour)
	future := fixedNow.Add(24 * time.Hour)
	expired := models.Tenant{Name: "Vencida", Slug: "vencida", Status: enums.TenantStatusTrial, NextBillingDate: &past}
	running := models.Tenant{Name: "Vigente", Slug: "vigente", Status: enums.TenantStatusTrial, NextBillingDate: &future}
	paid := models.Tenant{Name: "Pagada", Slug: "pagada", Status: enums.TenantStatusActive, NextBillingDate: &past}
	for _, tenant := range []*models.Tenant{&expired, &running, &paid} {
		require.NoError(t, conn.Create(tenant).Error)
	}

	rows, err := NewRepository(conn).ExpireTrials(context.Background(), fixedNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	statuses := map[uuid.UUID]enums.TenantStatus{}
	var all []models.Tenant
	require.NoError(t, conn.Find(&all).Error)
	for _, tenant := range all {
		statuses[tenant.ID] = tenant.Status
	}
	assert.Equal(t, enums.TenantStatusInactive, statuses[expired.ID])
	assert.Equal(t, enums.TenantStatusTrial, statuses[running.ID])
	assert.Equal(t, enums.TenantStatusActive, statuses[paid.ID])
}
