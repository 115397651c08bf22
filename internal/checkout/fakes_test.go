package checkout

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/angelmondragon/tiendas-backend/internal/audit"
	"github.com/angelmondragon/tiendas-backend/internal/customers"
	"github.com/angelmondragon/tiendas-backend/internal/users"
	"github.com/angelmondragon/tiendas-backend/pkg/config"
	pkgdb "github.com/angelmondragon/tiendas-backend/pkg/db"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/angelmondragon/tiendas-backend/pkg/metrics"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox"
	"github.com/angelmondragon/tiendas-backend/pkg/stripe"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeGateway struct {
	mu        sync.Mutex
	seq       int
	sessions  map[string]*stripe.Session
	created   []stripe.CreateSessionInput
	retrieves int
	// pendingReads makes the next N retrieves report an open session.
	pendingReads int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{sessions: map[string]*stripe.Session{}}
}

func (g *fakeGateway) CreateSession(_ context.Context, in stripe.CreateSessionInput) (*stripe.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	var total int64
	for _, line := range in.Lines {
		total += line.UnitAmount * line.Quantity
	}
	id := fmt.Sprintf("cs_test_%d", g.seq)
	g.sessions[id] = &stripe.Session{
		ID:          id,
		URL:         "https://checkout.stripe.test/" + id,
		Status:      "open",
		Metadata:    in.Metadata,
		AmountTotal: total,
		Currency:    in.Currency,
	}
	g.created = append(g.created, in)
	out := *g.sessions[id]
	return &out, nil
}

func (g *fakeGateway) RetrieveSession(_ context.Context, id string) (*stripe.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.retrieves++
	s, ok := g.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such checkout session %s", id)
	}
	out := *s
	if g.pendingReads > 0 {
		g.pendingReads--
		out.Status = "open"
	}
	return &out, nil
}

func (g *fakeGateway) pay(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.sessions[id]
	s.Status = stripe.StatusComplete
	s.PaymentIntentID = "pi_" + id
}

func (g *fakeGateway) tamper(id string, amount int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions[id].AmountTotal = amount
}

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *recordingSink) Record(_ context.Context, e audit.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// hidingRepo pretends no sale exists for the first hide lookups, forcing the
// settlement down to the payment reference unique index.
type hidingRepo struct {
	Repository
	mu   *sync.Mutex
	hide *int
}

func (h hidingRepo) WithTx(tx *gorm.DB) Repository {
	return hidingRepo{Repository: h.Repository.WithTx(tx), mu: h.mu, hide: h.hide}
}

func (h hidingRepo) FindSettledSale(ctx context.Context, ref string) (*models.Sale, error) {
	h.mu.Lock()
	if *h.hide > 0 {
		*h.hide--
		h.mu.Unlock()
		return nil, nil
	}
	h.mu.Unlock()
	return h.Repository.FindSettledSale(ctx, ref)
}

type fixture struct {
	conn     *gorm.DB
	svc      Service
	gw       *fakeGateway
	sink     *recordingSink
	reg      *prometheus.Registry
	tenant   models.Tenant
	user     *models.User
	customer *models.Customer
}

func testConfig() config.CheckoutConfig {
	return config.CheckoutConfig{
		FrontendURL: "https://shop.example.com",
		Currency:    "bob",
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithDB(t, newTestDB(t), nil)
}

func newFixtureWithDB(t *testing.T, conn *gorm.DB, wrap func(Repository) Repository) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "checkout-test", Output: io.Discard})
	userRepo := users.NewRepository(conn)
	customerRepo := customers.NewRepository(conn)
	customerSvc, err := customers.NewService(customerRepo, userRepo)
	require.NoError(t, err)

	var repo Repository = NewRepository(conn)
	if wrap != nil {
		repo = wrap(repo)
	}

	f := &fixture{
		conn: conn,
		gw:   newFakeGateway(),
		sink: &recordingSink{},
		reg:  prometheus.NewRegistry(),
	}
	svc, err := NewService(ServiceParams{
		DB:        pkgdb.FromConn(conn),
		Repo:      repo,
		Customers: customerSvc,
		Ledger:    customerRepo,
		Gateway:   f.gw,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), logg),
		Audit:     f.sink,
		Metrics:   metrics.NewCheckoutMetrics(f.reg),
		Logger:    logg,
		Config:    testConfig(),
	})
	require.NoError(t, err)
	f.svc = svc

	f.tenant = models.Tenant{Name: "Tienda Sol", Slug: "sol-" + uuid.NewString()[:8], Status: enums.TenantStatusActive}
	require.NoError(t, conn.Create(&f.tenant).Error)

	f.user, err = userRepo.Create(context.Background(), users.CreateUserDTO{
		Email:        uuid.NewString()[:8] + "@example.com",
		PasswordHash: "hash",
		FirstName:    "Carla",
		LastName:     "Quispe",
		Role:         enums.RoleCustomer,
	})
	require.NoError(t, err)
	f.customer, _, err = customerSvc.EnsureForUser(context.Background(), f.user.ID)
	require.NoError(t, err)
	return f
}

func (f *fixture) product(t *testing.T, price string, stock int) models.Product {
	t.Helper()
	p := models.Product{
		TenantID: f.tenant.ID,
		Name:     "Producto " + uuid.NewString()[:6],
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	require.NoError(t, f.conn.Create(&p).Error)
	return p
}

func (f *fixture) stock(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.First(&p, "id = ?", id).Error)
	return p.Stock
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) confirmInput(sessionID string) ConfirmInput {
	userID := f.user.ID
	return ConfirmInput{TenantID: f.tenant.ID, SessionID: sessionID, UserID: &userID}
}

func (f *fixture) counter(t *testing.T, outcome string) float64 {
	t.Helper()
	mfs, err := f.reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "checkout_confirmations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}
