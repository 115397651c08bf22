package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v78"

	"github.com/angelmondragon/tiendas-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/tiendas-backend/api/controllers/webhooks"
	"github.com/angelmondragon/tiendas-backend/api/middleware"
	"github.com/angelmondragon/tiendas-backend/internal/audit"
	"github.com/angelmondragon/tiendas-backend/internal/auth"
	"github.com/angelmondragon/tiendas-backend/internal/authz"
	"github.com/angelmondragon/tiendas-backend/internal/catalog"
	checkoutsvc "github.com/angelmondragon/tiendas-backend/internal/checkout"
	"github.com/angelmondragon/tiendas-backend/internal/customers"
	"github.com/angelmondragon/tiendas-backend/internal/sales"
	"github.com/angelmondragon/tiendas-backend/internal/tenants"
	"github.com/angelmondragon/tiendas-backend/pkg/auth/session"
	"github.com/angelmondragon/tiendas-backend/pkg/config"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/angelmondragon/tiendas-backend/pkg/metrics"
	"github.com/angelmondragon/tiendas-backend/pkg/redis"
)

// redisStore is the slice of the redis client the HTTP layer needs.
type redisStore interface {
	redis.IdempotencyStore
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// stripeVerifier checks webhook signatures.
type stripeVerifier interface {
	ConstructEvent(payload []byte, signature string) (stripe.Event, error)
}

type webhookGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Confirm(ctx context.Context, eventID string) error
	Delete(ctx context.Context, eventID string) error
}

// Params carries everything the router wires into handlers.
type Params struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry

	DB    controllers.Pinger
	Redis redisStore

	Sessions session.AccessSessionChecker
	Tenants  middleware.TenantLoader

	Auth      auth.Service
	Register  auth.RegisterService
	Checkout  checkoutsvc.Service
	Sales     sales.Service
	Catalog   catalog.Service
	Audit     audit.Service
	Customers customers.Service
	Provision tenants.Service

	StripeVerifier     stripeVerifier
	StripeWebhook      webhookcontrollers.StripeWebhookService
	StripeWebhookGuard webhookGuard
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)
	if cfg.Metrics.Enabled && p.Registry != nil {
		r.Use(middleware.Metrics(metrics.NewHTTPMetrics(p.Registry)))
		r.Handle(cfg.Metrics.Path, promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{}))
	}

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	idempotent := middleware.Idempotency(p.Redis, logg, middleware.DefaultIdempotencyTTL)
	settlement := middleware.Idempotency(p.Redis, logg, middleware.SettlementIdempotencyTTL)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readinessDeps(p)))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(p.StripeWebhook, p.StripeVerifier, p.StripeWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, p.Redis, logg)).Post("/login", controllers.AuthLogin(p.Auth, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, p.Redis, logg), idempotent).Post("/register", controllers.AuthRegister(p.Register, logg))
		r.Post("/refresh", controllers.AuthRefresh(p.Auth, logg))
		r.Post("/logout", controllers.AuthLogout(p.Auth, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, p.Sessions, logg))

		r.With(middleware.RequireRole(logg, enums.RoleCustomer)).Get("/me/customer", controllers.MeCustomer(p.Customers, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleSuperAdmin))
			r.With(idempotent).Post("/admin/tenants", controllers.AdminProvisionTenant(p.Provision, logg))
			r.Get("/admin/tenants/{tenantId}", controllers.AdminGetTenant(p.Provision, logg))
		})

		r.Route("/tenants/{tenantId}", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.TenantAccess(p.Tenants, authz.AccessStorefront, logg))
				r.Use(middleware.RequireRole(logg, enums.RoleCustomer))
				r.With(settlement).Post("/checkout/sessions", controllers.CheckoutCreateSession(p.Checkout, logg))
				r.With(settlement).Post("/checkout/confirm", controllers.CheckoutConfirm(p.Checkout, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.TenantAccess(p.Tenants, authz.AccessStaff, logg))
				r.Get("/sales", controllers.SalesList(p.Sales, logg))
				r.Get("/sales/{saleId}", controllers.SalesDetail(p.Sales, logg))
				r.With(idempotent).Post("/sales/{saleId}/status", controllers.SalesUpdateStatus(p.Sales, logg))
				r.Get("/products/{productId}/price-history", controllers.ProductPriceHistory(p.Catalog, logg))
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.TenantAccess(p.Tenants, authz.AccessAdmin, logg))
				r.Patch("/products/{productId}/price", controllers.ProductUpdatePrice(p.Catalog, logg))
				r.Delete("/products/{productId}", controllers.ProductDeactivate(p.Catalog, logg))
				r.Get("/audit-logs", controllers.AuditLogList(p.Audit, logg))
			})
		})
	})

	return r
}

func readinessDeps(p Params) map[string]controllers.Pinger {
	deps := map[string]controllers.Pinger{"db": p.DB}
	if pinger, ok := p.Redis.(controllers.Pinger); ok {
		deps["redis"] = pinger
	} else {
		deps["redis"] = nil
	}
	return deps
}
