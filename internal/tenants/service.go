// Package tenants provisions stores against a subscription plan.
package tenants

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/angelmondragon/tiendas-backend/internal/audit"
	"github.com/angelmondragon/tiendas-backend/internal/users"
	"github.com/angelmondragon/tiendas-backend/pkg/config"
	"github.com/angelmondragon/tiendas-backend/pkg/db"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox"
	"github.com/angelmondragon/tiendas-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tiendas-backend/pkg/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const tempPasswordLength = 16

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type Service interface {
	Provision(ctx context.Context, input ProvisionInput) (*ProvisionResult, error)
	Get(ctx context.Context, id uuid.UUID) (*TenantDTO, error)
}

// ProvisionInput creates a tenant and its first admin account.
type ProvisionInput struct {
	Name           string    `json:"name" validate:"required,max=120"`
	Slug           string    `json:"slug" validate:"required,max=60"`
	PlanID         uuid.UUID `json:"plan_id" validate:"required"`
	AdminEmail     string    `json:"admin_email" validate:"required,email"`
	AdminFirstName string    `json:"admin_first_name" validate:"required"`
	AdminLastName  string    `json:"admin_last_name" validate:"required"`
	ActorUserID    uuid.UUID `json:"-"`
}

// ProvisionResult returns the generated admin password exactly once.
type ProvisionResult struct {
	Tenant       *TenantDTO     `json:"tenant"`
	Admin        *users.UserDTO `json:"admin"`
	TempPassword string         `json:"temp_password"`
}

type TenantDTO struct {
	ID              uuid.UUID          `json:"id"`
	Name            string             `json:"name"`
	Slug            string             `json:"slug"`
	Status          enums.TenantStatus `json:"status"`
	PlanID          *uuid.UUID         `json:"plan_id,omitempty"`
	NextBillingDate *time.Time         `json:"next_billing_date,omitempty"`
	CreatedAt       time.Time          `json:"created_at"`
}

type ServiceParams struct {
	Repo           Repository
	Tx             txRunner
	Outbox         outboxPublisher
	Audit          audit.Sink
	Logger         *logger.Logger
	PasswordConfig config.PasswordConfig
}

type service struct {
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	audit       audit.Sink
	logg        *logger.Logger
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("tenant repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Audit == nil:
		return nil, fmt.Errorf("audit sink required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		audit:       params.Audit,
		logg:        params.Logger,
		passwordCfg: params.PasswordConfig,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Provision(ctx context.Context, input ProvisionInput) (*ProvisionResult, error) {
	name := strings.TrimSpace(input.Name)
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	email := users.NormalizeEmail(input.AdminEmail)
	switch {
	case name == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	case !slugPattern.MatchString(slug):
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase letters, digits and dashes")
	case input.PlanID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "plan id is required")
	case email == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "admin email is required")
	}

	tempPassword, err := security.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate password")
	}
	hash, err := security.HashPassword(tempPassword, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	var (
		tenant *models.Tenant
		admin  *models.User
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		userRepo := users.NewRepository(tx)

		plan, err := repo.FindPlan(ctx, input.PlanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "plan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
		}
		if !plan.IsActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "plan is not available")
		}

		if taken, err := repo.SlugExists(ctx, slug); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check slug")
		} else if taken {
			return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		if _, err := userRepo.FindByEmail(ctx, email); err == nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check user email")
		}

		status, nextBilling := billingStart(plan, s.now())
		planID := plan.ID
		tenant = &models.Tenant{
			Name:            name,
			Slug:            slug,
			Status:          status,
			PlanID:          &planID,
			NextBillingDate: &nextBilling,
		}
		if err := repo.Create(ctx, tenant); err != nil {
			if db.IsUniqueViolation(err, "ux_tenants_slug") || db.IsUniqueViolation(err, "tenants.slug") {
				return pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create tenant")
		}

		tenantID := tenant.ID
		admin, err = userRepo.Create(ctx, users.CreateUserDTO{
			Email:        email,
			PasswordHash: hash,
			FirstName:    input.AdminFirstName,
			LastName:     input.AdminLastName,
			Role:         enums.RoleAdmin,
			TenantID:     &tenantID,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create admin user")
		}

		var actor *outbox.ActorRef
		if input.ActorUserID != uuid.Nil {
			actor = &outbox.ActorRef{UserID: input.ActorUserID, Role: string(enums.RoleSuperAdmin)}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:   enums.EventTenantProvisioned,
			AggregateID: tenant.ID,
			Actor:       actor,
			Data: payloads.TenantProvisionedEvent{
				TenantID:        tenant.ID,
				PlanID:          plan.ID,
				Status:          status,
				NextBillingDate: nextBilling,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithTenantID(ctx, tenant.ID.String())
	s.logg.Info(s.logg.WithField(ctx, "status", string(tenant.Status)), "tenant provisioned")

	var actorID *uuid.UUID
	if input.ActorUserID != uuid.Nil {
		actorID = &input.ActorUserID
	}
	tenantID := tenant.ID
	s.audit.Record(ctx, audit.Entry{
		UserID:   actorID,
		TenantID: &tenantID,
		Action:   audit.ActionTenantProvisioned,
		Object:   "tenant:" + tenant.ID.String(),
		Extra:    map[string]any{"slug": tenant.Slug, "plan_id": input.PlanID.String()},
	})

	return &ProvisionResult{
		Tenant:       tenantFromModel(tenant),
		Admin:        users.FromModel(admin),
		TempPassword: tempPassword,
	}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*TenantDTO, error) {
	tenant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "store not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load store")
	}
	return tenantFromModel(tenant), nil
}

// billingStart places trial plans in TRIAL until the trial ends; paid plans
// start ACTIVE and bill a month out.
func billingStart(plan *models.Plan, now time.Time) (enums.TenantStatus, time.Time) {
	if plan.TrialDays > 0 {
		return enums.TenantStatusTrial, now.AddDate(0, 0, plan.TrialDays)
	}
	return enums.TenantStatusActive, now.AddDate(0, 1, 0)
}

func tenantFromModel(t *models.Tenant) *TenantDTO {
	return &TenantDTO{
		ID:              t.ID,
		Name:            t.Name,
		Slug:            t.Slug,
		Status:          t.Status,
		PlanID:          t.PlanID,
		NextBillingDate: t.NextBillingDate,
		CreatedAt:       t.CreatedAt,
	}
}
