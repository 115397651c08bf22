// Package audit records human-readable actions. Recording is best-effort: a
// failed write is logged and never reaches the caller.
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/angelmondragon/tiendas-backend/pkg/logger"
	"github.com/angelmondragon/tiendas-backend/pkg/pagination"
	"github.com/google/uuid"
)

// Actions written by the services.
const (
	ActionSaleSettled       = "sale.settled"
	ActionSaleStatusChanged = "sale.status_changed"
	ActionProductRepriced   = "product.repriced"
	ActionProductDeactivate = "product.deactivated"
	ActionTenantProvisioned = "tenant.provisioned"
	ActionUserLogin         = "user.login"
)

// Entry is one action to record.
type Entry struct {
	UserID   *uuid.UUID
	TenantID *uuid.UUID
	Action   string
	IP       string
	Object   string
	Extra    map[string]any
}

// Sink is the post-commit side channel services write to.
type Sink interface {
	Record(ctx context.Context, entry Entry)
}

// Service records and lists audit entries.
type Service interface {
	Sink
	List(ctx context.Context, params ListParams) (*ListResult, error)
}

// ListParams configures a tenant scoped audit listing. A nil TenantID lists
// every tenant and is reserved for super admins.
type ListParams struct {
	TenantID *uuid.UUID
	Action   string
	Limit    int
	Cursor   string
}

type ListResult struct {
	Items  []LogDTO `json:"items"`
	Cursor string   `json:"cursor"`
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the audit repository.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "audit repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Record(ctx context.Context, entry Entry) {
	defer func() {
		if r := recover(); r != nil {
			s.logg.Error(ctx, "audit record panicked", fmt.Errorf("panic: %v", r))
		}
	}()

	if entry.Action == "" {
		s.logg.Warn(ctx, "audit entry without action dropped")
		return
	}

	row := models.AuditLog{
		UserID:   entry.UserID,
		TenantID: entry.TenantID,
		Action:   entry.Action,
		IP:       optional(entry.IP),
		Object:   optional(entry.Object),
	}
	if len(entry.Extra) > 0 {
		extra, err := json.Marshal(entry.Extra)
		if err != nil {
			s.logg.WarnErr(ctx, "marshal audit extra", err)
		} else {
			row.Extra = extra
		}
	}

	if err := s.repo.Create(ctx, &row); err != nil {
		ctx = s.logg.WithField(ctx, "action", entry.Action)
		s.logg.WarnErr(ctx, "audit record failed", err)
	}
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listParams{
		TenantID: params.TenantID,
		Action:   params.Action,
		Limit:    pagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list audit logs")
	}

	page, next := pagination.Trim(rows, params.Limit, func(row models.AuditLog) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	items := make([]LogDTO, 0, len(page))
	for _, row := range page {
		items = append(items, fromModel(row))
	}
	return &ListResult{Items: items, Cursor: next}, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
