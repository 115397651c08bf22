// Package authz is the one authorization policy every tenant scoped handler
// goes through.
package authz

import (
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/google/uuid"
)

// Access is the kind of operation a request performs on a tenant.
type Access int

const (
	// AccessStorefront is shopping: customers and the tenant's own staff.
	AccessStorefront Access = iota
	// AccessStaff is back office work any tenant staff member may do.
	AccessStaff
	// AccessAdmin is restricted to the tenant admin.
	AccessAdmin
	// AccessPlatform is restricted to super admins.
	AccessPlatform
)

// Actor is the authenticated caller.
type Actor struct {
	UserID   uuid.UUID
	Role     enums.RoleName
	TenantID *uuid.UUID
}

// Authorize decides whether actor may perform access on the tenant.
// Super admins always pass. Customers only shop. Admins and vendors are bound
// to their own tenant, and only while it is ACTIVE or TRIAL.
func Authorize(actor Actor, tenantID uuid.UUID, status enums.TenantStatus, access Access) error {
	if actor.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	switch actor.Role {
	case enums.RoleSuperAdmin:
		return nil
	case enums.RoleCustomer:
		if access == AccessStorefront {
			return nil
		}
		return forbidden("customers cannot access this resource")
	case enums.RoleAdmin, enums.RoleVendor:
		if access == AccessPlatform {
			return forbidden("platform access required")
		}
		if actor.TenantID == nil {
			return forbidden("user is not associated with a store")
		}
		if *actor.TenantID != tenantID {
			return forbidden("user does not belong to this store")
		}
		if !status.Operational() {
			return forbidden("store subscription is not active").
				WithDetails(map[string]any{"status": status})
		}
		if access == AccessAdmin && actor.Role != enums.RoleAdmin {
			return forbidden("store admin role required")
		}
		return nil
	default:
		return forbidden("role is not allowed")
	}
}

func forbidden(msg string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeForbidden, msg)
}
