package enums

import "fmt"

// TenantStatus captures the subscription state of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "ACTIVE"
	TenantStatusInactive  TenantStatus = "INACTIVE"
	TenantStatusCancelled TenantStatus = "CANCELLED"
	TenantStatusTrial     TenantStatus = "TRIAL"
)

var validTenantStatuses = []TenantStatus{
	TenantStatusActive,
	TenantStatusInactive,
	TenantStatusCancelled,
	TenantStatusTrial,
}

// String implements fmt.Stringer.
func (s TenantStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TenantStatus.
func (s TenantStatus) IsValid() bool {
	for _, candidate := range validTenantStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseTenantStatus converts raw input into a TenantStatus.
func ParseTenantStatus(value string) (TenantStatus, error) {
	for _, candidate := range validTenantStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tenant status %q", value)
}

// Operational reports whether tenant staff may act on the tenant.
func (s TenantStatus) Operational() bool {
	return s == TenantStatusActive || s == TenantStatusTrial
}
