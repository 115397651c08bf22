package enums

import "fmt"

// SaleStatus tracks the fulfillment lifecycle of a settled sale.
type SaleStatus string

const (
	SaleStatusProcessed SaleStatus = "PROCESSED"
	SaleStatusShipped   SaleStatus = "SHIPPED"
	SaleStatusDelivered SaleStatus = "DELIVERED"
	SaleStatusCancelled SaleStatus = "CANCELLED"
)

var validSaleStatuses = []SaleStatus{
	SaleStatusProcessed,
	SaleStatusShipped,
	SaleStatusDelivered,
	SaleStatusCancelled,
}

// String implements fmt.Stringer.
func (s SaleStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SaleStatus.
func (s SaleStatus) IsValid() bool {
	for _, candidate := range validSaleStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSaleStatus converts raw input into a SaleStatus.
func ParseSaleStatus(value string) (SaleStatus, error) {
	for _, candidate := range validSaleStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale status %q", value)
}

// Terminal reports whether no further transitions are allowed.
func (s SaleStatus) Terminal() bool {
	return s == SaleStatusDelivered || s == SaleStatusCancelled
}
