package enums

import (
	"fmt"
	"slices"
)

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateSale    OutboxAggregateType = "sale"
	AggregateProduct OutboxAggregateType = "product"
	AggregateTenant  OutboxAggregateType = "tenant"
)

// OutboxEventType maps to the event_type enum in Postgres. The prefix before
// the dot names the aggregate the event belongs to.
type OutboxEventType string

const (
	EventSaleSettled       OutboxEventType = "sale.settled"
	EventSaleStatusChanged OutboxEventType = "sale.status_changed"
	EventProductRepriced   OutboxEventType = "product.repriced"
	EventTenantProvisioned OutboxEventType = "tenant.provisioned"
)

var eventAggregates = map[OutboxEventType]OutboxAggregateType{
	EventSaleSettled:       AggregateSale,
	EventSaleStatusChanged: AggregateSale,
	EventProductRepriced:   AggregateProduct,
	EventTenantProvisioned: AggregateTenant,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	switch a {
	case AggregateSale, AggregateProduct, AggregateTenant:
		return true
	}
	return false
}

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	if a := OutboxAggregateType(value); a.IsValid() {
		return a, nil
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	_, ok := eventAggregates[e]
	return ok
}

// Aggregate returns the aggregate type the event is recorded against, or ""
// for unknown events.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	return eventAggregates[e]
}

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	if e := OutboxEventType(value); e.IsValid() {
		return e, nil
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// OutboxEventTypes lists every event type in lexical order.
func OutboxEventTypes() []OutboxEventType {
	out := make([]OutboxEventType, 0, len(eventAggregates))
	for e := range eventAggregates {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}
