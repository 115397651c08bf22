package checkout

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/angelmondragon/tiendas-backend/internal/inventory"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/google/uuid"
)

// Session metadata keys. The payment provider is the only store between the
// quote and the confirmation, so everything settlement needs travels here.
const (
	metaCustomerID       = "customer_id"
	metaTenantID         = "tenant_id"
	metaDeliveryAddress  = "delivery_address"
	metaItems            = "items"
	metaShippingSchedule = "shipping_schedule"
	metaSalespersonID    = "salesperson_id"
)

// maxMetadataValue is the provider's per-value limit.
const maxMetadataValue = 500

// orderMetadata is the order attached to a checkout session.
type orderMetadata struct {
	CustomerID       uuid.UUID
	TenantID         uuid.UUID
	DeliveryAddress  string
	Items            []inventory.Item
	ShippingSchedule string
	SalespersonID    *uuid.UUID
}

type metadataItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (m orderMetadata) encode() (map[string]string, error) {
	if len(m.DeliveryAddress) > maxMetadataValue {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address too long")
	}
	items := make([]metadataItem, len(m.Items))
	for i, item := range m.Items {
		items[i] = metadataItem{ProductID: item.ProductID.String(), Quantity: item.Quantity}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal items metadata: %w", err)
	}

	out := map[string]string{
		metaCustomerID:       m.CustomerID.String(),
		metaTenantID:         m.TenantID.String(),
		metaDeliveryAddress:  m.DeliveryAddress,
		metaShippingSchedule: m.ShippingSchedule,
	}
	if m.SalespersonID != nil {
		out[metaSalespersonID] = m.SalespersonID.String()
	}

	if len(raw) <= maxMetadataValue {
		out[metaItems] = string(raw)
		return out, nil
	}
	for i, chunk := range chunk(string(raw), maxMetadataValue) {
		out[metaItems+"_"+strconv.Itoa(i)] = chunk
	}
	return out, nil
}

func decodeMetadata(meta map[string]string) (orderMetadata, error) {
	var out orderMetadata
	invalid := func(field string) error {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment session metadata is incomplete").
			WithDetails(map[string]any{"field": field})
	}

	customerID, err := uuid.Parse(meta[metaCustomerID])
	if err != nil {
		return out, invalid(metaCustomerID)
	}
	tenantID, err := uuid.Parse(meta[metaTenantID])
	if err != nil {
		return out, invalid(metaTenantID)
	}
	out.CustomerID = customerID
	out.TenantID = tenantID
	out.DeliveryAddress = strings.TrimSpace(meta[metaDeliveryAddress])
	out.ShippingSchedule = meta[metaShippingSchedule]

	if raw := meta[metaSalespersonID]; raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return out, invalid(metaSalespersonID)
		}
		out.SalespersonID = &id
	}

	raw, ok := meta[metaItems]
	if !ok {
		var sb strings.Builder
		for i := 0; ; i++ {
			part, ok := meta[metaItems+"_"+strconv.Itoa(i)]
			if !ok {
				break
			}
			sb.WriteString(part)
		}
		raw = sb.String()
	}
	var items []metadataItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil || len(items) == 0 {
		return out, invalid(metaItems)
	}
	out.Items = make([]inventory.Item, len(items))
	for i, item := range items {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return out, invalid(metaItems)
		}
		out.Items[i] = inventory.Item{ProductID: id, Quantity: item.Quantity}
	}
	return out, nil
}

func chunk(s string, size int) []string {
	var out []string
	for len(s) > size {
		out = append(out, s[:size])
		s = s[size:]
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}
