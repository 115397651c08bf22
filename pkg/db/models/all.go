package models

// All lists every persisted model, in dependency order, for AutoMigrate in
// dev and tests.
func All() []any {
	return []any{
		&Plan{},
		&Tenant{},
		&User{},
		&Customer{},
		&TenantCustomer{},
		&Salesperson{},
		&Category{},
		&Brand{},
		&Product{},
		&ProductPriceLog{},
		&Cart{},
		&CartItem{},
		&Sale{},
		&SaleItem{},
		&Payment{},
		&Shipment{},
		&AuditLog{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
