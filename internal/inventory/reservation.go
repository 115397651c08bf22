// Package inventory validates and decrements product stock for an order under
// row-level locks.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Item is one requested (product, quantity) pair.
type Item struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
}

// Line is an item priced with the value read from the catalog.
type Line struct {
	ProductID uuid.UUID
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Available int
}

// Reservation holds the locked, validated view of an order. Nothing is
// written until Apply runs inside the same transaction.
type Reservation struct {
	TenantID uuid.UUID
	Lines    []Line
	Subtotal decimal.Decimal

	locked  bool
	applied bool
}

// Normalize validates items, merges duplicate products and sorts by product id
// so locks are always taken in the same order.
func Normalize(items []Item) ([]Item, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order contains no items")
	}
	merged := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: product id required", i))
		}
		if item.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: quantity must be positive", i)).
				WithDetails(map[string]any{"product_id": item.ProductID.String(), "quantity": item.Quantity})
		}
		merged[item.ProductID] += item.Quantity
	}

	out := make([]Item, 0, len(merged))
	for id, qty := range merged {
		out = append(out, Item{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ProductID.String() < out[j].ProductID.String()
	})
	return out, nil
}

// Lock takes the row locks of every product in the order, in ascending id
// order, without validating anything. Callers use it to serialize on the
// order's products before running checks that must see committed state.
func Lock(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, items []Item) error {
	normalized, err := Normalize(items)
	if err != nil {
		return err
	}
	ids := make([]uuid.UUID, len(normalized))
	for i, item := range normalized {
		ids[i] = item.ProductID
	}
	var locked []uuid.UUID
	err = tx.WithContext(ctx).
		Model(&models.Product{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC").
		Pluck("id", &locked).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
	}
	return nil
}

// Prepare locks every product row of the order (FOR UPDATE, ascending id),
// checks ownership, active flag and stock, and prices each line with the
// locked price. It must run inside tx; an error leaves nothing staged.
func Prepare(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, items []Item) (*Reservation, error) {
	return load(ctx, tx, tenantID, items, true)
}

// Check runs the same validation as Prepare without locking. The result is
// advisory and must not be applied.
func Check(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, items []Item) (*Reservation, error) {
	return load(ctx, db, tenantID, items, false)
}

// Reserve is Prepare followed by Apply.
func Reserve(ctx context.Context, tx *gorm.DB, tenantID uuid.UUID, items []Item) (*Reservation, error) {
	res, err := Prepare(ctx, tx, tenantID, items)
	if err != nil {
		return nil, err
	}
	if err := res.Apply(ctx, tx); err != nil {
		return nil, err
	}
	return res, nil
}

func load(ctx context.Context, db *gorm.DB, tenantID uuid.UUID, items []Item, lock bool) (*Reservation, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "db required")
	}
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tenant id required")
	}
	normalized, err := Normalize(items)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(normalized))
	for i, item := range normalized {
		ids[i] = item.ProductID
	}

	query := db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC")
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var products []models.Product
	if err := query.Find(&products).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	res := &Reservation{
		TenantID: tenantID,
		Lines:    make([]Line, 0, len(normalized)),
		Subtotal: decimal.Zero,
		locked:   lock,
	}
	for _, item := range normalized {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("product %s is not available", product.Name)).
				WithDetails(map[string]any{"product_id": product.ID.String()})
		}
		if product.Stock < item.Quantity {
			return nil, InsufficientStock(product, item.Quantity)
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		res.Lines = append(res.Lines, Line{
			ProductID: product.ID,
			Name:      product.Name,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			Total:     lineTotal,
			Available: product.Stock,
		})
		res.Subtotal = res.Subtotal.Add(lineTotal)
	}
	res.Subtotal = res.Subtotal.Round(2)
	return res, nil
}

// InsufficientStock builds the error reported when a product cannot cover the
// requested quantity.
func InsufficientStock(product models.Product, requested int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", product.Name)).
		WithDetails(map[string]any{
			"product_id": product.ID.String(),
			"product":    product.Name,
			"requested":  requested,
			"available":  product.Stock,
		})
}

// Apply decrements stock for every line with a single UPDATE. It may run
// once, and only on a reservation produced by Prepare in the same tx.
func (r *Reservation) Apply(ctx context.Context, tx *gorm.DB) error {
	if r == nil || len(r.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeInternal, "empty reservation")
	}
	if !r.locked {
		return pkgerrors.New(pkgerrors.CodeInternal, "reservation was not taken under lock")
	}
	if r.applied {
		return pkgerrors.New(pkgerrors.CodeInternal, "reservation already applied")
	}

	expr, ids := decrementExpr(r.Lines)
	result := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("tenant_id = ? AND id IN ?", r.TenantID, ids).
		Updates(map[string]any{
			"stock":      expr,
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "decrement stock")
	}
	if result.RowsAffected != int64(len(ids)) {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "stock decrement touched an unexpected number of rows").
			WithDetails(map[string]any{"expected": len(ids), "updated": result.RowsAffected})
	}
	r.applied = true
	return nil
}

// decrementExpr builds `stock - CASE id WHEN .. THEN .. END` for lines.
// Quantities are cast so the CASE is integer-typed under prepared statements.
func decrementExpr(lines []Line) (clause.Expr, []uuid.UUID) {
	var (
		sb   strings.Builder
		args = make([]any, 0, len(lines)*2)
		ids  = make([]uuid.UUID, 0, len(lines))
	)
	sb.WriteString("stock - CASE id")
	for _, line := range lines {
		sb.WriteString(" WHEN ? THEN CAST(? AS integer)")
		args = append(args, line.ProductID, line.Quantity)
		ids = append(ids, line.ProductID)
	}
	sb.WriteString(" END")
	return gorm.Expr(sb.String(), args...), ids
}

// Quantities returns product id -> quantity for the reservation.
func (r *Reservation) Quantities() map[uuid.UUID]int {
	out := make(map[uuid.UUID]int, len(r.Lines))
	for _, line := range r.Lines {
		out[line.ProductID] = line.Quantity
	}
	return out
}
