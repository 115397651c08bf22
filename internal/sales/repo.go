package sales

import (
	"context"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	"github.com/angelmondragon/tiendas-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and transitions sales.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	List(ctx context.Context, params listParams) ([]models.Sale, error)
	FindDetail(ctx context.Context, tenantID, saleID uuid.UUID) (*models.Sale, error)
	LockSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error)
	UpdateStatus(ctx context.Context, saleID uuid.UUID, status enums.SaleStatus) error
	UpdateShipmentStatus(ctx context.Context, saleID uuid.UUID, status enums.ShipmentStatus) error
	DecrementSalesCount(ctx context.Context, salespersonID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sales repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

type listParams struct {
	TenantID   uuid.UUID
	Status     *enums.SaleStatus
	CustomerID *uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.Sale, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("tenant_id = ?", params.TenantID)
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.Cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", params.Cursor.CreatedAt, params.Cursor.ID)
	}

	var rows []models.Sale
	if err := query.Order("created_at DESC, id DESC").Limit(params.Limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindDetail(ctx context.Context, tenantID, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Preload("Shipment").
		Where("id = ? AND tenant_id = ?", saleID, tenantID).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) LockSale(ctx context.Context, saleID uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", saleID).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) UpdateStatus(ctx context.Context, saleID uuid.UUID, status enums.SaleStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ?", saleID).
		Update("status", status).Error
}

func (r *repository) UpdateShipmentStatus(ctx context.Context, saleID uuid.UUID, status enums.ShipmentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Shipment{}).
		Where("sale_id = ?", saleID).
		Update("status", status).Error
}

// DecrementSalesCount never takes the counter below zero.
func (r *repository) DecrementSalesCount(ctx context.Context, salespersonID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Salesperson{}).
		Where("id = ? AND sales_count > 0", salespersonID).
		UpdateColumn("sales_count", gorm.Expr("sales_count - 1")).Error
}
