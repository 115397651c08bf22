package catalog

import (
	"context"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists product price changes and soft deletes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
	LockProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error)
	UpdatePrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) error
	InsertPriceLog(ctx context.Context, entry *models.ProductPriceLog) error
	ListPriceLogs(ctx context.Context, productID uuid.UUID) ([]models.ProductPriceLog, error)
	Deactivate(ctx context.Context, productID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a catalog repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("id = ? AND tenant_id = ?", productID, tenantID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) LockProduct(ctx context.Context, tenantID, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND tenant_id = ?", productID, tenantID).
		First(&product).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) UpdatePrice(ctx context.Context, productID uuid.UUID, price decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Update("price", price).Error
}

func (r *repository) InsertPriceLog(ctx context.Context, entry *models.ProductPriceLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListPriceLogs(ctx context.Context, productID uuid.UUID) ([]models.ProductPriceLog, error) {
	var rows []models.ProductPriceLog
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC, id DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Deactivate(ctx context.Context, productID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("is_active", false).Error
}
