package checkout

import (
	"context"
	"errors"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes the reads and writes of the settlement path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	FindSalesperson(ctx context.Context, id, tenantID uuid.UUID) (*models.Salesperson, error)
	FindSettledSale(ctx context.Context, paymentReference string) (*models.Sale, error)
	CreateCart(ctx context.Context, cart *models.Cart) error
	CreateSale(ctx context.Context, sale *models.Sale) error
	CreatePayment(ctx context.Context, payment *models.Payment) error
	CreateShipment(ctx context.Context, shipment *models.Shipment) error
	IncrementSalesCount(ctx context.Context, salespersonID, tenantID uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a checkout repository backed by the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.db.WithContext(ctx).First(&tenant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repository) FindSalesperson(ctx context.Context, id, tenantID uuid.UUID) (*models.Salesperson, error) {
	var sp models.Salesperson
	if err := r.db.WithContext(ctx).First(&sp, "id = ? AND tenant_id = ?", id, tenantID).Error; err != nil {
		return nil, err
	}
	return &sp, nil
}

// FindSettledSale returns the sale already settled for a provider reference,
// or nil when there is none.
func (r *repository) FindSettledSale(ctx context.Context, paymentReference string) (*models.Sale, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("provider_reference = ?", paymentReference).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sale models.Sale
	if err := r.db.WithContext(ctx).First(&sale, "id = ?", payment.SaleID).Error; err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) CreateCart(ctx context.Context, cart *models.Cart) error {
	return r.db.WithContext(ctx).Create(cart).Error
}

func (r *repository) CreateSale(ctx context.Context, sale *models.Sale) error {
	return r.db.WithContext(ctx).Create(sale).Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

func (r *repository) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repository) IncrementSalesCount(ctx context.Context, salespersonID, tenantID uuid.UUID) error {
	result := r.db.WithContext(ctx).
		Model(&models.Salesperson{}).
		Where("id = ? AND tenant_id = ?", salespersonID, tenantID).
		UpdateColumn("sales_count", gorm.Expr("sales_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
