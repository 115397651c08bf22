package customers

import (
	"context"

	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes customer persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error)
	Create(ctx context.Context, customer *models.Customer) error
	LinkTenant(ctx context.Context, tenantID, customerID uuid.UUID) error
	AddPoints(ctx context.Context, customerID uuid.UUID, points decimal.Decimal) error
	CountTenants(ctx context.Context, customerID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Customer, error) {
	var c models.Customer
	if err := r.db.WithContext(ctx).First(&c, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *repository) Create(ctx context.Context, customer *models.Customer) error {
	return r.db.WithContext(ctx).Create(customer).Error
}

// LinkTenant records that the customer bought from the tenant. Existing links are kept.
func (r *repository) LinkTenant(ctx context.Context, tenantID, customerID uuid.UUID) error {
	link := models.TenantCustomer{TenantID: tenantID, CustomerID: customerID}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&link).Error
}

// AddPoints increments the loyalty counter in place; the column is never read
// back and rewritten.
func (r *repository) AddPoints(ctx context.Context, customerID uuid.UUID, points decimal.Decimal) error {
	result := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		UpdateColumn("points_accumulated", gorm.Expr("points_accumulated + ?", points))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) CountTenants(ctx context.Context, customerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.TenantCustomer{}).Where("customer_id = ?", customerID).Count(&count).Error
	return count, err
}
