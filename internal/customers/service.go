// Package customers manages buyer profiles and their loyalty counters.
package customers

import (
	"context"
	"errors"

	"github.com/angelmondragon/tiendas-backend/pkg/db"
	"github.com/angelmondragon/tiendas-backend/pkg/db/models"
	"github.com/angelmondragon/tiendas-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// PointsRate is the share of a settled total credited as loyalty points.
var PointsRate = decimal.RequireFromString("0.0005")

// PointsFor returns the loyalty points earned by a settled total.
func PointsFor(total decimal.Decimal) decimal.Decimal {
	return total.Mul(PointsRate)
}

type userLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Profile is the loyalty view returned to the customer.
type Profile struct {
	CustomerID        uuid.UUID       `json:"customer_id"`
	Email             string          `json:"email"`
	FirstName         string          `json:"first_name"`
	LastName          string          `json:"last_name"`
	LoyaltyTier       string          `json:"loyalty_tier"`
	PointsAccumulated decimal.Decimal `json:"points_accumulated"`
	Stores            int64           `json:"stores"`
}

// Service resolves customer profiles for users.
type Service interface {
	// EnsureForUser returns the customer profile of a customer-role user,
	// creating it on first use.
	EnsureForUser(ctx context.Context, userID uuid.UUID) (*models.Customer, *models.User, error)
	Profile(ctx context.Context, userID uuid.UUID) (*Profile, error)
}

type service struct {
	repo  Repository
	users userLoader
}

func NewService(repo Repository, users userLoader) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "customer repository required")
	}
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user loader required")
	}
	return &service{repo: repo, users: users}, nil
}

func (s *service) EnsureForUser(ctx context.Context, userID uuid.UUID) (*models.Customer, *models.User, error) {
	if userID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "user is inactive")
	}
	if user.Role != enums.RoleCustomer {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can place orders")
	}

	customer, err := s.repo.FindByUserID(ctx, userID)
	if err == nil {
		return customer, user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
	}

	customer = &models.Customer{UserID: userID, LoyaltyTier: "BRONZE", PointsAccumulated: decimal.Zero}
	if err := s.repo.Create(ctx, customer); err != nil {
		if db.IsUniqueViolation(err, "ux_customers_user") || db.IsUniqueViolation(err, "customers.user_id") {
			existing, ferr := s.repo.FindByUserID(ctx, userID)
			if ferr != nil {
				return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, ferr, "load customer")
			}
			return existing, user, nil
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer")
	}
	return customer, user, nil
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	customer, user, err := s.EnsureForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	stores, err := s.repo.CountTenants(ctx, customer.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count stores")
	}
	return &Profile{
		CustomerID:        customer.ID,
		Email:             user.Email,
		FirstName:         user.FirstName,
		LastName:          user.LastName,
		LoyaltyTier:       customer.LoyaltyTier,
		PointsAccumulated: customer.PointsAccumulated,
		Stores:            stores,
	}, nil
}
