package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/angelmondragon/tiendas-backend/pkg/errors"
)

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_payments_provider_reference"}
	pqErr := &pq.Error{Code: "23505", Constraint: "ux_payments_provider_reference"}
	fkErr := &pgconn.PgError{Code: "23503", ConstraintName: "fk_sales_tenant"}
	sqliteErr := errors.New("UNIQUE constraint failed: payments.provider_reference")

	tests := []struct {
		name       string
		err        error
		constraint string
		want       bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "pgx matching constraint", err: fmt.Errorf("insert: %w", pgErr), constraint: "ux_payments_provider_reference", want: true},
		{name: "pgx other constraint", err: pgErr, constraint: "ux_sales_cart", want: false},
		{name: "pgx any constraint", err: pgErr, want: true},
		{name: "pq matching constraint", err: pqErr, constraint: "ux_payments_provider_reference", want: true},
		{name: "foreign key is not unique", err: fkErr, want: false},
		{name: "sqlite column reference", err: sqliteErr, constraint: "payments.provider_reference", want: true},
		{name: "sqlite other column", err: sqliteErr, constraint: "sales.cart_id", want: false},
		{name: "sqlite wrapped by typed error", err: pkgerrors.Wrap(pkgerrors.CodeInternal, sqliteErr, "create payment"), constraint: "payments.provider_reference", want: true},
		{name: "plain error", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUniqueViolation(tt.err, tt.constraint))
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "deadlock", err: fmt.Errorf("settle: %w", &pgconn.PgError{Code: "40P01"}), want: true},
		{name: "serialization", err: &pq.Error{Code: "40001"}, want: true},
		{name: "lock timeout", err: &pgconn.PgError{Code: "55P03"}, want: true},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: false},
		{name: "sqlite busy", err: errors.New("database is locked"), want: true},
		{name: "plain", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
