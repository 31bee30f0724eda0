package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pdv-retail/business-alerts/common"
	"github.com/pdv-retail/business-alerts/model"
)

// Store provides access to the store's business records.
type Store struct {
	db *sql.DB
}

// NewStore returns a new Store backed by the given database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListProducts returns every product.
func (s *Store) ListProducts(ctx context.Context) ([]model.Product, error) {
	return ListProducts(ctx, s.db)
}

// ListPayables returns the unpaid bills.
func (s *Store) ListPayables(ctx context.Context) ([]model.Payable, error) {
	return ListPayables(ctx, s.db)
}

// ListReceivables returns the amounts that haven't been received yet.
func (s *Store) ListReceivables(ctx context.Context) ([]model.Receivable, error) {
	return ListReceivables(ctx, s.db)
}

// ListCustomers returns every customer.
func (s *Store) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return ListCustomers(ctx, s.db)
}

// ListChecks returns the pending checks.
func (s *Store) ListChecks(ctx context.Context) ([]model.Check, error) {
	return ListChecks(ctx, s.db)
}

// Settings returns the store settings.
func (s *Store) Settings(ctx context.Context, fallback *time.Location) (*common.Settings, error) {
	return GetSettings(ctx, s.db, fallback)
}
