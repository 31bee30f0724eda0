package db

import (
	"context"
	"database/sql"

	"github.com/pdv-retail/business-alerts/model"
	"github.com/pkg/errors"
)

// ListCustomers returns every registered customer. Missing birth dates come back as empty strings.
func ListCustomers(ctx context.Context, q Queryer) ([]model.Customer, error) {
	wrapMsg := "unable to list customers"

	builder := psql.
		Select(
			"id::text",
			"COALESCE(name, '')",
			"COALESCE(email, '')",
			"COALESCE(phone, '')",
			"COALESCE(birth_date::text, '')",
		).
		From("customers").
		OrderBy("name", "id")

	customers := make([]model.Customer, 0)
	err := queryRows(ctx, q, builder, func(rows *sql.Rows) error {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.BirthDate); err != nil {
			return err
		}
		customers = append(customers, c)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return customers, nil
}
