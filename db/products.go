package db

import (
	"context"
	"database/sql"

	"github.com/pdv-retail/business-alerts/model"
	"github.com/pkg/errors"
)

// ListProducts returns every product along with its stock position. Missing quantities are
// reported as zero.
func ListProducts(ctx context.Context, q Queryer) ([]model.Product, error) {
	wrapMsg := "unable to list products"

	builder := psql.
		Select(
			"id::text",
			"COALESCE(name, '')",
			"COALESCE(stock_quantity, 0)",
			"COALESCE(min_stock, 0)",
		).
		From("products").
		OrderBy("id")

	products := make([]model.Product, 0)
	err := queryRows(ctx, q, builder, func(rows *sql.Rows) error {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.StockQuantity, &p.MinStock); err != nil {
			return err
		}
		products = append(products, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return products, nil
}
