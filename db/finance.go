package db

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pdv-retail/business-alerts/common"
	"github.com/pdv-retail/business-alerts/model"
	"github.com/pkg/errors"

	sq "github.com/Masterminds/squirrel"
)

// pqUndefinedTable is the Postgres error code for a reference to a missing relation.
const pqUndefinedTable = "42P01"

// statusOtherThan matches rows whose status differs from the given one, including rows
// without a status.
func statusOtherThan(status string) sq.Sqlizer {
	return sq.Or{
		sq.NotEq{"status": status},
		sq.Eq{"status": nil},
	}
}

// ListPayables returns the bills that have not been paid yet.
func ListPayables(ctx context.Context, q Queryer) ([]model.Payable, error) {
	wrapMsg := "unable to list accounts payable"

	builder := psql.
		Select(
			"id::text",
			"COALESCE(description, '')",
			"COALESCE(amount, 0)",
			"COALESCE(status, '')",
			"COALESCE(due_date::text, '')",
		).
		From("accounts_payable").
		Where(statusOtherThan(model.PayableStatusPaid)).
		OrderBy("due_date", "id")

	payables := make([]model.Payable, 0)
	err := queryRows(ctx, q, builder, func(rows *sql.Rows) error {
		var p model.Payable
		if err := rows.Scan(&p.ID, &p.Description, &p.Amount, &p.Status, &p.DueDate); err != nil {
			return err
		}
		payables = append(payables, p)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return payables, nil
}

// ListReceivables returns the amounts owed by customers that have not been received yet.
func ListReceivables(ctx context.Context, q Queryer) ([]model.Receivable, error) {
	wrapMsg := "unable to list accounts receivable"

	builder := psql.
		Select(
			"id::text",
			"COALESCE(customer_name, '')",
			"COALESCE(amount, 0)",
			"COALESCE(status, '')",
			"COALESCE(due_date::text, '')",
		).
		From("accounts_receivable").
		Where(statusOtherThan(model.ReceivableStatusReceived)).
		OrderBy("due_date", "id")

	receivables := make([]model.Receivable, 0)
	err := queryRows(ctx, q, builder, func(rows *sql.Rows) error {
		var r model.Receivable
		if err := rows.Scan(&r.ID, &r.CustomerName, &r.Amount, &r.Status, &r.DueDate); err != nil {
			return err
		}
		receivables = append(receivables, r)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	return receivables, nil
}

// ListChecks returns the checks that are still waiting to be cleared. common.ErrCollectionUnavailable is
// returned if the store's database has no checks table.
func ListChecks(ctx context.Context, q Queryer) ([]model.Check, error) {
	wrapMsg := "unable to list checks"

	builder := psql.
		Select(
			"id::text",
			"COALESCE(check_number, '')",
			"COALESCE(bank, '')",
			"COALESCE(issuer_name, '')",
			"COALESCE(amount, 0)",
			"COALESCE(status, '')",
			"COALESCE(due_date::text, '')",
			"COALESCE(compensation_date::text, '')",
		).
		From("checks").
		Where(sq.Eq{"status": model.CheckStatusPending}).
		OrderBy("id")

	checks := make([]model.Check, 0)
	err := queryRows(ctx, q, builder, func(rows *sql.Rows) error {
		var c model.Check
		err := rows.Scan(
			&c.ID,
			&c.Number,
			&c.Bank,
			&c.IssuerName,
			&c.Amount,
			&c.Status,
			&c.DueDate,
			&c.CompensationDate,
		)
		if err != nil {
			return err
		}
		checks = append(checks, c)
		return nil
	})
	if err != nil {
		if isUndefinedTable(err) {
			return nil, common.ErrCollectionUnavailable
		}
		return nil, errors.Wrap(err, wrapMsg)
	}

	return checks, nil
}

// isUndefinedTable returns true if the error was caused by a query against a missing relation.
func isUndefinedTable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUndefinedTable
	}
	return false
}
