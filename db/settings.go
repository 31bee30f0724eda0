package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/pdv-retail/business-alerts/common"
	"github.com/pkg/errors"
)

// GetSettings loads the store settings. The fallback location is used when the store hasn't
// configured a time zone or hasn't saved any settings at all.
func GetSettings(ctx context.Context, q Queryer, fallback *time.Location) (*common.Settings, error) {
	wrapMsg := "unable to load the store settings"

	// Build the query.
	statement, args, err := psql.
		Select("COALESCE(store_name, '')", "COALESCE(timezone, '')").
		From("store_settings").
		OrderBy("updated_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	// Query the database.
	var storeName, timezone string
	err = q.QueryRowContext(ctx, statement, args...).Scan(&storeName, &timezone)
	if err == sql.ErrNoRows {
		return common.DefaultSettings(fallback), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, wrapMsg)
	}

	settings := common.DefaultSettings(fallback)
	settings.StoreName = storeName
	if timezone != "" {
		location, err := time.LoadLocation(timezone)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: invalid time zone `%s`", wrapMsg, timezone)
		}
		settings.Location = location
	}

	return settings, nil
}
