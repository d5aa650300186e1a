package persistence

import (
	"errors"
	"fmt"

	"github.com/erp/gestao/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// translateError maps driver errors onto domain errors. Unknown errors pass through wrapped.
func translateError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return detailed(shared.ErrAlreadyExists, pgErr)
	case "23503", // foreign_key_violation
		"23502", // not_null_violation
		"23514", // check_violation
		"22P02", // invalid_text_representation
		"22003", // numeric_value_out_of_range
		"22007", // invalid_datetime_format
		"22001": // string_data_right_truncation
		return detailed(shared.ErrInvalidInput, pgErr)
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return shared.ErrConcurrencyConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}

func detailed(base *shared.DomainError, pgErr *pgconn.PgError) error {
	msg := base.Message
	switch {
	case pgErr.ColumnName != "":
		msg = fmt.Sprintf("%s (%s)", msg, pgErr.ColumnName)
	case pgErr.ConstraintName != "":
		msg = fmt.Sprintf("%s (%s)", msg, pgErr.ConstraintName)
	}
	return shared.NewDomainError(base.Code, msg)
}

// fatalConnectError reports connection failures that retrying cannot fix
func fatalConnectError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "28P01", // invalid_password
		"28000", // invalid_authorization_specification
		"3D000": // invalid_catalog_name
		return true
	}
	return false
}
