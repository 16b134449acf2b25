package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	// undefinedTableCode is returned when the query names a missing relation
	undefinedTableCode = "42P01"

	// insufficientPrivilegeCode is returned when the role may not read the relation
	insufficientPrivilegeCode = "42501"

	// queryCanceledCode is returned when a statement timeout or cancel fires
	queryCanceledCode = "57014"
)

// Errors returned by sources, wrapping the driver error.
var (
	ErrUndefinedTable   = errors.New("relation does not exist")
	ErrPermissionDenied = errors.New("permission denied")
	ErrQueryCanceled    = errors.New("query canceled")
	ErrNoResult         = errors.New("query returned no result")
	ErrInvalidSource    = errors.New("invalid postgres source")
)

// MapError maps a database error to one of the package errors, keeping the
// original error text for debugging.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", ErrNoResult, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case undefinedTableCode:
			return fmt.Errorf("%w: %v", ErrUndefinedTable, err)
		case insufficientPrivilegeCode:
			return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
		case queryCanceledCode:
			return fmt.Errorf("%w: %v", ErrQueryCanceled, err)
		}
	}

	return err
}
