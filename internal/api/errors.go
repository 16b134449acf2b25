package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/coordcore/internal/backup"
	"github.com/phrazzld/coordcore/internal/ledger"
)

// MapErrorToStatusCode maps component errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, backup.ErrInvalidName):
		return http.StatusBadRequest

	case errors.Is(err, backup.ErrNotFound),
		errors.Is(err, backup.ErrNoBackups):
		return http.StatusNotFound

	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusConflict

	case errors.Is(err, ledger.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err that does
// not leak internal detail.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return "Amount must be positive"
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return "Insufficient funds"
	case errors.Is(err, ledger.ErrBalanceOverflow):
		return "Balance would overflow"
	case errors.Is(err, backup.ErrInvalidName):
		return "Invalid backup name"
	case errors.Is(err, backup.ErrNotFound):
		return "Backup not found"
	case errors.Is(err, backup.ErrNoBackups):
		return "No backups available"
	default:
		return "An unexpected error occurred"
	}
}
