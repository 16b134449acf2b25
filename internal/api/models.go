package api

import (
	"encoding/json"
	"time"
)

// AmountRequest is the body of ledger credit and debit requests.
type AmountRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

// BalanceResponse reports the ledger balance after an operation.
type BalanceResponse struct {
	Balance int64 `json:"balance"`
}

// LedgerResponse reports the balance with mutation counters.
type LedgerResponse struct {
	Balance  int64 `json:"balance"`
	Credits  int64 `json:"credits"`
	Debits   int64 `json:"debits"`
	Rejected int64 `json:"rejected"`
}

// BackupListResponse lists artifact names, newest first.
type BackupListResponse struct {
	Backups []string `json:"backups"`
}

// SnapshotResponse is one decoded backup artifact.
type SnapshotResponse struct {
	Name      string                     `json:"name"`
	ID        string                     `json:"id"`
	Timestamp time.Time                  `json:"timestamp"`
	Sections  map[string]json.RawMessage `json:"sections"`
	Error     string                     `json:"error,omitempty"`
}
