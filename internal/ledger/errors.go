package ledger

import "errors"

// Common errors returned by the Ledger
var (
	// ErrInsufficientFunds is returned by Debit when the balance is lower than
	// the requested amount. The ledger is left untouched.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrBalanceOverflow is returned when a credit would overflow the balance.
	ErrBalanceOverflow = errors.New("balance overflow")
)
