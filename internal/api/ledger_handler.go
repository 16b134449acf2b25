package api

import (
	"context"
	"net/http"

	"github.com/phrazzld/coordcore/internal/api/shared"
	"github.com/phrazzld/coordcore/internal/ledger"
)

// Ledger is the subset of *ledger.Ledger the handler needs.
type Ledger interface {
	Credit(ctx context.Context, amount int64) (int64, error)
	Debit(ctx context.Context, amount int64) (int64, error)
	Balance() int64
	Stats() ledger.Stats
}

// LedgerHandler handles ledger HTTP requests
type LedgerHandler struct {
	ledger Ledger
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(l Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: l}
}

// GetLedger handles GET /api/ledger requests
func (h *LedgerHandler) GetLedger(w http.ResponseWriter, r *http.Request) {
	stats := h.ledger.Stats()
	shared.RespondWithJSON(w, r, http.StatusOK, LedgerResponse{
		Balance:  h.ledger.Balance(),
		Credits:  stats.Credits,
		Debits:   stats.Debits,
		Rejected: stats.Rejected,
	})
}

// Credit handles POST /api/ledger/credit requests
func (h *LedgerHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.ledger.Credit)
}

// Debit handles POST /api/ledger/debit requests
func (h *LedgerHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, h.ledger.Debit)
}

func (h *LedgerHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	op func(ctx context.Context, amount int64) (int64, error),
) {
	var req AmountRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, shared.ValidationMessage(err))
		return
	}

	balance, err := op(r.Context(), req.Amount)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, BalanceResponse{Balance: balance})
}
