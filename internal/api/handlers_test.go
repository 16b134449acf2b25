package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/coordcore/internal/backup"
	"github.com/phrazzld/coordcore/internal/job"
	"github.com/phrazzld/coordcore/internal/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeBackupStore struct {
	names     []string
	snapshots map[string]backup.Snapshot
	listErr   error
}

func (f *fakeBackupStore) List(context.Context) ([]string, error) {
	return f.names, f.listErr
}

func (f *fakeBackupStore) Load(_ context.Context, name string) (backup.Snapshot, error) {
	snap, ok := f.snapshots[name]
	if !ok {
		return backup.Snapshot{}, backup.ErrNotFound
	}
	return snap, nil
}

type fakeJob struct {
	status job.Status
}

func (f fakeJob) Status() job.Status { return f.status }

func newTestRouter(l Ledger, store BackupStore, jobs ...StatusReporter) http.Handler {
	ledgerHandler := NewLedgerHandler(l)
	backupHandler := NewBackupHandler(store)
	jobHandler := NewJobHandler(jobs...)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Get("/ledger", ledgerHandler.GetLedger)
		r.Post("/ledger/credit", ledgerHandler.Credit)
		r.Post("/ledger/debit", ledgerHandler.Debit)
		r.Get("/backups", backupHandler.ListBackups)
		r.Get("/backups/{name}", backupHandler.GetBackup)
		r.Get("/jobs", jobHandler.ListJobs)
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestLedgerHandler(t *testing.T) {
	l := ledger.New(500, ledger.WithLogger(setupTestLogger()))
	router := newTestRouter(l, &fakeBackupStore{})

	w := do(t, router, http.MethodPost, "/api/ledger/credit", `{"amount": 100}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(600), decode[BalanceResponse](t, w).Balance)

	w = do(t, router, http.MethodPost, "/api/ledger/debit", `{"amount": 250}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(350), decode[BalanceResponse](t, w).Balance)

	w = do(t, router, http.MethodPost, "/api/ledger/debit", `{"amount": 1000}`)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Insufficient funds", decode[map[string]string](t, w)["error"])

	w = do(t, router, http.MethodGet, "/api/ledger", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, LedgerResponse{Balance: 350, Credits: 1, Debits: 1, Rejected: 1}, decode[LedgerResponse](t, w))
}

func TestLedgerHandler_BadRequests(t *testing.T) {
	l := ledger.New(500)
	router := newTestRouter(l, &fakeBackupStore{})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"malformed", `{"amount":`, "Invalid request format"},
		{"unknown field", `{"amount": 1, "memo": "x"}`, "Invalid request format"},
		{"trailing data", `{"amount": 1} {}`, "Invalid request format"},
		{"missing amount", `{}`, "Validation error: amount: required field"},
		{"negative amount", `{"amount": -5}`, "Validation error: amount: must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPost, "/api/ledger/credit", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.message, decode[map[string]string](t, w)["error"])
		})
	}

	assert.Equal(t, int64(500), l.Balance(), "rejected requests must not mutate the ledger")
}

func TestBackupHandler(t *testing.T) {
	name := "backup_20250301_120000_000000000.json"
	store := &fakeBackupStore{
		names: []string{name},
		snapshots: map[string]backup.Snapshot{
			name: {
				ID:        "0b6c1b2e-5d7c-4a6b-9d1e-2f3a4b5c6d7e",
				Timestamp: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
				Sections: map[string]json.RawMessage{
					"herramientas": json.RawMessage(`[{"id":1}]`),
					"prestamos":    json.RawMessage(`[]`),
				},
				Error: "prestamos: timeout",
			},
		},
	}
	router := newTestRouter(ledger.New(0), store)

	w := do(t, router, http.MethodGet, "/api/backups", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{name}, decode[BackupListResponse](t, w).Backups)

	w = do(t, router, http.MethodGet, "/api/backups/"+name, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[SnapshotResponse](t, w)
	assert.Equal(t, name, resp.Name)
	assert.Equal(t, "prestamos: timeout", resp.Error)
	assert.JSONEq(t, `[{"id":1}]`, string(resp.Sections["herramientas"]))

	w = do(t, router, http.MethodGet, "/api/backups/backup_20250301_130000_000000000.json", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/backups/passwd", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBackupHandler_EmptyAndFailingList(t *testing.T) {
	router := newTestRouter(ledger.New(0), &fakeBackupStore{})
	w := do(t, router, http.MethodGet, "/api/backups", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"backups":[]}`, w.Body.String())

	router = newTestRouter(ledger.New(0), &fakeBackupStore{listErr: errors.New("bucket gone")})
	w = do(t, router, http.MethodGet, "/api/backups", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "bucket gone")
}

func TestJobHandler(t *testing.T) {
	router := newTestRouter(ledger.New(0), &fakeBackupStore{},
		fakeJob{job.Status{Name: "backup", Running: true, Runs: 3, Failures: 1}},
		fakeJob{job.Status{Name: "heartbeat", Running: true, Runs: 10}},
	)

	w := do(t, router, http.MethodGet, "/api/jobs", "")
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[map[string][]job.Status](t, w)
	require.Len(t, resp["jobs"], 2)
	assert.Equal(t, "backup", resp["jobs"][0].Name)
	assert.Equal(t, int64(1), resp["jobs"][0].Failures)
	assert.Equal(t, int64(10), resp["jobs"][1].Runs)
}

func TestMapErrorToStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{ledger.ErrInvalidAmount, http.StatusBadRequest},
		{backup.ErrInvalidName, http.StatusBadRequest},
		{backup.ErrNotFound, http.StatusNotFound},
		{backup.ErrNoBackups, http.StatusNotFound},
		{ledger.ErrInsufficientFunds, http.StatusConflict},
		{ledger.ErrBalanceOverflow, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.code, MapErrorToStatusCode(tt.err))
			assert.NotEmpty(t, GetSafeErrorMessage(tt.err))
		})
	}
	assert.Equal(t, "An unexpected error occurred", GetSafeErrorMessage(nil))
}
