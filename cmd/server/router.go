package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/coordcore/internal/api"
	apiMiddleware "github.com/phrazzld/coordcore/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	ledgerHandler := api.NewLedgerHandler(app.ledger)
	backupHandler := api.NewBackupHandler(app.backup)
	jobHandler := api.NewJobHandler(app.backupRunner, app.heartbeat)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ledger", ledgerHandler.GetLedger)
		r.Post("/ledger/credit", ledgerHandler.Credit)
		r.Post("/ledger/debit", ledgerHandler.Debit)

		r.Get("/backups", backupHandler.ListBackups)
		r.Get("/backups/{name}", backupHandler.GetBackup)

		r.Get("/jobs", jobHandler.ListJobs)
	})

	r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
