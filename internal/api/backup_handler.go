package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/coordcore/internal/api/shared"
	"github.com/phrazzld/coordcore/internal/backup"
)

// BackupStore is the read side of *backup.Backup.
type BackupStore interface {
	List(ctx context.Context) ([]string, error)
	Load(ctx context.Context, name string) (backup.Snapshot, error)
}

// BackupHandler serves stored backup artifacts
type BackupHandler struct {
	store BackupStore
}

// NewBackupHandler creates a new BackupHandler
func NewBackupHandler(store BackupStore) *BackupHandler {
	return &BackupHandler{store: store}
}

// ListBackups handles GET /api/backups requests
func (h *BackupHandler) ListBackups(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.List(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to list backups", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, BackupListResponse{Backups: names})
}

// GetBackup handles GET /api/backups/{name} requests
func (h *BackupHandler) GetBackup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !backup.IsArtifactName(name) {
		shared.RespondWithError(w, r, http.StatusBadRequest, GetSafeErrorMessage(backup.ErrInvalidName))
		return
	}

	snap, err := h.store.Load(r.Context(), name)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, SnapshotResponse{
		Name:      name,
		ID:        snap.ID,
		Timestamp: snap.Timestamp,
		Sections:  snap.Sections,
		Error:     snap.Error,
	})
}
