package api

import (
	"net/http"

	"github.com/phrazzld/coordcore/internal/api/shared"
	"github.com/phrazzld/coordcore/internal/job"
)

// StatusReporter is implemented by *job.Runner.
type StatusReporter interface {
	Status() job.Status
}

// JobHandler reports the state of the periodic jobs
type JobHandler struct {
	jobs []StatusReporter
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(jobs ...StatusReporter) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// ListJobs handles GET /api/jobs requests
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	statuses := make([]job.Status, 0, len(h.jobs))
	for _, j := range h.jobs {
		statuses = append(statuses, j.Status())
	}
	shared.RespondWithJSON(w, r, http.StatusOK, map[string][]job.Status{"jobs": statuses})
}
