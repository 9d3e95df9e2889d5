package api

import (
	"net/http"
	"strconv"
)

// RunnersHandler serves the cached runner records.
type RunnersHandler struct {
	deps RunnerDependencies
}

// NewRunnersHandler creates a new runners handler.
func NewRunnersHandler(deps RunnerDependencies) *RunnersHandler {
	return &RunnersHandler{deps: deps}
}

// HandleListRunners handles GET /runners?race= requests.
func (h *RunnersHandler) HandleListRunners(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Runners(r.Context(), r.URL.Query().Get("race")))
}

// HandleGetRunner handles GET /runners/{bib} requests.
func (h *RunnersHandler) HandleGetRunner(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_runner"
	bib, err := strconv.Atoi(r.PathValue("bib"))
	if err != nil || bib <= 0 {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, errInvalidBib))
		return
	}
	runner, err := h.deps.Runner(r.Context(), bib)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, runner)
}
