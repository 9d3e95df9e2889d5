package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	eventqueue "github.com/okian/raidtrack/internal/adapters/mq/queue"
)

var errInvalidBib = errors.New("bib must be a positive integer")

// ScansHandler submits and follows scan batches.
type ScansHandler struct {
	deps ScanDependencies
}

// NewScansHandler creates a new scans handler.
func NewScansHandler(deps ScanDependencies) *ScansHandler {
	return &ScansHandler{deps: deps}
}

// scanRequest is the body of POST /scans.
type scanRequest struct {
	Bibs []int `json:"bibs"`
}

func (s scanRequest) validate() error {
	if len(s.Bibs) == 0 {
		return errors.New("missing bibs")
	}
	for _, bib := range s.Bibs {
		if bib <= 0 {
			return fmt.Errorf("bib %d: %w", bib, errInvalidBib)
		}
	}
	return nil
}

type scanResponse struct {
	BatchID string `json:"batch_id"`
}

// HandlePostScan handles POST /scans requests.
func (h *ScansHandler) HandlePostScan(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_scan"
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrBadRequest, err))
		return
	}

	id, err := h.deps.Scan(r.Context(), req.Bibs)
	if err != nil {
		if errors.Is(err, eventqueue.ErrQueueFull) {
			err = wrapKind(op, ErrBackpressure, err)
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, scanResponse{BatchID: id})
}

// HandleGetScan handles GET /scans/{id} requests.
func (h *ScansHandler) HandleGetScan(w http.ResponseWriter, r *http.Request) {
	report, err := h.deps.Batch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleCancelScan handles DELETE /scans/{id} requests. The response is the
// report at the time of cancellation.
func (h *ScansHandler) HandleCancelScan(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.deps.Cancel(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	report, err := h.deps.Batch(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, report)
}
