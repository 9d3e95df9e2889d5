package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/okian/raidtrack/internal/domain/analytics"
)

// AnalyticsHandler serves the analytics views.
type AnalyticsHandler struct {
	deps     AnalyticsDependencies
	maxLimit int
}

// NewAnalyticsHandler creates a new analytics handler.
func NewAnalyticsHandler(deps AnalyticsDependencies, maxLimit int) *AnalyticsHandler {
	return &AnalyticsHandler{deps: deps, maxLimit: maxLimit}
}

// HandleGetView handles GET /analytics/{view}?race=&limit=&section= requests.
// Without limit the view uses its default row count.
func (h *AnalyticsHandler) HandleGetView(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_view"
	params := r.URL.Query()
	q := analytics.Query{
		Race:    params.Get("race"),
		Section: params.Get("section"),
	}

	if raw := params.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", wrapKind(op, ErrInvalidLimit, fmt.Errorf("limit %q", raw)))
			return
		}
		if n > h.maxLimit {
			writeError(w, http.StatusBadRequest, "limit_exceeded",
				wrapKind(op, ErrInvalidLimit, fmt.Errorf("limit %d above %d", n, h.maxLimit)))
			return
		}
		q.Limit = n
	}

	view, err := h.deps.View(r.Context(), r.PathValue("view"), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
