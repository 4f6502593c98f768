package api

import (
	"net/http"
	"strconv"

	"github.com/ayusman/rtspwatch/internal/store"
)

const (
	defaultAlertLimit = 100
	maxAlertLimit     = 1000
)

// AlertHandler lists logged events, newest first.
type AlertHandler struct {
	store *store.Store
}

// NewAlertHandler creates a new AlertHandler with the given store.
func NewAlertHandler(s *store.Store) *AlertHandler {
	return &AlertHandler{store: s}
}

type alertResponse struct {
	ID         string  `json:"id"`
	Mode       string  `json:"mode"`
	EventID    string  `json:"event_id"`
	Confidence float64 `json:"confidence"`
	Status     string  `json:"status"`
	Snapshot   string  `json:"snapshot,omitempty"`
	Time       string  `json:"time"`
}

type listAlertsResponse struct {
	Alerts []alertResponse `json:"alerts"`
	Total  int             `json:"total"`
}

// ServeHTTP handles GET /api/alerts?mode=&limit=.
func (h *AlertHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := defaultAlertLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAlertLimit)
	}

	events, err := h.store.Events().List(r.URL.Query().Get("mode"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}
	total, err := h.store.Events().Count()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count alerts")
		return
	}

	response := listAlertsResponse{
		Alerts: make([]alertResponse, 0, len(events)),
		Total:  total,
	}
	for _, e := range events {
		response.Alerts = append(response.Alerts, alertResponse{
			ID:         e.ID,
			Mode:       e.Mode,
			EventID:    e.Label,
			Confidence: e.Confidence,
			Status:     e.Status,
			Snapshot:   e.Snapshot,
			Time:       formatTime(e.CreatedAt),
		})
	}

	writeJSON(w, http.StatusOK, response)
}
