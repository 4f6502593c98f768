package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ayusman/rtspwatch/internal/app"
	"github.com/ayusman/rtspwatch/internal/capture"
)

// Controller is the part of the running app exposed over HTTP.
type Controller interface {
	Status() app.Status
	SetArmed(armed bool) error
	DisplayJPEG() ([]byte, bool, error)
}

// SourceStatus reports the health of the frame source.
type SourceStatus interface {
	Status() capture.Status
}

type statusResponse struct {
	App     app.Status      `json:"app"`
	Capture *capture.Status `json:"capture,omitempty"`
}

// StatusHandler serves GET /api/status.
type StatusHandler struct {
	app    Controller
	source SourceStatus
}

// NewStatusHandler creates a StatusHandler. source may be nil.
func NewStatusHandler(c Controller, source SourceStatus) *StatusHandler {
	return &StatusHandler{app: c, source: source}
}

// ServeHTTP implements the http.Handler interface.
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := statusResponse{App: h.app.Status()}
	if h.source != nil {
		st := h.source.Status()
		resp.Capture = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

type armRequest struct {
	Armed *bool `json:"armed"`
}

type armResponse struct {
	Armed bool `json:"armed"`
}

// ArmHandler reads and toggles the armed state.
type ArmHandler struct {
	app Controller
}

// NewArmHandler creates an ArmHandler.
func NewArmHandler(c Controller) *ArmHandler {
	return &ArmHandler{app: c}
}

// ServeHTTP handles GET and POST /api/arm.
func (h *ArmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, armResponse{Armed: h.app.Status().Armed})
	case http.MethodPost:
		var req armRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Armed == nil {
			writeError(w, http.StatusBadRequest, `body must be {"armed": true|false}`)
			return
		}
		if err := h.app.SetArmed(*req.Armed); err != nil {
			// The in-memory state already changed; only persistence failed.
			log.Printf("api: %v", err)
			writeError(w, http.StatusInternalServerError, "Armed state changed but not saved")
			return
		}
		writeJSON(w, http.StatusOK, armResponse{Armed: h.app.Status().Armed})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}
