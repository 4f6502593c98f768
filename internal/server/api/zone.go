package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/ayusman/rtspwatch/internal/zone"
)

// ZoneHandler reads and replaces the restricted-zone polygon.
type ZoneHandler struct {
	zone *zone.Config
}

// NewZoneHandler creates a new ZoneHandler for the given zone.
func NewZoneHandler(z *zone.Config) *ZoneHandler {
	return &ZoneHandler{zone: z}
}

type zoneBody struct {
	Points zone.Polygon `json:"points"`
}

// ServeHTTP handles GET and PUT /api/zone.
func (h *ZoneHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, zoneBody{Points: h.zone.Polygon()})
	case http.MethodPut:
		h.replace(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// replace swaps the polygon wholesale. Running detection picks it up on
// the next frame; the file is written afterwards.
func (h *ZoneHandler) replace(w http.ResponseWriter, r *http.Request) {
	var req zoneBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := h.zone.Set(req.Points); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.zone.Save(); err != nil {
		log.Printf("api: failed to save zone: %v", err)
		writeError(w, http.StatusInternalServerError, "Zone applied but not saved")
		return
	}

	writeJSON(w, http.StatusOK, zoneBody{Points: h.zone.Polygon()})
}
