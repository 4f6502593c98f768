package api

import (
	"net/http"

	"github.com/ayusman/rtspwatch/internal/plugin"
)

// PluginHandler lists the discovered plugins, so binding editors can offer
// their actions.
type PluginHandler struct {
	manager *plugin.Manager
}

// NewPluginHandler creates a PluginHandler.
func NewPluginHandler(m *plugin.Manager) *PluginHandler {
	return &PluginHandler{manager: m}
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

// ServeHTTP handles GET /api/plugins.
func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	plugins := h.manager.List()
	resp := struct {
		Plugins []pluginResponse `json:"plugins"`
	}{Plugins: make([]pluginResponse, 0, len(plugins))}

	for _, p := range plugins {
		actions := p.Manifest.Actions
		if actions == nil {
			actions = []string{}
		}
		resp.Plugins = append(resp.Plugins, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     actions,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
