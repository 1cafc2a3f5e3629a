package agent

import (
	"encoding/json"
	"net/http"

	"github.com/racp/ocserv-agent/internal/occtl"
	"github.com/racp/ocserv-agent/internal/radius"
	"github.com/racp/ocserv-agent/pkg/apierror"
)

type Capabilities struct {
	ListSessions         bool `json:"listSessions"`
	DisconnectSession    bool `json:"disconnectSession"`
	DisconnectAllForUser bool `json:"disconnectAllForUser"`
	RefreshSession       bool `json:"refreshSession"`
}

var capabilities = Capabilities{
	ListSessions:         true,
	DisconnectSession:    true,
	DisconnectAllForUser: true,
	RefreshSession:       true,
}

type HealthResponse struct {
	OK           bool         `json:"ok"`
	Agent        Info         `json:"agent"`
	Ocserv       Readiness    `json:"ocserv"`
	Capabilities Capabilities `json:"capabilities"`
}

type RadiusResponse struct {
	OK     bool            `json:"ok"`
	Radius radius.Identity `json:"radius"`
}

type HandlerConfig struct {
	Info                 Info
	Readiness            occtl.Executor
	RadiusClientConfPath string
	RadiusServersPath    string
}

type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler { return &Handler{cfg: cfg} }

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ocserv/health", h.handleHealth)
	mux.HandleFunc("/ocserv/radius", h.handleRadius)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		OK:           true,
		Agent:        h.cfg.Info,
		Ocserv:       CheckReady(r.Context(), h.cfg.Readiness),
		Capabilities: capabilities,
	})
}

func (h *Handler) handleRadius(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, RadiusResponse{
		OK:     true,
		Radius: radius.Load(h.cfg.RadiusClientConfPath, h.cfg.RadiusServersPath),
	})
}

func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	w.Header().Set("Allow", http.MethodGet)
	apierror.Write(w, http.StatusMethodNotAllowed, apierror.CodeMethodNotAllowed, "method not allowed")
	return false
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
