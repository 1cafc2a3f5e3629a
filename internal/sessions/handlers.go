package sessions

import (
	"encoding/json"
	"net/http"

	"github.com/racp/ocserv-agent/pkg/apierror"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ocserv/sessions", h.handleList)
	mux.HandleFunc("/ocserv/session", h.handleGet)
	mux.HandleFunc("/ocserv/status", h.handleStatus)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	sessions, err := h.svc.LoadAuthenticated(r.Context())
	if err != nil {
		apierror.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{OK: true, Sessions: sessions, Count: len(sessions)})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := Query{
		ID:       r.URL.Query().Get("vpnSessionId"),
		Username: r.URL.Query().Get("username"),
	}
	match, err := h.svc.Lookup(r.Context(), q)
	if err != nil {
		apierror.WriteError(w, err)
		return
	}
	if match.Conflict {
		apierror.WriteConflict(w, conflictMessage(q.Username), Summaries(match.Matches))
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{OK: true, Session: match.Session})
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	status, err := h.svc.Status(r.Context())
	if err != nil {
		apierror.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{OK: true, Status: status})
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	apierror.Write(w, http.StatusMethodNotAllowed, apierror.CodeMethodNotAllowed, "method not allowed")
	return false
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}
