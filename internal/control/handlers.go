package control

import (
	"bytes"
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/racp/ocserv-agent/internal/occtl"
	"github.com/racp/ocserv-agent/pkg/apierror"
)

const maxBodyBytes = 16 << 10

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ocserv/sessions/disconnect", h.handleDisconnectSession)
	mux.HandleFunc("/ocserv/users/disconnect", h.handleDisconnectUser)
}

type disconnectSessionRequest struct {
	VPNSessionID json.RawMessage `json:"vpnSessionId"`
}

type disconnectUserRequest struct {
	Username string `json:"username"`
}

type disconnectSessionResponse struct {
	OK           bool                `json:"ok"`
	VPNSessionID int64               `json:"vpnSessionId"`
	Result       occtl.CommandResult `json:"result"`
}

type disconnectUserResponse struct {
	OK       bool                `json:"ok"`
	Username string              `json:"username"`
	Result   occtl.CommandResult `json:"result"`
}

func (h *Handler) handleDisconnectSession(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req disconnectSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := parseSessionID(req.VPNSessionID)
	if err != nil {
		apierror.WriteError(w, err)
		return
	}
	result, err := h.svc.DisconnectByID(r.Context(), id)
	if err != nil {
		apierror.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disconnectSessionResponse{OK: true, VPNSessionID: id, Result: result})
}

func (h *Handler) handleDisconnectUser(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	var req disconnectUserRequest
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.svc.DisconnectUser(r.Context(), req.Username)
	if err != nil {
		apierror.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, disconnectUserResponse{OK: true, Username: strings.TrimSpace(req.Username), Result: result})
}

// parseSessionID accepts a JSON number or a numeric string. Fractions,
// non-finite values and anything non-numeric are rejected.
func parseSessionID(raw json.RawMessage) (int64, error) {
	invalid := apierror.BadRequest("Invalid vpnSessionId")
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, apierror.BadRequest("vpnSessionId is required")
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, invalid
		}
		text = strings.TrimSpace(text)
	} else {
		text = string(raw)
	}

	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) >= math.MaxInt64 {
		return 0, invalid
	}
	return int64(f), nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		apierror.Write(w, http.StatusBadRequest, apierror.CodeBadRequest, "Invalid JSON body")
		return false
	}
	return true
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
