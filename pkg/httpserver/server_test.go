package httpserver

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestObservabilityAssignsRequestID(t *testing.T) {
	t.Parallel()
	var seen string
	h := WithObservability(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}), zerolog.New(io.Discard))

	req := httptest.NewRequest(http.MethodGet, "/ocserv/sessions", nil)
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)

	got := res.Header().Get(RequestIDHeader)
	if got == "" || got != seen {
		t.Fatalf("expected matching request id, header=%q ctx=%q", got, seen)
	}
}

func TestObservabilityHonoursIncomingRequestID(t *testing.T) {
	t.Parallel()
	h := WithObservability(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestID(r.Context()) != "client-42" {
			t.Errorf("unexpected ctx id %q", RequestID(r.Context()))
		}
	}), zerolog.New(io.Discard))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "client-42")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Header().Get(RequestIDHeader) != "client-42" {
		t.Fatalf("expected echoed request id, got %q", res.Header().Get(RequestIDHeader))
	}
}

func TestMuxDiagnostics(t *testing.T) {
	t.Parallel()
	mux := NewMux("agent")
	handler := WithObservability(mux, zerolog.New(io.Discard))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK || res.Body.String() != "ok" {
		t.Fatalf("unexpected healthz %d %q", res.Code, res.Body.String())
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(res.Body.String(), `ocserv_agent_http_requests_total{service="agent",method="GET",path="/healthz",status="200"}`) {
		t.Fatalf("expected healthz counter in metrics output:\n%s", res.Body.String())
	}
}

func TestMetricsLabelUnknownPathsAsOneSeries(t *testing.T) {
	t.Parallel()
	handler := WithObservability(NewMux("agent"), zerolog.New(io.Discard))
	for i := 0; i < 200; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/scan-%d", i), nil))
		if res.Code != http.StatusNotFound {
			t.Fatalf("expected 404 got %d", res.Code)
		}
	}

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := res.Body.String()
	if strings.Contains(body, "/scan-") {
		t.Fatalf("raw paths leaked into metric labels:\n%s", body)
	}
	if !strings.Contains(body, `path="other",status="404"`) {
		t.Fatalf("expected unmatched requests under one label:\n%s", body)
	}
	series := strings.Count(body, "ocserv_agent_http_requests_total{")
	if series > 20 {
		t.Fatalf("expected a bounded series count, got %d", series)
	}
}
