package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/racp/ocserv-agent/pkg/apierror"
)

func TestNewGateRequiresCurrent(t *testing.T) {
	t.Parallel()
	if _, err := NewGate("", "old"); !apierror.IsCode(err, apierror.CodeInternal) {
		t.Fatalf("expected INTERNAL_ERROR, got %v", err)
	}
}

func TestAuthorize(t *testing.T) {
	t.Parallel()
	withPrevious, err := NewGate("new-token", "old-token")
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	rotated, err := NewGate("new-token", "")
	if err != nil {
		t.Fatalf("gate: %v", err)
	}

	tests := []struct {
		name   string
		gate   *Gate
		header string
		ok     bool
	}{
		{"current", withPrevious, "Bearer new-token", true},
		{"previous", withPrevious, "Bearer old-token", true},
		{"previous dropped", rotated, "Bearer old-token", false},
		{"current after rotation", rotated, "Bearer new-token", true},
		{"wrong token", withPrevious, "Bearer nope", false},
		{"missing", withPrevious, "", false},
		{"wrong scheme", withPrevious, "Basic new-token", false},
		{"lowercase scheme", withPrevious, "bearer new-token", false},
		{"no token", withPrevious, "Bearer ", false},
		{"extra field", withPrevious, "Bearer new-token extra", false},
		{"prefix only", withPrevious, "Bearer new", false},
		{"empty previous never matches", rotated, "Bearer ", false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.gate.Authorize(tc.header)
			if tc.ok && err != nil {
				t.Fatalf("expected accepted, got %v", err)
			}
			if !tc.ok && !apierror.IsCode(err, apierror.CodeUnauthorized) {
				t.Fatalf("expected UNAUTHORIZED, got %v", err)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()
	gate, err := NewGate("secret", "")
	if err != nil {
		t.Fatalf("gate: %v", err)
	}
	called := false
	h := gate.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/ocserv/sessions", nil))
	if res.Code != http.StatusUnauthorized || called {
		t.Fatalf("expected 401 without calling next, got %d", res.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/ocserv/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	res = httptest.NewRecorder()
	h.ServeHTTP(res, req)
	if res.Code != http.StatusNoContent || !called {
		t.Fatalf("expected pass-through, got %d", res.Code)
	}
}
