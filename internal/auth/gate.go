package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/racp/ocserv-agent/pkg/apierror"
)

const unauthorizedMessage = "Missing or invalid Authorization header"

// Gate accepts a bearer token equal to the current credential or, during a
// rotation, the previous one. Both are fixed for the life of the process.
type Gate struct {
	current  []byte
	previous []byte
}

// NewGate fails when no current credential is configured.
func NewGate(current, previous string) (*Gate, error) {
	if current == "" {
		return nil, apierror.Internal("auth gate: current token is not configured")
	}
	g := &Gate{current: []byte(current)}
	if previous != "" {
		g.previous = []byte(previous)
	}
	return g, nil
}

// Authorize checks an Authorization header value.
func (g *Gate) Authorize(header string) error {
	token, ok := bearerToken(header)
	if !ok {
		return apierror.New(apierror.CodeUnauthorized, http.StatusUnauthorized, unauthorizedMessage)
	}
	presented := []byte(token)
	if subtle.ConstantTimeCompare(presented, g.current) == 1 {
		return nil
	}
	if g.previous != nil && subtle.ConstantTimeCompare(presented, g.previous) == 1 {
		return nil
	}
	return apierror.New(apierror.CodeUnauthorized, http.StatusUnauthorized, unauthorizedMessage)
}

// Middleware rejects requests that fail Authorize with a 401 envelope.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := g.Authorize(r.Header.Get("Authorization")); err != nil {
			apierror.WriteError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken expects exactly "Bearer <token>".
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || scheme != "Bearer" || token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
