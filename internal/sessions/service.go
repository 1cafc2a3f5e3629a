package sessions

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/racp/ocserv-agent/internal/occtl"
	"github.com/racp/ocserv-agent/pkg/apierror"
)

// StatusReader is the subset of occtl.JSONReader used for `show status`.
type StatusReader interface {
	ReadObject(ctx context.Context, args ...string) (map[string]any, error)
}

// Service answers session queries against live occtl state. Nothing is
// cached: every call is a fresh occtl invocation.
type Service struct {
	users  occtl.UserSource
	status StatusReader
}

func NewService(users occtl.UserSource, status StatusReader) *Service {
	return &Service{users: users, status: status}
}

// LoadSessions returns every live session, including pre-auth ones.
func (s *Service) LoadSessions(ctx context.Context) ([]occtl.Session, error) {
	return s.users.Users(ctx)
}

// LoadAuthenticated returns sessions that have a username and are past
// pre-auth.
func (s *Service) LoadAuthenticated(ctx context.Context) ([]occtl.Session, error) {
	all, err := s.LoadSessions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]occtl.Session, 0, len(all))
	for _, sess := range all {
		if IsAuthenticated(sess) {
			out = append(out, sess)
		}
	}
	return out, nil
}

// Status reads and normalizes `occtl --json show status`.
func (s *Service) Status(ctx context.Context) (*occtl.ServerStatus, error) {
	obj, err := s.status.ReadObject(ctx, "show", "status")
	if err != nil {
		return nil, err
	}
	return occtl.NormalizeStatus(obj), nil
}

// Lookup resolves q against the authenticated sessions. An unresolved id
// yields a nil session without consulting the username.
func (s *Service) Lookup(ctx context.Context, q Query) (UsernameMatch, error) {
	q.ID = strings.TrimSpace(q.ID)
	q.Username = strings.TrimSpace(q.Username)
	if q.ID == "" && q.Username == "" {
		return UsernameMatch{}, apierror.BadRequest("Provide vpnSessionId or username")
	}

	sessions, err := s.LoadAuthenticated(ctx)
	if err != nil {
		return UsernameMatch{}, err
	}
	if q.ID != "" {
		return UsernameMatch{Session: FindByID(sessions, q.ID)}, nil
	}
	return FindUniqueByUsername(sessions, q.Username), nil
}

func IsAuthenticated(s occtl.Session) bool {
	if s.Username == nil || *s.Username == "" {
		return false
	}
	return s.Status == nil || *s.Status != PreAuthStatus
}

// FindByID matches a base-10 identifier exactly. Non-numeric input never
// matches.
func FindByID(sessions []occtl.Session, id string) *occtl.Session {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return nil
	}
	for i := range sessions {
		if sessions[i].VPNSessionID != nil && *sessions[i].VPNSessionID == n {
			return &sessions[i]
		}
	}
	return nil
}

func FindUniqueByUsername(sessions []occtl.Session, username string) UsernameMatch {
	if username == "" {
		return UsernameMatch{Matches: []occtl.Session{}}
	}
	matches := make([]occtl.Session, 0, 1)
	for _, sess := range sessions {
		if sess.UsernameIs(username) {
			matches = append(matches, sess)
		}
	}
	switch len(matches) {
	case 1:
		return UsernameMatch{Session: &matches[0], Matches: matches}
	case 0:
		return UsernameMatch{Matches: matches}
	default:
		return UsernameMatch{Conflict: true, Matches: matches}
	}
}

// Summaries redacts matches for a conflict response.
func Summaries(matches []occtl.Session) []occtl.Summary {
	out := make([]occtl.Summary, 0, len(matches))
	for _, m := range matches {
		out = append(out, m.Summary())
	}
	return out
}

func conflictMessage(username string) string {
	return fmt.Sprintf("Multiple active sessions found for username=%s. Use vpnSessionId.", username)
}
