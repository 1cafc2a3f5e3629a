package sessions

import "github.com/racp/ocserv-agent/internal/occtl"

// PreAuthStatus is the state occtl reports before a user has authenticated.
const PreAuthStatus = "pre-auth"

// UsernameMatch is the outcome of a unique-username lookup. Conflict and
// not-found are distinct: a conflict always carries every match and never a
// Session.
type UsernameMatch struct {
	Session  *occtl.Session
	Conflict bool
	Matches  []occtl.Session
}

// Query identifies a session by id, username or both. ID wins when set.
type Query struct {
	ID       string
	Username string
}

type ListResponse struct {
	OK       bool            `json:"ok"`
	Sessions []occtl.Session `json:"sessions"`
	Count    int             `json:"count"`
}

type SessionResponse struct {
	OK      bool           `json:"ok"`
	Session *occtl.Session `json:"session"`
}

type StatusResponse struct {
	OK     bool                `json:"ok"`
	Status *occtl.ServerStatus `json:"status"`
}
