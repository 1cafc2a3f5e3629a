package occtl

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	headerMarker = "dtls-cipher"
	noneMarker   = "(none)"
	noDTLSMarker = "(no-dtls)"

	// Every row carries id, user, vhost and client ip on the left and since,
	// dtls-cipher and status on the right.
	leftAnchors  = 4
	rightAnchors = 3
	minTokens    = 5
)

var (
	hoursRe   = regexp.MustCompile(`(\d+)h`)
	minutesRe = regexp.MustCompile(`(\d+)m`)
	secondsRe = regexp.MustCompile(`(\d+)s`)
)

// ParseShowUsers interprets the plain-text table printed by `occtl show users`:
//
//	id user vhost ip vpn-ip device since dtls-cipher status
//
// vpn-ip and device may be blank, so rows are split on whitespace and read
// from both ends. Whatever sits between the fixed prefix and the fixed
// suffix is the optional middle:
//
//	0 tokens  -> no tunnel ip, no device
//	1 token   -> tunnel ip
//	2+ tokens -> tunnel ip, then the device name (rejoined with spaces)
//
// Rows with fewer than five tokens are discarded.
func ParseShowUsers(text string) []Session {
	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return []Session{}
	}

	for i, line := range lines {
		if strings.Contains(strings.ToLower(line), headerMarker) {
			lines = lines[i+1:]
			break
		}
	}

	sessions := make([]Session, 0, len(lines))
	for _, line := range lines {
		if s, ok := parseUserLine(line); ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

func parseUserLine(line string) (Session, bool) {
	trimmed := strings.TrimSpace(line)
	parts := strings.Fields(trimmed)
	if len(parts) < minTokens {
		return Session{}, false
	}

	n := len(parts)
	status := parts[n-1]
	dtlsCipher := parts[n-2]
	since := parts[n-3]

	left := parts[:n-rightAnchors]
	s := Session{
		Status:       &status,
		DTLSCipher:   &dtlsCipher,
		Since:        &since,
		SinceSeconds: ParseSince(since),
		RawLine:      &trimmed,
	}
	dtls := dtlsCipher != noDTLSMarker
	s.DTLS = &dtls

	// With exactly five tokens only id and user precede the suffix.
	if id, err := strconv.ParseInt(left[0], 10, 64); err == nil {
		s.VPNSessionID = &id
	}
	if len(left) > 1 && left[1] != noneMarker {
		s.Username = strPtr(left[1])
	}
	if len(left) > 2 {
		s.Groupname = strPtr(left[2])
	}
	if len(left) > 3 {
		s.ClientIP = strPtr(left[3])
	}

	if len(left) > leftAnchors {
		middle := left[leftAnchors:]
		s.IP = strPtr(middle[0])
		if len(middle) > 1 {
			s.Device = strPtr(strings.Join(middle[1:], " "))
		}
	}
	return s, true
}

// ParseSince converts occtl durations such as "23m:34s" or "1h:02m:10s" to
// seconds. Unparseable or zero durations yield nil.
func ParseSince(since string) *int64 {
	s := strings.TrimSpace(since)
	if s == "" {
		return nil
	}
	total := componentOf(hoursRe, s)*3600 + componentOf(minutesRe, s)*60 + componentOf(secondsRe, s)
	if total <= 0 {
		return nil
	}
	return &total
}

func componentOf(re *regexp.Regexp, s string) int64 {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func nonBlankLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
