package occtl

// Session is one live VPN connection as reported by occtl. Optional values
// are pointers; nil means the tool did not report a usable value.
type Session struct {
	VPNSessionID *int64  `json:"vpnSessionId"`
	Username     *string `json:"username"`
	Groupname    *string `json:"groupname"`
	ClientIP     *string `json:"clientIp"`
	IP           *string `json:"ip"`
	Device       *string `json:"device"`
	Status       *string `json:"status"`

	Vhost          *string `json:"vhost"`
	RemoteIP       *string `json:"remoteIp"`
	LocalDeviceIP  *string `json:"localDeviceIp"`
	P2PIPv4        *string `json:"p2pIpv4"`
	ConnectedAt    *string `json:"connectedAt"`
	ConnectedAgo   *string `json:"connectedAgo"`
	RawConnectedAt *int64  `json:"rawConnectedAt"`
	RXBytes        *int64  `json:"rxBytes"`
	TXBytes        *int64  `json:"txBytes"`
	AvgRX          *string `json:"avgRx"`
	AvgTX          *string `json:"avgTx"`
	UserAgent      *string `json:"userAgent"`
	Session        *string `json:"session"`
	FullSession    *string `json:"fullSession"`

	// Only populated by the plain-text parser.
	Since        *string `json:"since,omitempty"`
	SinceSeconds *int64  `json:"sinceSeconds,omitempty"`
	DTLS         *bool   `json:"dtls,omitempty"`
	DTLSCipher   *string `json:"dtlsCipher,omitempty"`
	RawLine      *string `json:"rawLine"`
}

// Summary is the redacted view of a session returned alongside conflicts.
type Summary struct {
	VPNSessionID *int64  `json:"vpnSessionId"`
	Username     *string `json:"username"`
	IP           *string `json:"ip"`
	ClientIP     *string `json:"clientIp"`
	Device       *string `json:"device"`
	Status       *string `json:"status"`
}

func (s Session) Summary() Summary {
	return Summary{
		VPNSessionID: s.VPNSessionID,
		Username:     s.Username,
		IP:           s.IP,
		ClientIP:     s.ClientIP,
		Device:       s.Device,
		Status:       s.Status,
	}
}

// UsernameIs reports whether the session belongs to name.
func (s Session) UsernameIs(name string) bool {
	return s.Username != nil && *s.Username == name
}

// ServerStatus is a point-in-time snapshot of `occtl show status`.
type ServerStatus struct {
	Status              *string `json:"status"`
	ServerPID           *int64  `json:"serverPid"`
	SecModPID           *int64  `json:"secModPid"`
	SecModInstanceCount *int64  `json:"secModInstanceCount"`

	UpSince       *string `json:"upSince"`
	UpSinceAgo    *string `json:"upSinceAgo"`
	RawUpSince    *int64  `json:"rawUpSince"`
	UptimeSeconds *int64  `json:"uptimeSeconds"`

	ActiveSessions *int64 `json:"activeSessions"`
	TotalSessions  *int64 `json:"totalSessions"`

	TotalAuthFailures *int64 `json:"totalAuthFailures"`
	AuthFailures      *int64 `json:"authFailures"`
	IPsInBanList      *int64 `json:"ipsInBanList"`

	RXHuman *string `json:"rxHuman"`
	TXHuman *string `json:"txHuman"`
	RXBytes *int64  `json:"rxBytes"`
	TXBytes *int64  `json:"txBytes"`

	SessionsHandled          *int64  `json:"sessionsHandled"`
	TimedOutSessions         *int64  `json:"timedOutSessions"`
	TimedOutIdleSessions     *int64  `json:"timedOutIdleSessions"`
	ClosedDueToErrorSessions *int64  `json:"closedDueToErrorSessions"`
	AvgSessionTime           *string `json:"avgSessionTime"`
	RawAvgSessionTime        *int64  `json:"rawAvgSessionTime"`
	MaxSessionTime           *string `json:"maxSessionTime"`
	RawMaxSessionTime        *int64  `json:"rawMaxSessionTime"`
}

// CommandResult is the outcome of a control invocation. Success is implied
// by the absence of an error; Raw is whatever occtl printed.
type CommandResult struct {
	OK  bool   `json:"ok"`
	Raw string `json:"raw"`
}
