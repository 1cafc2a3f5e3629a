package occtl

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// occtl --json keys are human labels: spaced, mixed case, sometimes with a
// leading underscore for the "time ago" variant. They are only referenced
// here.
const (
	keyID             = "ID"
	keyUsername       = "Username"
	keyGroupname      = "Groupname"
	keyState          = "State"
	keyVhost          = "vhost"
	keyDevice         = "Device"
	keyRemoteIP       = "Remote IP"
	keyLocalDeviceIP  = "Local Device IP"
	keyIPv4           = "IPv4"
	keyP2PIPv4        = "P-t-P IPv4"
	keyConnectedAt    = "Connected at"
	keyConnectedAgo   = "_Connected at"
	keyRawConnectedAt = "raw_connected_at"
	keyRX             = "RX"
	keyTX             = "TX"
	keyAvgRX          = "Average RX"
	keyAvgTX          = "Average TX"
	keyUserAgent      = "User-Agent"
	keySession        = "Session"
	keyFullSession    = "Full session"
)

// NormalizeUser maps one element of `occtl --json show users` onto a
// Session. It returns nil when raw is not a JSON object and never fails
// otherwise: missing or malformed fields become nil.
func NormalizeUser(raw any) *Session {
	row, ok := raw.(map[string]any)
	if !ok || row == nil {
		return nil
	}

	remoteIP := asStr(row[keyRemoteIP])
	return &Session{
		VPNSessionID: asInt(row[keyID]),
		Username:     asStr(row[keyUsername]),
		Groupname:    asStr(row[keyGroupname]),
		ClientIP:     remoteIP,
		IP:           asStr(row[keyIPv4]),
		Device:       asStr(row[keyDevice]),
		Status:       asStr(row[keyState]),

		Vhost:          asStr(row[keyVhost]),
		RemoteIP:       remoteIP,
		LocalDeviceIP:  asStr(row[keyLocalDeviceIP]),
		P2PIPv4:        asStr(row[keyP2PIPv4]),
		ConnectedAt:    asStr(row[keyConnectedAt]),
		ConnectedAgo:   asStr(row[keyConnectedAgo]),
		RawConnectedAt: asInt(row[keyRawConnectedAt]),
		RXBytes:        asInt(row[keyRX]),
		TXBytes:        asInt(row[keyTX]),
		AvgRX:          asStr(row[keyAvgRX]),
		AvgTX:          asStr(row[keyAvgTX]),
		UserAgent:      asStr(row[keyUserAgent]),
		Session:        asStr(row[keySession]),
		FullSession:    asStr(row[keyFullSession]),
	}
}

// NormalizeStatus maps the object printed by `occtl --json show status`.
func NormalizeStatus(raw any) *ServerStatus {
	obj, ok := raw.(map[string]any)
	if !ok || obj == nil {
		return nil
	}
	return &ServerStatus{
		Status:              asStr(obj["Status"]),
		ServerPID:           asInt(obj["Server PID"]),
		SecModPID:           asInt(obj["Sec-mod PID"]),
		SecModInstanceCount: asInt(obj["Sec-mod instance count"]),

		UpSince:       asStr(obj["Up since"]),
		UpSinceAgo:    asStr(obj["_Up since"]),
		RawUpSince:    asInt(obj["raw_up_since"]),
		UptimeSeconds: asInt(obj["uptime"]),

		ActiveSessions: asInt(obj["Active sessions"]),
		TotalSessions:  asInt(obj["Total sessions"]),

		TotalAuthFailures: asInt(obj["Total authentication failures"]),
		AuthFailures:      asInt(obj["Authentication failures"]),
		IPsInBanList:      asInt(obj["IPs in ban list"]),

		RXHuman: asStr(obj["RX"]),
		TXHuman: asStr(obj["TX"]),
		RXBytes: asInt(obj["raw_rx"]),
		TXBytes: asInt(obj["raw_tx"]),

		SessionsHandled:          asInt(obj["Sessions handled"]),
		TimedOutSessions:         asInt(obj["Timed out sessions"]),
		TimedOutIdleSessions:     asInt(obj["Timed out (idle) sessions"]),
		ClosedDueToErrorSessions: asInt(obj["Closed due to error sessions"]),
		AvgSessionTime:           asStr(obj["Average session time"]),
		RawAvgSessionTime:        asInt(obj["raw_avg_session_time"]),
		MaxSessionTime:           asStr(obj["Max session time"]),
		RawMaxSessionTime:        asInt(obj["raw_max_session_time"]),
	}
}

// asInt accepts JSON numbers and numeric strings, truncating fractions.
func asInt(v any) *int64 {
	switch t := v.(type) {
	case json.Number:
		return parseIntLoose(t.String())
	case float64:
		return truncFloat(t)
	case int64:
		return &t
	case int:
		n := int64(t)
		return &n
	case string:
		return parseIntLoose(t)
	default:
		return nil
	}
}

func parseIntLoose(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return truncFloat(f)
}

func truncFloat(f float64) *int64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f > math.MaxInt64 || f < math.MinInt64 {
		return nil
	}
	n := int64(math.Trunc(f))
	return &n
}

// asStr trims scalars to a string; blank values and containers become nil.
func asStr(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return nil
	}
	return strPtr(strings.TrimSpace(s))
}
