package occtl

import "testing"

const showUsersTable = `
      id     user    vhost              ip         vpn-ip device   since    dtls-cipher    status
   22901    alice  default   203.0.113.10   10.10.0.2  vpns0 23m:34s  (no-dtls)  connected
   22902   (none)  default   198.51.100.7                     12s  (no-dtls)  pre-auth
   22903      bob  default   192.0.2.44    10.10.0.9          1h:02m:10s  AES-256-GCM  connected
   22904    carol  default   192.0.2.45    10.10.0.10  tun 3  5s  AES-128-GCM  connected
`

func TestParseShowUsersTable(t *testing.T) {
	t.Parallel()
	got := ParseShowUsers(showUsersTable)
	if len(got) != 4 {
		t.Fatalf("expected 4 sessions, got %d", len(got))
	}

	alice := got[0]
	if *alice.VPNSessionID != 22901 || *alice.Username != "alice" || *alice.Groupname != "default" {
		t.Fatalf("unexpected alice %+v", alice)
	}
	if *alice.ClientIP != "203.0.113.10" || *alice.IP != "10.10.0.2" || *alice.Device != "vpns0" {
		t.Fatalf("unexpected alice addresses ip=%v device=%v", alice.IP, alice.Device)
	}
	if *alice.Since != "23m:34s" || *alice.SinceSeconds != 1414 || *alice.DTLS || *alice.Status != "connected" {
		t.Fatalf("unexpected alice suffix %+v", alice)
	}

	anon := got[1]
	if anon.Username != nil {
		t.Fatalf("expected (none) to be absent, got %q", *anon.Username)
	}
	if anon.IP != nil || anon.Device != nil {
		t.Fatal("expected no middle columns")
	}
	if *anon.Status != "pre-auth" || *anon.SinceSeconds != 12 {
		t.Fatalf("unexpected anon %+v", anon)
	}

	bob := got[2]
	if *bob.IP != "10.10.0.9" || bob.Device != nil {
		t.Fatalf("expected ip only, got ip=%v device=%v", bob.IP, bob.Device)
	}
	if !*bob.DTLS || *bob.DTLSCipher != "AES-256-GCM" || *bob.SinceSeconds != 3730 {
		t.Fatalf("unexpected bob %+v", bob)
	}

	carol := got[3]
	if *carol.Device != "tun 3" {
		t.Fatalf("expected device rejoined, got %q", *carol.Device)
	}
	if *carol.RawLine == "" || (*carol.RawLine)[0] != '2' {
		t.Fatalf("expected trimmed raw line, got %q", *carol.RawLine)
	}
}

func TestParseShowUsersAnchors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		line       string
		ip, device string
		status     string
		since      string
	}{
		{"five tokens", "7 alice 5s (no-dtls) connected", "", "", "connected", "5s"},
		{"seven tokens", "7 alice default 1.2.3.4 5s (no-dtls) connected", "", "", "connected", "5s"},
		{"eight tokens", "7 alice default 1.2.3.4 10.0.0.2 5s (no-dtls) connected", "10.0.0.2", "", "connected", "5s"},
		{"nine tokens", "7 alice default 1.2.3.4 10.0.0.2 vpns0 5s (no-dtls) connected", "10.0.0.2", "vpns0", "connected", "5s"},
		{"spaced device", "7 alice default 1.2.3.4 10.0.0.2 my dev 0 5s AES pre-auth", "10.0.0.2", "my dev 0", "pre-auth", "5s"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := ParseShowUsers(tc.line)
			if len(got) != 1 {
				t.Fatalf("expected one session, got %d", len(got))
			}
			s := got[0]
			if derefStr(s.IP) != tc.ip || derefStr(s.Device) != tc.device {
				t.Fatalf("ip=%q device=%q", derefStr(s.IP), derefStr(s.Device))
			}
			if derefStr(s.Status) != tc.status || derefStr(s.Since) != tc.since {
				t.Fatalf("status=%q since=%q", derefStr(s.Status), derefStr(s.Since))
			}
		})
	}
}

func TestParseShowUsersDiscardsShortAndBlank(t *testing.T) {
	t.Parallel()
	got := ParseShowUsers("\n\n1 alice 5s connected\n   \n")
	if len(got) != 0 {
		t.Fatalf("expected nothing, got %d", len(got))
	}
	if got := ParseShowUsers(""); got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", got)
	}
}

func TestParseShowUsersNonNumericID(t *testing.T) {
	t.Parallel()
	got := ParseShowUsers("abc alice default 1.2.3.4 5s (no-dtls) connected")
	if len(got) != 1 || got[0].VPNSessionID != nil {
		t.Fatalf("expected session without id, got %+v", got)
	}
}

func TestParseSince(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want int64
		null bool
	}{
		{in: "1h:02m:10s", want: 3730},
		{in: "23m:34s", want: 1414},
		{in: "12s", want: 12},
		{in: "2h", want: 7200},
		{in: "0s", null: true},
		{in: "00m:00s", null: true},
		{in: "soon", null: true},
		{in: "", null: true},
	}
	for _, tc := range tests {
		got := ParseSince(tc.in)
		if tc.null {
			if got != nil {
				t.Fatalf("%q: expected nil, got %d", tc.in, *got)
			}
			continue
		}
		if got == nil || *got != tc.want {
			t.Fatalf("%q: expected %d, got %v", tc.in, tc.want, got)
		}
	}
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
