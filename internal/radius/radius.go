package radius

import (
	"os"
	"strings"
)

// Identity is what the agent reports about its RADIUS client setup. Shared
// secrets are never included, only whether a server line carries one.
type Identity struct {
	NASIdentifier        *string  `json:"nasIdentifier"`
	AuthServer           *string  `json:"authServer"`
	AcctServer           *string  `json:"acctServer"`
	RadiusclientConfPath string   `json:"radiusclientConfPath"`
	ServersFile          string   `json:"serversFile"`
	Servers              []Server `json:"servers"`
}

type Server struct {
	Host      string `json:"host"`
	HasSecret bool   `json:"hasSecret"`
}

type ClientConf struct {
	NASIdentifier string
	AuthServer    string
	AcctServer    string
}

// ParseClientConf reads the radcli "key value" format. Only the keys the
// agent reports are kept.
func ParseClientConf(text string) ClientConf {
	var conf ClientConf
	for _, line := range significantLines(text) {
		fields := strings.Fields(line)
		key := fields[0]
		value := strings.Join(fields[1:], " ")
		switch key {
		case "nas-identifier":
			conf.NASIdentifier = value
		case "authserver":
			conf.AuthServer = value
		case "acctserver":
			conf.AcctServer = value
		}
	}
	return conf
}

// ParseServers reads "host[:port] secret" lines. Lines without a secret are
// skipped.
func ParseServers(text string) []Server {
	servers := []Server{}
	for _, line := range significantLines(text) {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		servers = append(servers, Server{Host: fields[0], HasSecret: true})
	}
	return servers
}

// Load reads both files. Missing or unreadable files yield empty values.
func Load(confPath, serversPath string) Identity {
	conf := ParseClientConf(readOptional(confPath))
	return Identity{
		NASIdentifier:        nonEmpty(conf.NASIdentifier),
		AuthServer:           nonEmpty(conf.AuthServer),
		AcctServer:           nonEmpty(conf.AcctServer),
		RadiusclientConfPath: confPath,
		ServersFile:          serversPath,
		Servers:              ParseServers(readOptional(serversPath)),
	}
}

func readOptional(path string) string {
	if path == "" {
		return ""
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(raw)
}

func significantLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
