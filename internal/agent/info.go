package agent

import (
	"os"
	"time"
)

const (
	Name       = "racp-ocserv-agent"
	APIVersion = "v1"
)

// Version is set at build time with -ldflags "-X .../internal/agent.Version=...".
var Version = "0.0.0"

// Info is the read-only description of the running agent, built once at
// startup.
type Info struct {
	Name                string  `json:"name"`
	Version             string  `json:"version"`
	APIVersion          string  `json:"apiVersion"`
	InstanceID          string  `json:"instanceId"`
	Hostname            *string `json:"hostname"`
	StartedAt           string  `json:"startedAt"`
	PersistedInstanceID bool    `json:"persistedInstanceId"`
}

func NewInfo(id Identity, startedAt time.Time) Info {
	var hostname *string
	if h, err := os.Hostname(); err == nil && h != "" {
		hostname = &h
	}
	return Info{
		Name:                Name,
		Version:             Version,
		APIVersion:          APIVersion,
		InstanceID:          id.InstanceID,
		Hostname:            hostname,
		StartedAt:           startedAt.UTC().Format(time.RFC3339Nano),
		PersistedInstanceID: id.Persisted,
	}
}
