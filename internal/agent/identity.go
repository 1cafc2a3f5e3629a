package agent

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Identity names this agent instance across restarts.
type Identity struct {
	InstanceID string
	// Persisted is false when the id could not be written and will change
	// on the next start.
	Persisted bool
	Path      string
}

// LoadIdentity reads the instance id at path, creating it if absent. It
// never fails: when the file cannot be written a volatile id is returned.
func LoadIdentity(path string) Identity {
	if raw, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(raw)); id != "" {
			return Identity{InstanceID: id, Persisted: true, Path: path}
		}
	}

	id := uuid.NewString()
	persisted := false
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		persisted = os.WriteFile(path, []byte(id+"\n"), 0o644) == nil
	}
	return Identity{InstanceID: id, Persisted: persisted, Path: path}
}
