package bus

import (
	"time"

	"github.com/nats-io/nats.go"
)

// Connect creates a NATS connection for control-event publication. The
// client keeps reconnecting in the background so a broker restart never
// blocks an occtl call.
func Connect(url, clientName string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(clientName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
