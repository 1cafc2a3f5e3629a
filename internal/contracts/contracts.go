package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// EventType identifies the semantic event kind.
type EventType string

const (
	EventAgentStarted        EventType = "ocserv.agent.started"
	EventSessionDisconnected EventType = "ocserv.session.disconnected"
	EventUserDisconnected    EventType = "ocserv.user.disconnected"
)

var validEventTypes = map[EventType]struct{}{
	EventAgentStarted:        {},
	EventSessionDisconnected: {},
	EventUserDisconnected:    {},
}

// Envelope wraps every event the agent publishes. CorrelationID is the HTTP
// request id that caused the event, when there was one.
type Envelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	TS            time.Time       `json:"ts"`
	CorrelationID string          `json:"correlation_id"`
	InstanceID    string          `json:"instance_id"`
	Payload       json.RawMessage `json:"payload"`
}

var ErrInvalidEventType = errors.New("invalid event type")

func ValidateEventType(eventType EventType) error {
	if _, ok := validEventTypes[eventType]; !ok {
		return fmt.Errorf("%w: %s", ErrInvalidEventType, eventType)
	}
	return nil
}

// MarshalV1 marshals an envelope with a v1 payload struct.
func MarshalV1[T any](id string, eventType EventType, ts time.Time, correlationID, instanceID string, payload T) ([]byte, error) {
	if err := ValidateEventType(eventType); err != nil {
		return nil, err
	}

	payloadRaw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return json.Marshal(Envelope{
		ID:            id,
		Type:          eventType,
		TS:            ts,
		CorrelationID: correlationID,
		InstanceID:    instanceID,
		Payload:       payloadRaw,
	})
}

// V1 payload schemas.
type AgentStartedV1 struct {
	Version   string `json:"version"`
	Hostname  string `json:"hostname,omitempty"`
	StartedAt string `json:"started_at"`
}

type SessionDisconnectedV1 struct {
	VPNSessionID int64  `json:"vpn_session_id"`
	Raw          string `json:"raw,omitempty"`
}

type UserDisconnectedV1 struct {
	Username string `json:"username"`
	Raw      string `json:"raw,omitempty"`
}

// NATS subject mapping.
const (
	SubjectAgentStarted        = "racp.ocserv.agent.started"
	SubjectSessionDisconnected = "racp.ocserv.session.disconnected"
	SubjectUserDisconnected    = "racp.ocserv.user.disconnected"
)

// SubjectForType maps a contract event type to its NATS subject.
func SubjectForType(eventType EventType) (string, error) {
	switch eventType {
	case EventAgentStarted:
		return SubjectAgentStarted, nil
	case EventSessionDisconnected:
		return SubjectSessionDisconnected, nil
	case EventUserDisconnected:
		return SubjectUserDisconnected, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrInvalidEventType, eventType)
	}
}
