package control

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/racp/ocserv-agent/internal/audit"
	"github.com/racp/ocserv-agent/internal/contracts"
	"github.com/racp/ocserv-agent/internal/occtl"
	"github.com/racp/ocserv-agent/pkg/apierror"
	"github.com/racp/ocserv-agent/pkg/httpserver"
	"github.com/rs/zerolog"
)

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Service issues disconnect commands. Events and audit rows are side
// channels: their failures are logged and never change the outcome of the
// disconnect itself. Both collaborators may be nil.
type Service struct {
	exec       occtl.Executor
	nc         Publisher
	audit      audit.Recorder
	instanceID string
	logger     zerolog.Logger
}

func NewService(exec occtl.Executor, nc Publisher, recorder audit.Recorder, instanceID string, logger zerolog.Logger) *Service {
	return &Service{exec: exec, nc: nc, audit: recorder, instanceID: instanceID, logger: logger}
}

// DisconnectByID terminates one session with `occtl disconnect id <id>`.
func (s *Service) DisconnectByID(ctx context.Context, id int64) (occtl.CommandResult, error) {
	if id <= 0 {
		return occtl.CommandResult{}, apierror.BadRequest("Invalid vpnSessionId")
	}
	target := strconv.FormatInt(id, 10)
	res, err := s.exec.Run(ctx, "disconnect", "id", target)
	s.record(ctx, audit.KindDisconnectSession, target, err)
	if err != nil {
		return occtl.CommandResult{}, err
	}

	result := occtl.CommandResult{OK: true, Raw: strings.TrimSpace(res.Stdout)}
	s.publish(ctx, contracts.EventSessionDisconnected, contracts.SessionDisconnectedV1{VPNSessionID: id, Raw: result.Raw})
	return result, nil
}

// DisconnectUser terminates every session of username with a single
// `occtl disconnect user <name>`, leaving the enumeration to occtl.
func (s *Service) DisconnectUser(ctx context.Context, username string) (occtl.CommandResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return occtl.CommandResult{}, apierror.BadRequest("Invalid username")
	}
	res, err := s.exec.Run(ctx, "disconnect", "user", username)
	s.record(ctx, audit.KindDisconnectUser, username, err)
	if err != nil {
		return occtl.CommandResult{}, err
	}

	result := occtl.CommandResult{OK: true, Raw: strings.TrimSpace(res.Stdout)}
	s.publish(ctx, contracts.EventUserDisconnected, contracts.UserDisconnectedV1{Username: username, Raw: result.Raw})
	return result, nil
}

func (s *Service) record(ctx context.Context, kind, target string, runErr error) {
	if s.audit == nil {
		return
	}
	action := audit.Action{
		ID:         uuid.NewString(),
		InstanceID: s.instanceID,
		RequestID:  httpserver.RequestID(ctx),
		Kind:       kind,
		Target:     target,
		OK:         runErr == nil,
		OccurredAt: time.Now().UTC(),
	}
	if apiErr, ok := apierror.As(runErr); ok {
		action.ErrorCode = string(apiErr.Code)
	}
	// The caller's context may already be done when occtl timed out.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.audit.Record(recordCtx, action); err != nil {
		s.logger.Warn().Err(err).Str("kind", kind).Str("target", target).Msg("audit record failed")
	}
}

func (s *Service) publish(ctx context.Context, eventType contracts.EventType, payload any) {
	if s.nc == nil {
		return
	}
	subject, err := contracts.SubjectForType(eventType)
	if err != nil {
		s.logger.Error().Err(err).Msg("no subject for event")
		return
	}
	correlationID := httpserver.RequestID(ctx)
	raw, err := contracts.MarshalV1(uuid.NewString(), eventType, time.Now().UTC(), correlationID, s.instanceID, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("type", string(eventType)).Msg("marshal event failed")
		return
	}
	msg := nats.NewMsg(subject)
	msg.Data = raw
	msg.Header.Set("correlation_id", correlationID)
	msg.Header.Set("content-type", "application/json")
	if err := s.nc.PublishMsg(msg); err != nil {
		s.logger.Warn().Err(err).Str("subject", subject).Msg("publish event failed")
	}
}
