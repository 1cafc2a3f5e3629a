package platform

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/racp/ocserv-agent/internal/agent"
	"github.com/racp/ocserv-agent/internal/audit"
	"github.com/racp/ocserv-agent/internal/auth"
	"github.com/racp/ocserv-agent/internal/contracts"
	"github.com/racp/ocserv-agent/internal/control"
	"github.com/racp/ocserv-agent/internal/occtl"
	"github.com/racp/ocserv-agent/internal/sessions"
	"github.com/racp/ocserv-agent/pkg/apierror"
	"github.com/racp/ocserv-agent/pkg/bus"
	"github.com/racp/ocserv-agent/pkg/config"
	"github.com/racp/ocserv-agent/pkg/httpserver"
	"github.com/racp/ocserv-agent/pkg/logging"
	"github.com/racp/ocserv-agent/pkg/storage"
	"github.com/rs/zerolog"
)

// Deps are the collaborators behind the HTTP surface. Publisher and Audit
// may be nil.
type Deps struct {
	Config    config.Config
	Logger    zerolog.Logger
	Info      agent.Info
	Exec      occtl.Executor
	Readiness occtl.Executor
	Publisher control.Publisher
	Audit     audit.Recorder
}

// NewHandler assembles the agent routes. Everything under /ocserv/ sits
// behind the auth gate; /healthz, /readyz and /metrics do not.
func NewHandler(d Deps) (http.Handler, error) {
	gate, err := auth.NewGate(d.Config.AuthTokenCurrent, d.Config.AuthTokenPrevious)
	if err != nil {
		return nil, err
	}
	users, err := occtl.NewUserSource(d.Config.OcctlOutputMode, d.Exec)
	if err != nil {
		return nil, err
	}

	api := http.NewServeMux()
	api.HandleFunc("/", notFound)
	agent.NewHandler(agent.HandlerConfig{
		Info:                 d.Info,
		Readiness:            d.Readiness,
		RadiusClientConfPath: d.Config.RadiusClientConfPath,
		RadiusServersPath:    d.Config.RadiusServersPath,
	}).Register(api)
	sessions.NewHandler(sessions.NewService(users, occtl.NewJSONReader(d.Exec))).Register(api)
	control.NewHandler(control.NewService(d.Exec, d.Publisher, d.Audit, d.Info.InstanceID, d.Logger)).Register(api)

	mux := httpserver.NewMux(d.Config.ServiceName)
	mux.Handle("/ocserv/", gate.Middleware(api))
	mux.HandleFunc("/", notFound)
	return mux, nil
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	apierror.Write(w, http.StatusNotFound, apierror.CodeNotFound, "Route not found")
}

// RunAgent loads shared dependencies, serves the API and blocks until
// SIGINT or SIGTERM.
func RunAgent(cfg config.Config) error {
	logger := logging.New(cfg.AppName, cfg.ServiceName, cfg.Env, cfg.LogLevel)
	startedAt := time.Now()

	identity := agent.LoadIdentity(cfg.InstanceIDPath)
	if !identity.Persisted {
		logger.Warn().Str("path", identity.Path).Msg("instance id is not persisted; it will change on restart")
	}
	info := agent.NewInfo(identity, startedAt)
	logger = logger.With().Str("instance_id", info.InstanceID).Logger()

	runner := occtl.NewRunner(occtl.RunnerConfig{
		Path:    cfg.OcctlPath,
		UseSudo: cfg.OcctlUseSudo,
		Timeout: cfg.OcctlTimeout,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps := Deps{
		Config:    cfg,
		Logger:    logger,
		Info:      info,
		Exec:      runner,
		Readiness: runner.WithTimeout(cfg.ReadinessTimeout),
	}

	if cfg.PostgresURL != "" {
		db, err := storage.NewPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return err
		}
		defer db.Close()
		deps.Audit = audit.NewPostgresRecorder(db)
		logger.Info().Msg("control action audit enabled")
	}

	if cfg.NATSURL != "" {
		nc, err := bus.Connect(cfg.NATSURL, cfg.AppName+"-"+info.InstanceID)
		if err != nil {
			return err
		}
		defer nc.Close()
		deps.Publisher = nc
		publishStarted(nc, info, logger)
	}

	if cfg.RedisAddr != "" {
		redisClient := storage.NewRedis(cfg.RedisAddr, cfg.AppName)
		defer redisClient.Close()
		presence := agent.NewPresence(redisClient, info, cfg.PresenceTTL, logger)
		presenceCtx, cancelPresence := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			presence.Run(presenceCtx)
			close(done)
		}()
		defer func() {
			cancelPresence()
			<-done
		}()
	}

	handler, err := NewHandler(deps)
	if err != nil {
		return err
	}
	logger.Info().
		Str("occtl", cfg.OcctlPath).
		Bool("sudo", cfg.OcctlUseSudo).
		Str("mode", cfg.OcctlOutputMode).
		Dur("timeout", cfg.OcctlTimeout).
		Msg("agent configured")
	return httpserver.Run(ctx, logger, cfg.HTTPPort, handler, cfg.ShutdownTimeout)
}

func publishStarted(nc *nats.Conn, info agent.Info, logger zerolog.Logger) {
	hostname := ""
	if info.Hostname != nil {
		hostname = *info.Hostname
	}
	raw, err := contracts.MarshalV1(uuid.NewString(), contracts.EventAgentStarted, time.Now().UTC(), "", info.InstanceID, contracts.AgentStartedV1{
		Version:   info.Version,
		Hostname:  hostname,
		StartedAt: info.StartedAt,
	})
	if err != nil {
		logger.Error().Err(err).Msg("marshal agent started event")
		return
	}
	msg := nats.NewMsg(contracts.SubjectAgentStarted)
	msg.Data = raw
	msg.Header.Set("content-type", "application/json")
	if err := nc.PublishMsg(msg); err != nil {
		logger.Warn().Err(err).Msg("publish agent started event")
	}
}
