package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	OutputModeJSON = "json"
	OutputModeText = "text"
)

// Config contains the agent's runtime settings. It is read once at startup
// and treated as immutable afterwards.
type Config struct {
	AppName     string
	ServiceName string
	Env         string
	LogLevel    string
	HTTPPort    int

	AuthTokenCurrent  string
	AuthTokenPrevious string

	OcctlPath        string
	OcctlUseSudo     bool
	OcctlTimeout     time.Duration
	ReadinessTimeout time.Duration
	OcctlOutputMode  string

	InstanceIDPath       string
	RadiusClientConfPath string
	RadiusServersPath    string

	PostgresURL string
	RedisAddr   string
	NATSURL     string
	PresenceTTL time.Duration

	ShutdownTimeout time.Duration
}

// LoadDotEnv loads KEY=VALUE files into the process environment. Variables
// that are already set win. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables.
func Load(serviceName string) (Config, error) {
	port, err := getPositiveInt("AGENT_PORT", 8088)
	if err != nil {
		return Config{}, err
	}
	timeoutMs, err := getPositiveInt("OCCTL_TIMEOUT_MS", 5000)
	if err != nil {
		return Config{}, err
	}
	readyMs, err := getPositiveInt("OCCTL_READY_TIMEOUT_MS", 1500)
	if err != nil {
		return Config{}, err
	}
	presenceSeconds, err := getPositiveInt("PRESENCE_TTL_SECONDS", 60)
	if err != nil {
		return Config{}, err
	}
	shutdownSeconds, err := getPositiveInt("SHUTDOWN_TIMEOUT_SECONDS", 10)
	if err != nil {
		return Config{}, err
	}
	useSudo, err := getBool("OCCTL_USE_SUDO", true)
	if err != nil {
		return Config{}, err
	}

	mode := strings.ToLower(getString("OCCTL_OUTPUT_MODE", OutputModeJSON))
	if mode != OutputModeJSON && mode != OutputModeText {
		return Config{}, fmt.Errorf("invalid OCCTL_OUTPUT_MODE %q (expected json or text)", mode)
	}

	current := getString("AGENT_AUTH_TOKEN_CURRENT", "")
	if current == "" {
		current = getString("AGENT_AUTH_TOKEN", "")
	}

	cfg := Config{
		AppName:              getString("APP_NAME", "racp-ocserv-agent"),
		ServiceName:          serviceName,
		Env:                  getString("APP_ENV", "production"),
		LogLevel:             getString("LOG_LEVEL", "info"),
		HTTPPort:             port,
		AuthTokenCurrent:     current,
		AuthTokenPrevious:    getString("AGENT_AUTH_TOKEN_PREVIOUS", ""),
		OcctlPath:            getString("OCCTL_PATH", "/usr/bin/occtl"),
		OcctlUseSudo:         useSudo,
		OcctlTimeout:         time.Duration(timeoutMs) * time.Millisecond,
		ReadinessTimeout:     time.Duration(readyMs) * time.Millisecond,
		OcctlOutputMode:      mode,
		InstanceIDPath:       getString("INSTANCE_ID_PATH", "/var/lib/ocserv-agent/instance-id"),
		RadiusClientConfPath: getString("RADIUSCLIENT_CONF_PATH", "/etc/radcli/radiusclient.conf"),
		RadiusServersPath:    getString("RADIUS_SERVERS_PATH", "/etc/radcli/servers"),
		PostgresURL:          getString("POSTGRES_URL", ""),
		RedisAddr:            getString("REDIS_ADDR", ""),
		NATSURL:              getString("NATS_URL", ""),
		PresenceTTL:          time.Duration(presenceSeconds) * time.Second,
		ShutdownTimeout:      time.Duration(shutdownSeconds) * time.Second,
	}

	return cfg, nil
}

func getString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getPositiveInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}

	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return parsed, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
