// Package config manages the eapd daemon configuration using koanf/v2.
//
// Supports built-in defaults, a YAML file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete eapd daemon configuration.
type Config struct {
	Transport TransportConfig `koanf:"transport"`
	Status    StatusConfig    `koanf:"status"`
	Metrics   MetricsConfig   `koanf:"metrics"`
	Log       LogConfig       `koanf:"log"`
	Session   SessionConfig   `koanf:"session"`
	TLS       TLSConfig       `koanf:"tls"`
	Auth      AuthConfig      `koanf:"auth"`
}

// TransportConfig holds the UDP transport listener configuration.
type TransportConfig struct {
	// Addr is the UDP listen address (e.g., ":3799", the RADIUS/EAP
	// relay convention this daemon follows for its demo transport).
	Addr string `koanf:"addr"`

	// RecvBufBytes sets SO_RCVBUF on the listening socket. Zero leaves
	// the kernel default in place.
	RecvBufBytes int `koanf:"recv_buf_bytes"`
}

// StatusConfig holds the plain HTTP status/control endpoint configuration.
type StatusConfig struct {
	// Addr is the HTTP listen address (e.g., ":8080").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// SessionConfig holds session thresholds, mirroring the Environment
// options in internal/eap. Only IdleTimeout is used by the daemon: the
// three Max* thresholds are loaded and validated, but the session manager
// does not pass them on, so every hosted session runs with internal/eap's
// default limits.
type SessionConfig struct {
	// MaxInvalidMessageCount is the invalid-message threshold before a
	// session fails (SPEC_FULL.md Section 6).
	MaxInvalidMessageCount int `koanf:"max_invalid_message_count"`

	// MaxRetransmitCount is the Authenticator retransmit threshold
	// before a session fails with Timeout.
	MaxRetransmitCount int `koanf:"max_retransmit_count"`

	// MaxTimeoutCount is the Peer idle-timeout threshold before a
	// session fails with Timeout.
	MaxTimeoutCount int `koanf:"max_timeout_count"`

	// IdleTimeout is how long a session may sit without an inbound
	// packet before the daemon's expiry sweep calls Timeout() on it.
	IdleTimeout time.Duration `koanf:"idle_timeout"`
}

// TLSConfig names the certificate material for the EAP-TLS method, when
// configured as an available authentication method.
type TLSConfig struct {
	// Enabled selects whether EAP-TLS is offered alongside MD5-Challenge.
	Enabled bool `koanf:"enabled"`
	// CertFile is the PEM-encoded server certificate path.
	CertFile string `koanf:"cert_file"`
	// KeyFile is the PEM-encoded private key path.
	KeyFile string `koanf:"key_file"`
	// ClientCAFile is a PEM bundle of CAs trusted for client certificates.
	ClientCAFile string `koanf:"client_ca_file"`
}

// AuthConfig carries the shared secret used by the MD5-Challenge method.
// MD5-Challenge is offered whether or not EAP-TLS is enabled, so this
// section is always consulted.
type AuthConfig struct {
	// Password is the shared MD5-Challenge secret. If left empty, eapd
	// generates a random one at startup and logs it, since an empty
	// secret would let any response digest match.
	Password string `koanf:"password"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Transport: TransportConfig{
			Addr: ":3799",
		},
		Status: StatusConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			MaxInvalidMessageCount: 10,
			MaxRetransmitCount:     4,
			MaxTimeoutCount:        10,
			IdleTimeout:            30 * time.Second,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for eapd configuration.
// Variables are named EAPD_<section>_<key>, e.g., EAPD_TRANSPORT_ADDR.
const envPrefix = "EAPD_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (EAPD_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	EAPD_TRANSPORT_ADDR -> transport.addr
//	EAPD_STATUS_ADDR     -> status.addr
//	EAPD_METRICS_ADDR    -> metrics.addr
//	EAPD_METRICS_PATH    -> metrics.path
//	EAPD_LOG_LEVEL       -> log.level
//	EAPD_LOG_FORMAT      -> log.format
//	EAPD_AUTH_PASSWORD   -> auth.password
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms EAPD_TRANSPORT_ADDR -> transport.addr.
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"transport.addr":                    defaults.Transport.Addr,
		"transport.recv_buf_bytes":          defaults.Transport.RecvBufBytes,
		"status.addr":                       defaults.Status.Addr,
		"metrics.addr":                      defaults.Metrics.Addr,
		"metrics.path":                      defaults.Metrics.Path,
		"log.level":                         defaults.Log.Level,
		"log.format":                        defaults.Log.Format,
		"session.max_invalid_message_count": defaults.Session.MaxInvalidMessageCount,
		"session.max_retransmit_count":      defaults.Session.MaxRetransmitCount,
		"session.max_timeout_count":         defaults.Session.MaxTimeoutCount,
		"session.idle_timeout":              defaults.Session.IdleTimeout.String(),
		"auth.password":                     defaults.Auth.Password,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyTransportAddr indicates the transport listen address is empty.
	ErrEmptyTransportAddr = errors.New("transport.addr must not be empty")

	// ErrEmptyStatusAddr indicates the status listen address is empty.
	ErrEmptyStatusAddr = errors.New("status.addr must not be empty")

	// ErrInvalidSessionThreshold indicates a session threshold is negative.
	ErrInvalidSessionThreshold = errors.New("session thresholds must be >= 0")

	// ErrTLSMaterialMissing indicates TLS is enabled but cert/key paths
	// are not both set.
	ErrTLSMaterialMissing = errors.New("tls.cert_file and tls.key_file are required when tls.enabled")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Transport.Addr == "" {
		return ErrEmptyTransportAddr
	}

	if cfg.Status.Addr == "" {
		return ErrEmptyStatusAddr
	}

	if cfg.Session.MaxInvalidMessageCount < 0 || cfg.Session.MaxRetransmitCount < 0 || cfg.Session.MaxTimeoutCount < 0 {
		return ErrInvalidSessionThreshold
	}

	if cfg.TLS.Enabled && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		return ErrTLSMaterialMissing
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
