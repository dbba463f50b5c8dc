// Package config provides functionality for managing configuration options
// for the application using command-line flags, a JSON config file and
// environment variables, applied in that order.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Options holds the configuration values for the server.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string `json:"address" env:"SERVER_ADDRESS"`

	// DatabaseDSN holds the PostgreSQL connection string used by the
	// operation log and the approver registry.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// Config is the path to the Config file.
	Config string `json:"-" env:"CONFIG"`

	// VaultPath is the bbolt file holding identities and sealed secrets.
	VaultPath string `json:"vault_path" env:"VAULT_PATH"`

	// VaultKey is the key material the vault derives its sealing key from.
	VaultKey string `json:"-" env:"VAULT_KEY"`

	// RegistryURL is the base URL of the external group registry.
	RegistryURL string `json:"registry_url" env:"REGISTRY_URL"`

	// ProverURL is the base URL of the proof engine sidecar.
	ProverURL string `json:"prover_url" env:"PROVER_URL"`

	// RedisAddr enables approval notifications over Redis pub/sub when set.
	RedisAddr string `json:"redis_addr" env:"REDIS_ADDR"`

	// RedisChannel is the pub/sub channel pending requests are published to.
	RedisChannel string `json:"redis_channel" env:"REDIS_CHANNEL"`

	// Durations are read from the config file as strings such as "90s" by
	// UnmarshalJSON under request_timeout, settled_retention and
	// history_retention.

	// RequestTimeout bounds how long a request may stay pending. Zero
	// disables the timeout.
	RequestTimeout time.Duration `json:"-" env:"REQUEST_TIMEOUT"`

	// SettledRetention is how long settled requests are kept as tombstones.
	SettledRetention time.Duration `json:"-" env:"SETTLED_RETENTION"`

	// HistoryRetention is how long operation log entries are kept. Zero
	// keeps the log append-only.
	HistoryRetention time.Duration `json:"-" env:"HISTORY_RETENTION"`

	// AllowedOrigins lists the browser origins allowed to call the public
	// RPC endpoint cross-origin. Entries may hold one "*" wildcard.
	AllowedOrigins []string `json:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	// LogLevel is the zap level name.
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// CertDir holds ca.crt, ca.key, server.crt and server.key.
	CertDir string `json:"cert_dir" env:"CERT_DIR"`
}

// DefaultAllowedOrigins admits any HTTPS site and local development servers.
// Each origin still needs an approver decision for anything it asks.
func DefaultAllowedOrigins() []string {
	return []string{"https://*", "http://localhost:*", "http://127.0.0.1:*"}
}

// register binds flags and their defaults onto o.
func (o *Options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.Port, "a", "localhost:8080", "run on ip:port server")
	fs.StringVar(&o.DatabaseDSN, "d", "", "db address")
	fs.StringVar(&o.Config, "config", "config.json", "path to config file")
	fs.StringVar(&o.Config, "c", "config.json", "path to config file (shorthand)")
	fs.StringVar(&o.VaultPath, "vault", "vault.db", "path to the identity vault file")
	fs.StringVar(&o.RegistryURL, "registry", "https://api.bandada.pse.dev", "group registry base URL")
	fs.StringVar(&o.ProverURL, "prover", "http://localhost:8090", "proof engine base URL")
	fs.StringVar(&o.RedisAddr, "redis", "", "redis address for approval notifications")
	fs.StringVar(&o.RedisChannel, "redis-channel", "zkkeeper:pending", "redis channel for approval notifications")
	fs.DurationVar(&o.RequestTimeout, "request-timeout", 0, "pending request timeout (0 disables)")
	fs.DurationVar(&o.SettledRetention, "settled-retention", 10*time.Minute, "how long settled requests are remembered")
	fs.DurationVar(&o.HistoryRetention, "history-retention", 0, "operation log retention (0 keeps every entry)")
	fs.Func("allowed-origins", "comma separated origins allowed to call the public RPC (default https://*,http://localhost:*,http://127.0.0.1:*)", func(v string) error {
		o.AllowedOrigins = splitList(v)
		return nil
	})
	fs.StringVar(&o.LogLevel, "log-level", "info", "log level")
	fs.StringVar(&o.CertDir, "certs", "certs", "directory with TLS material")
}

// durationField decodes a JSON duration string into the field it points at.
type durationField struct{ d *time.Duration }

func (f durationField) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*f.d = d
	return nil
}

// UnmarshalJSON reads a config file into o. Keys missing from the file
// leave the current values untouched.
func (o *Options) UnmarshalJSON(data []byte) error {
	type plain Options
	aux := struct {
		*plain
		RequestTimeout   durationField `json:"request_timeout"`
		SettledRetention durationField `json:"settled_retention"`
		HistoryRetention durationField `json:"history_retention"`
	}{
		plain:            (*plain)(o),
		RequestTimeout:   durationField{&o.RequestTimeout},
		SettledRetention: durationField{&o.SettledRetention},
		HistoryRetention: durationField{&o.HistoryRetention},
	}
	return json.Unmarshal(data, &aux)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseArgs parses args into a fresh Options. A config file, when present,
// overrides flag values; environment variables override both.
func ParseArgs(fs *flag.FlagSet, args []string) (*Options, error) {
	o := &Options{}
	o.register(fs)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if configPath := os.Getenv("CONFIG"); configPath != "" {
		o.Config = configPath
	}

	if o.Config != "" {
		data, err := os.ReadFile(o.Config)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := json.Unmarshal(data, o); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.Parse(o); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = DefaultAllowedOrigins()
	}
	if o.VaultKey == "" {
		return nil, errors.New("vault key is required (VAULT_KEY)")
	}
	return o, nil
}

// Parse parses the process command line and environment. It exits the
// process on invalid configuration.
func Parse() *Options {
	o, err := ParseArgs(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	return o
}
