package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/rs/zerolog"
)

const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
)

// Config is the process configuration. Every flag can also be set through
// the environment: --storage-backend reads STORAGE_BACKEND, and so on.
// Flags win over environment variables.
type Config struct {
	Port            int
	StorageBackend  string
	BoltPath        string
	DatabaseURL     string
	LogLevel        string
	LogFormat       string
	LogFile         string
	GRPCHealthAddr  string
	ShutdownTimeout time.Duration
}

// UsageError is returned for bad flags or -h; Help holds the rendered flag help.
type UsageError struct {
	Err  error
	Help string
}

func (e *UsageError) Error() string { return e.Err.Error() }
func (e *UsageError) Unwrap() error { return e.Err }

// IsHelp reports whether err is the result of an explicit -h/--help.
func IsHelp(err error) bool { return errors.Is(err, ff.ErrHelp) }

func Load(args []string) (Config, error) {
	fs := ff.NewFlagSet("receipt-processor")
	var (
		port            = fs.IntLong("port", 8080, "HTTP listen port")
		storageBackend  = fs.StringLong("storage-backend", BackendMemory, "score store: memory, bolt or postgres")
		boltPath        = fs.StringLong("bolt-path", "receipts.db", "database file for the bolt backend")
		databaseURL     = fs.StringLong("database-url", "", "Postgres DSN for the postgres backend")
		logLevel        = fs.StringLong("log-level", "info", "log level: trace, debug, info, warn, error")
		logFormat       = fs.StringLong("log-format", "console", "log format on stderr: console or json")
		logFile         = fs.StringLong("log-file", "", "also append JSON logs to this file")
		grpcHealthAddr  = fs.StringLong("grpc-health-addr", "", "serve grpc.health.v1 on this address (disabled when empty)")
		shutdownTimeout = fs.DurationLong("shutdown-timeout", 10*time.Second, "graceful shutdown deadline")
	)

	if err := ff.Parse(fs, args, ff.WithEnvVars()); err != nil {
		return Config{}, &UsageError{Err: err, Help: fmt.Sprintf("%s", ffhelp.Flags(fs))}
	}
	cfg := Config{
		Port:            *port,
		StorageBackend:  *storageBackend,
		BoltPath:        *boltPath,
		DatabaseURL:     *databaseURL,
		LogLevel:        *logLevel,
		LogFormat:       *logFormat,
		LogFile:         *logFile,
		GRPCHealthAddr:  *grpcHealthAddr,
		ShutdownTimeout: *shutdownTimeout,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port must be in 1..65535, got %d", c.Port)
	}
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	switch c.StorageBackend {
	case BackendMemory:
	case BackendBolt:
		if strings.TrimSpace(c.BoltPath) == "" {
			return errors.New("bolt backend requires BOLT_PATH")
		}
	case BackendPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return errors.New("postgres backend requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown storage backend %q (expected memory|bolt|postgres)", c.StorageBackend)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}
