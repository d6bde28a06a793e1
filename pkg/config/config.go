// Package config holds the server settings and loads them from defaults, an
// optional YAML file and the environment.
//
// Precedence, lowest first:
//
//	defaults < settings file < environment < command-line flags
//
// Flags are applied by the caller after Load returns; Validate should run last.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/getmockd/mockapi/pkg/logging"
)

// Default values.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 53500
	DefaultMaxConnections  = 1000
	DefaultDBRoot          = "./database"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxBodyBytes    = 10 << 20
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

// Config is the complete set of server settings.
type Config struct {
	Host            string
	Port            int
	MaxConnections  int
	DBRoot          string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	// StrictBody selects deep equality for body matchers; false enables the
	// subset mode.
	StrictBody bool
	Log        LogConfig
}

// LogConfig selects the log level and output format. File, when set, receives
// a copy of every record in addition to stderr.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		MaxConnections:  DefaultMaxConnections,
		DBRoot:          DefaultDBRoot,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		MaxBodyBytes:    DefaultMaxBodyBytes,
		StrictBody:      true,
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// Addr returns the listen address host:port.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Logging converts the log settings for logging.New.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.Log.Level)
	cfg.Format = logging.ParseFormat(c.Log.Format)
	return cfg
}

// ValidationError describes one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate reports the first invalid setting. Port 0 is allowed and picks an
// ephemeral port.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return &ValidationError{Field: "port", Message: "port must be between 0 and 65535"}
	}
	if c.MaxConnections <= 0 {
		return &ValidationError{Field: "maxConnections", Message: "maxConnections must be > 0"}
	}
	if c.DBRoot == "" {
		return &ValidationError{Field: "dbRoot", Message: "dbRoot is required"}
	}
	if c.ReadTimeout <= 0 {
		return &ValidationError{Field: "readTimeout", Message: "readTimeout must be > 0"}
	}
	if c.WriteTimeout <= 0 {
		return &ValidationError{Field: "writeTimeout", Message: "writeTimeout must be > 0"}
	}
	if c.ShutdownTimeout <= 0 {
		return &ValidationError{Field: "shutdownTimeout", Message: "shutdownTimeout must be > 0"}
	}
	if c.MaxBodyBytes < 0 {
		return &ValidationError{Field: "maxBodyBytes", Message: "maxBodyBytes must be >= 0"}
	}
	return nil
}
