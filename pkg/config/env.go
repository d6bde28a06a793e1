package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Environment variable names. PORT, MAX_CONNECTIONS and MOCK_SERVER_DB_ROOT
// keep the names existing deployments already set.
const (
	EnvPort            = "PORT"
	EnvMaxConnections  = "MAX_CONNECTIONS"
	EnvDBRoot          = "MOCK_SERVER_DB_ROOT"
	EnvHost            = "MOCKAPI_HOST"
	EnvConfig          = "MOCKAPI_CONFIG"
	EnvReadTimeout     = "MOCKAPI_READ_TIMEOUT"
	EnvWriteTimeout    = "MOCKAPI_WRITE_TIMEOUT"
	EnvShutdownTimeout = "MOCKAPI_SHUTDOWN_TIMEOUT"
	EnvMaxBodyBytes    = "MOCKAPI_MAX_BODY_BYTES"
	EnvStrictBody      = "MOCKAPI_STRICT_BODY"
	EnvLogLevel        = "MOCKAPI_LOG_LEVEL"
	EnvLogFormat       = "MOCKAPI_LOG_FORMAT"
	EnvLogFile         = "MOCKAPI_LOG_FILE"
)

// ApplyEnv overlays every variable that is set and non-empty onto cfg. A
// value that does not parse is an error naming the variable.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvHost); v != "" {
		cfg.Host = v
	}
	if v := getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvPort, v, err)
		}
		cfg.Port = port
	}
	if v := getenv(EnvMaxConnections); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return envError(EnvMaxConnections, v, err)
		}
		cfg.MaxConnections = n
	}
	if v := getenv(EnvDBRoot); v != "" {
		cfg.DBRoot = v
	}

	for _, d := range []struct {
		name string
		dst  *time.Duration
	}{
		{EnvReadTimeout, &cfg.ReadTimeout},
		{EnvWriteTimeout, &cfg.WriteTimeout},
		{EnvShutdownTimeout, &cfg.ShutdownTimeout},
	} {
		if v := getenv(d.name); v != "" {
			dur, err := parseDuration(v)
			if err != nil {
				return envError(d.name, v, err)
			}
			*d.dst = dur
		}
	}

	if v := getenv(EnvMaxBodyBytes); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return envError(EnvMaxBodyBytes, v, err)
		}
		cfg.MaxBodyBytes = n
	}
	if v := getenv(EnvStrictBody); v != "" {
		b, err := parseBool(v)
		if err != nil {
			return envError(EnvStrictBody, v, err)
		}
		cfg.StrictBody = b
	}
	if v := getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := getenv(EnvLogFormat); v != "" {
		cfg.Log.Format = v
	}
	if v := getenv(EnvLogFile); v != "" {
		cfg.Log.File = v
	}
	return nil
}

func envError(name, value string, err error) error {
	return fmt.Errorf("invalid %s=%q: %w", name, value, err)
}

// parseDuration accepts Go durations ("30s", "1m30s") and bare integers,
// which are taken as seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}
