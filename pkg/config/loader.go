package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Common errors for loading the settings file.
var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrInvalidYAML  = errors.New("invalid YAML syntax")
)

// fileConfig mirrors Config as it appears in the settings file. Pointers and
// strings distinguish "absent" from zero values.
type fileConfig struct {
	Host            string      `yaml:"host"`
	Port            *int        `yaml:"port"`
	MaxConnections  *int        `yaml:"maxConnections"`
	DBRoot          string      `yaml:"dbRoot"`
	ReadTimeout     string      `yaml:"readTimeout"`
	WriteTimeout    string      `yaml:"writeTimeout"`
	ShutdownTimeout string      `yaml:"shutdownTimeout"`
	MaxBodyBytes    *int64      `yaml:"maxBodyBytes"`
	StrictBody      *bool       `yaml:"strictBody"`
	Log             fileLogging `yaml:"log"`
}

type fileLogging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Load builds the effective settings: defaults, then the settings file at
// path (or the file named by MOCKAPI_CONFIG when path is empty), then the
// environment read through getenv. A nil getenv uses os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()

	if path == "" {
		path = getenv(EnvConfig)
	}
	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := ApplyEnv(&cfg, getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile reads the YAML settings file at path and overlays every field it
// sets onto cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := decode(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func decode(data []byte, cfg *Config) error {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty file sets nothing.
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return fc.apply(cfg)
}

func (fc *fileConfig) apply(cfg *Config) error {
	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.MaxConnections != nil {
		cfg.MaxConnections = *fc.MaxConnections
	}
	if fc.DBRoot != "" {
		cfg.DBRoot = fc.DBRoot
	}
	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"readTimeout", fc.ReadTimeout, &cfg.ReadTimeout},
		{"writeTimeout", fc.WriteTimeout, &cfg.WriteTimeout},
		{"shutdownTimeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := parseDuration(d.raw)
		if err != nil {
			return &ValidationError{Field: d.field, Message: err.Error()}
		}
		*d.dst = v
	}
	if fc.MaxBodyBytes != nil {
		cfg.MaxBodyBytes = *fc.MaxBodyBytes
	}
	if fc.StrictBody != nil {
		cfg.StrictBody = *fc.StrictBody
	}
	if fc.Log.Level != "" {
		cfg.Log.Level = fc.Log.Level
	}
	if fc.Log.Format != "" {
		cfg.Log.Format = fc.Log.Format
	}
	if fc.Log.File != "" {
		cfg.Log.File = fc.Log.File
	}
	return nil
}
