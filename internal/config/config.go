// Package config loads client settings from an optional file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the config file (TOML, YAML
// or JSONC, chosen by extension), MYFTP_* environment variables. Command line
// flags are applied last by the caller.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

const (
	EnvTimeout     = "MYFTP_TIMEOUT"
	EnvRequireAuth = "MYFTP_REQUIRE_AUTH"
	EnvLogLevel    = "MYFTP_LOG_LEVEL"
	EnvLogFormat   = "MYFTP_LOG_FORMAT"
	EnvEchoReplies = "MYFTP_ECHO_REPLIES"
	EnvMaxRate     = "MYFTP_MAX_RATE"
)

// Config holds the resolved client settings.
type Config struct {
	// Timeout bounds each control connection read/write. Zero blocks forever.
	Timeout time.Duration

	// RequireAuthForRetrieval refuses get before a successful login.
	RequireAuthForRetrieval bool

	// LogLevel is one of debug, info, warn, error, off.
	LogLevel string

	// LogFormat is text, json, or empty to pick by terminal detection.
	LogFormat string

	// EchoReplies prints every server reply to the operator.
	EchoReplies bool

	// MaxRate caps retrieval speed in bytes per second. Zero is unlimited.
	MaxRate int64
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Timeout:                 0,
		RequireAuthForRetrieval: false,
		LogLevel:                "warn",
		LogFormat:               "",
		EchoReplies:             true,
	}
}

// fileConfig is the on-disk shape. Pointer fields tell "unset" apart from
// the zero value.
type fileConfig struct {
	Timeout                 *string `toml:"timeout" yaml:"timeout" json:"timeout"`
	RequireAuthForRetrieval *bool   `toml:"require_auth_for_retrieval" yaml:"require_auth_for_retrieval" json:"require_auth_for_retrieval"`
	LogLevel                *string `toml:"log_level" yaml:"log_level" json:"log_level"`
	LogFormat               *string `toml:"log_format" yaml:"log_format" json:"log_format"`
	EchoReplies             *bool   `toml:"echo_replies" yaml:"echo_replies" json:"echo_replies"`
	MaxRate                 *int64  `toml:"max_rate" yaml:"max_rate" json:"max_rate"`
}

// Load returns the defaults overlaid with the file at path (if path is not
// empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := readFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := apply(&cfg, raw); err != nil {
			return Config{}, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	}

	if err := applyEnvOverrides(&cfg, os.Getenv); err != nil {
		return Config{}, err
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readFile(path string) (fileConfig, error) {
	var raw fileConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return raw, fmt.Errorf("config load failed (%s): %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return raw, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	case ".json", ".jsonc":
		// Comments and trailing commas are stripped first
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&raw); err != nil {
			return raw, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
	default:
		meta, err := toml.Decode(string(data), &raw)
		if err != nil {
			return raw, fmt.Errorf("config parse failed (%s): %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return raw, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
		}
	}

	return raw, nil
}

func apply(cfg *Config, raw fileConfig) error {
	if raw.Timeout != nil {
		d, err := parseDuration(*raw.Timeout)
		if err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if raw.RequireAuthForRetrieval != nil {
		cfg.RequireAuthForRetrieval = *raw.RequireAuthForRetrieval
	}
	if raw.LogLevel != nil {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(*raw.LogLevel))
	}
	if raw.LogFormat != nil {
		cfg.LogFormat = strings.ToLower(strings.TrimSpace(*raw.LogFormat))
	}
	if raw.EchoReplies != nil {
		cfg.EchoReplies = *raw.EchoReplies
	}
	if raw.MaxRate != nil {
		cfg.MaxRate = *raw.MaxRate
	}
	return nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	if v := strings.TrimSpace(getenv(EnvTimeout)); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvTimeout, err)
		}
		cfg.Timeout = d
	}
	if v, ok := parseBool(getenv(EnvRequireAuth)); ok {
		cfg.RequireAuthForRetrieval = v
	}
	if v := strings.TrimSpace(getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := strings.TrimSpace(getenv(EnvLogFormat)); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v, ok := parseBool(getenv(EnvEchoReplies)); ok {
		cfg.EchoReplies = v
	}
	if v := strings.TrimSpace(getenv(EnvMaxRate)); v != "" {
		rate, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", EnvMaxRate, err)
		}
		cfg.MaxRate = rate
	}
	return nil
}

// Validate checks that every field holds a supported value.
func Validate(cfg Config) error {
	if cfg.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", cfg.Timeout)
	}
	if cfg.MaxRate < 0 {
		return fmt.Errorf("max rate must not be negative: %d", cfg.MaxRate)
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "off":
	default:
		return fmt.Errorf("unsupported log level %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}
	return nil
}

func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}
