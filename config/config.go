// Package config builds the process configuration of a plugin from a
// .env file, the environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Transport names.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Environment variables read by FromEnv.
const (
	EnvTransport = "STENCILA_TRANSPORT"
	EnvPort      = "STENCILA_PORT"
	EnvToken     = "STENCILA_TOKEN"
	EnvLogLevel  = "STENCILA_LOG_LEVEL"
)

const (
	DefaultMaxBodyBytes    int64 = 32 << 20 // 32MB
	DefaultShutdownTimeout       = 5 * time.Second
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the explicit configuration handed to plugin.Run.
type Config struct {
	Transport       string
	Port            int
	Token           string
	LogLevel        string
	MaxBodyBytes    int64
	ShutdownTimeout time.Duration
}

// Default returns a stdio configuration with default limits.
func Default() Config {
	return Config{
		Transport:       TransportStdio,
		LogLevel:        "info",
		MaxBodyBytes:    DefaultMaxBodyBytes,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv overlays the STENCILA_* variables found by lookup on Default.
// An unset or empty STENCILA_TRANSPORT means stdio.
func FromEnv(lookup LookupFunc) (Config, error) {
	cfg := Default()
	if v, ok := lookup(EnvTransport); ok && v != "" {
		cfg.Transport = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return cfg, fmt.Errorf("%w: %s: %q is not a port number", ErrInvalid, EnvPort, v)
		}
		cfg.Port = port
	}
	if v, ok := lookup(EnvToken); ok {
		cfg.Token = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}
	return cfg, nil
}

// Load reads envFile (when non-empty) with godotenv and then the process
// environment. Process variables take precedence over the file, matching
// godotenv.Load. A missing envFile is an error; use "" to skip the file.
func Load(envFile string) (Config, error) {
	var file map[string]string
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
		}
		file = m
	}
	return FromEnv(Chain(os.LookupEnv, MapLookup(file)))
}

// MapLookup adapts a map to a LookupFunc.
func MapLookup(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

// Chain returns a LookupFunc that tries each lookup in order.
func Chain(lookups ...LookupFunc) LookupFunc {
	return func(key string) (string, bool) {
		for _, l := range lookups {
			if v, ok := l(key); ok {
				return v, true
			}
		}
		return "", false
	}
}

// Validate checks the configuration. Errors wrap ErrInvalid.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportStdio:
	case TransportHTTP:
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("%w: port %d out of range", ErrInvalid, c.Port)
		}
		if c.Token == "" {
			return fmt.Errorf("%w: http transport requires a token (%s)", ErrInvalid, EnvToken)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, c.Transport)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("%w: negative body limit", ErrInvalid)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("%w: negative shutdown timeout", ErrInvalid)
	}
	return nil
}
