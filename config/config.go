// Package config defines the runtime configuration of the vsmsock bridge
// and the helpers that parse and validate it.
package config

import (
	"fmt"
	"strconv"
	"time"

	vsmerr "vsmsock/internal/errors"
)

// Config holds every tuneable for a bridge run.
type Config struct {
	// ── Transport ────────────────────────────────────────────────────
	Port       int // listening port, wildcard host
	BufferSize int // scratch buffer bytes, shared by send and receive

	// ── Console ──────────────────────────────────────────────────────
	Input string // file read for outgoing signals; "" or "-" is stdin

	// ── Accept loop ──────────────────────────────────────────────────
	AcceptRetries int           // attempts per accept before giving up
	AcceptBackoff time.Duration // initial delay between failed accepts

	// ── Output ───────────────────────────────────────────────────────
	Verbose int

	// ── Run control ──────────────────────────────────────────────────
	ConfigFile string // optional YAML file, see LoadFile
	DryRun     bool   // validate and exit
}

// New returns a Config populated with the defaults.
func New() *Config {
	return &Config{
		Port:          DefaultPort,
		BufferSize:    DefaultBufferSize,
		AcceptRetries: DefaultAcceptRetries,
		AcceptBackoff: DefaultAcceptBackoff,
		Verbose:       DefaultVerbose,
	}
}

// UsesStdin reports whether outgoing signals come from standard input.
func (c *Config) UsesStdin() bool { return c.Input == "" || c.Input == "-" }

// ── Port helper ──────────────────────────────────────────────────────

// ParsePort accepts a port in decimal, hexadecimal ("0x…") or octal
// (leading "0") notation.
func ParsePort(spec string) (int, error) {
	v, err := strconv.ParseUint(spec, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid port number %q", spec)
	}
	if v < 1 || v > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", v)
	}
	return int(v), nil
}

// ── Validation ───────────────────────────────────────────────────────

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &vsmerr.ConfigError{
			Field:   "port",
			Value:   c.Port,
			Message: "out of range 1-65535",
			Hint:    fmt.Sprintf("the default port is %d", DefaultPort),
		}
	}
	if c.BufferSize < MinBufferSize {
		return &vsmerr.ConfigError{
			Field:   "buffer-size",
			Value:   c.BufferSize,
			Message: fmt.Sprintf("must be at least %d bytes", MinBufferSize),
			Hint:    "the buffer must hold the longest name=value line plus one byte",
		}
	}
	if c.BufferSize > MaxBufferSize {
		return &vsmerr.ConfigError{
			Field:   "buffer-size",
			Value:   c.BufferSize,
			Message: fmt.Sprintf("must not exceed %d bytes", MaxBufferSize),
		}
	}
	if c.AcceptRetries < 0 {
		return &vsmerr.ConfigError{
			Field:   "accept-retries",
			Value:   c.AcceptRetries,
			Message: "must not be negative",
			Hint:    "use 0 to retry until shutdown",
		}
	}
	if c.AcceptBackoff < 0 {
		return &vsmerr.ConfigError{
			Field:   "accept-backoff",
			Value:   c.AcceptBackoff,
			Message: "must not be negative",
		}
	}
	return nil
}
