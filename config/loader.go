package config

// loader.go - configuration loading from environment variables.
//
// Precedence order (highest wins):
//   1. CLI flags  (handled by cmd/root.go)
//   2. Environment variables  (this file)
//   3. Config file  (file.go)
//   4. Defaults   (defaults.go)

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ── Environment variable mapping ─────────────────────────────────────
//
// Every supported env var uses the VSM_ prefix.  Boolean values
// accept "1", "true", "yes" (case-insensitive).

// LoadFromEnv overlays environment variables onto cfg.  Only non-empty,
// well-formed env vars override the existing value.  This should be
// called BEFORE CLI flag parsing so that flags take precedence.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("VSM_PORT"); v != "" {
		if port, err := ParsePort(v); err == nil {
			cfg.Port = port
		}
	}
	if v := envInt("VSM_BUFFER_SIZE"); v > 0 {
		cfg.BufferSize = v
	}
	if v := os.Getenv("VSM_INPUT"); v != "" {
		cfg.Input = v
	}
	if v, ok := envIntOK("VSM_ACCEPT_RETRIES"); ok && v >= 0 {
		cfg.AcceptRetries = v
	}
	if v := envInt("VSM_ACCEPT_BACKOFF_MS"); v > 0 {
		cfg.AcceptBackoff = time.Duration(v) * time.Millisecond
	}
	if v, ok := envIntOK("VSM_VERBOSE"); ok && v >= 0 {
		cfg.Verbose = v
	}
	if envBool("VSM_DRY_RUN") {
		cfg.DryRun = true
	}
}

// ── helpers ──────────────────────────────────────────────────────────

func envInt(key string) int {
	v, _ := envIntOK(key)
	return v
}

func envIntOK(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envBool(key string) bool {
	v := strings.ToLower(os.Getenv(key))
	return v == "1" || v == "true" || v == "yes"
}
