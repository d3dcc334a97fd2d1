// Package errors provides the error types and classification helpers
// used by the vsmsock command and bridge.
//
// The signal library reports its own failures as *vsm.Error; this
// package adds configuration errors and decides which failures are
// worth retrying or can be ignored during shutdown.
package errors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"vsmsock/vsm"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrPeerClosed  = errors.New("client closed the connection")
	ErrInputFailed = errors.New("console input failed")
)

// ── Structured error types ───────────────────────────────────────────

// ConfigError represents an invalid configuration value.
type ConfigError struct {
	Field   string      // config field name
	Value   interface{} // the invalid value (nil if missing)
	Message string      // human-readable explanation
	Hint    string      // suggestion for the user (optional)
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("config: --%s", e.Field)
	if e.Value != nil {
		msg += fmt.Sprintf("=%v", e.Value)
	}
	msg += ": " + e.Message
	if e.Hint != "" {
		msg += "\n  hint: " + e.Hint
	}
	return msg
}

// ── Classification helpers ───────────────────────────────────────────

// IsRetryable reports whether err is worth retrying.  Accept failures
// are; init, I/O and protocol failures are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var ve *vsm.Error
	if errors.As(err, &ve) {
		return ve.Retryable() && !errors.Is(ve, vsm.ErrTornDown) && !errors.Is(ve, net.ErrClosed)
	}
	return false
}

// IsShutdown reports whether err is the expected outcome of cancelling
// a context or closing a socket during shutdown.
func IsShutdown(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, net.ErrClosed)
}

// IsEndOfStream reports whether err marks a clean end of input.
func IsEndOfStream(err error) bool {
	return errors.Is(err, io.EOF)
}

// ── Re-exports for convenience ───────────────────────────────────────

// Is is [errors.Is], so callers matching the sentinels above need only
// this package.
func Is(err, target error) bool { return errors.Is(err, target) }
