package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultPort is the listening port when none is given.
	DefaultPort = 60000

	// DefaultBufferSize is the scratch buffer size in bytes.
	DefaultBufferSize = 1024

	// MinBufferSize leaves room for "a=b\n" plus the terminator.
	MinBufferSize = 8

	// MaxBufferSize caps a single line at 1 MiB.
	MaxBufferSize = 1 << 20

	// DefaultAcceptRetries is how many consecutive accept failures are
	// tolerated before the bridge gives up.
	DefaultAcceptRetries = 5

	// DefaultAcceptBackoff is the first delay after a failed accept.
	DefaultAcceptBackoff = 100 * time.Millisecond

	// DefaultMaxAcceptBackoff caps the delay between accept attempts.
	DefaultMaxAcceptBackoff = 5 * time.Second

	// DefaultVerbose prints lifecycle messages but not per-signal logs.
	DefaultVerbose = 1
)
