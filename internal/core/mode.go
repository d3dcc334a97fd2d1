// Package core is the orchestration layer.  It composes the signal
// library, the retry policy and a console into the bridge that the
// command runs, and provides a builder that derives it from a Config.
//
// Architecture layers (bottom → top):
//
//	vsm  →  session  →  core  →  cmd (CLI)
package core

import "context"

// Mode represents a complete run of vsmsock.  It owns its full
// lifecycle from listening to teardown and returns when ctx is done or
// an unrecoverable error occurs.
type Mode interface {
	Run(ctx context.Context) error
}
