//go:build !unix

package vsm

import (
	"context"
	"syscall"
)

// pollReadable defers to the runtime poller: the first probe asks it to
// wait, every later one reports ready.
func pollReadable(_ uintptr, calls int) (bool, error) {
	return calls > 0, nil
}

func waitUnpollable(context.Context, syscall.RawConn) error {
	return newError(KindIO, "wait", "", ErrWaitUnsupported)
}
