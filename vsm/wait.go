package vsm

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
	"time"
)

// Descriptor is a snapshot of a readable endpoint taken while the caller
// holds its lock.  [WaitReadable] blocks on it after the lock is released.
//
// The zero Descriptor is always ready.
type Descriptor struct {
	conn     syscall.Conn
	deadline func(time.Time) error
	buffered int
	closed   bool

	// listening sockets are polled; done is closed by Teardown
	listener bool
	done     <-chan struct{}
}

// ConnDescriptor returns a Descriptor for any endpoint exposing its raw
// socket or file: a [net.Conn], a [*net.TCPListener] or an [*os.File].
func ConnDescriptor(c syscall.Conn) Descriptor {
	if _, ok := c.(net.Listener); ok {
		return Descriptor{conn: c, listener: true}
	}
	d := Descriptor{conn: c}
	switch v := c.(type) {
	case interface{ SetReadDeadline(time.Time) error }:
		d.deadline = v.SetReadDeadline
	case interface{ SetDeadline(time.Time) error }:
		d.deadline = v.SetDeadline
	}
	return d
}

// ReaderDescriptor returns a Descriptor for r when it exposes a raw
// descriptor, and an always-ready Descriptor otherwise (in-memory readers
// never block).
func ReaderDescriptor(r io.Reader) Descriptor {
	if c, ok := r.(syscall.Conn); ok {
		return ConnDescriptor(c)
	}
	return Descriptor{}
}

// WaitReadable blocks until d is readable, ctx is done, or the endpoint
// behind d fails.  It must be called without holding the lock that
// protects the Connection the snapshot came from.
//
// Closing the socket from another goroutine makes a pending wait fail
// promptly.  Cancelling ctx also ends the wait, in which case ctx.Err()
// is returned.  Readable includes end of stream and pending errors: the
// following read will not block.
//
// Listening sockets and files that the runtime poller cannot watch, such
// as a terminal on standard input, are waited on with poll(2) next to a
// wake-up pipe that fires on cancellation.  For the listener of a
// Connection, Teardown fires it too.  On other files only ctx (not a
// concurrent close) is guaranteed to end the wait.
func WaitReadable(ctx context.Context, d Descriptor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.closed {
		return newError(KindIO, "wait", "", net.ErrClosed)
	}
	if d.conn == nil || d.buffered > 0 {
		return nil
	}

	rc, err := d.conn.SyscallConn()
	if err != nil {
		return newError(KindIO, "wait", "", err)
	}
	if d.listener {
		return waitListener(ctx, rc, d.done)
	}
	if d.deadline == nil || errors.Is(d.deadline(time.Time{}), os.ErrNoDeadline) {
		return waitUnpollable(ctx, rc)
	}

	stop := watchDeadline(ctx, d.deadline)
	var (
		calls int
		perr  error
	)
	err = rc.Read(func(fd uintptr) bool {
		ready, err := pollReadable(fd, calls)
		calls++
		if err != nil {
			perr = err
			return true
		}
		return ready
	})
	if stop() {
		return ctx.Err()
	}
	if err == nil {
		err = perr
	}
	if err != nil {
		return newError(KindIO, "wait", "", err)
	}
	return nil
}

// waitListener blocks until a client is pending on a listening socket.
// The runtime poller has no readiness wait for listeners, so the socket is
// polled next to the wake-up pipe.  A closed done ends the wait like ctx
// does, before the socket itself is closed.
func waitListener(ctx context.Context, rc syscall.RawConn, done <-chan struct{}) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if done != nil {
		go func() {
			select {
			case <-done:
				cancel()
			case <-wctx.Done():
			}
		}()
	}

	err := waitUnpollable(wctx, rc)
	switch {
	case isClosed(done):
		return newError(KindIO, "wait", "", net.ErrClosed)
	case ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, ErrWaitUnsupported):
		// Accept does the blocking where poll(2) is not available.
		return nil
	}
	return err
}

func isClosed(done <-chan struct{}) bool {
	if done == nil {
		return false
	}
	select {
	case <-done:
		return true
	default:
		return false
	}
}
