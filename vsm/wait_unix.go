//go:build unix

package vsm

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// pollReadable probes fd without blocking.
func pollReadable(fd uintptr, _ int) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		n, err := unix.Poll(fds, 0)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
		if fds[0].Revents&unix.POLLNVAL != 0 {
			return false, net.ErrClosed
		}
		return n > 0, nil
	}
}

// waitUnpollable blocks in poll(2) on the descriptor and a wake-up pipe
// written to when ctx is done.
func waitUnpollable(ctx context.Context, rc syscall.RawConn) error {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return newError(KindIO, "wait", "", err)
	}
	defer unix.Close(p[0])
	defer unix.Close(p[1])

	fired := make(chan struct{})
	unregister := context.AfterFunc(ctx, func() {
		defer close(fired)
		unix.Write(p[1], []byte{0}) //nolint:errcheck
	})
	defer func() {
		if !unregister() {
			<-fired
		}
	}()

	var (
		revents [2]int16
		perr    error
	)
	// Control holds a reference on the descriptor, so it is neither closed
	// nor reused while poll(2) watches it.
	cerr := rc.Control(func(fd uintptr) {
		fds := []unix.PollFd{
			{Fd: int32(fd), Events: unix.POLLIN},
			{Fd: int32(p[0]), Events: unix.POLLIN},
		}
		for {
			_, perr = unix.Poll(fds, -1)
			if perr != unix.EINTR {
				break
			}
		}
		revents = [2]int16{fds[0].Revents, fds[1].Revents}
	})
	switch {
	case cerr != nil:
		return newError(KindIO, "wait", "", cerr)
	case perr != nil:
		return newError(KindIO, "wait", "", perr)
	case revents[1] != 0:
		return ctx.Err()
	case revents[0]&unix.POLLNVAL != 0:
		return newError(KindIO, "wait", "", net.ErrClosed)
	}
	return nil
}
