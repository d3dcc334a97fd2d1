package core

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	vsmerr "vsmsock/internal/errors"
	"vsmsock/internal/metrics"
	"vsmsock/internal/retry"
	"vsmsock/internal/session"
	"vsmsock/util"
	"vsmsock/vsm"
)

// BridgeMode serves one client at a time on a vsm Connection.  Signals
// from the client are echoed to Output as "> name=value"; lines typed on
// the console are sent to the client as string signals.
type BridgeMode struct {
	Port       int
	BufferSize int
	Backoff    *retry.Backoff
	Metrics    *metrics.Collector
	Logger     *util.Logger

	// Input is the console.  When nil, InputPath is opened, or os.Stdin
	// is used if that is empty too.
	Input     io.Reader
	InputPath string
	// Output defaults to os.Stdout when nil.
	Output io.Writer
	// Prompt prints a hint once the console is being read.
	Prompt bool

	// OnListen, when set, is called with the bound address before the
	// first accept.
	OnListen func(addr net.Addr)
}

func (m *BridgeMode) output() io.Writer {
	if m.Output != nil {
		return m.Output
	}
	return os.Stdout
}

// openInput returns the console reader and a function that releases it.
func (m *BridgeMode) openInput() (io.Reader, func(), error) {
	switch {
	case m.Input != nil:
		return m.Input, func() {}, nil
	case m.InputPath != "":
		f, err := os.Open(m.InputPath)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", vsmerr.ErrInputFailed, err)
		}
		return f, func() { f.Close() }, nil
	default:
		return os.Stdin, func() {}, nil
	}
}

// Run listens, then accepts and serves clients until ctx is done, the
// accept retry budget runs out, or the console fails.
func (m *BridgeMode) Run(ctx context.Context) error {
	input, release, err := m.openInput()
	if err != nil {
		return err
	}
	defer release()

	conn, err := vsm.Init(m.Port, make([]byte, m.BufferSize))
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Teardown(); err != nil && !util.IsHarmless(err) {
			m.Logger.Warn("teardown: %v", err)
		}
		m.Logger.Verbose("metrics: %s", m.Metrics.JSON())
	}()

	m.Logger.Info("listening on port %d", util.PortOf(conn.Addr()))
	if m.OnListen != nil {
		m.OnListen(conn.Addr())
	}

	var mu sync.Mutex
	consoleBuf := make([]byte, m.BufferSize)

	for {
		m.Logger.Info("waiting for client...")
		if err := m.accept(ctx, &mu, conn); err != nil {
			if ctx.Err() != nil {
				m.Logger.Verbose("shutting down")
				return nil
			}
			return fmt.Errorf("accept client: %w", err)
		}

		sess := session.New(conn, &mu, input, m.output(), m.Logger)
		m.Metrics.ClientAttached()
		sess.Logger.Info("client connected from %s", conn.RemoteAddr())

		err := m.serve(ctx, sess, consoleBuf)

		if cerr := sess.Close(); cerr != nil && !util.IsHarmless(cerr) {
			sess.Logger.Warn("close: %v", cerr)
		}
		m.Metrics.ClientDetached()
		sess.Logger.Info("client disconnected")

		switch {
		case ctx.Err() != nil:
			m.Logger.Verbose("shutting down")
			return nil
		case vsmerr.Is(err, vsmerr.ErrInputFailed):
			return err
		case err != nil:
			m.Metrics.RecordError(err.Error())
			sess.Logger.Warn("%v", err)
		}
	}
}

// accept waits for a pending client without holding mu, then accepts it
// under mu.  Failed accepts are retried with m.Backoff.
func (m *BridgeMode) accept(ctx context.Context, mu *sync.Mutex, conn *vsm.Connection) error {
	return m.Backoff.Do(ctx, func(int) error {
		mu.Lock()
		d := conn.ListenerDescriptor()
		mu.Unlock()

		if err := vsm.WaitReadable(ctx, d); err != nil {
			return retry.Permanent(err)
		}

		mu.Lock()
		err := conn.Accept(ctx)
		mu.Unlock()
		if err == nil {
			return nil
		}

		m.Metrics.AcceptFailed()
		if ctx.Err() != nil || !vsmerr.IsRetryable(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

// serve runs the receive and console loops for one client.  The receive
// loop ending stops the console loop; the console running dry leaves the
// client attached so it can keep sending.
func (m *BridgeMode) serve(ctx context.Context, sess *session.Session, consoleBuf []byte) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return m.receiveLoop(gctx, sess) })
	g.Go(func() error { return m.consoleLoop(gctx, sess, consoleBuf) })

	err := g.Wait()
	if vsmerr.Is(err, vsmerr.ErrPeerClosed) || vsmerr.IsShutdown(err) {
		return nil
	}
	return err
}

func (m *BridgeMode) receiveLoop(ctx context.Context, sess *session.Session) error {
	for {
		sig, err := sess.Receive(ctx)
		switch {
		case err == nil:
			m.Metrics.SignalReceived(len(sig.Name) + len(sig.Value) + 2)
			fmt.Fprintf(sess.Out, "> %s\n", sig)
		case vsmerr.IsEndOfStream(err):
			return vsmerr.ErrPeerClosed
		case vsm.IsProtocol(err):
			m.Metrics.ProtocolError(err.Error())
			sess.Logger.Warn("discarding line: %v", err)
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			return fmt.Errorf("receive signal: %w", err)
		}
	}
}

func (m *BridgeMode) consoleLoop(ctx context.Context, sess *session.Session, buf []byte) error {
	d := vsm.ReaderDescriptor(sess.Console)
	if m.Prompt {
		sess.Logger.Info("waiting for input...")
	}

	for {
		if err := vsm.WaitReadable(ctx, d); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %w", vsmerr.ErrInputFailed, err)
		}

		sig, err := vsm.ReceiveFrom(sess.Console, buf)
		switch {
		case vsmerr.IsEndOfStream(err):
			sess.Logger.Verbose("console input closed")
			return nil
		case vsm.IsProtocol(err):
			sess.Logger.Warn("invalid signal: %v", err)
			continue
		case err != nil:
			return fmt.Errorf("%w: %w", vsmerr.ErrInputFailed, err)
		}

		if err := sess.Send(sig.Name, sig.Value); err != nil {
			if vsm.IsProtocol(err) {
				sess.Logger.Warn("invalid signal: %v", err)
				continue
			}
			return fmt.Errorf("send signal: %w", err)
		}
		m.Metrics.SignalSent(len(sig.Name) + len(sig.Value) + 2)
		sess.Logger.Debug("sent %s", sig)
	}
}
