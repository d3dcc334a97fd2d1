package vsm

import (
	"bytes"
	"context"
	"io"
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitAsync runs WaitReadable in a goroutine and returns its result channel.
func waitAsync(ctx context.Context, d Descriptor) <-chan error {
	done := make(chan error, 1)
	go func() { done <- WaitReadable(ctx, d) }()
	return done
}

func requireDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(3 * time.Second):
		t.Fatal("WaitReadable did not return in time")
		return nil
	}
}

func requirePending(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		t.Fatalf("WaitReadable returned early: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWaitListenerForClient(t *testing.T) {
	conn := newListening(t, 64)
	done := waitAsync(context.Background(), conn.ListenerDescriptor())
	requirePending(t, done)

	peer, err := net.Dial("tcp", loopback(conn))
	require.NoError(t, err)
	defer peer.Close()

	require.NoError(t, requireDone(t, done))
	require.NoError(t, conn.Accept(context.Background()))
}

func TestWaitClientForData(t *testing.T) {
	conn := newListening(t, 64)
	peer := dialAccept(t, conn)

	done := waitAsync(context.Background(), conn.ClientDescriptor())
	requirePending(t, done)

	_, err := peer.Write([]byte("speed=1\nspeed=2\n"))
	require.NoError(t, err)
	require.NoError(t, requireDone(t, done))

	sig, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, "1", sig.Value)

	// the second line sits in the reader, not on the socket
	d := conn.ClientDescriptor()
	assert.Positive(t, d.buffered)
	require.NoError(t, WaitReadable(context.Background(), d))
}

func TestWaitClientSeesEOF(t *testing.T) {
	conn := newListening(t, 64)
	peer := dialAccept(t, conn)

	done := waitAsync(context.Background(), conn.ClientDescriptor())
	require.NoError(t, peer.Close())
	require.NoError(t, requireDone(t, done))

	_, err := conn.Receive()
	assert.Equal(t, io.EOF, err)
}

// Closing the socket a goroutine is waiting on must end the wait.
func TestWaitUnblockedByClose(t *testing.T) {
	t.Run("client", func(t *testing.T) {
		conn := newListening(t, 64)
		dialAccept(t, conn)

		done := waitAsync(context.Background(), conn.ClientDescriptor())
		requirePending(t, done)
		require.NoError(t, conn.Close())

		err := requireDone(t, done)
		assert.True(t, IsIO(err), "got %v", err)
	})

	t.Run("listener", func(t *testing.T) {
		conn, err := Init(0, make([]byte, 64))
		require.NoError(t, err)

		done := waitAsync(context.Background(), conn.ListenerDescriptor())
		requirePending(t, done)
		require.NoError(t, conn.Teardown())

		err = requireDone(t, done)
		assert.True(t, IsIO(err), "got %v", err)
		assert.ErrorIs(t, err, net.ErrClosed)
	})
}

func TestWaitListenerHonoursContext(t *testing.T) {
	conn := newListening(t, 64)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := requireDone(t, waitAsync(ctx, conn.ListenerDescriptor()))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the listener still accepts after a cancelled wait
	peer, err := net.Dial("tcp", loopback(conn))
	require.NoError(t, err)
	defer peer.Close()
	require.NoError(t, WaitReadable(context.Background(), conn.ListenerDescriptor()))
	require.NoError(t, conn.Accept(context.Background()))
}

func TestWaitPlainListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	done := waitAsync(context.Background(), ConnDescriptor(ln.(*net.TCPListener)))
	requirePending(t, done)

	peer, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer peer.Close()
	require.NoError(t, requireDone(t, done))
}

func TestWaitCancelledByContext(t *testing.T) {
	conn := newListening(t, 64)
	peer := dialAccept(t, conn)

	ctx, cancel := context.WithCancel(context.Background())
	done := waitAsync(ctx, conn.ClientDescriptor())
	requirePending(t, done)
	cancel()
	assert.ErrorIs(t, requireDone(t, done), context.Canceled)

	// the read deadline is cleared so the session keeps working
	_, err := peer.Write([]byte("door=open\n"))
	require.NoError(t, err)
	sig, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, Signal{"door", "open"}, sig)
}

func TestWaitAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, WaitReadable(ctx, Descriptor{}), context.Canceled)
}

func TestWaitClosedSnapshot(t *testing.T) {
	conn := newListening(t, 64)
	err := WaitReadable(context.Background(), conn.ClientDescriptor())
	assert.True(t, IsIO(err))
	assert.ErrorIs(t, err, net.ErrClosed)
}

func TestWaitPipe(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := waitAsync(ctx, ReaderDescriptor(r))
	requirePending(t, done)
	_, err = w.Write([]byte("gear=2\n"))
	require.NoError(t, err)
	require.NoError(t, requireDone(t, done))

	sig, err := ReceiveFrom(r, make([]byte, 32))
	require.NoError(t, err)
	assert.Equal(t, Signal{"gear", "2"}, sig)

	done = waitAsync(ctx, ReaderDescriptor(r))
	requirePending(t, done)
	cancel()
	assert.ErrorIs(t, requireDone(t, done), context.Canceled)
}

func TestWaitInMemoryReader(t *testing.T) {
	d := ReaderDescriptor(bytes.NewBufferString("a=1\n"))
	assert.NoError(t, WaitReadable(context.Background(), d))
}
