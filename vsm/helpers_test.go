package vsm

import (
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newListening returns a Connection on an ephemeral port that is torn down
// when the test ends.
func newListening(t *testing.T, size int) *Connection {
	t.Helper()
	conn, err := Init(0, make([]byte, size))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Teardown() }) //nolint:errcheck
	return conn
}

// dialAccept connects a peer and accepts it, returning the peer side.
func dialAccept(t *testing.T, conn *Connection) net.Conn {
	t.Helper()
	peer, err := net.DialTimeout("tcp", loopback(conn), 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { peer.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, conn.Accept(ctx))
	return peer
}

// loopback returns the 127.0.0.1 address of the listener.
func loopback(conn *Connection) string {
	port := conn.Addr().(*net.TCPAddr).Port
	return net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
}

// readPeerLine reads up to and including the next newline from peer.
func readPeerLine(t *testing.T, peer net.Conn) string {
	t.Helper()
	require.NoError(t, peer.SetReadDeadline(time.Now().Add(2*time.Second)))
	var out []byte
	b := make([]byte, 1)
	for {
		_, err := peer.Read(b)
		require.NoError(t, err)
		out = append(out, b[0])
		if b[0] == '\n' {
			return string(out)
		}
	}
}
