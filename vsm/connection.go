package vsm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// Connection is the server side of a signal link: a listening socket plus
// at most one accepted client.
//
// A Connection is not safe for concurrent use.  See the package
// documentation for the locking protocol.
type Connection struct {
	listener *net.TCPListener
	addr     string
	buffer   []byte
	torn     bool
	done     chan struct{} // closed by Teardown

	// client session; client is non-nil while either handle is open
	client *net.TCPConn
	writer *bufio.Writer
	reader *bufio.Reader
}

// Init listens on the wildcard address at port and returns a Connection
// that formats and receives through buffer.  The buffer stays owned by the
// caller and must outlive the Connection; at most len(buffer)-1 bytes of
// it are ever used for line data.
//
// Port 0 picks an ephemeral port, see [Connection.Addr].
func Init(port int, buffer []byte) (*Connection, error) {
	addr := fmt.Sprintf(":%d", port)
	if len(buffer) < 2 {
		return nil, newError(KindInit, "listen", addr, ErrBufferTooSmall)
	}
	if port < 0 || port > 65535 {
		return nil, newError(KindInit, "listen", addr, fmt.Errorf("port %d out of range 0-65535", port))
	}

	// Go sets SO_REUSEADDR on listening sockets on Unix platforms.
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{Port: port})
	if err != nil {
		return nil, newError(KindInit, "listen", addr, err)
	}

	return &Connection{
		listener: ln,
		addr:     ln.Addr().String(),
		buffer:   buffer,
		done:     make(chan struct{}),
	}, nil
}

// Addr returns the address the listener is bound to.
func (c *Connection) Addr() net.Addr {
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// RemoteAddr returns the address of the attached client, or nil.
func (c *Connection) RemoteAddr() net.Addr {
	if c.client == nil {
		return nil
	}
	return c.client.RemoteAddr()
}

// Buffer returns the caller-owned scratch buffer.
func (c *Connection) Buffer() []byte { return c.buffer }

// Accept blocks until a client connects, or ctx is done.  A previous
// session must have been closed first.
//
// On success the session has an independent writer and reader over the
// same socket; each can be released on its own with [Connection.CloseWriter]
// and [Connection.CloseReader].
func (c *Connection) Accept(ctx context.Context) error {
	if c.torn {
		return newError(KindAccept, "accept", c.addr, ErrTornDown)
	}
	if c.client != nil {
		return newError(KindAccept, "accept", c.addr, ErrSessionActive)
	}

	stop := watchDeadline(ctx, c.listener.SetDeadline)
	conn, err := c.listener.AcceptTCP()
	if stop() && ctx.Err() != nil {
		if conn != nil {
			conn.Close()
		}
		return ctx.Err()
	}
	if err != nil {
		return newError(KindAccept, "accept", c.addr, err)
	}

	c.client = conn
	c.writer = bufio.NewWriterSize(conn, len(c.buffer))
	c.reader = bufio.NewReaderSize(conn, len(c.buffer))
	return nil
}

// IsOpen reports whether a client is attached with an open writer.
func (c *Connection) IsOpen() bool { return c.writer != nil }

// CloseWriter flushes and shuts down the sending direction.  The socket is
// released once the reader is closed too.
func (c *Connection) CloseWriter() error {
	if c.writer == nil {
		return nil
	}
	remote := c.remote()
	ferr := c.writer.Flush()
	c.writer = nil
	err := c.client.CloseWrite()
	if c.reader == nil {
		err = errors.Join(err, c.release())
	}
	if ferr != nil {
		return newError(KindIO, "flush", remote, ferr)
	}
	if err != nil {
		return newError(KindIO, "close", remote, err)
	}
	return nil
}

// CloseReader shuts down the receiving direction.  Unread buffered data is
// dropped.  The socket is released once the writer is closed too.
func (c *Connection) CloseReader() error {
	if c.reader == nil {
		return nil
	}
	remote := c.remote()
	c.reader = nil
	err := c.client.CloseRead()
	if c.writer == nil {
		err = errors.Join(err, c.release())
	}
	if err != nil {
		return newError(KindIO, "close", remote, err)
	}
	return nil
}

// Close detaches the client, closing both handles and the socket.  The
// listener is kept for the next Accept.  Close without a client is a no-op.
func (c *Connection) Close() error {
	if c.client == nil {
		return nil
	}
	var ferr error
	if c.writer != nil {
		ferr = c.writer.Flush()
	}
	c.writer = nil
	c.reader = nil
	remote := c.remote()
	if err := c.release(); err != nil {
		return newError(KindIO, "close", remote, err)
	}
	if ferr != nil {
		return newError(KindIO, "flush", remote, ferr)
	}
	return nil
}

// Teardown closes any client and then the listener.  The Connection must
// not be used afterwards; further calls return [ErrTornDown].
func (c *Connection) Teardown() error {
	if c.torn {
		return newError(KindIO, "teardown", c.addr, ErrTornDown)
	}
	c.torn = true
	close(c.done) // ends a pending listener wait before the socket goes
	cerr := c.Close()
	if err := c.listener.Close(); err != nil {
		return newError(KindIO, "close", c.addr, err)
	}
	return cerr
}

// Free is an alias for [Connection.Teardown].
func (c *Connection) Free() error { return c.Teardown() }

// ListenerDescriptor snapshots the listening socket for [WaitReadable],
// which then returns once a client is waiting to be accepted.
func (c *Connection) ListenerDescriptor() Descriptor {
	if c.torn {
		return Descriptor{closed: true}
	}
	return Descriptor{conn: c.listener, listener: true, done: c.done}
}

// ClientDescriptor snapshots the client socket for [WaitReadable].  Data
// already held by the reader makes the snapshot ready without waiting.
func (c *Connection) ClientDescriptor() Descriptor {
	if c.client == nil || c.reader == nil {
		return Descriptor{closed: true}
	}
	return Descriptor{
		conn:     c.client,
		deadline: c.client.SetReadDeadline,
		buffered: c.reader.Buffered(),
	}
}

func (c *Connection) release() error {
	err := c.client.Close()
	c.client = nil
	return err
}

func (c *Connection) remote() string {
	if c.client == nil {
		return ""
	}
	return c.client.RemoteAddr().String()
}

// aLongTimeAgo is a deadline in the past that makes pending I/O return
// immediately.
var aLongTimeAgo = time.Unix(1, 0)

// watchDeadline arranges for set(aLongTimeAgo) to be called once ctx is
// done.  The returned stop function reports whether the deadline was
// touched; in that case it has already been cleared again.
func watchDeadline(ctx context.Context, set func(time.Time) error) (stop func() bool) {
	if ctx.Done() == nil {
		return func() bool { return false }
	}
	fired := make(chan struct{})
	unregister := context.AfterFunc(ctx, func() {
		defer close(fired)
		set(aLongTimeAgo) //nolint:errcheck
	})
	return func() bool {
		if unregister() {
			return false
		}
		<-fired
		set(time.Time{}) //nolint:errcheck
		return true
	}
}
