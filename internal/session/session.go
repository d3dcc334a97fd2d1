// Package session represents one accepted client, binding the shared
// Connection with the lock that guards it and the local console.
//
// The signal library does no locking of its own.  Session implements
// the snapshot protocol on top of it: take the descriptor under the
// lock, wait without it, and take the lock again for the actual read.
package session

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"vsmsock/util"
	"vsmsock/vsm"
)

// Session encapsulates the runtime context for a single client.
type Session struct {
	ID      string
	Conn    *vsm.Connection
	Console io.Reader // outgoing signals
	Out     io.Writer // received signals are echoed here
	Logger  *util.Logger

	mu *sync.Mutex // guards Conn and its scratch buffer
}

// New creates a Session for the client currently attached to conn.  mu
// must be the lock every user of conn holds.
func New(conn *vsm.Connection, mu *sync.Mutex, console io.Reader, out io.Writer, logger *util.Logger) *Session {
	id := uuid.NewString()
	return &Session{
		ID:      id,
		Conn:    conn,
		Console: console,
		Out:     out,
		Logger:  logger.WithPrefix("client=" + id[:8]),
		mu:      mu,
	}
}

// Receive waits for data from the client without holding the lock and
// then reads one signal under it.  Both steps end when ctx is done.
func (s *Session) Receive(ctx context.Context) (vsm.Signal, error) {
	s.mu.Lock()
	d := s.Conn.ClientDescriptor()
	s.mu.Unlock()

	if err := vsm.WaitReadable(ctx, d); err != nil {
		return vsm.Signal{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.ReceiveContext(ctx)
}

// Send transmits one string signal under the lock.
func (s *Session) Send(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.SendStr(name, value)
}

// IsOpen reports whether the client can still be written to.
func (s *Session) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.IsOpen()
}

// Close detaches the client from the Connection.  The listener stays.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.Close()
}
