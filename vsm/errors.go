package vsm

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ──────────────────────────────────────────────────

var (
	ErrNoDelimiter     = errors.New("missing '=' delimiter")
	ErrLineTooLong     = errors.New("line exceeds buffer capacity")
	ErrEmptyName       = errors.New("empty signal name")
	ErrInvalidName     = errors.New("signal name must not contain '=', space or newline")
	ErrInvalidValue    = errors.New("signal value must not contain '=' or newline")
	ErrNotConnected    = errors.New("no client connected")
	ErrSessionActive   = errors.New("a client session is already attached")
	ErrTornDown        = errors.New("connection has been torn down")
	ErrBufferTooSmall  = errors.New("buffer must hold at least 2 bytes")
	ErrWaitUnsupported = errors.New("readiness wait is not supported for this descriptor")
)

// ── Error kinds ──────────────────────────────────────────────────────

// Kind classifies a failure returned by this package.
type Kind int

const (
	// KindInit means socket creation, bind or listen failed.  The
	// Connection must not be used for Accept.
	KindInit Kind = iota + 1
	// KindAccept means the OS accept failed or the client handles could
	// not be built.  Accept may be retried.
	KindAccept
	// KindIO means a read, write or flush failed on an established
	// session.  The caller should Close and may accept again.
	KindIO
	// KindProtocol means a line was malformed or did not fit the buffer.
	// The offending line is discarded; the session remains usable.
	KindProtocol
)

func (k Kind) String() string {
	switch k {
	case KindInit:
		return "init"
	case KindAccept:
		return "accept"
	case KindIO:
		return "io"
	case KindProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the typed outcome of every failing operation in this package.
// End of stream is not an Error: it is reported as a bare [io.EOF].
type Error struct {
	Kind Kind   // failure class
	Op   string // "listen", "accept", "read", "write", "flush", "parse", "format"
	Addr string // network address involved, if any
	Err  error  // underlying error
}

func (e *Error) Error() string {
	s := e.Op
	if e.Addr != "" {
		s += " " + e.Addr
	}
	s = fmt.Sprintf("%s: %v", s, e.Err)
	if e.Retryable() {
		s += " (retryable)"
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the operation may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindAccept }

func newError(kind Kind, op, addr string, err error) *Error {
	return &Error{Kind: kind, Op: op, Addr: addr, Err: err}
}

// ── Classification helpers ───────────────────────────────────────────

// KindOf returns the Kind carried by err, or 0 when err is not an [*Error].
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsInit reports whether err is an init failure.
func IsInit(err error) bool { return KindOf(err) == KindInit }

// IsAccept reports whether err is an accept failure.
func IsAccept(err error) bool { return KindOf(err) == KindAccept }

// IsIO reports whether err is an I/O failure on an established session.
func IsIO(err error) bool { return KindOf(err) == KindIO }

// IsProtocol reports whether err is a malformed or oversized line.
func IsProtocol(err error) bool { return KindOf(err) == KindProtocol }
