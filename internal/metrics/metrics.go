// Package metrics provides lightweight, lock-free counters for tracking
// the activity of a bridge run.
//
// All methods are safe for concurrent use.  A nil *Collector is a
// valid no-op receiver, so callers never need to nil-check.
package metrics

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Collector tracks runtime metrics for one listening Connection.
type Collector struct {
	clientsActive  atomic.Int64
	clientsTotal   atomic.Int64
	signalsIn      atomic.Int64
	signalsOut     atomic.Int64
	bytesIn        atomic.Int64
	bytesOut       atomic.Int64
	protocolErrors atomic.Int64
	acceptFailures atomic.Int64
	errorsTotal    atomic.Int64

	mu           sync.RWMutex
	startTime    time.Time
	lastSignal   time.Time
	lastError    time.Time
	lastErrorMsg string
}

// New creates a metrics collector with the start time set to now.
func New() *Collector {
	return &Collector{startTime: time.Now()}
}

// ── Client metrics ───────────────────────────────────────────────────

// ClientAttached records an accepted client.
func (c *Collector) ClientAttached() {
	if c == nil {
		return
	}
	c.clientsActive.Add(1)
	c.clientsTotal.Add(1)
}

// ClientDetached records a closed client session.
func (c *Collector) ClientDetached() {
	if c == nil {
		return
	}
	c.clientsActive.Add(-1)
}

// AcceptFailed records a failed accept attempt.
func (c *Collector) AcceptFailed() {
	if c == nil {
		return
	}
	c.acceptFailures.Add(1)
}

// ActiveClients returns 1 while a client is attached, 0 otherwise.
func (c *Collector) ActiveClients() int64 {
	if c == nil {
		return 0
	}
	return c.clientsActive.Load()
}

// TotalClients returns the number of clients accepted so far.
func (c *Collector) TotalClients() int64 {
	if c == nil {
		return 0
	}
	return c.clientsTotal.Load()
}

// ── Signal metrics ───────────────────────────────────────────────────

// SignalReceived records one line of n bytes read from the client.
func (c *Collector) SignalReceived(n int) {
	if c == nil {
		return
	}
	c.signalsIn.Add(1)
	c.bytesIn.Add(int64(n))
	c.touch()
}

// SignalSent records one line of n bytes written to the client.
func (c *Collector) SignalSent(n int) {
	if c == nil {
		return
	}
	c.signalsOut.Add(1)
	c.bytesOut.Add(int64(n))
	c.touch()
}

// SignalsIn returns the number of signals received.
func (c *Collector) SignalsIn() int64 {
	if c == nil {
		return 0
	}
	return c.signalsIn.Load()
}

// SignalsOut returns the number of signals sent.
func (c *Collector) SignalsOut() int64 {
	if c == nil {
		return 0
	}
	return c.signalsOut.Load()
}

func (c *Collector) touch() {
	c.mu.Lock()
	c.lastSignal = time.Now()
	c.mu.Unlock()
}

// ── Error metrics ────────────────────────────────────────────────────

// ProtocolError records a malformed line.  It also counts as an error.
func (c *Collector) ProtocolError(msg string) {
	if c == nil {
		return
	}
	c.protocolErrors.Add(1)
	c.RecordError(msg)
}

// RecordError increments the error counter and stores the message.
func (c *Collector) RecordError(msg string) {
	if c == nil {
		return
	}
	c.errorsTotal.Add(1)
	c.mu.Lock()
	c.lastError = time.Now()
	c.lastErrorMsg = msg
	c.mu.Unlock()
}

// ErrorCount returns the total number of errors recorded.
func (c *Collector) ErrorCount() int64 {
	if c == nil {
		return 0
	}
	return c.errorsTotal.Load()
}

// ── Snapshot ─────────────────────────────────────────────────────────

// Snapshot is a point-in-time view of all metrics.
type Snapshot struct {
	Uptime           string `json:"uptime"`
	ClientsActive    int64  `json:"clients_active"`
	ClientsTotal     int64  `json:"clients_total"`
	AcceptFailures   int64  `json:"accept_failures"`
	SignalsIn        int64  `json:"signals_in"`
	SignalsOut       int64  `json:"signals_out"`
	BytesIn          int64  `json:"bytes_in"`
	BytesOut         int64  `json:"bytes_out"`
	ProtocolErrors   int64  `json:"protocol_errors"`
	ErrorsTotal      int64  `json:"errors_total"`
	LastSignal       string `json:"last_signal,omitempty"`
	LastError        string `json:"last_error,omitempty"`
	LastErrorMessage string `json:"last_error_message,omitempty"`
}

// Snapshot returns a copy of all current metrics.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Snapshot{
		Uptime:         time.Since(c.startTime).Truncate(time.Second).String(),
		ClientsActive:  c.clientsActive.Load(),
		ClientsTotal:   c.clientsTotal.Load(),
		AcceptFailures: c.acceptFailures.Load(),
		SignalsIn:      c.signalsIn.Load(),
		SignalsOut:     c.signalsOut.Load(),
		BytesIn:        c.bytesIn.Load(),
		BytesOut:       c.bytesOut.Load(),
		ProtocolErrors: c.protocolErrors.Load(),
		ErrorsTotal:    c.errorsTotal.Load(),
	}
	if !c.lastSignal.IsZero() {
		s.LastSignal = c.lastSignal.Format(time.RFC3339)
	}
	if !c.lastError.IsZero() {
		s.LastError = c.lastError.Format(time.RFC3339)
		s.LastErrorMessage = c.lastErrorMsg
	}
	return s
}

// JSON returns the snapshot as an indented JSON string.
func (c *Collector) JSON() string {
	s := c.Snapshot()
	data, _ := json.MarshalIndent(s, "", "  ")
	return string(data)
}
