package vsm

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"strings"
)

// Signal is one received name=value pair.
type Signal struct {
	Name  string
	Value string
}

// String renders the signal in wire form without the line terminator.
func (s Signal) String() string { return s.Name + "=" + s.Value }

// ── Rendering ────────────────────────────────────────────────────────

// FormatBool renders a boolean the way it travels on the wire.
func FormatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// FormatInt renders an integer in signed decimal.
func FormatInt(v int64) string { return strconv.FormatInt(v, 10) }

// FormatFloat renders a float in fixed-point with six fractional digits,
// matching printf's %f.  This is the canonical wire form; round trips
// compare the rendered text, not the float bits.
func FormatFloat(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }

// ── Sending ──────────────────────────────────────────────────────────

// SendBool sends name=True or name=False.
func (c *Connection) SendBool(name string, value bool) error {
	return c.sendSignal(name, FormatBool(value))
}

// SendInt sends an integer signal.
func (c *Connection) SendInt(name string, value int64) error {
	return c.sendSignal(name, FormatInt(value))
}

// SendFloat sends a floating point signal, see [FormatFloat].
func (c *Connection) SendFloat(name string, value float64) error {
	return c.sendSignal(name, FormatFloat(value))
}

// SendStr sends a string signal.  The value must not contain '=' or a
// newline since the wire format has no escaping.
func (c *Connection) SendStr(name, value string) error {
	if strings.ContainsAny(value, "=\n") {
		return newError(KindProtocol, "format", c.remote(), ErrInvalidValue)
	}
	return c.sendSignal(name, value)
}

// Send writes raw verbatim and flushes it.  It is meant for lines the
// caller has already formatted, so nothing is validated or appended.
func (c *Connection) Send(raw string) error {
	if c.writer == nil {
		return newError(KindIO, "write", c.addr, ErrNotConnected)
	}
	if _, err := c.writer.WriteString(raw); err != nil {
		return newError(KindIO, "write", c.remote(), err)
	}
	if err := c.writer.Flush(); err != nil {
		return newError(KindIO, "flush", c.remote(), err)
	}
	return nil
}

// sendSignal builds name=value\n in the scratch buffer and sends it.
func (c *Connection) sendSignal(name, value string) error {
	if c.writer == nil {
		return newError(KindIO, "write", c.addr, ErrNotConnected)
	}
	if err := validateName(name); err != nil {
		return newError(KindProtocol, "format", c.remote(), err)
	}
	line, err := formatLine(c.buffer, name, value)
	if err != nil {
		return newError(KindProtocol, "format", c.remote(), err)
	}
	if _, err := c.writer.Write(line); err != nil {
		return newError(KindIO, "write", c.remote(), err)
	}
	if err := c.writer.Flush(); err != nil {
		return newError(KindIO, "flush", c.remote(), err)
	}
	return nil
}

// formatLine writes name=value\n into buf, keeping the last byte free for
// the terminator, and returns the line.
func formatLine(buf []byte, name, value string) ([]byte, error) {
	n := len(name) + len(value) + 2
	if n > len(buf)-1 {
		return nil, ErrLineTooLong
	}
	line := buf[:0:n]
	line = append(line, name...)
	line = append(line, '=')
	line = append(line, value...)
	line = append(line, '\n')
	buf[n] = 0
	return line, nil
}

func validateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if strings.ContainsAny(name, "= \n") {
		return ErrInvalidName
	}
	return nil
}

// ── Receiving ────────────────────────────────────────────────────────

// Receive reads one line from the client into the scratch buffer and
// splits it into a Signal.  It returns [io.EOF] once the client has closed
// its side and all data has been consumed.
//
// Surrounding whitespace is trimmed from both name and value; spaces
// inside the value are kept.  A line without '=' or longer than the buffer
// is a protocol error and is discarded.
func (c *Connection) Receive() (Signal, error) {
	if c.reader == nil {
		return Signal{}, newError(KindIO, "read", c.addr, ErrNotConnected)
	}
	sig, err := receive(c.reader, c.buffer)
	if e, ok := err.(*Error); ok {
		e.Addr = c.remote()
	}
	return sig, err
}

// ReceiveContext is [Connection.Receive] bounded by ctx.  Once ctx is done
// a pending read returns ctx.Err(); the part of a line read so far is
// dropped, so the session is best closed afterwards.
func (c *Connection) ReceiveContext(ctx context.Context) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return Signal{}, err
	}
	if c.reader == nil {
		return Signal{}, newError(KindIO, "read", c.addr, ErrNotConnected)
	}
	stop := watchDeadline(ctx, c.client.SetReadDeadline)
	sig, err := c.Receive()
	if stop() && err != nil {
		return Signal{}, ctx.Err()
	}
	return sig, err
}

// receive is the shared read path of Receive and ReceiveFrom.
func receive(br io.ByteReader, buf []byte) (Signal, error) {
	n, err := readLine(br, buf)
	switch {
	case err == io.EOF:
		return Signal{}, io.EOF
	case err == ErrLineTooLong:
		return Signal{}, newError(KindProtocol, "read", "", err)
	case err != nil:
		return Signal{}, newError(KindIO, "read", "", err)
	}
	sig, err := parseLine(buf[:n])
	if err != nil {
		return Signal{}, newError(KindProtocol, "parse", "", err)
	}
	return sig, nil
}

// readLine copies one line, including its newline, into buf and returns
// its length.  It stores at most len(buf)-1 bytes and always leaves a zero
// byte after them.  An overlong line is consumed up to its newline and
// reported as ErrLineTooLong.  io.EOF is only returned when no byte was
// read; a final line without newline is returned as is.
func readLine(br io.ByteReader, buf []byte) (int, error) {
	limit := len(buf) - 1
	n := 0
	for {
		b, err := br.ReadByte()
		if err == io.EOF && n > 0 {
			break
		}
		if err != nil {
			return 0, err
		}
		if n == limit {
			if b != '\n' {
				if err := skipLine(br); err != nil && err != io.EOF {
					return 0, err
				}
			}
			buf[0] = 0
			return 0, ErrLineTooLong
		}
		buf[n] = b
		n++
		if b == '\n' {
			break
		}
	}
	buf[n] = 0
	return n, nil
}

func skipLine(br io.ByteReader) error {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b == '\n' {
			return nil
		}
	}
}

// parseLine splits at the first '=' and trims both halves.
func parseLine(line []byte) (Signal, error) {
	i := bytes.IndexByte(line, '=')
	if i < 0 {
		return Signal{}, ErrNoDelimiter
	}
	name := bytes.TrimSpace(line[:i])
	if len(name) == 0 {
		return Signal{}, ErrEmptyName
	}
	return Signal{
		Name:  string(name),
		Value: string(bytes.TrimSpace(line[i+1:])),
	}, nil
}
