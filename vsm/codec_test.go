package vsm

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValues(t *testing.T) {
	assert.Equal(t, "True", FormatBool(true))
	assert.Equal(t, "False", FormatBool(false))
	assert.Equal(t, "-42", FormatInt(-42))

	floats := []struct {
		in   float64
		want string
	}{
		{21.5, "21.500000"},
		{0, "0.000000"},
		{-0.1, "-0.100000"},
		{1e-7, "0.000000"},
	}
	for _, tt := range floats {
		assert.Equal(t, tt.want, FormatFloat(tt.in), "FormatFloat(%v)", tt.in)
	}
}

func TestFormatLineBounds(t *testing.T) {
	buf := make([]byte, 8)

	line, err := formatLine(buf, "abc", "de")
	require.NoError(t, err)
	assert.Equal(t, "abc=de\n", string(line))
	assert.Equal(t, byte(0), buf[7])

	_, err = formatLine(buf, "abcd", "de")
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    Signal
		wantErr error
	}{
		{"plain", "ignition=True\n", Signal{"ignition", "True"}, nil},
		{"padded", "speed = 42 \n", Signal{"speed", "42"}, nil},
		{"leading name spaces", "   gear=3\n", Signal{"gear", "3"}, nil},
		{"embedded spaces kept", "label=hello  world \n", Signal{"label", "hello  world"}, nil},
		{"first delimiter wins", "a=b=c\n", Signal{"a", "b=c"}, nil},
		{"crlf", "door=open\r\n", Signal{"door", "open"}, nil},
		{"empty value", "reset=\n", Signal{"reset", ""}, nil},
		{"no delimiter", "nodelimiter\n", Signal{}, ErrNoDelimiter},
		{"blank line", "\n", Signal{}, ErrNoDelimiter},
		{"empty name", " =5\n", Signal{}, ErrEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseLine([]byte(tt.line))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadLineOverlongIsDiscarded(t *testing.T) {
	buf := make([]byte, 8)
	r := strings.NewReader("abcdefghijkl\nk=v\n")

	_, err := receive(r, buf)
	assert.True(t, IsProtocol(err))
	assert.ErrorIs(t, err, ErrLineTooLong)

	sig, err := receive(r, buf)
	require.NoError(t, err)
	assert.Equal(t, Signal{"k", "v"}, sig)
}

func TestReadLineExactFit(t *testing.T) {
	// seven bytes including the newline fit a buffer of eight
	buf := make([]byte, 8)
	n, err := readLine(strings.NewReader("ab=cde\n"), buf)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, byte(0), buf[7])

	_, err = readLine(strings.NewReader("ab=cdef\n"), buf)
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestReadLineFinalLineWithoutNewline(t *testing.T) {
	buf := make([]byte, 32)
	r := strings.NewReader("rpm=900")

	sig, err := receive(r, buf)
	require.NoError(t, err)
	assert.Equal(t, Signal{"rpm", "900"}, sig)

	_, err = receive(r, buf)
	assert.Equal(t, io.EOF, err)
}

func TestSendRoundTrip(t *testing.T) {
	conn := newListening(t, 128)
	peer := dialAccept(t, conn)

	tests := []struct {
		name string
		send func() error
		want string
	}{
		{"bool", func() error { return conn.SendBool("ignition", true) }, "ignition=True\n"},
		{"bool false", func() error { return conn.SendBool("ignition", false) }, "ignition=False\n"},
		{"int", func() error { return conn.SendInt("speed", -17) }, "speed=-17\n"},
		{"float", func() error { return conn.SendFloat("temp", 21.5) }, "temp=21.500000\n"},
		{"string", func() error { return conn.SendStr("label", "front left") }, "label=front left\n"},
		{"raw", func() error { return conn.Send("custom=1\n") }, "custom=1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.send())
			line := readPeerLine(t, peer)
			assert.Equal(t, tt.want, line)

			// the peer echoes the line; Receive must give the same text back
			_, err := peer.Write([]byte(line))
			require.NoError(t, err)
			sig, err := conn.Receive()
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSuffix(tt.want, "\n"), sig.String())
		})
	}
}

func TestReceiveFromPeer(t *testing.T) {
	conn := newListening(t, 64)
	peer := dialAccept(t, conn)

	_, err := peer.Write([]byte("speed = 42 \nnodelimiter\ngear=4\n"))
	require.NoError(t, err)

	sig, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, Signal{"speed", "42"}, sig)

	_, err = conn.Receive()
	require.Error(t, err)
	assert.True(t, IsProtocol(err))
	assert.ErrorIs(t, err, ErrNoDelimiter)

	// the session survives a malformed line
	sig, err = conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, Signal{"gear", "4"}, sig)
	assert.Equal(t, "gear=4\n", string(conn.Buffer()[:7]))
}

func TestReceiveEOF(t *testing.T) {
	conn := newListening(t, 64)
	peer := dialAccept(t, conn)
	require.NoError(t, peer.Close())

	_, err := conn.Receive()
	assert.Equal(t, io.EOF, err)
	assert.False(t, IsIO(err))
	var e *Error
	assert.False(t, errors.As(err, &e))
}

func TestSendValidation(t *testing.T) {
	conn := newListening(t, 16)
	dialAccept(t, conn)

	tests := []struct {
		name    string
		send    func() error
		wantErr error
	}{
		{"empty name", func() error { return conn.SendInt("", 1) }, ErrEmptyName},
		{"name with space", func() error { return conn.SendInt("a b", 1) }, ErrInvalidName},
		{"name with delimiter", func() error { return conn.SendInt("a=b", 1) }, ErrInvalidName},
		{"value with newline", func() error { return conn.SendStr("a", "x\ny") }, ErrInvalidValue},
		{"value with delimiter", func() error { return conn.SendStr("a", "x=y") }, ErrInvalidValue},
		{"too long", func() error { return conn.SendStr("name", "0123456789") }, ErrLineTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.send()
			assert.True(t, IsProtocol(err), "got %v", err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSendWithoutClient(t *testing.T) {
	conn := newListening(t, 64)

	err := conn.SendBool("ignition", true)
	assert.True(t, IsIO(err))
	assert.ErrorIs(t, err, ErrNotConnected)

	err = conn.Send("x=1\n")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = conn.Receive()
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestSendDoesNotWritePastBuffer(t *testing.T) {
	backing := bytes.Repeat([]byte{0xAA}, 20)
	conn, err := Init(0, backing[:10])
	require.NoError(t, err)
	defer conn.Teardown() //nolint:errcheck
	dialAccept(t, conn)

	assert.Error(t, conn.SendStr("abcd", "efgh"))
	require.NoError(t, conn.SendStr("abc", "def"))
	assert.Equal(t, bytes.Repeat([]byte{0xAA}, 10), backing[10:])
}

func TestReceiveContext(t *testing.T) {
	conn := newListening(t, 64)
	peer := dialAccept(t, conn)

	_, err := peer.Write([]byte("door=open\n"))
	require.NoError(t, err)
	sig, err := conn.ReceiveContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Signal{"door", "open"}, sig)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = conn.ReceiveContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// A peer that stops halfway through a line must not hold the read past
// cancellation.
func TestReceiveContextCancelledMidLine(t *testing.T) {
	conn := newListening(t, 64)
	peer := dialAccept(t, conn)

	_, err := peer.Write([]byte("speed=4"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := conn.ReceiveContext(ctx)
		done <- err
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("ReceiveContext ignored cancellation")
	}

	// the deadline is cleared; the dropped half line leaves an empty one
	_, err = peer.Write([]byte("\ngear=3\n"))
	require.NoError(t, err)
	_, err = conn.ReceiveContext(context.Background())
	assert.ErrorIs(t, err, ErrNoDelimiter)
	sig, err := conn.ReceiveContext(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Signal{"gear", "3"}, sig)
}
