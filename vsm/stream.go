package vsm

import "io"

// ReceiveFrom reads one signal from r using buffer for line storage, with
// the same parsing, trimming and end-of-stream rules as
// [Connection.Receive].  It lets signals come from sources other than the
// managed socket, such as a console.
//
// When r does not implement [io.ByteReader] it is read one byte at a time,
// so nothing beyond the returned line is consumed and no state survives
// between calls except what buffer holds.
func ReceiveFrom(r io.Reader, buffer []byte) (Signal, error) {
	if len(buffer) < 2 {
		return Signal{}, newError(KindProtocol, "read", "", ErrBufferTooSmall)
	}
	br, ok := r.(io.ByteReader)
	if !ok {
		br = byteReader{r}
	}
	return receive(br, buffer)
}

// byteReader reads exactly one byte per call from an unbuffered source.
type byteReader struct {
	r io.Reader
}

func (b byteReader) ReadByte() (byte, error) {
	var p [1]byte
	for {
		n, err := b.r.Read(p[:])
		if n == 1 {
			return p[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
