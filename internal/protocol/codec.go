package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"math"
)

// Frame layout:
//
//	+----------+------------------+---------------------+
//	| len_tag  | length (varwidth)|    payload bytes    |
//	|  1 byte  | 2 / 4 / 8 bytes  | gob-encoded message |
//	+----------+------------------+---------------------+
//
// len_tag is one of {2, 4, 8} and selects the width of the big-endian
// length field; encoders always pick the smallest width that fits.

// MaxPayloadLen caps a single frame's payload. Anything larger is treated
// as a protocol error fatal to the connection.
const MaxPayloadLen = 1 << 24

var (
	// ErrInvalidLengthTag reports a frame whose first byte is not 2, 4, or 8.
	ErrInvalidLengthTag = errors.New("invalid frame length tag")
	// ErrPayloadTooLarge reports a frame payload exceeding MaxPayloadLen.
	ErrPayloadTooLarge = errors.New("frame payload too large")
)

// EncodeFrame serializes msg with gob and wraps it in a frame using the
// minimal length width.
//
// Postcondition: Returns a complete frame, or an error if msg cannot be
// gob-encoded or exceeds MaxPayloadLen.
func EncodeFrame[T any](msg T) ([]byte, error) {
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(&msg); err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}

	n := payload.Len()
	if n > MaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, n)
	}

	var header []byte
	switch {
	case n <= math.MaxUint16:
		header = make([]byte, 3)
		header[0] = 2
		binary.BigEndian.PutUint16(header[1:], uint16(n))
	case n <= math.MaxUint32:
		header = make([]byte, 5)
		header[0] = 4
		binary.BigEndian.PutUint32(header[1:], uint32(n))
	default:
		header = make([]byte, 9)
		header[0] = 8
		binary.BigEndian.PutUint64(header[1:], uint64(n))
	}

	return append(header, payload.Bytes()...), nil
}

// Decoder incrementally deframes and decodes messages of type T from a byte
// stream. Feed bytes with Write, pull messages with Next.
type Decoder[T any] struct {
	buf []byte
}

// Write appends raw stream bytes to the decode buffer. It never fails;
// the error return satisfies io.Writer.
func (d *Decoder[T]) Write(p []byte) (int, error) {
	d.buf = append(d.buf, p...)
	return len(p), nil
}

// Next decodes the next complete frame from the buffer.
//
// Postcondition: Returns (msg, true, nil) when a frame was consumed,
// (zero, false, nil) when more bytes are needed (buffer left untouched),
// or an error fatal to the connection.
func (d *Decoder[T]) Next() (T, bool, error) {
	var zero T

	if len(d.buf) < 1 {
		return zero, false, nil
	}

	widthTag := d.buf[0]
	var width int
	switch widthTag {
	case 2, 4, 8:
		width = int(widthTag)
	default:
		return zero, false, fmt.Errorf("%w: %d", ErrInvalidLengthTag, widthTag)
	}

	if len(d.buf) < 1+width {
		return zero, false, nil
	}

	var payloadLen uint64
	switch width {
	case 2:
		payloadLen = uint64(binary.BigEndian.Uint16(d.buf[1:3]))
	case 4:
		payloadLen = uint64(binary.BigEndian.Uint32(d.buf[1:5]))
	case 8:
		payloadLen = binary.BigEndian.Uint64(d.buf[1:9])
	}

	if payloadLen > MaxPayloadLen {
		return zero, false, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, payloadLen)
	}

	frameLen := 1 + width + int(payloadLen)
	if len(d.buf) < frameLen {
		return zero, false, nil
	}

	payload := d.buf[1+width : frameLen]
	var msg T
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&msg); err != nil {
		return zero, false, fmt.Errorf("decoding payload: %w", err)
	}

	d.buf = d.buf[frameLen:]
	return msg, true, nil
}

// Buffered returns how many undecoded bytes are held.
func (d *Decoder[T]) Buffered() int { return len(d.buf) }

// MessageReader reads framed messages of type T from an io.Reader.
type MessageReader[T any] struct {
	r   io.Reader
	dec Decoder[T]
}

// NewMessageReader wraps r for framed reads.
func NewMessageReader[T any](r io.Reader) *MessageReader[T] {
	return &MessageReader[T]{r: r}
}

// ReadMessage blocks until a full message arrives or the stream fails.
//
// Postcondition: Returns the next message, or the underlying read/decode
// error; either error is fatal to the connection.
func (mr *MessageReader[T]) ReadMessage() (T, error) {
	var chunk [4096]byte
	for {
		if msg, ok, err := mr.dec.Next(); err != nil {
			var zero T
			return zero, err
		} else if ok {
			return msg, nil
		}

		n, err := mr.r.Read(chunk[:])
		if n > 0 {
			_, _ = mr.dec.Write(chunk[:n])
			continue
		}
		if err != nil {
			var zero T
			return zero, err
		}
	}
}

// MessageWriter writes framed messages of type T to an io.Writer.
type MessageWriter[T any] struct {
	w io.Writer
}

// NewMessageWriter wraps w for framed writes.
func NewMessageWriter[T any](w io.Writer) *MessageWriter[T] {
	return &MessageWriter[T]{w: w}
}

// WriteMessage frames and writes one message.
func (mw *MessageWriter[T]) WriteMessage(msg T) error {
	frame, err := EncodeFrame(msg)
	if err != nil {
		return err
	}
	if _, err := mw.w.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}
