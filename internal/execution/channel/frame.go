package channel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/lambda-feedback/isolate/internal/execution/codec"
)

// MaxFrameSize is the largest payload a single frame may carry.
const MaxFrameSize = 64 << 20

// prefixSize is the size of the little-endian length prefix.
const prefixSize = 4

var (
	// ErrFraming is the base error for malformed or truncated frames.
	ErrFraming = errors.New("framing error")

	// ErrFrameTooLarge is returned for length prefixes above MaxFrameSize.
	ErrFrameTooLarge = fmt.Errorf("%w: frame too large", ErrFraming)
)

type flusher interface {
	Flush() error
}

// WriteFrame writes payload prefixed with its length. The prefix and the
// payload are written in a single call, so a frame is never interleaved
// with another writer's frame on the same pipe.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	buf := make([]byte, prefixSize+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[prefixSize:], payload)

	if _, err := w.Write(buf); err != nil {
		return err
	}

	if f, ok := w.(flusher); ok {
		return f.Flush()
	}

	return nil
}

// ReadFrame reads a single frame and returns its payload. It returns io.EOF
// if the stream ended cleanly before the first byte of the frame, and an
// ErrFraming error if it ended anywhere inside the frame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var prefix [prefixSize]byte

	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: reading length prefix: %w", ErrFraming, err)
	}

	length := binary.LittleEndian.Uint32(prefix[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)

	// io.ReadFull loops until length bytes are read, pipes may deliver
	// fewer bytes per read call than requested
	n, err := io.ReadFull(r, payload)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d: %w", ErrFraming, length, n, io.ErrUnexpectedEOF)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload: %w", ErrFraming, err)
	}

	return payload, nil
}

// WriteMessage encodes v and writes it as a single frame. The context is
// checked before anything is written.
func WriteMessage(ctx context.Context, w io.Writer, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := codec.Encode(v)
	if err != nil {
		return err
	}

	return WriteFrame(w, payload)
}

// ReadMessage reads a single frame and decodes it into a value of type T.
// The context is checked before the read starts. Reads on pipes cannot be
// interrupted, callers that must not block indefinitely close the reader.
func ReadMessage[T any](ctx context.Context, r io.Reader) (T, error) {
	var res T

	if err := ctx.Err(); err != nil {
		return res, err
	}

	payload, err := ReadFrame(r)
	if err != nil {
		return res, err
	}

	return codec.Decode[T](payload)
}
