package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"google.golang.org/protobuf/encoding/protowire"
)

// Push frame types.
const (
	FrameTypeMessage   = "msg"
	FrameTypeAck       = "ack"
	FrameTypeHeartbeat = "hb"
)

// PushFrame field numbers.
const (
	fieldFrameID     protowire.Number = 2
	fieldFrameType   protowire.Number = 7
	fieldFrameBinary protowire.Number = 8
)

// MaxPayloadSize bounds an inflated batch payload.
const MaxPayloadSize = 16 << 20

var gzipMagic = []byte{0x1f, 0x8b, 0x08}

// ErrPayloadTooLarge is returned when an inflated payload exceeds MaxPayloadSize.
var ErrPayloadTooLarge = errors.New("payload exceeds maximum size")

// DecodeError reports a payload that could not be decoded under a schema.
type DecodeError struct {
	Schema string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Schema, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// PushFrame is the outer envelope received over the push socket.
type PushFrame struct {
	ID     uint64
	Type   string
	Binary []byte
}

// DecodePushFrame decodes an outer push frame.
// A gzip-compressed "msg" payload is inflated in place. When inflation
// fails the frame is still returned so the caller can acknowledge its id.
func DecodePushFrame(b []byte) (*PushFrame, error) {
	frame := &PushFrame{}
	err := walk(b, func(f field) error {
		switch f.num {
		case fieldFrameID:
			frame.ID = f.u
		case fieldFrameType:
			frame.Type = f.str()
		case fieldFrameBinary:
			frame.Binary = f.b
		}
		return nil
	})
	if err != nil {
		return nil, &DecodeError{Schema: SchemaPushFrame, Err: err}
	}

	if frame.Type == FrameTypeMessage && IsGzip(frame.Binary) {
		inflated, err := Inflate(frame.Binary)
		if err != nil {
			return frame, &DecodeError{Schema: SchemaPushFrame, Err: err}
		}
		frame.Binary = inflated
	}
	return frame, nil
}

// IsGzip reports whether b starts with the gzip magic bytes.
func IsGzip(b []byte) bool {
	return len(b) >= len(gzipMagic) && bytes.Equal(b[:len(gzipMagic)], gzipMagic)
}

// Inflate decompresses a gzip payload.
func Inflate(b []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("open gzip stream: %w", err)
	}
	defer r.Close()

	out, err := io.ReadAll(io.LimitReader(r, MaxPayloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("inflate payload: %w", err)
	}
	if len(out) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}
	return out, nil
}

// Deflate gzip-compresses b.
func Deflate(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
