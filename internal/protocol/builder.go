package protocol

import "google.golang.org/protobuf/encoding/protowire"

// FrameBuilder constructs protobuf-encoded frames field by field.
type FrameBuilder struct {
	buf []byte
}

// NewFrameBuilder creates a new FrameBuilder.
func NewFrameBuilder() *FrameBuilder {
	return &FrameBuilder{}
}

// Uint64 writes a varint field.
func (b *FrameBuilder) Uint64(num protowire.Number, v uint64) *FrameBuilder {
	b.buf = protowire.AppendTag(b.buf, num, protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, v)
	return b
}

// Int32 writes a varint field holding a signed 32-bit value.
func (b *FrameBuilder) Int32(num protowire.Number, v int32) *FrameBuilder {
	return b.Uint64(num, uint64(int64(v)))
}

// Bool writes a varint field holding 0 or 1.
func (b *FrameBuilder) Bool(num protowire.Number, v bool) *FrameBuilder {
	return b.Uint64(num, protowire.EncodeBool(v))
}

// String writes a length-delimited string field.
func (b *FrameBuilder) String(num protowire.Number, s string) *FrameBuilder {
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendString(b.buf, s)
	return b
}

// Bytes writes a length-delimited bytes field.
func (b *FrameBuilder) Bytes(num protowire.Number, v []byte) *FrameBuilder {
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, v)
	return b
}

// Message writes a nested message field built by fn.
func (b *FrameBuilder) Message(num protowire.Number, fn func(*FrameBuilder)) *FrameBuilder {
	nested := NewFrameBuilder()
	fn(nested)
	return b.Bytes(num, nested.Build())
}

// Build returns the constructed frame bytes.
func (b *FrameBuilder) Build() []byte {
	out := make([]byte, len(b.buf))
	copy(out, b.buf)
	return out
}

// EncodeAck builds the acknowledgement frame for a push frame id.
func EncodeAck(id uint64) []byte {
	return NewFrameBuilder().
		Uint64(fieldFrameID, id).
		String(fieldFrameType, FrameTypeAck).
		Build()
}

// EncodeHeartbeat builds the keep-alive frame.
// The encoding is the fixed four bytes 3A 02 68 62.
func EncodeHeartbeat() []byte {
	return NewFrameBuilder().String(fieldFrameType, FrameTypeHeartbeat).Build()
}
