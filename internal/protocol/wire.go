package protocol

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// field is one decoded top-level field of a protobuf message.
// Varint and fixed-width values land in u, length-delimited values in b.
type field struct {
	num protowire.Number
	typ protowire.Type
	u   uint64
	b   []byte
}

func (f field) str() string   { return string(f.b) }
func (f field) i32() int32    { return int32(f.u) }
func (f field) u32() uint32   { return uint32(f.u) }
func (f field) boolean() bool { return f.u != 0 }

// walk iterates the fields of b in wire order. Groups are skipped.
// Unknown fields are handed to fn like any other; callers ignore what they do not know.
func walk(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.u = uint64(v)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// sub decodes a nested message field into a fresh value.
func sub[T any](f field, decode func([]byte, *T) error) (*T, error) {
	v := new(T)
	if err := decode(f.b, v); err != nil {
		return nil, err
	}
	return v, nil
}
