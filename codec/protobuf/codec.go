// Package protobuf adapts generated protocol buffer messages to codec.Codec.
package protobuf

import (
	"fmt"

	"google.golang.org/protobuf/proto"

	"alma.local/roundtrip/codec"
)

type protobufCodec struct {
	marshal proto.MarshalOptions
}

// NewCodec returns a codec that marshals deterministically, which keeps map
// fields in a stable order.
func NewCodec() codec.Codec {
	return protobufCodec{marshal: proto.MarshalOptions{Deterministic: true}}
}

func (protobufCodec) Name() string { return "protobuf" }

func (c protobufCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(proto.Message)
	if !ok {
		return nil, fmt.Errorf("%w: %T is not a proto.Message", codec.ErrUnsupported, v)
	}
	return c.marshal.Marshal(m)
}

func (protobufCodec) Unmarshal(data []byte, v any) error {
	m, ok := v.(proto.Message)
	if !ok {
		return fmt.Errorf("%w: %T is not a proto.Message", codec.ErrUnsupported, v)
	}
	return proto.Unmarshal(data, m)
}
