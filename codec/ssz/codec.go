// Package ssz adapts fastssz generated types to codec.Codec.
package ssz

import (
	"fmt"

	ssz "github.com/ferranbt/fastssz"

	"alma.local/roundtrip/codec"
)

type sszCodec struct{}

func NewCodec() codec.Codec {
	return sszCodec{}
}

func (sszCodec) Name() string { return "ssz" }

// Marshal rejects output whose length disagrees with SizeSSZ.
func (sszCodec) Marshal(v any) ([]byte, error) {
	m, ok := v.(ssz.Marshaler)
	if !ok {
		return nil, fmt.Errorf("%w: %T does not implement ssz.Marshaler", codec.ErrUnsupported, v)
	}
	out, err := m.MarshalSSZ()
	if err != nil {
		return nil, err
	}
	if size := m.SizeSSZ(); size != len(out) {
		return nil, fmt.Errorf("ssz: %T encoded %d bytes but SizeSSZ reports %d", v, len(out), size)
	}
	return out, nil
}

func (sszCodec) Unmarshal(data []byte, v any) error {
	u, ok := v.(ssz.Unmarshaler)
	if !ok {
		return fmt.Errorf("%w: %T does not implement ssz.Unmarshaler", codec.ErrUnsupported, v)
	}
	return u.UnmarshalSSZ(data)
}
