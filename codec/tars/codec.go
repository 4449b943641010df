// Package tars adapts types generated by tars2go to codec.Codec. The wire
// format itself comes from TarsGo's protocol codec, which generated code
// writes against directly.
package tars

import (
	"bytes"
	"fmt"

	tarscodec "github.com/TarsCloud/TarsGo/tars/protocol/codec"

	"alma.local/roundtrip/codec"
)

// Struct is the method pair tars2go emits for every struct.
type Struct interface {
	WriteTo(buf *tarscodec.Buffer) error
	ReadFrom(readBuf *tarscodec.Reader) error
}

type tarsCodec struct{}

func NewCodec() codec.Codec {
	return tarsCodec{}
}

func (tarsCodec) Name() string { return "tars" }

// Marshal writes v as a bare field sequence, the way generated proxies put a
// struct on the wire.
func (tarsCodec) Marshal(v any) ([]byte, error) {
	s, ok := v.(Struct)
	if !ok {
		return nil, fmt.Errorf("%w: %T has no tars2go WriteTo/ReadFrom", codec.ErrUnsupported, v)
	}
	buf := tarscodec.NewBuffer()
	if err := s.WriteTo(buf); err != nil {
		return nil, err
	}
	return bytes.Clone(buf.ToBytes()), nil
}

func (tarsCodec) Unmarshal(data []byte, v any) error {
	s, ok := v.(Struct)
	if !ok {
		return fmt.Errorf("%w: %T has no tars2go WriteTo/ReadFrom", codec.ErrUnsupported, v)
	}
	return s.ReadFrom(tarscodec.NewReader(data))
}
