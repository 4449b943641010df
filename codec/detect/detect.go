// Package detect picks a codec for a value from the capabilities its type
// exposes.
package detect

import (
	"fmt"
	"sort"

	ssz "github.com/ferranbt/fastssz"
	"google.golang.org/protobuf/proto"

	"alma.local/roundtrip/codec"
	"alma.local/roundtrip/codec/msgpack"
	"alma.local/roundtrip/codec/protobuf"
	sszcodec "alma.local/roundtrip/codec/ssz"
	"alma.local/roundtrip/codec/tars"
)

var byName = map[string]func() codec.Codec{
	"tars":     tars.NewCodec,
	"ssz":      sszcodec.NewCodec,
	"protobuf": protobuf.NewCodec,
	"msgpack":  msgpack.NewCodec,
}

// Names lists the codecs ByName accepts.
func Names() []string {
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ByName(name string) (codec.Codec, error) {
	newCodec, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", codec.ErrUnsupported, name)
	}
	return newCodec(), nil
}

// For returns the codec matching v's generated methods. v should be a pointer,
// since generated methods have pointer receivers. Protobuf is checked first.
func For(v any) (codec.Codec, error) {
	if _, ok := v.(proto.Message); ok {
		return protobuf.NewCodec(), nil
	}
	if _, ok := v.(tars.Struct); ok {
		return tars.NewCodec(), nil
	}
	_, m := v.(ssz.Marshaler)
	_, u := v.(ssz.Unmarshaler)
	if m && u {
		return sszcodec.NewCodec(), nil
	}
	return nil, fmt.Errorf("%w: %T has no known encoder", codec.ErrUnsupported, v)
}

// ForOr is For with a fallback for types that have no generated encoder.
func ForOr(v any, fallback codec.Codec) (codec.Codec, error) {
	c, err := For(v)
	if err != nil && fallback != nil {
		return fallback, nil
	}
	return c, err
}
