// Package snapshot projects a value into a structured byte form that does not
// depend on the codec under test. The oracle compares projections of the
// original and the decoded value.
package snapshot

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"gopkg.in/yaml.v3"

	"alma.local/roundtrip/codec"
)

type Projector interface {
	Name() string
	Project(v any) ([]byte, error)
}

type projectorFunc struct {
	name string
	fn   func(v any) ([]byte, error)
}

func (p projectorFunc) Name() string                  { return p.name }
func (p projectorFunc) Project(v any) ([]byte, error) { return p.fn(v) }

// New wraps fn as a Projector.
func New(name string, fn func(v any) ([]byte, error)) Projector {
	return projectorFunc{name: name, fn: fn}
}

// JSON is the default projection. Map keys come out sorted.
func JSON() Projector {
	return New("json", json.Marshal)
}

func YAML() Projector {
	return New("yaml", yaml.Marshal)
}

// ProtoJSON projects protocol buffer messages with their canonical JSON
// mapping, which also covers well-known types.
func ProtoJSON() Projector {
	opts := protojson.MarshalOptions{UseProtoNames: true, EmitUnpopulated: true}
	return New("protojson", func(v any) ([]byte, error) {
		m, ok := v.(proto.Message)
		if !ok {
			return nil, fmt.Errorf("%w: %T is not a proto.Message", codec.ErrUnsupported, v)
		}
		return opts.Marshal(m)
	})
}

type hashRooter interface {
	HashTreeRoot() ([32]byte, error)
}

// HashRoot projects SSZ containers onto their hex encoded hash tree root.
func HashRoot() Projector {
	return New("hash-root", func(v any) ([]byte, error) {
		h, ok := v.(hashRooter)
		if !ok {
			return nil, fmt.Errorf("%w: %T has no HashTreeRoot", codec.ErrUnsupported, v)
		}
		root, err := h.HashTreeRoot()
		if err != nil {
			return nil, err
		}
		out := make([]byte, hex.EncodedLen(len(root)))
		hex.Encode(out, root[:])
		return out, nil
	})
}
