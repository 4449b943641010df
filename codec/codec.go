// Package codec defines the encode/decode capability a type must expose to be
// round-trip checked. Implementations live in the sub-packages.
package codec

import "errors"

// ErrUnsupported is returned when a codec is handed a value it cannot encode
// or decode, e.g. a plain struct given to a codec for generated SSZ types.
var ErrUnsupported = errors.New("codec: unsupported value")

type Codec interface {
	// Name identifies the codec in reports and configuration.
	Name() string

	// Marshal encodes v into its wire form.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes data into v, which must be a pointer.
	Unmarshal(data []byte, v any) error
}
