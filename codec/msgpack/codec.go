// Package msgpack encodes arbitrary structs with MessagePack. It is the
// fallback codec for types that carry no generated encoder.
package msgpack

import (
	"bytes"
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"alma.local/roundtrip/codec"
)

type msgpackCodec struct{}

func NewCodec() codec.Codec {
	return msgpackCodec{}
}

func (msgpackCodec) Name() string { return "msgpack" }

// Map keys are sorted so equal values always produce equal bytes.
func (msgpackCodec) Marshal(v any) ([]byte, error) {
	prepare(reflect.TypeOf(v))
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Unmarshal(data []byte, v any) error {
	prepare(reflect.TypeOf(v))
	return msgpack.Unmarshal(data, v)
}

// msgpack only sorts map[string]string and map[string]any itself, and it
// caches field encoders per struct type on first use. Every map type
// reachable from a value is therefore given the sorted encoder before
// msgpack sees the value, on the decode path as well.
var (
	prepareMu sync.Mutex
	prepared  sync.Map // reflect.Type of top-level values
	walked    = map[reflect.Type]bool{}
)

var (
	customEncoderType = reflect.TypeOf((*msgpack.CustomEncoder)(nil)).Elem()
	marshalerType     = reflect.TypeOf((*msgpack.Marshaler)(nil)).Elem()
)

func prepare(typ reflect.Type) {
	if typ == nil {
		return
	}
	if _, ok := prepared.Load(typ); ok {
		return
	}
	prepareMu.Lock()
	defer prepareMu.Unlock()
	walk(typ)
	prepared.Store(typ, struct{}{})
}

func walk(typ reflect.Type) {
	if walked[typ] {
		return
	}
	walked[typ] = true
	switch typ.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Array:
		walk(typ.Elem())
	case reflect.Struct:
		for i := 0; i < typ.NumField(); i++ {
			walk(typ.Field(i).Type)
		}
	case reflect.Map:
		walk(typ.Key())
		walk(typ.Elem())
		if encodesItself(typ) {
			return
		}
		msgpack.Register(reflect.Zero(typ).Interface(), encodeSortedMap, nil)
	}
}

func encodesItself(typ reflect.Type) bool {
	ptr := reflect.PointerTo(typ)
	return typ.Implements(customEncoderType) || typ.Implements(marshalerType) ||
		ptr.Implements(customEncoderType) || ptr.Implements(marshalerType)
}

func encodeSortedMap(e *msgpack.Encoder, v reflect.Value) error {
	if v.IsNil() {
		return e.EncodeNil()
	}
	if err := e.EncodeMapLen(v.Len()); err != nil {
		return err
	}
	keys := v.MapKeys()
	slices.SortFunc(keys, compareKeys)
	for _, k := range keys {
		if err := e.EncodeValue(k); err != nil {
			return err
		}
		mv := v.MapIndex(k)
		if mv.Kind() == reflect.Interface && !mv.IsNil() {
			prepare(mv.Elem().Type())
		}
		if err := e.EncodeValue(mv); err != nil {
			return err
		}
	}
	return nil
}

func compareKeys(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.Bool:
		if a.Bool() == b.Bool() {
			return 0
		}
		if b.Bool() {
			return -1
		}
		return 1
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
