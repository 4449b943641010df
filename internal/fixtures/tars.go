// Package fixtures holds one representative type per codec family. The self
// check and the package tests run the oracle over them.
package fixtures

import (
	"fmt"
	"maps"
	"slices"

	"github.com/TarsCloud/TarsGo/tars/protocol/codec"
)

// User is laid out the way tars2go emits a three-field struct.
type User struct {
	ID   uint32   `json:"id"`
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

func (st *User) WriteTo(buf *codec.Buffer) error {
	if err := buf.WriteUint32(st.ID, 0); err != nil {
		return err
	}
	if err := buf.WriteString(st.Name, 1); err != nil {
		return err
	}
	if err := buf.WriteHead(codec.LIST, 2); err != nil {
		return err
	}
	if err := buf.WriteInt32(int32(len(st.Tags)), 0); err != nil {
		return err
	}
	for _, v := range st.Tags {
		if err := buf.WriteString(v, 0); err != nil {
			return err
		}
	}
	return nil
}

func (st *User) ReadFrom(readBuf *codec.Reader) error {
	var length int32
	if err := readBuf.ReadUint32(&st.ID, 0, true); err != nil {
		return err
	}
	if err := readBuf.ReadString(&st.Name, 1, true); err != nil {
		return err
	}
	if _, err := readBuf.SkipTo(codec.LIST, 2, true); err != nil {
		return err
	}
	if err := readBuf.ReadInt32(&length, 0, true); err != nil {
		return err
	}
	st.Tags = make([]string, length)
	for i := range st.Tags {
		if err := readBuf.ReadString(&st.Tags[i], 0, true); err != nil {
			return err
		}
	}
	return nil
}

// WriteBlock writes st as a nested struct under tag.
func (st *User) WriteBlock(buf *codec.Buffer, tag byte) error {
	if err := buf.WriteHead(codec.StructBegin, tag); err != nil {
		return err
	}
	if err := st.WriteTo(buf); err != nil {
		return err
	}
	return buf.WriteHead(codec.StructEnd, 0)
}

func (st *User) ReadBlock(readBuf *codec.Reader, tag byte, require bool) error {
	have, err := readBuf.SkipTo(codec.StructBegin, tag, require)
	if err != nil {
		return err
	}
	if !have {
		if require {
			return fmt.Errorf("require User, but not exist. tag %d", tag)
		}
		return nil
	}
	if err := st.ReadFrom(readBuf); err != nil {
		return err
	}
	return readBuf.SkipToStructEnd()
}

// Account nests records, maps and every scalar width.
type Account struct {
	Owner    User             `json:"owner"`
	Balances map[string]int64 `json:"balances"`
	Counters map[int32]string `json:"counters"`
	Scores   []float64        `json:"scores"`
	Level    uint8            `json:"level"`
	Port     uint16           `json:"port"`
	Delta    int16            `json:"delta"`
	Nonce    uint64           `json:"nonce"`
	Ratio    float32          `json:"ratio"`
	Active   bool             `json:"active"`
	Avatar   []byte           `json:"avatar"`
	Friends  []User           `json:"friends"`
	Note     string           `json:"note"`
}

// Map keys are written in sorted order so equal values encode identically.
func (st *Account) WriteTo(buf *codec.Buffer) error {
	if err := st.Owner.WriteBlock(buf, 0); err != nil {
		return err
	}

	if err := buf.WriteHead(codec.MAP, 1); err != nil {
		return err
	}
	if err := buf.WriteInt32(int32(len(st.Balances)), 0); err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(st.Balances)) {
		if err := buf.WriteString(k, 0); err != nil {
			return err
		}
		if err := buf.WriteInt64(st.Balances[k], 1); err != nil {
			return err
		}
	}

	if err := buf.WriteHead(codec.MAP, 2); err != nil {
		return err
	}
	if err := buf.WriteInt32(int32(len(st.Counters)), 0); err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(st.Counters)) {
		if err := buf.WriteInt32(k, 0); err != nil {
			return err
		}
		if err := buf.WriteString(st.Counters[k], 1); err != nil {
			return err
		}
	}

	if err := buf.WriteHead(codec.LIST, 3); err != nil {
		return err
	}
	if err := buf.WriteInt32(int32(len(st.Scores)), 0); err != nil {
		return err
	}
	for _, v := range st.Scores {
		if err := buf.WriteFloat64(v, 0); err != nil {
			return err
		}
	}

	if err := buf.WriteUint8(st.Level, 4); err != nil {
		return err
	}
	if err := buf.WriteUint16(st.Port, 5); err != nil {
		return err
	}
	if err := buf.WriteInt16(st.Delta, 6); err != nil {
		return err
	}
	// TARS has no unsigned long; the bit pattern travels as int64.
	if err := buf.WriteInt64(int64(st.Nonce), 7); err != nil {
		return err
	}
	if err := buf.WriteFloat32(st.Ratio, 8); err != nil {
		return err
	}
	if err := buf.WriteBool(st.Active, 9); err != nil {
		return err
	}

	if err := buf.WriteHead(codec.SimpleList, 10); err != nil {
		return err
	}
	if err := buf.WriteHead(codec.BYTE, 0); err != nil {
		return err
	}
	if err := buf.WriteInt32(int32(len(st.Avatar)), 0); err != nil {
		return err
	}
	if err := buf.WriteSliceUint8(st.Avatar); err != nil {
		return err
	}

	if err := buf.WriteHead(codec.LIST, 11); err != nil {
		return err
	}
	if err := buf.WriteInt32(int32(len(st.Friends)), 0); err != nil {
		return err
	}
	for i := range st.Friends {
		if err := st.Friends[i].WriteBlock(buf, 0); err != nil {
			return err
		}
	}
	return buf.WriteString(st.Note, 16)
}

func (st *Account) ReadFrom(readBuf *codec.Reader) error {
	var length int32
	if err := st.Owner.ReadBlock(readBuf, 0, true); err != nil {
		return err
	}

	if _, err := readBuf.SkipTo(codec.MAP, 1, true); err != nil {
		return err
	}
	if err := readBuf.ReadInt32(&length, 0, true); err != nil {
		return err
	}
	st.Balances = make(map[string]int64, length)
	for i := int32(0); i < length; i++ {
		var k string
		var v int64
		if err := readBuf.ReadString(&k, 0, false); err != nil {
			return err
		}
		if err := readBuf.ReadInt64(&v, 1, false); err != nil {
			return err
		}
		st.Balances[k] = v
	}

	if _, err := readBuf.SkipTo(codec.MAP, 2, true); err != nil {
		return err
	}
	if err := readBuf.ReadInt32(&length, 0, true); err != nil {
		return err
	}
	st.Counters = make(map[int32]string, length)
	for i := int32(0); i < length; i++ {
		var k int32
		var v string
		if err := readBuf.ReadInt32(&k, 0, false); err != nil {
			return err
		}
		if err := readBuf.ReadString(&v, 1, false); err != nil {
			return err
		}
		st.Counters[k] = v
	}

	if _, err := readBuf.SkipTo(codec.LIST, 3, true); err != nil {
		return err
	}
	if err := readBuf.ReadInt32(&length, 0, true); err != nil {
		return err
	}
	st.Scores = make([]float64, length)
	for i := range st.Scores {
		if err := readBuf.ReadFloat64(&st.Scores[i], 0, true); err != nil {
			return err
		}
	}

	if err := readBuf.ReadUint8(&st.Level, 4, true); err != nil {
		return err
	}
	if err := readBuf.ReadUint16(&st.Port, 5, true); err != nil {
		return err
	}
	if err := readBuf.ReadInt16(&st.Delta, 6, true); err != nil {
		return err
	}
	var nonce int64
	if err := readBuf.ReadInt64(&nonce, 7, true); err != nil {
		return err
	}
	st.Nonce = uint64(nonce)
	if err := readBuf.ReadFloat32(&st.Ratio, 8, true); err != nil {
		return err
	}
	if err := readBuf.ReadBool(&st.Active, 9, true); err != nil {
		return err
	}

	if _, err := readBuf.SkipTo(codec.SimpleList, 10, true); err != nil {
		return err
	}
	if _, err := readBuf.SkipTo(codec.BYTE, 0, true); err != nil {
		return err
	}
	if err := readBuf.ReadInt32(&length, 0, true); err != nil {
		return err
	}
	// ReadSliceUint8 leaves the slice alone for a zero length.
	st.Avatar = []byte{}
	if err := readBuf.ReadSliceUint8(&st.Avatar, length, true); err != nil {
		return err
	}

	if _, err := readBuf.SkipTo(codec.LIST, 11, true); err != nil {
		return err
	}
	if err := readBuf.ReadInt32(&length, 0, true); err != nil {
		return err
	}
	st.Friends = make([]User, length)
	for i := range st.Friends {
		if err := st.Friends[i].ReadBlock(readBuf, 0, true); err != nil {
			return err
		}
	}
	return readBuf.ReadString(&st.Note, 16, true)
}
