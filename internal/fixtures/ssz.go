package fixtures

import (
	"encoding/binary"
	"fmt"

	ssz "github.com/ferranbt/fastssz"
)

const (
	rootSize            = 32
	checkpointSize      = 8 + rootSize
	attestationFixed    = 8 + 4 + 2*checkpointSize + 4
	attestationMaxBits  = 256
	attestationBitLimit = (attestationMaxBits + 31) / 32
)

// Checkpoint is a fixed-size SSZ container.
type Checkpoint struct {
	Epoch uint64 `json:"epoch"`
	Root  []byte `json:"root" ssz-size:"32"`
}

func (c *Checkpoint) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalSSZ(c)
}

func (c *Checkpoint) MarshalSSZTo(buf []byte) (dst []byte, err error) {
	dst = buf
	dst = ssz.MarshalUint64(dst, c.Epoch)
	if size := len(c.Root); size != rootSize {
		return nil, fmt.Errorf("%w: Checkpoint.Root has %d bytes", ssz.ErrSize, size)
	}
	dst = append(dst, c.Root...)
	return dst, nil
}

func (c *Checkpoint) SizeSSZ() int {
	return checkpointSize
}

func (c *Checkpoint) UnmarshalSSZ(buf []byte) error {
	if len(buf) != checkpointSize {
		return ssz.ErrSize
	}
	c.Epoch = ssz.UnmarshallUint64(buf[0:8])
	if cap(c.Root) == 0 {
		c.Root = make([]byte, 0, rootSize)
	}
	c.Root = append(c.Root[:0], buf[8:checkpointSize]...)
	return nil
}

func (c *Checkpoint) HashTreeRoot() ([32]byte, error) {
	return ssz.HashWithDefaultHasher(c)
}

func (c *Checkpoint) HashTreeRootWith(hh ssz.HashWalker) error {
	indx := hh.Index()
	hh.PutUint64(c.Epoch)
	if size := len(c.Root); size != rootSize {
		return fmt.Errorf("%w: Checkpoint.Root has %d bytes", ssz.ErrSize, size)
	}
	hh.PutBytes(c.Root)
	hh.Merkleize(indx)
	return nil
}

func (c *Checkpoint) GetTree() (*ssz.Node, error) {
	return ssz.ProofTree(c)
}

// Attestation mixes fixed fields, nested containers and a variable byte list.
type Attestation struct {
	Slot   uint64     `json:"slot"`
	Index  uint32     `json:"index"`
	Source Checkpoint `json:"source"`
	Target Checkpoint `json:"target"`
	Bits   []byte     `json:"bits" ssz-max:"256"`
}

func (a *Attestation) MarshalSSZ() ([]byte, error) {
	return ssz.MarshalSSZ(a)
}

func (a *Attestation) MarshalSSZTo(buf []byte) (dst []byte, err error) {
	dst = buf
	dst = ssz.MarshalUint64(dst, a.Slot)
	dst = ssz.MarshalUint32(dst, a.Index)
	if dst, err = a.Source.MarshalSSZTo(dst); err != nil {
		return
	}
	if dst, err = a.Target.MarshalSSZTo(dst); err != nil {
		return
	}

	// Offset (4) 'Bits'
	dst = ssz.WriteOffset(dst, attestationFixed)

	// Field (4) 'Bits'
	if size := len(a.Bits); size > attestationMaxBits {
		return nil, fmt.Errorf("%w: Attestation.Bits has %d bytes", ssz.ErrSize, size)
	}
	dst = append(dst, a.Bits...)
	return
}

func (a *Attestation) SizeSSZ() int {
	return attestationFixed + len(a.Bits)
}

func (a *Attestation) UnmarshalSSZ(buf []byte) error {
	size := uint64(len(buf))
	if size < attestationFixed {
		return ssz.ErrSize
	}
	a.Slot = ssz.UnmarshallUint64(buf[0:8])
	a.Index = ssz.UnmarshallUint32(buf[8:12])
	if err := a.Source.UnmarshalSSZ(buf[12 : 12+checkpointSize]); err != nil {
		return err
	}
	if err := a.Target.UnmarshalSSZ(buf[12+checkpointSize : 12+2*checkpointSize]); err != nil {
		return err
	}

	o4 := uint64(binary.LittleEndian.Uint32(buf[12+2*checkpointSize : attestationFixed]))
	if o4 != attestationFixed {
		return ssz.ErrOffset
	}

	tail := buf[o4:]
	if len(tail) > attestationMaxBits {
		return ssz.ErrSize
	}
	if cap(a.Bits) == 0 {
		a.Bits = make([]byte, 0, len(tail))
	}
	a.Bits = append(a.Bits[:0], tail...)
	return nil
}

func (a *Attestation) HashTreeRoot() ([32]byte, error) {
	return ssz.HashWithDefaultHasher(a)
}

func (a *Attestation) HashTreeRootWith(hh ssz.HashWalker) error {
	indx := hh.Index()
	hh.PutUint64(a.Slot)
	hh.PutUint32(a.Index)
	if err := a.Source.HashTreeRootWith(hh); err != nil {
		return err
	}
	if err := a.Target.HashTreeRootWith(hh); err != nil {
		return err
	}
	{
		elemIndx := hh.Index()
		byteLen := uint64(len(a.Bits))
		if byteLen > attestationMaxBits {
			return fmt.Errorf("%w: Attestation.Bits has %d bytes", ssz.ErrSize, byteLen)
		}
		hh.Append(a.Bits)
		hh.MerkleizeWithMixin(elemIndx, byteLen, attestationBitLimit)
	}
	hh.Merkleize(indx)
	return nil
}

func (a *Attestation) GetTree() (*ssz.Node, error) {
	return ssz.ProofTree(a)
}
