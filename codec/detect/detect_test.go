package detect_test

import (
	"testing"

	tarscodec "github.com/TarsCloud/TarsGo/tars/protocol/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"

	"alma.local/roundtrip/codec"
	"alma.local/roundtrip/codec/detect"
	"alma.local/roundtrip/codec/msgpack"
	"alma.local/roundtrip/internal/fixtures"
)

func TestFor(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want string
	}{
		{"protobuf", new(timestamppb.Timestamp), "protobuf"},
		{"tars", new(fixtures.Account), "tars"},
		{"ssz", new(fixtures.Checkpoint), "ssz"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := detect.For(tc.v)
			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Name())
		})
	}
}

// Ping has exactly the method pair tars2go emits and nothing else.
type Ping struct {
	Seq int32
}

func (st *Ping) WriteTo(_os *tarscodec.Buffer) error {
	return _os.WriteInt32(st.Seq, 0)
}

func (st *Ping) ReadFrom(_is *tarscodec.Reader) error {
	return _is.ReadInt32(&st.Seq, 0, true)
}

func TestForGeneratedTarsType(t *testing.T) {
	c, err := detect.For(&Ping{})
	require.NoError(t, err)
	require.Equal(t, "tars", c.Name())

	data, err := c.Marshal(&Ping{Seq: -7})
	require.NoError(t, err)
	var out Ping
	require.NoError(t, c.Unmarshal(data, &out))
	assert.Equal(t, int32(-7), out.Seq)
}

func TestForValueReceiverMisses(t *testing.T) {
	_, err := detect.For(fixtures.Account{})
	require.ErrorIs(t, err, codec.ErrUnsupported)
}

func TestForOr(t *testing.T) {
	c, err := detect.ForOr(new(fixtures.Inventory), msgpack.NewCodec())
	require.NoError(t, err)
	assert.Equal(t, "msgpack", c.Name())

	_, err = detect.ForOr(new(fixtures.Inventory), nil)
	require.ErrorIs(t, err, codec.ErrUnsupported)

	c, err = detect.ForOr(new(fixtures.User), msgpack.NewCodec())
	require.NoError(t, err)
	assert.Equal(t, "tars", c.Name(), "a generated encoder wins over the fallback")
}

func TestByName(t *testing.T) {
	assert.Equal(t, []string{"msgpack", "protobuf", "ssz", "tars"}, detect.Names())
	for _, name := range detect.Names() {
		c, err := detect.ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	_, err := detect.ByName("cbor")
	require.ErrorIs(t, err, codec.ErrUnsupported)
}
