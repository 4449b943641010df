package msgpack_test

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vmsgpack "github.com/vmihailenco/msgpack/v5"

	"alma.local/roundtrip/codec/msgpack"
	"alma.local/roundtrip/internal/fixtures"
)

func TestRoundTrip(t *testing.T) {
	c := msgpack.NewCodec()
	assert.Equal(t, "msgpack", c.Name())

	in := &fixtures.Inventory{
		Owner:    "dock 4",
		Items:    map[string][]int32{"bolts": {1, 2}, "nuts": {}},
		Prices:   map[uint16]float64{3: 1.5, 1: 0.25},
		Location: &fixtures.Coordinates{Lat: 52.5, Lng: 13.4, Label: "north"},
		History:  [][]string{{"in"}, {"out", "in"}},
		Limits:   [4]int16{-1, 0, 1, 300},
		Sealed:   true,
	}
	data, err := c.Marshal(in)
	require.NoError(t, err)

	out := new(fixtures.Inventory)
	require.NoError(t, c.Unmarshal(data, out))
	assert.Equal(t, in, out)
}

func TestMapKeysAreSorted(t *testing.T) {
	c := msgpack.NewCodec()
	m := make(map[string]int, 64)
	for i := 0; i < 64; i++ {
		m[string(rune('A'+i))] = i
	}
	first, err := c.Marshal(m)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Marshal(m)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func manyItems(order []int) *fixtures.Inventory {
	inv := &fixtures.Inventory{
		Owner:  "yard",
		Items:  map[string][]int32{},
		Prices: map[uint16]float64{},
	}
	for _, i := range order {
		inv.Items[fmt.Sprintf("item-%02d", i)] = []int32{int32(i)}
		inv.Prices[uint16(i*37)] = float64(i) / 4
	}
	return inv
}

func TestStructMapsAreSorted(t *testing.T) {
	c := msgpack.NewCodec()
	forward := make([]int, 40)
	backward := make([]int, 40)
	for i := range forward {
		forward[i] = i
		backward[i] = 39 - i
	}

	first, err := c.Marshal(manyItems(forward))
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		again, err := c.Marshal(manyItems(backward))
		require.NoError(t, err)
		require.Equal(t, first, again, "encoding %d differs", i)
	}

	out := new(fixtures.Inventory)
	require.NoError(t, c.Unmarshal(first, out))
	assert.Equal(t, manyItems(forward), out)
}

func TestNonStringKeysAreSortedNumerically(t *testing.T) {
	prices := map[uint16]float64{}
	for i := 0; i < 50; i++ {
		prices[uint16((i*7919)%1000)] = float64(i)
	}
	data, err := msgpack.NewCodec().Marshal(prices)
	require.NoError(t, err)

	dec := vmsgpack.NewDecoder(bytes.NewReader(data))
	n, err := dec.DecodeMapLen()
	require.NoError(t, err)
	require.Equal(t, len(prices), n)
	prev := -1
	for i := 0; i < n; i++ {
		k, err := dec.DecodeUint16()
		require.NoError(t, err)
		_, err = dec.DecodeFloat64()
		require.NoError(t, err)
		require.Greater(t, int(k), prev)
		prev = int(k)
	}
}

type ledger struct {
	Books map[string]map[int64]string
	Tags  []map[bool]int8
}

func TestNestedMapsAreSorted(t *testing.T) {
	c := msgpack.NewCodec()
	build := func(reverse bool) ledger {
		l := ledger{Books: map[string]map[int64]string{}}
		for i := 0; i < 30; i++ {
			j := i
			if reverse {
				j = 29 - i
			}
			inner := map[int64]string{}
			for k := 0; k < 12; k++ {
				inner[int64(k*k-50)] = fmt.Sprint(j, k)
			}
			l.Books[fmt.Sprintf("book-%d", j)] = inner
			l.Tags = append(l.Tags, map[bool]int8{true: 1, false: 0})
		}
		return l
	}

	first, err := c.Marshal(build(false))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		again, err := c.Marshal(build(true))
		require.NoError(t, err)
		require.Equal(t, first, again)
	}

	var out ledger
	require.NoError(t, c.Unmarshal(first, &out))
	assert.Equal(t, build(false).Books, out.Books)
}
