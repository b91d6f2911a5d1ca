package bits

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type field struct {
	bits int
	v    uint
}

func roundTrip(t *testing.T, fields []field) {
	arr := Array{Bytes: make([]byte, 0, 16)}
	w := NewWriter(&arr)
	total := 0
	for _, f := range fields {
		w.Write(f.bits, f.v)
		total += f.bits
	}
	assert.Equal(t, (total+7)/8, len(arr.Bytes))

	r := NewReader(&arr)
	for i, f := range fields {
		assert.Equal(t, f.v, r.View(f.bits), "view %d", i)
		assert.Equal(t, f.v, r.Read(f.bits), "field %d", i)
	}
	assert.Less(t, r.NonReadBits(), 8)
	assert.Zero(t, r.Read(r.NonReadBits()), "padding must be zero")
}

func TestWriteRead(t *testing.T) {
	roundTrip(t, []field{{1, 1}, {3, 5}, {4, 0xf}})
	roundTrip(t, []field{{3, 7}, {7, 0x55}, {2, 2}, {8, 0xff}})
	roundTrip(t, []field{{1, 0}})
	roundTrip(t, nil)
}

func TestRandomFields(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		fields := make([]field, r.Intn(40))
		for j := range fields {
			bits := 1 + r.Intn(8)
			fields[j] = field{bits: bits, v: uint(r.Intn(1 << bits))}
		}
		roundTrip(t, fields)
	}
}

func TestReadZeroBits(t *testing.T) {
	r := NewReader(&Array{})
	require.Zero(t, r.Read(0))
	require.Zero(t, r.NonReadBits())
}
