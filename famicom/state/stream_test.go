package state

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	a   uint8
	b   uint16
	c   uint32
	d   uint64
	e   int32
	f   bool
	g   int
	ram []byte
	pal []uint16
}

func (x *sample) StreamState(s *Stream) {
	s.Uint8(&x.a)
	s.Uint16(&x.b)
	s.Uint32(&x.c)
	s.Uint64(&x.d)
	s.Int32(&x.e)
	s.Bool(&x.f)
	s.Int(&x.g)
	s.Bytes(x.ram)
	s.Uint16s(x.pal)
}

func newSample() *sample {
	return &sample{ram: make([]byte, 16), pal: make([]uint16, 4)}
}

func TestBlockRoundTrip(t *testing.T) {
	in := newSample()
	in.a, in.b, in.c, in.d, in.e, in.f, in.g = 0x12, 0x3456, 0x789ABCDE, 0x0102030405060708, -5, true, -1
	for i := range in.ram {
		in.ram[i] = uint8(i * 3)
	}
	in.pal[2] = 0x3F

	var buf bytes.Buffer
	require.NoError(t, WriteBlock(&buf, in))
	require.NoError(t, WriteEmptyBlock(&buf))
	require.NoError(t, WriteBlock(&buf, in))

	out := newSample()
	require.NoError(t, ReadBlock(&buf, out))
	assert.Equal(t, in, out)

	require.NoError(t, SkipBlock(&buf))

	again := newSample()
	require.NoError(t, ReadBlock(&buf, again))
	assert.Equal(t, in, again)
}

type shortComponent struct{ v uint8 }

func (x *shortComponent) StreamState(s *Stream) { s.Uint8(&x.v) }

func TestReadBlockErrors(t *testing.T) {
	t.Run("trailing bytes", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteBlock(&buf, newSample()))

		err := ReadBlock(&buf, &shortComponent{})
		assert.True(t, errors.Is(err, ErrCorruptBlock))
	})

	t.Run("short block", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteBlock(&buf, &shortComponent{v: 1}))

		err := ReadBlock(&buf, newSample())
		assert.True(t, errors.Is(err, ErrCorruptBlock))
	})

	t.Run("array size mismatch", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteBlock(&buf, newSample()))

		bigger := newSample()
		bigger.ram = make([]byte, 32)
		err := ReadBlock(&buf, bigger)
		assert.True(t, errors.Is(err, ErrCorruptBlock))
	})

	t.Run("truncated stream", func(t *testing.T) {
		err := ReadBlock(bytes.NewReader([]byte{0x10, 0, 0}), newSample())
		assert.True(t, errors.Is(err, ErrCorruptBlock))
	})
}
