package memory

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	ranges   func(r *Ranges)
	data     map[uint16]uint8
	reads    int
	override bool
}

func newFakeDevice(op Operation, start, end uint16) *fakeDevice {
	return &fakeDevice{
		ranges: func(r *Ranges) { r.AddHandler(op, start, end) },
		data:   map[uint16]uint8{},
	}
}

func (f *fakeDevice) MemoryRanges(r *Ranges) {
	f.ranges(r)
	if f.override {
		r.SetAllowOverride()
	}
}
func (f *fakeDevice) ReadRAM(a uint16) uint8 {
	f.reads++
	return f.data[a]
}
func (f *fakeDevice) PeekRAM(a uint16) uint8     { return f.data[a] }
func (f *fakeDevice) WriteRAM(a uint16, v uint8) { f.data[a] = v }

type fillOnes struct{}

func (fillOnes) InitializeRAM(data []byte) {
	for i := range data {
		data[i] = 0xFF
	}
}

func TestInternalRAMMirroring(t *testing.T) {
	m := New(nil)

	m.Write(0x0001, 0x42, Write)
	assert.Equal(t, uint8(0x42), m.Read(0x0801, Read))
	assert.Equal(t, uint8(0x42), m.Read(0x1001, Read))
	assert.Equal(t, uint8(0x42), m.Read(0x1801, Read))
}

func TestOpenBus(t *testing.T) {
	m := New(nil)

	m.Write(0x0010, 0x5A, Write)
	m.Read(0x0010, Read)
	assert.Equal(t, uint8(0x5A), m.Read(0x4000, Read), "unclaimed reads return the last bus value")
	assert.Equal(t, uint8(0x40), m.OpenBus(0xE0))

	m.Write(0x0000, 0x13, Write)
	assert.Equal(t, uint8(0x13), m.Read(0x5000, Read), "writes drive the bus too")
	assert.Equal(t, uint8(0x50), m.DebugRead(0x5000, true))
}

func TestRegisterDevice(t *testing.T) {
	t.Run("routes claimed ranges", func(t *testing.T) {
		m := New(nil)
		d := newFakeDevice(OpAny, 0x6000, 0x7FFF)
		require.NoError(t, m.RegisterDevice(d))

		m.Write(0x6123, 0x99, Write)
		assert.Equal(t, uint8(0x99), d.data[0x6123])
		assert.Equal(t, uint8(0x99), m.Read(0x6123, Read))
	})

	t.Run("read and write sides are independent", func(t *testing.T) {
		m := New(nil)
		reader := newFakeDevice(OpRead, 0x4015, 0x4015)
		writer := newFakeDevice(OpWrite, 0x4015, 0x4015)
		require.NoError(t, m.RegisterDevice(reader))
		require.NoError(t, m.RegisterDevice(writer))

		reader.data[0x4015] = 0x1F
		m.Write(0x4015, 0x0F, Write)
		assert.Equal(t, uint8(0x0F), writer.data[0x4015])
		assert.Equal(t, uint8(0x1F), m.Read(0x4015, Read))
	})

	t.Run("conflicting claims fail", func(t *testing.T) {
		m := New(nil)
		require.NoError(t, m.RegisterDevice(newFakeDevice(OpAny, 0x8000, 0xFFFF)))

		err := m.RegisterDevice(newFakeDevice(OpWrite, 0xC000, 0xC000))
		assert.True(t, errors.Is(err, ErrRangeConflict))

		err = m.RegisterDevice(newFakeDevice(OpRead, 0x0000, 0x0000))
		assert.True(t, errors.Is(err, ErrRangeConflict), "internal RAM is owned")
	})

	t.Run("rejected device claims nothing", func(t *testing.T) {
		m := New(nil)
		require.NoError(t, m.RegisterDevice(newFakeDevice(OpWrite, 0x6001, 0x6001)))

		d := newFakeDevice(OpAny, 0x6000, 0x6001)
		d.data[0x6000] = 0xAB
		require.ErrorIs(t, m.RegisterDevice(d), ErrRangeConflict)

		m.Write(0x0000, 0x31, Write)
		assert.Equal(t, uint8(0x31), m.Read(0x6000, Read), "read side stays open bus")
		assert.Zero(t, d.reads)
	})

	t.Run("override replaces owner", func(t *testing.T) {
		m := New(nil)
		require.NoError(t, m.RegisterDevice(newFakeDevice(OpAny, 0x8000, 0xFFFF)))
		d := newFakeDevice(OpAny, 0x8000, 0x8000)
		d.override = true
		require.NoError(t, m.RegisterDevice(d))

		m.Write(0x8000, 7, Write)
		assert.Equal(t, uint8(7), d.data[0x8000])
	})

	t.Run("unregister returns to open bus", func(t *testing.T) {
		m := New(nil)
		d := newFakeDevice(OpAny, 0x6000, 0x6000)
		require.NoError(t, m.RegisterDevice(d))
		m.UnregisterDevice(d)

		m.Write(0x0000, 0x77, Write)
		assert.Equal(t, uint8(0x77), m.Read(0x6000, Read))
		assert.Equal(t, 0, d.reads)
	})
}

func TestDebugRead(t *testing.T) {
	m := New(nil)
	d := newFakeDevice(OpRead, 0x4016, 0x4016)
	require.NoError(t, m.RegisterDevice(d))

	m.DebugRead(0x4016, true)
	assert.Equal(t, 0, d.reads, "peek must not have side effects")

	m.DebugRead(0x4016, false)
	assert.Equal(t, 1, d.reads)
}

func TestObserver(t *testing.T) {
	m := New(nil)
	var seen []OperationType
	m.SetObserver(func(address uint16, value uint8, op OperationType) {
		seen = append(seen, op)
	})

	m.Read(0x0000, ExecOpCode)
	m.Read(0x0001, DummyRead)
	m.Write(0x0002, 1, DummyWrite)
	assert.Equal(t, []OperationType{ExecOpCode, DummyRead, DummyWrite}, seen)
}

type countingCart struct {
	resets []bool
}

func (c *countingCart) Reset(soft bool) { c.resets = append(c.resets, soft) }

func TestReset(t *testing.T) {
	m := New(fillOnes{})
	cart := &countingCart{}
	m.SetCartridge(cart)

	m.Reset(false)
	assert.Equal(t, uint8(0xFF), m.InternalRAM()[0x123])

	m.Write(0x0123, 0x00, Write)
	m.Reset(true)
	assert.Equal(t, uint8(0x00), m.InternalRAM()[0x123], "soft reset keeps RAM")
	assert.Equal(t, []bool{false, true}, cart.resets)
}

type xorPatcher struct{ address uint16 }

func (p xorPatcher) Patch(address uint16, value uint8) uint8 {
	if address == p.address {
		return value ^ 0xFF
	}
	return value
}

func TestPatcher(t *testing.T) {
	m := New(nil)
	d := newFakeDevice(OpAny, 0x8000, 0x8001)
	require.NoError(t, m.RegisterDevice(d))
	d.data[0x8000], d.data[0x8001] = 0x0F, 0x0F

	var seen []uint8
	m.SetObserver(func(_ uint16, value uint8, _ OperationType) { seen = append(seen, value) })
	m.SetPatcher(xorPatcher{address: 0x8000})

	assert.Equal(t, uint8(0xF0), m.Read(0x8000, Read))
	assert.Equal(t, uint8(0xF0), m.OpenBus(0xFF), "open bus holds the patched value")
	assert.Equal(t, uint8(0x0F), m.Read(0x8001, Read))
	assert.Equal(t, []uint8{0xF0, 0x0F}, seen)
	assert.Equal(t, uint8(0x0F), m.DebugRead(0x8000, true), "debug reads see the ROM")

	m.SetPatcher(nil)
	assert.Equal(t, uint8(0x0F), m.Read(0x8000, Read))
}
