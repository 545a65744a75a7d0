package mapper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valerio/go-famicom/famicom/battery"
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/state"
)

type fakeHost struct {
	cycle      int64
	frameCycle uint32
	irq        cpu.IRQSource
	openBus    uint8
}

func (h *fakeHost) CPUCycleCount() int64                { return h.cycle }
func (h *fakeHost) PPUFrameCycle() uint32               { return h.frameCycle }
func (h *fakeHost) SetIRQSource(source cpu.IRQSource)   { h.irq |= source }
func (h *fakeHost) ClearIRQSource(source cpu.IRQSource) { h.irq &^= source }
func (h *fakeHost) OpenBus(mask uint8) uint8            { return h.openBus & mask }
func (h *fakeHost) InitializeRAM(data []byte)           { clear(data) }

// banked fills each 8KB of PRG with its bank number and each 1KB of CHR
// with its bank number.
func banked(info rom.Info, prgSize, chrSize int) *rom.Data {
	prg := make([]byte, prgSize)
	for i := range prg {
		prg[i] = uint8(i / 0x2000)
	}
	chr := make([]byte, chrSize)
	for i := range chr {
		chr[i] = uint8(i / 0x400)
	}
	return rom.New(info, prg, chr)
}

func newMapper(t *testing.T, data *rom.Data) (*Mapper, *fakeHost) {
	t.Helper()
	host := &fakeHost{}
	m, err := New(data, host)
	require.NoError(t, err)
	m.Reset(false)
	return m, host
}

func TestWrapPage(t *testing.T) {
	tests := []struct {
		page, count, want int
	}{
		{0, 4, 0},
		{5, 4, 1},
		{-1, 4, 3},
		{-2, 4, 2},
		{-4, 4, 0},
		{-5, 4, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, wrapPage(tt.page, tt.count), "page %d of %d", tt.page, tt.count)
	}
}

func TestUnsupportedMapper(t *testing.T) {
	_, err := New(banked(rom.Info{MapperID: 5}, 0x8000, 0x2000), &fakeHost{})
	assert.ErrorIs(t, err, ErrUnsupportedMapper)
	assert.False(t, Supported(5))
	assert.True(t, Supported(4))
}

func TestNROM(t *testing.T) {
	t.Run("16KB is mirrored", func(t *testing.T) {
		m, _ := newMapper(t, banked(rom.Info{}, 0x4000, 0x2000))
		assert.Equal(t, uint8(0), m.ReadRAM(0x8000))
		assert.Equal(t, uint8(1), m.ReadRAM(0xA000))
		assert.Equal(t, uint8(0), m.ReadRAM(0xC000))
		assert.Equal(t, uint8(1), m.ReadRAM(0xFFFF))
	})

	t.Run("32KB", func(t *testing.T) {
		m, _ := newMapper(t, banked(rom.Info{}, 0x8000, 0x2000))
		assert.Equal(t, uint8(2), m.ReadRAM(0xC000))
		assert.Equal(t, uint8(3), m.ReadRAM(0xFFFF))
		assert.Equal(t, uint8(7), m.ReadVRAM(0x1C00))
	})

	t.Run("work RAM", func(t *testing.T) {
		m, _ := newMapper(t, banked(rom.Info{}, 0x8000, 0x2000))
		m.WriteRAM(0x6123, 0x42)
		assert.Equal(t, uint8(0x42), m.ReadRAM(0x6123))
	})

	t.Run("ROM ignores writes", func(t *testing.T) {
		m, _ := newMapper(t, banked(rom.Info{}, 0x8000, 0x2000))
		m.WriteRAM(0x8000, 0x42)
		assert.Equal(t, uint8(0), m.ReadRAM(0x8000))
	})

	t.Run("CHR RAM", func(t *testing.T) {
		m, _ := newMapper(t, banked(rom.Info{}, 0x8000, 0))
		m.WriteVRAM(0x0010, 0x99)
		assert.Equal(t, uint8(0x99), m.ReadVRAM(0x0010))
	})
}

func TestMirroring(t *testing.T) {
	tests := []struct {
		mirroring rom.Mirroring
		same      [2]uint16
		different [2]uint16
	}{
		{rom.Vertical, [2]uint16{0x2000, 0x2800}, [2]uint16{0x2000, 0x2400}},
		{rom.Horizontal, [2]uint16{0x2000, 0x2400}, [2]uint16{0x2000, 0x2800}},
		{rom.FourScreens, [2]uint16{0x2000, 0x3000}, [2]uint16{0x2000, 0x2C00}},
	}
	for _, tt := range tests {
		t.Run(tt.mirroring.String(), func(t *testing.T) {
			m, _ := newMapper(t, banked(rom.Info{Mirroring: tt.mirroring}, 0x8000, 0x2000))
			m.WriteVRAM(tt.same[0], 0x11)
			assert.Equal(t, uint8(0x11), m.ReadVRAM(tt.same[1]))
			m.WriteVRAM(tt.different[1], 0x22)
			assert.Equal(t, uint8(0x11), m.ReadVRAM(tt.different[0]))
		})
	}
}

func TestLastPageSelection(t *testing.T) {
	m, _ := newMapper(t, banked(rom.Info{MapperID: 2}, 0x20000, 0))

	// $C000 holds the last 16KB page: 8KB banks 14 and 15
	assert.Equal(t, uint8(14), m.ReadRAM(0xC000))
	assert.Equal(t, uint8(15), m.ReadRAM(0xE000))

	m.WriteRAM(0x8000, 3)
	assert.Equal(t, uint8(6), m.ReadRAM(0x8000))
	assert.Equal(t, uint8(14), m.ReadRAM(0xC000))

	// out of range pages wrap
	m.WriteRAM(0x8000, 9)
	assert.Equal(t, uint8(2), m.ReadRAM(0x8000))
}

func TestAbsoluteAddressRoundTrip(t *testing.T) {
	m, _ := newMapper(t, banked(rom.Info{MapperID: 2}, 0x20000, 0))
	m.WriteRAM(0x8000, 2)

	for a := 0x8000; a <= 0xFFFF; a++ {
		abs := m.ToAbsoluteAddress(uint16(a))
		require.GreaterOrEqual(t, abs, int32(0))
		require.Equal(t, int32(a), m.FromAbsoluteAddress(uint32(abs), AddressPRGROM), "address $%04X", a)
	}
	assert.Equal(t, int32(2*0x4000), m.ToAbsoluteAddress(0x8000))

	info := m.AbsoluteAddressAndType(0x6010)
	assert.Equal(t, AddressWorkRAM, info.Type)
	assert.Equal(t, int32(0x10), info.Address)
	assert.Equal(t, int32(0x6010), m.FromAbsoluteAddress(0x10, AddressWorkRAM))

	info = m.AbsoluteAddressAndType(0x0801)
	assert.Equal(t, AddressInternalRAM, info.Type)
	assert.Equal(t, int32(1), info.Address)

	assert.Equal(t, int32(-1), m.AbsoluteAddressAndType(0x5000).Address)
	assert.Equal(t, int32(-1), m.FromAbsoluteAddress(0, AddressPRGROM), "bank 0 is not mapped")
}

func TestBusConflicts(t *testing.T) {
	m, _ := newMapper(t, banked(rom.Info{MapperID: 66}, 0x10000, 0x8000))
	require.True(t, m.HasBusConflicts())

	// $FFFF reads 3, so only the CHR bits survive
	m.WriteRAM(0xFFFF, 0x13)
	assert.Equal(t, uint8(0), m.ReadRAM(0x8000))
	assert.Equal(t, uint8(24), m.ReadVRAM(0x0000))

	t.Run("header override", func(t *testing.T) {
		m, _ := newMapper(t, banked(rom.Info{MapperID: 66, BusConflicts: rom.BusConflictsNo}, 0x10000, 0x8000))
		m.WriteRAM(0xFFFF, 0x13)
		assert.Equal(t, uint8(4), m.ReadRAM(0x8000))
	})

	t.Run("uxrom submapper 2", func(t *testing.T) {
		m, _ := newMapper(t, banked(rom.Info{MapperID: 2, SubMapperID: 2}, 0x20000, 0))
		assert.True(t, m.HasBusConflicts())
	})
}

func TestCNROM(t *testing.T) {
	m, _ := newMapper(t, banked(rom.Info{MapperID: 3}, 0x4000, 0x8000))
	m.WriteRAM(0x8000, 2)
	assert.Equal(t, uint8(16), m.ReadVRAM(0x0000))
	assert.Equal(t, uint8(1), m.ReadRAM(0xE000))
}

func TestAxROM(t *testing.T) {
	m, _ := newMapper(t, banked(rom.Info{MapperID: 7}, 0x20000, 0))
	assert.Equal(t, rom.ScreenAOnly, m.Mirroring())

	m.WriteRAM(0x8000, 0x12)
	assert.Equal(t, uint8(8), m.ReadRAM(0x8000))
	assert.Equal(t, rom.ScreenBOnly, m.Mirroring())
}

func TestMapper81(t *testing.T) {
	m, _ := newMapper(t, banked(rom.Info{MapperID: 81}, 0x10000, 0x8000))
	assert.Equal(t, uint8(6), m.ReadRAM(0xC000))

	m.WriteRAM(0x8000|2<<2|1, 0)
	assert.Equal(t, uint8(4), m.ReadRAM(0x8000))
	assert.Equal(t, uint8(8), m.ReadVRAM(0x0000))
}

// writeMMC1 shifts value into the register at address, one bit per write.
func writeMMC1(m *Mapper, host *fakeHost, address uint16, value uint8) {
	for i := 0; i < 5; i++ {
		host.cycle += 2
		m.WriteRAM(address, value>>i&0x01)
	}
}

func TestMMC1(t *testing.T) {
	m, host := newMapper(t, banked(rom.Info{MapperID: 1}, 0x20000, 0x20000))

	assert.Equal(t, uint8(0), m.ReadRAM(0x8000))
	assert.Equal(t, uint8(14), m.ReadRAM(0xC000), "last bank fixed at $C000")

	writeMMC1(m, host, 0xE000, 3)
	assert.Equal(t, uint8(6), m.ReadRAM(0x8000))

	t.Run("32KB mode", func(t *testing.T) {
		writeMMC1(m, host, 0x8000, 0x02)
		assert.Equal(t, rom.Vertical, m.Mirroring())
		assert.Equal(t, uint8(4), m.ReadRAM(0x8000))
		assert.Equal(t, uint8(6), m.ReadRAM(0xC000))
	})

	t.Run("4KB CHR", func(t *testing.T) {
		writeMMC1(m, host, 0x8000, 0x13)
		writeMMC1(m, host, 0xA000, 5)
		writeMMC1(m, host, 0xC000, 9)
		assert.Equal(t, rom.Horizontal, m.Mirroring())
		assert.Equal(t, uint8(20), m.ReadVRAM(0x0000))
		assert.Equal(t, uint8(36), m.ReadVRAM(0x1000))
	})

	t.Run("consecutive cycle writes are ignored", func(t *testing.T) {
		b := m.board.(*mmc1)
		host.cycle = 100
		m.WriteRAM(0xE000, 1)
		host.cycle = 101
		m.WriteRAM(0xE000, 1)
		assert.Equal(t, uint8(1), b.shiftCount)

		host.cycle = 102
		m.WriteRAM(0xE000, 0x80)
		assert.Equal(t, uint8(0), b.shiftCount, "reset bit always goes through")
	})

	t.Run("work RAM disable", func(t *testing.T) {
		m.WriteRAM(0x6000, 0x55)
		assert.Equal(t, uint8(0x55), m.ReadRAM(0x6000))
		writeMMC1(m, host, 0xE000, 0x10)
		host.openBus = 0x60
		assert.Equal(t, uint8(0x60), m.ReadRAM(0x6000))
	})
}

// clockScanline produces one filtered A12 rise, as the sprite fetches of a
// scanline would.
func clockScanline(m *Mapper, host *fakeHost, line uint32) {
	host.frameCycle = line * 341
	m.NotifyVRAMAddressChange(0x0000)
	host.frameCycle += 12
	m.NotifyVRAMAddressChange(0x1000)
}

func TestMMC3Banking(t *testing.T) {
	m, _ := newMapper(t, banked(rom.Info{MapperID: 4}, 0x20000, 0x20000))

	assert.Equal(t, uint8(0), m.ReadRAM(0x8000))
	assert.Equal(t, uint8(1), m.ReadRAM(0xA000))
	assert.Equal(t, uint8(14), m.ReadRAM(0xC000))
	assert.Equal(t, uint8(15), m.ReadRAM(0xE000))

	m.WriteRAM(0x8000, 0x46)
	m.WriteRAM(0x8001, 5)
	assert.Equal(t, uint8(14), m.ReadRAM(0x8000))
	assert.Equal(t, uint8(5), m.ReadRAM(0xC000))

	// R0 is a 2KB bank, the low bit is dropped
	m.WriteRAM(0x8000, 0x00)
	m.WriteRAM(0x8001, 9)
	assert.Equal(t, uint8(8), m.ReadVRAM(0x0000))
	assert.Equal(t, uint8(9), m.ReadVRAM(0x0400))

	m.WriteRAM(0x8000, 0x80)
	assert.Equal(t, uint8(8), m.ReadVRAM(0x1000), "CHR inversion")

	m.WriteRAM(0xA000, 0)
	assert.Equal(t, rom.Vertical, m.Mirroring())
	m.WriteRAM(0xA000, 1)
	assert.Equal(t, rom.Horizontal, m.Mirroring())
}

func TestMMC3WorkRAMProtect(t *testing.T) {
	m, host := newMapper(t, banked(rom.Info{MapperID: 4}, 0x20000, 0x20000))
	host.openBus = 0x60

	m.WriteRAM(0x6000, 0x12)
	assert.Equal(t, uint8(0x60), m.ReadRAM(0x6000), "disabled at power on")

	m.WriteRAM(0xA001, 0x80)
	m.WriteRAM(0x6000, 0x12)
	assert.Equal(t, uint8(0x12), m.ReadRAM(0x6000))

	m.WriteRAM(0xA001, 0xC0)
	m.WriteRAM(0x6000, 0x34)
	assert.Equal(t, uint8(0x12), m.ReadRAM(0x6000))
}

func TestMMC3IRQ(t *testing.T) {
	m, host := newMapper(t, banked(rom.Info{MapperID: 4}, 0x20000, 0x20000))

	m.WriteRAM(0xC000, 2)
	m.WriteRAM(0xC001, 0)
	m.WriteRAM(0xE001, 0)

	clockScanline(m, host, 0)
	clockScanline(m, host, 1)
	assert.Zero(t, host.irq)

	clockScanline(m, host, 2)
	assert.Equal(t, cpu.IRQExternal, host.irq)

	m.WriteRAM(0xE000, 0)
	assert.Zero(t, host.irq, "disabling acknowledges")

	t.Run("close edges are filtered", func(t *testing.T) {
		b := m.board.(*mmc3)
		host.frameCycle = 5000
		m.NotifyVRAMAddressChange(0x1000)
		before := b.irqCounter

		host.frameCycle++
		m.NotifyVRAMAddressChange(0x0000)
		host.frameCycle += 3
		m.NotifyVRAMAddressChange(0x1000)
		assert.Equal(t, before, b.irqCounter)
	})

	t.Run("frame wrap", func(t *testing.T) {
		b := m.board.(*mmc3)
		host.frameCycle = cyclesPerFrame - 10
		m.NotifyVRAMAddressChange(0x1000)
		host.frameCycle++
		m.NotifyVRAMAddressChange(0x0000)
		before := b.irqCounter

		// 12 cycles low across the frame boundary
		host.frameCycle = 3
		m.NotifyVRAMAddressChange(0x1000)
		assert.NotEqual(t, before, b.irqCounter)
	})
}

func TestMMC3RevAIRQ(t *testing.T) {
	m, host := newMapper(t, banked(rom.Info{MapperID: 4, SubMapperID: 4}, 0x20000, 0x20000))

	// reload value 0: the new counter fires on every clock, rev A only on
	// the reload
	m.WriteRAM(0xC000, 0)
	m.WriteRAM(0xC001, 0)
	m.WriteRAM(0xE001, 0)

	clockScanline(m, host, 0)
	assert.Equal(t, cpu.IRQExternal, host.irq)

	host.irq = 0
	clockScanline(m, host, 1)
	assert.Zero(t, host.irq)
}

func TestFME7(t *testing.T) {
	m, host := newMapper(t, banked(rom.Info{MapperID: 69}, 0x20000, 0x20000))

	assert.Equal(t, uint8(15), m.ReadRAM(0xE000))

	write := func(command, value uint8) {
		m.WriteRAM(0x8000, command)
		m.WriteRAM(0xA000, value)
	}

	t.Run("banking", func(t *testing.T) {
		write(0x09, 3)
		write(0x0B, 7)
		write(0x05, 12)
		assert.Equal(t, uint8(3), m.ReadRAM(0x8000))
		assert.Equal(t, uint8(7), m.ReadRAM(0xC000))
		assert.Equal(t, uint8(12), m.ReadVRAM(0x1400))

		write(0x08, 2)
		assert.Equal(t, uint8(2), m.ReadRAM(0x6000), "ROM at $6000")

		write(0x08, 0xC0)
		m.WriteRAM(0x6000, 0xAB)
		assert.Equal(t, uint8(0xAB), m.ReadRAM(0x6000))

		write(0x0C, 3)
		assert.Equal(t, rom.ScreenBOnly, m.Mirroring())
	})

	t.Run("irq counter", func(t *testing.T) {
		write(0x0E, 2)
		write(0x0F, 0)
		write(0x0D, 0x81)

		m.ProcessCPUClock()
		m.ProcessCPUClock()
		assert.Zero(t, host.irq)

		m.ProcessCPUClock()
		assert.Equal(t, cpu.IRQExternal, host.irq)

		write(0x0D, 0x00)
		assert.Zero(t, host.irq)
		m.ProcessCPUClock()
		assert.Equal(t, uint16(0xFFFF), m.board.(*fme7).irqCounter)
	})
}

func TestResetNromX1n1(t *testing.T) {
	m, _ := newMapper(t, banked(rom.Info{MapperID: 343}, 0x10000, 0x8000))
	assert.Equal(t, uint8(0), m.ReadRAM(0xC000))

	m.WriteRAM(0x8000, 0xFE)
	assert.Equal(t, uint8(2), m.ReadRAM(0x8000))
	assert.Equal(t, uint8(2), m.ReadRAM(0xC000))
	assert.Equal(t, uint8(8), m.ReadVRAM(0x0000))
	assert.Equal(t, rom.Horizontal, m.Mirroring())

	m.Reset(true)
	assert.Equal(t, uint8(2), m.ReadRAM(0x8000), "game survives a soft reset")

	m.Reset(false)
	assert.Equal(t, uint8(0), m.ReadRAM(0x8000))

	m.WriteRAM(0x8000, 0x7F)
	assert.Equal(t, rom.Vertical, m.Mirroring())

	t.Run("submapper 1", func(t *testing.T) {
		m, _ := newMapper(t, banked(rom.Info{MapperID: 343, SubMapperID: 1}, 0x10000, 0x8000))
		m.WriteRAM(0x8000, 0xFE)
		assert.Equal(t, uint8(4), m.ReadRAM(0x8000))
		assert.Equal(t, uint8(6), m.ReadRAM(0xC000))
	})
}

func TestBattery(t *testing.T) {
	data := banked(rom.Info{Name: "zelda", MapperID: 1, HasBattery: true}, 0x20000, 0)
	store := battery.MemoryStore{}

	m, _ := newMapper(t, data)
	m.WriteRAM(0x6000, 0x77)
	require.NoError(t, m.SaveBattery(store))
	assert.Len(t, store["zelda"], 0x2000)

	m2, _ := newMapper(t, data)
	require.NoError(t, m2.LoadBattery(store))
	assert.Equal(t, uint8(0x77), m2.ReadRAM(0x6000))
	assert.Equal(t, AddressSaveRAM, m2.AbsoluteAddressAndType(0x6000).Type)
}

func TestStreamState(t *testing.T) {
	data := banked(rom.Info{MapperID: 4}, 0x20000, 0x20000)
	m, host := newMapper(t, data)

	m.WriteRAM(0x8000, 0x46)
	m.WriteRAM(0x8001, 5)
	m.WriteRAM(0xA000, 1)
	m.WriteRAM(0xA001, 0x80)
	m.WriteRAM(0x6000, 0x99)
	m.WriteRAM(0xC000, 7)
	m.WriteVRAM(0x2001, 0x31)
	clockScanline(m, host, 0)

	w := state.NewWriter()
	m.StreamState(w)

	restored, _ := newMapper(t, data)
	r := state.NewReader(w.Data())
	restored.StreamState(r)
	require.NoError(t, r.Err())
	assert.Zero(t, r.Remaining())

	for _, a := range []uint16{0x6000, 0x8000, 0xA000, 0xC000, 0xE000} {
		assert.Equal(t, m.ReadRAM(a), restored.ReadRAM(a), "address $%04X", a)
	}
	assert.Equal(t, uint8(0x31), restored.ReadVRAM(0x2001))
	assert.Equal(t, rom.Horizontal, restored.Mirroring())
	assert.Equal(t, m.board.(*mmc3).irqCounter, restored.board.(*mmc3).irqCounter)
}
