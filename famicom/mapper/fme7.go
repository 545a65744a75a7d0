package mapper

import (
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/state"
)

// fme7 is the Sunsoft FME-7: a command register at $8000 and a parameter
// register at $A000 give access to eight 1KB CHR banks, four 8KB PRG banks
// (the one at $6000 can be ROM or RAM), mirroring and a 16-bit IRQ counter
// decremented every CPU cycle. The 5B audio registers at $C000-$FFFF are
// not emulated.
type fme7 struct {
	m *Mapper

	command      uint8
	workRAMValue uint8

	irqEnabled        bool
	irqCounterEnabled bool
	irqCounter        uint16
}

func (b *fme7) PRGPageSize() uint16 { return 0x2000 }
func (b *fme7) CHRPageSize() uint16 { return 0x0400 }
func (b *fme7) WorkRAMSize() int    { return 0x8000 }

func (b *fme7) Init(m *Mapper) {
	b.m = m
	m.SelectPRGPage(3, -1, PRGROM)
	b.updateWorkRAM()
}

func (b *fme7) updateWorkRAM() {
	page := int(b.workRAMValue & 0x3F)
	if b.workRAMValue&0x40 == 0 {
		b.m.SetCPUMemoryMapping(0x6000, 0x7FFF, page, PRGROM, Read)
		return
	}
	access := NoAccess
	if b.workRAMValue&0x80 != 0 {
		access = ReadWrite
	}
	ramType := WorkRAM
	if len(b.m.saveRAM) > 0 {
		ramType = SaveRAM
	}
	b.m.SetCPUMemoryMapping(0x6000, 0x7FFF, page, ramType, access)
}

func (b *fme7) WriteRegister(address uint16, value uint8) {
	switch address & 0xE000 {
	case 0x8000:
		b.command = value & 0x0F
	case 0xA000:
		b.writeParameter(value)
	}
}

func (b *fme7) writeParameter(value uint8) {
	switch b.command {
	case 0, 1, 2, 3, 4, 5, 6, 7:
		b.m.SelectCHRPage(uint16(b.command), int(value), CHRDefault)
	case 8:
		b.workRAMValue = value
		b.updateWorkRAM()
	case 9, 0x0A, 0x0B:
		b.m.SelectPRGPage(uint16(b.command-9), int(value&0x3F), PRGROM)
	case 0x0C:
		switch value & 0x03 {
		case 0:
			b.m.SetMirroringType(rom.Vertical)
		case 1:
			b.m.SetMirroringType(rom.Horizontal)
		case 2:
			b.m.SetMirroringType(rom.ScreenAOnly)
		case 3:
			b.m.SetMirroringType(rom.ScreenBOnly)
		}
	case 0x0D:
		b.irqEnabled = value&0x01 != 0
		b.irqCounterEnabled = value&0x80 != 0
		b.m.Host().ClearIRQSource(cpu.IRQExternal)
	case 0x0E:
		b.irqCounter = b.irqCounter&0xFF00 | uint16(value)
	case 0x0F:
		b.irqCounter = b.irqCounter&0x00FF | uint16(value)<<8
	}
}

func (b *fme7) ProcessCPUClock() {
	if !b.irqCounterEnabled {
		return
	}
	b.irqCounter--
	if b.irqCounter == 0xFFFF && b.irqEnabled {
		b.m.Host().SetIRQSource(cpu.IRQExternal)
	}
}

func (b *fme7) StreamState(s *state.Stream) {
	s.Uint8(&b.command)
	s.Uint8(&b.workRAMValue)
	s.Bool(&b.irqEnabled)
	s.Bool(&b.irqCounterEnabled)
	s.Uint16(&b.irqCounter)
}
