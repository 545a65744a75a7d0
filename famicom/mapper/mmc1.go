package mapper

import (
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/state"
)

// mmc1 (SxROM) is written one bit at a time through a 5-bit shift register.
// Features include:
//   - 16KB or 32KB PRG switching, with either $8000 or $C000 fixed
//   - 4KB or 8KB CHR switching
//   - software controlled mirroring
//   - up to 32KB of work RAM on SXROM, banked through the CHR registers
//
// Writes on consecutive CPU cycles (the dummy write of a read-modify-write
// instruction) are ignored after the first one, unless they reset the
// shift register.
type mmc1 struct {
	m *Mapper

	writeBuffer uint8
	shiftCount  uint8
	lastWrite   int64

	reg8000 uint8
	regA000 uint8
	regC000 uint8
	regE000 uint8
	// lastCHRReg selects which CHR register carries the 512KB PRG bit.
	lastCHRReg uint16
}

func (b *mmc1) PRGPageSize() uint16 { return 0x4000 }
func (b *mmc1) CHRPageSize() uint16 { return 0x1000 }

func (b *mmc1) Init(m *Mapper) {
	b.m = m
	b.reg8000 = 0x0C
	b.lastCHRReg = 0xA000
	b.lastWrite = -10
	b.update()
}

func (b *mmc1) resetBuffer() {
	b.shiftCount = 0
	b.writeBuffer = 0
}

// shift feeds one bit in and reports whether the register is complete.
func (b *mmc1) shift(value uint8) bool {
	if value&0x80 != 0 {
		b.resetBuffer()
		b.reg8000 |= 0x0C
		b.update()
		return false
	}
	b.writeBuffer >>= 1
	b.writeBuffer |= (value << 4) & 0x10
	b.shiftCount++
	return b.shiftCount == 5
}

func (b *mmc1) WriteRegister(address uint16, value uint8) {
	cycle := b.m.Host().CPUCycleCount()
	delta := cycle - b.lastWrite
	if delta < 0 {
		delta = -delta
	}
	if delta >= 2 || value&0x80 != 0 {
		if b.shift(value) {
			switch (address & 0x6000) >> 13 {
			case 0:
				b.reg8000 = b.writeBuffer
			case 1:
				b.regA000 = b.writeBuffer
				b.lastCHRReg = 0xA000
			case 2:
				b.regC000 = b.writeBuffer
				b.lastCHRReg = 0xC000
			case 3:
				b.regE000 = b.writeBuffer
			}
			b.update()
			b.resetBuffer()
		}
	}
	b.lastWrite = cycle
}

func (b *mmc1) update() {
	switch b.reg8000 & 0x03 {
	case 0:
		b.m.SetMirroringType(rom.ScreenAOnly)
	case 1:
		b.m.SetMirroringType(rom.ScreenBOnly)
	case 2:
		b.m.SetMirroringType(rom.Vertical)
	case 3:
		b.m.SetMirroringType(rom.Horizontal)
	}

	wramDisabled := b.regE000&0x10 != 0
	fixLast := b.reg8000&0x04 != 0
	prg16k := b.reg8000&0x08 != 0
	chr4k := b.reg8000&0x10 != 0

	chr0 := int(b.regA000 & 0x1F)
	chr1 := int(b.regC000 & 0x1F)
	prg := int(b.regE000 & 0x0F)

	extra := chr0
	if b.lastCHRReg == 0xC000 && chr4k {
		extra = chr1
	}

	prgBankSelect := 0
	if len(b.m.prgROM) == 0x80000 {
		prgBankSelect = extra & 0x10
	}

	access := ReadWrite
	if wramDisabled {
		access = NoAccess
	}
	ramType := WorkRAM
	if len(b.m.saveRAM) > 0 {
		ramType = SaveRAM
	}
	switch ramSize := len(b.m.workRAM) + len(b.m.saveRAM); {
	case ramSize > 0x4000:
		b.m.SetCPUMemoryMapping(0x6000, 0x7FFF, (extra>>2)&0x03, ramType, access)
	case ramSize > 0x2000:
		b.m.SetCPUMemoryMapping(0x6000, 0x7FFF, (extra>>3)&0x01, ramType, access)
	case ramSize > 0:
		b.m.SetCPUMemoryMapping(0x6000, 0x7FFF, 0, ramType, access)
	}

	switch {
	case !prg16k:
		b.m.SelectPRGPage(0, (prg&0xFE)|prgBankSelect, PRGROM)
		b.m.SelectPRGPage(1, ((prg&0xFE)+1)|prgBankSelect, PRGROM)
	case fixLast:
		b.m.SelectPRGPage(0, prg|prgBankSelect, PRGROM)
		b.m.SelectPRGPage(1, 0x0F|prgBankSelect, PRGROM)
	default:
		b.m.SelectPRGPage(0, prgBankSelect, PRGROM)
		b.m.SelectPRGPage(1, prg|prgBankSelect, PRGROM)
	}

	if chr4k {
		b.m.SelectCHRPage(0, chr0, CHRDefault)
		b.m.SelectCHRPage(1, chr1, CHRDefault)
	} else {
		b.m.SelectCHRPage(0, chr0&0x1E, CHRDefault)
		b.m.SelectCHRPage(1, (chr0&0x1E)+1, CHRDefault)
	}
}

func (b *mmc1) StreamState(s *state.Stream) {
	s.Uint8(&b.writeBuffer)
	s.Uint8(&b.shiftCount)
	s.Int64(&b.lastWrite)
	s.Uint8(&b.reg8000)
	s.Uint8(&b.regA000)
	s.Uint8(&b.regC000)
	s.Uint8(&b.regE000)
	s.Uint16(&b.lastCHRReg)
	if s.Loading() {
		b.update()
	}
}
