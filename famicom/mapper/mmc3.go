package mapper

import (
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/state"
)

// mmc3 (TxROM) has eight bank registers behind a select register, two PRG
// and two CHR layouts, and a scanline counter clocked by rising edges of
// PPU A12. Submapper 4 selects the MMC3A counter, which only fires when
// the counter is decremented or reloaded into zero.
type mmc3 struct {
	m *Mapper

	a12 a12Watcher

	currentRegister uint8
	registers       [8]uint8
	prgMode         uint8
	chrMode         uint8

	reg8000 uint8
	regA000 uint8
	regA001 uint8

	irqReloadValue uint8
	irqCounter     uint8
	irqReload      bool
	irqEnabled     bool

	revA bool
}

func (b *mmc3) PRGPageSize() uint16 { return 0x2000 }
func (b *mmc3) CHRPageSize() uint16 { return 0x0400 }

func (b *mmc3) Init(m *Mapper) {
	b.m = m
	b.a12.minDelay = 10
	b.revA = m.Info().SubMapperID == 4
	b.registers = [8]uint8{0, 2, 4, 5, 6, 7, 0, 1}
	b.update()
}

func (b *mmc3) update() {
	b.currentRegister = b.reg8000 & 0x07
	b.chrMode = (b.reg8000 & 0x80) >> 7
	b.prgMode = (b.reg8000 & 0x40) >> 6

	wramEnabled := b.regA001&0x80 != 0
	writeProtected := b.regA001&0x40 != 0
	access := NoAccess
	if wramEnabled {
		access = ReadWrite
		if writeProtected {
			access = Read
		}
	}
	if len(b.m.saveRAM) > 0 {
		b.m.SetCPUMemoryMapping(0x6000, 0x7FFF, 0, SaveRAM, access)
	} else if len(b.m.workRAM) > 0 {
		b.m.SetCPUMemoryMapping(0x6000, 0x7FFF, 0, WorkRAM, access)
	}

	b.updatePRG()
	b.updateCHR()
}

func (b *mmc3) updatePRG() {
	r := b.registers
	if b.prgMode == 0 {
		b.m.SelectPRGPage(0, int(r[6]), PRGROM)
		b.m.SelectPRGPage(1, int(r[7]), PRGROM)
		b.m.SelectPRGPage(2, -2, PRGROM)
		b.m.SelectPRGPage(3, -1, PRGROM)
	} else {
		b.m.SelectPRGPage(0, -2, PRGROM)
		b.m.SelectPRGPage(1, int(r[7]), PRGROM)
		b.m.SelectPRGPage(2, int(r[6]), PRGROM)
		b.m.SelectPRGPage(3, -1, PRGROM)
	}
}

func (b *mmc3) updateCHR() {
	r := b.registers
	// the two 2KB banks land in slots 0-3 or 4-7 depending on the mode
	big, small := uint16(0), uint16(4)
	if b.chrMode == 1 {
		big, small = 4, 0
	}
	b.m.SelectCHRPage(big, int(r[0]&0xFE), CHRDefault)
	b.m.SelectCHRPage(big+1, int(r[0]|0x01), CHRDefault)
	b.m.SelectCHRPage(big+2, int(r[1]&0xFE), CHRDefault)
	b.m.SelectCHRPage(big+3, int(r[1]|0x01), CHRDefault)
	for i := uint16(0); i < 4; i++ {
		b.m.SelectCHRPage(small+i, int(r[2+i]), CHRDefault)
	}
}

func (b *mmc3) WriteRegister(address uint16, value uint8) {
	switch address & 0xE001 {
	case 0x8000:
		b.reg8000 = value
		b.update()
	case 0x8001:
		if b.currentRegister <= 1 {
			value &^= 0x01
		}
		b.registers[b.currentRegister] = value
		b.update()
	case 0xA000:
		b.regA000 = value
		if b.m.Mirroring() != rom.FourScreens {
			if value&0x01 != 0 {
				b.m.SetMirroringType(rom.Horizontal)
			} else {
				b.m.SetMirroringType(rom.Vertical)
			}
		}
	case 0xA001:
		b.regA001 = value
		b.update()
	case 0xC000:
		b.irqReloadValue = value
	case 0xC001:
		b.irqCounter = 0
		b.irqReload = true
	case 0xE000:
		b.irqEnabled = false
		b.m.Host().ClearIRQSource(cpu.IRQExternal)
	case 0xE001:
		b.irqEnabled = true
	}
}

func (b *mmc3) NotifyVRAMAddressChange(address uint16) {
	if b.a12.update(address, b.m.Host().PPUFrameCycle()) == a12Rise {
		b.clockCounter()
	}
}

func (b *mmc3) clockCounter() {
	count := b.irqCounter
	if b.irqCounter == 0 || b.irqReload {
		b.irqCounter = b.irqReloadValue
	} else {
		b.irqCounter--
	}

	if b.revA {
		if (count > 0 || b.irqReload) && b.irqCounter == 0 && b.irqEnabled {
			b.m.Host().SetIRQSource(cpu.IRQExternal)
		}
	} else if b.irqCounter == 0 && b.irqEnabled {
		b.m.Host().SetIRQSource(cpu.IRQExternal)
	}
	b.irqReload = false
}

func (b *mmc3) StreamState(s *state.Stream) {
	b.a12.StreamState(s)
	s.Bytes(b.registers[:])
	s.Uint8(&b.reg8000)
	s.Uint8(&b.regA000)
	s.Uint8(&b.regA001)
	s.Uint8(&b.irqReloadValue)
	s.Uint8(&b.irqCounter)
	s.Bool(&b.irqReload)
	s.Bool(&b.irqEnabled)
	if s.Loading() {
		b.currentRegister = b.reg8000 & 0x07
		b.chrMode = (b.reg8000 & 0x80) >> 7
		b.prgMode = (b.reg8000 & 0x40) >> 6
	}
}
