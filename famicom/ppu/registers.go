package ppu

import (
	"github.com/valerio/go-famicom/famicom/addr"
	"github.com/valerio/go-famicom/famicom/bit"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/memory"
)

// open bus bits fade to 0 after roughly 600ms without being refreshed
const openBusDecayFrames = 30

type register uint16

const (
	regControl register = 0x2000 + iota
	regMask
	regStatus
	regOAMAddr
	regOAMData
	regScroll
	regVRAMAddr
	regVRAMData
)

func registerID(address uint16) register {
	return register(address & 0x2007)
}

// MemoryRanges claims $2000-$3FFF and the OAM DMA register.
func (p *PPU) MemoryRanges(r *memory.Ranges) {
	r.AddHandler(memory.OpRead, 0x2000, 0x3FFF)
	r.AddHandler(memory.OpWrite, 0x2000, 0x3FFF)
	r.AddHandler(memory.OpWrite, addr.OAMDMA)
}

func (p *PPU) ReadRAM(address uint16) uint8 {
	openBusMask := uint8(0xFF)
	var value uint8

	switch registerID(address) {
	case regStatus:
		p.writeLatch = false
		value = p.statusByte()
		p.status.verticalBlank = false
		p.cpu.ClearNMIFlag()
		if p.scanline == p.nmiScanline && p.cycle == 0 {
			// reading one dot before the flag is set suppresses it for the frame
			p.preventVblFlag = true
		}
		openBusMask = 0x1F

	case regOAMData:
		if p.scanline <= 239 && p.renderingEnabled {
			if p.cycle >= 257 && p.cycle <= 320 {
				step := (p.cycle - 257) % 8
				if step > 3 {
					step = 3
				}
				p.secondaryOAMAddr = (p.cycle-257)/8*4 + step
				p.oamCopyBuffer = p.secondaryOAM[p.secondaryOAMAddr]
			}
			value = p.oamCopyBuffer
		} else {
			value = p.oam[p.oamAddr]
		}
		openBusMask = 0

	case regVRAMData:
		if p.ignoreVRAMRead > 0 {
			// a second read right after the first returns open bus
			break
		}
		value = p.readBuffer
		p.readBuffer = p.readVRAM(p.busAddress & 0x3FFF)
		if p.busAddress&0x3FFF >= 0x3F00 {
			value = p.readPalette(p.busAddress) | p.openBus&0xC0
			openBusMask = 0xC0
		} else {
			openBusMask = 0
		}
		p.updateVideoRAMAddr()
		p.ignoreVRAMRead = 6
		p.needStateUpdate = true
	}

	return p.applyOpenBus(openBusMask, value)
}

// PeekRAM returns what a read would return without touching any state.
func (p *PPU) PeekRAM(address uint16) uint8 {
	switch registerID(address) {
	case regStatus:
		return p.statusByte() | p.openBus&0x1F
	case regOAMData:
		return p.oam[p.oamAddr]
	case regVRAMData:
		if p.busAddress&0x3FFF >= 0x3F00 {
			return p.readPalette(p.busAddress) | p.openBus&0xC0
		}
		return p.readBuffer
	}
	return p.openBus
}

func (p *PPU) WriteRAM(address uint16, value uint8) {
	if address != addr.OAMDMA {
		p.setOpenBus(0xFF, value)
	}

	if address == addr.OAMDMA {
		p.cpu.RunDMATransfer(value)
		return
	}

	switch registerID(address) {
	case regControl:
		p.setControl(value)
	case regMask:
		p.setMask(value)
	case regOAMAddr:
		p.oamAddr = value
	case regOAMData:
		if !p.renderingEnabled || (p.scanline >= ScreenHeight && (p.model != config.ModelPAL || p.scanline < p.palSpriteEvalScanline)) {
			if p.oamAddr&0x03 == 0x02 {
				// attribute bits 2-4 don't exist
				value &= 0xE3
			}
			p.oam[p.oamAddr] = value
			p.oamAddr++
		} else {
			// writes during rendering only bump the high bits of the address
			p.oamAddr += 4
		}
	case regScroll:
		if p.writeLatch {
			p.t = p.t&^0x73E0 | uint16(value&0xF8)<<2 | uint16(value&0x07)<<12
		} else {
			p.xScroll = value & 0x07
			p.t = p.t&^0x001F | uint16(value>>3)
		}
		p.writeLatch = !p.writeLatch
	case regVRAMAddr:
		if p.writeLatch {
			p.t = p.t&^0x00FF | uint16(value)
			// v picks up t a few dots later
			p.updateVRAMAddrDelay = 3
			p.updateVRAMAddr = p.t
			p.needStateUpdate = true
		} else {
			p.t = p.t&^0xFF00 | uint16(value&0x3F)<<8
		}
		p.writeLatch = !p.writeLatch
	case regVRAMData:
		address := p.busAddress & 0x3FFF
		switch {
		case address >= 0x3F00:
			p.writePalette(address, value)
		case p.scanline >= ScreenHeight || !p.renderingEnabled:
			p.mapper.WriteVRAM(address, value)
		default:
			// mid-render writes put the low address byte on the data lines
			p.mapper.WriteVRAM(address, uint8(p.busAddress))
		}
		p.updateVideoRAMAddr()
	}
}

func (p *PPU) statusByte() uint8 {
	return bit.Bool(p.status.spriteOverflow)<<5 |
		bit.Bool(p.status.sprite0Hit)<<6 |
		bit.Bool(p.status.verticalBlank)<<7
}

func (p *PPU) setControl(value uint8) {
	p.control = value
	p.t = p.t&^0x0C00 | uint16(value&0x03)<<10

	wasEnabled := p.flags.vblank
	p.decodeControl(value)

	if !wasEnabled && p.flags.vblank && p.status.verticalBlank && (p.scanline != -1 || p.cycle != 0) {
		// enabling NMI while the flag is up fires immediately
		p.cpu.SetNMIFlag()
	}
	if p.scanline == p.nmiScanline && p.cycle < 3 && !p.flags.vblank {
		p.cpu.ClearNMIFlag()
	}
}

func (p *PPU) decodeControl(value uint8) {
	p.flags.verticalWrite = bit.IsSet(2, value)
	p.flags.spritePatternAddr = 0
	if bit.IsSet(3, value) {
		p.flags.spritePatternAddr = 0x1000
	}
	p.flags.backgroundPatternAddr = 0
	if bit.IsSet(4, value) {
		p.flags.backgroundPatternAddr = 0x1000
	}
	p.flags.largeSprites = bit.IsSet(5, value)
	p.flags.vblank = bit.IsSet(7, value)
}

func (p *PPU) setMask(value uint8) {
	p.mask = value
	p.decodeMask(value)
	if p.renderingEnabled != (p.flags.backgroundEnabled || p.flags.spritesEnabled) {
		p.needStateUpdate = true
	}
}

func (p *PPU) decodeMask(value uint8) {
	p.flags.grayscale = bit.IsSet(0, value)
	p.flags.backgroundMask = bit.IsSet(1, value)
	p.flags.spriteMask = bit.IsSet(2, value)
	p.flags.backgroundEnabled = bit.IsSet(3, value)
	p.flags.spritesEnabled = bit.IsSet(4, value)
	p.updateMinimumDrawCycles()

	p.paletteMask = 0x3F
	if p.flags.grayscale {
		p.paletteMask = 0x30
	}

	if p.model == config.ModelNTSC {
		p.intensifyBits = uint16(value&0xE0) << 1
	} else {
		// red and green emphasis are swapped on PAL chips
		p.intensifyBits = uint16(value&0x80)<<1 |
			uint16(value&0x40) |
			uint16(value&0x20)<<2
	}
}

// updateVideoRAMAddr advances v after a $2007 access. During rendering the
// access glitches both scroll counters instead.
func (p *PPU) updateVideoRAMAddr() {
	if p.scanline >= ScreenHeight || !p.renderingEnabled {
		step := uint16(1)
		if p.flags.verticalWrite {
			step = 32
		}
		p.v = (p.v + step) & 0x7FFF
		p.setBusAddress(p.v & 0x3FFF)
	} else {
		p.incHorizontalScrolling()
		p.incVerticalScrolling()
	}
}

func paletteIndex(address uint16) uint16 {
	address &= 0x1F
	if address&0x13 == 0x10 {
		// $3F10/$3F14/$3F18/$3F1C mirror the backdrop entries
		address &^= 0x10
	}
	return address
}

func (p *PPU) readPalette(address uint16) uint8 {
	return p.paletteRAM[paletteIndex(address)] & p.paletteMask
}

func (p *PPU) writePalette(address uint16, value uint8) {
	value &= 0x3F
	i := paletteIndex(address)
	p.paletteRAM[i] = value
	if i&0x03 == 0 {
		p.paletteRAM[i|0x10] = value
	}
}

// applyOpenBus refreshes the bits outside mask with value and fills the bits
// inside mask from the decaying latch.
func (p *PPU) applyOpenBus(mask, value uint8) uint8 {
	p.decayOpenBus()
	p.setOpenBus(^mask, value)
	return value | p.openBus&mask
}

func (p *PPU) setOpenBus(mask, value uint8) {
	if mask == 0xFF {
		p.openBus = value
		for i := range p.openBusDecayStamp {
			p.openBusDecayStamp[i] = p.frameCount
		}
		return
	}

	for i := uint8(0); i < 8; i++ {
		if bit.IsSet(i, mask) {
			if bit.IsSet(i, value) {
				p.openBus = bit.Set(i, p.openBus)
			} else {
				p.openBus = bit.Clear(i, p.openBus)
			}
			p.openBusDecayStamp[i] = p.frameCount
		}
	}
}

func (p *PPU) decayOpenBus() {
	for i := uint8(0); i < 8; i++ {
		if p.frameCount-p.openBusDecayStamp[i] > openBusDecayFrames {
			p.openBus = bit.Clear(i, p.openBus)
		}
	}
}
