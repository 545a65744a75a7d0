package ppu

import "github.com/valerio/go-famicom/famicom/config"

func (p *PPU) spriteHeight() int32 {
	if p.flags.largeSprites {
		return 16
	}
	return 8
}

// processSpriteEvaluation runs one dot of the secondary OAM fill for the
// next scanline: dots 1-64 clear it, dots 65-256 copy up to 8 in-range
// sprites, reproducing the diagonal overflow scan once it is full.
func (p *PPU) processSpriteEvaluation() {
	if !p.renderingEnabled && !(p.model == config.ModelPAL && p.scanline >= p.palSpriteEvalScanline) {
		return
	}

	if p.cycle < 65 {
		p.oamCopyBuffer = 0xFF
		p.secondaryOAM[(p.cycle-1)>>1] = 0xFF
		return
	}

	switch p.cycle {
	case 65:
		p.sprite0Added = false
		p.spriteInRange = false
		p.secondaryOAMAddr = 0
		p.overflowBugCount = 0
		p.oamCopyDone = false
		p.spriteAddrH = p.oamAddr >> 2 & 0x3F
		p.spriteAddrL = p.oamAddr & 0x03
	case 256:
		p.sprite0Visible = p.sprite0Added
		p.spriteCount = p.secondaryOAMAddr >> 2
	}

	if p.cycle&0x01 != 0 {
		p.oamCopyBuffer = p.oam[p.oamAddr]
		return
	}

	if p.oamCopyDone {
		p.spriteAddrH = (p.spriteAddrH + 1) & 0x3F
		if p.secondaryOAMAddr >= 0x20 {
			p.oamCopyBuffer = p.secondaryOAM[p.secondaryOAMAddr&0x1F]
		}
		p.oamAddr = p.spriteAddrL&0x03 | p.spriteAddrH<<2
		return
	}

	y := int32(p.oamCopyBuffer)
	if !p.spriteInRange && p.scanline >= y && p.scanline < y+p.spriteHeight() {
		p.spriteInRange = true
	}

	switch {
	case p.secondaryOAMAddr < 0x20:
		p.secondaryOAM[p.secondaryOAMAddr] = p.oamCopyBuffer
		if !p.spriteInRange {
			p.nextSprite()
			break
		}

		p.spriteAddrL++
		p.secondaryOAMAddr++
		if p.spriteAddrH == 0 {
			p.sprite0Added = true
		}
		if p.secondaryOAMAddr&0x03 == 0 {
			p.spriteInRange = false
			p.spriteAddrL = 0
			p.nextSprite()
		}

	default:
		// secondary OAM is full: writes turn into reads
		p.oamCopyBuffer = p.secondaryOAM[p.secondaryOAMAddr&0x1F]

		if p.spriteInRange {
			p.status.spriteOverflow = true
			p.spriteAddrL++
			if p.spriteAddrL == 4 {
				p.spriteAddrH = (p.spriteAddrH + 1) & 0x3F
				p.spriteAddrL = 0
			}

			if p.overflowBugCount == 0 {
				p.overflowBugCount = 3
			} else {
				p.overflowBugCount--
				if p.overflowBugCount == 0 {
					// the rest of the overflowing sprite is skipped
					p.oamCopyDone = true
					p.spriteAddrL = 0
				}
			}
		} else {
			// both halves of the address step, scanning OAM diagonally
			p.spriteAddrH = (p.spriteAddrH + 1) & 0x3F
			p.spriteAddrL = (p.spriteAddrL + 1) & 0x03
			if p.spriteAddrH == 0 {
				p.oamCopyDone = true
			}
		}
	}

	p.oamAddr = p.spriteAddrL&0x03 | p.spriteAddrH<<2
}

func (p *PPU) nextSprite() {
	p.spriteAddrH = (p.spriteAddrH + 1) & 0x3F
	if p.spriteAddrH == 0 {
		p.oamCopyDone = true
	}
}

func (p *PPU) loadSpriteTileInfo() {
	i := p.spriteIndex * 4
	p.loadSprite(p.secondaryOAM[i], p.secondaryOAM[i+1], p.secondaryOAM[i+2], p.secondaryOAM[i+3])
}

func (p *PPU) spriteTileAddr(tileIndex, lineOffset uint8) uint16 {
	if p.flags.largeSprites {
		var table uint16
		if tileIndex&0x01 != 0 {
			table = 0x1000
		}
		row := uint16(lineOffset)
		if lineOffset >= 8 {
			// the bottom half is the next tile
			row += 8
		}
		return (table | uint16(tileIndex&^0x01)<<4) + row
	}
	return (uint16(tileIndex)<<4 | p.flags.spritePatternAddr) + uint16(lineOffset)
}

// loadSprite fetches the pattern for the sprite in slot spriteIndex. Empty
// slots still fetch tile $FF, which mappers counting A12 edges rely on.
func (p *PPU) loadSprite(y, tileIndex, attributes, x uint8) {
	lineOffset := uint8(p.scanline - int32(y))
	if attributes&0x80 != 0 {
		lineOffset = uint8(p.spriteHeight()-1) - lineOffset
	}

	if p.spriteIndex < p.spriteCount && y < ScreenHeight {
		tileAddr := p.spriteTileAddr(tileIndex, lineOffset)
		sprite := &p.spriteTiles[p.spriteIndex]
		sprite.backgroundPriority = attributes&0x20 != 0
		sprite.horizontalMirror = attributes&0x40 != 0
		sprite.paletteOffset = (attributes&0x03)<<2 | 0x10
		sprite.lowByte = p.readVRAM(tileAddr)
		sprite.highByte = p.readVRAM(tileAddr + 8)
		sprite.x = x

		if p.scanline >= 0 {
			// sprites fetched on the pre-render line never show on line 0
			for i := 0; i < 8 && int(x)+i+1 < len(p.hasSprite); i++ {
				p.hasSprite[int(x)+i+1] = true
			}
		}
	} else {
		tileAddr := p.spriteTileAddr(0xFF, 0)
		p.readVRAM(tileAddr)
		p.readVRAM(tileAddr + 8)
	}

	p.spriteIndex++
}
