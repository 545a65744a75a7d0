package ppu

import "github.com/valerio/go-famicom/famicom/config"

// processScanline runs one dot of a visible or pre-render scanline.
func (p *PPU) processScanline() {
	switch {
	case p.cycle <= 256:
		p.loadTileInfo()
		if p.prevRenderingEnabled && p.cycle&0x07 == 0 {
			p.incHorizontalScrolling()
			if p.cycle == 256 {
				p.incVerticalScrolling()
			}
		}

		if p.scanline >= 0 {
			p.drawPixel()
			p.lowBitShift <<= 1
			p.highBitShift <<= 1
			p.processSpriteEvaluation()
		} else if p.cycle < 9 {
			if p.cycle == 1 {
				p.status.verticalBlank = false
				p.cpu.ClearNMIFlag()
			}
			if p.oamAddr >= 0x08 && p.renderingEnabled {
				// the first 8 bytes get overwritten by the row oamAddr points at
				p.oam[p.cycle-1] = p.oam[uint32(p.oamAddr&0xF8)+p.cycle-1]
			}
		}

	case p.cycle >= 257 && p.cycle <= 320:
		if p.cycle == 257 {
			p.spriteIndex = 0
			p.hasSprite = [257]bool{}
			if p.prevRenderingEnabled {
				p.v = p.v&^0x041F | p.t&0x041F
			}
		}
		if p.renderingEnabled {
			p.oamAddr = 0
			switch (p.cycle - 257) % 8 {
			case 0:
				p.readVRAM(p.nametableAddr())
			case 2:
				p.readVRAM(p.attributeAddr())
			case 3:
				p.loadSpriteTileInfo()
			}
			if p.scanline == -1 && p.cycle >= 280 && p.cycle <= 304 {
				p.v = p.v&^0x7BE0 | p.t&0x7BE0
			}
		}

	case p.cycle >= 321 && p.cycle <= 336:
		p.loadTileInfo()
		if p.cycle == 321 {
			if p.renderingEnabled {
				p.oamCopyBuffer = p.secondaryOAM[0]
			}
		} else if p.prevRenderingEnabled && (p.cycle == 328 || p.cycle == 336) {
			p.lowBitShift <<= 8
			p.highBitShift <<= 8
			p.incHorizontalScrolling()
		}

	case p.cycle == 337 || p.cycle == 339:
		if p.renderingEnabled {
			p.readVRAM(p.nametableAddr())
			if p.scanline == -1 && p.cycle == 339 && p.frameCount&0x01 != 0 && p.model == config.ModelNTSC {
				// odd NTSC frames skip the last dot of the pre-render line
				p.cycle = 340
			}
		}
	}
}

func (p *PPU) loadTileInfo() {
	if !p.renderingEnabled {
		return
	}

	switch p.cycle & 0x07 {
	case 1:
		p.previousTile = p.currentTile
		p.currentTile = p.nextTile
		p.lowBitShift |= uint16(p.nextTile.lowByte)
		p.highBitShift |= uint16(p.nextTile.highByte)

		tileIndex := p.readVRAM(p.nametableAddr())
		p.nextTile.tileAddr = uint16(tileIndex)<<4 | p.v>>12 | p.flags.backgroundPatternAddr
	case 3:
		shift := (p.v>>4)&0x04 | p.v&0x02
		p.nextTile.paletteOffset = (p.readVRAM(p.attributeAddr()) >> shift & 0x03) << 2
	case 5:
		p.nextTile.lowByte = p.readVRAM(p.nextTile.tileAddr)
	case 7:
		p.nextTile.highByte = p.readVRAM(p.nextTile.tileAddr + 8)
	}
}

func (p *PPU) drawPixel() {
	var color uint8
	if p.renderingEnabled || p.v&0x3F00 != 0x3F00 {
		index := p.pixelColor()
		if index&0x03 == 0 {
			index = 0
		}
		color = p.paletteRAM[index]
	} else {
		// with rendering off and v inside palette memory the PPU outputs
		// the entry v points at
		color = p.paletteRAM[p.v&0x1F]
	}
	p.buffers[p.currentBuffer][uint32(p.scanline)<<8+p.cycle-1] = uint16(color&p.paletteMask) | p.intensifyBits
}

// pixelColor returns the palette index for the current dot and latches
// sprite 0 hits.
func (p *PPU) pixelColor() uint8 {
	offset := p.xScroll
	var backgroundColor, spriteBgColor uint8

	if p.cycle > p.minimumDrawBgCycle {
		spriteBgColor = uint8((p.lowBitShift<<offset)&0x8000>>15 | (p.highBitShift<<offset)&0x8000>>14)
		if p.flags.backgroundEnabled {
			backgroundColor = spriteBgColor
		}
	}

	if p.hasSprite[p.cycle] && p.cycle > p.minimumDrawSpriteCycle {
		for i := uint32(0); i < p.spriteCount; i++ {
			sprite := &p.spriteTiles[i]
			shift := int32(p.cycle) - int32(sprite.x) - 1
			if shift < 0 || shift >= 8 {
				continue
			}

			var spriteColor uint8
			if sprite.horizontalMirror {
				spriteColor = sprite.lowByte>>shift&0x01 | (sprite.highByte>>shift&0x01)<<1
			} else {
				spriteColor = (sprite.lowByte<<shift)&0x80>>7 | (sprite.highByte<<shift)&0x80>>6
			}
			if spriteColor == 0 {
				continue
			}

			if i == 0 && spriteBgColor != 0 && p.sprite0Visible && p.cycle != 256 &&
				p.flags.backgroundEnabled && !p.status.sprite0Hit && p.cycle > p.minimumDrawSpriteCycle {
				p.status.sprite0Hit = true
			}
			if p.flags.spritesEnabled && (backgroundColor == 0 || !sprite.backgroundPriority) {
				return sprite.paletteOffset + spriteColor
			}
			break
		}
	}

	tile := &p.currentTile
	if uint32(offset)+(p.cycle-1)&0x07 < 8 {
		tile = &p.previousTile
	}
	return tile.paletteOffset + backgroundColor
}

func (p *PPU) nametableAddr() uint16 {
	return 0x2000 | p.v&0x0FFF
}

func (p *PPU) attributeAddr() uint16 {
	return 0x23C0 | p.v&0x0C00 | (p.v>>4)&0x38 | (p.v>>2)&0x07
}

func (p *PPU) incHorizontalScrolling() {
	if p.v&0x001F == 31 {
		// wrap coarse X into the next horizontal nametable
		p.v = p.v&^0x001F ^ 0x0400
	} else {
		p.v++
	}
}

func (p *PPU) incVerticalScrolling() {
	if p.v&0x7000 != 0x7000 {
		p.v += 0x1000
		return
	}

	p.v &^= 0x7000
	y := (p.v & 0x03E0) >> 5
	switch y {
	case 29:
		y = 0
		p.v ^= 0x0800
	case 31:
		// coarse Y pointing into attribute memory wraps without switching
		y = 0
	default:
		y++
	}
	p.v = p.v&^0x03E0 | y<<5
}
