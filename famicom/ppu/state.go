package ppu

import "github.com/valerio/go-famicom/famicom/state"

func (p *PPU) StreamState(s *state.Stream) {
	s.Uint8(&p.control)
	s.Uint8(&p.mask)
	s.Uint8(&p.oamAddr)
	s.Uint16(&p.v)
	s.Uint16(&p.t)
	s.Uint8(&p.xScroll)
	s.Bool(&p.writeLatch)
	s.Bool(&p.status.spriteOverflow)
	s.Bool(&p.status.sprite0Hit)
	s.Bool(&p.status.verticalBlank)
	s.Uint8(&p.readBuffer)
	s.Uint16(&p.busAddress)
	s.Uint8(&p.openBus)
	for i := range p.openBusDecayStamp {
		s.Uint32(&p.openBusDecayStamp[i])
	}
	s.Uint8(&p.ignoreVRAMRead)

	s.Int32(&p.scanline)
	s.Uint32(&p.cycle)
	s.Uint32(&p.frameCount)
	s.Uint64(&p.masterClock)
	s.Int(&p.currentBuffer)
	p.currentBuffer &= 1
	s.Uint16s(p.buffers[p.currentBuffer][:])

	s.Bytes(p.paletteRAM[:])
	s.Bytes(p.oam[:])
	s.Bytes(p.secondaryOAM[:])

	s.Uint16(&p.lowBitShift)
	s.Uint16(&p.highBitShift)
	streamTile(s, &p.previousTile)
	streamTile(s, &p.currentTile)
	streamTile(s, &p.nextTile)

	for i := range p.spriteTiles {
		sp := &p.spriteTiles[i]
		s.Uint8(&sp.lowByte)
		s.Uint8(&sp.highByte)
		s.Uint8(&sp.paletteOffset)
		s.Uint8(&sp.x)
		s.Bool(&sp.horizontalMirror)
		s.Bool(&sp.backgroundPriority)
	}
	s.Uint32(&p.spriteCount)
	s.Uint32(&p.spriteIndex)
	s.Uint32(&p.secondaryOAMAddr)
	s.Bool(&p.sprite0Visible)
	s.Bool(&p.sprite0Added)
	s.Bool(&p.spriteInRange)
	s.Uint8(&p.oamCopyBuffer)
	s.Bool(&p.oamCopyDone)
	s.Uint8(&p.spriteAddrH)
	s.Uint8(&p.spriteAddrL)
	s.Uint8(&p.overflowBugCount)

	s.Bool(&p.preventVblFlag)
	s.Bool(&p.needStateUpdate)
	s.Bool(&p.renderingEnabled)
	s.Bool(&p.prevRenderingEnabled)
	s.Uint8(&p.updateVRAMAddrDelay)
	s.Uint16(&p.updateVRAMAddr)

	if s.Loading() {
		// derived state follows the restored registers
		p.decodeControl(p.control)
		p.decodeMask(p.mask)
		p.hasSprite = [257]bool{}
		if p.scanline >= 0 {
			for i := uint32(0); i < p.spriteCount; i++ {
				x := int(p.spriteTiles[i].x)
				for j := 0; j < 8 && x+j+1 < len(p.hasSprite); j++ {
					p.hasSprite[x+j+1] = true
				}
			}
		}
	}
}

func streamTile(s *state.Stream, t *tileInfo) {
	s.Uint8(&t.lowByte)
	s.Uint8(&t.highByte)
	s.Uint8(&t.paletteOffset)
	s.Uint16(&t.tileAddr)
}
