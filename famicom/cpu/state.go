package cpu

import "github.com/valerio/go-famicom/famicom/state"

func (c *CPU) StreamState(s *state.Stream) {
	s.Uint16(&c.pc)
	s.Uint8(&c.sp)
	s.Uint8(&c.ps)
	s.Uint8(&c.a)
	s.Uint8(&c.x)
	s.Uint8(&c.y)
	s.Int64(&c.cycleCount)
	s.Bool(&c.nmiFlag)
	s.Uint8(&c.irqFlag)
	s.Bool(&c.dmcDmaRunning)
	s.Bool(&c.spriteDmaTransfer)
	s.Bool(&c.needDummyRead)
	s.Bool(&c.needHalt)
	s.Uint8(&c.startClockCount)
	s.Uint8(&c.endClockCount)
	s.Uint8(&c.ppuOffset)
	s.Uint64(&c.masterClock)
	s.Bool(&c.prevNeedNmi)
	s.Bool(&c.prevNmiFlag)
	s.Bool(&c.needNmi)
	s.Uint8(&c.irqMask)
	s.Bool(&c.jammed)

	s.Uint8(&c.spriteDmaOffset)
	s.Bool(&c.runIrq)
	s.Bool(&c.prevRunIrq)

	if s.Loading() {
		c.pendingPC = -1
	}
}
