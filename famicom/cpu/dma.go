package cpu

import (
	"github.com/valerio/go-famicom/famicom/addr"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/memory"
)

// RunDMATransfer starts an OAM DMA from page $xx00. The CPU halts at its
// next read.
func (c *CPU) RunDMATransfer(page uint8) {
	c.spriteDmaTransfer = true
	c.spriteDmaOffset = page
	c.needHalt = true
}

// StartDMCTransfer requests a DMC sample fetch.
func (c *CPU) StartDMCTransfer() {
	c.dmcDmaRunning = true
	c.needDummyRead = true
	c.needHalt = true
}

// StopDMCTransfer cancels a DMC fetch that has not happened yet.
func (c *CPU) StopDMCTransfer() {
	if c.dmcDmaRunning && c.needHalt {
		// not halted yet, the request can be dropped entirely
		c.dmcDmaRunning = false
		c.needDummyRead = false
		c.needHalt = c.spriteDmaTransfer
	}
}

// processPendingDma runs the DMA unit while the CPU is halted on a read of
// readAddress. The halted CPU keeps repeating that read, which is visible
// to devices with read side effects.
func (c *CPU) processPendingDma(readAddress uint16) {
	if !c.needHalt {
		return
	}

	prevReadAddress := readAddress
	enableInternalRegReads := addr.IsInternalRegister(readAddress)
	skipFirstInputClock := false
	if enableInternalRegReads && c.dmcDmaRunning && addr.IsJoypad(readAddress) {
		// the DMC read on the same register keeps /OE active through both
		if c.sys.DMCReadAddress()&0x1F == readAddress&0x1F {
			skipFirstInputClock = true
		}
	}

	// PAL chips don't repeat the CPU read during the halt
	ntscInput := c.model != config.ModelPAL
	// only the first repeated read clocks the controllers on a NES
	isNes := c.sys.ConsoleType() != config.ConsoleFamicom
	skipDummyReads := !ntscInput || (isNes && addr.IsJoypad(readAddress))

	c.needHalt = false

	c.startCycle(true)
	if ntscInput && !skipFirstInputClock {
		c.bus.Read(readAddress, memory.DmaRead)
	}
	c.endCycle(true)

	var spriteCounter uint16
	var spriteAddr uint8
	var value uint8

	processCycle := func() {
		// sprite DMA cycles double as halt and dummy cycles for the DMC
		if c.needHalt {
			c.needHalt = false
		} else if c.needDummyRead {
			c.needDummyRead = false
		}
		c.startCycle(true)
	}

	for c.dmcDmaRunning || c.spriteDmaTransfer {
		getCycle := c.cycleCount&0x01 == 0
		if getCycle {
			switch {
			case c.dmcDmaRunning && !c.needHalt && !c.needDummyRead:
				processCycle()
				value = c.dmaRead(c.sys.DMCReadAddress(), memory.DmcRead, &prevReadAddress, enableInternalRegReads, isNes)
				c.endCycle(true)
				c.dmcDmaRunning = false
				c.sys.SetDMCReadBuffer(value)
			case c.spriteDmaTransfer:
				processCycle()
				value = c.dmaRead(uint16(c.spriteDmaOffset)<<8|uint16(spriteAddr), memory.DmaRead, &prevReadAddress, enableInternalRegReads, isNes)
				c.endCycle(true)
				spriteAddr++
				spriteCounter++
			default:
				// DMC waiting on its halt or dummy cycle
				processCycle()
				if !skipDummyReads {
					c.bus.Read(readAddress, memory.DmaRead)
				}
				c.endCycle(true)
			}
			continue
		}

		if c.spriteDmaTransfer && spriteCounter&0x01 != 0 {
			processCycle()
			c.bus.Write(addr.OAMData, value, memory.DmaWrite)
			c.endCycle(true)
			spriteCounter++
			if spriteCounter == 0x200 {
				c.spriteDmaTransfer = false
			}
		} else {
			// alignment cycle
			processCycle()
			if !skipDummyReads {
				c.bus.Read(readAddress, memory.DmaRead)
			}
			c.endCycle(true)
		}
	}
}

// dmaRead performs a DMA fetch. When the CPU was halted on a $4000-$401F
// read, the 2A03 also decodes its internal registers from the low 5 bits
// of the DMA address, which can read $4015-$4017 behind the program's back
// and corrupt the fetched byte.
func (c *CPU) dmaRead(address uint16, op memory.OperationType, prevReadAddress *uint16, enableInternalRegReads, isNes bool) uint8 {
	if !enableInternalRegReads {
		var value uint8
		if address >= addr.APUStart && address < addr.ExpansionStart {
			// nothing drives the external bus here
			value = c.bus.OpenBus(0xFF)
		} else {
			value = c.bus.Read(address, op)
		}
		*prevReadAddress = address
		return value
	}

	internal := addr.APUStart | address&0x1F
	sameAddress := internal == address

	var value uint8
	switch internal {
	case addr.APUStatus:
		value = c.bus.Read(internal, op)
		if !sameAddress {
			c.bus.Read(address, op)
		}
	case addr.Joypad1, addr.Joypad2:
		if c.model == config.ModelPAL || (isNes && *prevReadAddress == internal) {
			// a repeated read doesn't clock the controller again
			value = c.bus.OpenBus(0xFF)
		} else {
			value = c.bus.Read(internal, op)
		}
		if !sameAddress {
			mask := c.sys.InputOpenBusMask(uint8(internal - addr.Joypad1))
			external := c.bus.Read(address, op)
			// open bus pins follow the external bus, the rest conflict
			value = external&mask | (value&^mask)&(external&^mask)
		}
	default:
		value = c.bus.Read(address, op)
	}
	*prevReadAddress = internal
	return value
}
