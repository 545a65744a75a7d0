// Package cpu emulates the 2A03's 6502 core one bus cycle at a time. Every
// read and write advances the master clock and lets the PPU and the other
// clocked devices catch up, so DMA stalls, interrupt polling and dummy
// accesses land on the same cycles as on hardware.
package cpu

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/valerio/go-famicom/famicom/addr"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/memory"
)

// ErrJammed is returned when the CPU executes one of the KIL/HLT opcodes.
// Only a reset gets it out of that state.
var ErrJammed = errors.New("cpu jammed")

// IRQSource identifies a device driving the shared IRQ line.
type IRQSource uint8

const (
	IRQExternal     IRQSource = 1
	IRQFrameCounter IRQSource = 2
	IRQDMC          IRQSource = 4
)

// Bus is the CPU address space.
type Bus interface {
	Read(address uint16, op memory.OperationType) uint8
	Write(address uint16, value uint8, op memory.OperationType)
	OpenBus(mask uint8) uint8
}

// System is the rest of the console as seen from the CPU.
type System interface {
	// RunPPU lets the PPU run up to the given master clock.
	RunPPU(masterClock uint64)
	// ProcessCPUClock ticks the devices clocked by M2 (mapper, APU).
	ProcessCPUClock()
	DMCReadAddress() uint16
	SetDMCReadBuffer(value uint8)
	ConsoleType() config.ConsoleType
	// InputOpenBusMask returns the open bus bits of controller port 0 or 1.
	InputOpenBusMask(port uint8) uint8
	// Alignment returns the PPU and CPU phase offsets applied at reset.
	Alignment(ppuDivider, cpuDivider uint8) (ppuOffset, cpuOffset uint8)
}

// CPU is the 6502 core state.
type CPU struct {
	bus Bus
	sys System

	pc uint16
	sp uint8
	a  uint8
	x  uint8
	y  uint8
	ps uint8

	cycleCount int64
	nmiFlag    bool
	irqFlag    uint8
	irqMask    uint8

	mode    addressingMode
	operand uint16
	opcode  uint8

	masterClock     uint64
	startClockCount uint8
	endClockCount   uint8
	ppuOffset       uint8
	model           config.Model

	prevRunIrq  bool
	runIrq      bool
	prevNmiFlag bool
	prevNeedNmi bool
	needNmi     bool

	// DMA
	needHalt          bool
	needDummyRead     bool
	spriteDmaTransfer bool
	spriteDmaOffset   uint8
	dmcDmaRunning     bool

	jammed bool
	// pendingPC is applied at the next instruction boundary, -1 when unset.
	pendingPC int32
}

// New returns a CPU wired to bus and sys. Reset must be called before Exec.
func New(bus Bus, sys System) *CPU {
	c := &CPU{
		bus:       bus,
		sys:       sys,
		irqMask:   0xFF,
		pendingPC: -1,
	}
	c.SetMasterClockDivider(config.ModelNTSC)
	return c
}

// Reset runs the power-on (soft=false) or reset sequence, including the 8
// cycles the 6502 spends before fetching the first opcode.
func (c *CPU) Reset(soft bool, model config.Model) {
	c.model = model
	c.nmiFlag = false
	c.irqFlag = 0
	c.spriteDmaTransfer = false
	c.spriteDmaOffset = 0
	c.needHalt = false
	c.needDummyRead = false
	c.dmcDmaRunning = false
	c.jammed = false
	c.pendingPC = -1

	// read directly so the PPU and APU are not clocked yet
	low := c.bus.Read(addr.ResetVector, memory.Read)
	high := c.bus.Read(addr.ResetVector+1, memory.Read)
	c.pc = uint16(high)<<8 | uint16(low)

	if soft {
		c.setFlags(flagInterrupt)
		c.sp -= 3
	} else {
		c.a, c.x, c.y = 0, 0, 0
		c.sp = 0xFD
		c.ps = flagInterrupt
		c.runIrq = false
	}

	ppuDivider, cpuDivider := dividers(model)
	c.cycleCount = -1
	c.masterClock = 0

	ppuOffset, cpuOffset := c.sys.Alignment(ppuDivider, cpuDivider)
	c.ppuOffset = ppuOffset
	c.masterClock += uint64(cpuDivider) + uint64(cpuOffset)

	for i := 0; i < 8; i++ {
		c.startCycle(true)
		c.endCycle(true)
	}
	slog.Debug("CPU reset", "soft", soft, "model", model.String(), "pc", fmt.Sprintf("$%04X", c.pc))
}

func dividers(model config.Model) (ppuDivider, cpuDivider uint8) {
	switch model {
	case config.ModelPAL:
		return 5, 16
	case config.ModelDendy:
		return 5, 15
	}
	return 4, 12
}

// SetMasterClockDivider selects the split of each CPU cycle into master
// clocks before and after the bus access.
func (c *CPU) SetMasterClockDivider(model config.Model) {
	c.model = model
	switch model {
	case config.ModelPAL:
		c.startClockCount, c.endClockCount = 8, 8
	case config.ModelDendy:
		c.startClockCount, c.endClockCount = 7, 8
	default:
		c.startClockCount, c.endClockCount = 6, 6
	}
}

// Exec runs one instruction, followed by an interrupt sequence when one was
// pending at the end of its second to last cycle.
func (c *CPU) Exec() error {
	if c.pendingPC >= 0 {
		c.pc = uint16(c.pendingPC)
		c.pendingPC = -1
		c.prevRunIrq = false
		c.prevNeedNmi = false
	}

	if c.jammed {
		c.dummyRead()
		return nil
	}

	pc := c.pc
	c.opcode = c.fetchOpcode()
	op := &opcodes[c.opcode]
	c.mode = op.mode
	c.operand = c.fetchOperand()
	op.exec(c)

	if c.jammed {
		return fmt.Errorf("%w: opcode $%02X at $%04X", ErrJammed, c.opcode, pc)
	}

	if c.prevRunIrq || c.prevNeedNmi {
		c.irq()
	}
	return nil
}

// irq runs the 7 cycle interrupt sequence. NMI wins when both are pending.
func (c *CPU) irq() {
	c.dummyRead()
	c.dummyRead()
	c.pushWord(c.pc)

	if c.needNmi {
		c.needNmi = false
		c.push(c.ps | flagReserved)
		c.setFlags(flagInterrupt)
		c.pc = c.readWordAt(addr.NMIVector, memory.Read)
	} else {
		c.push(c.ps | flagReserved)
		c.setFlags(flagInterrupt)
		c.pc = c.readWordAt(addr.IRQVector, memory.Read)
	}
}

func (c *CPU) startCycle(forRead bool) {
	if forRead {
		c.masterClock += uint64(c.startClockCount - 1)
	} else {
		c.masterClock += uint64(c.startClockCount + 1)
	}
	c.cycleCount++
	c.sys.RunPPU(c.masterClock - uint64(c.ppuOffset))
	c.sys.ProcessCPUClock()
}

func (c *CPU) endCycle(forRead bool) {
	if forRead {
		c.masterClock += uint64(c.endClockCount + 1)
	} else {
		c.masterClock += uint64(c.endClockCount - 1)
	}
	c.sys.RunPPU(c.masterClock - uint64(c.ppuOffset))

	// The NMI edge detector output is seen one cycle after the edge.
	c.prevNeedNmi = c.needNmi
	if !c.prevNmiFlag && c.nmiFlag {
		c.needNmi = true
	}
	c.prevNmiFlag = c.nmiFlag

	// IRQ is polled using the state of the line at the end of the second
	// to last cycle of an instruction.
	c.prevRunIrq = c.runIrq
	c.runIrq = c.irqFlag&c.irqMask != 0 && !c.checkFlag(flagInterrupt)
}

func (c *CPU) memoryRead(address uint16, op memory.OperationType) uint8 {
	c.processPendingDma(address)
	c.startCycle(true)
	value := c.bus.Read(address, op)
	c.endCycle(true)
	return value
}

func (c *CPU) memoryWrite(address uint16, value uint8, op memory.OperationType) {
	c.startCycle(false)
	c.bus.Write(address, value, op)
	c.endCycle(false)
}

func (c *CPU) readWordAt(address uint16, op memory.OperationType) uint16 {
	low := c.memoryRead(address, op)
	high := c.memoryRead(address+1, op)
	return uint16(high)<<8 | uint16(low)
}

func (c *CPU) fetchOpcode() uint8 {
	opcode := c.memoryRead(c.pc, memory.ExecOpCode)
	c.pc++
	return opcode
}

func (c *CPU) dummyRead() {
	c.memoryRead(c.pc, memory.DummyRead)
}

func (c *CPU) readByte() uint8 {
	value := c.memoryRead(c.pc, memory.ExecOperand)
	c.pc++
	return value
}

func (c *CPU) readWord() uint16 {
	value := c.readWordAt(c.pc, memory.ExecOperand)
	c.pc += 2
	return value
}

func (c *CPU) push(value uint8) {
	c.memoryWrite(addr.StackBase+uint16(c.sp), value, memory.Write)
	c.sp--
}

func (c *CPU) pushWord(value uint16) {
	c.push(uint8(value >> 8))
	c.push(uint8(value))
}

func (c *CPU) pop() uint8 {
	c.sp++
	return c.memoryRead(addr.StackBase+uint16(c.sp), memory.Read)
}

func (c *CPU) popWord() uint16 {
	low := c.pop()
	high := c.pop()
	return uint16(high)<<8 | uint16(low)
}

// SetNMIFlag drives the NMI line low. The CPU reacts to the edge.
func (c *CPU) SetNMIFlag() { c.nmiFlag = true }

func (c *CPU) ClearNMIFlag() { c.nmiFlag = false }

// SetIRQMask limits which sources can raise an IRQ, used to silence the
// APU while a debugger steps.
func (c *CPU) SetIRQMask(mask uint8) { c.irqMask = mask }

func (c *CPU) SetIRQSource(source IRQSource) { c.irqFlag |= uint8(source) }

func (c *CPU) HasIRQSource(source IRQSource) bool { return c.irqFlag&uint8(source) != 0 }

func (c *CPU) ClearIRQSource(source IRQSource) { c.irqFlag &^= uint8(source) }

// CycleCount returns the number of CPU cycles since the last reset.
func (c *CPU) CycleCount() int64 { return c.cycleCount }

// MasterClock returns the master clock position of the end of the last cycle.
func (c *CPU) MasterClock() uint64 { return c.masterClock }

// Jammed reports whether a HLT opcode stopped the CPU.
func (c *CPU) Jammed() bool { return c.jammed }

// State returns a copy of the registers.
func (c *CPU) State() Registers {
	return Registers{PC: c.pc, SP: c.sp, A: c.a, X: c.x, Y: c.y, PS: c.ps}
}

// SetNextStatement moves the PC at the next instruction boundary and drops
// any interrupt that was about to be taken.
func (c *CPU) SetNextStatement(address uint16) {
	c.pendingPC = int32(address)
}
