// Package apu emulates the 2A03 sound hardware: two pulse channels, a
// triangle, a noise channel, the delta modulation channel and the frame
// counter that clocks them. Channels run lazily and are caught up to the
// CPU only when a register access, an IRQ or the end of a frame needs it.
package apu

import (
	"log/slog"

	"github.com/valerio/go-famicom/famicom/addr"
	"github.com/valerio/go-famicom/famicom/bit"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/memory"
)

// samples are flushed at least this often, in CPU cycles
const cycleLength = 10000

// CPU is what the APU needs from the processor: the cycle counter for
// write alignment, the IRQ lines and the DMC's DMA requests.
type CPU interface {
	CycleCount() int64
	SetIRQSource(source cpu.IRQSource)
	ClearIRQSource(source cpu.IRQSource)
	HasIRQSource(source cpu.IRQSource) bool
	StartDMCTransfer()
	StopDMCTransfer()
}

type APU struct {
	cpu   CPU
	model config.Model

	enabled   bool
	needToRun bool

	previousCycle uint32
	currentCycle  uint32

	pulse        [2]pulse
	triangle     triangle
	noise        noise
	dmc          dmc
	frameCounter frameCounter
	mixer        *mixer
}

func New(c CPU, sampleRate int) *APU {
	a := &APU{
		cpu:     c,
		enabled: true,
		mixer:   newMixer(sampleRate),
	}

	a.pulse[0].isChannel1 = true
	for i, ch := range []*timer{&a.pulse[0].timer, &a.pulse[1].timer, &a.triangle.timer, &a.noise.timer, &a.dmc.timer} {
		ch.mixer = a.mixer
		ch.channel = channelID(i)
	}
	a.pulse[0].apu = a
	a.pulse[1].apu = a
	a.triangle.apu = a
	a.noise.apu = a
	a.dmc.cpu = c
	a.frameCounter.apu = a
	a.frameCounter.cpu = c

	a.SetNesModel(config.ModelNTSC)
	a.Reset(false)
	return a
}

// SetSampleSink registers where mixed audio goes. nil discards it.
func (a *APU) SetSampleSink(sink SampleSink) {
	a.mixer.sink = sink
}

// SetNesModel switches region tables, finishing the current frame first.
func (a *APU) SetNesModel(model config.Model) {
	if a.model == model {
		return
	}
	a.Run()
	a.model = model
	a.noise.model = model
	a.dmc.model = model
	a.frameCounter.setNesModel(model)
	a.mixer.setNesModel(model)
	slog.Debug("APU model", "model", model.String())
}

func (a *APU) Reset(soft bool) {
	a.enabled = true
	a.currentCycle = 0
	a.previousCycle = 0
	a.pulse[0].reset(soft)
	a.pulse[1].reset(soft)
	a.triangle.reset(soft)
	a.noise.reset(soft)
	a.dmc.reset(soft)
	a.frameCounter.reset(soft)
	a.mixer.reset()
}

// SetEnabled pauses the APU, used while a slave console is halted.
func (a *APU) SetEnabled(enabled bool) {
	a.enabled = enabled
}

func (a *APU) frameCounterTick(t frameType) {
	// quarter and half frames clock envelopes and the linear counter
	a.pulse[0].tickEnvelope()
	a.pulse[1].tickEnvelope()
	a.triangle.tickLinearCounter()
	a.noise.tickEnvelope()

	if t == frameHalf {
		a.pulse[0].tickLength()
		a.pulse[1].tickLength()
		a.triangle.tickLength()
		a.noise.tickLength()
		a.pulse[0].tickSweep()
		a.pulse[1].tickSweep()
	}
}

func (a *APU) status() uint8 {
	return bit.Bool(a.pulse[0].status()) |
		bit.Bool(a.pulse[1].status())<<1 |
		bit.Bool(a.triangle.status())<<2 |
		bit.Bool(a.noise.status())<<3 |
		bit.Bool(a.dmc.status())<<4 |
		bit.Bool(a.cpu.HasIRQSource(cpu.IRQFrameCounter))<<6 |
		bit.Bool(a.cpu.HasIRQSource(cpu.IRQDMC))<<7
}

// MemoryRanges claims the channel registers, $4015 and the $4017 write.
// $4016 and the $4017 read belong to the controllers.
func (a *APU) MemoryRanges(r *memory.Ranges) {
	r.AddHandler(memory.OpWrite, addr.APUStart, 0x4013)
	r.AddHandler(memory.OpAny, addr.APUStatus)
	r.AddHandler(memory.OpWrite, addr.Joypad2)
}

// ReadRAM reads $4015, which also acknowledges the frame IRQ.
func (a *APU) ReadRAM(uint16) uint8 {
	a.Run()
	status := a.status()
	a.cpu.ClearIRQSource(cpu.IRQFrameCounter)
	return status
}

func (a *APU) PeekRAM(uint16) uint8 {
	return a.status()
}

func (a *APU) WriteRAM(address uint16, value uint8) {
	a.Run()

	switch {
	case address <= 0x4003:
		a.pulse[0].write(address, value)
	case address <= 0x4007:
		a.pulse[1].write(address, value)
	case address <= 0x400B:
		a.triangle.write(address, value)
	case address <= 0x400F:
		a.noise.write(address, value)
	case address <= 0x4013:
		a.dmc.write(address, value)
	case address == addr.APUStatus:
		// the DMC IRQ is acknowledged before enabling can raise it again
		a.cpu.ClearIRQSource(cpu.IRQDMC)
		a.pulse[0].setEnabled(value&0x01 != 0)
		a.pulse[1].setEnabled(value&0x02 != 0)
		a.triangle.setEnabled(value&0x04 != 0)
		a.noise.setEnabled(value&0x08 != 0)
		a.dmc.setEnabled(value&0x10 != 0)
	case address == addr.Joypad2:
		a.frameCounter.write(value)
	}
}

// Run catches the frame counter and every channel up to the current cycle.
func (a *APU) Run() {
	cyclesToRun := int32(a.currentCycle - a.previousCycle)
	for cyclesToRun > 0 {
		a.previousCycle += a.frameCounter.run(&cyclesToRun)

		// length reloads land after the frame counter had its chance to clock
		a.pulse[0].reloadCounter()
		a.pulse[1].reloadCounter()
		a.noise.reloadCounter()
		a.triangle.reloadCounter()

		a.pulse[0].run(a.previousCycle)
		a.pulse[1].run(a.previousCycle)
		a.noise.run(a.previousCycle)
		a.triangle.run(a.previousCycle)
		a.dmc.run(a.previousCycle)
	}
}

func (a *APU) shouldRun(currentCycle uint32) bool {
	if a.dmc.needsToRun() || a.needToRun {
		a.needToRun = false
		return true
	}
	cyclesToRun := currentCycle - a.previousCycle
	return a.frameCounter.needToRun(cyclesToRun) || a.dmc.irqPending(cyclesToRun)
}

// Exec advances the APU by one CPU cycle.
func (a *APU) Exec() {
	a.currentCycle++
	if a.currentCycle == cycleLength-1 {
		a.EndFrame()
	} else if a.shouldRun(a.currentCycle) {
		a.Run()
	}
}

// ProcessCPUClock is called by the CPU on every cycle.
func (a *APU) ProcessCPUClock() {
	if a.enabled {
		a.Exec()
	}
}

// EndFrame catches up, flushes the buffered output to the sample sink and
// rebases the cycle counters to 0.
func (a *APU) EndFrame() {
	a.dmc.processClock()
	a.Run()
	a.pulse[0].endFrame()
	a.pulse[1].endFrame()
	a.triangle.endFrame()
	a.noise.endFrame()
	a.dmc.endFrame()
	a.mixer.endFrame(a.currentCycle)
	a.currentCycle = 0
	a.previousCycle = 0
}

// DMCReadAddress is the address of the DMC's next sample byte.
func (a *APU) DMCReadAddress() uint16 {
	return a.dmc.readAddress()
}

// SetDMCReadBuffer delivers a byte fetched by the DMA unit.
func (a *APU) SetDMCReadBuffer(value uint8) {
	a.dmc.setReadBuffer(value)
}
