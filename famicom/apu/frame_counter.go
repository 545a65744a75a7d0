package apu

import (
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
)

type frameType uint8

const (
	frameNone frameType = iota
	frameQuarter
	frameHalf
)

var (
	stepCyclesNTSC = [2][6]uint32{
		{7457, 14913, 22371, 29828, 29829, 29830},
		{7457, 14913, 22371, 29829, 37281, 37282},
	}
	stepCyclesPAL = [2][6]uint32{
		{8313, 16627, 24939, 33252, 33253, 33254},
		{8313, 16627, 24939, 33253, 41565, 41566},
	}
	stepTypes = [6]frameType{frameQuarter, frameHalf, frameQuarter, frameNone, frameHalf, frameNone}
)

// frameCounter is the sequencer clocking envelopes, sweeps and length
// counters, and raising the frame IRQ in 4-step mode.
type frameCounter struct {
	apu *APU
	cpu CPU

	stepCycles *[2][6]uint32

	previousCycle uint32
	currentStep   uint32
	stepMode      uint32
	inhibitIRQ    bool
	blockTick     uint8

	// pending $4017 value, -1 when none
	newValue   int16
	writeDelay int8
}

func (f *frameCounter) setNesModel(model config.Model) {
	if model == config.ModelPAL {
		f.stepCycles = &stepCyclesPAL
	} else {
		// Dendy uses the NTSC sequencer
		f.stepCycles = &stepCyclesNTSC
	}
}

func (f *frameCounter) reset(soft bool) {
	f.previousCycle = 0
	// the mode survives a soft reset
	if !soft {
		f.stepMode = 0
	}
	f.currentStep = 0

	// reset acts as a $4017 write a few cycles before the first instruction
	f.newValue = 0
	if f.stepMode != 0 {
		f.newValue = 0x80
	}
	f.writeDelay = 3
	f.inhibitIRQ = false
	f.blockTick = 0
}

// run advances the sequencer by at most cyclesToRun, stopping at the next
// step boundary, and returns how many cycles it consumed.
func (f *frameCounter) run(cyclesToRun *int32) uint32 {
	var cyclesRan uint32
	stepCycle := f.stepCycles[f.stepMode][f.currentStep]

	if f.previousCycle+uint32(*cyclesToRun) >= stepCycle {
		if !f.inhibitIRQ && f.stepMode == 0 && f.currentStep >= 3 {
			// the flag is set on each of the last 3 cycles of the sequence
			f.cpu.SetIRQSource(cpu.IRQFrameCounter)
		}

		if t := stepTypes[f.currentStep]; t != frameNone && f.blockTick == 0 {
			f.apu.frameCounterTick(t)
			// a $4017 write can't clock the units again on this or the next cycle
			f.blockTick = 2
		}

		if stepCycle >= f.previousCycle {
			cyclesRan = stepCycle - f.previousCycle
		}
		*cyclesToRun -= int32(cyclesRan)

		f.currentStep++
		if f.currentStep == 6 {
			f.currentStep = 0
			f.previousCycle = 0
		} else {
			f.previousCycle += cyclesRan
		}
	} else {
		cyclesRan = uint32(*cyclesToRun)
		*cyclesToRun = 0
		f.previousCycle += cyclesRan
	}

	if f.newValue >= 0 {
		f.writeDelay--
		if f.writeDelay == 0 {
			f.stepMode = 0
			if f.newValue&0x80 != 0 {
				f.stepMode = 1
			}
			f.writeDelay = -1
			f.currentStep = 0
			f.previousCycle = 0
			f.newValue = -1

			if f.stepMode == 1 && f.blockTick == 0 {
				// 5-step mode clocks everything right away
				f.apu.frameCounterTick(frameHalf)
				f.blockTick = 2
			}
		}
	}

	if f.blockTick > 0 {
		f.blockTick--
	}
	return cyclesRan
}

func (f *frameCounter) needToRun(cyclesToRun uint32) bool {
	return f.newValue >= 0 || f.blockTick > 0 ||
		f.previousCycle+cyclesToRun >= f.stepCycles[f.stepMode][f.currentStep]-1
}

func (f *frameCounter) write(value uint8) {
	f.newValue = int16(value)

	// 3 cycles after a write on an APU cycle, 4 between them
	f.writeDelay = 3
	if f.cpu.CycleCount()&0x01 != 0 {
		f.writeDelay = 4
	}

	f.inhibitIRQ = value&0x40 != 0
	if f.inhibitIRQ {
		f.cpu.ClearIRQSource(cpu.IRQFrameCounter)
	}
}
