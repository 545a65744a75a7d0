package apu

import (
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
)

var (
	dmcPeriodsNTSC = [16]uint16{428, 380, 340, 320, 286, 254, 226, 214, 190, 160, 142, 128, 106, 84, 72, 54}
	dmcPeriodsPAL  = [16]uint16{398, 354, 316, 298, 276, 236, 210, 198, 176, 148, 132, 118, 98, 78, 66, 50}
)

// dmc plays 1-bit delta encoded samples fetched from PRG space by the CPU's
// DMA unit.
type dmc struct {
	timer
	cpu   CPU
	model config.Model

	sampleAddr   uint16
	sampleLength uint16
	outputLevel  uint8
	irqEnabled   bool
	loop         bool

	currentAddr    uint16
	bytesRemaining uint16
	readBuffer     uint8
	bufferEmpty    bool

	shiftRegister uint8
	bitsRemaining uint8
	silence       bool
	needToRun     bool

	disableDelay       uint8
	transferStartDelay uint8
}

func (d *dmc) reset(soft bool) {
	d.timer.reset()
	if !soft {
		// sample address and length survive a soft reset
		d.sampleAddr = 0xC000
		d.sampleLength = 1
	}
	d.outputLevel = 0
	d.irqEnabled = false
	d.loop = false
	d.currentAddr = 0
	d.bytesRemaining = 0
	d.readBuffer = 0
	d.bufferEmpty = true
	d.shiftRegister = 0
	d.bitsRemaining = 8
	d.silence = true
	d.needToRun = false
	d.disableDelay = 0
	d.transferStartDelay = 0

	d.period = d.periods()[0] - 1
	d.remaining = d.period
}

func (d *dmc) periods() *[16]uint16 {
	if d.model == config.ModelPAL || d.model == config.ModelDendy {
		return &dmcPeriodsPAL
	}
	return &dmcPeriodsNTSC
}

func (d *dmc) initSample() {
	d.currentAddr = d.sampleAddr
	d.bytesRemaining = d.sampleLength
	d.needToRun = d.needToRun || d.bytesRemaining > 0
}

func (d *dmc) startTransfer() {
	if d.bufferEmpty && d.bytesRemaining > 0 {
		d.cpu.StartDMCTransfer()
	}
}

func (d *dmc) readAddress() uint16 {
	return d.currentAddr
}

func (d *dmc) setReadBuffer(value uint8) {
	if d.bytesRemaining == 0 {
		return
	}

	d.readBuffer = value
	d.bufferEmpty = false

	// the address wraps to $8000, not $0000
	d.currentAddr++
	if d.currentAddr == 0 {
		d.currentAddr = 0x8000
	}

	d.bytesRemaining--
	if d.bytesRemaining == 0 {
		if d.loop {
			d.initSample()
		} else if d.irqEnabled {
			d.cpu.SetIRQSource(cpu.IRQDMC)
		}
	}
}

func (d *dmc) clock() {
	if !d.silence {
		if d.shiftRegister&0x01 != 0 {
			if d.outputLevel <= 125 {
				d.outputLevel += 2
			}
		} else if d.outputLevel >= 2 {
			d.outputLevel -= 2
		}
		d.shiftRegister >>= 1
	}

	d.bitsRemaining--
	if d.bitsRemaining == 0 {
		d.bitsRemaining = 8
		if d.bufferEmpty {
			d.silence = true
		} else {
			d.silence = false
			d.shiftRegister = d.readBuffer
			d.bufferEmpty = true
			d.needToRun = true
			d.startTransfer()
		}
	}

	d.addOutput(int8(d.outputLevel))
}

// irqPending reports whether the sample runs out within cycles, so the APU
// catches up in time to raise the IRQ on the right cycle.
func (d *dmc) irqPending(cycles uint32) bool {
	if d.irqEnabled && d.bytesRemaining > 0 {
		cyclesToEmpty := (uint32(d.bitsRemaining) + uint32(d.bytesRemaining-1)*8) * uint32(d.period)
		return cycles >= cyclesToEmpty
	}
	return false
}

func (d *dmc) status() bool {
	return d.bytesRemaining > 0
}

func (d *dmc) write(address uint16, value uint8) {
	switch address & 0x03 {
	case 0:
		d.irqEnabled = value&0x80 != 0
		d.loop = value&0x40 != 0
		d.period = d.periods()[value&0x0F] - 1
		if !d.irqEnabled {
			d.cpu.ClearIRQSource(cpu.IRQDMC)
		}
	case 1:
		d.outputLevel = value & 0x7F
		d.addOutput(int8(d.outputLevel))
	case 2:
		d.sampleAddr = 0xC000 | uint16(value)<<6
	case 3:
		d.sampleLength = uint16(value)<<4 | 0x0001
	}
}

func (d *dmc) setEnabled(enabled bool) {
	oddCycle := d.cpu.CycleCount()&0x01 != 0
	if !enabled {
		if d.disableDelay == 0 {
			// takes effect on the next APU cycle
			d.disableDelay = 2
			if oddCycle {
				d.disableDelay = 3
			}
		}
		d.needToRun = true
	} else if d.bytesRemaining == 0 {
		d.initSample()
		d.transferStartDelay = 2
		if oddCycle {
			d.transferStartDelay = 3
		}
		d.needToRun = true
	}
}

func (d *dmc) processClock() {
	if d.disableDelay > 0 {
		d.disableDelay--
		if d.disableDelay == 0 {
			d.bytesRemaining = 0
			d.cpu.StopDMCTransfer()
		}
	}
	if d.transferStartDelay > 0 {
		d.transferStartDelay--
		if d.transferStartDelay == 0 {
			d.startTransfer()
		}
	}
	d.needToRun = d.disableDelay > 0 || d.transferStartDelay > 0 || d.bytesRemaining > 0
}

func (d *dmc) needsToRun() bool {
	if d.needToRun {
		d.processClock()
	}
	return d.needToRun
}

func (d *dmc) run(targetCycle uint32) {
	d.timer.run(targetCycle, d)
}
