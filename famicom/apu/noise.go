package apu

import "github.com/valerio/go-famicom/famicom/config"

var (
	noisePeriodsNTSC = [16]uint16{4, 8, 16, 32, 64, 96, 128, 160, 202, 254, 380, 508, 762, 1016, 2034, 4068}
	noisePeriodsPAL  = [16]uint16{4, 8, 14, 30, 60, 88, 118, 148, 188, 236, 354, 472, 708, 944, 1890, 3778}
)

type noise struct {
	envelope

	model         config.Model
	shiftRegister uint16
	mode          bool
}

func (n *noise) reset(soft bool) {
	n.resetEnvelope(soft)
	n.period = n.periods()[0] - 1
	n.shiftRegister = 1
	n.mode = false
}

func (n *noise) periods() *[16]uint16 {
	if n.model == config.ModelPAL || n.model == config.ModelDendy {
		return &noisePeriodsPAL
	}
	return &noisePeriodsNTSC
}

func (n *noise) muted() bool {
	// bit 0 of the shift register gates the output
	return n.shiftRegister&0x01 != 0
}

func (n *noise) clock() {
	tap := uint16(1)
	if n.mode {
		tap = 6
	}
	feedback := n.shiftRegister&0x01 ^ (n.shiftRegister>>tap)&0x01
	n.shiftRegister >>= 1
	n.shiftRegister |= feedback << 14

	if n.muted() {
		n.addOutput(0)
	} else {
		n.addOutput(int8(n.output()))
	}
}

func (n *noise) write(address uint16, value uint8) {
	switch address & 0x03 {
	case 0:
		n.initLength(value&0x20 != 0)
		n.initEnvelope(value)
	case 2:
		n.period = n.periods()[value&0x0F] - 1
		n.mode = value&0x80 != 0
	case 3:
		n.loadLength(value >> 3)
		n.restartEnvelope()
	}
}

func (n *noise) run(targetCycle uint32) {
	n.timer.run(targetCycle, n)
}
