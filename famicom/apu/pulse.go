package apu

var dutySequences = [4][8]uint8{
	{0, 0, 0, 0, 0, 0, 0, 1},
	{0, 0, 0, 0, 0, 0, 1, 1},
	{0, 0, 0, 0, 1, 1, 1, 1},
	{1, 1, 1, 1, 1, 1, 0, 0},
}

type pulse struct {
	envelope

	// the first pulse negates with ones' complement
	isChannel1 bool

	duty    uint8
	dutyPos uint8

	sweepEnabled      bool
	sweepPeriod       uint8
	sweepNegate       bool
	sweepShift        uint8
	reloadSweep       bool
	sweepDivider      uint8
	sweepTargetPeriod uint32
	realPeriod        uint16
}

func (p *pulse) reset(soft bool) {
	p.resetEnvelope(soft)
	p.duty = 0
	p.dutyPos = 0
	p.realPeriod = 0
	p.sweepEnabled = false
	p.sweepPeriod = 0
	p.sweepNegate = false
	p.sweepShift = 0
	p.reloadSweep = false
	p.sweepDivider = 0
	p.sweepTargetPeriod = 0
	p.updateTargetPeriod()
}

func (p *pulse) muted() bool {
	return p.realPeriod < 8 || (!p.sweepNegate && p.sweepTargetPeriod > 0x7FF)
}

func (p *pulse) initSweep(value uint8) {
	p.sweepEnabled = value&0x80 != 0
	p.sweepNegate = value&0x08 != 0
	p.sweepPeriod = (value&0x70)>>4 + 1
	p.sweepShift = value & 0x07
	p.updateTargetPeriod()
	p.reloadSweep = true
}

func (p *pulse) updateTargetPeriod() {
	shift := uint32(p.realPeriod >> p.sweepShift)
	if p.sweepNegate {
		p.sweepTargetPeriod = uint32(p.realPeriod) - shift
		if p.isChannel1 {
			p.sweepTargetPeriod--
		}
	} else {
		p.sweepTargetPeriod = uint32(p.realPeriod) + shift
	}
}

func (p *pulse) setPeriod(period uint16) {
	p.realPeriod = period
	// the sequencer steps every other CPU cycle
	p.period = period*2 + 1
	p.updateTargetPeriod()
}

func (p *pulse) updateOutput() {
	if p.muted() {
		p.addOutput(0)
	} else {
		p.addOutput(int8(dutySequences[p.duty][p.dutyPos] * p.output()))
	}
}

func (p *pulse) clock() {
	p.dutyPos = (p.dutyPos - 1) & 0x07
	p.updateOutput()
}

func (p *pulse) write(address uint16, value uint8) {
	switch address & 0x03 {
	case 0:
		p.initLength(value&0x20 != 0)
		p.initEnvelope(value)
		p.duty = value >> 6
	case 1:
		p.initSweep(value)
	case 2:
		p.setPeriod(p.realPeriod&0x0700 | uint16(value))
	case 3:
		p.loadLength(value >> 3)
		p.setPeriod(p.realPeriod&0x00FF | uint16(value&0x07)<<8)
		p.dutyPos = 0
		p.restartEnvelope()
	}
	p.updateOutput()
}

func (p *pulse) tickSweep() {
	p.sweepDivider--
	if p.sweepDivider == 0 {
		if p.sweepShift > 0 && p.sweepEnabled && p.realPeriod >= 8 && p.sweepTargetPeriod <= 0x7FF {
			p.setPeriod(uint16(p.sweepTargetPeriod))
		}
		p.sweepDivider = p.sweepPeriod
	}
	if p.reloadSweep {
		p.sweepDivider = p.sweepPeriod
		p.reloadSweep = false
	}
}

func (p *pulse) tickEnvelope() {
	p.envelope.tickEnvelope()
	p.updateOutput()
}

func (p *pulse) run(targetCycle uint32) {
	p.timer.run(targetCycle, p)
}
