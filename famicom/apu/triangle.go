package apu

var triangleSequence = [32]int8{
	15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1, 0,
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
}

type triangle struct {
	lengthCounter

	linearControl       bool
	linearReload        bool
	linearCounter       uint8
	linearCounterReload uint8
	sequencePosition    uint8
}

func (t *triangle) reset(soft bool) {
	t.resetLength(soft)
	t.linearControl = false
	t.linearReload = false
	t.linearCounter = 0
	t.linearCounterReload = 0
	t.sequencePosition = 0
}

func (t *triangle) clock() {
	// the sequencer only moves while both counters are non-zero
	if t.counter > 0 && t.linearCounter > 0 {
		t.sequencePosition = (t.sequencePosition + 1) & 0x1F
		t.addOutput(triangleSequence[t.sequencePosition])
	}
}

func (t *triangle) write(address uint16, value uint8) {
	switch address & 0x03 {
	case 0:
		t.linearControl = value&0x80 != 0
		t.linearCounterReload = value & 0x7F
		t.initLength(t.linearControl)
	case 2:
		t.period = t.period&0xFF00 | uint16(value)
	case 3:
		t.loadLength(value >> 3)
		t.period = t.period&0x00FF | uint16(value&0x07)<<8
		t.linearReload = true
	}
}

func (t *triangle) tickLinearCounter() {
	if t.linearReload {
		t.linearCounter = t.linearCounterReload
	} else if t.linearCounter > 0 {
		t.linearCounter--
	}
	if !t.linearControl {
		t.linearReload = false
	}
}

func (t *triangle) run(targetCycle uint32) {
	t.timer.run(targetCycle, t)
}
