package apu

var lengthTable = [32]uint8{
	10, 254, 20, 2, 40, 4, 80, 6, 160, 8, 60, 10, 14, 12, 26, 14,
	12, 16, 24, 18, 48, 20, 96, 22, 192, 24, 72, 26, 16, 28, 32, 30,
}

type clocker interface {
	clock()
}

// timer is the period divider every channel is built on. It counts CPU
// cycles; channels clocked at the APU rate double their period.
type timer struct {
	mixer         *mixer
	channel       channelID
	lastOutput    int8
	previousCycle uint32
	remaining     uint16
	period        uint16
}

func (t *timer) reset() {
	t.remaining = 0
	t.period = 0
	t.lastOutput = 0
	t.previousCycle = 0
}

// run clocks c once per timer expiry up to targetCycle.
func (t *timer) run(targetCycle uint32, c clocker) {
	cyclesToRun := int32(targetCycle - t.previousCycle)
	for cyclesToRun > int32(t.remaining) {
		cyclesToRun -= int32(t.remaining) + 1
		t.previousCycle += uint32(t.remaining) + 1
		c.clock()
		t.remaining = t.period
	}
	t.remaining -= uint16(cyclesToRun)
	t.previousCycle = targetCycle
}

func (t *timer) addOutput(output int8) {
	if output != t.lastOutput {
		t.mixer.addDelta(t.channel, t.previousCycle, int16(output)-int16(t.lastOutput))
		t.lastOutput = output
	}
}

func (t *timer) endFrame() {
	t.previousCycle = 0
}

// lengthCounter silences a channel after a programmable number of half
// frames. Reloads are applied after the frame counter has run for the
// cycle, so a reload racing a length clock wins only when the counter
// wasn't clocked.
type lengthCounter struct {
	timer
	apu *APU

	enabled       bool
	halt          bool
	newHalt       bool
	counter       uint8
	reloadValue   uint8
	previousValue uint8
}

func (l *lengthCounter) resetLength(soft bool) {
	l.timer.reset()
	l.enabled = false
	if soft && l.channel == channelTriangle {
		// the triangle keeps its length counter across a soft reset
		return
	}
	l.halt = false
	l.newHalt = false
	l.counter = 0
	l.reloadValue = 0
	l.previousValue = 0
}

func (l *lengthCounter) initLength(halt bool) {
	l.apu.needToRun = true
	l.newHalt = halt
}

func (l *lengthCounter) loadLength(index uint8) {
	if l.enabled {
		l.reloadValue = lengthTable[index&0x1F]
		l.previousValue = l.counter
		l.apu.needToRun = true
	}
}

func (l *lengthCounter) reloadCounter() {
	if l.reloadValue != 0 {
		if l.counter == l.previousValue {
			l.counter = l.reloadValue
		}
		l.reloadValue = 0
	}
	l.halt = l.newHalt
}

func (l *lengthCounter) tickLength() {
	if l.counter > 0 && !l.halt {
		l.counter--
	}
}

func (l *lengthCounter) setEnabled(enabled bool) {
	if !enabled {
		l.counter = 0
	}
	l.enabled = enabled
}

func (l *lengthCounter) status() bool {
	return l.counter > 0
}

type envelope struct {
	lengthCounter

	constantVolume bool
	volume         uint8
	start          bool
	divider        int8
	decay          uint8
}

func (e *envelope) resetEnvelope(soft bool) {
	e.resetLength(soft)
	e.constantVolume = false
	e.volume = 0
	e.start = false
	e.divider = 0
	e.decay = 0
}

func (e *envelope) initEnvelope(value uint8) {
	e.constantVolume = value&0x10 != 0
	e.volume = value & 0x0F
}

func (e *envelope) restartEnvelope() {
	e.start = true
}

func (e *envelope) output() uint8 {
	if e.counter == 0 {
		return 0
	}
	if e.constantVolume {
		return e.volume
	}
	return e.decay
}

func (e *envelope) tickEnvelope() {
	if e.start {
		e.start = false
		e.decay = 15
		e.divider = int8(e.volume)
		return
	}

	e.divider--
	if e.divider < 0 {
		e.divider = int8(e.volume)
		if e.decay > 0 {
			e.decay--
		} else if e.halt {
			// the halt flag doubles as the envelope loop flag
			e.decay = 15
		}
	}
}
