package apu

import (
	"math"

	"github.com/valerio/go-famicom/famicom/state"
)

// StreamState ends the current audio frame before saving so a restored
// state starts with empty buffers.
func (a *APU) StreamState(s *state.Stream) {
	if s.Saving() {
		a.EndFrame()
	}

	s.Uint32(&a.previousCycle)
	s.Uint32(&a.currentCycle)
	s.Bool(&a.enabled)
	s.Bool(&a.needToRun)

	a.pulse[0].stream(s)
	a.pulse[1].stream(s)
	a.triangle.stream(s)
	a.noise.stream(s)
	a.dmc.stream(s)
	a.frameCounter.stream(s)

	a.mixer.stream(s)
}

func (m *mixer) stream(s *state.Stream) {
	for i := range m.levels {
		s.Int16(&m.levels[i])
	}
	s.Int(&m.phase)
	s.Int(&m.count)
	streamFloat(s, &m.sum)
	streamFloat(s, &m.prevIn)
	streamFloat(s, &m.prevOut)
}

func streamFloat(s *state.Stream, f *float64) {
	bits := math.Float64bits(*f)
	s.Uint64(&bits)
	*f = math.Float64frombits(bits)
}

func (t *timer) stream(s *state.Stream) {
	s.Int8(&t.lastOutput)
	s.Uint32(&t.previousCycle)
	s.Uint16(&t.remaining)
	s.Uint16(&t.period)
}

func (l *lengthCounter) stream(s *state.Stream) {
	l.timer.stream(s)
	s.Bool(&l.enabled)
	s.Bool(&l.halt)
	s.Bool(&l.newHalt)
	s.Uint8(&l.counter)
	s.Uint8(&l.reloadValue)
	s.Uint8(&l.previousValue)
}

func (e *envelope) stream(s *state.Stream) {
	e.lengthCounter.stream(s)
	s.Bool(&e.constantVolume)
	s.Uint8(&e.volume)
	s.Bool(&e.start)
	s.Int8(&e.divider)
	s.Uint8(&e.decay)
}

func (p *pulse) stream(s *state.Stream) {
	p.envelope.stream(s)
	s.Uint8(&p.duty)
	s.Uint8(&p.dutyPos)
	s.Bool(&p.sweepEnabled)
	s.Uint8(&p.sweepPeriod)
	s.Bool(&p.sweepNegate)
	s.Uint8(&p.sweepShift)
	s.Bool(&p.reloadSweep)
	s.Uint8(&p.sweepDivider)
	s.Uint32(&p.sweepTargetPeriod)
	s.Uint16(&p.realPeriod)
}

func (t *triangle) stream(s *state.Stream) {
	t.lengthCounter.stream(s)
	s.Bool(&t.linearControl)
	s.Bool(&t.linearReload)
	s.Uint8(&t.linearCounter)
	s.Uint8(&t.linearCounterReload)
	s.Uint8(&t.sequencePosition)
}

func (n *noise) stream(s *state.Stream) {
	n.envelope.stream(s)
	s.Uint16(&n.shiftRegister)
	s.Bool(&n.mode)
}

func (d *dmc) stream(s *state.Stream) {
	d.timer.stream(s)
	s.Uint16(&d.sampleAddr)
	s.Uint16(&d.sampleLength)
	s.Uint8(&d.outputLevel)
	s.Bool(&d.irqEnabled)
	s.Bool(&d.loop)
	s.Uint16(&d.currentAddr)
	s.Uint16(&d.bytesRemaining)
	s.Uint8(&d.readBuffer)
	s.Bool(&d.bufferEmpty)
	s.Uint8(&d.shiftRegister)
	s.Uint8(&d.bitsRemaining)
	s.Bool(&d.silence)
	s.Bool(&d.needToRun)
	s.Uint8(&d.disableDelay)
	s.Uint8(&d.transferStartDelay)
}

func (f *frameCounter) stream(s *state.Stream) {
	s.Uint32(&f.previousCycle)
	s.Uint32(&f.currentStep)
	s.Uint32(&f.stepMode)
	s.Bool(&f.inhibitIRQ)
	s.Uint8(&f.blockTick)
	s.Int16(&f.newValue)
	s.Int8(&f.writeDelay)
}
