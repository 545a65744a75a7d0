package apu

import (
	"slices"

	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/timing"
)

type channelID uint8

const (
	channelPulse1 channelID = iota
	channelPulse2
	channelTriangle
	channelNoise
	channelDMC
	channelCount
)

// SampleSink receives mixed audio once per flush: signed 16-bit mono at
// sampleRate. The slice is reused after the call returns.
type SampleSink interface {
	WriteSamples(samples []int16, sampleRate int)
}

type delta struct {
	cycle   uint32
	channel channelID
	value   int16
}

// mixer turns per-channel output changes into samples with the console's
// nonlinear DAC response, box-filtered down to the output rate.
type mixer struct {
	sink       SampleSink
	sampleRate int
	clockRate  int

	levels [channelCount]int16
	deltas []delta

	phase   int
	sum     float64
	count   int
	prevIn  float64
	prevOut float64
	samples []int16
}

func newMixer(sampleRate int) *mixer {
	return &mixer{
		sampleRate: sampleRate,
		clockRate:  timing.ClockRateNTSC,
		deltas:     make([]delta, 0, 4096),
	}
}

func (m *mixer) setNesModel(model config.Model) {
	m.clockRate = timing.ClockRate(model)
}

func (m *mixer) reset() {
	m.levels = [channelCount]int16{}
	m.deltas = m.deltas[:0]
	m.phase = 0
	m.sum, m.count = 0, 0
	m.prevIn, m.prevOut = 0, 0
}

func (m *mixer) addDelta(channel channelID, cycle uint32, value int16) {
	m.deltas = append(m.deltas, delta{cycle: cycle, channel: channel, value: value})
}

// output is the DAC level for the current channel levels, 0 to ~1.
func (m *mixer) output() float64 {
	var pulseOut, tndOut float64

	if pulses := float64(m.levels[channelPulse1] + m.levels[channelPulse2]); pulses > 0 {
		pulseOut = 95.88 / (8128/pulses + 100)
	}

	t := float64(m.levels[channelTriangle])
	n := float64(m.levels[channelNoise])
	d := float64(m.levels[channelDMC])
	if t > 0 || n > 0 || d > 0 {
		tndOut = 159.79 / (1/(t/8227+n/12241+d/22638) + 100)
	}
	return pulseOut + tndOut
}

// endFrame renders the first cycles of the buffered deltas and hands the
// samples to the sink.
func (m *mixer) endFrame(cycles uint32) {
	slices.SortStableFunc(m.deltas, func(a, b delta) int {
		return int(a.cycle) - int(b.cycle)
	})

	if m.sink == nil || m.sampleRate <= 0 {
		for _, d := range m.deltas {
			m.levels[d.channel] += d.value
		}
		m.deltas = m.deltas[:0]
		return
	}

	next := 0
	level := m.output()
	for cycle := uint32(0); cycle < cycles; cycle++ {
		changed := false
		for next < len(m.deltas) && m.deltas[next].cycle <= cycle {
			d := m.deltas[next]
			m.levels[d.channel] += d.value
			next++
			changed = true
		}
		if changed {
			level = m.output()
		}

		m.sum += level
		m.count++
		m.phase += m.sampleRate
		if m.phase >= m.clockRate {
			m.phase -= m.clockRate
			m.emit(m.sum / float64(m.count))
			m.sum, m.count = 0, 0
		}
	}
	for ; next < len(m.deltas); next++ {
		d := m.deltas[next]
		m.levels[d.channel] += d.value
	}
	m.deltas = m.deltas[:0]

	if len(m.samples) > 0 {
		m.sink.WriteSamples(m.samples, m.sampleRate)
		m.samples = m.samples[:0]
	}
}

func (m *mixer) emit(in float64) {
	// DC blocker standing in for the console's output high-pass
	out := in - m.prevIn + 0.996*m.prevOut
	m.prevIn, m.prevOut = in, out

	v := out * 32767
	switch {
	case v > 32767:
		v = 32767
	case v < -32768:
		v = -32768
	}
	m.samples = append(m.samples, int16(v))
}
