// Package audio delivers the APU's mixed samples to a WAV file or the
// host's sound card.
package audio

import "github.com/valerio/go-famicom/famicom/apu"

// MultiSink fans samples out to several sinks.
type MultiSink []apu.SampleSink

func (m MultiSink) WriteSamples(samples []int16, sampleRate int) {
	for _, s := range m {
		s.WriteSamples(samples, sampleRate)
	}
}

var _ apu.SampleSink = MultiSink(nil)
