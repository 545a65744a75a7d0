package apu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/state"
)

type fakeCPU struct {
	cycle       int64
	irq         cpu.IRQSource
	dmcRequests int
	dmcStops    int
}

func (c *fakeCPU) CycleCount() int64                      { return c.cycle }
func (c *fakeCPU) SetIRQSource(source cpu.IRQSource)      { c.irq |= source }
func (c *fakeCPU) ClearIRQSource(source cpu.IRQSource)    { c.irq &^= source }
func (c *fakeCPU) HasIRQSource(source cpu.IRQSource) bool { return c.irq&source != 0 }
func (c *fakeCPU) StartDMCTransfer()                      { c.dmcRequests++ }
func (c *fakeCPU) StopDMCTransfer()                       { c.dmcStops++ }

type captureSink struct {
	samples []int16
	rate    int
}

func (s *captureSink) WriteSamples(samples []int16, sampleRate int) {
	s.samples = append(s.samples, samples...)
	s.rate = sampleRate
}

func newTestAPU() (*APU, *fakeCPU) {
	c := &fakeCPU{}
	a := New(c, 44100)
	// let the power-on $4017 write land
	step(a, c, 10)
	return a, c
}

func step(a *APU, c *fakeCPU, cycles int) {
	for i := 0; i < cycles; i++ {
		c.cycle++
		a.ProcessCPUClock()
	}
}

func TestLengthCounter(t *testing.T) {
	t.Run("loads from the table when enabled", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4000, 0x00)
		a.WriteRAM(0x4015, 0x01)
		a.WriteRAM(0x4003, 0x08)
		step(a, c, 1)

		assert.Equal(t, uint8(254), a.pulse[0].counter)
		assert.Equal(t, uint8(0x01), a.PeekRAM(0x4015)&0x1F)
	})

	t.Run("ignored while disabled", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4003, 0x08)
		step(a, c, 1)

		assert.Zero(t, a.pulse[0].counter)
		assert.Zero(t, a.PeekRAM(0x4015)&0x1F)
	})

	t.Run("disabling clears the counter", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4015, 0x0F)
		a.WriteRAM(0x4003, 0x08)
		a.WriteRAM(0x4007, 0x08)
		a.WriteRAM(0x400B, 0x08)
		a.WriteRAM(0x400F, 0x08)
		step(a, c, 1)
		require.Equal(t, uint8(0x0F), a.PeekRAM(0x4015)&0x1F)

		a.WriteRAM(0x4015, 0x05)
		assert.Equal(t, uint8(0x05), a.PeekRAM(0x4015)&0x1F)
	})

	t.Run("half frames decrement", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4015, 0x01)
		a.WriteRAM(0x4003, 0x08)
		step(a, c, 1)

		// a full 4-step sequence has two half frames
		step(a, c, 29830)
		assert.Equal(t, uint8(252), a.pulse[0].counter)
	})

	t.Run("halt stops decrementing", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4000, 0x20)
		a.WriteRAM(0x4015, 0x01)
		a.WriteRAM(0x4003, 0x08)
		step(a, c, 29831)

		assert.Equal(t, uint8(254), a.pulse[0].counter)
	})

	t.Run("5-step mode clocks immediately", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4015, 0x01)
		a.WriteRAM(0x4003, 0x08)
		step(a, c, 1)
		require.Equal(t, uint8(254), a.pulse[0].counter)

		a.WriteRAM(0x4017, 0x80)
		step(a, c, 5)
		assert.Equal(t, uint8(253), a.pulse[0].counter)
	})
}

func TestFrameIRQ(t *testing.T) {
	t.Run("raised at the end of the 4-step sequence", func(t *testing.T) {
		c := &fakeCPU{}
		a := New(c, 44100)

		step(a, c, 29000)
		assert.False(t, c.HasIRQSource(cpu.IRQFrameCounter))

		step(a, c, 840)
		assert.True(t, c.HasIRQSource(cpu.IRQFrameCounter))
	})

	t.Run("reading status acknowledges it", func(t *testing.T) {
		c := &fakeCPU{}
		a := New(c, 44100)
		step(a, c, 29840)

		status := a.ReadRAM(0x4015)
		assert.Equal(t, uint8(0x40), status&0x40)
		assert.False(t, c.HasIRQSource(cpu.IRQFrameCounter))
		assert.Zero(t, a.ReadRAM(0x4015)&0x40)
	})

	t.Run("peek leaves it pending", func(t *testing.T) {
		c := &fakeCPU{}
		a := New(c, 44100)
		step(a, c, 29840)

		assert.Equal(t, uint8(0x40), a.PeekRAM(0x4015)&0x40)
		assert.True(t, c.HasIRQSource(cpu.IRQFrameCounter))
	})

	t.Run("inhibited", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4017, 0x40)
		step(a, c, 40000)

		assert.False(t, c.HasIRQSource(cpu.IRQFrameCounter))
	})

	t.Run("setting inhibit clears a pending IRQ", func(t *testing.T) {
		c := &fakeCPU{}
		a := New(c, 44100)
		step(a, c, 29840)
		require.True(t, c.HasIRQSource(cpu.IRQFrameCounter))

		a.WriteRAM(0x4017, 0x40)
		assert.False(t, c.HasIRQSource(cpu.IRQFrameCounter))
	})

	t.Run("never raised in 5-step mode", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4017, 0x80)
		step(a, c, 80000)

		assert.False(t, c.HasIRQSource(cpu.IRQFrameCounter))
	})

	t.Run("PAL sequence is longer", func(t *testing.T) {
		c := &fakeCPU{}
		a := New(c, 44100)
		a.SetNesModel(config.ModelPAL)
		a.Reset(false)

		step(a, c, 33000)
		assert.False(t, c.HasIRQSource(cpu.IRQFrameCounter))
		step(a, c, 300)
		assert.True(t, c.HasIRQSource(cpu.IRQFrameCounter))
	})
}

func TestDMC(t *testing.T) {
	t.Run("enabling requests the first byte", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4012, 0x00)
		a.WriteRAM(0x4013, 0x01)
		a.WriteRAM(0x4015, 0x10)
		assert.Zero(t, c.dmcRequests)

		step(a, c, 4)
		assert.Equal(t, 1, c.dmcRequests)
		assert.Equal(t, uint16(0xC000), a.DMCReadAddress())
		assert.Equal(t, uint8(0x10), a.PeekRAM(0x4015)&0x10)

		a.SetDMCReadBuffer(0x55)
		assert.Equal(t, uint16(0xC001), a.DMCReadAddress())
		assert.Equal(t, uint16(16), a.dmc.bytesRemaining)
	})

	t.Run("IRQ when the sample ends", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4010, 0x80)
		a.WriteRAM(0x4013, 0x00)
		a.WriteRAM(0x4015, 0x10)
		step(a, c, 4)

		a.SetDMCReadBuffer(0x12)
		assert.True(t, c.HasIRQSource(cpu.IRQDMC))
		assert.Equal(t, uint8(0x80), a.PeekRAM(0x4015)&0x90)

		// writing $4015 acknowledges it
		a.WriteRAM(0x4015, 0x00)
		assert.False(t, c.HasIRQSource(cpu.IRQDMC))
	})

	t.Run("clearing the IRQ enable acknowledges it", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4010, 0x80)
		a.WriteRAM(0x4013, 0x00)
		a.WriteRAM(0x4015, 0x10)
		step(a, c, 4)
		a.SetDMCReadBuffer(0x12)
		require.True(t, c.HasIRQSource(cpu.IRQDMC))

		a.WriteRAM(0x4010, 0x00)
		assert.False(t, c.HasIRQSource(cpu.IRQDMC))
	})

	t.Run("looping restarts without IRQ", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4010, 0xC0)
		a.WriteRAM(0x4012, 0x04)
		a.WriteRAM(0x4013, 0x00)
		a.WriteRAM(0x4015, 0x10)
		step(a, c, 4)

		a.SetDMCReadBuffer(0x12)
		assert.False(t, c.HasIRQSource(cpu.IRQDMC))
		assert.Equal(t, uint16(0xC100), a.DMCReadAddress())
		assert.Equal(t, uint16(1), a.dmc.bytesRemaining)
	})

	t.Run("address wraps to $8000", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4012, 0xFF)
		a.WriteRAM(0x4013, 0x04)
		a.WriteRAM(0x4015, 0x10)
		step(a, c, 4)
		require.Equal(t, uint16(0xFFC0), a.DMCReadAddress())

		for i := 0; i < 64; i++ {
			a.SetDMCReadBuffer(0)
		}
		assert.Equal(t, uint16(0x8000), a.DMCReadAddress())
		assert.Equal(t, uint16(1), a.dmc.bytesRemaining)
	})

	t.Run("disabling stops the transfer", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4013, 0x04)
		a.WriteRAM(0x4015, 0x10)
		step(a, c, 4)

		a.WriteRAM(0x4015, 0x00)
		step(a, c, 4)
		assert.Equal(t, 1, c.dmcStops)
		assert.Zero(t, a.PeekRAM(0x4015)&0x10)
	})

	t.Run("direct load sets the output level", func(t *testing.T) {
		a, _ := newTestAPU()
		a.WriteRAM(0x4011, 0xFF)
		assert.Equal(t, uint8(0x7F), a.dmc.outputLevel)
	})
}

func TestMixerOutput(t *testing.T) {
	assert.Zero(t, (&mixer{}).output())

	m := &mixer{}
	m.levels[channelPulse1] = 15
	m.levels[channelPulse2] = 15
	assert.InDelta(t, 95.88/(8128.0/30+100), m.output(), 1e-9)

	m = &mixer{}
	m.levels[channelTriangle] = 15
	m.levels[channelNoise] = 15
	m.levels[channelDMC] = 127
	assert.InDelta(t, 159.79/(1/(15.0/8227+15.0/12241+127.0/22638)+100), m.output(), 1e-9)
}

func TestSamples(t *testing.T) {
	t.Run("silent when nothing plays", func(t *testing.T) {
		sink := &captureSink{}
		a, c := newTestAPU()
		a.SetSampleSink(sink)
		step(a, c, 30000)
		a.EndFrame()

		require.NotEmpty(t, sink.samples)
		assert.Equal(t, 44100, sink.rate)
		for _, s := range sink.samples {
			assert.Zero(t, s)
		}
	})

	t.Run("pulse tone", func(t *testing.T) {
		sink := &captureSink{}
		c := &fakeCPU{}
		a := New(c, 44100)
		a.SetSampleSink(sink)

		a.WriteRAM(0x4015, 0x01)
		a.WriteRAM(0x4000, 0xBF)
		a.WriteRAM(0x4002, 0xFD)
		a.WriteRAM(0x4003, 0x08)
		step(a, c, 30000)
		a.EndFrame()

		// 30000 cycles at 1.79MHz
		assert.InDelta(t, 739, len(sink.samples), 2)

		var positive, negative int
		for _, s := range sink.samples {
			if s > 0 {
				positive++
			} else if s < 0 {
				negative++
			}
		}
		assert.NotZero(t, positive)
		assert.NotZero(t, negative)
	})

	t.Run("no sink", func(t *testing.T) {
		a, c := newTestAPU()
		a.WriteRAM(0x4015, 0x01)
		a.WriteRAM(0x4000, 0xBF)
		a.WriteRAM(0x4003, 0x08)
		assert.NotPanics(t, func() {
			step(a, c, 20000)
			a.EndFrame()
		})
		assert.Empty(t, a.mixer.deltas)
	})
}

func TestSoftReset(t *testing.T) {
	a, c := newTestAPU()
	a.WriteRAM(0x4012, 0x10)
	a.WriteRAM(0x4013, 0x02)
	a.WriteRAM(0x4017, 0x80)
	step(a, c, 10)
	a.WriteRAM(0x4015, 0x04)
	a.WriteRAM(0x400B, 0x08)
	step(a, c, 1)
	require.Equal(t, uint8(254), a.triangle.counter)

	a.Reset(true)
	assert.Equal(t, uint16(0xC400), a.dmc.sampleAddr)
	assert.Equal(t, uint16(0x21), a.dmc.sampleLength)
	assert.Equal(t, uint32(1), a.frameCounter.stepMode)
	assert.Equal(t, uint8(254), a.triangle.counter)

	a.Reset(false)
	assert.Equal(t, uint16(0xC000), a.dmc.sampleAddr)
	assert.Equal(t, uint32(0), a.frameCounter.stepMode)
	assert.Zero(t, a.triangle.counter)
}

func TestStreamState(t *testing.T) {
	play := func(a *APU, c *fakeCPU) {
		a.WriteRAM(0x4015, 0x0F)
		a.WriteRAM(0x4000, 0x9A)
		a.WriteRAM(0x4002, 0x40)
		a.WriteRAM(0x4003, 0x10)
		a.WriteRAM(0x4008, 0x81)
		a.WriteRAM(0x400A, 0x20)
		a.WriteRAM(0x400B, 0x18)
		a.WriteRAM(0x400C, 0x1C)
		a.WriteRAM(0x400E, 0x04)
		a.WriteRAM(0x400F, 0x08)
		step(a, c, 12345)
	}

	origCPU := &fakeCPU{}
	orig := New(origCPU, 44100)
	play(orig, origCPU)

	w := state.NewWriter()
	orig.StreamState(w)
	require.NoError(t, w.Err())

	restoredCPU := &fakeCPU{cycle: origCPU.cycle, irq: origCPU.irq}
	restored := New(restoredCPU, 44100)
	r := state.NewReader(w.Data())
	restored.StreamState(r)
	require.NoError(t, r.Err())
	assert.Zero(t, r.Remaining())

	assert.Equal(t, orig.PeekRAM(0x4015), restored.PeekRAM(0x4015))
	assert.Equal(t, orig.mixer.levels, restored.mixer.levels)

	origSink, restoredSink := &captureSink{}, &captureSink{}
	orig.SetSampleSink(origSink)
	restored.SetSampleSink(restoredSink)
	step(orig, origCPU, 20000)
	step(restored, restoredCPU, 20000)
	orig.EndFrame()
	restored.EndFrame()

	require.NotEmpty(t, origSink.samples)
	assert.Equal(t, origSink.samples, restoredSink.samples)
	assert.Equal(t, origCPU.irq, restoredCPU.irq)
}
