package audio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAVSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	sink, err := NewWAVSink(path, 44100)
	require.NoError(t, err)

	sink.WriteSamples([]int16{0, 1000, -1000, 32767}, 44100)
	sink.WriteSamples([]int16{5, 6}, 48000)
	sink.WriteSamples([]int16{-32768}, 44100)
	assert.Equal(t, 5, sink.Written())
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)
	assert.Equal(t, 44100, buf.Format.SampleRate)
	assert.Equal(t, 1, buf.Format.NumChannels)
	assert.Equal(t, []int{0, 1000, -1000, 32767, -32768}, buf.Data)
}

type recordingSink struct {
	samples []int16
	rate    int
}

func (r *recordingSink) WriteSamples(samples []int16, rate int) {
	r.samples = append(r.samples, samples...)
	r.rate = rate
}

func TestMultiSink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	MultiSink{a, b}.WriteSamples([]int16{1, 2}, 48000)
	assert.Equal(t, []int16{1, 2}, a.samples)
	assert.Equal(t, []int16{1, 2}, b.samples)
	assert.Equal(t, 48000, b.rate)
}

func TestSampleQueue(t *testing.T) {
	t.Run("fifo order", func(t *testing.T) {
		q := newSampleQueue(4)
		q.push([]int16{1, 2, 3})
		assert.Equal(t, 3, q.len())
		assert.Equal(t, int16(1), q.pop())
		assert.Equal(t, int16(2), q.pop())
		assert.Equal(t, int16(3), q.pop())
	})

	t.Run("underrun repeats the last sample", func(t *testing.T) {
		q := newSampleQueue(4)
		assert.Equal(t, int16(0), q.pop())
		q.push([]int16{7})
		q.pop()
		assert.Equal(t, int16(7), q.pop())
	})

	t.Run("overflow drops the oldest", func(t *testing.T) {
		q := newSampleQueue(3)
		q.push([]int16{1, 2, 3, 4, 5})
		assert.Equal(t, 3, q.len())
		assert.Equal(t, 2, q.drops)
		assert.Equal(t, int16(3), q.pop())
		assert.Equal(t, int16(4), q.pop())
		assert.Equal(t, int16(5), q.pop())
	})

	t.Run("clear", func(t *testing.T) {
		q := newSampleQueue(3)
		q.push([]int16{1, 2})
		q.clear()
		assert.Equal(t, 0, q.len())
	})
}
