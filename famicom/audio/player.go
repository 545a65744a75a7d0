package audio

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// Player streams samples to the sound card through oto. The emulation
// side pushes with WriteSamples, oto pulls with Read on its own goroutine.
type Player struct {
	ctx    *oto.Context
	player *oto.Player
	queue  *sampleQueue

	mu      sync.Mutex
	started bool
}

// NewPlayer opens the audio device. Samples are buffered for at most
// roughly a fifth of a second; older ones are dropped when the emulation
// runs ahead.
func NewPlayer(sampleRate int) (*Player, error) {
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio device: %w", err)
	}
	<-ready

	p := &Player{
		ctx:   ctx,
		queue: newSampleQueue(sampleRate / 5),
	}
	p.player = ctx.NewPlayer(p)
	return p, nil
}

func (p *Player) WriteSamples(samples []int16, _ int) {
	p.queue.push(samples)
}

// Read fills buf with little-endian samples, padding with the last value
// on underrun.
func (p *Player) Read(buf []byte) (int, error) {
	n := len(buf) / 2
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(p.queue.pop()))
	}
	return n * 2, nil
}

func (p *Player) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		p.player.Play()
		p.started = true
	}
}

// Pause stops playback and drops buffered samples.
func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.player.Pause()
		p.started = false
	}
	p.queue.clear()
}

func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
	return p.player.Close()
}

// sampleQueue is a bounded FIFO shared by the emulation and audio
// goroutines.
type sampleQueue struct {
	mu    sync.Mutex
	buf   []int16
	head  int
	size  int
	last  int16
	drops int
}

func newSampleQueue(capacity int) *sampleQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &sampleQueue{buf: make([]int16, capacity)}
}

func (q *sampleQueue) push(samples []int16) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, s := range samples {
		if q.size == len(q.buf) {
			q.head = (q.head + 1) % len(q.buf)
			q.size--
			q.drops++
		}
		q.buf[(q.head+q.size)%len(q.buf)] = s
		q.size++
	}
}

func (q *sampleQueue) pop() int16 {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return q.last
	}
	q.last = q.buf[q.head]
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return q.last
}

func (q *sampleQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

func (q *sampleQueue) clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.head, q.size = 0, 0
}
