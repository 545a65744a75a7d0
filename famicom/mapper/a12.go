package mapper

import "github.com/valerio/go-famicom/famicom/state"

// cyclesPerFrame is the PPU frame length used to unwrap the frame cycle
// counter when a new frame starts between two notifications.
const cyclesPerFrame = 89342

type a12Change uint8

const (
	a12None a12Change = iota
	a12Rise
	a12Fall
)

// a12Watcher filters PPU address line 12 transitions. A rise only counts
// when the line stayed low for more than minDelay PPU cycles, which removes
// the glitches caused by the two fetches of each tile.
type a12Watcher struct {
	minDelay   uint32
	lastCycle  uint32
	cyclesDown uint32
}

func (w *a12Watcher) update(address uint16, frameCycle uint32) a12Change {
	result := a12None
	if w.lastCycle > frameCycle {
		w.cyclesDown += cyclesPerFrame - w.lastCycle + frameCycle
	} else {
		w.cyclesDown += frameCycle - w.lastCycle
	}

	if address&0x1000 == 0 {
		if w.cyclesDown == 0 {
			w.cyclesDown = 1
			result = a12Fall
		}
	} else {
		if w.cyclesDown > w.minDelay {
			result = a12Rise
		}
		w.cyclesDown = 0
	}
	w.lastCycle = frameCycle
	return result
}

func (w *a12Watcher) StreamState(s *state.Stream) {
	s.Uint32(&w.lastCycle)
	s.Uint32(&w.cyclesDown)
}
