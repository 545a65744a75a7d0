// Package backend defines the frontends that present a running console:
// they render frames and turn platform input into actions.
package backend

import (
	"github.com/valerio/go-famicom/famicom/input"
	"github.com/valerio/go-famicom/famicom/video"
)

// Backend is a complete platform (rendering and input). Backends:
//   - render frames to their output (terminal, SDL window, PNG files)
//   - translate platform events to actions via the InputManager
//   - handle their own features such as snapshots
type Backend interface {
	// Init configures the backend. It must be called before Update.
	Init(config BackendConfig) error

	// Update polls platform events, forwards them to the InputManager and
	// renders frame. A nil frame only polls.
	Update(frame *video.FrameBuffer) error

	Cleanup() error
}

type BackendConfig struct {
	Title        string
	Scale        int
	Callbacks    BackendCallbacks
	InputManager *input.Manager // shared by every backend
	Debug        DebugProvider  // optional status panel, backends may ignore it
}

// DebugProvider reports a few lines of emulator status for display.
type DebugProvider interface {
	DebugLines() []string
}

// BackendCallbacks lets a backend talk back to the emulator.
type BackendCallbacks struct {
	// OnQuit is called when the backend wants to shut down, e.g. the
	// window was closed or the frame limit was reached.
	OnQuit func()
}

// Quit calls OnQuit if it is set.
func (c BackendCallbacks) Quit() {
	if c.OnQuit != nil {
		c.OnQuit()
	}
}
