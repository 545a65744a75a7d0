package timing

import (
	"time"

	"github.com/valerio/go-famicom/famicom/config"
)

// Limiter controls frame rate timing for emulation.
type Limiter interface {
	// WaitForNextFrame blocks until it's time for the next frame.
	// Returns immediately if timing is behind schedule.
	WaitForNextFrame()

	// Reset resets the timing state, useful after pauses.
	Reset()
}

// NewNoOpLimiter returns a limiter that doesn't limit (for headless mode).
func NewNoOpLimiter() Limiter {
	return &noOpLimiter{}
}

type noOpLimiter struct{}

func (n *noOpLimiter) WaitForNextFrame() {}
func (n *noOpLimiter) Reset()            {}

// CPU clock rates in Hz.
const (
	ClockRateNTSC  = 1789773
	ClockRatePAL   = 1662607
	ClockRateDendy = 1773448
)

// ClockRate returns the CPU frequency for a region. Auto counts as NTSC.
func ClockRate(model config.Model) int {
	switch model {
	case config.ModelPAL:
		return ClockRatePAL
	case config.ModelDendy:
		return ClockRateDendy
	default:
		return ClockRateNTSC
	}
}

// FrameDelay returns the length of a frame in milliseconds at 100% speed.
func FrameDelay(model config.Model, integerFPS bool) float64 {
	pal := model == config.ModelPAL || model == config.ModelDendy
	switch {
	case integerFPS && pal:
		return 20
	case integerFPS:
		return 1000.0 / 60
	case pal:
		return 19.99720920217466
	default:
		return 16.639263992
	}
}

// FrameDuration returns the target duration of a single frame at the given
// emulation speed in percent. A speed of 0 means unthrottled and returns 0.
func FrameDuration(model config.Model, integerFPS bool, speed int) time.Duration {
	if speed <= 0 {
		return 0
	}
	ms := FrameDelay(model, integerFPS) * 100 / float64(speed)
	return time.Duration(ms * float64(time.Millisecond))
}

// New picks a limiter for the settings: no limit when unthrottled, the
// adaptive limiter otherwise.
func New(s *config.Settings, model config.Model) Limiter {
	d := FrameDuration(model, s.IntegerFPS, s.EmulationSpeed)
	if d == 0 {
		return NewNoOpLimiter()
	}
	return NewAdaptiveLimiter(d)
}
