package console

import (
	"context"
	"errors"
	"log/slog"

	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/timing"
)

// ErrStop can be returned by a frame callback to end Run cleanly.
var ErrStop = errors.New("stop requested")

const requestQueueSize = 32

type request struct {
	fn   func(c *Console) error
	done chan error
}

// Runner drives a console from a single goroutine. Everything that
// touches the console from elsewhere goes through Do or Post and runs
// between frames.
type Runner struct {
	console  *Console
	requests chan request

	limiter       timing.Limiter
	customLimiter bool
	limiterModel  config.Model
	limiterSpeed  int

	paused    bool
	step      bool
	frames    int
	maxFrames int
}

func NewRunner(c *Console) *Runner {
	return &Runner{
		console:  c,
		requests: make(chan request, requestQueueSize),
	}
}

// SetLimiter replaces the pacing chosen from the settings.
func (r *Runner) SetLimiter(l timing.Limiter) {
	r.limiter = l
	r.customLimiter = l != nil
}

// SetFrameLimit stops Run after n frames, 0 runs until cancelled.
func (r *Runner) SetFrameLimit(n int) {
	r.maxFrames = n
}

// Frames is the number of frames emulated by Run.
func (r *Runner) Frames() int {
	return r.frames
}

func (r *Runner) Paused() bool {
	return r.paused
}

// Run emulates frames until ctx is done, the frame limit is hit, or
// afterFrame fails. afterFrame is called once per loop, also while paused,
// so a frontend keeps polling input. It returns ErrStop to quit.
func (r *Runner) Run(ctx context.Context, afterFrame func() error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := r.serve(); err != nil {
			return err
		}
		r.updateLimiter()

		if !r.paused || r.step {
			r.step = false
			if err := r.console.RunSingleFrame(); err != nil && !errors.Is(err, cpu.ErrJammed) {
				return err
			}
			r.frames++
		}

		if afterFrame != nil {
			if err := afterFrame(); err != nil {
				if errors.Is(err, ErrStop) {
					return nil
				}
				return err
			}
		}

		if r.maxFrames > 0 && r.frames >= r.maxFrames {
			return nil
		}
		r.limiter.WaitForNextFrame()
	}
}

// serve runs the queued requests. Only errors from the console being
// unusable stop the loop, the rest are handed back to the caller.
func (r *Runner) serve() error {
	for {
		select {
		case req := <-r.requests:
			err := req.fn(r.console)
			if req.done != nil {
				req.done <- err
			} else if err != nil {
				slog.Error("Request failed", "error", err)
			}
			if !r.console.initialized {
				return ErrNotInitialized
			}
		default:
			return nil
		}
	}
}

func (r *Runner) updateLimiter() {
	if r.customLimiter {
		return
	}
	model := r.console.Model()
	speed := r.console.settings.EmulationSpeed
	if r.limiter != nil && model == r.limiterModel && speed == r.limiterSpeed {
		return
	}
	d := timing.FrameDuration(model, r.console.settings.IntegerFPS, speed)
	if adaptive, ok := r.limiter.(*timing.AdaptiveLimiter); ok && d > 0 {
		// keep the schedule, only the target changes
		adaptive.SetFrameDuration(d)
	} else {
		r.limiter = timing.New(r.console.settings, model)
	}
	r.limiterModel = model
	r.limiterSpeed = speed
}

// Do runs fn on the emulation goroutine and waits for its result. It must
// not be called from afterFrame.
func (r *Runner) Do(ctx context.Context, fn func(c *Console) error) error {
	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case r.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn without waiting. Failures are logged. Safe to call from
// afterFrame and input callbacks.
func (r *Runner) Post(fn func(c *Console) error) {
	select {
	case r.requests <- request{fn: fn}:
	default:
		slog.Warn("Request queue full, dropping request")
	}
}

// TogglePause stops or resumes emulation from the next loop.
func (r *Runner) TogglePause() {
	r.Post(func(*Console) error {
		r.paused = !r.paused
		if !r.paused && r.limiter != nil {
			r.limiter.Reset()
		}
		slog.Info("Pause toggled", "paused", r.paused)
		return nil
	})
}

// StepFrame runs exactly one frame while paused.
func (r *Runner) StepFrame() {
	r.Post(func(*Console) error {
		if r.paused {
			r.step = true
		}
		return nil
	})
}

// SetSpeed changes the emulation speed in percent, 0 is unthrottled.
func (r *Runner) SetSpeed(percent int) {
	r.Post(func(c *Console) error {
		c.settings.EmulationSpeed = max(percent, 0)
		return nil
	})
}
