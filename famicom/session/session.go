// Package session assembles a playable console: ROM, frontend, audio
// outputs, battery and save states, all driven by one Runner.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/valerio/go-famicom/famicom/audio"
	"github.com/valerio/go-famicom/famicom/backend"
	"github.com/valerio/go-famicom/famicom/battery"
	"github.com/valerio/go-famicom/famicom/cheat"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/console"
	"github.com/valerio/go-famicom/famicom/debug"
	"github.com/valerio/go-famicom/famicom/input"
	"github.com/valerio/go-famicom/famicom/input/action"
	"github.com/valerio/go-famicom/famicom/input/event"
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/savestate"
	"github.com/valerio/go-famicom/famicom/video"
)

// quickSlot is the save state slot bound to the save/load keys.
const quickSlot = 1

// Options configures a session. Only ROM and Backend are required.
type Options struct {
	ROM      *rom.Data
	ROMDir   string // searched for the ROM a loaded state belongs to
	Settings *config.Settings
	Backend  backend.Backend
	Title    string
	Scale    int

	// Frames stops the session after that many frames, 0 runs until quit.
	Frames int

	Audio      bool
	WAVPath    string
	BatteryDir string // empty keeps battery RAM in memory only
	StateDir   string // quick save slots, defaults to the battery dir

	LoadState string // restored before the first frame
	SaveState string // written when the session ends
	CDLPath   string // code/data log merged at start and saved at the end

	// Cheats are Game Genie, Pro Action Rocky or AAAA:VV[:CC] codes.
	Cheats []string
}

// Session is one run of one game.
type Session struct {
	opts Options

	console *console.Console
	runner  *console.Runner
	input   *input.Manager
	states  *savestate.Manager
	frame   *video.FrameBuffer

	wav    *audio.WAVSink
	player *audio.Player
	cdl    *debug.CodeDataLogger

	lastFrame uint32
	quit      bool
}

// New builds every component and loads the ROM.
func New(opts Options) (*Session, error) {
	if opts.ROM == nil || opts.Backend == nil {
		return nil, errors.New("session needs a ROM and a backend")
	}
	if opts.Settings == nil {
		opts.Settings = config.Default()
	}
	if opts.Title == "" {
		opts.Title = opts.ROM.Info.Name
	}

	codes := make([]cheat.Code, 0, len(opts.Cheats))
	for _, text := range opts.Cheats {
		code, err := cheat.Parse(text)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}

	s := &Session{
		opts:  opts,
		frame: video.NewFrameBuffer(nil),
	}

	sinks, err := s.openAudio()
	if err != nil {
		s.closeAudio()
		return nil, err
	}

	var store battery.Store = battery.MemoryStore{}
	if opts.BatteryDir != "" {
		store = battery.FileStore{Dir: opts.BatteryDir}
	}

	consoleOpts := []console.Option{
		console.WithBatteryStore(store),
		console.WithFrameHandler(s.frame.Update),
	}
	if len(sinks) > 0 {
		consoleOpts = append(consoleOpts, console.WithSampleSink(sinks))
	}
	if opts.CDLPath != "" {
		s.cdl = debug.NewCodeDataLogger(mapperResolver{s}, len(opts.ROM.PRGROM))
		consoleOpts = append(consoleOpts, console.WithBusObserver(s.cdl.Log))
	}

	s.console = console.New(opts.Settings, consoleOpts...)
	if err := s.console.Initialize(opts.ROM); err != nil {
		s.closeAudio()
		return nil, err
	}

	for _, code := range codes {
		if err := s.console.Cheats().Add(code); err != nil {
			s.closeAudio()
			return nil, err
		}
	}
	if len(codes) > 0 {
		slog.Info("Cheats enabled", "count", len(codes))
	}

	s.runner = console.NewRunner(s.console)
	s.runner.SetFrameLimit(opts.Frames)

	s.states = savestate.New(s.console)
	if opts.ROMDir != "" {
		s.states.SetROMMatcher(savestate.DirectoryMatcher(opts.ROMDir))
	}

	s.input = input.NewManager(s.console)
	if s.console.ROM().Info.System == rom.SystemVS {
		s.input.SetCabinet(s.console)
	}
	s.bindActions()
	return s, nil
}

func (s *Session) openAudio() (audio.MultiSink, error) {
	var sinks audio.MultiSink
	rate := s.opts.Settings.SampleRate

	if s.opts.WAVPath != "" {
		wav, err := audio.NewWAVSink(s.opts.WAVPath, rate)
		if err != nil {
			return nil, err
		}
		s.wav = wav
		sinks = append(sinks, wav)
	}
	if s.opts.Audio {
		player, err := audio.NewPlayer(rate)
		if err != nil {
			// keep playing silently
			slog.Warn("Audio output unavailable", "error", err)
		} else {
			s.player = player
			sinks = append(sinks, player)
		}
	}
	return sinks, nil
}

func (s *Session) closeAudio() {
	if s.wav != nil {
		if err := s.wav.Close(); err != nil {
			slog.Error("Failed to close WAV file", "error", err)
		}
		s.wav = nil
	}
	if s.player != nil {
		s.player.Close()
		s.player = nil
	}
}

// bindActions connects the emulator actions to the runner. Handlers run
// inside the backend's Update, so they only queue work.
func (s *Session) bindActions() {
	on := func(act action.Action, fn func()) { s.input.On(act, event.Press, fn) }

	on(action.EmulatorQuit, func() { s.quit = true })
	on(action.EmulatorPauseToggle, s.runner.TogglePause)
	on(action.EmulatorStepFrame, s.runner.StepFrame)
	on(action.EmulatorReset, func() {
		s.runner.Post(func(c *console.Console) error {
			c.Reset()
			return nil
		})
	})
	on(action.EmulatorPowerCycle, func() {
		s.runner.Post(func(c *console.Console) error {
			c.PowerCycle()
			return nil
		})
	})
	on(action.EmulatorSaveState, func() {
		path := s.slotPath()
		s.runner.Post(func(*console.Console) error {
			if err := s.states.SaveFile(path); err != nil {
				return err
			}
			slog.Info("State saved", "path", path)
			return nil
		})
	})
	on(action.EmulatorLoadState, func() {
		path := s.slotPath()
		s.runner.Post(func(*console.Console) error {
			return s.states.LoadFile(path)
		})
	})
}

func (s *Session) slotPath() string {
	dir := s.opts.StateDir
	if dir == "" {
		dir = s.opts.BatteryDir
	}
	return savestate.SlotPath(dir, s.console.ROM().Info.Name, quickSlot)
}

// Run initializes the backend and emulates until the user quits, the
// frame limit is reached or ctx is cancelled. Battery RAM and the
// requested state are written on the way out.
func (s *Session) Run(ctx context.Context) (err error) {
	if err := s.opts.Backend.Init(backend.BackendConfig{
		Title:        s.opts.Title,
		Scale:        s.opts.Scale,
		Callbacks:    backend.BackendCallbacks{OnQuit: func() { s.quit = true }},
		InputManager: s.input,
		Debug:        statusPanel{s},
	}); err != nil {
		s.closeAudio()
		return fmt.Errorf("failed to initialize backend: %w", err)
	}
	defer func() {
		if cerr := s.opts.Backend.Cleanup(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	defer s.closeAudio()

	if s.opts.LoadState != "" {
		if err := s.states.LoadFile(s.opts.LoadState); err != nil {
			return err
		}
	}
	if s.cdl != nil {
		if err := s.cdl.Load(s.opts.CDLPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Ignoring code/data log", "path", s.opts.CDLPath, "error", err)
		}
	}
	if s.player != nil {
		s.player.Start()
	}

	s.lastFrame = s.console.FrameCount()
	runErr := s.runner.Run(ctx, s.afterFrame)
	return errors.Join(runErr, s.finish())
}

// afterFrame hands a new frame to the backend, or only polls input while
// paused.
func (s *Session) afterFrame() error {
	var frame *video.FrameBuffer
	if count := s.console.FrameCount(); count != s.lastFrame {
		s.lastFrame = count
		frame = s.frame
	}
	if err := s.opts.Backend.Update(frame); err != nil {
		return err
	}
	if s.quit {
		return console.ErrStop
	}
	return nil
}

func (s *Session) finish() error {
	var errs []error
	if s.opts.SaveState != "" {
		if err := s.states.SaveFile(s.opts.SaveState); err != nil {
			errs = append(errs, err)
		} else {
			slog.Info("State saved", "path", s.opts.SaveState)
		}
	}
	if err := s.console.SaveBatteries(); err != nil {
		errs = append(errs, err)
	}
	if s.cdl != nil {
		stats := s.cdl.Stats()
		slog.Info("Code/data log", "code", stats.CodeBytes, "data", stats.DataBytes, "coverage", fmt.Sprintf("%.1f%%", stats.Coverage()*100))
		if err := s.cdl.Save(s.opts.CDLPath); err != nil {
			errs = append(errs, err)
		}
	}
	if s.wav != nil {
		slog.Info("Audio captured", "path", s.opts.WAVPath, "samples", s.wav.Written())
	}
	return errors.Join(errs...)
}

func (s *Session) Console() *console.Console { return s.console }
func (s *Session) Runner() *console.Runner   { return s.runner }
func (s *Session) Input() *input.Manager     { return s.input }
func (s *Session) Frame() *video.FrameBuffer { return s.frame }

// mapperResolver follows the console's current mapper, which is replaced
// on power cycle.
type mapperResolver struct{ s *Session }

func (r mapperResolver) ToAbsoluteAddress(address uint16) int32 {
	if r.s.console == nil || r.s.console.Mapper() == nil {
		return -1
	}
	return r.s.console.Mapper().ToAbsoluteAddress(address)
}

type statusPanel struct{ s *Session }

func (p statusPanel) DebugLines() []string {
	c := p.s.console
	regs := c.CPU().State()
	status := "RUNNING"
	if p.s.runner.Paused() {
		status = "PAUSED"
	}
	return []string{
		fmt.Sprintf("Status: %s  Region: %s", status, c.Model()),
		fmt.Sprintf("Frame: %d", c.FrameCount()),
		fmt.Sprintf("PC: $%04X  SP: $%02X", regs.PC, regs.SP),
		fmt.Sprintf("A: $%02X  X: $%02X  Y: $%02X", regs.A, regs.X, regs.Y),
		fmt.Sprintf("P: %08b", regs.PS),
		fmt.Sprintf("Cycles: %d", c.CPU().CycleCount()),
		fmt.Sprintf("Mapper: %d", c.ROM().Info.MapperID),
	}
}

// DefaultStateDir is where quick save slots go when nothing is configured.
func DefaultStateDir() string {
	return filepath.Join(filepath.Dir(battery.DefaultDir()), "states")
}
