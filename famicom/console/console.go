// Package console ties the CPU, PPU, APU, cartridge and controller ports
// into one machine and drives it a frame at a time.
package console

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/valerio/go-famicom/famicom/apu"
	"github.com/valerio/go-famicom/famicom/battery"
	"github.com/valerio/go-famicom/famicom/cheat"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/input"
	"github.com/valerio/go-famicom/famicom/mapper"
	"github.com/valerio/go-famicom/famicom/memory"
	"github.com/valerio/go-famicom/famicom/ppu"
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/state"
	"github.com/valerio/go-famicom/famicom/timing"
)

// ErrNotInitialized is returned by operations that need a loaded ROM.
var ErrNotInitialized = errors.New("console not initialized")

// controls is the controller port device, standard or VS System.
type controls interface {
	memory.Device
	SetButtons(port uint8, b input.Buttons)
	OpenBusMask(port uint8) uint8
	UpdateInputState()
	Reset(soft bool)
	StreamState(s *state.Stream)
}

// Option configures a Console at construction.
type Option func(*Console)

// WithBatteryStore sets where battery-backed RAM is loaded from and saved
// to. Without one, save RAM is not persisted.
func WithBatteryStore(store battery.Store) Option {
	return func(c *Console) { c.batteries = store }
}

// WithSampleSink sends the mixed APU output to sink.
func WithSampleSink(sink apu.SampleSink) Option {
	return func(c *Console) { c.sampleSink = sink }
}

// WithFrameHandler registers a function called with every completed frame.
func WithFrameHandler(fn func(frame []uint16)) Option {
	return func(c *Console) { c.onFrame = fn }
}

// WithBusObserver installs a hook on every CPU bus access.
func WithBusObserver(o memory.Observer) Option {
	return func(c *Console) { c.observer = o }
}

// Console owns every component of one NES. A VS DualSystem is two
// consoles, the master owning the slave.
type Console struct {
	settings *config.Settings
	model    config.Model

	bus      *memory.Manager
	cpu      *cpu.CPU
	ppu      *ppu.PPU
	apu      *apu.APU
	mapper   *mapper.Mapper
	controls controls
	vs       *input.VSControlManager

	romData     *rom.Data
	initialized bool
	actions     systemActions

	master *Console
	slave  *Console

	cheats     *cheat.Manager
	batteries  battery.Store
	sampleSink apu.SampleSink
	onFrame    func(frame []uint16)
	observer   memory.Observer
}

// New returns an empty console, Initialize loads a ROM into it.
func New(settings *config.Settings, options ...Option) *Console {
	if settings == nil {
		settings = config.Default()
	}
	c := &Console{settings: settings, cheats: cheat.NewManager()}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func newSlave(master *Console) *Console {
	return &Console{
		settings: master.settings,
		master:   master,
	}
}

// Initialize builds every component for data, replacing anything loaded
// before, and powers the console on.
func (c *Console) Initialize(data *rom.Data) error {
	if c.initialized {
		// a new game must not lose the old one's save
		if err := c.SaveBatteries(); err != nil {
			slog.Warn("Failed to save battery", "error", err)
		}
	}
	c.initialized = false

	c.bus = memory.New(c.settings)
	m, err := mapper.New(data, c)
	if err != nil {
		return fmt.Errorf("failed to initialize mapper: %w", err)
	}
	c.mapper = m
	c.cpu = cpu.New(c.bus, c)
	c.apu = apu.New(c.cpu, c.settings.SampleRate)

	c.vs = nil
	if data.Info.System == rom.SystemVS {
		c.vs = input.NewVSControlManager(c.bus, c.IsMaster(), c.settings.DipSwitches)
		c.controls = c.vs
	} else {
		c.controls = input.NewControlManager(c.bus, c.settings.ConsoleType)
	}

	c.ppu = ppu.New(c.cpu, c.mapper, c.settings)

	c.bus.SetCartridge(c.mapper)
	for _, d := range []memory.Device{c.ppu, c.apu, c.controls, c.mapper} {
		if err := c.bus.RegisterDevice(d); err != nil {
			return fmt.Errorf("failed to register device: %w", err)
		}
	}

	if c.batteries != nil {
		if err := c.mapper.LoadBattery(c.batteries); err != nil {
			slog.Warn("Failed to load battery", "error", err)
		}
	}

	if c.IsMaster() {
		c.ppu.SetFrameHandler(c.onFrame)
		c.apu.SetSampleSink(c.sampleSink)
		c.bus.SetObserver(c.observer)
		c.cheats.SetMapper(c.mapper)
		c.bus.SetPatcher(c.cheats)
	}

	c.slave = nil
	if c.IsMaster() && data.Info.VsType == rom.VsDualSystem {
		c.slave = newSlave(c)
		if err := c.slave.Initialize(data); err != nil {
			return fmt.Errorf("failed to initialize slave console: %w", err)
		}
		c.vs.SetPeer(c.slave.cpu)
		c.slave.vs.SetPeer(c.cpu)
	}

	c.romData = data
	c.actions = systemActions{}
	c.model = config.ModelAuto
	c.UpdateNesModel()
	c.initialized = true

	c.ResetComponents(false)
	c.controls.UpdateInputState()

	slog.Info("Console initialized",
		"rom", data.Info.Name,
		"mapper", data.Info.MapperID,
		"system", data.Info.System.String(),
		"model", c.model.String(),
		"dualSystem", c.slave != nil,
	)
	return nil
}

// IsMaster is false only for the second console of a VS DualSystem.
func (c *Console) IsMaster() bool {
	return c.master == nil
}

// IsDualSystem reports whether this console is one half of a VS
// DualSystem.
func (c *Console) IsDualSystem() bool {
	return c.master != nil || c.slave != nil
}

// Cheats returns the codes applied to CPU reads. They survive loading
// another ROM.
func (c *Console) Cheats() *cheat.Manager {
	return c.cheats
}

// Slave returns the second console of a VS DualSystem, or nil.
func (c *Console) Slave() *Console {
	return c.slave
}

// UpdateNesModel resolves the region and pushes it to every component.
// Auto picks it from the ROM header, defaulting to NTSC.
func (c *Console) UpdateNesModel() {
	model := c.settings.Model
	if model == config.ModelAuto {
		switch c.mapper.Info().System {
		case rom.SystemPAL:
			model = config.ModelPAL
		case rom.SystemDendy:
			model = config.ModelDendy
		default:
			model = config.ModelNTSC
		}
	}
	if c.model != model {
		slog.Debug("Region changed", "from", c.model.String(), "to", model.String())
		c.model = model
	}

	c.cpu.SetMasterClockDivider(model)
	c.mapper.SetNesModel(model)
	c.ppu.SetNesModel(model)
	c.apu.SetNesModel(model)
}

// Model is the resolved region.
func (c *Console) Model() config.Model {
	return c.model
}

// ResetComponents applies a reset (soft) or power cycle to every component
// in bus order: slave, bus and cartridge, PPU, APU, CPU, controllers.
func (c *Console) ResetComponents(soft bool) {
	if c.slave != nil {
		c.slave.ResetComponents(soft)
	}

	c.bus.Reset(soft)
	if !c.settings.DisablePPUReset || !soft {
		c.ppu.Reset()
	}
	c.apu.Reset(soft)
	c.cpu.Reset(soft, c.model)
	c.controls.Reset(soft)
}

// Reset asks for a soft reset at the end of the current frame.
func (c *Console) Reset() {
	if c.initialized {
		c.actions.requestReset()
	}
}

// PowerCycle asks for a power cycle at the end of the current frame.
func (c *Console) PowerCycle() {
	if c.initialized {
		c.actions.requestPowerCycle()
	}
}

// RunSingleFrame runs the CPU until the PPU finishes a frame, then applies
// pending resets and flushes audio. A CPU jam is reported once the frame
// completes; the jammed CPU keeps clocking the rest of the console.
func (c *Console) RunSingleFrame() error {
	if !c.initialized {
		return ErrNotInitialized
	}

	lastFrame := c.ppu.FrameCount()
	c.UpdateNesModel()

	var jam error
	for c.ppu.FrameCount() == lastFrame {
		if err := c.cpu.Exec(); err != nil {
			slog.Warn("CPU jammed", "error", err)
			jam = err
		}
		if c.slave != nil {
			c.RunSlaveCPU()
		}
	}

	if err := c.processSystemActions(); err != nil {
		return err
	}
	c.apu.EndFrame()
	c.controls.UpdateInputState()
	return jam
}

// RunSlaveCPU lets the slave CPU catch up with the master.
func (c *Console) RunSlaveCPU() {
	for {
		gap := c.cpu.CycleCount() - c.slave.cpu.CycleCount()
		if gap <= 5 && c.ppu.FrameCount() <= c.slave.ppu.FrameCount() {
			return
		}
		if err := c.slave.cpu.Exec(); err != nil {
			slog.Warn("Slave CPU jammed", "error", err)
		}
	}
}

// FrameCount is the number of frames the PPU has started.
func (c *Console) FrameCount() uint32 {
	if c.ppu == nil {
		return 0
	}
	return c.ppu.FrameCount()
}

// FrameBuffer is the last completed frame: 256x240 palette indexes with
// the emphasis bits in bits 6-8.
func (c *Console) FrameBuffer() []uint16 {
	if c.ppu == nil {
		return nil
	}
	return c.ppu.FrameBuffer()
}

// FrameDelay is the wall time of one frame in milliseconds, before the
// emulation speed is applied.
func (c *Console) FrameDelay() float64 {
	return timing.FrameDelay(c.model, c.settings.IntegerFPS)
}

// SetButtons sets the pad state seen on port from the next frame on.
func (c *Console) SetButtons(port uint8, b input.Buttons) {
	if c.controls != nil {
		c.controls.SetButtons(port, b)
	}
}

// SetCabinetButtons sets the VS coin and service buttons. Ignored for
// anything but a VS System.
func (c *Console) SetCabinetButtons(b input.VSButtons) {
	if c.vs != nil {
		c.vs.SetCabinetButtons(b)
	}
}

// SaveBatteries writes battery-backed RAM to the configured store.
func (c *Console) SaveBatteries() error {
	if c.mapper == nil || c.batteries == nil {
		return nil
	}
	return c.mapper.SaveBattery(c.batteries)
}

// ROM returns the loaded cartridge data.
func (c *Console) ROM() *rom.Data {
	return c.romData
}

func (c *Console) CPU() *cpu.CPU          { return c.cpu }
func (c *Console) PPU() *ppu.PPU          { return c.ppu }
func (c *Console) APU() *apu.APU          { return c.apu }
func (c *Console) Mapper() *mapper.Mapper { return c.mapper }
func (c *Console) Bus() *memory.Manager   { return c.bus }
func (c *Console) Settings() *config.Settings {
	return c.settings
}
