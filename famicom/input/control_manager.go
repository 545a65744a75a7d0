package input

import (
	"github.com/valerio/go-famicom/famicom/addr"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/memory"
	"github.com/valerio/go-famicom/famicom/state"
)

// Bus supplies the open bus bits the controller ports don't drive.
type Bus interface {
	OpenBus(mask uint8) uint8
}

// ControlManager owns the two controller ports: $4016 reads port 1 and
// strobes both, $4017 reads port 2.
type ControlManager struct {
	bus         Bus
	consoleType config.ConsoleType
	controllers [2]*StandardController

	pending [2]Buttons

	lagCounter  uint32
	isLagging   bool
	pollCounter uint32
}

func NewControlManager(bus Bus, consoleType config.ConsoleType) *ControlManager {
	return &ControlManager{
		bus:         bus,
		consoleType: consoleType,
		controllers: [2]*StandardController{NewStandardController(0), NewStandardController(1)},
	}
}

// Controller returns the pad plugged into port, or nil.
func (m *ControlManager) Controller(port uint8) *StandardController {
	if int(port) >= len(m.controllers) {
		return nil
	}
	return m.controllers[port]
}

// SetButtons queues the state of a pad; it becomes visible to the game at
// the next UpdateInputState.
func (m *ControlManager) SetButtons(port uint8, b Buttons) {
	if int(port) < len(m.pending) {
		m.pending[port] = b
	}
}

// UpdateInputState runs once per frame before the CPU: it latches the
// queued buttons and counts frames in which the game never polled input.
func (m *ControlManager) UpdateInputState() {
	if m.isLagging {
		m.lagCounter++
	}
	m.isLagging = true
	m.pollCounter++

	for i, c := range m.controllers {
		c.SetButtons(m.pending[i])
	}
}

func (m *ControlManager) LagCounter() uint32 {
	return m.lagCounter
}

func (m *ControlManager) ResetLagCounter() {
	m.lagCounter = 0
}

func (m *ControlManager) PollCounter() uint32 {
	return m.pollCounter
}

// OpenBusMask is the set of bits a read of port leaves undriven. The NES
// drives D0-D4 on both ports, the Famicom only D0-D2 on $4016.
func (m *ControlManager) OpenBusMask(port uint8) uint8 {
	if m.consoleType == config.ConsoleFamicom && port == 0 {
		return 0xF8
	}
	return 0xE0
}

func (m *ControlManager) MemoryRanges(r *memory.Ranges) {
	r.AddHandler(memory.OpRead, addr.Joypad1, addr.Joypad2)
	r.AddHandler(memory.OpWrite, addr.Joypad1)
}

func (m *ControlManager) ReadRAM(address uint16) uint8 {
	m.isLagging = false

	port := uint8(address - addr.Joypad1)
	value := m.bus.OpenBus(m.OpenBusMask(port))
	if c := m.Controller(port); c != nil {
		value |= c.Read()
	}
	return value
}

// PeekRAM reports the next bit without shifting.
func (m *ControlManager) PeekRAM(address uint16) uint8 {
	port := uint8(address - addr.Joypad1)
	value := m.bus.OpenBus(m.OpenBusMask(port))
	if c := m.Controller(port); c != nil {
		if c.strobe {
			value |= uint8(c.buttons) & 0x01
		} else {
			value |= c.shift & 0x01
		}
	}
	return value
}

func (m *ControlManager) WriteRAM(_ uint16, value uint8) {
	for _, c := range m.controllers {
		c.Write(value)
	}
}

func (m *ControlManager) Reset(soft bool) {
	m.ResetLagCounter()
	if !soft {
		for _, c := range m.controllers {
			c.reset()
		}
	}
}

func (m *ControlManager) StreamState(s *state.Stream) {
	for _, c := range m.controllers {
		c.StreamState(s)
	}
	s.Uint32(&m.lagCounter)
	s.Bool(&m.isLagging)
}
