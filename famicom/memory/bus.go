package memory

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/valerio/go-famicom/famicom/addr"
	"github.com/valerio/go-famicom/famicom/state"
)

// ErrRangeConflict is returned when two devices claim the same address.
var ErrRangeConflict = errors.New("address claimed by more than one device")

// RAMInitializer fills RAM at power on.
type RAMInitializer interface {
	InitializeRAM(data []byte)
}

// Resetter is the cartridge side of a bus reset.
type Resetter interface {
	Reset(soft bool)
}

// Observer is notified of every CPU bus access.
type Observer func(address uint16, value uint8, op OperationType)

// Patcher rewrites values read from the bus, cheat codes being the only
// user.
type Patcher interface {
	Patch(address uint16, value uint8) uint8
}

// openBus answers for every address nobody claimed with the value last
// driven onto the bus.
type openBus struct {
	last uint8
}

func (o *openBus) MemoryRanges(*Ranges)         {}
func (o *openBus) ReadRAM(uint16) uint8         { return o.last }
func (o *openBus) PeekRAM(address uint16) uint8 { return uint8(address >> 8) }
func (o *openBus) WriteRAM(uint16, uint8)       {}

// internalRAM is the 2KB of console RAM mirrored up to $1FFF.
type internalRAM struct {
	data [addr.InternalRAMSize]byte
}

func (r *internalRAM) MemoryRanges(ranges *Ranges) {
	ranges.AddHandler(OpAny, 0x0000, addr.InternalRAMEnd)
}
func (r *internalRAM) ReadRAM(address uint16) uint8 { return r.data[address&0x7FF] }
func (r *internalRAM) PeekRAM(address uint16) uint8 { return r.data[address&0x7FF] }
func (r *internalRAM) WriteRAM(address uint16, value uint8) {
	r.data[address&0x7FF] = value
}

// Manager routes CPU bus accesses to the device owning each address.
// The handler tables are only modified while devices are registered, at
// ROM load time.
type Manager struct {
	reads  [0x10000]Device
	writes [0x10000]Device

	ram      *internalRAM
	openBus  *openBus
	init     RAMInitializer
	cart     Resetter
	observer Observer
	patcher  Patcher
}

// New creates a bus with internal RAM attached and everything else
// answering open bus.
func New(init RAMInitializer) *Manager {
	m := &Manager{
		ram:     &internalRAM{},
		openBus: &openBus{},
		init:    init,
	}
	for i := range m.reads {
		m.reads[i] = m.openBus
		m.writes[i] = m.openBus
	}
	if err := m.RegisterDevice(m.ram); err != nil {
		panic(err)
	}
	return m
}

// SetCartridge sets the device reset alongside RAM.
func (m *Manager) SetCartridge(cart Resetter) {
	m.cart = cart
}

// SetObserver installs a hook called on every access, nil removes it.
func (m *Manager) SetObserver(o Observer) {
	m.observer = o
}

// SetPatcher installs a filter on CPU reads, nil removes it.
func (m *Manager) SetPatcher(p Patcher) {
	m.patcher = p
}

// RegisterDevice claims the device's declared ranges. Claiming an address
// owned by another device fails unless the device allows overrides, and a
// rejected device claims nothing.
func (m *Manager) RegisterDevice(d Device) error {
	var ranges Ranges
	d.MemoryRanges(&ranges)

	if !ranges.allowOverride {
		if err := m.checkFree(&m.reads, d, ranges.reads); err != nil {
			return fmt.Errorf("read handler: %w", err)
		}
		if err := m.checkFree(&m.writes, d, ranges.writes); err != nil {
			return fmt.Errorf("write handler: %w", err)
		}
	}
	for _, a := range ranges.reads {
		m.reads[a] = d
	}
	for _, a := range ranges.writes {
		m.writes[a] = d
	}
	return nil
}

func (m *Manager) checkFree(table *[0x10000]Device, d Device, addresses []uint16) error {
	for _, a := range addresses {
		owner := table[a]
		if owner != m.openBus && owner != d {
			return fmt.Errorf("%w: $%04X", ErrRangeConflict, a)
		}
	}
	return nil
}

// UnregisterDevice returns the device's addresses to open bus.
func (m *Manager) UnregisterDevice(d Device) {
	for i := range m.reads {
		if m.reads[i] == d {
			m.reads[i] = m.openBus
		}
		if m.writes[i] == d {
			m.writes[i] = m.openBus
		}
	}
}

// Read performs a CPU bus read, latching the result as the new open bus value.
func (m *Manager) Read(address uint16, op OperationType) uint8 {
	value := m.reads[address].ReadRAM(address)
	if m.patcher != nil {
		value = m.patcher.Patch(address, value)
	}
	m.openBus.last = value
	if m.observer != nil {
		m.observer(address, value, op)
	}
	return value
}

// Write performs a CPU bus write.
func (m *Manager) Write(address uint16, value uint8, op OperationType) {
	m.openBus.last = value
	m.writes[address].WriteRAM(address, value)
	if m.observer != nil {
		m.observer(address, value, op)
	}
}

// DebugRead reads without touching the open bus latch. With
// disableSideEffects the device's PeekRAM is used instead of ReadRAM.
func (m *Manager) DebugRead(address uint16, disableSideEffects bool) uint8 {
	if address <= addr.InternalRAMEnd {
		return m.ram.data[address&0x7FF]
	}
	if disableSideEffects {
		return m.reads[address].PeekRAM(address)
	}
	return m.reads[address].ReadRAM(address)
}

// DebugWrite writes without updating the open bus latch.
func (m *Manager) DebugWrite(address uint16, value uint8) {
	m.writes[address].WriteRAM(address, value)
}

// OpenBus returns the bits of the last bus value selected by mask.
func (m *Manager) OpenBus(mask uint8) uint8 {
	return m.openBus.last & mask
}

// InternalRAM exposes the 2KB console RAM.
func (m *Manager) InternalRAM() []byte {
	return m.ram.data[:]
}

// Reset clears RAM on power on and resets the cartridge.
func (m *Manager) Reset(soft bool) {
	if !soft && m.init != nil {
		m.init.InitializeRAM(m.ram.data[:])
		slog.Debug("Internal RAM initialized")
	}
	if m.cart != nil {
		m.cart.Reset(soft)
	}
}

func (m *Manager) StreamState(s *state.Stream) {
	s.Bytes(m.ram.data[:])
	s.Uint8(&m.openBus.last)
}
