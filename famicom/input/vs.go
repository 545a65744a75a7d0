package input

import (
	"github.com/valerio/go-famicom/famicom/addr"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/state"
)

// VSButtons are the cabinet inputs of a VS System.
type VSButtons uint8

const (
	VSInsertCoin1 VSButtons = 1 << iota
	VSInsertCoin2
	VSService
)

// IRQLine is the other CPU of a VS DualSystem, whose /IRQ is wired to
// bit 1 of this side's $4016.
type IRQLine interface {
	SetIRQSource(source cpu.IRQSource)
	ClearIRQSource(source cpu.IRQSource)
}

// VSControlManager is the VS System variant of the controller ports: the
// DIP switches and coin slots share $4016/$4017 with the pads, nothing is
// left to open bus, and on a DualSystem $4016 writes drive the other CPU's
// IRQ.
type VSControlManager struct {
	*ControlManager

	master      bool
	dipSwitches uint32
	peer        IRQLine

	cabinet        VSButtons
	prgChrSelect   uint8
	slaveMasterBit uint8
}

// NewVSControlManager builds the ports for one side of a cabinet. The
// slave side reads the high byte of dipSwitches.
func NewVSControlManager(bus Bus, master bool, dipSwitches uint32) *VSControlManager {
	return &VSControlManager{
		ControlManager: NewControlManager(bus, config.ConsoleNES),
		master:         master,
		dipSwitches:    dipSwitches,
	}
}

// SetPeer connects the other console of a DualSystem.
func (m *VSControlManager) SetPeer(peer IRQLine) {
	m.peer = peer
}

func (m *VSControlManager) SetCabinetButtons(b VSButtons) {
	m.cabinet = b
}

// PRGChrSelect is bit 2 of the last $4016 write, which VS boards use to
// switch CHR banks.
func (m *VSControlManager) PRGChrSelect() uint8 {
	return m.prgChrSelect
}

func (m *VSControlManager) OpenBusMask(uint8) uint8 {
	return 0
}

func (m *VSControlManager) switches() uint32 {
	if m.master {
		return m.dipSwitches
	}
	return m.dipSwitches >> 8
}

func (m *VSControlManager) ReadRAM(address uint16) uint8 {
	m.isLagging = false
	port := uint8(address - addr.Joypad1)
	pad := m.controllers[port].Read()
	return m.compose(address, pad)
}

func (m *VSControlManager) PeekRAM(address uint16) uint8 {
	return m.compose(address, m.ControlManager.PeekRAM(address)&0x01)
}

func (m *VSControlManager) compose(address uint16, pad uint8) uint8 {
	dip := m.switches()
	if address == addr.Joypad1 {
		value := pad & 0x01
		if m.cabinet&VSService != 0 {
			value |= 0x04
		}
		value |= uint8(dip&0x03) << 3
		if m.cabinet&VSInsertCoin1 != 0 {
			value |= 0x20
		}
		if m.cabinet&VSInsertCoin2 != 0 {
			value |= 0x40
		}
		if !m.master {
			value |= 0x80
		}
		return value
	}
	// $4017 carries the other six switches in bits 2-7
	return pad&0x01 | uint8(dip&0xFC)
}

func (m *VSControlManager) WriteRAM(address uint16, value uint8) {
	m.ControlManager.WriteRAM(address, value)

	m.prgChrSelect = value >> 2 & 0x01
	if bit := value & 0x02; bit != m.slaveMasterBit {
		m.updateSlaveMasterBit(bit)
	}
}

func (m *VSControlManager) updateSlaveMasterBit(bit uint8) {
	if m.peer != nil {
		if bit != 0 {
			m.peer.ClearIRQSource(cpu.IRQExternal)
		} else {
			// low asserts the other CPU's /IRQ
			m.peer.SetIRQSource(cpu.IRQExternal)
		}
	}
	m.slaveMasterBit = bit
}

func (m *VSControlManager) Reset(soft bool) {
	m.ControlManager.Reset(soft)
	if m.master {
		m.updateSlaveMasterBit(0x00)
	} else {
		m.updateSlaveMasterBit(0x02)
	}
}

func (m *VSControlManager) StreamState(s *state.Stream) {
	m.ControlManager.StreamState(s)
	s.Uint8(&m.prgChrSelect)
	s.Uint8(&m.slaveMasterBit)
}
