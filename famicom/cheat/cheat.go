// Package cheat patches values read from the CPU bus with Game Genie,
// Pro Action Rocky and raw address codes.
package cheat

import (
	"fmt"
	"log/slog"
)

// Type is the format a code was entered in.
type Type uint8

const (
	GameGenie Type = iota
	ProActionRocky
	Custom
)

func (t Type) String() string {
	switch t {
	case GameGenie:
		return "game-genie"
	case ProActionRocky:
		return "pro-action-rocky"
	}
	return "custom"
}

// Code replaces the value read at Address with Value. A relative code
// matches a CPU address, an absolute one an offset in PRG ROM, so it
// follows the bank wherever the mapper puts it.
type Code struct {
	Type       Type
	Address    uint32
	Value      uint8
	Compare    uint8
	HasCompare bool
	Relative   bool
}

func (c Code) matches(value uint8) bool {
	return !c.HasCompare || c.Compare == value
}

func (c Code) String() string {
	kind := "abs"
	if c.Relative {
		kind = "cpu"
	}
	if c.HasCompare {
		return fmt.Sprintf("%s $%04X=%02X if %02X", kind, c.Address, c.Value, c.Compare)
	}
	return fmt.Sprintf("%s $%04X=%02X", kind, c.Address, c.Value)
}

// PRGMapper resolves a CPU address to the PRG ROM offset mapped there, or
// -1 when the address is not backed by PRG ROM.
type PRGMapper interface {
	ToAbsoluteAddress(address uint16) int32
}

// Manager holds the active codes. It is used from the emulation goroutine
// only.
type Manager struct {
	relative map[uint16][]Code
	absolute []Code
	mapper   PRGMapper
}

func NewManager() *Manager {
	return &Manager{relative: map[uint16][]Code{}}
}

// SetMapper sets the cartridge used to resolve absolute codes.
func (m *Manager) SetMapper(p PRGMapper) {
	m.mapper = p
}

// Add activates a code.
func (m *Manager) Add(c Code) error {
	if c.Relative {
		if c.Address > 0xFFFF {
			return fmt.Errorf("%w: CPU address $%X out of range", ErrInvalidCode, c.Address)
		}
		m.relative[uint16(c.Address)] = append(m.relative[uint16(c.Address)], c)
	} else {
		m.absolute = append(m.absolute, c)
	}
	slog.Debug("Cheat code added", "type", c.Type.String(), "code", c.String())
	return nil
}

// AddString parses code with Parse and activates it.
func (m *Manager) AddString(code string) error {
	c, err := Parse(code)
	if err != nil {
		return err
	}
	return m.Add(c)
}

// Clear removes every code.
func (m *Manager) Clear() {
	clear(m.relative)
	m.absolute = nil
}

// Len is the number of active codes.
func (m *Manager) Len() int {
	n := len(m.absolute)
	for _, codes := range m.relative {
		n += len(codes)
	}
	return n
}

// Patch returns the value the CPU sees at address once the codes apply.
// Relative codes win over absolute ones, the first match wins.
func (m *Manager) Patch(address uint16, value uint8) uint8 {
	if len(m.relative) == 0 && len(m.absolute) == 0 {
		return value
	}

	for _, c := range m.relative[address] {
		if c.matches(value) {
			return c.Value
		}
	}

	if len(m.absolute) > 0 && m.mapper != nil {
		abs := m.mapper.ToAbsoluteAddress(address)
		if abs < 0 {
			return value
		}
		for _, c := range m.absolute {
			if c.Address == uint32(abs) && c.matches(value) {
				return c.Value
			}
		}
	}
	return value
}
