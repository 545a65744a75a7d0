package input

import (
	"time"

	"github.com/valerio/go-famicom/famicom/input/action"
	"github.com/valerio/go-famicom/famicom/input/event"
)

// emulator actions closer together than this are dropped
const debounceDuration = 300 * time.Millisecond

// Pads receives the held buttons whenever they change.
type Pads interface {
	SetButtons(port uint8, b Buttons)
}

// Cabinet receives the VS System coin and service buttons.
type Cabinet interface {
	SetCabinetButtons(b VSButtons)
}

// Manager turns backend actions into controller state and emulator
// callbacks.
type Manager struct {
	handlers      map[action.Action]map[event.Type][]func()
	lastTriggered map[action.Action]map[event.Type]time.Time
	now           func() time.Time

	pads    Pads
	cabinet Cabinet
	held    [2]Buttons
	coins   VSButtons
}

func NewManager(pads Pads) *Manager {
	return &Manager{
		handlers:      make(map[action.Action]map[event.Type][]func()),
		lastTriggered: make(map[action.Action]map[event.Type]time.Time),
		now:           time.Now,
		pads:          pads,
	}
}

// SetCabinet routes the VS actions, nil ignores them.
func (m *Manager) SetCabinet(c Cabinet) {
	m.cabinet = c
}

// On registers a callback for an action and event type.
func (m *Manager) On(act action.Action, evt event.Type, callback func()) {
	if m.handlers[act] == nil {
		m.handlers[act] = make(map[event.Type][]func())
	}
	m.handlers[act][evt] = append(m.handlers[act][evt], callback)
}

// Held returns the buttons currently down on port.
func (m *Manager) Held(port uint8) Buttons {
	return m.held[port&0x01]
}

// Trigger handles one event. Pad and cabinet buttons are never debounced,
// emulator actions are.
func (m *Manager) Trigger(act action.Action, evt event.Type) {
	switch {
	case act.IsPad():
		m.triggerPad(act, evt)
		return
	case act.IsVS():
		m.triggerCabinet(act, evt)
		return
	}

	if evt == event.Press || evt == event.Release {
		if m.lastTriggered[act] == nil {
			m.lastTriggered[act] = make(map[event.Type]time.Time)
		}
		now := m.now()
		if last, ok := m.lastTriggered[act][evt]; ok && now.Sub(last) < debounceDuration {
			return
		}
		m.lastTriggered[act][evt] = now
	}

	for _, callback := range m.handlers[act][evt] {
		callback()
	}
}

func (m *Manager) triggerPad(act action.Action, evt event.Type) {
	port := uint8(0)
	offset := act - action.PadA
	if act >= action.Pad2A {
		port = 1
		offset = act - action.Pad2A
	}
	b := Buttons(1) << offset

	switch evt {
	case event.Press, event.Hold:
		m.held[port] |= b
	case event.Release:
		m.held[port] &^= b
	}
	if m.pads != nil {
		m.pads.SetButtons(port, m.held[port])
	}
}

func (m *Manager) triggerCabinet(act action.Action, evt event.Type) {
	b := VSButtons(1) << (act - action.VSInsertCoin1)
	switch evt {
	case event.Press, event.Hold:
		m.coins |= b
	case event.Release:
		m.coins &^= b
	}
	if m.cabinet != nil {
		m.cabinet.SetCabinetButtons(m.coins)
	}
}
