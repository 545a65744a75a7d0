package input

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/input/action"
	"github.com/valerio/go-famicom/famicom/input/event"
	"github.com/valerio/go-famicom/famicom/state"
)

type fakeBus struct{ value uint8 }

func (b *fakeBus) OpenBus(mask uint8) uint8 { return b.value & mask }

func readAll(m *ControlManager, address uint16) []uint8 {
	bits := make([]uint8, 10)
	for i := range bits {
		bits[i] = m.ReadRAM(address) & 0x01
	}
	return bits
}

func TestStandardController(t *testing.T) {
	t.Run("shifts buttons out in order then ones", func(t *testing.T) {
		c := NewStandardController(0)
		c.SetButtons(ButtonA | ButtonStart | ButtonLeft)
		c.Write(1)
		c.Write(0)

		var got []uint8
		for i := 0; i < 10; i++ {
			got = append(got, c.Read())
		}
		assert.Equal(t, []uint8{1, 0, 0, 1, 0, 0, 1, 0, 1, 1}, got)
	})

	t.Run("strobe high keeps returning A", func(t *testing.T) {
		c := NewStandardController(0)
		c.SetButtons(ButtonA)
		c.Write(1)
		for i := 0; i < 4; i++ {
			assert.Equal(t, uint8(1), c.Read())
		}

		c.Release(ButtonA)
		assert.Equal(t, uint8(0), c.Read())
	})

	t.Run("state is latched on the falling edge", func(t *testing.T) {
		c := NewStandardController(0)
		c.SetButtons(ButtonB)
		c.Write(1)
		c.Write(0)
		c.SetButtons(ButtonA)

		assert.Equal(t, uint8(0), c.Read())
		assert.Equal(t, uint8(1), c.Read())
	})

	t.Run("opposing directions cancel", func(t *testing.T) {
		c := NewStandardController(0)
		c.SetButtons(ButtonUp | ButtonDown | ButtonA)
		assert.Equal(t, ButtonA, c.Buttons())

		c.SetButtons(ButtonLeft | ButtonRight)
		assert.Zero(t, c.Buttons())

		c.AllowOpposing = true
		c.SetButtons(ButtonLeft | ButtonRight)
		assert.Equal(t, ButtonLeft|ButtonRight, c.Buttons())
	})
}

func TestControlManager(t *testing.T) {
	t.Run("buttons appear after the frame update", func(t *testing.T) {
		m := NewControlManager(&fakeBus{}, config.ConsoleNES)
		m.SetButtons(0, ButtonA|ButtonRight)
		m.SetButtons(1, ButtonB)

		m.WriteRAM(0x4016, 1)
		m.WriteRAM(0x4016, 0)
		assert.Equal(t, []uint8{0, 0, 0, 0, 0, 0, 0, 0, 1, 1}, readAll(m, 0x4016))

		m.UpdateInputState()
		m.WriteRAM(0x4016, 1)
		m.WriteRAM(0x4016, 0)
		assert.Equal(t, []uint8{1, 0, 0, 0, 0, 0, 0, 1, 1, 1}, readAll(m, 0x4016))
		assert.Equal(t, []uint8{0, 1, 0, 0, 0, 0, 0, 0, 1, 1}, readAll(m, 0x4017))
	})

	t.Run("open bus bits", func(t *testing.T) {
		tests := []struct {
			console config.ConsoleType
			port    uint16
			want    uint8
		}{
			{config.ConsoleNES, 0x4016, 0xE0},
			{config.ConsoleNES, 0x4017, 0xE0},
			{config.ConsoleFamicom, 0x4016, 0xF8},
			{config.ConsoleFamicom, 0x4017, 0xE0},
		}
		for _, tt := range tests {
			m := NewControlManager(&fakeBus{value: 0xFF}, tt.console)
			m.WriteRAM(0x4016, 0)
			assert.Equal(t, tt.want, m.ReadRAM(tt.port), "%s $%04X", tt.console, tt.port)
		}
	})

	t.Run("peek does not shift", func(t *testing.T) {
		m := NewControlManager(&fakeBus{}, config.ConsoleNES)
		m.SetButtons(0, ButtonA)
		m.UpdateInputState()
		m.WriteRAM(0x4016, 1)
		m.WriteRAM(0x4016, 0)

		assert.Equal(t, uint8(1), m.PeekRAM(0x4016))
		assert.Equal(t, uint8(1), m.PeekRAM(0x4016))
		assert.Equal(t, uint8(1), m.ReadRAM(0x4016))
		assert.Equal(t, uint8(0), m.PeekRAM(0x4016))
	})

	t.Run("lag frames", func(t *testing.T) {
		m := NewControlManager(&fakeBus{}, config.ConsoleNES)
		m.UpdateInputState()
		m.UpdateInputState()
		m.UpdateInputState()
		assert.Equal(t, uint32(2), m.LagCounter())

		m.ReadRAM(0x4016)
		m.UpdateInputState()
		assert.Equal(t, uint32(2), m.LagCounter())
		assert.Equal(t, uint32(4), m.PollCounter())

		m.Reset(true)
		assert.Zero(t, m.LagCounter())
	})

	t.Run("state round trip", func(t *testing.T) {
		m := NewControlManager(&fakeBus{}, config.ConsoleNES)
		m.SetButtons(0, ButtonStart|ButtonDown)
		m.UpdateInputState()
		m.WriteRAM(0x4016, 1)
		m.WriteRAM(0x4016, 0)
		m.ReadRAM(0x4016)

		w := state.NewWriter()
		m.StreamState(w)
		require.NoError(t, w.Err())

		restored := NewControlManager(&fakeBus{}, config.ConsoleNES)
		restored.StreamState(state.NewReader(w.Data()))
		assert.Equal(t, readAll(m, 0x4016), readAll(restored, 0x4016))
		assert.Equal(t, ButtonStart|ButtonDown, restored.Controller(0).Buttons())
	})
}

type fakeIRQ struct{ irq cpu.IRQSource }

func (f *fakeIRQ) SetIRQSource(source cpu.IRQSource)   { f.irq |= source }
func (f *fakeIRQ) ClearIRQSource(source cpu.IRQSource) { f.irq &^= source }

func TestVSControlManager(t *testing.T) {
	t.Run("master reads DIP switches and coins", func(t *testing.T) {
		m := NewVSControlManager(&fakeBus{value: 0xFF}, true, 0xA5C3)
		m.SetCabinetButtons(VSInsertCoin1 | VSService)

		// switches 0-1 on $4016 bits 3-4, no open bus
		assert.Equal(t, uint8(0x04|0x18|0x20), m.ReadRAM(0x4016))
		assert.Equal(t, uint8(0xC0), m.ReadRAM(0x4017))
	})

	t.Run("slave uses the high byte and flags itself", func(t *testing.T) {
		m := NewVSControlManager(&fakeBus{}, false, 0xA5C3)
		assert.Equal(t, uint8(0x80|0x08), m.ReadRAM(0x4016))
		assert.Equal(t, uint8(0xA4), m.ReadRAM(0x4017))
	})

	t.Run("pad bit survives", func(t *testing.T) {
		m := NewVSControlManager(&fakeBus{}, true, 0)
		m.SetButtons(0, ButtonA)
		m.UpdateInputState()
		m.WriteRAM(0x4016, 1)
		m.WriteRAM(0x4016, 0)
		assert.Equal(t, uint8(0x01), m.ReadRAM(0x4016))
		assert.Equal(t, uint8(0x00), m.ReadRAM(0x4016))
	})

	t.Run("$4016 bit 1 drives the other CPU's IRQ", func(t *testing.T) {
		peer := &fakeIRQ{}
		m := NewVSControlManager(&fakeBus{}, true, 0)
		m.SetPeer(peer)
		m.Reset(false)
		assert.Equal(t, cpu.IRQExternal, peer.irq)

		m.WriteRAM(0x4016, 0x02)
		assert.Zero(t, peer.irq)

		m.WriteRAM(0x4016, 0x04)
		assert.Equal(t, cpu.IRQExternal, peer.irq)
		assert.Equal(t, uint8(1), m.PRGChrSelect())
	})

	t.Run("no open bus", func(t *testing.T) {
		m := NewVSControlManager(&fakeBus{value: 0xFF}, true, 0)
		assert.Zero(t, m.OpenBusMask(0))
		assert.Zero(t, m.OpenBusMask(1))
	})
}

type fakePads struct {
	buttons [2]Buttons
	cabinet VSButtons
}

func (p *fakePads) SetButtons(port uint8, b Buttons) { p.buttons[port] = b }
func (p *fakePads) SetCabinetButtons(b VSButtons)    { p.cabinet = b }

func TestManager(t *testing.T) {
	t.Run("pad actions track held buttons", func(t *testing.T) {
		pads := &fakePads{}
		m := NewManager(pads)

		m.Trigger(action.PadA, event.Press)
		m.Trigger(action.PadRight, event.Press)
		m.Trigger(action.Pad2Start, event.Press)
		assert.Equal(t, ButtonA|ButtonRight, pads.buttons[0])
		assert.Equal(t, ButtonStart, pads.buttons[1])

		// rapid repeats are never dropped
		m.Trigger(action.PadA, event.Release)
		m.Trigger(action.PadA, event.Press)
		m.Trigger(action.PadA, event.Release)
		assert.Equal(t, ButtonRight, pads.buttons[0])
		assert.Equal(t, ButtonRight, m.Held(0))
	})

	t.Run("cabinet actions", func(t *testing.T) {
		pads := &fakePads{}
		m := NewManager(pads)
		m.SetCabinet(pads)

		m.Trigger(action.VSInsertCoin2, event.Press)
		assert.Equal(t, VSInsertCoin2, pads.cabinet)
		m.Trigger(action.VSInsertCoin2, event.Release)
		assert.Zero(t, pads.cabinet)
	})

	tests := []struct {
		name        string
		eventType   event.Type
		timeBetween time.Duration
		wantCalls   int
	}{
		{"rapid press is debounced", event.Press, 100 * time.Millisecond, 1},
		{"slow press goes through", event.Press, 400 * time.Millisecond, 2},
		{"hold is never debounced", event.Hold, 10 * time.Millisecond, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Unix(1000, 0)
			m := NewManager(nil)
			m.now = func() time.Time { return now }

			calls := 0
			m.On(action.EmulatorReset, tt.eventType, func() { calls++ })

			m.Trigger(action.EmulatorReset, tt.eventType)
			now = now.Add(tt.timeBetween)
			m.Trigger(action.EmulatorReset, tt.eventType)
			assert.Equal(t, tt.wantCalls, calls)
		})
	}

	t.Run("actions debounce independently", func(t *testing.T) {
		m := NewManager(nil)
		var resets, saves int
		m.On(action.EmulatorReset, event.Press, func() { resets++ })
		m.On(action.EmulatorSaveState, event.Press, func() { saves++ })

		m.Trigger(action.EmulatorReset, event.Press)
		m.Trigger(action.EmulatorSaveState, event.Press)
		m.Trigger(action.EmulatorReset, event.Press)
		assert.Equal(t, 1, resets)
		assert.Equal(t, 1, saves)
	})
}
