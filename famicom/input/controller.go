package input

import "github.com/valerio/go-famicom/famicom/state"

// Buttons is the state of a standard controller, in the order the shift
// register reports them.
type Buttons uint8

const (
	ButtonA Buttons = 1 << iota
	ButtonB
	ButtonSelect
	ButtonStart
	ButtonUp
	ButtonDown
	ButtonLeft
	ButtonRight
)

// StandardController is the NES/Famicom pad: an 8-bit parallel-in shift
// register latched while strobe is high.
type StandardController struct {
	port    uint8
	buttons Buttons
	shift   uint8
	strobe  bool

	// AllowOpposing lets up+down and left+right through; the d-pad
	// can't physically press both.
	AllowOpposing bool
}

func NewStandardController(port uint8) *StandardController {
	return &StandardController{port: port}
}

func (c *StandardController) Port() uint8 {
	return c.port
}

func (c *StandardController) Buttons() Buttons {
	return c.buttons
}

func (c *StandardController) SetButtons(b Buttons) {
	if !c.AllowOpposing {
		if b&(ButtonUp|ButtonDown) == ButtonUp|ButtonDown {
			b &^= ButtonUp | ButtonDown
		}
		if b&(ButtonLeft|ButtonRight) == ButtonLeft|ButtonRight {
			b &^= ButtonLeft | ButtonRight
		}
	}
	c.buttons = b
}

func (c *StandardController) Press(b Buttons) {
	c.SetButtons(c.buttons | b)
}

func (c *StandardController) Release(b Buttons) {
	c.SetButtons(c.buttons &^ b)
}

// Read shifts out the next button, bit 0. Official pads return 1 once all
// eight have been read.
func (c *StandardController) Read() uint8 {
	if c.strobe {
		c.refresh()
	}
	out := c.shift & 0x01
	c.shift = c.shift>>1 | 0x80
	return out
}

// Write drives the strobe line; the buttons are latched on its falling edge.
func (c *StandardController) Write(value uint8) {
	prev := c.strobe
	c.strobe = value&0x01 != 0
	if prev && !c.strobe {
		c.refresh()
	}
}

func (c *StandardController) refresh() {
	c.shift = uint8(c.buttons)
}

func (c *StandardController) reset() {
	c.shift = 0
	c.strobe = false
}

func (c *StandardController) StreamState(s *state.Stream) {
	b := uint8(c.buttons)
	s.Uint8(&b)
	c.buttons = Buttons(b)
	s.Uint8(&c.shift)
	s.Bool(&c.strobe)
}
