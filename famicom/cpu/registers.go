package cpu

// Status register flags.
const (
	flagCarry     uint8 = 0x01
	flagZero      uint8 = 0x02
	flagInterrupt uint8 = 0x04
	flagDecimal   uint8 = 0x08
	flagBreak     uint8 = 0x10
	flagReserved  uint8 = 0x20
	flagOverflow  uint8 = 0x40
	flagNegative  uint8 = 0x80
)

// Registers is a copy of the programmer-visible CPU state.
type Registers struct {
	PC uint16
	SP uint8
	A  uint8
	X  uint8
	Y  uint8
	PS uint8
}

func (c *CPU) setFlags(flags uint8) {
	c.ps |= flags
}

func (c *CPU) clearFlags(flags uint8) {
	c.ps &^= flags
}

func (c *CPU) checkFlag(flag uint8) bool {
	return c.ps&flag == flag
}

func (c *CPU) setZeroNegative(value uint8) {
	if value == 0 {
		c.setFlags(flagZero)
	} else if value&0x80 != 0 {
		c.setFlags(flagNegative)
	}
}

func (c *CPU) setRegister(reg *uint8, value uint8) {
	c.clearFlags(flagZero | flagNegative)
	c.setZeroNegative(value)
	*reg = value
}

func (c *CPU) setA(value uint8) { c.setRegister(&c.a, value) }
func (c *CPU) setX(value uint8) { c.setRegister(&c.x, value) }
func (c *CPU) setY(value uint8) { c.setRegister(&c.y, value) }

// setPS drops the break and reserved bits, which only exist on the stack.
func (c *CPU) setPS(value uint8) {
	c.ps = value & 0xCF
}
