package cpu

import "github.com/valerio/go-famicom/famicom/memory"

type addressingMode uint8

const (
	modeNone addressingMode = iota
	modeAcc
	modeImp
	modeImm
	modeRel
	modeZero
	modeAbs
	modeZeroX
	modeZeroY
	modeInd
	modeIndX
	modeIndY
	// the W variants always take the dummy read, used by stores and RMW
	modeIndYW
	modeAbsX
	modeAbsXW
	modeAbsY
	modeAbsYW
)

// operandSize returns the number of operand bytes following an opcode.
func (m addressingMode) operandSize() int {
	switch m {
	case modeNone, modeAcc, modeImp:
		return 0
	case modeImm, modeRel, modeZero, modeZeroX, modeZeroY, modeIndX, modeIndY, modeIndYW:
		return 1
	}
	return 2
}

func pageCrossed(a, b uint16) bool {
	return a&0xFF00 != b&0xFF00
}

// fetchOperand reads the operand bytes and resolves the effective address.
// For immediate and relative modes the result is the raw operand byte.
func (c *CPU) fetchOperand() uint16 {
	switch c.mode {
	case modeAcc, modeImp:
		c.dummyRead()
		return 0
	case modeImm, modeRel:
		return uint16(c.readByte())
	case modeZero:
		return uint16(c.readByte())
	case modeZeroX:
		return c.zeroIndexed(c.x)
	case modeZeroY:
		return c.zeroIndexed(c.y)
	case modeInd:
		return c.readWord()
	case modeIndX:
		return c.indexedIndirect()
	case modeIndY:
		return c.indirectIndexed(false)
	case modeIndYW:
		return c.indirectIndexed(true)
	case modeAbs:
		return c.readWord()
	case modeAbsX:
		return c.absoluteIndexed(c.x, false)
	case modeAbsXW:
		return c.absoluteIndexed(c.x, true)
	case modeAbsY:
		return c.absoluteIndexed(c.y, false)
	case modeAbsYW:
		return c.absoluteIndexed(c.y, true)
	}
	return 0
}

func (c *CPU) zeroIndexed(index uint8) uint16 {
	base := c.readByte()
	c.memoryRead(uint16(base), memory.DummyRead)
	return uint16(base + index)
}

func (c *CPU) absoluteIndexed(index uint8, dummyRead bool) uint16 {
	base := c.readWord()
	address := base + uint16(index)
	crossed := pageCrossed(base, address)
	if crossed || dummyRead {
		// the high byte is not fixed up yet on the first access
		wrong := address
		if crossed {
			wrong -= 0x100
		}
		c.memoryRead(wrong, memory.DummyRead)
	}
	return address
}

func (c *CPU) readZeroPageWord(zero uint8) uint16 {
	if zero == 0xFF {
		low := c.memoryRead(0xFF, memory.Read)
		high := c.memoryRead(0x00, memory.Read)
		return uint16(high)<<8 | uint16(low)
	}
	return c.readWordAt(uint16(zero), memory.Read)
}

func (c *CPU) indexedIndirect() uint16 {
	zero := c.readByte()
	c.memoryRead(uint16(zero), memory.DummyRead)
	zero += c.x
	return c.readZeroPageWord(zero)
}

func (c *CPU) indirectIndexed(dummyRead bool) uint16 {
	zero := c.readByte()
	base := c.readZeroPageWord(zero)
	address := base + uint16(c.y)
	crossed := pageCrossed(base, address)
	if crossed || dummyRead {
		wrong := address
		if crossed {
			wrong -= 0x100
		}
		c.memoryRead(wrong, memory.DummyRead)
	}
	return address
}

// operandValue returns the immediate operand or the byte at the effective
// address, depending on the addressing mode.
func (c *CPU) operandValue() uint8 {
	if c.mode >= modeZero {
		return c.memoryRead(c.operand, memory.Read)
	}
	return uint8(c.operand)
}
