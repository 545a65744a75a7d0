package cpu

import (
	"github.com/valerio/go-famicom/famicom/addr"
	"github.com/valerio/go-famicom/famicom/memory"
)

// loads, stores and transfers

func (c *CPU) lda() { c.setA(c.operandValue()) }
func (c *CPU) ldx() { c.setX(c.operandValue()) }
func (c *CPU) ldy() { c.setY(c.operandValue()) }

func (c *CPU) sta() { c.memoryWrite(c.operand, c.a, memory.Write) }
func (c *CPU) stx() { c.memoryWrite(c.operand, c.x, memory.Write) }
func (c *CPU) sty() { c.memoryWrite(c.operand, c.y, memory.Write) }

func (c *CPU) tax() { c.setX(c.a) }
func (c *CPU) tay() { c.setY(c.a) }
func (c *CPU) tsx() { c.setX(c.sp) }
func (c *CPU) txa() { c.setA(c.x) }
func (c *CPU) txs() { c.sp = c.x }
func (c *CPU) tya() { c.setA(c.y) }

// stack

func (c *CPU) pha() { c.push(c.a) }
func (c *CPU) php() { c.push(c.ps | flagBreak | flagReserved) }

func (c *CPU) pla() {
	c.dummyRead()
	c.setA(c.pop())
}

func (c *CPU) plp() {
	c.dummyRead()
	c.setPS(c.pop())
}

// arithmetic and logic

func (c *CPU) add(value uint8) {
	carry := uint16(c.ps & flagCarry)
	result := uint16(c.a) + uint16(value) + carry

	c.clearFlags(flagCarry | flagNegative | flagOverflow | flagZero)
	c.setZeroNegative(uint8(result))
	if ^(uint16(c.a)^uint16(value))&(uint16(c.a)^result)&0x80 != 0 {
		c.setFlags(flagOverflow)
	}
	if result > 0xFF {
		c.setFlags(flagCarry)
	}
	c.setA(uint8(result))
}

func (c *CPU) adc() { c.add(c.operandValue()) }
func (c *CPU) sbc() { c.add(c.operandValue() ^ 0xFF) }

func (c *CPU) and() { c.setA(c.a & c.operandValue()) }
func (c *CPU) eor() { c.setA(c.a ^ c.operandValue()) }
func (c *CPU) ora() { c.setA(c.a | c.operandValue()) }

func (c *CPU) compare(reg, value uint8) {
	c.clearFlags(flagCarry | flagNegative | flagZero)
	if reg >= value {
		c.setFlags(flagCarry)
	}
	if reg == value {
		c.setFlags(flagZero)
	}
	if (reg-value)&0x80 != 0 {
		c.setFlags(flagNegative)
	}
}

func (c *CPU) cmp() { c.compare(c.a, c.operandValue()) }
func (c *CPU) cpx() { c.compare(c.x, c.operandValue()) }
func (c *CPU) cpy() { c.compare(c.y, c.operandValue()) }

func (c *CPU) bit() {
	value := c.operandValue()
	c.clearFlags(flagZero | flagOverflow | flagNegative)
	if c.a&value == 0 {
		c.setFlags(flagZero)
	}
	c.ps |= value & (flagOverflow | flagNegative)
}

func (c *CPU) inx() { c.setX(c.x + 1) }
func (c *CPU) iny() { c.setY(c.y + 1) }
func (c *CPU) dex() { c.setX(c.x - 1) }
func (c *CPU) dey() { c.setY(c.y - 1) }

// readModifyWrite performs the read, the write back of the unmodified
// value and the final write every RMW instruction does.
func (c *CPU) readModifyWrite(modify func(uint8) uint8) uint8 {
	address := c.operand
	value := c.memoryRead(address, memory.Read)
	c.memoryWrite(address, value, memory.DummyWrite)
	value = modify(value)
	c.memoryWrite(address, value, memory.Write)
	return value
}

func (c *CPU) increment(value uint8) uint8 {
	value++
	c.clearFlags(flagZero | flagNegative)
	c.setZeroNegative(value)
	return value
}

func (c *CPU) decrement(value uint8) uint8 {
	value--
	c.clearFlags(flagZero | flagNegative)
	c.setZeroNegative(value)
	return value
}

func (c *CPU) inc() { c.readModifyWrite(c.increment) }
func (c *CPU) dec() { c.readModifyWrite(c.decrement) }

// shifts

func (c *CPU) shiftLeft(value uint8) uint8 {
	c.clearFlags(flagCarry | flagNegative | flagZero)
	if value&0x80 != 0 {
		c.setFlags(flagCarry)
	}
	result := value << 1
	c.setZeroNegative(result)
	return result
}

func (c *CPU) shiftRight(value uint8) uint8 {
	c.clearFlags(flagCarry | flagNegative | flagZero)
	if value&0x01 != 0 {
		c.setFlags(flagCarry)
	}
	result := value >> 1
	c.setZeroNegative(result)
	return result
}

func (c *CPU) rotateLeft(value uint8) uint8 {
	carry := c.ps & flagCarry
	c.clearFlags(flagCarry | flagNegative | flagZero)
	if value&0x80 != 0 {
		c.setFlags(flagCarry)
	}
	result := value<<1 | carry
	c.setZeroNegative(result)
	return result
}

func (c *CPU) rotateRight(value uint8) uint8 {
	carry := c.ps & flagCarry
	c.clearFlags(flagCarry | flagNegative | flagZero)
	if value&0x01 != 0 {
		c.setFlags(flagCarry)
	}
	result := value>>1 | carry<<7
	c.setZeroNegative(result)
	return result
}

func (c *CPU) aslA() { c.a = c.shiftLeft(c.a) }
func (c *CPU) lsrA() { c.a = c.shiftRight(c.a) }
func (c *CPU) rolA() { c.a = c.rotateLeft(c.a) }
func (c *CPU) rorA() { c.a = c.rotateRight(c.a) }

func (c *CPU) asl() { c.readModifyWrite(c.shiftLeft) }
func (c *CPU) lsr() { c.readModifyWrite(c.shiftRight) }
func (c *CPU) rol() { c.readModifyWrite(c.rotateLeft) }
func (c *CPU) ror() { c.readModifyWrite(c.rotateRight) }

// control flow

func (c *CPU) branch(taken bool) {
	if !taken {
		return
	}
	// A taken branch without page crossing does not poll interrupts on its
	// last cycle, which delays an IRQ that became pending during it.
	if c.runIrq && !c.prevRunIrq {
		c.runIrq = false
	}
	c.dummyRead()

	target := c.pc + uint16(int8(uint8(c.operand)))
	if pageCrossed(c.pc, target) {
		c.dummyRead()
	}
	c.pc = target
}

func (c *CPU) bcc() { c.branch(!c.checkFlag(flagCarry)) }
func (c *CPU) bcs() { c.branch(c.checkFlag(flagCarry)) }
func (c *CPU) beq() { c.branch(c.checkFlag(flagZero)) }
func (c *CPU) bmi() { c.branch(c.checkFlag(flagNegative)) }
func (c *CPU) bne() { c.branch(!c.checkFlag(flagZero)) }
func (c *CPU) bpl() { c.branch(!c.checkFlag(flagNegative)) }
func (c *CPU) bvc() { c.branch(!c.checkFlag(flagOverflow)) }
func (c *CPU) bvs() { c.branch(c.checkFlag(flagOverflow)) }

func (c *CPU) jmpAbs() { c.pc = c.operand }

// jmpInd reproduces the indirect jump bug: the pointer high byte is read
// from the start of the same page when the low byte sits at $xxFF.
func (c *CPU) jmpInd() {
	if c.operand&0xFF == 0xFF {
		low := c.memoryRead(c.operand, memory.Read)
		high := c.memoryRead(c.operand-0xFF, memory.Read)
		c.pc = uint16(high)<<8 | uint16(low)
		return
	}
	c.pc = c.readWordAt(c.operand, memory.Read)
}

func (c *CPU) jsr() {
	address := c.operand
	c.dummyRead()
	c.pushWord(c.pc - 1)
	c.pc = address
}

func (c *CPU) rts() {
	address := c.popWord()
	c.dummyRead()
	c.dummyRead()
	c.pc = address + 1
}

func (c *CPU) rti() {
	c.dummyRead()
	c.setPS(c.pop())
	c.pc = c.popWord()
}

func (c *CPU) brk() {
	c.pushWord(c.pc + 1)
	flags := c.ps | flagBreak | flagReserved

	// an NMI during the push hijacks the vector fetch
	if c.needNmi {
		c.needNmi = false
		c.push(flags)
		c.setFlags(flagInterrupt)
		c.pc = c.readWordAt(addr.NMIVector, memory.Read)
	} else {
		c.push(flags)
		c.setFlags(flagInterrupt)
		c.pc = c.readWordAt(addr.IRQVector, memory.Read)
	}

	// the interrupt sequence just ran, don't run another one right after
	c.prevNeedNmi = false
}

// flags

func (c *CPU) clc() { c.clearFlags(flagCarry) }
func (c *CPU) cld() { c.clearFlags(flagDecimal) }
func (c *CPU) cli() { c.clearFlags(flagInterrupt) }
func (c *CPU) clv() { c.clearFlags(flagOverflow) }
func (c *CPU) sec() { c.setFlags(flagCarry) }
func (c *CPU) sed() { c.setFlags(flagDecimal) }
func (c *CPU) sei() { c.setFlags(flagInterrupt) }

// nop still performs the read of its addressing mode.
func (c *CPU) nop() { c.operandValue() }

// unofficial opcodes

func (c *CPU) slo() {
	c.readModifyWrite(func(v uint8) uint8 {
		shifted := c.shiftLeft(v)
		c.setA(c.a | shifted)
		return shifted
	})
}

func (c *CPU) sre() {
	c.readModifyWrite(func(v uint8) uint8 {
		shifted := c.shiftRight(v)
		c.setA(c.a ^ shifted)
		return shifted
	})
}

func (c *CPU) rla() {
	c.readModifyWrite(func(v uint8) uint8 {
		shifted := c.rotateLeft(v)
		c.setA(c.a & shifted)
		return shifted
	})
}

func (c *CPU) rra() {
	c.readModifyWrite(func(v uint8) uint8 {
		shifted := c.rotateRight(v)
		c.add(shifted)
		return shifted
	})
}

func (c *CPU) dcp() {
	c.readModifyWrite(func(v uint8) uint8 {
		v--
		c.compare(c.a, v)
		return v
	})
}

func (c *CPU) isb() {
	c.readModifyWrite(func(v uint8) uint8 {
		v++
		c.add(v ^ 0xFF)
		return v
	})
}

func (c *CPU) sax() { c.memoryWrite(c.operand, c.a&c.x, memory.Write) }

func (c *CPU) lax() {
	value := c.operandValue()
	c.setX(value)
	c.setA(value)
}

func (c *CPU) aac() {
	c.setA(c.a & c.operandValue())
	c.clearFlags(flagCarry)
	if c.checkFlag(flagNegative) {
		c.setFlags(flagCarry)
	}
}

func (c *CPU) asr() {
	c.clearFlags(flagCarry)
	c.setA(c.a & c.operandValue())
	if c.a&0x01 != 0 {
		c.setFlags(flagCarry)
	}
	c.setA(c.a >> 1)
}

func (c *CPU) arr() {
	c.setA((c.a&c.operandValue())>>1 | (c.ps&flagCarry)<<7)
	c.clearFlags(flagCarry | flagOverflow)
	if c.a&0x40 != 0 {
		c.setFlags(flagCarry)
	}
	if (c.ps&flagCarry)^(c.a>>5&0x01) != 0 {
		c.setFlags(flagOverflow)
	}
}

func (c *CPU) atx() {
	c.setA(c.operandValue())
	c.setX(c.a)
}

func (c *CPU) axs() {
	operand := c.operandValue()
	masked := c.a & c.x
	c.clearFlags(flagCarry)
	if masked >= operand {
		c.setFlags(flagCarry)
	}
	c.setX(masked - operand)
}

// ane uses the 0xEE "magic" constant most 2A03 chips show.
func (c *CPU) ane() { c.setA((c.a | 0xEE) & c.x & c.operandValue()) }

func (c *CPU) las() {
	value := c.operandValue() & c.sp
	c.setA(value)
	c.setX(value)
	c.sp = value
}

// unstableStore implements the SHY/SHX/SHA/TAS family: the stored value is
// ANDed with the base high byte plus one, and on a page crossing the
// corrupted value also replaces the high byte of the target.
func (c *CPU) unstableStore(index, value uint8) {
	base := c.operand - uint16(index)
	high := uint8(c.operand >> 8)
	if pageCrossed(base, c.operand) {
		high &= value
	}
	stored := value & (uint8(base>>8) + 1)
	c.memoryWrite(uint16(high)<<8|c.operand&0xFF, stored, memory.Write)
}

func (c *CPU) sya() { c.unstableStore(c.x, c.y) }
func (c *CPU) sxa() { c.unstableStore(c.y, c.x) }
func (c *CPU) axa() { c.unstableStore(c.y, c.a&c.x) }

func (c *CPU) tas() {
	c.sp = c.x & c.a
	c.unstableStore(c.y, c.sp)
}

func (c *CPU) hlt() { c.jammed = true }
