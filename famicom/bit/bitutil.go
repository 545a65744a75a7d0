package bit

// Combine combines two 8 bit values into a single 16 bit value.
// The high byte will be the most significant one.
func Combine(high, low uint8) uint16 {
	return (uint16(high) << 8) | uint16(low)
}

// IsSet will check if the bit at the specified index is set to 1 or not.
func IsSet(index, value uint8) bool {
	return ((value >> index) & 1) == 1
}

// Set will return the passed byte with the bit at the specified index set to 1.
func Set(index, value uint8) uint8 {
	return value | (1 << index)
}

// Clear will return the passed byte with the bit at the specified index set to 0.
func Clear(index, value uint8) uint8 {
	return value & ^(1 << index)
}

// Value returns 1 if the bit at index is set, 0 otherwise.
func Value(index, value uint8) uint8 {
	return (value >> index) & 1
}

// Low returns the low (LSB) part of a 16 bit number.
func Low(value uint16) uint8 {
	return uint8(value)
}

// High returns the high (MSB) part of a 16 bit number.
func High(value uint16) uint8 {
	return uint8(value >> 8)
}

// PageCrossed reports whether adding offset to base lands on a different
// 256-byte page. The offset is treated as signed, as relative branches do.
func PageCrossed(base uint16, offset int8) bool {
	return ((base + uint16(offset)) & 0xFF00) != (base & 0xFF00)
}

// PageCrossedUnsigned is PageCrossed for index register offsets.
func PageCrossedUnsigned(base uint16, offset uint8) bool {
	return ((base + uint16(offset)) & 0xFF00) != (base & 0xFF00)
}

// Bool converts a boolean to 0 or 1.
func Bool(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// Reverse mirrors the bit order of a byte (bit 0 becomes bit 7).
func Reverse(value uint8) uint8 {
	value = (value&0xF0)>>4 | (value&0x0F)<<4
	value = (value&0xCC)>>2 | (value&0x33)<<2
	value = (value&0xAA)>>1 | (value&0x55)<<1
	return value
}
