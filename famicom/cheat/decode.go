package cheat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidCode is returned for codes that cannot be decoded.
var ErrInvalidCode = errors.New("invalid cheat code")

const gameGenieLetters = "APZLGITYEOXUKSVN"

// DecodeGameGenie decodes a 6 or 8 letter Game Genie code. 8 letter codes
// only apply when the ROM holds the compare value.
func DecodeGameGenie(code string) (Code, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 6 && len(code) != 8 {
		return Code{}, fmt.Errorf("%w: game genie code %q must be 6 or 8 letters", ErrInvalidCode, code)
	}

	var n [8]uint32
	for i := 0; i < len(code); i++ {
		v := strings.IndexByte(gameGenieLetters, code[i])
		if v < 0 {
			return Code{}, fmt.Errorf("%w: %q is not a game genie letter", ErrInvalidCode, code[i])
		}
		n[i] = uint32(v)
	}

	address := 0x8000 + ((n[3]&7)<<12 | (n[5]&7)<<8 | (n[4]&8)<<8 |
		(n[2]&7)<<4 | (n[1]&8)<<4 | n[4]&7 | n[3]&8)

	c := Code{Type: GameGenie, Address: address, Relative: true}
	if len(code) == 6 {
		c.Value = uint8((n[1]&7)<<4 | (n[0]&8)<<4 | n[0]&7 | n[5]&8)
		return c, nil
	}
	c.Value = uint8((n[1]&7)<<4 | (n[0]&8)<<4 | n[0]&7 | n[7]&8)
	c.Compare = uint8((n[7]&7)<<4 | (n[6]&8)<<4 | n[6]&7 | n[5]&8)
	c.HasCompare = true
	return c, nil
}

// bit positions each decrypted Pro Action Rocky bit lands on: address,
// then compare, then value
var parShifts = [31]uint32{
	3, 13, 14, 1, 6, 9, 5, 0, 12, 7, 2, 8, 10, 11, 4,
	19, 21, 23, 22, 20, 17, 16, 18,
	29, 31, 24, 26, 25, 30, 27, 28,
}

// DecodeProActionRocky decrypts a Pro Action Rocky code. These always carry
// a compare value.
func DecodeProActionRocky(code uint32) Code {
	const xorValue = 0x5C184B91
	key := uint32(0x7E5EE93A)

	// bit 0 is unused
	code >>= 1

	var result uint32
	for i := 30; i >= 0; i-- {
		if (key^code)>>30&1 != 0 {
			result |= 1 << parShifts[i]
			key ^= xorValue
		}
		code <<= 1
		key <<= 1
	}

	return Code{
		Type:       ProActionRocky,
		Address:    result&0x7FFF + 0x8000,
		Value:      uint8(result >> 24),
		Compare:    uint8(result >> 16),
		HasCompare: true,
		Relative:   true,
	}
}

// Parse accepts a Game Genie code, an 8 digit hex Pro Action Rocky code or
// a raw CPU code written AAAA:VV or AAAA:VV:CC (hex).
func Parse(s string) (Code, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	if strings.Contains(s, ":") {
		return parseCustom(s)
	}
	if (len(s) == 6 || len(s) == 8) && strings.Trim(s, gameGenieLetters) == "" {
		return DecodeGameGenie(s)
	}
	if len(s) == 8 {
		v, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return Code{}, fmt.Errorf("%w: %q", ErrInvalidCode, s)
		}
		return DecodeProActionRocky(uint32(v)), nil
	}
	return Code{}, fmt.Errorf("%w: %q", ErrInvalidCode, s)
}

func parseCustom(s string) (Code, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Code{}, fmt.Errorf("%w: %q, want AAAA:VV or AAAA:VV:CC", ErrInvalidCode, s)
	}

	address, err := strconv.ParseUint(parts[0], 16, 16)
	if err != nil {
		return Code{}, fmt.Errorf("%w: address %q", ErrInvalidCode, parts[0])
	}
	value, err := strconv.ParseUint(parts[1], 16, 8)
	if err != nil {
		return Code{}, fmt.Errorf("%w: value %q", ErrInvalidCode, parts[1])
	}

	c := Code{Type: Custom, Address: uint32(address), Value: uint8(value), Relative: true}
	if len(parts) == 3 {
		compare, err := strconv.ParseUint(parts[2], 16, 8)
		if err != nil {
			return Code{}, fmt.Errorf("%w: compare %q", ErrInvalidCode, parts[2])
		}
		c.Compare = uint8(compare)
		c.HasCompare = true
	}
	return c, nil
}
