// Package rom parses iNES and NES 2.0 cartridge images.
package rom

import (
	"bytes"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidHeader is returned for images that are not iNES files or whose
// sizes disagree with the header.
var ErrInvalidHeader = errors.New("invalid iNES header")

const (
	headerSize  = 16
	trainerSize = 512
	prgUnit     = 0x4000
	chrUnit     = 0x2000
)

var magic = []byte{'N', 'E', 'S', 0x1A}

// Mirroring is the nametable layout selected by the board.
type Mirroring uint8

const (
	Horizontal Mirroring = iota
	Vertical
	ScreenAOnly
	ScreenBOnly
	FourScreens
)

func (m Mirroring) String() string {
	switch m {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case ScreenAOnly:
		return "screen-a"
	case ScreenBOnly:
		return "screen-b"
	case FourScreens:
		return "four-screens"
	}
	return "unknown"
}

// System is the hardware the ROM was released for.
type System uint8

const (
	SystemUnknown System = iota
	SystemNTSC
	SystemPAL
	SystemDendy
	SystemVS
	SystemPlaychoice
)

func (s System) String() string {
	switch s {
	case SystemNTSC:
		return "NTSC"
	case SystemPAL:
		return "PAL"
	case SystemDendy:
		return "Dendy"
	case SystemVS:
		return "VS System"
	case SystemPlaychoice:
		return "Playchoice"
	}
	return "unknown"
}

// VsType identifies VS System protection and cabinet variants.
type VsType uint8

const (
	VsDefault VsType = iota
	VsRbiBaseballProtection
	VsTkoBoxingProtection
	VsSuperXeviousProtection
	VsIceClimberProtection
	VsDualSystem
	VsRaidOnBungelingBayProtection
)

// BusConflictType overrides a board's own bus conflict behaviour.
type BusConflictType uint8

const (
	BusConflictsDefault BusConflictType = iota
	BusConflictsYes
	BusConflictsNo
)

// Hash holds the checksums used to identify a dump.
type Hash struct {
	PRGCRC32    uint32
	PRGCHRCRC32 uint32
	// SHA1 of PRG+CHR, 40 uppercase hex digits.
	SHA1 string
}

// Info is the metadata decoded from the header.
type Info struct {
	Name         string
	MapperID     uint16
	SubMapperID  uint8
	IsNES20      bool
	System       System
	VsType       VsType
	HasBattery   bool
	HasTrainer   bool
	HasChrRAM    bool
	Mirroring    Mirroring
	BusConflicts BusConflictType
	Hash         Hash
}

// Data is a parsed cartridge image. RAM sizes are -1 when the header does
// not specify them and the board default applies.
type Data struct {
	Info Info

	PRGROM  []byte
	CHRROM  []byte
	Trainer []byte

	ChrRAMSize     int
	SaveChrRAMSize int
	WorkRAMSize    int
	SaveRAMSize    int
}

// New builds cartridge data from raw PRG/CHR contents, computing hashes.
func New(info Info, prg, chr []byte) *Data {
	d := &Data{
		Info:           info,
		PRGROM:         prg,
		CHRROM:         chr,
		ChrRAMSize:     -1,
		SaveChrRAMSize: -1,
		WorkRAMSize:    -1,
		SaveRAMSize:    -1,
	}
	if len(chr) == 0 {
		d.Info.HasChrRAM = true
	}
	d.Info.Hash = computeHash(prg, chr)
	return d
}

// Load reads and parses the file at path.
func Load(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ROM: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(name, raw)
}

// Parse decodes an iNES or NES 2.0 image.
func Parse(name string, raw []byte) (*Data, error) {
	if len(raw) < headerSize || !bytes.Equal(raw[:4], magic) {
		return nil, fmt.Errorf("%w: missing NES signature", ErrInvalidHeader)
	}
	h := raw[:headerSize]
	flags6, flags7 := h[6], h[7]

	nes20 := flags7&0x0C == 0x08
	info := Info{
		Name:       name,
		IsNES20:    nes20,
		HasBattery: flags6&0x02 != 0,
		HasTrainer: flags6&0x04 != 0,
	}

	switch {
	case flags6&0x08 != 0:
		info.Mirroring = FourScreens
	case flags6&0x01 != 0:
		info.Mirroring = Vertical
	default:
		info.Mirroring = Horizontal
	}

	prgSize, chrSize := int(h[4])*prgUnit, int(h[5])*chrUnit
	d := &Data{ChrRAMSize: -1, SaveChrRAMSize: -1, WorkRAMSize: -1, SaveRAMSize: -1}

	if nes20 {
		info.MapperID = uint16(flags6>>4) | uint16(flags7&0xF0) | uint16(h[8]&0x0F)<<8
		info.SubMapperID = h[8] >> 4
		prgSize = nes20RomSize(h[4], h[9]&0x0F, prgUnit)
		chrSize = nes20RomSize(h[5], h[9]>>4, chrUnit)

		d.WorkRAMSize = ramShift(h[10] & 0x0F)
		d.SaveRAMSize = ramShift(h[10] >> 4)
		d.ChrRAMSize = ramShift(h[11] & 0x0F)
		d.SaveChrRAMSize = ramShift(h[11] >> 4)

		switch flags7 & 0x03 {
		case 1:
			info.System = SystemVS
		case 2:
			info.System = SystemPlaychoice
		default:
			switch h[12] & 0x03 {
			case 1:
				info.System = SystemPAL
			case 3:
				info.System = SystemDendy
			default:
				info.System = SystemNTSC
			}
		}
		if info.System == SystemVS {
			info.VsType = VsType(h[13] >> 4)
		}
	} else {
		info.MapperID = uint16(flags6 >> 4)
		if dirtyTail(h) {
			slog.Debug("Ignoring upper mapper nibble of dirty iNES header", "rom", name)
		} else {
			info.MapperID |= uint16(flags7 & 0xF0)
		}
		switch {
		case flags7&0x01 != 0:
			info.System = SystemVS
		case flags7&0x02 != 0:
			info.System = SystemPlaychoice
		case h[9]&0x01 != 0:
			info.System = SystemPAL
		default:
			info.System = SystemNTSC
		}
	}

	offset := headerSize
	if info.HasTrainer {
		if len(raw) < offset+trainerSize {
			return nil, fmt.Errorf("%w: truncated trainer", ErrInvalidHeader)
		}
		d.Trainer = append([]byte(nil), raw[offset:offset+trainerSize]...)
		offset += trainerSize
	}

	if prgSize == 0 {
		return nil, fmt.Errorf("%w: no PRG ROM", ErrInvalidHeader)
	}
	if len(raw) < offset+prgSize {
		return nil, fmt.Errorf("%w: PRG ROM needs %d bytes, file has %d", ErrInvalidHeader, prgSize, len(raw)-offset)
	}
	d.PRGROM = append([]byte(nil), raw[offset:offset+prgSize]...)
	offset += prgSize

	if len(raw) < offset+chrSize {
		slog.Warn("CHR ROM truncated", "rom", name, "expected", chrSize, "actual", len(raw)-offset)
		chrSize = len(raw) - offset
	}
	d.CHRROM = append([]byte(nil), raw[offset:offset+chrSize]...)
	info.HasChrRAM = chrSize == 0

	info.Hash = computeHash(d.PRGROM, d.CHRROM)
	d.Info = info

	slog.Debug("ROM parsed",
		"rom", name,
		"mapper", info.MapperID,
		"submapper", info.SubMapperID,
		"nes20", nes20,
		"prg", len(d.PRGROM),
		"chr", len(d.CHRROM),
		"system", info.System.String(),
	)
	return d, nil
}

// nes20RomSize decodes the size fields including the exponent-multiplier
// notation used when the MSB nibble is $F.
func nes20RomSize(lsb, msb uint8, unit int) int {
	if msb == 0x0F {
		exponent := int(lsb >> 2)
		multiplier := int(lsb&0x03)*2 + 1
		if exponent > 30 {
			return 0
		}
		return (1 << exponent) * multiplier
	}
	return (int(msb)<<8 | int(lsb)) * unit
}

func ramShift(n uint8) int {
	if n == 0 {
		return 0
	}
	return 64 << n
}

// dirtyTail catches headers with garbage in bytes 12-15, typically a
// ripper's signature overwriting the mapper high nibble.
func dirtyTail(h []byte) bool {
	for _, b := range h[12:16] {
		if b != 0 {
			return true
		}
	}
	return false
}

func computeHash(prg, chr []byte) Hash {
	prgCRC := crc32.ChecksumIEEE(prg)
	sha := sha1.New()
	sha.Write(prg)
	sha.Write(chr)
	return Hash{
		PRGCRC32:    prgCRC,
		PRGCHRCRC32: crc32.Update(prgCRC, crc32.IEEETable, chr),
		SHA1:        strings.ToUpper(hex.EncodeToString(sha.Sum(nil))),
	}
}
