// Package video turns the PPU's palette-index frames into RGBA images.
package video

import "image/color"

// ntscColors is the 2C02 master palette.
var ntscColors = [64]uint32{
	0x666666, 0x002A88, 0x1412A7, 0x3B00A4, 0x5C007E, 0x6E0040, 0x6C0600, 0x561D00,
	0x333500, 0x0B4800, 0x005200, 0x004F08, 0x00404D, 0x000000, 0x000000, 0x000000,
	0xADADAD, 0x155FD9, 0x4240FF, 0x7527FE, 0xA01ACC, 0xB71E7B, 0xB53120, 0x994E00,
	0x6B6D00, 0x388700, 0x0C9300, 0x008F32, 0x007C8D, 0x000000, 0x000000, 0x000000,
	0xFFFEFF, 0x64B0FF, 0x9290FF, 0xC676FF, 0xF36AFF, 0xFE6ECC, 0xFE8170, 0xEA9E22,
	0xBCBE00, 0x88D800, 0x5CE430, 0x45E082, 0x48CDDE, 0x4F4F4F, 0x000000, 0x000000,
	0xFFFEFF, 0xC0DFFF, 0xD3D2FF, 0xE8C8FF, 0xFBC2FF, 0xFEC4EA, 0xFECCC5, 0xF7D8A5,
	0xE4E594, 0xCFEF96, 0xBDF4AB, 0xB3F3CC, 0xB5EBF2, 0xB8B8B8, 0x000000, 0x000000,
}

const emphasisAttenuation = 0.816328

// Palette maps the 9-bit PPU pixel (6-bit color, 3 emphasis bits) to RGBA.
type Palette [512]color.RGBA

// DefaultPalette is the 2C02 palette with all emphasis combinations.
var DefaultPalette = NewPalette(ntscColors)

// NewPalette expands 64 base colors into the 512 entries covering every
// emphasis combination. Bit 6 emphasizes red, bit 7 green and bit 8 blue.
func NewPalette(base [64]uint32) *Palette {
	var p Palette
	for emphasis := 0; emphasis < 8; emphasis++ {
		for i, c := range base {
			r := float64(uint8(c >> 16))
			g := float64(uint8(c >> 8))
			b := float64(uint8(c))

			if emphasis != 0 && i&0x0F <= 0x0D {
				red := emphasis&0x01 != 0
				green := emphasis&0x02 != 0
				blue := emphasis&0x04 != 0
				// each emphasis bit darkens the other two channels
				if green || blue {
					r *= emphasisAttenuation
				}
				if red || blue {
					g *= emphasisAttenuation
				}
				if red || green {
					b *= emphasisAttenuation
				}
			}

			p[emphasis<<6|i] = color.RGBA{R: uint8(r), G: uint8(g), B: uint8(b), A: 0xFF}
		}
	}
	return &p
}

// RGBA returns the color of a PPU pixel.
func (p *Palette) RGBA(pixel uint16) color.RGBA {
	return p[pixel&0x1FF]
}
