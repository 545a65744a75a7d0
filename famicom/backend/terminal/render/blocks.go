package render

// Shades used for terminal output, darkest first.
var shadeChars = []rune{' ', '░', '▒', '▓', '█'}

// Shade buckets a luminance value into one of the terminal shades.
func Shade(luminance uint8) int {
	return int(luminance) * len(shadeChars) / 256
}

// ShadeChar returns the character drawn for a shade.
func ShadeChar(shade int) rune {
	return shadeChars[min(max(shade, 0), len(shadeChars)-1)]
}

// HalfBlock picks the glyph that shows two vertically stacked pixels in
// one cell. The top pixel is the foreground of '▀', the bottom one its
// background, so equal colors collapse to a full block.
func HalfBlock(top, bottom uint32) rune {
	if top == bottom {
		return '█'
	}
	return '▀'
}
