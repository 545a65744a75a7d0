package video

import (
	"image"
	"image/color"
)

const (
	FramebufferWidth  = 256
	FramebufferHeight = 240
)

// FrameBuffer is a converted frame, one 0xRRGGBBAA value per pixel.
type FrameBuffer struct {
	width   uint
	height  uint
	buffer  []uint32
	palette *Palette
}

// NewFrameBuffer creates a frame buffer of the PPU's output size.
func NewFrameBuffer(palette *Palette) *FrameBuffer {
	if palette == nil {
		palette = DefaultPalette
	}
	return &FrameBuffer{
		width:   FramebufferWidth,
		height:  FramebufferHeight,
		buffer:  make([]uint32, FramebufferWidth*FramebufferHeight),
		palette: palette,
	}
}

// Update converts a PPU frame. Short frames leave the remaining pixels
// untouched.
func (fb *FrameBuffer) Update(pixels []uint16) {
	n := min(len(pixels), len(fb.buffer))
	for i := 0; i < n; i++ {
		c := fb.palette.RGBA(pixels[i])
		fb.buffer[i] = uint32(c.R)<<24 | uint32(c.G)<<16 | uint32(c.B)<<8 | uint32(c.A)
	}
}

func (fb *FrameBuffer) Width() uint  { return fb.width }
func (fb *FrameBuffer) Height() uint { return fb.height }

func (fb *FrameBuffer) GetPixel(x, y uint) uint32 {
	return fb.buffer[y*fb.width+x]
}

func (fb *FrameBuffer) ToSlice() []uint32 {
	return fb.buffer
}

// Color returns the pixel at x, y.
func (fb *FrameBuffer) Color(x, y uint) color.RGBA {
	p := fb.GetPixel(x, y)
	return color.RGBA{R: uint8(p >> 24), G: uint8(p >> 16), B: uint8(p >> 8), A: uint8(p)}
}

// Luminance returns the perceived brightness of the pixel at x, y in 0-255.
func (fb *FrameBuffer) Luminance(x, y uint) uint8 {
	c := fb.Color(x, y)
	return uint8((299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B)) / 1000)
}

// Image copies the frame into an image.RGBA.
func (fb *FrameBuffer) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, int(fb.width), int(fb.height)))
	for i, p := range fb.buffer {
		img.Pix[i*4] = uint8(p >> 24)
		img.Pix[i*4+1] = uint8(p >> 16)
		img.Pix[i*4+2] = uint8(p >> 8)
		img.Pix[i*4+3] = uint8(p)
	}
	return img
}
