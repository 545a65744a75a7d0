// Package ppu emulates the 2C02 picture processing unit one dot at a time.
// It is driven by the CPU through Run, which catches the PPU up to the
// CPU's master clock after every CPU bus access.
package ppu

import (
	"log/slog"

	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/memory"
)

const (
	ScreenWidth  = 256
	ScreenHeight = 240
	PixelCount   = ScreenWidth * ScreenHeight

	cyclesPerScanline = 341
)

// Mapper is the cartridge side of the PPU bus.
type Mapper interface {
	ReadVRAM(address uint16) uint8
	WriteVRAM(address uint16, value uint8)
	NotifyVRAMAddressChange(address uint16)
}

// CPU is the part of the CPU the PPU drives.
type CPU interface {
	SetNMIFlag()
	ClearNMIFlag()
	RunDMATransfer(page uint8)
}

var paletteBootValues = [0x20]uint8{
	0x09, 0x01, 0x00, 0x01, 0x00, 0x02, 0x02, 0x0D, 0x08, 0x10, 0x08, 0x24, 0x00, 0x00, 0x04, 0x2C,
	0x09, 0x01, 0x34, 0x03, 0x00, 0x04, 0x00, 0x14, 0x08, 0x3A, 0x00, 0x02, 0x00, 0x20, 0x2C, 0x08,
}

type tileInfo struct {
	lowByte       uint8
	highByte      uint8
	paletteOffset uint8
	tileAddr      uint16
}

type spriteTile struct {
	lowByte            uint8
	highByte           uint8
	paletteOffset      uint8
	x                  uint8
	horizontalMirror   bool
	backgroundPriority bool
}

// flags decoded from PPUCTRL and PPUMASK
type flags struct {
	verticalWrite         bool
	spritePatternAddr     uint16
	backgroundPatternAddr uint16
	largeSprites          bool
	vblank                bool

	grayscale         bool
	backgroundMask    bool
	spriteMask        bool
	backgroundEnabled bool
	spritesEnabled    bool
}

type statusFlags struct {
	spriteOverflow bool
	sprite0Hit     bool
	verticalBlank  bool
}

// PPU is the 2C02 state.
type PPU struct {
	cpu    CPU
	mapper Mapper

	model       config.Model
	divider     uint8
	masterClock uint64

	nmiScanline           int32
	vblankEnd             int32
	palSpriteEvalScanline int32

	scanline   int32
	cycle      uint32
	frameCount uint32

	// loopy registers
	v          uint16
	t          uint16
	xScroll    uint8
	writeLatch bool

	control       uint8
	mask          uint8
	oamAddr       uint8
	lowBitShift   uint16
	highBitShift  uint16
	flags         flags
	status        statusFlags
	busAddress    uint16
	readBuffer    uint8
	paletteMask   uint8
	intensifyBits uint16

	openBus           uint8
	openBusDecayStamp [8]uint32
	ignoreVRAMRead    uint8

	preventVblFlag       bool
	needStateUpdate      bool
	renderingEnabled     bool
	prevRenderingEnabled bool
	updateVRAMAddrDelay  uint8
	updateVRAMAddr       uint16

	minimumDrawBgCycle     uint32
	minimumDrawSpriteCycle uint32

	paletteRAM   [0x20]uint8
	oam          [0x100]uint8
	secondaryOAM [0x20]uint8

	previousTile tileInfo
	currentTile  tileInfo
	nextTile     tileInfo

	spriteTiles      [8]spriteTile
	hasSprite        [257]bool
	spriteCount      uint32
	spriteIndex      uint32
	secondaryOAMAddr uint32
	sprite0Visible   bool
	sprite0Added     bool
	spriteInRange    bool
	oamCopyBuffer    uint8
	oamCopyDone      bool
	spriteAddrH      uint8
	spriteAddrL      uint8
	overflowBugCount uint8

	buffers       [2][PixelCount]uint16
	currentBuffer int
	onFrame       func(frame []uint16)
}

// New returns a powered-on PPU. OAM content comes from ram.
func New(cpu CPU, mapper Mapper, ram memory.RAMInitializer) *PPU {
	p := &PPU{
		cpu:    cpu,
		mapper: mapper,
	}
	p.paletteRAM = paletteBootValues
	if ram != nil {
		ram.InitializeRAM(p.oam[:])
		ram.InitializeRAM(p.secondaryOAM[:])
	}
	p.SetNesModel(config.ModelNTSC)
	p.Reset()
	return p
}

// SetFrameHandler registers a function called with every completed frame.
// The slice is only valid until the next frame starts.
func (p *PPU) SetFrameHandler(fn func(frame []uint16)) {
	p.onFrame = fn
}

// Reset puts the PPU back in its power-on register state. Palette and OAM
// content survive.
func (p *PPU) Reset() {
	p.masterClock = 0
	p.preventVblFlag = false
	p.needStateUpdate = false
	p.prevRenderingEnabled = false
	p.renderingEnabled = false
	p.ignoreVRAMRead = 0
	p.openBus = 0
	p.openBusDecayStamp = [8]uint32{}

	p.v, p.t, p.xScroll, p.writeLatch = 0, 0, 0, false
	p.control, p.mask, p.oamAddr = 0, 0, 0
	p.lowBitShift, p.highBitShift = 0, 0
	p.flags = flags{}
	p.status = statusFlags{}
	p.busAddress = 0
	p.paletteMask = 0x3F
	p.intensifyBits = 0

	p.previousTile, p.currentTile, p.nextTile = tileInfo{}, tileInfo{}, tileInfo{}
	p.spriteTiles = [8]spriteTile{}
	p.spriteCount = 0
	p.secondaryOAMAddr = 0
	p.sprite0Visible = false
	p.spriteIndex = 0

	// the first exec lands on scanline 0, cycle 0
	p.scanline = -1
	p.cycle = 340
	p.frameCount = 1
	p.readBuffer = 0
	p.overflowBugCount = 0
	p.updateVRAMAddrDelay = 0
	p.updateVRAMAddr = 0

	p.updateMinimumDrawCycles()
}

// SetNesModel selects the region timing.
func (p *PPU) SetNesModel(model config.Model) {
	p.model = model
	switch model {
	case config.ModelPAL:
		p.nmiScanline, p.vblankEnd, p.divider = 241, 310, 5
	case config.ModelDendy:
		p.nmiScanline, p.vblankEnd, p.divider = 291, 310, 5
	default:
		p.nmiScanline, p.vblankEnd, p.divider = 241, 260, 4
	}
	p.palSpriteEvalScanline = p.nmiScanline + 24
	slog.Debug("PPU timing", "model", model.String(), "nmiScanline", p.nmiScanline, "vblankEnd", p.vblankEnd)
}

// Run executes PPU dots until the PPU reaches the given master clock. At
// least one dot always runs.
func (p *PPU) Run(target uint64) {
	for {
		p.exec()
		p.masterClock += uint64(p.divider)
		if p.masterClock+uint64(p.divider) > target {
			break
		}
	}
}

func (p *PPU) exec() {
	if p.cycle > 339 {
		p.cycle = 0
		p.scanline++
		if p.scanline > p.vblankEnd {
			p.scanline = -1
			// pre-render sprite fetches load the $FF dummy tiles
			p.spriteCount = 0
			p.updateMinimumDrawCycles()
		}

		switch p.scanline {
		case -1:
			p.status.spriteOverflow = false
			p.status.sprite0Hit = false
			p.currentBuffer ^= 1
		case ScreenHeight:
			p.setBusAddress(p.v)
			p.sendFrame()
			p.frameCount++
		}
	} else {
		p.cycle++
		if p.scanline < ScreenHeight {
			p.processScanline()
		} else if p.cycle == 1 && p.scanline == p.nmiScanline {
			if !p.preventVblFlag {
				p.status.verticalBlank = true
				p.beginVBlank()
			}
			p.preventVblFlag = false
		} else if p.model == config.ModelPAL && p.scanline >= p.palSpriteEvalScanline {
			// PAL keeps refreshing OAM through the end of vblank
			if p.cycle <= 256 {
				p.processSpriteEvaluation()
			} else if p.cycle < 320 {
				p.oamAddr = 0
			}
		}
	}

	if p.needStateUpdate {
		p.updateState()
	}
}

func (p *PPU) beginVBlank() {
	if p.flags.vblank {
		p.cpu.SetNMIFlag()
	}
}

func (p *PPU) sendFrame() {
	if p.onFrame != nil {
		p.onFrame(p.buffers[p.currentBuffer][:])
	}
}

// updateState applies the changes that take effect a few dots after the
// register write that caused them.
func (p *PPU) updateState() {
	p.needStateUpdate = false

	// rendering enable lags PPUMASK writes by one dot
	if p.prevRenderingEnabled != p.renderingEnabled {
		p.prevRenderingEnabled = p.renderingEnabled
		if p.scanline < ScreenHeight && !p.prevRenderingEnabled {
			// disabling rendering mid-screen puts v back on the bus
			p.setBusAddress(p.v & 0x3FFF)
			if p.cycle >= 65 && p.cycle <= 256 {
				p.oamAddr++
				p.spriteAddrH = p.oamAddr >> 2 & 0x3F
				p.spriteAddrL = p.oamAddr & 0x03
			}
		}
	}

	enabled := p.flags.backgroundEnabled || p.flags.spritesEnabled
	if p.renderingEnabled != enabled {
		p.renderingEnabled = enabled
		p.needStateUpdate = true
	}

	if p.updateVRAMAddrDelay > 0 {
		p.updateVRAMAddrDelay--
		if p.updateVRAMAddrDelay == 0 {
			p.v = p.updateVRAMAddr
			p.t = p.v
			if p.scanline >= ScreenHeight || !p.renderingEnabled {
				// lets A12 watchers see $2006 writes
				p.setBusAddress(p.v & 0x3FFF)
			}
		} else {
			p.needStateUpdate = true
		}
	}

	if p.ignoreVRAMRead > 0 {
		p.ignoreVRAMRead--
		if p.ignoreVRAMRead > 0 {
			p.needStateUpdate = true
		}
	}
}

func (p *PPU) updateMinimumDrawCycles() {
	p.minimumDrawBgCycle = 300
	if p.flags.backgroundEnabled {
		p.minimumDrawBgCycle = 8
		if p.flags.backgroundMask {
			p.minimumDrawBgCycle = 0
		}
	}
	p.minimumDrawSpriteCycle = 300
	if p.flags.spritesEnabled {
		p.minimumDrawSpriteCycle = 8
		if p.flags.spriteMask {
			p.minimumDrawSpriteCycle = 0
		}
	}
}

func (p *PPU) setBusAddress(address uint16) {
	p.busAddress = address
	p.mapper.NotifyVRAMAddressChange(address)
}

func (p *PPU) readVRAM(address uint16) uint8 {
	p.setBusAddress(address)
	return p.mapper.ReadVRAM(address)
}

// FrameCount returns the number of frames started since reset, from 1.
func (p *PPU) FrameCount() uint32 { return p.frameCount }

// Scanline returns the current scanline, -1 being the pre-render line.
func (p *PPU) Scanline() int32 { return p.scanline }

func (p *PPU) Cycle() uint32 { return p.cycle }

// FrameCycle returns the dot index within the current frame.
func (p *PPU) FrameCycle() uint32 {
	return uint32(p.scanline+1)*cyclesPerScanline + p.cycle
}

// MasterClock returns the master clock the PPU has reached.
func (p *PPU) MasterClock() uint64 { return p.masterClock }

// RenderingEnabled reports whether background or sprites are shown.
func (p *PPU) RenderingEnabled() bool { return p.renderingEnabled }

// FrameBuffer returns the last completed frame: one palette index per
// pixel with the emphasis bits in bits 6-8.
func (p *PPU) FrameBuffer() []uint16 {
	if p.scanline >= ScreenHeight {
		return p.buffers[p.currentBuffer][:]
	}
	return p.buffers[p.currentBuffer^1][:]
}

// OAM returns primary sprite memory.
func (p *PPU) OAM() []uint8 { return p.oam[:] }

// PaletteRAM returns the 32 palette entries.
func (p *PPU) PaletteRAM() []uint8 { return p.paletteRAM[:] }
