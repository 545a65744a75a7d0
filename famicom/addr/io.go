package addr

// CPU vectors
const (
	NMIVector   uint16 = 0xFFFA
	ResetVector uint16 = 0xFFFC
	IRQVector   uint16 = 0xFFFE
)

// Internal RAM and stack
const (
	InternalRAMEnd  uint16 = 0x1FFF
	InternalRAMSize        = 0x800
	StackBase       uint16 = 0x0100
)

// PPU registers, mirrored every 8 bytes through $3FFF.
const (
	PPUCtrl    uint16 = 0x2000
	PPUMask    uint16 = 0x2001
	PPUStatus  uint16 = 0x2002
	OAMAddr    uint16 = 0x2003
	OAMData    uint16 = 0x2004
	PPUScroll  uint16 = 0x2005
	PPUAddr    uint16 = 0x2006
	PPUData    uint16 = 0x2007
	PPURegsEnd uint16 = 0x3FFF
)

// APU and I/O registers
const (
	APUStart  uint16 = 0x4000
	Pulse1    uint16 = 0x4000
	Pulse2    uint16 = 0x4004
	Triangle  uint16 = 0x4008
	Noise     uint16 = 0x400C
	DMC       uint16 = 0x4010
	DMCEnd    uint16 = 0x4013
	OAMDMA    uint16 = 0x4014
	APUStatus uint16 = 0x4015
	Joypad1   uint16 = 0x4016
	Joypad2   uint16 = 0x4017
	// FrameCounter shares its address with the second controller port.
	FrameCounter uint16 = 0x4017
)

// Cartridge space
const (
	CartridgeStart uint16 = 0x4018
	ExpansionStart uint16 = 0x4020
	WorkRAMStart   uint16 = 0x6000
	WorkRAMEnd     uint16 = 0x7FFF
	PRGROMStart    uint16 = 0x8000
)

// PPU address space
const (
	PatternTableEnd uint16 = 0x1FFF
	NametableStart  uint16 = 0x2000
	NametableEnd    uint16 = 0x3EFF
	PaletteStart    uint16 = 0x3F00
)

// IsInternalRegister reports whether address falls in the $4000-$401F
// block of CPU-internal APU/IO registers.
func IsInternalRegister(address uint16) bool {
	return address&0xFFE0 == 0x4000
}

// IsJoypad reports whether address is one of the two controller ports.
func IsJoypad(address uint16) bool {
	return address == Joypad1 || address == Joypad2
}
