package mapper

import (
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/state"
)

// nrom has no registers: 16 or 32KB of PRG and 8KB of CHR, fixed.
type nrom struct {
	m *Mapper
}

func (b *nrom) PRGPageSize() uint16 { return 0x4000 }
func (b *nrom) CHRPageSize() uint16 { return 0x2000 }

func (b *nrom) Init(m *Mapper) {
	b.m = m
	m.SelectPRGPage(0, 0, PRGROM)
	m.SelectPRGPage(1, 1, PRGROM)
	m.SelectCHRPage(0, 0, CHRDefault)
}

func (b *nrom) WriteRegister(uint16, uint8) {}

// uxrom switches the 16KB bank at $8000, $C000 is fixed to the last bank.
// CHR is almost always RAM.
type uxrom struct {
	m *Mapper
}

func (b *uxrom) PRGPageSize() uint16 { return 0x4000 }
func (b *uxrom) CHRPageSize() uint16 { return 0x2000 }

func (b *uxrom) Init(m *Mapper) {
	b.m = m
	m.SelectPRGPage(0, 0, PRGROM)
	m.SelectPRGPage(1, -1, PRGROM)
	m.SelectCHRPage(0, 0, CHRDefault)
}

func (b *uxrom) HasBusConflicts(info rom.Info) bool { return info.SubMapperID == 2 }

func (b *uxrom) WriteRegister(_ uint16, value uint8) {
	b.m.SelectPRGPage(0, int(value), PRGROM)
}

// cnrom switches the 8KB CHR bank.
type cnrom struct {
	m *Mapper
}

func (b *cnrom) PRGPageSize() uint16 { return 0x8000 }
func (b *cnrom) CHRPageSize() uint16 { return 0x2000 }

func (b *cnrom) Init(m *Mapper) {
	b.m = m
	m.SelectPRGPage(0, 0, PRGROM)
	m.SelectCHRPage(0, 0, CHRDefault)
}

func (b *cnrom) HasBusConflicts(info rom.Info) bool { return info.SubMapperID == 2 }

func (b *cnrom) WriteRegister(_ uint16, value uint8) {
	b.m.SelectCHRPage(0, int(value), CHRDefault)
}

// axrom switches 32KB of PRG and picks one of the two nametables for all
// four slots.
type axrom struct {
	m *Mapper
}

func (b *axrom) PRGPageSize() uint16 { return 0x8000 }
func (b *axrom) CHRPageSize() uint16 { return 0x2000 }

func (b *axrom) Init(m *Mapper) {
	b.m = m
	m.SelectCHRPage(0, 0, CHRDefault)
	b.WriteRegister(0x8000, 0)
}

func (b *axrom) HasBusConflicts(info rom.Info) bool { return info.SubMapperID == 2 }

func (b *axrom) WriteRegister(_ uint16, value uint8) {
	b.m.SelectPRGPage(0, int(value&0x0F), PRGROM)
	if value&0x10 != 0 {
		b.m.SetMirroringType(rom.ScreenBOnly)
	} else {
		b.m.SetMirroringType(rom.ScreenAOnly)
	}
}

// gxrom selects 32KB PRG with bits 4-5 and 8KB CHR with bits 0-1.
type gxrom struct {
	m *Mapper
}

func (b *gxrom) PRGPageSize() uint16 { return 0x8000 }
func (b *gxrom) CHRPageSize() uint16 { return 0x2000 }

func (b *gxrom) Init(m *Mapper) {
	b.m = m
	m.SelectPRGPage(0, 0, PRGROM)
	m.SelectCHRPage(0, 0, CHRDefault)
}

func (b *gxrom) HasBusConflicts(rom.Info) bool { return true }

func (b *gxrom) WriteRegister(_ uint16, value uint8) {
	b.m.SelectPRGPage(0, int(value>>4)&0x03, PRGROM)
	b.m.SelectCHRPage(0, int(value&0x03), CHRDefault)
}

// mapper81 latches the banks from the address lines instead of the data
// bus: A2+ selects PRG at $8000, A0-A1 select CHR.
type mapper81 struct {
	m *Mapper
}

func (b *mapper81) PRGPageSize() uint16 { return 0x4000 }
func (b *mapper81) CHRPageSize() uint16 { return 0x2000 }

func (b *mapper81) Init(m *Mapper) {
	b.m = m
	m.SelectPRGPage(0, 0, PRGROM)
	m.SelectPRGPage(1, -1, PRGROM)
	m.SelectCHRPage(0, 0, CHRDefault)
}

func (b *mapper81) WriteRegister(address uint16, _ uint8) {
	b.m.SelectPRGPage(0, int(address>>2), PRGROM)
	b.m.SelectCHRPage(0, int(address&0x03), CHRDefault)
}

// resetNromX1n1 is a multicart (BMC-RESETNROM-XIN1) where each write
// latches the inverted value as the game number. The latch survives soft
// resets, so the menu is skipped by pressing reset.
type resetNromX1n1 struct {
	m    *Mapper
	game uint8
}

// Sheng Tian 2-in-1 dumps that need submapper 1 but carry no NES 2.0 header.
var resetNromSubmapper1CRCs = []uint32{0x3470F395, 0x39F9140F}

func (b *resetNromX1n1) PRGPageSize() uint16 { return 0x4000 }
func (b *resetNromX1n1) CHRPageSize() uint16 { return 0x2000 }

func (b *resetNromX1n1) Init(m *Mapper) {
	b.m = m
	info := m.Info()
	if info.IsNES20 {
		return
	}
	for _, crc := range resetNromSubmapper1CRCs {
		if info.Hash.PRGCHRCRC32 == crc {
			m.SetSubMapper(1)
		}
	}
}

func (b *resetNromX1n1) Reset(soft bool) {
	if !soft {
		b.game = 0
	}
	b.update()
}

func (b *resetNromX1n1) update() {
	if b.m.Info().SubMapperID == 1 {
		b.m.SelectPRGPage2x(0, int(b.game)<<1, PRGROM)
	} else {
		b.m.SelectPRGPage(0, int(b.game), PRGROM)
		b.m.SelectPRGPage(1, int(b.game), PRGROM)
	}
	b.m.SelectCHRPage(0, int(b.game), CHRDefault)
	if b.game&0x80 != 0 {
		b.m.SetMirroringType(rom.Vertical)
	} else {
		b.m.SetMirroringType(rom.Horizontal)
	}
}

func (b *resetNromX1n1) WriteRegister(_ uint16, value uint8) {
	b.game = ^value
	b.update()
}

func (b *resetNromX1n1) StreamState(s *state.Stream) {
	s.Uint8(&b.game)
}
