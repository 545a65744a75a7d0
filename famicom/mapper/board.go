package mapper

import "github.com/valerio/go-famicom/famicom/rom"

// Board is the register logic of one cartridge PCB family. Init receives
// the mapper the board drives and must set up the initial banks.
type Board interface {
	PRGPageSize() uint16
	CHRPageSize() uint16
	Init(m *Mapper)
	WriteRegister(address uint16, value uint8)
}

// Optional board capabilities, detected once at construction.
type (
	registerReader interface {
		ReadRegister(address uint16) uint8
	}
	resetter interface {
		Reset(soft bool)
	}
	cpuClocked interface {
		ProcessCPUClock()
	}
	vramWatcher interface {
		NotifyVRAMAddressChange(address uint16)
	}
	busConflicter interface {
		HasBusConflicts(info rom.Info) bool
	}
	registerRanger interface {
		RegisterRange() (start, end uint16)
	}
	workRAMSizer interface {
		WorkRAMSize() int
	}
	chrRAMSizer interface {
		ChrRAMSize() int
	}
)

var boards = map[uint16]func() Board{
	0:   func() Board { return &nrom{} },
	1:   func() Board { return &mmc1{} },
	2:   func() Board { return &uxrom{} },
	3:   func() Board { return &cnrom{} },
	4:   func() Board { return &mmc3{} },
	7:   func() Board { return &axrom{} },
	66:  func() Board { return &gxrom{} },
	69:  func() Board { return &fme7{} },
	81:  func() Board { return &mapper81{} },
	343: func() Board { return &resetNromX1n1{} },
}

// Supported reports whether a board exists for the iNES mapper number.
func Supported(id uint16) bool {
	_, ok := boards[id]
	return ok
}
