package mapper

import "github.com/valerio/go-famicom/famicom/addr"

// AddressType tells which memory an absolute address refers to.
type AddressType uint8

const (
	AddressInternalRAM AddressType = iota
	AddressPRGROM
	AddressWorkRAM
	AddressSaveRAM
	AddressRegister
)

// AddressInfo is an offset into one of the console memories. Address is -1
// when a CPU address maps to nothing.
type AddressInfo struct {
	Address int32
	Type    AddressType
}

func addressType(mt MemoryType) AddressType {
	switch mt {
	case WorkRAM:
		return AddressWorkRAM
	case SaveRAM:
		return AddressSaveRAM
	}
	return AddressPRGROM
}

// ToAbsoluteAddress returns the PRG ROM offset mapped at a CPU address,
// or -1.
func (m *Mapper) ToAbsoluteAddress(address uint16) int32 {
	p := m.prgPages[address>>8]
	if p.access == NoAccess || p.mem != PRGROM {
		return -1
	}
	return int32(p.offset + int(address&0xFF))
}

// AbsoluteAddressAndType resolves a CPU address to the memory behind it.
func (m *Mapper) AbsoluteAddressAndType(address uint16) AddressInfo {
	if address <= addr.InternalRAMEnd {
		return AddressInfo{Address: int32(address & 0x7FF), Type: AddressInternalRAM}
	}
	p := m.prgPages[address>>8]
	if p.access != NoAccess {
		return AddressInfo{Address: int32(p.offset + int(address&0xFF)), Type: addressType(p.mem)}
	}
	if address >= addr.CartridgeStart && (m.writeRegisters[address] || m.readRegisters[address]) {
		return AddressInfo{Address: int32(address), Type: AddressRegister}
	}
	return AddressInfo{Address: -1, Type: AddressPRGROM}
}

// FromAbsoluteAddress finds the CPU address currently mapping an absolute
// address, or -1 if it is not visible.
func (m *Mapper) FromAbsoluteAddress(address uint32, t AddressType) int32 {
	switch t {
	case AddressInternalRAM:
		if address < addr.InternalRAMSize {
			return int32(address)
		}
		return -1
	case AddressRegister:
		return int32(address)
	}
	for slot := 0; slot < len(m.prgPages); slot++ {
		p := m.prgPages[slot]
		if p.access == NoAccess || addressType(p.mem) != t {
			continue
		}
		if int(address) >= p.offset && int(address) < p.offset+0x100 {
			return int32(slot<<8 | (int(address) - p.offset))
		}
	}
	return -1
}
