// Package mapper implements the cartridge side of the console: the PRG/CHR
// page tables shared by every board plus the board-specific register logic.
package mapper

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/valerio/go-famicom/famicom/battery"
	"github.com/valerio/go-famicom/famicom/config"
	"github.com/valerio/go-famicom/famicom/cpu"
	"github.com/valerio/go-famicom/famicom/memory"
	"github.com/valerio/go-famicom/famicom/rom"
	"github.com/valerio/go-famicom/famicom/state"
)

// ErrUnsupportedMapper is returned when no board is registered for a ROM's
// mapper number.
var ErrUnsupportedMapper = errors.New("unsupported mapper")

const (
	nametableSize  = 0x400
	nametableCount = 4

	defaultRAMSize = 0x2000
)

// MemoryType identifies the backing store of a page.
type MemoryType uint8

const (
	PRGROM MemoryType = iota
	WorkRAM
	SaveRAM
	CHRROM
	CHRRAM
	NametableRAM
	// CHRDefault resolves to CHRRAM for boards without CHR ROM, CHRROM otherwise.
	CHRDefault
)

// AccessType is a bit set of the operations allowed on a page.
type AccessType uint8

const (
	NoAccess  AccessType = 0
	Read      AccessType = 1
	Write     AccessType = 2
	ReadWrite AccessType = Read | Write
)

// Host is what the cartridge needs from the rest of the console.
type Host interface {
	CPUCycleCount() int64
	PPUFrameCycle() uint32
	SetIRQSource(source cpu.IRQSource)
	ClearIRQSource(source cpu.IRQSource)
	OpenBus(mask uint8) uint8
	InitializeRAM(data []byte)
}

type pageRef struct {
	mem    MemoryType
	offset int
	access AccessType
}

// Mapper owns the cartridge memories and translates CPU and PPU addresses
// into them. Boards change the translation through the Select* and Set*
// methods.
type Mapper struct {
	board Board
	host  Host
	info  rom.Info
	model config.Model

	prgROM       []byte
	chrROM       []byte
	chrRAM       []byte
	workRAM      []byte
	saveRAM      []byte
	nametableRAM [nametableCount * nametableSize]byte

	prgPages [0x100]pageRef
	chrPages [0x40]pageRef

	readRegisters  [0x10000]bool
	writeRegisters [0x10000]bool

	mirroring    rom.Mirroring
	busConflicts bool

	reader  registerReader
	clocked cpuClocked
	watcher vramWatcher
}

// New creates the mapper for data, failing if the board is unknown.
func New(data *rom.Data, host Host) (*Mapper, error) {
	factory, ok := boards[data.Info.MapperID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMapper, data.Info.MapperID)
	}

	board := factory()
	m := &Mapper{
		board:  board,
		host:   host,
		info:   data.Info,
		prgROM: data.PRGROM,
		chrROM: data.CHRROM,
	}
	m.reader, _ = board.(registerReader)
	m.clocked, _ = board.(cpuClocked)
	m.watcher, _ = board.(vramWatcher)

	m.allocateRAM(data)

	switch data.Info.BusConflicts {
	case rom.BusConflictsYes:
		m.busConflicts = true
	case rom.BusConflictsNo:
		m.busConflicts = false
	default:
		if bc, ok := board.(busConflicter); ok {
			m.busConflicts = bc.HasBusConflicts(data.Info)
		}
	}

	m.SetMirroringType(data.Info.Mirroring)
	if len(m.saveRAM) > 0 {
		m.SetCPUMemoryMapping(0x6000, 0x7FFF, 0, SaveRAM, ReadWrite)
	} else if len(m.workRAM) > 0 {
		m.SetCPUMemoryMapping(0x6000, 0x7FFF, 0, WorkRAM, ReadWrite)
	}

	start, end := uint16(0x8000), uint16(0xFFFF)
	if rr, ok := board.(registerRanger); ok {
		start, end = rr.RegisterRange()
	}
	op := memory.OpWrite
	if m.reader != nil {
		op = memory.OpAny
	}
	m.AddRegisterRange(start, end, op)

	board.Init(m)

	if len(data.Trainer) > 0 {
		switch {
		case len(m.workRAM) >= defaultRAMSize:
			copy(m.workRAM[0x1000:], data.Trainer)
		case len(m.saveRAM) >= defaultRAMSize:
			copy(m.saveRAM[0x1000:], data.Trainer)
		}
	}

	slog.Info("Mapper initialized",
		"mapper", data.Info.MapperID,
		"submapper", m.info.SubMapperID,
		"prg", len(m.prgROM),
		"chr", len(m.chrROM),
		"chrRAM", len(m.chrRAM),
		"workRAM", len(m.workRAM),
		"saveRAM", len(m.saveRAM),
		"busConflicts", m.busConflicts,
	)
	return m, nil
}

func (m *Mapper) allocateRAM(data *rom.Data) {
	info := data.Info

	chrRAMSize := 0
	if info.HasChrRAM {
		chrRAMSize = data.ChrRAMSize + max(data.SaveChrRAMSize, 0)
		if chrRAMSize <= 0 {
			chrRAMSize = defaultRAMSize
			if s, ok := m.board.(chrRAMSizer); ok {
				chrRAMSize = s.ChrRAMSize()
			}
		}
	}

	workRAMSize, saveRAMSize := 0, 0
	if info.IsNES20 && data.WorkRAMSize >= 0 {
		workRAMSize = data.WorkRAMSize
		saveRAMSize = max(data.SaveRAMSize, 0)
	} else {
		size := defaultRAMSize
		if s, ok := m.board.(workRAMSizer); ok {
			size = s.WorkRAMSize()
		}
		if info.HasBattery {
			saveRAMSize = size
		} else {
			workRAMSize = size
		}
	}

	m.chrRAM = make([]byte, chrRAMSize)
	m.workRAM = make([]byte, workRAMSize)
	m.saveRAM = make([]byte, saveRAMSize)
	for _, ram := range [][]byte{m.chrRAM, m.workRAM, m.saveRAM, m.nametableRAM[:]} {
		m.host.InitializeRAM(ram)
	}
}

// Info returns the ROM metadata, including any board corrections.
func (m *Mapper) Info() rom.Info { return m.info }

// SetSubMapper lets boards fix the submapper of known bad dumps.
func (m *Mapper) SetSubMapper(id uint8) { m.info.SubMapperID = id }

// Host returns the console services the mapper was created with.
func (m *Mapper) Host() Host { return m.host }

func (m *Mapper) SetNesModel(model config.Model) { m.model = model }

func (m *Mapper) Model() config.Model { return m.model }

// PRGPageCount returns the number of board-sized PRG ROM pages.
func (m *Mapper) PRGPageCount() int {
	return len(m.prgROM) / int(m.board.PRGPageSize())
}

// CHRPageCount returns the number of board-sized CHR ROM pages.
func (m *Mapper) CHRPageCount() int {
	return len(m.chrROM) / int(m.board.CHRPageSize())
}

// Reset is called by the bus on power on (soft=false) and on reset.
func (m *Mapper) Reset(soft bool) {
	if r, ok := m.board.(resetter); ok {
		r.Reset(soft)
	}
}

// ProcessCPUClock runs once per CPU cycle.
func (m *Mapper) ProcessCPUClock() {
	if m.clocked != nil {
		m.clocked.ProcessCPUClock()
	}
}

// NotifyVRAMAddressChange is called by the PPU whenever its bus address moves.
func (m *Mapper) NotifyVRAMAddressChange(address uint16) {
	if m.watcher != nil {
		m.watcher.NotifyVRAMAddressChange(address)
	}
}

func (m *Mapper) memory(mt MemoryType) []byte {
	switch mt {
	case PRGROM:
		return m.prgROM
	case WorkRAM:
		return m.workRAM
	case SaveRAM:
		return m.saveRAM
	case CHRROM:
		return m.chrROM
	case CHRRAM:
		return m.chrRAM
	case NametableRAM:
		return m.nametableRAM[:]
	}
	return nil
}

// MemoryRanges claims the cartridge space of the CPU bus.
func (m *Mapper) MemoryRanges(r *memory.Ranges) {
	r.AddHandler(memory.OpAny, 0x4018, 0xFFFF)
}

func (m *Mapper) ReadRAM(address uint16) uint8 {
	if m.readRegisters[address] {
		return m.reader.ReadRegister(address)
	}
	p := m.prgPages[address>>8]
	if p.access&Read != 0 {
		return m.memory(p.mem)[p.offset+int(address&0xFF)]
	}
	return m.host.OpenBus(0xFF)
}

func (m *Mapper) PeekRAM(address uint16) uint8 {
	p := m.prgPages[address>>8]
	if p.access&Read != 0 {
		return m.memory(p.mem)[p.offset+int(address&0xFF)]
	}
	return uint8(address >> 8)
}

func (m *Mapper) WriteRAM(address uint16, value uint8) {
	if m.writeRegisters[address] {
		if m.busConflicts {
			value &= m.internalRead(address)
		}
		m.board.WriteRegister(address, value)
		return
	}
	p := m.prgPages[address>>8]
	if p.access&Write != 0 {
		m.memory(p.mem)[p.offset+int(address&0xFF)] = value
	}
}

// internalRead is what the ROM drives onto the bus, ignoring registers.
func (m *Mapper) internalRead(address uint16) uint8 {
	p := m.prgPages[address>>8]
	if p.access&Read == 0 {
		return 0
	}
	return m.memory(p.mem)[p.offset+int(address&0xFF)]
}

// ReadVRAM reads the PPU address space below the palette.
func (m *Mapper) ReadVRAM(address uint16) uint8 {
	address &= 0x3FFF
	p := m.chrPages[address>>8]
	if p.access&Read != 0 {
		return m.memory(p.mem)[p.offset+int(address&0xFF)]
	}
	return 0
}

func (m *Mapper) WriteVRAM(address uint16, value uint8) {
	address &= 0x3FFF
	p := m.chrPages[address>>8]
	if p.access&Write != 0 {
		m.memory(p.mem)[p.offset+int(address&0xFF)] = value
	}
}

// AddRegisterRange routes [start, end] to the board's register handlers.
func (m *Mapper) AddRegisterRange(start, end uint16, op memory.Operation) {
	for a := uint32(start); a <= uint32(end); a++ {
		if op == memory.OpRead || op == memory.OpAny {
			m.readRegisters[a] = m.reader != nil
		}
		if op == memory.OpWrite || op == memory.OpAny {
			m.writeRegisters[a] = true
		}
	}
}

func (m *Mapper) RemoveRegisterRange(start, end uint16, op memory.Operation) {
	for a := uint32(start); a <= uint32(end); a++ {
		if op == memory.OpRead || op == memory.OpAny {
			m.readRegisters[a] = false
		}
		if op == memory.OpWrite || op == memory.OpAny {
			m.writeRegisters[a] = false
		}
	}
}

func (m *Mapper) prgPageSize(mt MemoryType) int {
	switch mt {
	case PRGROM:
		return min(int(m.board.PRGPageSize()), len(m.prgROM))
	case WorkRAM, SaveRAM:
		return min(defaultRAMSize, len(m.memory(mt)))
	}
	return 0
}

func (m *Mapper) chrPageSize(mt MemoryType) int {
	switch mt {
	case CHRROM:
		return min(int(m.board.CHRPageSize()), len(m.chrROM))
	case CHRRAM:
		return min(int(m.board.CHRPageSize()), len(m.chrRAM))
	case NametableRAM:
		return nametableSize
	}
	return 0
}

func (m *Mapper) resolveCHR(mt MemoryType) MemoryType {
	if mt != CHRDefault {
		return mt
	}
	if m.info.HasChrRAM || len(m.chrROM) == 0 {
		return CHRRAM
	}
	return CHRROM
}

// wrapPage turns a board page number into an index: negative numbers count
// from the end, the rest wrap around the page count.
func wrapPage(page, count int) int {
	if page < 0 {
		page = count + page%count
		if page == count {
			page = 0
		}
		return page
	}
	return page % count
}

func defaultAccess(mt MemoryType) AccessType {
	if mt == PRGROM || mt == CHRROM {
		return Read
	}
	return ReadWrite
}

// SelectPRGPage maps a board-sized page into slot, counted from $8000.
// PRG smaller than a slot is mirrored through all of $8000-$FFFF.
func (m *Mapper) SelectPRGPage(slot uint16, page int, mt MemoryType) {
	size := int(m.board.PRGPageSize())
	if mt == PRGROM && len(m.prgROM) < 0x8000 && size > len(m.prgROM) {
		for start := 0x8000; start < 0x10000; start += len(m.prgROM) {
			m.SetCPUMemoryMapping(uint16(start), uint16(start+len(m.prgROM)-1), 0, mt, defaultAccess(mt))
		}
		return
	}
	start := 0x8000 + int(slot)*size
	m.SetCPUMemoryMapping(uint16(start), uint16(start+size-1), page, mt, defaultAccess(mt))
}

func (m *Mapper) SelectPRGPage2x(slot uint16, page int, mt MemoryType) {
	m.SelectPRGPage(slot*2, page, mt)
	m.SelectPRGPage(slot*2+1, page+1, mt)
}

func (m *Mapper) SelectPRGPage4x(slot uint16, page int, mt MemoryType) {
	m.SelectPRGPage2x(slot*2, page, mt)
	m.SelectPRGPage2x(slot*2+1, page+2, mt)
}

// SetCPUMemoryMapping maps page number page of mt over [start, end].
func (m *Mapper) SetCPUMemoryMapping(start, end uint16, page int, mt MemoryType, access AccessType) {
	size := m.prgPageSize(mt)
	if size == 0 || len(m.memory(mt)) < size {
		m.RemoveCPUMemoryMapping(start, end)
		return
	}
	count := len(m.memory(mt)) / size
	page = wrapPage(page, count)
	if int(end)-int(start) >= size {
		slog.Debug("Mapping range larger than page", "start", start, "end", end, "pageSize", size)
		end = start + uint16(size-1)
	}
	m.setCPUPages(start, end, mt, page*size, access)
}

func (m *Mapper) setCPUPages(start, end uint16, mt MemoryType, offset int, access AccessType) {
	first := int(start >> 8)
	slots := (int(end) - int(start) + 1) >> 8
	for i := 0; i < slots; i++ {
		m.prgPages[first+i] = pageRef{mem: mt, offset: offset, access: access}
		offset += 0x100
	}
}

func (m *Mapper) RemoveCPUMemoryMapping(start, end uint16) {
	for i := int(start >> 8); i <= int(end>>8); i++ {
		m.prgPages[i] = pageRef{}
	}
}

// SelectCHRPage maps a board-sized page into slot, counted from $0000.
func (m *Mapper) SelectCHRPage(slot uint16, page int, mt MemoryType) {
	mt = m.resolveCHR(mt)
	size := m.chrPageSize(mt)
	if size == 0 {
		return
	}
	start := int(slot) * size
	m.SetPPUMemoryMapping(uint16(start), uint16(start+size-1), page, mt, defaultAccess(mt))
}

func (m *Mapper) SelectCHRPage2x(slot uint16, page int, mt MemoryType) {
	m.SelectCHRPage(slot*2, page, mt)
	m.SelectCHRPage(slot*2+1, page+1, mt)
}

func (m *Mapper) SelectCHRPage4x(slot uint16, page int, mt MemoryType) {
	m.SelectCHRPage2x(slot*2, page, mt)
	m.SelectCHRPage2x(slot*2+1, page+2, mt)
}

func (m *Mapper) SelectCHRPage8x(slot uint16, page int, mt MemoryType) {
	m.SelectCHRPage4x(slot*2, page, mt)
	m.SelectCHRPage4x(slot*2+1, page+4, mt)
}

// SetPPUMemoryMapping maps page number page of mt over [start, end].
func (m *Mapper) SetPPUMemoryMapping(start, end uint16, number int, mt MemoryType, access AccessType) {
	mt = m.resolveCHR(mt)
	size := m.chrPageSize(mt)
	if size == 0 || len(m.memory(mt)) < size {
		m.RemovePPUMemoryMapping(start, end)
		return
	}
	number = wrapPage(number, len(m.memory(mt))/size)
	if int(end)-int(start) >= size {
		end = start + uint16(size-1)
	}
	first := int(start >> 8)
	slots := (int(end) - int(start) + 1) >> 8
	offset := number * size
	for i := 0; i < slots; i++ {
		m.chrPages[first+i] = pageRef{mem: mt, offset: offset, access: access}
		offset += 0x100
	}
}

func (m *Mapper) RemovePPUMemoryMapping(start, end uint16) {
	for i := int(start >> 8); i <= int(end>>8) && i < len(m.chrPages); i++ {
		m.chrPages[i] = pageRef{}
	}
}

// SetNametable points nametable slot index ($2000 + index*$400, mirrored at
// $3000) at one of the four 1KB nametable RAM pages.
func (m *Mapper) SetNametable(index, nametable uint8) {
	start := 0x2000 + uint16(index)*nametableSize
	m.SetPPUMemoryMapping(start, start+nametableSize-1, int(nametable), NametableRAM, ReadWrite)
	m.SetPPUMemoryMapping(start+0x1000, start+0x1000+nametableSize-1, int(nametable), NametableRAM, ReadWrite)
}

func (m *Mapper) SetNametables(a, b, c, d uint8) {
	m.SetNametable(0, a)
	m.SetNametable(1, b)
	m.SetNametable(2, c)
	m.SetNametable(3, d)
}

func (m *Mapper) SetMirroringType(mirroring rom.Mirroring) {
	m.mirroring = mirroring
	switch mirroring {
	case rom.Vertical:
		m.SetNametables(0, 1, 0, 1)
	case rom.Horizontal:
		m.SetNametables(0, 0, 1, 1)
	case rom.FourScreens:
		m.SetNametables(0, 1, 2, 3)
	case rom.ScreenAOnly:
		m.SetNametables(0, 0, 0, 0)
	case rom.ScreenBOnly:
		m.SetNametables(1, 1, 1, 1)
	}
}

func (m *Mapper) Mirroring() rom.Mirroring { return m.mirroring }

// HasBusConflicts reports whether register writes are ANDed with ROM.
func (m *Mapper) HasBusConflicts() bool { return m.busConflicts }

// SaveRAM exposes the battery-backed RAM.
func (m *Mapper) SaveRAM() []byte { return m.saveRAM }

// LoadBattery restores save RAM from store.
func (m *Mapper) LoadBattery(store battery.Store) error {
	if !m.info.HasBattery || len(m.saveRAM) == 0 {
		return nil
	}
	if err := store.Load(m.info.Name, m.saveRAM); err != nil {
		return fmt.Errorf("failed to load battery for %s: %w", m.info.Name, err)
	}
	return nil
}

// SaveBattery persists save RAM to store.
func (m *Mapper) SaveBattery(store battery.Store) error {
	if !m.info.HasBattery || len(m.saveRAM) == 0 {
		return nil
	}
	if err := store.Save(m.info.Name, m.saveRAM); err != nil {
		return fmt.Errorf("failed to save battery for %s: %w", m.info.Name, err)
	}
	return nil
}

func (m *Mapper) StreamState(s *state.Stream) {
	mirroring := uint8(m.mirroring)
	s.Uint8(&mirroring)
	m.mirroring = rom.Mirroring(mirroring)

	s.Bytes(m.chrRAM)
	s.Bytes(m.workRAM)
	s.Bytes(m.saveRAM)
	s.Bytes(m.nametableRAM[:])

	for i := range m.prgPages {
		streamPage(s, &m.prgPages[i])
	}
	for i := range m.chrPages {
		streamPage(s, &m.chrPages[i])
	}

	if st, ok := m.board.(state.Streamer); ok {
		st.StreamState(s)
	}
}

func streamPage(s *state.Stream, p *pageRef) {
	mem, access := uint8(p.mem), uint8(p.access)
	s.Uint8(&mem)
	s.Uint8(&access)
	s.Int(&p.offset)
	p.mem, p.access = MemoryType(mem), AccessType(access)
}
