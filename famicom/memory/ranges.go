package memory

// Operation selects which side of the bus a range declaration claims.
type Operation uint8

const (
	OpRead Operation = iota + 1
	OpWrite
	OpAny
)

// OperationType describes why the CPU (or DMA unit) is touching the bus.
// Devices see every access; the type only matters to observers such as
// the code/data logger.
type OperationType uint8

const (
	Read OperationType = iota
	Write
	ExecOpCode
	ExecOperand
	PPURenderingRead
	DummyRead
	DmcRead
	DummyWrite
	DmaRead
	DmaWrite
)

func (o OperationType) String() string {
	switch o {
	case Read:
		return "read"
	case Write:
		return "write"
	case ExecOpCode:
		return "opcode"
	case ExecOperand:
		return "operand"
	case PPURenderingRead:
		return "ppu"
	case DummyRead:
		return "dummy-read"
	case DmcRead:
		return "dmc-read"
	case DummyWrite:
		return "dummy-write"
	case DmaRead:
		return "dma-read"
	case DmaWrite:
		return "dma-write"
	}
	return "unknown"
}

// IsWrite reports whether the operation drives the bus.
func (o OperationType) IsWrite() bool {
	return o == Write || o == DummyWrite || o == DmaWrite
}

// Ranges collects the addresses a device claims.
type Ranges struct {
	reads         []uint16
	writes        []uint16
	allowOverride bool
}

// AddHandler claims [start, end] for op. When end is omitted only start is
// claimed.
func (r *Ranges) AddHandler(op Operation, start uint16, end ...uint16) {
	last := start
	if len(end) > 0 {
		last = end[0]
	}
	for a := uint32(start); a <= uint32(last); a++ {
		if op == OpRead || op == OpAny {
			r.reads = append(r.reads, uint16(a))
		}
		if op == OpWrite || op == OpAny {
			r.writes = append(r.writes, uint16(a))
		}
	}
}

// SetAllowOverride lets the device replace existing owners instead of
// failing registration.
func (r *Ranges) SetAllowOverride() {
	r.allowOverride = true
}

// Reads returns the claimed read addresses.
func (r *Ranges) Reads() []uint16 { return r.reads }

// Writes returns the claimed write addresses.
func (r *Ranges) Writes() []uint16 { return r.writes }

// Device is anything that can be attached to the CPU bus.
type Device interface {
	MemoryRanges(r *Ranges)
	ReadRAM(address uint16) uint8
	PeekRAM(address uint16) uint8
	WriteRAM(address uint16, value uint8)
}
