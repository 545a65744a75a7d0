package debug

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/valerio/go-famicom/famicom/mapper"
	"github.com/valerio/go-famicom/famicom/memory"
)

// CDL flags for PRG ROM bytes.
const (
	CDLCode          uint8 = 0x01
	CDLData          uint8 = 0x02
	CDLJumpTarget    uint8 = 0x10
	CDLIndirectData  uint8 = 0x20
	CDLPcmData       uint8 = 0x40
	CDLSubEntryPoint uint8 = 0x80
)

const cdlMagic = "CDLv2"

var ErrCDLSizeMismatch = errors.New("code/data log does not match the ROM")

// AddressResolver maps CPU addresses to PRG ROM offsets, -1 when the
// address is not backed by PRG ROM.
type AddressResolver interface {
	ToAbsoluteAddress(address uint16) int32
}

var _ AddressResolver = (*mapper.Mapper)(nil)

// CodeDataLogger marks every PRG ROM byte the CPU touches as code or data.
// Install Log as the bus observer.
type CodeDataLogger struct {
	resolver AddressResolver
	flags    []uint8

	opcode     uint8
	opcodeAddr uint16
	nextPC     uint16
	fetched    bool
}

func NewCodeDataLogger(resolver AddressResolver, prgSize int) *CodeDataLogger {
	return &CodeDataLogger{
		resolver: resolver,
		flags:    make([]uint8, prgSize),
	}
}

// Log records one bus access.
func (l *CodeDataLogger) Log(address uint16, value uint8, op memory.OperationType) {
	switch op {
	case memory.ExecOpCode:
		var extra uint8
		if l.fetched && address != l.nextPC {
			switch {
			case l.opcode == 0x20:
				extra = CDLSubEntryPoint
			case isJump(l.opcode):
				extra = CDLJumpTarget
			}
		}
		l.mark(address, CDLCode|extra)
		l.opcode = value
		l.opcodeAddr = address
		l.nextPC = address + 1
		l.fetched = true
	case memory.ExecOperand:
		l.mark(address, CDLCode)
		if address == l.nextPC {
			l.nextPC++
		}
	case memory.Read:
		flag := CDLData
		if isIndirect(l.opcode) {
			flag |= CDLIndirectData
		}
		l.mark(address, flag)
	case memory.DmcRead:
		l.mark(address, CDLPcmData)
	}
}

func (l *CodeDataLogger) mark(address uint16, flag uint8) {
	abs := l.resolver.ToAbsoluteAddress(address)
	if abs < 0 || int(abs) >= len(l.flags) {
		return
	}
	l.flags[abs] |= flag
}

// isJump matches JMP and the conditional branches.
func isJump(opcode uint8) bool {
	return opcode == 0x4C || opcode == 0x6C || opcode&0x1F == 0x10
}

// isIndirect matches the (zp,X) and (zp),Y instructions.
func isIndirect(opcode uint8) bool {
	return opcode&0x0F == 0x01 || opcode&0x0F == 0x03
}

// Flags returns the flags of a PRG ROM offset.
func (l *CodeDataLogger) Flags(offset int) uint8 {
	if offset < 0 || offset >= len(l.flags) {
		return 0
	}
	return l.flags[offset]
}

// Reset clears every flag.
func (l *CodeDataLogger) Reset() {
	clear(l.flags)
	l.fetched = false
}

// Stats summarizes how much of PRG ROM was seen as code and as data.
type Stats struct {
	CodeBytes int
	DataBytes int
	Total     int
}

func (s Stats) Coverage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.CodeBytes+s.DataBytes) / float64(s.Total) * 100
}

func (l *CodeDataLogger) Stats() Stats {
	s := Stats{Total: len(l.flags)}
	for _, f := range l.flags {
		switch {
		case f&CDLCode != 0:
			s.CodeBytes++
		case f&(CDLData|CDLPcmData) != 0:
			s.DataBytes++
		}
	}
	return s
}

// Save writes the log with a small header to path.
func (l *CodeDataLogger) Save(path string) error {
	var buf bytes.Buffer
	buf.WriteString(cdlMagic)
	buf.Write(l.flags)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write code/data log: %w", err)
	}
	return nil
}

// Load merges a log saved for the same ROM.
func (l *CodeDataLogger) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read code/data log: %w", err)
	}
	if !bytes.HasPrefix(data, []byte(cdlMagic)) || len(data)-len(cdlMagic) != len(l.flags) {
		return ErrCDLSizeMismatch
	}
	for i, f := range data[len(cdlMagic):] {
		l.flags[i] |= f
	}
	return nil
}
