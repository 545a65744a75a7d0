package cpu

type opcode struct {
	name string
	mode addressingMode
	exec func(*CPU)
}

var opcodes [256]opcode

var opcodeNames = [256]string{
	//0    1      2      3      4      5      6      7      8      9      A      B      C      D      E      F
	"BRK", "ORA", "HLT", "SLO", "NOP", "ORA", "ASL", "SLO", "PHP", "ORA", "ASL", "AAC", "NOP", "ORA", "ASL", "SLO", // 0
	"BPL", "ORA", "HLT", "SLO", "NOP", "ORA", "ASL", "SLO", "CLC", "ORA", "NOP", "SLO", "NOP", "ORA", "ASL", "SLO", // 1
	"JSR", "AND", "HLT", "RLA", "BIT", "AND", "ROL", "RLA", "PLP", "AND", "ROL", "AAC", "BIT", "AND", "ROL", "RLA", // 2
	"BMI", "AND", "HLT", "RLA", "NOP", "AND", "ROL", "RLA", "SEC", "AND", "NOP", "RLA", "NOP", "AND", "ROL", "RLA", // 3
	"RTI", "EOR", "HLT", "SRE", "NOP", "EOR", "LSR", "SRE", "PHA", "EOR", "LSR", "ASR", "JMP", "EOR", "LSR", "SRE", // 4
	"BVC", "EOR", "HLT", "SRE", "NOP", "EOR", "LSR", "SRE", "CLI", "EOR", "NOP", "SRE", "NOP", "EOR", "LSR", "SRE", // 5
	"RTS", "ADC", "HLT", "RRA", "NOP", "ADC", "ROR", "RRA", "PLA", "ADC", "ROR", "ARR", "JMP", "ADC", "ROR", "RRA", // 6
	"BVS", "ADC", "HLT", "RRA", "NOP", "ADC", "ROR", "RRA", "SEI", "ADC", "NOP", "RRA", "NOP", "ADC", "ROR", "RRA", // 7
	"NOP", "STA", "NOP", "SAX", "STY", "STA", "STX", "SAX", "DEY", "NOP", "TXA", "ANE", "STY", "STA", "STX", "SAX", // 8
	"BCC", "STA", "HLT", "AXA", "STY", "STA", "STX", "SAX", "TYA", "STA", "TXS", "TAS", "SYA", "STA", "SXA", "AXA", // 9
	"LDY", "LDA", "LDX", "LAX", "LDY", "LDA", "LDX", "LAX", "TAY", "LDA", "TAX", "ATX", "LDY", "LDA", "LDX", "LAX", // A
	"BCS", "LDA", "HLT", "LAX", "LDY", "LDA", "LDX", "LAX", "CLV", "LDA", "TSX", "LAS", "LDY", "LDA", "LDX", "LAX", // B
	"CPY", "CMP", "NOP", "DCP", "CPY", "CMP", "DEC", "DCP", "INY", "CMP", "DEX", "AXS", "CPY", "CMP", "DEC", "DCP", // C
	"BNE", "CMP", "HLT", "DCP", "NOP", "CMP", "DEC", "DCP", "CLD", "CMP", "NOP", "DCP", "NOP", "CMP", "DEC", "DCP", // D
	"CPX", "SBC", "NOP", "ISB", "CPX", "SBC", "INC", "ISB", "INX", "SBC", "NOP", "SBC", "CPX", "SBC", "INC", "ISB", // E
	"BEQ", "SBC", "HLT", "ISB", "NOP", "SBC", "INC", "ISB", "SED", "SBC", "NOP", "ISB", "NOP", "SBC", "INC", "ISB", // F
}

const (
	none  = modeNone
	acc   = modeAcc
	imp   = modeImp
	imm   = modeImm
	rel   = modeRel
	zero  = modeZero
	abs   = modeAbs
	zeroX = modeZeroX
	zeroY = modeZeroY
	ind   = modeInd
	indX  = modeIndX
	indY  = modeIndY
	indYW = modeIndYW
	absX  = modeAbsX
	absXW = modeAbsXW
	absY  = modeAbsY
	absYW = modeAbsYW
)

var opcodeModes = [256]addressingMode{
	imp, indX, none, indX, zero, zero, zero, zero, imp, imm, acc, imm, abs, abs, abs, abs,                   // 0
	rel, indY, none, indYW, zeroX, zeroX, zeroX, zeroX, imp, absY, imp, absYW, absX, absX, absXW, absXW,     // 1
	abs, indX, none, indX, zero, zero, zero, zero, imp, imm, acc, imm, abs, abs, abs, abs,                   // 2
	rel, indY, none, indYW, zeroX, zeroX, zeroX, zeroX, imp, absY, imp, absYW, absX, absX, absXW, absXW,     // 3
	imp, indX, none, indX, zero, zero, zero, zero, imp, imm, acc, imm, abs, abs, abs, abs,                   // 4
	rel, indY, none, indYW, zeroX, zeroX, zeroX, zeroX, imp, absY, imp, absYW, absX, absX, absXW, absXW,     // 5
	imp, indX, none, indX, zero, zero, zero, zero, imp, imm, acc, imm, ind, abs, abs, abs,                   // 6
	rel, indY, none, indYW, zeroX, zeroX, zeroX, zeroX, imp, absY, imp, absYW, absX, absX, absXW, absXW,     // 7
	imm, indX, imm, indX, zero, zero, zero, zero, imp, imm, imp, imm, abs, abs, abs, abs,                    // 8
	rel, indYW, none, indYW, zeroX, zeroX, zeroY, zeroY, imp, absYW, imp, absYW, absXW, absXW, absYW, absYW, // 9
	imm, indX, imm, indX, zero, zero, zero, zero, imp, imm, imp, imm, abs, abs, abs, abs,                    // A
	rel, indY, none, indY, zeroX, zeroX, zeroY, zeroY, imp, absY, imp, absY, absX, absX, absY, absY,         // B
	imm, indX, imm, indX, zero, zero, zero, zero, imp, imm, imp, imm, abs, abs, abs, abs,                    // C
	rel, indY, none, indYW, zeroX, zeroX, zeroX, zeroX, imp, absY, imp, absYW, absX, absX, absXW, absXW,     // D
	imm, indX, imm, indX, zero, zero, zero, zero, imp, imm, imp, imm, abs, abs, abs, abs,                    // E
	rel, indY, none, indYW, zeroX, zeroX, zeroX, zeroX, imp, absY, imp, absYW, absX, absX, absXW, absXW,     // F
}

var handlers = map[string]func(*CPU){
	"ADC": (*CPU).adc, "AND": (*CPU).and, "ASL": (*CPU).asl, "BCC": (*CPU).bcc,
	"BCS": (*CPU).bcs, "BEQ": (*CPU).beq, "BIT": (*CPU).bit, "BMI": (*CPU).bmi,
	"BNE": (*CPU).bne, "BPL": (*CPU).bpl, "BRK": (*CPU).brk, "BVC": (*CPU).bvc,
	"BVS": (*CPU).bvs, "CLC": (*CPU).clc, "CLD": (*CPU).cld, "CLI": (*CPU).cli,
	"CLV": (*CPU).clv, "CMP": (*CPU).cmp, "CPX": (*CPU).cpx, "CPY": (*CPU).cpy,
	"DEC": (*CPU).dec, "DEX": (*CPU).dex, "DEY": (*CPU).dey, "EOR": (*CPU).eor,
	"INC": (*CPU).inc, "INX": (*CPU).inx, "INY": (*CPU).iny, "JMP": (*CPU).jmpAbs,
	"JSR": (*CPU).jsr, "LDA": (*CPU).lda, "LDX": (*CPU).ldx, "LDY": (*CPU).ldy,
	"LSR": (*CPU).lsr, "NOP": (*CPU).nop, "ORA": (*CPU).ora, "PHA": (*CPU).pha,
	"PHP": (*CPU).php, "PLA": (*CPU).pla, "PLP": (*CPU).plp, "ROL": (*CPU).rol,
	"ROR": (*CPU).ror, "RTI": (*CPU).rti, "RTS": (*CPU).rts, "SBC": (*CPU).sbc,
	"SEC": (*CPU).sec, "SED": (*CPU).sed, "SEI": (*CPU).sei, "STA": (*CPU).sta,
	"STX": (*CPU).stx, "STY": (*CPU).sty, "TAX": (*CPU).tax, "TAY": (*CPU).tay,
	"TSX": (*CPU).tsx, "TXA": (*CPU).txa, "TXS": (*CPU).txs, "TYA": (*CPU).tya,

	"SLO": (*CPU).slo, "SRE": (*CPU).sre, "RLA": (*CPU).rla, "RRA": (*CPU).rra,
	"DCP": (*CPU).dcp, "ISB": (*CPU).isb, "SAX": (*CPU).sax, "LAX": (*CPU).lax,
	"AAC": (*CPU).aac, "ASR": (*CPU).asr, "ARR": (*CPU).arr, "ATX": (*CPU).atx,
	"AXS": (*CPU).axs, "ANE": (*CPU).ane, "LAS": (*CPU).las, "SYA": (*CPU).sya,
	"SXA": (*CPU).sxa, "AXA": (*CPU).axa, "TAS": (*CPU).tas, "HLT": (*CPU).hlt,
}

var accumulatorHandlers = map[string]func(*CPU){
	"ASL": (*CPU).aslA, "LSR": (*CPU).lsrA, "ROL": (*CPU).rolA, "ROR": (*CPU).rorA,
}

func init() {
	for i := range opcodes {
		name, mode := opcodeNames[i], opcodeModes[i]
		exec := handlers[name]
		switch {
		case mode == modeAcc:
			exec = accumulatorHandlers[name]
		case mode == modeInd:
			exec = (*CPU).jmpInd
		}
		if exec == nil {
			panic("cpu: no handler for " + name)
		}
		opcodes[i] = opcode{name: name, mode: mode, exec: exec}
	}
}

// Mnemonic returns the assembler name of an opcode. Unofficial opcodes use
// the AAC/ATX/AXS naming.
func Mnemonic(op uint8) string { return opcodes[op].name }

// InstructionSize returns the length in bytes of the instruction starting
// with op, opcode included.
func InstructionSize(op uint8) int { return 1 + opcodes[op].mode.operandSize() }

// IsJam reports whether op halts the CPU.
func IsJam(op uint8) bool { return opcodes[op].name == "HLT" }
