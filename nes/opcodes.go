package nes

// AddressingMode enumerates the 6502 addressing modes.
type AddressingMode int

const (
	AddrIMP AddressingMode = iota
	AddrACC
	AddrIMM
	AddrZPG
	AddrZPX
	AddrZPY
	AddrREL
	AddrABS
	AddrABX
	AddrABY
	AddrIND
	AddrINX
	AddrINY
)

// modeBytes returns the instruction length (opcode byte included) for the
// given addressing mode.
func modeBytes(m AddressingMode) byte {
	switch m {
	case AddrIMP, AddrACC:
		return 1
	case AddrIMM, AddrZPG, AddrZPX, AddrZPY, AddrREL, AddrINX, AddrINY:
		return 2
	case AddrABS, AddrABX, AddrABY, AddrIND:
		return 3
	}
	return 1
}

// Flag read/write masks, used by both the interpreter's bookkeeping and
// the JIT's flag-liveness pass.
const (
	rwC = byte(FlagC)
	rwZ = byte(FlagZ)
	rwI = byte(FlagI)
	rwD = byte(FlagD)
	rwB = byte(FlagB)
	rwV = byte(FlagV)
	rwN = byte(FlagN)
	rwAll = rwC | rwZ | rwI | rwD | rwB | rwV | rwN
	rwZN  = rwZ | rwN
	rwCZN = rwC | rwZ | rwN
)

// Descriptor is static, opcode-indexed metadata. It carries no behavior: the interpreter and the JIT each implement the
// opcode's semantics separately, but both derive cycle accounting and
// flag liveness from this single shared table.
type Descriptor struct {
	Mnemonic   string
	Mode       AddressingMode
	Bytes      byte
	Cycles     byte // base cycle cost, before oops/branch/RMW extras
	ReadFlags  byte // flags this opcode reads
	WriteFlags byte // flags this opcode (unconditionally) writes
	Unofficial bool
	Jam        bool // KIL/HLT family
	RMW        bool // read-modify-write: always +1 on indexed modes, double write-back
	PageExtra  bool // +1 cycle if indexed/indirect addressing crosses a page
	Branch     bool // conditional relative branch
	Exit       bool // unconditional control transfer the JIT never inlines
}

// Descriptors is indexed by opcode byte value 0..255.
var Descriptors [256]Descriptor

type opRow struct {
	mnemonic   string
	mode       AddressingMode
	cycles     byte
	read       byte
	write      byte
	unofficial bool
}

func init() {
	rows := map[byte]opRow{
		0x00: {"BRK", AddrIMP, 7, 0, 0, false},
		0x01: {"ORA", AddrINX, 6, 0, rwZN, false},
		0x02: {"JAM", AddrIMP, 2, 0, 0, false},
		0x03: {"SLO", AddrINX, 8, rwC, rwCZN, true},
		0x04: {"NOP", AddrZPG, 3, 0, 0, true},
		0x05: {"ORA", AddrZPG, 3, 0, rwZN, false},
		0x06: {"ASL", AddrZPG, 5, 0, rwCZN, false},
		0x07: {"SLO", AddrZPG, 5, rwC, rwCZN, true},
		0x08: {"PHP", AddrIMP, 3, rwAll, 0, false},
		0x09: {"ORA", AddrIMM, 2, 0, rwZN, false},
		0x0A: {"ASL", AddrACC, 2, 0, rwCZN, false},
		0x0B: {"ANC", AddrIMM, 2, 0, rwCZN, true},
		0x0C: {"NOP", AddrABS, 4, 0, 0, true},
		0x0D: {"ORA", AddrABS, 4, 0, rwZN, false},
		0x0E: {"ASL", AddrABS, 6, 0, rwCZN, false},
		0x0F: {"SLO", AddrABS, 6, rwC, rwCZN, true},

		0x10: {"BPL", AddrREL, 2, rwN, 0, false},
		0x11: {"ORA", AddrINY, 5, 0, rwZN, false},
		0x12: {"JAM", AddrIMP, 2, 0, 0, false},
		0x13: {"SLO", AddrINY, 8, rwC, rwCZN, true},
		0x14: {"NOP", AddrZPX, 4, 0, 0, true},
		0x15: {"ORA", AddrZPX, 4, 0, rwZN, false},
		0x16: {"ASL", AddrZPX, 6, 0, rwCZN, false},
		0x17: {"SLO", AddrZPX, 6, rwC, rwCZN, true},
		0x18: {"CLC", AddrIMP, 2, 0, rwC, false},
		0x19: {"ORA", AddrABY, 4, 0, rwZN, false},
		0x1A: {"NOP", AddrIMP, 2, 0, 0, true},
		0x1B: {"SLO", AddrABY, 7, rwC, rwCZN, true},
		0x1C: {"NOP", AddrABX, 4, 0, 0, true},
		0x1D: {"ORA", AddrABX, 4, 0, rwZN, false},
		0x1E: {"ASL", AddrABX, 7, 0, rwCZN, false},
		0x1F: {"SLO", AddrABX, 7, rwC, rwCZN, true},

		0x20: {"JSR", AddrABS, 6, 0, 0, false},
		0x21: {"AND", AddrINX, 6, 0, rwZN, false},
		0x22: {"JAM", AddrIMP, 2, 0, 0, false},
		0x23: {"RLA", AddrINX, 8, rwC, rwCZN, true},
		0x24: {"BIT", AddrZPG, 3, 0, rwZN | rwV, false},
		0x25: {"AND", AddrZPG, 3, 0, rwZN, false},
		0x26: {"ROL", AddrZPG, 5, rwC, rwCZN, false},
		0x27: {"RLA", AddrZPG, 5, rwC, rwCZN, true},
		0x28: {"PLP", AddrIMP, 4, 0, rwAll, false},
		0x29: {"AND", AddrIMM, 2, 0, rwZN, false},
		0x2A: {"ROL", AddrACC, 2, rwC, rwCZN, false},
		0x2B: {"ANC", AddrIMM, 2, 0, rwCZN, true},
		0x2C: {"BIT", AddrABS, 4, 0, rwZN | rwV, false},
		0x2D: {"AND", AddrABS, 4, 0, rwZN, false},
		0x2E: {"ROL", AddrABS, 6, rwC, rwCZN, false},
		0x2F: {"RLA", AddrABS, 6, rwC, rwCZN, true},

		0x30: {"BMI", AddrREL, 2, rwN, 0, false},
		0x31: {"AND", AddrINY, 5, 0, rwZN, false},
		0x32: {"JAM", AddrIMP, 2, 0, 0, false},
		0x33: {"RLA", AddrINY, 8, rwC, rwCZN, true},
		0x34: {"NOP", AddrZPX, 4, 0, 0, true},
		0x35: {"AND", AddrZPX, 4, 0, rwZN, false},
		0x36: {"ROL", AddrZPX, 6, rwC, rwCZN, false},
		0x37: {"RLA", AddrZPX, 6, rwC, rwCZN, true},
		0x38: {"SEC", AddrIMP, 2, 0, rwC, false},
		0x39: {"AND", AddrABY, 4, 0, rwZN, false},
		0x3A: {"NOP", AddrIMP, 2, 0, 0, true},
		0x3B: {"RLA", AddrABY, 7, rwC, rwCZN, true},
		0x3C: {"NOP", AddrABX, 4, 0, 0, true},
		0x3D: {"AND", AddrABX, 4, 0, rwZN, false},
		0x3E: {"ROL", AddrABX, 7, rwC, rwCZN, false},
		0x3F: {"RLA", AddrABX, 7, rwC, rwCZN, true},

		0x40: {"RTI", AddrIMP, 6, 0, rwAll, false},
		0x41: {"EOR", AddrINX, 6, 0, rwZN, false},
		0x42: {"JAM", AddrIMP, 2, 0, 0, false},
		0x43: {"SRE", AddrINX, 8, 0, rwCZN, true},
		0x44: {"NOP", AddrZPG, 3, 0, 0, true},
		0x45: {"EOR", AddrZPG, 3, 0, rwZN, false},
		0x46: {"LSR", AddrZPG, 5, 0, rwCZN, false},
		0x47: {"SRE", AddrZPG, 5, 0, rwCZN, true},
		0x48: {"PHA", AddrIMP, 3, 0, 0, false},
		0x49: {"EOR", AddrIMM, 2, 0, rwZN, false},
		0x4A: {"LSR", AddrACC, 2, 0, rwCZN, false},
		0x4B: {"ALR", AddrIMM, 2, 0, rwCZN, true},
		0x4C: {"JMP", AddrABS, 3, 0, 0, false},
		0x4D: {"EOR", AddrABS, 4, 0, rwZN, false},
		0x4E: {"LSR", AddrABS, 6, 0, rwCZN, false},
		0x4F: {"SRE", AddrABS, 6, 0, rwCZN, true},

		0x50: {"BVC", AddrREL, 2, rwV, 0, false},
		0x51: {"EOR", AddrINY, 5, 0, rwZN, false},
		0x52: {"JAM", AddrIMP, 2, 0, 0, false},
		0x53: {"SRE", AddrINY, 8, 0, rwCZN, true},
		0x54: {"NOP", AddrZPX, 4, 0, 0, true},
		0x55: {"EOR", AddrZPX, 4, 0, rwZN, false},
		0x56: {"LSR", AddrZPX, 6, 0, rwCZN, false},
		0x57: {"SRE", AddrZPX, 6, 0, rwCZN, true},
		0x58: {"CLI", AddrIMP, 2, 0, rwI, false},
		0x59: {"EOR", AddrABY, 4, 0, rwZN, false},
		0x5A: {"NOP", AddrIMP, 2, 0, 0, true},
		0x5B: {"SRE", AddrABY, 7, 0, rwCZN, true},
		0x5C: {"NOP", AddrABX, 4, 0, 0, true},
		0x5D: {"EOR", AddrABX, 4, 0, rwZN, false},
		0x5E: {"LSR", AddrABX, 7, 0, rwCZN, false},
		0x5F: {"SRE", AddrABX, 7, 0, rwCZN, true},

		0x60: {"RTS", AddrIMP, 6, 0, 0, false},
		0x61: {"ADC", AddrINX, 6, rwC, rwC | rwZN | rwV, false},
		0x62: {"JAM", AddrIMP, 2, 0, 0, false},
		0x63: {"RRA", AddrINX, 8, rwC, rwC | rwZN | rwV, true},
		0x64: {"NOP", AddrZPG, 3, 0, 0, true},
		0x65: {"ADC", AddrZPG, 3, rwC, rwC | rwZN | rwV, false},
		0x66: {"ROR", AddrZPG, 5, rwC, rwCZN, false},
		0x67: {"RRA", AddrZPG, 5, rwC, rwC | rwZN | rwV, true},
		0x68: {"PLA", AddrIMP, 4, 0, rwZN, false},
		0x69: {"ADC", AddrIMM, 2, rwC, rwC | rwZN | rwV, false},
		0x6A: {"ROR", AddrACC, 2, rwC, rwCZN, false},
		0x6B: {"ARR", AddrIMM, 2, rwC, rwC | rwZN | rwV, true},
		0x6C: {"JMP", AddrIND, 5, 0, 0, false},
		0x6D: {"ADC", AddrABS, 4, rwC, rwC | rwZN | rwV, false},
		0x6E: {"ROR", AddrABS, 6, rwC, rwCZN, false},
		0x6F: {"RRA", AddrABS, 6, rwC, rwC | rwZN | rwV, true},

		0x70: {"BVS", AddrREL, 2, rwV, 0, false},
		0x71: {"ADC", AddrINY, 5, rwC, rwC | rwZN | rwV, false},
		0x72: {"JAM", AddrIMP, 2, 0, 0, false},
		0x73: {"RRA", AddrINY, 8, rwC, rwC | rwZN | rwV, true},
		0x74: {"NOP", AddrZPX, 4, 0, 0, true},
		0x75: {"ADC", AddrZPX, 4, rwC, rwC | rwZN | rwV, false},
		0x76: {"ROR", AddrZPX, 6, rwC, rwCZN, false},
		0x77: {"RRA", AddrZPX, 6, rwC, rwC | rwZN | rwV, true},
		0x78: {"SEI", AddrIMP, 2, 0, rwI, false},
		0x79: {"ADC", AddrABY, 4, rwC, rwC | rwZN | rwV, false},
		0x7A: {"NOP", AddrIMP, 2, 0, 0, true},
		0x7B: {"RRA", AddrABY, 7, rwC, rwC | rwZN | rwV, true},
		0x7C: {"NOP", AddrABX, 4, 0, 0, true},
		0x7D: {"ADC", AddrABX, 4, rwC, rwC | rwZN | rwV, false},
		0x7E: {"ROR", AddrABX, 7, rwC, rwCZN, false},
		0x7F: {"RRA", AddrABX, 7, rwC, rwC | rwZN | rwV, true},

		0x80: {"NOP", AddrIMM, 2, 0, 0, true},
		0x81: {"STA", AddrINX, 6, 0, 0, false},
		0x82: {"NOP", AddrIMM, 2, 0, 0, true},
		0x83: {"SAX", AddrINX, 6, 0, 0, true},
		0x84: {"STY", AddrZPG, 3, 0, 0, false},
		0x85: {"STA", AddrZPG, 3, 0, 0, false},
		0x86: {"STX", AddrZPG, 3, 0, 0, false},
		0x87: {"SAX", AddrZPG, 3, 0, 0, true},
		0x88: {"DEY", AddrIMP, 2, 0, rwZN, false},
		0x89: {"NOP", AddrIMM, 2, 0, 0, true},
		0x8A: {"TXA", AddrIMP, 2, 0, rwZN, false},
		0x8B: {"ANE", AddrIMM, 2, 0, rwZN, true},
		0x8C: {"STY", AddrABS, 4, 0, 0, false},
		0x8D: {"STA", AddrABS, 4, 0, 0, false},
		0x8E: {"STX", AddrABS, 4, 0, 0, false},
		0x8F: {"SAX", AddrABS, 4, 0, 0, true},

		0x90: {"BCC", AddrREL, 2, rwC, 0, false},
		0x91: {"STA", AddrINY, 6, 0, 0, false},
		0x92: {"JAM", AddrIMP, 2, 0, 0, false},
		0x93: {"SHA", AddrINY, 6, 0, 0, true},
		0x94: {"STY", AddrZPX, 4, 0, 0, false},
		0x95: {"STA", AddrZPX, 4, 0, 0, false},
		0x96: {"STX", AddrZPY, 4, 0, 0, false},
		0x97: {"SAX", AddrZPY, 4, 0, 0, true},
		0x98: {"TYA", AddrIMP, 2, 0, rwZN, false},
		0x99: {"STA", AddrABY, 5, 0, 0, false},
		0x9A: {"TXS", AddrIMP, 2, 0, 0, false},
		0x9B: {"SHS", AddrABY, 5, 0, 0, true},
		0x9C: {"SHY", AddrABX, 5, 0, 0, true},
		0x9D: {"STA", AddrABX, 5, 0, 0, false},
		0x9E: {"SHX", AddrABY, 5, 0, 0, true},
		0x9F: {"SHA", AddrABY, 5, 0, 0, true},

		0xA0: {"LDY", AddrIMM, 2, 0, rwZN, false},
		0xA1: {"LDA", AddrINX, 6, 0, rwZN, false},
		0xA2: {"LDX", AddrIMM, 2, 0, rwZN, false},
		0xA3: {"LAX", AddrINX, 6, 0, rwZN, true},
		0xA4: {"LDY", AddrZPG, 3, 0, rwZN, false},
		0xA5: {"LDA", AddrZPG, 3, 0, rwZN, false},
		0xA6: {"LDX", AddrZPG, 3, 0, rwZN, false},
		0xA7: {"LAX", AddrZPG, 3, 0, rwZN, true},
		0xA8: {"TAY", AddrIMP, 2, 0, rwZN, false},
		0xA9: {"LDA", AddrIMM, 2, 0, rwZN, false},
		0xAA: {"TAX", AddrIMP, 2, 0, rwZN, false},
		0xAB: {"LXA", AddrIMM, 2, 0, rwZN, true},
		0xAC: {"LDY", AddrABS, 4, 0, rwZN, false},
		0xAD: {"LDA", AddrABS, 4, 0, rwZN, false},
		0xAE: {"LDX", AddrABS, 4, 0, rwZN, false},
		0xAF: {"LAX", AddrABS, 4, 0, rwZN, true},

		0xB0: {"BCS", AddrREL, 2, rwC, 0, false},
		0xB1: {"LDA", AddrINY, 5, 0, rwZN, false},
		0xB2: {"JAM", AddrIMP, 2, 0, 0, false},
		0xB3: {"LAX", AddrINY, 5, 0, rwZN, true},
		0xB4: {"LDY", AddrZPX, 4, 0, rwZN, false},
		0xB5: {"LDA", AddrZPX, 4, 0, rwZN, false},
		0xB6: {"LDX", AddrZPY, 4, 0, rwZN, false},
		0xB7: {"LAX", AddrZPY, 4, 0, rwZN, true},
		0xB8: {"CLV", AddrIMP, 2, 0, rwV, false},
		0xB9: {"LDA", AddrABY, 4, 0, rwZN, false},
		0xBA: {"TSX", AddrIMP, 2, 0, rwZN, false},
		0xBB: {"LAS", AddrABY, 4, 0, rwZN, true},
		0xBC: {"LDY", AddrABX, 4, 0, rwZN, false},
		0xBD: {"LDA", AddrABX, 4, 0, rwZN, false},
		0xBE: {"LDX", AddrABY, 4, 0, rwZN, false},
		0xBF: {"LAX", AddrABY, 4, 0, rwZN, true},

		0xC0: {"CPY", AddrIMM, 2, 0, rwCZN, false},
		0xC1: {"CMP", AddrINX, 6, 0, rwCZN, false},
		0xC2: {"NOP", AddrIMM, 2, 0, 0, true},
		0xC3: {"DCP", AddrINX, 8, 0, rwCZN, true},
		0xC4: {"CPY", AddrZPG, 3, 0, rwCZN, false},
		0xC5: {"CMP", AddrZPG, 3, 0, rwCZN, false},
		0xC6: {"DEC", AddrZPG, 5, 0, rwZN, false},
		0xC7: {"DCP", AddrZPG, 5, 0, rwCZN, true},
		0xC8: {"INY", AddrIMP, 2, 0, rwZN, false},
		0xC9: {"CMP", AddrIMM, 2, 0, rwCZN, false},
		0xCA: {"DEX", AddrIMP, 2, 0, rwZN, false},
		0xCB: {"SBX", AddrIMM, 2, 0, rwCZN, true},
		0xCC: {"CPY", AddrABS, 4, 0, rwCZN, false},
		0xCD: {"CMP", AddrABS, 4, 0, rwCZN, false},
		0xCE: {"DEC", AddrABS, 6, 0, rwZN, false},
		0xCF: {"DCP", AddrABS, 6, 0, rwCZN, true},

		0xD0: {"BNE", AddrREL, 2, rwZ, 0, false},
		0xD1: {"CMP", AddrINY, 5, 0, rwCZN, false},
		0xD2: {"JAM", AddrIMP, 2, 0, 0, false},
		0xD3: {"DCP", AddrINY, 8, 0, rwCZN, true},
		0xD4: {"NOP", AddrZPX, 4, 0, 0, true},
		0xD5: {"CMP", AddrZPX, 4, 0, rwCZN, false},
		0xD6: {"DEC", AddrZPX, 6, 0, rwZN, false},
		0xD7: {"DCP", AddrZPX, 6, 0, rwCZN, true},
		0xD8: {"CLD", AddrIMP, 2, 0, rwD, false},
		0xD9: {"CMP", AddrABY, 4, 0, rwCZN, false},
		0xDA: {"NOP", AddrIMP, 2, 0, 0, true},
		0xDB: {"DCP", AddrABY, 7, 0, rwCZN, true},
		0xDC: {"NOP", AddrABX, 4, 0, 0, true},
		0xDD: {"CMP", AddrABX, 4, 0, rwCZN, false},
		0xDE: {"DEC", AddrABX, 7, 0, rwZN, false},
		0xDF: {"DCP", AddrABX, 7, 0, rwCZN, true},

		0xE0: {"CPX", AddrIMM, 2, 0, rwCZN, false},
		0xE1: {"SBC", AddrINX, 6, rwC, rwC | rwZN | rwV, false},
		0xE2: {"NOP", AddrIMM, 2, 0, 0, true},
		0xE3: {"ISB", AddrINX, 8, rwC, rwC | rwZN | rwV, true},
		0xE4: {"CPX", AddrZPG, 3, 0, rwCZN, false},
		0xE5: {"SBC", AddrZPG, 3, rwC, rwC | rwZN | rwV, false},
		0xE6: {"INC", AddrZPG, 5, 0, rwZN, false},
		0xE7: {"ISB", AddrZPG, 5, rwC, rwC | rwZN | rwV, true},
		0xE8: {"INX", AddrIMP, 2, 0, rwZN, false},
		0xE9: {"SBC", AddrIMM, 2, rwC, rwC | rwZN | rwV, false},
		0xEA: {"NOP", AddrIMP, 2, 0, 0, false},
		0xEB: {"SBC", AddrIMM, 2, rwC, rwC | rwZN | rwV, true},
		0xEC: {"CPX", AddrABS, 4, 0, rwCZN, false},
		0xED: {"SBC", AddrABS, 4, rwC, rwC | rwZN | rwV, false},
		0xEE: {"INC", AddrABS, 6, 0, rwZN, false},
		0xEF: {"ISB", AddrABS, 6, rwC, rwC | rwZN | rwV, true},

		0xF0: {"BEQ", AddrREL, 2, rwZ, 0, false},
		0xF1: {"SBC", AddrINY, 5, rwC, rwC | rwZN | rwV, false},
		0xF2: {"JAM", AddrIMP, 2, 0, 0, false},
		0xF3: {"ISB", AddrINY, 8, rwC, rwC | rwZN | rwV, true},
		0xF4: {"NOP", AddrZPX, 4, 0, 0, true},
		0xF5: {"SBC", AddrZPX, 4, rwC, rwC | rwZN | rwV, false},
		0xF6: {"INC", AddrZPX, 6, 0, rwZN, false},
		0xF7: {"ISB", AddrZPX, 6, rwC, rwC | rwZN | rwV, true},
		0xF8: {"SED", AddrIMP, 2, 0, rwD, false},
		0xF9: {"SBC", AddrABY, 4, rwC, rwC | rwZN | rwV, false},
		0xFA: {"NOP", AddrIMP, 2, 0, 0, true},
		0xFB: {"ISB", AddrABY, 7, rwC, rwC | rwZN | rwV, true},
		0xFC: {"NOP", AddrABX, 4, 0, 0, true},
		0xFD: {"SBC", AddrABX, 4, rwC, rwC | rwZN | rwV, false},
		0xFE: {"INC", AddrABX, 7, 0, rwZN, false},
		0xFF: {"ISB", AddrABX, 7, rwC, rwC | rwZN | rwV, true},
	}

	rmwMnemonics := map[string]bool{
		"ASL": true, "LSR": true, "ROL": true, "ROR": true,
		"INC": true, "DEC": true,
		"SLO": true, "SRE": true, "RLA": true, "RRA": true,
		"DCP": true, "ISB": true,
	}
	exitMnemonics := map[string]bool{
		"BRK": true, "JMP": true, "JSR": true, "RTI": true, "RTS": true,
	}

	for op, r := range rows {
		d := Descriptor{
			Mnemonic:   r.mnemonic,
			Mode:       r.mode,
			Bytes:      modeBytes(r.mode),
			Cycles:     r.cycles,
			ReadFlags:  r.read,
			WriteFlags: r.write,
			Unofficial: r.unofficial,
			Jam:        r.mnemonic == "JAM",
			RMW:        rmwMnemonics[r.mnemonic],
			Branch:     r.mode == AddrREL,
			Exit:       exitMnemonics[r.mnemonic] || r.mnemonic == "JAM",
		}
		if d.RMW && (r.mode == AddrABX || r.mode == AddrABY || r.mode == AddrINY) {
			d.PageExtra = false // always included in Cycles already for RMW
		} else if !d.RMW {
			switch r.mnemonic {
			case "LDA", "LDX", "LDY", "EOR", "AND", "ORA", "ADC", "SBC", "CMP", "LAX", "NOP", "LAS":
				if r.mode == AddrABX || r.mode == AddrABY || r.mode == AddrINY {
					d.PageExtra = true
				}
			}
		}
		Descriptors[op] = d
	}
}
