package nes

import "fmt"

// UnsupportedInstructionError is returned by Step when the fetched opcode
// decodes to one of the unstable undocumented opcodes this core declines
// to emulate.
type UnsupportedInstructionError struct {
	Opcode byte
	PC     uint16
}

func (e *UnsupportedInstructionError) Error() string {
	return fmt.Sprintf("unsupported opcode %#02x at $%04X", e.Opcode, e.PC)
}

// JammingInstructionError is returned when the CPU fetches one of the
// JAM/KIL/HLT opcodes, which lock the real 6502's bus until reset.
type JammingInstructionError struct {
	Opcode byte
	PC     uint16
}

func (e *JammingInstructionError) Error() string {
	return fmt.Sprintf("jam opcode %#02x at $%04X", e.Opcode, e.PC)
}

// Tracer receives one record per retired instruction, for the optional
// trace hook a caller may attach to a CPU.
type Tracer interface {
	TraceStep(pc uint16, opcode byte, a, x, y, p, sp byte, cycle uint64)
}

// CPU is a table-driven, cycle-accurate 6502 interpreter. It operates
// directly on a State and a Bus, fetching one instruction per Step call
// and returning the number of cycles it consumed.
type CPU struct {
	S   *State
	Bus Bus

	Trace Tracer

	// addrAbs/isAcc/pageCross are staging fields: set by the
	// addressing-mode resolver, consumed by the executor.
	addrAbs    uint16
	isAcc      bool
	pageCross  bool
	jammed     bool
}

// NewCPU builds an interpreter bound to the given register file and bus.
func NewCPU(s *State, bus Bus) *CPU {
	return &CPU{S: s, Bus: bus}
}

// Step fetches, decodes, and executes one instruction, servicing any
// pending NMI/IRQ first, and returns the number of CPU cycles consumed.
func (c *CPU) Step() (int, error) {
	if c.jammed {
		return 0, &JammingInstructionError{PC: c.S.PC}
	}

	if c.S.pendingNMI() {
		c.S.TriggerNMI(c.Bus)
		return 7, nil
	}
	if c.S.pendingIRQ() && !c.S.GetFlag(FlagI) {
		c.S.TriggerIRQ(c.Bus)
		return 7, nil
	}

	start := c.S.Cycles
	pc := c.S.PC
	opcode := c.Bus.Load(pc)
	d := Descriptors[opcode]
	c.S.PC++

	if d.Jam {
		c.jammed = true
		return 0, &JammingInstructionError{Opcode: opcode, PC: pc}
	}

	c.pageCross = false
	c.isAcc = false
	c.resolveAddress(d.Mode)

	cycles := int(d.Cycles)
	extra, err := c.execute(d)
	if err != nil {
		if u, ok := err.(*UnsupportedInstructionError); ok {
			u.Opcode = opcode
		}
		return 0, err
	}
	if d.PageExtra && c.pageCross {
		cycles++
	}
	cycles += extra

	c.S.Cycles += uint64(cycles)

	if c.Trace != nil {
		c.Trace.TraceStep(pc, opcode, c.S.A, c.S.X, c.S.Y, c.S.P, c.S.SP, c.S.Cycles)
	}

	return int(c.S.Cycles - start), nil
}

// resolveAddress implements the 6502's addressing modes, including
// zero-page wraparound and the page-boundary bug in indirect JMP.
func (c *CPU) resolveAddress(mode AddressingMode) {
	switch mode {
	case AddrIMP:
		// no operand
	case AddrACC:
		c.isAcc = true
	case AddrIMM:
		c.addrAbs = c.S.PC
		c.S.PC++
	case AddrZPG:
		c.addrAbs = uint16(c.Bus.Load(c.S.PC))
		c.S.PC++
	case AddrZPX:
		c.addrAbs = uint16(c.Bus.Load(c.S.PC)+c.S.X) & 0x00FF
		c.S.PC++
	case AddrZPY:
		c.addrAbs = uint16(c.Bus.Load(c.S.PC)+c.S.Y) & 0x00FF
		c.S.PC++
	case AddrREL:
		off := c.Bus.Load(c.S.PC)
		c.S.PC++
		rel := int16(int8(off))
		c.addrAbs = uint16(int32(c.S.PC) + int32(rel))
	case AddrABS:
		c.addrAbs = readWord(c.Bus, c.S.PC)
		c.S.PC += 2
	case AddrABX:
		base := readWord(c.Bus, c.S.PC)
		c.S.PC += 2
		c.addrAbs = base + uint16(c.S.X)
		c.pageCross = (base & 0xFF00) != (c.addrAbs & 0xFF00)
	case AddrABY:
		base := readWord(c.Bus, c.S.PC)
		c.S.PC += 2
		c.addrAbs = base + uint16(c.S.Y)
		c.pageCross = (base & 0xFF00) != (c.addrAbs & 0xFF00)
	case AddrIND:
		ptr := readWord(c.Bus, c.S.PC)
		c.S.PC += 2
		// Faithful page-boundary bug: if the low byte of ptr is 0xFF, the
		// high byte is fetched from ptr&0xFF00 instead of ptr+1.
		var lo, hi uint16
		lo = uint16(c.Bus.Load(ptr))
		if ptr&0x00FF == 0x00FF {
			hi = uint16(c.Bus.Load(ptr & 0xFF00))
		} else {
			hi = uint16(c.Bus.Load(ptr + 1))
		}
		c.addrAbs = lo | hi<<8
	case AddrINX:
		zp := c.Bus.Load(c.S.PC)
		c.S.PC++
		base := uint16(zp + c.S.X)
		lo := uint16(c.Bus.Load(base & 0x00FF))
		hi := uint16(c.Bus.Load((base + 1) & 0x00FF))
		c.addrAbs = lo | hi<<8
	case AddrINY:
		zp := c.Bus.Load(c.S.PC)
		c.S.PC++
		lo := uint16(c.Bus.Load(uint16(zp)))
		hi := uint16(c.Bus.Load(uint16(zp+1) & 0x00FF))
		base := lo | hi<<8
		c.addrAbs = base + uint16(c.S.Y)
		c.pageCross = (base & 0xFF00) != (c.addrAbs & 0xFF00)
	}
}

func (c *CPU) load() byte {
	if c.isAcc {
		return c.S.A
	}
	return c.Bus.Load(c.addrAbs)
}

func (c *CPU) store(v byte) {
	if c.isAcc {
		c.S.A = v
		return
	}
	c.Bus.Store(c.addrAbs, v)
}

// rmwLoad implements the double write-back timing real 6502 hardware
// performs for indexed read-modify-write instructions: the unmodified
// value is written back before the modified one. This matters for memory
// mapped I/O (PPU/APU registers) which may react to the dummy write.
func (c *CPU) rmwLoad() byte {
	if c.isAcc {
		return c.S.A
	}
	v := c.Bus.Load(c.addrAbs)
	c.Bus.Store(c.addrAbs, v)
	return v
}

func (c *CPU) setZN(v byte) {
	c.S.SetFlag(FlagZ, v == 0)
	c.S.SetFlag(FlagN, v&0x80 != 0)
}

func (c *CPU) branch(taken bool) int {
	if !taken {
		return 0
	}
	old := c.S.PC
	extra := 1
	c.S.PC = c.addrAbs
	if old&0xFF00 != c.S.PC&0xFF00 {
		extra++
	}
	return extra
}

func (c *CPU) compare(reg, v byte) {
	r := reg - v
	c.S.SetFlag(FlagC, reg >= v)
	c.setZN(r)
}

func (c *CPU) adc(v byte) {
	carry := uint16(0)
	if c.S.GetFlag(FlagC) {
		carry = 1
	}
	sum := uint16(c.S.A) + uint16(v) + carry
	overflow := (^(uint16(c.S.A) ^ uint16(v)) & (uint16(c.S.A) ^ sum) & 0x80) != 0
	c.S.A = byte(sum)
	c.S.SetFlag(FlagC, sum > 0xFF)
	c.S.SetFlag(FlagV, overflow)
	c.setZN(c.S.A)
}

func (c *CPU) sbc(v byte) {
	c.adc(v ^ 0xFF)
}

// execute dispatches on mnemonic. Returns extra cycles beyond the base
// Descriptor.Cycles (used by branches; RMW/page timing is handled by the
// caller). Unimplemented unstable undocumented opcodes fall to the
// default case and report UnsupportedInstructionError.
func (c *CPU) execute(d Descriptor) (int, error) {
	switch d.Mnemonic {
	case "NOP":
		if !c.isAcc && d.Mode != AddrIMP {
			_ = c.load() // discard, but still perform the bus read for side effects
		}
		return 0, nil

	case "LDA":
		c.S.A = c.load()
		c.setZN(c.S.A)
	case "LDX":
		c.S.X = c.load()
		c.setZN(c.S.X)
	case "LDY":
		c.S.Y = c.load()
		c.setZN(c.S.Y)
	case "LAX":
		v := c.load()
		c.S.A, c.S.X = v, v
		c.setZN(v)
	case "STA":
		c.store(c.S.A)
	case "STX":
		c.store(c.S.X)
	case "STY":
		c.store(c.S.Y)
	case "SAX":
		c.store(c.S.A & c.S.X)

	case "TAX":
		c.S.X = c.S.A
		c.setZN(c.S.X)
	case "TAY":
		c.S.Y = c.S.A
		c.setZN(c.S.Y)
	case "TXA":
		c.S.A = c.S.X
		c.setZN(c.S.A)
	case "TYA":
		c.S.A = c.S.Y
		c.setZN(c.S.A)
	case "TSX":
		c.S.X = c.S.SP
		c.setZN(c.S.X)
	case "TXS":
		c.S.SP = c.S.X

	case "PHA":
		c.S.push(c.Bus, c.S.A)
	case "PHP":
		c.S.push(c.Bus, c.S.P|byte(FlagB)|byte(FlagU))
	case "PLA":
		c.S.A = c.S.pop(c.Bus)
		c.setZN(c.S.A)
	case "PLP":
		c.S.P = (c.S.pop(c.Bus) &^ byte(FlagB)) | byte(FlagU)

	case "AND":
		c.S.A &= c.load()
		c.setZN(c.S.A)
	case "ORA":
		c.S.A |= c.load()
		c.setZN(c.S.A)
	case "EOR":
		c.S.A ^= c.load()
		c.setZN(c.S.A)
	case "BIT":
		v := c.load()
		c.S.SetFlag(FlagZ, c.S.A&v == 0)
		c.S.SetFlag(FlagV, v&0x40 != 0)
		c.S.SetFlag(FlagN, v&0x80 != 0)

	case "ADC":
		c.adc(c.load())
	case "SBC":
		c.sbc(c.load())
	case "CMP":
		c.compare(c.S.A, c.load())
	case "CPX":
		c.compare(c.S.X, c.load())
	case "CPY":
		c.compare(c.S.Y, c.load())

	case "INC":
		v := c.rmwLoad() + 1
		c.store(v)
		c.setZN(v)
	case "DEC":
		v := c.rmwLoad() - 1
		c.store(v)
		c.setZN(v)
	case "INX":
		c.S.X++
		c.setZN(c.S.X)
	case "INY":
		c.S.Y++
		c.setZN(c.S.Y)
	case "DEX":
		c.S.X--
		c.setZN(c.S.X)
	case "DEY":
		c.S.Y--
		c.setZN(c.S.Y)

	case "ASL":
		v := c.rmwLoad()
		c.S.SetFlag(FlagC, v&0x80 != 0)
		v <<= 1
		c.store(v)
		c.setZN(v)
	case "LSR":
		v := c.rmwLoad()
		c.S.SetFlag(FlagC, v&0x01 != 0)
		v >>= 1
		c.store(v)
		c.setZN(v)
	case "ROL":
		v := c.rmwLoad()
		carryIn := byte(0)
		if c.S.GetFlag(FlagC) {
			carryIn = 1
		}
		c.S.SetFlag(FlagC, v&0x80 != 0)
		v = v<<1 | carryIn
		c.store(v)
		c.setZN(v)
	case "ROR":
		v := c.rmwLoad()
		carryIn := byte(0)
		if c.S.GetFlag(FlagC) {
			carryIn = 0x80
		}
		c.S.SetFlag(FlagC, v&0x01 != 0)
		v = v>>1 | carryIn
		c.store(v)
		c.setZN(v)

	case "SLO":
		v := c.rmwLoad()
		c.S.SetFlag(FlagC, v&0x80 != 0)
		v <<= 1
		c.store(v)
		c.S.A |= v
		c.setZN(c.S.A)
	case "RLA":
		v := c.rmwLoad()
		carryIn := byte(0)
		if c.S.GetFlag(FlagC) {
			carryIn = 1
		}
		c.S.SetFlag(FlagC, v&0x80 != 0)
		v = v<<1 | carryIn
		c.store(v)
		c.S.A &= v
		c.setZN(c.S.A)
	case "SRE":
		v := c.rmwLoad()
		c.S.SetFlag(FlagC, v&0x01 != 0)
		v >>= 1
		c.store(v)
		c.S.A ^= v
		c.setZN(c.S.A)
	case "RRA":
		v := c.rmwLoad()
		carryIn := byte(0)
		if c.S.GetFlag(FlagC) {
			carryIn = 0x80
		}
		c.S.SetFlag(FlagC, v&0x01 != 0)
		v = v>>1 | carryIn
		c.store(v)
		c.adc(v)
	case "DCP":
		v := c.rmwLoad() - 1
		c.store(v)
		c.compare(c.S.A, v)
	case "ISB":
		v := c.rmwLoad() + 1
		c.store(v)
		c.sbc(v)

	case "CLC":
		c.S.SetFlag(FlagC, false)
	case "SEC":
		c.S.SetFlag(FlagC, true)
	case "CLI":
		c.S.SetFlag(FlagI, false)
	case "SEI":
		c.S.SetFlag(FlagI, true)
	case "CLD":
		c.S.SetFlag(FlagD, false)
	case "SED":
		c.S.SetFlag(FlagD, true)
	case "CLV":
		c.S.SetFlag(FlagV, false)

	case "BPL":
		return c.branch(!c.S.GetFlag(FlagN)), nil
	case "BMI":
		return c.branch(c.S.GetFlag(FlagN)), nil
	case "BVC":
		return c.branch(!c.S.GetFlag(FlagV)), nil
	case "BVS":
		return c.branch(c.S.GetFlag(FlagV)), nil
	case "BCC":
		return c.branch(!c.S.GetFlag(FlagC)), nil
	case "BCS":
		return c.branch(c.S.GetFlag(FlagC)), nil
	case "BNE":
		return c.branch(!c.S.GetFlag(FlagZ)), nil
	case "BEQ":
		return c.branch(c.S.GetFlag(FlagZ)), nil

	case "JMP":
		c.S.PC = c.addrAbs
	case "JSR":
		ret := c.S.PC - 1
		c.S.push(c.Bus, byte(ret>>8))
		c.S.push(c.Bus, byte(ret))
		c.S.PC = c.addrAbs
	case "RTS":
		lo := uint16(c.S.pop(c.Bus))
		hi := uint16(c.S.pop(c.Bus))
		c.S.PC = (hi<<8 | lo) + 1
	case "RTI":
		c.S.P = (c.S.pop(c.Bus) &^ byte(FlagB)) | byte(FlagU)
		lo := uint16(c.S.pop(c.Bus))
		hi := uint16(c.S.pop(c.Bus))
		c.S.PC = hi<<8 | lo
	case "BRK":
		c.S.PC++ // BRK's second byte is a padding/signature byte, skipped
		c.S.enterInterrupt(c.Bus, vectorIRQ, true)
		return -7, nil // enterInterrupt already charges 7 cycles; avoid double count

	default:
		return 0, &UnsupportedInstructionError{PC: c.S.PC - uint16(d.Bytes)}
	}
	return 0, nil
}
