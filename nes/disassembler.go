package nes

import "fmt"

// Disassemble renders a single instruction at addr, returning the mnemonic
// text and the address of the next instruction. Recovered from the
// teacher's cpuDisassembler.go and original_source's M6502Asm.cc. Nothing in
// the repository calls it: the fatal-error backtrace and the CLI's -trace
// output print only each opcode's mnemonic, without operands.
func Disassemble(bus Bus, addr uint16) (string, uint16) {
	opcode := bus.Load(addr)
	d := Descriptors[opcode]
	next := addr + uint16(d.Bytes)

	operand := ""
	switch d.Mode {
	case AddrIMP, AddrACC:
	case AddrIMM:
		operand = fmt.Sprintf("#$%02X", bus.Load(addr+1))
	case AddrZPG:
		operand = fmt.Sprintf("$%02X", bus.Load(addr+1))
	case AddrZPX:
		operand = fmt.Sprintf("$%02X,X", bus.Load(addr+1))
	case AddrZPY:
		operand = fmt.Sprintf("$%02X,Y", bus.Load(addr+1))
	case AddrREL:
		off := int8(bus.Load(addr + 1))
		operand = fmt.Sprintf("$%04X", int32(next)+int32(off))
	case AddrABS:
		operand = fmt.Sprintf("$%04X", readWord(bus, addr+1))
	case AddrABX:
		operand = fmt.Sprintf("$%04X,X", readWord(bus, addr+1))
	case AddrABY:
		operand = fmt.Sprintf("$%04X,Y", readWord(bus, addr+1))
	case AddrIND:
		operand = fmt.Sprintf("($%04X)", readWord(bus, addr+1))
	case AddrINX:
		operand = fmt.Sprintf("($%02X,X)", bus.Load(addr+1))
	case AddrINY:
		operand = fmt.Sprintf("($%02X),Y", bus.Load(addr+1))
	}

	text := d.Mnemonic
	if operand != "" {
		text += " " + operand
	}
	if d.Unofficial {
		text += " *"
	}
	return fmt.Sprintf("$%04X: %02X %s", addr, opcode, text), next
}
