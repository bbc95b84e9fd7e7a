package jit

import (
	"errors"
	"unsafe"

	"github.com/nesforge/coreos/nes"
)

// errUnsupportedAddrMode marks a translatable mnemonic reached with an
// addressing mode the bus bridge has no busMode for (this should never
// actually happen given the translatable set — every mode any of these
// mnemonics use maps to a busMode, or is AddrIMM, handled inline).
var errUnsupportedAddrMode = errors.New("jit: unsupported addressing mode for bus bridge")

// translatable lists the mnemonics this recompiler knows how to turn into
// host code: the flag-only implieds and register transfers that never
// touch the bus, plus the load/store and ALU families (whose memory
// operands are resolved out-of-line via a CALL into jitLoad/jitStore) and
// the eight conditional branches (whose taken edge is a host jump
// link-patched once its target compiles). Read-modify-write memory
// opcodes (ASL/LSR/ROL/ROR/INC/DEC and their unofficial combined forms)
// and the control-transfer/exit family (BRK, JMP, JSR, RTI, RTS, JAM) stay
// with the interpreter.
var translatable = map[string]bool{
	"CLC": true, "SEC": true, "CLI": true, "SEI": true,
	"CLD": true, "SED": true, "CLV": true, "NOP": true,
	"TAX": true, "TAY": true, "TXA": true, "TYA": true,
	"TSX": true, "TXS": true,
	"INX": true, "INY": true, "DEX": true, "DEY": true,

	"LDA": true, "LDX": true, "LDY": true,
	"STA": true, "STX": true, "STY": true,
	"ADC": true, "SBC": true,
	"AND": true, "ORA": true, "EOR": true,
	"CMP": true, "CPX": true, "CPY": true,

	"BCC": true, "BCS": true, "BEQ": true, "BNE": true,
	"BPL": true, "BMI": true, "BVC": true, "BVS": true,
}

// fieldAddrs resolves the absolute addresses of the State register fields
// a translated instruction reads or writes. Computed once per compile call
// from the live *nes.State the cache was handed, not at package init, since
// a code buffer is only ever run against the one Machine it was built for.
type fieldAddrs struct {
	a, x, y, p, sp uint64
	pc             uint64
}

func resolveFieldAddrs(s *nes.State) fieldAddrs {
	base := uintptr(unsafe.Pointer(s))
	return fieldAddrs{
		a:  uint64(base + unsafe.Offsetof(s.A)),
		x:  uint64(base + unsafe.Offsetof(s.X)),
		y:  uint64(base + unsafe.Offsetof(s.Y)),
		p:  uint64(base + unsafe.Offsetof(s.P)),
		sp: uint64(base + unsafe.Offsetof(s.SP)),
		pc: uint64(base + unsafe.Offsetof(s.PC)),
	}
}

// flagMask mirrors nes.StatusFlag's bit positions; duplicated here rather
// than imported because the emitter works in plain bytes, not StatusFlag
// values, when building immediate masks for AND/OR sequences.
const (
	flagMaskC = 1 << 0
	flagMaskZ = 1 << 1
	flagMaskV = 1 << 6
	flagMaskN = 1 << 7
)

// canTranslate reports whether compileNode knows how to translate the
// given opcode, without emitting anything. Used by the cache's discovery
// pass to decide where a chain ends, before liveness has been computed.
func canTranslate(opcode byte) bool {
	return translatable[nes.Descriptors[opcode].Mnemonic]
}

// compileNode translates one node's instruction into host code, appending
// to e's buffer. It returns false (leaving the node untranslated) for
// anything not in the translatable set. It does not emit the node's
// trailing quantum/PC bookkeeping or its RET/branch-link code — that is
// cache.go's job (Cache.compile via emitNodeExit, and compileBranchNode), since it
// depends on whether this is the last node in the chain and, for
// branches, on two divergent exits rather than one.
func compileNode(e *Emitter, fa fieldAddrs, ba busScratchAddrs, n *Node, requiredFlags byte) (bool, error) {
	d := nes.Descriptors[n.Opcode]
	if !translatable[d.Mnemonic] || d.Branch {
		return false, nil
	}

	switch d.Mnemonic {
	case "NOP":
		// no host code needed: the node exit emitted by cache.go already
		// charges NOP's cycles from the descriptor table.
	case "CLC":
		if err := emitFlagClear(e, fa.p, flagMaskC); err != nil {
			return false, err
		}
	case "SEC":
		if err := emitFlagSet(e, fa.p, flagMaskC); err != nil {
			return false, err
		}
	case "CLI":
		if err := emitFlagClear(e, fa.p, byte(nes.FlagI)); err != nil {
			return false, err
		}
	case "SEI":
		if err := emitFlagSet(e, fa.p, byte(nes.FlagI)); err != nil {
			return false, err
		}
	case "CLD":
		if err := emitFlagClear(e, fa.p, byte(nes.FlagD)); err != nil {
			return false, err
		}
	case "SED":
		if err := emitFlagSet(e, fa.p, byte(nes.FlagD)); err != nil {
			return false, err
		}
	case "CLV":
		if err := emitFlagClear(e, fa.p, byte(nes.FlagV)); err != nil {
			return false, err
		}
	case "TAX":
		if err := emitTransferZN(e, fa, fa.a, fa.x, requiredFlags); err != nil {
			return false, err
		}
	case "TAY":
		if err := emitTransferZN(e, fa, fa.a, fa.y, requiredFlags); err != nil {
			return false, err
		}
	case "TXA":
		if err := emitTransferZN(e, fa, fa.x, fa.a, requiredFlags); err != nil {
			return false, err
		}
	case "TYA":
		if err := emitTransferZN(e, fa, fa.y, fa.a, requiredFlags); err != nil {
			return false, err
		}
	case "TSX":
		if err := emitTransferZN(e, fa, fa.sp, fa.x, requiredFlags); err != nil {
			return false, err
		}
	case "TXS":
		if err := emitTransferPlain(e, fa.x, fa.sp); err != nil {
			return false, err
		}
	case "INX":
		if err := emitIncDec(e, fa, fa.x, true, requiredFlags); err != nil {
			return false, err
		}
	case "INY":
		if err := emitIncDec(e, fa, fa.y, true, requiredFlags); err != nil {
			return false, err
		}
	case "DEX":
		if err := emitIncDec(e, fa, fa.x, false, requiredFlags); err != nil {
			return false, err
		}
	case "DEY":
		if err := emitIncDec(e, fa, fa.y, false, requiredFlags); err != nil {
			return false, err
		}

	case "LDA":
		if err := emitLoad(e, fa, ba, fa.a, n, d, requiredFlags); err != nil {
			return false, err
		}
	case "LDX":
		if err := emitLoad(e, fa, ba, fa.x, n, d, requiredFlags); err != nil {
			return false, err
		}
	case "LDY":
		if err := emitLoad(e, fa, ba, fa.y, n, d, requiredFlags); err != nil {
			return false, err
		}
	case "STA":
		if err := emitStore(e, fa, ba, fa.a, n, d); err != nil {
			return false, err
		}
	case "STX":
		if err := emitStore(e, fa, ba, fa.x, n, d); err != nil {
			return false, err
		}
	case "STY":
		if err := emitStore(e, fa, ba, fa.y, n, d); err != nil {
			return false, err
		}

	case "ADC":
		if err := emitAddSub(e, fa, ba, n, d, requiredFlags, false); err != nil {
			return false, err
		}
	case "SBC":
		if err := emitAddSub(e, fa, ba, n, d, requiredFlags, true); err != nil {
			return false, err
		}
	case "AND":
		if err := emitLogic(e, fa, ba, n, d, requiredFlags, (*Emitter).AndReg8); err != nil {
			return false, err
		}
	case "ORA":
		if err := emitLogic(e, fa, ba, n, d, requiredFlags, (*Emitter).OrReg8); err != nil {
			return false, err
		}
	case "EOR":
		if err := emitLogic(e, fa, ba, n, d, requiredFlags, (*Emitter).XorReg8); err != nil {
			return false, err
		}
	case "CMP":
		if err := emitCompare(e, fa, ba, fa.a, n, d, requiredFlags); err != nil {
			return false, err
		}
	case "CPX":
		if err := emitCompare(e, fa, ba, fa.x, n, d, requiredFlags); err != nil {
			return false, err
		}
	case "CPY":
		if err := emitCompare(e, fa, ba, fa.y, n, d, requiredFlags); err != nil {
			return false, err
		}

	default:
		return false, nil
	}

	n.Translatable = true
	return true, nil
}

// emitFlagClear/emitFlagSet implement CLC/SEC/.../CLV directly on the
// guest P byte: load, mask, store. No host flags are involved, so there is
// nothing to convert.
func emitFlagClear(e *Emitter, addrP uint64, mask byte) error {
	if err := e.MovRegAbs64(RBX, addrP); err != nil {
		return err
	}
	if err := e.LoadMem8(RDX, RBX); err != nil {
		return err
	}
	if err := e.MovRegImm8(RSI, ^mask); err != nil {
		return err
	}
	if err := e.AndReg8(RDX, RSI); err != nil {
		return err
	}
	return e.StoreMem8(RBX, RDX)
}

func emitFlagSet(e *Emitter, addrP uint64, mask byte) error {
	if err := e.MovRegAbs64(RBX, addrP); err != nil {
		return err
	}
	if err := e.LoadMem8(RDX, RBX); err != nil {
		return err
	}
	if err := e.MovRegImm8(RSI, mask); err != nil {
		return err
	}
	if err := e.OrReg8(RDX, RSI); err != nil {
		return err
	}
	return e.StoreMem8(RBX, RDX)
}

// emitTransferPlain copies one field to another with no flag effect (TXS).
func emitTransferPlain(e *Emitter, srcAddr, dstAddr uint64) error {
	if err := e.MovRegAbs64(RBX, srcAddr); err != nil {
		return err
	}
	if err := e.LoadMem8(RAX, RBX); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, dstAddr); err != nil {
		return err
	}
	return e.StoreMem8(RBX, RAX)
}

// emitTransferZN copies src to dst and updates guest Z/N from the result
// (TAX/TAY/TXA/TYA/TSX), skipping whichever of the two the liveness pass
// says nothing downstream reads.
func emitTransferZN(e *Emitter, fa fieldAddrs, srcAddr, dstAddr uint64, required byte) error {
	if err := e.MovRegAbs64(RBX, srcAddr); err != nil {
		return err
	}
	if err := e.LoadMem8(RAX, RBX); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, dstAddr); err != nil {
		return err
	}
	if err := e.StoreMem8(RBX, RAX); err != nil {
		return err
	}
	return emitSetZN(e, fa.p, required)
}

// emitIncDec loads the field at addr, increments or decrements it, writes
// it back, and updates guest Z/N (INX/INY/DEX/DEY).
func emitIncDec(e *Emitter, fa fieldAddrs, addr uint64, inc bool, required byte) error {
	if err := e.MovRegAbs64(RBX, addr); err != nil {
		return err
	}
	if err := e.LoadMem8(RAX, RBX); err != nil {
		return err
	}
	var err error
	if inc {
		err = e.IncReg8(RAX)
	} else {
		err = e.DecReg8(RAX)
	}
	if err != nil {
		return err
	}
	if err := e.StoreMem8(RBX, RAX); err != nil {
		return err
	}
	return emitSetZN(e, fa.p, required)
}

// emitSetZN sets guest Z and/or N in the byte at addrP from the value
// currently in AL, using an independent CMP-AL,0 test per flag so the
// AND/OR sequence that writes one flag's bit never shares host flags with
// the other's test. required (from the backward liveness pass) may say
// only one of the two is actually read before it is next written, in
// which case the other's test and branch are skipped entirely.
func emitSetZN(e *Emitter, addrP uint64, required byte) error {
	if required&(flagMaskZ|flagMaskN) == 0 {
		return nil
	}
	if err := e.XorReg8(RCX, RCX); err != nil { // RCX = 0, scratch zero
		return err
	}

	if required&flagMaskZ != 0 {
		if err := e.CmpReg8(RAX, RCX); err != nil {
			return err
		}
		if err := emitMaterializeFlag(e, addrP, flagMaskZ, CondE); err != nil {
			return err
		}
	}

	if required&flagMaskN != 0 {
		if err := e.CmpReg8(RAX, RCX); err != nil {
			return err
		}
		if err := emitMaterializeFlag(e, addrP, flagMaskN, CondS); err != nil {
			return err
		}
	}

	return nil
}

// emitMaterializeFlag reads host condition cond (assumed valid from the
// most recently emitted flag-setting instruction) and writes mask into
// the guest P byte at addrP: set if cond holds, cleared otherwise. This is
// emitSetZN's CMP-and-branch idiom generalized to any flag/condition pair,
// used for C and V as well as Z and N.
func emitMaterializeFlag(e *Emitter, addrP uint64, mask byte, cond Cond) error {
	setSlot, err := e.JccRel32(cond)
	if err != nil {
		return err
	}
	if err := emitFlagClear(e, addrP, mask); err != nil {
		return err
	}
	doneSlot, err := e.JmpRel32()
	if err != nil {
		return err
	}
	e.PatchRel32(setSlot, e.Buf.Offset())
	if err := emitFlagSet(e, addrP, mask); err != nil {
		return err
	}
	e.PatchRel32(doneSlot, e.Buf.Offset())
	return nil
}

// emitMaterializeFlagFromReg is emitMaterializeFlag's counterpart for a
// flag bit already captured into a register (via SETcc) rather than one
// still live in the host flags — used for C/V after ADC/SBC, since by the
// time Z/N are computed (via a fresh CMP) the original arithmetic's CF/OF
// would otherwise have been clobbered.
func emitMaterializeFlagFromReg(e *Emitter, addrP uint64, mask byte, r Reg) error {
	if err := e.TestReg8(r); err != nil {
		return err
	}
	return emitMaterializeFlag(e, addrP, mask, CondNE)
}

// emitBusSetup writes the compile-time-constant mode/op0/op1 of a memory
// operand into the shared busRequest scratch mailbox, ahead of a CALL into
// jitLoad or jitStore.
func emitBusSetup(e *Emitter, ba busScratchAddrs, mode busMode, op0, op1 byte) error {
	for _, kv := range [...]struct {
		addr uint64
		val  byte
	}{
		{ba.mode, byte(mode)},
		{ba.op0, op0},
		{ba.op1, op1},
	} {
		if err := e.MovRegAbs64(RBX, kv.addr); err != nil {
			return err
		}
		if err := e.MovRegImm8(RAX, kv.val); err != nil {
			return err
		}
		if err := e.StoreMem8(RBX, RAX); err != nil {
			return err
		}
	}
	return nil
}

// emitLoadOperandInto leaves the instruction's memory/immediate operand in
// dst. A/X/Y/P are always fully up to date in nes.State by the time this
// CALL executes (nothing in this JIT ever caches a guest register in a
// host register across node boundaries), so no spill is needed before
// calling into Go.
func emitLoadOperandInto(e *Emitter, ba busScratchAddrs, dst Reg, n *Node, d nes.Descriptor) error {
	if d.Mode == nes.AddrIMM {
		return e.MovRegImm8(dst, n.Operand0)
	}
	mode, ok := busModeFor(d.Mode)
	if !ok {
		return errUnsupportedAddrMode
	}
	if err := emitBusSetup(e, ba, mode, n.Operand0, n.Operand1); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, funcEntry(jitLoad)); err != nil {
		return err
	}
	if err := e.CallReg(RBX); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, ba.value); err != nil {
		return err
	}
	return e.LoadMem8(dst, RBX)
}

// emitStoreOperandFrom writes src to the instruction's memory operand.
// STA/STX/STY never use immediate addressing, so there is no IMM case.
func emitStoreOperandFrom(e *Emitter, ba busScratchAddrs, src Reg, n *Node, d nes.Descriptor) error {
	mode, ok := busModeFor(d.Mode)
	if !ok {
		return errUnsupportedAddrMode
	}
	if err := e.MovRegAbs64(RBX, ba.value); err != nil {
		return err
	}
	if err := e.StoreMem8(RBX, src); err != nil {
		return err
	}
	if err := emitBusSetup(e, ba, mode, n.Operand0, n.Operand1); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, funcEntry(jitStore)); err != nil {
		return err
	}
	return e.CallReg(RBX)
}

// emitLoad implements LDA/LDX/LDY: load the operand, write it to dst, set
// Z/N.
func emitLoad(e *Emitter, fa fieldAddrs, ba busScratchAddrs, dst uint64, n *Node, d nes.Descriptor, required byte) error {
	if err := emitLoadOperandInto(e, ba, RAX, n, d); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, dst); err != nil {
		return err
	}
	if err := e.StoreMem8(RBX, RAX); err != nil {
		return err
	}
	return emitSetZN(e, fa.p, required)
}

// emitStore implements STA/STX/STY: no flag effect.
func emitStore(e *Emitter, fa fieldAddrs, ba busScratchAddrs, src uint64, n *Node, d nes.Descriptor) error {
	if err := e.MovRegAbs64(RBX, src); err != nil {
		return err
	}
	if err := e.LoadMem8(RDX, RBX); err != nil {
		return err
	}
	return emitStoreOperandFrom(e, ba, RDX, n, d)
}

// emitLogic implements AND/ORA/EOR: load A and the operand, combine with
// op, store back to A, set Z/N. C and V are left untouched (6502's logic
// ops never affect them), matching their WriteFlags=rwZN in the
// descriptor table.
func emitLogic(e *Emitter, fa fieldAddrs, ba busScratchAddrs, n *Node, d nes.Descriptor, required byte, op func(*Emitter, Reg, Reg) error) error {
	if err := emitLoadOperandInto(e, ba, RCX, n, d); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, fa.a); err != nil {
		return err
	}
	if err := e.LoadMem8(RAX, RBX); err != nil {
		return err
	}
	if err := op(e, RAX, RCX); err != nil {
		return err
	}
	if err := e.StoreMem8(RBX, RAX); err != nil {
		return err
	}
	return emitSetZN(e, fa.p, required)
}

// emitCompare implements CMP/CPX/CPY: subtract (discarding the result) and
// capture C (no borrow, i.e. reg >= operand) and Z/N. 6502's compare carry
// sense is the complement of x86 CMP's borrow flag, so C is captured with
// SETAE rather than SETB.
func emitCompare(e *Emitter, fa fieldAddrs, ba busScratchAddrs, reg uint64, n *Node, d nes.Descriptor, required byte) error {
	if err := emitLoadOperandInto(e, ba, RCX, n, d); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, reg); err != nil {
		return err
	}
	if err := e.LoadMem8(RAX, RBX); err != nil {
		return err
	}
	// SUB, not CMP: the 6502 compare's Z/N reflect reg-operand, so the
	// difference needs to actually land in RAX (CMP discards it). CMP and
	// SUB set C identically, so capturing C off this is still correct.
	if err := e.SubReg8(RAX, RCX); err != nil {
		return err
	}
	if required&flagMaskC != 0 {
		if err := e.SetCC(CondAE, RDX); err != nil {
			return err
		}
		if err := emitMaterializeFlagFromReg(e, fa.p, flagMaskC, RDX); err != nil {
			return err
		}
	}
	// Z/N are re-derived from a fresh CMP against the now-materialized
	// difference in RAX (the SETCC/materialize sequence above clobbers the
	// flags SUB just set), exactly like emitSetZN's own
	// independent-CMP-per-flag discipline.
	return emitSetZN(e, fa.p, required)
}

// emitAddSub implements ADC and, for sub=true, SBC. The operand load (and,
// for any non-immediate addressing mode, the CALL into jitLoad that
// entails) happens first, since a Go function call is free to clobber
// host flags internally; only once that has fully returned does this
// stage the guest carry into AH and install it via SAHF, with the actual
// ADC/SBB immediately next and nothing flag-affecting in between. SBC
// complements the staged carry bit first, since x86 SBB's incoming-borrow
// sense is the opposite of 6502's incoming carry. C and V are captured
// via SETcc immediately after the op (before anything else touches
// flags) and materialized from those captured registers; Z/N are
// re-derived afterward from a fresh CMP against the result, per
// emitSetZN's usual technique.
func emitAddSub(e *Emitter, fa fieldAddrs, ba busScratchAddrs, n *Node, d nes.Descriptor, required byte, sub bool) error {
	if err := emitLoadOperandInto(e, ba, RCX, n, d); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, fa.a); err != nil {
		return err
	}
	if err := e.LoadMem8(RAX, RBX); err != nil {
		return err
	}

	if err := e.MovRegAbs64(RBX, fa.p); err != nil {
		return err
	}
	if err := e.LoadMem8(RDX, RBX); err != nil {
		return err
	}
	if err := e.AndRegImm8(RDX, flagMaskC); err != nil {
		return err
	}
	if sub {
		if err := e.XorRegImm8(RDX, flagMaskC); err != nil { // invert: SBB wants NOT(guest C)
			return err
		}
	}
	if err := e.OrRegImm8(RDX, 1<<1); err != nil { // AH bit 1 is reserved-as-1
		return err
	}
	if err := e.MovRegReg8(regAH, RDX); err != nil {
		return err
	}
	if err := e.Sahf(); err != nil {
		return err
	}

	if sub {
		if err := e.SbbReg8(RAX, RCX); err != nil {
			return err
		}
	} else {
		if err := e.AdcReg8(RAX, RCX); err != nil {
			return err
		}
	}

	carryCond := CondB // ADC: x86 CF out == guest C out directly
	if sub {
		carryCond = CondAE // SBC: x86 CF out is the complement of guest C out
	}
	if required&flagMaskC != 0 {
		if err := e.SetCC(carryCond, RCX); err != nil {
			return err
		}
	}
	if required&flagMaskV != 0 {
		if err := e.SetCC(CondO, regDH); err != nil {
			return err
		}
	}

	if err := e.MovRegAbs64(RBX, fa.a); err != nil {
		return err
	}
	if err := e.StoreMem8(RBX, RAX); err != nil {
		return err
	}

	// V before C: regDH and RSI are the same physical register encoding
	// (no REX prefix is ever emitted, so r/m8 field 6 means DH either way),
	// and emitFlagClear/emitFlagSet load P into DL and their mask into
	// RSI, so every flag materialization overwrites both DL and DH. The
	// overflow bit is therefore read first, and the carry bit is held in
	// CL (the operand register, dead after ADC/SBB), which neither helper
	// touches.
	if required&flagMaskV != 0 {
		if err := emitMaterializeFlagFromReg(e, fa.p, flagMaskV, regDH); err != nil {
			return err
		}
	}
	if required&flagMaskC != 0 {
		if err := emitMaterializeFlagFromReg(e, fa.p, flagMaskC, RCX); err != nil {
			return err
		}
	}
	return emitSetZN(e, fa.p, required)
}
