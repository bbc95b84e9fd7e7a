package jit

// Reg names the subset of amd64 general-purpose registers the emitter
// targets. Encodings follow the standard ModRM register field ordering,
// grounded on original_source/src/x86/X86Emitter.cc's Reg<u8> table.
type Reg byte

const (
	RAX Reg = 0
	RCX Reg = 1
	RDX Reg = 2
	RBX Reg = 3
	RSP Reg = 4
	RBP Reg = 5
	RSI Reg = 6
	RDI Reg = 7
)

// condition codes for Jcc, matching x86 Jcc opcode suffixes.
type Cond byte

const (
	CondO  Cond = 0x0
	CondNO Cond = 0x1
	CondB  Cond = 0x2 // CF=1 (unsigned <), used to capture ADC's carry out
	CondAE Cond = 0x3 // CF=0
	CondE  Cond = 0x4 // ZF=1
	CondNE Cond = 0x5
	CondS  Cond = 0x8 // SF=1 (negative)
	CondNS Cond = 0x9
	CondG  Cond = 0xF // signed >, used for the quantum-remaining check
	CondLE Cond = 0xE
)

// High-byte 8-bit register aliases. The emitter never emits a REX prefix,
// so encodings 4-7 in an 8-bit ModRM select AH/CH/DH/BH rather than
// SPL/BPL/SIL/DIL — a second scratch byte riding along each of
// RAX/RCX/RDX/RBX's low-byte counterpart, used to stage a flag byte for
// SAHF or to hold a second captured condition code without reaching for a
// fifth register.
const (
	regAH Reg = 4
	regCH Reg = 5
	regDH Reg = 6
	regBH Reg = 7
)

// Emitter is a minimal amd64 encoder: just enough to emit the
// load/store/arithmetic/compare/jump/ret sequences a translated 6502
// block needs (mirroring X86::Emitter's jumpCond/jumpAbs/put* helpers).
// It writes directly into a CodeBuffer rather than building an
// intermediate instruction list.
type Emitter struct {
	Buf *CodeBuffer
}

func NewEmitter(buf *CodeBuffer) *Emitter { return &Emitter{Buf: buf} }

func (e *Emitter) put(bs ...byte) error { return e.Buf.WriteBytes(bs...) }

// MovRegImm8 emits `MOV r8, imm8` (B0+r ib).
func (e *Emitter) MovRegImm8(r Reg, imm byte) error {
	return e.put(0xB0+byte(r), imm)
}

// MovRegAbs64 emits a MOVABS-style 64-bit absolute load sequence into
// RAX-family register r: `MOV r64, imm64` (REX.W B8+r). Used to load the
// absolute address of a nes.State field before dereferencing it.
func (e *Emitter) MovRegAbs64(r Reg, imm uint64) error {
	if err := e.put(0x48, 0xB8+byte(r)); err != nil {
		return err
	}
	return e.Buf.WriteUint64(imm)
}

// LoadMem8 emits `MOV r8, [base]` (8A /r, ModRM mod=00).
func (e *Emitter) LoadMem8(dst Reg, base Reg) error {
	return e.put(0x8A, modrm(0, dst, base))
}

// StoreMem8 emits `MOV [base], r8` (88 /r, ModRM mod=00).
func (e *Emitter) StoreMem8(base Reg, src Reg) error {
	return e.put(0x88, modrm(0, src, base))
}

func modrm(mod byte, reg, rm Reg) byte {
	return mod<<6 | (byte(reg)&7)<<3 | (byte(rm) & 7)
}

// AddReg8 emits `ADD dst8, src8` (00 /r).
func (e *Emitter) AddReg8(dst, src Reg) error { return e.put(0x00, modrm(3, src, dst)) }

// AdcReg8 emits `ADC dst8, src8` (10 /r) — carries the host carry flag,
// mirroring the JIT's reliance on native flags for 6502 ADC.
func (e *Emitter) AdcReg8(dst, src Reg) error { return e.put(0x10, modrm(3, src, dst)) }

// SubReg8 emits `SUB dst8, src8` (28 /r).
func (e *Emitter) SubReg8(dst, src Reg) error { return e.put(0x28, modrm(3, src, dst)) }

// CmpReg8 emits `CMP dst8, src8` (38 /r).
func (e *Emitter) CmpReg8(dst, src Reg) error { return e.put(0x38, modrm(3, src, dst)) }

// AndReg8 emits `AND dst8, src8` (20 /r).
func (e *Emitter) AndReg8(dst, src Reg) error { return e.put(0x20, modrm(3, src, dst)) }

// OrReg8 emits `OR dst8, src8` (08 /r).
func (e *Emitter) OrReg8(dst, src Reg) error { return e.put(0x08, modrm(3, src, dst)) }

// XorReg8 emits `XOR dst8, src8` (30 /r).
func (e *Emitter) XorReg8(dst, src Reg) error { return e.put(0x30, modrm(3, src, dst)) }

// IncReg8/DecReg8 emit register increment/decrement via `FE /0` and `FE /1`.
func (e *Emitter) IncReg8(r Reg) error { return e.put(0xFE, modrm(3, 0, r)) }
func (e *Emitter) DecReg8(r Reg) error { return e.put(0xFE, modrm(3, 1, r)) }

// Pushfq/Popfq emit PUSHFQ/POPFQ, for stashing and later merging native
// flags into the guest P register when a translation needs raw RFLAGS
// rather than a CMP-and-branch sequence.
func (e *Emitter) Pushfq() error { return e.put(0x9C) }
func (e *Emitter) Popfq() error  { return e.put(0x9D) }

// Ret emits a near return, the block-exit instruction the trampoline
// calls into.
func (e *Emitter) Ret() error { return e.put(0xC3) }

// JmpRel32 reserves a 4-byte relative near-jump displacement (E9 +
// placeholder) and returns the code-buffer offset of the displacement
// slot, to be patched later via CodeBuffer.PatchInt32 once the target is
// known (mirrors X86::Emitter::jumpAbs's deferred-patch return value).
func (e *Emitter) JmpRel32() (int, error) {
	if err := e.put(0xE9); err != nil {
		return 0, err
	}
	slot := e.Buf.Offset()
	if err := e.Buf.WriteUint32(0); err != nil {
		return 0, err
	}
	return slot, nil
}

// JccRel32 reserves a 4-byte relative conditional-jump displacement (0F
// 8x + placeholder) and returns its patch-site offset.
func (e *Emitter) JccRel32(c Cond) (int, error) {
	if err := e.put(0x0F, 0x80+byte(c)); err != nil {
		return 0, err
	}
	slot := e.Buf.Offset()
	if err := e.Buf.WriteUint32(0); err != nil {
		return 0, err
	}
	return slot, nil
}

// PatchRel32 computes the relative displacement from the instruction
// following the patch slot to target and writes it in, per the link-
// patching step of cacheBlock.
func (e *Emitter) PatchRel32(slot int, target int) {
	rel := int32(target - (slot + 4))
	e.Buf.PatchInt32(slot, rel)
}

// MovRegReg8 emits `MOV dst8, src8` (88 /r, mod=3) — a register-to-
// register move, used to stage a flag byte into AH/CH/DH/BH ahead of
// SAHF without round-tripping through memory.
func (e *Emitter) MovRegReg8(dst, src Reg) error { return e.put(0x88, modrm(3, src, dst)) }

// AndRegImm8/OrRegImm8/XorRegImm8 emit the 80 /4, /1, /6 immediate forms
// (AND/OR/XOR r/m8, imm8), used to isolate or flip a single status-flag
// bit ahead of SAHF.
func (e *Emitter) AndRegImm8(r Reg, imm byte) error { return e.put(0x80, modrm(3, 4, r), imm) }
func (e *Emitter) OrRegImm8(r Reg, imm byte) error  { return e.put(0x80, modrm(3, 1, r), imm) }
func (e *Emitter) XorRegImm8(r Reg, imm byte) error { return e.put(0x80, modrm(3, 6, r), imm) }

// TestReg8 emits `TEST r8, r8` (84 /r), setting ZF/SF from r's value
// without otherwise disturbing it — used ahead of a Jcc/SETcc pair that
// branches on "is this captured bit nonzero".
func (e *Emitter) TestReg8(r Reg) error { return e.put(0x84, modrm(3, r, r)) }

// SbbReg8 emits `SBB dst8, src8` (18 /r) — subtract with borrow, used for
// 6502 SBC after the incoming carry has been complemented into the host
// carry flag (6502 and x86 invert the sense of the subtract borrow-in).
func (e *Emitter) SbbReg8(dst, src Reg) error { return e.put(0x18, modrm(3, src, dst)) }

// Cmc emits CMC (0xF5), complementing the host carry flag. Unused by the
// current SBC translation (which instead constructs the inverted carry
// explicitly before SAHF) but kept available as a cheap single-byte
// alternative.
func (e *Emitter) Cmc() error { return e.put(0xF5) }

// Sahf emits SAHF (0x9E): loads SF/ZF/AF/PF/CF from AH. Used to install a
// host carry flag built from the guest P register ahead of ADC/SBC.
func (e *Emitter) Sahf() error { return e.put(0x9E) }

// SetCC emits `SETcc r/m8` (0F 9x /0), storing 1 or 0 into r depending on
// cond, without otherwise touching flags — used to capture a carry/
// overflow result before a later CMP (for Z/N) overwrites it.
func (e *Emitter) SetCC(cond Cond, r Reg) error {
	return e.put(0x0F, 0x90+byte(cond), modrm(3, 0, r))
}

// CallReg emits `CALL r/m64` (FF /2) — an indirect call to the address
// held in r, the bridge a compiled block uses to reach a Go bus-accessor
// function for addressing modes it cannot resolve inline.
func (e *Emitter) CallReg(r Reg) error { return e.put(0xFF, modrm(3, 2, r)) }

// LoadMem64 emits `MOV r64, [base]` (REX.W 8B /r, mod=00).
func (e *Emitter) LoadMem64(dst, base Reg) error {
	return e.put(0x48, 0x8B, modrm(0, dst, base))
}

// StoreMem64 emits `MOV [base], r64` (REX.W 89 /r, mod=00).
func (e *Emitter) StoreMem64(base, src Reg) error {
	return e.put(0x48, 0x89, modrm(0, src, base))
}

// SubReg64Imm32 emits `SUB r64, imm32` (REX.W 81 /5 id), sign-extended to
// 64 bits — used to charge an instruction's cycle cost against the
// in-memory quantum cell.
func (e *Emitter) SubReg64Imm32(r Reg, imm uint32) error {
	if err := e.put(0x48, 0x81, modrm(3, 5, r)); err != nil {
		return err
	}
	return e.Buf.WriteUint32(imm)
}

// CmpReg64Imm32 emits `CMP r64, imm32` (REX.W 81 /7 id) — compares the
// quantum cell against zero after it has been decremented.
func (e *Emitter) CmpReg64Imm32(r Reg, imm uint32) error {
	if err := e.put(0x48, 0x81, modrm(3, 7, r)); err != nil {
		return err
	}
	return e.Buf.WriteUint32(imm)
}
