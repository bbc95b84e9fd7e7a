package jit

import (
	"reflect"
	"unsafe"

	"github.com/nesforge/coreos/nes"
)

// busMode tells jitLoad/jitStore which of the bus-facing addressing modes
// to resolve op0/op1 against. IMM never reaches here (the translator
// inlines it); AddrIMP/AddrACC/AddrREL have no memory operand at all.
type busMode byte

const (
	busZPG busMode = iota
	busZPX
	busZPY
	busABS
	busABX
	busABY
	busINX
	busINY
)

// busModeFor maps an addressing mode to the busMode the Go-side resolver
// understands, reporting false for modes the bus bridge never handles
// (IMM is resolved inline by the translator; IMP/ACC/REL/IND never reach
// compileNode's load/store/ALU cases).
func busModeFor(mode nes.AddressingMode) (busMode, bool) {
	switch mode {
	case nes.AddrZPG:
		return busZPG, true
	case nes.AddrZPX:
		return busZPX, true
	case nes.AddrZPY:
		return busZPY, true
	case nes.AddrABS:
		return busABS, true
	case nes.AddrABX:
		return busABX, true
	case nes.AddrABY:
		return busABY, true
	case nes.AddrINX:
		return busINX, true
	case nes.AddrINY:
		return busINY, true
	default:
		return 0, false
	}
}

// busRequest is the mailbox compiled code uses to call into Go for an
// addressing-mode resolution it can't do inline: the block writes
// mode/op0/op1 (compile-time constants baked in by emitBusSetup) and, for
// a store, value, then CALLs into jitLoad or jitStore; the callee reads
// this struct and activeState/activeBus instead of taking arguments,
// since the call site is raw machine code and can't honor Go's calling
// convention.
type busRequest struct {
	mode  busMode
	op0   byte
	op1   byte
	value byte
}

// busScratchAddrs holds busRequest's field addresses, resolved once when
// the cache is created, the same way resolveFieldAddrs resolves
// nes.State's fields.
type busScratchAddrs struct {
	mode  uint64
	op0   uint64
	op1   uint64
	value uint64
}

var scratch busRequest

func resolveBusScratchAddrs() busScratchAddrs {
	base := uintptr(unsafe.Pointer(&scratch))
	return busScratchAddrs{
		mode:  uint64(base + unsafe.Offsetof(scratch.mode)),
		op0:   uint64(base + unsafe.Offsetof(scratch.op0)),
		op1:   uint64(base + unsafe.Offsetof(scratch.op1)),
		value: uint64(base + unsafe.Offsetof(scratch.value)),
	}
}

// activeState/activeBus are set once per Cache.Run call, immediately
// before entering compiled code, and read by jitLoad/jitStore for the
// duration of that call. Safe under the single-emulation-thread model
// nes.Machine already assumes (Cache.Run is never called concurrently
// with itself).
var (
	activeState *nes.State
	activeBus   nes.Bus
)

// resolveEffectiveAddr mirrors cpu.go's resolveAddress for the subset of
// addressing modes the bus bridge serves, reading the zero-page/absolute
// base and index directly from the request's op0/op1 rather than from
// PC-relative fetches (the instruction bytes were already captured at
// discover time).
func resolveEffectiveAddr(s *nes.State, bus nes.Bus, req busRequest) uint16 {
	switch req.mode {
	case busZPG:
		return uint16(req.op0)
	case busZPX:
		return uint16(req.op0+s.X) & 0x00FF
	case busZPY:
		return uint16(req.op0+s.Y) & 0x00FF
	case busABS:
		return uint16(req.op1)<<8 | uint16(req.op0)
	case busABX:
		base := uint16(req.op1)<<8 | uint16(req.op0)
		return base + uint16(s.X)
	case busABY:
		base := uint16(req.op1)<<8 | uint16(req.op0)
		return base + uint16(s.Y)
	case busINX:
		base := uint16(req.op0 + s.X)
		lo := uint16(bus.Load(base & 0x00FF))
		hi := uint16(bus.Load((base + 1) & 0x00FF))
		return lo | hi<<8
	case busINY:
		lo := uint16(bus.Load(uint16(req.op0)))
		hi := uint16(bus.Load(uint16(req.op0+1) & 0x00FF))
		base := lo | hi<<8
		return base + uint16(s.Y)
	}
	return 0
}

// jitLoad and jitStore are the Go-side halves of the bus-accessor bridge:
// zero-argument, //go:noinline so their entry point is a stable, callable
// address obtained via funcEntry, operating entirely through the
// package-level scratch mailbox and activeState/activeBus rather than
// parameters or a return value.
//
//go:noinline
func jitLoad() {
	scratch.value = activeBus.Load(resolveEffectiveAddr(activeState, activeBus, scratch))
}

//go:noinline
func jitStore() {
	activeBus.Store(resolveEffectiveAddr(activeState, activeBus, scratch), scratch.value)
}

// funcEntry returns the raw machine-code entry address of a plain,
// non-generic, non-closure Go function — the mirror image of
// trampoline_amd64.s's runBlock, which lets Go call into compiled 6502
// code; this lets compiled 6502 code call back into Go.
func funcEntry(fn func()) uint64 {
	return uint64(reflect.ValueOf(fn).Pointer())
}
