package nes

import "sync/atomic"

// Status flag bits of the P register. Naming follows the SF6502
// convention used by most 6502 emulators.
type StatusFlag byte

const (
	FlagC StatusFlag = 1 << iota // Carry
	FlagZ                        // Zero
	FlagI                        // Interrupt disable
	FlagD                        // Decimal (unused by this core's ADC/SBC)
	FlagB                        // Break
	FlagU                        // Unused, always 1
	FlagV                        // Overflow
	FlagN                        // Negative
)

const stackBase uint16 = 0x0100

const (
	vectorNMI   uint16 = 0xFFFA
	vectorReset uint16 = 0xFFFC
	vectorIRQ   uint16 = 0xFFFE
)

// State is the CPU register file plus the interrupt latches and cycle
// counter. nmi/irq are mutated from the PPU/bus side of a sync call and
// read at instruction boundaries, so they live behind atomic accessors
// even though nothing in this core is actually multi-threaded beyond the
// input/event collaborator.
type State struct {
	A, X, Y byte
	P       byte
	SP      byte
	PC      uint16
	Cycles  uint64

	nmi int32
	irq int32
}

// Clear resets the CPU to its post-power-on state.
func (s *State) Clear() {
	s.A, s.X, s.Y = 0, 0, 0
	s.P = byte(FlagI) | byte(FlagU)
	s.SP = 0xFD
	s.Cycles = 0
	atomic.StoreInt32(&s.nmi, 0)
	atomic.StoreInt32(&s.irq, 0)
}

// GetFlag reports whether the given status flag is currently set.
func (s *State) GetFlag(f StatusFlag) bool {
	return s.P&byte(f) != 0
}

// SetFlag sets or clears the given status flag.
func (s *State) SetFlag(f StatusFlag, on bool) {
	if on {
		s.P |= byte(f)
	} else {
		s.P &^= byte(f)
	}
}

// SetNMI latches a pending non-maskable interrupt. Safe to call from the
// PPU side of a sync() call.
func (s *State) SetNMI() { atomic.StoreInt32(&s.nmi, 1) }

// SetIRQ level-holds a pending maskable interrupt until explicitly cleared.
func (s *State) SetIRQ(on bool) {
	v := int32(0)
	if on {
		v = 1
	}
	atomic.StoreInt32(&s.irq, v)
}

func (s *State) pendingNMI() bool { return atomic.LoadInt32(&s.nmi) != 0 }
func (s *State) pendingIRQ() bool { return atomic.LoadInt32(&s.irq) != 0 }
func (s *State) clearNMI()        { atomic.StoreInt32(&s.nmi, 0) }

// Bus is the minimal interface State's interrupt-entry sequence needs to
// push the return address and read interrupt vectors. The full Bus type
// implements this plus the rest of the address-space contract.
type Bus interface {
	Load(addr uint16) byte
	Store(addr uint16, val byte)
}

// Reset loads PC from the reset vector. Power-on values of
// the other registers are installed by Clear, which the scheduler always
// calls first.
func (s *State) Reset(bus Bus) {
	s.PC = readWord(bus, vectorReset)
}

func readWord(bus Bus, addr uint16) uint16 {
	lo := bus.Load(addr)
	hi := bus.Load(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

func (s *State) push(bus Bus, v byte) {
	bus.Store(stackBase+uint16(s.SP), v)
	s.SP--
}

func (s *State) pop(bus Bus) byte {
	s.SP++
	return bus.Load(stackBase + uint16(s.SP))
}

// enterInterrupt implements the shared push/vector/cycle sequence used by
// NMI, IRQ, and BRK entry: push PC hi, PC lo, P with B cleared (U always
// set), set I, fetch the given vector, add 7 cycles.
func (s *State) enterInterrupt(bus Bus, vector uint16, brk bool) {
	s.push(bus, byte(s.PC>>8))
	s.push(bus, byte(s.PC))

	p := s.P | byte(FlagU)
	if brk {
		p |= byte(FlagB)
	} else {
		p &^= byte(FlagB)
	}
	s.push(bus, p)

	s.SetFlag(FlagI, true)
	s.PC = readWord(bus, vector)
	s.Cycles += 7
}

// TriggerNMI services a latched NMI: clears the latch, pushes the return
// state, and vectors to $FFFA.
func (s *State) TriggerNMI(bus Bus) {
	s.clearNMI()
	s.enterInterrupt(bus, vectorNMI, false)
}

// TriggerIRQ services a level-held IRQ. Callers must check GetFlag(FlagI)
// themselves; unlike NMI, IRQ does not clear its own latch (it is level
// held by the external source and expected to be cleared there).
func (s *State) TriggerIRQ(bus Bus) {
	s.enterInterrupt(bus, vectorIRQ, false)
}
