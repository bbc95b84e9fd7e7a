package nes

// BlockCache is the interface the co-scheduler uses to try a compiled
// block before falling back to the interpreter (package jit implements
// it). Declaring it here rather than importing jit keeps the dependency
// pointed the natural way: jit depends on nes for State/Bus/Descriptors,
// not the reverse. cmd/emulator wires a concrete *jit.Cache in.
type BlockCache interface {
	// Run executes a compiled block starting at s.PC, if one exists, for
	// up to quantumCycles cycles. It reports how many cycles were
	// consumed and whether a block was actually run.
	Run(s *State, bus Bus, quantumCycles int) (consumed int, ran bool)

	// InvalidateWindow discards any cached block compiled from the given
	// 8KiB PRG window. The bus calls it for the window containing each
	// write to $8000-$FFFF; it is not called for the other windows a bank
	// switch remaps, nor for PRG-RAM or RAM writes.
	InvalidateWindow(window int)
}

// Machine is the single value holding everything the emulator needs: one
// owned value per run rather than a set of package-level globals.
type Machine struct {
	State  State
	Bus    *SystemBus
	CPU    *CPU
	PPU    *PPU
	Cart   *Cartridge
	Events Events

	JIT    BlockCache
	Tracer *RingTracer
}

// NewMachine wires a cartridge into a fresh system: bus, PPU, CPU, and
// the MMC3 scanline-IRQ/NMI callbacks.
func NewMachine(cart *Cartridge) *Machine {
	m := &Machine{Cart: cart}
	m.Bus = NewSystemBus(cart)
	m.PPU = NewPPU(cart)
	m.Bus.SetPPU(m.PPU)
	m.Tracer = NewRingTracer()

	m.CPU = NewCPU(&m.State, m.Bus)
	m.CPU.Trace = m.Tracer

	m.PPU.SetNMICallback(func() { m.State.SetNMI() })
	m.PPU.SetScanlineCallback(func() {
		if cart != nil && cart.Mapper.IRQ().Pending() {
			m.State.SetIRQ(true)
		}
	})
	return m
}

// SetJIT wires a compiled-block cache into both the scheduler and the bus,
// so that a mapper register write can invalidate the cache's stale blocks
// without the nes package importing jit.
func (m *Machine) SetJIT(c BlockCache) {
	m.JIT = c
	m.Bus.SetJIT(c)
}
