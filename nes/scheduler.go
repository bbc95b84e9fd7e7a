package nes

import (
	"fmt"
	"time"
)

const jitQuantum = 1000

func sleep100ms() { time.Sleep(100 * time.Millisecond) }

// FatalError wraps an interpreter failure with the last-N-opcode
// backtrace the scheduler captured at the moment of failure.
type FatalError struct {
	Err       error
	Backtrace []string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%v\n%d prior instructions:\n%s", e.Err, len(e.Backtrace), joinLines(e.Backtrace))
}

func (e *FatalError) Unwrap() error { return e.Err }

func joinLines(lines []string) string {
	s := ""
	for _, l := range lines {
		s += "  " + l + "\n"
	}
	return s
}

// Reset brings the machine to its post-power-on state: state.clear(),
// state.reset(), ppu.clear().
func (m *Machine) Reset() {
	m.State.Clear()
	m.State.Reset(m.Bus)
	m.PPU.oam.clear()
}

// Run drives the co-scheduler's outer loop until the quit event fires
// or a fatal error occurs. It returns the fatal error, if any, wrapped
// with a backtrace.
func (m *Machine) Run() error {
	defer TimeTrack(time.Now())
	for {
		if err := m.step(); err != nil {
			m.Events.SetQuit()
			return &FatalError{Err: err, Backtrace: m.Tracer.Backtrace()}
		}

		for m.Events.Paused() && !m.Events.Quit() {
			sleep100ms()
		}
		if m.Events.Quit() {
			return nil
		}
	}
}

// step runs exactly one scheduler iteration: interrupt dispatch, one
// attempt at a JIT block, one guaranteed interpreter step, PPU sync, and
// OAM-DMA draining. It is exported indirectly through Run but kept
// separate so tests can single-step the machine.
func (m *Machine) step() error {
	before := m.State.Cycles

	// A pending NMI/IRQ must be serviced at the very next instruction
	// boundary, not after however many nodes a JIT chain happens to
	// cover; check the latches before ever attempting a block, matching
	// the outer loop's ordering (interrupt dispatch precedes jit.cache
	// each iteration).
	interruptPending := m.State.pendingNMI() || m.State.pendingIRQ()

	if m.JIT != nil && !interruptPending {
		m.JIT.Run(&m.State, m.Bus, jitQuantum)
	}

	if _, err := m.CPU.Step(); err != nil {
		return err
	}

	delta := m.State.Cycles - before
	m.PPU.Sync(int(delta))
	m.drainDMA()

	return nil
}

// drainDMA services a latched $4014 write. step syncs the PPU up to the
// current CPU cycle before calling it (so OAM writes observe up-to-date
// PPU state); it then transfers 256 bytes one at a
// time via PPU.DMATransfer, and charges 513 or 514 CPU cycles depending
// on whether the DMA was requested on an even or odd CPU cycle.
func (m *Machine) drainDMA() {
	page, ok := m.Bus.DMAPending()
	if !ok {
		return
	}

	m.PPU.Sync(0)

	buf := m.Bus.ReadDMAPage(page)
	for _, v := range buf {
		m.PPU.DMATransfer(v)
	}

	cost := uint64(513)
	if m.State.Cycles%2 != 0 {
		cost = 514
	}
	m.State.Cycles += cost
}
