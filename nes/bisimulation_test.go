package nes_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nesforge/coreos/jit"
	"github.com/nesforge/coreos/nes"
)

// bisimBus is a flat 64KB address space implementing nes.Bus. Defined here
// rather than reused from either package's internal test fixtures, since
// this file needs to import both nes and jit and so must live in the
// nes_test external test package.
type bisimBus [65536]byte

func (b *bisimBus) Load(addr uint16) byte     { return b[addr] }
func (b *bisimBus) Store(addr uint16, v byte) { b[addr] = v }

// bisimProgram is a straight-line (no backward jump) run touching every
// mnemonic family the JIT translates, plus one read-modify-write opcode
// (ASL zpg) that the JIT never does, to force a block boundary handled by
// the interpreter fallback mid-program rather than only at start/end.
func bisimProgram() ([]byte, uint16, uint16) {
	prog := []byte{
		0xA9, 0x05, // LDA #$05          A=5
		0x85, 0x10, // STA $10           mem[$10]=5
		0xA9, 0x03, // LDA #$03          A=3
		0x65, 0x10, // ADC $10           A=3+5+C(0)=8
		0xAA,       // TAX               X=8
		0xE8,       // INX               X=9
		0x29, 0x0F, // AND #$0F          A=8&$0F=8
		0xC9, 0x08, // CMP #$08          A==8: Z=1,C=1
		0xF0, 0x02, // BEQ +2            taken, skips the next two INX
		0xE8,       // INX (skipped)
		0xE8,       // INX (skipped)
		0xE8,       // INX (branch target) X=10
		0x06, 0x20, // ASL $20           untranslatable: forces a block split
		0x38,       // SEC               C=1
		0xE9, 0x01, // SBC #$01          A=8-1-0=7
		0x09, 0x80, // ORA #$80          A=7|$80=$87
		0x49, 0xFF, // EOR #$FF          A=$87^$FF=$78
		0xE0, 0x0A, // CPX #$0A          X==10: Z=1,C=1
	}
	const origin = 0x8000
	return prog, origin, origin + uint16(len(prog))
}

func newBisimRig(prog []byte, origin uint16) (*nes.CPU, *nes.State, *bisimBus) {
	bus := &bisimBus{}
	copy(bus[origin:], prog)
	bus[0xFFFC] = byte(origin)
	bus[0xFFFD] = byte(origin >> 8)

	s := &nes.State{}
	s.Clear()
	s.Reset(bus)
	return nes.NewCPU(s, bus), s, bus
}

// TestJITInterpreterBisimulation runs the same deterministic program two
// ways — a pure interpreter trace, and a JIT-assisted trace that falls
// back to its own interpreter for whatever the cache can't compile — and
// checks the two register traces agree at every block boundary. The
// program is built so the JIT actually compiles and runs more than one
// block (rather than the whole thing trivially matching via a single
// interpreter call), with the ASL in the middle forcing a genuine
// interpreter-fallback step in between.
func TestJITInterpreterBisimulation(t *testing.T) {
	cache, err := jit.NewCache()
	if err != nil {
		t.Skipf("jit: cannot mmap an executable code buffer in this environment: %v", err)
	}
	defer cache.Close()

	prog, origin, endAddr := bisimProgram()

	interpCPU, interpState, _ := newBisimRig(prog, origin)
	fallbackCPU, jitState, jitBus := newBisimRig(prog, origin)

	ranBlocks := 0
	for steps := 0; jitState.PC != endAddr; steps++ {
		if steps > 200 {
			t.Fatal("bisimulation loop did not reach the program's end address")
		}

		_, ran := cache.Run(jitState, jitBus, 100000)
		if ran {
			ranBlocks++
		} else {
			_, err := fallbackCPU.Step()
			assert.NoError(t, err)
		}

		for interpState.PC != jitState.PC {
			_, err := interpCPU.Step()
			assert.NoError(t, err)
		}

		assert.Equal(t, interpState.A, jitState.A, "A diverged at PC %#04x", jitState.PC)
		assert.Equal(t, interpState.X, jitState.X, "X diverged at PC %#04x", jitState.PC)
		assert.Equal(t, interpState.Y, jitState.Y, "Y diverged at PC %#04x", jitState.PC)
		assert.Equal(t, interpState.P, jitState.P, "P diverged at PC %#04x", jitState.PC)
		assert.Equal(t, interpState.SP, jitState.SP, "SP diverged at PC %#04x", jitState.PC)
	}

	assert.GreaterOrEqual(t, ranBlocks, 2, "expected the straight-line run and the post-ASL tail to each compile as their own block")
	assert.Equal(t, byte(0x78), jitState.A)
	assert.Equal(t, byte(0x0A), jitState.X)
	assert.Equal(t, byte(0x27), jitState.P)
	assert.Equal(t, endAddr, jitState.PC)
}
