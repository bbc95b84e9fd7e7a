package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nesforge/coreos/nes"
)

// jitTestBus is a flat 64KB address space, just enough to feed discover
// and Cache.Run a program without a full SystemBus/cartridge.
type jitTestBus [65536]byte

func (b *jitTestBus) Load(addr uint16) byte     { return b[addr] }
func (b *jitTestBus) Store(addr uint16, v byte) { b[addr] = v }

func TestDiscoverStopsAtFirstUntranslatableOpcode(t *testing.T) {
	bus := &jitTestBus{}
	bus[0x8000] = 0xE8 // INX, translatable
	bus[0x8001] = 0xCA // DEX, translatable
	bus[0x8002] = 0x06 // ASL zpg, a read-modify-write op: left to the interpreter
	bus[0x8003] = 0x00

	chain := discover(bus, 0x8000)
	assert.Len(t, chain, 2)
	assert.Equal(t, byte(0xE8), chain[0].Opcode)
	assert.Equal(t, byte(0xCA), chain[1].Opcode)
	assert.Same(t, chain[1], chain[0].Next)
}

// Branches no longer end a chain: the fall-through edge is admitted right
// along with everything else, since compileBranchNode handles the taken
// edge separately via a link-patched jump.
func TestDiscoverAdmitsBranchAndContinuesAlongFallThrough(t *testing.T) {
	bus := &jitTestBus{}
	bus[0x8000] = 0x18 // CLC
	bus[0x8001] = 0xD0 // BNE rel
	bus[0x8002] = 0x02
	bus[0x8003] = 0xE8 // INX, part of the fall-through edge

	chain := discover(bus, 0x8000)
	assert.Len(t, chain, 3)
	assert.Equal(t, byte(0x18), chain[0].Opcode)
	assert.Equal(t, byte(0xD0), chain[1].Opcode)
	assert.True(t, chain[1].Branch)
	assert.Equal(t, byte(0xE8), chain[2].Opcode)
}

func TestDiscoverCapsChainLength(t *testing.T) {
	bus := &jitTestBus{}
	for i := 0; i < maxChainLen+10; i++ {
		bus[0x8000+uint16(i)] = 0xE8 // INX, one byte each, all translatable
	}
	chain := discover(bus, 0x8000)
	assert.Len(t, chain, maxChainLen)
}

func TestDiscoverStopsImmediatelyOnUntranslatableFirstOpcode(t *testing.T) {
	bus := &jitTestBus{}
	bus[0x8000] = 0x4C // JMP abs, a control-transfer exit opcode
	bus[0x8001] = 0x00
	bus[0x8002] = 0x80

	chain := discover(bus, 0x8000)
	assert.Empty(t, chain)
}

func newJITTestState() (*nes.State, *jitTestBus) {
	bus := &jitTestBus{}
	s := &nes.State{}
	s.Clear()
	s.Reset(bus)
	return s, bus
}

func TestCacheCompilesAndRunsTranslatableChain(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Skipf("jit: cannot mmap an executable code buffer in this environment: %v", err)
	}
	defer c.Close()

	s, bus := newJITTestState()
	s.PC = 0x8000
	s.X = 0x05
	bus[0x8000] = 0xE8 // INX
	bus[0x8001] = 0xE8 // INX

	consumed, ran := c.Run(s, bus, 100)
	assert.True(t, ran)
	assert.Equal(t, 4, consumed) // two INX at 2 cycles each
	assert.Equal(t, byte(0x07), s.X)
	assert.Equal(t, uint16(0x8002), s.PC)
}

func TestCacheRunReportsNotRanWhenFirstOpcodeIsUntranslatable(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Skipf("jit: cannot mmap an executable code buffer in this environment: %v", err)
	}
	defer c.Close()

	s, bus := newJITTestState()
	s.PC = 0x8000
	bus[0x8000] = 0x4C // JMP abs, left to the interpreter
	bus[0x8001] = 0x00
	bus[0x8002] = 0x80

	consumed, ran := c.Run(s, bus, 100)
	assert.False(t, ran)
	assert.Equal(t, 0, consumed)
	assert.Equal(t, uint16(0x8000), s.PC, "Run must not advance PC when it compiled nothing")
}

// TestCacheRunsLoadStoreAndArithmeticChain exercises the bus-bridge CALL
// path (LDA/STA zero-page) alongside the SAHF-staged ADC, checking both the
// result and the flags it leaves behind.
func TestCacheRunsLoadStoreAndArithmeticChain(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Skipf("jit: cannot mmap an executable code buffer in this environment: %v", err)
	}
	defer c.Close()

	s, bus := newJITTestState()
	s.PC = 0x8000
	bus[0x0010] = 0x20 // operand for LDA zpg

	bus[0x8000] = 0xA5 // LDA $10
	bus[0x8001] = 0x10
	bus[0x8002] = 0x69 // ADC #$05
	bus[0x8003] = 0x05
	bus[0x8004] = 0x85 // STA $11
	bus[0x8005] = 0x11

	_, ran := c.Run(s, bus, 1000)
	assert.True(t, ran)
	assert.Equal(t, byte(0x25), s.A)
	assert.Equal(t, byte(0x25), bus[0x0011])
	assert.Equal(t, uint16(0x8006), s.PC)
	assert.Zero(t, s.P&nes.FlagC)
	assert.Zero(t, s.P&nes.FlagZ)
	assert.Zero(t, s.P&nes.FlagN)
}

// TestCacheRunsCompareAndTakenBranch checks that a CMP's captured flags
// drive a subsequent conditional branch correctly, including the
// link-patch fallback stub resolving once the target node compiles in the
// same chain.
func TestCacheRunsCompareAndTakenBranch(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Skipf("jit: cannot mmap an executable code buffer in this environment: %v", err)
	}
	defer c.Close()

	s, bus := newJITTestState()
	s.PC = 0x8000
	s.A = 0x10

	bus[0x8000] = 0xC9 // CMP #$10 -> equal, sets Z
	bus[0x8001] = 0x10
	bus[0x8002] = 0xF0 // BEQ +2: nextAddr 0x8004, target 0x8004+2 = 0x8006
	bus[0x8003] = 0x02
	bus[0x8004] = 0xEA // NOP, skipped over by the taken branch
	bus[0x8005] = 0xEA // NOP, skipped over by the taken branch
	bus[0x8006] = 0xE8 // INX, branch target

	_, ran := c.Run(s, bus, 1000)
	assert.True(t, ran)
	assert.Equal(t, byte(0x01), s.X, "only the branch target's INX should have executed")
	assert.Equal(t, uint16(0x8007), s.PC)
}

func TestInvalidateWindowForcesRecompile(t *testing.T) {
	c, err := NewCache()
	if err != nil {
		t.Skipf("jit: cannot mmap an executable code buffer in this environment: %v", err)
	}
	defer c.Close()

	s, bus := newJITTestState()
	s.PC = 0x8000
	bus[0x8000] = 0xE8 // INX

	_, ran := c.Run(s, bus, 100)
	assert.True(t, ran)
	cached := c.blocks[0x8000]
	assert.NotNil(t, cached)
	assert.False(t, c.stale(cached))

	c.InvalidateWindow(prgWindow(0x8000))
	assert.True(t, c.stale(cached), "bumping the PRG window's generation must mark the old block stale")
}
