package jit

import (
	"unsafe"

	"github.com/nesforge/coreos/nes"
)

// maxChainLen bounds how far discover will walk a straight run of
// translatable opcodes (now including branches, which no longer end the
// chain) before stopping anyway, so a pathological all-translatable
// stretch of PRG ROM can't make a single compile call unbounded.
const maxChainLen = 64

// block is a compiled chain of nodes starting at a guest PC, now emitted
// as one contiguous native routine rather than a sequence of
// independently callable nodes: sequential non-branch nodes fall through
// to each other in buffer order with no jump between them, and only
// branches and the chain's final node contain an explicit exit back to
// the scheduler. windows records the PRG-window generations the chain
// was compiled under, for staleness checks.
type block struct {
	head    *Node
	windows map[int]uint64
}

// Cache is the recompiler's block cache: it discovers runs of
// translatable 6502 instructions starting at a guest PC, compiles them
// into the shared CodeBuffer, and serves them back to the scheduler until
// a mapper write invalidates the PRG window they were compiled from.
type Cache struct {
	buf *CodeBuffer
	em  *Emitter

	blocks    map[uint16]*block
	windowGen map[int]uint64

	// nodesByAddr indexes every compiled node (not just chain heads) by
	// guest PC, so a branch landing mid-chain in some other block can
	// still be linked directly rather than only matching block heads.
	nodesByAddr map[uint16]*Node

	// pending holds link-patch sites (JmpRel32 slots) waiting on a node at
	// the given target PC to be compiled — the setJump deferred-patch
	// queue. Each site also carries a fallback stub immediately after it
	// (write target PC, RET) that runs if the site is never patched.
	pending map[uint16][]int

	busAddrs busScratchAddrs

	// quantum is the in-flight cycle budget, read and written directly by
	// emitted code via its address (not through a Go-visible register):
	// every translated instruction and every branch edge charges its cost
	// against this cell and checks it for exhaustion before continuing,
	// rather than Cache.Run bookkeeping cycles in a Go-level loop.
	quantum int64
}

// NewCache mmaps a fresh code buffer and returns an empty cache.
func NewCache() (*Cache, error) {
	buf, err := NewCodeBuffer()
	if err != nil {
		return nil, err
	}
	return &Cache{
		buf:         buf,
		em:          NewEmitter(buf),
		blocks:      make(map[uint16]*block),
		windowGen:   make(map[int]uint64),
		nodesByAddr: make(map[uint16]*Node),
		pending:     make(map[uint16][]int),
		busAddrs:    resolveBusScratchAddrs(),
	}, nil
}

// Close releases the underlying code buffer.
func (c *Cache) Close() error { return c.buf.Close() }

// InvalidateWindow implements nes.BlockCache: bumping a window's
// generation makes every block.windows snapshot recorded against it
// stale, so the next top-level lookup at an address in that window
// recompiles instead of reusing now-possibly-wrong machine code. It also
// evicts nodesByAddr/blocks entries lying in the window so a future
// setJump or Cache.Run lookup won't link against stale code — though a
// jump already link-patched from an unrelated, still-valid block into a
// node now considered stale is not retargeted (see DESIGN.md).
func (c *Cache) InvalidateWindow(window int) {
	c.windowGen[window]++
	for pc := range c.nodesByAddr {
		if prgWindow(pc) == window {
			delete(c.nodesByAddr, pc)
		}
	}
	for pc, b := range c.blocks {
		if c.stale(b) {
			delete(c.blocks, pc)
		}
	}
}

func (c *Cache) stale(b *block) bool {
	for window, gen := range b.windows {
		if c.windowGen[window] != gen {
			return true
		}
	}
	return false
}

// discover decodes instructions starting at addr, stopping at the first
// one compileNode can't translate. Branches no longer end the chain: the
// fall-through edge is decoded and compiled right along with everything
// else, since none of the control-transfer/exit mnemonics are ever in the
// translatable set, canTranslate already stops discovery at those without
// needing a separate check here.
func discover(bus nes.Bus, addr uint16) []*Node {
	var chain []*Node
	for len(chain) < maxChainLen {
		opcode := bus.Load(addr)
		d := nes.Descriptors[opcode]
		if !canTranslate(opcode) {
			break
		}
		n := &Node{
			Address:           addr,
			Opcode:            opcode,
			Branch:            d.Branch,
			Exit:              d.Exit,
			CodeOffset:        -1,
			BranchFixupOffset: -1,
		}
		if d.Bytes >= 2 {
			n.Operand0 = bus.Load(addr + 1)
		}
		if d.Bytes >= 3 {
			n.Operand1 = bus.Load(addr + 2)
		}
		if len(chain) > 0 {
			chain[len(chain)-1].Next = n
		}
		chain = append(chain, n)
		addr += uint16(d.Bytes)
	}
	return chain
}

// compile builds a block at pc against the given live state, recording the
// PRG-window generations it was compiled under so a later bank switch can
// invalidate it.
func (c *Cache) compile(pc uint16, s *nes.State, bus nes.Bus) *block {
	chain := discover(bus, pc)
	if len(chain) == 0 {
		return nil
	}
	computeLiveness(chain)

	fa := resolveFieldAddrs(s)
	quantumAddr := uint64(uintptr(unsafe.Pointer(&c.quantum)))
	windows := make(map[int]uint64)

	for i, n := range chain {
		w := prgWindow(n.Address)
		if _, ok := windows[w]; !ok {
			windows[w] = c.windowGen[w]
		}

		n.CodeOffset = c.buf.Offset()

		if n.Branch {
			if err := c.compileBranchNode(fa, quantumAddr, n); err != nil {
				return nil
			}
		} else {
			ok, err := compileNode(c.em, fa, c.busAddrs, n, n.RequiredFlags)
			if err != nil || !ok {
				// discover() only admitted translatable opcodes, so this
				// would mean compileNode regressed against canTranslate;
				// treat it as "nothing usable compiled" rather than
				// serving a half-built chain.
				return nil
			}
			d := nes.Descriptors[n.Opcode]
			nextPC := n.Address + uint16(d.Bytes)
			terminal := i == len(chain)-1
			if err := emitNodeExit(c.em, quantumAddr, fa.pc, int(d.Cycles), nextPC, terminal); err != nil {
				return nil
			}
		}

		c.nodesByAddr[n.Address] = n
		c.resolvePending(n.Address, n.CodeOffset)
	}

	return &block{head: chain[0], windows: windows}
}

// branchTest returns the P-bit mask a branch mnemonic tests and whether
// the branch is taken when that bit is set (true: BCS/BEQ/BMI/BVS) or
// clear (false: BCC/BNE/BPL/BVC).
func branchTest(mnemonic string) (mask byte, takenIfSet bool) {
	switch mnemonic {
	case "BCC":
		return flagMaskC, false
	case "BCS":
		return flagMaskC, true
	case "BEQ":
		return flagMaskZ, true
	case "BNE":
		return flagMaskZ, false
	case "BPL":
		return flagMaskN, false
	case "BMI":
		return flagMaskN, true
	case "BVC":
		return flagMaskV, false
	case "BVS":
		return flagMaskV, true
	}
	return 0, false
}

// compileBranchNode translates a conditional branch: test the guest P
// byte's bit directly (TEST+Jcc), rather than relying on host EFLAGS
// residency, so the branch condition can't be disturbed by anything
// compiled between the flag-writing instruction and here. The not-taken
// edge falls through into the next node's code (or exits, if this is the
// chain's last node); the taken edge charges its own (possibly +1 for the
// branch and +1 more for a page crossing, both known at compile time)
// cost and jumps to a link-patch site that setJump resolves once the
// target's node exists, with a fallback stub covering the unresolved
// case.
func (c *Cache) compileBranchNode(fa fieldAddrs, quantumAddr uint64, n *Node) error {
	d := nes.Descriptors[n.Opcode]
	e := c.em
	mask, takenIfSet := branchTest(d.Mnemonic)

	if err := e.MovRegAbs64(RBX, fa.p); err != nil {
		return err
	}
	if err := e.LoadMem8(RAX, RBX); err != nil {
		return err
	}
	if err := e.AndRegImm8(RAX, mask); err != nil {
		return err
	}
	if err := e.TestReg8(RAX); err != nil {
		return err
	}

	notTakenCond := CondNE
	if takenIfSet {
		notTakenCond = CondE
	}
	notTakenSlot, err := e.JccRel32(notTakenCond)
	if err != nil {
		return err
	}

	// Taken path.
	nextAddr := n.Address + uint16(d.Bytes)
	rel := int16(int8(n.Operand0))
	target := uint16(int32(nextAddr) + int32(rel))
	n.BranchAddress = target

	takenCost := int(d.Cycles) + 1
	if (nextAddr & 0xFF00) != (target & 0xFF00) {
		takenCost++
	}
	if err := emitQuantumCheck(e, quantumAddr, fa.pc, takenCost, target); err != nil {
		return err
	}
	jmpSlot, err := e.JmpRel32()
	if err != nil {
		return err
	}
	n.BranchFixupOffset = jmpSlot
	if err := emitStorePC(e, fa.pc, target); err != nil {
		return err
	}
	if err := e.Ret(); err != nil {
		return err
	}
	c.setJump(jmpSlot, target)

	// Not-taken path.
	e.PatchRel32(notTakenSlot, e.Buf.Offset())
	terminal := n.Next == nil
	if err := emitNodeExit(e, quantumAddr, fa.pc, int(d.Cycles), nextAddr, terminal); err != nil {
		return err
	}

	n.Translatable = true
	return nil
}

// setJump resolves a branch's link-patch slot immediately if a node at
// target already exists, or else queues it for resolvePending to patch
// once one is compiled. Until resolved, the slot's default (zero)
// displacement lands on the fallback stub compileBranchNode already
// emitted right after the slot.
func (c *Cache) setJump(slot int, target uint16) {
	if n, ok := c.nodesByAddr[target]; ok && n.CodeOffset >= 0 {
		c.em.PatchRel32(slot, n.CodeOffset)
		return
	}
	c.pending[target] = append(c.pending[target], slot)
}

// resolvePending patches every link waiting on target now that a node
// exists there at offset.
func (c *Cache) resolvePending(target uint16, offset int) {
	slots := c.pending[target]
	if len(slots) == 0 {
		return
	}
	for _, slot := range slots {
		c.em.PatchRel32(slot, offset)
	}
	delete(c.pending, target)
}

// emitQuantumCheck subtracts cost from the quantum cell and, if it has
// gone non-positive, writes exitPC and returns from the block; otherwise
// falls through to whatever is emitted next.
func emitQuantumCheck(e *Emitter, quantumAddr, pcAddr uint64, cost int, exitPC uint16) error {
	if err := e.MovRegAbs64(RBX, quantumAddr); err != nil {
		return err
	}
	if err := e.LoadMem64(RDX, RBX); err != nil {
		return err
	}
	if err := e.SubReg64Imm32(RDX, uint32(int32(cost))); err != nil {
		return err
	}
	if err := e.StoreMem64(RBX, RDX); err != nil {
		return err
	}
	if err := e.CmpReg64Imm32(RDX, 0); err != nil {
		return err
	}
	okSlot, err := e.JccRel32(CondG)
	if err != nil {
		return err
	}
	if err := emitStorePC(e, pcAddr, exitPC); err != nil {
		return err
	}
	if err := e.Ret(); err != nil {
		return err
	}
	e.PatchRel32(okSlot, e.Buf.Offset())
	return nil
}

// emitNodeExit appends the in-code cycle/PC bookkeeping that follows every
// translated non-branch instruction: charge cost against the quantum
// cell and, if exhausted, write nextPC and return; otherwise fall
// through, either into the next node's code (already appended right
// after) or, when terminal is true (there is no next node), unconditionally
// exit anyway, since nothing compiled follows this node.
func emitNodeExit(e *Emitter, quantumAddr, pcAddr uint64, cost int, nextPC uint16, terminal bool) error {
	if err := emitQuantumCheck(e, quantumAddr, pcAddr, cost, nextPC); err != nil {
		return err
	}
	if !terminal {
		return nil
	}
	if err := emitStorePC(e, pcAddr, nextPC); err != nil {
		return err
	}
	return e.Ret()
}

// emitStorePC writes a compile-time-constant target PC to the two bytes
// at pcAddr, little-endian (matching uint16's in-memory layout on amd64).
func emitStorePC(e *Emitter, pcAddr uint64, target uint16) error {
	if err := e.MovRegAbs64(RBX, pcAddr); err != nil {
		return err
	}
	if err := e.MovRegImm8(RAX, byte(target)); err != nil {
		return err
	}
	if err := e.StoreMem8(RBX, RAX); err != nil {
		return err
	}
	if err := e.MovRegAbs64(RBX, pcAddr+1); err != nil {
		return err
	}
	if err := e.MovRegImm8(RAX, byte(target>>8)); err != nil {
		return err
	}
	return e.StoreMem8(RBX, RAX)
}

// Run implements nes.BlockCache. It compiles (if needed) the block
// starting at s.PC and makes a single native call into it, letting the
// compiled code itself chase direct jumps into other already-linked
// blocks, charge the quantum cell, and write s.PC/exit — Run's only job
// afterward is to read back how much of the quantum survived and fold it
// into s.Cycles, matching the scheduler's "adds the consumed cycles"
// contract without doing any of the per-instruction bookkeeping in Go.
func (c *Cache) Run(s *nes.State, bus nes.Bus, quantumCycles int) (int, bool) {
	activeState = s
	activeBus = bus

	b, ok := c.blocks[s.PC]
	if !ok || c.stale(b) {
		b = c.compile(s.PC, s, bus)
		if b == nil {
			return 0, false
		}
		c.blocks[s.PC] = b
	}
	if b.head.CodeOffset < 0 {
		return 0, false
	}

	c.quantum = int64(quantumCycles)
	runBlock(c.buf.PointerAt(b.head.CodeOffset))

	consumed := quantumCycles - int(c.quantum)
	if consumed < 0 {
		consumed = 0
	}
	s.Cycles += uint64(consumed)
	return consumed, true
}

// runBlock calls into a compiled chain's entry point; implemented in
// trampoline_amd64.s, since Go cannot call through a raw function-pointer
// cast the way the C++ original does. The chain's own RET (at whichever
// exit site it took) returns control here exactly as a single node's RET
// used to.
func runBlock(addr uintptr)
