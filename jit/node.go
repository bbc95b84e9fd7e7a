package jit

// Node is one cached 6502 instruction, mirroring
// original_source/src/m6502/M6502Jit.h's Instruction class. CodeOffset
// replaces the original's raw nativeCode pointer with an offset into the
// shared CodeBuffer: a node can name another node's eventual code
// location before that node has been compiled, without the two holding
// Go pointers into each other that would need to survive a buffer that
// may relocate (it never does here, but the discipline is what matters —
// Nodes never hold *byte into the buffer).
type Node struct {
	Address       uint16
	Opcode        byte
	Operand0      byte
	Operand1      byte
	Branch        bool
	Exit          bool
	Translatable  bool
	BranchAddress uint16
	RequiredFlags byte // computed by the backward liveness pass

	CodeOffset        int // -1 until compiled
	BranchFixupOffset int // -1 until a pending branch displacement is reserved

	Next *Node // fall-through link, set once the following node is known
}

// generationWindowSize is the PRG-window granularity for self-modifying-
// code invalidation: cached blocks are tagged with the generation of the
// 8KiB PRG window they were compiled from, and a bus write to $8000-$FFFF
// bumps the generation of the window containing the written address,
// forcing recompilation of any stale block in that window. Other windows
// that a bank switch remaps, and writes to PRG-RAM or RAM, bump nothing.
const generationWindowSize = 0x2000

func prgWindow(addr uint16) int { return int(addr) / generationWindowSize }
