package jit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nesforge/coreos/nes"
)

func nodeFor(addr uint16, opcode byte) *Node {
	return &Node{Address: addr, Opcode: opcode, CodeOffset: -1, BranchFixupOffset: -1}
}

func TestComputeLivenessMarksTrailingNodeFullyLive(t *testing.T) {
	// INX alone, at the end of a chain: nothing downstream is known, so
	// the conservative answer is "every flag might still be read".
	chain := []*Node{nodeFor(0x8000, 0xE8)} // INX
	computeLiveness(chain)
	assert.Equal(t, flagAll, chain[0].RequiredFlags)
}

func TestComputeLivenessElidesFlagsClobberedBeforeNextRead(t *testing.T) {
	// INX followed by DEX: DEX unconditionally rewrites Z and N before
	// anything between the two instructions can observe INX's Z/N, so
	// INX's own Z/N computation is dead and liveness should say so.
	chain := []*Node{nodeFor(0x8000, 0xE8), nodeFor(0x8001, 0xCA)} // INX, DEX
	computeLiveness(chain)

	assert.Equal(t, byte(0), chain[0].RequiredFlags&byte(nes.FlagZ|nes.FlagN))
	assert.NotEqual(t, byte(0), chain[1].RequiredFlags&byte(nes.FlagZ|nes.FlagN))
}

func TestComputeLivenessPreservesCarryAcrossNonCarryWritingNodes(t *testing.T) {
	// CLC writes only C; a trailing INX writes Z/N but never touches C,
	// so C must stay live into CLC regardless of what follows it.
	chain := []*Node{nodeFor(0x8000, 0x18), nodeFor(0x8001, 0xE8)} // CLC, INX
	computeLiveness(chain)
	assert.NotEqual(t, byte(0), chain[0].RequiredFlags&byte(nes.FlagC))
}

func TestComputeLivenessTreatsBranchAsReadingEveryFlag(t *testing.T) {
	// CLC followed by a branch: the branch's taken edge leaves to code
	// this backward pass never walks, so CLC's C write must be treated
	// as live even though BEQ itself only tests Z.
	branch := nodeFor(0x8001, 0xF0) // BEQ
	branch.Branch = true
	chain := []*Node{nodeFor(0x8000, 0x18), branch} // CLC, BEQ
	computeLiveness(chain)
	assert.Equal(t, flagAll, chain[0].RequiredFlags)
}
