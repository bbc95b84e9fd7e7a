package jit

import "github.com/nesforge/coreos/nes"

// flagAll covers every status bit the liveness pass might need to
// preserve when nothing downstream is known to need a subset.
const flagAll = byte(nes.FlagC | nes.FlagZ | nes.FlagI | nes.FlagD | nes.FlagB | nes.FlagV | nes.FlagN)

// computeLiveness runs the backward flag-liveness pass: walking a
// compiled chain from its exit back to its head, it computes, for each
// node, the set of status flags some later instruction will actually
// read before it is next written. The translator uses this to skip
// restoring host flags into the guest P register for bits nothing
// downstream consumes.
//
// A branch node is treated as reading every flag, not just the one its
// own condition tests: its taken edge leaves the chain for code this pass
// never sees, so anything upstream of a branch must materialize its full
// flag state rather than assume the branch's single ReadFlags bit is the
// whole story.
func computeLiveness(chain []*Node) {
	required := flagAll
	for i := len(chain) - 1; i >= 0; i-- {
		n := chain[i]
		d := nes.Descriptors[n.Opcode]
		n.RequiredFlags = required
		if d.Branch {
			required = flagAll
		} else {
			required = (required &^ d.WriteFlags) | d.ReadFlags
		}
	}
}
