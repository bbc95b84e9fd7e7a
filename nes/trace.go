package nes

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
)

// traceEntry is one retired-instruction record.
type traceEntry struct {
	pc      uint16
	opcode  byte
	a, x, y byte
	p, sp   byte
	cycle   uint64
}

// RingTracer is the fixed-size backtrace buffer consumed by the
// scheduler's fatal-error report and the CLI's -trace flag.
type RingTracer struct {
	buf  [16]traceEntry
	next int
	full bool
}

func NewRingTracer() *RingTracer { return &RingTracer{} }

func (t *RingTracer) TraceStep(pc uint16, opcode, a, x, y, p, sp byte, cycle uint64) {
	t.buf[t.next] = traceEntry{pc, opcode, a, x, y, p, sp, cycle}
	t.next = (t.next + 1) % len(t.buf)
	if t.next == 0 {
		t.full = true
	}
}

// Backtrace returns the last N retired instructions, oldest first, one
// line each: PC, opcode byte, mnemonic (no operands), registers and cycle.
func (t *RingTracer) Backtrace() []string {
	n := t.next
	count := n
	if t.full {
		count = len(t.buf)
	}
	lines := make([]string, 0, count)
	start := 0
	if t.full {
		start = n
	}
	for i := 0; i < count; i++ {
		e := t.buf[(start+i)%len(t.buf)]
		mnemonic := Descriptors[e.opcode].Mnemonic
		lines = append(lines, fmt.Sprintf(
			"$%04X: %02X %-4s  A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d",
			e.pc, e.opcode, mnemonic, e.a, e.x, e.y, e.p, e.sp, e.cycle))
	}
	return lines
}

// Dump renders the raw ring buffer with spew, for -trace's verbose output
// where the formatted Backtrace lines aren't enough to tell what actually
// happened (e.g. suspiciously repeating PCs, a P register that never
// looks right). Grounded on hejops-gone/cpu/debugger.go's use of
// spew.Sdump to render opcode/CPU state during interactive debugging.
func (t *RingTracer) Dump() string {
	return spew.Sdump(t.buf)
}
