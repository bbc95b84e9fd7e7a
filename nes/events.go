package nes

import "sync/atomic"

// Events holds the two cross-thread flags the input/event collaborator
// sets and the emulation thread polls at scheduler synchronization
// points. Single-writer, atomic, no locks.
type Events struct {
	paused int32
	quit   int32
}

func (e *Events) SetPaused(v bool) { atomic.StoreInt32(&e.paused, boolToInt32(v)) }
func (e *Events) Paused() bool     { return atomic.LoadInt32(&e.paused) != 0 }

func (e *Events) SetQuit() { atomic.StoreInt32(&e.quit, 1) }
func (e *Events) Quit() bool { return atomic.LoadInt32(&e.quit) != 0 }

func boolToInt32(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
