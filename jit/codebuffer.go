// Package jit implements a dynamic recompiler: it translates runs of
// 6502 instructions into host-native amd64 code, caches them by guest
// program counter, and patches branch targets as new blocks are
// discovered. Grounded on original_source/src/CodeBuffer.{h,cc} and
// src/m6502/M6502Jit.{h,cc}.
package jit

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// defaultCapacity matches the original CodeBuffer's default of 0x100000
// bytes, rounded up to whole pages by unix.Mmap.
const defaultCapacity = 0x100000

// CodeBufferFullError is returned when an append would exceed the
// buffer's fixed capacity.
type CodeBufferFullError struct {
	Requested int
	Capacity  int
}

func (e *CodeBufferFullError) Error() string {
	return errors.Errorf("jit: code buffer overflow, requested %d bytes over capacity %d", e.Requested, e.Capacity).Error()
}

// CodeBuffer is a page-aligned, RWX-mapped append-only byte arena. Block
// addresses into it are represented as int offsets rather than raw
// pointers: a Node can reference another Node's future code location
// without holding a Go pointer into memory the garbage collector does
// not manage.
type CodeBuffer struct {
	mem    []byte
	length int
}

// NewCodeBuffer mmaps a single RWX region using golang.org/x/sys/unix,
// the idiomatic Go way to acquire executable memory.
func NewCodeBuffer() (*CodeBuffer, error) {
	mem, err := unix.Mmap(-1, 0, defaultCapacity,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrap(err, "jit: mmap code buffer")
	}
	return &CodeBuffer{mem: mem}, nil
}

// Close releases the mmap'd region. The buffer is exclusively owned by
// the JIT cache; nothing else reads or writes it.
func (b *CodeBuffer) Close() error {
	if b.mem == nil {
		return nil
	}
	err := unix.Munmap(b.mem)
	b.mem = nil
	return err
}

func (b *CodeBuffer) Len() int { return b.length }

// Offset returns the buffer's append cursor, used as the codeOffset a
// Node records before compiling into it.
func (b *CodeBuffer) Offset() int { return b.length }

func (b *CodeBuffer) ensure(n int) error {
	if b.length+n > len(b.mem) {
		return &CodeBufferFullError{Requested: n, Capacity: len(b.mem)}
	}
	return nil
}

// WriteByte appends a single byte.
func (b *CodeBuffer) WriteByte(v byte) error {
	if err := b.ensure(1); err != nil {
		return err
	}
	b.mem[b.length] = v
	b.length++
	return nil
}

// WriteBytes appends a run of bytes.
func (b *CodeBuffer) WriteBytes(vs ...byte) error {
	if err := b.ensure(len(vs)); err != nil {
		return err
	}
	copy(b.mem[b.length:], vs)
	b.length += len(vs)
	return nil
}

// WriteUint32 appends a little-endian 32-bit word, used for 32-bit
// immediates (SUB/CMP imm32) and for deferred jump-offset patch sites.
func (b *CodeBuffer) WriteUint32(v uint32) error {
	if err := b.ensure(4); err != nil {
		return err
	}
	b.mem[b.length] = byte(v)
	b.mem[b.length+1] = byte(v >> 8)
	b.mem[b.length+2] = byte(v >> 16)
	b.mem[b.length+3] = byte(v >> 24)
	b.length += 4
	return nil
}

// WriteUint64 appends a little-endian 64-bit word, used for absolute
// amd64 pointers (MOVABS) into nes.State fields.
func (b *CodeBuffer) WriteUint64(v uint64) error {
	if err := b.ensure(8); err != nil {
		return err
	}
	for i := 0; i < 8; i++ {
		b.mem[b.length+i] = byte(v >> (8 * i))
	}
	b.length += 8
	return nil
}

// PatchInt32 overwrites a previously-reserved 4-byte relative-offset
// slot once the jump target is known.
func (b *CodeBuffer) PatchInt32(offset int, v int32) {
	u := uint32(v)
	b.mem[offset] = byte(u)
	b.mem[offset+1] = byte(u >> 8)
	b.mem[offset+2] = byte(u >> 16)
	b.mem[offset+3] = byte(u >> 24)
}

// PointerAt returns the executable address of the given offset, for
// handing the trampoline a real function pointer to CALL into.
func (b *CodeBuffer) PointerAt(offset int) uintptr {
	return uintptr(unsafeSliceAddr(b.mem)) + uintptr(offset)
}
