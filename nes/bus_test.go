package nes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubPPU is a minimal PPUPeer recording register accesses, used so
// bus tests can exercise $2000-$3FFF mirroring without a real PPU.
type stubPPU struct {
	lastReadAddr  uint16
	lastWriteAddr uint16
	lastWriteVal  byte
	dmaBytes      []byte
}

func (p *stubPPU) ReadRegister(addr uint16) byte { p.lastReadAddr = addr; return 0x55 }
func (p *stubPPU) WriteRegister(addr uint16, v byte) {
	p.lastWriteAddr = addr
	p.lastWriteVal = v
}
func (p *stubPPU) DMATransfer(v byte)             { p.dmaBytes = append(p.dmaBytes, v) }
func (p *stubPPU) Sync(cycles int)                {}
func (p *stubPPU) SetScanlineCallback(fn func())  {}

func newTestBus() *SystemBus {
	data := buildINESImage(2, 1, 0, false)
	cart, err := LoadCartridge(data)
	if err != nil {
		panic(err)
	}
	return NewSystemBus(cart)
}

func TestRAMMirroringAcrossAllFourImages(t *testing.T) {
	b := newTestBus()
	b.Store(0x0000, 0x42)
	assert.Equal(t, byte(0x42), b.Load(0x0800))
	assert.Equal(t, byte(0x42), b.Load(0x1000))
	assert.Equal(t, byte(0x42), b.Load(0x1800))
}

func TestPPURegisterMirroringEvery8Bytes(t *testing.T) {
	b := newTestBus()
	ppu := &stubPPU{}
	b.SetPPU(ppu)

	b.Store(0x2001, 0x11)
	assert.Equal(t, uint16(0x2001), ppu.lastWriteAddr)

	b.Store(0x3FF9, 0x22) // mirrors $2001 (0x3FF9 & 7 == 1)
	assert.Equal(t, uint16(0x2001), ppu.lastWriteAddr)
	assert.Equal(t, byte(0x22), ppu.lastWriteVal)
}

func TestOAMDMAWriteLatchesPendingTransfer(t *testing.T) {
	b := newTestBus()
	_, pending := b.DMAPending()
	assert.False(t, pending)

	b.Store(0x4014, 0x02)
	page, pending := b.DMAPending()
	assert.True(t, pending)
	assert.Equal(t, byte(0x02), page)

	// latch is one-shot: draining it clears the pending flag.
	_, pending = b.DMAPending()
	assert.False(t, pending)
}

func TestReadDMAPageCopiesFullPageFromCPUSpace(t *testing.T) {
	b := newTestBus()
	b.Store(0x0010, 0xAB)
	buf := b.ReadDMAPage(0x00) // page 0 covers zero page + stack, mirrored RAM
	assert.Equal(t, byte(0xAB), buf[0x10])
}

func TestControllerStrobeLatchesAndShiftsOut(t *testing.T) {
	b := newTestBus()
	b.Pad1.SetButtons(ButtonA | ButtonStart)

	b.Store(0x4016, 0x01) // strobe high, continuously reloads
	b.Store(0x4016, 0x00) // falling edge latches the snapshot

	assert.Equal(t, byte(1), b.Load(0x4016)) // bit 0: A
	assert.Equal(t, byte(0), b.Load(0x4016)) // bit 1: B
	assert.Equal(t, byte(0), b.Load(0x4016)) // bit 2: Select
	assert.Equal(t, byte(1), b.Load(0x4016)) // bit 3: Start
}

func TestCartridgeWriteInvalidatesJITWindow(t *testing.T) {
	b := newTestBus()
	spy := &spyBlockCache{}
	b.SetJIT(spy)

	b.Store(0x8000, 0x01)
	assert.Equal(t, []int{0x8000 / prgWindowBytes}, spy.invalidated)
}

// spyBlockCache records InvalidateWindow calls; it never serves any
// blocks, which is fine since bus tests only exercise the write path.
type spyBlockCache struct {
	invalidated []int
}

func (s *spyBlockCache) Run(st *State, bus Bus, quantumCycles int) (int, bool) { return 0, false }
func (s *spyBlockCache) InvalidateWindow(window int)                          { s.invalidated = append(s.invalidated, window) }
