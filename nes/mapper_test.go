package nes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNROMMapsPRGDirectly(t *testing.T) {
	m := NewMapper(0, 2, 1) // NROM, 32KB PRG
	assert.Equal(t, MapperNROM, m.Kind)
	assert.Equal(t, 0, m.MapPRG(0x8000, 32*1024))
	assert.Equal(t, 0x4000, m.MapPRG(0xC000, 32*1024))
}

// writeMMC1Serial feeds the low five bits of v through MMC1's 5-bit serial
// shift register, one bit per write, least-significant bit first, the way
// real MMC1 boards are programmed.
func writeMMC1Serial(m *Mapper, addr uint16, v byte) {
	for i := 0; i < 5; i++ {
		bit := (v >> i) & 1
		m.WritePRG(addr, bit)
	}
}

func TestMMC1SerialShiftSelectsPRGBank(t *testing.T) {
	m := NewMapper(1, 8, 1) // MMC1, 128KB PRG (8x16KB banks)
	assert.Equal(t, MapperMMC1, m.Kind)

	// Control register: mode 3 (0x0C) fixes the last bank at $C000 and
	// switches the one at $8000, which is already the power-on default.
	writeMMC1Serial(m, 0x8000, 0x0C)
	// PRG bank register: select bank 2 for the switchable $8000 window.
	writeMMC1Serial(m, 0xE000, 0x02)

	prgLen := 128 * 1024
	assert.Equal(t, 2*0x4000, m.MapPRG(0x8000, prgLen))
	// $C000 stays pinned to the last bank in mode 3.
	assert.Equal(t, prgLen-0x4000, m.MapPRG(0xC000, prgLen))
}

func TestMMC1ResetBitReinitializesControl(t *testing.T) {
	m := NewMapper(1, 8, 1)
	writeMMC1Serial(m, 0xE000, 0x0F)
	m.WritePRG(0x8000, 0x80) // reset bit
	assert.Equal(t, byte(0x0C), m.mmc1Control&0x0C)
}

func TestMMC3ScanlineIRQFiresAtZero(t *testing.T) {
	m := NewMapper(4, 8, 8)
	m.mmc3IRQLatch = 4
	m.mmc3IRQReload = true
	m.mmc3IRQEnabled = true

	// One tick reloads the counter to the latch value, then it takes that
	// many more decrementing ticks to reach zero and raise the IRQ.
	for i := 0; i < 4; i++ {
		assert.False(t, m.IRQ().Pending(), "must not fire before the counter reaches zero")
		m.ScanlineTick()
	}
	m.ScanlineTick()
	assert.True(t, m.IRQ().Pending())
}

func TestCNROMBankLatchSelectsCHRWindow(t *testing.T) {
	m := NewMapper(3, 2, 4) // CNROM, 4x8KB CHR banks
	m.WritePRG(0x8000, 2)
	assert.Equal(t, 2*0x2000, m.MapCHR(0x0000, 4*0x2000))
}
