package nes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func buildINESImage(prgChunks, chrChunks, mapperLowNibble byte, trainer bool) []byte {
	header := make([]byte, inesHeaderSize)
	copy(header[0:4], []byte("NES\x1A"))
	header[4] = prgChunks
	header[5] = chrChunks
	flags6 := mapperLowNibble << 4
	if trainer {
		flags6 |= 0x04
	}
	header[6] = flags6

	data := header
	if trainer {
		data = append(data, make([]byte, inesTrainerSize)...)
	}
	data = append(data, make([]byte, int(prgChunks)*prgBankSize)...)
	data = append(data, make([]byte, int(chrChunks)*chrBankSize)...)
	return data
}

func TestLoadCartridgeRejectsMissingMagic(t *testing.T) {
	_, err := LoadCartridge([]byte("not an ines file at all"))
	assert.Error(t, err)
}

func TestLoadCartridgeRejectsTruncatedPRG(t *testing.T) {
	data := buildINESImage(2, 1, 0, false)
	_, err := LoadCartridge(data[:len(data)-prgBankSize])
	assert.Error(t, err)
}

func TestLoadCartridgeParsesNROM(t *testing.T) {
	data := buildINESImage(2, 1, 0, false)
	cart, err := LoadCartridge(data)
	assert.NoError(t, err)
	assert.Equal(t, MapperNROM, cart.Mapper.Kind)
	assert.Equal(t, 32*1024, len(cart.prg))
	assert.False(t, cart.chrRAM)
}

func TestLoadCartridgeSkipsTrainer(t *testing.T) {
	data := buildINESImage(1, 1, 0, true)
	copy(data[inesHeaderSize:], []byte{0xAA}) // trainer byte, must not leak into PRG
	copy(data[inesHeaderSize+inesTrainerSize:], []byte{0x42})
	cart, err := LoadCartridge(data)
	assert.NoError(t, err)
	assert.Equal(t, byte(0x42), cart.prg[0])
}

func TestLoadCartridgeAllocatesCHRRAMWhenAbsent(t *testing.T) {
	data := buildINESImage(1, 0, 0, false)
	cart, err := LoadCartridge(data)
	assert.NoError(t, err)
	assert.True(t, cart.chrRAM)
	assert.Equal(t, chrBankSize, len(cart.chr))
}

func TestCartridgePRGRAMGatedByMapperEnable(t *testing.T) {
	data := buildINESImage(1, 1, 4, false) // mapper 4, MMC3
	cart, err := LoadCartridge(data)
	assert.NoError(t, err)
	// MMC3 starts write-protected; lift that so only the enable gate is
	// under test.
	cart.Mapper.prgRAMWriteProtect = false

	cart.Mapper.prgRAMEnabled = false
	cart.WritePRGRAM(0x6000, 0x55)
	assert.Equal(t, byte(0), cart.ReadPRGRAM(0x6000))

	cart.Mapper.prgRAMEnabled = true
	cart.WritePRGRAM(0x6000, 0x55)
	assert.Equal(t, byte(0x55), cart.ReadPRGRAM(0x6000))
}
