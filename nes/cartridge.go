package nes

import (
	"github.com/pkg/errors"
)

// iNES header layout.
const (
	inesHeaderSize  = 16
	inesTrainerSize = 512
	prgBankSize     = 16 * 1024
	chrBankSize     = 8 * 1024
)

// Cartridge owns PRG/CHR ROM (or RAM) images and the mapper that banks
// them into the CPU and PPU address spaces.
type Cartridge struct {
	prg    []byte
	chr    []byte
	prgRAM [8 * 1024]byte
	chrRAM bool

	Mapper *Mapper
}

// LoadCartridge parses an iNES ROM image. It returns an error instead of
// terminating the process on a malformed header or truncated file.
func LoadCartridge(data []byte) (*Cartridge, error) {
	if len(data) < inesHeaderSize {
		return nil, errors.New("nes: file too small to contain an iNES header")
	}
	if string(data[0:3]) != "NES" || data[3] != 0x1A {
		return nil, errors.New("nes: missing iNES magic number")
	}

	prgChunks := int(data[4])
	chrChunks := int(data[5])
	flags6 := data[6]
	flags7 := data[7]

	mapperID := int(flags7&0xF0) | int(flags6>>4)
	hasTrainer := flags6&0x04 != 0

	offset := inesHeaderSize
	if hasTrainer {
		offset += inesTrainerSize
	}

	prgSize := prgChunks * prgBankSize
	if offset+prgSize > len(data) {
		return nil, errors.Errorf("nes: truncated PRG-ROM, want %d bytes", prgSize)
	}
	prg := make([]byte, prgSize)
	copy(prg, data[offset:offset+prgSize])
	offset += prgSize

	var chr []byte
	chrRAM := false
	if chrChunks == 0 {
		chr = make([]byte, chrBankSize)
		chrRAM = true
	} else {
		chrSize := chrChunks * chrBankSize
		if offset+chrSize > len(data) {
			return nil, errors.Errorf("nes: truncated CHR-ROM, want %d bytes", chrSize)
		}
		chr = make([]byte, chrSize)
		copy(chr, data[offset:offset+chrSize])
	}

	cart := &Cartridge{
		prg:    prg,
		chr:    chr,
		chrRAM: chrRAM,
		Mapper: NewMapper(mapperID, byte(prgChunks), byte(chrChunks)),
	}
	return cart, nil
}

// ReadPRG implements a CPU-side PRG-ROM read, $8000-$FFFF.
func (c *Cartridge) ReadPRG(addr uint16) byte {
	off := c.Mapper.MapPRG(addr, len(c.prg))
	return c.prg[off]
}

// WritePRG implements a CPU-side write into the PRG-ROM window, which
// mapper chips intercept to reconfigure banking rather than store data.
func (c *Cartridge) WritePRG(addr uint16, v byte) {
	c.Mapper.WritePRG(addr, v)
}

// ReadPRGRAM implements the $6000-$7FFF PRG-RAM window.
func (c *Cartridge) ReadPRGRAM(addr uint16) byte {
	if !c.Mapper.prgRAMEnabled {
		return 0
	}
	return c.prgRAM[addr-0x6000]
}

// WritePRGRAM writes PRG-RAM, honoring the mapper's write-protect latch.
func (c *Cartridge) WritePRGRAM(addr uint16, v byte) {
	if !c.Mapper.prgRAMEnabled || c.Mapper.prgRAMWriteProtect {
		return
	}
	c.prgRAM[addr-0x6000] = v
}

// ReadCHR implements a PPU-side pattern-table read, $0000-$1FFF.
func (c *Cartridge) ReadCHR(addr uint16) byte {
	off := c.Mapper.MapCHR(addr, len(c.chr))
	return c.chr[off]
}

// WriteCHR implements a PPU-side pattern-table write, only meaningful
// when the cartridge uses CHR-RAM instead of CHR-ROM.
func (c *Cartridge) WriteCHR(addr uint16, v byte) {
	if !c.chrRAM {
		return
	}
	off := c.Mapper.MapCHR(addr, len(c.chr))
	c.chr[off] = v
}
