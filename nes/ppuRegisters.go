package nes

// PPUCTRL ($2000) flags.
const (
	ctrlNametableX byte = 1 << iota
	ctrlNametableY
	ctrlVramIncrement
	ctrlSpritePatternTable
	ctrlBgPatternTable
	ctrlSpriteSize
	ctrlSlave
	ctrlNMIEnable
)

// PPUMASK ($2001) flags.
const (
	maskGreyscale byte = 1 << iota
	maskBgLeftCol
	maskSpriteLeftCol
	maskBgShow
	maskSpriteShow
	maskEmphasizeRed
	maskEmphasizeGreen
	maskEmphasizeBlue
)

// PPUSTATUS ($2002) flags.
const (
	statusSpriteOverflow byte = 1 << (iota + 5)
	statusSprite0Hit
	statusVBlank
)

// regFile groups the three latchable PPU registers as plain byte fields,
// mutated directly by pointer receiver methods on PPU so a set/clear/
// toggle call can never silently discard its own mutation by operating
// on a copy.
type regFile struct {
	ctrl   byte
	mask   byte
	status byte
}

func (p *PPU) setStatus(flag byte, on bool) {
	if on {
		p.reg.status |= flag
	} else {
		p.reg.status &^= flag
	}
}

func (p *PPU) statusSet(flag byte) bool { return p.reg.status&flag != 0 }
