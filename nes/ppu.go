package nes

// PPU is a contract-level peer of the co-scheduler: it honors the
// register, DMA, sync, and scanline-callback contract precisely enough
// to drive CPU-visible timing (vblank/NMI edges, OAM DMA, MMC3 IRQ),
// without reproducing NTSC-exact pixel compositing — that pipeline is
// an explicit non-goal.
//
// Timing model: 341 PPU dots per scanline, 262 scanlines per frame,
// vblank starts at the top of scanline 241 and ends at the pre-render
// line (261). sync(cycles) is called with a CPU cycle delta and steps
// cycles*3 dots, matching the 1:3 CPU:PPU clock ratio.
type PPU struct {
	Cart *Cartridge
	reg  regFile

	oam    objectAttributeMemory
	oamAddr byte

	nametable [2][1024]byte
	palette   [32]byte

	vramAddr  PpuLoopyReg
	tempAddr  PpuLoopyReg
	fineX     byte
	addrLatch bool
	dataBuf   byte

	dot      int
	scanline int // -1 (pre-render) .. 260, matching 262 total lines

	Framebuffer [256 * 240]byte // palette indices; host surface maps to RGB

	nmiOut      func()
	scanlineCB  func()
}

func NewPPU(cart *Cartridge) *PPU {
	p := &PPU{Cart: cart, scanline: -1}
	p.oam.clear()
	return p
}

// SetNMICallback wires the PPU's vblank-entry edge to the CPU's latch.
func (p *PPU) SetNMICallback(fn func()) { p.nmiOut = fn }

// SetScanlineCallback registers the MMC3 IRQ counter hook.
func (p *PPU) SetScanlineCallback(fn func()) { p.scanlineCB = fn }

// ReadRegister implements the memory-mapped $2000-$3FFF window.
func (p *PPU) ReadRegister(addr uint16) byte {
	switch addr & 0x2007 {
	case 0x2002:
		v := p.reg.status&0xE0 | p.dataBuf&0x1F
		p.setStatus(statusVBlank, false)
		p.addrLatch = false
		return v
	case 0x2004:
		return p.oam.read(p.oamAddr)
	case 0x2007:
		v := p.dataBuf
		p.dataBuf = p.ppuRead(uint16(p.vramAddr.value()))
		if p.vramAddr.value() >= 0x3F00 {
			v = p.dataBuf
		}
		p.advanceVRAM()
		return v
	}
	return 0
}

// WriteRegister implements the memory-mapped $2000-$3FFF window.
func (p *PPU) WriteRegister(addr uint16, v byte) {
	switch addr & 0x2007 {
	case 0x2000:
		p.reg.ctrl = v
		p.tempAddr.setNametable(v & 0x03)
	case 0x2001:
		p.reg.mask = v
	case 0x2003:
		p.oamAddr = v
	case 0x2004:
		p.oam.write(p.oamAddr, v)
		p.oamAddr++
	case 0x2005:
		if !p.addrLatch {
			p.fineX = v & 0x07
			p.tempAddr.setCoarseX(v >> 3)
		} else {
			p.tempAddr.setFineY(v & 0x07)
			p.tempAddr.setCoarseY(v >> 3)
		}
		p.addrLatch = !p.addrLatch
	case 0x2006:
		if !p.addrLatch {
			p.tempAddr = (p.tempAddr & 0x00FF) | (PpuLoopyReg(v&0x3F) << 8)
		} else {
			p.tempAddr = (p.tempAddr & 0xFF00) | PpuLoopyReg(v)
			p.vramAddr = p.tempAddr
		}
		p.addrLatch = !p.addrLatch
	case 0x2007:
		p.ppuWrite(uint16(p.vramAddr.value()), v)
		p.advanceVRAM()
	}
}

func (p *PPU) advanceVRAM() {
	inc := uint16(1)
	if p.reg.ctrl&ctrlVramIncrement != 0 {
		inc = 32
	}
	p.vramAddr = PpuLoopyReg(p.vramAddr.value() + inc)
}

func (p *PPU) ppuRead(addr uint16) byte {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		if p.Cart != nil {
			return p.Cart.ReadCHR(addr)
		}
		return 0
	case addr < 0x3F00:
		return p.nametable[p.nametableIndex(addr)][addr&0x03FF]
	default:
		return p.palette[p.paletteIndex(addr)]
	}
}

func (p *PPU) ppuWrite(addr uint16, v byte) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		if p.Cart != nil {
			p.Cart.WriteCHR(addr, v)
		}
	case addr < 0x3F00:
		p.nametable[p.nametableIndex(addr)][addr&0x03FF] = v
	default:
		p.palette[p.paletteIndex(addr)] = v
	}
}

func (p *PPU) nametableIndex(addr uint16) int {
	table := (addr - 0x2000) / 0x0400 % 4
	mirror := MirrorHorizontal
	if p.Cart != nil {
		mirror = p.Cart.Mapper.Mirror()
	}
	switch mirror {
	case MirrorVertical:
		return int(table % 2)
	case MirrorSingleScreenLo:
		return 0
	case MirrorSingleScreenHi:
		return 1
	default: // horizontal
		return int(table / 2)
	}
}

func (p *PPU) paletteIndex(addr uint16) uint16 {
	idx := (addr - 0x3F00) % 32
	if idx >= 16 && idx%4 == 0 {
		idx -= 16
	}
	return idx
}

// DMATransfer accepts one OAM byte; the scheduler calls this 256 times
// per $4014 write, writing to consecutive OAM addresses starting at the
// latched oamAddr.
func (p *PPU) DMATransfer(v byte) {
	p.oam.write(p.oamAddr, v)
	p.oamAddr++
}

// Sync advances PPU dot/scanline state by cycles*3 dots (the 1:3
// CPU:PPU ratio), raising vblank/NMI edges and the MMC3 scanline
// callback at the appropriate boundaries.
func (p *PPU) Sync(cycles int) {
	for i := 0; i < cycles*3; i++ {
		p.tick()
	}
}

func (p *PPU) tick() {
	if p.dot == 1 {
		switch p.scanline {
		case -1:
			p.setStatus(statusVBlank, false)
			p.setStatus(statusSprite0Hit, false)
			p.setStatus(statusSpriteOverflow, false)
		case 241:
			p.setStatus(statusVBlank, true)
			if p.reg.ctrl&ctrlNMIEnable != 0 && p.nmiOut != nil {
				p.nmiOut()
			}
		}
	}

	if p.scanline >= 0 && p.scanline <= 239 && p.dot == 260 {
		if p.Cart != nil {
			p.Cart.Mapper.ScanlineTick()
		}
		if p.scanlineCB != nil {
			p.scanlineCB()
		}
	}

	if p.scanline >= 0 && p.scanline <= 239 && p.dot >= 1 && p.dot <= 256 {
		p.renderDot()
	}

	p.dot++
	if p.dot > 340 {
		p.dot = 0
		p.scanline++
		if p.scanline > 260 {
			p.scanline = -1
		}
	}
}

// renderDot fills the framebuffer with a deterministic placeholder
// derived from the background palette: the co-scheduler's timing
// contract, not pixel-exact compositing, is this core's concern.
func (p *PPU) renderDot() {
	x := p.dot - 1
	y := p.scanline
	if x < 0 || x >= 256 || y < 0 || y >= 240 {
		return
	}
	p.Framebuffer[y*256+x] = p.palette[0] & 0x3F
}

// FrameComplete reports whether the PPU just finished the visible
// frame (used by a host loop pacing presentation to vsync).
func (p *PPU) FrameComplete() bool {
	return p.scanline == 241 && p.dot == 1
}
