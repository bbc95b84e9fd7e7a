package nes

// address space constants for the CPU memory map.
const (
	ramMinAddr uint16 = 0x0000
	ramMaxAddr uint16 = 0x1FFF
	ramMirror  uint16 = 0x07FF

	ppuMinAddr uint16 = 0x2000
	ppuMaxAddr uint16 = 0x3FFF
	ppuMirror  uint16 = 0x0007

	oamDMAAddr uint16 = 0x4014
	ctrl1Addr  uint16 = 0x4016
	ctrl2Addr  uint16 = 0x4017

	prgRAMMinAddr uint16 = 0x6000
	prgRAMMaxAddr uint16 = 0x7FFF

	cartMinAddr uint16 = 0x8000
	cartMaxAddr uint16 = 0xFFFF
)

// PPUPeer is the contract the PPU exposes to the system bus.
type PPUPeer interface {
	ReadRegister(addr uint16) byte
	WriteRegister(addr uint16, v byte)
	DMATransfer(v byte)
	Sync(cycles int)
	SetScanlineCallback(fn func())
}

// SystemBus wires CPU, PPU, cartridge, and controller input together.
// Unmapped reads return 0 (open bus), rather than panicking, matching
// real hardware floating-bus behavior closely enough for this core's
// goals.
type SystemBus struct {
	RAM  [2048]byte
	PPU  PPUPeer
	Cart *Cartridge
	Pad1 *Controller
	Pad2 *Controller

	// dmaPending/dmaPage latch an OAM-DMA request raised by a CPU write to
	// $4014; the scheduler drains it at the next convenient instruction
	// boundary and charges the 513/514-cycle cost.
	dmaPending bool
	dmaPage    byte

	// JIT is notified of writes into mapper register space ($8000-$FFFF)
	// so it can drop any block compiled from the 8KiB PRG window containing
	// the written address. Other windows a bank switch remaps, and writes
	// to PRG-RAM or RAM, are not reported. Nil when running without the
	// recompiler.
	JIT BlockCache
}

func (b *SystemBus) SetJIT(c BlockCache) { b.JIT = c }

const prgWindowBytes = 0x2000

func (b *SystemBus) invalidateJITWindow(addr uint16) {
	if b.JIT == nil {
		return
	}
	b.JIT.InvalidateWindow(int(addr) / prgWindowBytes)
}

// NewSystemBus builds a bus around the given cartridge and two controller
// ports. PPU is wired in separately via SetPPU, since the PPU and bus are
// constructed independently and then connected.
func NewSystemBus(cart *Cartridge) *SystemBus {
	return &SystemBus{
		Cart: cart,
		Pad1: NewController(),
		Pad2: NewController(),
	}
}

func (b *SystemBus) SetPPU(p PPUPeer) { b.PPU = p }

// Load implements the CPU-side read path.
func (b *SystemBus) Load(addr uint16) byte {
	switch {
	case addr <= ramMaxAddr:
		return b.RAM[addr&ramMirror]
	case addr <= ppuMaxAddr:
		if b.PPU == nil {
			return 0
		}
		return b.PPU.ReadRegister(ppuMinAddr + addr&ppuMirror)
	case addr == ctrl1Addr:
		return b.Pad1.Read()
	case addr == ctrl2Addr:
		return b.Pad2.Read()
	case addr >= prgRAMMinAddr && addr <= prgRAMMaxAddr:
		if b.Cart == nil {
			return 0
		}
		return b.Cart.ReadPRGRAM(addr)
	case addr >= cartMinAddr:
		if b.Cart == nil {
			return 0
		}
		return b.Cart.ReadPRG(addr)
	}
	return 0
}

// Store implements the CPU-side write path. A write to $4014 latches an
// OAM-DMA transfer rather than performing it inline: the scheduler is
// responsible for draining DMA at an instruction boundary so that its
// cost can be folded into the cycle budget correctly.
func (b *SystemBus) Store(addr uint16, v byte) {
	switch {
	case addr <= ramMaxAddr:
		b.RAM[addr&ramMirror] = v
	case addr <= ppuMaxAddr:
		if b.PPU != nil {
			b.PPU.WriteRegister(ppuMinAddr+addr&ppuMirror, v)
		}
	case addr == oamDMAAddr:
		b.dmaPending = true
		b.dmaPage = v
	case addr == ctrl1Addr:
		b.Pad1.Strobe(v)
		b.Pad2.Strobe(v)
	case addr >= prgRAMMinAddr && addr <= prgRAMMaxAddr:
		if b.Cart != nil {
			b.Cart.WritePRGRAM(addr, v)
		}
	case addr >= cartMinAddr:
		if b.Cart != nil {
			b.Cart.WritePRG(addr, v)
			b.invalidateJITWindow(addr)
		}
	}
}

// DMAPending reports and clears a latched OAM-DMA request. The scheduler
// calls this between instructions; see Scheduler.drainDMA.
func (b *SystemBus) DMAPending() (byte, bool) {
	if !b.dmaPending {
		return 0, false
	}
	b.dmaPending = false
	return b.dmaPage, true
}

// ReadDMAPage copies the 256-byte page named by a latched $4014 write,
// reading through the same Load path used by the interpreter: DMA always
// sources from CPU address space, RAM or cartridge alike.
func (b *SystemBus) ReadDMAPage(page byte) [256]byte {
	var buf [256]byte
	base := uint16(page) << 8
	for i := 0; i < 256; i++ {
		buf[i] = b.Load(base + uint16(i))
	}
	return buf
}
