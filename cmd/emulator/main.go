// Command emulator drives the co-scheduler against a real ROM image and
// presents it through a pixelgl window.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/faiface/pixel/pixelgl"

	"github.com/nesforge/coreos/jit"
	"github.com/nesforge/coreos/nes"
)

var (
	flagROM   string
	flagDebug bool
	flagJIT   bool
	flagTrace bool
)

func parseFlags() {
	flag.StringVar(&flagROM, "rom", "", "path to an iNES ROM image")
	flag.BoolVar(&flagDebug, "d", false, "enable the debug panel")
	flag.BoolVar(&flagJIT, "jit", true, "enable the dynamic recompiler")
	flag.BoolVar(&flagTrace, "trace", false, "log each instruction to stderr")
	flag.Parse()
	if flagROM == "" && flag.NArg() > 0 {
		flagROM = flag.Arg(0)
	}
}

func main() {
	parseFlags()
	if flagROM == "" {
		fmt.Fprintln(os.Stderr, "usage: emulator [flags] path/to/game.nes")
		os.Exit(1)
	}

	data, err := os.ReadFile(flagROM)
	if err != nil {
		fmt.Fprintln(os.Stderr, "emulator:", err)
		os.Exit(1)
	}

	cart, err := nes.LoadCartridge(data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "emulator:", err)
		os.Exit(1)
	}

	machine := nes.NewMachine(cart)

	if flagJIT {
		cache, err := jit.NewCache()
		if err != nil {
			fmt.Fprintln(os.Stderr, "emulator: jit disabled:", err)
		} else {
			machine.SetJIT(cache)
			defer cache.Close()
		}
	}

	if flagTrace {
		machine.CPU.Trace = &stderrTracer{ring: machine.Tracer}
	}

	machine.Reset()

	pixelgl.Run(func() { run(machine) })
}

// run is the pixelgl entry point: it starts the emulation loop on its own
// goroutine and drives windowing, input polling, and presentation from
// the main thread — a single emulation thread plus an input/event thread
// that only ever touches Controller.SetButtons and Events.
func run(m *nes.Machine) {
	display := NewDisplay(flagDebug)

	done := make(chan error, 1)
	go func() { done <- m.Run() }()

	for !display.Closed() {
		m.Bus.Pad1.SetButtons(pollButtons(display.window))

		if m.PPU.FrameComplete() {
			display.DrawFrame(&m.PPU.Framebuffer)
		}
		display.UpdateScreen()

		select {
		case err := <-done:
			if err != nil {
				fmt.Fprintln(os.Stderr, "emulator:", err)
				if flagTrace {
					fmt.Fprintln(os.Stderr, m.Tracer.Dump())
				}
			}
			return
		default:
		}
	}

	m.Events.SetQuit()
	<-done
}

// stderrTracer adapts the ring tracer to also print each step, for the
// -trace flag; the ring buffer itself is still what a fatal-error
// backtrace uses.
type stderrTracer struct {
	ring *nes.RingTracer
}

func (t *stderrTracer) TraceStep(pc uint16, opcode byte, a, x, y, p, sp byte, cycle uint64) {
	t.ring.TraceStep(pc, opcode, a, x, y, p, sp, cycle)
	fmt.Fprintf(os.Stderr, "%04X  %02X  A:%02X X:%02X Y:%02X P:%02X SP:%02X CYC:%d\n",
		pc, opcode, a, x, y, p, sp, cycle)
}
