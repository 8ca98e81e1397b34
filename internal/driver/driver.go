// Package driver runs a loaded GBS song's init and play routines the way
// the original GBS player convention expects: execute CPU instructions
// until the stack pointer returns to its starting value, then hand control
// back to the play routine for the next frame.
package driver

import (
	"log/slog"

	"github.com/fenwick/gbsplay/internal/apu"
	"github.com/fenwick/gbsplay/internal/cpu"
	"github.com/fenwick/gbsplay/internal/gbs"
	"github.com/fenwick/gbsplay/internal/memory"
)

// maxInstructionsPerFrame bounds how many instructions a single RunInit or
// RunFrame call will execute while waiting for SP to return to its starting
// value. A well-behaved GBS driver routine returns in a few thousand
// instructions; this is a backstop against a song whose routine never
// returns, not a tuned performance budget.
const maxInstructionsPerFrame = 1_000_000

// Driver plays one song from a GBS file by driving the CPU core and
// forwarding generated audio frames from the APU.
type Driver struct {
	cpu    *cpu.CPU
	bus    *memory.Bus
	apu    *apu.APU
	header *gbs.Header
	logger *slog.Logger
}

// New creates a Driver for the given header, with bus and apu already
// wired together (bus.SetAudioDevice(apu) must have been called by the
// caller that assembled them).
func New(bus *memory.Bus, audio *apu.APU, header *gbs.Header, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		cpu:    cpu.New(bus),
		bus:    bus,
		apu:    audio,
		header: header,
		logger: logger,
	}
}

// RunInit bootstraps CPU registers for songIndex exactly as the GBS
// convention requires (SP = header SP - 2, PC = init address, A = song
// index, everything else zeroed) and runs the init routine through its
// first frame boundary, returning the audio generated while it ran.
func (d *Driver) RunInit(songIndex uint8) []float32 {
	*d.cpu.Registers = cpu.Registers{}
	d.cpu.Registers.SP = d.header.InitialSP - 2
	d.cpu.Registers.PC = d.header.InitAddr
	d.cpu.Registers.A = songIndex

	d.apu.SetTimerConfig(d.header.TMA, d.header.TAC)

	return d.stepFrame()
}

// RunFrame runs the play routine for one more frame and returns the audio
// it generated.
func (d *Driver) RunFrame() []float32 {
	return d.stepFrame()
}

// stepFrame executes instructions until SP returns to the header's
// starting value, then rearms PC/SP for the next call the same way the
// reference driver does between frames.
func (d *Driver) stepFrame() []float32 {
	count := 0
	for d.cpu.Registers.SP != d.header.InitialSP {
		d.cpu.Step()
		count++
		if count >= maxInstructionsPerFrame {
			d.logger.Warn("frame exceeded instruction budget without SP returning to header value",
				"budget", maxInstructionsPerFrame, "sp", d.cpu.Registers.SP, "want_sp", d.header.InitialSP)
			break
		}
	}

	d.cpu.Registers.PC = d.header.PlayAddr
	d.cpu.Registers.SP -= 2

	return d.apu.GenerateFrame()
}
