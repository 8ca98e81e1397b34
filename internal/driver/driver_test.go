package driver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenwick/gbsplay/internal/apu"
	"github.com/fenwick/gbsplay/internal/gbs"
	"github.com/fenwick/gbsplay/internal/memory"
)

func buildTestHeader(initAddr, playAddr, sp uint16) *gbs.Header {
	return &gbs.Header{
		SongCount: 1,
		StartSong: 0,
		LoadAddr:  0x4000,
		InitAddr:  initAddr,
		PlayAddr:  playAddr,
		InitialSP: sp,
		TMA:       0,
		TAC:       0,
	}
}

// newTestBus builds a one-bank ROM image with the given opcodes placed at
// their addresses and every other byte of the bank filled with 0xFF
// (which decodes as RST 38H if fetched).
func newTestBus(code map[uint16]uint8) *memory.Bus {
	bank := make([]byte, 0x4000)
	for i := range bank {
		bank[i] = 0xFF
	}
	for addr, op := range code {
		bank[addr-0x4000] = op
	}

	bus := memory.NewBus()
	bus.LoadBanks([][]byte{nil, bank})
	return bus
}

func TestRunInitExecutesUntilSPMatchesHeader(t *testing.T) {
	header := buildTestHeader(0x4100, 0x4200, 0xC000)
	bus := newTestBus(map[uint16]uint8{
		0x4100: 0x33, // INC SP
		0x4101: 0x33, // INC SP
	})
	audioDevice := apu.New()
	bus.SetAudioDevice(audioDevice)

	d := New(bus, audioDevice, header, nil)
	frame := d.RunInit(2)

	require.NotNil(t, frame)
	assert.Equal(t, uint8(2), d.cpu.Registers.A)
	assert.Equal(t, header.PlayAddr, d.cpu.Registers.PC)
	assert.Equal(t, header.InitialSP-2, d.cpu.Registers.SP)
}

func TestRunFrameRunsPlayRoutine(t *testing.T) {
	header := buildTestHeader(0x4100, 0x4200, 0xC000)
	bus := newTestBus(map[uint16]uint8{
		0x4100: 0x33,
		0x4101: 0x33,
		0x4200: 0x33,
		0x4201: 0x33,
	})
	audioDevice := apu.New()
	bus.SetAudioDevice(audioDevice)

	d := New(bus, audioDevice, header, nil)
	d.RunInit(0)
	frame := d.RunFrame()

	require.NotNil(t, frame)
	assert.Equal(t, header.PlayAddr, d.cpu.Registers.PC)
}

func TestRunInitSetsSongIndexIntoA(t *testing.T) {
	header := buildTestHeader(0x4100, 0x4100, 0xC000)
	bus := newTestBus(map[uint16]uint8{
		0x4100: 0x33,
		0x4101: 0x33,
	})
	audioDevice := apu.New()
	bus.SetAudioDevice(audioDevice)

	d := New(bus, audioDevice, header, nil)
	d.cpu.Registers.B = 0xAB // pollute before RunInit to prove the reset
	d.RunInit(5)

	assert.Equal(t, uint8(5), d.cpu.Registers.A)
	assert.Equal(t, uint8(0), d.cpu.Registers.B)
}

func TestRunFrameRespectsInstructionBudget(t *testing.T) {
	header := buildTestHeader(0x4100, 0x4100, 0xC000)
	bus := newTestBus(map[uint16]uint8{
		0x4100: 0x18, // JR -2: loops forever; SP never reaches the header's value
		0x4101: 0xFE,
	})
	audioDevice := apu.New()
	bus.SetAudioDevice(audioDevice)

	d := New(bus, audioDevice, header, nil)
	d.RunInit(0)
	frame := d.RunFrame()
	assert.NotNil(t, frame, "must return instead of hanging when the routine never returns")
}

func TestSuccessiveFramesProduceAudio(t *testing.T) {
	header := buildTestHeader(0x4100, 0x4200, 0xC000)
	bus := newTestBus(map[uint16]uint8{
		0x4100: 0x33,
		0x4101: 0x33,
		0x4200: 0x33,
		0x4201: 0x33,
	})
	audioDevice := apu.New()
	bus.SetAudioDevice(audioDevice)

	d := New(bus, audioDevice, header, nil)
	d.RunInit(0)
	for i := 0; i < 3; i++ {
		frame := d.RunFrame()
		assert.NotEmpty(t, frame)
	}
}
