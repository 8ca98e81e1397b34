package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fullBank(fill byte) []byte {
	b := make([]byte, bankSize)
	for i := range b {
		b[i] = fill
	}
	return b
}

func TestBankZeroIsFixed(t *testing.T) {
	bus := NewBus()
	bus.LoadBanks([][]byte{fullBank(0xAA), fullBank(0xBB)})

	assert.Equal(t, byte(0xAA), bus.Read(0x0000))
	assert.Equal(t, byte(0xAA), bus.Read(0x3FFF))
}

func TestBankSelectSwitchesWindow(t *testing.T) {
	bus := NewBus()
	bus.LoadBanks([][]byte{fullBank(0x00), fullBank(0x11), fullBank(0x22)})

	require.Equal(t, byte(0x11), bus.Read(0x4000))

	bus.Write(0x2000, 2)
	assert.Equal(t, byte(0x22), bus.Read(0x4000))
}

func TestBankSelectZeroIsIgnored(t *testing.T) {
	bus := NewBus()
	bus.LoadBanks([][]byte{fullBank(0x00), fullBank(0x11), fullBank(0x22)})

	bus.Write(0x2000, 2)
	bus.Write(0x2000, 0)

	assert.Equal(t, byte(0x22), bus.Read(0x4000), "selecting bank 0 must be ignored, not switch back to bank 1")
}

func TestBankSelectUnloadedBankIsIgnored(t *testing.T) {
	bus := NewBus()
	bus.LoadBanks([][]byte{fullBank(0x00), fullBank(0x11)})

	bus.Write(0x2000, 5) // never loaded

	assert.Equal(t, byte(0x11), bus.Read(0x4000))
}

func TestROMWritesOutsideBankSelectAreDropped(t *testing.T) {
	bus := NewBus()
	bus.LoadBanks([][]byte{fullBank(0x42)})

	bus.Write(0x0000, 0xFF)
	bus.Write(0x7FFF, 0xFF)

	assert.Equal(t, byte(0x42), bus.Read(0x0000))
}

func TestHRAMRoundTrip(t *testing.T) {
	bus := NewBus()

	for addr := uint32(0xFF80); addr <= 0xFFFE; addr++ {
		bus.Write(uint16(addr), byte(addr))
	}
	for addr := uint32(0xFF80); addr <= 0xFFFE; addr++ {
		assert.Equal(t, byte(addr), bus.Read(uint16(addr)))
	}
}

func TestWRAMRoundTrip(t *testing.T) {
	bus := NewBus()

	bus.Write(0xA000, 0x12)
	bus.Write(0xDFFF, 0x34)

	assert.Equal(t, byte(0x12), bus.Read(0xA000))
	assert.Equal(t, byte(0x34), bus.Read(0xDFFF))
}

func TestUnmappedReadsReturn0xFF(t *testing.T) {
	bus := NewBus()

	assert.Equal(t, byte(0xFF), bus.Read(0x8000)) // VRAM range, unmapped in this core
	assert.Equal(t, byte(0xFF), bus.Read(0xFE00))
}

type stubAudio struct {
	lastWriteAddr uint16
	lastWriteVal  uint8
	readValue     uint8
}

func (s *stubAudio) ReadRegister(addr uint16) uint8 {
	return s.readValue
}

func (s *stubAudio) WriteRegister(addr uint16, value uint8) {
	s.lastWriteAddr = addr
	s.lastWriteVal = value
}

func TestAudioRangeForwardsToDevice(t *testing.T) {
	bus := NewBus()
	audio := &stubAudio{readValue: 0x77}
	bus.SetAudioDevice(audio)

	bus.Write(0xFF12, 0xF0)
	require.Equal(t, uint16(0xFF12), audio.lastWriteAddr)
	require.Equal(t, uint8(0xF0), audio.lastWriteVal)

	assert.Equal(t, byte(0x77), bus.Read(0xFF12))
}

func TestAudioRangeWithoutDeviceReturns0xFF(t *testing.T) {
	bus := NewBus()
	assert.Equal(t, byte(0xFF), bus.Read(0xFF12))
}
