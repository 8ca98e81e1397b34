package gbs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeHeader(fields map[int]byte, strings_ map[int]string) []byte {
	h := make([]byte, headerSize)
	copy(h[0:3], "GBS")
	h[3] = 1
	for off, v := range fields {
		h[off] = v
	}
	for off, s := range strings_ {
		copy(h[off:], s)
	}
	return h
}

func validHeaderBytes() []byte {
	return makeHeader(map[int]byte{
		4:  2,      // song count
		5:  1,      // start song (1-based)
		6:  0x00,   // load addr lo
		7:  0x40,   // load addr hi -> 0x4000
		8:  0x00,   // init addr lo
		9:  0x40,   // init addr hi -> 0x4000
		10: 0x10,   // play addr lo
		11: 0x40,   // play addr hi -> 0x4010
		12: 0xFE,   // SP lo
		13: 0xFF,   // SP hi -> 0xFFFE
		14: 0x00,   // TMA
		15: 0x04,   // TAC
	}, map[int]string{
		titleOffset:     "My Song",
		authorOffset:    "Composer",
		copyrightOffset: "1999",
	})
}

func TestParseHeaderValid(t *testing.T) {
	data := validHeaderBytes()

	h, err := ParseHeader(data)
	require.NoError(t, err)

	assert.Equal(t, uint8(1), h.Version)
	assert.Equal(t, uint8(2), h.SongCount)
	assert.Equal(t, uint8(0), h.StartSong) // 1-based 1 -> 0-based 0
	assert.Equal(t, uint16(0x4000), h.LoadAddr)
	assert.Equal(t, uint16(0x4000), h.InitAddr)
	assert.Equal(t, uint16(0x4010), h.PlayAddr)
	assert.Equal(t, uint16(0xFFFE), h.InitialSP)
	assert.Equal(t, uint8(0x00), h.TMA)
	assert.Equal(t, uint8(0x04), h.TAC)
	assert.Equal(t, "My Song", h.Title)
	assert.Equal(t, "Composer", h.Author)
	assert.Equal(t, "1999", h.Copyright)
}

func TestParseHeaderStartSongZeroStaysZero(t *testing.T) {
	data := validHeaderBytes()
	data[5] = 0 // malformed, but must not underflow to 255

	h, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(0), h.StartSong)
}

func TestParseHeaderShort(t *testing.T) {
	_, err := ParseHeader(make([]byte, 10))
	assert.ErrorIs(t, err, ErrShortHeader)
}

func TestParseHeaderBadIdentifier(t *testing.T) {
	data := validHeaderBytes()
	copy(data[0:3], "XXX")

	_, err := ParseHeader(data)
	assert.ErrorIs(t, err, ErrBadIdentifier)
}

func TestParseHeaderUnsupportedVersion(t *testing.T) {
	data := validHeaderBytes()
	data[3] = 2

	_, err := ParseHeader(data)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestParseHeaderUntrimmedFieldStopsAtNUL(t *testing.T) {
	data := validHeaderBytes()
	// Overwrite title field with trailing garbage after the NUL.
	copy(data[titleOffset:], "Trimmed\x00garbage-after-null")

	h, err := ParseHeader(data)
	require.NoError(t, err)
	assert.Equal(t, "Trimmed", h.Title)
}

func TestLoadPlacesBodyAtLoadAddr(t *testing.T) {
	data := validHeaderBytes()
	data[6], data[7] = 0x00, 0x40 // load addr 0x4000 (bank 1, offset 0)
	body := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	full := append(data, body...)

	h, err := ParseHeader(full)
	require.NoError(t, err)

	banks, err := h.Load(full)
	require.NoError(t, err)

	require.NotNil(t, banks[1])
	assert.Equal(t, byte(0xDE), banks[1][0])
	assert.Equal(t, byte(0xAD), banks[1][1])
	assert.Equal(t, byte(0xBE), banks[1][2])
	assert.Equal(t, byte(0xEF), banks[1][3])
	assert.Nil(t, banks[0])
	assert.Nil(t, banks[2])
}

func TestLoadSpansBankBoundary(t *testing.T) {
	data := validHeaderBytes()
	// load addr near the end of bank 1 so the body spills into bank 2.
	loadAddr := uint16(0x7FFE)
	data[6] = byte(loadAddr & 0xFF)
	data[7] = byte(loadAddr >> 8)
	body := []byte{0x11, 0x22, 0x33, 0x44}
	full := append(data, body...)

	h, err := ParseHeader(full)
	require.NoError(t, err)

	banks, err := h.Load(full)
	require.NoError(t, err)

	require.NotNil(t, banks[1])
	require.NotNil(t, banks[2])
	assert.Equal(t, byte(0x11), banks[1][bankSize-2])
	assert.Equal(t, byte(0x22), banks[1][bankSize-1])
	assert.Equal(t, byte(0x33), banks[2][0])
	assert.Equal(t, byte(0x44), banks[2][1])
}

func TestLoadUnwrittenBytesInTouchedBankAre0xFF(t *testing.T) {
	data := validHeaderBytes()
	data[6], data[7] = 0x00, 0x40
	body := []byte{0x01}
	full := append(data, body...)

	h, err := ParseHeader(full)
	require.NoError(t, err)

	banks, err := h.Load(full)
	require.NoError(t, err)

	assert.Equal(t, byte(0x01), banks[1][0])
	assert.Equal(t, byte(0xFF), banks[1][1])
}

func TestLoadTooManyBanks(t *testing.T) {
	data := validHeaderBytes()
	loadAddr := uint16(bankSize) // bank 1, offset 0
	data[6] = byte(loadAddr & 0xFF)
	data[7] = byte(loadAddr >> 8)

	body := make([]byte, (maxBanks-1)*bankSize+1) // overflows past the last bank
	full := append(data, body...)

	h, err := ParseHeader(full)
	require.NoError(t, err)

	_, err = h.Load(full)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTooManyBanks))
}
