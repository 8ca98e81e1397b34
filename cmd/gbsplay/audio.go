package main

import (
	"encoding/binary"
	"io"
	"math"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

const channelCount = 2

// frameSource produces one driver frame of interleaved stereo float32
// samples per call. driver.Driver's RunFrame satisfies this.
type frameSource interface {
	RunFrame() []float32
}

// otoPlayer drives an oto/v3 context from driver-generated frames. Read is
// called directly on oto's own callback goroutine, and all CPU/APU work for
// the frame runs inside that call: the player is single-threaded by
// construction, so the only state that needs to survive concurrent access
// from a signal handler is the stopped flag.
type otoPlayer struct {
	player *oto.Player
	source frameSource

	buf    []float32
	cursor int

	stopped atomic.Bool
}

func newOtoPlayer(sampleRate int, source frameSource) (*otoPlayer, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channelCount,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready

	op := &otoPlayer{source: source}
	op.player = ctx.NewPlayer(op)
	return op, nil
}

// seed primes the player with a frame generated before playback started
// (RunInit's return value), so it is not silently dropped.
func (op *otoPlayer) seed(frame []float32) {
	op.buf = frame
	op.cursor = 0
}

// Start begins playback.
func (op *otoPlayer) Start() {
	op.player.Play()
}

// Stop halts playback. Safe to call while Read runs concurrently on oto's
// callback goroutine.
func (op *otoPlayer) Stop() error {
	op.stopped.Store(true)
	return op.player.Close()
}

// Read implements io.Reader for oto's player, pulling whole driver frames
// and serializing them as little-endian float32 samples.
func (op *otoPlayer) Read(p []byte) (int, error) {
	const bytesPerSample = 4

	if op.stopped.Load() {
		return 0, io.EOF
	}

	n := 0
	for n+bytesPerSample <= len(p) {
		if op.cursor >= len(op.buf) {
			op.buf = op.source.RunFrame()
			op.cursor = 0
			if len(op.buf) == 0 {
				break
			}
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(op.buf[op.cursor]))
		op.cursor++
		n += bytesPerSample
	}
	return n, nil
}
