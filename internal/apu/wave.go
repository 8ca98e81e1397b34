package apu

// waveOutputOffset is the DC offset subtracted before the high-pass
// filter, indexed by volume-1 for the three non-mute wave output levels.
var waveOutputOffset = [3]float32{7.5, 3.75, 1.5}

// waveChannel is channel 3: a 32-sample programmable waveform read out of
// the same register range the CPU writes through 0xFF30-0xFF3F.
type waveChannel struct {
	oscillator

	volume     uint8
	volumeInit uint8
}

func newWaveChannel() *waveChannel {
	return &waveChannel{}
}

func (a *APU) waveSample(pos int, volume uint8) uint8 {
	b := a.regs[uint16(0xFF30+pos/2)-regBase]
	if pos&1 != 0 {
		b &= 0x0F
	} else {
		b >>= 4
	}
	if volume == 0 {
		return 0
	}
	return b >> (volume - 1)
}

func (a *APU) triggerWave() {
	c := a.wave
	c.enabled = true
	c.val = 0

	const lenMax = 256
	c.length.inc = (256.0 / float32(lenMax-c.length.load)) / sampleRate
	c.length.counter = 0.0
}

func (a *APU) renderWave(buf []float32, n int) {
	c := a.wave
	if !c.powered {
		return
	}

	c.setNoteFreq(dmgClock / float32((2048-c.freq)<<5))
	c.freqInc *= 16.0

	for i := 0; i < n; i++ {
		c.length.update(&c.enabled)
		if !c.enabled {
			continue
		}

		var pos, prevPos, sample float32
		cur := a.waveSample(int(c.val), c.volume)

		for c.updateFreq(&pos) {
			c.val = (c.val + 1) & 31
			sample += ((pos - prevPos) / c.freqInc) * float32(cur)
			cur = a.waveSample(int(c.val), c.volume)
			prevPos = pos
		}
		sample += ((pos - prevPos) / c.freqInc) * float32(cur)

		if c.volume > 0 {
			diff := waveOutputOffset[c.volume-1]
			sample = c.highPass((sample - diff) / 7.5)

			buf[i*2+0] += sample * 0.25 * boolToF32(c.onLeft) * a.volLeft
			buf[i*2+1] += sample * 0.25 * boolToF32(c.onRight) * a.volRight
		}
	}
}
