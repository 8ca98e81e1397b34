// Package apu implements the Game Boy Audio Processing Unit as a
// sample-accurate synthesizer: each register write updates channel state,
// and GenerateFrame renders however many stereo samples the current
// timer-derived frame rate calls for, anti-aliased by tracking fractional
// frequency-counter crossings rather than stepping at the CPU clock.
package apu

const (
	sampleRate = 48000.0
	dmgClock   = 4194304.0
	vsyncHz    = dmgClock / 70224.0 // 70224 cycles per full screen refresh

	regBase = 0xFF06
	regEnd  = 0xFF3F
)

// orTable masks the bits that always read as 1, indexed by addr-0xFF10,
// covering the register range 0xFF10-0xFF26 inclusive.
var orTable = [23]uint8{
	0x80, 0x3f, 0x00, 0xff, 0xbf, 0xff, 0x3f, 0x00,
	0xff, 0xbf, 0x7f, 0xff, 0x9f, 0xff, 0xbf, 0xff,
	0xff, 0x00, 0x00, 0xbf, 0x00, 0x00, 0x70,
}

var regsInit = [23]uint8{
	0x80, 0xBF, 0xF3, 0xFF, 0x3F, 0xFF, 0x3F, 0x00,
	0xFF, 0x3F, 0x7F, 0xFF, 0x9F, 0xFF, 0x3F, 0xFF,
	0xFF, 0x00, 0x00, 0x3F, 0x77, 0xF3, 0xF1,
}

var waveRAMInit = [16]uint8{
	0xac, 0xdd, 0xda, 0x48, 0x36, 0x02, 0xcf, 0x16,
	0x2c, 0x04, 0xe5, 0x2c, 0xac, 0xdd, 0xda, 0x48,
}

var dutyLookup = [4]uint8{0x10, 0x30, 0x3C, 0xCF}

// lengthCounter disables its channel once it has run for its programmed
// duration, ticking in fractional units-per-sample like every other timer
// in this package.
type lengthCounter struct {
	load    int
	enabled bool
	counter float32
	inc     float32
}

func (l *lengthCounter) update(chanEnabled *bool) {
	if !l.enabled {
		return
	}
	l.counter += l.inc
	if l.counter > 1.0 {
		*chanEnabled = false
		l.counter = 0.0
	}
}

// volumeEnvelope steps a channel's 4-bit volume up or down at the rate
// given by NRx2's step field.
type volumeEnvelope struct {
	step    uint8
	up      bool
	counter float32
	inc     float32
}

func (e *volumeEnvelope) update(volume *uint8) {
	e.counter += e.inc
	for e.counter > 1.0 {
		if e.step != 0 {
			v := int(*volume)
			if e.up {
				v++
			} else {
				v--
			}
			if v <= 0 || v >= 15 {
				e.inc = 0
			}
			if v < 0 {
				v = 0
			} else if v > 15 {
				v = 15
			}
			*volume = uint8(v)
		}
		e.counter -= 1.0
	}
}

// oscillator holds the fields common to all four channels: the
// fractional-crossing frequency counter that drives anti-aliased
// synthesis, the DC-blocking capacitor, and panning/length state.
type oscillator struct {
	enabled bool
	powered bool
	onLeft  bool
	onRight bool

	freq        uint16
	freqCounter float32
	freqInc     float32

	val int8

	length    lengthCounter
	capacitor float32
}

func (o *oscillator) setNoteFreq(freq float32) {
	o.freqInc = freq / sampleRate
}

// updateFreq advances the oscillator's sub-sample position by one step and
// reports whether the waveform crossed into a new cycle this sample,
// leaving pos at the crossing point so the caller can weight the
// contribution on each side of it.
func (o *oscillator) updateFreq(pos *float32) bool {
	inc := o.freqInc - *pos
	o.freqCounter += inc
	if o.freqCounter > 1.0 {
		*pos = o.freqInc - (o.freqCounter - 1.0)
		o.freqCounter = 0.0
		return true
	}
	*pos = o.freqInc
	return false
}

func (o *oscillator) highPass(sample float32) float32 {
	out := sample - o.capacitor
	o.capacitor = sample - out*0.996
	return out
}

// applyZombieMode reproduces the undocumented envelope-register write
// behavior some GBS drivers (e.g. Prehistorik Man) rely on: writing NRx2
// while the channel is already powered and enabled nudges the live volume
// instead of waiting for the next trigger.
func applyZombieMode(enabled, powered bool, volume, envStep uint8, envInc float32, val uint8) (uint8, uint8) {
	if !(powered && enabled) {
		return volume, envStep
	}
	v := int(volume)
	if envStep == 0 && envInc != 0 {
		if val&0x08 != 0 {
			v++
		} else {
			v += 2
		}
	} else {
		v = 16 - v
	}
	return uint8(v & 0x0F), val & 0x07
}

func boolToF32(b bool) float32 {
	if b {
		return 1.0
	}
	return 0.0
}

// APU mixes the four Game Boy sound channels into 32-bit float stereo
// samples. Register state is kept exactly as written in regs so that
// reads can apply the genuine hardware OR-mask.
type APU struct {
	regs [regEnd - regBase + 1]uint8

	pulse1 *pulseChannel
	pulse2 *pulseChannel
	wave   *waveChannel
	noise  *noiseChannel

	volLeft, volRight float32
	masterEnable      bool

	frameSamples int
}

// New creates an APU with its registers set to the same power-on values
// the original driver initializes before handing control to the song.
func New() *APU {
	a := &APU{
		pulse1: newPulseChannel(true),
		pulse2: newPulseChannel(false),
		wave:   newWaveChannel(),
		noise:  newNoiseChannel(),
	}
	a.pulse1.val = -1
	a.pulse2.val = -1

	for i, v := range regsInit {
		a.WriteRegister(uint16(0xFF10+i), v)
	}
	for i, v := range waveRAMInit {
		a.regs[uint16(0xFF30+i)-regBase] = v
	}

	return a
}

// SetTimerConfig seeds TMA/TAC from the GBS header before the driver takes
// its first frame, so the very first GenerateFrame call already renders at
// the song's intended rate.
func (a *APU) SetTimerConfig(tma, tac uint8) {
	a.WriteRegister(0xFF06, tma)
	a.WriteRegister(0xFF07, tac)
}

// ReadRegister reads an APU register, applying the fixed OR-mask for the
// 0xFF10-0xFF26 sound control range.
func (a *APU) ReadRegister(addr uint16) uint8 {
	if addr == 0xFF26 {
		return a.readNR52()
	}
	raw := a.regs[addr-regBase]
	if addr > 0xFF26 {
		return raw
	} else if addr >= 0xFF10 {
		return raw | orTable[addr-0xFF10]
	}
	return raw
}

// readNR52 reports live channel-enabled status rather than a byte that
// would otherwise need updating at every trigger and length-expiry site.
func (a *APU) readNR52() uint8 {
	v := uint8(0x70)
	if a.masterEnable {
		v |= 0x80
	}
	if a.pulse1.enabled {
		v |= 0x01
	}
	if a.pulse2.enabled {
		v |= 0x02
	}
	if a.wave.enabled {
		v |= 0x04
	}
	if a.noise.enabled {
		v |= 0x08
	}
	return v
}

// WriteRegister writes an APU register and applies whatever side effect
// that register has on channel state.
func (a *APU) WriteRegister(addr uint16, val uint8) {
	a.regs[addr-regBase] = val

	switch addr {
	case 0xFF06, 0xFF07:
		a.updateRate()

	case 0xFF12:
		a.pulse1.volumeInit = val >> 4
		a.pulse1.powered = val>>3 != 0
		a.pulse1.volume, a.pulse1.envelope.step = applyZombieMode(a.pulse1.enabled, a.pulse1.powered, a.pulse1.volume, a.pulse1.envelope.step, a.pulse1.envelope.inc, val)
	case 0xFF17:
		a.pulse2.volumeInit = val >> 4
		a.pulse2.powered = val>>3 != 0
		a.pulse2.volume, a.pulse2.envelope.step = applyZombieMode(a.pulse2.enabled, a.pulse2.powered, a.pulse2.volume, a.pulse2.envelope.step, a.pulse2.envelope.inc, val)
	case 0xFF21:
		a.noise.volumeInit = val >> 4
		a.noise.powered = val>>3 != 0
		a.noise.volume, a.noise.envelope.step = applyZombieMode(a.noise.enabled, a.noise.powered, a.noise.volume, a.noise.envelope.step, a.noise.envelope.inc, val)

	case 0xFF1C:
		a.wave.volume = (val >> 5) & 0x03
		a.wave.volumeInit = a.wave.volume

	case 0xFF11:
		a.writeDutyLen(a.pulse1, val)
	case 0xFF16:
		a.writeDutyLen(a.pulse2, val)
	case 0xFF20:
		a.noise.length.load = int(val & 0x3F)

	case 0xFF1B:
		a.wave.length.load = int(val)

	case 0xFF13:
		a.pulse1.freq = (a.pulse1.freq & 0x0700) | uint16(val)
	case 0xFF18:
		a.pulse2.freq = (a.pulse2.freq & 0x0700) | uint16(val)
	case 0xFF1D:
		a.wave.freq = (a.wave.freq & 0x0700) | uint16(val)

	case 0xFF1A:
		a.wave.powered = val&0x80 != 0
		a.wave.enabled = a.wave.powered

	case 0xFF14:
		a.pulse1.freq = (a.pulse1.freq & 0x00FF) | (uint16(val&0x07) << 8)
		a.pulse1.length.enabled = val&0x40 != 0
		if val&0x80 != 0 {
			a.triggerPulse(a.pulse1, 0)
		}
	case 0xFF19:
		a.pulse2.freq = (a.pulse2.freq & 0x00FF) | (uint16(val&0x07) << 8)
		a.pulse2.length.enabled = val&0x40 != 0
		if val&0x80 != 0 {
			a.triggerPulse(a.pulse2, 1)
		}
	case 0xFF1E:
		a.wave.freq = (a.wave.freq & 0x00FF) | (uint16(val&0x07) << 8)
		a.wave.length.enabled = val&0x40 != 0
		if val&0x80 != 0 {
			a.triggerWave()
		}
	case 0xFF23:
		a.noise.length.enabled = val&0x40 != 0
		if val&0x80 != 0 {
			a.triggerNoise()
		}

	case 0xFF22:
		a.noise.shift = val >> 4
		a.noise.lfsrWide = val&0x08 == 0
		a.noise.lfsrDiv = val & 0x07
		if a.noise.shift >= 14 {
			a.noise.enabled = false
		}

	case 0xFF24:
		a.volLeft = float32((val>>4)&0x07) / 7.0
		a.volRight = float32(val&0x07) / 7.0

	case 0xFF25:
		a.pulse1.onLeft, a.pulse1.onRight = val&0x10 != 0, val&0x01 != 0
		a.pulse2.onLeft, a.pulse2.onRight = val&0x20 != 0, val&0x02 != 0
		a.wave.onLeft, a.wave.onRight = val&0x40 != 0, val&0x04 != 0
		a.noise.onLeft, a.noise.onRight = val&0x80 != 0, val&0x08 != 0

	case 0xFF26:
		a.masterEnable = val&0x80 != 0
	}
}

func (a *APU) writeDutyLen(c *pulseChannel, val uint8) {
	c.length.load = int(val & 0x3F)
	c.duty = dutyLookup[val>>6]
}

// updateRate recomputes how many stereo samples GenerateFrame should
// produce, from the timer rate TAC/TMA select (or the vertical-sync rate
// when the timer is disabled).
func (a *APU) updateRate() {
	tma := a.regs[0xFF06-regBase]
	tac := a.regs[0xFF07-regBase]

	rate := float64(vsyncHz)
	if tac&0x04 != 0 {
		rates := [4]float64{4096, 262144, 65536, 16384}
		rate = rates[tac&0x03] / float64(256-int(tma))
		if tac&0x80 != 0 {
			rate *= 2.0
		}
	}

	a.frameSamples = int(sampleRate / rate)
	if a.frameSamples < 1 {
		a.frameSamples = 1
	}
}

// GenerateFrame renders one driver frame's worth of stereo audio
// (interleaved L, R, L, R, ...) at the rate set by the song's timer
// registers.
func (a *APU) GenerateFrame() []float32 {
	n := a.frameSamples
	if n == 0 {
		a.updateRate()
		n = a.frameSamples
	}

	buf := make([]float32, n*2)
	a.renderPulse(a.pulse1, true, buf, n)
	a.renderPulse(a.pulse2, false, buf, n)
	a.renderWave(buf, n)
	a.renderNoise(buf, n)
	return buf
}
