package dsp

import (
	"math"

	"github.com/schollz/minidaw/internal/types"
)

// Waveform selects the oscillator's shape.
type Waveform int

const (
	WaveformNone Waveform = iota
	WaveformSine
	WaveformSquare
	// WaveformPulseWidth is a square with an adjustable duty cycle
	// taken from Oscillator.DutyCycle.
	WaveformPulseWidth
	WaveformTriangle
	WaveformSawtooth
	WaveformNoise
	WaveformTriangleSine

	// Debug waveforms return fixed values.
	WaveformDebugZero
	WaveformDebugMax
	WaveformDebugMin

	waveformCount
)

// WaveformFromControlValue maps an automation value onto a waveform.
func WaveformFromControlValue(v types.ControlValue) Waveform {
	return Waveform(float64(v) * float64(waveformCount-1))
}

func (w Waveform) String() string {
	switch w {
	case WaveformSine:
		return "sine"
	case WaveformSquare:
		return "square"
	case WaveformPulseWidth:
		return "pulse"
	case WaveformTriangle:
		return "triangle"
	case WaveformSawtooth:
		return "sawtooth"
	case WaveformNoise:
		return "noise"
	case WaveformTriangleSine:
		return "triangle-sine"
	default:
		return "none"
	}
}

const noiseSeedX1, noiseSeedX2 = 0x70f4f854, 0xe1e9f0a7

// Oscillator produces a stream of BipolarNormal samples whose
// frequency is base * tune * (2^fm + fmLinear) at each sample. The
// cycle position survives frequency changes so modulation doesn't
// cause phase discontinuities. Sine, sawtooth and triangle-sine
// cycles start at amplitude zero; square and pulse cycles start at
// +1 and triangle cycles at -1.
type Oscillator struct {
	Waveform  Waveform          `json:"waveform"`
	Frequency types.FrequencyHz `json:"-"`

	// FixedFrequency, when nonzero, overrides Frequency. Used by LFOs
	// that shouldn't track the played note.
	FixedFrequency types.FrequencyHz `json:"fixed_frequency,omitempty"`

	// FrequencyTune is a pitch-correction multiplier applied to the
	// base frequency.
	FrequencyTune types.Ratio `json:"tune,omitempty"`

	// FrequencyModulation is an exponential modulation input in
	// [-1, 1]; -1 halves the frequency and 1 doubles it.
	FrequencyModulation types.BipolarNormal `json:"frequency_modulation,omitempty"`

	// LinearFrequencyModulation is an additive factor for FM
	// synthesis.
	LinearFrequencyModulation float64 `json:"linear_frequency_modulation,omitempty"`

	// DutyCycle applies to WaveformPulseWidth.
	DutyCycle types.Normal `json:"duty_cycle,omitempty"`

	noiseX1, noiseX2 uint32
	ticks            uint64
	cyclePosition    kahanSum
	delta            float64
	deltaUpdated     bool
	shouldSync       bool
	isSyncPending    bool
	resetPending     bool
	sampleRate       types.SampleRate
	tempo            types.Tempo
	timeSignature    types.TimeSignature
}

func NewOscillator(waveform Waveform, frequency types.FrequencyHz) *Oscillator {
	o := &Oscillator{
		Waveform:      waveform,
		Frequency:     frequency,
		FrequencyTune: types.RatioUnity,
		DutyCycle:     0.5,
	}
	o.initEphemerals()
	return o
}

// initEphemerals puts the non-persisted state back to its initial
// values, e.g. after deserialization.
func (o *Oscillator) initEphemerals() {
	o.noiseX1, o.noiseX2 = noiseSeedX1, noiseSeedX2
	o.resetPending = true
	o.deltaUpdated = false
	o.cyclePosition = kahanSum{}
	o.sampleRate = types.DefaultSampleRate
	o.tempo = types.TempoDefault
	o.timeSignature = types.CommonTime
	if o.FrequencyTune == 0 {
		o.FrequencyTune = types.RatioUnity
	}
}

func (o *Oscillator) SampleRate() types.SampleRate { return o.sampleRate }

func (o *Oscillator) UpdateSampleRate(rate types.SampleRate) {
	o.sampleRate = types.NewSampleRate(int(rate))
	o.Reset()
}

func (o *Oscillator) Tempo() types.Tempo            { return o.tempo }
func (o *Oscillator) UpdateTempo(tempo types.Tempo) { o.tempo = tempo }

func (o *Oscillator) TimeSignature() types.TimeSignature { return o.timeSignature }
func (o *Oscillator) UpdateTimeSignature(ts types.TimeSignature) {
	o.timeSignature = ts
}

func (o *Oscillator) Reset() { o.resetPending = true }

func (o *Oscillator) AfterLoad() { o.initEphemerals() }

func (o *Oscillator) SetFrequency(f types.FrequencyHz) {
	o.Frequency = f
	o.deltaUpdated = false
}

func (o *Oscillator) SetFixedFrequency(f types.FrequencyHz) {
	o.FixedFrequency = f
	o.deltaUpdated = false
}

func (o *Oscillator) SetFrequencyTune(r types.Ratio) {
	o.FrequencyTune = r
	o.deltaUpdated = false
}

func (o *Oscillator) SetFrequencyModulation(m types.BipolarNormal) {
	o.FrequencyModulation = m
	o.deltaUpdated = false
}

func (o *Oscillator) SetLinearFrequencyModulation(m float64) {
	o.LinearFrequencyModulation = m
	o.deltaUpdated = false
}

func (o *Oscillator) SetWaveform(w Waveform) { o.Waveform = w }

// ShouldSync reports whether the waveform wrapped during the last
// sample, so owners can restart any synced oscillators.
func (o *Oscillator) ShouldSync() bool { return o.shouldSync }

// Sync restarts this oscillator's cycle on its next sample.
func (o *Oscillator) Sync() { o.isSyncPending = true }

func (o *Oscillator) adjustedFrequency() types.FrequencyHz {
	unmodulated := o.Frequency.MulRatio(o.FrequencyTune)
	if o.FixedFrequency != 0 {
		unmodulated = o.FixedFrequency
	}
	return unmodulated * types.FrequencyHz(
		math.Pow(2.0, float64(o.FrequencyModulation))+o.LinearFrequencyModulation)
}

func (o *Oscillator) updateDelta() {
	if !o.deltaUpdated {
		o.delta = float64(o.adjustedFrequency()) / float64(o.sampleRate)
		// Dropping the compensation term resets the accumulated error.
		o.cyclePosition = newKahanSum(o.cyclePosition.Sum())
		o.deltaUpdated = true
	}
}

func (o *Oscillator) calculateCyclePosition() float64 {
	o.updateDelta()

	// A pending sync restarts the cycle; position zero is correct by
	// definition.
	if o.isSyncPending {
		o.isSyncPending = false
		o.cyclePosition = kahanSum{}
	}

	var unrounded float64
	if o.resetPending {
		unrounded = 0.0
	} else {
		o.cyclePosition.Add(o.delta)
		unrounded = o.cyclePosition.Sum()
	}

	switch {
	case o.resetPending:
		// The first post-reset sample should sync followers too.
		o.shouldSync = true
	case unrounded > 0.999999999999:
		// The threshold is slightly short of 1.0 so FP error can't
		// make a square wave flip one sample late.
		o.cyclePosition.Add(-1.0)
		o.shouldSync = true
	default:
		o.shouldSync = false
	}

	return o.cyclePosition.Sum()
}

// The arbitrary-looking phase shifts in some formulas make the sine,
// sawtooth and triangle-sine start at amplitude zero, which avoids
// transients at note-on. Square and pulse start at +1 and triangle
// at -1.
func (o *Oscillator) amplitudeForPosition(w Waveform, pos float64) float64 {
	switch w {
	case WaveformSine:
		return math.Sin(pos * 2.0 * math.Pi)
	case WaveformSquare:
		return -sign(pos - 0.5)
	case WaveformPulseWidth:
		return -sign(pos - float64(o.DutyCycle))
	case WaveformTriangle:
		return 4.0*math.Abs(pos-math.Floor(0.5+pos)) - 1.0
	case WaveformSawtooth:
		return 2.0 * (pos - math.Floor(0.5+pos))
	case WaveformNoise:
		// Stateful xorshift-style generator, so random access sounds
		// different from sequential.
		o.noiseX1 ^= o.noiseX2
		tmp := 2.0 * (float64(o.noiseX2) - float64(math.MaxUint32)/2.0) / float64(math.MaxUint32)
		o.noiseX2 += o.noiseX1
		return tmp
	case WaveformTriangleSine:
		return 4.0*math.Abs(pos-math.Floor(0.75+pos)+0.25) - 1.0
	case WaveformDebugZero:
		return 0.0
	case WaveformDebugMax:
		return 1.0
	case WaveformDebugMin:
		return -1.0
	default:
		return 0.0
	}
}

// Generate fills values with the next samples of the waveform.
// Returns false when the waveform is None, meaning the output is all
// silence.
func (o *Oscillator) Generate(values []types.BipolarNormal) bool {
	for i := range values {
		if o.resetPending {
			o.ticks = 0
			o.updateDelta()
			_, frac := math.Modf(o.delta * float64(o.ticks))
			o.cyclePosition = newKahanSum(frac)
		} else {
			o.ticks++
		}
		pos := o.calculateCyclePosition()
		amplitude := o.amplitudeForPosition(o.Waveform, pos)
		o.resetPending = false
		values[i] = types.NewBipolarNormal(amplitude)
	}
	return o.Waveform != WaveformNone
}

func sign(v float64) float64 {
	if v >= 0 {
		return 1.0
	}
	return -1.0
}
