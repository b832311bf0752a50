package entities

import (
	"math"

	"github.com/schollz/minidaw/internal/engine"
	"github.com/schollz/minidaw/internal/types"
)

// LowPassFilter control parameter indexes.
const (
	LowPassFilterParamCutoff = types.ControlIndex(iota)
	LowPassFilterParamQ
)

// Cutoff automation sweeps 20 Hz..20 kHz exponentially.
const (
	filterCutoffMin = 20.0
	filterCutoffMax = 20000.0
)

// biquadState is one channel's direct-form-I history.
type biquadState struct {
	x1, x2 float64
	y1, y2 float64
}

// biquadCoefficients is an RBJ coefficient set; the default is the
// identity.
type biquadCoefficients struct {
	a0, a1, a2 float64
	b0, b1, b2 float64
}

func identityCoefficients() biquadCoefficients {
	return biquadCoefficients{a0: 1, b0: 1}
}

func (s *biquadState) transform(c biquadCoefficients, input float64) float64 {
	output := (c.b0*input + c.b1*s.x1 + c.b2*s.x2 - c.a1*s.y1 - c.a2*s.y2) / c.a0
	s.x2, s.x1 = s.x1, input
	s.y2, s.y1 = s.y1, output
	return output
}

// LowPassFilter is a 12 dB/octave RBJ low-pass biquad with
// independent state per stereo channel.
type LowPassFilter struct {
	engine.BaseEntity
	Cutoff types.FrequencyHz `json:"cutoff"`
	Q      float64           `json:"q"`

	coefficients biquadCoefficients
	channels     [2]biquadState
}

func NewLowPassFilter(cutoff types.FrequencyHz, q float64) *LowPassFilter {
	f := &LowPassFilter{Cutoff: cutoff, Q: q}
	f.updateCoefficients()
	return f
}

func (f *LowPassFilter) Key() string  { return "low-pass-filter" }
func (f *LowPassFilter) Name() string { return "Low-Pass Filter" }

func (f *LowPassFilter) IsEffect() bool { return true }

// rbjIntermediates is the shared prelude of the RBJ cookbook
// formulas.
func rbjIntermediates(sampleRate types.SampleRate, cutoff, q float64) (w0cos, alpha float64) {
	w0 := 2.0 * math.Pi * cutoff / float64(sampleRate)
	if q < math.SmallestNonzeroFloat64 {
		q = math.SmallestNonzeroFloat64
	}
	return math.Cos(w0), math.Sin(w0) / (2.0 * q)
}

func (f *LowPassFilter) updateCoefficients() {
	if f.Q == 0 {
		f.Q = math.Sqrt2 / 2.0
	}
	if f.Cutoff == 0 {
		f.coefficients = identityCoefficients()
		return
	}
	w0cos, alpha := rbjIntermediates(f.SampleRate(), float64(f.Cutoff), f.Q)
	f.coefficients = biquadCoefficients{
		a0: 1.0 + alpha,
		a1: -2.0 * w0cos,
		a2: 1.0 - alpha,
		b0: (1.0 - w0cos) / 2.0,
		b1: 1.0 - w0cos,
		b2: (1.0 - w0cos) / 2.0,
	}
}

func (f *LowPassFilter) SetCutoff(cutoff types.FrequencyHz) {
	f.Cutoff = cutoff
	f.updateCoefficients()
}

func (f *LowPassFilter) SetQ(q float64) {
	f.Q = q
	f.updateCoefficients()
}

func (f *LowPassFilter) UpdateSampleRate(rate types.SampleRate) {
	f.BaseEntity.UpdateSampleRate(rate)
	f.updateCoefficients()
}

func (f *LowPassFilter) Reset() {
	f.channels = [2]biquadState{}
}

func (f *LowPassFilter) TransformAudio(values []types.StereoSample) {
	for i := range values {
		values[i].Left = types.Sample(f.channels[0].transform(f.coefficients, float64(values[i].Left)))
		values[i].Right = types.Sample(f.channels[1].transform(f.coefficients, float64(values[i].Right)))
	}
}

func (f *LowPassFilter) ControlIndexCount() int { return 2 }

func (f *LowPassFilter) ControlName(index types.ControlIndex) string {
	switch index {
	case LowPassFilterParamCutoff:
		return "cutoff"
	case LowPassFilterParamQ:
		return "q"
	default:
		return ""
	}
}

func (f *LowPassFilter) ControlIndex(name string) (types.ControlIndex, bool) {
	switch name {
	case "cutoff":
		return LowPassFilterParamCutoff, true
	case "q":
		return LowPassFilterParamQ, true
	default:
		return 0, false
	}
}

func (f *LowPassFilter) ControlSetParamByIndex(index types.ControlIndex, value types.ControlValue) {
	switch index {
	case LowPassFilterParamCutoff:
		cutoff := filterCutoffMin * math.Pow(filterCutoffMax/filterCutoffMin, float64(value))
		f.SetCutoff(types.FrequencyHz(cutoff))
	case LowPassFilterParamQ:
		// 0.1 .. 10, exponential.
		f.SetQ(0.1 * math.Pow(100, float64(value)))
	}
}

func (f *LowPassFilter) AfterLoad() {
	f.channels = [2]biquadState{}
	f.updateCoefficients()
}

func init() {
	engine.RegisterEntity("low-pass-filter", func() engine.Entity {
		return NewLowPassFilter(1000.0, math.Sqrt2/2.0)
	})
}
