package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/minidaw/internal/types"
)

func generateMono(o *Oscillator, n int) []types.BipolarNormal {
	buf := make([]types.BipolarNormal, n)
	o.Generate(buf)
	return buf
}

func TestOscillatorFirstSampleIsZero(t *testing.T) {
	// The phase-shift constants in the continuous waveform formulas
	// put the zero crossing at the start of the cycle, so sine and
	// sawtooth note-ons never click. Binary waveforms can't start at
	// zero, and the triangle starts at a trough.
	for _, w := range []Waveform{WaveformSine, WaveformSawtooth} {
		o := NewOscillator(w, 440.0)
		buf := generateMono(o, 1)
		assert.Equal(t, types.BipolarNormalZero, buf[0], "waveform %v", w)
	}
}

func TestOscillatorNoneIsSilent(t *testing.T) {
	o := NewOscillator(WaveformNone, 440.0)
	buf := make([]types.BipolarNormal, 16)
	assert.False(t, o.Generate(buf))
	for _, v := range buf {
		assert.Equal(t, types.BipolarNormalZero, v)
	}
}

func TestSineWaveIsBalanced(t *testing.T) {
	// Integrating over whole cycles at a rate divisible by the
	// frequency sums to zero within floating-point epsilon.
	o := NewOscillator(WaveformSine, 441.0)
	o.UpdateSampleRate(44100)
	buf := generateMono(o, 44100)
	sum := 0.0
	for _, v := range buf {
		sum += float64(v)
	}
	assert.InDelta(t, 0.0, sum, 1e-6)
}

func TestTriangleWaveIsBalanced(t *testing.T) {
	o := NewOscillator(WaveformTriangle, 128.0)
	o.UpdateSampleRate(32768)
	buf := generateMono(o, 32768)
	sum := 0.0
	for _, v := range buf {
		sum += float64(v)
	}
	assert.InDelta(t, 0.0, sum, 1e-6)
}

func TestSquareWaveAmplitudeAndFrequency(t *testing.T) {
	// 128 Hz at 32768 Hz puts the duty-cycle flip exactly on sample
	// boundaries: 256 samples per cycle, flip at 128.
	o := NewOscillator(WaveformSquare, 128.0)
	o.UpdateSampleRate(32768)
	buf := generateMono(o, 32768)

	transitions := 0
	last := buf[0]
	for _, v := range buf {
		require.True(t, v == types.BipolarNormalMax || v == types.BipolarNormalMin,
			"square wave must be hard-edged, got %v", v)
		if v != last {
			transitions++
			last = v
		}
	}
	// Two transitions per cycle; the final cycle's wrap transition
	// lands on the first sample of the next buffer.
	assert.Equal(t, 2*128-1, transitions)
}

func TestSquareWaveShape(t *testing.T) {
	o := NewOscillator(WaveformSquare, 128.0)
	o.UpdateSampleRate(32768)
	buf := generateMono(o, 256)
	for i := 0; i < 128; i++ {
		assert.Equal(t, types.BipolarNormalMax, buf[i], "sample %d", i)
	}
	for i := 128; i < 256; i++ {
		assert.Equal(t, types.BipolarNormalMin, buf[i], "sample %d", i)
	}
}

func TestPulseWidthDutyCycle(t *testing.T) {
	o := NewOscillator(WaveformPulseWidth, 128.0)
	o.UpdateSampleRate(32768)
	o.DutyCycle = 0.25
	buf := generateMono(o, 256)
	high := 0
	for _, v := range buf {
		if v == types.BipolarNormalMax {
			high++
		}
	}
	assert.Equal(t, 64, high)
}

func TestOscillatorCycleRestartsOnTime(t *testing.T) {
	// ShouldSync fires on the first post-reset sample and again at
	// every cycle boundary.
	o := NewOscillator(WaveformSine, 128.0)
	o.UpdateSampleRate(32768)

	buf := make([]types.BipolarNormal, 1)
	o.Generate(buf)
	assert.True(t, o.ShouldSync(), "first post-reset sample should sync")

	const samplesPerCycle = 32768 / 128
	syncs := 0
	for i := 0; i < samplesPerCycle; i++ {
		o.Generate(buf)
		if o.ShouldSync() {
			syncs++
			assert.Equal(t, samplesPerCycle-1, i, "sync should land on the cycle boundary")
		}
	}
	assert.Equal(t, 1, syncs)
}

func TestOscillatorSyncRestartsCycle(t *testing.T) {
	o := NewOscillator(WaveformSawtooth, 441.0)
	o.UpdateSampleRate(44100)
	generateMono(o, 37) // somewhere mid-cycle

	o.Sync()
	// The cycle restarts, then the tick still advances, so the first
	// post-sync sample sits one delta into the new cycle.
	delta := 441.0 / 44100.0
	buf := generateMono(o, 1)
	assert.InDelta(t, 2*delta, float64(buf[0]), 1e-9)
}

func TestFrequencyModulationDoublesFrequency(t *testing.T) {
	// A full positive exponential modulation doubles the frequency,
	// so a cycle completes in half the samples.
	o := NewOscillator(WaveformSine, 64.0)
	o.UpdateSampleRate(32768)
	o.SetFrequencyModulation(types.BipolarNormalMax)

	buf := make([]types.BipolarNormal, 1)
	o.Generate(buf) // reset sample
	const samplesPerCycle = 32768 / 128
	wrapped := -1
	for i := 0; i < samplesPerCycle+8; i++ {
		o.Generate(buf)
		if o.ShouldSync() {
			wrapped = i
			break
		}
	}
	assert.Equal(t, samplesPerCycle-1, wrapped)
}

func TestNoiseIsDeterministic(t *testing.T) {
	a := NewOscillator(WaveformNoise, 440.0)
	b := NewOscillator(WaveformNoise, 440.0)
	bufA := generateMono(a, 512)
	bufB := generateMono(b, 512)
	assert.Equal(t, bufA, bufB)

	// And it should actually vary.
	varies := false
	for _, v := range bufA[1:] {
		if v != bufA[0] {
			varies = true
			break
		}
	}
	assert.True(t, varies)
}

func TestDebugWaveforms(t *testing.T) {
	tests := []struct {
		w    Waveform
		want types.BipolarNormal
	}{
		{WaveformDebugZero, 0},
		{WaveformDebugMax, 1},
		{WaveformDebugMin, -1},
	}
	for _, tt := range tests {
		o := NewOscillator(tt.w, 440.0)
		buf := generateMono(o, 4)
		for _, v := range buf {
			assert.Equal(t, tt.want, v)
		}
	}
}

func TestKahanSumStaysStable(t *testing.T) {
	// Adding a small delta many times should not drift the way naive
	// summation does.
	delta := 1.0 / 3.0 * 1e-4
	k := newKahanSum(0)
	naive := 0.0
	for i := 0; i < 1_000_000; i++ {
		k.Add(delta)
		naive += delta
	}
	want := delta * 1e6
	assert.InDelta(t, want, k.Sum(), 1e-12)
	assert.Greater(t, math.Abs(naive-want), math.Abs(k.Sum()-want))
}
