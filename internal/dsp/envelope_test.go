package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/minidaw/internal/types"
)

func generateEnvelope(e *Envelope, n int) []types.Normal {
	buf := make([]types.Normal, n)
	e.Generate(buf)
	return buf
}

// runUntil advances one sample at a time until f returns true or the
// limit is hit, returning the number of samples consumed.
func runUntil(t *testing.T, e *Envelope, limit int, f func(amplitude types.Normal) bool) int {
	t.Helper()
	buf := make([]types.Normal, 1)
	for i := 0; i < limit; i++ {
		e.Generate(buf)
		if f(buf[0]) {
			return i
		}
	}
	t.Fatalf("envelope did not reach condition within %d samples", limit)
	return -1
}

func TestEnvelopeIdleByDefault(t *testing.T) {
	e := SafeDefaultEnvelope()
	assert.True(t, e.IsIdle())

	buf := generateEnvelope(e, 32)
	for _, v := range buf {
		assert.Equal(t, types.NormalMin, v)
	}
	assert.True(t, e.IsIdle(), "generation without a trigger should not change state")
}

func TestEnvelopeZeroAttackRespondsInstantly(t *testing.T) {
	e := NewEnvelope(0, 0, 0.5, 0)
	e.UpdateSampleRate(44100)

	e.TriggerAttack()
	// Zero attack jumps through maximum and zero decay lands on the
	// sustain level, observable in the very first frame because
	// explicit amplitude setters take effect immediately.
	buf := generateEnvelope(e, 1)
	assert.Equal(t, types.Normal(0.5), buf[0])
	assert.Equal(t, EnvelopeSustain, e.State())
}

func TestEnvelopeFullSustainZeroAttack(t *testing.T) {
	// With sustain at maximum the first frame is already at maximum.
	e := NewEnvelope(0, 0, 1.0, SecondsToNormal(0.5))
	e.UpdateSampleRate(2000)

	e.TriggerAttack()
	buf := generateEnvelope(e, 10)
	for _, v := range buf {
		assert.Equal(t, types.NormalMax, v)
	}
}

func TestEnvelopeAttackIsMonotonicallyNonDecreasing(t *testing.T) {
	e := NewEnvelope(0.002, 0.005, 0.8, 0.01)
	e.UpdateSampleRate(44100)
	e.TriggerAttack()

	const eps = 1e-9
	last := types.NormalMin
	samples := runUntil(t, e, 44100, func(v types.Normal) bool {
		require.GreaterOrEqual(t, float64(v), float64(last)-eps, "attack must not decrease")
		last = v
		return e.State() != EnvelopeAttack
	})
	// attack=0.002 normalized is 60 ms.
	expected := 0.002 * EnvelopeMaxSeconds * 44100
	assert.InDelta(t, expected, float64(samples), 3)
}

func TestEnvelopeDecayIsMonotonicallyNonIncreasing(t *testing.T) {
	e := NewEnvelope(0, 0.005, 0.25, 0.01)
	e.UpdateSampleRate(44100)
	e.TriggerAttack()

	const eps = 1e-9
	last := types.NormalMax
	runUntil(t, e, 44100, func(v types.Normal) bool {
		require.LessOrEqual(t, float64(v), float64(last)+eps, "decay must not increase")
		last = v
		return e.State() == EnvelopeSustain
	})
	assert.InDelta(t, 0.25, float64(last), 1e-9)
}

func TestEnvelopeSustainHolds(t *testing.T) {
	e := NewEnvelope(0, 0, 0.6, 0.01)
	e.UpdateSampleRate(44100)
	e.TriggerAttack()
	generateEnvelope(e, 2)
	require.Equal(t, EnvelopeSustain, e.State())

	buf := generateEnvelope(e, 1000)
	for _, v := range buf {
		assert.Equal(t, types.Normal(0.6), v)
	}
}

func TestEnvelopeReleaseReachesIdle(t *testing.T) {
	e := NewEnvelope(0, 0, 0.6, 0.01)
	e.UpdateSampleRate(44100)
	e.TriggerAttack()
	generateEnvelope(e, 2)
	require.Equal(t, EnvelopeSustain, e.State())

	e.TriggerRelease()
	const eps = 1e-9
	last := types.NormalMax
	runUntil(t, e, 44100, func(v types.Normal) bool {
		require.LessOrEqual(t, float64(v), float64(last)+eps, "release must not increase")
		last = v
		return e.IsIdle()
	})
	assert.Equal(t, types.NormalMin, last)
}

func TestEnvelopeShutdownIsFastRegardlessOfRelease(t *testing.T) {
	// A ten-second release would take forever; shutdown must reach
	// zero in about a millisecond so voice stealing doesn't click.
	e := NewEnvelope(0, 0, 1.0, SecondsToNormal(10.0))
	e.UpdateSampleRate(44100)
	e.TriggerAttack()
	generateEnvelope(e, 2)
	require.Equal(t, EnvelopeSustain, e.State())

	e.TriggerShutdown()
	samples := runUntil(t, e, 1000, func(types.Normal) bool {
		return e.IsIdle()
	})
	maxSamples := int(0.0012*44100) + 2
	assert.Less(t, samples, maxSamples)
}

func TestEnvelopeShutdownTwoSamplesAtLowRate(t *testing.T) {
	// At 2000 Hz each sample is half a millisecond, so shutdown's
	// fixed 1 ms ramp completes within two samples.
	e := NewEnvelope(0, 0, 1.0, SecondsToNormal(0.5))
	e.UpdateSampleRate(2000)
	e.TriggerAttack()
	generateEnvelope(e, 4)
	require.Equal(t, EnvelopeSustain, e.State())

	e.TriggerShutdown()
	buf := generateEnvelope(e, 10)
	assert.Less(t, float64(buf[0]), 0.5)
	assert.Equal(t, types.NormalMin, buf[1])
}

func TestEnvelopeSecondAttackInterruptsDecay(t *testing.T) {
	e := NewEnvelope(0.002, 0.02, 0.5, 0.01)
	e.UpdateSampleRate(44100)
	e.TriggerAttack()
	runUntil(t, e, 44100, func(types.Normal) bool { return e.State() == EnvelopeDecay })

	// Partway through decay, re-trigger. The envelope should climb
	// back toward maximum from wherever it is.
	generateEnvelope(e, 100)
	e.TriggerAttack()
	assert.Equal(t, EnvelopeAttack, e.State())
	runUntil(t, e, 44100, func(v types.Normal) bool { return float64(v) > 0.999 })
}

func TestSecondsNormalConversions(t *testing.T) {
	assert.Equal(t, types.Normal(0.5), SecondsToNormal(15.0))
	assert.Equal(t, types.Seconds(15.0), NormalToSeconds(0.5))
	assert.Equal(t, types.NormalMax, SecondsToNormal(60.0))
}

func TestCurveCoefficients(t *testing.T) {
	// A straight line through three collinear points.
	a, b, c := curveCoefficients(0, 0, 0.5, 0.5, 1, 1)
	assert.InDelta(t, 0.0, a, 1e-9)
	assert.InDelta(t, 1.0, b, 1e-9)
	assert.InDelta(t, 0.0, c, 1e-9)

	// Coincident anchors return the identity instead of exploding.
	a, b, c = curveCoefficients(1, 1, 1, 1, 1, 1)
	assert.Equal(t, 0.0, a)
	assert.Equal(t, 1.0, b)
	assert.Equal(t, 0.0, c)

	// A genuine quadratic: y = x^2 through (0,0), (1,1), (2,4).
	a, b, c = curveCoefficients(0, 0, 1, 1, 2, 4)
	assert.InDelta(t, 0.0, a, 1e-9)
	assert.InDelta(t, 0.0, b, 1e-9)
	assert.InDelta(t, 1.0, c, 1e-9)
}
