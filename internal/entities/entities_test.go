package entities

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/minidaw/internal/engine"
	"github.com/schollz/minidaw/internal/types"
)

func noSend(types.MidiChannel, midi.Message) {}

func TestToneSynthIsSilentUntilNoteOn(t *testing.T) {
	s := NewToneSynth()
	s.UpdateSampleRate(44100)

	buf := make([]types.StereoSample, 64)
	assert.False(t, s.Generate(buf))
	for _, v := range buf {
		assert.Equal(t, types.SilentStereoSample, v)
	}
}

func TestToneSynthNoteLifecycle(t *testing.T) {
	s := NewToneSynth()
	s.UpdateSampleRate(44100)

	s.HandleMidiMessage(0, midi.NoteOn(0, 69, 127), noSend)
	buf := make([]types.StereoSample, 4410)
	assert.True(t, s.Generate(buf))

	peak := 0.0
	for _, v := range buf {
		if a := math.Abs(float64(v.Left)); a > peak {
			peak = a
		}
	}
	assert.Greater(t, peak, 0.01)

	// Release, then let the tail die. Release 0.01 normalized is
	// 300 ms.
	s.HandleMidiMessage(0, midi.NoteOff(0, 69), noSend)
	tail := make([]types.StereoSample, 44100/2)
	s.Generate(tail)

	quiet := make([]types.StereoSample, 64)
	generated := s.Generate(quiet)
	assert.False(t, generated, "voice should be idle after the release tail")
}

func TestToneSynthVoiceStealing(t *testing.T) {
	s := NewToneSynth()
	s.UpdateSampleRate(44100)

	for key := uint8(40); key < 40+toneSynthVoices; key++ {
		s.HandleMidiMessage(0, midi.NoteOn(0, key, 127), noSend)
	}
	// One more than the voice bank holds steals a voice via shutdown
	// rather than clicking.
	s.HandleMidiMessage(0, midi.NoteOn(0, 80, 127), noSend)

	buf := make([]types.StereoSample, 4410)
	assert.True(t, s.Generate(buf))
}

func TestToneSynthControls(t *testing.T) {
	s := NewToneSynth()
	assert.Equal(t, 6, s.ControlIndexCount())

	idx, ok := s.ControlIndex("sustain")
	require.True(t, ok)
	s.ControlSetParamByIndex(idx, 0.25)
	assert.Equal(t, types.Normal(0.25), s.Sustain)

	_, ok = s.ControlIndex("nope")
	assert.False(t, ok)
}

func TestGainTransform(t *testing.T) {
	g := NewGain(0.5)
	buf := []types.StereoSample{types.NewStereoSample(1, -1)}
	g.TransformAudio(buf)
	assert.Equal(t, types.NewStereoSample(0.5, -0.5), buf[0])

	g.ControlSetParamByIndex(0, 0)
	buf[0] = types.NewStereoSample(1, 1)
	g.TransformAudio(buf)
	assert.Equal(t, types.SilentStereoSample, buf[0])
}

func TestBitcrusherQuantizes(t *testing.T) {
	b := NewBitcrusher(2)
	buf := []types.StereoSample{types.NewStereoSample(0.3, -0.3)}
	b.TransformAudio(buf)
	// Two bits leaves steps of 0.5.
	assert.Equal(t, types.Sample(0.5), buf[0].Left)
	assert.Equal(t, types.Sample(-0.5), buf[0].Right)

	assert.Equal(t, 1, NewBitcrusher(-5).Bits)
	assert.Equal(t, 16, NewBitcrusher(99).Bits)
}

func TestLowPassFilterPassesDC(t *testing.T) {
	f := NewLowPassFilter(1000.0, math.Sqrt2/2.0)
	f.UpdateSampleRate(44100)

	buf := make([]types.StereoSample, 4410)
	for i := range buf {
		buf[i] = types.NewStereoSample(1, 1)
	}
	f.TransformAudio(buf)
	last := buf[len(buf)-1]
	assert.InDelta(t, 1.0, float64(last.Left), 1e-3)
	assert.InDelta(t, 1.0, float64(last.Right), 1e-3)
}

func TestLowPassFilterAttenuatesNyquist(t *testing.T) {
	f := NewLowPassFilter(200.0, math.Sqrt2/2.0)
	f.UpdateSampleRate(44100)

	buf := make([]types.StereoSample, 4410)
	for i := range buf {
		v := types.Sample(1)
		if i%2 == 1 {
			v = -1
		}
		buf[i] = types.StereoSampleFromMono(v)
	}
	f.TransformAudio(buf)
	// After settling, the alternating signal is nearly gone.
	for _, v := range buf[4000:] {
		assert.Less(t, math.Abs(float64(v.Left)), 0.01)
	}
}

func TestLowPassFilterCutoffAutomation(t *testing.T) {
	f := NewLowPassFilter(1000.0, math.Sqrt2/2.0)
	f.ControlSetParamByIndex(LowPassFilterParamCutoff, 0)
	assert.InDelta(t, filterCutoffMin, float64(f.Cutoff), 1e-9)
	f.ControlSetParamByIndex(LowPassFilterParamCutoff, 1)
	assert.InDelta(t, filterCutoffMax, float64(f.Cutoff), 1e-3)
}

func TestTimerFinishesAfterDuration(t *testing.T) {
	timer := NewTimer(types.OneBeat)
	timer.Play()
	timer.UpdateTimeRange(types.NewTimeRange(types.TimeZero, types.OnePart))
	assert.False(t, timer.IsFinished())
	timer.UpdateTimeRange(types.NewTimeRange(types.OneBeat, types.BeatsToUnits(2)))
	assert.True(t, timer.IsFinished())
}

func TestTriggerFiresOnce(t *testing.T) {
	trigger := NewTrigger(types.OneBeat, types.NormalMax)
	trigger.Play()

	var values []types.ControlValue
	collect := func(e types.WorkEvent) { values = append(values, e.Value) }

	trigger.UpdateTimeRange(types.NewTimeRange(types.TimeZero, types.OnePart))
	trigger.Work(collect)
	assert.Empty(t, values)
	assert.False(t, trigger.IsFinished())

	trigger.UpdateTimeRange(types.NewTimeRange(types.OneBeat, types.BeatsToUnits(2)))
	trigger.Work(collect)
	require.Len(t, values, 1)
	assert.Equal(t, types.NormalMax, values[0])
	assert.True(t, trigger.IsFinished())

	trigger.Work(collect)
	assert.Len(t, values, 1, "a trigger fires exactly once per performance")

	trigger.SkipToStart()
	trigger.Play()
	trigger.UpdateTimeRange(types.NewTimeRange(types.OneBeat, types.BeatsToUnits(2)))
	trigger.Work(collect)
	assert.Len(t, values, 2, "rewinding re-arms the trigger")
}

func TestRegistryBuildsEveryKey(t *testing.T) {
	for _, key := range engine.RegisteredEntityKeys() {
		entity, ok := engine.NewRegisteredEntity(key)
		require.True(t, ok, "key %s", key)
		assert.Equal(t, key, entity.Key(), "registry key must match the entity's own key")
	}
}
