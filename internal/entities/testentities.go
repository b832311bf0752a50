package entities

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/minidaw/internal/engine"
	"github.com/schollz/minidaw/internal/types"
)

// Constant-source levels used across the engine's tests.
const (
	TestAudioSourceSilent types.Sample = 0.0
	TestAudioSourceQuiet  types.Sample = 0.25
	TestAudioSourceMedium types.Sample = 0.5
	TestAudioSourceLoud   types.Sample = 1.0
)

// TestAudioSource is an instrument that emits a constant level on
// both channels. Useful for verifying signal flow arithmetic.
type TestAudioSource struct {
	engine.BaseEntity
	Level types.Sample `json:"level"`
}

func NewTestAudioSource(level types.Sample) *TestAudioSource {
	return &TestAudioSource{Level: level}
}

func (s *TestAudioSource) Key() string  { return "test-audio-source" }
func (s *TestAudioSource) Name() string { return "Test Audio Source" }

func (s *TestAudioSource) IsInstrument() bool { return true }

func (s *TestAudioSource) Generate(values []types.StereoSample) bool {
	for i := range values {
		values[i] = types.StereoSampleFromMono(s.Level)
	}
	return s.Level != 0
}

// TestControllerAlwaysSendsMidiMessage emits one note-on per work
// cycle, forever. It never finishes.
type TestControllerAlwaysSendsMidiMessage struct {
	engine.BaseEntity
	Channel types.MidiChannel `json:"channel"`

	isPerforming bool
}

func NewTestControllerAlwaysSendsMidiMessage(channel types.MidiChannel) *TestControllerAlwaysSendsMidiMessage {
	return &TestControllerAlwaysSendsMidiMessage{Channel: channel}
}

func (c *TestControllerAlwaysSendsMidiMessage) Key() string {
	return "test-controller-always-sends-midi"
}
func (c *TestControllerAlwaysSendsMidiMessage) Name() string { return "Test MIDI Controller" }

func (c *TestControllerAlwaysSendsMidiMessage) IsController() bool { return true }

func (c *TestControllerAlwaysSendsMidiMessage) Work(emit types.WorkEventsFn) {
	if c.isPerforming {
		emit(types.MidiWorkEvent(c.Channel, midi.NoteOn(uint8(c.Channel), 60, 127)))
	}
}

func (c *TestControllerAlwaysSendsMidiMessage) IsFinished() bool { return false }
func (c *TestControllerAlwaysSendsMidiMessage) Play()            { c.isPerforming = true }
func (c *TestControllerAlwaysSendsMidiMessage) Stop()            { c.isPerforming = false }

// TestControllerSendsOneEvent emits exactly one maximal control
// value, then stays quiet.
type TestControllerSendsOneEvent struct {
	engine.BaseEntity

	sent bool
}

func NewTestControllerSendsOneEvent() *TestControllerSendsOneEvent {
	return &TestControllerSendsOneEvent{}
}

func (c *TestControllerSendsOneEvent) Key() string  { return "test-controller-sends-one-event" }
func (c *TestControllerSendsOneEvent) Name() string { return "Test One-Shot Controller" }

func (c *TestControllerSendsOneEvent) IsController() bool { return true }

func (c *TestControllerSendsOneEvent) Work(emit types.WorkEventsFn) {
	if !c.sent {
		c.sent = true
		emit(types.ControlWorkEvent(types.NormalMax))
	}
}

func (c *TestControllerSendsOneEvent) SkipToStart() { c.sent = false }

// TestEffectNegatesInput flips the sign of everything it hears.
type TestEffectNegatesInput struct {
	engine.BaseEntity
}

func NewTestEffectNegatesInput() *TestEffectNegatesInput {
	return &TestEffectNegatesInput{}
}

func (e *TestEffectNegatesInput) Key() string  { return "test-effect-negates-input" }
func (e *TestEffectNegatesInput) Name() string { return "Test Negating Effect" }

func (e *TestEffectNegatesInput) IsEffect() bool { return true }

func (e *TestEffectNegatesInput) TransformAudio(values []types.StereoSample) {
	for i := range values {
		values[i].Left = -values[i].Left
		values[i].Right = -values[i].Right
	}
}

// TestInstrumentCountsMidiMessages tallies everything it receives.
type TestInstrumentCountsMidiMessages struct {
	engine.BaseEntity

	MessageCount int `json:"-"`
}

func NewTestInstrumentCountsMidiMessages() *TestInstrumentCountsMidiMessages {
	return &TestInstrumentCountsMidiMessages{}
}

func (i *TestInstrumentCountsMidiMessages) Key() string  { return "test-instrument-counts-midi" }
func (i *TestInstrumentCountsMidiMessages) Name() string { return "Test Counting Instrument" }

func (i *TestInstrumentCountsMidiMessages) IsInstrument() bool { return true }

func (i *TestInstrumentCountsMidiMessages) HandleMidiMessage(types.MidiChannel, midi.Message, types.MidiMessagesFn) {
	i.MessageCount++
}

var (
	_ engine.Entity = (*ToneSynth)(nil)
	_ engine.Entity = (*Gain)(nil)
	_ engine.Entity = (*Bitcrusher)(nil)
	_ engine.Entity = (*LowPassFilter)(nil)
	_ engine.Entity = (*Timer)(nil)
	_ engine.Entity = (*Trigger)(nil)
	_ engine.Entity = (*TestAudioSource)(nil)
	_ engine.Entity = (*TestControllerAlwaysSendsMidiMessage)(nil)
	_ engine.Entity = (*TestControllerSendsOneEvent)(nil)
	_ engine.Entity = (*TestEffectNegatesInput)(nil)
	_ engine.Entity = (*TestInstrumentCountsMidiMessages)(nil)
)

func init() {
	engine.RegisterEntity("test-audio-source", func() engine.Entity {
		return NewTestAudioSource(TestAudioSourceSilent)
	})
	engine.RegisterEntity("test-controller-always-sends-midi", func() engine.Entity {
		return NewTestControllerAlwaysSendsMidiMessage(0)
	})
	engine.RegisterEntity("test-controller-sends-one-event", func() engine.Entity {
		return NewTestControllerSendsOneEvent()
	})
	engine.RegisterEntity("test-effect-negates-input", func() engine.Entity {
		return NewTestEffectNegatesInput()
	})
	engine.RegisterEntity("test-instrument-counts-midi", func() engine.Entity {
		return NewTestInstrumentCountsMidiMessages()
	})
}
