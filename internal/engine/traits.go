// Package engine holds the orchestration core: the capability
// interfaces every entity satisfies, the transport, per-track MIDI
// routing, the track/entity registries, the mixing orchestrator, and
// the Project façade that ties them together.
package engine

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/minidaw/internal/types"
)

// Configurable receives the ambient performance settings.
type Configurable interface {
	SampleRate() types.SampleRate
	UpdateSampleRate(types.SampleRate)
	Tempo() types.Tempo
	UpdateTempo(types.Tempo)
	TimeSignature() types.TimeSignature
	UpdateTimeSignature(types.TimeSignature)
	Reset()
}

// Controls is the time-driven side of an entity: the transport tells
// it which slice of musical time is being worked, and it emits
// whatever events belong to that slice.
type Controls interface {
	UpdateTimeRange(types.TimeRange)
	Work(emit types.WorkEventsFn)
	IsFinished() bool
	Play()
	Stop()
	SkipToStart()
}

// HandlesMidi is a MIDI sink. Responses (e.g. an arpeggiator's
// generated notes) go out through send.
type HandlesMidi interface {
	HandleMidiMessage(channel types.MidiChannel, message midi.Message, send types.MidiMessagesFn)
}

// Generator produces audio into a caller-supplied buffer. The return
// value reports whether anything nonsilent was generated.
type Generator interface {
	Generate(values []types.StereoSample) bool
}

// Transformer changes audio in place.
type Transformer interface {
	TransformAudio(values []types.StereoSample)
}

// Controllable exposes automatable parameters addressable by stable
// integer index.
type Controllable interface {
	ControlIndexCount() int
	ControlName(index types.ControlIndex) string
	ControlIndex(name string) (types.ControlIndex, bool)
	ControlSetParamByIndex(index types.ControlIndex, value types.ControlValue)
}

// Serializable hooks run around persistence: BeforeSave collects
// ephemeral state into persisted fields, AfterLoad rebuilds caches.
type Serializable interface {
	BeforeSave()
	AfterLoad()
}

// Entity is a polymorphic musical unit: one or more of controller,
// instrument, and effect. Every entity carries a uid, a stable key
// naming its kind, and a human-readable name.
type Entity interface {
	Uid() types.Uid
	SetUid(types.Uid)
	Key() string
	Name() string

	// Role predicates drive the orchestrator's signal chain.
	IsController() bool
	IsInstrument() bool
	IsEffect() bool

	Configurable
	Controls
	HandlesMidi
	Generator
	Transformer
	Controllable
	Serializable
}

// Config holds the ambient settings and satisfies the read side of
// Configurable. Entities embed it and shadow the update methods they
// care about.
type Config struct {
	sampleRate    types.SampleRate
	tempo         types.Tempo
	timeSignature types.TimeSignature
}

func (c *Config) SampleRate() types.SampleRate {
	if c.sampleRate == 0 {
		return types.DefaultSampleRate
	}
	return c.sampleRate
}

func (c *Config) UpdateSampleRate(rate types.SampleRate) {
	c.sampleRate = types.NewSampleRate(int(rate))
}

func (c *Config) Tempo() types.Tempo {
	if c.tempo == 0 {
		return types.TempoDefault
	}
	return c.tempo
}

func (c *Config) UpdateTempo(tempo types.Tempo) { c.tempo = tempo }

func (c *Config) TimeSignature() types.TimeSignature {
	if c.timeSignature.Top == 0 {
		return types.CommonTime
	}
	return c.timeSignature
}

func (c *Config) UpdateTimeSignature(ts types.TimeSignature) { c.timeSignature = ts }

func (c *Config) Reset() {}

// BaseEntity supplies uid bookkeeping and no-op defaults for every
// capability, so concrete entities only implement what they do.
type BaseEntity struct {
	Config
	uid types.Uid
}

func (b *BaseEntity) Uid() types.Uid       { return b.uid }
func (b *BaseEntity) SetUid(uid types.Uid) { b.uid = uid }

func (b *BaseEntity) IsController() bool { return false }
func (b *BaseEntity) IsInstrument() bool { return false }
func (b *BaseEntity) IsEffect() bool     { return false }

func (b *BaseEntity) UpdateTimeRange(types.TimeRange) {}
func (b *BaseEntity) Work(types.WorkEventsFn)         {}
func (b *BaseEntity) IsFinished() bool                { return true }
func (b *BaseEntity) Play()                           {}
func (b *BaseEntity) Stop()                           {}
func (b *BaseEntity) SkipToStart()                    {}

func (b *BaseEntity) HandleMidiMessage(types.MidiChannel, midi.Message, types.MidiMessagesFn) {}

func (b *BaseEntity) Generate([]types.StereoSample) bool  { return false }
func (b *BaseEntity) TransformAudio([]types.StereoSample) {}

func (b *BaseEntity) ControlIndexCount() int                { return 0 }
func (b *BaseEntity) ControlName(types.ControlIndex) string { return "" }
func (b *BaseEntity) ControlIndex(string) (types.ControlIndex, bool) {
	return 0, false
}
func (b *BaseEntity) ControlSetParamByIndex(types.ControlIndex, types.ControlValue) {}

func (b *BaseEntity) BeforeSave() {}
func (b *BaseEntity) AfterLoad() {}
