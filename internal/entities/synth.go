// Package entities holds the built-in entity implementations and
// registers them with the engine's entity registry.
package entities

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/minidaw/internal/dsp"
	"github.com/schollz/minidaw/internal/engine"
	"github.com/schollz/minidaw/internal/music"
	"github.com/schollz/minidaw/internal/types"
)

const toneSynthVoices = 8

// ToneSynth control parameter indexes.
const (
	ToneSynthParamWaveform = types.ControlIndex(iota)
	ToneSynthParamAttack
	ToneSynthParamDecay
	ToneSynthParamSustain
	ToneSynthParamRelease
	ToneSynthParamGain
)

// voice pairs one oscillator with one envelope.
type voice struct {
	oscillator *dsp.Oscillator
	envelope   *dsp.Envelope
	key        uint8
	active     bool

	// pendingKey is a note waiting for the envelope's shutdown ramp
	// to finish after this voice was stolen.
	pendingKey      uint8
	pendingVelocity uint8
	hasPending      bool

	oscBuf []types.BipolarNormal
	envBuf []types.Normal
}

func (v *voice) start(key, velocity uint8) {
	v.key = key
	v.active = true
	v.oscillator.SetFrequency(music.KeyFrequency(key))
	v.envelope.TriggerAttack()
	_ = velocity // velocity-to-amplitude mapping is a deliberate no-op for now
}

// ToneSynth is a polyphonic subtractive-style synth voice bank: one
// oscillator through one ADSR per voice, summed to mono and spread
// to both channels.
type ToneSynth struct {
	engine.BaseEntity
	Waveform dsp.Waveform `json:"waveform"`
	Attack   types.Normal `json:"attack"`
	Decay    types.Normal `json:"decay"`
	Sustain  types.Normal `json:"sustain"`
	Release  types.Normal `json:"release"`
	Gain     types.Normal `json:"gain"`

	voices []*voice
}

func NewToneSynth() *ToneSynth {
	s := &ToneSynth{
		Waveform: dsp.WaveformSine,
		Attack:   0.002,
		Decay:    0.005,
		Sustain:  0.8,
		Release:  0.01,
		Gain:     0.8,
	}
	s.rebuildVoices()
	return s
}

func (s *ToneSynth) rebuildVoices() {
	s.voices = make([]*voice, toneSynthVoices)
	for i := range s.voices {
		s.voices[i] = &voice{
			oscillator: dsp.NewOscillator(s.Waveform, types.DefaultFrequency),
			envelope:   dsp.NewEnvelope(s.Attack, s.Decay, s.Sustain, s.Release),
		}
	}
}

func (s *ToneSynth) Key() string  { return "tone-synth" }
func (s *ToneSynth) Name() string { return "Tone Synth" }

func (s *ToneSynth) IsInstrument() bool { return true }

func (s *ToneSynth) UpdateSampleRate(rate types.SampleRate) {
	s.BaseEntity.UpdateSampleRate(rate)
	for _, v := range s.voices {
		v.oscillator.UpdateSampleRate(rate)
		v.envelope.UpdateSampleRate(rate)
	}
}

func (s *ToneSynth) Reset() {
	for _, v := range s.voices {
		v.oscillator.Reset()
		v.envelope.Reset()
		v.active = false
		v.hasPending = false
	}
}

// allocateVoice prefers an idle voice; otherwise it steals the first
// one, letting the shutdown ramp finish before the new note starts.
func (s *ToneSynth) allocateVoice(key, velocity uint8) {
	for _, v := range s.voices {
		if v.active && v.key == key {
			v.start(key, velocity)
			return
		}
	}
	for _, v := range s.voices {
		if !v.active && v.envelope.IsIdle() {
			v.start(key, velocity)
			return
		}
	}
	victim := s.voices[0]
	victim.envelope.TriggerShutdown()
	victim.pendingKey = key
	victim.pendingVelocity = velocity
	victim.hasPending = true
	victim.active = false
}

func (s *ToneSynth) HandleMidiMessage(channel types.MidiChannel, message midi.Message, send types.MidiMessagesFn) {
	var ch, key, velocity uint8
	switch {
	case message.GetNoteStart(&ch, &key, &velocity):
		s.allocateVoice(key, velocity)
	case message.GetNoteEnd(&ch, &key):
		for _, v := range s.voices {
			if v.active && v.key == key {
				v.envelope.TriggerRelease()
				v.active = false
			}
		}
	}
}

func (s *ToneSynth) Generate(values []types.StereoSample) bool {
	n := len(values)
	generated := false
	for _, v := range s.voices {
		if v.hasPending && v.envelope.IsIdle() {
			v.start(v.pendingKey, v.pendingVelocity)
			v.hasPending = false
		}
		if !v.active && v.envelope.IsIdle() {
			continue
		}
		if cap(v.oscBuf) < n {
			v.oscBuf = make([]types.BipolarNormal, n)
			v.envBuf = make([]types.Normal, n)
		}
		v.oscBuf = v.oscBuf[:n]
		v.envBuf = v.envBuf[:n]
		v.oscillator.Waveform = s.Waveform
		v.oscillator.Generate(v.oscBuf)
		v.envelope.Generate(v.envBuf)
		for i := range values {
			mono := types.Sample(float64(v.oscBuf[i]) * float64(v.envBuf[i]) * float64(s.Gain))
			if mono != 0 {
				generated = true
			}
			values[i] = values[i].Add(types.StereoSampleFromMono(mono))
		}
	}
	return generated
}

func (s *ToneSynth) ControlIndexCount() int { return 6 }

func (s *ToneSynth) ControlName(index types.ControlIndex) string {
	switch index {
	case ToneSynthParamWaveform:
		return "waveform"
	case ToneSynthParamAttack:
		return "attack"
	case ToneSynthParamDecay:
		return "decay"
	case ToneSynthParamSustain:
		return "sustain"
	case ToneSynthParamRelease:
		return "release"
	case ToneSynthParamGain:
		return "gain"
	default:
		return ""
	}
}

func (s *ToneSynth) ControlIndex(name string) (types.ControlIndex, bool) {
	for i := 0; i < s.ControlIndexCount(); i++ {
		if s.ControlName(types.ControlIndex(i)) == name {
			return types.ControlIndex(i), true
		}
	}
	return 0, false
}

func (s *ToneSynth) ControlSetParamByIndex(index types.ControlIndex, value types.ControlValue) {
	switch index {
	case ToneSynthParamWaveform:
		s.Waveform = dsp.WaveformFromControlValue(value)
	case ToneSynthParamAttack:
		s.Attack = value
	case ToneSynthParamDecay:
		s.Decay = value
	case ToneSynthParamSustain:
		s.Sustain = value
	case ToneSynthParamRelease:
		s.Release = value
	case ToneSynthParamGain:
		s.Gain = value
	}
	s.applyEnvelopeParams()
}

func (s *ToneSynth) applyEnvelopeParams() {
	for _, v := range s.voices {
		v.envelope.Attack = s.Attack
		v.envelope.Decay = s.Decay
		v.envelope.Sustain = s.Sustain
		v.envelope.Release = s.Release
	}
}

func (s *ToneSynth) AfterLoad() {
	s.rebuildVoices()
}

func init() {
	engine.RegisterEntity("tone-synth", func() engine.Entity { return NewToneSynth() })
}
