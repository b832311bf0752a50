package types

import (
	"gitlab.com/gomidi/midi/v2"
)

// MidiChannel is a MIDI 1.0 channel, 0-15.
type MidiChannel uint8

const (
	MidiChannelMin MidiChannel = 0
	MidiChannelMax MidiChannel = 15
)

// MidiMessagesFn receives MIDI messages produced during a work cycle,
// e.g. to forward them to an external device.
type MidiMessagesFn func(channel MidiChannel, message midi.Message)

// WorkEventKind discriminates WorkEvent payloads.
type WorkEventKind int

const (
	// WorkEventMidi is a channel-scoped MIDI message with no known
	// originating track. The Project refuses these; producers inside a
	// track must tag events with WorkEventMidiForTrack.
	WorkEventMidi WorkEventKind = iota
	// WorkEventMidiForTrack is a MIDI message known to belong to a
	// track, so the Project can confine routing to that track's
	// entities.
	WorkEventMidiForTrack
	// WorkEventControl is a control value produced by an automation
	// source.
	WorkEventControl
)

// WorkEvent is anything an entity can produce during Work().
type WorkEvent struct {
	Kind    WorkEventKind
	Track   TrackUid
	Channel MidiChannel
	Message midi.Message
	Value   ControlValue
}

func MidiWorkEvent(channel MidiChannel, message midi.Message) WorkEvent {
	return WorkEvent{Kind: WorkEventMidi, Channel: channel, Message: message}
}

func MidiForTrackWorkEvent(track TrackUid, channel MidiChannel, message midi.Message) WorkEvent {
	return WorkEvent{Kind: WorkEventMidiForTrack, Track: track, Channel: channel, Message: message}
}

func ControlWorkEvent(value ControlValue) WorkEvent {
	return WorkEvent{Kind: WorkEventControl, Value: value}
}

// WorkEventsFn receives events emitted during a work cycle.
type WorkEventsFn func(WorkEvent)

// ControlIndex addresses one automatable parameter of a Controllable.
type ControlIndex int
