package composition

import (
	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/minidaw/internal/types"
)

// DefaultVelocity is used when a note doesn't carry its own.
const DefaultVelocity uint8 = 127

// RestKey marks a rest in NoteSequence input.
const RestKey uint8 = 255

// Note is a MIDI key sounding over a half-open time window.
type Note struct {
	Key      uint8           `json:"key"`
	Extent   types.TimeRange `json:"extent"`
	Velocity uint8           `json:"velocity"`
}

func NewNote(key uint8, start, duration types.MusicalTime) Note {
	return Note{
		Key:      key,
		Extent:   types.NewTimeRange(start, start.Add(duration)),
		Velocity: DefaultVelocity,
	}
}

func (n Note) Duration() types.MusicalTime { return n.Extent.Duration() }

// MidiEvent is a MIDI message anchored to a musical time.
type MidiEvent struct {
	Time    types.MusicalTime `json:"time"`
	Message midi.Message      `json:"message"`
}

// Events expands the note into its on/off pair for a channel.
func (n Note) Events(channel types.MidiChannel) []MidiEvent {
	velocity := n.Velocity
	if velocity == 0 {
		velocity = DefaultVelocity
	}
	return []MidiEvent{
		{Time: n.Extent.Start, Message: midi.NoteOn(uint8(channel), n.Key, velocity)},
		{Time: n.Extent.End, Message: midi.NoteOff(uint8(channel), n.Key)},
	}
}
