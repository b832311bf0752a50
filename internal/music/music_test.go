package music

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMidiToNoteName(t *testing.T) {
	tests := []struct {
		note int
		want string
	}{
		{60, "c-4"},
		{69, "a-4"},
		{61, "c#4"},
		{21, "a-0"},
		{0, "c-1"}, // negative octave keeps 3 chars
		{1, "c#1"}, // sharp in negative octave drops the minus
		{127, "g-9"},
		{-1, "---"},
		{128, "---"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MidiToNoteName(tt.note), "note %d", tt.note)
	}
}

func TestNoteNameToMidiRoundTrip(t *testing.T) {
	// The compact display form reuses '-' as both separator and sign,
	// so octave -1 names collide with positive octaves; start at C0.
	for note := 12; note <= 127; note++ {
		name := MidiToNoteName(note)
		assert.Equal(t, note, NoteNameToMidi(name), "name %s", name)
	}
	assert.Equal(t, -1, NoteNameToMidi(""))
	assert.Equal(t, -1, NoteNameToMidi("---"))
	assert.Equal(t, -1, NoteNameToMidi("x-4"))
}

func TestKeyFrequency(t *testing.T) {
	assert.InDelta(t, 440.0, float64(KeyFrequency(69)), 1e-9)
	assert.InDelta(t, 880.0, float64(KeyFrequency(81)), 1e-9)
}
