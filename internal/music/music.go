package music

import (
	"fmt"
	"strings"

	"github.com/schollz/minidaw/internal/types"
)

// MidiToNoteName converts a MIDI key number (0-127) to a note name
// like "c-4" or "a#2". MIDI note 60 = C4. Natural notes keep a minus
// separator so every name is exactly 3 characters.
func MidiToNoteName(midiNote int) string {
	if midiNote < 0 || midiNote > 127 {
		return "---"
	}

	noteNames := []string{"c", "c#", "d", "d#", "e", "f", "f#", "g", "g#", "a", "a#", "b"}

	// MIDI note 12 = C0
	octave := (midiNote / 12) - 1
	noteName := noteNames[midiNote%12]

	if strings.Contains(noteName, "#") {
		if octave < 0 {
			return fmt.Sprintf("%s%d", noteName, -octave)
		}
		return fmt.Sprintf("%s%d", noteName, octave)
	}
	if octave < 0 {
		return fmt.Sprintf("%s-%d", noteName, -octave)
	}
	return fmt.Sprintf("%s-%d", noteName, octave)
}

// NoteNameToMidi parses names produced by MidiToNoteName back to a
// key number. Returns -1 if the name doesn't parse. A '-' after the
// pitch is read as the separator, so octave -1 names (keys 0-11)
// parse as octave 1.
func NoteNameToMidi(name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == "---" {
		return -1
	}

	noteNames := map[string]int{
		"c": 0, "c#": 1, "d": 2, "d#": 3, "e": 4, "f": 5,
		"f#": 6, "g": 7, "g#": 8, "a": 9, "a#": 10, "b": 11,
	}

	var pitch string
	var rest string
	if len(name) >= 2 && name[1] == '#' {
		pitch, rest = name[:2], name[2:]
	} else {
		pitch, rest = name[:1], name[1:]
	}
	semitone, ok := noteNames[pitch]
	if !ok {
		return -1
	}

	rest = strings.TrimPrefix(rest, "-")
	var octave int
	if _, err := fmt.Sscanf(rest, "%d", &octave); err != nil {
		return -1
	}

	key := (octave+1)*12 + semitone
	if key < 0 || key > 127 {
		return -1
	}
	return key
}

// KeyFrequency is the equal-temperament frequency of a MIDI key.
func KeyFrequency(key uint8) types.FrequencyHz {
	return types.FrequencyFromMidiKey(key)
}
