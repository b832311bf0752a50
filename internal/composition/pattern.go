package composition

import (
	"fmt"

	"github.com/schollz/minidaw/internal/types"
)

// ColorScheme is a UI hint for drawing a pattern. It travels with the
// pattern through saves but never affects audio.
type ColorScheme int

const ColorSchemeCount = 8

// Pattern is a time-signatured collection of notes. Its extent is
// cached and always spans a whole number of bars; an empty pattern is
// one bar long.
type Pattern struct {
	TimeSignature types.TimeSignature `json:"time_signature"`
	Notes         []Note              `json:"notes"`
	ColorScheme   ColorScheme         `json:"color_scheme"`

	extent types.TimeRange
}

func NewPattern(ts types.TimeSignature) *Pattern {
	p := &Pattern{TimeSignature: ts}
	p.refreshInternals()
	return p
}

// NewPatternWithNotes builds a pattern and adds the given notes.
func NewPatternWithNotes(ts types.TimeSignature, notes ...Note) *Pattern {
	p := NewPattern(ts)
	for _, n := range notes {
		p.AddNote(n)
	}
	return p
}

func (p *Pattern) Extent() types.TimeRange { return p.extent }

// Duration is the bar-rounded length of the pattern.
func (p *Pattern) Duration() types.MusicalTime { return p.extent.Duration() }

func (p *Pattern) NoteCount() int { return len(p.Notes) }

// refreshInternals recalculates the cached extent: the last event
// time rounded up to the next bar. A note-off exactly on a bar
// boundary does not extend the pattern by another bar, which is why
// one unit is shaved off the final event time before rounding.
func (p *Pattern) refreshInternals() {
	var finalEventTime types.MusicalTime
	for _, n := range p.Notes {
		if n.Extent.End > finalEventTime {
			finalEventTime = n.Extent.End
		}
	}
	if finalEventTime != types.TimeZero {
		finalEventTime -= types.OneUnit
	}
	beats := finalEventTime.TotalBeats()
	top := p.TimeSignature.Top
	roundedUpBars := (beats + top) / top
	p.extent = types.NewTimeRange(types.TimeZero, types.BarsToUnits(p.TimeSignature, roundedUpBars))
}

// AddNote appends without checking for duplicates. Notes may arrive
// in any time order.
func (p *Pattern) AddNote(note Note) {
	p.Notes = append(p.Notes, note)
	p.refreshInternals()
}

// RemoveNote removes all notes matching the given one.
func (p *Pattern) RemoveNote(note Note) {
	kept := p.Notes[:0]
	for _, n := range p.Notes {
		if n != note {
			kept = append(kept, n)
		}
	}
	p.Notes = kept
	p.refreshInternals()
}

// ToggleNote adds the note if absent, removes it if present.
func (p *Pattern) ToggleNote(note Note) {
	for _, n := range p.Notes {
		if n == note {
			p.RemoveNote(note)
			return
		}
	}
	p.AddNote(note)
}

// Clear removes every note.
func (p *Pattern) Clear() {
	p.Notes = p.Notes[:0]
	p.refreshInternals()
}

// MoveNote gives matching notes a new start, preserving duration.
func (p *Pattern) MoveNote(note Note, newStart types.MusicalTime) (Note, error) {
	updated := note
	updated.Extent = types.NewTimeRange(newStart, newStart.Add(note.Duration()))
	return p.ReplaceNote(note, updated)
}

// MoveAndResizeNote gives matching notes a new start and duration.
func (p *Pattern) MoveAndResizeNote(note Note, newStart, duration types.MusicalTime) (Note, error) {
	updated := note
	updated.Extent = types.NewTimeRange(newStart, newStart.Add(duration))
	return p.ReplaceNote(note, updated)
}

// ChangeNoteKey gives matching notes a new key.
func (p *Pattern) ChangeNoteKey(note Note, newKey uint8) (Note, error) {
	updated := note
	updated.Key = newKey
	return p.ReplaceNote(note, updated)
}

// ReplaceNote swaps all notes matching note for newNote, returning
// the new version if any matched.
func (p *Pattern) ReplaceNote(note, newNote Note) (Note, error) {
	found := false
	for i := range p.Notes {
		if p.Notes[i] == note {
			p.Notes[i] = newNote
			found = true
		}
	}
	if !found {
		return Note{}, fmt.Errorf("replace note: couldn't find note %+v", note)
	}
	p.refreshInternals()
	return newNote, nil
}

// NoteSequence places one note per key at a spacing of 1/gridValue
// beats, starting at time zero. A key of 255 is a rest. A gridValue
// of zero uses the time signature's bottom, so a 4/4 pattern gets a
// step of a quarter beat (sixteenth notes).
func (p *Pattern) NoteSequence(keys []uint8, gridValue int) *Pattern {
	if gridValue == 0 {
		gridValue = p.TimeSignature.Bottom
	}
	delta := types.MusicalTime(float64(types.UnitsInBeat)/float64(gridValue) + 0.5)
	position := types.TimeZero
	for _, key := range keys {
		if key != RestKey {
			p.AddNote(NewNote(key, position, delta))
		}
		position = position.Add(delta)
	}
	return p
}

// ShiftRight returns a copy with every note translated later by rhs.
func (p *Pattern) ShiftRight(rhs types.MusicalTime) *Pattern {
	out := NewPattern(p.TimeSignature)
	out.ColorScheme = p.ColorScheme
	for _, n := range p.Notes {
		moved := n
		moved.Extent = n.Extent.Translate(rhs)
		out.Notes = append(out.Notes, moved)
	}
	out.refreshInternals()
	return out
}

// Events flattens the pattern into channel-tagged MIDI events.
func (p *Pattern) Events(channel types.MidiChannel) []MidiEvent {
	var events []MidiEvent
	for _, n := range p.Notes {
		events = append(events, n.Events(channel)...)
	}
	return events
}

// AfterLoad rebuilds the cached extent.
func (p *Pattern) AfterLoad() { p.refreshInternals() }
