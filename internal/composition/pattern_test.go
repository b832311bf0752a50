package composition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/minidaw/internal/types"
)

func TestEmptyPatternIsOneBarLong(t *testing.T) {
	p := NewPattern(types.CommonTime)
	assert.Equal(t, types.TimeZero, p.Extent().Start)
	assert.Equal(t, types.BarsToUnits(types.CommonTime, 1), p.Extent().End)
}

func TestPatternExtentRoundsUpToWholeBars(t *testing.T) {
	ts := types.CommonTime
	tests := []struct {
		name     string
		noteEnd  types.MusicalTime
		wantBars int
	}{
		{"note inside first bar", types.OneBeat, 1},
		{"note ends exactly on bar boundary", types.BarsToUnits(ts, 1), 1},
		{"note ends one unit past the bar", types.BarsToUnits(ts, 1) + 1, 2},
		{"note ends mid second bar", types.BarsToUnits(ts, 1) + types.OneBeat, 2},
		{"note ends exactly on second bar", types.BarsToUnits(ts, 2), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPattern(ts)
			p.AddNote(Note{Key: 60, Extent: types.NewTimeRange(types.TimeZero, tt.noteEnd), Velocity: 127})
			assert.Equal(t, types.BarsToUnits(ts, tt.wantBars), p.Extent().End)
		})
	}
}

func TestPatternExtentOtherTimeSignature(t *testing.T) {
	ts, err := types.NewTimeSignature(3, 4)
	require.NoError(t, err)
	p := NewPattern(ts)
	assert.Equal(t, types.BeatsToUnits(3), p.Extent().End)

	p.AddNote(NewNote(60, types.BeatsToUnits(3), types.OneBeat))
	assert.Equal(t, types.BeatsToUnits(6), p.Extent().End)
}

func TestPatternNoteOperations(t *testing.T) {
	p := NewPattern(types.CommonTime)
	note := NewNote(60, types.TimeZero, types.DurationEighth)

	p.AddNote(note)
	assert.Equal(t, 1, p.NoteCount())

	p.ToggleNote(note)
	assert.Equal(t, 0, p.NoteCount())
	p.ToggleNote(note)
	assert.Equal(t, 1, p.NoteCount())

	moved, err := p.MoveNote(note, types.OneBeat)
	require.NoError(t, err)
	assert.Equal(t, types.OneBeat, moved.Extent.Start)
	assert.Equal(t, types.DurationEighth, moved.Duration())

	resized, err := p.MoveAndResizeNote(moved, types.TimeZero, types.OneBeat)
	require.NoError(t, err)
	assert.Equal(t, types.OneBeat, resized.Duration())

	rekeyed, err := p.ChangeNoteKey(resized, 64)
	require.NoError(t, err)
	assert.Equal(t, uint8(64), rekeyed.Key)

	_, err = p.MoveNote(note, types.TimeZero) // stale note
	assert.Error(t, err)

	p.RemoveNote(rekeyed)
	assert.Equal(t, 0, p.NoteCount())
	assert.Equal(t, types.BarsToUnits(types.CommonTime, 1), p.Extent().End)
}

func TestPatternNoteSequence(t *testing.T) {
	// With the default grid, sixteen quarter-beat (sixteenth-note)
	// slots fill one 4/4 bar.
	p := NewPattern(types.CommonTime).NoteSequence([]uint8{
		60, RestKey, 62, RestKey,
		64, RestKey, 65, RestKey,
		67, RestKey, 69, RestKey,
		71, RestKey, 72, RestKey,
	}, 0)
	assert.Equal(t, 8, p.NoteCount())
	assert.Equal(t, types.BarsToUnits(types.CommonTime, 1), p.Extent().End)

	// Grid value 16 packs the same notes into sixteenth-of-a-beat
	// steps.
	p16 := NewPattern(types.CommonTime).NoteSequence([]uint8{60, 62, 64, 65}, 16)
	require.Equal(t, 4, p16.NoteCount())
	assert.Equal(t, types.UnitsInBeat/16, int(p16.Notes[1].Extent.Start))
}

func TestPatternShiftRight(t *testing.T) {
	p := NewPatternWithNotes(types.CommonTime, NewNote(60, types.TimeZero, types.OneBeat))
	shifted := p.ShiftRight(types.OneBeat)
	assert.Equal(t, types.OneBeat, shifted.Notes[0].Extent.Start)
	// The original is untouched.
	assert.Equal(t, types.TimeZero, p.Notes[0].Extent.Start)
}

func TestNoteEvents(t *testing.T) {
	n := NewNote(69, types.TimeZero, types.DurationEighth)
	events := n.Events(0)
	require.Len(t, events, 2)
	assert.Equal(t, types.TimeZero, events[0].Time)
	assert.Equal(t, types.MusicalTime(types.DurationEighth), events[1].Time)

	var ch, key, vel uint8
	require.True(t, events[0].Message.GetNoteStart(&ch, &key, &vel))
	assert.Equal(t, uint8(69), key)
	assert.Equal(t, uint8(127), vel)
	require.True(t, events[1].Message.GetNoteEnd(&ch, &key))
	assert.Equal(t, uint8(69), key)
}

func TestPatternEventsChannel(t *testing.T) {
	p := NewPatternWithNotes(types.CommonTime, NewNote(60, types.TimeZero, types.OneBeat))
	events := p.Events(5)
	require.Len(t, events, 2)
	var ch, key, vel uint8
	require.True(t, events[0].Message.GetNoteStart(&ch, &key, &vel))
	assert.Equal(t, uint8(5), ch)
}

func TestMidiMessageRoundTrip(t *testing.T) {
	msg := midi.NoteOn(3, 64, 100)
	var ch, key, vel uint8
	require.True(t, msg.GetNoteStart(&ch, &key, &vel))
	assert.Equal(t, uint8(3), ch)
	assert.Equal(t, uint8(64), key)
	assert.Equal(t, uint8(100), vel)
}
