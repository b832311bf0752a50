package composition

import (
	"bytes"

	"github.com/schollz/minidaw/internal/types"
)

// ChannelEvent tags a MidiEvent with the channel it plays on.
type ChannelEvent struct {
	Channel types.MidiChannel `json:"channel"`
	Event   MidiEvent         `json:"event"`
}

// MidiSequencer holds a flat list of time-stamped MIDI events and
// emits the ones inside the current work slice.
type MidiSequencer struct {
	events       []ChannelEvent
	timeRange    types.TimeRange
	isRecording  bool
	isPerforming bool
	maxEventTime types.MusicalTime
}

func (s *MidiSequencer) Clear() {
	s.events = s.events[:0]
	s.maxEventTime = types.TimeZero
}

func (s *MidiSequencer) RecordEvent(channel types.MidiChannel, event MidiEvent) {
	s.events = append(s.events, ChannelEvent{Channel: channel, Event: event})
	if event.Time > s.maxEventTime {
		s.maxEventTime = event.Time
	}
}

func (s *MidiSequencer) RemoveEvent(channel types.MidiChannel, event MidiEvent) {
	kept := s.events[:0]
	for _, e := range s.events {
		if e.Channel == channel && e.Event.Time == event.Time &&
			bytes.Equal(e.Event.Message, event.Message) {
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	s.recalculateMaxTime()
}

func (s *MidiSequencer) recalculateMaxTime() {
	s.maxEventTime = types.TimeZero
	for _, e := range s.events {
		if e.Event.Time > s.maxEventTime {
			s.maxEventTime = e.Event.Time
		}
	}
}

func (s *MidiSequencer) EventCount() int { return len(s.events) }

func (s *MidiSequencer) UpdateTimeRange(r types.TimeRange) { s.timeRange = r }

func (s *MidiSequencer) TimeRange() types.TimeRange { return s.timeRange }

// Work emits every event whose time falls inside the current slice.
func (s *MidiSequencer) Work(emit types.WorkEventsFn) {
	for _, e := range s.events {
		if s.timeRange.Contains(e.Event.Time) {
			emit(types.MidiWorkEvent(e.Channel, e.Event.Message))
		}
	}
}

func (s *MidiSequencer) IsFinished() bool {
	return s.timeRange.End >= s.maxEventTime
}

func (s *MidiSequencer) Play() {
	s.isPerforming = true
	s.isRecording = false
}

func (s *MidiSequencer) Stop() {
	s.isPerforming = false
	s.isRecording = false
}

func (s *MidiSequencer) SkipToStart() {
	s.timeRange = types.NewTimeRange(types.TimeZero, types.TimeZero)
}

// ChannelPattern is a shifted pattern recorded into a
// PatternSequencer, remembered so the sequencer can be rebuilt after
// deserialization.
type ChannelPattern struct {
	Channel types.MidiChannel `json:"channel"`
	Pattern *Pattern          `json:"pattern"`
	Extent  types.TimeRange   `json:"extent"`
}

// PatternSequencer turns recorded patterns into a flat event list.
type PatternSequencer struct {
	Patterns []ChannelPattern `json:"patterns"`

	inner  MidiSequencer
	extent types.TimeRange
}

// Record shifts the pattern to position and adds its events.
func (s *PatternSequencer) Record(channel types.MidiChannel, pattern *Pattern, position types.MusicalTime) {
	shifted := pattern.ShiftRight(position)
	occupied := pattern.Extent().TranslateTo(position)
	for _, ev := range shifted.Events(channel) {
		s.inner.RecordEvent(channel, ev)
	}
	s.extent = s.extent.Expand(occupied)
	s.Patterns = append(s.Patterns, ChannelPattern{Channel: channel, Pattern: shifted, Extent: occupied})
}

// Remove drops a previously recorded pattern at the given position.
func (s *PatternSequencer) Remove(channel types.MidiChannel, pattern *Pattern, position types.MusicalTime) {
	shifted := pattern.ShiftRight(position)
	for _, ev := range shifted.Events(channel) {
		s.inner.RemoveEvent(channel, ev)
	}
	kept := s.Patterns[:0]
	removed := false
	for _, cp := range s.Patterns {
		if !removed && cp.Channel == channel && patternsEqual(cp.Pattern, shifted) {
			removed = true
			continue
		}
		kept = append(kept, cp)
	}
	s.Patterns = kept
	s.recalculateExtent()
}

func (s *PatternSequencer) Clear() {
	s.Patterns = s.Patterns[:0]
	s.inner.Clear()
	s.extent = types.TimeRange{}
}

func (s *PatternSequencer) recalculateExtent() {
	s.extent = types.TimeRange{}
	for _, cp := range s.Patterns {
		s.extent = s.extent.Expand(cp.Extent)
	}
}

func (s *PatternSequencer) Extent() types.TimeRange { return s.extent }

func (s *PatternSequencer) UpdateTimeRange(r types.TimeRange) { s.inner.UpdateTimeRange(r) }
func (s *PatternSequencer) Work(emit types.WorkEventsFn)      { s.inner.Work(emit) }
func (s *PatternSequencer) IsFinished() bool                  { return s.inner.IsFinished() }
func (s *PatternSequencer) Play()                             { s.inner.Play() }
func (s *PatternSequencer) Stop()                             { s.inner.Stop() }
func (s *PatternSequencer) SkipToStart()                      { s.inner.SkipToStart() }

// AfterLoad replays remembered patterns into the inner sequencer.
func (s *PatternSequencer) AfterLoad() {
	s.inner.Clear()
	for _, cp := range s.Patterns {
		for _, ev := range cp.Pattern.Events(cp.Channel) {
			s.inner.RecordEvent(cp.Channel, ev)
		}
	}
	s.recalculateExtent()
}

func patternsEqual(a, b *Pattern) bool {
	if a.TimeSignature != b.TimeSignature || len(a.Notes) != len(b.Notes) {
		return false
	}
	for i := range a.Notes {
		if a.Notes[i] != b.Notes[i] {
			return false
		}
	}
	return true
}
