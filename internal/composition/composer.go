package composition

import (
	"fmt"
	"sort"

	"github.com/schollz/minidaw/internal/types"
)

// Arrangement is a placement of a pattern on a track at a position.
// Duration is cached from the referenced pattern so overlap checks
// don't need a pattern lookup.
type Arrangement struct {
	PatternUid  types.PatternUid  `json:"pattern_uid"`
	MidiChannel types.MidiChannel `json:"midi_channel"`
	Position    types.MusicalTime `json:"position"`
	Duration    types.MusicalTime `json:"duration"`
}

func (a Arrangement) Extent() types.TimeRange {
	return types.NewTimeRange(a.Position, a.Position.Add(a.Duration))
}

// Composer owns patterns and their arrangements on tracks, and keeps
// a per-track sequencer cache that turns arrangements into
// time-stamped MIDI events.
type Composer struct {
	Patterns            map[types.PatternUid]*Pattern                `json:"patterns"`
	OrderedPatternUids  []types.PatternUid                           `json:"ordered_pattern_uids"`
	Arrangements        map[types.ArrangementUid]Arrangement         `json:"arrangements"`
	TrackToArrangements map[types.TrackUid][]types.ArrangementUid    `json:"track_to_arrangements"`
	PatternToUses       map[types.PatternUid][]types.ArrangementUid  `json:"-"`

	patternUidFactory     *types.PatternUidFactory
	arrangementUidFactory *types.ArrangementUidFactory

	sequencers        map[types.TrackUid]*PatternSequencer
	timeRange         types.TimeRange
	timeSignature     types.TimeSignature
	isPerforming      bool
	isFinished        bool
	noteLabelMetadata []string
}

func NewComposer() *Composer {
	return &Composer{
		Patterns:              make(map[types.PatternUid]*Pattern),
		Arrangements:          make(map[types.ArrangementUid]Arrangement),
		TrackToArrangements:   make(map[types.TrackUid][]types.ArrangementUid),
		PatternToUses:         make(map[types.PatternUid][]types.ArrangementUid),
		patternUidFactory:     types.NewPatternUidFactory(),
		arrangementUidFactory: types.NewArrangementUidFactory(),
		sequencers:            make(map[types.TrackUid]*PatternSequencer),
		timeSignature:         types.CommonTime,
	}
}

// AddPattern registers a pattern and returns its new uid.
func (c *Composer) AddPattern(p *Pattern) types.PatternUid {
	uid := c.patternUidFactory.MintNext()
	c.Patterns[uid] = p
	c.OrderedPatternUids = append(c.OrderedPatternUids, uid)
	return uid
}

func (c *Composer) Pattern(uid types.PatternUid) (*Pattern, bool) {
	p, ok := c.Patterns[uid]
	return p, ok
}

// NotifyPatternChange rebuilds the sequencer cache after a pattern
// was edited in place.
func (c *Composer) NotifyPatternChange() { c.replayArrangements() }

// RemovePattern drops the pattern and cascades to every arrangement
// that refers to it.
func (c *Composer) RemovePattern(uid types.PatternUid) (*Pattern, error) {
	p, ok := c.Patterns[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrPatternNotFound, uid)
	}
	delete(c.Patterns, uid)
	kept := c.OrderedPatternUids[:0]
	for _, puid := range c.OrderedPatternUids {
		if puid != uid {
			kept = append(kept, puid)
		}
	}
	c.OrderedPatternUids = kept

	uses := c.PatternToUses[uid]
	delete(c.PatternToUses, uid)
	for _, auid := range uses {
		delete(c.Arrangements, auid)
		for track, auids := range c.TrackToArrangements {
			c.TrackToArrangements[track] = removeArrangementUid(auids, auid)
		}
	}
	c.replayArrangements()
	return p, nil
}

// SuggestNextPatternColorScheme rotates through the scheme palette
// so freshly added patterns are distinguishable.
func (c *Composer) SuggestNextPatternColorScheme() ColorScheme {
	return ColorScheme(len(c.Patterns) % ColorSchemeCount)
}

// isArrangementAreaAvailable reports whether extent is free on the
// track, optionally ignoring one arrangement (used when moving it).
func (c *Composer) isArrangementAreaAvailable(track types.TrackUid, extent types.TimeRange, excluding types.ArrangementUid) bool {
	for _, auid := range c.TrackToArrangements[track] {
		if auid == excluding {
			continue
		}
		if c.Arrangements[auid].Extent().Overlaps(extent) {
			return false
		}
	}
	return true
}

// ArrangePattern places a pattern on a track. Fails with ErrOverlap
// if the pattern's extent at that position intersects an existing
// arrangement on the same track.
func (c *Composer) ArrangePattern(track types.TrackUid, patternUid types.PatternUid, channel types.MidiChannel, position types.MusicalTime) (types.ArrangementUid, error) {
	pattern, ok := c.Patterns[patternUid]
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrPatternNotFound, patternUid)
	}
	extent := pattern.Extent().TranslateTo(position)
	if !c.isArrangementAreaAvailable(track, extent, 0) {
		return 0, fmt.Errorf("%w: pattern %s at position %v", types.ErrOverlap, patternUid, position)
	}

	auid := c.arrangementUidFactory.MintNext()
	c.Arrangements[auid] = Arrangement{
		PatternUid:  patternUid,
		MidiChannel: channel,
		Position:    position,
		Duration:    pattern.Duration(),
	}
	c.TrackToArrangements[track] = append(c.TrackToArrangements[track], auid)
	c.sortTrackArrangements(track)
	c.PatternToUses[patternUid] = append(c.PatternToUses[patternUid], auid)

	seq := c.sequencerFor(track)
	seq.Record(channel, pattern, position)
	return auid, nil
}

// MoveArrangement repositions an arrangement, or with copyOriginal
// leaves it alone and arranges a copy at the new position. The same
// overlap rules apply, excluding the moving arrangement itself.
func (c *Composer) MoveArrangement(track types.TrackUid, auid types.ArrangementUid, newPosition types.MusicalTime, copyOriginal bool) (types.ArrangementUid, error) {
	arrangement, ok := c.Arrangements[auid]
	if !ok || !containsArrangementUid(c.TrackToArrangements[track], auid) {
		return 0, fmt.Errorf("%w: %s in track %s", types.ErrArrangementNotFound, auid, track)
	}
	if copyOriginal {
		return c.ArrangePattern(track, arrangement.PatternUid, arrangement.MidiChannel, newPosition)
	}
	newExtent := arrangement.Extent().TranslateTo(newPosition)
	if !c.isArrangementAreaAvailable(track, newExtent, auid) {
		return 0, fmt.Errorf("%w: moving %s to %v", types.ErrOverlap, auid, newPosition)
	}
	arrangement.Position = newPosition
	c.Arrangements[auid] = arrangement
	c.sortTrackArrangements(track)
	c.replayArrangements()
	return auid, nil
}

// DuplicateArrangement arranges another copy immediately after the
// original.
func (c *Composer) DuplicateArrangement(track types.TrackUid, auid types.ArrangementUid) (types.ArrangementUid, error) {
	arrangement, ok := c.Arrangements[auid]
	if !ok {
		return 0, fmt.Errorf("%w: %s", types.ErrArrangementNotFound, auid)
	}
	return c.ArrangePattern(track, arrangement.PatternUid, arrangement.MidiChannel, arrangement.Extent().End)
}

// Unarrange removes an arrangement and rebuilds the sequencer cache.
func (c *Composer) Unarrange(track types.TrackUid, auid types.ArrangementUid) {
	c.TrackToArrangements[track] = removeArrangementUid(c.TrackToArrangements[track], auid)
	if arrangement, ok := c.Arrangements[auid]; ok {
		delete(c.Arrangements, auid)
		c.PatternToUses[arrangement.PatternUid] = removeArrangementUid(c.PatternToUses[arrangement.PatternUid], auid)
	}
	c.replayArrangements()
}

func (c *Composer) ArrangementUids(track types.TrackUid) []types.ArrangementUid {
	return c.TrackToArrangements[track]
}

func (c *Composer) Arrangement(auid types.ArrangementUid) (Arrangement, bool) {
	a, ok := c.Arrangements[auid]
	return a, ok
}

func (c *Composer) sortTrackArrangements(track types.TrackUid) {
	auids := c.TrackToArrangements[track]
	sort.SliceStable(auids, func(i, j int) bool {
		return c.Arrangements[auids[i]].Position < c.Arrangements[auids[j]].Position
	})
}

func (c *Composer) sequencerFor(track types.TrackUid) *PatternSequencer {
	seq, ok := c.sequencers[track]
	if !ok {
		seq = &PatternSequencer{}
		if c.isPerforming {
			seq.Play()
		}
		c.sequencers[track] = seq
	}
	return seq
}

// replayArrangements rebuilds every track's sequencer from the
// arrangement tables.
func (c *Composer) replayArrangements() {
	for _, seq := range c.sequencers {
		seq.Clear()
	}
	for track, auids := range c.TrackToArrangements {
		for _, auid := range auids {
			arrangement := c.Arrangements[auid]
			if pattern, ok := c.Patterns[arrangement.PatternUid]; ok {
				c.sequencerFor(track).Record(arrangement.MidiChannel, pattern, arrangement.Position)
			}
		}
	}
}

// RemoveTrack drops everything arranged on the track.
func (c *Composer) RemoveTrack(track types.TrackUid) {
	for _, auid := range c.TrackToArrangements[track] {
		if arrangement, ok := c.Arrangements[auid]; ok {
			delete(c.Arrangements, auid)
			c.PatternToUses[arrangement.PatternUid] = removeArrangementUid(c.PatternToUses[arrangement.PatternUid], auid)
		}
	}
	delete(c.TrackToArrangements, track)
	delete(c.sequencers, track)
	c.replayArrangements()
}

// SetMidiNoteLabelMetadata stores UI labels for note rows; it is
// ephemeral and cleared on load.
func (c *Composer) SetMidiNoteLabelMetadata(labels []string) { c.noteLabelMetadata = labels }
func (c *Composer) ClearMidiNoteLabelMetadata()              { c.noteLabelMetadata = nil }
func (c *Composer) MidiNoteLabelMetadata() []string          { return c.noteLabelMetadata }

// Extent covers every sequencer's recorded material.
func (c *Composer) Extent() types.TimeRange {
	extent := types.TimeRange{}
	for _, seq := range c.sequencers {
		extent = extent.Expand(seq.Extent())
	}
	return extent
}

func (c *Composer) TimeSignature() types.TimeSignature { return c.timeSignature }
func (c *Composer) UpdateTimeSignature(ts types.TimeSignature) {
	c.timeSignature = ts
}

func (c *Composer) UpdateTimeRange(r types.TimeRange) {
	c.timeRange = r
	for _, seq := range c.sequencers {
		seq.UpdateTimeRange(r)
	}
}

// Work emits this slice's events, tagging each with its owning track
// so the Project can confine MIDI routing to that track.
func (c *Composer) Work(emit types.WorkEventsFn) {
	if c.isPerforming {
		for track, seq := range c.sequencers {
			track := track
			seq.Work(func(e types.WorkEvent) {
				if e.Kind == types.WorkEventMidi {
					emit(types.MidiForTrackWorkEvent(track, e.Channel, e.Message))
				} else {
					emit(e)
				}
			})
		}
	}
	c.updateIsFinished()
}

func (c *Composer) updateIsFinished() {
	c.isFinished = true
	for _, seq := range c.sequencers {
		if !seq.IsFinished() {
			c.isFinished = false
			return
		}
	}
}

func (c *Composer) IsFinished() bool { return c.isFinished }

func (c *Composer) Play() {
	c.isPerforming = true
	for _, seq := range c.sequencers {
		seq.Play()
	}
	c.updateIsFinished()
}

func (c *Composer) Stop() {
	c.isPerforming = false
	for _, seq := range c.sequencers {
		seq.Stop()
	}
}

func (c *Composer) SkipToStart() {
	for _, seq := range c.sequencers {
		seq.SkipToStart()
	}
}

// BeforeSave is a serialization hook; the persisted tables are
// already authoritative.
func (c *Composer) BeforeSave() {}

// AfterLoad rebuilds factories, use tables, and sequencer caches
// from the persisted maps.
func (c *Composer) AfterLoad() {
	if c.Patterns == nil {
		c.Patterns = make(map[types.PatternUid]*Pattern)
	}
	if c.Arrangements == nil {
		c.Arrangements = make(map[types.ArrangementUid]Arrangement)
	}
	if c.TrackToArrangements == nil {
		c.TrackToArrangements = make(map[types.TrackUid][]types.ArrangementUid)
	}
	c.PatternToUses = make(map[types.PatternUid][]types.ArrangementUid)
	c.sequencers = make(map[types.TrackUid]*PatternSequencer)
	c.patternUidFactory = types.NewPatternUidFactory()
	c.arrangementUidFactory = types.NewArrangementUidFactory()

	for uid, p := range c.Patterns {
		p.AfterLoad()
		c.patternUidFactory.Rebase(uid)
	}
	for auid, arrangement := range c.Arrangements {
		c.arrangementUidFactory.Rebase(auid)
		c.PatternToUses[arrangement.PatternUid] = append(c.PatternToUses[arrangement.PatternUid], auid)
	}
	for track := range c.TrackToArrangements {
		c.sortTrackArrangements(track)
	}
	c.replayArrangements()
	c.ClearMidiNoteLabelMetadata()
}

func removeArrangementUid(uids []types.ArrangementUid, drop types.ArrangementUid) []types.ArrangementUid {
	kept := uids[:0]
	for _, uid := range uids {
		if uid != drop {
			kept = append(kept, uid)
		}
	}
	return kept
}

func containsArrangementUid(uids []types.ArrangementUid, want types.ArrangementUid) bool {
	for _, uid := range uids {
		if uid == want {
			return true
		}
	}
	return false
}
