package engine

import (
	"github.com/schollz/minidaw/internal/automation"
	"github.com/schollz/minidaw/internal/types"
)

// Send routes a share of a track's post-gain signal into an aux
// track.
type Send struct {
	To    types.TrackUid `json:"to"`
	Level types.Normal   `json:"level"`
}

// Orchestrator composes the track and entity registries and sums
// everything into the stereo mix with mute/solo/send semantics.
type Orchestrator struct {
	Tracks   *TrackRepo  `json:"tracks"`
	Entities *EntityRepo `json:"entities"`

	TrackOutputs map[types.TrackUid]types.Normal `json:"track_outputs"`
	MutedTracks  map[types.TrackUid]bool         `json:"muted_tracks"`
	Sends        map[types.TrackUid][]Send       `json:"sends"`
	AuxTracks    []types.TrackUid                `json:"aux_tracks"`
	Solo         types.TrackUid                  `json:"solo,omitempty"`

	trackBuffers  map[types.TrackUid]*types.Buffer[types.StereoSample]
	auxInputs     map[types.TrackUid]*types.Buffer[types.StereoSample]
	entityScratch *types.Buffer[types.StereoSample]
	isPerforming  bool
	isFinished    bool
}

func NewOrchestrator() *Orchestrator {
	return &Orchestrator{
		Tracks:        NewTrackRepo(),
		Entities:      NewEntityRepo(),
		TrackOutputs:  make(map[types.TrackUid]types.Normal),
		MutedTracks:   make(map[types.TrackUid]bool),
		Sends:         make(map[types.TrackUid][]Send),
		trackBuffers:  make(map[types.TrackUid]*types.Buffer[types.StereoSample]),
		auxInputs:     make(map[types.TrackUid]*types.Buffer[types.StereoSample]),
		entityScratch: types.NewBuffer[types.StereoSample](0),
	}
}

func (o *Orchestrator) CreateTrack() types.TrackUid { return o.Tracks.CreateTrack() }

// CreateAuxTrack makes a track and marks it as an aux: it starts from
// its accumulated send input, then runs its own entities like any
// other track, after the normal tracks have been processed.
func (o *Orchestrator) CreateAuxTrack() types.TrackUid {
	uid := o.Tracks.CreateTrack()
	o.AuxTracks = append(o.AuxTracks, uid)
	return uid
}

// DeleteTrack removes the track and its entities, returning the
// removed entity uids so the caller can cascade.
func (o *Orchestrator) DeleteTrack(uid types.TrackUid) ([]types.Uid, error) {
	if err := o.Tracks.DeleteTrack(uid); err != nil {
		return nil, err
	}
	removed := o.Entities.RemoveTrackEntities(uid)
	delete(o.TrackOutputs, uid)
	delete(o.MutedTracks, uid)
	delete(o.Sends, uid)
	delete(o.trackBuffers, uid)
	delete(o.auxInputs, uid)
	kept := o.AuxTracks[:0]
	for _, aux := range o.AuxTracks {
		if aux != uid {
			kept = append(kept, aux)
		}
	}
	o.AuxTracks = kept
	for track, sends := range o.Sends {
		filtered := sends[:0]
		for _, send := range sends {
			if send.To != uid {
				filtered = append(filtered, send)
			}
		}
		o.Sends[track] = filtered
	}
	if o.Solo == uid {
		o.Solo = 0
	}
	return removed, nil
}

func (o *Orchestrator) IsAuxTrack(uid types.TrackUid) bool {
	for _, aux := range o.AuxTracks {
		if aux == uid {
			return true
		}
	}
	return false
}

func (o *Orchestrator) MuteTrack(uid types.TrackUid, muted bool) { o.MutedTracks[uid] = muted }
func (o *Orchestrator) IsTrackMuted(uid types.TrackUid) bool     { return o.MutedTracks[uid] }

func (o *Orchestrator) SoloTrack() types.TrackUid       { return o.Solo }
func (o *Orchestrator) SetSoloTrack(uid types.TrackUid) { o.Solo = uid }

// TrackOutput is the track's output gain, defaulting to unity.
func (o *Orchestrator) TrackOutput(uid types.TrackUid) types.Normal {
	if gain, ok := o.TrackOutputs[uid]; ok {
		return gain
	}
	return types.NormalMax
}

func (o *Orchestrator) SetTrackOutput(uid types.TrackUid, gain types.Normal) {
	o.TrackOutputs[uid] = gain
}

// AddSend routes src's post-gain signal into an aux track at level.
func (o *Orchestrator) AddSend(src, aux types.TrackUid, level types.Normal) error {
	if !o.Tracks.ContainsTrack(src) || !o.Tracks.ContainsTrack(aux) {
		return types.ErrTrackNotFound
	}
	o.Sends[src] = append(o.Sends[src], Send{To: aux, Level: level})
	return nil
}

func (o *Orchestrator) RemoveSend(src, aux types.TrackUid) {
	sends := o.Sends[src]
	kept := sends[:0]
	for _, send := range sends {
		if send.To != aux {
			kept = append(kept, send)
		}
	}
	o.Sends[src] = kept
}

// trackPlays decides whether a track renders at all this buffer.
// While soloing, mute flags are ignored; a non-solo normal track is
// skipped entirely unless the solo target is an aux it could feed.
func (o *Orchestrator) trackPlays(uid types.TrackUid) bool {
	if o.Solo != 0 {
		if o.IsAuxTrack(o.Solo) {
			return true
		}
		return uid == o.Solo || o.IsAuxTrack(uid)
	}
	return !o.MutedTracks[uid]
}

// reachesMaster decides whether a rendered track's output is added
// to the final mix.
func (o *Orchestrator) reachesMaster(uid types.TrackUid) bool {
	if o.Solo == 0 {
		return true
	}
	if uid == o.Solo {
		return true
	}
	// Aux tracks pass through while a normal track is soloed, so the
	// soloed track's sends are still audible.
	return o.IsAuxTrack(uid) && !o.IsAuxTrack(o.Solo)
}

func (o *Orchestrator) scratch(m map[types.TrackUid]*types.Buffer[types.StereoSample], uid types.TrackUid, n int) *types.Buffer[types.StereoSample] {
	buf, ok := m[uid]
	if !ok {
		buf = types.NewBuffer[types.StereoSample](n)
		m[uid] = buf
	}
	buf.Resize(n)
	return buf
}

// renderTrack runs the track's signal chain into buf: instruments
// merge-add, effects transform in place.
func (o *Orchestrator) renderTrack(uid types.TrackUid, buf []types.StereoSample, entityScratch *types.Buffer[types.StereoSample]) {
	for _, entityUid := range o.Entities.UidsForTrack(uid) {
		entity, ok := o.Entities.Entity(entityUid)
		if !ok {
			continue
		}
		if entity.IsInstrument() {
			entityScratch.Resize(len(buf))
			entityScratch.Clear()
			entity.Generate(entityScratch.Samples())
			types.MergeStereo(buf, entityScratch.Samples())
		}
		if entity.IsEffect() {
			entity.TransformAudio(buf)
		}
	}
}

// Generate runs one buffer's worth of the mixer: normal tracks in
// order, then aux tracks over their accumulated send inputs.
func (o *Orchestrator) Generate(frames []types.StereoSample) bool {
	n := len(frames)
	entityScratch := o.entityScratch
	entityScratch.Resize(n)

	for _, aux := range o.AuxTracks {
		in := o.scratch(o.auxInputs, aux, n)
		in.Clear()
	}

	for _, track := range o.Tracks.Uids {
		if o.IsAuxTrack(track) || !o.trackPlays(track) {
			continue
		}
		buf := o.scratch(o.trackBuffers, track, n)
		buf.Clear()
		o.renderTrack(track, buf.Samples(), entityScratch)
		types.ScaleStereo(buf.Samples(), o.TrackOutput(track))
		for _, send := range o.Sends[track] {
			if in, ok := o.auxInputs[send.To]; ok {
				types.AccumulateStereo(in.Samples(), buf.Samples(), send.Level)
			}
		}
		if o.reachesMaster(track) {
			types.MergeStereo(frames, buf.Samples())
		}
	}

	for _, track := range o.AuxTracks {
		if !o.trackPlays(track) {
			continue
		}
		buf := o.scratch(o.trackBuffers, track, n)
		buf.Clear()
		if in, ok := o.auxInputs[track]; ok {
			types.MergeStereo(buf.Samples(), in.Samples())
		}
		o.renderTrack(track, buf.Samples(), entityScratch)
		types.ScaleStereo(buf.Samples(), o.TrackOutput(track))
		if o.reachesMaster(track) {
			types.MergeStereo(frames, buf.Samples())
		}
	}
	return true
}

func (o *Orchestrator) UpdateTimeRange(r types.TimeRange) {
	for _, entity := range o.allEntitiesInOrder() {
		entity.UpdateTimeRange(r)
	}
}

// WorkAsProxy runs every entity's work cycle in track order, tagging
// events with the producing entity and confining bare MIDI events to
// the entity's own track.
func (o *Orchestrator) WorkAsProxy(emit func(source automation.Source, e types.WorkEvent)) {
	for _, track := range o.Tracks.Uids {
		track := track
		for _, uid := range o.Entities.UidsForTrack(track) {
			entity, ok := o.Entities.Entity(uid)
			if !ok {
				continue
			}
			source := automation.EntitySource(uid)
			entity.Work(func(e types.WorkEvent) {
				if e.Kind == types.WorkEventMidi {
					e = types.MidiForTrackWorkEvent(track, e.Channel, e.Message)
				}
				emit(source, e)
			})
		}
	}
	o.updateIsFinished()
}

func (o *Orchestrator) allEntitiesInOrder() []Entity {
	var entities []Entity
	for _, track := range o.Tracks.Uids {
		for _, uid := range o.Entities.UidsForTrack(track) {
			if entity, ok := o.Entities.Entity(uid); ok {
				entities = append(entities, entity)
			}
		}
	}
	return entities
}

func (o *Orchestrator) updateIsFinished() {
	o.isFinished = true
	for _, entity := range o.allEntitiesInOrder() {
		if !entity.IsFinished() {
			o.isFinished = false
			return
		}
	}
}

func (o *Orchestrator) IsFinished() bool { return o.isFinished }

func (o *Orchestrator) Play() {
	o.isPerforming = true
	for _, entity := range o.allEntitiesInOrder() {
		entity.Play()
	}
	o.updateIsFinished()
}

func (o *Orchestrator) Stop() {
	o.isPerforming = false
	for _, entity := range o.allEntitiesInOrder() {
		entity.Stop()
	}
}

func (o *Orchestrator) SkipToStart() {
	for _, entity := range o.allEntitiesInOrder() {
		entity.SkipToStart()
	}
}

func (o *Orchestrator) BeforeSave() {
	// Entities collect their own ephemerals inside EntityRepo
	// marshaling.
}

func (o *Orchestrator) AfterLoad() {
	if o.TrackOutputs == nil {
		o.TrackOutputs = make(map[types.TrackUid]types.Normal)
	}
	if o.MutedTracks == nil {
		o.MutedTracks = make(map[types.TrackUid]bool)
	}
	if o.Sends == nil {
		o.Sends = make(map[types.TrackUid][]Send)
	}
	o.trackBuffers = make(map[types.TrackUid]*types.Buffer[types.StereoSample])
	o.auxInputs = make(map[types.TrackUid]*types.Buffer[types.StereoSample])
	o.entityScratch = types.NewBuffer[types.StereoSample](0)
	o.Tracks.AfterLoad()
	for _, entity := range o.allEntitiesInOrder() {
		entity.AfterLoad()
	}
}
