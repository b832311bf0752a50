package engine

import (
	"log"
	"math/rand"
	"sync"

	"gitlab.com/gomidi/midi/v2"

	"github.com/schollz/minidaw/internal/automation"
	"github.com/schollz/minidaw/internal/composition"
	"github.com/schollz/minidaw/internal/types"
)

// DefaultProjectTitle names freshly created projects.
const DefaultProjectTitle = "Untitled"

// renderBlockFrames bounds the scratch buffer used by
// GenerateAndDispatchAudio and offline renders.
const renderBlockFrames = 64

// ViewState is UI-only state that rides along in the save file.
type ViewState struct {
	ViewRange types.ViewRange `json:"view_range"`
}

// Project is the top-level façade: it owns the transport, the
// orchestrator, the composer, the automator, and per-track MIDI
// routing, and exposes one GenerateAudio call that runs a full
// engine cycle.
//
// A Project is guarded by an RWMutex; the audio thread takes the
// write lock for the duration of one GenerateAudio call and the call
// runs to completion without suspension points.
type Project struct {
	Title             string                              `json:"title"`
	TrackTitles       map[types.TrackUid]string           `json:"track_titles"`
	TrackColorSchemes map[types.TrackUid]int              `json:"track_color_schemes"`
	RngSeed           int64                               `json:"rng_seed"`
	Transport         *Transport                          `json:"transport"`
	Orchestrator      *Orchestrator                       `json:"orchestrator"`
	Automator         *automation.Automator               `json:"automator"`
	Composer          *composition.Composer               `json:"composer"`
	TrackToMidiRouter map[types.TrackUid]*MidiRouter      `json:"track_to_midi_router"`
	TrackToPaths      map[types.TrackUid][]types.PathUid  `json:"track_to_paths"`
	View              ViewState                           `json:"view_state"`

	mu            sync.RWMutex
	rng           *rand.Rand
	isFinished    bool
	audioSenderFn func([]types.StereoSample)
	visualization *VisualizationQueue
	renderScratch [renderBlockFrames]types.StereoSample
}

func NewProject() *Project {
	p := &Project{
		Title:             DefaultProjectTitle,
		TrackTitles:       make(map[types.TrackUid]string),
		TrackColorSchemes: make(map[types.TrackUid]int),
		RngSeed:           1,
		Transport:         NewTransport(),
		Orchestrator:      NewOrchestrator(),
		Automator:         automation.NewAutomator(),
		Composer:          composition.NewComposer(),
		TrackToMidiRouter: make(map[types.TrackUid]*MidiRouter),
		TrackToPaths:      make(map[types.TrackUid][]types.PathUid),
	}
	p.resetRng()
	return p
}

// Lock/RLock expose the project's guard to service threads that need
// a consistent view (UI snapshots, save).
func (p *Project) Lock()    { p.mu.Lock() }
func (p *Project) Unlock()  { p.mu.Unlock() }
func (p *Project) RLock()   { p.mu.RLock() }
func (p *Project) RUnlock() { p.mu.RUnlock() }

func (p *Project) resetRng() {
	p.rng = rand.New(rand.NewSource(p.RngSeed))
}

// SetRngSeed reseeds the deterministic generator; renders with the
// same seed are bit-identical.
func (p *Project) SetRngSeed(seed int64) {
	p.RngSeed = seed
	p.resetRng()
}

func (p *Project) Rng() *rand.Rand { return p.rng }

// CreateTrack makes an empty track with its own MIDI router.
func (p *Project) CreateTrack() types.TrackUid {
	uid := p.Orchestrator.CreateTrack()
	p.TrackToMidiRouter[uid] = NewMidiRouter()
	return uid
}

// NewMidiTrack is a starter track for instruments.
func (p *Project) NewMidiTrack() types.TrackUid {
	uid := p.CreateTrack()
	p.TrackTitles[uid] = "MIDI"
	return uid
}

// NewAudioTrack is a starter track for effects-only material.
func (p *Project) NewAudioTrack() types.TrackUid {
	uid := p.CreateTrack()
	p.TrackTitles[uid] = "Audio"
	return uid
}

// NewAuxTrack is a starter aux (send destination) track.
func (p *Project) NewAuxTrack() types.TrackUid {
	uid := p.Orchestrator.CreateAuxTrack()
	p.TrackToMidiRouter[uid] = NewMidiRouter()
	p.TrackTitles[uid] = "Aux"
	return uid
}

// DeleteTrack cascades: entities, their automation links, MIDI
// routes, arrangements, and signal paths all go with the track.
func (p *Project) DeleteTrack(uid types.TrackUid) error {
	removedEntities, err := p.Orchestrator.DeleteTrack(uid)
	if err != nil {
		return err
	}
	for _, entityUid := range removedEntities {
		p.Automator.RemoveEntityReferences(entityUid)
	}
	delete(p.TrackToMidiRouter, uid)
	delete(p.TrackTitles, uid)
	delete(p.TrackColorSchemes, uid)
	p.Composer.RemoveTrack(uid)
	for _, pathUid := range p.TrackToPaths[uid] {
		p.Automator.RemovePath(pathUid)
	}
	delete(p.TrackToPaths, uid)
	return nil
}

// AddEntity hands an entity to the repo and connects it to the
// track's MIDI router on channel 0.
func (p *Project) AddEntity(track types.TrackUid, entity Entity) (types.Uid, error) {
	if !p.Orchestrator.Tracks.ContainsTrack(track) {
		return 0, types.ErrTrackNotFound
	}
	uid := p.Orchestrator.Entities.Add(track, entity)
	if router, ok := p.TrackToMidiRouter[track]; ok {
		router.Connect(uid, 0)
	}
	return uid, nil
}

// DeleteEntity removes an entity and everything referencing it.
func (p *Project) DeleteEntity(uid types.Uid) error {
	_, err := p.RemoveEntity(uid)
	return err
}

// RemoveEntity detaches an entity and returns it to the caller.
func (p *Project) RemoveEntity(uid types.Uid) (Entity, error) {
	track, _ := p.Orchestrator.Entities.TrackForEntity(uid)
	entity, err := p.Orchestrator.Entities.Remove(uid)
	if err != nil {
		return nil, err
	}
	p.Automator.RemoveEntityReferences(uid)
	if router, ok := p.TrackToMidiRouter[track]; ok {
		router.Disconnect(uid)
	}
	return entity, nil
}

// MoveEntity repositions an entity within or across tracks.
func (p *Project) MoveEntity(uid types.Uid, newTrack types.TrackUid, newPosition int) error {
	oldTrack, _ := p.Orchestrator.Entities.TrackForEntity(uid)
	if err := p.Orchestrator.Entities.MoveEntity(uid, newTrack, newPosition); err != nil {
		return err
	}
	if oldTrack != newTrack {
		channel := types.MidiChannel(0)
		if router, ok := p.TrackToMidiRouter[oldTrack]; ok {
			if ch, ok := router.ReceiverChannel(uid); ok {
				channel = ch
			}
			router.Disconnect(uid)
		}
		if router, ok := p.TrackToMidiRouter[newTrack]; ok {
			router.Connect(uid, channel)
		}
	}
	return nil
}

// SetMidiReceiverChannel rebinds an entity's MIDI listening channel
// within its track.
func (p *Project) SetMidiReceiverChannel(uid types.Uid, channel types.MidiChannel) error {
	track, ok := p.Orchestrator.Entities.TrackForEntity(uid)
	if !ok {
		return types.ErrEntityNotFound
	}
	router, ok := p.TrackToMidiRouter[track]
	if !ok {
		return types.ErrTrackNotFound
	}
	router.Connect(uid, channel)
	return nil
}

// MidiReceiverChannel reports the channel an entity listens on.
func (p *Project) MidiReceiverChannel(uid types.Uid) (types.MidiChannel, bool) {
	track, ok := p.Orchestrator.Entities.TrackForEntity(uid)
	if !ok {
		return 0, false
	}
	router, ok := p.TrackToMidiRouter[track]
	if !ok {
		return 0, false
	}
	return router.ReceiverChannel(uid)
}

// controlTargetExists accepts entity uids and the transport.
func (p *Project) controlTargetExists(uid types.Uid) bool {
	if uid == TransportUid {
		return true
	}
	_, ok := p.Orchestrator.Entities.Entity(uid)
	return ok
}

// Link connects source's control output to a target parameter.
func (p *Project) Link(source, target types.Uid, param types.ControlIndex) error {
	if !p.controlTargetExists(target) {
		return types.ErrUnknownControlTarget
	}
	p.Automator.Link(source, target, param)
	return nil
}

func (p *Project) Unlink(source, target types.Uid, param types.ControlIndex) {
	p.Automator.Unlink(source, target, param)
}

// AddPath attaches a signal path to a track.
func (p *Project) AddPath(track types.TrackUid, path *automation.SignalPath) (types.PathUid, error) {
	if !p.Orchestrator.Tracks.ContainsTrack(track) {
		return 0, types.ErrTrackNotFound
	}
	uid := p.Automator.AddPath(path)
	p.TrackToPaths[track] = append(p.TrackToPaths[track], uid)
	return uid, nil
}

// LinkPath connects a path to a target parameter.
func (p *Project) LinkPath(pathUid types.PathUid, target types.Uid, param types.ControlIndex) error {
	if !p.controlTargetExists(target) {
		return types.ErrUnknownControlTarget
	}
	return p.Automator.LinkPath(pathUid, target, param)
}

// RemovePath drops a path from the automator and its track list.
func (p *Project) RemovePath(uid types.PathUid) *automation.SignalPath {
	path := p.Automator.RemovePath(uid)
	for track, uids := range p.TrackToPaths {
		kept := uids[:0]
		for _, puid := range uids {
			if puid != uid {
				kept = append(kept, puid)
			}
		}
		p.TrackToPaths[track] = kept
	}
	return path
}

// ArrangePattern is the composer operation plus track validation at
// the project level.
func (p *Project) ArrangePattern(track types.TrackUid, pattern types.PatternUid, channel types.MidiChannel, position types.MusicalTime) (types.ArrangementUid, error) {
	if !p.Orchestrator.Tracks.ContainsTrack(track) {
		return 0, types.ErrTrackNotFound
	}
	return p.Composer.ArrangePattern(track, pattern, channel, position)
}

// dispatchControlEvent fans a control value out to the source's
// linked targets.
func (p *Project) dispatchControlEvent(source automation.Source, value types.ControlValue) {
	p.Automator.Route(source, value, func(target types.Uid, param types.ControlIndex, v types.ControlValue) {
		if target == TransportUid {
			p.Transport.ControlSetParamByIndex(param, v)
			p.Orchestrator.Entities.UpdateTempo(p.Transport.Tempo())
			p.Orchestrator.Entities.UpdateTimeSignature(p.Transport.TimeSignature())
			return
		}
		if entity, ok := p.Orchestrator.Entities.Entity(target); ok {
			entity.ControlSetParamByIndex(param, v)
		} else {
			log.Printf("automation: dropping control value for unknown target %s", target)
		}
	})
}

func (p *Project) updateTimeRange(r types.TimeRange) {
	p.Automator.UpdateTimeRange(r)
	p.Orchestrator.UpdateTimeRange(r)
	p.Composer.UpdateTimeRange(r)
}

type sourcedEvent struct {
	source    automation.Source
	hasSource bool
	event     types.WorkEvent
}

// work collects this slice's events from the automator, composer,
// and orchestrator, then drains the collection LIFO: routing MIDI
// within its track, forwarding routed MIDI to the caller, and
// dispatching control values to their linked targets.
func (p *Project) work(emit types.WorkEventsFn) {
	var events []sourcedEvent
	p.Automator.WorkAsProxy(func(source automation.Source, e types.WorkEvent) {
		events = append(events, sourcedEvent{source: source, hasSource: true, event: e})
	})
	p.Composer.Work(func(e types.WorkEvent) {
		events = append(events, sourcedEvent{event: e})
	})
	p.Orchestrator.WorkAsProxy(func(source automation.Source, e types.WorkEvent) {
		events = append(events, sourcedEvent{source: source, hasSource: true, event: e})
	})

	for len(events) > 0 {
		se := events[len(events)-1]
		events = events[:len(events)-1]
		switch se.event.Kind {
		case types.WorkEventMidi:
			// We don't know which track created this message, so we
			// can't know which entities may receive it. Producers
			// inside the engine must tag MIDI with its track.
			log.Printf("project: dropping untracked MIDI event; producers must emit MidiForTrack")
		case types.WorkEventMidiForTrack:
			if router, ok := p.TrackToMidiRouter[se.event.Track]; ok {
				router.Route(p.Orchestrator.Entities, se.event.Channel, se.event.Message)
			}
			emit(se.event)
		case types.WorkEventControl:
			if se.hasSource {
				p.dispatchControlEvent(se.source, se.event.Value)
			}
		}
	}
	p.updateIsFinished()
}

func (p *Project) updateIsFinished() {
	p.isFinished = p.Composer.IsFinished() && p.Orchestrator.IsFinished()
}

func (p *Project) IsFinished() bool { return p.isFinished }

// GenerateAudio runs one engine cycle: advance the transport,
// propagate the time slice, process events, then render the mix into
// frames. Routed MIDI is also handed to midiFn when provided, so the
// caller can forward it to external devices.
func (p *Project) GenerateAudio(frames []types.StereoSample, midiFn types.MidiMessagesFn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.generateAudioLocked(frames, midiFn)
}

func (p *Project) generateAudioLocked(frames []types.StereoSample, midiFn types.MidiMessagesFn) {
	wasFinished := p.isFinished
	timeRange := p.Transport.Advance(len(frames))
	p.updateTimeRange(timeRange)
	p.work(func(e types.WorkEvent) {
		if midiFn != nil {
			midiFn(e.Channel, e.Message)
		}
	})
	if !wasFinished && p.isFinished && p.Transport.IsPerforming() {
		p.stopLocked()
	}
	p.Orchestrator.Generate(frames)
}

// GenerateAndDispatchAudio renders count frames in small blocks,
// handing each block to the audio sender and the visualization
// queue.
func (p *Project) GenerateAndDispatchAudio(count int, midiFn types.MidiMessagesFn) {
	if count == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	remaining := count
	for remaining > 0 {
		toGenerate := remaining
		if toGenerate > renderBlockFrames {
			toGenerate = renderBlockFrames
		}
		block := p.renderScratch[:toGenerate]
		for i := range block {
			block[i] = types.SilentStereoSample
		}
		p.generateAudioLocked(block, midiFn)
		if p.audioSenderFn != nil {
			p.audioSenderFn(block)
		}
		if p.visualization != nil {
			for _, s := range block {
				p.visualization.Push(s.Mono())
			}
		}
		remaining -= toGenerate
	}
}

// SetAudioSenderFn registers the opaque frame consumer used by
// GenerateAndDispatchAudio, e.g. a device ring-buffer writer.
func (p *Project) SetAudioSenderFn(fn func([]types.StereoSample)) { p.audioSenderFn = fn }

// SetVisualizationQueue registers the UI sample queue.
func (p *Project) SetVisualizationQueue(q *VisualizationQueue) { p.visualization = q }

// HandleMidiMessage accepts external MIDI and fans it out to every
// track's router.
func (p *Project) HandleMidiMessage(channel types.MidiChannel, message midi.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, router := range p.TrackToMidiRouter {
		router.Route(p.Orchestrator.Entities, channel, message)
	}
}

func (p *Project) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.isFinished = false
	p.Transport.Play()
	p.Automator.Play()
	p.Orchestrator.Play()
	p.Composer.Play()
	p.updateIsFinished()
}

func (p *Project) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Project) stopLocked() {
	p.Transport.Stop()
	p.Automator.Stop()
	p.Orchestrator.Stop()
	p.Composer.Stop()
	for _, router := range p.TrackToMidiRouter {
		router.AllNotesOff(p.Orchestrator.Entities)
	}
}

func (p *Project) SkipToStart() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resetRng()
	p.Orchestrator.Entities.Reset()
	p.Transport.SkipToStart()
	p.Automator.SkipToStart()
	p.Orchestrator.SkipToStart()
	p.Composer.SkipToStart()
}

func (p *Project) IsPerforming() bool {
	return p.Transport.IsPerforming()
}

// BeforeSave collects ephemeral state into persisted fields.
func (p *Project) BeforeSave() {
	p.Automator.BeforeSave()
	p.Orchestrator.BeforeSave()
	p.Composer.BeforeSave()
	for _, router := range p.TrackToMidiRouter {
		router.BeforeSave()
	}
}

// AfterLoad rebuilds every cache a save file doesn't carry.
func (p *Project) AfterLoad() {
	if p.TrackTitles == nil {
		p.TrackTitles = make(map[types.TrackUid]string)
	}
	if p.TrackColorSchemes == nil {
		p.TrackColorSchemes = make(map[types.TrackUid]int)
	}
	if p.TrackToMidiRouter == nil {
		p.TrackToMidiRouter = make(map[types.TrackUid]*MidiRouter)
	}
	if p.TrackToPaths == nil {
		p.TrackToPaths = make(map[types.TrackUid][]types.PathUid)
	}
	if p.RngSeed == 0 {
		p.RngSeed = 1
	}
	p.resetRng()
	p.Automator.AfterLoad()
	p.Orchestrator.AfterLoad()
	p.Composer.AfterLoad()
	for _, router := range p.TrackToMidiRouter {
		router.AfterLoad()
	}
}
