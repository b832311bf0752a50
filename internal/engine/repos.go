package engine

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/minidaw/internal/types"
)

// TrackRepo owns the ordered list of track uids.
type TrackRepo struct {
	Uids []types.TrackUid `json:"uids"`

	factory *types.TrackUidFactory
}

func NewTrackRepo() *TrackRepo {
	return &TrackRepo{factory: types.NewTrackUidFactory()}
}

func (r *TrackRepo) MintTrackUid() types.TrackUid { return r.factory.MintNext() }

func (r *TrackRepo) CreateTrack() types.TrackUid {
	uid := r.MintTrackUid()
	r.Uids = append(r.Uids, uid)
	return uid
}

func (r *TrackRepo) DeleteTrack(uid types.TrackUid) error {
	for i, u := range r.Uids {
		if u == uid {
			r.Uids = append(r.Uids[:i], r.Uids[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", types.ErrTrackNotFound, uid)
}

func (r *TrackRepo) ContainsTrack(uid types.TrackUid) bool {
	for _, u := range r.Uids {
		if u == uid {
			return true
		}
	}
	return false
}

// SetTrackPosition moves a track within the ordering.
func (r *TrackRepo) SetTrackPosition(uid types.TrackUid, newPosition int) error {
	if newPosition < 0 || newPosition >= len(r.Uids) {
		return fmt.Errorf("%w: position %d", types.ErrPositionOutOfBounds, newPosition)
	}
	if err := r.DeleteTrack(uid); err != nil {
		return err
	}
	r.Uids = append(r.Uids[:newPosition], append([]types.TrackUid{uid}, r.Uids[newPosition:]...)...)
	return nil
}

func (r *TrackRepo) AfterLoad() {
	r.factory = types.NewTrackUidFactory()
	for _, uid := range r.Uids {
		r.factory.Rebase(uid)
	}
}

// EntityRepo owns every entity, keyed by uid, and remembers which
// track each entity belongs to. Within a track the entity list is
// ordered; the orchestrator renders in list order.
type EntityRepo struct {
	entities    map[types.Uid]Entity
	uidToTrack  map[types.Uid]types.TrackUid
	trackToUids map[types.TrackUid][]types.Uid

	factory *types.UidFactory

	sampleRate    types.SampleRate
	tempo         types.Tempo
	timeSignature types.TimeSignature
}

func NewEntityRepo() *EntityRepo {
	return &EntityRepo{
		entities:      make(map[types.Uid]Entity),
		uidToTrack:    make(map[types.Uid]types.TrackUid),
		trackToUids:   make(map[types.TrackUid][]types.Uid),
		factory:       types.NewUidFactory(),
		sampleRate:    types.DefaultSampleRate,
		tempo:         types.TempoDefault,
		timeSignature: types.CommonTime,
	}
}

func (r *EntityRepo) MintEntityUid() types.Uid { return r.factory.MintNext() }

// Add takes ownership of an entity, minting a uid if it doesn't have
// one, and appends it to the track's chain.
func (r *EntityRepo) Add(track types.TrackUid, entity Entity) types.Uid {
	uid := entity.Uid()
	if uid == 0 {
		uid = r.MintEntityUid()
		entity.SetUid(uid)
	} else {
		r.factory.Rebase(uid)
	}
	r.entities[uid] = entity
	r.uidToTrack[uid] = track
	r.trackToUids[track] = append(r.trackToUids[track], uid)

	entity.UpdateSampleRate(r.sampleRate)
	entity.UpdateTempo(r.tempo)
	entity.UpdateTimeSignature(r.timeSignature)
	return uid
}

// Remove detaches an entity and returns it.
func (r *EntityRepo) Remove(uid types.Uid) (Entity, error) {
	entity, ok := r.entities[uid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrEntityNotFound, uid)
	}
	delete(r.entities, uid)
	track := r.uidToTrack[uid]
	delete(r.uidToTrack, uid)
	r.trackToUids[track] = removeUid(r.trackToUids[track], uid)
	return entity, nil
}

func (r *EntityRepo) Entity(uid types.Uid) (Entity, bool) {
	e, ok := r.entities[uid]
	return e, ok
}

func (r *EntityRepo) EntityCount() int { return len(r.entities) }

// UidsForTrack returns the track's ordered entity chain.
func (r *EntityRepo) UidsForTrack(track types.TrackUid) []types.Uid {
	return r.trackToUids[track]
}

func (r *EntityRepo) TrackForEntity(uid types.Uid) (types.TrackUid, bool) {
	track, ok := r.uidToTrack[uid]
	return track, ok
}

// MoveEntity repositions an entity, possibly onto a different track.
func (r *EntityRepo) MoveEntity(uid types.Uid, newTrack types.TrackUid, newPosition int) error {
	entity, ok := r.entities[uid]
	if !ok {
		return fmt.Errorf("%w: %s", types.ErrEntityNotFound, uid)
	}
	if newPosition > len(r.trackToUids[newTrack]) {
		return fmt.Errorf("%w: position %d", types.ErrPositionOutOfBounds, newPosition)
	}
	oldTrack := r.uidToTrack[uid]
	r.trackToUids[oldTrack] = removeUid(r.trackToUids[oldTrack], uid)
	if oldTrack == newTrack && newPosition > len(r.trackToUids[newTrack]) {
		newPosition = len(r.trackToUids[newTrack])
	}
	uids := r.trackToUids[newTrack]
	uids = append(uids[:newPosition], append([]types.Uid{entity.Uid()}, uids[newPosition:]...)...)
	r.trackToUids[newTrack] = uids
	r.uidToTrack[uid] = newTrack
	return nil
}

// RemoveTrackEntities deletes every entity on a track, returning the
// removed uids so callers can cascade.
func (r *EntityRepo) RemoveTrackEntities(track types.TrackUid) []types.Uid {
	uids := append([]types.Uid(nil), r.trackToUids[track]...)
	for _, uid := range uids {
		delete(r.entities, uid)
		delete(r.uidToTrack, uid)
	}
	delete(r.trackToUids, track)
	return uids
}

func (r *EntityRepo) SampleRate() types.SampleRate { return r.sampleRate }

func (r *EntityRepo) UpdateSampleRate(rate types.SampleRate) {
	r.sampleRate = types.NewSampleRate(int(rate))
	for _, e := range r.entities {
		e.UpdateSampleRate(r.sampleRate)
	}
}

func (r *EntityRepo) Tempo() types.Tempo { return r.tempo }

func (r *EntityRepo) UpdateTempo(tempo types.Tempo) {
	r.tempo = tempo
	for _, e := range r.entities {
		e.UpdateTempo(tempo)
	}
}

func (r *EntityRepo) TimeSignature() types.TimeSignature { return r.timeSignature }

func (r *EntityRepo) UpdateTimeSignature(ts types.TimeSignature) {
	r.timeSignature = ts
	for _, e := range r.entities {
		e.UpdateTimeSignature(ts)
	}
}

func (r *EntityRepo) Reset() {
	for _, e := range r.entities {
		e.Reset()
	}
}

func removeUid(uids []types.Uid, drop types.Uid) []types.Uid {
	kept := uids[:0]
	for _, uid := range uids {
		if uid != drop {
			kept = append(kept, uid)
		}
	}
	return kept
}

// entityJSON is the persisted form of one entity: its identity plus
// its own marshaled parameters.
type entityJSON struct {
	Uid    types.Uid           `json:"uid"`
	Track  types.TrackUid      `json:"track"`
	Key    string              `json:"key"`
	Params jsoniter.RawMessage `json:"params"`
}

type entityRepoJSON struct {
	Entities []entityJSON `json:"entities"`
}

func (r *EntityRepo) MarshalJSON() ([]byte, error) {
	dto := entityRepoJSON{}
	// Walk tracks in map order but keep per-track entity order; the
	// track ordering itself is reimposed on load.
	for track, uids := range r.trackToUids {
		for _, uid := range uids {
			entity := r.entities[uid]
			entity.BeforeSave()
			params, err := json.Marshal(entity)
			if err != nil {
				return nil, fmt.Errorf("marshal entity %s (%s): %w", uid, entity.Key(), err)
			}
			dto.Entities = append(dto.Entities, entityJSON{
				Uid:    uid,
				Track:  track,
				Key:    entity.Key(),
				Params: params,
			})
		}
	}
	return json.Marshal(dto)
}

func (r *EntityRepo) UnmarshalJSON(data []byte) error {
	var dto entityRepoJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	r.entities = make(map[types.Uid]Entity)
	r.uidToTrack = make(map[types.Uid]types.TrackUid)
	r.trackToUids = make(map[types.TrackUid][]types.Uid)
	r.factory = types.NewUidFactory()
	r.sampleRate = types.DefaultSampleRate
	r.tempo = types.TempoDefault
	r.timeSignature = types.CommonTime

	for _, e := range dto.Entities {
		entity, ok := NewRegisteredEntity(e.Key)
		if !ok {
			return fmt.Errorf("%w: no registered entity with key %q", types.ErrEntityNotFound, e.Key)
		}
		if len(e.Params) > 0 {
			if err := json.Unmarshal(e.Params, entity); err != nil {
				return fmt.Errorf("unmarshal entity %s (%s): %w", e.Uid, e.Key, err)
			}
		}
		entity.SetUid(e.Uid)
		entity.AfterLoad()
		r.entities[e.Uid] = entity
		r.uidToTrack[e.Uid] = e.Track
		r.trackToUids[e.Track] = append(r.trackToUids[e.Track], e.Uid)
		r.factory.Rebase(e.Uid)
	}
	return nil
}
