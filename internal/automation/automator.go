package automation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/schollz/minidaw/internal/types"
)

// ControlLink names one automatable parameter of one entity.
type ControlLink struct {
	Uid   types.Uid          `json:"uid"`
	Param types.ControlIndex `json:"param"`
}

// Source identifies who produced a control value: an entity or a
// signal path. Exactly one field is set.
type Source struct {
	Entity types.Uid
	Path   types.PathUid
}

func EntitySource(uid types.Uid) Source   { return Source{Entity: uid} }
func PathSource(uid types.PathUid) Source { return Source{Path: uid} }

func (s Source) IsPath() bool { return s.Path != 0 }

// MarshalText lets Source act as a JSON map key.
func (s Source) MarshalText() ([]byte, error) {
	if s.IsPath() {
		return []byte(fmt.Sprintf("path:%d", uint64(s.Path))), nil
	}
	return []byte(fmt.Sprintf("entity:%d", uint64(s.Entity))), nil
}

func (s *Source) UnmarshalText(text []byte) error {
	str := string(text)
	switch {
	case strings.HasPrefix(str, "path:"):
		v, err := strconv.ParseUint(strings.TrimPrefix(str, "path:"), 10, 64)
		if err != nil {
			return err
		}
		*s = PathSource(types.PathUid(v))
	case strings.HasPrefix(str, "entity:"):
		v, err := strconv.ParseUint(strings.TrimPrefix(str, "entity:"), 10, 64)
		if err != nil {
			return err
		}
		*s = EntitySource(types.Uid(v))
	default:
		return fmt.Errorf("unrecognized control source %q", str)
	}
	return nil
}

// ControlValueFn applies one dispatched control value to a target.
type ControlValueFn func(target types.Uid, param types.ControlIndex, value types.ControlValue)

// SourceWorkEventsFn receives work events tagged with the source that
// produced them.
type SourceWorkEventsFn func(source Source, e types.WorkEvent)

// Automator stores directed links from control sources to
// (entity, parameter) targets, plus the signal paths it owns.
type Automator struct {
	Links           map[Source][]ControlLink       `json:"links"`
	Paths           map[types.PathUid]*SignalPath  `json:"paths"`
	OrderedPathUids []types.PathUid                `json:"ordered_path_uids"`

	pathUidFactory *types.PathUidFactory
	timeRange      types.TimeRange
	isPerforming   bool
}

func NewAutomator() *Automator {
	return &Automator{
		Links:          make(map[Source][]ControlLink),
		Paths:          make(map[types.PathUid]*SignalPath),
		pathUidFactory: types.NewPathUidFactory(),
	}
}

// Link connects an entity's control output to a target parameter.
// The caller is responsible for having validated that both uids
// resolve; the Automator stores uids, not references.
func (a *Automator) Link(source types.Uid, target types.Uid, param types.ControlIndex) {
	a.linkSource(EntitySource(source), target, param)
}

func (a *Automator) Unlink(source types.Uid, target types.Uid, param types.ControlIndex) {
	a.unlinkSource(EntitySource(source), target, param)
}

// LinkPath connects a signal path to a target parameter.
func (a *Automator) LinkPath(pathUid types.PathUid, target types.Uid, param types.ControlIndex) error {
	if _, ok := a.Paths[pathUid]; !ok {
		return fmt.Errorf("%w: path %s", types.ErrUnknownControlTarget, pathUid)
	}
	a.linkSource(PathSource(pathUid), target, param)
	return nil
}

func (a *Automator) UnlinkPath(pathUid types.PathUid, target types.Uid, param types.ControlIndex) {
	a.unlinkSource(PathSource(pathUid), target, param)
}

func (a *Automator) linkSource(source Source, target types.Uid, param types.ControlIndex) {
	a.Links[source] = append(a.Links[source], ControlLink{Uid: target, Param: param})
}

func (a *Automator) unlinkSource(source Source, target types.Uid, param types.ControlIndex) {
	links := a.Links[source]
	kept := links[:0]
	for _, link := range links {
		if link.Uid == target && link.Param == param {
			continue
		}
		kept = append(kept, link)
	}
	if len(kept) == 0 {
		delete(a.Links, source)
	} else {
		a.Links[source] = kept
	}
}

// LinksFor returns the links registered under a source.
func (a *Automator) LinksFor(source Source) []ControlLink { return a.Links[source] }

// Route fans a produced control value out to every linked target.
func (a *Automator) Route(source Source, value types.ControlValue, apply ControlValueFn) {
	for _, link := range a.Links[source] {
		apply(link.Uid, link.Param, value)
	}
}

// AddPath takes ownership of a signal path and returns its uid.
func (a *Automator) AddPath(path *SignalPath) types.PathUid {
	uid := a.pathUidFactory.MintNext()
	a.Paths[uid] = path
	a.OrderedPathUids = append(a.OrderedPathUids, uid)
	return uid
}

// RemovePath drops a path and every link sourced from it.
func (a *Automator) RemovePath(uid types.PathUid) *SignalPath {
	path, ok := a.Paths[uid]
	if !ok {
		return nil
	}
	delete(a.Paths, uid)
	kept := a.OrderedPathUids[:0]
	for _, puid := range a.OrderedPathUids {
		if puid != uid {
			kept = append(kept, puid)
		}
	}
	a.OrderedPathUids = kept
	delete(a.Links, PathSource(uid))
	return path
}

func (a *Automator) Path(uid types.PathUid) (*SignalPath, bool) {
	p, ok := a.Paths[uid]
	return p, ok
}

// RemoveEntityReferences drops every link that mentions the entity,
// as source or as target. Called when an entity is deleted.
func (a *Automator) RemoveEntityReferences(uid types.Uid) {
	delete(a.Links, EntitySource(uid))
	for source, links := range a.Links {
		kept := links[:0]
		for _, link := range links {
			if link.Uid != uid {
				kept = append(kept, link)
			}
		}
		if len(kept) == 0 {
			delete(a.Links, source)
		} else {
			a.Links[source] = kept
		}
	}
}

func (a *Automator) UpdateTimeRange(r types.TimeRange) {
	a.timeRange = r
	for _, path := range a.Paths {
		path.UpdateTimeRange(r)
	}
}

// WorkAsProxy runs every signal path's work cycle, tagging emitted
// events with the owning path as their source.
func (a *Automator) WorkAsProxy(emit SourceWorkEventsFn) {
	if !a.isPerforming {
		return
	}
	for _, uid := range a.OrderedPathUids {
		path := a.Paths[uid]
		source := PathSource(uid)
		path.Work(func(e types.WorkEvent) { emit(source, e) })
	}
}

// IsFinished is always true: automation never prolongs a
// performance.
func (a *Automator) IsFinished() bool { return true }

func (a *Automator) Play() {
	a.isPerforming = true
	for _, path := range a.Paths {
		path.Play()
	}
}

func (a *Automator) Stop() {
	a.isPerforming = false
	for _, path := range a.Paths {
		path.Stop()
	}
}

func (a *Automator) SkipToStart() {
	for _, path := range a.Paths {
		path.SkipToStart()
	}
}

func (a *Automator) BeforeSave() {}

func (a *Automator) AfterLoad() {
	if a.Links == nil {
		a.Links = make(map[Source][]ControlLink)
	}
	if a.Paths == nil {
		a.Paths = make(map[types.PathUid]*SignalPath)
	}
	a.pathUidFactory = types.NewPathUidFactory()
	for uid, path := range a.Paths {
		path.AfterLoad()
		a.pathUidFactory.Rebase(uid)
	}
}
