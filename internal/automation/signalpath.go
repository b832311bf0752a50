package automation

import (
	"sort"

	"github.com/schollz/minidaw/internal/types"
)

// PathPoint is one step of a piecewise control function.
type PathPoint struct {
	Time  types.MusicalTime   `json:"time"`
	Value types.BipolarNormal `json:"value"`
}

// SignalPath is a sorted sequence of points defining a step
// function: the value at time t is the most recent point at or
// before t, clamped to the nearest endpoint outside the range. The
// engine pulls it once per work cycle, which avoids pushing every
// automation event through a global queue.
type SignalPath struct {
	Points []PathPoint `json:"points"`

	timeRange   types.TimeRange
	lastEmitted *types.ControlValue
}

func NewSignalPath(points ...PathPoint) *SignalPath {
	p := &SignalPath{Points: points}
	p.sortPoints()
	return p
}

func (p *SignalPath) sortPoints() {
	sort.SliceStable(p.Points, func(i, j int) bool {
		return p.Points[i].Time < p.Points[j].Time
	})
}

// AddPoint inserts a point, keeping the sequence sorted.
func (p *SignalPath) AddPoint(point PathPoint) {
	p.Points = append(p.Points, point)
	p.sortPoints()
}

// RemovePointsAt drops every point at exactly the given time.
func (p *SignalPath) RemovePointsAt(t types.MusicalTime) {
	kept := p.Points[:0]
	for _, point := range p.Points {
		if point.Time != t {
			kept = append(kept, point)
		}
	}
	p.Points = kept
}

// ValueAt evaluates the step function. The second return is false
// when the path has no points at all.
func (p *SignalPath) ValueAt(t types.MusicalTime) (types.BipolarNormal, bool) {
	if len(p.Points) == 0 {
		return 0, false
	}
	value := p.Points[0].Value
	for _, point := range p.Points {
		if point.Time > t {
			break
		}
		value = point.Value
	}
	return value, true
}

func (p *SignalPath) UpdateTimeRange(r types.TimeRange) { p.timeRange = r }

// Work emits at most one control value per cycle: the path's value at
// the slice start, suppressed if it matches the last emitted value.
// A path with no points emits nothing.
func (p *SignalPath) Work(emit types.WorkEventsFn) {
	bipolar, ok := p.ValueAt(p.timeRange.Start)
	if !ok {
		return
	}
	value := bipolar.ToNormal()
	if p.lastEmitted != nil && *p.lastEmitted == value {
		return
	}
	p.lastEmitted = &value
	emit(types.ControlWorkEvent(value))
}

// Extent spans the first through last point.
func (p *SignalPath) Extent() types.TimeRange {
	if len(p.Points) == 0 {
		return types.TimeRange{}
	}
	return types.NewTimeRange(p.Points[0].Time, p.Points[len(p.Points)-1].Time.Add(types.OneUnit))
}

func (p *SignalPath) Play()        {}
func (p *SignalPath) Stop()        {}
func (p *SignalPath) SkipToStart() { p.lastEmitted = nil }

// AfterLoad restores sort order and forgets dedup state.
func (p *SignalPath) AfterLoad() {
	p.sortPoints()
	p.lastEmitted = nil
}
