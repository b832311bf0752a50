package entities

import (
	"github.com/schollz/minidaw/internal/engine"
	"github.com/schollz/minidaw/internal/types"
)

// Timer is a controller that does nothing except finish after a
// duration. It keeps a performance alive, e.g. so an effects tail
// can ring out past the last note.
type Timer struct {
	engine.BaseEntity
	Duration types.MusicalTime `json:"duration"`

	timeRange    types.TimeRange
	isPerforming bool
}

func NewTimer(duration types.MusicalTime) *Timer {
	return &Timer{Duration: duration}
}

func (t *Timer) Key() string  { return "timer" }
func (t *Timer) Name() string { return "Timer" }

func (t *Timer) IsController() bool { return true }

func (t *Timer) UpdateTimeRange(r types.TimeRange) { t.timeRange = r }

func (t *Timer) IsFinished() bool {
	return t.timeRange.End >= t.Duration
}

func (t *Timer) Play()        { t.isPerforming = true }
func (t *Timer) Stop()        { t.isPerforming = false }
func (t *Timer) SkipToStart() { t.timeRange = types.TimeRange{} }

// Trigger fires one control value when its timer elapses. Linked
// through the automator, it's the simplest possible automation
// source.
type Trigger struct {
	engine.BaseEntity
	Duration types.MusicalTime  `json:"duration"`
	Value    types.ControlValue `json:"value"`

	timeRange    types.TimeRange
	isPerforming bool
	hasFired     bool
}

func NewTrigger(duration types.MusicalTime, value types.ControlValue) *Trigger {
	return &Trigger{Duration: duration, Value: value}
}

func (t *Trigger) Key() string  { return "trigger" }
func (t *Trigger) Name() string { return "Trigger" }

func (t *Trigger) IsController() bool { return true }

func (t *Trigger) UpdateTimeRange(r types.TimeRange) { t.timeRange = r }

func (t *Trigger) Work(emit types.WorkEventsFn) {
	if !t.isPerforming || t.hasFired {
		return
	}
	if t.timeRange.End >= t.Duration {
		t.hasFired = true
		emit(types.ControlWorkEvent(t.Value))
	}
}

func (t *Trigger) IsFinished() bool { return t.hasFired }

func (t *Trigger) Play() {
	t.isPerforming = true
	t.hasFired = false
}

func (t *Trigger) Stop() { t.isPerforming = false }

func (t *Trigger) SkipToStart() {
	t.timeRange = types.TimeRange{}
	t.hasFired = false
}

func (t *Trigger) AfterLoad() { t.hasFired = false }

func init() {
	engine.RegisterEntity("timer", func() engine.Entity { return NewTimer(types.TimeZero) })
	engine.RegisterEntity("trigger", func() engine.Entity { return NewTrigger(types.TimeZero, 0) })
}
