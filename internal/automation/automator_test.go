package automation

import (
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/minidaw/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func TestSignalPathValueAt(t *testing.T) {
	p := NewSignalPath(
		PathPoint{Time: types.OneBeat, Value: 0.5},
		PathPoint{Time: types.BeatsToUnits(2), Value: -0.5},
	)

	tests := []struct {
		name string
		time types.MusicalTime
		want types.BipolarNormal
	}{
		{"before first point clamps to first", types.TimeZero, 0.5},
		{"exactly on a point", types.OneBeat, 0.5},
		{"between points holds previous", types.OneBeat + 1, 0.5},
		{"second point", types.BeatsToUnits(2), -0.5},
		{"after last point clamps to last", types.BeatsToUnits(10), -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.ValueAt(tt.time)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignalPathEmptyEmitsNothing(t *testing.T) {
	p := NewSignalPath()
	_, ok := p.ValueAt(types.TimeZero)
	assert.False(t, ok)

	p.UpdateTimeRange(types.NewTimeRange(types.TimeZero, types.OneBeat))
	count := 0
	p.Work(func(types.WorkEvent) { count++ })
	assert.Zero(t, count)
}

func TestSignalPathDedupsEmission(t *testing.T) {
	p := NewSignalPath(
		PathPoint{Time: types.TimeZero, Value: 0},
		PathPoint{Time: types.BeatsToUnits(2), Value: 1},
	)

	var emitted []types.ControlValue
	work := func(start types.MusicalTime) {
		p.UpdateTimeRange(types.NewTimeRange(start, start.Add(types.OneBeat)))
		p.Work(func(e types.WorkEvent) { emitted = append(emitted, e.Value) })
	}

	work(types.TimeZero)
	work(types.OneBeat) // same value, suppressed
	work(types.BeatsToUnits(2))
	work(types.BeatsToUnits(3)) // same value, suppressed

	require.Len(t, emitted, 2)
	assert.Equal(t, types.ControlValue(0.5), emitted[0]) // bipolar 0 -> normal 0.5
	assert.Equal(t, types.NormalMax, emitted[1])

	// SkipToStart forgets the dedup state.
	p.SkipToStart()
	work(types.BeatsToUnits(3))
	assert.Len(t, emitted, 3)
}

func TestSignalPathPointEditing(t *testing.T) {
	p := NewSignalPath()
	p.AddPoint(PathPoint{Time: types.OneBeat, Value: 1})
	p.AddPoint(PathPoint{Time: types.TimeZero, Value: -1})
	assert.Equal(t, types.TimeZero, p.Points[0].Time, "points stay sorted")

	p.RemovePointsAt(types.OneBeat)
	assert.Len(t, p.Points, 1)

	assert.Equal(t, types.NewTimeRange(types.TimeZero, types.OneUnit), p.Extent())
}

func TestAutomatorLinkAndRoute(t *testing.T) {
	a := NewAutomator()
	source := types.Uid(1024)
	target := types.Uid(1025)

	a.Link(source, target, 2)
	a.Link(source, target, 3)

	type call struct {
		uid   types.Uid
		param types.ControlIndex
		value types.ControlValue
	}
	var calls []call
	a.Route(EntitySource(source), 0.75, func(uid types.Uid, param types.ControlIndex, value types.ControlValue) {
		calls = append(calls, call{uid, param, value})
	})
	require.Len(t, calls, 2)
	assert.Equal(t, call{target, 2, 0.75}, calls[0])
	assert.Equal(t, call{target, 3, 0.75}, calls[1])

	a.Unlink(source, target, 2)
	calls = nil
	a.Route(EntitySource(source), 0.75, func(uid types.Uid, param types.ControlIndex, value types.ControlValue) {
		calls = append(calls, call{uid, param, value})
	})
	require.Len(t, calls, 1)
	assert.Equal(t, types.ControlIndex(3), calls[0].param)
}

func TestAutomatorLinkPathValidatesPath(t *testing.T) {
	a := NewAutomator()
	err := a.LinkPath(types.PathUid(9999), types.Uid(1024), 0)
	assert.ErrorIs(t, err, types.ErrUnknownControlTarget)

	uid := a.AddPath(NewSignalPath(PathPoint{Time: types.TimeZero, Value: 1}))
	assert.NoError(t, a.LinkPath(uid, types.Uid(1024), 0))
}

func TestAutomatorWorkAsProxy(t *testing.T) {
	a := NewAutomator()
	uid := a.AddPath(NewSignalPath(PathPoint{Time: types.TimeZero, Value: 1}))

	a.Play()
	a.UpdateTimeRange(types.NewTimeRange(types.TimeZero, types.OneBeat))

	var sources []Source
	var values []types.ControlValue
	a.WorkAsProxy(func(source Source, e types.WorkEvent) {
		sources = append(sources, source)
		values = append(values, e.Value)
	})
	require.Len(t, sources, 1)
	assert.Equal(t, PathSource(uid), sources[0])
	assert.Equal(t, types.NormalMax, values[0])

	// Paths do not emit while stopped.
	a.Stop()
	a.SkipToStart()
	count := 0
	a.WorkAsProxy(func(Source, types.WorkEvent) { count++ })
	assert.Zero(t, count)
}

func TestAutomatorRemovePath(t *testing.T) {
	a := NewAutomator()
	uid := a.AddPath(NewSignalPath(PathPoint{Time: types.TimeZero, Value: 1}))
	require.NoError(t, a.LinkPath(uid, types.Uid(1024), 0))

	removed := a.RemovePath(uid)
	require.NotNil(t, removed)
	assert.Empty(t, a.LinksFor(PathSource(uid)))
	assert.Nil(t, a.RemovePath(uid))
}

func TestAutomatorRemoveEntityReferences(t *testing.T) {
	a := NewAutomator()
	e1, e2 := types.Uid(1024), types.Uid(1025)
	a.Link(e1, e2, 0) // e1 sources into e2
	a.Link(e2, e1, 1) // e2 sources into e1

	a.RemoveEntityReferences(e1)
	assert.Empty(t, a.LinksFor(EntitySource(e1)))
	assert.Empty(t, a.LinksFor(EntitySource(e2)), "links targeting the deleted entity go too")
}

func TestAutomatorSerializationRoundTrip(t *testing.T) {
	a := NewAutomator()
	uid := a.AddPath(NewSignalPath(
		PathPoint{Time: types.TimeZero, Value: -1},
		PathPoint{Time: types.OneBeat, Value: 1},
	))
	a.Link(types.Uid(1024), types.Uid(1025), 7)
	require.NoError(t, a.LinkPath(uid, types.Uid(1025), 0))

	data, err := json.Marshal(a)
	require.NoError(t, err)

	loaded := &Automator{}
	require.NoError(t, json.Unmarshal(data, loaded))
	loaded.AfterLoad()

	assert.Len(t, loaded.LinksFor(EntitySource(types.Uid(1024))), 1)
	assert.Len(t, loaded.LinksFor(PathSource(uid)), 1)
	path, ok := loaded.Path(uid)
	require.True(t, ok)
	assert.Len(t, path.Points, 2)

	// New paths mint above the loaded uid.
	next := loaded.AddPath(NewSignalPath())
	assert.Greater(t, uint64(next), uint64(uid))
}
