package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/minidaw/internal/types"
)

func TestTrackRepoCrud(t *testing.T) {
	r := NewTrackRepo()
	a := r.CreateTrack()
	b := r.CreateTrack()
	c := r.CreateTrack()
	assert.Equal(t, []types.TrackUid{a, b, c}, r.Uids)
	assert.True(t, r.ContainsTrack(b))

	require.NoError(t, r.DeleteTrack(b))
	assert.Equal(t, []types.TrackUid{a, c}, r.Uids)
	assert.ErrorIs(t, r.DeleteTrack(b), types.ErrTrackNotFound)

	require.NoError(t, r.SetTrackPosition(c, 0))
	assert.Equal(t, []types.TrackUid{c, a}, r.Uids)
	assert.ErrorIs(t, r.SetTrackPosition(a, 5), types.ErrPositionOutOfBounds)
}

func TestEntityRepoCrud(t *testing.T) {
	r := NewEntityRepo()
	track := types.TrackUid(1)

	first := &countingSink{}
	second := &countingSink{}
	firstUid := r.Add(track, first)
	secondUid := r.Add(track, second)
	assert.NotEqual(t, firstUid, secondUid)
	assert.Equal(t, []types.Uid{firstUid, secondUid}, r.UidsForTrack(track))

	owner, ok := r.TrackForEntity(firstUid)
	require.True(t, ok)
	assert.Equal(t, track, owner)

	removed, err := r.Remove(firstUid)
	require.NoError(t, err)
	assert.Equal(t, first, removed)
	assert.Equal(t, []types.Uid{secondUid}, r.UidsForTrack(track))

	_, err = r.Remove(firstUid)
	assert.ErrorIs(t, err, types.ErrEntityNotFound)
}

func TestEntityRepoMoveEntity(t *testing.T) {
	r := NewEntityRepo()
	trackA := types.TrackUid(1)
	trackB := types.TrackUid(2)

	first := &countingSink{}
	second := &countingSink{}
	firstUid := r.Add(trackA, first)
	secondUid := r.Add(trackA, second)

	require.NoError(t, r.MoveEntity(firstUid, trackA, 1))
	assert.Equal(t, []types.Uid{secondUid, firstUid}, r.UidsForTrack(trackA))

	require.NoError(t, r.MoveEntity(firstUid, trackB, 0))
	assert.Equal(t, []types.Uid{firstUid}, r.UidsForTrack(trackB))
	owner, _ := r.TrackForEntity(firstUid)
	assert.Equal(t, trackB, owner)

	err := r.MoveEntity(secondUid, trackB, 5)
	assert.ErrorIs(t, err, types.ErrPositionOutOfBounds)
	assert.ErrorIs(t, r.MoveEntity(types.Uid(9999), trackB, 0), types.ErrEntityNotFound)
}

func TestEntityRepoConfiguresNewEntities(t *testing.T) {
	r := NewEntityRepo()
	r.UpdateSampleRate(48000)
	r.UpdateTempo(types.NewTempo(90))

	e := &countingSink{}
	r.Add(types.TrackUid(1), e)
	assert.Equal(t, types.SampleRate(48000), e.SampleRate())
	assert.Equal(t, types.NewTempo(90), e.Tempo())
}

func TestEntityRepoRemoveTrackEntities(t *testing.T) {
	r := NewEntityRepo()
	track := types.TrackUid(1)
	uidA := r.Add(track, &countingSink{})
	uidB := r.Add(track, &countingSink{})

	removed := r.RemoveTrackEntities(track)
	assert.ElementsMatch(t, []types.Uid{uidA, uidB}, removed)
	assert.Zero(t, r.EntityCount())
}
