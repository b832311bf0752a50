package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schollz/minidaw/internal/types"
)

func TestTransportDefaults(t *testing.T) {
	tr := NewTransport()
	assert.Equal(t, types.TempoDefault, tr.Tempo())
	assert.Equal(t, types.CommonTime, tr.TimeSignature())
	assert.Equal(t, types.DefaultSampleRate, tr.SampleRate())
	assert.Equal(t, types.TimeZero, tr.CurrentTime())
	assert.False(t, tr.IsPerforming())
}

func TestTransportAdvanceOnlyWhilePerforming(t *testing.T) {
	tr := NewTransport()
	tr.UpdateSampleRate(44100)
	tr.UpdateTempo(types.NewTempo(60))

	r := tr.Advance(44100)
	assert.Equal(t, types.TimeZero, r.Start)
	assert.Equal(t, types.OneBeat, r.End)
	assert.Equal(t, types.TimeZero, tr.CurrentTime(), "stopped transport doesn't move")

	tr.Play()
	r = tr.Advance(44100)
	assert.Equal(t, types.TimeZero, r.Start)
	assert.Equal(t, types.OneBeat, tr.CurrentTime())

	r = tr.Advance(44100)
	assert.Equal(t, types.OneBeat, r.Start)
	assert.Equal(t, types.BeatsToUnits(2), r.End)

	tr.Stop()
	tr.SkipToStart()
	assert.Equal(t, types.TimeZero, tr.CurrentTime())
}

func TestTransportAutomatableTempo(t *testing.T) {
	tr := NewTransport()
	tr.ControlSetParamByIndex(TransportParamTempo, types.NormalMax)
	assert.Equal(t, types.TempoMax, tr.Tempo())

	tr.ControlSetParamByIndex(TransportParamTempo, 0)
	assert.Equal(t, types.TempoMin, tr.Tempo())
}

func TestTransportAutomatableTimeSignatureTop(t *testing.T) {
	tr := NewTransport()
	tr.ControlSetParamByIndex(TransportParamTimeSignatureTop, 0)
	assert.Equal(t, 1, tr.TimeSignature().Top)
	tr.ControlSetParamByIndex(TransportParamTimeSignatureTop, types.NormalMax)
	assert.Equal(t, 16, tr.TimeSignature().Top)
}

func TestTransportControlNames(t *testing.T) {
	tr := NewTransport()
	assert.Equal(t, 2, tr.ControlIndexCount())
	idx, ok := tr.ControlIndex("tempo")
	require.True(t, ok)
	assert.Equal(t, TransportParamTempo, idx)
	assert.Equal(t, "time-signature-top", tr.ControlName(TransportParamTimeSignatureTop))
	_, ok = tr.ControlIndex("nope")
	assert.False(t, ok)
}

func TestTransportSerializationRoundTrip(t *testing.T) {
	tr := NewTransport()
	tr.UpdateTempo(types.NewTempo(90))
	tr.UpdateTimeSignature(types.TimeSignature{Top: 3, Bottom: 4})
	tr.Play()
	tr.Advance(4410)

	data, err := json.Marshal(tr)
	require.NoError(t, err)

	loaded := NewTransport()
	require.NoError(t, json.Unmarshal(data, loaded))
	assert.Equal(t, tr.Tempo(), loaded.Tempo())
	assert.Equal(t, tr.TimeSignature(), loaded.TimeSignature())
	assert.Equal(t, tr.CurrentTime(), loaded.CurrentTime())
	assert.False(t, loaded.IsPerforming(), "performing state is not persisted")
}
