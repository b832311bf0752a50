package engine

import (
	"math"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/minidaw/internal/types"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reserved uids. Entity factories mint from 1024, so these can never
// collide.
const (
	OrchestratorUid = types.Uid(1)
	// TransportUid is the automation target for tempo and
	// time-signature changes.
	TransportUid = types.Uid(2)
)

// Automatable transport parameters.
const (
	TransportParamTempo            = types.ControlIndex(0)
	TransportParamTimeSignatureTop = types.ControlIndex(1)
)

// Transport is the global clock: it advances musical time once per
// audio buffer and owns the performance's tempo and time signature.
type Transport struct {
	sampleRate    types.SampleRate
	tempo         types.Tempo
	timeSignature types.TimeSignature
	currentTime   types.MusicalTime
	isPerforming  bool
}

func NewTransport() *Transport {
	return &Transport{
		sampleRate:    types.DefaultSampleRate,
		tempo:         types.TempoDefault,
		timeSignature: types.CommonTime,
	}
}

// Advance converts a frame count to musical time and returns the
// half-open range the coming buffer covers. Time only moves while
// performing.
func (t *Transport) Advance(frameCount int) types.TimeRange {
	delta := types.FramesToUnits(t.tempo, t.sampleRate, frameCount)
	r := types.NewTimeRange(t.currentTime, t.currentTime.Add(delta))
	if t.isPerforming {
		t.currentTime = r.End
	}
	return r
}

func (t *Transport) CurrentTime() types.MusicalTime { return t.currentTime }
func (t *Transport) IsPerforming() bool             { return t.isPerforming }

func (t *Transport) Play()        { t.isPerforming = true }
func (t *Transport) Stop()        { t.isPerforming = false }
func (t *Transport) SkipToStart() { t.currentTime = types.TimeZero }

func (t *Transport) SampleRate() types.SampleRate { return t.sampleRate }
func (t *Transport) UpdateSampleRate(rate types.SampleRate) {
	t.sampleRate = types.NewSampleRate(int(rate))
}

func (t *Transport) Tempo() types.Tempo            { return t.tempo }
func (t *Transport) UpdateTempo(tempo types.Tempo) { t.tempo = types.NewTempo(float64(tempo)) }

func (t *Transport) TimeSignature() types.TimeSignature { return t.timeSignature }
func (t *Transport) UpdateTimeSignature(ts types.TimeSignature) {
	if ts.Top != 0 {
		t.timeSignature = ts
	}
}

func (t *Transport) Reset() { t.currentTime = types.TimeZero }

func (t *Transport) ControlIndexCount() int { return 2 }

func (t *Transport) ControlName(index types.ControlIndex) string {
	switch index {
	case TransportParamTempo:
		return "tempo"
	case TransportParamTimeSignatureTop:
		return "time-signature-top"
	default:
		return ""
	}
}

func (t *Transport) ControlIndex(name string) (types.ControlIndex, bool) {
	switch name {
	case "tempo":
		return TransportParamTempo, true
	case "time-signature-top":
		return TransportParamTimeSignatureTop, true
	default:
		return 0, false
	}
}

func (t *Transport) ControlSetParamByIndex(index types.ControlIndex, value types.ControlValue) {
	switch index {
	case TransportParamTempo:
		t.tempo = types.NewTempo(float64(value) * float64(types.TempoMax))
	case TransportParamTimeSignatureTop:
		// Map the normalized value onto tops 1..16.
		top := int(math.Round(float64(value)*15.0)) + 1
		t.timeSignature.Top = top
	}
}

type transportJSON struct {
	SampleRate    types.SampleRate    `json:"sample_rate"`
	Tempo         types.Tempo         `json:"tempo"`
	TimeSignature types.TimeSignature `json:"time_signature"`
	CurrentTime   types.MusicalTime   `json:"current_time"`
}

func (t *Transport) MarshalJSON() ([]byte, error) {
	return json.Marshal(transportJSON{
		SampleRate:    t.sampleRate,
		Tempo:         t.tempo,
		TimeSignature: t.timeSignature,
		CurrentTime:   t.currentTime,
	})
}

func (t *Transport) UnmarshalJSON(data []byte) error {
	var dto transportJSON
	if err := json.Unmarshal(data, &dto); err != nil {
		return err
	}
	t.sampleRate = types.NewSampleRate(int(dto.SampleRate))
	t.tempo = types.NewTempo(float64(dto.Tempo))
	t.timeSignature = dto.TimeSignature
	if t.timeSignature.Top == 0 {
		t.timeSignature = types.CommonTime
	}
	t.currentTime = dto.CurrentTime
	return nil
}
