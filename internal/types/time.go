package types

import (
	"errors"
	"fmt"
	"math"
)

// Musical time is kept as a plain count of integer units so that
// arithmetic never drifts. One beat is 16 parts, one part is 4096
// units, so a beat is 65536 units regardless of tempo or sample rate.
const (
	PartsInBeat = 16
	UnitsInPart = 4096
	UnitsInBeat = PartsInBeat * UnitsInPart
)

// MusicalTime is a nonnegative position or duration in units.
type MusicalTime uint64

const (
	TimeZero MusicalTime = 0
	TimeMax  MusicalTime = math.MaxUint64

	OneUnit MusicalTime = 1
	OnePart MusicalTime = UnitsInPart
	OneBeat MusicalTime = UnitsInBeat

	DurationBreve     MusicalTime = 2 * UnitsInBeat
	DurationWhole     MusicalTime = UnitsInBeat
	DurationHalf      MusicalTime = 8 * UnitsInPart
	DurationQuarter   MusicalTime = 4 * UnitsInPart
	DurationEighth    MusicalTime = 2 * UnitsInPart
	DurationSixteenth MusicalTime = UnitsInPart
)

// NewMusicalTime builds a time from bar/beat/part/unit components of
// the given time signature.
func NewMusicalTime(ts TimeSignature, bars, beats, parts, units int) MusicalTime {
	return BarsToUnits(ts, bars) +
		BeatsToUnits(beats) +
		PartsToUnits(parts) +
		MusicalTime(units)
}

func BarsToUnits(ts TimeSignature, bars int) MusicalTime {
	return MusicalTime(bars) * MusicalTime(ts.Top) * UnitsInBeat
}

func BeatsToUnits(beats int) MusicalTime { return MusicalTime(beats) * UnitsInBeat }

func PartsToUnits(parts int) MusicalTime { return MusicalTime(parts) * UnitsInPart }

// Add saturates at TimeMax rather than wrapping.
func (t MusicalTime) Add(rhs MusicalTime) MusicalTime {
	if t > TimeMax-rhs {
		return TimeMax
	}
	return t + rhs
}

// Sub floors at zero.
func (t MusicalTime) Sub(rhs MusicalTime) MusicalTime {
	if rhs > t {
		return TimeZero
	}
	return t - rhs
}

func (t MusicalTime) TotalUnits() uint64 { return uint64(t) }
func (t MusicalTime) TotalParts() int    { return int(t / UnitsInPart) }
func (t MusicalTime) TotalBeats() int    { return int(t / UnitsInBeat) }

func (t MusicalTime) TotalBars(ts TimeSignature) int {
	return t.TotalBeats() / ts.Top
}

// Units returns the unit component within the current part.
func (t MusicalTime) Units() int { return int(t % UnitsInPart) }

// Parts returns the part component within the current beat.
func (t MusicalTime) Parts() int { return t.TotalParts() % PartsInBeat }

// Beats returns the beat component within the current bar.
func (t MusicalTime) Beats(ts TimeSignature) int { return t.TotalBeats() % ts.Top }

func (t MusicalTime) FractionalBeats() float64 {
	return float64(t%UnitsInBeat) / float64(UnitsInBeat)
}

// Quantized rounds half-up to the nearest multiple of quantum.
func (t MusicalTime) Quantized(quantum MusicalTime) MusicalTime {
	if quantum == 0 {
		return t
	}
	quanta := (t + quantum/2) / quantum
	return quanta * quantum
}

// QuantizedToMeasure rounds half-up to the nearest bar boundary.
func (t MusicalTime) QuantizedToMeasure(ts TimeSignature) MusicalTime {
	return t.Quantized(BeatsToUnits(ts.Top))
}

func (t MusicalTime) String() string {
	return fmt.Sprintf("%d.%02d.%04d", t.TotalBeats(), t.Parts(), t.Units())
}

// FramesToUnits converts a frame count to elapsed musical time at the
// given tempo and sample rate. Whole beats are computed exactly; the
// fractional remainder is rounded half-up to the nearest unit.
func FramesToUnits(tempo Tempo, rate SampleRate, frames int) MusicalTime {
	elapsedBeats := float64(frames) / float64(rate) * tempo.BPS()
	whole, frac := math.Modf(elapsedBeats)
	return BeatsToUnits(int(whole)) + MusicalTime(frac*UnitsInBeat+0.5)
}

// UnitsToFrames converts musical time to a frame count, rounding
// half-up. For part-aligned times the round trip through
// FramesToUnits is exact.
func UnitsToFrames(tempo Tempo, rate SampleRate, t MusicalTime) int {
	framesPerBeat := float64(rate) / tempo.BPS()
	return int(framesPerBeat*(float64(t)/float64(UnitsInBeat)) + 0.5)
}

// Tempo is beats per minute.
type Tempo float64

const (
	TempoMin     Tempo = 0.0
	TempoMax     Tempo = 1024.0
	TempoDefault Tempo = 128.0
)

// NewTempo clamps to the valid range.
func NewTempo(bpm float64) Tempo {
	if bpm < float64(TempoMin) {
		return TempoMin
	}
	if bpm > float64(TempoMax) {
		return TempoMax
	}
	return Tempo(bpm)
}

// BPS is beats per second.
func (t Tempo) BPS() float64 { return float64(t) / 60.0 }

func (t Tempo) String() string { return fmt.Sprintf("%0.2f BPM", float64(t)) }

// ErrInvalidTimeSignature is returned for a zero top or a bottom that
// is not a power of two in 1..512.
var ErrInvalidTimeSignature = errors.New("invalid time signature")

// TimeSignature is top beats per bar over a power-of-two bottom.
type TimeSignature struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

var CommonTime = TimeSignature{Top: 4, Bottom: 4}
var CutTime = TimeSignature{Top: 2, Bottom: 2}

func NewTimeSignature(top, bottom int) (TimeSignature, error) {
	if top == 0 {
		return TimeSignature{}, fmt.Errorf("%w: top %d", ErrInvalidTimeSignature, top)
	}
	if bottom < 1 || bottom > 512 || bottom&(bottom-1) != 0 {
		return TimeSignature{}, fmt.Errorf("%w: bottom %d", ErrInvalidTimeSignature, bottom)
	}
	return TimeSignature{Top: top, Bottom: bottom}, nil
}

// Duration is the length of one bar.
func (ts TimeSignature) Duration() MusicalTime { return BeatsToUnits(ts.Top) }

func (ts TimeSignature) String() string { return fmt.Sprintf("%d/%d", ts.Top, ts.Bottom) }

// SampleRate is samples per second.
type SampleRate int

const DefaultSampleRate SampleRate = 44100

// NewSampleRate coerces nonpositive values to the default.
func NewSampleRate(rate int) SampleRate {
	if rate <= 0 {
		return DefaultSampleRate
	}
	return SampleRate(rate)
}

// Seconds is wall-clock time.
type Seconds float64

func SecondsInfinite() Seconds { return Seconds(math.Inf(1)) }

// TimeRange is a half-open [Start, End) span of musical time.
type TimeRange struct {
	Start MusicalTime `json:"start"`
	End   MusicalTime `json:"end"`
}

func NewTimeRange(start, end MusicalTime) TimeRange { return TimeRange{Start: start, End: end} }

// EmptyTimeRange contains nothing.
func EmptyTimeRange() TimeRange { return TimeRange{Start: TimeMax, End: TimeMax} }

func (r TimeRange) Duration() MusicalTime { return r.End.Sub(r.Start) }

func (r TimeRange) IsEmpty() bool { return r.End <= r.Start }

func (r TimeRange) Contains(t MusicalTime) bool { return t >= r.Start && t < r.End }

func (r TimeRange) Overlaps(other TimeRange) bool {
	if r.IsEmpty() || other.IsEmpty() {
		return false
	}
	return r.Start < other.End && other.Start < r.End
}

// Translate shifts the range later by delta.
func (r TimeRange) Translate(delta MusicalTime) TimeRange {
	return TimeRange{Start: r.Start.Add(delta), End: r.End.Add(delta)}
}

// TranslateTo moves the range so it begins at position, preserving
// its duration.
func (r TimeRange) TranslateTo(position MusicalTime) TimeRange {
	return TimeRange{Start: position, End: position.Add(r.Duration())}
}

// Expand grows the range to cover other. An empty receiver adopts
// other outright.
func (r TimeRange) Expand(other TimeRange) TimeRange {
	if other.IsEmpty() {
		return r
	}
	if r.IsEmpty() {
		return other
	}
	out := r
	if other.Start < out.Start {
		out.Start = other.Start
	}
	if other.End > out.End {
		out.End = other.End
	}
	return out
}

// ViewRange is a TimeRange reserved for UI state. It never affects
// audio.
type ViewRange TimeRange
