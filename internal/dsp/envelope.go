package dsp

import (
	"github.com/schollz/minidaw/internal/types"
)

// EnvelopeState is the ADSR state machine's position.
type EnvelopeState int

const (
	EnvelopeIdle EnvelopeState = iota
	EnvelopeAttack
	EnvelopeDecay
	EnvelopeSustain
	EnvelopeRelease
	// EnvelopeShutdown exists for voice stealing: it ramps to zero in
	// a fixed millisecond regardless of the configured release, so
	// stolen voices don't click.
	EnvelopeShutdown
)

func (s EnvelopeState) String() string {
	switch s {
	case EnvelopeAttack:
		return "attack"
	case EnvelopeDecay:
		return "decay"
	case EnvelopeSustain:
		return "sustain"
	case EnvelopeRelease:
		return "release"
	case EnvelopeShutdown:
		return "shutdown"
	default:
		return "idle"
	}
}

// EnvelopeMaxSeconds is what a time parameter of 1.0 maps to.
const EnvelopeMaxSeconds = 30.0

// SecondsToNormal converts seconds to the normalized time
// representation used by the envelope's parameters.
func SecondsToNormal(s types.Seconds) types.Normal {
	return types.NewNormal(float64(s) / EnvelopeMaxSeconds)
}

// NormalToSeconds is the inverse of SecondsToNormal.
func NormalToSeconds(n types.Normal) types.Seconds {
	return types.Seconds(float64(n) * EnvelopeMaxSeconds)
}

// Envelope is a six-state ADSR. Attack is shaped by a convex
// quadratic, decay and release by concave quadratics, sustain is
// linear. Attack, Decay, and Release are normalized times (1.0 = 30
// seconds); Sustain is a level.
type Envelope struct {
	Attack  types.Normal `json:"attack"`
	Decay   types.Normal `json:"decay"`
	Sustain types.Normal `json:"sustain"`
	Release types.Normal `json:"release"`

	sampleRate       types.SampleRate
	state            EnvelopeState
	handledFirstTick bool

	ticks uint64
	time  types.Seconds

	uncorrectedAmplitude kahanSum
	correctedAmplitude   float64
	delta                float64
	amplitudeTarget      float64
	timeTarget           types.Seconds

	// When the amplitude was set to an explicit value this frame, the
	// caller expects to observe exactly that value, so Generate
	// returns the pre-update amplitude instead of the usual
	// post-update one.
	amplitudeWasSet bool

	convexA, convexB, convexC    float64
	concaveA, concaveB, concaveC float64
}

// NewEnvelope returns an envelope with the given normalized
// parameters.
func NewEnvelope(attack, decay, sustain, release types.Normal) *Envelope {
	return &Envelope{
		Attack:     attack,
		Decay:      decay,
		Sustain:    sustain,
		Release:    release,
		sampleRate: types.DefaultSampleRate,
	}
}

// SafeDefaultEnvelope is quick to speak and quick to die away; good
// for testing and lazy development.
func SafeDefaultEnvelope() *Envelope {
	return NewEnvelope(0.002, 0.005, 0.8, 0.01)
}

func (e *Envelope) SampleRate() types.SampleRate { return e.sampleRate }

func (e *Envelope) UpdateSampleRate(rate types.SampleRate) {
	e.sampleRate = types.NewSampleRate(int(rate))
	e.handledFirstTick = false
}

func (e *Envelope) Tempo() types.Tempo                      { return types.TempoDefault }
func (e *Envelope) UpdateTempo(types.Tempo)                 {}
func (e *Envelope) TimeSignature() types.TimeSignature      { return types.CommonTime }
func (e *Envelope) UpdateTimeSignature(types.TimeSignature) {}

func (e *Envelope) Reset() {
	e.setState(EnvelopeIdle)
	e.ticks = 0
	e.time = 0
	e.handledFirstTick = false
}

func (e *Envelope) AfterLoad() {
	if e.sampleRate == 0 {
		e.sampleRate = types.DefaultSampleRate
	}
}

func (e *Envelope) TriggerAttack()   { e.setState(EnvelopeAttack) }
func (e *Envelope) TriggerRelease()  { e.setState(EnvelopeRelease) }
func (e *Envelope) TriggerShutdown() { e.setState(EnvelopeShutdown) }

func (e *Envelope) IsIdle() bool { return e.state == EnvelopeIdle }

func (e *Envelope) State() EnvelopeState { return e.state }

// Generate fills values with the next amplitudes. Returns true if
// any generated amplitude was nonzero.
func (e *Envelope) Generate(values []types.Normal) bool {
	generatedSignal := false
	for i := range values {
		preUpdateAmplitude := e.uncorrectedAmplitude.Sum()
		if !e.handledFirstTick {
			e.handledFirstTick = true
		} else {
			e.ticks++
			e.uncorrectedAmplitude.Add(e.delta)
		}
		e.time = types.Seconds(float64(e.ticks) / float64(e.sampleRate))

		e.handleState()

		linearAmplitude := e.uncorrectedAmplitude.Sum()
		if e.amplitudeWasSet {
			e.amplitudeWasSet = false
			linearAmplitude = preUpdateAmplitude
		}
		switch e.state {
		case EnvelopeAttack:
			e.correctedAmplitude = e.transformLinearToConvex(linearAmplitude)
		case EnvelopeDecay, EnvelopeRelease:
			e.correctedAmplitude = e.transformLinearToConcave(linearAmplitude)
		default:
			e.correctedAmplitude = linearAmplitude
		}
		generatedSignal = generatedSignal || e.correctedAmplitude != 0.0
		values[i] = types.NewNormal(e.correctedAmplitude)
	}
	return generatedSignal
}

func (e *Envelope) handleState() {
	var nextState EnvelopeState
	var awaitingTarget bool
	switch e.state {
	case EnvelopeIdle:
		nextState, awaitingTarget = EnvelopeIdle, false
	case EnvelopeAttack:
		nextState, awaitingTarget = EnvelopeDecay, true
	case EnvelopeDecay:
		nextState, awaitingTarget = EnvelopeSustain, true
	case EnvelopeSustain:
		nextState, awaitingTarget = EnvelopeSustain, false
	case EnvelopeRelease:
		nextState, awaitingTarget = EnvelopeIdle, true
	case EnvelopeShutdown:
		nextState, awaitingTarget = EnvelopeIdle, true
	}
	if awaitingTarget && e.hasReachedTarget() {
		e.setState(nextState)
	}
}

func (e *Envelope) hasReachedTarget() bool {
	var hasHitTarget bool
	switch {
	case e.delta == 0.0:
		// Degenerate, but we don't want to be stuck in this state
		// forever.
		hasHitTarget = true
	case e.timeTarget != 0.0 && e.time >= e.timeTarget:
		// The time target wins even if the amplitude isn't quite
		// there yet.
		hasHitTarget = true
	default:
		// As close as we're going to get without overshooting next
		// time.
		diff := e.uncorrectedAmplitude.Sum() - e.amplitudeTarget
		hasHitTarget = abs(diff) < abs(e.delta)
	}
	if hasHitTarget {
		// Snap to the exact target in case of precision errors.
		e.uncorrectedAmplitude = newKahanSum(e.amplitudeTarget)
	}
	return hasHitTarget
}

// setState assumes the prior state actually happened and the
// amplitude holds a reasonable value. That matters when attack is
// zero and decay isn't: decay must start from maximum, not from the
// idle amplitude of zero.
func (e *Envelope) setState(newState EnvelopeState) {
	switch newState {
	case EnvelopeIdle:
		e.state = EnvelopeIdle
		e.uncorrectedAmplitude = kahanSum{}
		e.delta = 0.0
	case EnvelopeAttack:
		if e.Attack == types.NormalMin {
			e.setExplicitAmplitude(types.NormalMax)
			e.setState(EnvelopeDecay)
			return
		}
		e.state = EnvelopeAttack
		targetAmplitude := float64(types.NormalMax)
		e.setTarget(types.NormalMax, e.Attack, false, false)
		currentAmplitude := e.uncorrectedAmplitude.Sum()
		e.convexA, e.convexB, e.convexC = curveCoefficients(
			currentAmplitude, currentAmplitude,
			(targetAmplitude-currentAmplitude)/2.0+currentAmplitude,
			(targetAmplitude-currentAmplitude)/1.5+currentAmplitude,
			targetAmplitude, targetAmplitude,
		)
	case EnvelopeDecay:
		if e.Decay == types.NormalMin {
			e.setExplicitAmplitude(e.Sustain)
			e.setState(EnvelopeSustain)
			return
		}
		e.state = EnvelopeDecay
		targetAmplitude := float64(e.Sustain)
		e.setTarget(e.Sustain, e.Decay, true, false)
		currentAmplitude := e.uncorrectedAmplitude.Sum()
		e.concaveA, e.concaveB, e.concaveC = curveCoefficients(
			currentAmplitude, currentAmplitude,
			(currentAmplitude-targetAmplitude)/2.0+targetAmplitude,
			(currentAmplitude-targetAmplitude)/3.0+targetAmplitude,
			targetAmplitude, targetAmplitude,
		)
	case EnvelopeSustain:
		e.state = EnvelopeSustain
		e.setTarget(e.Sustain, types.NormalMax, false, false)
	case EnvelopeRelease:
		if e.Release == types.NormalMin {
			e.setExplicitAmplitude(types.NormalMax)
			e.setState(EnvelopeIdle)
			return
		}
		e.state = EnvelopeRelease
		targetAmplitude := 0.0
		e.setTarget(types.NormalMin, e.Release, true, false)
		currentAmplitude := e.uncorrectedAmplitude.Sum()
		e.concaveA, e.concaveB, e.concaveC = curveCoefficients(
			currentAmplitude, currentAmplitude,
			(currentAmplitude-targetAmplitude)/2.0+targetAmplitude,
			(currentAmplitude-targetAmplitude)/3.0+targetAmplitude,
			targetAmplitude, targetAmplitude,
		)
	case EnvelopeShutdown:
		e.state = EnvelopeShutdown
		e.setTarget(types.NormalMin, SecondsToNormal(types.Seconds(1.0/1000.0)), false, true)
	}
}

func (e *Envelope) setExplicitAmplitude(amplitude types.Normal) {
	e.uncorrectedAmplitude = newKahanSum(float64(amplitude))
	e.amplitudeWasSet = true
}

func (e *Envelope) setTarget(
	targetAmplitude types.Normal,
	duration types.Normal,
	calculateForFullAmplitudeRange bool,
	fastReaction bool,
) {
	e.amplitudeTarget = float64(targetAmplitude)
	if duration == types.NormalMax {
		e.timeTarget = types.SecondsInfinite()
		e.delta = 0.0
		return
	}
	fastReactionExtraFrame := 0.0
	if fastReaction {
		fastReactionExtraFrame = 1.0
	}
	rng := e.amplitudeTarget - e.uncorrectedAmplitude.Sum()
	if calculateForFullAmplitudeRange {
		rng = -1.0
	}
	durationSeconds := NormalToSeconds(duration)
	e.timeTarget = e.time + durationSeconds
	if duration != types.NormalMin {
		e.delta = rng / (float64(durationSeconds)*float64(e.sampleRate) + fastReactionExtraFrame)
	} else {
		e.delta = 0.0
	}
	if fastReaction {
		e.uncorrectedAmplitude.Add(e.delta)
	}
}

// curveCoefficients solves y = a + b*x + c*x^2 through three anchor
// points. When the anchors coincide the curve is a point, so the
// identity keeps the transform from blowing up on a singular matrix.
func curveCoefficients(x0, y0, x1, y1, x2, y2 float64) (a, b, c float64) {
	if x0 == x1 && x1 == x2 && y0 == y1 && y1 == y2 {
		return 0.0, 1.0, 0.0
	}
	// Cramer's rule on the 3x3 Vandermonde system.
	det := (x1*x2*x2 - x2*x1*x1) - (x0*x2*x2 - x2*x0*x0) + (x0*x1*x1 - x1*x0*x0)
	if det == 0 {
		return 0.0, 0.0, 0.0
	}
	detA := y0*(x1*x2*x2-x2*x1*x1) - y1*(x0*x2*x2-x2*x0*x0) + y2*(x0*x1*x1-x1*x0*x0)
	detB := (y1*x2*x2 - y2*x1*x1) - (y0*x2*x2 - y2*x0*x0) + (y0*x1*x1 - y1*x0*x0)
	detC := (x1*y2 - x2*y1) - (x0*y2 - x2*y0) + (x0*y1 - x1*y0)
	return detA / det, detB / det, detC / det
}

func (e *Envelope) transformLinearToConvex(v float64) float64 {
	return e.convexC*v*v + e.convexB*v + e.convexA
}

func (e *Envelope) transformLinearToConcave(v float64) float64 {
	return e.concaveC*v*v + e.concaveB*v + e.concaveA
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
