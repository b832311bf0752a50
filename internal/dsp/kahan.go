package dsp

// kahanSum is compensated summation. The oscillator's cycle position
// accumulates one delta per sample; naive addition drifts audibly
// over hours of playback at high sample rates.
type kahanSum struct {
	sum float64
	c   float64
}

func newKahanSum(v float64) kahanSum {
	return kahanSum{sum: v}
}

func (k *kahanSum) Add(v float64) {
	y := v - k.c
	t := k.sum + y
	k.c = (t - k.sum) - y
	k.sum = t
}

func (k *kahanSum) Sum() float64 { return k.sum }
