package entities

import (
	"math"

	"github.com/schollz/minidaw/internal/engine"
	"github.com/schollz/minidaw/internal/types"
)

// Gain scales the signal chain by a level in [0, 1].
type Gain struct {
	engine.BaseEntity
	Level types.Normal `json:"level"`
}

func NewGain(level types.Normal) *Gain {
	return &Gain{Level: level}
}

func (g *Gain) Key() string  { return "gain" }
func (g *Gain) Name() string { return "Gain" }

func (g *Gain) IsEffect() bool { return true }

func (g *Gain) TransformAudio(values []types.StereoSample) {
	types.ScaleStereo(values, g.Level)
}

func (g *Gain) ControlIndexCount() int { return 1 }

func (g *Gain) ControlName(index types.ControlIndex) string {
	if index == 0 {
		return "level"
	}
	return ""
}

func (g *Gain) ControlIndex(name string) (types.ControlIndex, bool) {
	if name == "level" {
		return 0, true
	}
	return 0, false
}

func (g *Gain) ControlSetParamByIndex(index types.ControlIndex, value types.ControlValue) {
	if index == 0 {
		g.Level = value
	}
}

// Bitcrusher quantizes samples to a reduced bit depth for a lo-fi
// texture.
type Bitcrusher struct {
	engine.BaseEntity
	// Bits in 1..16; fewer bits is crunchier.
	Bits int `json:"bits"`
}

func NewBitcrusher(bits int) *Bitcrusher {
	b := &Bitcrusher{Bits: bits}
	b.clampBits()
	return b
}

func (b *Bitcrusher) clampBits() {
	if b.Bits < 1 {
		b.Bits = 1
	}
	if b.Bits > 16 {
		b.Bits = 16
	}
}

func (b *Bitcrusher) Key() string  { return "bitcrusher" }
func (b *Bitcrusher) Name() string { return "Bitcrusher" }

func (b *Bitcrusher) IsEffect() bool { return true }

func (b *Bitcrusher) TransformAudio(values []types.StereoSample) {
	steps := math.Pow(2, float64(b.Bits)) / 2
	crush := func(s types.Sample) types.Sample {
		return types.Sample(math.Round(float64(s)*steps) / steps)
	}
	for i := range values {
		values[i].Left = crush(values[i].Left)
		values[i].Right = crush(values[i].Right)
	}
}

func (b *Bitcrusher) ControlIndexCount() int { return 1 }

func (b *Bitcrusher) ControlName(index types.ControlIndex) string {
	if index == 0 {
		return "bits"
	}
	return ""
}

func (b *Bitcrusher) ControlIndex(name string) (types.ControlIndex, bool) {
	if name == "bits" {
		return 0, true
	}
	return 0, false
}

func (b *Bitcrusher) ControlSetParamByIndex(index types.ControlIndex, value types.ControlValue) {
	if index == 0 {
		b.Bits = int(float64(value)*15) + 1
		b.clampBits()
	}
}

func (b *Bitcrusher) AfterLoad() { b.clampBits() }

func init() {
	engine.RegisterEntity("gain", func() engine.Entity { return NewGain(types.NormalMax) })
	engine.RegisterEntity("bitcrusher", func() engine.Entity { return NewBitcrusher(8) })
}
