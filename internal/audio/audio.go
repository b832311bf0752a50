// Package audio streams a project's rendered output to the default
// audio device. The engine stays device-agnostic: it just renders
// into the buffers this bridge asks for.
package audio

import (
	"encoding/binary"
	"io"
	"log"

	"github.com/ebitengine/oto/v3"

	"github.com/schollz/minidaw/internal/engine"
	"github.com/schollz/minidaw/internal/types"
)

// Output owns the device context and the streaming player.
type Output struct {
	project   *engine.Project
	otoCtx    *oto.Context
	otoPlayer *oto.Player
	midiFn    types.MidiMessagesFn
	running   bool
}

// NewOutput opens the default device at the project's sample rate
// and starts pulling audio. midiFn, when non-nil, receives routed
// MIDI so it can be forwarded to external devices.
func NewOutput(p *engine.Project, midiFn types.MidiMessagesFn) (*Output, error) {
	sampleRate := int(p.Transport.SampleRate())
	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, err
	}
	<-ready

	out := &Output{
		project: p,
		otoCtx:  otoCtx,
		midiFn:  midiFn,
		running: true,
	}
	out.otoPlayer = otoCtx.NewPlayer(&engineStream{out: out})
	// 100ms device-side buffer keeps underruns rare without making
	// transport commands feel laggy.
	out.otoPlayer.SetBufferSize(sampleRate / 10 * 4)
	out.otoPlayer.Play()
	log.Printf("audio output started at %d Hz", sampleRate)
	return out, nil
}

// Close stops the stream. Safe to call more than once.
func (o *Output) Close() {
	if !o.running {
		return
	}
	o.running = false
	if o.otoPlayer != nil {
		o.otoPlayer.Close()
	}
}

// engineStream adapts the project's block renderer to the io.Reader
// the device callback pulls from.
type engineStream struct {
	out    *Output
	frames []types.StereoSample
}

var _ io.Reader = (*engineStream)(nil)

func (s *engineStream) Read(buf []byte) (int, error) {
	// 2 channels x 2 bytes.
	frameCount := len(buf) / 4
	if frameCount == 0 {
		return 0, nil
	}
	if !s.out.running {
		for i := range buf {
			buf[i] = 0
		}
		return len(buf), nil
	}

	if cap(s.frames) < frameCount {
		s.frames = make([]types.StereoSample, frameCount)
	}
	s.frames = s.frames[:frameCount]
	for i := range s.frames {
		s.frames[i] = types.SilentStereoSample
	}

	// The audio thread takes the project's write lock for exactly one
	// generation call.
	s.out.project.GenerateAudio(s.frames, s.out.midiFn)

	for i, frame := range s.frames {
		binary.LittleEndian.PutUint16(buf[4*i:], uint16(pcm16(frame.Left)))
		binary.LittleEndian.PutUint16(buf[4*i+2:], uint16(pcm16(frame.Right)))
	}
	return frameCount * 4, nil
}

func pcm16(s types.Sample) int16 {
	v := float64(s)
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	if v < 0 {
		return int16(v * 32768.0)
	}
	return int16(v * 32767.0)
}
