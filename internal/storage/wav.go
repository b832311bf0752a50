package storage

import (
	"fmt"
	"log"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/schollz/minidaw/internal/engine"
	"github.com/schollz/minidaw/internal/types"
)

const exportBlockFrames = 64

// Offline renders keep going after the material ends so effect and
// envelope tails can ring out, but never longer than this.
const maxTailSeconds = 30

// sampleToPCM16 clips to [-1, 1] and scales asymmetrically: the
// negative range has one more value than the positive range in
// 16-bit PCM.
func sampleToPCM16(s types.Sample) int {
	v := float64(s)
	if v < -1 {
		v = -1
	}
	if v > 1 {
		v = 1
	}
	if v < 0 {
		return int(v * 32768.0)
	}
	return int(v * 32767.0)
}

// ExportToWav plays the project from wherever its transport stands
// and writes the performance as 16-bit stereo PCM at the project's
// sample rate. Rendering continues until the material is finished
// and the output has decayed to silence.
func ExportToWav(p *engine.Project, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("export failed: create %s: %w", path, err)
	}
	defer out.Close()

	sampleRate := int(p.Transport.SampleRate())
	enc := wav.NewEncoder(out, sampleRate, 16, 2, 1)

	frames := make([]types.StereoSample, exportBlockFrames)
	intBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		Data:           make([]int, 2*exportBlockFrames),
		SourceBitDepth: 16,
	}

	p.Play()
	totalFrames := 0
	tailFrames := 0
	maxTailFrames := maxTailSeconds * sampleRate
	for {
		for i := range frames {
			frames[i] = types.SilentStereoSample
		}
		p.GenerateAudio(frames, nil)

		silent := true
		for i, s := range frames {
			intBuf.Data[2*i] = sampleToPCM16(s.Left)
			intBuf.Data[2*i+1] = sampleToPCM16(s.Right)
			if !s.AlmostSilent() {
				silent = false
			}
		}
		if err := enc.Write(intBuf); err != nil {
			return fmt.Errorf("export failed: write %s: %w", path, err)
		}
		totalFrames += len(frames)

		if !p.IsPerforming() {
			tailFrames += len(frames)
			if silent || tailFrames >= maxTailFrames {
				break
			}
		}
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("export failed: finalize %s: %w", path, err)
	}
	log.Printf("exported %d frames to %s", totalFrames, path)
	return nil
}

// SaveAndExport writes both the project document and its rendered
// audio next to each other.
func SaveAndExport(p *engine.Project, pathPrefix string) error {
	if err := SaveProject(p, pathPrefix+".json.gz"); err != nil {
		return err
	}
	return ExportToWav(p, pathPrefix+".wav")
}
