// Package storage persists projects as gzipped JSON documents and
// renders them to WAV files.
package storage

import (
	"compress/gzip"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/schollz/minidaw/internal/engine"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SaveProject writes the project to path as gzipped JSON. The
// document's top-level shape is the Project struct itself: title,
// track metadata, rng seed, transport, orchestrator, automator,
// composer, MIDI routing, signal paths, and view state. All musical
// times serialize as unit integers.
func SaveProject(p *engine.Project, path string) error {
	p.BeforeSave()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("save failed: marshal project: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("save failed: create folder %s: %w", dir, err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save failed: create %s: %w", path, err)
	}
	defer file.Close()

	gzWriter := gzip.NewWriter(file)
	if _, err := gzWriter.Write(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("save failed: write %s: %w", path, err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("save failed: flush %s: %w", path, err)
	}
	log.Printf("saved project to %s (%d bytes uncompressed)", path, len(data))
	return nil
}

// LoadProject reads a project saved by SaveProject and rebuilds its
// runtime caches.
func LoadProject(path string) (*engine.Project, error) {
	startTime := time.Now()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("load failed: open %s: %w", path, err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("load failed: gzip %s: %w", path, err)
	}
	defer gzReader.Close()

	data, err := io.ReadAll(gzReader)
	if err != nil {
		return nil, fmt.Errorf("load failed: read %s: %w", path, err)
	}

	p := engine.NewProject()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("load failed: unmarshal %s: %w", path, err)
	}
	p.AfterLoad()

	log.Printf("loaded project %q from %s in %d ms", p.Title, path,
		time.Since(startTime).Milliseconds())
	return p, nil
}
