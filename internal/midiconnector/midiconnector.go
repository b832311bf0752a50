// Package midiconnector bridges routed engine MIDI to OS MIDI
// output ports. The engine itself never touches device I/O; it hands
// messages to a callback, and this package owns the ports.
package midiconnector

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/schollz/minidaw/internal/types"
)

var mutex sync.Mutex

var devicesOpen map[string]drivers.Out

func init() {
	devicesOpen = make(map[string]drivers.Out)
}

// Device is one named output port. It remembers which notes it has
// started so closing the device can silence them.
type Device struct {
	name    string
	num     int
	notesOn map[uint8]uint8
}

func filterName(name string) (string, int, error) {
	return matchName(name, Devices())
}

// matchName resolves a user-supplied name against the available port
// names: exact match first, then prefix, then substring.
func matchName(name string, names []string) (foundName string, foundNum int, err error) {
	// Truncate to the first 3 words; port names often carry noisy
	// suffixes like client ids.
	words := strings.Fields(name)
	if len(words) > 3 {
		words = words[:3]
	}
	truncatedName := strings.Join(words, " ")

	for i, n := range names {
		if strings.EqualFold(n, truncatedName) {
			return n, i, nil
		}
	}
	for i, n := range names {
		if strings.HasPrefix(strings.ToLower(n), strings.ToLower(truncatedName)) {
			return n, i, nil
		}
	}
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), strings.ToLower(truncatedName)) {
			return n, i, nil
		}
	}
	return "", -1, fmt.Errorf("could not find device with name %s", truncatedName)
}

// New resolves a device by (partial) name.
func New(name string) (*Device, error) {
	var d Device
	var err error
	d.name, d.num, err = filterName(name)
	d.notesOn = make(map[uint8]uint8)
	return &d, err
}

// Close closes every open port.
func Close() {
	mutex.Lock()
	defer mutex.Unlock()
	for _, out := range devicesOpen {
		out.Close()
	}
}

func (d *Device) Name() string { return d.name }

func (d *Device) Open() (err error) {
	mutex.Lock()
	defer mutex.Unlock()
	if _, ok := devicesOpen[d.name]; ok {
		return
	}
	out, err := midi.FindOutPort(d.name)
	if err == nil {
		devicesOpen[d.name] = out
		err = out.Open()
	}
	return
}

func (d *Device) Close() (err error) {
	// Silence everything we started before closing.
	for note, ch := range d.notesOn {
		d.NoteOff(ch, note)
	}
	mutex.Lock()
	defer mutex.Unlock()
	if out, ok := devicesOpen[d.name]; ok {
		err = out.Close()
		delete(devicesOpen, d.name)
	}
	return
}

// Send writes a raw message, tracking note state for cleanup.
func (d *Device) Send(message midi.Message) (err error) {
	var ch, key, velocity uint8
	switch {
	case message.GetNoteStart(&ch, &key, &velocity):
		return d.NoteOn(ch, key, velocity)
	case message.GetNoteEnd(&ch, &key):
		return d.NoteOff(ch, key)
	}
	mutex.Lock()
	defer mutex.Unlock()
	if out, ok := devicesOpen[d.name]; ok {
		err = out.Send(message.Bytes())
		if err != nil {
			log.Printf("MIDI send error for device %s: %v", d.name, err)
		}
	}
	return
}

// SenderFn adapts the device into the engine's MIDI callback shape.
func (d *Device) SenderFn() types.MidiMessagesFn {
	return func(channel types.MidiChannel, message midi.Message) {
		if err := d.Send(message); err != nil {
			log.Printf("MIDI forward error for device %s: %v", d.name, err)
		}
	}
}

func (d *Device) NoteOn(channel, note, velocity uint8) (err error) {
	mutex.Lock()
	defer mutex.Unlock()
	if out, ok := devicesOpen[d.name]; ok {
		err = out.Send([]byte{0x90 | channel, note, velocity})
		if err != nil {
			// Log MIDI errors instead of letting them print to stderr.
			log.Printf("MIDI NoteOn error for device %s: %v", d.name, err)
		} else {
			d.notesOn[note] = channel
		}
	}
	return
}

func (d *Device) NoteOff(channel, note uint8) (err error) {
	mutex.Lock()
	defer mutex.Unlock()
	if out, ok := devicesOpen[d.name]; ok {
		err = out.Send([]byte{0x80 | channel, note, 0})
		if err != nil {
			// Log MIDI errors instead of letting them print to stderr.
			log.Printf("MIDI NoteOff error for device %s: %v", d.name, err)
		} else {
			delete(d.notesOn, note)
		}
	}
	return
}

// Devices lists the available output port names.
func Devices() (devices []string) {
	outs := midi.GetOutPorts()
	for _, out := range outs {
		devices = append(devices, out.String())
	}
	return
}
