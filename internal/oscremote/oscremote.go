// Package oscremote exposes transport control over OSC, so external
// sequencer hardware or a livecoding setup can drive playback.
package oscremote

import (
	"fmt"
	"log"

	"github.com/hypebeast/go-osc/osc"

	"github.com/schollz/minidaw/internal/engine"
	"github.com/schollz/minidaw/internal/types"
)

// Server listens for transport messages on an OSC port.
type Server struct {
	project *engine.Project
	server  *osc.Server
}

// NewServer wires a dispatcher for /transport/play, /transport/stop,
// /transport/rewind, and /transport/tempo <float>.
func NewServer(p *engine.Project, port int) *Server {
	d := osc.NewStandardDispatcher()

	d.AddMsgHandler("/transport/play", func(msg *osc.Message) {
		log.Printf("osc: play")
		p.Play()
	})
	d.AddMsgHandler("/transport/stop", func(msg *osc.Message) {
		log.Printf("osc: stop")
		p.Stop()
	})
	d.AddMsgHandler("/transport/rewind", func(msg *osc.Message) {
		log.Printf("osc: rewind")
		p.SkipToStart()
	})
	d.AddMsgHandler("/transport/tempo", func(msg *osc.Message) {
		if len(msg.Arguments) == 0 {
			return
		}
		var bpm float64
		switch v := msg.Arguments[0].(type) {
		case float32:
			bpm = float64(v)
		case float64:
			bpm = v
		case int32:
			bpm = float64(v)
		default:
			log.Printf("osc: unsupported tempo argument %T", v)
			return
		}
		log.Printf("osc: tempo %0.2f", bpm)
		p.Lock()
		p.Transport.UpdateTempo(types.NewTempo(bpm))
		p.Orchestrator.Entities.UpdateTempo(p.Transport.Tempo())
		p.Unlock()
	})

	return &Server{
		project: p,
		server:  &osc.Server{Addr: fmt.Sprintf(":%d", port), Dispatcher: d},
	}
}

// ListenAndServe blocks; run it on its own goroutine.
func (s *Server) ListenAndServe() error {
	log.Printf("starting OSC server on %s", s.server.Addr)
	return s.server.ListenAndServe()
}
