package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/schollz/minidaw/internal/audio"
	"github.com/schollz/minidaw/internal/engine"
	_ "github.com/schollz/minidaw/internal/entities"
	"github.com/schollz/minidaw/internal/midiconnector"
	"github.com/schollz/minidaw/internal/oscremote"
	"github.com/schollz/minidaw/internal/storage"
	"github.com/schollz/minidaw/internal/types"
)

// Exit codes for scripted use.
const (
	exitOK         = 0
	exitLoadFailed = 1
	exitSaveFailed = 2
)

var (
	debugLog string
	oscPort  int
)

func setupLogging() {
	if debugLog != "" {
		f, err := os.OpenFile(debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Printf("Fatal: %v", err)
			os.Exit(exitLoadFailed)
		}
		log.SetOutput(f)
		// Include file and line number for clickable links in editors.
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		return
	}
	log.SetOutput(io.Discard)
}

func main() {
	root := &cobra.Command{
		Use:   "minidaw",
		Short: "A small DAW engine: patterns, tracks, automation, rendering",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging()
		},
	}
	root.PersistentFlags().StringVar(&debugLog, "debug", "", "If set, write debug logs to this file; empty disables logging")

	var outFile string
	render := &cobra.Command{
		Use:   "render <project.json.gz>",
		Short: "Render a project to a WAV file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			project, err := storage.LoadProject(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(exitLoadFailed)
			}
			if outFile == "" {
				outFile = args[0] + ".wav"
			}
			if err := storage.ExportToWav(project, outFile); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(exitSaveFailed)
			}
			fmt.Printf("rendered %s -> %s\n", args[0], outFile)
		},
	}
	render.Flags().StringVarP(&outFile, "out", "o", "", "Output WAV path (default: <project>.wav)")

	var midiOut string
	play := &cobra.Command{
		Use:   "play <project.json.gz>",
		Short: "Play a project on the default audio device",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			project, err := storage.LoadProject(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(exitLoadFailed)
			}
			runPlayback(project, midiOut)
		},
	}
	play.Flags().IntVar(&oscPort, "osc-port", 57121, "OSC port for transport control messages")
	play.Flags().StringVar(&midiOut, "midi-out", "", "Forward routed MIDI to this output device (partial name ok)")

	devices := &cobra.Command{
		Use:   "midi-devices",
		Short: "List available MIDI output devices",
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range midiconnector.Devices() {
				fmt.Println(name)
			}
		},
	}

	root.AddCommand(render, play, devices)
	if err := root.Execute(); err != nil {
		os.Exit(exitLoadFailed)
	}
}

func runPlayback(project *engine.Project, midiOut string) {
	var midiFn types.MidiMessagesFn
	if midiOut != "" {
		device, err := midiconnector.New(midiOut)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(exitLoadFailed)
		}
		if err := device.Open(); err != nil {
			fmt.Fprintf(os.Stderr, "error: could not open MIDI device: %v\n", err)
			os.Exit(exitLoadFailed)
		}
		defer device.Close()
		midiFn = device.SenderFn()
	}

	out, err := audio.NewOutput(project, midiFn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not open audio device: %v\n", err)
		os.Exit(exitSaveFailed)
	}
	defer out.Close()

	remote := oscremote.NewServer(project, oscPort)
	go func() {
		if err := remote.ListenAndServe(); err != nil {
			log.Printf("Error starting OSC server: %v", err)
		}
	}()

	project.Play()
	fmt.Printf("playing %q; ctrl-c to quit\n", project.Title)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	<-c

	project.Stop()
	fmt.Println()
}
