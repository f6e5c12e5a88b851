package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/leandrodaf/midi-archiver/internal/logger"
	"github.com/leandrodaf/midi-archiver/sdk/archiver"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

func main() {
	log := logger.NewZapLogger()

	a, err := archiver.NewArchiver(
		contracts.WithLogger(log),
		contracts.WithLogLevel(contracts.DebugLevel),
		contracts.WithDataDir("recordings"),
		contracts.WithCatalogPath("recordings/catalog.db"),
		contracts.WithFlushDelay(3*time.Second),
		contracts.WithMIDIEventFilter(contracts.MIDIEventFilter{
			Commands: []contracts.MIDICommand{contracts.NoteOn, contracts.NoteOff, contracts.ControlChange},
		}),
	)
	if err != nil {
		log.Error("Failed to initialize MIDI archiver", log.Field().Error("error", err))
		return
	}
	defer a.Close()

	devices, err := a.ListDevices()
	if err != nil || len(devices) == 0 {
		log.Error("No MIDI devices found or error listing devices", log.Field().Error("error", err))
	}
	fmt.Println("Available MIDI devices:", devices)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Archiving MIDI devices... Press Ctrl+C to exit.")
	if err := a.Run(ctx); err != nil {
		log.Error("Failed to flush recordings", log.Field().Error("error", err))
	}
}
