package archiver

import (
	"errors"
	"fmt"

	"github.com/leandrodaf/midi-archiver/internal/fleet"
	"github.com/leandrodaf/midi-archiver/internal/logger"
	"github.com/leandrodaf/midi-archiver/internal/recorder"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

// DefaultDataDir is the archive root used when no data directory is given.
const DefaultDataDir = "data"

// ErrInvalidOptions is returned when the timing options contradict each other.
var ErrInvalidOptions = errors.New("invalid archiver options")

// applyDefaultOptions sets default values for Options if not explicitly provided.
//
// opts ...contracts.Option: A variadic list of option functions that can modify Options.
//
// Returns:
//   - contracts.Options: A structure containing the finalized options with defaults applied.
//   - error: An error if the note grace period does not exceed the flush delay.
func applyDefaultOptions(opts ...contracts.Option) (contracts.Options, error) {
	options := &contracts.Options{}
	for _, opt := range opts {
		opt(options)
	}

	// Set defaults if options are not provided
	if options.Logger == nil {
		options.Logger = logger.NewZapLogger()
	}
	if options.LogLevel == 0 {
		options.LogLevel = contracts.InfoLevel
	}
	if options.DataDir == "" {
		options.DataDir = DefaultDataDir
	}
	if options.FlushDelay <= 0 {
		options.FlushDelay = recorder.DefaultFlushDelay
	}
	if options.NoteGracePeriod <= 0 {
		options.NoteGracePeriod = recorder.DefaultNoteGracePeriod
	}
	if options.ReconcileInterval <= 0 {
		options.ReconcileInterval = fleet.DefaultInterval
	}
	if options.Recordable == nil {
		options.Recordable = contracts.DefaultRecordable
	}
	if options.CoreMIDIConfig == nil {
		options.CoreMIDIConfig = &contracts.CoreMIDIConfig{ClientName: "MIDI Archiver"}
	}

	if options.NoteGracePeriod <= options.FlushDelay {
		return contracts.Options{}, fmt.Errorf("%w: note grace period %s must exceed flush delay %s",
			ErrInvalidOptions, options.NoteGracePeriod, options.FlushDelay)
	}

	options.Logger.SetLevel(options.LogLevel)
	if options.LogFilePath != "" {
		options.Logger.SetDestination(contracts.FileLog, options.LogFilePath)
	}
	return *options, nil
}
