package contracts

import "time"

// MIDICommand represents the types of MIDI commands for event filtering.
type MIDICommand byte

const (
	// NoteOff is the MIDI command for a Note Off event (0x80).
	NoteOff MIDICommand = 0x80
	// NoteOn is the MIDI command for a Note On event (0x90).
	NoteOn MIDICommand = 0x90
	// PolyPressure is the MIDI command for polyphonic aftertouch (0xA0).
	PolyPressure MIDICommand = 0xA0
	// ControlChange is the MIDI command for a controller change (0xB0).
	ControlChange MIDICommand = 0xB0
	// ProgramChange is the MIDI command for a program change (0xC0).
	ProgramChange MIDICommand = 0xC0
	// ChannelPressure is the MIDI command for channel aftertouch (0xD0).
	ChannelPressure MIDICommand = 0xD0
	// PitchBend is the MIDI command for a pitch wheel change (0xE0).
	PitchBend MIDICommand = 0xE0
)

// DataLength returns the number of data bytes following a status byte.
func (c MIDICommand) DataLength() int {
	switch {
	case c < 0xF0:
		switch c & 0xF0 {
		case ProgramChange, ChannelPressure:
			return 1
		default:
			return 2
		}
	case c == 0xF1, c == 0xF3:
		return 1
	case c == 0xF2:
		return 2
	default:
		return 0
	}
}

// MIDIEventFilter allows users to specify which MIDI commands to capture.
type MIDIEventFilter struct {
	Commands []MIDICommand // List of MIDI commands to filter.
}

// Allows reports whether command passes the filter. A nil or empty filter allows everything.
func (f *MIDIEventFilter) Allows(command byte) bool {
	if f == nil || len(f.Commands) == 0 {
		return true
	}
	for _, allowed := range f.Commands {
		if command == byte(allowed) {
			return true
		}
	}
	return false
}

// CoreMIDIConfig holds configuration for CoreMIDI.
type CoreMIDIConfig struct {
	ClientName string // Name of the MIDI client.
}

// Options defines the configuration options for the archiver.
type Options struct {
	Logger            Logger                // Logger for logging events and errors.
	LogLevel          LogLevel              // Level of logging to use.
	LogFilePath       string                // File path for logging if file logging is enabled.
	DataDir           string                // Root directory of the archive.
	CatalogPath       string                // Path of the sqlite catalog; empty disables it.
	FlushDelay        time.Duration         // Silence after a note-off that ends a session.
	NoteGracePeriod   time.Duration         // Silence after a note-on that ends a session.
	ReconcileInterval time.Duration         // Period of the device scan.
	Recordable        RecordablePolicy      // Decides which devices get a recorder.
	DeviceSource      DeviceSource          // Overrides the native backend.
	WriterFactory     SequenceWriterFactory // Overrides the file writer.
	MIDIEventFilter   *MIDIEventFilter      // Optional filter for MIDI events to capture.
	CoreMIDIConfig    *CoreMIDIConfig       // Configuration specific to CoreMIDI.
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithLogger sets the logger for the archiver.
func WithLogger(l Logger) Option {
	return func(opts *Options) {
		opts.Logger = l
	}
}

// WithLogLevel sets the logging level for the archiver.
func WithLogLevel(level LogLevel) Option {
	return func(opts *Options) {
		opts.LogLevel = level
	}
}

// WithLogFile directs log output to a file.
func WithLogFile(path string) Option {
	return func(opts *Options) {
		opts.LogFilePath = path
	}
}

// WithDataDir sets the archive root directory.
func WithDataDir(dir string) Option {
	return func(opts *Options) {
		opts.DataDir = dir
	}
}

// WithCatalogPath enables the sqlite catalog at path.
func WithCatalogPath(path string) Option {
	return func(opts *Options) {
		opts.CatalogPath = path
	}
}

// WithFlushDelay sets the silence after a note-off that ends a recording.
func WithFlushDelay(d time.Duration) Option {
	return func(opts *Options) {
		opts.FlushDelay = d
	}
}

// WithNoteGracePeriod sets the silence after a note-on that ends a recording.
func WithNoteGracePeriod(d time.Duration) Option {
	return func(opts *Options) {
		opts.NoteGracePeriod = d
	}
}

// WithReconcileInterval sets how often devices are rescanned.
func WithReconcileInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.ReconcileInterval = d
	}
}

// WithRecordablePolicy replaces the default recordable device policy.
func WithRecordablePolicy(policy RecordablePolicy) Option {
	return func(opts *Options) {
		opts.Recordable = policy
	}
}

// WithDeviceSource replaces the native device backend.
func WithDeviceSource(source DeviceSource) Option {
	return func(opts *Options) {
		opts.DeviceSource = source
	}
}

// WithSequenceWriterFactory replaces the per-device file writer.
func WithSequenceWriterFactory(factory SequenceWriterFactory) Option {
	return func(opts *Options) {
		opts.WriterFactory = factory
	}
}

// WithMIDIEventFilter sets the MIDI event filter applied by native backends.
func WithMIDIEventFilter(filter MIDIEventFilter) Option {
	return func(opts *Options) {
		opts.MIDIEventFilter = &filter
	}
}

// WithCoreMIDIConfig sets the CoreMIDI configuration.
func WithCoreMIDIConfig(config CoreMIDIConfig) Option {
	return func(opts *Options) {
		opts.CoreMIDIConfig = &config
	}
}
