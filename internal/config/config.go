// Package config loads the archiver configuration file.
//
// The file is YAML. Every field is optional; absent fields keep the values
// from Default. Paths may reference environment variables such as ${HOME}.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/leandrodaf/midi-archiver/internal/fleet"
	"github.com/leandrodaf/midi-archiver/internal/logger"
	"github.com/leandrodaf/midi-archiver/internal/recorder"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid configuration")

// Config is the archiver configuration.
type Config struct {
	// DataDir is the root of the archive. Each device gets a subdirectory.
	DataDir string `yaml:"data_dir"`

	// CatalogPath is the sqlite catalog. Relative paths are resolved
	// against DataDir; an empty value disables the catalog.
	CatalogPath string `yaml:"catalog_path"`

	// FlushDelay is the silence after a note-off that ends a recording.
	FlushDelay time.Duration `yaml:"flush_delay"`

	// NoteGracePeriod is the silence after a note-on that ends a recording.
	// It must exceed FlushDelay.
	NoteGracePeriod time.Duration `yaml:"note_grace_period"`

	// ReconcileInterval is how often devices are rescanned.
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`

	// LogLevel is one of debug, info, warn, error, fatal.
	LogLevel string `yaml:"log_level"`

	// LogFile redirects logs to a file instead of stderr.
	LogFile string `yaml:"log_file"`

	// Recordable selects which devices are recorded.
	Recordable RecordableConfig `yaml:"recordable"`

	// Commands restricts the recorded message types, e.g. note_on,
	// control_change. Empty records everything.
	Commands []string `yaml:"commands"`
}

// RecordableConfig configures the recordable device policy.
type RecordableConfig struct {
	// MinTransmitters is the minimum number of transmitters a device needs.
	MinTransmitters int `yaml:"min_transmitters"`

	// Exclude lists case-insensitive name fragments of devices to skip.
	Exclude []string `yaml:"exclude"`
}

var commandNames = map[string]contracts.MIDICommand{
	"note_off":         contracts.NoteOff,
	"note_on":          contracts.NoteOn,
	"poly_pressure":    contracts.PolyPressure,
	"control_change":   contracts.ControlChange,
	"program_change":   contracts.ProgramChange,
	"channel_pressure": contracts.ChannelPressure,
	"pitch_bend":       contracts.PitchBend,
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		DataDir:           filepath.Join(homeDir, "midi-archive"),
		CatalogPath:       "catalog.db",
		FlushDelay:        recorder.DefaultFlushDelay,
		NoteGracePeriod:   recorder.DefaultNoteGracePeriod,
		ReconcileInterval: fleet.DefaultInterval,
		LogLevel:          "info",
		Recordable: RecordableConfig{
			MinTransmitters: 1,
			Exclude:         []string{"Midi Through", "Through Port"},
		},
	}
}

// LoadFile loads configuration from path on top of Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.DataDir = os.ExpandEnv(c.DataDir)
	c.CatalogPath = os.ExpandEnv(c.CatalogPath)
	c.LogFile = os.ExpandEnv(c.LogFile)
}

// Validate reports the first problem found in c.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir is required", ErrInvalid)
	}
	for name, d := range map[string]time.Duration{
		"flush_delay":        c.FlushDelay,
		"note_grace_period":  c.NoteGracePeriod,
		"reconcile_interval": c.ReconcileInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %s", ErrInvalid, name, d)
		}
	}
	if c.NoteGracePeriod <= c.FlushDelay {
		return fmt.Errorf("%w: note_grace_period %s must exceed flush_delay %s", ErrInvalid, c.NoteGracePeriod, c.FlushDelay)
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.filter(); err != nil {
		return err
	}
	return nil
}

// ResolvedCatalogPath returns the catalog location, or "" when disabled.
func (c *Config) ResolvedCatalogPath() string {
	if c.CatalogPath == "" || filepath.IsAbs(c.CatalogPath) {
		return c.CatalogPath
	}
	return filepath.Join(c.DataDir, c.CatalogPath)
}

// RecordablePolicy returns the device policy described by c.Recordable.
func (c *Config) RecordablePolicy() contracts.RecordablePolicy {
	return contracts.TransmitterPolicy(c.Recordable.MinTransmitters, c.Recordable.Exclude...)
}

func (c *Config) filter() (*contracts.MIDIEventFilter, error) {
	if len(c.Commands) == 0 {
		return nil, nil
	}
	filter := &contracts.MIDIEventFilter{}
	for _, name := range c.Commands {
		command, ok := commandNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("%w: unknown command %q", ErrInvalid, name)
		}
		filter.Commands = append(filter.Commands, command)
	}
	return filter, nil
}

// Options converts c into archiver options. c must have passed Validate.
func (c *Config) Options() []contracts.Option {
	level, _ := logger.ParseLevel(c.LogLevel)

	opts := []contracts.Option{
		contracts.WithLogLevel(level),
		contracts.WithDataDir(c.DataDir),
		contracts.WithCatalogPath(c.ResolvedCatalogPath()),
		contracts.WithFlushDelay(c.FlushDelay),
		contracts.WithNoteGracePeriod(c.NoteGracePeriod),
		contracts.WithReconcileInterval(c.ReconcileInterval),
		contracts.WithRecordablePolicy(c.RecordablePolicy()),
	}
	if c.LogFile != "" {
		opts = append(opts, contracts.WithLogFile(c.LogFile))
	}
	if filter, _ := c.filter(); filter != nil {
		opts = append(opts, contracts.WithMIDIEventFilter(*filter))
	}
	return opts
}
