// Package writer persists recordings as Standard MIDI Files.
package writer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/leandrodaf/midi-archiver/internal/logger"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"gitlab.com/gomidi/midi/v2/smf"
	"go.uber.org/multierr"
)

const (
	// DefaultResolution is the number of ticks per quarter note.
	DefaultResolution = 480
	// DefaultTempo is the tempo in BPM used to convert offsets to ticks.
	DefaultTempo = 120.0

	maxNameCollisions = 100
)

// ErrIndex wraps catalog failures that happen after the file was written.
var ErrIndex = errors.New("failed to index recording")

// FileWriter writes the recordings of one device below dir, in
// yyyy/MM/dd/HH-mm-ss.mid files named after the session start.
type FileWriter struct {
	dir        string
	device     contracts.DeviceInfo
	indexer    contracts.Indexer
	logger     contracts.Logger
	resolution smf.MetricTicks
	tempo      float64
}

// Option configures a FileWriter.
type Option func(*FileWriter)

// WithIndexer registers every written file with indexer.
func WithIndexer(indexer contracts.Indexer) Option {
	return func(w *FileWriter) { w.indexer = indexer }
}

// WithLogger sets the logger.
func WithLogger(l contracts.Logger) Option {
	return func(w *FileWriter) { w.logger = l }
}

// WithResolution sets the ticks per quarter note.
func WithResolution(ticksPerQuarter uint16) Option {
	return func(w *FileWriter) { w.resolution = smf.MetricTicks(ticksPerQuarter) }
}

// NewFileWriter returns a writer for device storing files below dir.
func NewFileWriter(dir string, device contracts.DeviceInfo, opts ...Option) *FileWriter {
	w := &FileWriter{
		dir:        dir,
		device:     device,
		resolution: smf.MetricTicks(DefaultResolution),
		tempo:      DefaultTempo,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.NewNop()
	}
	return w
}

// Factory returns a SequenceWriterFactory storing each device below root/<device id>.
func Factory(root string, opts ...Option) contracts.SequenceWriterFactory {
	return func(device contracts.DeviceInfo) (contracts.SequenceWriter, error) {
		return NewFileWriter(filepath.Join(root, device.ID()), device, opts...), nil
	}
}

// Write encodes rec as a single-track SMF and stores it.
func (w *FileWriter) Write(rec *contracts.Recording) error {
	startedAt := rec.StartedAt()
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	f, err := w.create(startedAt)
	if err != nil {
		return err
	}
	path := f.Name()

	_, err = encode(rec, w.device.DisplayName(), w.resolution, w.tempo).WriteTo(f)
	err = multierr.Append(err, f.Close())
	if err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("write %s: %w", path, err)
	}

	w.logger.Info("wrote recording",
		w.logger.Field().String("path", path),
		w.logger.Field().Int("events", rec.Len()))

	if w.indexer == nil {
		return nil
	}
	entry := contracts.ArchiveEntry{
		DeviceID:   w.device.ID(),
		DeviceName: w.device.DisplayName(),
		Path:       path,
		StartedAt:  startedAt,
		Duration:   rec.Duration(),
		Events:     rec.Len(),
	}
	if err := w.indexer.Index(entry); err != nil {
		return fmt.Errorf("%w %s: %v", ErrIndex, path, err)
	}
	return nil
}

// create opens a new file for a session started at t. Sessions starting in the
// same second get a numeric suffix.
func (w *FileWriter) create(t time.Time) (*os.File, error) {
	day := filepath.Join(w.dir, t.Format("2006"), t.Format("01"), t.Format("02"))
	if err := os.MkdirAll(day, 0o755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	base := t.Format("15-04-05")
	for i := 0; i < maxNameCollisions; i++ {
		name := base + ".mid"
		if i > 0 {
			name = fmt.Sprintf("%s-%d.mid", base, i)
		}
		f, err := os.OpenFile(filepath.Join(day, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create recording file: %w", err)
		}
		return f, nil
	}
	return nil, fmt.Errorf("create recording file: too many recordings at %s in %s", base, day)
}

// encode converts the relative offsets of rec to ticks at a fixed tempo.
// System messages have no place in a track and are left out.
func encode(rec *contracts.Recording, name string, resolution smf.MetricTicks, tempo float64) *smf.SMF {
	var track smf.Track
	if name != "" {
		track.Add(0, smf.MetaTrackSequenceName(name))
	}
	track.Add(0, smf.MetaTempo(tempo))

	var last uint32
	for _, e := range rec.Events() {
		if e.Event.Command >= 0xF0 {
			continue
		}
		tick := resolution.Ticks(tempo, time.Duration(e.Offset)*time.Microsecond)
		if tick < last {
			tick = last
		}
		track.Add(tick-last, e.Event.Bytes())
		last = tick
	}
	track.Close(0)

	s := smf.NewSMF1()
	s.TimeFormat = resolution
	s.Add(track)
	return s
}
