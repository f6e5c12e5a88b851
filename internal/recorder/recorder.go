// Package recorder turns the event stream of one MIDI device into recordings.
//
// A recorder is idle until a note is struck. It then records every event until
// the device stays silent long enough: the grace period after a note-on, or the
// shorter flush delay after a note-off. The finished recording is sealed and
// handed to the device's SequenceWriter exactly once.
package recorder

import (
	"sync"
	"time"

	"github.com/leandrodaf/midi-archiver/internal/clock"
	"github.com/leandrodaf/midi-archiver/internal/logger"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

const (
	// DefaultFlushDelay is the silence after a note-off that ends a recording.
	DefaultFlushDelay = 5 * time.Second
	// DefaultNoteGracePeriod is the silence after a note-on that ends a recording.
	DefaultNoteGracePeriod = 20 * time.Second
)

// State is the recording state of a device.
type State int

const (
	// Idle waits for a note-on.
	Idle State = iota
	// Recording appends every event to the current recording.
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Config configures a Recorder. Zero values select the defaults.
type Config struct {
	FlushDelay      time.Duration
	NoteGracePeriod time.Duration
	Logger          contracts.Logger
	Clock           clock.Clock
}

// Recorder owns the recording state machine of one device. HandleEvent, the
// deadline callback and Close are serialized by mu, so events, timers and the
// fleet manager may call in from different goroutines.
type Recorder struct {
	device      contracts.DeviceInfo
	writer      contracts.SequenceWriter
	logger      contracts.Logger
	clock       clock.Clock
	flushDelay  time.Duration
	gracePeriod time.Duration
	epoch       time.Time

	mu         sync.Mutex
	state      State
	current    *contracts.Recording
	next       *contracts.Recording
	deadline   *clock.Timer
	generation uint64
	closed     bool
}

// New creates an idle recorder for device that writes finished recordings to writer.
func New(device contracts.DeviceInfo, writer contracts.SequenceWriter, cfg Config) *Recorder {
	if cfg.FlushDelay <= 0 {
		cfg.FlushDelay = DefaultFlushDelay
	}
	if cfg.NoteGracePeriod <= 0 {
		cfg.NoteGracePeriod = DefaultNoteGracePeriod
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	return &Recorder{
		device:      device,
		writer:      writer,
		logger:      cfg.Logger.With(cfg.Logger.Field().String("device", device.DisplayName())),
		clock:       cfg.Clock,
		flushDelay:  cfg.FlushDelay,
		gracePeriod: cfg.NoteGracePeriod,
		epoch:       cfg.Clock.Now(),
		next:        contracts.NewRecording(),
	}
}

// Device returns the device this recorder belongs to.
func (r *Recorder) Device() contracts.DeviceInfo { return r.device }

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// HandleEvent feeds one device event into the state machine. Events received
// after Close are dropped.
func (r *Recorder) HandleEvent(event contracts.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if event.Timestamp < 0 {
		event.Timestamp = r.now()
	}

	switch event.Kind() {
	case contracts.KindNoteOn:
		if r.state == Idle || r.current == nil {
			r.begin(event.Timestamp)
		}
		// The grace period replaces any shorter deadline so a held note is never cut off.
		r.arm(r.gracePeriod)
	case contracts.KindNoteOff:
		r.arm(r.flushDelay)
	}

	if r.state != Recording {
		return
	}
	if err := r.current.Append(event); err != nil {
		r.logger.Warn("dropping event",
			r.logger.Field().Error("error", err))
	}
}

// Close stops the deadline, flushes the current recording if any and releases
// the prepared one. Only the first call has an effect.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	r.cancel()
	r.flush()
	r.next = nil
	return nil
}

// begin starts a session on the prepared recording.
func (r *Recorder) begin(start int64) {
	rec := r.next
	if rec == nil {
		rec = contracts.NewRecording()
	}
	r.next = nil
	rec.Begin(start, r.clock.Now())
	r.current = rec
	r.state = Recording

	r.logger.Info("recording started")
}

// arm replaces the pending deadline with one firing after d.
func (r *Recorder) arm(d time.Duration) {
	r.cancel()
	generation := r.generation
	r.deadline = r.clock.AfterFunc(d, func() { r.expire(generation) })
}

// cancel stops the pending deadline. Bumping the generation also disarms a
// callback that already fired and is waiting for mu.
func (r *Recorder) cancel() {
	if r.deadline != nil {
		r.deadline.Stop()
		r.deadline = nil
	}
	r.generation++
}

func (r *Recorder) expire(generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || generation != r.generation {
		return
	}
	r.deadline = nil
	r.flush()
}

// flush seals the current recording, writes it and prepares the next one.
// A write failure loses the recording; it is logged and never retried.
func (r *Recorder) flush() {
	if r.state != Recording {
		return
	}
	rec := r.current
	r.current = nil
	r.state = Idle
	rec.Seal()

	r.logger.Info("recording stopped",
		r.logger.Field().Int("events", rec.Len()),
		r.logger.Field().Duration("duration", rec.Duration()))

	if err := r.writer.Write(rec); err != nil {
		r.logger.Warn("failed to write recording; recording discarded",
			r.logger.Field().Int("events", rec.Len()),
			r.logger.Field().Error("error", err))
	}

	if !r.closed {
		r.next = contracts.NewRecording()
	}
}

// now reads the recorder clock in microseconds since the recorder was created.
func (r *Recorder) now() int64 {
	return r.clock.Now().Sub(r.epoch).Microseconds()
}
