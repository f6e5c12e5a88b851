package contracts

import (
	"errors"
	"time"
)

// ErrRecordingSealed is returned when appending to a recording that was already handed off.
var ErrRecordingSealed = errors.New("recording is sealed")

// RecordedEvent is an event stored relative to the start of its session.
type RecordedEvent struct {
	Offset int64 // Microseconds since the session start; never decreases within a recording.
	Event  Event
}

// Recording is the timeline of one session. Offsets are relative to the first
// event, so a recording can be replayed without the device clock.
//
// A Recording is prepared empty, begun on the first note, appended to while the
// session lasts and sealed exactly once. It is not safe for concurrent use; the
// recorder that owns it serializes access.
type Recording struct {
	start     int64
	startedAt time.Time
	begun     bool
	sealed    bool
	last      int64
	events    []RecordedEvent
}

// NewRecording returns an empty recording waiting for its first event.
func NewRecording() *Recording {
	return &Recording{events: make([]RecordedEvent, 0, 256)}
}

// Begin marks the session start. start is on the transport clock, startedAt is wall time.
func (r *Recording) Begin(start int64, startedAt time.Time) {
	r.start = start
	r.startedAt = startedAt
	r.begun = true
}

// Append stores event with its timestamp rebased to the session start. Events that
// arrive with a timestamp before the previous one are clamped to keep the timeline ordered.
func (r *Recording) Append(event Event) error {
	if r.sealed {
		return ErrRecordingSealed
	}
	offset := event.Timestamp - r.start
	if offset < r.last {
		offset = r.last
	}
	r.last = offset
	r.events = append(r.events, RecordedEvent{Offset: offset, Event: event})
	return nil
}

// Seal freezes the recording.
func (r *Recording) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal was called.
func (r *Recording) Sealed() bool { return r.sealed }

// Begun reports whether the session has started.
func (r *Recording) Begun() bool { return r.begun }

// Start returns the session start on the transport clock.
func (r *Recording) Start() int64 { return r.start }

// StartedAt returns the wall clock time of the session start.
func (r *Recording) StartedAt() time.Time { return r.startedAt }

// Len returns the number of stored events.
func (r *Recording) Len() int { return len(r.events) }

// Duration returns the offset of the last stored event.
func (r *Recording) Duration() time.Duration {
	return time.Duration(r.last) * time.Microsecond
}

// Events returns a copy of the stored events.
func (r *Recording) Events() []RecordedEvent {
	out := make([]RecordedEvent, len(r.events))
	copy(out, r.events)
	return out
}
