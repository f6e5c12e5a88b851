package contracts

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDeviceUnavailable is returned when a device vanished or is busy between enumeration and open.
	ErrDeviceUnavailable = errors.New("MIDI device unavailable")
	// ErrNoDevices is returned when enumeration finds nothing to work with.
	ErrNoDevices = errors.New("no MIDI devices found")
)

// EventSink receives the events of one device. Implementations must be safe for
// use from the transport's delivery goroutine.
type EventSink interface {
	HandleEvent(event Event)
}

// DeviceHandle is an opened device.
//
// Implementations must guarantee:
//   - Attach delivers every subsequent event to the sink until Close
//   - Close is idempotent
//   - no event is delivered after Close returns
type DeviceHandle interface {
	Info() DeviceInfo
	Attach(sink EventSink) error
	Close() error
}

// DeviceSource enumerates and opens devices on a native MIDI backend.
type DeviceSource interface {
	// ListDevices returns every device currently visible. An empty list is not an error.
	ListDevices() ([]DeviceInfo, error)
	// Open opens the device described by info. It returns an error wrapping
	// ErrDeviceUnavailable when the device disappeared or cannot be opened right now.
	Open(info DeviceInfo) (DeviceHandle, error)
	// Close releases the backend.
	Close() error
}

// SequenceWriter persists a sealed recording.
type SequenceWriter interface {
	Write(recording *Recording) error
}

// SequenceWriterFactory builds a writer scoped to a single device.
type SequenceWriterFactory func(device DeviceInfo) (SequenceWriter, error)

// ArchiveEntry describes a recording that reached durable storage.
type ArchiveEntry struct {
	DeviceID   string
	DeviceName string
	Path       string
	StartedAt  time.Time
	Duration   time.Duration
	Events     int
}

// Indexer records archive entries after they were written.
type Indexer interface {
	Index(entry ArchiveEntry) error
}

// Archiver continuously records every recordable MIDI device until shut down.
type Archiver interface {
	Run(ctx context.Context) error      // Runs reconciliation until ctx is done or Shutdown is called.
	Shutdown()                          // Requests a graceful stop; in-flight recordings are flushed before Run returns.
	ListDevices() ([]DeviceInfo, error) // Lists the devices visible to the device source.
	Close() error                       // Releases the device source and the catalog.
}
