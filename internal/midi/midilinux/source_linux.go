//go:build linux && cgo
// +build linux,cgo

package midilinux

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midi-archiver/internal/midi/message"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
	"go.uber.org/multierr"
)

// ErrHandleClosed is returned by Attach once the handle has been closed.
var ErrHandleClosed = errors.New("MIDI device handle closed")

// DeviceSource enumerates ALSA MIDI inputs through rtmidi.
type DeviceSource struct {
	logger          contracts.Logger
	driver          *rtmididrv.Driver
	midiEventFilter *contracts.MIDIEventFilter
}

// NewDeviceSource opens the rtmidi driver.
func NewDeviceSource(options *contracts.Options) (contracts.DeviceSource, error) {
	driver, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("error opening rtmidi driver: %w", err)
	}
	options.Logger.Info("MIDI client created for Linux")

	return &DeviceSource{
		logger:          options.Logger,
		driver:          driver,
		midiEventFilter: options.MIDIEventFilter,
	}, nil
}

// ListDevices returns every ALSA input port.
func (s *DeviceSource) ListDevices() ([]contracts.DeviceInfo, error) {
	ins, err := s.driver.Ins()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI inputs: %w", err)
	}

	devices := make([]contracts.DeviceInfo, len(ins))
	for i, in := range ins {
		devices[i] = describe(in.String())
	}
	return devices, nil
}

// Open opens the input port matching info.
func (s *DeviceSource) Open(info contracts.DeviceInfo) (contracts.DeviceHandle, error) {
	ins, err := s.driver.Ins()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrDeviceUnavailable, err)
	}

	for _, in := range ins {
		if describe(in.String()).Key() != info.Key() {
			continue
		}
		if err := in.Open(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", contracts.ErrDeviceUnavailable, info.DisplayName(), err)
		}
		return &deviceHandle{
			logger:          s.logger,
			info:            info,
			in:              in,
			midiEventFilter: s.midiEventFilter,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", contracts.ErrDeviceUnavailable, info.DisplayName())
}

// Close releases the rtmidi driver.
func (s *DeviceSource) Close() error {
	return s.driver.Close()
}

type sinkHolder struct {
	sink contracts.EventSink
}

// deviceHandle is an open rtmidi input port.
type deviceHandle struct {
	logger          contracts.Logger
	info            contracts.DeviceInfo
	in              drivers.In
	midiEventFilter *contracts.MIDIEventFilter
	sink            atomic.Pointer[sinkHolder]

	mu     sync.Mutex
	stop   func()
	closed bool
}

func (h *deviceHandle) Info() contracts.DeviceInfo { return h.info }

// Attach starts listening and delivers events to sink.
func (h *deviceHandle) Attach(sink contracts.EventSink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}
	h.sink.Store(&sinkHolder{sink: sink})
	if h.stop != nil {
		return nil
	}

	stop, err := midi.ListenTo(h.in, h.receive, midi.HandleError(func(err error) {
		h.logger.Warn("MIDI input error",
			h.logger.Field().String("device", h.info.DisplayName()),
			h.logger.Field().Error("error", err))
	}))
	if err != nil {
		return fmt.Errorf("error listening to %s: %w", h.info.DisplayName(), err)
	}
	h.stop = stop
	h.logger.Info("MIDI capture started", h.logger.Field().String("device", h.info.DisplayName()))
	return nil
}

func (h *deviceHandle) receive(msg midi.Message, timestampms int32) {
	holder := h.sink.Load()
	if holder == nil {
		return
	}
	for _, event := range message.Parse([]byte(msg), int64(timestampms)*1000) {
		if h.midiEventFilter.Allows(event.Command) {
			holder.sink.HandleEvent(event)
		}
	}
}

// Close stops listening and closes the port.
func (h *deviceHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var errs error
	if h.stop != nil {
		h.stop()
		h.stop = nil
	}
	errs = multierr.Append(errs, h.in.Close())

	h.logger.Info("MIDI capture stopped", h.logger.Field().String("device", h.info.DisplayName()))
	return errs
}
