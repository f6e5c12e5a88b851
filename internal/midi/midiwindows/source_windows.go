//go:build windows
// +build windows

package midiwindows

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"go.uber.org/multierr"
	"golang.org/x/sys/windows"
)

// Type definitions for MIDI handles
type HMIDIIN windows.Handle

// Constants for callback flags
const (
	CALLBACK_FUNCTION = 0x00030000 // Indicates that the callback is a function
	MIDI_IO_STATUS    = 0x00000020 // MIDI input/output status
)

// ErrHandleClosed is returned by Attach once the handle has been closed.
var ErrHandleClosed = errors.New("MIDI device handle closed")

// Struct representing MIDI device capabilities
type midiInCaps struct {
	wMid           uint16
	wPid           uint16
	vDriverVersion uint32
	szPname        [32]uint16
	dwSupport      uint32
}

// Load the winmm.dll library and required functions
var (
	winmm                = windows.NewLazySystemDLL("winmm.dll")
	procMidiInGetNumDevs = winmm.NewProc("midiInGetNumDevs")
	procMidiInGetDevCaps = winmm.NewProc("midiInGetDevCapsW")
	procMidiInOpen       = winmm.NewProc("midiInOpen")
	procMidiInStart      = winmm.NewProc("midiInStart")
	procMidiInStop       = winmm.NewProc("midiInStop")
	procMidiInClose      = winmm.NewProc("midiInClose")
)

// winmm calls back with an opaque instance word. Handles are registered
// under a numeric id so no Go pointer crosses into the driver.
var (
	callbackOnce sync.Once
	callbackPtr  uintptr
	handles      sync.Map // uintptr -> *deviceHandle
	nextHandleID atomic.Uintptr
)

func callback() uintptr {
	callbackOnce.Do(func() {
		callbackPtr = windows.NewCallback(midiInCallback)
	})
	return callbackPtr
}

// DeviceSource enumerates winmm MIDI input devices.
type DeviceSource struct {
	logger          contracts.Logger
	midiEventFilter *contracts.MIDIEventFilter
}

// NewDeviceSource creates a MIDI device source for Windows.
func NewDeviceSource(options *contracts.Options) (contracts.DeviceSource, error) {
	options.Logger.Info("MIDI client created for Windows")

	return &DeviceSource{
		logger:          options.Logger,
		midiEventFilter: options.MIDIEventFilter,
	}, nil
}

func describe(caps midiInCaps) contracts.DeviceInfo {
	deviceName := windows.UTF16ToString(caps.szPname[:])
	return contracts.DeviceInfo{
		Name:         deviceName,
		EntityName:   deviceName,
		Manufacturer: fmt.Sprintf("MID: %d PID: %d", caps.wMid, caps.wPid),
		Version:      fmt.Sprintf("%d.%d", caps.vDriverVersion>>8, caps.vDriverVersion&0xFF),
		Transmitters: 1,
	}
}

type indexedDevice struct {
	id   uint32
	info contracts.DeviceInfo
}

func (s *DeviceSource) enumerate() []indexedDevice {
	r0, _, _ := procMidiInGetNumDevs.Call()
	numDevices := uint32(r0)

	devices := make([]indexedDevice, 0, numDevices)
	for i := uint32(0); i < numDevices; i++ {
		var caps midiInCaps
		r1, _, _ := procMidiInGetDevCaps.Call(
			uintptr(i),
			uintptr(unsafe.Pointer(&caps)),
			unsafe.Sizeof(caps),
		)
		if r1 != 0 {
			s.logger.Warn("Failed to get information for MIDI device", s.logger.Field().Int("index", int(i)))
			continue
		}
		devices = append(devices, indexedDevice{id: i, info: describe(caps)})
	}
	return devices
}

// ListDevices lists the available MIDI input devices.
func (s *DeviceSource) ListDevices() ([]contracts.DeviceInfo, error) {
	devices := s.enumerate()
	infos := make([]contracts.DeviceInfo, len(devices))
	for i, d := range devices {
		infos[i] = d.info
	}
	return infos, nil
}

// Open opens the winmm input matching info. Capture starts on Attach.
func (s *DeviceSource) Open(info contracts.DeviceInfo) (contracts.DeviceHandle, error) {
	for _, d := range s.enumerate() {
		if d.info.Key() != info.Key() {
			continue
		}

		h := &deviceHandle{
			id:              nextHandleID.Add(1),
			logger:          s.logger,
			info:            info,
			midiEventFilter: s.midiEventFilter,
		}
		handles.Store(h.id, h)

		r1, _, err := procMidiInOpen.Call(
			uintptr(unsafe.Pointer(&h.handle)),
			uintptr(d.id),
			callback(),
			h.id,
			uintptr(CALLBACK_FUNCTION|MIDI_IO_STATUS),
		)
		if r1 != 0 {
			handles.Delete(h.id)
			return nil, fmt.Errorf("%w: midiInOpen %s returned %d: %v", contracts.ErrDeviceUnavailable, info.DisplayName(), r1, err)
		}
		return h, nil
	}
	return nil, fmt.Errorf("%w: %s", contracts.ErrDeviceUnavailable, info.DisplayName())
}

func (s *DeviceSource) Close() error {
	return nil
}

type sinkHolder struct {
	sink contracts.EventSink
}

// deviceHandle is an open winmm MIDI input.
type deviceHandle struct {
	id              uintptr
	logger          contracts.Logger
	info            contracts.DeviceInfo
	midiEventFilter *contracts.MIDIEventFilter
	sink            atomic.Pointer[sinkHolder]

	mu      sync.Mutex
	handle  HMIDIIN
	started bool
	closed  bool
}

func (h *deviceHandle) Info() contracts.DeviceInfo { return h.info }

// Attach starts capture and delivers events to sink.
func (h *deviceHandle) Attach(sink contracts.EventSink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHandleClosed
	}
	h.sink.Store(&sinkHolder{sink: sink})
	if h.started {
		return nil
	}

	r1, _, err := procMidiInStart.Call(uintptr(h.handle))
	if r1 != 0 {
		h.logger.Error("Failed to start MIDI capture", h.logger.Field().String("device", h.info.DisplayName()))
		return fmt.Errorf("failed to start MIDI capture: %v", err)
	}
	h.started = true
	h.logger.Info("MIDI capture started", h.logger.Field().String("device", h.info.DisplayName()))
	return nil
}

// midiInCallback processes incoming MIDI messages
func midiInCallback(hMidiIn uintptr, wMsg uint32, dwInstance uintptr, dwParam1 uintptr, dwParam2 uintptr) uintptr {
	value, ok := handles.Load(dwInstance)
	if !ok {
		return 0
	}
	h := value.(*deviceHandle)

	switch wMsg {
	case MIM_OPEN:
		h.logger.Debug("MIDI device opened", h.logger.Field().String("device", h.info.DisplayName()))
	case MIM_CLOSE:
		h.logger.Debug("MIDI device closed", h.logger.Field().String("device", h.info.DisplayName()))
	case MIM_DATA, MIM_MOREDATA:
		// MIM_MOREDATA carries a regular short message; it only signals
		// that the callback is falling behind.
		holder := h.sink.Load()
		if holder == nil {
			return 0
		}

		event := decodeShortMessage(dwParam1, dwParam2)
		if !h.midiEventFilter.Allows(event.Command) {
			return 0
		}
		holder.sink.HandleEvent(event)
	case MIM_ERROR, MIM_LONGERROR:
		h.logger.Error(fmt.Sprintf("MIDI error: msg=0x%X", wMsg), h.logger.Field().String("device", h.info.DisplayName()))
	default:
		h.logger.Warn(fmt.Sprintf("Unknown MIDI message: 0x%X", wMsg))
	}

	return 0
}

// Close stops capture and releases the winmm handle.
func (h *deviceHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	var errs error
	if h.started {
		if r1, _, err := procMidiInStop.Call(uintptr(h.handle)); r1 != 0 {
			errs = multierr.Append(errs, fmt.Errorf("failed to stop MIDI capture: %v", err))
		}
	}
	if r1, _, err := procMidiInClose.Call(uintptr(h.handle)); r1 != 0 {
		errs = multierr.Append(errs, fmt.Errorf("failed to close MIDI device: %v", err))
	}
	handles.Delete(h.id)
	h.handle = 0

	h.logger.Info("MIDI capture stopped and device closed", h.logger.Field().String("device", h.info.DisplayName()))
	return errs
}
