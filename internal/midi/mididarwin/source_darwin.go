//go:build darwin
// +build darwin

package mididarwin

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/leandrodaf/midi-archiver/internal/midi/message"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"github.com/youpy/go-coremidi"
)

// Error definitions for MIDI connection and handling issues.
var (
	ErrMIDIConnectionError = errors.New("error connecting to MIDI device")
	ErrCreateInputPort     = errors.New("error creating input port")
	ErrHandleClosed        = errors.New("MIDI device handle closed")
)

// internalPortConnection is an interface for handling disconnection from a MIDI port.
type internalPortConnection interface {
	Disconnect()
}

// DeviceSource enumerates CoreMIDI sources.
type DeviceSource struct {
	logger          contracts.Logger
	client          coremidi.Client
	midiEventFilter *contracts.MIDIEventFilter
}

// NewDeviceSource creates a CoreMIDI client used to open device handles.
func NewDeviceSource(options *contracts.Options) (contracts.DeviceSource, error) {
	client, err := coremidi.NewClient(options.CoreMIDIConfig.ClientName)
	if err != nil {
		return nil, err
	}
	options.Logger.Info("MIDI client successfully created")

	return &DeviceSource{
		logger:          options.Logger,
		client:          client,
		midiEventFilter: options.MIDIEventFilter,
	}, nil
}

// describe maps a CoreMIDI source to a DeviceInfo. CoreMIDI reports no
// version, so the entity name serves as the hardware identifier.
func describe(source coremidi.Source) contracts.DeviceInfo {
	entity := source.Entity()
	return contracts.DeviceInfo{
		Name:         source.Name(),
		Manufacturer: entity.Manufacturer(),
		EntityName:   entity.Name(),
		Version:      entity.Name(),
		Transmitters: 1,
	}
}

// ListDevices returns every CoreMIDI source.
func (s *DeviceSource) ListDevices() ([]contracts.DeviceInfo, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("error listing MIDI sources: %w", err)
	}

	devices := make([]contracts.DeviceInfo, len(sources))
	for i, source := range sources {
		devices[i] = describe(source)
	}
	return devices, nil
}

// Open creates an input port for the source matching info. The port is
// connected when a sink is attached.
func (s *DeviceSource) Open(info contracts.DeviceInfo) (contracts.DeviceHandle, error) {
	sources, err := coremidi.AllSources()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrDeviceUnavailable, err)
	}

	for _, source := range sources {
		if describe(source).Key() != info.Key() {
			continue
		}
		h := &deviceHandle{
			logger:          s.logger,
			info:            info,
			source:          source,
			midiEventFilter: s.midiEventFilter,
		}
		h.inputPort, err = coremidi.NewInputPort(s.client, "Input Port", h.handleMIDIMessage)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCreateInputPort, err)
		}
		return h, nil
	}
	return nil, fmt.Errorf("%w: %s", contracts.ErrDeviceUnavailable, info.DisplayName())
}

// Close is a no-op; CoreMIDI clients live as long as the process.
func (s *DeviceSource) Close() error {
	return nil
}

type sinkHolder struct {
	sink contracts.EventSink
}

// deviceHandle is a connected CoreMIDI source.
type deviceHandle struct {
	logger          contracts.Logger
	info            contracts.DeviceInfo
	source          coremidi.Source
	inputPort       coremidi.InputPort
	midiEventFilter *contracts.MIDIEventFilter
	sink            atomic.Pointer[sinkHolder]
	gate            deliveryGate

	mu       sync.Mutex
	portConn internalPortConnection
}

func (h *deviceHandle) Info() contracts.DeviceInfo { return h.info }

// Attach connects the input port and starts delivering events to sink.
func (h *deviceHandle) Attach(sink contracts.EventSink) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.gate.isClosed() {
		return ErrHandleClosed
	}
	h.sink.Store(&sinkHolder{sink: sink})
	if h.portConn != nil {
		return nil
	}

	conn, err := h.inputPort.Connect(h.source)
	if err != nil {
		h.logger.Error(ErrMIDIConnectionError.Error(), h.logger.Field().String("device", h.info.DisplayName()))
		return fmt.Errorf("%w: %v", ErrMIDIConnectionError, err)
	}
	h.portConn = conn
	h.logger.Info("MIDI device successfully connected", h.logger.Field().String("device", h.info.DisplayName()))
	return nil
}

// handleMIDIMessage splits a CoreMIDI packet into events and forwards them.
func (h *deviceHandle) handleMIDIMessage(source coremidi.Source, packet coremidi.Packet) {
	if !h.gate.enter() {
		return
	}
	defer h.gate.leave()

	holder := h.sink.Load()
	if holder == nil {
		h.logger.Warn("MIDI event received before a sink was attached")
		return
	}

	for _, event := range message.Parse(packet.Data, contracts.UnknownTimestamp) {
		if h.midiEventFilter.Allows(event.Command) {
			holder.sink.HandleEvent(event)
		}
	}
}

// Close disconnects from the device and waits for in-flight deliveries.
func (h *deviceHandle) Close() error {
	if !h.gate.close() {
		return nil
	}

	h.mu.Lock()
	if h.portConn != nil {
		h.portConn.Disconnect()
		h.portConn = nil
	}
	h.mu.Unlock()

	h.logger.Info("MIDI capture stopped", h.logger.Field().String("device", h.info.DisplayName()))
	return nil
}
