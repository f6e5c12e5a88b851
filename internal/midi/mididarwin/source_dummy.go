//go:build !darwin
// +build !darwin

package mididarwin

import (
	"fmt"

	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

type DummyDeviceSource struct {
	logger contracts.Logger
}

func NewDeviceSource(options *contracts.Options) (contracts.DeviceSource, error) {
	options.Logger.Info("Using dummy MIDI device source for non-macOS system")
	return &DummyDeviceSource{
		logger: options.Logger,
	}, nil
}

func (s *DummyDeviceSource) ListDevices() ([]contracts.DeviceInfo, error) {
	s.logger.Warn("ListDevices called on dummy MIDI device source")
	return nil, fmt.Errorf("MIDI functionality is not available on this platform")
}

func (s *DummyDeviceSource) Open(info contracts.DeviceInfo) (contracts.DeviceHandle, error) {
	s.logger.Warn("Open called on dummy MIDI device source")
	return nil, fmt.Errorf("%w: MIDI functionality is not available on this platform", contracts.ErrDeviceUnavailable)
}

func (s *DummyDeviceSource) Close() error {
	return nil
}
