//go:build !windows
// +build !windows

package midiwindows

import (
	"fmt"

	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

type dummyDeviceSource struct {
	logger contracts.Logger
}

// NewDeviceSource initializes a dummy device source for non-Windows systems.
func NewDeviceSource(options *contracts.Options) (contracts.DeviceSource, error) {
	options.Logger.Info("Using dummy MIDI device source for non-Windows system")
	return &dummyDeviceSource{
		logger: options.Logger,
	}, nil
}

// ListDevices logs a warning and returns an error indicating that MIDI functionality is unavailable on this platform.
func (s *dummyDeviceSource) ListDevices() ([]contracts.DeviceInfo, error) {
	s.logger.Warn("ListDevices called on dummy MIDI device source")
	return nil, fmt.Errorf("MIDI functionality is not available on this platform")
}

// Open logs a warning and reports the device as unavailable.
func (s *dummyDeviceSource) Open(info contracts.DeviceInfo) (contracts.DeviceHandle, error) {
	s.logger.Warn("Open called on dummy MIDI device source")
	return nil, fmt.Errorf("%w: MIDI functionality is not available on this platform", contracts.ErrDeviceUnavailable)
}

func (s *dummyDeviceSource) Close() error {
	return nil
}
