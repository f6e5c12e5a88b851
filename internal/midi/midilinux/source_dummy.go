//go:build !linux || !cgo
// +build !linux !cgo

package midilinux

import (
	"fmt"

	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

type dummyDeviceSource struct {
	logger contracts.Logger
}

// NewDeviceSource initializes a dummy device source where rtmidi is unavailable.
func NewDeviceSource(options *contracts.Options) (contracts.DeviceSource, error) {
	options.Logger.Info("Using dummy MIDI device source; rtmidi requires linux with cgo")
	return &dummyDeviceSource{
		logger: options.Logger,
	}, nil
}

func (s *dummyDeviceSource) ListDevices() ([]contracts.DeviceInfo, error) {
	s.logger.Warn("ListDevices called on dummy MIDI device source")
	return nil, fmt.Errorf("MIDI functionality is not available on this platform")
}

func (s *dummyDeviceSource) Open(info contracts.DeviceInfo) (contracts.DeviceHandle, error) {
	s.logger.Warn("Open called on dummy MIDI device source")
	return nil, fmt.Errorf("%w: MIDI functionality is not available on this platform", contracts.ErrDeviceUnavailable)
}

func (s *dummyDeviceSource) Close() error {
	return nil
}
