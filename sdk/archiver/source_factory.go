package archiver

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/leandrodaf/midi-archiver/internal/midi/mididarwin"
	"github.com/leandrodaf/midi-archiver/internal/midi/midilinux"
	"github.com/leandrodaf/midi-archiver/internal/midi/midiwindows"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

// ErrUnsupportedOS is returned when the operating system has no device source.
var ErrUnsupportedOS = errors.New("unsupported operating system")

// sourceInitializers maps OS names to corresponding device source initializers.
var sourceInitializers = map[string]func(*contracts.Options) (contracts.DeviceSource, error){
	"darwin":  mididarwin.NewDeviceSource,  // macOS (Darwin) CoreMIDI source.
	"windows": midiwindows.NewDeviceSource, // Windows winmm source.
	"linux":   midilinux.NewDeviceSource,   // Linux ALSA source through rtmidi.
}

// NewDeviceSource initializes the device source for the current operating system.
// It returns ErrUnsupportedOS if the OS is unsupported.
func NewDeviceSource(opts *contracts.Options) (contracts.DeviceSource, error) {
	if initializer, exists := sourceInitializers[runtime.GOOS]; exists {
		return initializer(opts)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOS, runtime.GOOS)
}
