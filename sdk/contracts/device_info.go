package contracts

import (
	"strings"

	"github.com/google/uuid"
)

// deviceNamespace scopes the name-based UUIDs derived from device identities.
var deviceNamespace = uuid.MustParse("6f1c8c2e-4d0a-4f6e-9a55-5d0b7a3e2c91")

// DeviceInfo contains information about a MIDI device.
type DeviceInfo struct {
	Name         string // Device name.
	Manufacturer string // Device manufacturer.
	EntityName   string // Name of the entity to which the device belongs.
	Version      string // Driver version or hardware identifier.
	Transmitters int    // Number of event-producing endpoints; negative means unlimited.
}

// Key returns the identity used to recognise the same device across scans.
func (d DeviceInfo) Key() string {
	return d.Manufacturer + "_" + d.Name + "_" + d.Version
}

// ID returns a stable UUID for the device, suitable as a directory name.
func (d DeviceInfo) ID() string {
	return uuid.NewMD5(deviceNamespace, []byte(d.Manufacturer+d.Name+d.Version)).String()
}

// DisplayName returns a human readable device name.
func (d DeviceInfo) DisplayName() string {
	return strings.TrimSpace(d.Manufacturer + " " + d.Name)
}

// RecordablePolicy decides whether a device should be recorded.
type RecordablePolicy func(DeviceInfo) bool

// TransmitterPolicy accepts devices with at least minTransmitters endpoints (or an
// unlimited number) whose name does not contain any of the exclude patterns.
// Pattern matching is case-insensitive.
func TransmitterPolicy(minTransmitters int, exclude ...string) RecordablePolicy {
	return func(d DeviceInfo) bool {
		if d.Transmitters >= 0 && d.Transmitters < minTransmitters {
			return false
		}
		name := strings.ToLower(d.Name)
		for _, pattern := range exclude {
			if pattern != "" && strings.Contains(name, strings.ToLower(pattern)) {
				return false
			}
		}
		return true
	}
}

// DefaultRecordable accepts any device that can produce events.
var DefaultRecordable = TransmitterPolicy(1)
