package midilinux

import (
	"regexp"
	"strings"

	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

// alsaAddress matches the "client:port" suffix ALSA appends to port names.
var alsaAddress = regexp.MustCompile(`\s+(\d+:\d+)$`)

// describe builds a DeviceInfo from an rtmidi port name such as
// "Keystation 49:Keystation 49 MIDI 1 24:0". The ALSA address moves between
// reconnects, so it is kept out of the identity.
func describe(port string) contracts.DeviceInfo {
	port = strings.TrimSpace(port)

	var address string
	if m := alsaAddress.FindStringSubmatchIndex(port); m != nil {
		address = port[m[2]:m[3]]
		port = port[:m[0]]
	}

	client, name := port, port
	if i := strings.Index(port, ":"); i > 0 {
		client, name = port[:i], port[i+1:]
	}

	return contracts.DeviceInfo{
		Name:         name,
		Manufacturer: client,
		EntityName:   address,
		Transmitters: 1,
	}
}
