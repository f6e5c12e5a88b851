package midiwindows

import (
	"github.com/leandrodaf/midi-archiver/internal/midi/message"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

// Constants for MIDI message types
const (
	MIM_OPEN      = 0x3C1 // MIDI device opened
	MIM_CLOSE     = 0x3C2 // MIDI device closed
	MIM_DATA      = 0x3C3 // MIDI data received
	MIM_ERROR     = 0x3C5 // MIDI error
	MIM_LONGERROR = 0x3C6 // Long MIDI error
	MIM_MOREDATA  = 0x3CC // More MIDI data available
)

// decodeShortMessage unpacks the dwParam words of MIM_DATA and MIM_MOREDATA.
// dwParam1 holds status, data1 and data2 in its low three bytes; dwParam2 is
// milliseconds since midiInStart.
func decodeShortMessage(dwParam1, dwParam2 uintptr) contracts.Event {
	return message.New(
		byte(dwParam1&0xFF),
		byte((dwParam1>>8)&0xFF),
		byte((dwParam1>>16)&0xFF),
		int64(dwParam2)*1000,
	)
}
