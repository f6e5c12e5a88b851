// Package message decodes raw MIDI bytes delivered by native backends.
package message

import "github.com/leandrodaf/midi-archiver/sdk/contracts"

const (
	sysExStart = 0xF0
	sysExEnd   = 0xF7
	realtime   = 0xF8
)

// New builds an event from a status byte and its data bytes.
func New(status, data1, data2 byte, timestamp int64) contracts.Event {
	event := contracts.Event{Timestamp: timestamp, Note: data1, Velocity: data2}
	if status >= 0xF0 {
		event.Command = status
	} else {
		event.Command = status & 0xF0
		event.Channel = status & 0x0F
	}
	return event
}

// Parse splits data into events stamped with timestamp. Running status is
// honoured, system exclusive payloads are skipped and incomplete trailing
// messages are dropped.
func Parse(data []byte, timestamp int64) []contracts.Event {
	var (
		events  []contracts.Event
		running byte
		inSysEx bool
	)

	for i := 0; i < len(data); {
		b := data[i]

		switch {
		case b >= realtime:
			events = append(events, New(b, 0, 0, timestamp))
			i++
			continue
		case inSysEx:
			if b == sysExEnd {
				inSysEx = false
			}
			i++
			continue
		case b == sysExStart:
			inSysEx = true
			running = 0
			i++
			continue
		}

		status := b
		if b < 0x80 {
			if running == 0 {
				i++
				continue
			}
			status = running
		} else {
			i++
			if status < 0xF0 {
				running = status
			} else {
				running = 0
			}
		}

		n := contracts.MIDICommand(status).DataLength()
		if i+n > len(data) {
			break
		}
		var d1, d2 byte
		if n > 0 {
			d1 = data[i]
		}
		if n > 1 {
			d2 = data[i+1]
		}
		i += n
		events = append(events, New(status, d1, d2, timestamp))
	}
	return events
}
