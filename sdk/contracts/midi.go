package contracts

// UnknownTimestamp marks an event whose transport did not provide a timestamp.
// Recorders replace it with their own clock reading at receipt time.
const UnknownTimestamp int64 = -1

// Event represents a single MIDI message delivered by a device.
type Event struct {
	Timestamp int64 // Timestamp in microseconds on the transport clock, or UnknownTimestamp.
	Command   byte  // Command is the status byte without channel (e.g. 0x90), or the full status for system messages.
	Channel   byte  // Channel is the MIDI channel (0-15) for channel messages.
	Note      byte  // Note carries the first data byte (note number, controller, program...).
	Velocity  byte  // Velocity carries the second data byte (velocity, value...).
}

// EventKind classifies an event for the recording state machine.
type EventKind int

const (
	// KindOther is any event that neither starts nor releases a note.
	KindOther EventKind = iota
	// KindNoteOn is a note being struck.
	KindNoteOn
	// KindNoteOff is a note being released.
	KindNoteOff
)

func (k EventKind) String() string {
	switch k {
	case KindNoteOn:
		return "note-on"
	case KindNoteOff:
		return "note-off"
	default:
		return "other"
	}
}

// Kind returns the event classification. A note-on with zero velocity is a note-off.
func (e Event) Kind() EventKind {
	switch MIDICommand(e.Command) {
	case NoteOn:
		if e.Velocity == 0 {
			return KindNoteOff
		}
		return KindNoteOn
	case NoteOff:
		return KindNoteOff
	default:
		return KindOther
	}
}

// Status returns the raw status byte of the event.
func (e Event) Status() byte {
	if e.Command >= 0xF0 {
		return e.Command
	}
	return e.Command | (e.Channel & 0x0F)
}

// Bytes returns the wire encoding of the event.
func (e Event) Bytes() []byte {
	switch MIDICommand(e.Command).DataLength() {
	case 0:
		return []byte{e.Status()}
	case 1:
		return []byte{e.Status(), e.Note}
	default:
		return []byte{e.Status(), e.Note, e.Velocity}
	}
}
