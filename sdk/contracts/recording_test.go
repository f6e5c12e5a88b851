package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecording_AppendRebasesToStart(t *testing.T) {
	rec := NewRecording()
	startedAt := time.Date(2026, 5, 4, 20, 15, 0, 0, time.UTC)
	rec.Begin(5_000, startedAt)

	require.NoError(t, rec.Append(Event{Timestamp: 5_000, Command: byte(NoteOn), Note: 64, Velocity: 90}))
	require.NoError(t, rec.Append(Event{Timestamp: 5_750, Command: byte(NoteOff), Note: 64}))

	assert.True(t, rec.Begun())
	assert.Equal(t, startedAt, rec.StartedAt())
	assert.Equal(t, 2, rec.Len())
	assert.Equal(t, 750*time.Microsecond, rec.Duration())

	events := rec.Events()
	assert.Equal(t, int64(0), events[0].Offset)
	assert.Equal(t, int64(750), events[1].Offset)
}

func TestRecording_ClampsEarlierTimestamps(t *testing.T) {
	rec := NewRecording()
	rec.Begin(100, time.Time{})

	require.NoError(t, rec.Append(Event{Timestamp: 50}))
	require.NoError(t, rec.Append(Event{Timestamp: 300}))
	require.NoError(t, rec.Append(Event{Timestamp: 200}))

	events := rec.Events()
	assert.Equal(t, int64(0), events[0].Offset)
	assert.Equal(t, int64(200), events[1].Offset)
	assert.Equal(t, int64(200), events[2].Offset)
}

func TestRecording_SealedRejectsAppend(t *testing.T) {
	rec := NewRecording()
	rec.Begin(0, time.Time{})
	rec.Seal()

	assert.True(t, rec.Sealed())
	assert.ErrorIs(t, rec.Append(Event{}), ErrRecordingSealed)
	assert.Equal(t, 0, rec.Len())
}

func TestRecording_EventsReturnsCopy(t *testing.T) {
	rec := NewRecording()
	rec.Begin(0, time.Time{})
	require.NoError(t, rec.Append(Event{Timestamp: 10, Note: 1}))

	events := rec.Events()
	events[0].Event.Note = 99
	assert.Equal(t, byte(1), rec.Events()[0].Event.Note)
}
