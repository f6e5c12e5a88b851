package fleet

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/leandrodaf/midi-archiver/internal/clock"
	"github.com/leandrodaf/midi-archiver/internal/recorder"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	keyA  = contracts.DeviceInfo{Manufacturer: "Acme", Name: "KeyA", Version: "1", Transmitters: -1}
	keyB  = contracts.DeviceInfo{Manufacturer: "Acme", Name: "KeyB", Version: "1", Transmitters: 1}
	keyC  = contracts.DeviceInfo{Manufacturer: "Acme", Name: "KeyC", Version: "1", Transmitters: 2}
	synth = contracts.DeviceInfo{Manufacturer: "Acme", Name: "SynthOut", Version: "1", Transmitters: 0}
)

func names(devices []contracts.DeviceInfo) []string {
	var out []string
	for _, d := range devices {
		out = append(out, d.Name)
	}
	return out
}

func newTestManager(source *fakeSource, factory *recorderFactory) *Manager {
	return NewManager(source, factory.build, Config{Interval: time.Second})
}

func TestManager_AttachesRecordableDevices(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA, synth, keyB)
	factory := newRecorderFactory(j)
	m := newTestManager(source, factory)

	m.Reconcile()

	assert.Equal(t, []string{"KeyA", "KeyB"}, names(m.Active()))
	assert.Equal(t, 0, source.openCount("SynthOut"), "devices without transmitters are never opened")

	source.handle("KeyA").send(contracts.Event{Command: byte(contracts.NoteOn), Velocity: 1})
	recs := factory.created("KeyA")
	require.Len(t, recs, 1)
	assert.Equal(t, 1, recs[0].events, "the recorder is bound as the device sink")
}

func TestManager_NoDuplicateAttach(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA, keyB)
	factory := newRecorderFactory(j)
	m := newTestManager(source, factory)

	m.Reconcile()
	m.Reconcile()
	m.Reconcile()

	for _, name := range []string{"KeyA", "KeyB"} {
		assert.Equal(t, 1, source.openCount(name), name)
		assert.Len(t, factory.created(name), 1, name)
		assert.Equal(t, 0, factory.created(name)[0].closeCount(), name)
	}
	assert.Empty(t, j.all())
}

func TestManager_DuplicateIdentityInOneScan(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA, keyA)
	factory := newRecorderFactory(j)
	m := newTestManager(source, factory)

	m.Reconcile()

	assert.Len(t, m.Active(), 1)
	assert.Equal(t, 1, source.openCount("KeyA"))
}

func TestManager_ReconcileSetAlgebra(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA, keyB)
	factory := newRecorderFactory(j)
	m := newTestManager(source, factory)
	m.Reconcile()
	recorderB := factory.created("KeyB")[0]

	source.setDevices(keyB, keyC)
	m.Reconcile()

	assert.Equal(t, []string{"KeyB", "KeyC"}, names(m.Active()))

	// S \ D closed exactly once, recorder before handle.
	assert.Equal(t, 1, factory.created("KeyA")[0].closeCount())
	assert.Equal(t, 1, source.handle("KeyA").closeCount())
	assert.Equal(t, []string{"close-recorder KeyA", "close-handle KeyA"}, j.all())

	// S ∩ D carried forward untouched.
	assert.Equal(t, []*fakeRecorder{recorderB}, factory.created("KeyB"))
	assert.Equal(t, 0, recorderB.closeCount())
	assert.Equal(t, 1, source.openCount("KeyB"))

	// D \ S newly attached.
	assert.Len(t, factory.created("KeyC"), 1)

	m.Reconcile()
	assert.Equal(t, 1, factory.created("KeyA")[0].closeCount(), "removed devices are not closed again")
}

func TestManager_DeviceReappearsWithSameIdentity(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA)
	factory := newRecorderFactory(j)
	m := newTestManager(source, factory)

	m.Reconcile()
	source.setDevices()
	m.Reconcile()
	assert.Empty(t, m.Active())

	source.setDevices(keyA)
	m.Reconcile()

	assert.Equal(t, []string{"KeyA"}, names(m.Active()))
	assert.Equal(t, 2, source.openCount("KeyA"))
	assert.Len(t, factory.created("KeyA"), 2, "a returning device gets a fresh recorder")
}

func TestManager_UnavailableDeviceRetriedNextScan(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA, keyB)
	source.setUnavailable("KeyA", true)
	factory := newRecorderFactory(j)
	m := newTestManager(source, factory)

	m.Reconcile()
	assert.Equal(t, []string{"KeyB"}, names(m.Active()))
	assert.Empty(t, factory.created("KeyA"))

	source.setUnavailable("KeyA", false)
	m.Reconcile()
	assert.Equal(t, []string{"KeyA", "KeyB"}, names(m.Active()))
}

func TestManager_AttachFailureLeavesNothingOpen(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA, keyB)
	source.attachErr["KeyA"] = errors.New("transmitter busy")
	factory := newRecorderFactory(j)
	factory.failFor["KeyB"] = true
	m := newTestManager(source, factory)

	m.Reconcile()

	assert.Empty(t, m.Active())
	assert.Equal(t, 1, factory.created("KeyA")[0].closeCount())
	assert.Equal(t, 1, source.handle("KeyA").closeCount())
	assert.Equal(t, 1, source.handle("KeyB").closeCount())
}

func TestManager_ListFailureKeepsDevices(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA)
	factory := newRecorderFactory(j)
	m := newTestManager(source, factory)
	m.Reconcile()

	source.mu.Lock()
	source.listErr = errors.New("midi service restarting")
	source.mu.Unlock()
	m.Reconcile()

	assert.Equal(t, []string{"KeyA"}, names(m.Active()))
	assert.Empty(t, j.all())
}

func TestManager_NoAttachAfterShutdown(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA)
	factory := newRecorderFactory(j)
	m := newTestManager(source, factory)
	m.Reconcile()

	source.setDevices(keyA, keyB)
	m.Shutdown()
	m.Shutdown()
	m.Reconcile()

	assert.Equal(t, []string{"KeyA"}, names(m.Active()))
	assert.Equal(t, 0, source.openCount("KeyB"))
}

func TestManager_RemovedDeviceFlushesRecording(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA)
	fake := clock.Fake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))

	var mu sync.Mutex
	var written []*contracts.Recording
	writer := writerFunc(func(rec *contracts.Recording) error {
		mu.Lock()
		defer mu.Unlock()
		written = append(written, rec)
		j.add("write %d events", rec.Len())
		return nil
	})

	var rec *recorder.Recorder
	m := NewManager(source, func(info contracts.DeviceInfo) (Recorder, error) {
		rec = recorder.New(info, writer, recorder.Config{Clock: fake})
		return rec, nil
	}, Config{Clock: fake})

	m.Reconcile()
	h := source.handle("KeyA")
	h.send(contracts.Event{Timestamp: 0, Command: byte(contracts.NoteOn), Note: 60, Velocity: 80})
	h.send(contracts.Event{Timestamp: 1_000, Command: byte(contracts.NoteOn), Note: 64, Velocity: 80})
	require.Equal(t, recorder.Recording, rec.State())

	source.setDevices()
	m.Reconcile()

	require.Len(t, written, 1)
	assert.Equal(t, 2, written[0].Len())
	assert.Equal(t, recorder.Idle, rec.State())
	assert.Equal(t, []string{"write 2 events", "close-handle KeyA"}, j.all())

	fake.Advance(time.Hour)
	assert.Len(t, written, 1, "the cancelled deadline must not write again")
}

func TestManager_RunReconcilesOnEveryTick(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA)
	factory := newRecorderFactory(j)
	fake := clock.Fake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	m := NewManager(source, factory.build, Config{Interval: 20 * time.Second, Clock: fake})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return source.listCount() == 1 }, time.Second, time.Millisecond)
	fake.WaitForTimers(1)

	source.setDevices(keyA, keyB)
	fake.Advance(20 * time.Second)
	require.Eventually(t, func() bool { return source.openCount("KeyB") == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.Equal(t, 1, factory.created("KeyA")[0].closeCount())
	assert.Equal(t, 1, factory.created("KeyB")[0].closeCount())
	assert.Equal(t, 1, source.handle("KeyA").closeCount())
	assert.Equal(t, 1, source.handle("KeyB").closeCount())
}

func TestManager_ShutdownClosesEveryDevice(t *testing.T) {
	j := &journal{}
	source := newFakeSource(j, keyA, keyB, keyC)
	factory := newRecorderFactory(j)
	factory.closeErr["KeyB"] = errors.New("write failed")
	fake := clock.Fake(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
	m := NewManager(source, factory.build, Config{Clock: fake})

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	require.Eventually(t, func() bool { return source.listCount() == 1 }, time.Second, time.Millisecond)

	m.Shutdown()
	var err error
	select {
	case err = <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Shutdown")
	}

	require.Error(t, err)
	assert.Contains(t, err.Error(), "write failed")
	for _, name := range []string{"KeyA", "KeyB", "KeyC"} {
		assert.Equal(t, 1, factory.created(name)[0].closeCount(), name)
		assert.Equal(t, 1, source.handle(name).closeCount(), name)
	}
}

type writerFunc func(rec *contracts.Recording) error

func (f writerFunc) Write(rec *contracts.Recording) error { return f(rec) }
