package fleet

import (
	"errors"
	"fmt"
	"sync"

	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

// journal records lifecycle calls across fakes in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeSource struct {
	mu          sync.Mutex
	journal     *journal
	devices     []contracts.DeviceInfo
	unavailable map[string]bool
	attachErr   map[string]error
	listErr     error
	lists       int
	opens       map[string]int
	handles     map[string][]*fakeHandle
}

func newFakeSource(j *journal, devices ...contracts.DeviceInfo) *fakeSource {
	return &fakeSource{
		journal:     j,
		devices:     devices,
		unavailable: map[string]bool{},
		attachErr:   map[string]error{},
		opens:       map[string]int{},
		handles:     map[string][]*fakeHandle{},
	}
}

func (s *fakeSource) setDevices(devices ...contracts.DeviceInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = devices
}

func (s *fakeSource) setUnavailable(name string, unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable[name] = unavailable
}

func (s *fakeSource) ListDevices() ([]contracts.DeviceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]contracts.DeviceInfo(nil), s.devices...), nil
}

func (s *fakeSource) Open(info contracts.DeviceInfo) (contracts.DeviceHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unavailable[info.Name] {
		return nil, fmt.Errorf("%w: %s is busy", contracts.ErrDeviceUnavailable, info.Name)
	}
	s.opens[info.Name]++
	h := &fakeHandle{info: info, journal: s.journal, attachErr: s.attachErr[info.Name]}
	s.handles[info.Name] = append(s.handles[info.Name], h)
	return h, nil
}

func (s *fakeSource) Close() error { return nil }

func (s *fakeSource) openCount(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[name]
}

func (s *fakeSource) listCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lists
}

func (s *fakeSource) handle(name string) *fakeHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	hs := s.handles[name]
	if len(hs) == 0 {
		return nil
	}
	return hs[len(hs)-1]
}

type fakeHandle struct {
	mu        sync.Mutex
	info      contracts.DeviceInfo
	journal   *journal
	attachErr error
	sink      contracts.EventSink
	closes    int
}

func (h *fakeHandle) Info() contracts.DeviceInfo { return h.info }

func (h *fakeHandle) Attach(sink contracts.EventSink) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.attachErr != nil {
		return h.attachErr
	}
	h.sink = sink
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closes++
	h.journal.add("close-handle %s", h.info.Name)
	return nil
}

func (h *fakeHandle) closeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closes
}

func (h *fakeHandle) send(event contracts.Event) {
	h.mu.Lock()
	sink := h.sink
	h.mu.Unlock()
	if sink != nil {
		sink.HandleEvent(event)
	}
}

type fakeRecorder struct {
	mu       sync.Mutex
	info     contracts.DeviceInfo
	journal  *journal
	closeErr error
	events   int
	closes   int
}

func (r *fakeRecorder) HandleEvent(contracts.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events++
}

func (r *fakeRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	r.journal.add("close-recorder %s", r.info.Name)
	return r.closeErr
}

func (r *fakeRecorder) closeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// recorderFactory builds fakeRecorders and remembers them by device name.
type recorderFactory struct {
	mu        sync.Mutex
	journal   *journal
	closeErr  map[string]error
	failFor   map[string]bool
	recorders map[string][]*fakeRecorder
}

func newRecorderFactory(j *journal) *recorderFactory {
	return &recorderFactory{
		journal:   j,
		closeErr:  map[string]error{},
		failFor:   map[string]bool{},
		recorders: map[string][]*fakeRecorder{},
	}
}

func (f *recorderFactory) build(info contracts.DeviceInfo) (Recorder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor[info.Name] {
		return nil, errors.New("writer directory not writable")
	}
	r := &fakeRecorder{info: info, journal: f.journal, closeErr: f.closeErr[info.Name]}
	f.recorders[info.Name] = append(f.recorders[info.Name], r)
	return r, nil
}

func (f *recorderFactory) created(name string) []*fakeRecorder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeRecorder(nil), f.recorders[name]...)
}
