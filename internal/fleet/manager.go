// Package fleet keeps one recorder attached to every recordable MIDI device.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/leandrodaf/midi-archiver/internal/clock"
	"github.com/leandrodaf/midi-archiver/internal/logger"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"go.uber.org/multierr"
)

// DefaultInterval is the default period between two device scans.
const DefaultInterval = 20 * time.Second

// Recorder consumes the events of one device and flushes on Close.
type Recorder interface {
	contracts.EventSink
	Close() error
}

// RecorderFactory builds the recorder for a newly attached device.
type RecorderFactory func(device contracts.DeviceInfo) (Recorder, error)

// Config configures a Manager. Zero values select the defaults.
type Config struct {
	Interval   time.Duration
	Recordable contracts.RecordablePolicy
	Logger     contracts.Logger
	Clock      clock.Clock
}

// entry is an attached device.
type entry struct {
	info     contracts.DeviceInfo
	handle   contracts.DeviceHandle
	recorder Recorder
}

// Manager reconciles the attached devices with the devices the source reports.
//
// The active set is owned by the goroutine calling Reconcile or Run; the two
// must never be called concurrently. Shutdown may be called from anywhere.
type Manager struct {
	source     contracts.DeviceSource
	factory    RecorderFactory
	logger     contracts.Logger
	clock      clock.Clock
	interval   time.Duration
	recordable contracts.RecordablePolicy

	active map[string]*entry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a manager with no attached devices.
func NewManager(source contracts.DeviceSource, factory RecorderFactory, cfg Config) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Recordable == nil {
		cfg.Recordable = contracts.DefaultRecordable
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}

	return &Manager{
		source:     source,
		factory:    factory,
		logger:     cfg.Logger,
		clock:      cfg.Clock,
		interval:   cfg.Interval,
		recordable: cfg.Recordable,
		active:     make(map[string]*entry),
		stop:       make(chan struct{}),
	}
}

// Run reconciles immediately and then on every interval until ctx is done or
// Shutdown is called. Before returning it closes every attached device, which
// flushes all in-flight recordings. The returned error aggregates close failures.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("device fleet manager started", m.logger.Field().Duration("interval", m.interval))

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	m.Reconcile()
	for running := true; running; {
		select {
		case <-ticker.C:
			m.Reconcile()
		case <-m.stop:
			running = false
		case <-ctx.Done():
			running = false
		}
	}

	err := m.closeAll()
	m.logger.Info("device fleet manager finished")
	return err
}

// Shutdown requests Run to stop. No device is attached after Shutdown returns.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) stopping() bool {
	select {
	case <-m.stop:
		return true
	default:
		return false
	}
}

// Reconcile performs one scan: devices still present are kept as they are, new
// recordable devices are attached and devices that disappeared are closed.
// A device that cannot be opened is skipped and retried on the next scan.
func (m *Manager) Reconcile() {
	devices, err := m.source.ListDevices()
	if err != nil {
		m.logger.Error("failed to list MIDI devices", m.logger.Field().Error("error", err))
		return
	}

	next := make(map[string]*entry, len(devices))
	attached := 0
	for _, info := range devices {
		if !m.recordable(info) {
			m.logger.Debug("skipping device that cannot be recorded",
				m.logger.Field().String("device", info.DisplayName()))
			continue
		}

		key := info.Key()
		if _, seen := next[key]; seen {
			continue
		}
		if e, ok := m.active[key]; ok {
			next[key] = e
			delete(m.active, key)
			continue
		}
		if m.stopping() {
			continue
		}

		e, err := m.attach(info)
		if err != nil {
			if errors.Is(err, contracts.ErrDeviceUnavailable) {
				m.logger.Debug("MIDI device is unavailable",
					m.logger.Field().String("device", info.DisplayName()),
					m.logger.Field().Error("error", err))
			} else {
				m.logger.Warn("failed to attach MIDI device",
					m.logger.Field().String("device", info.DisplayName()),
					m.logger.Field().Error("error", err))
			}
			continue
		}
		next[key] = e
		attached++
	}

	removed := m.active
	m.active = next
	for _, e := range removed {
		m.logger.Info("MIDI device removed", m.logger.Field().String("device", e.info.DisplayName()))
		_ = m.release(e)
	}

	m.logger.Debug("device scan finished",
		m.logger.Field().Int("active", len(m.active)),
		m.logger.Field().Int("attached", attached),
		m.logger.Field().Int("removed", len(removed)))
}

// Active returns the attached devices ordered by identity. Like Reconcile, it
// must not be called concurrently with Run.
func (m *Manager) Active() []contracts.DeviceInfo {
	out := make([]contracts.DeviceInfo, 0, len(m.active))
	for _, e := range m.active {
		out = append(out, e.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// attach opens the device and binds a fresh recorder to it. On failure nothing
// stays open.
func (m *Manager) attach(info contracts.DeviceInfo) (*entry, error) {
	handle, err := m.source.Open(info)
	if err != nil {
		return nil, err
	}

	rec, err := m.factory(info)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("create recorder: %w", err), handle.Close())
	}

	if err := handle.Attach(rec); err != nil {
		return nil, multierr.Combine(fmt.Errorf("attach recorder: %w", err), rec.Close(), handle.Close())
	}

	m.logger.Info("started archiver on device",
		m.logger.Field().String("device", info.DisplayName()),
		m.logger.Field().String("id", info.ID()))
	return &entry{info: info, handle: handle, recorder: rec}, nil
}

// release flushes the recorder before the handle goes away.
func (m *Manager) release(e *entry) error {
	err := multierr.Append(e.recorder.Close(), e.handle.Close())
	if err != nil {
		m.logger.Warn("failed to close MIDI device",
			m.logger.Field().String("device", e.info.DisplayName()),
			m.logger.Field().Error("error", err))
	}
	return err
}

func (m *Manager) closeAll() error {
	var err error
	for key, e := range m.active {
		err = multierr.Append(err, m.release(e))
		delete(m.active, key)
	}
	return err
}
