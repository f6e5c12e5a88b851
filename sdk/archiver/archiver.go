package archiver

import (
	"context"
	"sync"

	"github.com/leandrodaf/midi-archiver/internal/catalog"
	"github.com/leandrodaf/midi-archiver/internal/fleet"
	"github.com/leandrodaf/midi-archiver/internal/recorder"
	"github.com/leandrodaf/midi-archiver/internal/writer"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"go.uber.org/multierr"
)

// archiver ties a device source to a fleet manager whose recorders write
// into the archive directory.
type archiver struct {
	logger  contracts.Logger
	source  contracts.DeviceSource
	catalog *catalog.Catalog
	manager *fleet.Manager

	closeOnce sync.Once
	closeErr  error
}

func newArchiver(options contracts.Options) (*archiver, error) {
	source := options.DeviceSource
	if source == nil {
		var err error
		if source, err = NewDeviceSource(&options); err != nil {
			return nil, err
		}
	}

	a := &archiver{
		logger: options.Logger,
		source: source,
	}

	factory := options.WriterFactory
	if factory == nil {
		writerOpts := []writer.Option{writer.WithLogger(options.Logger)}
		if options.CatalogPath != "" {
			cat, err := catalog.Open(options.CatalogPath)
			if err != nil {
				return nil, multierr.Append(err, source.Close())
			}
			a.catalog = cat
			writerOpts = append(writerOpts, writer.WithIndexer(cat))
		}
		factory = writer.Factory(options.DataDir, writerOpts...)
	}

	recorderConfig := recorder.Config{
		FlushDelay:      options.FlushDelay,
		NoteGracePeriod: options.NoteGracePeriod,
		Logger:          options.Logger,
	}
	a.manager = fleet.NewManager(source, recorderFactory(factory, recorderConfig), fleet.Config{
		Interval:   options.ReconcileInterval,
		Recordable: options.Recordable,
		Logger:     options.Logger,
	})
	return a, nil
}

// recorderFactory builds one recorder per device, each with its own writer.
func recorderFactory(factory contracts.SequenceWriterFactory, cfg recorder.Config) fleet.RecorderFactory {
	return func(device contracts.DeviceInfo) (fleet.Recorder, error) {
		w, err := factory(device)
		if err != nil {
			return nil, err
		}
		return recorder.New(device, w, cfg), nil
	}
}

func (a *archiver) Run(ctx context.Context) error {
	return a.manager.Run(ctx)
}

func (a *archiver) Shutdown() {
	a.manager.Shutdown()
}

func (a *archiver) ListDevices() ([]contracts.DeviceInfo, error) {
	return a.source.ListDevices()
}

// Close releases the device source and the catalog. It must be called after
// Run has returned.
func (a *archiver) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.source.Close()
		if a.catalog != nil {
			a.closeErr = multierr.Append(a.closeErr, a.catalog.Close())
		}
	})
	return a.closeErr
}
