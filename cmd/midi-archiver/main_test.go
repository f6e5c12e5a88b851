package main

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/leandrodaf/midi-archiver/internal/catalog"
	"github.com/leandrodaf/midi-archiver/internal/config"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRejectsArguments(t *testing.T) {
	err := run([]string{"extra"}, &bytes.Buffer{})
	assert.ErrorContains(t, err, "unexpected argument")
}

func TestRunFlagsOverrideAndValidate(t *testing.T) {
	err := run([]string{"--flush-delay", "30s", "--recent", "1"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestRunRecent(t *testing.T) {
	dir := t.TempDir()
	cat, err := catalog.Open(filepath.Join(dir, "catalog.db"))
	require.NoError(t, err)

	started := time.Date(2024, 3, 9, 14, 30, 0, 0, time.UTC)
	for i, name := range []string{"Key1", "Pad2"} {
		require.NoError(t, cat.Index(contracts.ArchiveEntry{
			DeviceID:   name,
			DeviceName: name,
			Path:       filepath.Join(dir, name+".mid"),
			StartedAt:  started.Add(time.Duration(i) * time.Minute),
			Duration:   1500 * time.Millisecond,
			Events:     4,
		}))
	}
	require.NoError(t, cat.Close())

	var out bytes.Buffer
	require.NoError(t, run([]string{"--data-dir", dir, "--recent", "1"}, &out))

	assert.Contains(t, out.String(), "Pad2")
	assert.NotContains(t, out.String(), "Key1")
	assert.Contains(t, out.String(), "4 events")
}

type listingArchiver struct {
	contracts.Archiver
	devices []contracts.DeviceInfo
}

func (a listingArchiver) ListDevices() ([]contracts.DeviceInfo, error) { return a.devices, nil }

func TestPrintDevices(t *testing.T) {
	keyboard := contracts.DeviceInfo{Name: "Key1", Manufacturer: "Acme", Version: "1.0", Transmitters: 1}
	through := contracts.DeviceInfo{Name: "Midi Through Port-0", Transmitters: 1}

	var out bytes.Buffer
	err := printDevices(&out, listingArchiver{devices: []contracts.DeviceInfo{keyboard, through}}, config.Default().RecordablePolicy())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "* "+keyboard.DisplayName())
	assert.Contains(t, out.String(), "  "+through.DisplayName())
	assert.Contains(t, out.String(), keyboard.Key())
	assert.Contains(t, out.String(), keyboard.ID())
}

func TestPrintDevicesEmpty(t *testing.T) {
	err := printDevices(&bytes.Buffer{}, listingArchiver{}, contracts.DefaultRecordable)
	assert.ErrorIs(t, err, contracts.ErrNoDevices)
}
