// midi-archiver records every connected MIDI controller to Standard MIDI
// Files. A recording starts with the first note and ends after a period of
// silence, so nothing played is ever lost and nothing needs to be started
// by hand.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/leandrodaf/midi-archiver/internal/catalog"
	"github.com/leandrodaf/midi-archiver/internal/config"
	"github.com/leandrodaf/midi-archiver/internal/logger"
	"github.com/leandrodaf/midi-archiver/sdk/archiver"
	"github.com/leandrodaf/midi-archiver/sdk/contracts"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var (
		configPath  string
		dataDir     string
		logLevel    string
		flushDelay  time.Duration
		listDevices bool
		recent      int
	)

	flagSet := pflag.NewFlagSet("midi-archiver", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML configuration file")
	flagSet.StringVar(&dataDir, "data-dir", "", "archive root directory (overrides data_dir)")
	flagSet.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides log_level)")
	flagSet.DurationVar(&flushDelay, "flush-delay", 0, "silence after the last note-off that ends a recording (overrides flush_delay)")
	flagSet.BoolVar(&listDevices, "list-devices", false, "list MIDI devices and exit")
	flagSet.IntVar(&recent, "recent", 0, "print the N most recent catalog entries and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return fmt.Errorf("unexpected argument: %s", rest[0])
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("data-dir") {
		cfg.DataDir = dataDir
	}
	if flagSet.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flagSet.Changed("flush-delay") {
		cfg.FlushDelay = flushDelay
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if recent > 0 {
		return printRecent(stdout, cfg.ResolvedCatalogPath(), recent)
	}

	log := logger.NewZapLogger()
	defer log.Sync()

	a, err := archiver.NewArchiver(append([]contracts.Option{contracts.WithLogger(log)}, cfg.Options()...)...)
	if err != nil {
		return err
	}
	defer a.Close()

	if listDevices {
		return printDevices(stdout, a, cfg.RecordablePolicy())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("archiving MIDI devices",
		log.Field().String("data_dir", cfg.DataDir),
		log.Field().Duration("flush_delay", cfg.FlushDelay))
	return a.Run(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot load configuration: %w", err)
	}
	return cfg, nil
}

func printDevices(w io.Writer, a contracts.Archiver, recordable contracts.RecordablePolicy) error {
	devices, err := a.ListDevices()
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		return contracts.ErrNoDevices
	}

	for _, device := range devices {
		mark := " "
		if recordable(device) {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s\n    key: %s\n    id:  %s\n", mark, device.DisplayName(), device.Key(), device.ID())
	}
	fmt.Fprintln(w, "\n* recordable")
	return nil
}

func printRecent(w io.Writer, path string, limit int) error {
	if path == "" {
		return fmt.Errorf("catalog is disabled")
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer cat.Close()

	entries, err := cat.Recent("", limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-24s  %8s  %5d events  %s\n",
			e.StartedAt.Local().Format(time.DateTime), e.DeviceName,
			e.Duration.Round(time.Millisecond), e.Events, e.Path)
	}
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `midi-archiver records every connected MIDI controller.

Each device gets a directory below the data directory. A recording starts
with the first note and is written as a Standard MIDI File once the device
has been silent for the flush delay after the last note-off.

Usage:
  midi-archiver [flags]

Examples:
  # Archive with the defaults (~/midi-archive)
  midi-archiver

  # Use a configuration file and a shorter flush delay
  midi-archiver --config /etc/midi-archiver.yaml --flush-delay 3s

  # Show which devices would be recorded
  midi-archiver --list-devices

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
