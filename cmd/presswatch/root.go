package main

import (
	"os"

	"presswatch/internal/config"
	"presswatch/internal/logger"
	"presswatch/internal/store"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/presswatch.yaml"

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	configPath string
	logLevel   string

	// shared is set while schedule runs so every job writes through one Merger.
	shared *store.Merger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "presswatch",
		Short:         "presswatch tracks competitor press releases.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", defaultConfigPath, "path to YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")

	root.AddCommand(
		newCrawlCmd(a),
		newListCmd(a),
		newDigestCmd(a),
		newEnrichCmd(a),
		newExportCmd(a),
		newScheduleCmd(a),
	)

	return root
}

func (a *app) load() error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}

	level := cfg.Crawler.Logging.Level
	if a.logLevel != "" {
		level = a.logLevel
	}

	a.cfg = cfg
	a.log = logger.NewLoggerWithFormat(level, cfg.Crawler.Logging.Format, os.Stderr)
	a.log.Debug("configuration loaded", "path", a.configPath, "config", cfg.String())

	return nil
}

// openMerger returns the Merger for the configured master store and a
// release func the caller defers. While a shared Merger is installed every
// caller gets it and release is a no-op.
func (a *app) openMerger() (*store.Merger, func(), error) {
	if a.shared != nil {
		return a.shared, func() {}, nil
	}

	s, err := store.Open(a.cfg.Crawler.Store, a.log)
	if err != nil {
		return nil, nil, err
	}

	merger := store.NewMerger(s, a.log)

	return merger, func() {
		if err := merger.Close(); err != nil {
			a.log.Warn("store close failed", "error", err)
		}
	}, nil
}

// shareMerger opens the store once and hands the same Merger to every later
// openMerger call until the returned func closes it.
func (a *app) shareMerger() (func(), error) {
	merger, release, err := a.openMerger()
	if err != nil {
		return nil, err
	}

	a.shared = merger

	return func() {
		a.shared = nil
		release()
	}, nil
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)

	return t
}
