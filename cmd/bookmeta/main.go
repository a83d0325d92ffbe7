package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/yuanying/bookmeta/internal/config"
	"github.com/yuanying/bookmeta/internal/extract"
	"github.com/yuanying/bookmeta/internal/logging"
)

// app carries the state shared by every subcommand.
type app struct {
	cfg     *config.Config
	cfgFile string

	logLevel  string
	logFormat string
	logFile   string

	logCloser io.Closer
}

func (a *app) pipeline() *extract.Pipeline {
	return extract.NewPipeline(extract.Options{
		MaxEntrySize: a.cfg.MaxEntrySize,
		Logger:       slog.Default(),
	})
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:   "bookmeta",
		Short: "Read metadata from e-book containers",
		Long: `bookmeta reads bibliographic metadata (title, authors, category and
cover) from EPUB, MOBI/PalmDOC and IMP e-book files.

Unreadable files never abort a run: they are reported with the default
"Unknown" title and author.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logCloser != nil {
				return a.logCloser.Close()
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is bookmeta.yaml in $HOME or pwd)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (text, json)")
	cmd.PersistentFlags().StringVar(&a.logFile, "log-file", "", "also write JSON logs to this file")

	cmd.AddCommand(
		newShowCmd(a),
		newEntriesCmd(a),
		newCatCmd(a),
		newCoverCmd(a),
		newScanCmd(a),
		newListCmd(a),
	)
	return cmd
}

// setup loads the configuration, applies flag overrides and installs the
// default logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = a.logFormat
	}
	if flags.Changed("log-file") {
		cfg.LogFile = a.logFile
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	closer, err := logging.Setup(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logCloser = closer

	slog.Debug("Configuration",
		"config", a.cfgFile,
		"database", cfg.Database,
		"workers", cfg.Workers,
		"timeout", cfg.Timeout,
		"max_entry_size", cfg.MaxEntrySize,
		"log_level", cfg.LogLevel,
		"log_format", cfg.LogFormat)
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
