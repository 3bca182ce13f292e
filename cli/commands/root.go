// Package commands implements the salesreport command line.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/satishbabariya/salesreport/cli/internal/config"
	"github.com/satishbabariya/salesreport/cli/internal/ui"
	"github.com/satishbabariya/salesreport/cli/internal/version"
	"github.com/satishbabariya/salesreport/internal/debug"
)

// state is shared by the commands of one invocation.
type state struct {
	v          *viper.Viper
	configFile string
	noCache    bool
	cfg        *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	st := &state{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "salesreport",
		Short: "Cached analytical reports over sales data",
		Long: `salesreport runs ranking, segmentation and trend reports over a sales
database. Results are cached by query fingerprint, so repeated reports
do not hit the database until the cache entry expires.`,
		Version:       version.Get().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return st.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&st.configFile, "config", "", "Config file (default .salesreport.yaml in ., $HOME or $HOME/.config/salesreport)")
	flags.String("dialect", "", "Database dialect: sqlite, postgres or mysql")
	flags.String("database-url", "", "Database connection string")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.StringP("output", "o", "", "Output format: table, json, csv, yaml or markdown")
	flags.BoolVar(&st.noCache, "no-cache", false, "Disable the result cache")

	for key, flag := range map[string]string{
		"dialect":      "dialect",
		"database_url": "database-url",
		"log_level":    "log-level",
		"output":       "output",
	} {
		_ = st.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		newReportCommand(st),
		newSQLCommand(st),
		newWatchCommand(st),
		newInitCommand(st),
		newVersionCommand(),
	)
	return rootCmd
}

// load reads the configuration once flags are parsed.
func (st *state) load() error {
	cfg, err := config.Load(st.v, st.configFile)
	if err != nil {
		return err
	}
	if st.noCache {
		cfg.Cache.Enabled = false
	}
	if err := debug.Init(cfg.LogLevel, os.Stderr, cfg.LogJSON); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	st.cfg = cfg
	if cfg.File != "" {
		debug.Debug("loaded config", "file", cfg.File)
	}
	return nil
}

// Execute is the main entry point for the CLI
func Execute() error {
	if err := NewRootCommand().Execute(); err != nil {
		ui.PrintError("%v", err)
		return err
	}
	return nil
}
