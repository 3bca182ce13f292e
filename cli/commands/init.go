package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/salesreport/cli/internal/config"
	"github.com/satishbabariya/salesreport/cli/internal/ui"
	"github.com/satishbabariya/salesreport/internal/debug"
)

// initAnswers are the values init asks for.
type initAnswers struct {
	Dialect     string
	DatabaseURL string `survey:"database_url"`
	Output      string
	TTL         string
	PersistDir  string `survey:"persist_dir"`
}

func initQuestions(defaults initAnswers) []*survey.Question {
	return []*survey.Question{
		{
			Name: "dialect",
			Prompt: &survey.Select{
				Message: "Database dialect:",
				Options: []string{"sqlite", "postgres", "mysql"},
				Default: defaults.Dialect,
			},
		},
		{
			Name:     "database_url",
			Prompt:   &survey.Input{Message: "Database URL:", Default: defaults.DatabaseURL},
			Validate: survey.Required,
		},
		{
			Name: "output",
			Prompt: &survey.Select{
				Message: "Default output format:",
				Options: config.OutputFormats,
				Default: defaults.Output,
			},
		},
		{
			Name:   "ttl",
			Prompt: &survey.Input{Message: "Cache TTL:", Default: defaults.TTL},
			Validate: func(ans interface{}) error {
				d, err := time.ParseDuration(ans.(string))
				if err != nil || d <= 0 {
					return fmt.Errorf("enter a positive duration such as 15m")
				}
				return nil
			},
		},
		{
			Name:   "persist_dir",
			Prompt: &survey.Input{Message: "Directory for the on-disk cache (empty for none):", Default: defaults.PersistDir},
		},
	}
}

func newInitCommand(st *state) *cobra.Command {
	var (
		global bool
		yes    bool
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file",
		Long:  "Create .salesreport.yaml in the current directory, or under $HOME/.config/salesreport with --global.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultPath(global)
			if err != nil {
				return err
			}
			if _, err := config.AppFs.Stat(path); err == nil {
				if !force {
					return fmt.Errorf("config file already exists: %s (use --force to overwrite)", path)
				}
				debug.Warn("overwriting config file", "path", path)
			}

			cfg := *st.cfg
			answers := initAnswers{
				Dialect:     cfg.Dialect,
				DatabaseURL: cfg.DatabaseURL,
				Output:      cfg.Output,
				TTL:         cfg.Cache.TTL.String(),
				PersistDir:  cfg.Cache.PersistDir,
			}
			if !yes && isatty.IsTerminal(os.Stdin.Fd()) {
				if err := survey.Ask(initQuestions(answers), &answers); err != nil {
					return err
				}
			}

			cfg.Dialect = answers.Dialect
			cfg.DatabaseURL = answers.DatabaseURL
			cfg.Output = answers.Output
			cfg.Cache.PersistDir = answers.PersistDir
			if cfg.Cache.TTL, err = time.ParseDuration(answers.TTL); err != nil {
				return fmt.Errorf("cache ttl: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := config.Save(&cfg, path); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			ui.PrintSuccess("Wrote %s", path)
			ui.PrintList([]string{
				"Run `salesreport report list` to see the reports",
				"Run `salesreport report product-ranking` to run one",
			})
			return nil
		},
	}

	cmd.Flags().BoolVar(&global, "global", false, "Write to $HOME/.config/salesreport")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept the current values without prompting")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}
