package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/salesreport/analytics"
	"github.com/satishbabariya/salesreport/cli/internal/ui"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

// renderedQuery is the machine-readable output of the sql command.
type renderedQuery struct {
	Report      string        `json:"report"`
	Dialect     string        `json:"dialect"`
	SQL         string        `json:"sql"`
	Args        []interface{} `json:"args"`
	Fingerprint string        `json:"fingerprint"`
	Tables      []string      `json:"tables"`
}

func newSQLCommand(st *state) *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "sql <name>",
		Short: "Print the SQL a report runs, without connecting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			dialect, err := sqlgen.ParseDialect(st.cfg.Dialect)
			if err != nil {
				return err
			}
			report, err := analytics.LookupReport(args[0])
			if err != nil {
				return err
			}
			q, err := report.Build(analytics.NewQueries(dialect), opts)
			if err != nil {
				return err
			}

			out := renderedQuery{
				Report:      report.Name,
				Dialect:     string(dialect),
				SQL:         q.SQL,
				Args:        q.Args,
				Fingerprint: q.Fingerprint.String(),
				Tables:      q.Tables,
			}
			if out.Args == nil {
				out.Args = []interface{}{}
			}

			if st.cfg.Output != string(ui.FormatTable) {
				enc := json.NewEncoder(ui.Out)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}
			ui.PrintCodeBlock(q.SQL, string(dialect))
			for i, arg := range q.Args {
				fmt.Fprintf(ui.Out, "  $%d = %#v\n", i+1, arg)
			}
			fmt.Fprintf(ui.Out, "fingerprint %s\n", q.Fingerprint)
			return nil
		},
	}
	flags.register(cmd.Flags())
	return cmd
}
