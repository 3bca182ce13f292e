package commands

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/satishbabariya/salesreport/analytics"
	"github.com/satishbabariya/salesreport/cli/internal/ui"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

const dateFlagLayout = "2006-01-02"

// reportFlags collects report parameters from the command line.
type reportFlags struct {
	from     string
	to       string
	category int
	minUnits int
	top      int
	limit    int
	segments int
	grain    string
	groupBy  string
}

func (f *reportFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.from, "from", "", "First sales date to include (YYYY-MM-DD)")
	flags.StringVar(&f.to, "to", "", "First sales date to exclude (YYYY-MM-DD)")
	flags.IntVar(&f.category, "category", 0, "Only include products of this category id")
	flags.IntVar(&f.minUnits, "min-units", 0, "Drop groups that sold fewer units")
	flags.IntVar(&f.top, "top", 0, "product-ranking: keep products ranked this high or better")
	flags.IntVar(&f.limit, "limit", 0, "employee-performance, top-products: maximum rows")
	flags.IntVar(&f.segments, "segments", 0, "customer-segmentation: number of segments (default 4)")
	flags.StringVar(&f.grain, "grain", "", "sales-trend: day, month or year (default month)")
	flags.StringVar(&f.groupBy, "group-by", "", "sales-trend: category, product, employee or customer (default category)")
}

func (f *reportFlags) options() (analytics.Options, error) {
	var opts analytics.Options
	var err error
	if opts.Period.From, err = parseDate("from", f.from); err != nil {
		return opts, err
	}
	if opts.Period.To, err = parseDate("to", f.to); err != nil {
		return opts, err
	}
	opts.CategoryID = f.category
	opts.MinUnits = f.minUnits
	opts.TopN = f.top
	opts.Limit = f.limit
	opts.Segments = f.segments
	if f.grain != "" {
		if opts.Grain, err = sqlgen.ParseGrain(f.grain); err != nil {
			return opts, err
		}
	}
	opts.GroupBy = analytics.TrendGrouping(strings.ToLower(f.groupBy))
	return opts, nil
}

func parseDate(flag, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateFlagLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: expected YYYY-MM-DD, got %q", flag, value)
	}
	return t, nil
}

func reportNames() []string {
	var names []string
	for _, r := range analytics.Reports() {
		names = append(names, r.Name)
	}
	return names
}

func newReportCommand(st *state) *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "report <name>",
		Short: "Run a report",
		Long: `Run a named report and print its rows.

Reports:
  ` + strings.Join(reportNames(), "\n  "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: reportNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), st, func(ctx context.Context, app *App) error {
				stop := startSpinner(st, fmt.Sprintf("Running %s", args[0]))
				res, err := app.Service.Run(ctx, args[0], opts)
				stop(err)
				if err != nil {
					return err
				}
				return printResult(st, res)
			})
		},
	}
	flags.register(cmd.Flags())

	cmd.AddCommand(newReportListCommand(), newReportAllCommand(st))
	return cmd
}

func newReportListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sb strings.Builder
			sb.WriteString("| report | description |\n| --- | --- |\n")
			for _, r := range analytics.Reports() {
				fmt.Fprintf(&sb, "| %s | %s |\n", r.Name, r.Description)
			}
			return ui.PrintMarkdown(sb.String())
		},
	}
}

func newReportAllCommand(st *state) *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "all [name...]",
		Short: "Run several reports concurrently",
		Long:  "Run the named reports, or every report when none is named, on the worker pool.",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			names := args
			if len(names) == 0 {
				names = reportNames()
			}
			return withApp(cmd.Context(), st, func(ctx context.Context, app *App) error {
				if st.cfg.Output == string(ui.FormatTable) {
					ui.PrintHeader("Sales reports", fmt.Sprintf("%d reports on %s", len(names), app.Dialect))
				}
				stop := startSpinner(st, fmt.Sprintf("Running %d reports", len(names)))
				results, runErr := app.Service.RunAll(ctx, names, opts)
				stop(runErr)

				done := make([]string, 0, len(results))
				for name := range results {
					done = append(done, name)
				}
				sort.Strings(done)
				for _, name := range done {
					if err := printResult(st, results[name]); err != nil {
						return err
					}
				}
				for _, name := range names {
					if _, ok := results[name]; !ok {
						ui.PrintWarning("%s did not complete", name)
					}
				}
				return runErr
			})
		},
	}
	flags.register(cmd.Flags())
	return cmd
}

// startSpinner shows a spinner on a terminal while table output is selected.
// The returned function stops it.
func startSpinner(st *state, message string) func(error) {
	if st.cfg.Output != string(ui.FormatTable) || !isatty.IsTerminal(os.Stderr.Fd()) {
		return func(error) {}
	}
	spinner, err := ui.PrintSpinner(message)
	if err != nil {
		return func(error) {}
	}
	return func(runErr error) {
		if runErr != nil {
			spinner.Fail(message)
			return
		}
		spinner.Success(message)
	}
}

// withApp builds the application, runs fn and releases it.
func withApp(ctx context.Context, st *state, fn func(context.Context, *App) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := NewApp(ctx, st.cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

func printResult(st *state, res *analytics.Result) error {
	format, err := ui.ParseFormat(st.cfg.Output)
	if err != nil {
		return err
	}
	if format == ui.FormatTable {
		ui.PrintSection(fmt.Sprintf("%s  %s", res.Report.Name, ui.SecondaryStyle.Render(res.Report.Description)))
	}
	if err := ui.Render(ui.Out, format, res.Report.Columns, res.Rows); err != nil {
		return err
	}
	if format == ui.FormatTable {
		fmt.Fprintf(ui.Out, "%d rows, %s in %s (request %s)\n\n",
			len(res.Rows), ui.Status(res.Cached, nil), res.Duration.Round(time.Microsecond), res.RequestID)
	}
	return nil
}
