package commands

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/satishbabariya/salesreport/cli/internal/ui"
	"github.com/satishbabariya/salesreport/cli/internal/watch"
	"github.com/satishbabariya/salesreport/internal/debug"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

func newWatchCommand(st *state) *cobra.Command {
	var (
		flags       reportFlags
		file        string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch <name>",
		Short: "Re-run a report whenever the database file changes",
		Long: `Run a report, then watch the database file and run it again after every
change. Each change drops the cached results first. For SQLite the file is
taken from the database URL; other dialects need --file pointing at a file
that your loader touches after each import.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options()
			if err != nil {
				return err
			}
			if file == "" {
				if file = sqliteFile(st.cfg.Dialect, st.cfg.DatabaseURL); file == "" {
					return errors.New("--file is required unless the database is a SQLite file")
				}
			}
			if metricsAddr == "" {
				metricsAddr = st.cfg.MetricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, st, func(ctx context.Context, app *App) error {
				run := func(ctx context.Context) error {
					res, err := app.Service.Run(ctx, args[0], opts)
					if err != nil {
						ui.PrintError("%v", err)
						return err
					}
					return printResult(st, res)
				}
				if err := run(ctx); err != nil {
					return err
				}

				w, err := watch.NewWatcher(file, watch.DefaultDebounce, debug.Logger(), func(ctx context.Context) error {
					app.Cache.InvalidateAll()
					ui.PrintInfo("%s changed, refreshing %s", file, args[0])
					return run(ctx)
				})
				if err != nil {
					return err
				}

				ui.PrintInfo("Watching %s (Ctrl+C to stop)", file)
				g, ctx := errgroup.WithContext(ctx)
				g.Go(func() error { return w.Run(ctx) })
				if metricsAddr != "" {
					ui.PrintInfo("Serving metrics on http://%s/metrics", metricsAddr)
					g.Go(func() error { return app.Metrics.Serve(ctx, metricsAddr) })
				}
				return g.Wait()
			})
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&file, "file", "", "File whose changes trigger a refresh")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

// sqliteFile extracts the database file from a SQLite DSN. It returns ""
// for other dialects and in-memory databases.
func sqliteFile(dialect, dsn string) string {
	if d, err := sqlgen.ParseDialect(dialect); err != nil || d != sqlgen.SQLite {
		return ""
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if strings.Contains(path[i:], "mode=memory") {
			return ""
		}
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}
