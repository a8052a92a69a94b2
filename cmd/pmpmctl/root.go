package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"pmpm/internal/backend"
	"pmpm/internal/cli"
	"pmpm/internal/config"
	applog "pmpm/internal/log"
	"pmpm/internal/services"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// app carries what the subcommands share. The dashboard is opened on first use.
type app struct {
	cfg     *config.Config
	logger  *applog.Logger
	output  string
	verbose bool

	backendType string
	dataDir     string
	dbPath      string

	backend   *backend.BackendResult
	dashboard *services.DashboardService
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "pmpmctl",
		Short:         "Query PMPM dashboards from the command line",
		Long:          `pmpmctl renders the dashboard panels, summaries and trends of the claims extracts without the HTTP server, and loads extracts into the SQLite store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	f := root.PersistentFlags()
	f.StringVarP(&a.output, "output", "o", outputText, "output format: text or json")
	f.BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level to stderr")
	f.StringVar(&a.backendType, "backend", "", "data backend: file, sqlite or sheets (overrides DATA_BACKEND)")
	f.StringVar(&a.dataDir, "data-dir", "", "extract directory (overrides DATA_DIR)")
	f.StringVar(&a.dbPath, "db", "", "SQLite database path (overrides SQLITE_DB_PATH)")

	root.AddCommand(
		newPeriodsCmd(a),
		newPanelsCmd(a),
		newSummaryCmd(a),
		newBreakdownCmd(a),
		newPanelCmd(a),
		newTrendCmd(a),
		newLoadCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	if a.output != outputText && a.output != outputJSON {
		return fmt.Errorf("invalid output format %q: must be text or json", a.output)
	}

	cli.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.backendType != "" {
		cfg.DataBackend = a.backendType
	}
	if a.dataDir != "" {
		cfg.DataDir = a.dataDir
	}
	if a.dbPath != "" {
		cfg.SQLiteDBPath = a.dbPath
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.logger = applog.New(applog.Config{
		Level:  level,
		Format: cfg.LogFormat,
		Output: cmd.ErrOrStderr(),
	})
	return nil
}

// service opens the configured backend and builds the dashboard over it.
func (a *app) service(ctx context.Context) (*services.DashboardService, error) {
	if a.dashboard != nil {
		return a.dashboard, nil
	}
	be, err := cli.OpenBackend(ctx, a.logger, a.cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", a.cfg.DataBackend, err)
	}
	panels, err := cli.LoadPanels(a.cfg)
	if err != nil {
		be.Close()
		return nil, err
	}
	a.backend = be
	a.dashboard = services.NewDashboardService(cli.NewSnapshotCache(be.Reader, a.cfg, nil), panels, a.logger)
	return a.dashboard, nil
}

func (a *app) close() error {
	if a.backend == nil {
		return nil
	}
	err := a.backend.Close()
	a.backend, a.dashboard = nil, nil
	return err
}

func execute(args []string, stdout, stderr io.Writer) int {
	a := &app{}
	defer a.close()

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
