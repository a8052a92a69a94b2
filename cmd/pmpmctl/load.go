package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"pmpm/internal/amqp"
	"pmpm/internal/cli"
	"pmpm/internal/storage"
	"pmpm/internal/worker"
)

func newLoadCmd(a *app) *cobra.Command {
	var publish bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Copy every extract into the SQLite store once",
		Long:  `load reads every extract of the file directory, or of the workbook when the sheets backend is selected, and stores a new snapshot of each in the SQLite database. With --publish each stored snapshot is announced on the refresh exchange.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			source, err := cli.OpenLoadSource(ctx, a.cfg)
			if err != nil {
				return err
			}
			repo, err := storage.NewSQLiteRepository(a.cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer repo.Close()

			var publisher worker.Publisher
			if publish {
				if a.cfg.AMQPURL == "" {
					return fmt.Errorf("--publish needs AMQP_URL")
				}
				client, err := amqp.NewClient(a.cfg.AMQPURL, a.cfg.AMQPExchange, "")
				if err != nil {
					return err
				}
				defer client.Close()
				publisher = client
			}

			report, err := worker.NewLoader(source, repo, publisher, a.cfg.LoadConcurrency, a.logger).LoadOnce(ctx)
			if err != nil {
				return err
			}
			if a.output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}

			t := newTable(cmd.OutOrStdout(), "DATASET", "VERSION", "ROWS")
			for _, res := range report.Loaded {
				t.row(res.Dataset, strconv.FormatInt(res.Version, 10), strconv.Itoa(res.Rows))
			}
			return t.flush()
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "announce stored snapshots on the refresh exchange")
	return cmd
}
