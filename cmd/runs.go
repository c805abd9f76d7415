package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reputato/internal/model"
	"github.com/sells-group/reputato/internal/store"
)

var (
	runsStatus string
	runsLimit  int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent analysis runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(runsStatus),
			Limit:  runsLimit,
		})
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs found")
			return nil
		}

		for _, r := range runs {
			rating := "-"
			if r.Verdict != nil {
				rating = fmt.Sprintf("%d/5", r.Verdict.Rating)
			}
			fmt.Printf("%s  %-13s %-5s %-30s %s\n",
				r.CreatedAt.Format("2006-01-02 15:04:05"),
				r.Status, rating, r.Company, r.Error,
			)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (queued|fetching|synthesizing|complete|failed)")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}
