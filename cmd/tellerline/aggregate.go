package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tellerline/tellerline/internal/metrics"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Compute the daily metrics rollup for a date",
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("config not loaded")
		}

		date, _ := cmd.Flags().GetString("date")
		if date == "" {
			date = time.Now().UTC().AddDate(0, 0, -1).Format("2006-01-02")
		}
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
		}

		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		rec, err := metrics.NewAggregator(st).Aggregate(cmd.Context(), date)
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d sessions ended, %d escalations, avg duration %.1fs\n",
			rec.Date, rec.SessionsEnded, rec.Escalations, rec.AvgDurationSeconds)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(aggregateCmd)
	aggregateCmd.Flags().String("date", "", "date to aggregate (YYYY-MM-DD, default yesterday UTC)")
}
