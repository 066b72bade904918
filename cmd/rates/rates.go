package rates

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vocalab/vococode-go/internal/conf"
	"github.com/vocalab/vococode-go/internal/datastore"
	"github.com/vocalab/vococode-go/internal/stats"
)

// Command creates the rates command for printing coder productivity.
func Command(settings *conf.Settings) *cobra.Command {
	var since, until string

	cmd := &cobra.Command{
		Use:   "rates",
		Short: "Show coder productivity statistics",
		Long: `Print per-coder coding session statistics: submissions, sessions,
active time and codings per hour. Sessions split on idle gaps longer
than ten minutes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := parseDate(since)
			if err != nil {
				return err
			}
			end, err := parseDate(until)
			if err != nil {
				return err
			}

			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			coderRates, err := stats.New(store).CoderRates(context.Background(), start, end)
			if err != nil {
				return err
			}
			if len(coderRates) == 0 {
				fmt.Println("No coding submissions in the requested window")
				return nil
			}

			fmt.Printf("%-20s %8s %8s %12s %12s\n", "Coder", "Codings", "Sessions", "Active", "Per hour")
			for _, rate := range coderRates {
				fmt.Printf("%-20s %8d %8d %12s %12.1f\n",
					rate.CoderName, rate.CodingCount, rate.Sessions,
					rate.ActiveTime.Round(time.Minute), rate.CodingsPerHour)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Only count submissions on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "Only count submissions before this date (YYYY-MM-DD)")

	return cmd
}

func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return &t, nil
}
