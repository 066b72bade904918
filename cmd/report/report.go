package report

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vocalab/vococode-go/internal/conf"
	"github.com/vocalab/vococode-go/internal/consensus"
	"github.com/vocalab/vococode-go/internal/datastore"
	"github.com/vocalab/vococode-go/internal/export"
	"github.com/vocalab/vococode-go/internal/logging"
	"github.com/vocalab/vococode-go/internal/observability/metrics"
)

// Command creates the report command for generating the consensus report.
func Command(settings *conf.Settings) *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate the consensus report",
		Long: `Aggregate the independent codes of every fully coded utterance into
consensus report rows and write them as CSV. Recordings that still have
uncoded pool entries are left out until their coding completes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()

			utteranceIDs, err := store.ReportUtteranceIDs(ctx)
			if err != nil {
				return err
			}
			if len(utteranceIDs) == 0 {
				fmt.Println("No fully coded utterances to report")
				return nil
			}

			registry := prometheus.NewRegistry()
			aggregator := consensus.New(store, settings.Sampling.CoderCount, settings.Consensus.ReferenceCategory)
			if consensusMetrics, err := metrics.NewConsensusMetrics(registry); err == nil {
				aggregator.SetMetrics(consensusMetrics)
			}

			records, err := aggregator.Aggregate(ctx, utteranceIDs)
			if err != nil {
				return err
			}

			if settings.Debug {
				if summary, err := metrics.Summary(registry); err == nil {
					logging.ForService("consensus").Debug("Aggregation metrics", "metrics", summary)
				}
			}

			runID, err := export.WriteReportCsv(records, outputFile)
			if err != nil {
				return err
			}

			fmt.Printf("Report run %s: %d rows\n", runID, len(records))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Path of the CSV report file, stdout when empty")

	return cmd
}
