package pool

import (
	"context"
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vocalab/vococode-go/internal/conf"
	"github.com/vocalab/vococode-go/internal/datastore"
	"github.com/vocalab/vococode-go/internal/logging"
	"github.com/vocalab/vococode-go/internal/observability/metrics"
	"github.com/vocalab/vococode-go/internal/samplepool"
)

// Command creates the pool command for expanding a batch group into the
// sample pool.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pool [batch-group]",
		Short: "Expand a batch group into the sample pool",
		Long: `Create the sample pool entries for a batch group: one entry per
utterance per rater, shuffled so raters do not all work through the
utterances in the same order.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			batchGroup, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid batch group %q: %w", args[0], err)
			}

			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			registry := prometheus.NewRegistry()
			allocator := samplepool.New(store)
			if poolMetrics, err := metrics.NewPoolMetrics(registry); err == nil {
				allocator.SetMetrics(poolMetrics)
			}

			if err := allocator.Expand(context.Background(), batchGroup, settings.Sampling.CoderCount); err != nil {
				return err
			}

			if settings.Debug {
				if summary, err := metrics.Summary(registry); err == nil {
					logging.ForService("samplepool").Debug("Pool expansion metrics", "metrics", summary)
				}
			}

			fmt.Printf("Expanded batch group %d for %d coders\n", batchGroup, settings.Sampling.CoderCount)
			return nil
		},
	}

	return cmd
}
