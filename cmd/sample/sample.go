package sample

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vocalab/vococode-go/internal/conf"
	"github.com/vocalab/vococode-go/internal/datastore"
	"github.com/vocalab/vococode-go/internal/ingest"
	"github.com/vocalab/vococode-go/internal/selection"
)

// Command creates the sample command for selecting a recording's coding segments.
func Command(settings *conf.Settings) *cobra.Command {
	var eventsDir string

	cmd := &cobra.Command{
		Use:   "sample [assessment-id]",
		Short: "Select coding segments for a recording",
		Long: `Select the coding segments of a recording: the most active segments by
child vocalization count plus a random draw from the remainder, skipping
excluded periods. With --events the detector's vocal events are then
ingested as utterances for the selected segments.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()

			recordingID, err := store.RecordingIDForAssessment(ctx, args[0])
			if err != nil {
				return err
			}

			selected, err := selection.New(store).Select(ctx, recordingID,
				settings.Sampling.HighVolubilityCount, settings.Sampling.RandomCount)
			if err != nil {
				return err
			}
			if !selected {
				fmt.Printf("Recording %s has too few eligible segments, nothing selected\n", args[0])
				return nil
			}

			if eventsDir != "" {
				count, err := ingest.New(store, ingest.NewFileProvider(eventsDir)).IngestUtterances(ctx, recordingID)
				if err != nil {
					return err
				}
				fmt.Printf("Selected segments for %s, %d utterances ingested\n", args[0], count)
				return nil
			}

			fmt.Printf("Selected segments for %s\n", args[0])
			return nil
		},
	}

	setupFlags(cmd, settings)
	cmd.Flags().StringVarP(&eventsDir, "events", "e", "", "Directory of detector event files to ingest utterances from")

	return cmd
}

// setupFlags configures flags specific to the sample command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) {
	cmd.Flags().IntVar(&settings.Sampling.HighVolubilityCount, "high", settings.Sampling.HighVolubilityCount, "Segments taken by descending child vocalization count")
	cmd.Flags().IntVar(&settings.Sampling.RandomCount, "random", settings.Sampling.RandomCount, "Segments drawn at random from the remainder")
}
