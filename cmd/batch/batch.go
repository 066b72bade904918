package batch

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vocalab/vococode-go/internal/conf"
	"github.com/vocalab/vococode-go/internal/datastore"
)

// Command creates the batch command for grouping recordings into coding batches.
func Command(settings *conf.Settings) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "batch [assessment-id...]",
		Short: "Create a coding batch from recordings",
		Long: `Group the given recordings into a new coding batch. Every coding batch
gets the next free group number. Use --list to show the batch groups that
still have uncoded pool entries.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := datastore.New(settings)
			if err := store.Open(); err != nil {
				return err
			}
			defer store.Close()

			ctx := context.Background()

			if list {
				groups, err := store.BatchGroupsInProgress(ctx)
				if err != nil {
					return err
				}
				if len(groups) == 0 {
					fmt.Println("No batch groups in progress")
					return nil
				}
				for _, group := range groups {
					fmt.Println(group)
				}
				return nil
			}

			if len(args) == 0 {
				return fmt.Errorf("at least one assessment id is required")
			}

			group, err := store.CreateCodingBatch(ctx, args)
			if err != nil {
				return err
			}
			fmt.Printf("Created batch group %d with %d recordings\n", group, len(args))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, "List batch groups still in progress")

	return cmd
}
