package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vocalab/vococode-go/cmd/batch"
	"github.com/vocalab/vococode-go/cmd/pool"
	"github.com/vocalab/vococode-go/cmd/rates"
	"github.com/vocalab/vococode-go/cmd/report"
	"github.com/vocalab/vococode-go/cmd/sample"
	"github.com/vocalab/vococode-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vococode",
		Short: "VocoCode CLI",
		Long:  `Sampling, coding pool and consensus report management for daylong recording utterance coding.`,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, settings); err != nil {
		cobra.CheckErr(err)
	}

	subcommands := []*cobra.Command{
		sample.Command(settings),
		batch.Command(settings),
		pool.Command(settings),
		report.Command(settings),
		rates.Command(settings),
	}

	rootCmd.AddCommand(subcommands...)

	return rootCmd
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().IntVar(&settings.Sampling.CoderCount, "coders", viper.GetInt("sampling.codercount"), "Independent raters per utterance")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
