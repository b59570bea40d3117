package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "tsvlink",
	Short: "tsvlink - WebAnno TSV entity-linking converter",
	Long: `Tsvlink converts WebAnno TSV 3.2 annotation exports into entity-linking
datasets. It parses the files INCEpTION produces, resolves every named-entity
span against a knowledge base through an entity-fishing service, and writes
the linked annotations as CSV, XML or JSON.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case quiet:
			logrus.SetLevel(logrus.ErrorLevel)
		case verbose:
			logrus.SetLevel(logrus.DebugLevel)
		default:
			logrus.SetLevel(logrus.WarnLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")

	// Add subcommands
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
