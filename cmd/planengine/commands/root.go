// Package commands defines the planengine CLI.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "planengine",
	Short: "Watershed plan extraction engine",
	Long: `Planengine splits watershed plan PDFs into pages, recovers their layout,
extracts tables and images, runs model-backed entity extraction and
reconciles the results into a consolidated plan database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Missing .env files are fine; variables may come from the shell.
		_ = godotenv.Load()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
