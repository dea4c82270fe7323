package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pantry-predictor",
	Short: "Consumption Cycle Predictor - household stock-level forecasting engine",
	Long: `Consumption Cycle Predictor ingests stock-level events per household/product
and maintains an online estimate of days-left-until-empty, confidence, and
stock state from the resulting event stream.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global flags can be added here
	// rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file")
}
