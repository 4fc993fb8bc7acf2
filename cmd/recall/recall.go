// Package recallcmder
package recallcmder

import (
	"github.com/spf13/cobra"

	servecmder "github.com/papercomputeco/recall/cmd/recall/serve"
	sweepcmder "github.com/papercomputeco/recall/cmd/recall/sweep"
)

const recallLongDesc string = `Recall is tiered contextual memory for your agents.

Run services using:
  recall serve    Run the memory engine with its admin API
  recall sweep    Run a one-off retention sweep`

const recallShortDesc string = "Recall - Agent Memory"

func NewRecallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recall",
		Short: recallShortDesc,
		Long:  recallLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Directory containing config.toml")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(sweepcmder.NewSweepCmd())

	return cmd
}
