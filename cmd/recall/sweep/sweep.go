// Package sweepcmder provides the sweep command that runs a one-off
// retention sweep and prints the report.
package sweepcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papercomputeco/recall/pkg/config"
	"github.com/papercomputeco/recall/pkg/logger"
	"github.com/papercomputeco/recall/pkg/system"
)

type SweepCommander struct {
	configDir string
	debug     bool
	logger    *zap.Logger
}

const sweepShortDesc string = "Run a one-off retention sweep"

func NewSweepCmd() *cobra.Command {
	cmder := &SweepCommander{}

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: sweepShortDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, err = cmd.Flags().GetString("config")
			if err != nil {
				return fmt.Errorf("could not get config flag: %v", err)
			}
			return cmder.run()
		},
	}

	return cmd
}

func (c *SweepCommander) run() error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	v, err := config.InitViper(c.configDir)
	if err != nil {
		return err
	}
	cfg, err := config.Unmarshal(v)
	if err != nil {
		return err
	}

	sys, err := system.New(cfg, c.logger)
	if err != nil {
		return fmt.Errorf("assembling memory system: %w", err)
	}
	defer sys.Close()

	report, err := sys.Retention.Sweep(context.Background())
	if err != nil {
		return fmt.Errorf("running sweep: %w", err)
	}

	fmt.Printf("examined %d fragments, pruned %d in %s\n",
		report.Examined, report.Pruned, report.Duration)

	return nil
}
