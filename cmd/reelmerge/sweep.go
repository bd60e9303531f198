package main

import (
	"time"

	"github.com/spf13/cobra"

	"reelmerge/internal/retention"
)

func newSweepCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired artifacts from the output directory once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			s := retention.New(cfg.Storage.OutputDir, cfg.Retention.Expiry, cfg.Retention.SweepInterval, ctx.logger("retention"))
			removed, err := s.Sweep(time.Now())
			if err != nil {
				return err
			}
			for _, p := range removed {
				cmd.Println(p)
			}
			cmd.Printf("removed %d expired artifact(s)\n", len(removed))
			return nil
		},
	}
}
