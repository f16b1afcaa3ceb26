package commands

import (
	"fmt"
	"time"

	"github.com/dkeye/Classroom/internal/config"
	"github.com/dkeye/Classroom/internal/conversion"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newSweepCmd() *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove slide directories older than the retention age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if maxAge <= 0 {
				maxAge = cfg.Storage.MaxAge
			}
			sw := conversion.Sweeper{Storage: newStorage(afero.NewOsFs(), cfg), MaxAge: maxAge}
			n, err := sw.SweepOnce(time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d job directories\n", n)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "retention age (default storage.max_age)")
	return cmd
}
