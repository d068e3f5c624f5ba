package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geodb-places/internal/app"
)

var errCycleFailed = errors.New("update cycle had failures")

func syncCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one update cycle and print its report as JSON",
		Long: `Run one update cycle. With HOST_PLACES_URL set, every built group is
posted to that places host once it answers. Exits non-zero when the cycle
aborted or any place group failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(cmd, gf)
			logger := newLogger(cfg, "sync", os.Stderr)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			if err := rt.waitForHost(ctx); err != nil {
				return err
			}
			rep := app.NewSyncer(app.Options{
				Config:     cfg,
				Registry:   rt.reg,
				Annotator:  rt.annotator,
				HTTPClient: rt.hc,
				Logger:     logger,
			}).RunCycle(ctx)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(rep); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if rep.Err != nil || rep.Failed() > 0 {
				return errCycleFailed
			}
			return nil
		},
	}
}
