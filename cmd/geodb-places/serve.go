package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammed-shakir/geodb-places/internal/app"
	"github.com/mohammed-shakir/geodb-places/internal/core/observability"
	"github.com/mohammed-shakir/geodb-places/internal/core/server"
	"github.com/mohammed-shakir/geodb-places/internal/events"
)

func serveCmd(gf *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the places API and keep place groups up to date",
		Long: `Serve the places API. Place groups are rebuilt at startup, on SIGHUP,
on POST /sync, every RELOAD_INTERVAL when set, and when a watched geoDB
collection change arrives on KAFKA_CHANGES_TOPIC.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig(cmd, gf)
			logger := newLogger(cfg, "server", os.Stdout)
			observability.ExposeBuildInfo(Version)
			logger.Info("starting geodb-places",
				"addr", cfg.Addr, "version", Version, "config", cfg.PlacesConfig, "base_url", cfg.BaseURL)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt, err := buildRuntime(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			syncer := app.NewSyncer(app.Options{
				Config:     cfg,
				Registry:   rt.reg,
				Annotator:  rt.annotator,
				HTTPClient: rt.hc,
				Logger:     logger,
			})

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case <-hup:
						syncer.Trigger("SIGHUP")
					}
				}
			}()

			if cfg.Events.Enabled && cfg.Events.ChangesTopic != "" {
				c := events.NewConsumer(events.ConsumerConfig{
					Brokers: cfg.Events.Brokers,
					Topic:   cfg.Events.ChangesTopic,
					GroupID: cfg.Events.GroupID,
				}, logger, syncer.Watches, syncer.Trigger)
				go func() {
					if err := c.Start(ctx); err != nil {
						logger.Error("collection change consumer stopped", "err", err)
					}
				}()
			}

			go func() {
				if err := syncer.Loop(ctx, cfg.ReloadInterval, rt.waitForHost); err != nil {
					logger.Error("update loop stopped", "err", err)
				}
			}()

			h := server.Handler(logger, rt.reg, syncer, syncer)
			if err := server.Run(ctx, cfg, logger, h); err != nil {
				return err
			}
			logger.Info("server stopped")
			return nil
		},
	}
}
