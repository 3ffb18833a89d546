package cli

import (
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appLog "calgrid/internal/log"
	"calgrid/internal/store"
	"calgrid/internal/ticker"
	"calgrid/internal/web"
)

func newServeCmd(app *App) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the event store and layouts over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if listen != "" {
				cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			loc := cfg.Location()
			st := store.New(loc)
			sources := icsSources(cfg, nil)
			n := loadEvents(ctx, cfg, st, sources)

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", loc.String(),
				"view", cfg.View,
				"display_mode", cfg.DisplayMode,
				"window", []float64{cfg.ShowTimeFrom, cfg.ShowTimeTo},
				"ics_count", len(sources),
				"events", n,
			)

			nowLine := ticker.NewNowLine(cfg.Grid())
			sched := ticker.New(loc)
			if err := sched.Add("now-line", cfg.NowRefresh, func(now time.Time) { nowLine.Update(now) }); err != nil {
				return writeErr(cmd, err)
			}
			if len(sources) > 0 {
				err := sched.Add("ics-refresh", cfg.ICSRefresh, func(time.Time) {
					loadEvents(ctx, cfg, st, sources)
				})
				if err != nil {
					return writeErr(cmd, err)
				}
			}
			nowLine.Update(time.Now().In(loc))

			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				sched.Start(ctx)
			}()

			srv := web.NewServer(cfg, st, nowLine)
			err = srv.ListenAndServe(ctx)
			stop()
			wg.Wait()
			if err != nil {
				return writeErr(cmd, err)
			}
			appLog.Info("calgrid exiting")
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config)")
	return cmd
}
