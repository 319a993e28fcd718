package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vthunder/nudge/internal/effectors"
	"github.com/vthunder/nudge/internal/logging"
	"github.com/vthunder/nudge/internal/scheduler"
	"github.com/vthunder/nudge/internal/senses"
	"github.com/vthunder/nudge/internal/server"
	"golang.org/x/sync/errgroup"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web chat, chat transports and the background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	g, ctx := errgroup.WithContext(ctx)

	// Transports first: a bad token fails before anything is running
	if a.cfg.DiscordToken != "" {
		routes := effectors.NewRoutes()
		sense, err := senses.NewDiscordSense(senses.DiscordConfig{
			Token:     a.cfg.DiscordToken,
			ChannelID: a.cfg.DiscordChannel,
		}, a.assistant, routes.Set)
		if err != nil {
			return err
		}
		if err := sense.Start(); err != nil {
			return err
		}
		effector := effectors.NewDiscordEffector(sense.Session(), a.outbox, routes)
		effector.SetOnError(func(user, errMsg string) {
			a.journal.Log(activityError(user, "discord delivery failed", errMsg))
		})
		effector.Start()

		g.Go(func() error {
			<-ctx.Done()
			effector.Stop()
			return sense.Stop()
		})
	}

	if a.cfg.TelegramToken != "" {
		bot, err := senses.NewTelegramBot(a.cfg.TelegramToken)
		if err != nil {
			return err
		}
		effector := effectors.NewTelegramEffector(bot, a.outbox)
		effector.Start()

		g.Go(func() error {
			defer effector.Stop()
			return senses.NewTelegramSense(bot, a.assistant).Run(ctx)
		})
	}

	var conflicts scheduler.Conflicts
	if a.watcher != nil {
		conflicts = a.watcher
	}
	sched := scheduler.New(a.reminders, conflicts, scheduler.Config{
		Period:  a.cfg.TickPeriod,
		Metrics: a.metrics,
		Journal: a.journal,
	})
	g.Go(func() error { return sched.Run(ctx) })

	web := server.New(a.assistant, server.Config{Addr: a.cfg.HTTPAddr})
	g.Go(func() error { return web.Run(ctx) })

	logging.Info("main", "nudge running (tick=%v, http=%s)", a.cfg.TickPeriod, a.cfg.HTTPAddr)
	err := g.Wait()
	logging.Info("main", "Shut down")
	return err
}
