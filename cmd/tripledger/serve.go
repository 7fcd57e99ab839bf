package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/susu3304/tripledger/internal/api"
	"github.com/susu3304/tripledger/internal/bot"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when DISCORD_TOKEN is set, the Discord bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, closeStore, err := openStore(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer closeStore()

		svc, err := newService(cfg, store, logger)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(ctx)

		if cfg.DiscordToken != "" {
			discordBot, err := bot.New(cfg.DiscordToken, svc, cfg.ReminderIdle, logger)
			if err != nil {
				return err
			}
			if err := discordBot.Start(); err != nil {
				return err
			}
			g.Go(func() error {
				<-ctx.Done()
				return discordBot.Stop()
			})
		} else {
			logger.Info("DISCORD_TOKEN not set, bot disabled")
		}

		apiServer := api.New(cfg, svc, store, logger)
		g.Go(func() error {
			return apiServer.Start(ctx)
		})

		if err := g.Wait(); err != nil {
			return err
		}
		logger.Info("Shutting down...")
		return nil
	},
}
