package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quorumhq/quorum/internal/config"
	"github.com/quorumhq/quorum/internal/notify"
	"github.com/quorumhq/quorum/internal/notify/discord"
	"github.com/quorumhq/quorum/internal/notify/slack"
	"github.com/quorumhq/quorum/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Quorum API server",
		Long:  "Serves the annotation, consensus, validation, statusfix, and flag operations over HTTP. Runs scheduled status fixes when a cron schedule is configured.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if port == 0 {
				port = cfg.Server.Port
			}

			notifier := buildNotifier(cfg)
			defer notifier.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.Start(ctx, server.StartOpts{
				DB:                gormDB,
				Port:              port,
				StatusFixSchedule: cfg.Server.StatusFixSchedule,
				Notifier:          notifier,
				Out:               cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Quorum config file")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config)")
	return cmd
}

// buildNotifier assembles chat adapters from configuration. Misconfigured
// adapters are logged and skipped; notifications are best-effort.
func buildNotifier(cfg *config.Config) *notify.Notifier {
	var adapters []notify.Adapter
	if cfg.Notify.Slack.Token != "" {
		adapters = append(adapters, slack.New(cfg.Notify.Slack.Token, cfg.Notify.Slack.Channel))
	}
	if cfg.Notify.Discord.Token != "" {
		a, err := discord.New(cfg.Notify.Discord.Token, cfg.Notify.Discord.ChannelID)
		if err != nil {
			log.Printf("serve: discord adapter: %v", err)
		} else {
			adapters = append(adapters, a)
		}
	}
	return notify.New(adapters...)
}
