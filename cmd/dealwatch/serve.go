package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MikeSquared-Agency/dealwatch/internal/alerts"
	"github.com/MikeSquared-Agency/dealwatch/internal/api"
	"github.com/MikeSquared-Agency/dealwatch/internal/config"
	"github.com/MikeSquared-Agency/dealwatch/internal/hermes"
	"github.com/MikeSquared-Agency/dealwatch/internal/processor"
	"github.com/MikeSquared-Agency/dealwatch/internal/slack"
)

func runServe(ctx context.Context, cfg config.Config) error {
	slog.Info("dealwatch starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := newCore(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.close()

	// NATS/Hermes
	hermesClient, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer hermesClient.Close()
	slog.Info("NATS connected", "url", cfg.NatsURL)

	// proc is assigned below; the Slack alert channel reports posted
	// messages to it so reactions can acknowledge alerts.
	var proc *processor.Processor
	channels := []alerts.Channel{hermes.NewAlertChannel(hermesClient)}

	// Slack (optional: without it flagged changes wait for the HTTP API)
	var reviewer processor.Confirmer
	if cfg.SlackBotToken != "" && cfg.SlackReviewChannel != "" {
		reviewer = slack.NewPoster(cfg.SlackBotToken, cfg.SlackReviewChannel, slog.Default())
		slog.Info("slack review poster ready", "channel", cfg.SlackReviewChannel)
	} else {
		slog.Warn("slack not configured, running without review loop")
	}
	if cfg.SlackBotToken != "" && cfg.SlackAlertsChannel != "" {
		alertPoster := slack.NewPoster(cfg.SlackBotToken, cfg.SlackAlertsChannel, slog.Default())
		channels = append(channels, slack.NewAlertChannel(alertPoster, func(alertID, ts string) {
			proc.TrackAlertMessage(alertID, ts)
		}))
	}

	gen := alerts.NewGenerator(c.alertStore, alerts.Config{
		Window:     cfg.AlertWindow,
		Expiration: cfg.AlertExpiration,
		Channels:   cfg.AlertChannels,
	}, slog.Default(), channels...)
	gen.SetMetrics(c.metrics)

	// Processor: the main pipeline
	proc = processor.New(processor.Deps{
		Rules:   c.engine,
		Routing: c.routing,
		CRM:     c.records,
		Audit:   c.auditLog,
		Stall:   c.analyzer,
		Alerts:  gen,
		Bus:     hermesClient,
		Slack:   reviewer,
		Metrics: c.metrics,
		Logger:  slog.Default(),
	})

	subscriptions := map[string]func(string, []byte){
		hermes.SubjectCallCompleted:    proc.HandleCallEvent,
		hermes.SubjectSlackReaction:    proc.HandleReaction,
		hermes.SubjectSlackInteraction: proc.HandleInteraction,
	}
	for subject, handler := range subscriptions {
		if err := hermesClient.Subscribe(subject, handler); err != nil {
			return fmt.Errorf("subscribe to %s: %w", subject, err)
		}
	}

	go proc.RunJanitor(ctx, cfg.JanitorInterval, cfg.AuditRetention)

	// HTTP API
	srv := api.NewServer(cfg.Port, cfg.APIToken, api.Deps{
		Processor: proc,
		Audit:     c.auditLog,
		Stall:     c.analyzer,
		Alerts:    gen,
		Deals:     c.deals,
		Metrics:   c.metrics,
		Retention: cfg.AuditRetention,
		Logger:    slog.Default(),
	})
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	// Announce registration
	if err := hermesClient.Publish(hermes.SubjectRegistered, map[string]any{
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"port":        cfg.Port,
		"auto_update": cfg.AutoUpdateEnabled,
		"flagging":    cfg.FlaggingEnabled,
	}); err != nil {
		slog.Warn("failed to publish registration", "error", err)
	}

	slog.Info("dealwatch ready", "port", cfg.Port, "alert_channels", cfg.AlertChannels)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	slog.Info("dealwatch stopped")
	return nil
}
