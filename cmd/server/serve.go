package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/workfacts/api"
	"github.com/warp/workfacts/config"
	extract "github.com/warp/workfacts/extract/openai"
	"github.com/warp/workfacts/notify"
	"github.com/warp/workfacts/timeoff"
	"go.uber.org/zap"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Runs the HTTP API: the extraction callback, front-end reads and the
leave approval workflow. Pending leave requests live in memory and are
lost on restart.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd, flags, func(d *deps) error {
				return serve(cmd.Context(), d)
			})
		},
	}
}

// serve blocks until ctx is cancelled, then shuts down gracefully:
// stop accepting connections, wait for active requests, flush queued
// notifications.
func serve(ctx context.Context, d *deps) error {
	sinks, err := buildSinks(d.cfg.Notify, d.log)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(d.log.Named("notify"), d.cfg.Notify.QueueSize, sinks...)
	dispatcher.Start()
	defer dispatcher.Stop()

	var notifier timeoff.Notifier
	if len(sinks) > 0 {
		notifier = dispatcher
	}
	workflow := timeoff.NewWorkflow(d.facts, notifier, d.log.Named("leave"))

	var extractor api.Extractor
	if d.cfg.LLM.APIKey != "" {
		c, err := extract.NewClient(d.cfg.LLM)
		if err != nil {
			return fmt.Errorf("creating extractor: %w", err)
		}
		extractor = c
	} else {
		d.log.Info("OPENAI_API_KEY not set, /api/llm/extract disabled")
	}

	handler := api.NewHandler(d.facts, workflow, extractor, d.log.Named("api"))
	router := api.NewRouter(handler, api.Options{
		CORSOrigins: d.cfg.Server.CORSOrigins,
		Logger:      d.log.Named("http"),
	})

	server := &http.Server{
		Addr:         d.cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		d.log.Info("server starting", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	d.log.Info("shutting down server", zap.Int("pending_requests_dropped", workflow.PendingCount()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), d.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	d.log.Info("server stopped")
	return nil
}

func buildSinks(cfg config.NotifyConfig, log *zap.Logger) ([]notify.Sink, error) {
	var sinks []notify.Sink
	if cfg.WebhookURL != "" {
		sinks = append(sinks, notify.NewWebhook(cfg.WebhookURL, nil))
	}
	if cfg.TelegramToken != "" {
		tg, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, "")
		if err != nil {
			return nil, err
		}
		log.Info("telegram notifications enabled", zap.String("bot", tg.Bot.Self.UserName), zap.Int64("chat_id", cfg.TelegramChatID))
		sinks = append(sinks, tg)
	}
	return sinks, nil
}
