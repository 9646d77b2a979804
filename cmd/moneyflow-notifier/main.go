// Command moneyflow-notifier consumes limit alerts published by the
// dashboard and reports each one once.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneyflow/internal/amqp"
	"moneyflow/internal/cache"
	"moneyflow/internal/cli"
	"moneyflow/internal/log"
	"moneyflow/internal/metrics"
)

const (
	seenAlerts   = 1024
	seenTTL      = 24 * time.Hour
	connectLimit = 2 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "moneyflow-notifier:", err)
		os.Exit(1)
	}
}

func run() error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	if !cfg.AMQPEnabled() {
		return errors.New("AMQP_URL is required")
	}
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentNotifier)
	logger.Info("Starting moneyflow-notifier", log.FieldOperation, log.OpStartup, "queue", cfg.AMQPQueue)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	connectCtx, cancel := context.WithTimeout(ctx, connectLimit)
	client, err := amqp.Connect(connectCtx, logger, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	cancel()
	if err != nil {
		return fmt.Errorf("connect AMQP: %w", err)
	}
	defer client.Close()

	m := metrics.New()
	seen := cache.NewLRUCache[struct{}](seenAlerts, seenTTL)
	m.RegisterCache("seen_alerts", seen.Stats)
	caches := cache.NewManager(logger)
	caches.Register(seen)

	handler := newAlertHandler(logger, seen)
	consumer := amqp.NewConsumer(client.Channel(), client.Queue(), logger, m)

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsSrv := &http.Server{
		Addr:              cfg.NotifierMetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := consumer.Consume(gctx, handler.Handle)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		caches.Run(gctx, time.Hour)
		return nil
	})
	g.Go(func() error {
		logger.Info("Serving metrics", "addr", metricsSrv.Addr)
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})
	closed := client.Closed()
	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case amqpErr, ok := <-closed:
			if !ok || amqpErr == nil {
				return nil
			}
			return fmt.Errorf("AMQP connection lost: %w", amqpErr)
		}
	})

	if err := g.Wait(); err != nil {
		return err
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Notifier stopped gracefully", log.FieldOperation, log.OpShutdown)
	return nil
}
