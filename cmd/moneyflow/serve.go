package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"moneyflow/internal/amqp"
	"moneyflow/internal/cli"
	"moneyflow/internal/config"
	"moneyflow/internal/dashboard"
	apphttp "moneyflow/internal/http"
	"moneyflow/internal/log"
	"moneyflow/internal/metrics"
	"moneyflow/internal/middleware/ratelimit"
	"moneyflow/internal/seed"
)

const amqpConnectTimeout = 2 * time.Minute

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server",
	Long: `Serve the dashboard page, its JSON API and the alert websocket.

When AMQP_URL is set, limit alerts are also published to RabbitMQ for
cmd/moneyflow-notifier to pick up.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return err
	}
	logger := cli.SetupLogger(cfg)

	data, err := seed.FromConfig(cfg.SeedFile)
	if err != nil {
		return fmt.Errorf("load seed data: %w", err)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	m := metrics.New()
	hub := apphttp.NewHub(logger, data.Currency, m)
	notifiers := dashboard.Notifiers{
		hub,
		dashboard.LogNotifier{Logger: logger.WithComponent(log.ComponentNotifier), Currency: data.Currency},
	}

	var (
		client    *amqp.Client
		publisher *amqp.Publisher
	)
	if cfg.AMQPEnabled() {
		connectCtx, cancel := context.WithTimeout(ctx, amqpConnectTimeout)
		client, err = amqp.Connect(connectCtx, logger.WithComponent(log.ComponentAMQP), cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		cancel()
		if err != nil {
			return fmt.Errorf("connect AMQP: %w", err)
		}
		defer client.Close()
		publisher = amqp.NewPublisher(client.Channel(), client.Exchange(), client.Queue(),
			amqp.DefaultBreakerSettings(), logger, m)
		notifiers = append(notifiers, publisher)
		logger.Info("Publishing limit alerts", "exchange", client.Exchange(), "queue", client.Queue())
	} else {
		logger.Info("AMQP disabled, alerts stay in process")
	}

	state, err := dashboard.New(data, dashboard.WithNotifier(notifiers))
	if err != nil {
		return err
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:    ":" + cfg.Port,
		State:   state,
		Logger:  logger,
		Hub:     hub,
		Metrics: m,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		TrustedProxies: cfg.TrustedProxies,
		CacheSize:      cfg.CacheSize,
		CacheTTL:       cfg.CacheTTL,
		Ready:          publisherReady(publisher),
	})
	if err != nil {
		return err
	}

	logConfig(logger, cfg, data)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, cfg.ShutdownTimeout)
	})
	if client != nil {
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
	}

	if err := g.Wait(); err != nil {
		return err
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
	return nil
}

// publisherReady reports not ready while the publish breaker is open.
func publisherReady(p *amqp.Publisher) func(context.Context) error {
	if p == nil {
		return nil
	}
	return func(context.Context) error {
		if p.State() == gobreaker.StateOpen {
			return errors.New("alert publisher circuit open")
		}
		return nil
	}
}

func logConfig(logger *log.Logger, cfg *config.Config, data seed.Data) {
	logger.Info("Starting moneyflow",
		log.FieldOperation, log.OpStartup,
		"port", cfg.Port,
		"seed_file", cfg.SeedFile,
		"accounts", len(data.Accounts),
		"transactions", len(data.Transactions),
		"limits", len(data.Limits),
		"amqp", cfg.AMQPEnabled(),
		"rate_limit_rps", cfg.RateLimitRPS,
		"rate_limit_burst", cfg.RateLimitBurst)
}
