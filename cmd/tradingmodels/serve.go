package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tradingmodels/internal/logger"
	"tradingmodels/internal/market"
	"tradingmodels/internal/metrics"
	"tradingmodels/internal/publish"
	"tradingmodels/internal/scheduler"
	"tradingmodels/internal/web"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve train, status and stream over HTTP with websocket push",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			return runServe(a)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port")
	return cmd
}

func runServe(a *app) error {
	ctx, cancel := signalContext()
	defer cancel()

	var pub publish.Publisher
	if len(a.cfg.Kafka.Brokers) > 0 {
		kp, err := publish.NewKafkaPublisher(publish.KafkaConfig{
			Brokers: a.cfg.Kafka.Brokers,
			Topic:   a.cfg.Kafka.Topic,
		})
		if err != nil {
			return fmt.Errorf("creating kafka publisher: %w", err)
		}
		defer kp.Close()
		pub = kp
	}

	opts := web.Options{
		Config:     a.cfg.DayTrading,
		StorageDir: a.cfg.DayTradingStorage(),
		Loader:     a.loader,
		Logger:     a.log,
		Metrics:    metrics.New(),
		Publisher:  pub,
		HTTP:       a.cfg.Server,
	}
	if a.runs != nil {
		opts.Recorder = a.runs
		opts.Runs = a.runs
	}
	srv, err := web.NewServer(opts)
	if err != nil {
		return err
	}

	session := market.DefaultSession()
	sched := scheduler.New(ctx, a.log)
	if a.cfg.Scheduler.StreamRefresh {
		err := sched.Every("stream_refresh", a.cfg.DayTrading.RefreshInterval, func(ctx context.Context) error {
			if a.cfg.Scheduler.MarketHoursOnly && !session.IsOpen(time.Now()) {
				return nil
			}
			if !srv.IsTrained() {
				return nil
			}
			return srv.RefreshStream(ctx)
		})
		if err != nil {
			return err
		}
	}
	if a.cfg.Scheduler.RetrainCron != "" {
		if err := sched.Add("retrain", a.cfg.Scheduler.RetrainCron, srv.Retrain); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	if a.cfg.Scheduler.StreamRefresh {
		go func() {
			if err := sched.RunNow("stream_refresh"); err != nil {
				a.log.Warn("initial stream refresh failed", logger.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	fmt.Printf("Serving day-trading model at http://localhost:%d/day_trading/status\n", a.cfg.Server.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down", logger.String("reason", ctx.Err().Error()))
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
