// Command worker runs the background jobs: the invitation expiry sweep on INVITE_EXPIRY_SCHEDULE and,
// when KAFKA_BROKERS is set, the mail consumer for MAIL_KAFKA_TOPIC.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tenantdesk/backend/internal/app"
	"tenantdesk/backend/internal/config"
	"tenantdesk/backend/internal/mail"
	"tenantdesk/backend/internal/platform/logger"
	"tenantdesk/backend/internal/platform/metrics"
	telemetryotel "tenantdesk/backend/internal/telemetry/otel"
	"tenantdesk/backend/internal/worker"
)

func main() {
	if err := run(); err != nil {
		logger.L().Errorw("worker exited", "error", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.Init(config.LoggerConf(cfg)); err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := telemetryotel.NewProviders(ctx, telemetryotel.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: "tenantdesk-worker",
		Insecure:    cfg.OTLPInsecure,
	})
	if err != nil {
		return err
	}
	providers.SetGlobal()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = providers.Shutdown(sctx)
	}()

	reg := metrics.New()
	a, err := app.New(ctx, cfg, reg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	sch, err := worker.NewScheduler(ctx, cfg.InviteExpirySchedule, a.Invitations)
	if err != nil {
		return err
	}
	sch.Start()
	defer sch.Stop()
	logger.L().Infow("worker: invitation sweep scheduled", "schedule", cfg.InviteExpirySchedule)

	var wg sync.WaitGroup
	if brokers := cfg.KafkaBrokersList(); len(brokers) > 0 {
		sender, err := app.NewSender(cfg, reg)
		if err != nil {
			return err
		}
		reader := mail.NewKafkaReader(brokers, cfg.MailKafkaTopic, cfg.KafkaGroupID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { _ = reader.Close() }()
			logger.L().Infow("worker: consuming mail", "topic", cfg.MailKafkaTopic, "group", cfg.KafkaGroupID)
			if err := mail.Consume(ctx, reader, sender); err != nil {
				logger.L().Errorw("worker: mail consumer stopped", "error", err)
			}
		}()
	} else {
		logger.L().Infow("worker: KAFKA_BROKERS not set, mail is delivered by the server")
	}

	<-ctx.Done()
	logger.L().Infow("worker: shutting down")
	wg.Wait()
	return nil
}
