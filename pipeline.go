package main

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"

	"b2bmarket/internal/config"
	"b2bmarket/internal/database"
	"b2bmarket/internal/events"
	"b2bmarket/internal/notify"
	"b2bmarket/internal/outbox"
)

const notifierWorkers = 4

// eventPipeline moves outbox rows to the bus and the bus to the notifier.
// Without brokers both ends meet on an in-process LocalBus.
type eventPipeline struct {
	relay    *outbox.Relay
	schedule string
	handler  events.Handler
	producer *events.Producer
	consumer *events.Consumer
}

func newEventPipeline(cfg config.Config, db *mongo.Database, dedup notify.Deduper) *eventPipeline {
	var mailer notify.Mailer = notify.LogMailer{}
	if cfg.MailEnabled() {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}
	notifier := notify.NewNotifier(mailer, dedup, cfg.AdminEmail)
	repo := outbox.NewMongoRepository(db, database.CollOutbox)

	p := &eventPipeline{schedule: cfg.OutboxSchedule, handler: notifier.Handle}
	if cfg.KafkaEnabled() {
		p.producer = events.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		p.consumer = events.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroup, cfg.KafkaTopic, notifierWorkers)
		p.relay = outbox.NewRelay(repo, p.producer, cfg.OutboxBatch)
		return p
	}

	bus := events.NewLocalBus()
	bus.Subscribe(notifier.Handle)
	p.relay = outbox.NewRelay(repo, bus, cfg.OutboxBatch)
	return p
}

// run schedules the relay and, with Kafka, consumes until ctx is done.
func (p *eventPipeline) run(ctx context.Context) error {
	c := cron.New()
	if _, err := p.relay.Schedule(ctx, c, p.schedule); err != nil {
		return err
	}
	c.Start()
	log.Info().Str("schedule", p.schedule).Bool("kafka", p.consumer != nil).Msg("outbox relay started")
	defer func() {
		<-c.Stop().Done()
		log.Info().Msg("outbox relay stopped")
	}()

	if p.consumer == nil {
		<-ctx.Done()
		return nil
	}
	if err := p.consumer.Run(ctx, p.handler); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func (p *eventPipeline) close() error {
	if p.producer == nil {
		return nil
	}
	return p.producer.Close()
}
