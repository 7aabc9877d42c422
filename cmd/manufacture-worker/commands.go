package main

import (
	"fmt"

	"github.com/goliatone/go-manufacture"
	"github.com/goliatone/go-manufacture/config"
	"github.com/goliatone/go-manufacture/cron"
	"github.com/goliatone/go-manufacture/dedup"
	"github.com/goliatone/go-manufacture/store"
	"github.com/goliatone/go-manufacture/transport"
)

type WorkerCmd struct {
	NoSweeper bool `help:"Do not schedule the reconciliation sweep in this process."`
}

func (c *WorkerCmd) Run(e *env) error {
	a, err := newApp(e.ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer a.close(e.ctx)

	producer := transport.NewKafkaProducer(e.cfg.Kafka)
	a.closers = append(a.closers, producer)
	a.register(producer, localCollaborators())

	if e.cfg.Sweeper.Enabled && !c.NoSweeper {
		scheduler := cron.NewScheduler(cron.WithLogger(e.logger))
		sweeper := newSweeper(a, producer, e)
		if _, err := sweeper.Schedule(scheduler, e.cfg.Sweeper.Job); err != nil {
			return err
		}
		if err := scheduler.Start(e.ctx); err != nil {
			return err
		}
		defer scheduler.Stop(e.ctx)
	}

	go a.serveMetrics(e.ctx)

	consumer := transport.NewKafkaConsumer(e.cfg.Kafka, a.bus, transport.WithConsumerLogger(e.logger))
	a.closers = append(a.closers, consumer)

	e.logger.Info("consuming %s as %s", e.cfg.Kafka.Topic, e.cfg.Kafka.GroupID)
	return consumer.Run(e.ctx)
}

type SweepCmd struct {
	Once bool `help:"Run a single sweep and exit instead of following the cron expression."`
}

func (c *SweepCmd) Run(e *env) error {
	a, err := newApp(e.ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer a.close(e.ctx)

	producer := transport.NewKafkaProducer(e.cfg.Kafka)
	a.closers = append(a.closers, producer)
	sweeper := newSweeper(a, producer, e)

	if c.Once {
		n, err := sweeper.Sweep(e.ctx)
		e.logger.Info("sweep republished %d batches", n)
		return err
	}

	scheduler := cron.NewScheduler(cron.WithLogger(e.logger))
	if _, err := sweeper.Schedule(scheduler, e.cfg.Sweeper.Job); err != nil {
		return err
	}
	if err := scheduler.Start(e.ctx); err != nil {
		return err
	}
	<-e.ctx.Done()
	return scheduler.Stop(e.ctx)
}

type IndexesCmd struct{}

func (c *IndexesCmd) Run(e *env) error {
	cfg := e.cfg
	cfg.Dedup.Backend = config.BackendMongo
	a, err := newApp(e.ctx, cfg, e.logger)
	if err != nil {
		return err
	}
	defer a.close(e.ctx)

	if err := store.NewMongoRepository(a.db).EnsureIndexes(e.ctx); err != nil {
		return fmt.Errorf("batch indexes: %w", err)
	}
	if err := dedup.NewMongoStore(a.db, cfg.Mongo.DedupCollection).EnsureIndexes(e.ctx); err != nil {
		return fmt.Errorf("dedup indexes: %w", err)
	}
	e.logger.Info("indexes ensured on %s", cfg.Mongo.Database)
	return nil
}

type PublishCmd struct {
	Part   string `arg:"" help:"Batch id."`
	Event  string `arg:"" help:"Event version id."`
	Defect int    `help:"Defective quantity carried by the message."`
}

func (c *PublishCmd) message() (manufacture.PartMessage, error) {
	msg := manufacture.NewPartMessage(c.Part, c.Event)
	if c.Defect > 0 {
		msg = msg.WithTotal(c.Defect)
	}
	return msg, msg.Validate()
}

func (c *PublishCmd) Run(e *env) error {
	msg, err := c.message()
	if err != nil {
		return err
	}
	producer := transport.NewKafkaProducer(e.cfg.Kafka)
	defer producer.Close()

	if err := producer.Publish(e.ctx, msg); err != nil {
		return err
	}
	e.logger.Info("published %s for part %s event %s", msg.Type(), msg.ID, msg.Event)
	return nil
}

func newSweeper(a *app, producer transport.Publisher, e *env) *cron.Sweeper {
	return cron.NewSweeper(a.repo, producer,
		cron.WithSweeperLogger(e.logger),
		cron.WithSettledWindow(e.cfg.Sweeper.SettledWindow),
	)
}
