package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

type MessageHandler func(ctx context.Context, msg jetstream.Msg) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// ConsumeImages feeds upload notifications from the IMAGES work queue to
// workerCount concurrent handlers.
func (c *Consumer) ConsumeImages(ctx context.Context, name string, handler MessageHandler, workerCount int) error {
	return c.consume(ctx, ImagesStreamName, jetstream.ConsumerConfig{
		Name:          name,
		Durable:       name,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       60 * time.Second,
		MaxDeliver:    3,
		FilterSubject: ImagesSubjectBase + ".>",
	}, handler, workerCount)
}

// ConsumeReportEvents delivers report changes published from now on, one at a time.
func (c *Consumer) ConsumeReportEvents(ctx context.Context, name string, handler MessageHandler) error {
	return c.consume(ctx, ReportsStreamName, jetstream.ConsumerConfig{
		Name:          name,
		Durable:       name,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       10 * time.Second,
		MaxDeliver:    3,
		FilterSubject: ReportsSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverNewPolicy,
	}, handler, 1)
}

// consume creates (or updates) the durable consumer and starts a fetch loop
// plus workers goroutines that ack on success and nak on error. It returns
// once everything is running; the goroutines stop with ctx.
func (c *Consumer) consume(ctx context.Context, stream string, cfg jetstream.ConsumerConfig, handler MessageHandler, workers int) error {
	if workers < 1 {
		workers = 1
	}

	st, err := c.js.Stream(ctx, stream)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", stream, err)
	}
	cons, err := st.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", cfg.Name, err)
	}

	msgCh := make(chan jetstream.Msg, workers*2)

	go func() {
		defer close(msgCh)
		for ctx.Err() == nil {
			batch, err := cons.Fetch(workers*2, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch messages", "stream", stream, "error", err)
				time.Sleep(time.Second)
				continue
			}
			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < workers; i++ {
		go func(worker int) {
			for msg := range msgCh {
				if err := handler(ctx, msg); err != nil {
					slog.Error("handle message", "stream", stream, "subject", msg.Subject(), "worker", worker, "error", err)
					_ = msg.Nak()
					continue
				}
				_ = msg.Ack()
			}
		}(i)
	}

	slog.Info("consumer started", "stream", stream, "consumer", cfg.Name, "workers", workers)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
