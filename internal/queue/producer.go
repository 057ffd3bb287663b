package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/lostfound/internal/models"
)

const (
	ReportsStreamName  = "REPORTS"
	ReportsSubjectBase = "reports"
	ImagesStreamName   = "IMAGES"
	ImagesSubjectBase  = "images"

	ImageUploadedSubject = ImagesSubjectBase + ".uploaded"
)

type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func connect(natsURL string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create jetstream context: %w", err)
	}
	return nc, js, nil
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Producer{nc: nc, js: js}, nil
}

// StreamConfigs are the JetStream streams both binaries rely on.
func StreamConfigs() []jetstream.StreamConfig {
	return []jetstream.StreamConfig{
		{
			Name:        ReportsStreamName,
			Subjects:    []string{ReportsSubjectBase + ".>"},
			Retention:   jetstream.InterestPolicy,
			MaxAge:      24 * time.Hour,
			MaxMsgs:     1000000,
			Storage:     jetstream.FileStorage,
			Description: "Report store change events",
		},
		{
			Name:        ImagesStreamName,
			Subjects:    []string{ImagesSubjectBase + ".>"},
			Retention:   jetstream.WorkQueuePolicy,
			MaxAge:      7 * 24 * time.Hour,
			MaxMsgs:     100000,
			Storage:     jetstream.FileStorage,
			Discard:     jetstream.DiscardOld,
			Duplicates:  30 * time.Second,
			Description: "Uploaded images waiting to be indexed",
		},
	}
}

// EnsureStreams creates JetStream streams if they don't exist.
// Retries up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	streams := StreamConfigs()

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		allOK := true
		for _, cfg := range streams {
			opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
			cancel()
			if err != nil {
				allOK = false
				if attempt == maxAttempts {
					return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
				}
				slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
				break
			}
			slog.Info("ensured NATS stream", "name", cfg.Name)
		}
		if allOK {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// ReportSubject is reports.<event type>.
func ReportSubject(t models.ReportEventType) string {
	return ReportsSubjectBase + "." + string(t)
}

// PublishReportEvent publishes a report change.
func (p *Producer) PublishReportEvent(ctx context.Context, evt *models.ReportEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal report event: %w", err)
	}

	if _, err := p.js.Publish(ctx, ReportSubject(evt.Type), payload); err != nil {
		return fmt.Errorf("publish report event: %w", err)
	}
	return nil
}

// PublishImageUploaded queues a new upload for indexing. The object key is
// the dedupe id, so a retried upload notification is indexed once.
func (p *Producer) PublishImageUploaded(ctx context.Context, img *models.ImageUploaded) error {
	payload, err := json.Marshal(img)
	if err != nil {
		return fmt.Errorf("marshal image task: %w", err)
	}

	_, err = p.js.Publish(ctx, ImageUploadedSubject, payload, jetstream.WithMsgID(img.Key))
	if err != nil {
		return fmt.Errorf("publish image task: %w", err)
	}
	return nil
}

// ImageQueueDepth returns the number of images still waiting to be indexed.
func (p *Producer) ImageQueueDepth(ctx context.Context) (uint64, error) {
	stream, err := p.js.Stream(ctx, ImagesStreamName)
	if err != nil {
		return 0, err
	}
	info, err := stream.Info(ctx)
	if err != nil {
		return 0, err
	}
	return info.State.Msgs, nil
}

func (p *Producer) Ping(context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
