package oeekafka

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"

	oeeapp "oee-cloud/internal/oee/application"
	"oee-cloud/internal/observability/metrics"
)

const consumerName = "state_events"

// Config groups the Kafka consumer settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
	// MaxRetryElapsed bounds store retries for one message before it is skipped.
	MaxRetryElapsed time.Duration
}

// MessageReader is the subset of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// StateEventIngester appends state event payloads.
type StateEventIngester interface {
	Ingest(ctx context.Context, source string, payload oeeapp.StateEventPayload) (int, error)
}

// Consumer reads state event payloads from Kafka and appends them to the store.
type Consumer struct {
	reader          MessageReader
	service         StateEventIngester
	logger          *log.Logger
	maxRetryElapsed time.Duration
}

// NewReader builds a consumer-group reader for cfg.
func NewReader(cfg Config) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("oee kafka: no brokers configured")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("oee kafka: empty topic")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("oee kafka: empty group id")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: []string{cfg.Topic},
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	}), nil
}

// NewConsumer constructs a consumer.
func NewConsumer(reader MessageReader, service StateEventIngester, maxRetryElapsed time.Duration, logger *log.Logger) (*Consumer, error) {
	if reader == nil {
		return nil, errors.New("oee kafka: nil reader")
	}
	if service == nil {
		return nil, errors.New("oee kafka: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	if maxRetryElapsed <= 0 {
		maxRetryElapsed = time.Minute
	}
	return &Consumer{reader: reader, service: service, logger: logger, maxRetryElapsed: maxRetryElapsed}, nil
}

// Run consumes until ctx is done. Messages are committed once stored or
// once they are known to be unprocessable.
func (c *Consumer) Run(ctx context.Context) error {
	defer func() {
		if err := c.reader.Close(); err != nil {
			c.logger.Printf("oee kafka: reader close error: %v", err)
		}
	}()

	wait := time.Second
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Printf("oee kafka: fetch error: %v", err)
			select {
			case <-time.After(wait):
				if wait < 10*time.Second {
					wait *= 2
				}
				continue
			case <-ctx.Done():
				return nil
			}
		}
		wait = time.Second

		if !msg.Time.IsZero() {
			metrics.ObserveConsumerLag(consumerName, time.Since(msg.Time))
		}
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Printf("oee kafka: skip message partition=%d offset=%d err=%v", msg.Partition, msg.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Printf("oee kafka: commit error partition=%d offset=%d err=%v", msg.Partition, msg.Offset, err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var payload oeeapp.StateEventPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		metrics.IncIngestError("decode")
		return err
	}
	if payload.EntityRef == "" && len(msg.Key) > 0 {
		payload.EntityRef = string(msg.Key)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.maxRetryElapsed
	return backoff.Retry(func() error {
		_, err := c.service.Ingest(ctx, "kafka", payload)
		if err != nil && oeeapp.IsInputError(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(b, ctx))
}
