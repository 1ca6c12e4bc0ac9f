// Package consumer applies billing events to professional entitlements.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/agendly/agendly/libs/kafkax"
	otelx "github.com/agendly/agendly/libs/otel"
	"github.com/agendly/agendly/services/booking-service/internal/metrics"
	"github.com/agendly/agendly/services/booking-service/internal/storage"
)

const (
	EventSubscriptionActivated = "billing.subscription.activated.v1"
	EventSubscriptionCanceled  = "billing.subscription.canceled.v1"
)

var errBadPayload = errors.New("malformed entitlement event")

// Tx is the transactional view the consumer writes through.
type Tx interface {
	RecordInbox(ctx context.Context, eventID, eventType string) (bool, error)
	UpsertEntitlement(ctx context.Context, professionalID, tier string) error
}

type Store interface {
	InTx(ctx context.Context, fn func(Tx) error) error
}

// MessageReader fetches without committing; offsets move only through
// CommitMessages.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     MessageReader
	store      Store
	logger     *slog.Logger
	metrics    *metrics.BookingMetrics
	retryDelay time.Duration
}

type Config struct {
	Brokers string
	GroupID string
}

// NewReader subscribes to both subscription topics in one consumer group.
func NewReader(cfg Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     kafkax.SplitBrokers(cfg.Brokers),
		GroupID:     cfg.GroupID,
		GroupTopics: []string{EventSubscriptionActivated, EventSubscriptionCanceled},
		MinBytes:    1,
		MaxBytes:    10e6,
	})
}

func New(reader MessageReader, store Store, logger *slog.Logger, m *metrics.BookingMetrics) *Consumer {
	return &Consumer{reader: reader, store: store, logger: logger, metrics: m, retryDelay: time.Second}
}

// Run consumes until ctx is done. A message's offset is committed only once
// Process accepts it; failures are retried in place so later offsets never
// overtake an unapplied event.
func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !c.wait(ctx) {
				return
			}
			continue
		}
		for c.Process(ctx, msg) != nil {
			if !c.wait(ctx) {
				return
			}
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka commit error", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) wait(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(c.retryDelay):
		return true
	}
}

type subscriptionPayload struct {
	ProfessionalID string `json:"professional_id"`
	Tier           string `json:"tier"`
}

// Process applies one message. Redelivered event ids are skipped; malformed
// payloads are logged and dropped, returning nil so the offset can move on.
func (c *Consumer) Process(ctx context.Context, msg kafka.Message) error {
	ctx = kafkax.ExtractTraceContext(ctx, msg)
	ctx, span := otelx.Tracer("kafka").Start(ctx, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	result := "applied"
	err := c.store.InTx(ctx, func(tx Tx) error {
		fresh, err := tx.RecordInbox(ctx, meta.EventID, meta.EventType)
		if err != nil {
			return err
		}
		if !fresh {
			result = "duplicate"
			return nil
		}
		professionalID, tier, err := decode(meta.EventType, msg.Value)
		if err != nil {
			return err
		}
		return tx.UpsertEntitlement(ctx, professionalID, tier)
	})

	switch {
	case errors.Is(err, errBadPayload):
		result = "invalid"
		c.logger.Error("entitlement event dropped", "err", err, "event_id", meta.EventID)
		err = nil
	case err != nil:
		result = "error"
		c.logger.Error("entitlement event failed", "err", err, "event_id", meta.EventID)
		span.RecordError(err)
	case result == "duplicate":
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
	}
	c.metrics.ObserveConsumed(meta.EventType, result)
	return err
}

func decode(eventType string, raw []byte) (professionalID, tier string, err error) {
	var p subscriptionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", "", errors.Join(errBadPayload, err)
	}
	p.ProfessionalID = strings.TrimSpace(p.ProfessionalID)
	if p.ProfessionalID == "" {
		return "", "", errors.Join(errBadPayload, errors.New("professional_id required"))
	}
	switch eventType {
	case EventSubscriptionActivated:
		tier = strings.TrimSpace(p.Tier)
		if tier == "" {
			tier = storage.TierPro
		}
	case EventSubscriptionCanceled:
		tier = storage.TierFree
	default:
		return "", "", errors.Join(errBadPayload, errors.New("unexpected event type "+eventType))
	}
	return p.ProfessionalID, tier, nil
}

type postgresStore struct {
	repo *storage.Repository
}

func NewPostgresStore(repo *storage.Repository) Store {
	return postgresStore{repo: repo}
}

func (s postgresStore) InTx(ctx context.Context, fn func(Tx) error) error {
	return s.repo.InTx(ctx, func(tx *storage.Repository) error { return fn(tx) })
}
