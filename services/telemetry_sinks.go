package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// streamAdder is the subset of *redis.Client used by RedisStreamSink.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisStreamSink appends every event to a capped Redis stream.
type RedisStreamSink struct {
	client streamAdder
	stream string
	maxLen int64
}

func NewRedisStreamSink(client streamAdder, stream string) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream, maxLen: 10000}
}

func (s *RedisStreamSink) Name() string { return "redis" }

func (s *RedisStreamSink) Publish(ctx context.Context, e LifecycleEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":      e.ID,
			"type":    e.Type,
			"payload": string(payload),
		},
	}).Err()
}

// messageWriter is the subset of *kafka.Writer used by KafkaSink.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaSink publishes events keyed by type so one type stays ordered.
type KafkaSink struct {
	w messageWriter
}

func NewKafkaSink(w messageWriter) *KafkaSink {
	return &KafkaSink{w: w}
}

// NewKafkaWriter configures a writer for the lifecycle topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Publish(ctx context.Context, e LifecycleEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.Type),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(e.ID)},
		},
	})
}

// ObjectStore uploads a finished object and returns its public URL.
type ObjectStore interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)
}

// ArchiveSink keeps a JSON report of every completed series in object storage.
// Other events are ignored.
type ArchiveSink struct {
	store  ObjectStore
	prefix string
}

func NewArchiveSink(store ObjectStore, prefix string) *ArchiveSink {
	return &ArchiveSink{store: store, prefix: prefix}
}

func (s *ArchiveSink) Name() string { return "archive" }

func (s *ArchiveSink) Publish(ctx context.Context, e LifecycleEvent) error {
	if e.Type != EventSeriesCompleted {
		return nil
	}
	payload, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	_, err = s.store.PutObject(ctx, ArchiveKey(s.prefix, e), "application/json", payload)
	return err
}

// ArchiveKey builds "<prefix>/series-<n>-completed-<timestamp>.json".
func ArchiveKey(prefix string, e LifecycleEvent) string {
	name := slug.Make(fmt.Sprintf("series %d completed %s", e.SeriesNumber, e.OccurredAt.Format("20060102T150405Z")))
	if prefix == "" {
		return name + ".json"
	}
	return fmt.Sprintf("%s/%s.json", prefix, name)
}
