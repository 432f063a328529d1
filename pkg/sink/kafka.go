package sink

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/twmb/franz-go/pkg/kmsg"
	"github.com/twmb/franz-go/pkg/sasl/plain"
)

// KafkaConfig holds the broker connection settings for the Kafka sink.
// SASL/PLAIN and TLS are supported; leave Username empty for plaintext.
type KafkaConfig struct {
	Brokers  []string
	Topic    string
	Username string
	Password string
	TLS      bool
}

// Kafka publishes each record to a topic, with the computed dispatch key as
// the message key. The topic is created on first use if the broker allows it.
type Kafka struct {
	client *kgo.Client
	topic  string
}

// NewKafka connects to the brokers and ensures the topic exists.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RetryTimeout(20 * time.Second),
	}
	if cfg.Username != "" {
		opts = append(opts, kgo.SASL(plain.Auth{
			User: cfg.Username,
			Pass: cfg.Password,
		}.AsMechanism()))
	}
	if cfg.TLS {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}

	k := &Kafka{client: client, topic: cfg.Topic}
	if err := k.createTopicIfNotExists(cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}
	return k, nil
}

func (k *Kafka) createTopicIfNotExists(topic string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	createReq := &kmsg.CreateTopicsRequest{
		Topics: []kmsg.CreateTopicsRequestTopic{
			{
				Topic:             topic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			},
		},
	}

	resp, err := createReq.RequestWith(ctx, k.client)
	if err != nil {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	for _, t := range resp.Topics {
		if t.ErrorCode != 0 && t.ErrorCode != 36 { // 36 is topic already exists
			return fmt.Errorf("failed to create topic %s: error code %d", t.Topic, t.ErrorCode)
		}
	}
	return nil
}

func (k *Kafka) Send(ctx context.Context, key string, payload []byte) error {
	record := &kgo.Record{
		Topic: k.topic,
		Value: payload,
	}
	if key != "" {
		record.Key = []byte(key)
	}

	result := k.client.ProduceSync(ctx, record)
	if err := result.FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

func (k *Kafka) Close() error {
	k.client.Close()
	return nil
}
