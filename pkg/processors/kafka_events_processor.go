package processors

import (
	"context"
	"strconv"

	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/common_errors"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/commtypes"
	"github.com/aptos-labs/aptos-indexer-processors-sub000/pkg/hashfuncs"
	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

const (
	KAFKA_METADATA_TIMEOUT_MS = 10000
	KAFKA_FLUSH_TIMEOUT_MS    = 30000
)

// KafkaSink produces to a single topic whose partition count is read once
// at startup.
type KafkaSink struct {
	producer      *kafka.Producer
	topic         string
	numPartitions int
	serde         commtypes.SerdeG[commtypes.Event]
}

func NewKafkaSink(bootstrapServers string, topic string, serdeFormat commtypes.SerdeFormat) (*KafkaSink, error) {
	serde, err := commtypes.GetEventSerdeG(serdeFormat)
	if err != nil {
		return nil, err
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  bootstrapServers,
		"acks":               "all",
		"enable.idempotence": true,
		"linger.ms":          5,
	})
	if err != nil {
		return nil, xerrors.Errorf("failed to create producer: %w", err)
	}
	md, err := p.GetMetadata(&topic, false, KAFKA_METADATA_TIMEOUT_MS)
	if err != nil {
		p.Close()
		return nil, xerrors.Errorf("failed to read metadata of %s: %w", topic, err)
	}
	tm, ok := md.Topics[topic]
	if !ok || len(tm.Partitions) == 0 {
		p.Close()
		return nil, xerrors.Errorf("%w: kafka topic %s has no partitions", common_errors.ErrInvalidConfig, topic)
	}
	log.Info().Str("broker", bootstrapServers).Str("topic", topic).
		Int("partitions", len(tm.Partitions)).Msg("[kafka] producer ready")
	return &KafkaSink{producer: p, topic: topic, numPartitions: len(tm.Partitions), serde: serde}, nil
}

func (s *KafkaSink) Close() {
	remaining := s.producer.Flush(KAFKA_FLUSH_TIMEOUT_MS)
	if remaining != 0 {
		log.Warn().Int("remaining", remaining).Msg("[kafka] messages left unflushed on close")
	}
	s.producer.Close()
}

// partition keeps all events of one account on one partition so consumers
// see them in sequence order.
func (s *KafkaSink) partition(account string) int32 {
	return int32(hashfuncs.ShardIndex[string](hashfuncs.Murmur3Hasher{}, account, s.numPartitions))
}

// KafkaEventsProcessor publishes events to a topic. A batch only completes
// once the broker acknowledged every message; re-delivered batches produce
// duplicates that consumers drop by their version/index key.
type KafkaEventsProcessor struct {
	sink *KafkaSink
}

func NewKafkaEventsProcessor(sink *KafkaSink) *KafkaEventsProcessor {
	return &KafkaEventsProcessor{sink: sink}
}

func (p *KafkaEventsProcessor) Name() string {
	return KAFKA_EVENTS_PROCESSOR
}

func (p *KafkaEventsProcessor) ProcessBatch(ctx context.Context, records []commtypes.Record,
	startVersion uint64, endVersion uint64,
) error {
	rows := extractEvents(records)
	if len(rows) == 0 {
		return nil
	}
	delivery := make(chan kafka.Event, len(rows))
	produced := 0
	var produceErr error
	for _, r := range rows {
		val, err := p.sink.serde.Encode(r.Event)
		if err != nil {
			return common_errors.Fatal(xerrors.Errorf("encode event %d/%d: %w", r.TransactionVersion, r.EventIndex, err))
		}
		msg := &kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &p.sink.topic, Partition: p.sink.partition(r.Event.AccountAddress)},
			Key:            []byte(strconv.FormatUint(r.TransactionVersion, 10) + "/" + strconv.Itoa(r.EventIndex)),
			Value:          val,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(r.Event.Type)},
			},
		}
		if err := p.sink.producer.Produce(msg, delivery); err != nil {
			produceErr = err
			break
		}
		produced++
	}
	var deliveryErr error
	for i := 0; i < produced; i++ {
		select {
		case e := <-delivery:
			if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil && deliveryErr == nil {
				deliveryErr = m.TopicPartition.Error
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if produceErr != nil {
		return common_errors.Retryable(xerrors.Errorf("produce batch [%d, %d]: %w", startVersion, endVersion, produceErr))
	}
	if deliveryErr != nil {
		return common_errors.Retryable(xerrors.Errorf("deliver batch [%d, %d]: %w", startVersion, endVersion, deliveryErr))
	}
	return nil
}
