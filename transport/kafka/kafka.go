// Package kafka provides the Apache Kafka transport for chatflow. The envelope
// partition key becomes the Kafka message key, so Kafka's partitioner keeps
// every record of one key on one partition.
package kafka

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/chatflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kafka"

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return kafka.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return kafka.NewSubscriber(cfg, logger)
}

func init() {
	Register()
}

// Register adds the transport to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Build creates a Kafka transport.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	brokers := cfg.GetKafkaBrokers()
	marshaler := kafka.NewWithPartitioningMarshaler(PartitionKey)

	publisher, err := PublisherFactory(
		kafka.PublisherConfig{
			Brokers:   brokers,
			Marshaler: marshaler,
		},
		logger,
	)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("kafka: create publisher: %w", err)
	}

	subscriber, err := SubscriberFactory(
		kafka.SubscriberConfig{
			Brokers:       brokers,
			Unmarshaler:   marshaler,
			ConsumerGroup: cfg.GetKafkaConsumerGroup(),
		},
		logger,
	)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, fmt.Errorf("kafka: create subscriber: %w", err)
	}

	return transport.Transport{
		Submitter:    transport.NewPublisherSubmitter(publisher),
		Subscriber:   subscriber,
		RecordMapper: Record,
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}

// PartitionKey reads the envelope partition key from message metadata.
func PartitionKey(topic string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(transport.MetadataPartitionKey), nil
}

// Record maps a consumed Kafka message into a RawRecord. The sequence number
// is "<partition>-<offset>" when the subscriber exposes them.
func Record(msg *message.Message) transport.RawRecord {
	rec := transport.MessageRecord(msg)

	ctx := msg.Context()
	partition, hasPartition := kafka.MessagePartitionFromCtx(ctx)
	offset, hasOffset := kafka.MessagePartitionOffsetFromCtx(ctx)
	if hasPartition && hasOffset {
		rec.SequenceNumber = fmt.Sprintf("%d-%d", partition, offset)
	}
	if ts, ok := kafka.MessageTimestampFromCtx(ctx); ok && !ts.IsZero() {
		rec.ApproximateArrivalTimestamp = ts
	}
	return rec
}
