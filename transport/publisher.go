package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Metadata keys written on every message published through PublisherSubmitter.
const (
	MetadataPartitionKey = "chatflow_partition_key"
	MetadataPublishedAt  = "chatflow_published_at"
)

// PublisherSubmitter submits payloads through a Watermill publisher. The
// partition key travels as message metadata so partition-aware marshalers
// (Kafka) can route on it.
type PublisherSubmitter struct {
	publisher message.Publisher
	now       func() time.Time
}

func NewPublisherSubmitter(publisher message.Publisher) *PublisherSubmitter {
	return &PublisherSubmitter{publisher: publisher, now: time.Now}
}

func (p *PublisherSubmitter) Submit(ctx context.Context, stream, partitionKey string, payload []byte) (Acknowledgment, error) {
	if err := ctx.Err(); err != nil {
		return Acknowledgment{}, err
	}

	msg := message.NewMessage(watermill.NewULID(), payload)
	msg.Metadata.Set(MetadataPartitionKey, partitionKey)
	msg.Metadata.Set(MetadataPublishedAt, p.now().UTC().Format(time.RFC3339Nano))
	msg.SetContext(ctx)

	if err := p.publisher.Publish(stream, msg); err != nil {
		return Acknowledgment{}, fmt.Errorf("publish to %s: %w", stream, err)
	}

	return Acknowledgment{Stream: stream, MessageID: msg.UUID}, nil
}

func (p *PublisherSubmitter) Close() error {
	return p.publisher.Close()
}

// MessageRecord maps a message written by PublisherSubmitter back into a
// RawRecord. The message UUID stands in for the sequence number.
func MessageRecord(msg *message.Message) RawRecord {
	arrived := time.Now()
	if raw := msg.Metadata.Get(MetadataPublishedAt); raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			arrived = ts
		}
	}
	return RawRecord{
		SequenceNumber:              msg.UUID,
		PartitionKey:                msg.Metadata.Get(MetadataPartitionKey),
		ApproximateArrivalTimestamp: arrived,
		Data:                        msg.Payload,
	}
}
