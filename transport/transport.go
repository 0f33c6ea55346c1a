// Package transport defines the stream boundary chatflow depends on: submitting
// a payload under a partition key, and receiving batches of raw records.
// Each stream backend (kinesis, kafka, channel) lives in its own sub-package
// and registers itself with the transport registry.
package transport

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Submitter appends one payload to a stream. Implementations must be safe for
// concurrent use without external locking.
type Submitter interface {
	Submit(ctx context.Context, stream, partitionKey string, payload []byte) (Acknowledgment, error)
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, stream, partitionKey string, payload []byte) (Acknowledgment, error)

func (f SubmitterFunc) Submit(ctx context.Context, stream, partitionKey string, payload []byte) (Acknowledgment, error) {
	return f(ctx, stream, partitionKey, payload)
}

// Acknowledgment is what the stream reports back for an accepted submission.
// Fields a backend does not report stay empty.
type Acknowledgment struct {
	Stream         string `json:"stream"`
	ShardID        string `json:"shardId,omitempty"`
	SequenceNumber string `json:"sequenceNumber,omitempty"`
	EncryptionType string `json:"encryptionType,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
}

// RawRecord is the consumer-side view of one stream record. Data holds the
// payload as the transport delivered it: already decoded for subscribers,
// still base64 encoded for Kinesis trigger events.
type RawRecord struct {
	SequenceNumber              string
	PartitionKey                string
	ApproximateArrivalTimestamp time.Time
	Data                        []byte
}

// Batch is a fixed set of records delivered together, in shard order.
type Batch struct {
	Records []RawRecord
}

// NewBatch wraps records. A nil slice still yields a non-nil, empty batch.
func NewBatch(records ...RawRecord) *Batch {
	if records == nil {
		records = []RawRecord{}
	}
	return &Batch{Records: records}
}

// Len is nil-safe.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Records)
}

// RecordMapper turns a subscribed Watermill message into a RawRecord.
type RecordMapper func(msg *message.Message) RawRecord

// Transport bundles what a backend offers. Subscriber is nil for backends whose
// records are delivered by an external trigger (Kinesis via Lambda).
type Transport struct {
	Submitter    Submitter
	Subscriber   message.Subscriber
	RecordMapper RecordMapper
}

// Mapper returns the configured RecordMapper or MessageRecord.
func (t Transport) Mapper() RecordMapper {
	if t.RecordMapper != nil {
		return t.RecordMapper
	}
	return MessageRecord
}

// Close releases the submitter and subscriber when they hold resources.
func (t Transport) Close() error {
	var errs []error
	if closer, ok := t.Submitter.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	if t.Subscriber != nil && !sameResource(t.Submitter, t.Subscriber) {
		errs = append(errs, t.Subscriber.Close())
	}
	return errors.Join(errs...)
}

func sameResource(sub Submitter, subscriber message.Subscriber) bool {
	ps, ok := sub.(*PublisherSubmitter)
	if !ok {
		return false
	}
	if other, ok := ps.publisher.(message.Subscriber); ok {
		return other == subscriber
	}
	return false
}

// Builder is the function signature for creating a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config provides the values transports need without depending on the full
// config package.
type Config interface {
	GetStreamSystem() string
	GetStreamName() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// AWS
	GetAWSRegion() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}
