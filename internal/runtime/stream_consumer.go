package runtime

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/chatflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/chatflow/internal/runtime/logging"
	"github.com/drblury/chatflow/transport"
)

// Batching defaults for StreamConsumer.
const (
	DefaultBatchSize   = 100
	DefaultBatchLinger = time.Second
)

// StreamConsumerOptions tunes how subscribed messages are grouped.
type StreamConsumerOptions struct {
	// BatchSize caps the records per batch.
	BatchSize int
	// Linger is how long a partial batch waits for more records.
	Linger time.Duration
	Mapper transport.RecordMapper
	Logger loggingpkg.ServiceLogger
}

// StreamConsumer feeds a subscribed stream into a Consumer in batches.
//
// Watermill subscribers hand out the next message only after the previous
// one is acked, so messages are acked once buffered. A batch that fails as a
// whole is logged with the ids of its messages.
type StreamConsumer struct {
	subscriber message.Subscriber
	stream     string
	consumer   *Consumer
	mapper     transport.RecordMapper
	batchSize  int
	linger     time.Duration
	logger     loggingpkg.ServiceLogger
}

// NewStreamConsumer creates a StreamConsumer for stream.
func NewStreamConsumer(subscriber message.Subscriber, stream string, consumer *Consumer, opts StreamConsumerOptions) (*StreamConsumer, error) {
	if subscriber == nil {
		return nil, errspkg.ErrSubscriberRequired
	}
	if stream == "" {
		return nil, errspkg.ErrStreamNameRequired
	}
	if consumer == nil {
		consumer = NewConsumer(ConsumerOptions{})
	}

	s := &StreamConsumer{
		subscriber: subscriber,
		stream:     stream,
		consumer:   consumer,
		mapper:     opts.Mapper,
		batchSize:  opts.BatchSize,
		linger:     opts.Linger,
		logger:     opts.Logger,
	}
	if s.mapper == nil {
		s.mapper = transport.MessageRecord
	}
	if s.batchSize <= 0 {
		s.batchSize = DefaultBatchSize
	}
	if s.linger <= 0 {
		s.linger = DefaultBatchLinger
	}
	if s.logger == nil {
		s.logger = loggingpkg.NopLogger()
	}
	s.logger = s.logger.With(loggingpkg.LogFields{"stream": stream})
	return s, nil
}

// Run subscribes and processes batches until ctx ends or the subscription
// closes. The buffered partial batch is processed before returning.
func (s *StreamConsumer) Run(ctx context.Context) error {
	messages, err := s.subscriber.Subscribe(ctx, s.stream)
	if err != nil {
		return err
	}
	s.logger.Info("Consuming stream", loggingpkg.LogFields{
		"batch_size": s.batchSize,
		"linger":     s.linger.String(),
	})

	var (
		records []transport.RawRecord
		ids     []string
	)
	timer := time.NewTimer(s.linger)
	stopTimer(timer)

	flush := func() {
		if len(records) == 0 {
			return
		}
		s.process(ctx, records, ids)
		records, ids = nil, nil
		stopTimer(timer)
	}

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				flush()
				return nil
			}
			records = append(records, s.mapper(msg))
			ids = append(ids, msg.UUID)
			msg.Ack()

			if len(records) == 1 {
				timer.Reset(s.linger)
			}
			if len(records) >= s.batchSize {
				flush()
			}
		case <-timer.C:
			flush()
		case <-ctx.Done():
			flush()
			return nil
		}
	}
}

func (s *StreamConsumer) process(ctx context.Context, records []transport.RawRecord, ids []string) {
	// The batch is processed even when ctx has just ended; its messages are already acked.
	outcome, err := s.consumer.Process(context.WithoutCancel(ctx), transport.NewBatch(records...))
	if err != nil {
		s.logger.Error("Stream batch failed", err, loggingpkg.LogFields{
			"message_ids": ids,
			"details":     outcome.Details,
		})
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
