package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	envelopepkg "github.com/drblury/chatflow/internal/runtime/envelope"
	errspkg "github.com/drblury/chatflow/internal/runtime/errors"
	"github.com/drblury/chatflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/chatflow/internal/runtime/logging"
	metricspkg "github.com/drblury/chatflow/internal/runtime/metrics"
	partitionpkg "github.com/drblury/chatflow/internal/runtime/partition"
	"github.com/drblury/chatflow/transport"
)

const tracerName = "github.com/drblury/chatflow"

// PublishPolicy decides how a Producer waits for the stream.
type PublishPolicy string

const (
	// PublishSync waits for the acknowledgment and returns transport errors.
	PublishSync PublishPolicy = "sync"
	// PublishAsync returns a pending Delivery and logs the transport outcome.
	PublishAsync PublishPolicy = "async"
)

// DefaultAsyncPublishTimeout bounds a detached submission when none is configured.
const DefaultAsyncPublishTimeout = 10 * time.Second

// ParsePublishPolicy maps a config value onto a policy. Empty selects sync.
func ParsePublishPolicy(name string) (PublishPolicy, error) {
	switch PublishPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PublishSync:
		return PublishSync, nil
	case PublishAsync:
		return PublishAsync, nil
	default:
		return "", fmt.Errorf("unknown publish policy %q", name)
	}
}

// ProducerOptions holds the optional collaborators of a Producer. Zero values
// select the defaults.
type ProducerOptions struct {
	Policy       PublishPolicy
	AsyncTimeout time.Duration
	Envelopes    *envelopepkg.Builder
	Deriver      partitionpkg.KeyDeriver
	Logger       loggingpkg.ServiceLogger
	Metrics      *metricspkg.Collector
	Tracer       trace.Tracer
	// Capabilities of the target transport. Payloads over MaxMessageSize are
	// rejected before submission.
	Capabilities transport.Capabilities
}

// PublishResult describes a published envelope.
type PublishResult struct {
	ID           string    `json:"id"`
	Timestamp    string    `json:"timestamp"`
	Sender       string    `json:"sender"`
	Message      string    `json:"message"`
	PartitionKey string    `json:"partitionKey"`
	Delivery     *Delivery `json:"delivery"`
}

// Envelope returns the published envelope.
func (r PublishResult) Envelope() envelopepkg.Envelope {
	return envelopepkg.Envelope{
		ID:        r.ID,
		Timestamp: r.Timestamp,
		Sender:    r.Sender,
		Message:   r.Message,
	}
}

// Producer builds envelopes and submits them to a single stream.
type Producer struct {
	submitter    transport.Submitter
	stream       string
	policy       PublishPolicy
	asyncTimeout time.Duration
	envelopes    *envelopepkg.Builder
	deriver      partitionpkg.KeyDeriver
	logger       loggingpkg.ServiceLogger
	metrics      *metricspkg.Collector
	tracer       trace.Tracer
	caps         transport.Capabilities

	mu       sync.RWMutex
	closed   bool
	inflight sync.WaitGroup
}

// NewProducer validates the collaborators and returns a Producer bound to stream.
func NewProducer(submitter transport.Submitter, stream string, opts ProducerOptions) (*Producer, error) {
	if submitter == nil {
		return nil, errspkg.ErrSubmitterRequired
	}
	if strings.TrimSpace(stream) == "" {
		return nil, errspkg.ErrStreamNameRequired
	}

	policy, err := ParsePublishPolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}

	p := &Producer{
		submitter:    submitter,
		stream:       stream,
		policy:       policy,
		asyncTimeout: opts.AsyncTimeout,
		envelopes:    opts.Envelopes,
		deriver:      opts.Deriver,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
		tracer:       opts.Tracer,
		caps:         opts.Capabilities,
	}
	if p.asyncTimeout <= 0 {
		p.asyncTimeout = DefaultAsyncPublishTimeout
	}
	if p.envelopes == nil {
		p.envelopes = envelopepkg.NewBuilder()
	}
	if p.deriver == nil {
		p.deriver = partitionpkg.Default
	}
	if p.logger == nil {
		p.logger = loggingpkg.NopLogger()
	}
	if p.tracer == nil {
		p.tracer = otel.Tracer(tracerName)
	}
	p.logger = p.logger.With(loggingpkg.LogFields{"stream": stream, "publish_policy": string(policy)})
	return p, nil
}

// Policy reports the policy chosen at construction.
func (p *Producer) Policy() PublishPolicy { return p.policy }

// Stream reports the target stream name.
func (p *Producer) Stream() string { return p.stream }

// Publish builds an envelope for sender and message and submits it. Under the
// sync policy a transport failure is returned wrapped in ErrPublishFailed.
// Under the async policy the returned Delivery resolves later and transport
// failures are only logged.
func (p *Producer) Publish(ctx context.Context, sender, message string) (PublishResult, error) {
	if p.isClosed() {
		return PublishResult{}, errspkg.ErrProducerClosed
	}

	env := p.envelopes.Build(sender, message)
	key := p.deriver.Derive(env.Sender, env.ID)

	payload, err := jsoncodec.Marshal(env)
	if err != nil {
		return PublishResult{}, fmt.Errorf("marshal envelope: %w", err)
	}
	if !p.caps.AcceptsPayload(len(payload)) {
		return PublishResult{}, fmt.Errorf("%w: %w: %d bytes, limit %d",
			errspkg.ErrPublishFailed, errspkg.ErrPayloadTooLarge, len(payload), p.caps.MaxMessageSize)
	}

	result := PublishResult{
		ID:           env.ID,
		Timestamp:    env.Timestamp,
		Sender:       env.Sender,
		Message:      env.Message,
		PartitionKey: key,
	}

	if p.policy == PublishAsync {
		delivery, err := p.submitAsync(ctx, env.ID, key, payload)
		if err != nil {
			return PublishResult{}, err
		}
		result.Delivery = delivery
		return result, nil
	}

	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	ack, err := p.submit(ctx, env.ID, key, payload)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return PublishResult{}, err
		}
		return PublishResult{}, fmt.Errorf("%w: %w", errspkg.ErrPublishFailed, err)
	}
	result.Delivery = resolvedDelivery(ack)
	return result, nil
}

func (p *Producer) submitAsync(ctx context.Context, id, key string, payload []byte) (*Delivery, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return nil, errspkg.ErrProducerClosed
	}

	delivery := newPendingDelivery()
	p.metrics.ObservePublish(p.stream, metricspkg.OutcomePending, 0)

	detached, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.asyncTimeout)
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		defer cancel()

		ack, err := p.submit(detached, id, key, payload)
		if err != nil {
			p.logger.Error("Async publish failed", err, loggingpkg.LogFields{
				"envelope_id":   id,
				"partition_key": key,
			})
		} else {
			p.logger.Debug("Async publish acknowledged", loggingpkg.LogFields{
				"envelope_id":     id,
				"partition_key":   key,
				"shard_id":        ack.ShardID,
				"sequence_number": ack.SequenceNumber,
			})
		}
		delivery.resolve(ack, err)
	}()
	return delivery, nil
}

func (p *Producer) submit(ctx context.Context, id, key string, payload []byte) (transport.Acknowledgment, error) {
	ctx, span := p.tracer.Start(ctx, "chatflow.publish", trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()
	span.SetAttributes(
		attribute.String("messaging.destination.name", p.stream),
		attribute.String("chatflow.envelope_id", id),
		attribute.String("chatflow.partition_key", key),
		attribute.Int("messaging.message.body.size", len(payload)),
	)

	started := time.Now()
	ack, err := p.submitter.Submit(ctx, p.stream, key, payload)
	elapsed := time.Since(started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		p.metrics.ObservePublish(p.stream, metricspkg.OutcomeFailed, elapsed)
		return transport.Acknowledgment{}, err
	}

	span.SetAttributes(attribute.String("chatflow.sequence_number", ack.SequenceNumber))
	p.metrics.ObservePublish(p.stream, metricspkg.OutcomeAcked, elapsed)
	return ack, nil
}

// Flush waits for every in-flight async delivery or for ctx to end.
func (p *Producer) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Producer) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

// Close rejects further publishes and flushes the in-flight async ones.
func (p *Producer) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.Flush(ctx)
}

// Delivery is the stream outcome of one publish. It is either resolved at
// construction (sync policy) or resolved later by the submitting goroutine.
type Delivery struct {
	done chan struct{}
	ack  transport.Acknowledgment
	err  error
}

func newPendingDelivery() *Delivery {
	return &Delivery{done: make(chan struct{})}
}

func resolvedDelivery(ack transport.Acknowledgment) *Delivery {
	d := newPendingDelivery()
	d.resolve(ack, nil)
	return d
}

func (d *Delivery) resolve(ack transport.Acknowledgment, err error) {
	d.ack = ack
	d.err = err
	close(d.done)
}

// Done is closed once the outcome is known.
func (d *Delivery) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the outcome is known or ctx ends.
func (d *Delivery) Wait(ctx context.Context) (transport.Acknowledgment, error) {
	select {
	case <-d.done:
		return d.ack, d.err
	case <-ctx.Done():
		return transport.Acknowledgment{}, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while pending.
func (d *Delivery) Result() (ack transport.Acknowledgment, err error, ok bool) {
	select {
	case <-d.done:
		return d.ack, d.err, true
	default:
		return transport.Acknowledgment{}, nil, false
	}
}

type deliveryStatus struct {
	Status string `json:"status"`
}

// MarshalJSON renders the acknowledgment once resolved, otherwise a status.
func (d *Delivery) MarshalJSON() ([]byte, error) {
	ack, err, ok := d.Result()
	switch {
	case !ok:
		return jsoncodec.Marshal(deliveryStatus{Status: "pending"})
	case err != nil:
		return jsoncodec.Marshal(deliveryStatus{Status: "failed"})
	default:
		return jsoncodec.Marshal(ack)
	}
}
