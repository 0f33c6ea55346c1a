package runtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/chatflow/internal/runtime/errors"
	"github.com/drblury/chatflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/chatflow/internal/runtime/logging"
	"github.com/drblury/chatflow/transport"
)

// ConsumerOptions holds the optional collaborators of a Consumer.
type ConsumerOptions struct {
	// Extractor turns record bytes into text. Nil selects PlainPayload.
	Extractor PayloadExtractor
	Hooks     DecodeHooks
	Logger    loggingpkg.ServiceLogger
	Tracer    trace.Tracer
	// Now replaces time.Now for outcome timestamps.
	Now func() time.Time
}

// Consumer decodes record batches and reports one outcome per batch.
type Consumer struct {
	decoder *Decoder
	hooks   DecodeHooks
	logger  loggingpkg.ServiceLogger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewConsumer creates a Consumer.
func NewConsumer(opts ConsumerOptions) *Consumer {
	c := &Consumer{
		decoder: NewDecoder(opts.Extractor),
		hooks:   opts.Hooks,
		logger:  opts.Logger,
		tracer:  opts.Tracer,
		now:     opts.Now,
	}
	if c.logger == nil {
		c.logger = loggingpkg.NopLogger()
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Process decodes batch and summarises it. Per-record decode failures and
// panicking record hooks are part of a successful outcome; the records after
// them are still decoded and dispatched. A missing batch or a panic outside
// the record hooks returns a failure outcome together with the error.
func (c *Consumer) Process(ctx context.Context, batch *transport.Batch) (outcome BatchOutcome, err error) {
	ctx, span := c.tracer.Start(ctx, "chatflow.consume_batch", trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	bctx := BatchContext{Context: ctx, Size: batch.Len(), StartedAt: c.now()}
	span.SetAttributes(attribute.Int("messaging.batch.message_count", bctx.Size))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errspkg.ErrBatchPanicked, r)
			outcome = Failed(err, c.now())
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch failed")
			c.logger.Error("Error processing stream records", err, loggingpkg.LogFields{"records": bctx.Size})
		}
		bctx.Duration = c.now().Sub(bctx.StartedAt)
		c.finish(bctx, outcome)
	}()

	if batch == nil || batch.Records == nil {
		err = errspkg.ErrBatchMissing
		return Failed(err, c.now()), err
	}

	c.logger.Debug("Processing stream batch", loggingpkg.LogFields{"records": bctx.Size})

	decoded := c.decoder.decodeEach(batch.Records, func(rec *DecodedRecord) {
		rec.HookErr = c.react(bctx, *rec)
	})
	return Summarize(decoded, c.now()), nil
}

// react runs the record hooks for rec. A panic is confined to rec.
func (c *Consumer) react(bctx BatchContext, rec DecodedRecord) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", errspkg.ErrHookPanicked, r)
			c.logger.Error("Record hook panicked", err, loggingpkg.LogFields{
				"index":           rec.Index,
				"sequence_number": rec.SequenceNumber,
			})
		}
	}()
	c.hooks.dispatch(bctx, rec)
	return nil
}

// finish runs OnBatchDone. A panicking hook must not replace the outcome.
func (c *Consumer) finish(bctx BatchContext, outcome BatchOutcome) {
	if c.hooks.OnBatchDone == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Batch hook panicked", fmt.Errorf("%v", r), nil)
		}
	}()
	c.hooks.OnBatchDone(bctx, outcome)
}

// Response is what a serverless runtime returns for one batch.
type Response struct {
	StatusCode int    `json:"statusCode"`
	Body       string `json:"body"`
}

type failureBody struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// Handle processes batch and renders the outcome as a Response. Fatal
// outcomes map to 500.
func (c *Consumer) Handle(ctx context.Context, batch *transport.Batch) Response {
	outcome, err := c.Process(ctx, batch)
	if err != nil {
		body, _ := jsoncodec.MarshalString(failureBody{
			Error:   outcome.Message,
			Details: outcome.Details,
		})
		return Response{StatusCode: http.StatusInternalServerError, Body: body}
	}

	body, err := jsoncodec.MarshalString(outcome)
	if err != nil {
		c.logger.Error("Failed to encode batch outcome", err, nil)
		return Response{StatusCode: http.StatusInternalServerError, Body: `{"error":"Failed to process stream records"}`}
	}
	return Response{StatusCode: http.StatusOK, Body: body}
}
