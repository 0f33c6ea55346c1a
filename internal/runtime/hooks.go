package runtime

import (
	"context"
	"time"

	loggingpkg "github.com/drblury/chatflow/internal/runtime/logging"
	metricspkg "github.com/drblury/chatflow/internal/runtime/metrics"
)

// BatchContext provides information about a batch execution to hooks.
type BatchContext struct {
	// Context is the context the batch is handled under.
	Context context.Context
	// Size is the number of records in the batch.
	Size int
	// StartedAt is when the batch started processing.
	StartedAt time.Time
	// Duration is how long the batch took (only set in OnBatchDone).
	Duration time.Duration
}

// DecodeHooks defines callbacks for decode lifecycle events.
// All hooks are optional - nil hooks are simply not called.
type DecodeHooks struct {
	// OnRecord is called for every decoded record, in batch order.
	OnRecord func(ctx BatchContext, rec DecodedRecord)

	// OnChat is called after OnRecord for records carrying a sender and a message.
	OnChat func(ctx BatchContext, rec DecodedRecord)

	// OnDecodeFailure is called after OnRecord for records kept raw because
	// their payload could not be decoded.
	OnDecodeFailure func(ctx BatchContext, rec DecodedRecord)

	// OnBatchDone is called once the batch outcome is known, including fatal outcomes.
	OnBatchDone func(ctx BatchContext, outcome BatchOutcome)
}

// Merge combines two DecodeHooks, creating a new DecodeHooks that calls both.
// The hooks from 'other' are called after the hooks from 'h'.
func (h DecodeHooks) Merge(other DecodeHooks) DecodeHooks {
	return DecodeHooks{
		OnRecord:        chainRecordHooks(h.OnRecord, other.OnRecord),
		OnChat:          chainRecordHooks(h.OnChat, other.OnChat),
		OnDecodeFailure: chainRecordHooks(h.OnDecodeFailure, other.OnDecodeFailure),
		OnBatchDone:     chainBatchHooks(h.OnBatchDone, other.OnBatchDone),
	}
}

func chainRecordHooks(a, b func(BatchContext, DecodedRecord)) func(BatchContext, DecodedRecord) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx BatchContext, rec DecodedRecord) {
		a(ctx, rec)
		b(ctx, rec)
	}
}

func chainBatchHooks(a, b func(BatchContext, BatchOutcome)) func(BatchContext, BatchOutcome) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx BatchContext, outcome BatchOutcome) {
		a(ctx, outcome)
		b(ctx, outcome)
	}
}

// dispatch invokes the record hooks for rec.
func (h DecodeHooks) dispatch(ctx BatchContext, rec DecodedRecord) {
	if h.OnRecord != nil {
		h.OnRecord(ctx, rec)
	}
	if rec.Err != nil {
		if h.OnDecodeFailure != nil {
			h.OnDecodeFailure(ctx, rec)
		}
		return
	}
	if rec.HasChat() && h.OnChat != nil {
		h.OnChat(ctx, rec)
	}
}

// LoggingHooks returns pre-built hooks that log every record and the chat line
// of records carrying a sender and a message.
func LoggingHooks(logger loggingpkg.ServiceLogger) DecodeHooks {
	return DecodeHooks{
		OnRecord: func(ctx BatchContext, rec DecodedRecord) {
			logger.Debug("Processing record", loggingpkg.LogFields{
				"index":           rec.Index,
				"sequence_number": rec.SequenceNumber,
				"partition_key":   rec.PartitionKey,
				"arrived_at":      rec.ArrivedAt,
				"status":          string(rec.Status),
				"data":            rec.Text,
			})
		},
		OnChat: func(ctx BatchContext, rec DecodedRecord) {
			logger.Info(`Chat: `+rec.Envelope.Sender+` says: "`+rec.Envelope.Message+`"`, loggingpkg.LogFields{
				"envelope_id":     rec.Envelope.ID,
				"sequence_number": rec.SequenceNumber,
			})
		},
		OnDecodeFailure: func(ctx BatchContext, rec DecodedRecord) {
			logger.Debug("Record is not a structured envelope", loggingpkg.LogFields{
				"index":           rec.Index,
				"sequence_number": rec.SequenceNumber,
				"reason":          rec.Err.Error(),
			})
		},
		OnBatchDone: func(ctx BatchContext, outcome BatchOutcome) {
			logger.Info("Batch processed", loggingpkg.LogFields{
				"status":          outcome.Status,
				"processed":       outcome.Processed,
				"decode_failures": outcome.DecodeFailures,
				"hook_failures":   outcome.HookFailures,
				"duration_ms":     ctx.Duration.Milliseconds(),
			})
		},
	}
}

// MetricsHooks returns pre-built hooks that record decode metrics.
func MetricsHooks(collector *metricspkg.Collector) DecodeHooks {
	return DecodeHooks{
		OnRecord: func(ctx BatchContext, rec DecodedRecord) {
			collector.ObserveRecord(string(rec.Status))
		},
		OnBatchDone: func(ctx BatchContext, outcome BatchOutcome) {
			collector.ObserveBatch(outcome.Status, ctx.Size)
		},
	}
}

// AlertingHooks returns pre-built hooks that trigger alerts on decode failures.
func AlertingHooks(alertFunc func(ctx BatchContext, rec DecodedRecord)) DecodeHooks {
	return DecodeHooks{
		OnDecodeFailure: alertFunc,
	}
}

// LogAlert is the default alert: an error-level structured log line.
func LogAlert(logger loggingpkg.ServiceLogger) func(ctx BatchContext, rec DecodedRecord) {
	return func(ctx BatchContext, rec DecodedRecord) {
		logger.Error("Record failed to decode", rec.Err, loggingpkg.LogFields{
			"index":           rec.Index,
			"sequence_number": rec.SequenceNumber,
			"partition_key":   rec.PartitionKey,
		})
	}
}
