package runtime

import (
	"fmt"
	"time"

	envelopepkg "github.com/drblury/chatflow/internal/runtime/envelope"
)

// Batch statuses. A partial failure is never reported: per-record decode
// failures are counted, not escalated.
const (
	BatchSuccess = "success"
	BatchFailure = "failure"
)

// RecordError describes one record that could not be decoded or whose hooks
// panicked.
type RecordError struct {
	Index          int    `json:"index"`
	SequenceNumber string `json:"sequenceNumber"`
	Reason         string `json:"reason"`
}

// BatchOutcome is the result reported back to the stream runtime.
type BatchOutcome struct {
	Status         string        `json:"status"`
	Message        string        `json:"message"`
	Processed      int           `json:"processed"`
	DecodeFailures int           `json:"decodeFailures"`
	HookFailures   int           `json:"hookFailures,omitempty"`
	Errors         []RecordError `json:"errors,omitempty"`
	Timestamp      string        `json:"timestamp"`
	Details        string        `json:"details,omitempty"`
}

// Succeeded reports whether the batch should be treated as processed.
func (o BatchOutcome) Succeeded() bool {
	return o.Status == BatchSuccess
}

// Summarize counts the decoded records. It always reports success; decode
// failures and hook failures are listed per record.
func Summarize(decoded []DecodedRecord, completedAt time.Time) BatchOutcome {
	outcome := BatchOutcome{
		Status:    BatchSuccess,
		Message:   fmt.Sprintf("Successfully processed %d records", len(decoded)),
		Processed: len(decoded),
		Timestamp: envelopepkg.FormatTimestamp(completedAt),
	}
	for _, rec := range decoded {
		if rec.Err != nil {
			outcome.DecodeFailures++
			outcome.Errors = append(outcome.Errors, recordError(rec, rec.Err))
		}
		if rec.HookErr != nil {
			outcome.HookFailures++
			outcome.Errors = append(outcome.Errors, recordError(rec, rec.HookErr))
		}
	}
	return outcome
}

func recordError(rec DecodedRecord, err error) RecordError {
	return RecordError{
		Index:          rec.Index,
		SequenceNumber: rec.SequenceNumber,
		Reason:         err.Error(),
	}
}

// Failed builds the outcome for a batch that could not be processed at all.
func Failed(err error, completedAt time.Time) BatchOutcome {
	outcome := BatchOutcome{
		Status:    BatchFailure,
		Message:   "Failed to process stream records",
		Timestamp: envelopepkg.FormatTimestamp(completedAt),
	}
	if err != nil {
		outcome.Details = err.Error()
	}
	return outcome
}
