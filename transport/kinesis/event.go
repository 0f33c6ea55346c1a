package kinesis

import (
	"github.com/aws/aws-lambda-go/events"

	errspkg "github.com/drblury/chatflow/internal/runtime/errors"
	"github.com/drblury/chatflow/transport"
)

// Event is the Lambda payload of a Kinesis trigger. Records stays nil when the
// key is absent, which is reported as a missing batch rather than an empty one.
type Event struct {
	Records []EventRecord `json:"Records"`
}

// EventRecord is one trigger record.
type EventRecord struct {
	EventID        string `json:"eventID"`
	EventName      string `json:"eventName"`
	EventSourceArn string `json:"eventSourceARN"`
	Kinesis        Record `json:"kinesis"`
}

// Record carries Data as the base64 text found in the event, so a record
// with malformed data fails alone when its payload is extracted instead of
// failing the whole event when it is unmarshalled.
type Record struct {
	SequenceNumber              string                  `json:"sequenceNumber"`
	PartitionKey                string                  `json:"partitionKey"`
	ApproximateArrivalTimestamp events.SecondsEpochTime `json:"approximateArrivalTimestamp"`
	Data                        string                  `json:"data"`
}

// BatchFromEvent converts a trigger payload into a batch, preserving record
// order. Record data stays base64 encoded; consume it with a base64 payload
// extractor.
func BatchFromEvent(ev *Event) (*transport.Batch, error) {
	if ev == nil || ev.Records == nil {
		return nil, errspkg.ErrBatchMissing
	}

	records := make([]transport.RawRecord, len(ev.Records))
	for i, rec := range ev.Records {
		records[i] = transport.RawRecord{
			SequenceNumber:              rec.Kinesis.SequenceNumber,
			PartitionKey:                rec.Kinesis.PartitionKey,
			ApproximateArrivalTimestamp: rec.Kinesis.ApproximateArrivalTimestamp.Time,
			Data:                        []byte(rec.Kinesis.Data),
		}
	}
	return transport.NewBatch(records...), nil
}
