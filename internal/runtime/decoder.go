package runtime

import (
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	envelopepkg "github.com/drblury/chatflow/internal/runtime/envelope"
	"github.com/drblury/chatflow/internal/runtime/jsoncodec"
	"github.com/drblury/chatflow/transport"
)

// DecodeStatus classifies a decoded record.
type DecodeStatus string

const (
	// DecodeStructured marks a payload that parsed as a JSON object.
	DecodeStructured DecodeStatus = "structured"
	// DecodeRaw marks a payload kept as plain text.
	DecodeRaw DecodeStatus = "raw"
)

var (
	errNotJSON   = errors.New("payload is not valid JSON")
	errNotObject = errors.New("payload is not a JSON object")
)

// DecodedRecord is the per-record output of the decoder.
type DecodedRecord struct {
	Index          int
	SequenceNumber string
	PartitionKey   string
	ArrivedAt      time.Time

	Status DecodeStatus
	// Text is the extracted payload text.
	Text string
	// Envelope holds the fields present in a structured payload.
	Envelope envelopepkg.Envelope
	// Err is the reason a record was kept raw.
	Err error
	// HookErr is set when a record hook panicked while handling this record.
	HookErr error
}

// HasChat reports whether the payload carried both a sender and a message.
func (r DecodedRecord) HasChat() bool {
	return r.Status == DecodeStructured && r.Envelope.Sender != "" && r.Envelope.Message != ""
}

// PayloadExtractor turns record bytes into payload text.
type PayloadExtractor func(data []byte) (string, error)

// PlainPayload returns the bytes unchanged. Transports that already decoded
// the wire encoding (the Lambda runtime, watermill subscribers) use it.
func PlainPayload(data []byte) (string, error) {
	return string(data), nil
}

// Base64Payload decodes standard base64 record data.
func Base64Payload(data []byte) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(string(data))
	if err != nil {
		return "", fmt.Errorf("decode base64 payload: %w", err)
	}
	return string(decoded), nil
}

// Decoder turns raw stream records into DecodedRecords. It keeps no state
// between batches.
type Decoder struct {
	extract PayloadExtractor
}

// NewDecoder creates a Decoder. A nil extractor selects PlainPayload.
func NewDecoder(extract PayloadExtractor) *Decoder {
	if extract == nil {
		extract = PlainPayload
	}
	return &Decoder{extract: extract}
}

// DecodeBatch decodes every record, preserving input order. A record that
// fails to decode is returned as raw with Err set and never stops the batch.
func (d *Decoder) DecodeBatch(records []transport.RawRecord) []DecodedRecord {
	return d.decodeEach(records, nil)
}

// decodeEach decodes records in order and passes each one to react before
// decoding the next. react may annotate the record it is given.
func (d *Decoder) decodeEach(records []transport.RawRecord, react func(*DecodedRecord)) []DecodedRecord {
	decoded := make([]DecodedRecord, len(records))
	for i, rec := range records {
		decoded[i] = d.Decode(i, rec)
		if react != nil {
			react(&decoded[i])
		}
	}
	return decoded
}

// Decode decodes a single record at position index.
func (d *Decoder) Decode(index int, rec transport.RawRecord) DecodedRecord {
	out := DecodedRecord{
		Index:          index,
		SequenceNumber: rec.SequenceNumber,
		PartitionKey:   rec.PartitionKey,
		ArrivedAt:      rec.ApproximateArrivalTimestamp,
		Status:         DecodeRaw,
	}

	text, err := d.extract(rec.Data)
	if err != nil {
		out.Text = string(rec.Data)
		out.Err = err
		return out
	}
	out.Text = text

	env, err := parseEnvelope(text)
	if err != nil {
		out.Err = err
		return out
	}
	out.Status = DecodeStructured
	out.Envelope = env
	return out
}

// parseEnvelope accepts any JSON object and copies the string fields of the
// envelope shape that are present. Other field types are ignored.
func parseEnvelope(text string) (envelopepkg.Envelope, error) {
	if !jsoncodec.Valid([]byte(text)) {
		return envelopepkg.Envelope{}, errNotJSON
	}
	var value any
	if err := jsoncodec.UnmarshalString(text, &value); err != nil {
		return envelopepkg.Envelope{}, fmt.Errorf("parse payload: %w", err)
	}
	fields, ok := value.(map[string]any)
	if !ok {
		return envelopepkg.Envelope{}, errNotObject
	}

	return envelopepkg.Envelope{
		ID:        stringField(fields, "id"),
		Timestamp: stringField(fields, "timestamp"),
		Sender:    stringField(fields, "sender"),
		Message:   stringField(fields, "message"),
	}, nil
}

func stringField(fields map[string]any, key string) string {
	value, _ := fields[key].(string)
	return value
}
