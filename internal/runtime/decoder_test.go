package runtime

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/chatflow/transport"
)

func TestDecodeStructuredEnvelope(t *testing.T) {
	decoded := NewDecoder(nil).DecodeBatch([]transport.RawRecord{
		rawRecord("1", `{"sender":"bob","message":"yo"}`),
	})

	require.Len(t, decoded, 1)
	rec := decoded[0]
	assert.Equal(t, DecodeStructured, rec.Status)
	assert.NoError(t, rec.Err)
	assert.Equal(t, "bob", rec.Envelope.Sender)
	assert.Equal(t, "yo", rec.Envelope.Message)
	assert.True(t, rec.HasChat())
	assert.Equal(t, "1", rec.SequenceNumber)
	assert.Equal(t, "pk-1", rec.PartitionKey)
	assert.False(t, rec.ArrivedAt.IsZero())
}

func TestDecodeRoundTripsPublishedEnvelope(t *testing.T) {
	sub := &recordingSubmitter{}
	producer, err := NewProducer(sub, "chat", ProducerOptions{})
	require.NoError(t, err)
	result, err := producer.Publish(context.Background(), "alice", "hi")
	require.NoError(t, err)

	payload := sub.Submissions()[0].payload
	decoded := NewDecoder(nil).DecodeBatch([]transport.RawRecord{{Data: payload}})

	require.Len(t, decoded, 1)
	assert.Equal(t, DecodeStructured, decoded[0].Status)
	assert.Equal(t, result.Envelope(), decoded[0].Envelope)
}

func TestDecodeKeepsInvalidPayloadsRaw(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		reason  error
	}{
		{"plain text", "not json", errNotJSON},
		{"truncated object", `{"sender":"bob"`, errNotJSON},
		{"array", `["bob","yo"]`, errNotObject},
		{"string", `"hello"`, errNotObject},
		{"number", `42`, errNotObject},
		{"null", `null`, errNotObject},
		{"empty", ``, errNotJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := NewDecoder(nil).DecodeBatch([]transport.RawRecord{rawRecord("1", tt.payload)})
			require.Len(t, decoded, 1)
			assert.Equal(t, DecodeRaw, decoded[0].Status)
			assert.ErrorIs(t, decoded[0].Err, tt.reason)
			assert.Equal(t, tt.payload, decoded[0].Text)
			assert.False(t, decoded[0].HasChat())
		})
	}
}

func TestDecodePartialEnvelope(t *testing.T) {
	decoded := NewDecoder(nil).DecodeBatch([]transport.RawRecord{
		rawRecord("1", `{"sender":"bob"}`),
		rawRecord("2", `{"sender":"bob","message":7,"extra":true}`),
		rawRecord("3", `{}`),
	})

	for _, rec := range decoded {
		assert.Equal(t, DecodeStructured, rec.Status)
		assert.NoError(t, rec.Err)
		assert.False(t, rec.HasChat())
	}
	assert.Equal(t, "bob", decoded[0].Envelope.Sender)
	assert.Empty(t, decoded[1].Envelope.Message)
}

func TestDecodePreservesOrderAndIsolatesFaults(t *testing.T) {
	records := []transport.RawRecord{
		rawRecord("1", `{"sender":"a","message":"one"}`),
		rawRecord("2", `garbage`),
		rawRecord("3", `{"sender":"c","message":"three"}`),
		rawRecord("4", `[1,2]`),
		rawRecord("5", `{"sender":"e","message":"five"}`),
	}

	decoded := NewDecoder(nil).DecodeBatch(records)

	require.Len(t, decoded, len(records))
	for i, rec := range decoded {
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, records[i].SequenceNumber, rec.SequenceNumber)
	}
	assert.Equal(t, []DecodeStatus{DecodeStructured, DecodeRaw, DecodeStructured, DecodeRaw, DecodeStructured},
		[]DecodeStatus{decoded[0].Status, decoded[1].Status, decoded[2].Status, decoded[3].Status, decoded[4].Status})
	assert.Equal(t, "three", decoded[2].Envelope.Message)
}

func TestDecodeEachReactsBeforeNextRecord(t *testing.T) {
	var order []string
	decoded := NewDecoder(nil).decodeEach([]transport.RawRecord{
		rawRecord("1", `{"sender":"a","message":"one"}`),
		rawRecord("2", `garbage`),
	}, func(rec *DecodedRecord) {
		order = append(order, rec.SequenceNumber)
		rec.HookErr = errTransportDown
	})

	assert.Equal(t, []string{"1", "2"}, order)
	require.Len(t, decoded, 2)
	assert.ErrorIs(t, decoded[0].HookErr, errTransportDown)
	assert.ErrorIs(t, decoded[1].HookErr, errTransportDown)
	assert.Equal(t, decoded[0].Envelope, NewDecoder(nil).DecodeBatch([]transport.RawRecord{rawRecord("1", `{"sender":"a","message":"one"}`)})[0].Envelope)
}

func TestDecodeEmptyBatch(t *testing.T) {
	decoded := NewDecoder(nil).DecodeBatch(nil)
	assert.Empty(t, decoded)
}

func TestBase64Payload(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString([]byte(`{"sender":"bob","message":"yo"}`))
	decoder := NewDecoder(Base64Payload)

	decoded := decoder.DecodeBatch([]transport.RawRecord{
		rawRecord("1", encoded),
		rawRecord("2", "%%% not base64"),
	})

	require.Len(t, decoded, 2)
	assert.True(t, decoded[0].HasChat())
	assert.Equal(t, `{"sender":"bob","message":"yo"}`, decoded[0].Text)

	assert.Equal(t, DecodeRaw, decoded[1].Status)
	require.Error(t, decoded[1].Err)
	assert.Contains(t, decoded[1].Err.Error(), "base64")
	assert.Equal(t, "%%% not base64", decoded[1].Text)
}
