package runtime

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metricspkg "github.com/drblury/chatflow/internal/runtime/metrics"
	"github.com/drblury/chatflow/transport"
)

func TestDecodeHooks_Dispatch(t *testing.T) {
	var calls []string
	hooks := DecodeHooks{
		OnRecord:        func(_ BatchContext, rec DecodedRecord) { calls = append(calls, "record:"+rec.SequenceNumber) },
		OnChat:          func(_ BatchContext, rec DecodedRecord) { calls = append(calls, "chat:"+rec.SequenceNumber) },
		OnDecodeFailure: func(_ BatchContext, rec DecodedRecord) { calls = append(calls, "failure:"+rec.SequenceNumber) },
		OnBatchDone:     func(_ BatchContext, o BatchOutcome) { calls = append(calls, "done:"+o.Status) },
	}

	_, err := newTestConsumer(hooks).Process(context.Background(), transport.NewBatch(
		rawRecord("1", `{"sender":"a","message":"b"}`),
		rawRecord("2", `nope`),
		rawRecord("3", `{"sender":"a"}`),
	))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"record:1", "chat:1",
		"record:2", "failure:2",
		"record:3",
		"done:success",
	}, calls)
}

func TestDecodeHooks_Merge(t *testing.T) {
	var order []string
	first := DecodeHooks{OnRecord: func(BatchContext, DecodedRecord) { order = append(order, "first") }}
	second := DecodeHooks{
		OnRecord:    func(BatchContext, DecodedRecord) { order = append(order, "second") },
		OnBatchDone: func(BatchContext, BatchOutcome) { order = append(order, "done") },
	}

	merged := first.Merge(second)
	merged.OnRecord(BatchContext{}, DecodedRecord{})
	merged.OnBatchDone(BatchContext{}, BatchOutcome{})

	assert.Equal(t, []string{"first", "second", "done"}, order)
	assert.Nil(t, merged.OnChat)
	assert.Nil(t, DecodeHooks{}.Merge(DecodeHooks{}).OnDecodeFailure)
}

func TestDecodeHooks_BatchContext(t *testing.T) {
	var got BatchContext
	hooks := DecodeHooks{OnBatchDone: func(ctx BatchContext, _ BatchOutcome) { got = ctx }}

	_, err := NewConsumer(ConsumerOptions{Hooks: hooks}).Process(context.Background(),
		transport.NewBatch(rawRecord("1", "a"), rawRecord("2", "b")))
	require.NoError(t, err)

	assert.Equal(t, 2, got.Size)
	assert.False(t, got.StartedAt.IsZero())
	assert.NotNil(t, got.Context)
	assert.GreaterOrEqual(t, got.Duration.Nanoseconds(), int64(0))
}

func TestLoggingHooks(t *testing.T) {
	logger := newCaptureLogger()

	_, err := newTestConsumer(LoggingHooks(logger)).Process(context.Background(), transport.NewBatch(
		rawRecord("1", `{"id":"e-1","sender":"bob","message":"yo"}`),
		rawRecord("2", `nope`),
	))
	require.NoError(t, err)

	chat, ok := logger.Find("info", `Chat: bob says: "yo"`)
	require.True(t, ok)
	assert.Equal(t, "e-1", chat.fields["envelope_id"])

	record, ok := logger.Find("debug", "Processing record")
	require.True(t, ok)
	assert.Equal(t, "1", record.fields["sequence_number"])
	assert.Equal(t, "pk-1", record.fields["partition_key"])

	_, ok = logger.Find("debug", "Record is not a structured envelope")
	assert.True(t, ok)

	done, ok := logger.Find("info", "Batch processed")
	require.True(t, ok)
	assert.Equal(t, 2, done.fields["processed"])
	assert.Equal(t, 1, done.fields["decode_failures"])
}

func TestMetricsHooks(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := metricspkg.New(registry)
	require.NoError(t, collector.Register())

	_, err := newTestConsumer(MetricsHooks(collector)).Process(context.Background(), transport.NewBatch(
		rawRecord("1", `{"sender":"bob","message":"yo"}`),
		rawRecord("2", `nope`),
		rawRecord("3", `also nope`),
	))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(registry, "chatflow_records_decoded_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(registry, "chatflow_batches_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAlertingHooks(t *testing.T) {
	var alerted []string
	hooks := AlertingHooks(func(_ BatchContext, rec DecodedRecord) {
		alerted = append(alerted, rec.SequenceNumber)
	})

	_, err := newTestConsumer(hooks).Process(context.Background(), transport.NewBatch(
		rawRecord("1", `{"sender":"bob","message":"yo"}`),
		rawRecord("2", `nope`),
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, alerted)
}

func TestLogAlert(t *testing.T) {
	logger := newCaptureLogger()

	_, err := newTestConsumer(AlertingHooks(LogAlert(logger))).Process(context.Background(),
		transport.NewBatch(rawRecord("7", `nope`)))
	require.NoError(t, err)

	entry, ok := logger.Find("error", "Record failed to decode")
	require.True(t, ok)
	assert.Error(t, entry.err)
	assert.Equal(t, "7", entry.fields["sequence_number"])
}
