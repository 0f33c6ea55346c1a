package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drblury/chatflow/internal/runtime/jsoncodec"
)

type stubPublisher struct {
	calls  int
	result PublishResult
	err    error
}

func (p *stubPublisher) Publish(ctx context.Context, sender, message string) (PublishResult, error) {
	p.calls++
	if p.err != nil {
		return PublishResult{}, p.err
	}
	res := p.result
	res.Sender = sender
	res.Message = message
	return res, nil
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestSendRejectsInvalidBodies(t *testing.T) {
	publisher := &stubPublisher{}
	handler := NewHTTPHandler(publisher, HTTPOptions{})

	for _, body := range []string{
		`{"sender":"alice"}`,
		`{"message":"hi"}`,
		`{"sender":"","message":"hi"}`,
		`{}`,
		`not json`,
		`{"sender":1,"message":"hi"}`,
		``,
	} {
		rec := doRequest(t, handler, http.MethodPost, "/api/send", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, `{"error":"Both sender and message are required"}`, rec.Body.String(), body)
	}
	assert.Zero(t, publisher.calls)
}

func TestSendPublishes(t *testing.T) {
	producer, err := NewProducer(&recordingSubmitter{}, "chat", ProducerOptions{})
	require.NoError(t, err)
	handler := NewHTTPHandler(producer, HTTPOptions{RequestTimeout: time.Second})

	rec := doRequest(t, handler, http.MethodPost, "/api/send", `{"sender":"alice","message":"hi"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Message string `json:"message"`
		Data    struct {
			ID           string `json:"id"`
			Timestamp    string `json:"timestamp"`
			Sender       string `json:"sender"`
			Message      string `json:"message"`
			PartitionKey string `json:"partitionKey"`
			Delivery     struct {
				ShardID        string `json:"shardId"`
				SequenceNumber string `json:"sequenceNumber"`
			} `json:"delivery"`
		} `json:"data"`
	}
	require.NoError(t, jsoncodec.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Message sent to stream", body.Message)
	assert.Equal(t, "alice", body.Data.Sender)
	assert.Equal(t, "hi", body.Data.Message)
	assert.NotEmpty(t, body.Data.ID)
	assert.Regexp(t, hexKey, body.Data.PartitionKey)
	assert.Equal(t, "shardId-000000000000", body.Data.Delivery.ShardID)
	assert.NotEmpty(t, body.Data.Delivery.SequenceNumber)
}

func TestSendReportsPublishFailure(t *testing.T) {
	logger := newCaptureLogger()
	handler := NewHTTPHandler(&stubPublisher{err: errTransportDown}, HTTPOptions{Logger: logger})

	rec := doRequest(t, handler, http.MethodPost, "/api/send", `{"sender":"alice","message":"hi"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to send message"}`, rec.Body.String())

	entry, ok := logger.Find("error", "Error sending message")
	require.True(t, ok)
	assert.ErrorIs(t, entry.err, errTransportDown)
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, NewHTTPHandler(&stubPublisher{}, HTTPOptions{}), http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSendRejectsOtherMethods(t *testing.T) {
	rec := doRequest(t, NewHTTPHandler(&stubPublisher{}, HTTPOptions{}), http.MethodGet, "/api/send", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
