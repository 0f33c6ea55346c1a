package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	loggingpkg "github.com/drblury/chatflow/internal/runtime/logging"
	"github.com/drblury/chatflow/transport"
)

type submission struct {
	stream  string
	key     string
	payload []byte
}

// recordingSubmitter acknowledges every submission with an increasing sequence number.
type recordingSubmitter struct {
	mu          sync.Mutex
	submissions []submission
	err         error
	release     chan struct{}
}

func (s *recordingSubmitter) Submit(ctx context.Context, stream, partitionKey string, payload []byte) (transport.Acknowledgment, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return transport.Acknowledgment{}, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return transport.Acknowledgment{}, s.err
	}
	s.submissions = append(s.submissions, submission{stream: stream, key: partitionKey, payload: payload})
	return transport.Acknowledgment{
		Stream:         stream,
		ShardID:        "shardId-000000000000",
		SequenceNumber: fmt.Sprintf("%056d", len(s.submissions)),
	}, nil
}

func (s *recordingSubmitter) Submissions() []submission {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]submission(nil), s.submissions...)
}

var errTransportDown = errors.New("transport down")

type logEntry struct {
	level  string
	msg    string
	err    error
	fields loggingpkg.LogFields
}

// captureLogger records every log line, including the fields added through With.
type captureLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	base    loggingpkg.LogFields
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *captureLogger) With(fields loggingpkg.LogFields) loggingpkg.ServiceLogger {
	merged := loggingpkg.LogFields{}
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &captureLogger{mu: l.mu, entries: l.entries, base: merged}
}

func (l *captureLogger) record(level, msg string, err error, fields loggingpkg.LogFields) {
	merged := loggingpkg.LogFields{}
	for k, v := range l.base {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, err: err, fields: merged})
}

func (l *captureLogger) Debug(msg string, fields loggingpkg.LogFields) {
	l.record("debug", msg, nil, fields)
}

func (l *captureLogger) Info(msg string, fields loggingpkg.LogFields) {
	l.record("info", msg, nil, fields)
}

func (l *captureLogger) Error(msg string, err error, fields loggingpkg.LogFields) {
	l.record("error", msg, err, fields)
}

func (l *captureLogger) Trace(msg string, fields loggingpkg.LogFields) {
	l.record("trace", msg, nil, fields)
}

func (l *captureLogger) Entries() []logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]logEntry(nil), *l.entries...)
}

func (l *captureLogger) Find(level, msg string) (logEntry, bool) {
	for _, e := range l.Entries() {
		if e.level == level && e.msg == msg {
			return e, true
		}
	}
	return logEntry{}, false
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequenceIDs(ids ...string) func() string {
	var mu sync.Mutex
	next := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		id := ids[next%len(ids)]
		next++
		return id
	}
}

func rawRecord(seq string, data string) transport.RawRecord {
	return transport.RawRecord{
		SequenceNumber:              seq,
		PartitionKey:                "pk-" + seq,
		ApproximateArrivalTimestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Data:                        []byte(data),
	}
}
