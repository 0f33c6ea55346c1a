package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrConfigRequired", ErrConfigRequired, "chatflow: configuration is required"},
		{"ErrLoggerRequired", ErrLoggerRequired, "chatflow: logger is required"},
		{"ErrSubmitterRequired", ErrSubmitterRequired, "chatflow: stream submitter is required"},
		{"ErrStreamNameRequired", ErrStreamNameRequired, "chatflow: stream name is required"},
		{"ErrPublishFailed", ErrPublishFailed, "chatflow: publish failed"},
		{"ErrProducerClosed", ErrProducerClosed, "chatflow: producer is closed"},
		{"ErrBatchMissing", ErrBatchMissing, "chatflow: batch records are missing"},
		{"ErrBatchPanicked", ErrBatchPanicked, "chatflow: batch processing panicked"},
		{"ErrSubscriberRequired", ErrSubscriberRequired, "chatflow: transport has no subscriber"},
		{"ErrHookPanicked", ErrHookPanicked, "chatflow: record hook panicked"},
		{"ErrPayloadTooLarge", ErrPayloadTooLarge, "chatflow: payload exceeds transport limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, tt.err.Error())
			}
		})
	}
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: %w", ErrPublishFailed, errors.New("throttled"))
	if !errors.Is(wrapped, ErrPublishFailed) {
		t.Fatal("expected wrapped error to match ErrPublishFailed")
	}
	if errors.Is(wrapped, ErrBatchMissing) {
		t.Fatal("did not expect wrapped error to match ErrBatchMissing")
	}
}
