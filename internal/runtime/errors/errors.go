package errors

import sterrors "errors"

var (
	ErrConfigRequired     = sterrors.New("chatflow: configuration is required")
	ErrLoggerRequired     = sterrors.New("chatflow: logger is required")
	ErrSubmitterRequired  = sterrors.New("chatflow: stream submitter is required")
	ErrStreamNameRequired = sterrors.New("chatflow: stream name is required")
	ErrPublishFailed      = sterrors.New("chatflow: publish failed")
	ErrProducerClosed     = sterrors.New("chatflow: producer is closed")
	ErrBatchMissing       = sterrors.New("chatflow: batch records are missing")
	ErrBatchPanicked      = sterrors.New("chatflow: batch processing panicked")
	ErrSubscriberRequired = sterrors.New("chatflow: transport has no subscriber")
	ErrHookPanicked       = sterrors.New("chatflow: record hook panicked")
	ErrPayloadTooLarge    = sterrors.New("chatflow: payload exceeds transport limit")
)
