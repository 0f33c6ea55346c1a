package chatflow

import (
	runtimepkg "github.com/drblury/chatflow/internal/runtime"
	configpkg "github.com/drblury/chatflow/internal/runtime/config"
	envelopepkg "github.com/drblury/chatflow/internal/runtime/envelope"
	errspkg "github.com/drblury/chatflow/internal/runtime/errors"
	idspkg "github.com/drblury/chatflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/chatflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/chatflow/internal/runtime/logging"
	metricspkg "github.com/drblury/chatflow/internal/runtime/metrics"
	partitionpkg "github.com/drblury/chatflow/internal/runtime/partition"
	transportpkg "github.com/drblury/chatflow/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies

	Envelope        = envelopepkg.Envelope
	EnvelopeBuilder = envelopepkg.Builder
	EnvelopeOption  = envelopepkg.Option
	KeyDeriver      = partitionpkg.KeyDeriver

	Producer        = runtimepkg.Producer
	ProducerOptions = runtimepkg.ProducerOptions
	PublishPolicy   = runtimepkg.PublishPolicy
	PublishResult   = runtimepkg.PublishResult
	Delivery        = runtimepkg.Delivery

	Consumer         = runtimepkg.Consumer
	ConsumerOptions  = runtimepkg.ConsumerOptions
	Decoder          = runtimepkg.Decoder
	DecodedRecord    = runtimepkg.DecodedRecord
	DecodeStatus     = runtimepkg.DecodeStatus
	PayloadExtractor = runtimepkg.PayloadExtractor
	BatchOutcome     = runtimepkg.BatchOutcome
	RecordError      = runtimepkg.RecordError
	Response         = runtimepkg.Response

	StreamConsumer        = runtimepkg.StreamConsumer
	StreamConsumerOptions = runtimepkg.StreamConsumerOptions
	HTTPOptions           = runtimepkg.HTTPOptions

	// Decode lifecycle hooks
	BatchContext = runtimepkg.BatchContext
	DecodeHooks  = runtimepkg.DecodeHooks

	MetricsCollector = metricspkg.Collector

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Stream transport types
	Submitter         = transportpkg.Submitter
	SubmitterFunc     = transportpkg.SubmitterFunc
	Acknowledgment    = transportpkg.Acknowledgment
	RawRecord         = transportpkg.RawRecord
	Batch             = transportpkg.Batch
	Transport         = transportpkg.Transport
	TransportBuilder  = transportpkg.Builder
	TransportConfig   = transportpkg.Config
	TransportRegistry = transportpkg.Registry
	Capabilities      = transportpkg.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	TryNewService  = runtimepkg.TryNewService
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	NewEnvelope        = envelopepkg.New
	NewEnvelopeBuilder = envelopepkg.NewBuilder
	WithIDGenerator    = envelopepkg.WithIDGenerator
	WithClock          = envelopepkg.WithClock

	NewKeyDeriver      = partitionpkg.New
	DerivePartitionKey = partitionpkg.Derive

	NewProducer        = runtimepkg.NewProducer
	ParsePublishPolicy = runtimepkg.ParsePublishPolicy
	NewConsumer        = runtimepkg.NewConsumer
	NewDecoder         = runtimepkg.NewDecoder
	PlainPayload       = runtimepkg.PlainPayload
	Base64Payload      = runtimepkg.Base64Payload
	Summarize          = runtimepkg.Summarize
	Failed             = runtimepkg.Failed
	NewStreamConsumer  = runtimepkg.NewStreamConsumer
	NewHTTPHandler     = runtimepkg.NewHTTPHandler

	// Decode lifecycle hooks
	LoggingHooks  = runtimepkg.LoggingHooks
	MetricsHooks  = runtimepkg.MetricsHooks
	AlertingHooks = runtimepkg.AlertingHooks
	LogAlert      = runtimepkg.LogAlert

	NewMetricsCollector = metricspkg.New

	// Transport registry
	// Import individual transports via: _ "github.com/drblury/chatflow/transport/kafka"
	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities
	NewBatch                 = transportpkg.NewBatch
	NewPublisherSubmitter    = transportpkg.NewPublisherSubmitter

	Marshal       = jsoncodec.Marshal
	MarshalIndent = jsoncodec.MarshalIndent
	Unmarshal     = jsoncodec.Unmarshal
	Encode        = jsoncodec.Encode
	Decode        = jsoncodec.Decode

	ErrConfigRequired     = errspkg.ErrConfigRequired
	ErrLoggerRequired     = errspkg.ErrLoggerRequired
	ErrSubmitterRequired  = errspkg.ErrSubmitterRequired
	ErrStreamNameRequired = errspkg.ErrStreamNameRequired
	ErrPublishFailed      = errspkg.ErrPublishFailed
	ErrProducerClosed     = errspkg.ErrProducerClosed
	ErrBatchMissing       = errspkg.ErrBatchMissing
	ErrBatchPanicked      = errspkg.ErrBatchPanicked
	ErrSubscriberRequired = errspkg.ErrSubscriberRequired
	ErrHookPanicked       = errspkg.ErrHookPanicked
	ErrPayloadTooLarge    = errspkg.ErrPayloadTooLarge

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewJSONServiceLogger = loggingpkg.NewJSONServiceLogger

	CreateULID = idspkg.CreateULID
	CreateUUID = idspkg.CreateUUID
)

// Publish policies.
const (
	PublishSync  = runtimepkg.PublishSync
	PublishAsync = runtimepkg.PublishAsync
)

// Decode statuses.
const (
	DecodeStructured = runtimepkg.DecodeStructured
	DecodeRaw        = runtimepkg.DecodeRaw
)

// Partition key algorithms.
const (
	AlgorithmSHA256 = partitionpkg.AlgorithmSHA256
	AlgorithmXXH3   = partitionpkg.AlgorithmXXH3
)
