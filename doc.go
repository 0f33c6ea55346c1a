// Package chatflow publishes chat messages to a partitioned stream and
// consumes them back in batches. A message becomes an Envelope (id, timestamp,
// sender, message), is assigned a partition key derived from the sender and
// envelope id, and is appended to the configured stream. On the consuming side
// a batch of raw records is decoded record by record; malformed records are
// reported but never fail the batch.
//
// Service wires everything from Config: the stream transport, the Producer
// with its publish policy, the Consumer with its decode hooks, the chi HTTP
// API, and the optional Prometheus endpoint. A minimal setup loads Config with
// LoadConfig, creates a Service, and calls Start.
//
// # Transports
//
// chatflow ships three stream transports:
//   - kinesis: Amazon Kinesis Data Streams, consumed through a Lambda trigger
//   - kafka: Kafka topics, keyed by partition key, consumed through a consumer group
//   - channel: in-memory Go channels for tests and local runs
//
// Import "github.com/drblury/chatflow/transport/transports" to register all of
// them, or import individual transport packages.
//
// # Publish policies
//
// PublishSync waits for the stream acknowledgment and reports submission
// failures to the caller. PublishAsync returns as soon as the envelope is
// built; its Delivery resolves later and failures are logged. Producer.Flush
// waits for outstanding async submissions.
//
// # Decode hooks
//
// DecodeHooks observe every decoded record and the final BatchOutcome.
// LoggingHooks, MetricsHooks, and AlertingHooks cover the common cases and can
// be combined with DecodeHooks.Merge.
package chatflow
