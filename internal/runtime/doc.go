/*
Package runtime implements the chat message pipeline behind chatflow.

# Architecture Overview

Messages enter over HTTP, are wrapped in an envelope and published onto a
partitioned, ordered stream. Record batches read back from the stream are
decoded one record at a time and summarised into a single outcome.

# Package Structure

## Producer (producer.go)

The Producer builds an envelope, derives its partition key and submits the
JSON payload through a transport.Submitter. The publish policy is fixed per
Producer:
  - sync: the call waits for the acknowledgment and returns transport errors
    wrapped in ErrPublishFailed
  - async: the call returns a pending Delivery; failures are logged

## Consumer (decoder.go, aggregator.go, consumer.go, hooks.go)

The Decoder turns raw records into DecodedRecords in input order. A record
that is not a JSON object is kept raw with its reason and never fails the
batch. DecodeHooks observe every record; LoggingHooks, MetricsHooks and
AlertingHooks are provided. Summarize and Failed build the BatchOutcome.

## Stream consumption (stream_consumer.go)

StreamConsumer groups messages from a watermill subscriber into batches for
transports that deliver records to the process (Kafka, in-memory channel).

## HTTP (httpapi.go)

POST /api/send and GET /healthz on a chi router.

## Service (service.go)

Service wires the transport selected by configuration to all of the above
and serves HTTP and Prometheus metrics until its context ends.

# Sub-packages

  - config/: Service configuration, validation and loading
  - envelope/: The published message unit
  - errors/: Sentinel errors
  - ids/: UUID and ULID generation
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters
  - metrics/: Prometheus collectors
  - partition/: Partition key derivation

# Usage Example

	cfg, err := config.Load("")
	if err != nil {
		return err
	}

	svc, err := runtime.TryNewService(cfg, logger, ctx, runtime.ServiceDependencies{})
	if err != nil {
		return err
	}
	return svc.Start(ctx)
*/
package runtime
