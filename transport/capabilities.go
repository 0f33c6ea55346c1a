package transport

// Capabilities describes what a stream backend guarantees.
type Capabilities struct {
	// SupportsOrdering means records sharing a partition key are delivered in
	// submission order.
	SupportsOrdering bool

	// SupportsPartitioning means the partition key selects the shard/partition.
	SupportsPartitioning bool

	// SupportsBatching means consumers receive records in batches.
	SupportsBatching bool

	// SupportsSubscribe means the transport exposes a Subscriber; otherwise
	// batches arrive through an external trigger.
	SupportsSubscribe bool

	// MaxMessageSize is the maximum payload size in bytes (0 = unknown).
	MaxMessageSize int64

	// MaxPartitionKeyLength is the longest accepted partition key (0 = unknown).
	MaxPartitionKeyLength int

	Name string
}

// AcceptsKeyLength reports whether keys of length n fit the backend.
func (c Capabilities) AcceptsKeyLength(n int) bool {
	return c.MaxPartitionKeyLength == 0 || n <= c.MaxPartitionKeyLength
}

// AcceptsPayload reports whether a payload of size bytes fits the backend.
func (c Capabilities) AcceptsPayload(size int) bool {
	return c.MaxMessageSize == 0 || int64(size) <= c.MaxMessageSize
}

var (
	// KinesisCapabilities for Amazon Kinesis Data Streams.
	KinesisCapabilities = Capabilities{
		Name:                  "kinesis",
		SupportsOrdering:      true,
		SupportsPartitioning:  true,
		SupportsBatching:      true,
		SupportsSubscribe:     false,
		MaxMessageSize:        1048576, // 1 MiB
		MaxPartitionKeyLength: 256,
	}

	// KafkaCapabilities for Apache Kafka.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsPartitioning: true,
		SupportsBatching:     true,
		SupportsSubscribe:    true,
		MaxMessageSize:       1048576, // broker default message.max.bytes
	}

	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:              "channel",
		SupportsOrdering:  true,
		SupportsSubscribe: true,
	}
)
