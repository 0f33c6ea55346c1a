package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Publish policies accepted by PublishPolicy.
const (
	PublishPolicySync  = "sync"
	PublishPolicyAsync = "async"
)

// Config groups the settings needed to run the producer, the consumer and the
// HTTP shim. Each transport only reads the keys that are relevant to it.
type Config struct {
	// StreamSystem selects the stream transport: "kinesis", "kafka" or "channel".
	StreamSystem string `mapstructure:"stream_system"`
	// StreamName is the Kinesis stream or Kafka topic envelopes are published to.
	StreamName string `mapstructure:"stream_name"`

	// Kafka configuration.
	KafkaBrokers       []string `mapstructure:"kafka_brokers"`
	KafkaConsumerGroup string   `mapstructure:"kafka_consumer_group"`

	// AWS (Kinesis) configuration.
	AWSRegion          string `mapstructure:"aws_region"`
	AWSAccessKeyID     string `mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `mapstructure:"aws_secret_access_key"`
	// AWSEndpoint optionally points to a custom endpoint (for example,
	// LocalStack in local development).
	AWSEndpoint string `mapstructure:"aws_endpoint"`

	// PublishPolicy is "sync" (default) or "async".
	PublishPolicy string `mapstructure:"publish_policy"`
	// AsyncPublishTimeout bounds a detached async submission.
	AsyncPublishTimeout time.Duration `mapstructure:"async_publish_timeout"`

	PartitionKeyAlgorithm string `mapstructure:"partition_key_algorithm"`
	PartitionKeyLength    int    `mapstructure:"partition_key_length"`
	// EnvelopeIDFormat is "uuid" (default) or "ulid".
	EnvelopeIDFormat string `mapstructure:"envelope_id_format"`

	// HTTP configuration.
	HTTPPort       int           `mapstructure:"http_port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Metrics configuration.
	MetricsEnabled bool `mapstructure:"metrics_enabled"`
	// MetricsPort is the port where Prometheus metrics will be exposed.
	MetricsPort int `mapstructure:"metrics_port"`

	// AlertOnDecodeFailure raises an alert for every record that fails to decode.
	AlertOnDecodeFailure bool `mapstructure:"alert_on_decode_failure"`

	// Subscriber batching used by the stream consumer.
	BatchSize   int           `mapstructure:"batch_size"`
	BatchLinger time.Duration `mapstructure:"batch_linger"`

	LogLevel string `mapstructure:"log_level"`
}

// Getter methods to implement transport.Config interface.
func (c *Config) GetStreamSystem() string       { return c.StreamSystem }
func (c *Config) GetStreamName() string         { return c.StreamName }
func (c *Config) GetKafkaBrokers() []string     { return c.KafkaBrokers }
func (c *Config) GetKafkaConsumerGroup() string { return c.KafkaConsumerGroup }
func (c *Config) GetAWSRegion() string          { return c.AWSRegion }
func (c *Config) GetAWSAccessKeyID() string     { return c.AWSAccessKeyID }
func (c *Config) GetAWSSecretAccessKey() string { return c.AWSSecretAccessKey }
func (c *Config) GetAWSEndpoint() string        { return c.AWSEndpoint }

func (c Config) String() string {
	// Create a copy to avoid modifying the original
	copy := c
	if copy.AWSSecretAccessKey != "" {
		copy.AWSSecretAccessKey = "***REDACTED***"
	}
	if copy.AWSAccessKeyID != "" {
		copy.AWSAccessKeyID = "***REDACTED***"
	}
	// Use a type alias to avoid infinite recursion when printing
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(copy))
}

// Validate checks that the configuration has all required fields for the selected transport.
// Returns an error describing any missing or invalid configuration.
// Note: validation of stream system values is lenient to allow custom transport builders.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.StreamName) == "" {
		errs = append(errs, errors.New("stream: name is required"))
	}
	errs = append(errs, c.validateTransport()...)
	errs = append(errs, c.validatePublish()...)
	errs = append(errs, c.validateBatching()...)
	errs = append(errs, c.validatePorts()...)

	return errors.Join(errs...)
}

// validateTransport checks transport-specific required fields.
func (c *Config) validateTransport() []error {
	switch strings.ToLower(c.StreamSystem) {
	case "kafka":
		if len(c.KafkaBrokers) == 0 {
			return []error{errors.New("kafka: brokers are required")}
		}
	case "kinesis":
		if c.AWSRegion == "" {
			return []error{errors.New("kinesis: region is required")}
		}
	}
	// channel and custom transports have no required config
	return nil
}

func (c *Config) validatePublish() []error {
	var errs []error
	switch strings.ToLower(c.PublishPolicy) {
	case "", PublishPolicySync, PublishPolicyAsync:
	default:
		errs = append(errs, fmt.Errorf("publish: unknown policy %q", c.PublishPolicy))
	}
	if c.AsyncPublishTimeout < 0 {
		errs = append(errs, errors.New("publish: async timeout cannot be negative"))
	}
	switch strings.ToLower(c.EnvelopeIDFormat) {
	case "", "uuid", "ulid":
	default:
		errs = append(errs, fmt.Errorf("envelope: unknown id format %q", c.EnvelopeIDFormat))
	}
	if c.PartitionKeyLength < 0 {
		errs = append(errs, errors.New("partition: key length cannot be negative"))
	}
	return errs
}

func (c *Config) validateBatching() []error {
	var errs []error
	if c.BatchSize < 0 {
		errs = append(errs, errors.New("batch: size cannot be negative"))
	}
	if c.BatchLinger < 0 {
		errs = append(errs, errors.New("batch: linger cannot be negative"))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("http: request timeout cannot be negative"))
	}
	return errs
}

// validatePorts checks port configuration values.
func (c *Config) validatePorts() []error {
	var errs []error
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http: invalid port %d", c.HTTPPort))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics: invalid port %d", c.MetricsPort))
	}
	return errs
}

// ValidateConfig is a convenience function to validate a config pointer.
// Returns nil if the config is valid.
func ValidateConfig(c *Config) error {
	if c == nil {
		return errors.New("config is nil")
	}
	return c.Validate()
}
