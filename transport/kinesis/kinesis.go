// Package kinesis provides the Amazon Kinesis Data Streams transport for chatflow.
// Records are submitted with PutRecord; consumption happens through a Lambda
// trigger, so the transport exposes no Subscriber. See BatchFromEvent.
package kinesis

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	amazonkinesis "github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/aws-sdk-go-v2/service/kinesis/types"
	"github.com/aws/smithy-go"

	"github.com/drblury/chatflow/transport"
)

// TransportName is the name used to register this transport.
const TransportName = "kinesis"

// PutRecordAPI is the slice of the Kinesis client the submitter uses.
type PutRecordAPI interface {
	PutRecord(ctx context.Context, params *amazonkinesis.PutRecordInput, optFns ...func(*amazonkinesis.Options)) (*amazonkinesis.PutRecordOutput, error)
}

// DefaultConfigLoader allows overriding the AWS config loader for testing.
var DefaultConfigLoader = awsconfig.LoadDefaultConfig

// ClientFactory allows overriding the Kinesis client creation for testing.
var ClientFactory = func(cfg aws.Config, optFns ...func(*amazonkinesis.Options)) PutRecordAPI {
	return amazonkinesis.NewFromConfig(cfg, optFns...)
}

func init() {
	Register()
}

// Register adds the transport to the default registry.
func Register() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KinesisCapabilities)
}

// Build creates a Kinesis transport from the AWS settings in cfg.
func Build(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	awsCfg, err := createAWSConfig(ctx, cfg, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	var optFns []func(*amazonkinesis.Options)
	if endpoint := cfg.GetAWSEndpoint(); endpoint != "" {
		optFns = append(optFns, func(o *amazonkinesis.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	logger.Info("Created Kinesis client", watermill.LogFields{
		"region":          awsCfg.Region,
		"stream":          cfg.GetStreamName(),
		"custom_endpoint": cfg.GetAWSEndpoint() != "",
	})

	return transport.Transport{
		Submitter: NewSubmitter(ClientFactory(awsCfg, optFns...), logger),
	}, nil
}

// Capabilities returns the capabilities of this transport.
func Capabilities() transport.Capabilities {
	return transport.KinesisCapabilities
}

func createAWSConfig(ctx context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error

	region := cfg.GetAWSRegion()
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	if accessKey, secretKey := cfg.GetAWSAccessKeyID(), cfg.GetAWSSecretAccessKey(); accessKey != "" && secretKey != "" {
		logger.Info("Using static AWS credentials from config", nil)
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}

	awsCfg, err := DefaultConfigLoader(ctx, opts...)
	if err != nil {
		logger.Error("Failed to load AWS default config", err, watermill.LogFields{"requested_region": region})
		return aws.Config{}, fmt.Errorf("kinesis: load aws config: %w", err)
	}

	// Loaders replaced in tests ignore options.
	if region != "" {
		awsCfg.Region = region
	}

	return awsCfg, nil
}

// Submitter puts one record per Submit call. The underlying SDK client is safe
// for concurrent use.
type Submitter struct {
	client PutRecordAPI
	logger watermill.LoggerAdapter
}

func NewSubmitter(client PutRecordAPI, logger watermill.LoggerAdapter) *Submitter {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return &Submitter{client: client, logger: logger}
}

func (s *Submitter) Submit(ctx context.Context, stream, partitionKey string, payload []byte) (transport.Acknowledgment, error) {
	out, err := s.client.PutRecord(ctx, &amazonkinesis.PutRecordInput{
		StreamName:   aws.String(stream),
		PartitionKey: aws.String(partitionKey),
		Data:         payload,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			s.logger.Error("Kinesis rejected record", err, watermill.LogFields{
				"stream":        stream,
				"partition_key": partitionKey,
				"error_code":    apiErr.ErrorCode(),
				"fault":         apiErr.ErrorFault().String(),
				"throttled":     IsThrottled(err),
			})
			return transport.Acknowledgment{}, fmt.Errorf("kinesis: put record (%s): %w", apiErr.ErrorCode(), err)
		}
		return transport.Acknowledgment{}, fmt.Errorf("kinesis: put record: %w", err)
	}

	return transport.Acknowledgment{
		Stream:         stream,
		ShardID:        aws.ToString(out.ShardId),
		SequenceNumber: aws.ToString(out.SequenceNumber),
		EncryptionType: string(out.EncryptionType),
	}, nil
}

// IsThrottled reports whether err is a provisioned-throughput rejection that a
// caller may retry after backing off.
func IsThrottled(err error) bool {
	var throughput *types.ProvisionedThroughputExceededException
	return errors.As(err, &throughput)
}
