// Command chatflow-consumer is the Lambda entry point for a Kinesis trigger.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/drblury/chatflow"
	"github.com/drblury/chatflow/transport/kinesis"
	_ "github.com/drblury/chatflow/transport/transports"
)

func main() {
	cfg, err := chatflow.LoadConfig(os.Getenv("CHATFLOW_CONFIG"))
	if err != nil {
		chatflow.NewJSONServiceLogger(os.Stderr, "error").Error("Invalid configuration", err, nil)
		os.Exit(1)
	}
	logger := chatflow.NewJSONServiceLogger(os.Stdout, cfg.LogLevel)

	svc, err := chatflow.TryNewService(cfg, logger, context.Background(), chatflow.ServiceDependencies{
		Extractor: chatflow.Base64Payload,
	})
	if err != nil {
		logger.Error("Failed to create chat service", err, nil)
		os.Exit(1)
	}

	lambda.Start(newHandler(svc.Consumer()))
}

func newHandler(consumer *chatflow.Consumer) func(context.Context, *kinesis.Event) (chatflow.Response, error) {
	return func(ctx context.Context, ev *kinesis.Event) (chatflow.Response, error) {
		batch, err := kinesis.BatchFromEvent(ev)
		if err != nil {
			return consumer.Handle(ctx, nil), nil
		}
		return consumer.Handle(ctx, batch), nil
	}
}
