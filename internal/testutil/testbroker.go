package testutil

import (
	"context"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestBroker holds a RabbitMQ container and its AMQP URL
type TestBroker struct {
	URL       string
	container *rabbitmq.RabbitMQContainer
}

// SetupTestBroker starts a RabbitMQ container
func SetupTestBroker(ctx context.Context) (*TestBroker, error) {
	container, err := rabbitmq.Run(ctx,
		"rabbitmq:3.13-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Server startup complete").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, err
	}

	url, err := container.AmqpURL(ctx)
	if err != nil {
		if terr := container.Terminate(ctx); terr != nil {
			err = terr
		}
		return nil, err
	}

	return &TestBroker{URL: url, container: container}, nil
}

// Teardown terminates the container
func (t *TestBroker) Teardown(ctx context.Context) {
	if t.container != nil {
		_ = t.container.Terminate(ctx)
	}
}
