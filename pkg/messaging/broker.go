package messaging

import (
	"context"
)

// Broker publishes JSON-encoded messages onto a named channel or routing key.
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

const (
	BrokerNone     = "none"
	BrokerRedis    = "redis"
	BrokerRabbitMQ = "rabbitmq"
)
