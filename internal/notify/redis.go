package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	EventsChannel = "merchantpay.events"
	// CustomerChannel carries customer-audience events, which may hold a
	// one-time verification code. Only the customer delivery worker
	// subscribes to it.
	CustomerChannel = "merchantpay.customer"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisSink publishes events as JSON on a pub/sub channel. Customer
// events go to their own channel and never to the shared one.
type RedisSink struct {
	client          Publisher
	channel         string
	customerChannel string
}

func NewRedisSink(client Publisher, channel, customerChannel string) *RedisSink {
	if channel == "" {
		channel = EventsChannel
	}
	if customerChannel == "" {
		customerChannel = CustomerChannel
	}
	return &RedisSink{client: client, channel: channel, customerChannel: customerChannel}
}

func (s *RedisSink) Deliver(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	channel := s.channel
	if event.Audience == AudienceCustomer {
		channel = s.customerChannel
	}
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}
