package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (c *captureSink) Deliver(_ context.Context, event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return c.err
}

type dropCount struct {
	mu sync.Mutex
	n  int
}

func (d *dropCount) NotificationDropped() {
	d.mu.Lock()
	d.n++
	d.mu.Unlock()
}

func TestDispatcherFansOutToEverySink(t *testing.T) {
	failing := &captureSink{err: errors.New("down")}
	healthy := &captureSink{}
	d := NewDispatcher(8, &dropCount{}, zap.NewNop(), failing, healthy)
	d.Start()
	d.Notify(Event{Type: TypePaymentStatusChanged, EntityID: "pr-1"})
	d.Notify(Event{Type: TypeCommissionCredited, EntityID: "pr-1"})
	d.Close()

	require.Len(t, healthy.events, 2)
	assert.Len(t, failing.events, 2)
	assert.False(t, healthy.events[0].At.IsZero())
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	drops := &dropCount{}
	d := NewDispatcher(1, drops, zap.NewNop())
	d.Notify(Event{Type: "a"})
	d.Notify(Event{Type: "b"})
	d.Notify(Event{Type: "c"})
	assert.Equal(t, 2, drops.n)
	d.Start()
	d.Close()
}

type fakePublisher struct {
	channel  string
	message  any
	channels []string
	err      error
}

func (f *fakePublisher) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.message = message
	f.channels = append(f.channels, channel)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisSinkPublishesJSON(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedisSink(pub, "", "")
	err := sink.Deliver(context.Background(), Event{Type: TypeWithdrawalStatus, EntityID: "w-1", Status: "failed"})
	require.NoError(t, err)
	assert.Equal(t, EventsChannel, pub.channel)

	var decoded Event
	require.NoError(t, json.Unmarshal(pub.message.([]byte), &decoded))
	assert.Equal(t, "w-1", decoded.EntityID)
	assert.Equal(t, "failed", decoded.Status)
}

func TestRedisSinkWrapsPublishError(t *testing.T) {
	sink := NewRedisSink(&fakePublisher{err: errors.New("connection refused")}, "events", "")
	err := sink.Deliver(context.Background(), Event{Type: "x"})
	assert.ErrorContains(t, err, "failed to publish event")
}

func TestRedisSinkKeepsCustomerEventsOffSharedChannel(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewRedisSink(pub, "", "")
	err := sink.Deliver(context.Background(), Event{
		Type:     TypeVerificationRequested,
		Audience: AudienceCustomer,
		EntityID: "pr-1",
		Payload:  map[string]any{"code": "123456"},
	})
	require.NoError(t, err)
	require.NoError(t, sink.Deliver(context.Background(), Event{Type: TypeVerificationCompleted, Audience: AudienceAdmin, EntityID: "cs-1"}))

	assert.Equal(t, []string{CustomerChannel, EventsChannel}, pub.channels)
	assert.NotContains(t, string(pub.message.([]byte)), "123456")
}
