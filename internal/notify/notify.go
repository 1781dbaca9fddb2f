// Package notify delivers fire-and-forget events about money movement.
// Delivery runs on a background worker and never blocks or fails the
// operation that produced the event.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	TypePaymentStatusChanged  = "payment_request.status_changed"
	TypePaymentCreated        = "payment_request.created"
	TypeCardSubmitted         = "card_submission.submitted"
	TypeVerificationRequested = "card_submission.verification_requested"
	TypeVerificationCompleted = "card_submission.verification_completed"
	TypeCommissionCredited    = "commission.credited"
	TypeWithdrawalStatus      = "withdrawal.status_changed"
	TypeSettlementStatus      = "settlement.status_changed"
)

const (
	AudienceMerchant = "merchant"
	AudienceAdmin    = "admin"
	AudienceCustomer = "customer"
)

type Event struct {
	Type     string         `json:"type"`
	UserID   string         `json:"user_id,omitempty"`
	Audience string         `json:"audience"`
	EntityID string         `json:"entity_id"`
	Status   string         `json:"status,omitempty"`
	Payload  map[string]any `json:"payload,omitempty"`
	At       time.Time      `json:"at"`
}

type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

type Notifier interface {
	Notify(event Event)
}

type DropCounter interface {
	NotificationDropped()
}

// Discard drops every event.
type Discard struct{}

func (Discard) Notify(Event) {}

type Dispatcher struct {
	queue   chan Event
	sinks   []Sink
	drops   DropCounter
	logger  *zap.Logger
	timeout time.Duration
	wg      sync.WaitGroup
	once    sync.Once
}

func NewDispatcher(buffer int, drops DropCounter, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	return &Dispatcher{
		queue:   make(chan Event, buffer),
		sinks:   sinks,
		drops:   drops,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for event := range d.queue {
			d.deliver(event)
		}
	}()
}

// Notify enqueues event, dropping it if the queue is full.
func (d *Dispatcher) Notify(event Event) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	select {
	case d.queue <- event:
	default:
		d.drops.NotificationDropped()
		d.logger.Warn("notification dropped", zap.String("type", event.Type), zap.String("entity_id", event.EntityID))
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
// Notify must not be called after Close.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.queue) })
	d.wg.Wait()
}

func (d *Dispatcher) deliver(event Event) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := sink.Deliver(ctx, event); err != nil {
			d.logger.Warn("notification delivery failed",
				zap.String("type", event.Type),
				zap.String("entity_id", event.EntityID),
				zap.Error(err))
		}
		cancel()
	}
}
