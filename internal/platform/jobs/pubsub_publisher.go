package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/zainahstore/api/internal/services"
)

// PubSubOrderPublisher publishes order lifecycle events to a Pub/Sub topic.
type PubSubOrderPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderPublisher(topic *pubsub.Topic) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

var _ services.OrderEventPublisher = (*PubSubOrderPublisher)(nil)

// PublishOrderPaid enqueues an order.paid message on the configured topic.
func (p *PubSubOrderPublisher) PublishOrderPaid(ctx context.Context, event services.OrderPaidEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order publisher: not initialised")
	}

	data, err := p.marshal(orderPaidMessage{
		OrderID:     event.OrderID,
		ReferenceID: event.ReferenceID,
		SessionID:   event.SessionID,
		Email:       event.Email,
		Amount:      event.Amount,
		DepositMode: event.DepositMode,
		PaidAt:      event.PaidAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order paid event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "event", "order.paid")
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "referenceId", event.ReferenceID)
	setAttr(attrs, "sessionId", event.SessionID)
	setAttr(attrs, "depositMode", strconv.FormatBool(event.DepositMode))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order paid event: %w", err)
	}
	return nil
}

// orderPaidMessage is the JSON wire shape consumed by downstream workers.
type orderPaidMessage struct {
	OrderID     string    `json:"orderId"`
	ReferenceID string    `json:"referenceId"`
	SessionID   string    `json:"sessionId"`
	Email       string    `json:"email,omitempty"`
	Amount      float64   `json:"amount"`
	DepositMode bool      `json:"depositMode"`
	PaidAt      time.Time `json:"paidAt"`
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
