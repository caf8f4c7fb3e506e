// Package events publishes order lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"ShopAPI/models"
)

const (
	OrderCreated   = "order.created"
	OrderPaid      = "order.paid"
	OrderDelivered = "order.delivered"
)

type OrderEvent struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"orderId"`
	UserID     string             `json:"userId"`
	Status     models.OrderStatus `json:"status"`
	TotalPrice float64            `json:"totalPrice"`
	Items      int                `json:"items"`
	At         time.Time          `json:"at"`
}

func NewOrderEvent(eventType string, order *models.Order, at time.Time) OrderEvent {
	items := 0
	for _, item := range order.Items {
		items += item.Quantity
	}
	return OrderEvent{
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
		Items:      items,
		At:         at.UTC(),
	}
}

type Publisher interface {
	PublishOrder(ctx context.Context, event OrderEvent) error
	Close() error
}

// LogPublisher 未設定Kafka時只寫log
type LogPublisher struct {
	Logger zerolog.Logger
}

func (p LogPublisher) PublishOrder(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	p.Logger.Debug().RawJSON("event", data).Msg("order event")
	return nil
}

func (p LogPublisher) Close() error { return nil }
