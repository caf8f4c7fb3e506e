package events

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ShopAPI/models"
)

func sampleOrder() *models.Order {
	return &models.Order{
		ID:         "o1",
		UserID:     "u1",
		Status:     models.OrderStatusPaid,
		TotalPrice: 130,
		Items: []models.OrderItem{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
	}
}

func TestNewOrderEvent(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("CST", 8*3600))
	event := NewOrderEvent(OrderPaid, sampleOrder(), at)

	assert.Equal(t, OrderPaid, event.Type)
	assert.Equal(t, "o1", event.OrderID)
	assert.Equal(t, 3, event.Items)
	assert.Equal(t, time.UTC, event.At.Location())
}

func TestToMessage(t *testing.T) {
	event := NewOrderEvent(OrderCreated, sampleOrder(), time.Now())
	msg, err := toMessage(event)
	require.NoError(t, err)

	assert.Equal(t, []byte("o1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "type", msg.Headers[0].Key)
	assert.Equal(t, OrderCreated, string(msg.Headers[0].Value))

	var decoded OrderEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.OrderID, decoded.OrderID)
	assert.Equal(t, event.TotalPrice, decoded.TotalPrice)
}

func TestKafkaPublisherClosed(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "orders", zerolog.Nop())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.PublishOrder(context.Background(), NewOrderEvent(OrderCreated, sampleOrder(), time.Now()))
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestLogPublisher(t *testing.T) {
	var out bytes.Buffer
	p := LogPublisher{Logger: zerolog.New(&out)}

	require.NoError(t, p.PublishOrder(context.Background(), NewOrderEvent(OrderDelivered, sampleOrder(), time.Now())))
	assert.Contains(t, out.String(), `"type":"order.delivered"`)
}
