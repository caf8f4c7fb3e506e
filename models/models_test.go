package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecalculateRating(t *testing.T) {
	p := &Product{}
	p.RecalculateRating()
	assert.Equal(t, 0, p.NumReviews)
	assert.Equal(t, 0.0, p.Rating)

	p.Reviews = []Review{{UserID: "a", Rating: 5}, {UserID: "b", Rating: 4}, {UserID: "c", Rating: 4}}
	p.RecalculateRating()
	assert.Equal(t, 3, p.NumReviews)
	assert.Equal(t, 4.33, p.Rating)
	assert.True(t, p.HasReviewFrom("b"))
	assert.False(t, p.HasReviewFrom("d"))
}

func TestValidRating(t *testing.T) {
	for rating, want := range map[int]bool{0: false, 1: true, 3: true, 5: true, 6: false, -1: false} {
		assert.Equal(t, want, ValidRating(rating), "rating %d", rating)
	}
}

func TestProductUpdateApply(t *testing.T) {
	p := &Product{Name: "old", Price: 1, Stock: 3}
	name := "new"
	stock := 0
	ProductUpdate{Name: &name, Stock: &stock}.Apply(p)

	assert.Equal(t, "new", p.Name)
	assert.Equal(t, 1.0, p.Price)
	assert.Equal(t, 0, p.Stock)
}

func TestPriceOrder(t *testing.T) {
	tests := []struct {
		name          string
		items         []OrderItem
		itemsPrice    float64
		shippingPrice float64
		totalPrice    float64
	}{
		{
			name:          "below free shipping",
			items:         []OrderItem{{Price: 10.99, Quantity: 3}},
			itemsPrice:    32.97,
			shippingPrice: 10,
			totalPrice:    42.97,
		},
		{
			name:          "free shipping",
			items:         []OrderItem{{Price: 0.1, Quantity: 3}, {Price: 99.7, Quantity: 1}},
			itemsPrice:    100,
			shippingPrice: 0,
			totalPrice:    100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &Order{Items: tt.items}
			PriceOrder(order)
			assert.Equal(t, tt.itemsPrice, order.ItemsPrice)
			assert.Equal(t, tt.shippingPrice, order.ShippingPrice)
			assert.Equal(t, tt.totalPrice, order.TotalPrice)
		})
	}
}

func TestOrderCanTransition(t *testing.T) {
	order := &Order{Status: OrderStatusPending}
	assert.True(t, order.CanTransition(OrderStatusPaid))
	assert.False(t, order.CanTransition(OrderStatusDelivered))

	order.Status = OrderStatusPaid
	assert.False(t, order.CanTransition(OrderStatusPaid))
	assert.True(t, order.CanTransition(OrderStatusDelivered))

	order.Status = OrderStatusDelivered
	assert.False(t, order.CanTransition(OrderStatusDelivered))
}

func TestUserPassword(t *testing.T) {
	u := &User{}
	assert.NoError(t, u.SetPassword("password123"))
	assert.NotEqual(t, "password123", u.Password)
	assert.True(t, u.CheckPassword("password123"))
	assert.False(t, u.CheckPassword("password124"))
	assert.Equal(t, "a@b.com", NormalizeEmail("  A@B.com "))
}
