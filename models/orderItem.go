package models

import "github.com/shopspring/decimal"

var (
	freeShippingThreshold = decimal.NewFromInt(100)
	flatShippingPrice     = decimal.NewFromInt(10)
)

// OrderItem 的名稱、圖片與價格於下單時從商品複製
type OrderItem struct {
	ProductID string  `json:"product"`
	Name      string  `json:"name"`
	Image     string  `json:"image"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// PriceOrder 計算商品小計、運費與總金額
func PriceOrder(order *Order) {
	itemsPrice := decimal.Zero
	for _, item := range order.Items {
		itemsPrice = itemsPrice.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}

	shippingPrice := flatShippingPrice
	if itemsPrice.GreaterThanOrEqual(freeShippingThreshold) {
		shippingPrice = decimal.Zero
	}

	order.ItemsPrice = itemsPrice.Round(2).InexactFloat64()
	order.ShippingPrice = shippingPrice.InexactFloat64()
	order.TotalPrice = itemsPrice.Add(shippingPrice).Round(2).InexactFloat64()
}
