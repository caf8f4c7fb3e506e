// Package store defines the persistence contracts shared by the Mongo, SQL and
// in-memory backends.
package store

import (
	"context"
	"errors"
	"math"
	"time"

	"ShopAPI/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicate         = errors.New("record already exists")
	ErrAlreadyReviewed   = errors.New("product already reviewed by user")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrInvalidQuantity   = errors.New("invalid order item quantity")
)

type Products interface {
	ListProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, int64, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, id string, update models.ProductUpdate) (*models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
	// AddReview 附加評論並更新平均分數，同一使用者重複評論回傳 ErrAlreadyReviewed
	AddReview(ctx context.Context, productID string, review models.Review) (*models.Product, error)
}

type Users interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

type Orders interface {
	// CreateOrder 扣除庫存並建立訂單，任一商品庫存不足則整筆失敗
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	// ListOrders userID 為空字串時回傳全部訂單
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
	// UpdateOrderStatus 狀態不符合 pending -> paid -> delivered 時回傳 ErrInvalidTransition
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus, at time.Time) (*models.Order, error)
}

type Store interface {
	Products
	Users
	Orders
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

// NormalizeLimit 限制最高查詢數量
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// MaxItemQuantity 單一訂單項目的數量上限
const MaxItemQuantity = 10000

// AddQuantity 累加同一商品在訂單中的數量
func AddQuantity(total, quantity int) (int, error) {
	if quantity < 1 || quantity > MaxItemQuantity || total > math.MaxInt-quantity {
		return 0, ErrInvalidQuantity
	}
	return total + quantity, nil
}
