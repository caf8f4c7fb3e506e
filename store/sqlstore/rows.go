package sqlstore

import (
	"strconv"
	"time"

	"gorm.io/gorm"

	"ShopAPI/models"
)

// 商品與評論採硬刪除，評論隨商品由外鍵 CASCADE 刪除
type productRow struct {
	ID          uint    `gorm:"primaryKey"`
	Name        string  `gorm:"not null"`
	Price       float64 `gorm:"not null"`
	Category    string  `gorm:"size:191;index;not null"`
	Description string  `gorm:"type:text"`
	Image       string  `gorm:"not null"`
	Stock       int     `gorm:"not null;default:0"`
	Rating      float64
	NumReviews  int
	Reviews     []reviewRow `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time   `gorm:"index"`
	UpdatedAt   time.Time
}

func (productRow) TableName() string { return "products" }

// UserID 不設外鍵，刪除使用者保留評論
type reviewRow struct {
	ID        uint   `gorm:"primaryKey"`
	ProductID uint   `gorm:"not null;uniqueIndex:idx_review_product_user"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_review_product_user"`
	Name      string
	Rating    int    `gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Comment   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (reviewRow) TableName() string { return "reviews" }

type userRow struct {
	ID        uint   `gorm:"primaryKey"`
	Name      string `gorm:"not null"`
	Email     string `gorm:"size:191;uniqueIndex;not null"`
	Password  string `gorm:"not null"`
	Role      string `gorm:"size:16;not null;default:'user'"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (userRow) TableName() string { return "users" }

type orderRow struct {
	gorm.Model
	UserID        uint           `gorm:"index;not null"`
	Items         []orderItemRow `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Address       string         `gorm:"not null"`
	City          string         `gorm:"not null"`
	PostalCode    string         `gorm:"not null"`
	Country       string         `gorm:"not null"`
	PaymentMethod string
	ItemsPrice    float64 `gorm:"not null"`
	ShippingPrice float64 `gorm:"not null"`
	TotalPrice    float64 `gorm:"not null"`
	Status        string  `gorm:"size:16;not null"`
	PaidAt        *time.Time
	DeliveredAt   *time.Time
}

func (orderRow) TableName() string { return "orders" }

type orderItemRow struct {
	ID        uint `gorm:"primaryKey"`
	OrderID   uint `gorm:"index;not null"`
	ProductID uint `gorm:"not null"`
	Name      string
	Image     string
	Price     float64 `gorm:"not null"`
	Quantity  int     `gorm:"not null"`
}

func (orderItemRow) TableName() string { return "order_items" }

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (r productRow) toModel() models.Product {
	p := models.Product{
		ID:          formatID(r.ID),
		Name:        r.Name,
		Price:       r.Price,
		Category:    r.Category,
		Description: r.Description,
		Image:       r.Image,
		Stock:       r.Stock,
		Reviews:     make([]models.Review, 0, len(r.Reviews)),
		Rating:      r.Rating,
		NumReviews:  r.NumReviews,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, review := range r.Reviews {
		p.Reviews = append(p.Reviews, models.Review{
			ID:        formatID(review.ID),
			UserID:    formatID(review.UserID),
			Name:      review.Name,
			Rating:    review.Rating,
			Comment:   review.Comment,
			CreatedAt: review.CreatedAt,
		})
	}
	return p
}

func (r userRow) toModel() models.User {
	return models.User{
		ID:        formatID(r.ID),
		Name:      r.Name,
		Email:     r.Email,
		Password:  r.Password,
		Role:      models.Role(r.Role),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func (r orderRow) toModel() models.Order {
	o := models.Order{
		ID:     formatID(r.ID),
		UserID: formatID(r.UserID),
		Items:  make([]models.OrderItem, 0, len(r.Items)),
		ShippingAddress: models.ShippingAddress{
			Address:    r.Address,
			City:       r.City,
			PostalCode: r.PostalCode,
			Country:    r.Country,
		},
		PaymentMethod: r.PaymentMethod,
		ItemsPrice:    r.ItemsPrice,
		ShippingPrice: r.ShippingPrice,
		TotalPrice:    r.TotalPrice,
		Status:        models.OrderStatus(r.Status),
		PaidAt:        r.PaidAt,
		DeliveredAt:   r.DeliveredAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	for _, item := range r.Items {
		o.Items = append(o.Items, models.OrderItem{
			ProductID: formatID(item.ProductID),
			Name:      item.Name,
			Image:     item.Image,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return o
}
