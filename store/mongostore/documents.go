package mongostore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ShopAPI/models"
)

type reviewDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	User      primitive.ObjectID `bson:"user"`
	Name      string             `bson:"name"`
	Rating    int                `bson:"rating"`
	Comment   string             `bson:"comment"`
	CreatedAt time.Time          `bson:"createdAt"`
}

type productDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Price       float64            `bson:"price"`
	Category    string             `bson:"category"`
	Description string             `bson:"description"`
	Image       string             `bson:"image"`
	Stock       int                `bson:"stock"`
	Reviews     []reviewDoc        `bson:"reviews"`
	Rating      float64            `bson:"rating"`
	NumReviews  int                `bson:"numReviews"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

type userDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Name      string             `bson:"name"`
	Email     string             `bson:"email"`
	Password  string             `bson:"password"`
	Role      string             `bson:"role"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

type orderItemDoc struct {
	Product  primitive.ObjectID `bson:"product"`
	Name     string             `bson:"name"`
	Image    string             `bson:"image"`
	Price    float64            `bson:"price"`
	Quantity int                `bson:"quantity"`
}

type shippingAddressDoc struct {
	Address    string `bson:"address"`
	City       string `bson:"city"`
	PostalCode string `bson:"postalCode"`
	Country    string `bson:"country"`
}

type orderDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	User            primitive.ObjectID `bson:"user"`
	Items           []orderItemDoc     `bson:"orderItems"`
	ShippingAddress shippingAddressDoc `bson:"shippingAddress"`
	PaymentMethod   string             `bson:"paymentMethod"`
	ItemsPrice      float64            `bson:"itemsPrice"`
	ShippingPrice   float64            `bson:"shippingPrice"`
	TotalPrice      float64            `bson:"totalPrice"`
	Status          string             `bson:"status"`
	PaidAt          *time.Time         `bson:"paidAt,omitempty"`
	DeliveredAt     *time.Time         `bson:"deliveredAt,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt"`
}

func (d productDoc) toModel() models.Product {
	p := models.Product{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Price:       d.Price,
		Category:    d.Category,
		Description: d.Description,
		Image:       d.Image,
		Stock:       d.Stock,
		Reviews:     make([]models.Review, 0, len(d.Reviews)),
		Rating:      d.Rating,
		NumReviews:  d.NumReviews,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	for _, r := range d.Reviews {
		p.Reviews = append(p.Reviews, models.Review{
			ID:        r.ID.Hex(),
			UserID:    r.User.Hex(),
			Name:      r.Name,
			Rating:    r.Rating,
			Comment:   r.Comment,
			CreatedAt: r.CreatedAt,
		})
	}
	return p
}

func (d userDoc) toModel() models.User {
	return models.User{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Password:  d.Password,
		Role:      models.Role(d.Role),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (d orderDoc) toModel() models.Order {
	o := models.Order{
		ID:     d.ID.Hex(),
		UserID: d.User.Hex(),
		Items:  make([]models.OrderItem, 0, len(d.Items)),
		ShippingAddress: models.ShippingAddress{
			Address:    d.ShippingAddress.Address,
			City:       d.ShippingAddress.City,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
		},
		PaymentMethod: d.PaymentMethod,
		ItemsPrice:    d.ItemsPrice,
		ShippingPrice: d.ShippingPrice,
		TotalPrice:    d.TotalPrice,
		Status:        models.OrderStatus(d.Status),
		PaidAt:        d.PaidAt,
		DeliveredAt:   d.DeliveredAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, item := range d.Items {
		o.Items = append(o.Items, models.OrderItem{
			ProductID: item.Product.Hex(),
			Name:      item.Name,
			Image:     item.Image,
			Price:     item.Price,
			Quantity:  item.Quantity,
		})
	}
	return o
}
