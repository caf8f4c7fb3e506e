package models

import (
	"math"
	"time"
)

type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Image       string    `json:"image"`
	Stock       int       `json:"stock"`
	Reviews     []Review  `json:"reviews"`
	Rating      float64   `json:"rating"`
	NumReviews  int       `json:"numReviews"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductUpdate 只套用有提供的欄位
type ProductUpdate struct {
	Name        *string
	Price       *float64
	Category    *string
	Description *string
	Image       *string
	Stock       *int
}

func (u ProductUpdate) Apply(p *Product) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.Category != nil {
		p.Category = *u.Category
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Image != nil {
		p.Image = *u.Image
	}
	if u.Stock != nil {
		p.Stock = *u.Stock
	}
}

// RecalculateRating 依評論重新計算平均分數與評論數
func (p *Product) RecalculateRating() {
	p.NumReviews = len(p.Reviews)
	if p.NumReviews == 0 {
		p.Rating = 0
		return
	}
	sum := 0
	for _, review := range p.Reviews {
		sum += review.Rating
	}
	p.Rating = math.Round(float64(sum)/float64(p.NumReviews)*100) / 100
}

// HasReviewFrom 檢查使用者是否已評論過此商品
func (p *Product) HasReviewFrom(userID string) bool {
	for _, review := range p.Reviews {
		if review.UserID == userID {
			return true
		}
	}
	return false
}

// ProductFilter 商品列表查詢條件
type ProductFilter struct {
	Category string
	MinPrice *float64
	MaxPrice *float64
	Search   string
	Limit    int
	Offset   int
}
