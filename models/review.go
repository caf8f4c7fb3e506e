package models

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review 隸屬於商品，UserID 為弱參照，刪除使用者不會刪除評論
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

func ValidRating(rating int) bool {
	return rating >= MinRating && rating <= MaxRating
}
