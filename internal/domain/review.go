package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Review.CreatedAt is assigned by the server on insert and never updated.
type Review struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user"`
	HotelID   int64     `json:"hotel"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}
