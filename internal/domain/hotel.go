package domain

type Hotel struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

type RoomType struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"` // unique
	Description string `json:"description"`
}

type Amenity struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Room belongs to exactly one hotel; (HotelID, RoomNumber) is unique.
// IsAvailable is an administrative toggle and says nothing about dates.
type Room struct {
	ID            int64    `json:"id"`
	HotelID       int64    `json:"hotel_id"`
	HotelName     string   `json:"hotel"`
	RoomNumber    int      `json:"room_number"`
	RoomType      RoomType `json:"room_type"`
	PricePerNight Money    `json:"price_per_night"`
	MaxGuests     int      `json:"max_guests"`
	IsAvailable   bool     `json:"is_available"`
	AmenityIDs    []int64  `json:"amenities"`
}

// RoomFilter selects the candidate pool shared by availability and allocation.
// An empty RoomTypeName means every room type.
type RoomFilter struct {
	HotelID      int64
	RoomTypeName string
	MinGuests    int
}
