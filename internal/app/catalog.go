package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"hotel_booking/internal/domain"
)

// CatalogService is the administrative side: hotels, room types, amenities,
// rooms and reviews. Writes that can change an availability answer retire
// the cached answers through the availability generations.
type CatalogService struct {
	repo  domain.CatalogRepository
	cache domain.Cache
	now   Clock
}

// NewCatalogService: cache may be nil.
func NewCatalogService(r domain.CatalogRepository, cache domain.Cache) *CatalogService {
	return &CatalogService{repo: r, cache: cache, now: func() time.Time { return time.Now().UTC() }}
}

func (s *CatalogService) WithClock(c Clock) *CatalogService {
	s.now = c
	return s
}

// ---- hotels ----

func validateHotel(h domain.Hotel) error {
	if strings.TrimSpace(h.Name) == "" || strings.TrimSpace(h.Location) == "" {
		return domain.Validation("Hotel name and location are required.")
	}
	return nil
}

func (s *CatalogService) CreateHotel(ctx context.Context, h domain.Hotel) (domain.Hotel, error) {
	if err := validateHotel(h); err != nil {
		return domain.Hotel{}, err
	}
	err := s.repo.CreateHotel(ctx, &h)
	return h, err
}

func (s *CatalogService) GetHotel(ctx context.Context, id int64) (domain.Hotel, error) {
	h, err := s.repo.GetHotel(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Hotel{}, domain.NotFound("Hotel not found")
	}
	return h, err
}

func (s *CatalogService) ListHotels(ctx context.Context) ([]domain.Hotel, error) {
	return s.repo.ListHotels(ctx)
}

func (s *CatalogService) UpdateHotel(ctx context.Context, h domain.Hotel) (domain.Hotel, error) {
	if err := validateHotel(h); err != nil {
		return domain.Hotel{}, err
	}
	if err := s.repo.UpdateHotel(ctx, h); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Hotel{}, domain.NotFound("Hotel not found")
		}
		return domain.Hotel{}, err
	}
	return h, nil
}

// DeleteHotel removes the hotel with its rooms and reviews. A hotel whose
// rooms carry bookings stays.
func (s *CatalogService) DeleteHotel(ctx context.Context, id int64) error {
	if err := s.repo.DeleteHotel(ctx, id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.NotFound("Hotel not found")
		case errors.Is(err, domain.ErrConflict):
			return domain.Conflict("Hotel has booked rooms and cannot be deleted.")
		}
		return err
	}
	bumpGeneration(ctx, s.cache, generationKey(id))
	return nil
}

// ---- room types ----

func (s *CatalogService) CreateRoomType(ctx context.Context, t domain.RoomType) (domain.RoomType, error) {
	if strings.TrimSpace(t.Name) == "" {
		return domain.RoomType{}, domain.Validation("Room type name is required.")
	}
	if err := s.repo.CreateRoomType(ctx, &t); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return domain.RoomType{}, domain.Conflict("Room type %q already exists.", t.Name)
		}
		return domain.RoomType{}, err
	}
	return t, nil
}

func (s *CatalogService) GetRoomType(ctx context.Context, id int64) (domain.RoomType, error) {
	t, err := s.repo.GetRoomType(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.RoomType{}, domain.NotFound("Room type not found")
	}
	return t, err
}

func (s *CatalogService) ListRoomTypes(ctx context.Context) ([]domain.RoomType, error) {
	return s.repo.ListRoomTypes(ctx)
}

// UpdateRoomType changes what every hotel's availability answer shows, so it
// bumps the catalog generation.
func (s *CatalogService) UpdateRoomType(ctx context.Context, t domain.RoomType) (domain.RoomType, error) {
	if strings.TrimSpace(t.Name) == "" {
		return domain.RoomType{}, domain.Validation("Room type name is required.")
	}
	if err := s.repo.UpdateRoomType(ctx, t); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.RoomType{}, domain.NotFound("Room type not found")
		case errors.Is(err, domain.ErrConflict):
			return domain.RoomType{}, domain.Conflict("Room type %q already exists.", t.Name)
		}
		return domain.RoomType{}, err
	}
	bumpGeneration(ctx, s.cache, catalogGenerationKey)
	return t, nil
}

func (s *CatalogService) DeleteRoomType(ctx context.Context, id int64) error {
	if err := s.repo.DeleteRoomType(ctx, id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.NotFound("Room type not found")
		case errors.Is(err, domain.ErrConflict):
			return domain.Conflict("Room type is used by rooms and cannot be deleted.")
		}
		return err
	}
	bumpGeneration(ctx, s.cache, catalogGenerationKey)
	return nil
}

// ---- amenities ----

func (s *CatalogService) CreateAmenity(ctx context.Context, a domain.Amenity) (domain.Amenity, error) {
	if strings.TrimSpace(a.Name) == "" {
		return domain.Amenity{}, domain.Validation("Amenity name is required.")
	}
	err := s.repo.CreateAmenity(ctx, &a)
	return a, err
}

func (s *CatalogService) GetAmenity(ctx context.Context, id int64) (domain.Amenity, error) {
	a, err := s.repo.GetAmenity(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Amenity{}, domain.NotFound("Amenity not found")
	}
	return a, err
}

func (s *CatalogService) ListAmenities(ctx context.Context) ([]domain.Amenity, error) {
	return s.repo.ListAmenities(ctx)
}

func (s *CatalogService) UpdateAmenity(ctx context.Context, a domain.Amenity) (domain.Amenity, error) {
	if strings.TrimSpace(a.Name) == "" {
		return domain.Amenity{}, domain.Validation("Amenity name is required.")
	}
	if err := s.repo.UpdateAmenity(ctx, a); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Amenity{}, domain.NotFound("Amenity not found")
		}
		return domain.Amenity{}, err
	}
	return a, nil
}

// DeleteAmenity also drops it from every room.
func (s *CatalogService) DeleteAmenity(ctx context.Context, id int64) error {
	err := s.repo.DeleteAmenity(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound("Amenity not found")
	}
	return err
}

// ---- rooms ----

func validateRoom(r domain.Room) error {
	switch {
	case r.HotelID <= 0:
		return domain.Validation("Room must belong to a hotel.")
	case strings.TrimSpace(r.RoomType.Name) == "":
		return domain.Validation("Room type is required.")
	case r.PricePerNight <= 0:
		return domain.Validation("Price per night must be positive.")
	case r.MaxGuests <= 0:
		return domain.Validation("Max guests must be positive.")
	}
	return nil
}

// CreateRoom resolves the room type by name, the way booking requests do.
func (s *CatalogService) CreateRoom(ctx context.Context, r domain.Room) (domain.Room, error) {
	if err := validateRoom(r); err != nil {
		return domain.Room{}, err
	}
	if _, err := s.GetHotel(ctx, r.HotelID); err != nil {
		return domain.Room{}, err
	}
	if err := s.repo.CreateRoom(ctx, &r); err != nil {
		return domain.Room{}, roomWriteErr(err, r)
	}
	bumpGeneration(ctx, s.cache, generationKey(r.HotelID))
	return r, nil
}

func (s *CatalogService) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	r, err := s.repo.GetRoom(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Room{}, domain.NotFound("Room not found")
	}
	return r, err
}

// ListRooms lists every room when hotelID is 0.
func (s *CatalogService) ListRooms(ctx context.Context, hotelID int64) ([]domain.Room, error) {
	return s.repo.ListRooms(ctx, hotelID)
}

// UpdateRoom replaces every field of the room, including the administrative
// is_available toggle. A room moved between hotels retires both hotels'
// cached answers.
func (s *CatalogService) UpdateRoom(ctx context.Context, r domain.Room) (domain.Room, error) {
	if err := validateRoom(r); err != nil {
		return domain.Room{}, err
	}
	prev, err := s.GetRoom(ctx, r.ID)
	if err != nil {
		return domain.Room{}, err
	}
	if _, err := s.GetHotel(ctx, r.HotelID); err != nil {
		return domain.Room{}, err
	}
	if err := s.repo.UpdateRoom(ctx, &r); err != nil {
		return domain.Room{}, roomWriteErr(err, r)
	}
	bumpGeneration(ctx, s.cache, generationKey(r.HotelID))
	if prev.HotelID != r.HotelID {
		bumpGeneration(ctx, s.cache, generationKey(prev.HotelID))
	}
	return r, nil
}

// DeleteRoom refuses rooms that carry bookings.
func (s *CatalogService) DeleteRoom(ctx context.Context, id int64) error {
	prev, err := s.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteRoom(ctx, id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return domain.NotFound("Room not found")
		case errors.Is(err, domain.ErrConflict):
			return domain.Conflict("Room has bookings and cannot be deleted.")
		}
		return err
	}
	bumpGeneration(ctx, s.cache, generationKey(prev.HotelID))
	return nil
}

func roomWriteErr(err error, r domain.Room) error {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return domain.Conflict("Room %d already exists in this hotel.", r.RoomNumber)
	case errors.Is(err, domain.ErrNotFound):
		return domain.Validation("Unknown room type or amenity.")
	}
	return err
}

// ---- reviews ----

func validateRating(rating int) error {
	if rating < domain.MinRating || rating > domain.MaxRating {
		return domain.Validation("Rating must be between %d and %d.", domain.MinRating, domain.MaxRating)
	}
	return nil
}

func (s *CatalogService) CreateReview(ctx context.Context, rv domain.Review) (domain.Review, error) {
	if err := validateRating(rv.Rating); err != nil {
		return domain.Review{}, err
	}
	if _, err := s.GetHotel(ctx, rv.HotelID); err != nil {
		return domain.Review{}, err
	}
	rv.CreatedAt = s.now()
	err := s.repo.CreateReview(ctx, &rv)
	return rv, err
}

func (s *CatalogService) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	rv, err := s.repo.GetReview(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Review{}, domain.NotFound("Review not found")
	}
	return rv, err
}

// ListReviews lists newest first; hotelID 0 means every hotel.
func (s *CatalogService) ListReviews(ctx context.Context, hotelID int64, limit int) ([]domain.Review, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListReviews(ctx, hotelID, limit)
}

// UpdateReview lets the author or staff change rating and comment. Hotel,
// author and creation time stay.
func (s *CatalogService) UpdateReview(ctx context.Context, who domain.Principal, id int64, rating int, comment string) (domain.Review, error) {
	rv, err := s.ownedReview(ctx, who, id)
	if err != nil {
		return domain.Review{}, err
	}
	if err := validateRating(rating); err != nil {
		return domain.Review{}, err
	}
	rv.Rating, rv.Comment = rating, comment
	if err := s.repo.UpdateReview(ctx, rv); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Review{}, domain.NotFound("Review not found")
		}
		return domain.Review{}, err
	}
	return rv, nil
}

func (s *CatalogService) DeleteReview(ctx context.Context, who domain.Principal, id int64) error {
	if _, err := s.ownedReview(ctx, who, id); err != nil {
		return err
	}
	err := s.repo.DeleteReview(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound("Review not found")
	}
	return err
}

func (s *CatalogService) ownedReview(ctx context.Context, who domain.Principal, id int64) (domain.Review, error) {
	rv, err := s.GetReview(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	if !who.Staff && rv.UserID != who.UserID {
		return domain.Review{}, domain.Forbidden("Only the author or staff can change a review.")
	}
	return rv, nil
}
