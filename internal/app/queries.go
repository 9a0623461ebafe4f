package app

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

type AvailabilityQuery struct {
	HotelID  int64
	Stay     domain.Stay
	Adults   int
	Children int
}

func (q AvailabilityQuery) Guests() int { return q.Adults + q.Children }

// AvailabilityService answers "which room types can this party book" for a
// hotel and date range. It never writes.
type AvailabilityService struct {
	repo     domain.AvailabilityRepository
	cache    domain.Cache
	cacheTTL time.Duration
}

func NewAvailabilityService(r domain.AvailabilityRepository, c domain.Cache, ttl time.Duration) *AvailabilityService {
	return &AvailabilityService{repo: r, cache: c, cacheTTL: ttl}
}

func (s *AvailabilityService) FindAvailableRoomTypes(ctx context.Context, q AvailabilityQuery) ([]domain.RoomType, error) {
	if q.Adults < 0 || q.Children < 0 {
		return nil, domain.BadRequest("adults and children must not be negative")
	}
	ok, err := s.repo.HotelExists(ctx, q.HotelID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NotFound("Hotel not found")
	}

	key := s.cacheKey(ctx, q)
	if key != "" {
		var cached []domain.RoomType
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return cached, nil
		}
	}

	// Only room types that have a candidate room in this hotel are looked at;
	// types with no rooms here never reach the overlap check.
	rooms, err := s.repo.CandidateRooms(ctx, domain.RoomFilter{HotelID: q.HotelID, MinGuests: q.Guests()})
	if err != nil {
		return nil, err
	}
	out := []domain.RoomType{}
	if len(rooms) > 0 {
		existing, err := s.repo.OverlappingBookings(ctx, roomIDs(rooms), q.Stay)
		if err != nil {
			return nil, err
		}
		out = availableTypes(rooms, domain.BusyRooms(existing, q.Stay))
	}

	if key != "" {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

// availableTypes marks a type as soon as one of its rooms is free and
// returns the marked types by id.
func availableTypes(rooms []domain.Room, busy map[int64]bool) []domain.RoomType {
	seen := map[int64]bool{}
	out := []domain.RoomType{}
	for _, r := range rooms {
		if seen[r.RoomType.ID] || busy[r.ID] {
			continue
		}
		seen[r.RoomType.ID] = true
		out = append(out, r.RoomType)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func roomIDs(rooms []domain.Room) []int64 {
	ids := make([]int64, len(rooms))
	for i, r := range rooms {
		ids[i] = r.ID
	}
	return ids
}

// cacheKey embeds the hotel's availability generation and the catalog-wide
// one. Bookings and room writes bump the hotel generation, room type edits
// the catalog one, so entries never outlive the data they were built from.
// Returns "" when caching is off.
func (s *AvailabilityService) cacheKey(ctx context.Context, q AvailabilityQuery) string {
	if s.cache == nil || s.cacheTTL <= 0 {
		return ""
	}
	var gen, catalogGen int64
	if _, err := s.cache.Get(ctx, generationKey(q.HotelID), &gen); err != nil {
		return ""
	}
	if _, err := s.cache.Get(ctx, catalogGenerationKey, &catalogGen); err != nil {
		return ""
	}
	return fmt.Sprintf("avail:%d:g%d.%d:%d:%d:%d",
		q.HotelID, gen, catalogGen, q.Stay.CheckIn.Unix(), q.Stay.CheckOut.Unix(), q.Guests())
}

const catalogGenerationKey = "avail:gen:catalog"

func generationKey(hotelID int64) string { return fmt.Sprintf("avail:gen:%d", hotelID) }

// bumpGeneration retires every cached answer built under key. A failed bump
// is logged; the TTL still bounds staleness.
func bumpGeneration(ctx context.Context, c domain.Cache, key string) {
	if c == nil {
		return
	}
	if _, err := c.Incr(ctx, key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("availability cache bump failed")
	}
}
