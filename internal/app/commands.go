package app

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/adapters/observability"
	"hotel_booking/internal/domain"
)

// Clock is the source of "now" for the check-in-in-the-past rule.
type Clock func() time.Time

type BookingRequest struct {
	UserID   int64
	HotelID  int64
	RoomType string
	Stay     domain.Stay
	Adults   int
	Children int
}

type BookingService struct {
	store    domain.BookingStore
	invoices *InvoiceRegistrar
	cache    domain.Cache
	now      Clock
	newRef   func() string
}

// NewBookingService wires the allocator. invoices and cache may be nil.
func NewBookingService(store domain.BookingStore, invoices *InvoiceRegistrar, cache domain.Cache) *BookingService {
	return &BookingService{
		store:    store,
		invoices: invoices,
		cache:    cache,
		now:      func() time.Time { return time.Now().UTC() },
		newRef:   uuid.NewString,
	}
}

func (s *BookingService) WithClock(c Clock) *BookingService {
	s.now = c
	return s
}

// CreateBooking validates the request, picks the first free room of the
// requested type and writes the booking together with its pending payment.
// The payment gateway is contacted only after the transaction committed.
func (s *BookingService) CreateBooking(ctx context.Context, req BookingRequest) (domain.Booking, error) {
	now := s.now()
	if req.Stay.CheckIn.Before(now) {
		observability.ObserveBooking("rejected")
		return domain.Booking{}, domain.Validation("Check-in date cannot be in the past.")
	}
	if !req.Stay.CheckOut.After(req.Stay.CheckIn) {
		observability.ObserveBooking("rejected")
		return domain.Booking{}, domain.Validation("Check-out must be after check-in.")
	}
	if req.Stay.Nights() > domain.MaxStayNights {
		observability.ObserveBooking("rejected")
		return domain.Booking{}, domain.Validation("A stay cannot be longer than %d nights.", domain.MaxStayNights)
	}
	if req.Adults < 0 || req.Children < 0 {
		observability.ObserveBooking("rejected")
		return domain.Booking{}, domain.Validation("Adults and children must not be negative.")
	}

	filter := domain.RoomFilter{
		HotelID:      req.HotelID,
		RoomTypeName: req.RoomType,
		MinGuests:    req.Adults + req.Children,
	}

	var booking domain.Booking
	err := s.store.InTx(ctx, func(tx domain.BookingTx) error {
		rooms, err := tx.LockCandidateRooms(ctx, filter)
		if err != nil {
			return err
		}
		var room *domain.Room
		if len(rooms) > 0 {
			existing, err := tx.OverlappingBookings(ctx, roomIDs(rooms), req.Stay)
			if err != nil {
				return err
			}
			room = domain.FirstFree(rooms, domain.BusyRooms(existing, req.Stay))
		}
		if room == nil {
			return domain.Validation(
				"No available rooms of type '%s' for the selected dates and guest count.", req.RoomType)
		}

		booking = domain.Booking{
			UserID:    req.UserID,
			HotelID:   req.HotelID,
			RoomType:  room.RoomType.Name,
			Stay:      req.Stay,
			Adults:    req.Adults,
			Children:  req.Children,
			Rooms:     []domain.Room{*room},
			CreatedAt: now,
		}
		if err := tx.InsertBooking(ctx, &booking); err != nil {
			return err
		}

		p := domain.Payment{
			BookingID:     booking.ID,
			Amount:        domain.StayAmount(booking.Stay, booking.Rooms),
			Status:        domain.PaymentPending,
			PaymentDate:   now,
			InvoiceID:     s.newRef(),
			NextAttemptAt: now,
		}
		if s.invoices != nil {
			// the request holds the claim so a concurrent sweep leaves
			// this payment alone while its gateway call is in flight
			p.ClaimedUntil = s.invoices.claimUntil()
		}
		if err := tx.InsertPayment(ctx, &p); err != nil {
			return err
		}
		booking.Payment = &p
		return nil
	})
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			observability.ObserveBooking("rejected")
		} else {
			observability.ObserveBooking("error")
		}
		return domain.Booking{}, err
	}
	observability.ObserveBooking("created")
	log.Info().
		Int64("booking_id", booking.ID).
		Int64("room_id", booking.Rooms[0].ID).
		Int64("user_id", booking.UserID).
		Str("amount", booking.Payment.Amount.String()).
		Msg("booking created")

	s.bumpAvailability(ctx, req.HotelID)

	if s.invoices != nil {
		// booking and pending payment are durable at this point; a gateway
		// failure only means the payment link has to be fetched later
		if err := s.invoices.Register(ctx, booking.Payment); err != nil {
			booking.Payment.LinkUnavailable = true
			log.Warn().Err(err).
				Int64("booking_id", booking.ID).
				Str("invoice_id", booking.Payment.InvoiceID).
				Msg("payment link unavailable, left for retry sweep")
		}
	}
	return booking, nil
}

// GetBooking hides other users' bookings from non-staff callers.
func (s *BookingService) GetBooking(ctx context.Context, who domain.Principal, id int64) (domain.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Booking{}, domain.NotFound("Booking not found")
		}
		return domain.Booking{}, err
	}
	if !who.Staff && b.UserID != who.UserID {
		return domain.Booking{}, domain.NotFound("Booking not found")
	}
	return b, nil
}

// ListBookings: staff see all bookings, everyone else only their own.
func (s *BookingService) ListBookings(ctx context.Context, who domain.Principal) ([]domain.Booking, error) {
	if who.Staff {
		return s.store.ListBookings(ctx, nil)
	}
	uid := who.UserID
	return s.store.ListBookings(ctx, &uid)
}

func (s *BookingService) bumpAvailability(ctx context.Context, hotelID int64) {
	bumpGeneration(ctx, s.cache, generationKey(hotelID))
}
