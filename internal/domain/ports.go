package domain

import (
	"context"
	"time"
)

// Principal is the authenticated caller injected by the auth middleware.
type Principal struct {
	UserID int64
	Staff  bool
}

// CatalogRepository: updates and deletes return ErrNotFound for an unknown
// id and ErrConflict when a unique key or a reference (rooms in use by
// bookings, room types in use by rooms) stands in the way.
type CatalogRepository interface {
	// Write paths
	CreateHotel(ctx context.Context, h *Hotel) error
	CreateRoomType(ctx context.Context, t *RoomType) error
	CreateAmenity(ctx context.Context, a *Amenity) error
	CreateRoom(ctx context.Context, r *Room) error
	CreateReview(ctx context.Context, rv *Review) error

	UpdateHotel(ctx context.Context, h Hotel) error
	UpdateRoomType(ctx context.Context, t RoomType) error
	UpdateAmenity(ctx context.Context, a Amenity) error
	// UpdateRoom resolves the room type by name and replaces the amenity set.
	UpdateRoom(ctx context.Context, r *Room) error
	UpdateReview(ctx context.Context, rv Review) error

	DeleteHotel(ctx context.Context, id int64) error
	DeleteRoomType(ctx context.Context, id int64) error
	DeleteAmenity(ctx context.Context, id int64) error
	DeleteRoom(ctx context.Context, id int64) error
	DeleteReview(ctx context.Context, id int64) error

	// Read paths
	GetHotel(ctx context.Context, id int64) (Hotel, error)
	GetRoomType(ctx context.Context, id int64) (RoomType, error)
	GetAmenity(ctx context.Context, id int64) (Amenity, error)
	GetRoom(ctx context.Context, id int64) (Room, error)
	GetReview(ctx context.Context, id int64) (Review, error)
	ListHotels(ctx context.Context) ([]Hotel, error)
	ListRoomTypes(ctx context.Context) ([]RoomType, error)
	ListAmenities(ctx context.Context) ([]Amenity, error)
	ListRooms(ctx context.Context, hotelID int64) ([]Room, error)
	// ListReviews returns every hotel's reviews when hotelID is 0.
	ListReviews(ctx context.Context, hotelID int64, limit int) ([]Review, error)
}

type AvailabilityRepository interface {
	HotelExists(ctx context.Context, id int64) (bool, error)
	// CandidateRooms returns rooms matching f that are administratively
	// available, ordered by room id.
	CandidateRooms(ctx context.Context, f RoomFilter) ([]Room, error)
	// OverlappingBookings returns occupancies of roomIDs that overlap stay.
	OverlappingBookings(ctx context.Context, roomIDs []int64, stay Stay) ([]RoomBooking, error)
}

// BookingTx is the allocator's view of storage inside one transaction.
// LockCandidateRooms holds the candidate rows until commit or rollback, so
// the overlap check and the insert cannot interleave with another allocation
// for the same rooms.
type BookingTx interface {
	LockCandidateRooms(ctx context.Context, f RoomFilter) ([]Room, error)
	OverlappingBookings(ctx context.Context, roomIDs []int64, stay Stay) ([]RoomBooking, error)
	InsertBooking(ctx context.Context, b *Booking) error
	InsertPayment(ctx context.Context, p *Payment) error
}

type BookingStore interface {
	InTx(ctx context.Context, fn func(tx BookingTx) error) error
	GetBooking(ctx context.Context, id int64) (Booking, error)
	// ListBookings returns every booking when userID is nil.
	ListBookings(ctx context.Context, userID *int64) ([]Booking, error)
}

type PaymentRepository interface {
	// UpdatePaymentStatus changes status only. ErrNotFound when invoiceID is unknown.
	UpdatePaymentStatus(ctx context.Context, invoiceID string, status PaymentStatus) (Payment, error)
	// ClaimUnlinked reserves up to limit pending payments that have no link,
	// are due for an attempt at now and are not claimed by anyone else. The
	// claim expires after lease. Oldest due payments come first.
	ClaimUnlinked(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]Payment, error)
	// AttachInvoice stores the gateway invoice and releases the claim. A
	// payment that already carries a different link yields ErrConflict.
	AttachInvoice(ctx context.Context, paymentID int64, inv Invoice) error
	// RecordLinkFailure counts a failed gateway call, releases the claim and
	// makes the payment due again at retryAt. abandon stops further attempts.
	RecordLinkFailure(ctx context.Context, paymentID int64, retryAt time.Time, abandon bool) error
	GetPayment(ctx context.Context, id int64) (Payment, error)
	ListPayments(ctx context.Context) ([]Payment, error)
}

type PaymentGateway interface {
	CreateInvoice(ctx context.Context, amount Money, reference string) (Invoice, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Incr(ctx context.Context, key string) (int64, error)
}
