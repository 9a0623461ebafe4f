package domain

import (
	"strings"
	"time"
)

// Stay is the half-open interval [CheckIn, CheckOut).
type Stay struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// Overlaps reports whether two half-open intervals intersect:
// a.CheckIn < b.CheckOut && b.CheckIn < a.CheckOut.
// Back-to-back stays (one checks out when the next checks in) do not overlap.
func (s Stay) Overlaps(o Stay) bool {
	return s.CheckIn.Before(o.CheckOut) && o.CheckIn.Before(s.CheckOut)
}

// MaxStayNights bounds a single booking; the largest amount must fit
// payments.amount.
const MaxStayNights = 365

// Nights is the whole-day truncation of CheckOut-CheckIn: 47h is one night.
func (s Stay) Nights() int64 {
	d := s.CheckOut.Sub(s.CheckIn)
	if d <= 0 {
		return 0
	}
	return int64(d / (24 * time.Hour))
}

// RoomBooking is one (booking, room) occupancy as read from storage.
type RoomBooking struct {
	BookingID int64
	RoomID    int64
	Stay      Stay
}

// BusyRooms returns the ids of rooms that have at least one occupancy
// overlapping stay.
func BusyRooms(existing []RoomBooking, stay Stay) map[int64]bool {
	busy := make(map[int64]bool, len(existing))
	for _, rb := range existing {
		if rb.Stay.Overlaps(stay) {
			busy[rb.RoomID] = true
		}
	}
	return busy
}

// FirstFree is first-fit allocation: the first room, in the given order,
// that is not busy. Returns nil when every room is taken.
func FirstFree(rooms []Room, busy map[int64]bool) *Room {
	for i := range rooms {
		if !busy[rooms[i].ID] {
			return &rooms[i]
		}
	}
	return nil
}

// StayAmount is nights x sum of nightly prices of the rooms.
func StayAmount(stay Stay, rooms []Room) Money {
	var perNight Money
	for _, r := range rooms {
		perNight += r.PricePerNight
	}
	return perNight.Times(stay.Nights())
}

type Booking struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user"`
	HotelID   int64     `json:"hotel"`
	RoomType  string    `json:"room_type"`
	Stay      Stay      `json:"-"`
	Adults    int       `json:"adults"`
	Children  int       `json:"children"`
	Rooms     []Room    `json:"rooms"`
	CreatedAt time.Time `json:"created_at"`
	Payment   *Payment  `json:"payment,omitempty"`
}

func (b Booking) Guests() int { return b.Adults + b.Children }

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// gateway vocabulary (Monobank invoice statuses) folded onto ours
var paymentStatusAliases = map[string]PaymentStatus{
	"pending":    PaymentPending,
	"paid":       PaymentPaid,
	"failed":     PaymentFailed,
	"created":    PaymentPending,
	"processing": PaymentPending,
	"hold":       PaymentPending,
	"success":    PaymentPaid,
	"failure":    PaymentFailed,
	"expired":    PaymentFailed,
	"reversed":   PaymentFailed,
}

// ParsePaymentStatus normalises a status string coming from a client or the
// payment gateway. ok is false for anything outside the known vocabulary.
func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st, ok := paymentStatusAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

type Payment struct {
	ID          int64         `json:"id"`
	BookingID   int64         `json:"booking"`
	Amount      Money         `json:"amount"`
	Status      PaymentStatus `json:"status"`
	PaymentDate time.Time     `json:"payment_date"`
	InvoiceID   string        `json:"invoice_id"`
	PaymentURL  string        `json:"payment_url,omitempty"`

	// set when the gateway could not be reached while booking; the
	// invoice is registered later by the retry sweep
	LinkUnavailable bool `json:"payment_link_unavailable"`

	// link retry bookkeeping
	LinkAttempts  int       `json:"-"`
	NextAttemptAt time.Time `json:"-"`
	ClaimedUntil  time.Time `json:"-"`
	LinkAbandoned bool      `json:"-"`
}

// Invoice is what the payment gateway hands back for a registered payment.
type Invoice struct {
	InvoiceID  string
	PaymentURL string
}
