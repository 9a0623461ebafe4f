// Package apptest provides in-memory implementations of the domain ports
// for service and handler tests.
package apptest

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"hotel_booking/internal/domain"
)

// ---- in-memory store ----

// Store implements every repository port. InTx holds mu for the whole
// callback, which is what the row locks give us in MySQL.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	hotels   map[int64]domain.Hotel
	types    []domain.RoomType
	amen     []domain.Amenity
	rooms    []domain.Room
	bookings []domain.Booking
	payments []domain.Payment
	reviews  []domain.Review

	TxCalls   int
	LastLimit int
	FailTx    error
}

func NewStore() *Store {
	return &Store{hotels: map[int64]domain.Hotel{}, nextID: 100}
}

func (s *Store) ID() int64 { s.nextID++; return s.nextID }

// seed helpers; not part of any port. Call them before the store is shared
// between goroutines.

func (s *Store) AddHotel(id int64, name string) {
	s.hotels[id] = domain.Hotel{ID: id, Name: name, Location: "Kyiv"}
}

func (s *Store) AddType(id int64, name string) domain.RoomType {
	t := domain.RoomType{ID: id, Name: name}
	s.types = append(s.types, t)
	return t
}

func (s *Store) AddRoom(id, hotelID int64, number int, t domain.RoomType, price domain.Money, maxGuests int) {
	s.rooms = append(s.rooms, domain.Room{
		ID: id, HotelID: hotelID, HotelName: s.hotels[hotelID].Name, RoomNumber: number,
		RoomType: t, PricePerNight: price, MaxGuests: maxGuests, IsAvailable: true,
		AmenityIDs: []int64{},
	})
}

func (s *Store) AddBooking(roomID int64, st domain.Stay) {
	for _, r := range s.rooms {
		if r.ID == roomID {
			s.bookings = append(s.bookings, domain.Booking{ID: s.ID(), Stay: st, Rooms: []domain.Room{r}})
			return
		}
	}
	panic("unknown room")
}

// SetRoomAvailable flips the administrative toggle of a seeded room.
func (s *Store) SetRoomAvailable(id int64, ok bool) {
	for i := range s.rooms {
		if s.rooms[i].ID == id {
			s.rooms[i].IsAvailable = ok
		}
	}
}

func (s *Store) AddPayment(p domain.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, p)
}

func (s *Store) BookingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

func (s *Store) candidates(f domain.RoomFilter) []domain.Room {
	var out []domain.Room
	for _, r := range s.rooms {
		if r.HotelID != f.HotelID || !r.IsAvailable || r.MaxGuests < f.MinGuests {
			continue
		}
		if f.RoomTypeName != "" && r.RoomType.Name != f.RoomTypeName {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) overlapping(ids []int64, st domain.Stay) []domain.RoomBooking {
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []domain.RoomBooking
	for _, b := range s.bookings {
		for _, r := range b.Rooms {
			if want[r.ID] && b.Stay.Overlaps(st) {
				out = append(out, domain.RoomBooking{BookingID: b.ID, RoomID: r.ID, Stay: b.Stay})
			}
		}
	}
	return out
}

// AvailabilityRepository

func (s *Store) HotelExists(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.hotels[id]
	return ok, nil
}

func (s *Store) CandidateRooms(ctx context.Context, f domain.RoomFilter) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidates(f), nil
}

func (s *Store) OverlappingBookings(ctx context.Context, ids []int64, st domain.Stay) ([]domain.RoomBooking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlapping(ids, st), nil
}

// BookingStore

type storeTx struct {
	s        *Store
	bookings []domain.Booking
	payments []domain.Payment
}

func (s *Store) InTx(ctx context.Context, fn func(tx domain.BookingTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TxCalls++
	if s.FailTx != nil {
		return s.FailTx
	}
	tx := &storeTx{s: s}
	if err := fn(tx); err != nil {
		return err
	}
	s.bookings = append(s.bookings, tx.bookings...)
	s.payments = append(s.payments, tx.payments...)
	return nil
}

func (t *storeTx) LockCandidateRooms(ctx context.Context, f domain.RoomFilter) ([]domain.Room, error) {
	return t.s.candidates(f), nil
}

func (t *storeTx) OverlappingBookings(ctx context.Context, ids []int64, st domain.Stay) ([]domain.RoomBooking, error) {
	// widen the race window; the store mutex must still serialize us
	time.Sleep(time.Millisecond)
	return t.s.overlapping(ids, st), nil
}

func (t *storeTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	b.ID = t.s.ID()
	cp := *b
	cp.Payment = nil
	t.bookings = append(t.bookings, cp)
	return nil
}

func (t *storeTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	p.ID = t.s.ID()
	t.payments = append(t.payments, *p)
	return nil
}

func (s *Store) withPayment(b domain.Booking) domain.Booking {
	for i := range s.payments {
		if s.payments[i].BookingID == b.ID {
			p := s.payments[i]
			b.Payment = &p
		}
	}
	return b
}

func (s *Store) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.ID == id {
			return s.withPayment(b), nil
		}
	}
	return domain.Booking{}, domain.ErrNotFound
}

func (s *Store) ListBookings(ctx context.Context, userID *int64) ([]domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Booking{}
	for _, b := range s.bookings {
		if userID == nil || b.UserID == *userID {
			out = append(out, s.withPayment(b))
		}
	}
	return out, nil
}

// PaymentRepository

func (s *Store) UpdatePaymentStatus(ctx context.Context, invoiceID string, st domain.PaymentStatus) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payments {
		if s.payments[i].InvoiceID == invoiceID {
			s.payments[i].Status = st
			return s.payments[i], nil
		}
	}
	return domain.Payment{}, domain.ErrNotFound
}

func (s *Store) ClaimUnlinked(ctx context.Context, now time.Time, lease time.Duration, limit int) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []int
	for i, p := range s.payments {
		if p.Status != domain.PaymentPending || p.PaymentURL != "" || p.LinkAbandoned {
			continue
		}
		if p.NextAttemptAt.After(now) || p.ClaimedUntil.After(now) {
			continue
		}
		due = append(due, i)
	}
	sort.SliceStable(due, func(a, b int) bool {
		pa, pb := s.payments[due[a]], s.payments[due[b]]
		if !pa.NextAttemptAt.Equal(pb.NextAttemptAt) {
			return pa.NextAttemptAt.Before(pb.NextAttemptAt)
		}
		return pa.ID < pb.ID
	})
	out := []domain.Payment{}
	for _, i := range due {
		if len(out) == limit {
			break
		}
		s.payments[i].ClaimedUntil = now.Add(lease)
		out = append(out, s.payments[i])
	}
	return out, nil
}

func (s *Store) AttachInvoice(ctx context.Context, paymentID int64, inv domain.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payments {
		p := &s.payments[i]
		if p.ID != paymentID {
			continue
		}
		if p.PaymentURL != "" {
			if p.InvoiceID == inv.InvoiceID && p.PaymentURL == inv.PaymentURL {
				return nil
			}
			return domain.ErrConflict
		}
		p.InvoiceID = inv.InvoiceID
		p.PaymentURL = inv.PaymentURL
		p.ClaimedUntil = time.Time{}
		return nil
	}
	return domain.ErrNotFound
}

func (s *Store) RecordLinkFailure(ctx context.Context, paymentID int64, retryAt time.Time, abandon bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.payments {
		p := &s.payments[i]
		if p.ID == paymentID && p.PaymentURL == "" {
			p.LinkAttempts++
			p.NextAttemptAt = retryAt
			p.ClaimedUntil = time.Time{}
			p.LinkAbandoned = abandon
		}
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, id int64) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Payment{}, domain.ErrNotFound
}

func (s *Store) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Payment{}, s.payments...), nil
}

func (s *Store) Payment(bookingID int64) domain.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.payments {
		if p.BookingID == bookingID {
			return p
		}
	}
	return domain.Payment{}
}

// CatalogRepository

func (s *Store) CreateHotel(ctx context.Context, h *domain.Hotel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	h.ID = s.ID()
	s.hotels[h.ID] = *h
	return nil
}

func (s *Store) CreateRoomType(ctx context.Context, t *domain.RoomType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.types {
		if x.Name == t.Name {
			return domain.ErrConflict
		}
	}
	t.ID = s.ID()
	s.types = append(s.types, *t)
	return nil
}

func (s *Store) CreateAmenity(ctx context.Context, a *domain.Amenity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = s.ID()
	s.amen = append(s.amen, *a)
	return nil
}

func (s *Store) CreateRoom(ctx context.Context, r *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, x := range s.rooms {
		if x.HotelID == r.HotelID && x.RoomNumber == r.RoomNumber {
			return domain.ErrConflict
		}
	}
	found := false
	for _, t := range s.types {
		if t.Name == r.RoomType.Name {
			r.RoomType, found = t, true
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	r.ID = s.ID()
	r.HotelName = s.hotels[r.HotelID].Name
	s.rooms = append(s.rooms, *r)
	return nil
}

func (s *Store) CreateReview(ctx context.Context, rv *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv.ID = s.ID()
	s.reviews = append(s.reviews, *rv)
	return nil
}

func (s *Store) GetHotel(ctx context.Context, id int64) (domain.Hotel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.hotels[id]
	if !ok {
		return domain.Hotel{}, domain.ErrNotFound
	}
	return h, nil
}

func (s *Store) ListHotels(ctx context.Context) ([]domain.Hotel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Hotel{}
	for _, h := range s.hotels {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListRoomTypes(ctx context.Context) ([]domain.RoomType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.RoomType{}, s.types...), nil
}

func (s *Store) ListAmenities(ctx context.Context) ([]domain.Amenity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Amenity{}, s.amen...), nil
}

func (s *Store) ListRooms(ctx context.Context, hotelID int64) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Room{}
	for _, r := range s.rooms {
		if hotelID == 0 || r.HotelID == hotelID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListReviews(ctx context.Context, hotelID int64, limit int) ([]domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastLimit = limit
	out := []domain.Review{}
	for _, rv := range s.reviews {
		if hotelID == 0 || rv.HotelID == hotelID {
			out = append(out, rv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) GetRoomType(ctx context.Context, id int64) (domain.RoomType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.types {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.RoomType{}, domain.ErrNotFound
}

func (s *Store) GetAmenity(ctx context.Context, id int64) (domain.Amenity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.amen {
		if a.ID == id {
			return a, nil
		}
	}
	return domain.Amenity{}, domain.ErrNotFound
}

func (s *Store) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Room{}, domain.ErrNotFound
}

func (s *Store) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rv := range s.reviews {
		if rv.ID == id {
			return rv, nil
		}
	}
	return domain.Review{}, domain.ErrNotFound
}

func (s *Store) UpdateHotel(ctx context.Context, h domain.Hotel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hotels[h.ID]; !ok {
		return domain.ErrNotFound
	}
	s.hotels[h.ID] = h
	for i := range s.rooms {
		if s.rooms[i].HotelID == h.ID {
			s.rooms[i].HotelName = h.Name
		}
	}
	return nil
}

func (s *Store) UpdateRoomType(ctx context.Context, t domain.RoomType) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, x := range s.types {
		if x.ID == t.ID {
			idx = i
		} else if x.Name == t.Name {
			return domain.ErrConflict
		}
	}
	if idx < 0 {
		return domain.ErrNotFound
	}
	s.types[idx] = t
	for i := range s.rooms {
		if s.rooms[i].RoomType.ID == t.ID {
			s.rooms[i].RoomType = t
		}
	}
	return nil
}

func (s *Store) UpdateAmenity(ctx context.Context, a domain.Amenity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.amen {
		if s.amen[i].ID == a.ID {
			s.amen[i] = a
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) UpdateRoom(ctx context.Context, r *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := -1
	for i, x := range s.rooms {
		if x.ID == r.ID {
			idx = i
		} else if x.HotelID == r.HotelID && x.RoomNumber == r.RoomNumber {
			return domain.ErrConflict
		}
	}
	if idx < 0 {
		return domain.ErrNotFound
	}
	found := false
	for _, t := range s.types {
		if t.Name == r.RoomType.Name {
			r.RoomType, found = t, true
		}
	}
	if !found {
		return domain.ErrNotFound
	}
	if r.AmenityIDs == nil {
		r.AmenityIDs = []int64{}
	}
	r.HotelName = s.hotels[r.HotelID].Name
	s.rooms[idx] = *r
	return nil
}

func (s *Store) UpdateReview(ctx context.Context, rv domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.reviews {
		if s.reviews[i].ID == rv.ID {
			s.reviews[i] = rv
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) roomBooked(roomID int64) bool {
	for _, b := range s.bookings {
		for _, r := range b.Rooms {
			if r.ID == roomID {
				return true
			}
		}
	}
	return false
}

// DeleteHotel cascades to rooms and reviews like the schema does.
func (s *Store) DeleteHotel(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.hotels[id]; !ok {
		return domain.ErrNotFound
	}
	var rooms []domain.Room
	for _, r := range s.rooms {
		if r.HotelID != id {
			rooms = append(rooms, r)
		} else if s.roomBooked(r.ID) {
			return domain.ErrConflict
		}
	}
	var reviews []domain.Review
	for _, rv := range s.reviews {
		if rv.HotelID != id {
			reviews = append(reviews, rv)
		}
	}
	delete(s.hotels, id)
	s.rooms, s.reviews = rooms, reviews
	return nil
}

func (s *Store) DeleteRoomType(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rooms {
		if r.RoomType.ID == id {
			return domain.ErrConflict
		}
	}
	for i, t := range s.types {
		if t.ID == id {
			s.types = append(s.types[:i], s.types[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *Store) DeleteAmenity(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.amen {
		if a.ID != id {
			continue
		}
		s.amen = append(s.amen[:i], s.amen[i+1:]...)
		for j := range s.rooms {
			kept := []int64{}
			for _, aid := range s.rooms[j].AmenityIDs {
				if aid != id {
					kept = append(kept, aid)
				}
			}
			s.rooms[j].AmenityIDs = kept
		}
		return nil
	}
	return domain.ErrNotFound
}

func (s *Store) DeleteRoom(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rooms {
		if r.ID != id {
			continue
		}
		if s.roomBooked(id) {
			return domain.ErrConflict
		}
		s.rooms = append(s.rooms[:i], s.rooms[i+1:]...)
		return nil
	}
	return domain.ErrNotFound
}

func (s *Store) DeleteReview(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rv := range s.reviews {
		if rv.ID == id {
			s.reviews = append(s.reviews[:i], s.reviews[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotFound
}

// ---- cache ----

// Cache stores JSON like the Redis adapter, so any dst type works.
type Cache struct {
	mu    sync.Mutex
	store map[string][]byte
	Hits  int
}

func NewCache() *Cache { return &Cache{store: map[string][]byte{}} }

func (c *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.store[key]
	if !ok {
		return false, nil
	}
	c.Hits++
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = b
	return nil
}

func (c *Cache) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, _ := strconv.ParseInt(string(c.store[key]), 10, 64)
	n++
	c.store[key] = []byte(strconv.FormatInt(n, 10))
	return n, nil
}

// ---- gateway ----

// Gateway records every call. When Hold is set a call reports on Entered
// (if set) and then blocks until Hold is closed.
type Gateway struct {
	Calls   int32
	Fail    error
	ID      string
	Hold    chan struct{}
	Entered chan struct{}

	mu   sync.Mutex
	refs []string
}

func (g *Gateway) CreateInvoice(ctx context.Context, amount domain.Money, ref string) (domain.Invoice, error) {
	atomic.AddInt32(&g.Calls, 1)
	g.mu.Lock()
	g.refs = append(g.refs, ref)
	g.mu.Unlock()

	if g.Entered != nil {
		g.Entered <- struct{}{}
	}
	if g.Hold != nil {
		select {
		case <-g.Hold:
		case <-ctx.Done():
			return domain.Invoice{}, ctx.Err()
		}
	}
	if g.Fail != nil {
		return domain.Invoice{}, g.Fail
	}
	id := g.ID
	if id == "" {
		id = "gw-" + ref
	}
	return domain.Invoice{InvoiceID: id, PaymentURL: "https://pay.example/" + id}, nil
}

// Refs lists the references the gateway was called with, in call order.
func (g *Gateway) Refs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string{}, g.refs...)
}

var ErrGatewayDown = errors.New("gateway down")

// ---- helpers ----

func TS(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func FixedClock(s string) func() time.Time {
	t := TS(s)
	return func() time.Time { return t }
}
