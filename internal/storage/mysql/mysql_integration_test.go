//go:build integration || !unit

package mysql_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hotel_booking/internal/app"
	"hotel_booking/internal/app/apptest"
	"hotel_booking/internal/domain"
	mysqlrepo "hotel_booking/internal/storage/mysql"
	"hotel_booking/internal/storage/mysql/mysqltest"
)

type fixture struct {
	repo  *mysqlrepo.Repo
	hotel domain.Hotel
	rooms []domain.Room
}

// seed creates one hotel with two Standard rooms (2 and 4 guests) and one
// Suite.
func seed(t *testing.T) fixture {
	t.Helper()
	repo := mysqlrepo.New(mysqltest.Start(t))
	ctx := context.Background()

	h := domain.Hotel{Name: "Dnipro", Location: "Kyiv", Description: "river view"}
	require.NoError(t, repo.CreateHotel(ctx, &h))
	for _, name := range []string{"Standard", "Suite"} {
		require.NoError(t, repo.CreateRoomType(ctx, &domain.RoomType{Name: name}))
	}
	wifi := domain.Amenity{Name: "Wi-Fi"}
	require.NoError(t, repo.CreateAmenity(ctx, &wifi))

	specs := []domain.Room{
		{RoomNumber: 101, RoomType: domain.RoomType{Name: "Standard"}, PricePerNight: 10000, MaxGuests: 2, AmenityIDs: []int64{wifi.ID}},
		{RoomNumber: 102, RoomType: domain.RoomType{Name: "Standard"}, PricePerNight: 12050, MaxGuests: 4},
		{RoomNumber: 201, RoomType: domain.RoomType{Name: "Suite"}, PricePerNight: 30000, MaxGuests: 3},
	}
	f := fixture{repo: repo, hotel: h}
	for _, rm := range specs {
		rm.HotelID = h.ID
		rm.IsAvailable = true
		require.NoError(t, repo.CreateRoom(ctx, &rm))
		f.rooms = append(f.rooms, rm)
	}
	return f
}

func stay(in, out string) domain.Stay {
	return domain.Stay{CheckIn: apptest.TS(in), CheckOut: apptest.TS(out)}
}

func TestRepo_MySQL_Catalog(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	got, err := f.repo.GetHotel(ctx, f.hotel.ID)
	require.NoError(t, err)
	require.Equal(t, f.hotel, got)

	_, err = f.repo.GetHotel(ctx, f.hotel.ID+100)
	require.ErrorIs(t, err, domain.ErrNotFound)

	err = f.repo.CreateRoomType(ctx, &domain.RoomType{Name: "Standard"})
	require.ErrorIs(t, err, domain.ErrConflict)

	dup := domain.Room{HotelID: f.hotel.ID, RoomNumber: 101, RoomType: domain.RoomType{Name: "Suite"}, PricePerNight: 1, MaxGuests: 1}
	require.ErrorIs(t, f.repo.CreateRoom(ctx, &dup), domain.ErrConflict)

	unknown := domain.Room{HotelID: f.hotel.ID, RoomNumber: 999, RoomType: domain.RoomType{Name: "Loft"}, PricePerNight: 1, MaxGuests: 1}
	require.ErrorIs(t, f.repo.CreateRoom(ctx, &unknown), domain.ErrNotFound)

	rooms, err := f.repo.ListRooms(ctx, f.hotel.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 3)
	require.Equal(t, domain.Money(12050), rooms[1].PricePerNight)
	require.Len(t, rooms[0].AmenityIDs, 1)
	require.Equal(t, "Dnipro", rooms[0].HotelName)

	rv := domain.Review{UserID: 7, HotelID: f.hotel.ID, Rating: 4, Comment: "quiet", CreatedAt: apptest.TS("2025-06-01T10:00:00Z")}
	require.NoError(t, f.repo.CreateReview(ctx, &rv))
	reviews, err := f.repo.ListReviews(ctx, f.hotel.ID, 10)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	require.Equal(t, "quiet", reviews[0].Comment)
}

func TestRepo_MySQL_CatalogUpdatesAndDeletes(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	wifiID := f.rooms[0].AmenityIDs[0]

	h := f.hotel
	h.Name = "Dnipro Riverside"
	require.NoError(t, f.repo.UpdateHotel(ctx, h))
	require.NoError(t, f.repo.UpdateHotel(ctx, h), "unchanged values are not a miss")
	require.ErrorIs(t, f.repo.UpdateHotel(ctx, domain.Hotel{ID: 999999, Name: "x", Location: "y"}), domain.ErrNotFound)

	// switch 101 off, make it a Suite and drop its amenities
	room := f.rooms[0]
	room.IsAvailable = false
	room.RoomType = domain.RoomType{Name: "Suite"}
	room.AmenityIDs = nil
	require.NoError(t, f.repo.UpdateRoom(ctx, &room))
	got, err := f.repo.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.False(t, got.IsAvailable)
	require.Equal(t, "Suite", got.RoomType.Name)
	require.Empty(t, got.AmenityIDs)
	require.Equal(t, "Dnipro Riverside", got.HotelName)

	room.RoomNumber = 102
	require.ErrorIs(t, f.repo.UpdateRoom(ctx, &room), domain.ErrConflict)
	room.RoomNumber = 101
	room.RoomType = domain.RoomType{Name: "Loft"}
	require.ErrorIs(t, f.repo.UpdateRoom(ctx, &room), domain.ErrNotFound)
	_, err = f.repo.GetRoom(ctx, 999999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	rt, err := f.repo.GetRoomType(ctx, got.RoomType.ID)
	require.NoError(t, err)
	rt.Description = "two rooms"
	require.NoError(t, f.repo.UpdateRoomType(ctx, rt))
	rt.Name = "Standard"
	require.ErrorIs(t, f.repo.UpdateRoomType(ctx, rt), domain.ErrConflict)
	require.ErrorIs(t, f.repo.DeleteRoomType(ctx, rt.ID), domain.ErrConflict, "still used by rooms")

	// a booked room pins itself and its hotel
	svc := app.NewBookingService(f.repo, nil, nil).WithClock(apptest.FixedClock("2025-06-01T09:00:00Z"))
	b, err := svc.CreateBooking(ctx, app.BookingRequest{
		UserID: 7, HotelID: f.hotel.ID, RoomType: "Standard",
		Stay:   stay("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z"),
		Adults: 2,
	})
	require.NoError(t, err)
	require.Equal(t, f.rooms[1].ID, b.Rooms[0].ID, "101 is no longer a Standard room")
	require.ErrorIs(t, f.repo.DeleteRoom(ctx, f.rooms[1].ID), domain.ErrConflict)
	require.ErrorIs(t, f.repo.DeleteHotel(ctx, f.hotel.ID), domain.ErrConflict)

	require.NoError(t, f.repo.DeleteRoom(ctx, f.rooms[2].ID))
	require.ErrorIs(t, f.repo.DeleteRoom(ctx, f.rooms[2].ID), domain.ErrNotFound)

	a, err := f.repo.GetAmenity(ctx, wifiID)
	require.NoError(t, err)
	a.Name = "Fast Wi-Fi"
	require.NoError(t, f.repo.UpdateAmenity(ctx, a))
	a, err = f.repo.GetAmenity(ctx, wifiID)
	require.NoError(t, err)
	require.Equal(t, "Fast Wi-Fi", a.Name)
	require.NoError(t, f.repo.DeleteAmenity(ctx, wifiID))
	_, err = f.repo.GetAmenity(ctx, wifiID)
	require.ErrorIs(t, err, domain.ErrNotFound)

	rv := domain.Review{UserID: 7, HotelID: f.hotel.ID, Rating: 4, Comment: "quiet", CreatedAt: apptest.TS("2025-06-01T10:00:00Z")}
	require.NoError(t, f.repo.CreateReview(ctx, &rv))
	rv.Rating, rv.Comment = 2, "noisy"
	require.NoError(t, f.repo.UpdateReview(ctx, rv))
	gotRv, err := f.repo.GetReview(ctx, rv.ID)
	require.NoError(t, err)
	require.Equal(t, 2, gotRv.Rating)
	all, err := f.repo.ListReviews(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NoError(t, f.repo.DeleteReview(ctx, rv.ID))
	_, err = f.repo.GetReview(ctx, rv.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_MySQL_BookingAndPayment(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	svc := app.NewBookingService(f.repo, nil, nil).WithClock(apptest.FixedClock("2025-06-01T09:00:00Z"))

	req := app.BookingRequest{
		UserID: 7, HotelID: f.hotel.ID, RoomType: "Standard",
		Stay:   stay("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z"),
		Adults: 2,
	}
	b, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)
	require.Equal(t, f.rooms[0].ID, b.Rooms[0].ID)
	require.Equal(t, domain.Money(10000), b.Payment.Amount)

	// first room taken: next one in id order
	b2, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)
	require.Equal(t, f.rooms[1].ID, b2.Rooms[0].ID)

	// back-to-back stays do not overlap
	req.Stay = stay("2025-07-03T11:00:00Z", "2025-07-04T11:00:00Z")
	b3, err := svc.CreateBooking(ctx, req)
	require.NoError(t, err)
	require.Equal(t, f.rooms[0].ID, b3.Rooms[0].ID)

	got, err := f.repo.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.Equal(t, "Standard", got.RoomType)
	require.Equal(t, f.hotel.ID, got.HotelID)
	require.True(t, got.Stay.CheckIn.Equal(b.Stay.CheckIn))
	require.NotNil(t, got.Payment)
	require.Equal(t, domain.PaymentPending, got.Payment.Status)

	uid := int64(7)
	mine, err := f.repo.ListBookings(ctx, &uid)
	require.NoError(t, err)
	require.Len(t, mine, 3)

	overlaps, err := f.repo.OverlappingBookings(ctx, []int64{f.rooms[0].ID, f.rooms[1].ID}, stay("2025-07-02T00:00:00Z", "2025-07-05T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, overlaps, 3)

	// claims: a claimed payment is invisible to other sweepers until its
	// lease runs out
	now := apptest.TS("2025-06-01T10:00:00Z")
	claimed, err := f.repo.ClaimUnlinked(ctx, now, time.Minute, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	require.Equal(t, b.Payment.ID, claimed[0].ID)
	require.True(t, claimed[0].ClaimedUntil.Equal(now.Add(time.Minute)))

	rest, err := f.repo.ClaimUnlinked(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, b3.Payment.ID, rest[0].ID)

	rest, err = f.repo.ClaimUnlinked(ctx, now, time.Minute, 10)
	require.NoError(t, err)
	require.Empty(t, rest)

	// the first stored link wins
	inv := domain.Invoice{InvoiceID: "mono-1", PaymentURL: "https://pay.example/mono-1"}
	require.NoError(t, f.repo.AttachInvoice(ctx, b.Payment.ID, inv))
	require.NoError(t, f.repo.AttachInvoice(ctx, b.Payment.ID, inv), "re-attaching identical values")
	other := domain.Invoice{InvoiceID: "mono-2", PaymentURL: "https://pay.example/mono-2"}
	require.ErrorIs(t, f.repo.AttachInvoice(ctx, b.Payment.ID, other), domain.ErrConflict)
	require.ErrorIs(t, f.repo.AttachInvoice(ctx, 999999, inv), domain.ErrNotFound)

	linked, err := f.repo.GetPayment(ctx, b.Payment.ID)
	require.NoError(t, err)
	require.Equal(t, "mono-1", linked.InvoiceID)
	require.True(t, linked.ClaimedUntil.IsZero())

	// a failed attempt releases the claim and defers the payment
	require.NoError(t, f.repo.RecordLinkFailure(ctx, b2.Payment.ID, now.Add(time.Hour), false))
	require.NoError(t, f.repo.RecordLinkFailure(ctx, b3.Payment.ID, now, true))

	deferred, err := f.repo.GetPayment(ctx, b2.Payment.ID)
	require.NoError(t, err)
	require.Equal(t, 1, deferred.LinkAttempts)
	require.True(t, deferred.NextAttemptAt.Equal(now.Add(time.Hour)))
	require.True(t, deferred.ClaimedUntil.IsZero())

	due, err := f.repo.ClaimUnlinked(ctx, now.Add(2*time.Minute), time.Minute, 10)
	require.NoError(t, err)
	require.Empty(t, due, "b2 waits for its retry time, b3 is abandoned")

	due, err = f.repo.ClaimUnlinked(ctx, now.Add(time.Hour), time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, b2.Payment.ID, due[0].ID)

	_, err = f.repo.GetPayment(ctx, 999999)
	require.ErrorIs(t, err, domain.ErrNotFound)

	p, err := f.repo.UpdatePaymentStatus(ctx, "mono-1", domain.PaymentPaid)
	require.NoError(t, err)
	require.Equal(t, domain.PaymentPaid, p.Status)
	p, err = f.repo.UpdatePaymentStatus(ctx, "mono-1", domain.PaymentPaid)
	require.NoError(t, err, "same status twice")
	require.Equal(t, b.Payment.ID, p.ID)

	_, err = f.repo.UpdatePaymentStatus(ctx, "nope", domain.PaymentPaid)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepo_MySQL_ConcurrentLastRoom(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	svc := app.NewBookingService(f.repo, nil, nil).WithClock(apptest.FixedClock("2025-06-01T09:00:00Z"))

	const n = 10
	var ok, full int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(uid int64) {
			defer wg.Done()
			_, err := svc.CreateBooking(ctx, app.BookingRequest{
				UserID: uid, HotelID: f.hotel.ID, RoomType: "Suite",
				Stay:   stay("2025-08-01T14:00:00Z", "2025-08-05T11:00:00Z"),
				Adults: 2,
			})
			var de *domain.Error
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.As(err, &de) && de.Kind == domain.KindValidation:
				atomic.AddInt32(&full, 1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(i + 1))
	}
	wg.Wait()

	require.EqualValues(t, 1, ok)
	require.EqualValues(t, n-1, full)

	overlaps, err := f.repo.OverlappingBookings(ctx, []int64{f.rooms[2].ID}, stay("2025-08-01T00:00:00Z", "2025-08-10T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
}

func TestRepo_MySQL_ConcurrentClaimsAreDisjoint(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	svc := app.NewBookingService(f.repo, nil, nil).WithClock(apptest.FixedClock("2025-06-01T09:00:00Z"))

	const bookings = 12
	for i := 0; i < bookings; i++ {
		in := apptest.TS("2025-09-01T14:00:00Z").AddDate(0, 0, 2*i)
		_, err := svc.CreateBooking(ctx, app.BookingRequest{
			UserID: 7, HotelID: f.hotel.ID, RoomType: "Suite",
			Stay:   domain.Stay{CheckIn: in, CheckOut: in.AddDate(0, 0, 1)},
			Adults: 1,
		})
		require.NoError(t, err)
	}

	now := apptest.TS("2025-06-01T10:00:00Z")
	var mu sync.Mutex
	seen := map[int64]int{}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ps, err := f.repo.ClaimUnlinked(ctx, now, time.Minute, 5)
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			for _, p := range ps {
				seen[p.ID]++
			}
		}()
	}
	wg.Wait()

	// whatever the racing sweepers skipped is still claimable
	ps, err := f.repo.ClaimUnlinked(ctx, now, time.Minute, bookings)
	require.NoError(t, err)
	for _, p := range ps {
		seen[p.ID]++
	}

	require.Len(t, seen, bookings)
	for id, n := range seen {
		require.Equal(t, 1, n, "payment %d claimed twice", id)
	}
}
