package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hotel_booking/internal/app"
	"hotel_booking/internal/app/apptest"
	"hotel_booking/internal/domain"
)

// two hotels; hotel 1 has Standard rooms 11 (2 guests) and 12 (4 guests)
// and a Suite 13; hotel 2 only has a Penthouse
func availabilityFixture() *apptest.Store {
	s := apptest.NewStore()
	s.AddHotel(1, "Dnipro")
	s.AddHotel(2, "Lviv")
	std := s.AddType(1, "Standard")
	suite := s.AddType(2, "Suite")
	ph := s.AddType(3, "Penthouse")
	s.AddRoom(11, 1, 101, std, domain.Money(10000), 2)
	s.AddRoom(12, 1, 102, std, domain.Money(12000), 4)
	s.AddRoom(13, 1, 201, suite, domain.Money(30000), 3)
	s.AddRoom(21, 2, 901, ph, domain.Money(90000), 6)
	return s
}

func query(in, out string, adults, children int) app.AvailabilityQuery {
	return app.AvailabilityQuery{
		HotelID:  1,
		Stay:     domain.Stay{CheckIn: apptest.TS(in), CheckOut: apptest.TS(out)},
		Adults:   adults,
		Children: children,
	}
}

func typeNames(types []domain.RoomType) []string {
	out := []string{}
	for _, t := range types {
		out = append(out, t.Name)
	}
	return out
}

func TestFindAvailableRoomTypes_OrderedByTypeID(t *testing.T) {
	svc := app.NewAvailabilityService(availabilityFixture(), nil, 0)

	got, err := svc.FindAvailableRoomTypes(context.Background(), query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 2, 0))
	require.NoError(t, err)
	// Penthouse lives in another hotel and is never considered
	require.Equal(t, []string{"Standard", "Suite"}, typeNames(got))
}

func TestFindAvailableRoomTypes_CapacityAndOverlap(t *testing.T) {
	s := availabilityFixture()
	// the only 4-guest Standard is taken for an overlapping stay
	s.AddBooking(12, domain.Stay{CheckIn: apptest.TS("2025-07-02T14:00:00Z"), CheckOut: apptest.TS("2025-07-05T11:00:00Z")})
	svc := app.NewAvailabilityService(s, nil, 0)

	got, err := svc.FindAvailableRoomTypes(context.Background(), query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 2, 2))
	require.NoError(t, err)
	require.Empty(t, got)
	require.NotNil(t, got)

	// three guests fit the suite
	got, err = svc.FindAvailableRoomTypes(context.Background(), query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 2, 1))
	require.NoError(t, err)
	require.Equal(t, []string{"Suite"}, typeNames(got))
}

func TestFindAvailableRoomTypes_BackToBackIsFree(t *testing.T) {
	s := availabilityFixture()
	s.AddBooking(11, domain.Stay{CheckIn: apptest.TS("2025-06-28T14:00:00Z"), CheckOut: apptest.TS("2025-07-01T14:00:00Z")})
	s.AddBooking(12, domain.Stay{CheckIn: apptest.TS("2025-07-03T11:00:00Z"), CheckOut: apptest.TS("2025-07-04T11:00:00Z")})
	svc := app.NewAvailabilityService(s, nil, 0)

	got, err := svc.FindAvailableRoomTypes(context.Background(), query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 1, 0))
	require.NoError(t, err)
	require.Contains(t, typeNames(got), "Standard")
}

func TestFindAvailableRoomTypes_AdministrativelyUnavailable(t *testing.T) {
	s := availabilityFixture()
	s.SetRoomAvailable(13, false)
	svc := app.NewAvailabilityService(s, nil, 0)

	got, err := svc.FindAvailableRoomTypes(context.Background(), query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 1, 0))
	require.NoError(t, err)
	require.Equal(t, []string{"Standard"}, typeNames(got))
}

func TestFindAvailableRoomTypes_Errors(t *testing.T) {
	svc := app.NewAvailabilityService(availabilityFixture(), nil, 0)
	ctx := context.Background()

	q := query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 1, 0)
	q.HotelID = 404
	_, err := svc.FindAvailableRoomTypes(ctx, q)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = svc.FindAvailableRoomTypes(ctx, query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", -1, 0))
	require.Equal(t, domain.KindBadRequest, domain.KindOf(err))
}

func TestFindAvailableRoomTypes_CacheInvalidatedByBooking(t *testing.T) {
	s := availabilityFixture()
	cache := apptest.NewCache()
	avail := app.NewAvailabilityService(s, cache, time.Minute)
	book := app.NewBookingService(s, nil, cache).WithClock(apptest.FixedClock("2025-06-01T00:00:00Z"))
	ctx := context.Background()
	q := query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 3, 0)

	got, err := avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"Standard", "Suite"}, typeNames(got))

	// a booking written behind the service's back is not seen while cached
	s.AddBooking(12, q.Stay)
	got, err = avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"Standard", "Suite"}, typeNames(got))

	// booking through the allocator bumps the hotel generation
	_, err = book.CreateBooking(ctx, app.BookingRequest{
		UserID: 7, HotelID: 1, RoomType: "Suite", Stay: q.Stay, Adults: 3,
	})
	require.NoError(t, err)

	got, err = avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFindAvailableRoomTypes_CacheInvalidatedByRoomWrites(t *testing.T) {
	s := availabilityFixture()
	cache := apptest.NewCache()
	avail := app.NewAvailabilityService(s, cache, time.Minute)
	catalog := app.NewCatalogService(s, cache)
	ctx := context.Background()
	q := query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 5, 0)

	got, err := avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Empty(t, got, "no room in hotel 1 sleeps five")

	// written behind the service's back: the cached answer stands
	s.AddRoom(14, 1, 103, domain.RoomType{ID: 1, Name: "Standard"}, domain.Money(10000), 5)
	got, err = avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Empty(t, got)

	room, err := catalog.CreateRoom(ctx, domain.Room{
		HotelID: 1, RoomNumber: 301, RoomType: domain.RoomType{Name: "Suite"},
		PricePerNight: domain.Money(40000), MaxGuests: 6, IsAvailable: true,
	})
	require.NoError(t, err)
	got, err = avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"Standard", "Suite"}, typeNames(got))

	room.IsAvailable = false
	_, err = catalog.UpdateRoom(ctx, room)
	require.NoError(t, err)
	got, err = avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"Standard"}, typeNames(got))

	require.NoError(t, catalog.DeleteRoom(ctx, 14))
	got, err = avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestFindAvailableRoomTypes_CacheInvalidatedByRoomTypeEdit(t *testing.T) {
	s := availabilityFixture()
	cache := apptest.NewCache()
	avail := app.NewAvailabilityService(s, cache, time.Minute)
	catalog := app.NewCatalogService(s, cache)
	ctx := context.Background()
	q := query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 2, 0)

	got, err := avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"Standard", "Suite"}, typeNames(got))

	_, err = catalog.UpdateRoomType(ctx, domain.RoomType{ID: 2, Name: "Junior Suite"})
	require.NoError(t, err)
	got, err = avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"Standard", "Junior Suite"}, typeNames(got))
}

func TestFindAvailableRoomTypes_RoomMovedBetweenHotels(t *testing.T) {
	s := availabilityFixture()
	cache := apptest.NewCache()
	avail := app.NewAvailabilityService(s, cache, time.Minute)
	catalog := app.NewCatalogService(s, cache)
	ctx := context.Background()
	q := query("2025-07-01T14:00:00Z", "2025-07-03T11:00:00Z", 1, 0)
	q2 := q
	q2.HotelID = 2

	got, err := avail.FindAvailableRoomTypes(ctx, q2)
	require.NoError(t, err)
	require.Equal(t, []string{"Penthouse"}, typeNames(got))
	got, err = avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"Standard", "Suite"}, typeNames(got))

	// the only Suite moves to Lviv
	suite, err := catalog.GetRoom(ctx, 13)
	require.NoError(t, err)
	suite.HotelID = 2
	_, err = catalog.UpdateRoom(ctx, suite)
	require.NoError(t, err)

	got, err = avail.FindAvailableRoomTypes(ctx, q2)
	require.NoError(t, err)
	require.Equal(t, []string{"Suite", "Penthouse"}, typeNames(got))
	got, err = avail.FindAvailableRoomTypes(ctx, q)
	require.NoError(t, err)
	require.Equal(t, []string{"Standard"}, typeNames(got))
}
