package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"hotel_booking/internal/app"
	"hotel_booking/internal/app/apptest"
	"hotel_booking/internal/domain"
)

func TestCatalog_CreateHotelRequiresNameAndLocation(t *testing.T) {
	svc := app.NewCatalogService(apptest.NewStore(), nil)

	_, err := svc.CreateHotel(context.Background(), domain.Hotel{Name: "Dnipro"})
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	h, err := svc.CreateHotel(context.Background(), domain.Hotel{Name: "Dnipro", Location: "Kyiv"})
	require.NoError(t, err)
	require.NotZero(t, h.ID)

	got, err := svc.GetHotel(context.Background(), h.ID)
	require.NoError(t, err)
	require.Equal(t, h, got)

	_, err = svc.GetHotel(context.Background(), 999)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCatalog_RoomTypeNamesAreUnique(t *testing.T) {
	svc := app.NewCatalogService(apptest.NewStore(), nil)
	ctx := context.Background()

	_, err := svc.CreateRoomType(ctx, domain.RoomType{Name: "Suite"})
	require.NoError(t, err)
	_, err = svc.CreateRoomType(ctx, domain.RoomType{Name: "Suite"})
	require.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestCatalog_CreateRoom(t *testing.T) {
	s := apptest.NewStore()
	s.AddHotel(1, "Dnipro")
	s.AddType(1, "Standard")
	svc := app.NewCatalogService(s, nil)
	ctx := context.Background()

	room := domain.Room{
		HotelID: 1, RoomNumber: 101, RoomType: domain.RoomType{Name: "Standard"},
		PricePerNight: domain.Money(10000), MaxGuests: 2, IsAvailable: true,
	}
	got, err := svc.CreateRoom(ctx, room)
	require.NoError(t, err)
	require.NotZero(t, got.ID)
	require.EqualValues(t, 1, got.RoomType.ID)

	_, err = svc.CreateRoom(ctx, room)
	require.Equal(t, domain.KindConflict, domain.KindOf(err))

	room.RoomNumber = 102
	room.RoomType.Name = "Igloo"
	_, err = svc.CreateRoom(ctx, room)
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	room.RoomType.Name = "Standard"
	room.PricePerNight = 0
	_, err = svc.CreateRoom(ctx, room)
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	room.PricePerNight = domain.Money(100)
	room.HotelID = 404
	_, err = svc.CreateRoom(ctx, room)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCatalog_Reviews(t *testing.T) {
	s := apptest.NewStore()
	s.AddHotel(1, "Dnipro")
	svc := app.NewCatalogService(s, nil).WithClock(apptest.FixedClock("2025-06-01T09:00:00Z"))
	ctx := context.Background()

	_, err := svc.CreateReview(ctx, domain.Review{UserID: 7, HotelID: 1, Rating: 6})
	require.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = svc.CreateReview(ctx, domain.Review{UserID: 7, HotelID: 1, Rating: 0})
	require.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = svc.CreateReview(ctx, domain.Review{UserID: 7, HotelID: 2, Rating: 4})
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))

	rv, err := svc.CreateReview(ctx, domain.Review{UserID: 7, HotelID: 1, Rating: 5, Comment: "great"})
	require.NoError(t, err)
	require.Equal(t, apptest.TS("2025-06-01T09:00:00Z"), rv.CreatedAt)

	out, err := svc.ListReviews(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, 50, s.LastLimit)

	_, err = svc.ListReviews(ctx, 1, 500)
	require.NoError(t, err)
	require.Equal(t, 50, s.LastLimit)

	_, err = svc.ListReviews(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 10, s.LastLimit)
}

func TestCatalog_UpdateAndDeleteHotel(t *testing.T) {
	s := bookingFixture()
	svc := app.NewCatalogService(s, nil)
	ctx := context.Background()

	h, err := svc.GetHotel(ctx, 1)
	require.NoError(t, err)
	h.Name = "Dnipro Riverside"
	_, err = svc.UpdateHotel(ctx, h)
	require.NoError(t, err)
	room, err := svc.GetRoom(ctx, 11)
	require.NoError(t, err)
	require.Equal(t, "Dnipro Riverside", room.HotelName)

	h.Location = " "
	_, err = svc.UpdateHotel(ctx, h)
	require.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = svc.UpdateHotel(ctx, domain.Hotel{ID: 404, Name: "x", Location: "y"})
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))

	s.AddBooking(11, domain.Stay{CheckIn: apptest.TS("2025-07-01T14:00:00Z"), CheckOut: apptest.TS("2025-07-02T11:00:00Z")})
	require.Equal(t, domain.KindConflict, domain.KindOf(svc.DeleteHotel(ctx, 1)))

	empty, err := svc.CreateHotel(ctx, domain.Hotel{Name: "Lviv", Location: "Lviv"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteHotel(ctx, empty.ID))
	require.Equal(t, domain.KindNotFound, domain.KindOf(svc.DeleteHotel(ctx, empty.ID)))
}

func TestCatalog_UpdateAndDeleteRoomType(t *testing.T) {
	s := bookingFixture()
	svc := app.NewCatalogService(s, nil)
	ctx := context.Background()

	_, err := svc.UpdateRoomType(ctx, domain.RoomType{ID: 2, Name: "Standard"})
	require.Equal(t, domain.KindConflict, domain.KindOf(err))
	_, err = svc.UpdateRoomType(ctx, domain.RoomType{ID: 2, Name: ""})
	require.Equal(t, domain.KindValidation, domain.KindOf(err))
	_, err = svc.UpdateRoomType(ctx, domain.RoomType{ID: 404, Name: "Loft"})
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))

	got, err := svc.UpdateRoomType(ctx, domain.RoomType{ID: 2, Name: "Junior Suite", Description: "smaller"})
	require.NoError(t, err)
	require.Equal(t, "Junior Suite", got.Name)

	// Standard is used by rooms; the Suite type has none
	require.Equal(t, domain.KindConflict, domain.KindOf(svc.DeleteRoomType(ctx, 1)))
	require.NoError(t, svc.DeleteRoomType(ctx, 2))
	_, err = svc.GetRoomType(ctx, 2)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCatalog_UpdateAndDeleteAmenity(t *testing.T) {
	s := apptest.NewStore()
	s.AddHotel(1, "Dnipro")
	std := s.AddType(1, "Standard")
	svc := app.NewCatalogService(s, nil)
	ctx := context.Background()

	a, err := svc.CreateAmenity(ctx, domain.Amenity{Name: "Wi-Fi"})
	require.NoError(t, err)
	s.AddRoom(11, 1, 101, std, domain.Money(10000), 2)
	room, err := svc.GetRoom(ctx, 11)
	require.NoError(t, err)
	room.AmenityIDs = []int64{a.ID}
	_, err = svc.UpdateRoom(ctx, room)
	require.NoError(t, err)

	a.Name = "Fast Wi-Fi"
	_, err = svc.UpdateAmenity(ctx, a)
	require.NoError(t, err)
	got, err := svc.GetAmenity(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, "Fast Wi-Fi", got.Name)

	require.NoError(t, svc.DeleteAmenity(ctx, a.ID))
	room, err = svc.GetRoom(ctx, 11)
	require.NoError(t, err)
	require.Empty(t, room.AmenityIDs)
	require.Equal(t, domain.KindNotFound, domain.KindOf(svc.DeleteAmenity(ctx, a.ID)))
}

func TestCatalog_UpdateRoom(t *testing.T) {
	s := bookingFixture()
	svc := app.NewCatalogService(s, nil)
	ctx := context.Background()

	room, err := svc.GetRoom(ctx, 11)
	require.NoError(t, err)
	require.True(t, room.IsAvailable)

	room.IsAvailable = false
	room.PricePerNight = domain.Money(11000)
	got, err := svc.UpdateRoom(ctx, room)
	require.NoError(t, err)
	require.False(t, got.IsAvailable)
	stored, _ := svc.GetRoom(ctx, 11)
	require.Equal(t, domain.Money(11000), stored.PricePerNight)

	bad := room
	bad.MaxGuests = 0
	_, err = svc.UpdateRoom(ctx, bad)
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	bad = room
	bad.RoomType = domain.RoomType{Name: "Igloo"}
	_, err = svc.UpdateRoom(ctx, bad)
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	bad = room
	bad.RoomNumber = 102
	_, err = svc.UpdateRoom(ctx, bad)
	require.Equal(t, domain.KindConflict, domain.KindOf(err))

	bad = room
	bad.HotelID = 404
	_, err = svc.UpdateRoom(ctx, bad)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))

	bad = room
	bad.ID = 404
	_, err = svc.UpdateRoom(ctx, bad)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}

func TestCatalog_DeleteRoom(t *testing.T) {
	s := bookingFixture()
	s.AddBooking(12, domain.Stay{CheckIn: apptest.TS("2025-07-01T14:00:00Z"), CheckOut: apptest.TS("2025-07-02T11:00:00Z")})
	svc := app.NewCatalogService(s, nil)
	ctx := context.Background()

	require.Equal(t, domain.KindConflict, domain.KindOf(svc.DeleteRoom(ctx, 12)))
	require.NoError(t, svc.DeleteRoom(ctx, 11))
	require.Equal(t, domain.KindNotFound, domain.KindOf(svc.DeleteRoom(ctx, 11)))
}

func TestCatalog_ReviewOwnership(t *testing.T) {
	s := apptest.NewStore()
	s.AddHotel(1, "Dnipro")
	svc := app.NewCatalogService(s, nil).WithClock(apptest.FixedClock("2025-06-01T09:00:00Z"))
	ctx := context.Background()
	author := domain.Principal{UserID: 7}
	stranger := domain.Principal{UserID: 8}
	staff := domain.Principal{UserID: 1, Staff: true}

	rv, err := svc.CreateReview(ctx, domain.Review{UserID: 7, HotelID: 1, Rating: 5, Comment: "great"})
	require.NoError(t, err)

	_, err = svc.UpdateReview(ctx, stranger, rv.ID, 1, "bad")
	require.Equal(t, domain.KindForbidden, domain.KindOf(err))
	require.Equal(t, domain.KindForbidden, domain.KindOf(svc.DeleteReview(ctx, stranger, rv.ID)))

	_, err = svc.UpdateReview(ctx, author, rv.ID, 9, "")
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	got, err := svc.UpdateReview(ctx, author, rv.ID, 3, "fine")
	require.NoError(t, err)
	require.Equal(t, 3, got.Rating)
	require.Equal(t, int64(1), got.HotelID)
	require.Equal(t, apptest.TS("2025-06-01T09:00:00Z"), got.CreatedAt)

	_, err = svc.UpdateReview(ctx, staff, rv.ID, 2, "moderated")
	require.NoError(t, err)

	all, err := svc.ListReviews(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "moderated", all[0].Comment)

	require.NoError(t, svc.DeleteReview(ctx, author, rv.ID))
	_, err = svc.GetReview(ctx, rv.ID)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
}
