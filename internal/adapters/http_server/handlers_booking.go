package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
)

func (h *Handlers) availableRoomTypes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hotel, in, out := q.Get("hotel"), q.Get("check_in"), q.Get("check_out")
	if hotel == "" || in == "" || out == "" {
		writeError(w, r, domain.BadRequest("Missing hotel, check_in or check_out"))
		return
	}
	hotelID, err := strconv.ParseInt(hotel, 10, 64)
	if err != nil {
		writeError(w, r, domain.BadRequest("hotel must be an integer"))
		return
	}
	checkIn, ok := parseTimestamp(in)
	if !ok {
		writeError(w, r, domain.BadRequest("Invalid check_in timestamp"))
		return
	}
	checkOut, ok := parseTimestamp(out)
	if !ok {
		writeError(w, r, domain.BadRequest("Invalid check_out timestamp"))
		return
	}
	adults, err := countParam(q.Get("adults"), "adults")
	if err != nil {
		writeError(w, r, err)
		return
	}
	children, err := countParam(q.Get("children"), "children")
	if err != nil {
		writeError(w, r, err)
		return
	}

	types, err := h.Availability.FindAvailableRoomTypes(r.Context(), app.AvailabilityQuery{
		HotelID:  hotelID,
		Stay:     domain.Stay{CheckIn: checkIn, CheckOut: checkOut},
		Adults:   adults,
		Children: children,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types)
}

// countParam reads an optional non-negative integer; absent means 0.
func countParam(v, name string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.BadRequest("%s must be a non-negative integer", name)
	}
	return n, nil
}

type createBookingRequest struct {
	Hotel    int64  `json:"hotel" validate:"required,gt=0"`
	RoomType string `json:"room_type" validate:"required"`
	CheckIn  string `json:"check_in" validate:"required"`
	CheckOut string `json:"check_out" validate:"required"`
	Adults   *int   `json:"adults" validate:"required,gte=0"`
	Children *int   `json:"children" validate:"required,gte=0"`
}

// bookedRoom names the hotel the way the room listings do.
type bookedRoom struct {
	ID         int64  `json:"id"`
	RoomNumber int    `json:"room_number"`
	Hotel      string `json:"hotel"`
}

type bookingResponse struct {
	ID       int64           `json:"id"`
	User     int64           `json:"user"`
	Hotel    int64           `json:"hotel"`
	RoomType string          `json:"room_type"`
	CheckIn  time.Time       `json:"check_in"`
	CheckOut time.Time       `json:"check_out"`
	Adults   int             `json:"adults"`
	Children int             `json:"children"`
	Rooms    []bookedRoom    `json:"rooms"`
	Payment  *domain.Payment `json:"payment,omitempty"`
}

func toBookingResponse(b domain.Booking) bookingResponse {
	out := bookingResponse{
		ID:       b.ID,
		User:     b.UserID,
		Hotel:    b.HotelID,
		RoomType: b.RoomType,
		CheckIn:  b.Stay.CheckIn,
		CheckOut: b.Stay.CheckOut,
		Adults:   b.Adults,
		Children: b.Children,
		Rooms:    make([]bookedRoom, 0, len(b.Rooms)),
		Payment:  b.Payment,
	}
	for _, rm := range b.Rooms {
		out.Rooms = append(out.Rooms, bookedRoom{ID: rm.ID, RoomNumber: rm.RoomNumber, Hotel: rm.HotelName})
	}
	return out
}

func (h *Handlers) createBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	checkIn, ok := parseTimestamp(req.CheckIn)
	if !ok {
		writeError(w, r, domain.BadRequest("Invalid check_in timestamp"))
		return
	}
	checkOut, ok := parseTimestamp(req.CheckOut)
	if !ok {
		writeError(w, r, domain.BadRequest("Invalid check_out timestamp"))
		return
	}

	b, err := h.Bookings.CreateBooking(r.Context(), app.BookingRequest{
		UserID:   principal(r).UserID,
		HotelID:  req.Hotel,
		RoomType: req.RoomType,
		Stay:     domain.Stay{CheckIn: checkIn, CheckOut: checkOut},
		Adults:   *req.Adults,
		Children: *req.Children,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookingResponse(b))
}

func (h *Handlers) listBookings(w http.ResponseWriter, r *http.Request) {
	bs, err := h.Bookings.ListBookings(r.Context(), principal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) getBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Bookings.GetBooking(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookingResponse(b))
}
