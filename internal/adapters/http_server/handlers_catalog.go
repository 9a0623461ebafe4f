package httpserver

import (
	"context"
	"net/http"
	"strconv"

	"hotel_booking/internal/domain"
)

type hotelRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Location    string `json:"location" validate:"required,max=255"`
	Description string `json:"description"`
}

type namedRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description"`
}

type roomRequest struct {
	Hotel         int64        `json:"hotel" validate:"required,gt=0"`
	RoomNumber    int          `json:"room_number" validate:"required,gt=0"`
	RoomType      string       `json:"room_type" validate:"required"`
	PricePerNight domain.Money `json:"price_per_night" validate:"required,gt=0"`
	MaxGuests     int          `json:"max_guests" validate:"required,gt=0"`
	IsAvailable   *bool        `json:"is_available"`
	Amenities     []int64      `json:"amenities" validate:"omitempty,dive,gt=0"`
}

type reviewRequest struct {
	Hotel   int64  `json:"hotel" validate:"required,gt=0"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// PATCH bodies: absent fields keep their stored value.

type hotelPatch struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Location    *string `json:"location" validate:"omitempty,max=255"`
	Description *string `json:"description"`
}

type namedPatch struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	Description *string `json:"description"`
}

type roomPatch struct {
	Hotel         *int64        `json:"hotel" validate:"omitempty,gt=0"`
	RoomNumber    *int          `json:"room_number" validate:"omitempty,gt=0"`
	RoomType      *string       `json:"room_type"`
	PricePerNight *domain.Money `json:"price_per_night" validate:"omitempty,gt=0"`
	MaxGuests     *int          `json:"max_guests" validate:"omitempty,gt=0"`
	IsAvailable   *bool         `json:"is_available"`
	Amenities     []int64       `json:"amenities" validate:"omitempty,dive,gt=0"`
}

type reviewPatch struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment"`
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func (req roomRequest) room(id int64) domain.Room {
	room := domain.Room{
		ID:            id,
		HotelID:       req.Hotel,
		RoomNumber:    req.RoomNumber,
		RoomType:      domain.RoomType{Name: req.RoomType},
		PricePerNight: req.PricePerNight,
		MaxGuests:     req.MaxGuests,
		IsAvailable:   req.IsAvailable == nil || *req.IsAvailable,
		AmenityIDs:    req.Amenities,
	}
	if room.AmenityIDs == nil {
		room.AmenityIDs = []int64{}
	}
	return room
}

func (p roomPatch) apply(room domain.Room) domain.Room {
	set(&room.HotelID, p.Hotel)
	set(&room.RoomNumber, p.RoomNumber)
	if p.RoomType != nil {
		room.RoomType = domain.RoomType{Name: *p.RoomType}
	}
	set(&room.PricePerNight, p.PricePerNight)
	set(&room.MaxGuests, p.MaxGuests)
	set(&room.IsAvailable, p.IsAvailable)
	if p.Amenities != nil {
		room.AmenityIDs = p.Amenities
	}
	return room
}

func (h *Handlers) createHotel(w http.ResponseWriter, r *http.Request) {
	var req hotelRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.CreateHotel(r.Context(), domain.Hotel{Name: req.Name, Location: req.Location, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) listHotels(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.ListHotels(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getHotel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.GetHotel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) createRoomType(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.CreateRoomType(r.Context(), domain.RoomType{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) listRoomTypes(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.ListRoomTypes(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) createAmenity(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.CreateAmenity(r.Context(), domain.Amenity{Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) listAmenities(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.ListAmenities(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) createRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.CreateRoom(r.Context(), req.room(0))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// listRooms accepts an optional ?hotel= filter.
func (h *Handlers) listRooms(w http.ResponseWriter, r *http.Request) {
	var hotelID int64
	if v := r.URL.Query().Get("hotel"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, domain.BadRequest("hotel must be a positive integer"))
			return
		}
		hotelID = id
	}
	out, err := h.Catalog.ListRooms(r.Context(), hotelID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.CreateReview(r.Context(), domain.Review{
		UserID:  principal(r).UserID,
		HotelID: req.Hotel,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// queryLimit reads ?limit=, bounded to 1..200.
func queryLimit(r *http.Request, def int) (int, error) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return def, nil
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > 200 {
		return 0, domain.BadRequest("limit must be an integer between 1 and 200")
	}
	return l, nil
}

func (h *Handlers) listHotelReviews(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.writeReviews(w, r, id)
}

// listReviews accepts an optional ?hotel= filter.
func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	var hotelID int64
	if v := r.URL.Query().Get("hotel"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, domain.BadRequest("hotel must be a positive integer"))
			return
		}
		hotelID = id
	}
	h.writeReviews(w, r, hotelID)
}

func (h *Handlers) writeReviews(w http.ResponseWriter, r *http.Request, hotelID int64) {
	limit, err := queryLimit(r, 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// newest first; matches the (hotel_id, created_at) index
	out, err := h.Catalog.ListReviews(r.Context(), hotelID, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.GetReview(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getRoomType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.GetRoomType(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getAmenity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.GetAmenity(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, out)
}

// ---- staff writes ----

func (h *Handlers) replaceHotel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req hotelRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.UpdateHotel(r.Context(), domain.Hotel{ID: id, Name: req.Name, Location: req.Location, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) patchHotel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req hotelPatch
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cur, err := h.Catalog.GetHotel(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	set(&cur.Name, req.Name)
	set(&cur.Location, req.Location)
	set(&cur.Description, req.Description)
	out, err := h.Catalog.UpdateHotel(r.Context(), cur)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteHotel(w http.ResponseWriter, r *http.Request) {
	h.deleteWith(w, r, h.Catalog.DeleteHotel)
}

func (h *Handlers) replaceRoomType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req namedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.UpdateRoomType(r.Context(), domain.RoomType{ID: id, Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) patchRoomType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req namedPatch
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cur, err := h.Catalog.GetRoomType(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	set(&cur.Name, req.Name)
	set(&cur.Description, req.Description)
	out, err := h.Catalog.UpdateRoomType(r.Context(), cur)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteRoomType(w http.ResponseWriter, r *http.Request) {
	h.deleteWith(w, r, h.Catalog.DeleteRoomType)
}

func (h *Handlers) replaceAmenity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req namedRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.UpdateAmenity(r.Context(), domain.Amenity{ID: id, Name: req.Name, Description: req.Description})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) patchAmenity(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req namedPatch
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cur, err := h.Catalog.GetAmenity(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	set(&cur.Name, req.Name)
	set(&cur.Description, req.Description)
	out, err := h.Catalog.UpdateAmenity(r.Context(), cur)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteAmenity(w http.ResponseWriter, r *http.Request) {
	h.deleteWith(w, r, h.Catalog.DeleteAmenity)
}

func (h *Handlers) replaceRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req roomRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.UpdateRoom(r.Context(), req.room(id))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// patchRoom is how staff toggle is_available without resending the room.
func (h *Handlers) patchRoom(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req roomPatch
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cur, err := h.Catalog.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.UpdateRoom(r.Context(), req.apply(cur))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteRoom(w http.ResponseWriter, r *http.Request) {
	h.deleteWith(w, r, h.Catalog.DeleteRoom)
}

// ---- review edits (author or staff) ----

func (h *Handlers) replaceReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Rating  int    `json:"rating" validate:"required,min=1,max=5"`
		Comment string `json:"comment"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.Catalog.UpdateReview(r.Context(), principal(r), id, req.Rating, req.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) patchReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reviewPatch
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	cur, err := h.Catalog.GetReview(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	set(&cur.Rating, req.Rating)
	set(&cur.Comment, req.Comment)
	out, err := h.Catalog.UpdateReview(r.Context(), principal(r), id, cur.Rating, cur.Comment)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Catalog.DeleteReview(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) deleteWith(w http.ResponseWriter, r *http.Request, del func(context.Context, int64) error) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := del(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
