// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"hotel_booking/internal/app"
	"hotel_booking/internal/domain"
)

type Handlers struct {
	Availability *app.AvailabilityService
	Bookings     *app.BookingService
	Payments     *app.PaymentService
	Catalog      *app.CatalogService

	JWTSecret     []byte
	WebhookSecret []byte
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Get("/available-room-types", h.availableRoomTypes)
	s.mux.Get("/api/available-room-types", h.availableRoomTypes)
	s.mux.Post("/payment/update-status", h.updatePaymentStatus)

	auth := Authenticate(h.JWTSecret)
	s.mux.With(auth).Post("/bookings", h.createBooking)

	s.mux.Route("/api/v1", func(r chi.Router) {
		// catalog reads are public
		r.Get("/hotels", h.listHotels)
		r.Get("/hotels/{id}", h.getHotel)
		r.Get("/hotels/{id}/reviews", h.listHotelReviews)
		r.Get("/room-types", h.listRoomTypes)
		r.Get("/room-types/{id}", h.getRoomType)
		r.Get("/amenities", h.listAmenities)
		r.Get("/amenities/{id}", h.getAmenity)
		r.Get("/rooms", h.listRooms)
		r.Get("/rooms/{id}", h.getRoom)
		r.Get("/reviews", h.listReviews)
		r.Get("/reviews/{id}", h.getReview)

		r.Group(func(r chi.Router) {
			r.Use(auth)
			r.Get("/bookings", h.listBookings)
			r.Post("/bookings", h.createBooking)
			r.Get("/bookings/{id}", h.getBooking)
			r.Post("/reviews", h.createReview)
			r.Put("/reviews/{id}", h.replaceReview)
			r.Patch("/reviews/{id}", h.patchReview)
			r.Delete("/reviews/{id}", h.deleteReview)

			r.Group(func(r chi.Router) {
				r.Use(RequireStaff)
				r.Post("/hotels", h.createHotel)
				r.Put("/hotels/{id}", h.replaceHotel)
				r.Patch("/hotels/{id}", h.patchHotel)
				r.Delete("/hotels/{id}", h.deleteHotel)
				r.Post("/room-types", h.createRoomType)
				r.Put("/room-types/{id}", h.replaceRoomType)
				r.Patch("/room-types/{id}", h.patchRoomType)
				r.Delete("/room-types/{id}", h.deleteRoomType)
				r.Post("/amenities", h.createAmenity)
				r.Put("/amenities/{id}", h.replaceAmenity)
				r.Patch("/amenities/{id}", h.patchAmenity)
				r.Delete("/amenities/{id}", h.deleteAmenity)
				r.Post("/rooms", h.createRoom)
				r.Put("/rooms/{id}", h.replaceRoom)
				r.Patch("/rooms/{id}", h.patchRoom)
				r.Delete("/rooms/{id}", h.deleteRoom)
				r.Get("/payments", h.listPayments)
				r.Get("/payments/{id}", h.getPayment)
			})
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps the domain error taxonomy onto HTTP. Anything unclassified
// is logged and reported as a bare 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	msg := ""
	if errors.As(err, &de) {
		msg = de.Msg
	}
	switch domain.KindOf(err) {
	case domain.KindBadRequest:
		writeProblem(w, http.StatusBadRequest, "Bad Request", msg)
	case domain.KindValidation:
		writeProblem(w, http.StatusBadRequest, "Validation Error", msg)
	case domain.KindNotFound:
		if msg == "" {
			msg = "not found"
		}
		writeProblem(w, http.StatusNotFound, "Not Found", msg)
	case domain.KindUnauthorized:
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", msg)
	case domain.KindForbidden:
		writeProblem(w, http.StatusForbidden, "Forbidden", msg)
	case domain.KindConflict:
		writeProblem(w, http.StatusConflict, "Conflict", msg)
	case domain.KindUnavailable:
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("dependency unavailable")
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", msg)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable answers 304 when the client already holds this version.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

// ---- request decoding ----

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json field names in messages
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeBody reads a JSON body into dst and runs its validate tags.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.BadRequest("Request body is empty.")
		}
		return domain.BadRequest("Malformed JSON body: %v", err)
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s: this field is required.", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s.", fe.Field(), fe.Tag(), fe.Param()))
		}
	}
	return domain.BadRequest("%s", strings.Join(msgs, " "))
}

// timestampLayouts are tried in order; layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.BadRequest("id must be a positive integer")
	}
	return id, nil
}

func principal(r *http.Request) domain.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}
