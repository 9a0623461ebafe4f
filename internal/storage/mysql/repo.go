package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"hotel_booking/internal/domain"
)

const (
	errDupEntry    = 1062
	errNoReference = 1452
	errReferenced  = 1451
	errDeadlock    = 1213
	errLockWait    = 1205
)

// queryer is satisfied by both *sql.DB and *sql.Tx so reads can be shared
// between plain queries and the allocation transaction.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// mapErr folds driver errors that carry domain meaning.
func mapErr(err error) error {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case errDupEntry:
			return fmt.Errorf("%w: %s", domain.ErrConflict, me.Message)
		case errNoReference:
			return fmt.Errorf("%w: %s", domain.ErrNotFound, me.Message)
		case errReferenced:
			return fmt.Errorf("%w: %s", domain.ErrConflict, me.Message)
		}
	}
	return err
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func retryable(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == errDeadlock || me.Number == errLockWait)
}

func insertID(res sql.Result, err error) (int64, error) {
	if err != nil {
		return 0, mapErr(err)
	}
	return res.LastInsertId()
}

// ---- catalog writes ----

func (r *Repo) CreateHotel(ctx context.Context, h *domain.Hotel) error {
	id, err := insertID(r.db.ExecContext(ctx, insertHotelSQL, h.Name, h.Location, h.Description))
	h.ID = id
	return err
}

func (r *Repo) CreateRoomType(ctx context.Context, t *domain.RoomType) error {
	id, err := insertID(r.db.ExecContext(ctx, insertRoomTypeSQL, t.Name, t.Description))
	t.ID = id
	return err
}

func (r *Repo) CreateAmenity(ctx context.Context, a *domain.Amenity) error {
	id, err := insertID(r.db.ExecContext(ctx, insertAmenitySQL, a.Name, a.Description))
	a.ID = id
	return err
}

// CreateRoom inserts the room and its amenity links in one transaction.
func (r *Repo) CreateRoom(ctx context.Context, room *domain.Room) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, insertRoomSQL,
		room.HotelID,
		room.RoomNumber,
		room.PricePerNight.String(),
		room.MaxGuests,
		room.IsAvailable,
		room.RoomType.Name,
	)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("room type %q: %w", room.RoomType.Name, domain.ErrNotFound)
	}
	if room.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	for _, aid := range room.AmenityIDs {
		if _, err = tx.ExecContext(ctx, insertRoomAmenitySQL, room.ID, aid); err != nil {
			return mapErr(err)
		}
	}
	if err = tx.QueryRowContext(ctx,
		`SELECT t.id, t.description, h.name FROM room_types t JOIN hotels h ON h.id = ? WHERE t.name = ?`,
		room.HotelID, room.RoomType.Name,
	).Scan(&room.RoomType.ID, &room.RoomType.Description, &room.HotelName); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) CreateReview(ctx context.Context, rv *domain.Review) error {
	id, err := insertID(r.db.ExecContext(ctx, insertReviewSQL,
		rv.UserID, rv.HotelID, rv.Rating, rv.Comment, rv.CreatedAt.UTC()))
	rv.ID = id
	return err
}

// ---- catalog reads ----

func (r *Repo) GetHotel(ctx context.Context, id int64) (domain.Hotel, error) {
	var h domain.Hotel
	err := r.db.QueryRowContext(ctx, selectHotelSQL+"WHERE id = ?", id).
		Scan(&h.ID, &h.Name, &h.Location, &h.Description)
	if err == sql.ErrNoRows {
		return domain.Hotel{}, domain.ErrNotFound
	}
	return h, err
}

func (r *Repo) HotelExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM hotels WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r *Repo) ListHotels(ctx context.Context) ([]domain.Hotel, error) {
	rows, err := r.db.QueryContext(ctx, selectHotelSQL+"ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Hotel{}
	for rows.Next() {
		var h domain.Hotel
		if err := rows.Scan(&h.ID, &h.Name, &h.Location, &h.Description); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Repo) ListRoomTypes(ctx context.Context) ([]domain.RoomType, error) {
	rows, err := r.db.QueryContext(ctx, selectRoomTypeSQL+"ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.RoomType{}
	for rows.Next() {
		var t domain.RoomType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repo) ListAmenities(ctx context.Context) ([]domain.Amenity, error) {
	rows, err := r.db.QueryContext(ctx, selectAmenitySQL+"ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Amenity{}
	for rows.Next() {
		var a domain.Amenity
		if err := rows.Scan(&a.ID, &a.Name, &a.Description); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) ListRooms(ctx context.Context, hotelID int64) ([]domain.Room, error) {
	q, args := selectRoomSQL, []any{}
	if hotelID > 0 {
		q += "WHERE r.hotel_id = ?\n"
		args = append(args, hotelID)
	}
	rooms, err := queryRooms(ctx, r.db, q+"ORDER BY r.id", args...)
	if err != nil {
		return nil, err
	}
	if err := loadAmenities(ctx, r.db, rooms); err != nil {
		return nil, err
	}
	return rooms, nil
}

func (r *Repo) ListReviews(ctx context.Context, hotelID int64, limit int) ([]domain.Review, error) {
	q, args := selectReviewSQL, []any{}
	if hotelID > 0 {
		q += "WHERE hotel_id = ?\n"
		args = append(args, hotelID)
	}
	rows, err := r.db.QueryContext(ctx, q+reviewsNewestFirst, append(args, limit)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Review{}
	for rows.Next() {
		var rv domain.Review
		if err := rows.Scan(&rv.ID, &rv.UserID, &rv.HotelID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rv)
	}
	return out, rows.Err()
}

// ---- availability ----

func (r *Repo) CandidateRooms(ctx context.Context, f domain.RoomFilter) ([]domain.Room, error) {
	q, args := candidateQuery(f)
	return queryRooms(ctx, r.db, q+"ORDER BY r.id", args...)
}

func (r *Repo) OverlappingBookings(ctx context.Context, roomIDs []int64, stay domain.Stay) ([]domain.RoomBooking, error) {
	return overlapping(ctx, r.db, roomIDs, stay)
}

func candidateQuery(f domain.RoomFilter) (string, []any) {
	q := selectRoomSQL + candidateRoomsWhere
	args := []any{f.HotelID, f.MinGuests}
	if f.RoomTypeName != "" {
		q += candidateRoomTypeFilter
		args = append(args, f.RoomTypeName)
	}
	return q, args
}

func overlapping(ctx context.Context, q queryer, roomIDs []int64, stay domain.Stay) ([]domain.RoomBooking, error) {
	if len(roomIDs) == 0 {
		return nil, nil
	}
	args := append([]any{stay.CheckOut.UTC(), stay.CheckIn.UTC()}, int64Args(roomIDs)...)
	rows, err := q.QueryContext(ctx, overlappingBookingsPrefix+inClause(len(roomIDs)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RoomBooking
	for rows.Next() {
		var rb domain.RoomBooking
		if err := rows.Scan(&rb.BookingID, &rb.RoomID, &rb.Stay.CheckIn, &rb.Stay.CheckOut); err != nil {
			return nil, err
		}
		out = append(out, rb)
	}
	return out, rows.Err()
}

// ---- bookings ----

func (r *Repo) GetBooking(ctx context.Context, id int64) (domain.Booking, error) {
	bs, err := r.queryBookings(ctx, selectBookingSQL+"WHERE b.id = ?", id)
	if err != nil {
		return domain.Booking{}, err
	}
	if len(bs) == 0 {
		return domain.Booking{}, domain.ErrNotFound
	}
	return bs[0], nil
}

func (r *Repo) ListBookings(ctx context.Context, userID *int64) ([]domain.Booking, error) {
	if userID != nil {
		return r.queryBookings(ctx, selectBookingSQL+"WHERE b.user_id = ?\nORDER BY b.id", *userID)
	}
	return r.queryBookings(ctx, selectBookingSQL+"ORDER BY b.id")
}

func (r *Repo) queryBookings(ctx context.Context, q string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Booking{}
	for rows.Next() {
		var b domain.Booking
		var (
			payID               sql.NullInt64
			amount, status, inv sql.NullString
			payURL              sql.NullString
			payDate             sql.NullTime
		)
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.Stay.CheckIn, &b.Stay.CheckOut,
			&b.Adults, &b.Children, &b.CreatedAt,
			&payID, &amount, &status, &payDate, &inv, &payURL,
		); err != nil {
			return nil, err
		}
		if payID.Valid {
			p := domain.Payment{
				ID:          payID.Int64,
				BookingID:   b.ID,
				Status:      domain.PaymentStatus(status.String),
				PaymentDate: payDate.Time,
				InvoiceID:   inv.String,
				PaymentURL:  payURL.String,
			}
			if p.Amount, err = domain.ParseMoney(amount.String); err != nil {
				return nil, err
			}
			b.Payment = &p
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}
	return out, r.loadBookingRooms(ctx, out)
}

func (r *Repo) loadBookingRooms(ctx context.Context, bs []domain.Booking) error {
	idx := make(map[int64]int, len(bs))
	ids := make([]int64, len(bs))
	for i, b := range bs {
		idx[b.ID] = i
		ids[i] = b.ID
	}
	rows, err := r.db.QueryContext(ctx, selectBookingRoomsPrefix+inClause(len(ids))+" ORDER BY r.id", int64Args(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var bookingID int64
		var room domain.Room
		var price string
		if err := rows.Scan(&bookingID, &room.ID, &room.HotelID, &room.HotelName, &room.RoomNumber, &price,
			&room.MaxGuests, &room.IsAvailable, &room.RoomType.ID, &room.RoomType.Name, &room.RoomType.Description); err != nil {
			return err
		}
		if room.PricePerNight, err = domain.ParseMoney(price); err != nil {
			return err
		}
		b := &bs[idx[bookingID]]
		b.Rooms = append(b.Rooms, room)
		b.HotelID = room.HotelID
		b.RoomType = room.RoomType.Name
	}
	return rows.Err()
}

// ---- payments ----

func (r *Repo) UpdatePaymentStatus(ctx context.Context, invoiceID string, status domain.PaymentStatus) (p domain.Payment, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Payment{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// RowsAffected is 0 for an unchanged status, so existence is checked
	// with a locking read instead
	ps, err := queryPayments(ctx, tx, selectPaymentSQL+"WHERE invoice_id = ?\nFOR UPDATE", invoiceID)
	if err != nil {
		return domain.Payment{}, err
	}
	if len(ps) == 0 {
		err = domain.ErrNotFound
		return domain.Payment{}, err
	}
	if _, err = tx.ExecContext(ctx, updatePaymentStatusSQL, string(status), invoiceID); err != nil {
		return domain.Payment{}, err
	}
	if err = tx.Commit(); err != nil {
		return domain.Payment{}, err
	}
	p = ps[0]
	p.Status = status
	return p, nil
}

func (r *Repo) AttachInvoice(ctx context.Context, paymentID int64, inv domain.Invoice) error {
	res, err := r.db.ExecContext(ctx, attachInvoiceSQL, inv.InvoiceID, nullString(inv.PaymentURL), paymentID)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	// unknown id, already linked to this invoice, or linked to another one
	cur, err := r.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	if cur.InvoiceID == inv.InvoiceID && cur.PaymentURL == inv.PaymentURL {
		return nil
	}
	return fmt.Errorf("%w: payment %d already linked to invoice %s", domain.ErrConflict, paymentID, cur.InvoiceID)
}

func (r *Repo) RecordLinkFailure(ctx context.Context, paymentID int64, retryAt time.Time, abandon bool) error {
	_, err := r.db.ExecContext(ctx, recordLinkFailureSQL, retryAt.UTC(), abandon, paymentID)
	return err
}

// ClaimUnlinked selects and stamps the batch in one short transaction; the
// gateway calls happen after commit.
func (r *Repo) ClaimUnlinked(ctx context.Context, now time.Time, lease time.Duration, limit int) (ps []domain.Payment, err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now = now.UTC()
	ps, err = queryPayments(ctx, tx, claimUnlinkedSQL, now, now, limit)
	if err != nil {
		return nil, err
	}
	if len(ps) > 0 {
		until := now.Add(lease)
		ids := make([]int64, len(ps))
		for i := range ps {
			ids[i] = ps[i].ID
			ps[i].ClaimedUntil = until
		}
		args := append([]any{until}, int64Args(ids)...)
		if _, err = tx.ExecContext(ctx, claimPaymentsPrefix+inClause(len(ids)), args...); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return ps, nil
}

func (r *Repo) GetPayment(ctx context.Context, id int64) (domain.Payment, error) {
	ps, err := queryPayments(ctx, r.db, selectPaymentSQL+"WHERE id = ?", id)
	if err != nil {
		return domain.Payment{}, err
	}
	if len(ps) == 0 {
		return domain.Payment{}, domain.ErrNotFound
	}
	return ps[0], nil
}

func (r *Repo) ListPayments(ctx context.Context) ([]domain.Payment, error) {
	return queryPayments(ctx, r.db, selectPaymentSQL+"ORDER BY id")
}

func queryPayments(ctx context.Context, q queryer, query string, args ...any) ([]domain.Payment, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Payment{}
	for rows.Next() {
		var p domain.Payment
		var amount, status string
		var url sql.NullString
		var claimed sql.NullTime
		if err := rows.Scan(&p.ID, &p.BookingID, &amount, &status, &p.PaymentDate, &p.InvoiceID, &url,
			&p.LinkAttempts, &p.NextAttemptAt, &claimed, &p.LinkAbandoned); err != nil {
			return nil, err
		}
		p.ClaimedUntil = claimed.Time
		if p.Amount, err = domain.ParseMoney(amount); err != nil {
			return nil, err
		}
		p.Status = domain.PaymentStatus(status)
		p.PaymentURL = url.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- shared room scanning ----

func queryRooms(ctx context.Context, q queryer, query string, args ...any) ([]domain.Room, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Room{}
	for rows.Next() {
		var room domain.Room
		var price string
		if err := rows.Scan(
			&room.ID,
			&room.HotelID,
			&room.HotelName,
			&room.RoomNumber,
			&price,
			&room.MaxGuests,
			&room.IsAvailable,
			&room.RoomType.ID,
			&room.RoomType.Name,
			&room.RoomType.Description,
		); err != nil {
			return nil, err
		}
		if room.PricePerNight, err = domain.ParseMoney(price); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

func loadAmenities(ctx context.Context, q queryer, rooms []domain.Room) error {
	if len(rooms) == 0 {
		return nil
	}
	idx := make(map[int64]int, len(rooms))
	ids := make([]int64, len(rooms))
	for i, rm := range rooms {
		idx[rm.ID] = i
		ids[i] = rm.ID
		rooms[i].AmenityIDs = []int64{}
	}
	rows, err := q.QueryContext(ctx, selectRoomAmenitiesPrefix+inClause(len(ids))+" ORDER BY amenity_id", int64Args(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var roomID, amenityID int64
		if err := rows.Scan(&roomID, &amenityID); err != nil {
			return err
		}
		rm := &rooms[idx[roomID]]
		rm.AmenityIDs = append(rm.AmenityIDs, amenityID)
	}
	return rows.Err()
}
