package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hotel_booking/internal/domain"
)

// affected turns a zero-row write into ErrNotFound when the row is gone.
// MySQL also reports zero rows for an UPDATE that changed nothing.
func affected(ctx context.Context, q queryer, res sql.Result, err error, table string, id int64) error {
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var one int
	err = q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func (r *Repo) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ---- gets ----

func (r *Repo) GetRoomType(ctx context.Context, id int64) (domain.RoomType, error) {
	var t domain.RoomType
	err := r.db.QueryRowContext(ctx, selectRoomTypeSQL+"WHERE id = ?", id).Scan(&t.ID, &t.Name, &t.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RoomType{}, domain.ErrNotFound
	}
	return t, err
}

func (r *Repo) GetAmenity(ctx context.Context, id int64) (domain.Amenity, error) {
	var a domain.Amenity
	err := r.db.QueryRowContext(ctx, selectAmenitySQL+"WHERE id = ?", id).Scan(&a.ID, &a.Name, &a.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Amenity{}, domain.ErrNotFound
	}
	return a, err
}

func (r *Repo) GetRoom(ctx context.Context, id int64) (domain.Room, error) {
	rooms, err := queryRooms(ctx, r.db, selectRoomSQL+"WHERE r.id = ?", id)
	if err != nil {
		return domain.Room{}, err
	}
	if len(rooms) == 0 {
		return domain.Room{}, domain.ErrNotFound
	}
	if err := loadAmenities(ctx, r.db, rooms); err != nil {
		return domain.Room{}, err
	}
	return rooms[0], nil
}

func (r *Repo) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	var rv domain.Review
	err := r.db.QueryRowContext(ctx, selectReviewSQL+"WHERE id = ?", id).
		Scan(&rv.ID, &rv.UserID, &rv.HotelID, &rv.Rating, &rv.Comment, &rv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrNotFound
	}
	return rv, err
}

// ---- updates ----

func (r *Repo) UpdateHotel(ctx context.Context, h domain.Hotel) error {
	res, err := r.db.ExecContext(ctx, updateHotelSQL, h.Name, h.Location, h.Description, h.ID)
	return affected(ctx, r.db, res, err, "hotels", h.ID)
}

func (r *Repo) UpdateRoomType(ctx context.Context, t domain.RoomType) error {
	res, err := r.db.ExecContext(ctx, updateRoomTypeSQL, t.Name, t.Description, t.ID)
	return affected(ctx, r.db, res, err, "room_types", t.ID)
}

func (r *Repo) UpdateAmenity(ctx context.Context, a domain.Amenity) error {
	res, err := r.db.ExecContext(ctx, updateAmenitySQL, a.Name, a.Description, a.ID)
	return affected(ctx, r.db, res, err, "amenities", a.ID)
}

// UpdateRoom rewrites the row and its amenity links in one transaction.
func (r *Repo) UpdateRoom(ctx context.Context, room *domain.Room) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.QueryRowContext(ctx, selectRoomTypeSQL+"WHERE name = ?", room.RoomType.Name).
		Scan(&room.RoomType.ID, &room.RoomType.Name, &room.RoomType.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("room type %q: %w", room.RoomType.Name, domain.ErrNotFound)
	}
	if err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, updateRoomSQL,
		room.HotelID,
		room.RoomNumber,
		room.RoomType.ID,
		room.PricePerNight.String(),
		room.MaxGuests,
		room.IsAvailable,
		room.ID,
	)
	if err = affected(ctx, tx, res, err, "rooms", room.ID); err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, deleteRoomAmenitiesSQL, room.ID); err != nil {
		return err
	}
	if room.AmenityIDs == nil {
		room.AmenityIDs = []int64{}
	}
	for _, aid := range room.AmenityIDs {
		if _, err = tx.ExecContext(ctx, insertRoomAmenitySQL, room.ID, aid); err != nil {
			return mapErr(err)
		}
	}
	if err = tx.QueryRowContext(ctx, `SELECT name FROM hotels WHERE id = ?`, room.HotelID).Scan(&room.HotelName); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) UpdateReview(ctx context.Context, rv domain.Review) error {
	res, err := r.db.ExecContext(ctx, updateReviewSQL, rv.Rating, rv.Comment, rv.ID)
	return affected(ctx, r.db, res, err, "reviews", rv.ID)
}

// ---- deletes ----

// DeleteHotel cascades to rooms and reviews; booked rooms block it.
func (r *Repo) DeleteHotel(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "hotels", id)
}

func (r *Repo) DeleteRoomType(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "room_types", id)
}

func (r *Repo) DeleteAmenity(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "amenities", id)
}

func (r *Repo) DeleteRoom(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "rooms", id)
}

func (r *Repo) DeleteReview(ctx context.Context, id int64) error {
	return r.deleteByID(ctx, "reviews", id)
}
