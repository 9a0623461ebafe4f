package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

// maxTxAttempts bounds replays of a booking transaction that lost a
// deadlock or lock wait.
const maxTxAttempts = 3

// InTx runs fn in a READ COMMITTED transaction. Candidate rooms are locked
// with FOR UPDATE inside fn, so the overlap check and the inserts that
// follow see every booking committed before the lock was granted.
func (r *Repo) InTx(ctx context.Context, fn func(tx domain.BookingTx) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = r.inTxOnce(ctx, fn)
		if err == nil || !retryable(err) {
			return err
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("booking transaction retried")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
	return err
}

func (r *Repo) inTxOnce(ctx context.Context, fn func(tx domain.BookingTx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
				log.Error().Err(rbErr).Msg("rollback failed")
			}
		}
	}()

	if err = fn(&bookingTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

type bookingTx struct{ tx *sql.Tx }

func (b *bookingTx) LockCandidateRooms(ctx context.Context, f domain.RoomFilter) ([]domain.Room, error) {
	q, args := candidateQuery(f)
	return queryRooms(ctx, b.tx, q+lockRoomsSuffix, args...)
}

func (b *bookingTx) OverlappingBookings(ctx context.Context, roomIDs []int64, stay domain.Stay) ([]domain.RoomBooking, error) {
	return overlapping(ctx, b.tx, roomIDs, stay)
}

func (b *bookingTx) InsertBooking(ctx context.Context, bk *domain.Booking) error {
	id, err := insertID(b.tx.ExecContext(ctx, insertBookingSQL,
		bk.UserID,
		bk.Stay.CheckIn.UTC(),
		bk.Stay.CheckOut.UTC(),
		bk.Adults,
		bk.Children,
		bk.CreatedAt.UTC(),
	))
	if err != nil {
		return err
	}
	bk.ID = id
	for _, room := range bk.Rooms {
		if _, err := b.tx.ExecContext(ctx, insertBookingRoomSQL, bk.ID, room.ID); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (b *bookingTx) InsertPayment(ctx context.Context, p *domain.Payment) error {
	id, err := insertID(b.tx.ExecContext(ctx, insertPaymentSQL,
		p.BookingID,
		p.Amount.String(),
		string(p.Status),
		p.PaymentDate.UTC(),
		p.InvoiceID,
		p.NextAttemptAt.UTC(),
		nullTime(p.ClaimedUntil),
	))
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}
