package mysql

import "strings"

const insertHotelSQL = `
INSERT INTO hotels (name, location, description)
VALUES (?, ?, ?)
`

const insertRoomTypeSQL = `
INSERT INTO room_types (name, description)
VALUES (?, ?)
`

const insertAmenitySQL = `
INSERT INTO amenities (name, description)
VALUES (?, ?)
`

// room type is referenced by name; INSERT ... SELECT yields zero rows for an
// unknown name, which the repo reports as not found
const insertRoomSQL = `
INSERT INTO rooms (hotel_id, room_number, room_type_id, price_per_night, max_guests, is_available)
SELECT ?, ?, t.id, ?, ?, ?
FROM room_types t
WHERE t.name = ?
`

const insertRoomAmenitySQL = `
INSERT INTO room_amenities (room_id, amenity_id)
VALUES (?, ?)
`

const insertReviewSQL = `
INSERT INTO reviews (user_id, hotel_id, rating, comment, created_at)
VALUES (?, ?, ?, ?, ?)
`

const insertBookingSQL = `
INSERT INTO bookings (user_id, check_in, check_out, adults, children, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`

const insertBookingRoomSQL = `
INSERT INTO booking_rooms (booking_id, room_id)
VALUES (?, ?)
`

const insertPaymentSQL = `
INSERT INTO payments (booking_id, amount, status, payment_date, invoice_id, next_attempt_at, claimed_until)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

// -----------------------------------------------------------------------------
// CATALOG UPDATES
// -----------------------------------------------------------------------------

const updateHotelSQL = `
UPDATE hotels
SET name = ?, location = ?, description = ?
WHERE id = ?
`

const updateRoomTypeSQL = `
UPDATE room_types
SET name = ?, description = ?
WHERE id = ?
`

const updateAmenitySQL = `
UPDATE amenities
SET name = ?, description = ?
WHERE id = ?
`

const updateRoomSQL = `
UPDATE rooms
SET hotel_id = ?, room_number = ?, room_type_id = ?, price_per_night = ?, max_guests = ?, is_available = ?
WHERE id = ?
`

const updateReviewSQL = `
UPDATE reviews
SET rating = ?, comment = ?
WHERE id = ?
`

const deleteRoomAmenitiesSQL = `
DELETE FROM room_amenities
WHERE room_id = ?
`

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const selectHotelSQL = `
SELECT id, name, location, description
FROM hotels
`

const selectRoomTypeSQL = `
SELECT id, name, description
FROM room_types
`

const selectAmenitySQL = `
SELECT id, name, description
FROM amenities
`

// Shared column list for every room read; scanned by scanRoom.
const selectRoomSQL = `
SELECT
  r.id,
  r.hotel_id,
  h.name,
  r.room_number,
  r.price_per_night,
  r.max_guests,
  r.is_available,
  t.id,
  t.name,
  t.description
FROM rooms r
JOIN hotels h     ON h.id = r.hotel_id
JOIN room_types t ON t.id = r.room_type_id
`

// Candidate pool for availability and allocation. Room id order is the
// first-fit order.
const candidateRoomsWhere = `
WHERE r.hotel_id = ?
  AND r.max_guests >= ?
  AND r.is_available = 1
`

const candidateRoomTypeFilter = `  AND t.name = ?
`

// Only the room rows are locked: hotels and room_types stay readable for
// allocations in other hotels.
const lockRoomsSuffix = `ORDER BY r.id
FOR UPDATE OF r`

const selectRoomAmenitiesPrefix = `
SELECT room_id, amenity_id
FROM room_amenities
WHERE room_id IN `

// Half-open overlap: existing.check_in < new.check_out AND existing.check_out > new.check_in.
const overlappingBookingsPrefix = `
SELECT br.booking_id, br.room_id, b.check_in, b.check_out
FROM booking_rooms br
JOIN bookings b ON b.id = br.booking_id
WHERE b.check_in < ?
  AND b.check_out > ?
  AND br.room_id IN `

const selectBookingSQL = `
SELECT
  b.id,
  b.user_id,
  b.check_in,
  b.check_out,
  b.adults,
  b.children,
  b.created_at,
  p.id,
  p.amount,
  p.status,
  p.payment_date,
  p.invoice_id,
  p.payment_url
FROM bookings b
LEFT JOIN payments p ON p.booking_id = b.id
`

const selectBookingRoomsPrefix = `
SELECT br.booking_id, r.id, r.hotel_id, h.name, r.room_number, r.price_per_night,
       r.max_guests, r.is_available, t.id, t.name, t.description
FROM booking_rooms br
JOIN rooms r      ON r.id = br.room_id
JOIN hotels h     ON h.id = r.hotel_id
JOIN room_types t ON t.id = r.room_type_id
WHERE br.booking_id IN `

const selectPaymentSQL = `
SELECT id, booking_id, amount, status, payment_date, invoice_id, payment_url,
       link_attempts, next_attempt_at, claimed_until, link_abandoned
FROM payments
`

const selectReviewSQL = `
SELECT id, user_id, hotel_id, rating, comment, created_at
FROM reviews
`

const reviewsNewestFirst = `ORDER BY created_at DESC, id DESC
LIMIT ?`

// -----------------------------------------------------------------------------
// PAYMENT UPDATES
// -----------------------------------------------------------------------------

const updatePaymentStatusSQL = `
UPDATE payments
SET status = ?
WHERE invoice_id = ?
`

// the payment_url guard keeps the first stored link; a late second invoice
// for the same payment is refused instead of replacing it
const attachInvoiceSQL = `
UPDATE payments
SET invoice_id = ?, payment_url = ?, claimed_until = NULL
WHERE id = ?
  AND payment_url IS NULL
`

const recordLinkFailureSQL = `
UPDATE payments
SET link_attempts   = link_attempts + 1,
    next_attempt_at = ?,
    claimed_until   = NULL,
    link_abandoned  = ?
WHERE id = ?
  AND payment_url IS NULL
`

// Due, unclaimed, unlinked payments, oldest due first. The order follows
// idx_payments_unlinked so only the returned rows get locked, and SKIP
// LOCKED lets concurrent sweepers split the backlog instead of queueing.
const claimUnlinkedSQL = selectPaymentSQL + `
WHERE status = 'pending'
  AND link_abandoned = 0
  AND next_attempt_at <= ?
  AND payment_url IS NULL
  AND (claimed_until IS NULL OR claimed_until <= ?)
ORDER BY next_attempt_at, id
LIMIT ?
FOR UPDATE SKIP LOCKED
`

const claimPaymentsPrefix = `
UPDATE payments
SET claimed_until = ?
WHERE id IN `

// inClause returns "(?,?,?)" for n placeholders.
func inClause(n int) string {
	if n <= 0 {
		return "(NULL)"
	}
	return "(" + strings.TrimSuffix(strings.Repeat("?,", n), ",") + ")"
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
