package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/marvinagmata/tourism-room-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings.  All mutations to
// a room's booking timeline go through methods on this type inside a
// transaction owned by the booking ledger; no other component writes
// booking rows directly.  Timestamps are stored in UTC, stay dates as
// DATE columns with half-open [check_in_date, check_out_date)
// semantics.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, reference_code, room_id, guest_id, guest_name, guest_contact,
	adults, children, infants, nationality, trip_purpose, stay_type, channel,
	check_in_date, check_out_date, total_price_cents, balance_cents,
	status, status_reason, checked_in_at, checked_out_at, created_at, updated_at`

// activeStatusFilter excludes the statuses that release a room: only
// CANCELED and CHECKED_OUT bookings stop occupying their date range.
const activeStatusFilter = `status NOT IN ('CANCELED','CHECKED_OUT')`

func scanBooking(row interface{ Scan(...any) error }, b *model.Booking) error {
	var guestID sql.NullInt64
	var guestName, guestContact, statusReason sql.NullString
	var checkedInAt, checkedOutAt sql.NullTime
	err := row.Scan(
		&b.ID, &b.ReferenceCode, &b.RoomID, &guestID, &guestName, &guestContact,
		&b.Adults, &b.Children, &b.Infants, &b.Nationality, &b.TripPurpose, &b.StayType, &b.Channel,
		&b.CheckInDate, &b.CheckOutDate, &b.TotalPriceCents, &b.BalanceCents,
		&b.Status, &statusReason, &checkedInAt, &checkedOutAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if guestID.Valid {
		v := uint64(guestID.Int64)
		b.GuestID = &v
	}
	if guestName.Valid {
		b.GuestName = &guestName.String
	}
	if guestContact.Valid {
		b.GuestContact = &guestContact.String
	}
	if statusReason.Valid {
		b.StatusReason = &statusReason.String
	}
	if checkedInAt.Valid {
		t := checkedInAt.Time
		b.CheckedInAt = &t
	}
	if checkedOutAt.Valid {
		t := checkedOutAt.Time
		b.CheckedOutAt = &t
	}
	return nil
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and queries the full row back to populate timestamps and
// defaults.  The caller must commit or rollback the transaction.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const q = `INSERT INTO bookings
		(reference_code, room_id, guest_id, guest_name, guest_contact,
		 adults, children, infants, nationality, trip_purpose, stay_type, channel,
		 check_in_date, check_out_date, total_price_cents, balance_cents, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		b.ReferenceCode, b.RoomID, b.GuestID, b.GuestName, b.GuestContact,
		b.Adults, b.Children, b.Infants, b.Nationality, b.TripPurpose, b.StayType, b.Channel,
		b.CheckInDate.Format(dateLayout), b.CheckOutDate.Format(dateLayout),
		b.TotalPriceCents, b.BalanceCents, b.Status,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	const sel = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	return scanBooking(tx.QueryRowContext(ctx, sel, b.ID), b)
}

// GetByID returns a booking or ErrBookingNotFound.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	var b model.Booking
	if err := scanBooking(r.db.QueryRowContext(ctx, q, id), &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// LockTx loads a booking inside the given transaction with a row lock.
// Status transitions and balance updates read through this method so
// concurrent reconciliations serialize on the booking row.
func (r *BookingRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	var b model.Booking
	if err := scanBooking(tx.QueryRowContext(ctx, q, id), &b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}

// CountOverlappingTx counts room-occupying bookings whose interval
// intersects [start, end), excluding the booking with excludeID (pass 0
// to exclude none).  Executed inside the caller's transaction after the
// room row lock is taken, this closes the check-then-act race between
// concurrent booking requests.
func (r *BookingRepo) CountOverlappingTx(ctx context.Context, tx *sql.Tx, roomID uint64, start, end time.Time, excludeID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings
	           WHERE room_id = ? AND id <> ? AND ` + activeStatusFilter + `
	             AND check_in_date < ? AND check_out_date > ?`
	var n int
	err := tx.QueryRowContext(ctx, q, roomID, excludeID, end.Format(dateLayout), start.Format(dateLayout)).Scan(&n)
	return n, err
}

// CountIntervalViolationsTx counts pairs of room-occupying bookings for
// the same room whose intervals intersect.  A non-zero result means the
// no-overlap invariant is already broken and the current request must
// fail rather than make it worse.
func (r *BookingRepo) CountIntervalViolationsTx(ctx context.Context, tx *sql.Tx, roomID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM bookings a
	           JOIN bookings b ON b.room_id = a.room_id AND b.id > a.id
	           WHERE a.room_id = ?
	             AND a.status NOT IN ('CANCELED','CHECKED_OUT')
	             AND b.status NOT IN ('CANCELED','CHECKED_OUT')
	             AND a.check_in_date < b.check_out_date
	             AND a.check_out_date > b.check_in_date`
	var n int
	err := tx.QueryRowContext(ctx, q, roomID).Scan(&n)
	return n, err
}

// BookedRoomIDs returns the set of room IDs among roomIDs that have at
// least one room-occupying booking intersecting [start, end).
func (r *BookingRepo) BookedRoomIDs(ctx context.Context, roomIDs []uint64, start, end time.Time) (map[uint64]struct{}, error) {
	booked := make(map[uint64]struct{})
	if len(roomIDs) == 0 {
		return booked, nil
	}
	query := `SELECT DISTINCT room_id FROM bookings
	          WHERE room_id IN (` + placeholders(len(roomIDs)) + `)
	            AND ` + activeStatusFilter + `
	            AND check_in_date < ? AND check_out_date > ?`
	args := make([]interface{}, 0, len(roomIDs)+2)
	for _, id := range roomIDs {
		args = append(args, id)
	}
	args = append(args, end.Format(dateLayout), start.Format(dateLayout))
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		booked[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return booked, nil
}

// UpdateStatusTx sets the booking status and reason inside the given
// transaction.  Check-in and check-out transitions also stamp the
// corresponding timestamp column.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string, reason *string) error {
	var q string
	switch status {
	case model.BookingCheckedIn:
		q = `UPDATE bookings SET status = ?, status_reason = ?, checked_in_at = UTC_TIMESTAMP() WHERE id = ?`
	case model.BookingCheckedOut:
		q = `UPDATE bookings SET status = ?, status_reason = ?, checked_out_at = UTC_TIMESTAMP() WHERE id = ?`
	default:
		q = `UPDATE bookings SET status = ?, status_reason = ? WHERE id = ?`
	}
	_, err := tx.ExecContext(ctx, q, status, reason, id)
	return err
}

// SetBalanceTx sets the outstanding balance inside the given transaction.
func (r *BookingRepo) SetBalanceTx(ctx context.Context, tx *sql.Tx, id uint64, balanceCents int64) error {
	_, err := tx.ExecContext(ctx, `UPDATE bookings SET balance_cents = ? WHERE id = ?`, balanceCents, id)
	return err
}

// ExpirePendingTx cancels all PENDING bookings created at or before the
// cutoff that have no paid payment, returning the number of bookings
// released.  Bookings with a paid payment are left for reconciliation
// to move forward.
func (r *BookingRepo) ExpirePendingTx(ctx context.Context, tx *sql.Tx, olderThan time.Time) (int64, error) {
	const q = `UPDATE bookings b SET b.status = 'CANCELED', b.status_reason = 'payment grace period expired'
	           WHERE b.status = 'PENDING' AND b.created_at <= ?
	             AND NOT EXISTS (SELECT 1 FROM payments p WHERE p.booking_id = b.id AND p.status = 'paid')`
	result, err := tx.ExecContext(ctx, q, olderThan.UTC().Format("2006-01-02 15:04:05"))
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// BookingDetail is a booking joined with its room and business names
// for display to guests and front desks.
type BookingDetail struct {
	ID              uint64  `json:"id"`
	ReferenceCode   string  `json:"reference_code"`
	RoomID          uint64  `json:"room_id"`
	RoomName        string  `json:"room_name"`
	BusinessID      uint64  `json:"business_id"`
	Status          string  `json:"status"`
	CheckInDate     string  `json:"check_in"`
	CheckOutDate    string  `json:"check_out"`
	TotalPriceCents int64   `json:"total_price_cents"`
	BalanceCents    int64   `json:"balance_cents"`
	Channel         string  `json:"channel"`
	GuestName       *string `json:"guest_name,omitempty"`
}

const bookingDetailSelect = `SELECT b.id, b.reference_code, b.room_id, r.name, r.business_id,
	       b.status, b.check_in_date, b.check_out_date,
	       b.total_price_cents, b.balance_cents, b.channel, b.guest_name
	FROM bookings b
	JOIN rooms r ON r.id = b.room_id`

func (r *BookingRepo) listDetails(ctx context.Context, query string, args ...interface{}) ([]BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var d BookingDetail
		var in, out time.Time
		var guestName sql.NullString
		if err := rows.Scan(
			&d.ID, &d.ReferenceCode, &d.RoomID, &d.RoomName, &d.BusinessID,
			&d.Status, &in, &out, &d.TotalPriceCents, &d.BalanceCents, &d.Channel, &guestName,
		); err != nil {
			return nil, err
		}
		d.CheckInDate = in.Format(dateLayout)
		d.CheckOutDate = out.Format(dateLayout)
		if guestName.Valid {
			d.GuestName = &guestName.String
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return details, nil
}

// ListByGuest returns all bookings made by a registered tourist,
// newest first.
func (r *BookingRepo) ListByGuest(ctx context.Context, guestID uint64) ([]BookingDetail, error) {
	return r.listDetails(ctx, bookingDetailSelect+` WHERE b.guest_id = ? ORDER BY b.created_at DESC`, guestID)
}

// ListByBusiness returns all bookings across a business's rooms,
// newest first.
func (r *BookingRepo) ListByBusiness(ctx context.Context, businessID uint64) ([]BookingDetail, error) {
	return r.listDetails(ctx, bookingDetailSelect+` WHERE r.business_id = ? ORDER BY b.created_at DESC`, businessID)
}
