package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/marvinagmata/tourism-room-booking/internal/model"
)

// RoomRepo provides read access to rooms.  Rooms are owned by the
// business-management service; this service never inserts or updates
// them except for taking a row lock while creating a booking.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the given database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

const roomColumns = `id, business_id, name, capacity, nightly_rate_cents, active, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }, r *model.Room) error {
	return row.Scan(&r.ID, &r.BusinessID, &r.Name, &r.Capacity, &r.NightlyRateCents, &r.Active, &r.CreatedAt, &r.UpdatedAt)
}

// GetByID returns a single room or ErrRoomNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id uint64) (*model.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	var room model.Room
	if err := scanRoom(r.db.QueryRowContext(ctx, q, id), &room); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// ListActiveByBusiness returns all active rooms for a business ordered
// by id.  The stable ordering keeps availability results deterministic
// for pagination.  An empty slice is returned when the business has no
// rooms.
func (r *RoomRepo) ListActiveByBusiness(ctx context.Context, businessID uint64) ([]model.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE business_id = ? AND active = 1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Room, 0)
	for rows.Next() {
		var room model.Room
		if err := scanRoom(rows, &room); err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LockTx loads a room inside the given transaction with a row lock
// (SELECT ... FOR UPDATE).  The lock serializes concurrent booking
// attempts for the same room so that two transactions cannot both
// observe "room free" and both commit overlapping stays.  Returns
// ErrRoomNotFound when the room does not exist.
func (r *RoomRepo) LockTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Room, error) {
	const q = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ? FOR UPDATE`
	var room model.Room
	if err := scanRoom(tx.QueryRowContext(ctx, q, id), &room); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, err
	}
	return &room, nil
}

// placeholders returns "?, ?, ..." for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
