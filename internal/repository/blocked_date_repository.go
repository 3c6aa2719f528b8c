package repository

import (
	"context"
	"database/sql"
	"time"
)

// BlockedDateRepo provides read access to blocked date ranges.  Ranges
// are created and removed by the business-management service; this
// service only consumes them when computing availability.  All range
// comparisons use half-open semantics: a block [start, end) conflicts
// with a stay [in, out) iff start < out AND end > in.
type BlockedDateRepo struct {
	db *sql.DB
}

// NewBlockedDateRepo returns a new BlockedDateRepo bound to the given database.
func NewBlockedDateRepo(db *sql.DB) *BlockedDateRepo { return &BlockedDateRepo{db: db} }

const dateLayout = "2006-01-02"

// BlockedRoomIDs returns the set of room IDs among roomIDs that have at
// least one blocked range intersecting [start, end).  Passing an empty
// slice returns an empty set.
func (r *BlockedDateRepo) BlockedRoomIDs(ctx context.Context, roomIDs []uint64, start, end time.Time) (map[uint64]struct{}, error) {
	blocked := make(map[uint64]struct{})
	if len(roomIDs) == 0 {
		return blocked, nil
	}
	query := `SELECT DISTINCT room_id FROM blocked_date_ranges
	          WHERE room_id IN (` + placeholders(len(roomIDs)) + `)
	            AND start_date < ? AND end_date > ?`
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
		blocked[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return blocked, nil
}

// CountOverlappingTx counts blocked ranges for one room intersecting
// [start, end) inside the given transaction.  Used by the booking
// creation path to re-validate availability under the room lock.
func (r *BlockedDateRepo) CountOverlappingTx(ctx context.Context, tx *sql.Tx, roomID uint64, start, end time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM blocked_date_ranges
	           WHERE room_id = ? AND start_date < ? AND end_date > ?`
	var n int
	err := tx.QueryRowContext(ctx, q, roomID, end.Format(dateLayout), start.Format(dateLayout)).Scan(&n)
	return n, err
}
