package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/marvinagmata/tourism-room-booking/internal/model"
)

// PaymentRepo provides persistence for payments.  The orchestrator
// creates rows through CreateTx; every mutation after that belongs to
// the reconciliation engine, which looks rows up by gateway intent
// identifier under a row lock.  The intent_id column carries a unique
// index: it is the idempotency key for all gateway truth.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a new PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

const paymentColumns = `id, public_id, booking_id, payer_type, payer_id,
	amount_cents, currency, method, payment_type, status,
	intent_id, method_ref, gateway_payment_id, refund_ref, checkout_url, metadata,
	created_at, updated_at`

func scanPayment(row interface{ Scan(...any) error }, p *model.Payment) error {
	var payerID sql.NullInt64
	var intentID, methodRef, gatewayPaymentID, refundRef, checkoutURL, metadata sql.NullString
	err := row.Scan(
		&p.ID, &p.PublicID, &p.BookingID, &p.PayerType, &payerID,
		&p.AmountCents, &p.Currency, &p.Method, &p.PaymentType, &p.Status,
		&intentID, &methodRef, &gatewayPaymentID, &refundRef, &checkoutURL, &metadata,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if payerID.Valid {
		v := uint64(payerID.Int64)
		p.PayerID = &v
	}
	if intentID.Valid {
		p.IntentID = &intentID.String
	}
	if methodRef.Valid {
		p.MethodRef = &methodRef.String
	}
	if gatewayPaymentID.Valid {
		p.GatewayPaymentID = &gatewayPaymentID.String
	}
	if refundRef.Valid {
		p.RefundRef = &refundRef.String
	}
	if checkoutURL.Valid {
		p.CheckoutURL = &checkoutURL.String
	}
	if metadata.Valid {
		p.Metadata = &metadata.String
	}
	return nil
}

// CreateTx inserts a new payment within the scope of an existing
// transaction and queries the full row back.  The unique index on
// intent_id rejects a second row for the same gateway intent.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.Payment) error {
	const q = `INSERT INTO payments
		(public_id, booking_id, payer_type, payer_id, amount_cents, currency,
		 method, payment_type, status, intent_id, method_ref, checkout_url, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, q,
		p.PublicID, p.BookingID, p.PayerType, p.PayerID, p.AmountCents, p.Currency,
		p.Method, p.PaymentType, p.Status, p.IntentID, p.MethodRef, p.CheckoutURL, p.Metadata,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	const sel = `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`
	return scanPayment(tx.QueryRowContext(ctx, sel, p.ID), p)
}

// GetByPublicID returns a payment by its client-facing identifier or
// ErrPaymentNotFound.
func (r *PaymentRepo) GetByPublicID(ctx context.Context, publicID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE public_id = ?`
	var p model.Payment
	if err := scanPayment(r.db.QueryRowContext(ctx, q, publicID), &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// FindByIntentIDTx reads the payment matching a gateway intent without
// locking it.  Reconciliation uses it to learn the booking id before
// taking row locks, so every writer acquires booking before payment in
// the same global order.  Returns ErrPaymentNotFound for unknown
// intents (stale events).
func (r *PaymentRepo) FindByIntentIDTx(ctx context.Context, tx *sql.Tx, intentID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE intent_id = ?`
	var p model.Payment
	if err := scanPayment(tx.QueryRowContext(ctx, q, intentID), &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetByIntentIDTx loads the payment matching a gateway intent with a
// row lock.  Concurrent verify calls and webhook deliveries for the
// same intent serialize here; whichever commits first wins and the
// loser observes the already-updated status.  Callers must already
// hold the booking row lock (see FindByIntentIDTx).  Returns
// ErrPaymentNotFound for unknown intents (stale events).
func (r *PaymentRepo) GetByIntentIDTx(ctx context.Context, tx *sql.Tx, intentID string) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE intent_id = ? FOR UPDATE`
	var p model.Payment
	if err := scanPayment(tx.QueryRowContext(ctx, q, intentID), &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ActivePendingTx returns the live pending payment for a booking+payer
// pair, locked for update, or ErrPaymentNotFound when none exists.
// The orchestrator resumes this row instead of opening a second intent
// for the same payer.
func (r *PaymentRepo) ActivePendingTx(ctx context.Context, tx *sql.Tx, bookingID uint64, payerType string, payerID *uint64) (*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments
	           WHERE booking_id = ? AND payer_type = ? AND payer_id <=> ?
	             AND status = 'pending' AND intent_id IS NOT NULL
	           ORDER BY id DESC LIMIT 1 FOR UPDATE`
	var p model.Payment
	if err := scanPayment(tx.QueryRowContext(ctx, q, bookingID, payerType, payerID), &p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &p, nil
}

// MarkPaidTx transitions a payment to paid and records the gateway's
// completed-payment identifier.
func (r *PaymentRepo) MarkPaidTx(ctx context.Context, tx *sql.Tx, id uint64, gatewayPaymentID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'paid', gateway_payment_id = ? WHERE id = ?`,
		gatewayPaymentID, id)
	return err
}

// MarkFailedTx transitions a payment to failed.
func (r *PaymentRepo) MarkFailedTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	_, err := tx.ExecContext(ctx, `UPDATE payments SET status = 'failed' WHERE id = ?`, id)
	return err
}

// MarkRefundedTx transitions a payment to refunded and records the
// gateway refund reference.
func (r *PaymentRepo) MarkRefundedTx(ctx context.Context, tx *sql.Tx, id uint64, refundRef string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'refunded', refund_ref = ? WHERE id = ?`,
		refundRef, id)
	return err
}

// FailPendingTx marks every pending payment of a booking as failed and
// returns how many rows changed.  Used when a booking is canceled
// before its checkout completes; any gateway event that later arrives
// for those intents is discarded as stale.
func (r *PaymentRepo) FailPendingTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	result, err := tx.ExecContext(ctx,
		`UPDATE payments SET status = 'failed' WHERE booking_id = ? AND status = 'pending'`, bookingID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SumPaidTx returns the total amount of paid payments for a booking.
// The booking's balance is always total price minus this sum.
func (r *PaymentRepo) SumPaidTx(ctx context.Context, tx *sql.Tx, bookingID uint64) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount_cents), 0) FROM payments WHERE booking_id = ? AND status = 'paid'`
	var sum int64
	err := tx.QueryRowContext(ctx, q, bookingID).Scan(&sum)
	return sum, err
}

// CountLiveTx counts pending or paid payments for a booking, excluding
// the payment with excludeID (pass 0 to exclude none).  A failed
// payment only cancels its booking when this count is zero.
func (r *PaymentRepo) CountLiveTx(ctx context.Context, tx *sql.Tx, bookingID uint64, excludeID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM payments
	           WHERE booking_id = ? AND id <> ? AND status IN ('pending','paid')`
	var n int
	err := tx.QueryRowContext(ctx, q, bookingID, excludeID).Scan(&n)
	return n, err
}

// ListByBooking returns all payments for a booking ordered by creation.
func (r *PaymentRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Payment, 0)
	for rows.Next() {
		var p model.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
