package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Column coupoun_amount keeps the historical schema spelling; renaming it is
// a migration, not a code change.
const transactionColumns = `
id, uuid, user_id, events_id, total_price, status, coupon_id, voucher_id, points_id,
coupoun_amount, voucher_amount, used_point, created_at`

type TransactionRow struct {
	ID            int64
	Uuid          string
	UserID        int64
	EventsID      int64
	TotalPrice    int64
	Status        string
	CouponID      pgtype.Int8
	VoucherID     pgtype.Int8
	PointsID      pgtype.Int8
	CouponAmount  int64
	VoucherAmount int64
	UsedPoint     int64
	CreatedAt     pgtype.Timestamp
}

func scanTransactionRow(row pgx.Row) (TransactionRow, error) {
	var t TransactionRow
	err := row.Scan(&t.ID, &t.Uuid, &t.UserID, &t.EventsID, &t.TotalPrice, &t.Status,
		&t.CouponID, &t.VoucherID, &t.PointsID, &t.CouponAmount, &t.VoucherAmount, &t.UsedPoint, &t.CreatedAt)
	return t, err
}

const insertTransaction = `
INSERT INTO transactions (uuid, user_id, events_id, total_price, status, coupoun_amount, voucher_amount, used_point, created_at, updated_at)
VALUES ($1, $2, $3, 0, 'CREATED', 0, 0, 0, now(), now())
RETURNING id`

type InsertTransactionParams struct {
	Uuid     string
	UserID   int64
	EventsID int64
}

func (q *Queries) InsertTransaction(ctx context.Context, arg InsertTransactionParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertTransaction, arg.Uuid, arg.UserID, arg.EventsID)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const updateTransactionTotalPrice = `
UPDATE transactions SET total_price = $2, updated_at = now() WHERE id = $1`

type UpdateTransactionTotalPriceParams struct {
	ID         int64
	TotalPrice int64
}

func (q *Queries) UpdateTransactionTotalPrice(ctx context.Context, arg UpdateTransactionTotalPriceParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, updateTransactionTotalPrice, arg.ID, arg.TotalPrice)
}

const findTransactionByUuid = `SELECT ` + transactionColumns + ` FROM transactions WHERE uuid = $1`

func (q *Queries) FindTransactionByUuid(ctx context.Context, uuid string) (TransactionRow, error) {
	return scanTransactionRow(q.db.QueryRow(ctx, findTransactionByUuid, uuid))
}

// FOR UPDATE so concurrent applyCode calls on the same uuid serialize; the
// second caller re-reads the discount columns the first one just committed.
const findTransactionByUuidForUpdate = `SELECT ` + transactionColumns + ` FROM transactions WHERE uuid = $1 FOR UPDATE`

func (q *Queries) FindTransactionByUuidForUpdate(ctx context.Context, uuid string) (TransactionRow, error) {
	return scanTransactionRow(q.db.QueryRow(ctx, findTransactionByUuidForUpdate, uuid))
}

const applyTransactionDiscount = `
UPDATE transactions
SET coupon_id = $2, voucher_id = $3, points_id = $4,
    coupoun_amount = $5, voucher_amount = $6, used_point = $7,
    status = 'WAITING_FOR_PAYMENT', updated_at = now()
WHERE id = $1 AND status = 'CREATED'
  AND coupon_id IS NULL AND voucher_id IS NULL AND points_id IS NULL`

type ApplyTransactionDiscountParams struct {
	ID            int64
	CouponID      pgtype.Int8
	VoucherID     pgtype.Int8
	PointsID      pgtype.Int8
	CouponAmount  int64
	VoucherAmount int64
	UsedPoint     int64
}

func (q *Queries) ApplyTransactionDiscount(ctx context.Context, arg ApplyTransactionDiscountParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, applyTransactionDiscount,
		arg.ID, arg.CouponID, arg.VoucherID, arg.PointsID,
		arg.CouponAmount, arg.VoucherAmount, arg.UsedPoint)
}

const updateTransactionStatusFrom = `
UPDATE transactions SET status = $2, admin_note = $4, updated_at = now()
WHERE uuid = $1 AND status = $3`

type UpdateTransactionStatusFromParams struct {
	Uuid       string
	NewStatus  string
	FromStatus string
	AdminNote  pgtype.Text
}

func (q *Queries) UpdateTransactionStatusFrom(ctx context.Context, arg UpdateTransactionStatusFromParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, updateTransactionStatusFrom, arg.Uuid, arg.NewStatus, arg.FromStatus, arg.AdminNote)
}

// A late-firing payment timer must be a no-op once the transaction moved past
// the states the timer was guarding; the status guard here is the safety net.
const expireTransaction = `
UPDATE transactions SET status = 'EXPIRED', updated_at = now()
WHERE id = $1 AND status IN ('CREATED', 'WAITING_FOR_PAYMENT')`

func (q *Queries) ExpireTransaction(ctx context.Context, id int64) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, expireTransaction, id)
}

const findTransactionDetails = `
SELECT d.seats_id, d.quantity, d.price_at_purchase, s.name
FROM detail_transactions d
JOIN seats s ON s.id = d.seats_id
WHERE d.transaction_id = $1
ORDER BY d.id`

type TransactionDetailRow struct {
	SeatsID         int64
	Quantity        int32
	PriceAtPurchase int64
	SeatName        string
}

func (q *Queries) FindTransactionDetails(ctx context.Context, transactionId int64) ([]TransactionDetailRow, error) {
	rows, err := q.db.Query(ctx, findTransactionDetails, transactionId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []TransactionDetailRow
	for rows.Next() {
		var d TransactionDetailRow
		if err := rows.Scan(&d.SeatsID, &d.Quantity, &d.PriceAtPurchase, &d.SeatName); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

const insertDetailTransaction = `
INSERT INTO detail_transactions (transaction_id, seats_id, quantity, price_at_purchase, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())`

type InsertDetailTransactionParams struct {
	TransactionID   int64
	SeatsID         int64
	Quantity        int32
	PriceAtPurchase int64
}

func (q *Queries) InsertDetailTransaction(ctx context.Context, arg InsertDetailTransactionParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, insertDetailTransaction, arg.TransactionID, arg.SeatsID, arg.Quantity, arg.PriceAtPurchase)
}

const listTransactionsByUser = `
SELECT t.id, t.uuid, e.name, t.total_price, t.coupoun_amount, t.voucher_amount, t.used_point, t.status, t.created_at
FROM transactions t
JOIN events e ON e.id = t.events_id
WHERE t.user_id = $1
ORDER BY t.created_at DESC
LIMIT $2 OFFSET $3`

type ListTransactionsByUserParams struct {
	UserID int64
	Limit  int32
	Offset int32
}

type ListTransactionsByUserRow struct {
	ID            int64
	Uuid          string
	EventName     string
	TotalPrice    int64
	CouponAmount  int64
	VoucherAmount int64
	UsedPoint     int64
	Status        string
	CreatedAt     pgtype.Timestamp
}

func (q *Queries) ListTransactionsByUser(ctx context.Context, arg ListTransactionsByUserParams) ([]ListTransactionsByUserRow, error) {
	rows, err := q.db.Query(ctx, listTransactionsByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListTransactionsByUserRow
	for rows.Next() {
		var t ListTransactionsByUserRow
		if err := rows.Scan(&t.ID, &t.Uuid, &t.EventName, &t.TotalPrice, &t.CouponAmount, &t.VoucherAmount, &t.UsedPoint, &t.Status, &t.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const countTransactionsByUser = `SELECT count(*) FROM transactions WHERE user_id = $1`

func (q *Queries) CountTransactionsByUser(ctx context.Context, userId int64) (int64, error) {
	row := q.db.QueryRow(ctx, countTransactionsByUser, userId)
	var count int64
	err := row.Scan(&count)
	return count, err
}
