package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Discount consumption flags (is_used, claimed, points_value) are only ever
// mutated under the row locks taken by these FOR UPDATE reads.

const findCouponByCodeForUpdate = `
SELECT id, user_id, coupon_code, discount, is_used, expired_date
FROM coupons WHERE coupon_code = $1 FOR UPDATE`

type CouponRow struct {
	ID          int64
	UserID      int64
	CouponCode  string
	Discount    int64
	IsUsed      bool
	ExpiredDate pgtype.Timestamp
}

func (q *Queries) FindCouponByCodeForUpdate(ctx context.Context, code string) (CouponRow, error) {
	row := q.db.QueryRow(ctx, findCouponByCodeForUpdate, code)
	var c CouponRow
	err := row.Scan(&c.ID, &c.UserID, &c.CouponCode, &c.Discount, &c.IsUsed, &c.ExpiredDate)
	return c, err
}

const markCouponUsed = `
UPDATE coupons SET is_used = TRUE, updated_at = now() WHERE id = $1 AND is_used = FALSE`

func (q *Queries) MarkCouponUsed(ctx context.Context, id int64) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, markCouponUsed, id)
}

const unmarkCouponUsed = `
UPDATE coupons SET is_used = FALSE, updated_at = now() WHERE id = $1`

func (q *Queries) UnmarkCouponUsed(ctx context.Context, id int64) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, unmarkCouponUsed, id)
}

const findVoucherByCodeForUpdate = `
SELECT id, events_id, code, value, quota, claimed, valid_at, expired_at
FROM vouchers WHERE code = $1 FOR UPDATE`

type VoucherRow struct {
	ID        int64
	EventsID  int64
	Code      string
	Value     int64
	Quota     int32
	Claimed   int32
	ValidAt   pgtype.Timestamp
	ExpiredAt pgtype.Timestamp
}

func (q *Queries) FindVoucherByCodeForUpdate(ctx context.Context, code string) (VoucherRow, error) {
	row := q.db.QueryRow(ctx, findVoucherByCodeForUpdate, code)
	var v VoucherRow
	err := row.Scan(&v.ID, &v.EventsID, &v.Code, &v.Value, &v.Quota, &v.Claimed, &v.ValidAt, &v.ExpiredAt)
	return v, err
}

const incrementVoucherClaimed = `
UPDATE vouchers SET claimed = claimed + 1, updated_at = now() WHERE id = $1 AND claimed < quota`

func (q *Queries) IncrementVoucherClaimed(ctx context.Context, id int64) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, incrementVoucherClaimed, id)
}

const decrementVoucherClaimed = `
UPDATE vouchers SET claimed = claimed - 1, updated_at = now() WHERE id = $1 AND claimed > 0`

func (q *Queries) DecrementVoucherClaimed(ctx context.Context, id int64) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, decrementVoucherClaimed, id)
}

const insertVoucher = `
INSERT INTO vouchers (organizer_id, events_id, code, description, value, quota, claimed, valid_at, expired_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, now(), now())
RETURNING id`

type InsertVoucherParams struct {
	OrganizerID int64
	EventsID    int64
	Code        string
	Description string
	Value       int64
	Quota       int32
	ValidAt     pgtype.Timestamp
	ExpiredAt   pgtype.Timestamp
}

func (q *Queries) InsertVoucher(ctx context.Context, arg InsertVoucherParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertVoucher,
		arg.OrganizerID, arg.EventsID, arg.Code, arg.Description, arg.Value, arg.Quota, arg.ValidAt, arg.ExpiredAt)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const findPointsByUserForUpdate = `
SELECT id, user_id, points_value, expired_date FROM points WHERE user_id = $1 FOR UPDATE`

type PointsRow struct {
	ID          int64
	UserID      int64
	PointsValue int64
	ExpiredDate pgtype.Timestamp
}

func (q *Queries) FindPointsByUserForUpdate(ctx context.Context, userId int64) (PointsRow, error) {
	row := q.db.QueryRow(ctx, findPointsByUserForUpdate, userId)
	var p PointsRow
	err := row.Scan(&p.ID, &p.UserID, &p.PointsValue, &p.ExpiredDate)
	return p, err
}

const debitUserPoints = `
UPDATE points SET points_value = points_value - $2, updated_at = now()
WHERE user_id = $1 AND points_value >= $2`

type DebitUserPointsParams struct {
	UserID int64
	Amount int64
}

func (q *Queries) DebitUserPoints(ctx context.Context, arg DebitUserPointsParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, debitUserPoints, arg.UserID, arg.Amount)
}

const creditUserPoints = `
UPDATE points SET points_value = points_value + $2, updated_at = now() WHERE user_id = $1`

type CreditUserPointsParams struct {
	UserID int64
	Amount int64
}

func (q *Queries) CreditUserPoints(ctx context.Context, arg CreditUserPointsParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, creditUserPoints, arg.UserID, arg.Amount)
}

const upsertUserPoints = `
INSERT INTO points (user_id, points_value, expired_date, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (user_id) DO UPDATE
SET points_value = points.points_value + EXCLUDED.points_value,
    expired_date = EXCLUDED.expired_date,
    updated_at = now()`

type UpsertUserPointsParams struct {
	UserID      int64
	Amount      int64
	ExpiredDate pgtype.Timestamp
}

func (q *Queries) UpsertUserPoints(ctx context.Context, arg UpsertUserPointsParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, upsertUserPoints, arg.UserID, arg.Amount, arg.ExpiredDate)
}
