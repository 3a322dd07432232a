package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

const insertPayment = `
INSERT INTO payments (transaction_id, payment_method, payment_proof_url, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
RETURNING id`

type InsertPaymentParams struct {
	TransactionID   int64
	PaymentMethod   string
	PaymentProofUrl string
}

func (q *Queries) InsertPayment(ctx context.Context, arg InsertPaymentParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertPayment, arg.TransactionID, arg.PaymentMethod, arg.PaymentProofUrl)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const findPaymentProofUrl = `
SELECT payment_proof_url FROM payments WHERE transaction_id = $1`

func (q *Queries) FindPaymentProofUrl(ctx context.Context, transactionId int64) (string, error) {
	row := q.db.QueryRow(ctx, findPaymentProofUrl, transactionId)
	var url string
	err := row.Scan(&url)
	return url, err
}

const updatePaymentProofUrl = `
UPDATE payments SET payment_proof_url = $2, updated_at = now() WHERE transaction_id = $1`

type UpdatePaymentProofUrlParams struct {
	TransactionID   int64
	PaymentProofUrl string
}

func (q *Queries) UpdatePaymentProofUrl(ctx context.Context, arg UpdatePaymentProofUrlParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, updatePaymentProofUrl, arg.TransactionID, arg.PaymentProofUrl)
}

const insertTicket = `
INSERT INTO tickets (user_id, seat_id, ticket_code, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())`

type InsertTicketParams struct {
	UserID     int64
	SeatID     int64
	TicketCode string
}

func (q *Queries) InsertTicket(ctx context.Context, arg InsertTicketParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, insertTicket, arg.UserID, arg.SeatID, arg.TicketCode)
}
