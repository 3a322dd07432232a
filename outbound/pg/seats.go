package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Seat rows are locked FOR UPDATE while a reservation is open so concurrent
// reservations against the same seat class serialize on the row and the
// reserved counter can never pass total_seat.
const findSeatForUpdate = `
SELECT id, events_id, name, price, total_seat, reserved FROM seats WHERE id = $1 FOR UPDATE`

type SeatRow struct {
	ID        int64
	EventsID  int64
	Name      string
	Price     int64
	TotalSeat int32
	Reserved  int32
}

func (q *Queries) FindSeatForUpdate(ctx context.Context, id int64) (SeatRow, error) {
	row := q.db.QueryRow(ctx, findSeatForUpdate, id)
	var s SeatRow
	err := row.Scan(&s.ID, &s.EventsID, &s.Name, &s.Price, &s.TotalSeat, &s.Reserved)
	return s, err
}

const findSeatsByEvent = `
SELECT id, events_id, name, price, total_seat, reserved FROM seats WHERE events_id = $1 ORDER BY price DESC`

func (q *Queries) FindSeatsByEvent(ctx context.Context, eventsId int64) ([]SeatRow, error) {
	rows, err := q.db.Query(ctx, findSeatsByEvent, eventsId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SeatRow
	for rows.Next() {
		var s SeatRow
		if err := rows.Scan(&s.ID, &s.EventsID, &s.Name, &s.Price, &s.TotalSeat, &s.Reserved); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

const incrementSeatReserved = `
UPDATE seats SET reserved = reserved + $2, updated_at = now()
WHERE id = $1 AND reserved + $2 <= total_seat`

type IncrementSeatReservedParams struct {
	ID       int64
	Quantity int32
}

func (q *Queries) IncrementSeatReserved(ctx context.Context, arg IncrementSeatReservedParams) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, incrementSeatReserved, arg.ID, arg.Quantity)
}

// releaseTransactionSeats compensates a reservation in one statement: every
// detail line's quantity is handed back to its seat row.
const releaseTransactionSeats = `
UPDATE seats SET reserved = reserved - d.quantity, updated_at = now()
FROM detail_transactions d
WHERE d.transaction_id = $1 AND seats.id = d.seats_id`

func (q *Queries) ReleaseTransactionSeats(ctx context.Context, transactionId int64) (pgconn.CommandTag, error) {
	return q.db.Exec(ctx, releaseTransactionSeats, transactionId)
}

const existsSeatByEventAndName = `
SELECT EXISTS (SELECT 1 FROM seats WHERE events_id = $1 AND name = $2) AS "exists"`

func (q *Queries) ExistsSeatByEventAndName(ctx context.Context, eventsId int64, name string) (bool, error) {
	row := q.db.QueryRow(ctx, existsSeatByEventAndName, eventsId, name)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const insertSeat = `
INSERT INTO seats (events_id, name, description, price, total_seat, reserved, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, 0, now(), now())
RETURNING id`

type InsertSeatParams struct {
	EventsID    int64
	Name        string
	Description string
	Price       int64
	TotalSeat   int32
}

func (q *Queries) InsertSeat(ctx context.Context, arg InsertSeatParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertSeat, arg.EventsID, arg.Name, arg.Description, arg.Price, arg.TotalSeat)
	var id int64
	err := row.Scan(&id)
	return id, err
}
