package pg

import (
	"context"
)

const findUserById = `SELECT id, email, full_name FROM users WHERE id = $1`

type UserRow struct {
	ID       int64
	Email    string
	FullName string
}

func (q *Queries) FindUserById(ctx context.Context, id int64) (UserRow, error) {
	row := q.db.QueryRow(ctx, findUserById, id)
	var u UserRow
	err := row.Scan(&u.ID, &u.Email, &u.FullName)
	return u, err
}

const findOrganizerByUserId = `SELECT id, user_id, name FROM organizers WHERE user_id = $1`

type OrganizerRow struct {
	ID     int64
	UserID int64
	Name   string
}

func (q *Queries) FindOrganizerByUserId(ctx context.Context, userId int64) (OrganizerRow, error) {
	row := q.db.QueryRow(ctx, findOrganizerByUserId, userId)
	var o OrganizerRow
	err := row.Scan(&o.ID, &o.UserID, &o.Name)
	return o, err
}
