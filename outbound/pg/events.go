package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const findEventById = `
SELECT id, organizer_id, name, slug, location_detail, start_event, end_event
FROM events WHERE id = $1 AND deleted_at IS NULL`

type EventRow struct {
	ID             int64
	OrganizerID    int64
	Name           string
	Slug           string
	LocationDetail string
	StartEvent     pgtype.Timestamp
	EndEvent       pgtype.Timestamp
}

func (q *Queries) FindEventById(ctx context.Context, id int64) (EventRow, error) {
	row := q.db.QueryRow(ctx, findEventById, id)
	var e EventRow
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Slug, &e.LocationDetail, &e.StartEvent, &e.EndEvent)
	return e, err
}

const existsEventByNameOrSlug = `
SELECT EXISTS (SELECT 1 FROM events WHERE (name = $1 OR slug = $2) AND deleted_at IS NULL) AS "exists"`

func (q *Queries) ExistsEventByNameOrSlug(ctx context.Context, name, slug string) (bool, error) {
	row := q.db.QueryRow(ctx, existsEventByNameOrSlug, name, slug)
	var exists bool
	err := row.Scan(&exists)
	return exists, err
}

const insertEvent = `
INSERT INTO events (organizer_id, category_id, city_id, name, slug, description, content, location_detail, start_event, end_event, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
RETURNING id`

type InsertEventParams struct {
	OrganizerID    int64
	CategoryID     int64
	CityID         int64
	Name           string
	Slug           string
	Description    string
	Content        string
	LocationDetail string
	StartEvent     pgtype.Timestamp
	EndEvent       pgtype.Timestamp
}

func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) (int64, error) {
	row := q.db.QueryRow(ctx, insertEvent,
		arg.OrganizerID, arg.CategoryID, arg.CityID, arg.Name, arg.Slug,
		arg.Description, arg.Content, arg.LocationDetail, arg.StartEvent, arg.EndEvent)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const findEventBySlug = `
SELECT e.id, e.organizer_id, e.name, e.slug, e.description, e.content, e.location_detail, e.start_event, e.end_event, ci.name, ca.name
FROM events e
JOIN cities ci ON ci.id = e.city_id
JOIN categories ca ON ca.id = e.category_id
WHERE e.slug = $1 AND e.deleted_at IS NULL`

type EventDetailRow struct {
	ID             int64
	OrganizerID    int64
	Name           string
	Slug           string
	Description    string
	Content        string
	LocationDetail string
	StartEvent     pgtype.Timestamp
	EndEvent       pgtype.Timestamp
	CityName       string
	CategoryName   string
}

func (q *Queries) FindEventBySlug(ctx context.Context, slug string) (EventDetailRow, error) {
	row := q.db.QueryRow(ctx, findEventBySlug, slug)
	var e EventDetailRow
	err := row.Scan(&e.ID, &e.OrganizerID, &e.Name, &e.Slug, &e.Description, &e.Content,
		&e.LocationDetail, &e.StartEvent, &e.EndEvent, &e.CityName, &e.CategoryName)
	return e, err
}

const listEvents = `
SELECT e.id, e.name, e.slug, e.location_detail, e.start_event, e.end_event, ci.name, ca.name
FROM events e
JOIN cities ci ON ci.id = e.city_id
JOIN categories ca ON ca.id = e.category_id
WHERE e.deleted_at IS NULL
  AND ($1 = '' OR e.name ILIKE '%' || $1 || '%')
  AND ($2 = '' OR ci.slug = $2)
  AND ($3 = '' OR ca.slug = $3)
ORDER BY e.start_event DESC
LIMIT $4 OFFSET $5`

type ListEventsParams struct {
	Search       string
	CitySlug     string
	CategorySlug string
	Limit        int32
	Offset       int32
}

type ListEventsRow struct {
	ID             int64
	Name           string
	Slug           string
	LocationDetail string
	StartEvent     pgtype.Timestamp
	EndEvent       pgtype.Timestamp
	CityName       string
	CategoryName   string
}

func (q *Queries) ListEvents(ctx context.Context, arg ListEventsParams) ([]ListEventsRow, error) {
	rows, err := q.db.Query(ctx, listEvents, arg.Search, arg.CitySlug, arg.CategorySlug, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ListEventsRow
	for rows.Next() {
		var e ListEventsRow
		if err := rows.Scan(&e.ID, &e.Name, &e.Slug, &e.LocationDetail, &e.StartEvent, &e.EndEvent, &e.CityName, &e.CategoryName); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const countEvents = `
SELECT count(*)
FROM events e
JOIN cities ci ON ci.id = e.city_id
JOIN categories ca ON ca.id = e.category_id
WHERE e.deleted_at IS NULL
  AND ($1 = '' OR e.name ILIKE '%' || $1 || '%')
  AND ($2 = '' OR ci.slug = $2)
  AND ($3 = '' OR ca.slug = $3)`

func (q *Queries) CountEvents(ctx context.Context, search, citySlug, categorySlug string) (int64, error) {
	row := q.db.QueryRow(ctx, countEvents, search, citySlug, categorySlug)
	var count int64
	err := row.Scan(&count)
	return count, err
}
