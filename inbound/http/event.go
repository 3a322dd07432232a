package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ticket-marketplace/common"
	"ticket-marketplace/common/constant"
	"ticket-marketplace/common/errs"
	"ticket-marketplace/common/otel"
	"ticket-marketplace/model"
	"ticket-marketplace/outbound/pg"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/oklog/ulid/v2"
)

type EventHttp struct {
	Querier  *pg.Queries
	Validate *validator.Validate

	TimeNow func() time.Time
}

func RegisterEventHttp(mux *http.ServeMux, querier *pg.Queries, validate *validator.Validate) *EventHttp {
	in := &EventHttp{
		Querier:  querier,
		Validate: validate,
		TimeNow:  time.Now,
	}

	mux.HandleFunc("POST /api/events", in.create)
	mux.HandleFunc("GET /api/events", in.list)
	mux.HandleFunc("GET /api/events/{slug}", in.detail)
	mux.HandleFunc("POST /api/events/{eventId}/seats", in.createSeat)
	mux.HandleFunc("POST /api/events/{eventId}/vouchers", in.createVoucher)

	return in
}

func (in EventHttp) create(w http.ResponseWriter, r *http.Request) {
	userId, err := authUserId(r)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	var req model.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Kind: errs.KindValidation, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	if !req.EndEvent.After(req.StartEvent) {
		writeErrorResponse(w, errs.Validation("end_event must be after start_event", nil))
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "EventHttp.create")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "create event receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	organizer, err := in.Querier.FindOrganizerByUserId(ctx, userId)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.Forbidden("You are not an organizer"))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find organizer", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	slug := slugify(req.Name)
	exists, err := in.Querier.ExistsEventByNameOrSlug(ctx, req.Name, slug)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check event existence", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}
	if exists {
		writeErrorResponse(w, errs.Conflict("Event with the same name already exists"))
		return
	}

	id, err := in.Querier.InsertEvent(ctx, pg.InsertEventParams{
		OrganizerID:    organizer.ID,
		CategoryID:     req.CategoryID,
		CityID:         req.CityID,
		Name:           req.Name,
		Slug:           slug,
		Description:    req.Description,
		Content:        req.Content,
		LocationDetail: req.LocationDetail,
		StartEvent:     pgtype.Timestamp{Time: req.StartEvent, Valid: true},
		EndEvent:       pgtype.Timestamp{Time: req.EndEvent, Valid: true},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to insert event", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "create event success", traceIdAttr, slog.Any(constant.LogFieldResponse, id))

	writeJSONResponse(w, http.StatusOK, model.CreateEventResponse{Id: id, Name: req.Name, Slug: slug})
}

func (in EventHttp) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	search := r.URL.Query().Get("search")
	citySlug := r.URL.Query().Get("city")
	categorySlug := r.URL.Query().Get("category")
	take := queryInt32(r, "take", 10)
	page := queryInt32(r, "page", 1)

	rows, err := in.Querier.ListEvents(ctx, pg.ListEventsParams{
		Search:       search,
		CitySlug:     citySlug,
		CategorySlug: categorySlug,
		Limit:        take,
		Offset:       (page - 1) * take,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to list events", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	total, err := in.Querier.CountEvents(ctx, search, citySlug, categorySlug)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count events", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	events := make([]model.EventResponse, 0, len(rows))
	for _, row := range rows {
		events = append(events, model.EventResponse{
			Id:             row.ID,
			Name:           row.Name,
			Slug:           row.Slug,
			LocationDetail: row.LocationDetail,
			StartEvent:     row.StartEvent.Time.Format(time.RFC3339),
			EndEvent:       row.EndEvent.Time.Format(time.RFC3339),
			CityName:       row.CityName,
			CategoryName:   row.CategoryName,
		})
	}

	writeJSONResponse(w, http.StatusOK, model.ListEventsResponse{
		Events: events,
		Meta:   model.PageMeta{Page: page, Take: take, Total: total},
	})
}

func (in EventHttp) detail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slug := r.PathValue("slug")

	event, err := in.Querier.FindEventBySlug(ctx, slug)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.NotFound("Event not found"))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find event", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	seatRows, err := in.Querier.FindSeatsByEvent(ctx, event.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find seats", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	seats := make([]model.SeatResponse, 0, len(seatRows))
	for _, seat := range seatRows {
		seats = append(seats, model.SeatResponse{
			Id:        seat.ID,
			Name:      seat.Name,
			Price:     seat.Price,
			TotalSeat: seat.TotalSeat,
			Reserved:  seat.Reserved,
		})
	}

	writeJSONResponse(w, http.StatusOK, model.EventDetailResponse{
		EventResponse: model.EventResponse{
			Id:             event.ID,
			Name:           event.Name,
			Slug:           event.Slug,
			LocationDetail: event.LocationDetail,
			StartEvent:     event.StartEvent.Time.Format(time.RFC3339),
			EndEvent:       event.EndEvent.Time.Format(time.RFC3339),
			CityName:       event.CityName,
			CategoryName:   event.CategoryName,
		},
		Description: event.Description,
		Content:     event.Content,
		Seats:       seats,
	})
}

func (in EventHttp) createSeat(w http.ResponseWriter, r *http.Request) {
	userId, err := authUserId(r)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	eventId, err := strconv.ParseInt(r.PathValue("eventId"), 10, 64)
	if err != nil {
		writeErrorResponse(w, errs.Validation("Invalid event id", nil))
		return
	}

	var req model.CreateSeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Kind: errs.KindValidation, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "EventHttp.createSeat")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "create seat receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	event, _, err := in.ownedEvent(ctx, w, userId, eventId)
	if err != nil {
		return
	}

	exists, err := in.Querier.ExistsSeatByEventAndName(ctx, event.ID, req.Name)
	if err != nil {
		slog.ErrorContext(ctx, "failed to check seat existence", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}
	if exists {
		writeErrorResponse(w, errs.Conflict("Seat with the same name already exists"))
		return
	}

	id, err := in.Querier.InsertSeat(ctx, pg.InsertSeatParams{
		EventsID:    event.ID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		TotalSeat:   req.TotalSeat,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to insert seat", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "create seat success", traceIdAttr, slog.Any(constant.LogFieldResponse, id))

	writeJSONResponse(w, http.StatusOK, model.SeatResponse{
		Id:        id,
		Name:      req.Name,
		Price:     req.Price,
		TotalSeat: req.TotalSeat,
	})
}

func (in EventHttp) createVoucher(w http.ResponseWriter, r *http.Request) {
	userId, err := authUserId(r)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	eventId, err := strconv.ParseInt(r.PathValue("eventId"), 10, 64)
	if err != nil {
		writeErrorResponse(w, errs.Validation("Invalid event id", nil))
		return
	}

	var req model.CreateVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Kind: errs.KindValidation, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	if !req.ExpiredAt.After(req.ValidAt) {
		writeErrorResponse(w, errs.Validation("expired_at must be after valid_at", nil))
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "EventHttp.createVoucher")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "create voucher receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	event, organizer, err := in.ownedEvent(ctx, w, userId, eventId)
	if err != nil {
		return
	}

	code := "VCR-" + ulid.Make().String()[:10]
	id, err := in.Querier.InsertVoucher(ctx, pg.InsertVoucherParams{
		OrganizerID: organizer.ID,
		EventsID:    event.ID,
		Code:        code,
		Description: req.Description,
		Value:       req.Value,
		Quota:       req.Quota,
		ValidAt:     pgtype.Timestamp{Time: req.ValidAt, Valid: true},
		ExpiredAt:   pgtype.Timestamp{Time: req.ExpiredAt, Valid: true},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to insert voucher", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	slog.InfoContext(ctx, "create voucher success", traceIdAttr, slog.Any(constant.LogFieldResponse, code))

	writeJSONResponse(w, http.StatusOK, model.CreateVoucherResponse{
		Id:        id,
		Code:      code,
		Value:     req.Value,
		Quota:     req.Quota,
		ValidAt:   req.ValidAt.Format(time.RFC3339),
		ExpiredAt: req.ExpiredAt.Format(time.RFC3339),
	})
}

// ownedEvent loads the event and enforces that the caller's organizer owns
// it, writing the error response itself on failure.
func (in EventHttp) ownedEvent(ctx context.Context, w http.ResponseWriter, userId, eventId int64) (pg.EventRow, pg.OrganizerRow, error) {
	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	organizer, err := in.Querier.FindOrganizerByUserId(ctx, userId)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.Forbidden("You are not an organizer"))
		return pg.EventRow{}, pg.OrganizerRow{}, err
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find organizer", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return pg.EventRow{}, pg.OrganizerRow{}, err
	}

	event, err := in.Querier.FindEventById(ctx, eventId)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.NotFound("Event not found"))
		return pg.EventRow{}, pg.OrganizerRow{}, err
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find event", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return pg.EventRow{}, pg.OrganizerRow{}, err
	}

	if event.OrganizerID != organizer.ID {
		err := errs.Forbidden("You do not own this event")
		writeErrorResponse(w, err)
		return pg.EventRow{}, pg.OrganizerRow{}, err
	}

	return event, organizer, nil
}

func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
