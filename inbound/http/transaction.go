package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"ticket-marketplace/common"
	"ticket-marketplace/common/constant"
	"ticket-marketplace/common/contract"
	"ticket-marketplace/common/errs"
	"ticket-marketplace/common/otel"
	"ticket-marketplace/model"
	"ticket-marketplace/outbound/media"
	"ticket-marketplace/outbound/pg"
	"ticket-marketplace/outbound/scheduler"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/viper"
	"golang.org/x/text/message"
)

type TransactionHttp struct {
	Db                   contract.DbConn
	Querier              *pg.Queries
	Publisher            jetstream.Publisher
	Scheduler            scheduler.Scheduler
	Media                media.Store
	Validate             *validator.Validate
	IdrCurrencyFormatter *message.Printer

	TimeNow func() time.Time

	paymentWindow      time.Duration
	confirmationWindow time.Duration
}

func RegisterTransactionHttp(
	mux *http.ServeMux,
	cfg *viper.Viper,
	db contract.DbConn,
	querier *pg.Queries,
	publisher jetstream.Publisher,
	sched scheduler.Scheduler,
	mediaStore media.Store,
	validate *validator.Validate,
	idrCurrencyFormatter *message.Printer,
) *TransactionHttp {
	in := &TransactionHttp{
		Db:                   db,
		Querier:              querier,
		Publisher:            publisher,
		Scheduler:            sched,
		Media:                mediaStore,
		Validate:             validate,
		IdrCurrencyFormatter: idrCurrencyFormatter,
		TimeNow:              time.Now,

		paymentWindow:      cfg.GetDuration("transaction.payment_window"),
		confirmationWindow: cfg.GetDuration("transaction.confirmation_window"),
	}

	mux.HandleFunc("POST /api/transactions", in.create)
	mux.HandleFunc("POST /api/transactions/{uuid}/apply-code", in.applyCode)
	mux.HandleFunc("POST /api/transactions/{uuid}/payment-proof", in.uploadProof)
	mux.HandleFunc("PATCH /api/transactions/{uuid}", in.update)
	mux.HandleFunc("GET /api/transactions", in.history)
	mux.HandleFunc("GET /api/transactions/{uuid}", in.detail)

	return in
}

// create reserves seat inventory for every line item inside one database
// transaction. A capacity failure on any line aborts the whole reservation.
func (in TransactionHttp) create(w http.ResponseWriter, r *http.Request) {
	userId, err := authUserId(r)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	var req model.CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Kind: errs.KindValidation, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "TransactionHttp.create")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	slog.InfoContext(ctx, "create transaction receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	event, err := in.Querier.FindEventById(ctx, req.EventID)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.NotFound("Event not found"))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find event", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	now := in.TimeNow()
	if now.After(event.EndEvent.Time) {
		writeErrorResponse(w, errs.Conflict("Event already ended"))
		return
	}
	if !now.Before(event.StartEvent.Time) {
		writeErrorResponse(w, errs.Conflict("Event already started"))
		return
	}

	user, err := in.Querier.FindUserById(ctx, userId)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.NotFound("User not found"))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find user", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	// Lock seat rows in a stable order so two overlapping multi-line
	// reservations cannot deadlock each other.
	details := make([]model.TransactionDetailRequest, len(req.Details))
	copy(details, req.Details)
	sort.Slice(details, func(i, j int) bool { return details[i].SeatsID < details[j].SeatsID })

	tx, err := in.Db.Begin(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			slog.ErrorContext(ctx, "failed to rollback transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		}
	}()

	withTx := in.Querier.WithTx(tx)

	trxUuid := ulid.Make().String()
	trxId, err := withTx.InsertTransaction(ctx, pg.InsertTransactionParams{
		Uuid:     trxUuid,
		UserID:   userId,
		EventsID: req.EventID,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to insert transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	var totalPrice int64
	for _, item := range details {
		seat, err := withTx.FindSeatForUpdate(ctx, item.SeatsID)
		if err == pgx.ErrNoRows {
			writeErrorResponse(w, errs.NotFound("Seat not found"))
			return
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to find seat", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}

		if seat.EventsID != req.EventID {
			writeErrorResponse(w, errs.Validation("Seat does not belong to this event", map[string]any{"seats_id": item.SeatsID}))
			return
		}

		if seat.Reserved+item.Quantity > seat.TotalSeat {
			writeErrorResponse(w, errs.Conflict(fmt.Sprintf("Not enough seats available for %s", seat.Name)))
			return
		}

		cmd, err := withTx.IncrementSeatReserved(ctx, pg.IncrementSeatReservedParams{ID: seat.ID, Quantity: item.Quantity})
		if err != nil {
			slog.ErrorContext(ctx, "failed to increment seat reserved", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}

		if cmd.RowsAffected() == 0 {
			writeErrorResponse(w, errs.Conflict(fmt.Sprintf("Not enough seats available for %s", seat.Name)))
			return
		}

		_, err = withTx.InsertDetailTransaction(ctx, pg.InsertDetailTransactionParams{
			TransactionID:   trxId,
			SeatsID:         seat.ID,
			Quantity:        item.Quantity,
			PriceAtPurchase: seat.Price,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to insert detail transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}

		totalPrice += seat.Price * int64(item.Quantity)
	}

	_, err = withTx.UpdateTransactionTotalPrice(ctx, pg.UpdateTransactionTotalPriceParams{ID: trxId, TotalPrice: totalPrice})
	if err != nil {
		slog.ErrorContext(ctx, "failed to update transaction total price", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if err := tx.Commit(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to commit transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	expiredAt := now.Add(in.paymentWindow)

	// Side effects after commit are best effort: a failed email or timer must
	// not undo a committed reservation.
	in.schedulePaymentWindow(r.Context(), trxUuid)
	in.publishEmail(r.Context(), user.Email, "Transaction Created", fmt.Sprintf(constant.EmailTransactionCreatedTemplate,
		user.FullName, trxUuid, event.Name, in.formatIdr(totalPrice), expiredAt.Format(time.RFC1123)))

	slog.InfoContext(ctx, "create transaction success", traceIdAttr, slog.Any(constant.LogFieldResponse, trxUuid))

	writeJSONResponse(w, http.StatusOK, model.CreateTransactionResponse{
		Id:         trxId,
		Uuid:       trxUuid,
		TotalPrice: totalPrice,
		Status:     string(model.StatusCreated),
		ExpiredAt:  expiredAt.Format(time.RFC3339),
	})
}

// applyCode validates and consumes a coupon, a voucher, and points in that
// order, all inside one database transaction. Points are resolved last
// because their cap depends on the other two amounts.
func (in TransactionHttp) applyCode(w http.ResponseWriter, r *http.Request) {
	userId, err := authUserId(r)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	var req model.ApplyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Kind: errs.KindValidation, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	if req.CouponCode == "" && req.VoucherCode == "" && !req.UsePoints {
		writeErrorResponse(w, errs.Validation("Provide a coupon code, voucher code, or points usage", nil))
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "TransactionHttp.applyCode")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	trxUuid := r.PathValue("uuid")

	slog.InfoContext(ctx, "apply code receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	tx, err := in.Db.Begin(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			slog.ErrorContext(ctx, "failed to rollback transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		}
	}()

	withTx := in.Querier.WithTx(tx)

	trx, err := withTx.FindTransactionByUuidForUpdate(ctx, trxUuid)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.NotFound("Transaction not found"))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if trx.UserID != userId {
		writeErrorResponse(w, errs.Forbidden("Transaction does not belong to you"))
		return
	}

	if trx.Status != string(model.StatusCreated) || trx.CouponID.Valid || trx.VoucherID.Valid || trx.PointsID.Valid {
		writeErrorResponse(w, errs.Conflict("You already used a coupon, voucher, or points"))
		return
	}

	now := in.TimeNow()

	var couponId, voucherId, pointsId pgtype.Int8
	var couponAmount, voucherAmount, usedPoint int64

	if req.CouponCode != "" {
		coupon, err := withTx.FindCouponByCodeForUpdate(ctx, req.CouponCode)
		if err == pgx.ErrNoRows {
			writeErrorResponse(w, errs.NotFound("Coupon not found"))
			return
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to find coupon", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}

		if coupon.UserID != userId {
			writeErrorResponse(w, errs.Forbidden("Coupon does not belong to you"))
			return
		}
		if coupon.IsUsed {
			writeErrorResponse(w, errs.Conflict("Coupon already used"))
			return
		}
		if coupon.ExpiredDate.Valid && now.After(coupon.ExpiredDate.Time) {
			writeErrorResponse(w, errs.Validation("Coupon expired", nil))
			return
		}

		cmd, err := withTx.MarkCouponUsed(ctx, coupon.ID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to mark coupon used", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}
		if cmd.RowsAffected() == 0 {
			writeErrorResponse(w, errs.Conflict("Coupon already used"))
			return
		}

		couponId = pgtype.Int8{Int64: coupon.ID, Valid: true}
		couponAmount = coupon.Discount
	}

	if req.VoucherCode != "" {
		voucher, err := withTx.FindVoucherByCodeForUpdate(ctx, req.VoucherCode)
		if err == pgx.ErrNoRows {
			writeErrorResponse(w, errs.NotFound("Voucher not found"))
			return
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to find voucher", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}

		if voucher.EventsID != trx.EventsID {
			writeErrorResponse(w, errs.Validation("Voucher is not valid for this event", nil))
			return
		}
		if now.Before(voucher.ValidAt.Time) {
			writeErrorResponse(w, errs.Validation("Voucher is not valid yet", nil))
			return
		}
		if now.After(voucher.ExpiredAt.Time) {
			writeErrorResponse(w, errs.Validation("Voucher expired", nil))
			return
		}
		if voucher.Claimed >= voucher.Quota {
			writeErrorResponse(w, errs.Conflict("Voucher quota reached"))
			return
		}

		cmd, err := withTx.IncrementVoucherClaimed(ctx, voucher.ID)
		if err != nil {
			slog.ErrorContext(ctx, "failed to increment voucher claimed", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}
		if cmd.RowsAffected() == 0 {
			writeErrorResponse(w, errs.Conflict("Voucher quota reached"))
			return
		}

		voucherId = pgtype.Int8{Int64: voucher.ID, Valid: true}
		voucherAmount = voucher.Value
	}

	if req.UsePoints {
		totalDiscount := couponAmount + voucherAmount
		if totalDiscount >= trx.TotalPrice {
			writeErrorResponse(w, errs.Conflict("Discount already covers the total price"))
			return
		}

		points, err := withTx.FindPointsByUserForUpdate(ctx, userId)
		if err == pgx.ErrNoRows {
			writeErrorResponse(w, errs.NotFound("You have no points"))
			return
		}
		if err != nil {
			slog.ErrorContext(ctx, "failed to find points", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}

		if points.PointsValue <= 0 || (points.ExpiredDate.Valid && now.After(points.ExpiredDate.Time)) {
			writeErrorResponse(w, errs.Conflict("You have no usable points"))
			return
		}

		usedPoint = min(points.PointsValue, trx.TotalPrice-totalDiscount)

		cmd, err := withTx.DebitUserPoints(ctx, pg.DebitUserPointsParams{UserID: userId, Amount: usedPoint})
		if err != nil {
			slog.ErrorContext(ctx, "failed to debit points", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}
		if cmd.RowsAffected() == 0 {
			writeErrorResponse(w, errs.Conflict("You have no usable points"))
			return
		}

		pointsId = pgtype.Int8{Int64: points.ID, Valid: true}
	}

	cmd, err := withTx.ApplyTransactionDiscount(ctx, pg.ApplyTransactionDiscountParams{
		ID:            trx.ID,
		CouponID:      couponId,
		VoucherID:     voucherId,
		PointsID:      pointsId,
		CouponAmount:  couponAmount,
		VoucherAmount: voucherAmount,
		UsedPoint:     usedPoint,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to apply transaction discount", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if cmd.RowsAffected() == 0 {
		writeErrorResponse(w, errs.Conflict("You already used a coupon, voucher, or points"))
		return
	}

	if err := tx.Commit(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to commit transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	payable := trx.TotalPrice - couponAmount - voucherAmount - usedPoint
	if payable < 0 {
		payable = 0
	}

	slog.InfoContext(ctx, "apply code success", traceIdAttr, slog.Any(constant.LogFieldResponse, trxUuid))

	writeJSONResponse(w, http.StatusOK, model.ApplyCodeResponse{
		Uuid:          trxUuid,
		TotalPrice:    trx.TotalPrice,
		CouponAmount:  couponAmount,
		VoucherAmount: voucherAmount,
		UsedPoint:     usedPoint,
		PayableAmount: payable,
		Status:        string(model.StatusWaitingForPayment),
	})
}

// uploadProof stores the payment proof and moves the transaction into the
// admin-confirmation window: payment timer out, confirmation timer in.
func (in TransactionHttp) uploadProof(w http.ResponseWriter, r *http.Request) {
	userId, err := authUserId(r)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Kind: errs.KindValidation, Message: "Invalid multipart request"})
		return
	}

	file, header, err := r.FormFile("payment_proof")
	if err != nil {
		writeErrorResponse(w, errs.Validation("Missing payment_proof file", nil))
		return
	}
	defer file.Close()

	paymentMethod := r.FormValue("payment_method")
	if paymentMethod == "" {
		paymentMethod = "MANUAL_TRANSFER"
	}

	ctx, span := otel.Tracer.Start(r.Context(), "TransactionHttp.uploadProof")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	trxUuid := r.PathValue("uuid")

	slog.InfoContext(ctx, "upload payment proof receive request", traceIdAttr, slog.String("uuid", trxUuid))

	trx, err := in.Querier.FindTransactionByUuid(ctx, trxUuid)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.NotFound("Transaction not found"))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if trx.UserID != userId {
		writeErrorResponse(w, errs.Forbidden("Transaction does not belong to you"))
		return
	}

	if trx.Status != string(model.StatusCreated) && trx.Status != string(model.StatusWaitingForPayment) {
		writeErrorResponse(w, errs.Conflict("Transaction cannot accept payment proof at this stage"))
		return
	}

	proofUrl, err := in.Media.Upload(ctx, header.Filename, file)
	if err != nil {
		slog.ErrorContext(ctx, "failed to upload payment proof", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, errs.Upstream("Upload failed"))
		return
	}

	tx, err := in.Db.Begin(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			slog.ErrorContext(ctx, "failed to rollback transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		}
	}()

	withTx := in.Querier.WithTx(tx)

	if _, err := withTx.InsertPayment(ctx, pg.InsertPaymentParams{
		TransactionID:   trx.ID,
		PaymentMethod:   paymentMethod,
		PaymentProofUrl: proofUrl,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to insert payment", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	cmd, err := withTx.UpdateTransactionStatusFrom(ctx, pg.UpdateTransactionStatusFromParams{
		Uuid:       trxUuid,
		NewStatus:  string(model.StatusWaitingForAdminReview),
		FromStatus: trx.Status,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to update transaction status", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if cmd.RowsAffected() == 0 {
		writeErrorResponse(w, errs.Conflict("Transaction cannot accept payment proof at this stage"))
		return
	}

	if err := tx.Commit(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to commit transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if err := in.Scheduler.Cancel(r.Context(), constant.TransactionJobQueue, jobKey(constant.JobPaymentWindowExpiry, trxUuid)); err != nil {
		slog.ErrorContext(ctx, "failed to cancel payment window job", traceIdAttr, slog.Any(constant.LogFieldErr, err))
	}

	payload, _ := json.Marshal(model.TransactionJobMessage{Uuid: trxUuid})
	err = in.Scheduler.Schedule(r.Context(), constant.TransactionJobQueue, scheduler.Job{
		Name:    constant.JobConfirmationWindowExpiry,
		Key:     jobKey(constant.JobConfirmationWindowExpiry, trxUuid),
		Payload: payload,
		Delay:   in.confirmationWindow,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to schedule confirmation window job", traceIdAttr, slog.Any(constant.LogFieldErr, err))
	}

	slog.InfoContext(ctx, "upload payment proof success", traceIdAttr, slog.Any(constant.LogFieldResponse, trxUuid))

	writeJSONResponse(w, http.StatusOK, model.UploadPaymentProofResponse{
		Uuid:            trxUuid,
		PaymentProofUrl: proofUrl,
		Status:          string(model.StatusWaitingForAdminReview),
	})
}

// update is the organizer's accept/reject decision. DONE issues tickets and
// awards loyalty points; REJECTED compensates the reservation and every
// consumed discount.
func (in TransactionHttp) update(w http.ResponseWriter, r *http.Request) {
	adminId, err := authUserId(r)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	var req model.UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, &errs.HttpError{Code: http.StatusBadRequest, Kind: errs.KindValidation, Message: "Invalid request"})
		return
	}

	if err := in.Validate.Struct(req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx, span := otel.Tracer.Start(r.Context(), "TransactionHttp.update")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	trxUuid := r.PathValue("uuid")

	slog.InfoContext(ctx, "update transaction receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr, slog.String("uuid", trxUuid))

	organizer, err := in.Querier.FindOrganizerByUserId(ctx, adminId)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.Forbidden("You are not an organizer"))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find organizer", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	trx, err := in.Querier.FindTransactionByUuid(ctx, trxUuid)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.NotFound("Transaction not found"))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	event, err := in.Querier.FindEventById(ctx, trx.EventsID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find event", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if event.OrganizerID != organizer.ID {
		writeErrorResponse(w, errs.Forbidden("You are not authorized to update this transaction"))
		return
	}

	if trx.Status != string(model.StatusWaitingForAdminReview) {
		writeErrorResponse(w, errs.Conflict("Transaction cannot be updated at this stage"))
		return
	}

	// Stale decisions outside the event window are rejected outright.
	now := in.TimeNow()
	if now.After(event.EndEvent.Time) {
		writeErrorResponse(w, errs.Conflict("Event already ended"))
		return
	}
	if !now.Before(event.StartEvent.Time) {
		writeErrorResponse(w, errs.Conflict("Event already started"))
		return
	}

	user, err := in.Querier.FindUserById(ctx, trx.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find user", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	tx, err := in.Db.Begin(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			slog.ErrorContext(ctx, "failed to rollback transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		}
	}()

	withTx := in.Querier.WithTx(tx)

	details, err := withTx.FindTransactionDetails(ctx, trx.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find transaction details", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	var ticketCount int
	if req.Status == string(model.StatusDone) {
		ticketCount, err = in.issueTickets(ctx, withTx, trx, details)
		if err != nil {
			slog.ErrorContext(ctx, "failed to issue tickets", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}
	} else {
		if err := in.compensate(ctx, withTx, trx); err != nil {
			slog.ErrorContext(ctx, "failed to compensate transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}
	}

	var replacedProofUrl string
	if req.PaymentProofUrl != "" {
		replacedProofUrl, err = withTx.FindPaymentProofUrl(ctx, trx.ID)
		if err != nil && err != pgx.ErrNoRows {
			slog.ErrorContext(ctx, "failed to find payment proof url", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}

		if _, err := withTx.UpdatePaymentProofUrl(ctx, pg.UpdatePaymentProofUrlParams{
			TransactionID:   trx.ID,
			PaymentProofUrl: req.PaymentProofUrl,
		}); err != nil {
			slog.ErrorContext(ctx, "failed to update payment proof url", traceIdAttr, slog.Any(constant.LogFieldErr, err))
			writeErrorResponse(w, err)
			return
		}
	}

	adminNote := pgtype.Text{String: req.AdminNote, Valid: req.AdminNote != ""}
	cmd, err := withTx.UpdateTransactionStatusFrom(ctx, pg.UpdateTransactionStatusFromParams{
		Uuid:       trxUuid,
		NewStatus:  req.Status,
		FromStatus: string(model.StatusWaitingForAdminReview),
		AdminNote:  adminNote,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to update transaction status", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if cmd.RowsAffected() == 0 {
		writeErrorResponse(w, errs.Conflict("Transaction cannot be updated at this stage"))
		return
	}

	if err := tx.Commit(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to commit transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if err := in.Scheduler.Cancel(r.Context(), constant.TransactionJobQueue, jobKey(constant.JobConfirmationWindowExpiry, trxUuid)); err != nil {
		slog.ErrorContext(ctx, "failed to cancel confirmation window job", traceIdAttr, slog.Any(constant.LogFieldErr, err))
	}

	if replacedProofUrl != "" && replacedProofUrl != req.PaymentProofUrl {
		if err := in.Media.Remove(r.Context(), replacedProofUrl); err != nil {
			slog.ErrorContext(ctx, "failed to remove replaced payment proof", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		}
	}

	if req.Status == string(model.StatusDone) {
		in.publishEmail(r.Context(), user.Email, "Transaction Accepted", fmt.Sprintf(constant.EmailTransactionAcceptedTemplate,
			user.FullName, trxUuid, event.Name, in.formatIdr(trx.TotalPrice), ticketCount))
	} else {
		in.publishEmail(r.Context(), user.Email, "Transaction Rejected", fmt.Sprintf(constant.EmailTransactionRejectedTemplate,
			user.FullName, trxUuid, event.Name, in.formatIdr(trx.TotalPrice)))
	}

	slog.InfoContext(ctx, "update transaction success", traceIdAttr, slog.Any(constant.LogFieldResponse, req.Status))

	writeJSONResponse(w, http.StatusOK, model.UpdateTransactionResponse{Uuid: trxUuid, Status: req.Status})
}

// issueTickets creates one ticket per purchased seat unit and awards loyalty
// points (one point per 10000 of total price) with a fresh one-year expiry.
func (in TransactionHttp) issueTickets(ctx context.Context, withTx *pg.Queries, trx pg.TransactionRow, details []pg.TransactionDetailRow) (int, error) {
	seq := 0
	for _, detail := range details {
		for i := int32(0); i < detail.Quantity; i++ {
			seq++
			code := fmt.Sprintf("TKT-%s-%d", trx.Uuid[:8], seq)
			if _, err := withTx.InsertTicket(ctx, pg.InsertTicketParams{
				UserID:     trx.UserID,
				SeatID:     detail.SeatsID,
				TicketCode: code,
			}); err != nil {
				return 0, err
			}
		}
	}

	award := trx.TotalPrice / 10000
	if award > 0 {
		expiry := in.TimeNow().AddDate(1, 0, 0)
		if _, err := withTx.UpsertUserPoints(ctx, pg.UpsertUserPointsParams{
			UserID:      trx.UserID,
			Amount:      award,
			ExpiredDate: pgtype.Timestamp{Time: expiry, Valid: true},
		}); err != nil {
			return 0, err
		}
	}

	return seq, nil
}

// compensate undoes everything a rejected transaction claimed: reserved
// seats, debited points, the voucher slot, and the coupon latch.
func (in TransactionHttp) compensate(ctx context.Context, withTx *pg.Queries, trx pg.TransactionRow) error {
	if _, err := withTx.ReleaseTransactionSeats(ctx, trx.ID); err != nil {
		return err
	}

	if trx.UsedPoint > 0 {
		if _, err := withTx.CreditUserPoints(ctx, pg.CreditUserPointsParams{UserID: trx.UserID, Amount: trx.UsedPoint}); err != nil {
			return err
		}
	}

	if trx.VoucherID.Valid {
		if _, err := withTx.DecrementVoucherClaimed(ctx, trx.VoucherID.Int64); err != nil {
			return err
		}
	}

	if trx.CouponID.Valid {
		if _, err := withTx.UnmarkCouponUsed(ctx, trx.CouponID.Int64); err != nil {
			return err
		}
	}

	return nil
}

func (in TransactionHttp) history(w http.ResponseWriter, r *http.Request) {
	userId, err := authUserId(r)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx := r.Context()
	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	take := queryInt32(r, "take", 10)
	page := queryInt32(r, "page", 1)

	rows, err := in.Querier.ListTransactionsByUser(ctx, pg.ListTransactionsByUserParams{
		UserID: userId,
		Limit:  take,
		Offset: (page - 1) * take,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to list transactions", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	total, err := in.Querier.CountTransactionsByUser(ctx, userId)
	if err != nil {
		slog.ErrorContext(ctx, "failed to count transactions", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	transactions := make([]model.TransactionResponse, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, model.TransactionResponse{
			Id:            row.ID,
			Uuid:          row.Uuid,
			EventName:     row.EventName,
			TotalPrice:    row.TotalPrice,
			CouponAmount:  row.CouponAmount,
			VoucherAmount: row.VoucherAmount,
			UsedPoint:     row.UsedPoint,
			Status:        row.Status,
			CreatedAt:     row.CreatedAt.Time.Format(time.RFC3339),
		})
	}

	writeJSONResponse(w, http.StatusOK, model.ListTransactionsResponse{
		Transactions: transactions,
		Meta:         model.PageMeta{Page: page, Take: take, Total: total},
	})
}

func (in TransactionHttp) detail(w http.ResponseWriter, r *http.Request) {
	userId, err := authUserId(r)
	if err != nil {
		writeErrorResponse(w, err)
		return
	}

	ctx := r.Context()
	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)
	trxUuid := r.PathValue("uuid")

	trx, err := in.Querier.FindTransactionByUuid(ctx, trxUuid)
	if err == pgx.ErrNoRows {
		writeErrorResponse(w, errs.NotFound("Transaction not found"))
		return
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	if trx.UserID != userId {
		writeErrorResponse(w, errs.Forbidden("Transaction does not belong to you"))
		return
	}

	event, err := in.Querier.FindEventById(ctx, trx.EventsID)
	if err != nil && err != pgx.ErrNoRows {
		slog.ErrorContext(ctx, "failed to find event", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	detailRows, err := in.Querier.FindTransactionDetails(ctx, trx.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find transaction details", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		writeErrorResponse(w, err)
		return
	}

	details := make([]model.TransactionDetailResponse, 0, len(detailRows))
	for _, row := range detailRows {
		details = append(details, model.TransactionDetailResponse{
			SeatName:        row.SeatName,
			Quantity:        row.Quantity,
			PriceAtPurchase: row.PriceAtPurchase,
		})
	}

	writeJSONResponse(w, http.StatusOK, model.TransactionResponse{
		Id:            trx.ID,
		Uuid:          trx.Uuid,
		EventName:     event.Name,
		TotalPrice:    trx.TotalPrice,
		CouponAmount:  trx.CouponAmount,
		VoucherAmount: trx.VoucherAmount,
		UsedPoint:     trx.UsedPoint,
		Status:        trx.Status,
		CreatedAt:     trx.CreatedAt.Time.Format(time.RFC3339),
		Details:       details,
	})
}

func (in TransactionHttp) schedulePaymentWindow(ctx context.Context, trxUuid string) {
	payload, err := json.Marshal(model.TransactionJobMessage{Uuid: trxUuid})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal job payload", slog.Any(constant.LogFieldErr, err))
		return
	}

	err = in.Scheduler.Schedule(ctx, constant.TransactionJobQueue, scheduler.Job{
		Name:    constant.JobPaymentWindowExpiry,
		Key:     jobKey(constant.JobPaymentWindowExpiry, trxUuid),
		Payload: payload,
		Delay:   in.paymentWindow,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to schedule payment window job", slog.Any(constant.LogFieldErr, err))
	}
}

func (in TransactionHttp) publishEmail(ctx context.Context, to, subject, body string) {
	err := common.PublishMessage(ctx, in.Publisher, constant.SubjectSendEmail, model.SendEmailEventMessage{
		To:      to,
		Subject: subject,
		Body:    body,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish email message", slog.Any(constant.LogFieldErr, err))
	}
}

func (in TransactionHttp) formatIdr(amount int64) string {
	return in.IdrCurrencyFormatter.Sprintf("Rp%d", amount)
}

func jobKey(jobName, trxUuid string) string {
	return fmt.Sprintf("%s:%s", jobName, trxUuid)
}
