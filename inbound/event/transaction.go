package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"ticket-marketplace/common"
	"ticket-marketplace/common/constant"
	"ticket-marketplace/common/contract"
	"ticket-marketplace/common/otel"
	"ticket-marketplace/model"
	"ticket-marketplace/outbound/pg"

	"github.com/jackc/pgx/v5"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/text/message"
)

type TransactionEvent struct {
	Db                   contract.DbConn
	Querier              *pg.Queries
	Publisher            jetstream.Publisher
	IdrCurrencyFormatter *message.Printer

	Timeout time.Duration
}

// PaymentWindowHandler fires when the payment window of a transaction
// elapses. It expires the transaction and releases its seats in one database
// transaction; a transaction that already moved on is left untouched.
func (in TransactionEvent) PaymentWindowHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.TransactionJobMessage
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "payment window job unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	ctx, span := otel.Tracer.Start(ctx, "TransactionEvent.paymentWindow")
	defer span.End()

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	slog.InfoContext(ctx, "payment window job receive request", slog.Any(constant.LogFieldPayload, req), traceIdAttr)

	trx, err := in.Querier.FindTransactionByUuid(ctx, req.Uuid)
	if err == pgx.ErrNoRows {
		slog.WarnContext(ctx, "transaction not found", traceIdAttr)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	if trx.Status != string(model.StatusCreated) && trx.Status != string(model.StatusWaitingForPayment) {
		slog.InfoContext(ctx, "transaction already resolved, skipping expiry", traceIdAttr, slog.String("status", trx.Status))
		return nil
	}

	tx, err := in.Db.Begin(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to begin transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil && err != pgx.ErrTxClosed {
			slog.ErrorContext(ctx, "failed to rollback transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		}
	}()

	withTx := in.Querier.WithTx(tx)

	cmd, err := withTx.ExpireTransaction(ctx, trx.ID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to expire transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	if cmd.RowsAffected() == 0 {
		slog.InfoContext(ctx, "transaction already resolved, skipping expiry", traceIdAttr)
		return nil
	}

	if _, err := withTx.ReleaseTransactionSeats(ctx, trx.ID); err != nil {
		slog.ErrorContext(ctx, "failed to release seats", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to commit transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	in.notifyExpired(ctx, trx)

	slog.InfoContext(ctx, "payment window job success", traceIdAttr, slog.Any(constant.LogFieldResponse, req.Uuid))

	return nil
}

// ConfirmationWindowHandler fires when the admin-confirmation window of a
// transaction elapses. It never auto-resolves: a stuck transaction stays
// reviewable and is only surfaced in the logs.
func (in TransactionEvent) ConfirmationWindowHandler(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, in.Timeout)
	defer cancel()

	var req model.TransactionJobMessage
	err := json.Unmarshal(msg, &req)
	if err != nil {
		slog.WarnContext(ctx, "confirmation window job unmarshal error", slog.Any(constant.LogFieldErr, err))
		return nil
	}

	traceIdAttr := common.ExtractTraceIDFromCtx(ctx)

	trx, err := in.Querier.FindTransactionByUuid(ctx, req.Uuid)
	if err == pgx.ErrNoRows {
		slog.WarnContext(ctx, "transaction not found", traceIdAttr)
		return nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to find transaction", traceIdAttr, slog.Any(constant.LogFieldErr, err))
		return err
	}

	if trx.Status != string(model.StatusWaitingForAdminReview) {
		return nil
	}

	slog.WarnContext(ctx, "transaction still waiting for admin confirmation past the window",
		traceIdAttr, slog.String("uuid", trx.Uuid), slog.Int64("events_id", trx.EventsID))

	return nil
}

func (in TransactionEvent) notifyExpired(ctx context.Context, trx pg.TransactionRow) {
	user, err := in.Querier.FindUserById(ctx, trx.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find user for expiry email", slog.Any(constant.LogFieldErr, err))
		return
	}

	event, err := in.Querier.FindEventById(ctx, trx.EventsID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to find event for expiry email", slog.Any(constant.LogFieldErr, err))
		return
	}

	body := fmt.Sprintf(constant.EmailTransactionExpiredTemplate,
		user.FullName, trx.Uuid, event.Name, in.IdrCurrencyFormatter.Sprintf("Rp%d", trx.TotalPrice))

	err = common.PublishMessage(ctx, in.Publisher, constant.SubjectSendEmail, model.SendEmailEventMessage{
		To:      user.Email,
		Subject: "Transaction Expired",
		Body:    body,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish expiry email", slog.Any(constant.LogFieldErr, err))
	}
}
