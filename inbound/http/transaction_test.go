package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jetsteamMock "ticket-marketplace/common/jetstream/mocks"
	"ticket-marketplace/common/constant"
	"ticket-marketplace/outbound/pg"
	"ticket-marketplace/outbound/scheduler"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redismock/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

type stubMediaStore struct {
	url     string
	err     error
	removed *string
}

func (s stubMediaStore) Upload(ctx context.Context, filename string, r io.Reader) (string, error) {
	return s.url, s.err
}

func (s stubMediaStore) Remove(ctx context.Context, url string) error {
	if s.removed != nil {
		*s.removed = url
	}
	return nil
}

type TransactionHttpTestSuite struct {
	suite.Suite

	Cfg *viper.Viper

	Querier *pg.Queries
	PgxMock pgxmock.PgxPoolIface

	Cache     *redis.Client
	CacheMock redismock.ClientMock

	Validate  *validator.Validate
	Publisher *jetsteamMock.MockPublisher
}

func (s *TransactionHttpTestSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())

	rdb, mock := redismock.NewClientMock()
	s.Cache = rdb
	s.CacheMock = mock

	pool, err := pgxmock.NewPool()
	if err != nil {
		s.T().Fatalf("failed to create pgxmock pool: %v", err)
	}

	s.PgxMock = pool
	s.Querier = pg.New(pool)

	s.Validate = validator.New()
	s.Publisher = jetsteamMock.NewMockPublisher(ctrl)

	s.Cfg = viper.New()
	s.Cfg.Set("transaction.payment_window", "2h")
	s.Cfg.Set("transaction.confirmation_window", "72h")

	slog.SetLogLoggerLevel(slog.LevelDebug)
}

func (s *TransactionHttpTestSuite) TearDownTest() {
	s.PgxMock.Close()

	if err := s.Cache.Close(); err != nil {
		s.T().Fatalf("failed to close redis mock: %v", err)
	}
}

func TestTransactionHttpTestSuite(t *testing.T) {
	suite.Run(t, new(TransactionHttpTestSuite))
}

func (s *TransactionHttpTestSuite) newHandler(timeNow func() time.Time) *TransactionHttp {
	trxHttp := RegisterTransactionHttp(
		http.NewServeMux(),
		s.Cfg,
		s.PgxMock,
		s.Querier,
		s.Publisher,
		scheduler.Scheduler{Cache: s.Cache, TimeNow: timeNow},
		stubMediaStore{url: "http://media.local/proof-1.jpg"},
		s.Validate,
		message.NewPrinter(language.Indonesian),
	)

	if timeNow != nil {
		trxHttp.TimeNow = timeNow
	}

	return trxHttp
}

func fixedTime() time.Time {
	return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
}

func eventRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "organizer_id", "name", "slug", "location_detail", "start_event", "end_event"}).
		AddRow(int64(5), int64(3), "Summer Festival", "summer-festival", "Jakarta Convention Center",
			pgtype.Timestamp{Time: time.Date(2026, 6, 1, 19, 0, 0, 0, time.UTC), Valid: true},
			pgtype.Timestamp{Time: time.Date(2026, 6, 1, 23, 0, 0, 0, time.UTC), Valid: true})
}

func endedEventRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "organizer_id", "name", "slug", "location_detail", "start_event", "end_event"}).
		AddRow(int64(5), int64(3), "Summer Festival", "summer-festival", "Jakarta Convention Center",
			pgtype.Timestamp{Time: time.Date(2026, 4, 1, 19, 0, 0, 0, time.UTC), Valid: true},
			pgtype.Timestamp{Time: time.Date(2026, 4, 1, 23, 0, 0, 0, time.UTC), Valid: true})
}

func userRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "email", "full_name"}).
		AddRow(int64(7), "jane@example.com", "Jane Doe")
}

var transactionCols = []string{
	"id", "uuid", "user_id", "events_id", "total_price", "status",
	"coupon_id", "voucher_id", "points_id", "coupoun_amount", "voucher_amount", "used_point", "created_at",
}

func transactionRows(status string, totalPrice int64) *pgxmock.Rows {
	return pgxmock.NewRows(transactionCols).
		AddRow(int64(11), "trx-1", int64(7), int64(5), totalPrice, status,
			pgtype.Int8{}, pgtype.Int8{}, pgtype.Int8{}, int64(0), int64(0), int64(0),
			pgtype.Timestamp{Time: fixedTime(), Valid: true})
}

func (s *TransactionHttpTestSuite) TestCreate() {
	tests := []struct {
		name           string
		userId         string
		reqBody        string
		setupMock      func()
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "missing identity",
			userId:         "",
			reqBody:        `{"event_id": 5, "details": [{"seats_id": 1, "quantity": 1}]}`,
			setupMock:      func() {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"Missing user identity","kind":"forbidden"}`,
		},
		{
			name:           "invalid json",
			userId:         "7",
			reqBody:        `{invalid json`,
			setupMock:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Invalid request","kind":"validation"}`,
		},
		{
			name:           "validation error - no details",
			userId:         "7",
			reqBody:        `{"event_id": 5}`,
			setupMock:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Validation failed","kind":"validation","data":{"Details":"required"}}`,
		},
		{
			name:           "validation error - zero quantity",
			userId:         "7",
			reqBody:        `{"event_id": 5, "details": [{"seats_id": 1, "quantity": 0}]}`,
			setupMock:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Validation failed","kind":"validation","data":{"Quantity":"required"}}`,
		},
		{
			name:    "event not found",
			userId:  "7",
			reqBody: `{"event_id": 5, "details": [{"seats_id": 1, "quantity": 1}]}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM events WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs(int64(5)).
					WillReturnError(pgx.ErrNoRows)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"Event not found","kind":"not_found"}`,
		},
		{
			name:    "event already ended",
			userId:  "7",
			reqBody: `{"event_id": 5, "details": [{"seats_id": 1, "quantity": 1}]}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM events WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs(int64(5)).
					WillReturnRows(endedEventRows())
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Event already ended","kind":"conflict"}`,
		},
		{
			name:    "seat from another event",
			userId:  "7",
			reqBody: `{"event_id": 5, "details": [{"seats_id": 1, "quantity": 1}]}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM events WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs(int64(5)).
					WillReturnRows(eventRows())
				s.PgxMock.ExpectQuery(`SELECT id, email, full_name FROM users WHERE id = \$1`).
					WithArgs(int64(7)).
					WillReturnRows(userRows())
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`INSERT INTO transactions`).
					WithArgs(pgxmock.AnyArg(), int64(7), int64(5)).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
				s.PgxMock.ExpectQuery(`FROM seats WHERE id = \$1 FOR UPDATE`).
					WithArgs(int64(1)).
					WillReturnRows(pgxmock.NewRows([]string{"id", "events_id", "name", "price", "total_seat", "reserved"}).
						AddRow(int64(1), int64(99), "VIP", int64(50000), int32(2), int32(0)))
				s.PgxMock.ExpectRollback()
			},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Seat does not belong to this event","kind":"validation","data":{"seats_id":1}}`,
		},
		{
			name:    "not enough seats",
			userId:  "7",
			reqBody: `{"event_id": 5, "details": [{"seats_id": 1, "quantity": 1}]}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM events WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs(int64(5)).
					WillReturnRows(eventRows())
				s.PgxMock.ExpectQuery(`SELECT id, email, full_name FROM users WHERE id = \$1`).
					WithArgs(int64(7)).
					WillReturnRows(userRows())
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`INSERT INTO transactions`).
					WithArgs(pgxmock.AnyArg(), int64(7), int64(5)).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
				s.PgxMock.ExpectQuery(`FROM seats WHERE id = \$1 FOR UPDATE`).
					WithArgs(int64(1)).
					WillReturnRows(pgxmock.NewRows([]string{"id", "events_id", "name", "price", "total_seat", "reserved"}).
						AddRow(int64(1), int64(5), "VIP", int64(50000), int32(2), int32(2)))
				s.PgxMock.ExpectRollback()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Not enough seats available for VIP","kind":"conflict"}`,
		},
		{
			name:    "success - two seat classes",
			userId:  "7",
			reqBody: `{"event_id": 5, "details": [{"seats_id": 2, "quantity": 1}, {"seats_id": 1, "quantity": 2}]}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM events WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs(int64(5)).
					WillReturnRows(eventRows())
				s.PgxMock.ExpectQuery(`SELECT id, email, full_name FROM users WHERE id = \$1`).
					WithArgs(int64(7)).
					WillReturnRows(userRows())
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`INSERT INTO transactions`).
					WithArgs(pgxmock.AnyArg(), int64(7), int64(5)).
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))

				// Locked in ascending seat id order regardless of request order.
				s.PgxMock.ExpectQuery(`FROM seats WHERE id = \$1 FOR UPDATE`).
					WithArgs(int64(1)).
					WillReturnRows(pgxmock.NewRows([]string{"id", "events_id", "name", "price", "total_seat", "reserved"}).
						AddRow(int64(1), int64(5), "Festival", int64(10000), int32(100), int32(0)))
				s.PgxMock.ExpectExec(`UPDATE seats SET reserved = reserved \+ \$2`).
					WithArgs(int64(1), int32(2)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectExec(`INSERT INTO detail_transactions`).
					WithArgs(int64(11), int64(1), int32(2), int64(10000)).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))

				s.PgxMock.ExpectQuery(`FROM seats WHERE id = \$1 FOR UPDATE`).
					WithArgs(int64(2)).
					WillReturnRows(pgxmock.NewRows([]string{"id", "events_id", "name", "price", "total_seat", "reserved"}).
						AddRow(int64(2), int64(5), "VIP", int64(50000), int32(10), int32(0)))
				s.PgxMock.ExpectExec(`UPDATE seats SET reserved = reserved \+ \$2`).
					WithArgs(int64(2), int32(1)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectExec(`INSERT INTO detail_transactions`).
					WithArgs(int64(11), int64(2), int32(1), int64(50000)).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))

				s.PgxMock.ExpectExec(`UPDATE transactions SET total_price = \$2`).
					WithArgs(int64(11), int64(70000)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectCommit()

				s.Publisher.EXPECT().Publish(
					gomock.Any(),
					constant.SubjectSendEmail,
					gomock.Any(),
				).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"total_price":70000`,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			trxHttp := s.newHandler(fixedTime)

			tc.setupMock()

			req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(tc.reqBody))
			req.Header.Set("Content-Type", "application/json")
			if tc.userId != "" {
				req.Header.Set("X-User-Id", tc.userId)
			}
			w := httptest.NewRecorder()

			trxHttp.create(w, req)

			s.Equal(tc.expectedStatus, w.Code)

			if tc.expectedStatus == http.StatusOK {
				s.Contains(w.Body.String(), tc.expectedBody)
			} else {
				s.Equal(tc.expectedBody, strings.TrimSpace(w.Body.String()))
			}

			s.NoError(s.PgxMock.ExpectationsWereMet())
		})
	}
}

func (s *TransactionHttpTestSuite) TestApplyCode() {
	couponRows := func(isUsed bool) *pgxmock.Rows {
		return pgxmock.NewRows([]string{"id", "user_id", "coupon_code", "discount", "is_used", "expired_date"}).
			AddRow(int64(21), int64(7), "WELCOME", int64(20000), isUsed,
				pgtype.Timestamp{Time: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), Valid: true})
	}
	voucherRows := pgxmock.NewRows([]string{"id", "events_id", "code", "value", "quota", "claimed", "valid_at", "expired_at"}).
		AddRow(int64(31), int64(5), "SUMMER30", int64(30000), int32(100), int32(10),
			pgtype.Timestamp{Time: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Valid: true},
			pgtype.Timestamp{Time: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), Valid: true})
	pointsRows := pgxmock.NewRows([]string{"id", "user_id", "points_value", "expired_date"}).
		AddRow(int64(41), int64(7), int64(80000),
			pgtype.Timestamp{Time: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC), Valid: true})

	tests := []struct {
		name           string
		reqBody        string
		setupMock      func()
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "no discount requested",
			reqBody:        `{}`,
			setupMock:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Provide a coupon code, voucher code, or points usage","kind":"validation"}`,
		},
		{
			name:    "transaction not found",
			reqBody: `{"coupon_code": "WELCOME"}`,
			setupMock: func() {
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1 FOR UPDATE`).
					WithArgs("trx-1").
					WillReturnError(pgx.ErrNoRows)
				s.PgxMock.ExpectRollback()
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"Transaction not found","kind":"not_found"}`,
		},
		{
			name:    "already applied",
			reqBody: `{"coupon_code": "WELCOME"}`,
			setupMock: func() {
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1 FOR UPDATE`).
					WithArgs("trx-1").
					WillReturnRows(pgxmock.NewRows(transactionCols).
						AddRow(int64(11), "trx-1", int64(7), int64(5), int64(100000), "CREATED",
							pgtype.Int8{Int64: 21, Valid: true}, pgtype.Int8{}, pgtype.Int8{},
							int64(20000), int64(0), int64(0),
							pgtype.Timestamp{Time: fixedTime(), Valid: true}))
				s.PgxMock.ExpectRollback()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"You already used a coupon, voucher, or points","kind":"conflict"}`,
		},
		{
			name:    "coupon already used",
			reqBody: `{"coupon_code": "WELCOME"}`,
			setupMock: func() {
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1 FOR UPDATE`).
					WithArgs("trx-1").
					WillReturnRows(transactionRows("CREATED", 100000))
				s.PgxMock.ExpectQuery(`FROM coupons WHERE coupon_code = \$1 FOR UPDATE`).
					WithArgs("WELCOME").
					WillReturnRows(couponRows(true))
				s.PgxMock.ExpectRollback()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Coupon already used","kind":"conflict"}`,
		},
		{
			name:    "full stack - coupon, voucher, points capped at payable",
			reqBody: `{"coupon_code": "WELCOME", "voucher_code": "SUMMER30", "use_points": true}`,
			setupMock: func() {
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1 FOR UPDATE`).
					WithArgs("trx-1").
					WillReturnRows(transactionRows("CREATED", 100000))

				s.PgxMock.ExpectQuery(`FROM coupons WHERE coupon_code = \$1 FOR UPDATE`).
					WithArgs("WELCOME").
					WillReturnRows(couponRows(false))
				s.PgxMock.ExpectExec(`UPDATE coupons SET is_used = TRUE`).
					WithArgs(int64(21)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))

				s.PgxMock.ExpectQuery(`FROM vouchers WHERE code = \$1 FOR UPDATE`).
					WithArgs("SUMMER30").
					WillReturnRows(voucherRows)
				s.PgxMock.ExpectExec(`UPDATE vouchers SET claimed = claimed \+ 1`).
					WithArgs(int64(31)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))

				s.PgxMock.ExpectQuery(`FROM points WHERE user_id = \$1 FOR UPDATE`).
					WithArgs(int64(7)).
					WillReturnRows(pointsRows)
				s.PgxMock.ExpectExec(`UPDATE points SET points_value = points_value - \$2`).
					WithArgs(int64(7), int64(50000)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))

				s.PgxMock.ExpectExec(`UPDATE transactions`).
					WithArgs(int64(11),
						pgtype.Int8{Int64: 21, Valid: true},
						pgtype.Int8{Int64: 31, Valid: true},
						pgtype.Int8{Int64: 41, Valid: true},
						int64(20000), int64(30000), int64(50000)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectCommit()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"payable_amount":0`,
		},
		{
			name:    "lost the race on the discount columns",
			reqBody: `{"coupon_code": "WELCOME"}`,
			setupMock: func() {
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1 FOR UPDATE`).
					WithArgs("trx-1").
					WillReturnRows(transactionRows("CREATED", 100000))
				s.PgxMock.ExpectQuery(`FROM coupons WHERE coupon_code = \$1 FOR UPDATE`).
					WithArgs("WELCOME").
					WillReturnRows(couponRows(false))
				s.PgxMock.ExpectExec(`UPDATE coupons SET is_used = TRUE`).
					WithArgs(int64(21)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectExec(`UPDATE transactions`).
					WithArgs(int64(11),
						pgtype.Int8{Int64: 21, Valid: true},
						pgtype.Int8{}, pgtype.Int8{},
						int64(20000), int64(0), int64(0)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 0))
				s.PgxMock.ExpectRollback()
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"You already used a coupon, voucher, or points","kind":"conflict"}`,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			trxHttp := s.newHandler(fixedTime)

			tc.setupMock()

			req := httptest.NewRequest(http.MethodPost, "/api/transactions/trx-1/apply-code", strings.NewReader(tc.reqBody))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-Id", "7")
			req.SetPathValue("uuid", "trx-1")
			w := httptest.NewRecorder()

			trxHttp.applyCode(w, req)

			s.Equal(tc.expectedStatus, w.Code)

			if tc.expectedStatus == http.StatusOK {
				s.Contains(w.Body.String(), tc.expectedBody)
			} else {
				s.Equal(tc.expectedBody, strings.TrimSpace(w.Body.String()))
			}

			s.NoError(s.PgxMock.ExpectationsWereMet())
		})
	}
}

func multipartProofBody(s *suite.Suite) (io.Reader, string) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("payment_proof", "proof.jpg")
	s.Require().NoError(err)
	_, err = fw.Write([]byte("jpeg-bytes"))
	s.Require().NoError(err)

	s.Require().NoError(mw.WriteField("payment_method", "BANK_TRANSFER"))
	s.Require().NoError(mw.Close())

	return &buf, mw.FormDataContentType()
}

func (s *TransactionHttpTestSuite) TestUploadProof() {
	tests := []struct {
		name           string
		setupMock      func()
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "transaction not found",
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1`).
					WithArgs("trx-1").
					WillReturnError(pgx.ErrNoRows)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"error":"Transaction not found","kind":"not_found"}`,
		},
		{
			name: "already reviewed",
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1`).
					WithArgs("trx-1").
					WillReturnRows(transactionRows("DONE", 100000))
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Transaction cannot accept payment proof at this stage","kind":"conflict"}`,
		},
		{
			name: "success",
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1`).
					WithArgs("trx-1").
					WillReturnRows(transactionRows("WAITING_FOR_PAYMENT", 100000))
				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`INSERT INTO payments`).
					WithArgs(int64(11), "BANK_TRANSFER", "http://media.local/proof-1.jpg").
					WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(51)))
				s.PgxMock.ExpectExec(`UPDATE transactions SET status = \$2`).
					WithArgs("trx-1", "WAITING_FOR_ADMIN_CONFIRMATION", "WAITING_FOR_PAYMENT", pgtype.Text{}).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectCommit()

				s.CacheMock.ExpectTxPipeline()
				s.CacheMock.ExpectZRem("jobs:transaction_windows", "payment_window_expiry:trx-1").SetVal(1)
				s.CacheMock.ExpectHDel("jobs:transaction_windows:payloads", "payment_window_expiry:trx-1").SetVal(1)
				s.CacheMock.ExpectTxPipelineExec()

				s.CacheMock.ExpectTxPipeline()
				s.CacheMock.ExpectZAdd("jobs:transaction_windows", redis.Z{
					Score:  float64(fixedTime().Add(72 * time.Hour).UnixMilli()),
					Member: "confirmation_window_expiry:trx-1",
				}).SetVal(1)
				s.CacheMock.ExpectHSet("jobs:transaction_windows:payloads", "confirmation_window_expiry:trx-1",
					`{"name":"confirmation_window_expiry","key":"confirmation_window_expiry:trx-1","payload":{"uuid":"trx-1"},"attempts":0,"max_attempts":5,"backoff_ms":1000}`).
					SetVal(1)
				s.CacheMock.ExpectTxPipelineExec()
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"payment_proof_url":"http://media.local/proof-1.jpg"`,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			trxHttp := s.newHandler(fixedTime)

			tc.setupMock()

			body, contentType := multipartProofBody(&s.Suite)
			req := httptest.NewRequest(http.MethodPost, "/api/transactions/trx-1/payment-proof", body)
			req.Header.Set("Content-Type", contentType)
			req.Header.Set("X-User-Id", "7")
			req.SetPathValue("uuid", "trx-1")
			w := httptest.NewRecorder()

			trxHttp.uploadProof(w, req)

			s.Equal(tc.expectedStatus, w.Code)

			if tc.expectedStatus == http.StatusOK {
				s.Contains(w.Body.String(), tc.expectedBody)
			} else {
				s.Equal(tc.expectedBody, strings.TrimSpace(w.Body.String()))
			}

			s.NoError(s.PgxMock.ExpectationsWereMet())
			s.NoError(s.CacheMock.ExpectationsWereMet())
		})
	}
}

func (s *TransactionHttpTestSuite) TestUpdate() {
	reviewRows := func() *pgxmock.Rows {
		return pgxmock.NewRows(transactionCols).
			AddRow(int64(11), "trx-1", int64(7), int64(5), int64(100000), "WAITING_FOR_ADMIN_CONFIRMATION",
				pgtype.Int8{Int64: 21, Valid: true}, pgtype.Int8{Int64: 31, Valid: true}, pgtype.Int8{Int64: 41, Valid: true},
				int64(20000), int64(30000), int64(50000),
				pgtype.Timestamp{Time: fixedTime(), Valid: true})
	}
	detailRows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"seats_id", "quantity", "price_at_purchase", "name"}).
			AddRow(int64(1), int32(2), int64(10000), "Festival").
			AddRow(int64(2), int32(1), int64(50000), "VIP")
	}
	organizerRows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"id", "user_id", "name"}).
			AddRow(int64(3), int64(9), "Promoter Inc")
	}

	tests := []struct {
		name            string
		reqBody         string
		setupMock       func()
		expectedStatus  int
		expectedBody    string
		expectedRemoved string
	}{
		{
			name:           "validation error - bad status",
			reqBody:        `{"status": "CANCELED"}`,
			setupMock:      func() {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"Validation failed","kind":"validation","data":{"Status":"oneof"}}`,
		},
		{
			name:    "not an organizer",
			reqBody: `{"status": "DONE"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM organizers WHERE user_id = \$1`).
					WithArgs(int64(9)).
					WillReturnError(pgx.ErrNoRows)
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `{"error":"You are not an organizer","kind":"forbidden"}`,
		},
		{
			name:    "not the event owner",
			reqBody: `{"status": "DONE"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM organizers WHERE user_id = \$1`).
					WithArgs(int64(9)).
					WillReturnRows(pgxmock.NewRows([]string{"id", "user_id", "name"}).
						AddRow(int64(99), int64(9), "Other Promoter"))
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1`).
					WithArgs("trx-1").
					WillReturnRows(reviewRows())
				s.PgxMock.ExpectQuery(`FROM events WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs(int64(5)).
					WillReturnRows(eventRows())
			},
			expectedStatus: http.StatusForbidden,
			expectedBody:   `{"error":"You are not authorized to update this transaction","kind":"forbidden"}`,
		},
		{
			name:    "wrong stage",
			reqBody: `{"status": "DONE"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM organizers WHERE user_id = \$1`).
					WithArgs(int64(9)).
					WillReturnRows(organizerRows())
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1`).
					WithArgs("trx-1").
					WillReturnRows(transactionRows("CREATED", 100000))
				s.PgxMock.ExpectQuery(`FROM events WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs(int64(5)).
					WillReturnRows(eventRows())
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `{"error":"Transaction cannot be updated at this stage","kind":"conflict"}`,
		},
		{
			name:    "accept - tickets issued and points awarded",
			reqBody: `{"status": "DONE", "payment_proof_url": "http://media.local/proof-2.jpg"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM organizers WHERE user_id = \$1`).
					WithArgs(int64(9)).
					WillReturnRows(organizerRows())
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1`).
					WithArgs("trx-1").
					WillReturnRows(reviewRows())
				s.PgxMock.ExpectQuery(`FROM events WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs(int64(5)).
					WillReturnRows(eventRows())
				s.PgxMock.ExpectQuery(`SELECT id, email, full_name FROM users WHERE id = \$1`).
					WithArgs(int64(7)).
					WillReturnRows(userRows())

				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`FROM detail_transactions d`).
					WithArgs(int64(11)).
					WillReturnRows(detailRows())

				// One ticket per purchased unit.
				s.PgxMock.ExpectExec(`INSERT INTO tickets`).
					WithArgs(int64(7), int64(1), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				s.PgxMock.ExpectExec(`INSERT INTO tickets`).
					WithArgs(int64(7), int64(1), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))
				s.PgxMock.ExpectExec(`INSERT INTO tickets`).
					WithArgs(int64(7), int64(2), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))

				s.PgxMock.ExpectExec(`INSERT INTO points`).
					WithArgs(int64(7), int64(10), pgxmock.AnyArg()).
					WillReturnResult(pgxmock.NewResult("INSERT", 1))

				s.PgxMock.ExpectQuery(`SELECT payment_proof_url FROM payments`).
					WithArgs(int64(11)).
					WillReturnRows(pgxmock.NewRows([]string{"payment_proof_url"}).
						AddRow("http://media.local/proof-1.jpg"))
				s.PgxMock.ExpectExec(`UPDATE payments SET payment_proof_url = \$2`).
					WithArgs(int64(11), "http://media.local/proof-2.jpg").
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))

				s.PgxMock.ExpectExec(`UPDATE transactions SET status = \$2`).
					WithArgs("trx-1", "DONE", "WAITING_FOR_ADMIN_CONFIRMATION", pgtype.Text{}).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectCommit()

				s.CacheMock.ExpectTxPipeline()
				s.CacheMock.ExpectZRem("jobs:transaction_windows", "confirmation_window_expiry:trx-1").SetVal(1)
				s.CacheMock.ExpectHDel("jobs:transaction_windows:payloads", "confirmation_window_expiry:trx-1").SetVal(1)
				s.CacheMock.ExpectTxPipelineExec()

				s.Publisher.EXPECT().Publish(
					gomock.Any(),
					constant.SubjectSendEmail,
					gomock.Any(),
				).Return(nil, nil)
			},
			expectedStatus:  http.StatusOK,
			expectedBody:    `"status":"DONE"`,
			expectedRemoved: "http://media.local/proof-1.jpg",
		},
		{
			name:    "reject - seats and discounts compensated",
			reqBody: `{"status": "REJECTED", "admin_note": "proof unreadable"}`,
			setupMock: func() {
				s.PgxMock.ExpectQuery(`FROM organizers WHERE user_id = \$1`).
					WithArgs(int64(9)).
					WillReturnRows(organizerRows())
				s.PgxMock.ExpectQuery(`FROM transactions WHERE uuid = \$1`).
					WithArgs("trx-1").
					WillReturnRows(reviewRows())
				s.PgxMock.ExpectQuery(`FROM events WHERE id = \$1 AND deleted_at IS NULL`).
					WithArgs(int64(5)).
					WillReturnRows(eventRows())
				s.PgxMock.ExpectQuery(`SELECT id, email, full_name FROM users WHERE id = \$1`).
					WithArgs(int64(7)).
					WillReturnRows(userRows())

				s.PgxMock.ExpectBegin()
				s.PgxMock.ExpectQuery(`FROM detail_transactions d`).
					WithArgs(int64(11)).
					WillReturnRows(detailRows())

				s.PgxMock.ExpectExec(`UPDATE seats SET reserved = reserved - d.quantity`).
					WithArgs(int64(11)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 2))
				s.PgxMock.ExpectExec(`UPDATE points SET points_value = points_value \+ \$2`).
					WithArgs(int64(7), int64(50000)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectExec(`UPDATE vouchers SET claimed = claimed - 1`).
					WithArgs(int64(31)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectExec(`UPDATE coupons SET is_used = FALSE`).
					WithArgs(int64(21)).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))

				s.PgxMock.ExpectExec(`UPDATE transactions SET status = \$2`).
					WithArgs("trx-1", "REJECTED", "WAITING_FOR_ADMIN_CONFIRMATION",
						pgtype.Text{String: "proof unreadable", Valid: true}).
					WillReturnResult(pgxmock.NewResult("UPDATE", 1))
				s.PgxMock.ExpectCommit()

				s.CacheMock.ExpectTxPipeline()
				s.CacheMock.ExpectZRem("jobs:transaction_windows", "confirmation_window_expiry:trx-1").SetVal(1)
				s.CacheMock.ExpectHDel("jobs:transaction_windows:payloads", "confirmation_window_expiry:trx-1").SetVal(1)
				s.CacheMock.ExpectTxPipelineExec()

				s.Publisher.EXPECT().Publish(
					gomock.Any(),
					constant.SubjectSendEmail,
					gomock.Any(),
				).Return(nil, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"REJECTED"`,
		},
	}

	for _, tc := range tests {
		s.Run(tc.name, func() {
			trxHttp := s.newHandler(fixedTime)

			var removed string
			trxHttp.Media = stubMediaStore{removed: &removed}

			tc.setupMock()

			req := httptest.NewRequest(http.MethodPatch, "/api/transactions/trx-1", strings.NewReader(tc.reqBody))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-User-Id", "9")
			req.SetPathValue("uuid", "trx-1")
			w := httptest.NewRecorder()

			trxHttp.update(w, req)

			s.Equal(tc.expectedStatus, w.Code)

			if tc.expectedStatus == http.StatusOK {
				s.Contains(w.Body.String(), tc.expectedBody)
			} else {
				s.Equal(tc.expectedBody, strings.TrimSpace(w.Body.String()))
			}

			s.Equal(tc.expectedRemoved, removed)
			s.NoError(s.PgxMock.ExpectationsWereMet())
			s.NoError(s.CacheMock.ExpectationsWereMet())
		})
	}
}

func (s *TransactionHttpTestSuite) TestHistory() {
	s.PgxMock.ExpectQuery(`FROM transactions t`).
		WithArgs(int64(7), int32(10), int32(0)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "uuid", "name", "total_price", "coupoun_amount", "voucher_amount", "used_point", "status", "created_at"}).
			AddRow(int64(11), "trx-1", "Summer Festival", int64(70000), int64(0), int64(0), int64(0), "DONE",
				pgtype.Timestamp{Time: fixedTime(), Valid: true}))
	s.PgxMock.ExpectQuery(`SELECT count\(\*\) FROM transactions WHERE user_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	trxHttp := s.newHandler(fixedTime)

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set("X-User-Id", "7")
	w := httptest.NewRecorder()

	trxHttp.history(w, req)

	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"event_name":"Summer Festival"`)
	s.Contains(w.Body.String(), `"total":1`)
	s.NoError(s.PgxMock.ExpectationsWereMet())
}

func (s *TransactionHttpTestSuite) TestFormatIdr() {
	trxHttp := s.newHandler(nil)
	s.Equal("Rp50.000", trxHttp.formatIdr(50000))
	s.Equal("Rp0", trxHttp.formatIdr(0))
}
