package model

// TransactionStatus values are persisted as-is; renaming one is a schema change.
type TransactionStatus string

const (
	StatusCreated               TransactionStatus = "CREATED"
	StatusWaitingForPayment     TransactionStatus = "WAITING_FOR_PAYMENT"
	StatusWaitingForAdminReview TransactionStatus = "WAITING_FOR_ADMIN_CONFIRMATION"
	StatusDone                  TransactionStatus = "DONE"
	StatusRejected              TransactionStatus = "REJECTED"
	StatusExpired               TransactionStatus = "EXPIRED"
	StatusCanceled              TransactionStatus = "CANCELED"
)

type TransactionDetailRequest struct {
	SeatsID  int64 `json:"seats_id" validate:"required"`
	Quantity int32 `json:"quantity" validate:"required,min=1"`
}

type CreateTransactionRequest struct {
	EventID int64                      `json:"event_id" validate:"required"`
	Details []TransactionDetailRequest `json:"details" validate:"required,min=1,dive"`
}

type CreateTransactionResponse struct {
	Id         int64  `json:"id"`
	Uuid       string `json:"uuid"`
	TotalPrice int64  `json:"total_price"`
	Status     string `json:"status"`
	ExpiredAt  string `json:"expired_at"`
}

type ApplyCodeRequest struct {
	CouponCode  string `json:"coupon_code" validate:"omitempty,max=50"`
	VoucherCode string `json:"voucher_code" validate:"omitempty,max=50"`
	UsePoints   bool   `json:"use_points"`
}

type ApplyCodeResponse struct {
	Uuid          string `json:"uuid"`
	TotalPrice    int64  `json:"total_price"`
	CouponAmount  int64  `json:"coupon_amount"`
	VoucherAmount int64  `json:"voucher_amount"`
	UsedPoint     int64  `json:"used_point"`
	PayableAmount int64  `json:"payable_amount"`
	Status        string `json:"status"`
}

type UploadPaymentProofResponse struct {
	Uuid            string `json:"uuid"`
	PaymentProofUrl string `json:"payment_proof_url"`
	Status          string `json:"status"`
}

type UpdateTransactionRequest struct {
	Status          string `json:"status" validate:"required,oneof=DONE REJECTED"`
	PaymentProofUrl string `json:"payment_proof_url" validate:"omitempty,url"`
	AdminNote       string `json:"admin_note" validate:"omitempty,max=500"`
}

type UpdateTransactionResponse struct {
	Uuid   string `json:"uuid"`
	Status string `json:"status"`
}

type TransactionResponse struct {
	Id            int64                       `json:"id"`
	Uuid          string                      `json:"uuid"`
	EventName     string                      `json:"event_name"`
	TotalPrice    int64                       `json:"total_price"`
	CouponAmount  int64                       `json:"coupon_amount"`
	VoucherAmount int64                       `json:"voucher_amount"`
	UsedPoint     int64                       `json:"used_point"`
	Status        string                      `json:"status"`
	CreatedAt     string                      `json:"created_at"`
	Details       []TransactionDetailResponse `json:"details,omitempty"`
}

type TransactionDetailResponse struct {
	SeatName        string `json:"seat_name"`
	Quantity        int32  `json:"quantity"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
}

type ListTransactionsResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Meta         PageMeta              `json:"meta"`
}

// TransactionJobMessage is the payload of both delayed-job triggers
// (payment window and admin-confirmation window).
type TransactionJobMessage struct {
	Uuid string `json:"uuid"`
}
