package constant

const (
	QueueStreamName = "ticket_marketplace_queue_stream"
)

const (
	AllWildcard   = "events.>"
	EmailWildcard = "events.email.>"

	SubjectSendEmail = "events.email.send"
)

// Delayed-job queue and job names. Jobs are keyed by transaction uuid, so
// re-scheduling a window for the same transaction replaces the pending one.
const (
	TransactionJobQueue = "transaction_windows"

	JobPaymentWindowExpiry      = "payment_window_expiry"
	JobConfirmationWindowExpiry = "confirmation_window_expiry"
)
