package domain

// Payment lifecycle. success/failed/cancelled are terminal; a replayed
// provider notification for a terminal payment must not write anything.
const (
	PaymentPending    = "pending"
	PaymentProcessing = "processing"
	PaymentSuccess    = "success"
	PaymentFailed     = "failed"
	PaymentCancelled  = "cancelled"
)

func PaymentTerminal(status string) bool {
	return status == PaymentSuccess || status == PaymentFailed || status == PaymentCancelled
}

// PaymentLive reports whether the payment blocks a new one on the same order:
// anything pending, in flight, or already succeeded counts. failed and
// cancelled payments free the order for a retry.
func PaymentLive(status string) bool {
	return status == PaymentPending || status == PaymentProcessing || status == PaymentSuccess
}

// PaymentCancellableBy reports whether a user-initiated cancel is allowed.
func PaymentCancellableBy(status string) bool {
	return status == PaymentPending || status == PaymentProcessing
}

type Payment struct {
	ID          string `db:"id" json:"id"`
	OrderID     string `db:"order_id" json:"order_id"`
	Provider    string `db:"provider" json:"provider"`
	GatewayRef  string `db:"gateway_ref" json:"gateway_ref,omitempty"`
	Status      string `db:"status" json:"status"`
	AmountCents int64  `db:"amount_cents" json:"amount_cents"`
	Currency    string `db:"currency" json:"currency"`
	CreatedAt   string `db:"created_at" json:"created_at"`
	UpdatedAt   string `db:"updated_at" json:"updated_at,omitempty"`
}
